package inference

import (
	"encoding/json"
	"fmt"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"

	"github.com/Lartitiz/nowadaysagency-sub004/internal/service/mapping"
)

// DecodeResponse décode la réponse du service. Les blocs markdown sont retirés et un JSON
// légèrement invalide (virgule finale, guillemets simples) est réparé avant décodage.
func DecodeResponse(raw string) (*mapping.InferenceResponse, error) {
	body := stripCodeFence(raw)
	if body == "" {
		return nil, fmt.Errorf("empty inference payload")
	}

	var resp mapping.InferenceResponse
	if err := json.Unmarshal([]byte(body), &resp); err == nil {
		return &resp, nil
	}

	repaired, err := jsonrepair.RepairJSON(body)
	if err != nil {
		return nil, fmt.Errorf("failed to repair inference payload: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), &resp); err != nil {
		return nil, fmt.Errorf("failed to decode inference payload: %w", err)
	}
	return &resp, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
