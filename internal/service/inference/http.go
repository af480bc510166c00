package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/Lartitiz/nowadaysagency-sub004/internal/service/mapping"
)

// maxResponseBytes taille maximale lue dans la réponse du service
const maxResponseBytes = 1 << 20

// HTTPInferrer appelle la fonction distante d'analyse de fichier
type HTTPInferrer struct {
	endpoint string
	apiKey   string
	client   HTTPDoer
}

// NewHTTPInferrer crée le client ; client nil → RetryClient par défaut
func NewHTTPInferrer(endpoint, apiKey string, client HTTPDoer) *HTTPInferrer {
	if client == nil {
		client = NewRetryClient(nil, 0)
	}
	return &HTTPInferrer{endpoint: endpoint, apiKey: apiKey, client: client}
}

// Infer POST {sheets: [...]} puis décode {sheet, date_column, mapping, ...}
func (h *HTTPInferrer) Infer(ctx context.Context, req *mapping.InferenceRequest) (*mapping.InferenceResponse, error) {
	if h.endpoint == "" {
		return nil, fmt.Errorf("inference endpoint not configured")
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode inference request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build inference request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if h.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+h.apiKey)
		httpReq.Header.Set("apikey", h.apiKey)
	}

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("inference request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read inference response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("inference service returned %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	return DecodeResponse(string(body))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
