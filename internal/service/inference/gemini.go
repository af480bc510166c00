package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/Lartitiz/nowadaysagency-sub004/internal/model"
	"github.com/Lartitiz/nowadaysagency-sub004/internal/service/mapping"
)

// DefaultGeminiModel modèle utilisé quand la configuration n'en précise pas
const DefaultGeminiModel = "gemini-2.0-flash"

// generateFunc envoie un prompt et retourne le texte produit
type generateFunc func(ctx context.Context, prompt string) (string, error)

// GeminiInferrer devine la correspondance via l'API Gemini
type GeminiInferrer struct {
	generate generateFunc
}

// NewGeminiInferrer crée le client GenAI (backend Gemini API)
func NewGeminiInferrer(ctx context.Context, apiKey, modelName string) (*GeminiInferrer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key not configured")
	}
	if modelName == "" {
		modelName = DefaultGeminiModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(float32(0)),
		ResponseMIMEType: "application/json",
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: systemPrompt}},
		},
	}

	return &GeminiInferrer{
		generate: func(ctx context.Context, prompt string) (string, error) {
			result, err := client.Models.GenerateContent(ctx, modelName, genai.Text(prompt), config)
			if err != nil {
				return "", fmt.Errorf("gemini generation failed: %w", err)
			}
			return result.Text(), nil
		},
	}, nil
}

// Infer construit le prompt puis décode la réponse JSON
func (g *GeminiInferrer) Infer(ctx context.Context, req *mapping.InferenceRequest) (*mapping.InferenceResponse, error) {
	prompt, err := BuildPrompt(req)
	if err != nil {
		return nil, err
	}
	text, err := g.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return DecodeResponse(text)
}

const systemPrompt = `Tu analyses des tableaux de statistiques mensuelles d'entrepreneurs.
Réponds uniquement avec un objet JSON de la forme :
{"sheet": string, "date_column": number, "mapping": {"<metric_key>": number|null},
 "skip_columns": number[], "date_format": string, "start_row": number,
 "confidence": "high"|"medium"|"low"}
Les index de colonnes commencent à 0, start_row commence à 1 (ligne d'en-tête = 1).
Liste dans skip_columns les colonnes calculées (totaux, pourcentages, évolutions).`

// BuildPrompt liste les métriques connues puis les feuilles du fichier
func BuildPrompt(req *mapping.InferenceRequest) (string, error) {
	var b strings.Builder
	b.WriteString("Métriques disponibles (clé : libellé) :\n")
	for _, def := range model.Metrics() {
		fmt.Fprintf(&b, "- %s : %s\n", def.Key, def.Label)
	}

	sheets, err := json.MarshalIndent(req, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode sheets: %w", err)
	}
	b.WriteString("\nFeuilles du fichier :\n")
	b.Write(sheets)
	b.WriteString("\n\nChoisis la feuille qui contient les statistiques mensuelles et associe ses colonnes aux métriques.")
	return b.String(), nil
}
