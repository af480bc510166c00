package mapping

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Lartitiz/nowadaysagency-sub004/internal/model"
	"github.com/Lartitiz/nowadaysagency-sub004/internal/service/excel"
)

// RecentCandidates nombre de correspondances enregistrées examinées avant inférence
const RecentCandidates = 5

// InferenceUnavailableError le service d'inférence a échoué ou renvoyé une réponse inexploitable
type InferenceUnavailableError struct {
	Err error
}

func (e *InferenceUnavailableError) Error() string {
	return fmt.Sprintf("inference unavailable: %v", e.Err)
}

func (e *InferenceUnavailableError) Unwrap() error {
	return e.Err
}

// SavedMappingRepository accès aux correspondances enregistrées
type SavedMappingRepository interface {
	// RecentMappings au plus limit correspondances du propriétaire, la plus récente en premier.
	// L'ordre est contractuel : en cas d'en-têtes identiques, la première gagne.
	RecentMappings(ctx context.Context, ownerID string, limit int) ([]*model.SavedMapping, error)
}

// Inferrer collaborateur externe qui devine la correspondance des colonnes
type Inferrer interface {
	Infer(ctx context.Context, req *InferenceRequest) (*InferenceResponse, error)
}

// InferenceRequest corps envoyé au service d'inférence
type InferenceRequest struct {
	Sheets []model.SheetSummary `json:"sheets"`
}

// InferenceResponse réponse brute du service d'inférence
type InferenceResponse struct {
	Sheet       string          `json:"sheet"`
	DateColumn  *int            `json:"date_column"`
	Mapping     map[string]*int `json:"mapping"`
	SkipColumns []int           `json:"skip_columns"`
	DateFormat  string          `json:"date_format"`
	StartRow    int             `json:"start_row"`
	Confidence  string          `json:"confidence"`
}

// Resolution correspondance proposée à l'utilisateur, jamais appliquée automatiquement
type Resolution struct {
	Mapping  *model.ColumnMapping
	Source   model.MappingSource
	Headers  []string
	Saved    *model.SavedMapping
	Warnings []string
}

// Resolver résout la correspondance colonnes → métriques
type Resolver struct {
	repo       SavedMappingRepository
	inferrer   Inferrer
	sampleRows int
}

// NewResolver crée un résolveur
func NewResolver(repo SavedMappingRepository, inferrer Inferrer) *Resolver {
	return &Resolver{repo: repo, inferrer: inferrer, sampleRows: excel.DefaultSampleRows}
}

// WithSampleRows nombre de lignes d'exemple envoyées par feuille
func (r *Resolver) WithSampleRows(n int) *Resolver {
	if n > 0 {
		r.sampleRows = n
	}
	return r
}

// Fingerprint liste exacte et ordonnée des en-têtes d'une feuille
func Fingerprint(s *model.Sheet) []string {
	return s.HeaderStrings()
}

// Resolve réutilise une correspondance enregistrée dont les en-têtes sont identiques à ceux
// d'une feuille, sinon délègue au service d'inférence.
func (r *Resolver) Resolve(ctx context.Context, ownerID string, wb *model.Workbook) (*Resolution, error) {
	if wb == nil || len(wb.Sheets) == 0 {
		return nil, errors.New("workbook has no sheet")
	}

	if res := r.fromSaved(ctx, ownerID, wb); res != nil {
		return res, nil
	}

	if r.inferrer == nil {
		return nil, &InferenceUnavailableError{Err: errors.New("no inference provider configured")}
	}
	resp, err := r.inferrer.Infer(ctx, &InferenceRequest{Sheets: excel.Summaries(wb, r.sampleRows)})
	if err != nil {
		return nil, &InferenceUnavailableError{Err: err}
	}
	res, err := Sanitize(resp, wb)
	if err != nil {
		return nil, &InferenceUnavailableError{Err: err}
	}
	slog.Info("column mapping inferred",
		"owner", ownerID, "sheet", res.Mapping.SheetName, "confidence", res.Mapping.Confidence, "warnings", len(res.Warnings))
	return res, nil
}

// fromSaved première correspondance enregistrée (ordre de récence) égale à l'une des feuilles
func (r *Resolver) fromSaved(ctx context.Context, ownerID string, wb *model.Workbook) *Resolution {
	if r.repo == nil {
		return nil
	}
	candidates, err := r.repo.RecentMappings(ctx, ownerID, RecentCandidates)
	if err != nil {
		slog.Warn("failed to load saved mappings, falling back to inference", "owner", ownerID, "error", err)
		return nil
	}

	fingerprints := make([][]string, len(wb.Sheets))
	for i := range wb.Sheets {
		fingerprints[i] = Fingerprint(&wb.Sheets[i])
	}

	for _, saved := range candidates {
		if saved == nil || saved.Mapping == nil {
			continue
		}
		for i := range wb.Sheets {
			if !model.SameHeaders(saved.Headers, fingerprints[i]) {
				continue
			}
			m := saved.Mapping.Clone()
			m.SheetName = wb.Sheets[i].Name
			m.Confidence = model.ConfidenceHigh
			if m.StartRow < model.DefaultStartRow {
				m.StartRow = model.DefaultStartRow
			}
			if err := m.Validate(wb.Sheets[i].ColumnCount()); err != nil {
				slog.Warn("saved mapping no longer valid", "owner", ownerID, "id", saved.ID, "error", err)
				continue
			}
			slog.Info("reusing saved column mapping", "owner", ownerID, "id", saved.ID, "sheet", m.SheetName)
			return &Resolution{
				Mapping: m,
				Source:  model.MappingSaved,
				Headers: fingerprints[i],
				Saved:   saved,
			}
		}
	}
	return nil
}

// Sanitize convertit la réponse d'inférence en ColumnMapping valide pour la feuille désignée.
// Feuille inconnue ou colonne de date hors limites : erreur. Index de métrique invalides :
// métrique non associée et confiance "high" ramenée à "medium".
func Sanitize(resp *InferenceResponse, wb *model.Workbook) (*Resolution, error) {
	if resp == nil {
		return nil, errors.New("empty inference response")
	}

	sheet := findSheet(wb, resp.Sheet)
	if sheet == nil {
		return nil, fmt.Errorf("inferred sheet %q not found", resp.Sheet)
	}
	columns := sheet.ColumnCount()
	if resp.DateColumn == nil || *resp.DateColumn < 0 || *resp.DateColumn >= columns {
		return nil, fmt.Errorf("inferred date column out of range (%d columns)", columns)
	}
	dateCol := *resp.DateColumn

	var warnings []string
	confidence := model.Confidence(strings.ToLower(strings.TrimSpace(resp.Confidence)))
	if !confidence.Valid() {
		warnings = append(warnings, fmt.Sprintf("confiance inconnue %q, ramenée à \"low\"", resp.Confidence))
		confidence = model.ConfidenceLow
	}

	metrics := make(map[model.MetricKey]*int, len(model.MetricKeys()))
	for _, key := range model.MetricKeys() {
		metrics[key] = nil
	}
	downgrade := false
	for name, idx := range resp.Mapping {
		key, err := model.ParseMetricKey(name)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("métrique inconnue %q ignorée", name))
			continue
		}
		if idx == nil {
			continue
		}
		if *idx < 0 || *idx >= columns || *idx == dateCol {
			warnings = append(warnings, fmt.Sprintf("colonne %d invalide pour %s", *idx, key))
			downgrade = true
			continue
		}
		metrics[key] = model.IntPtr(*idx)
	}
	if downgrade && confidence == model.ConfidenceHigh {
		confidence = model.ConfidenceMedium
	}

	seen := make(map[int]bool)
	skip := make([]int, 0, len(resp.SkipColumns))
	for _, c := range resp.SkipColumns {
		if c < 0 || c >= columns || c == dateCol || seen[c] {
			continue
		}
		seen[c] = true
		skip = append(skip, c)
	}

	startRow := resp.StartRow
	if startRow < model.DefaultStartRow {
		startRow = model.DefaultStartRow
	}

	m := &model.ColumnMapping{
		SheetName:   sheet.Name,
		DateColumn:  dateCol,
		DateFormat:  strings.TrimSpace(resp.DateFormat),
		StartRow:    startRow,
		Metrics:     metrics,
		SkipColumns: skip,
		Confidence:  confidence,
	}
	if err := m.Validate(columns); err != nil {
		return nil, err
	}

	return &Resolution{
		Mapping:  m,
		Source:   model.MappingInferred,
		Headers:  Fingerprint(sheet),
		Warnings: warnings,
	}, nil
}

func findSheet(wb *model.Workbook, name string) *model.Sheet {
	if s, ok := wb.Sheet(name); ok {
		return s
	}
	trimmed := strings.TrimSpace(name)
	for i := range wb.Sheets {
		if strings.EqualFold(strings.TrimSpace(wb.Sheets[i].Name), trimmed) {
			return &wb.Sheets[i]
		}
	}
	if trimmed == "" && len(wb.Sheets) == 1 {
		return &wb.Sheets[0]
	}
	return nil
}
