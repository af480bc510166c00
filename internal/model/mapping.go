package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidMapping correspondance incohérente avec l'en-tête
var ErrInvalidMapping = errors.New("invalid column mapping")

// Confidence niveau de confiance d'une correspondance
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Valid niveau connu
func (c Confidence) Valid() bool {
	switch c {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		return true
	}
	return false
}

// MappingSource origine d'une correspondance
type MappingSource string

const (
	MappingSaved    MappingSource = "saved"
	MappingInferred MappingSource = "inferred"
	MappingManual   MappingSource = "manual"
)

// DefaultStartRow les données commencent juste après l'en-tête
const DefaultStartRow = 2

// ColumnMapping correspondance colonnes → métriques pour une feuille
type ColumnMapping struct {
	SheetName   string             `json:"sheetName"`
	DateColumn  int                `json:"dateColumn"`
	DateFormat  string             `json:"dateFormat"`
	StartRow    int                `json:"startRow"`
	Metrics     map[MetricKey]*int `json:"metrics"`
	SkipColumns []int              `json:"skipColumns"`
	Confidence  Confidence         `json:"confidence"`
}

// Column index de colonne d'une métrique (false si non mappée)
func (m *ColumnMapping) Column(key MetricKey) (int, bool) {
	idx, ok := m.Metrics[key]
	if !ok || idx == nil {
		return 0, false
	}
	return *idx, true
}

// Skipped colonne marquée comme calculée/ignorée
func (m *ColumnMapping) Skipped(col int) bool {
	for _, c := range m.SkipColumns {
		if c == col {
			return true
		}
	}
	return false
}

// Clone copie profonde
func (m *ColumnMapping) Clone() *ColumnMapping {
	if m == nil {
		return nil
	}
	out := *m
	out.Metrics = make(map[MetricKey]*int, len(m.Metrics))
	for k, v := range m.Metrics {
		if v == nil {
			out.Metrics[k] = nil
			continue
		}
		idx := *v
		out.Metrics[k] = &idx
	}
	out.SkipColumns = append([]int(nil), m.SkipColumns...)
	return &out
}

// Validate vérifie les invariants par rapport au nombre de colonnes de l'en-tête
func (m *ColumnMapping) Validate(columnCount int) error {
	if m.DateColumn < 0 || m.DateColumn >= columnCount {
		return fmt.Errorf("%w: date column %d out of range [0,%d)", ErrInvalidMapping, m.DateColumn, columnCount)
	}
	if m.StartRow < DefaultStartRow {
		return fmt.Errorf("%w: start row %d must be >= %d", ErrInvalidMapping, m.StartRow, DefaultStartRow)
	}
	if !m.Confidence.Valid() {
		return fmt.Errorf("%w: unknown confidence %q", ErrInvalidMapping, m.Confidence)
	}
	for key, idx := range m.Metrics {
		if !key.Valid() {
			return fmt.Errorf("%w: unknown metric %q", ErrInvalidMapping, key)
		}
		if idx == nil {
			continue
		}
		if *idx < 0 || *idx >= columnCount {
			return fmt.Errorf("%w: metric %s column %d out of range [0,%d)", ErrInvalidMapping, key, *idx, columnCount)
		}
		if *idx == m.DateColumn {
			return fmt.Errorf("%w: metric %s uses the date column %d", ErrInvalidMapping, key, *idx)
		}
	}
	for _, c := range m.SkipColumns {
		if c < 0 || c >= columnCount {
			return fmt.Errorf("%w: skip column %d out of range [0,%d)", ErrInvalidMapping, c, columnCount)
		}
	}
	return nil
}

// SavedMapping correspondance confirmée, réutilisée pour un en-tête identique
type SavedMapping struct {
	ID        int64          `json:"id"`
	OwnerID   string         `json:"ownerId"`
	SheetName string         `json:"sheetName"`
	Headers   []string       `json:"headers"`
	Mapping   *ColumnMapping `json:"mapping"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// SameHeaders égalité stricte et ordonnée des en-têtes (empreinte structurelle)
func SameHeaders(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// IntPtr helper pour construire les correspondances
func IntPtr(v int) *int {
	return &v
}
