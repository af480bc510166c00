package model

import "time"

// ImportStep étape du dialogue d'import
type ImportStep string

const (
	StepUpload     ImportStep = "upload"
	StepAnalyzing  ImportStep = "analyzing"
	StepValidate   ImportStep = "validate"
	StepCorrecting ImportStep = "correcting"
	StepPreview    ImportStep = "preview"
	StepImporting  ImportStep = "importing"
	StepDone       ImportStep = "done"
)

// ImportSession état transitoire d'une tentative d'import
type ImportSession struct {
	ID            string               `json:"id"`
	OwnerID       string               `json:"ownerId"`
	FileName      string               `json:"fileName"`
	Step          ImportStep           `json:"step"`
	Workbook      *Workbook            `json:"workbook,omitempty"`
	Mapping       *ColumnMapping       `json:"mapping,omitempty"`
	MappingSource MappingSource        `json:"mappingSource,omitempty"`
	Rows          []NormalizedMonthRow `json:"rows"`
	Corrections   []Correction         `json:"corrections"`
	Skipped       []SkippedRow         `json:"skipped"`
	ImportedCount int                  `json:"importedCount"`
	FailedCount   int                  `json:"failedCount"`
	LastError     string               `json:"lastError,omitempty"`
	CreatedAt     time.Time            `json:"createdAt"`
	UpdatedAt     time.Time            `json:"updatedAt"`
}

// TargetSheet feuille désignée par la correspondance courante
func (s *ImportSession) TargetSheet() (*Sheet, bool) {
	if s.Workbook == nil || s.Mapping == nil {
		return nil, false
	}
	return s.Workbook.Sheet(s.Mapping.SheetName)
}

// ImportLog trace d'une confirmation d'import
type ImportLog struct {
	ID           int64     `json:"id"`
	OwnerID      string    `json:"ownerId"`
	FileName     string    `json:"fileName"`
	SheetName    string    `json:"sheetName"`
	TotalRows    int       `json:"totalRows"`
	ImportedRows int       `json:"importedRows"`
	FailedRows   int       `json:"failedRows"`
	Status       string    `json:"status"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// MonthlyStat enregistrement persisté (propriétaire, mois)
type MonthlyStat struct {
	OwnerID   string                    `json:"ownerId"`
	Month     time.Time                 `json:"month"`
	Values    map[MetricKey]MetricValue `json:"values"`
	UpdatedAt time.Time                 `json:"updatedAt"`
}

// MonthKey clé canonique YYYY-MM-01
func (s MonthlyStat) MonthKey() string {
	return FirstOfMonth(s.Month).Format(MonthKeyLayout)
}
