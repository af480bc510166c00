package model

import (
	"strconv"
	"strings"
	"time"
)

// CellKind nature d'une cellule lue dans le fichier
type CellKind string

const (
	CellEmpty  CellKind = "empty"
	CellText   CellKind = "text"
	CellNumber CellKind = "number"
	CellDate   CellKind = "date"
)

// Cell valeur brute d'une cellule (texte, nombre ou date native)
type Cell struct {
	Kind   CellKind  `json:"kind"`
	Text   string    `json:"text,omitempty"`
	Number float64   `json:"number,omitempty"`
	Time   time.Time `json:"time,omitempty"`
}

// TextCell construit une cellule texte (vide si la chaîne l'est)
func TextCell(s string) Cell {
	if strings.TrimSpace(s) == "" {
		return Cell{Kind: CellEmpty}
	}
	return Cell{Kind: CellText, Text: s}
}

// NumberCell construit une cellule numérique
func NumberCell(f float64) Cell {
	return Cell{Kind: CellNumber, Number: f}
}

// DateCell construit une cellule date
func DateCell(t time.Time) Cell {
	return Cell{Kind: CellDate, Time: t}
}

// IsEmpty cellule absente ou blanche
func (c Cell) IsEmpty() bool {
	switch c.Kind {
	case CellText:
		return strings.TrimSpace(c.Text) == ""
	case CellNumber, CellDate:
		return false
	default:
		return true
	}
}

// String représentation textuelle (en-têtes, aperçus, rapports)
func (c Cell) String() string {
	switch c.Kind {
	case CellText:
		return c.Text
	case CellNumber:
		return strconv.FormatFloat(c.Number, 'f', -1, 64)
	case CellDate:
		return c.Time.Format("2006-01-02")
	default:
		return ""
	}
}

// Sheet une feuille : tableau 2-D de cellules, la première ligne est l'en-tête
type Sheet struct {
	Name string   `json:"name"`
	Rows [][]Cell `json:"rows"`
}

// Header première ligne convertie en chaîne-ou-null
func (s *Sheet) Header() []*string {
	if len(s.Rows) == 0 {
		return []*string{}
	}
	out := make([]*string, len(s.Rows[0]))
	for i, c := range s.Rows[0] {
		if c.IsEmpty() {
			continue
		}
		v := strings.TrimSpace(c.String())
		out[i] = &v
	}
	return out
}

// HeaderStrings en-tête sous forme de chaînes (null → "")
func (s *Sheet) HeaderStrings() []string {
	header := s.Header()
	out := make([]string, len(header))
	for i, h := range header {
		if h != nil {
			out[i] = *h
		}
	}
	return out
}

// ColumnCount nombre de colonnes de l'en-tête
func (s *Sheet) ColumnCount() int {
	if len(s.Rows) == 0 {
		return 0
	}
	return len(s.Rows[0])
}

// DataRowCount nombre de lignes après l'en-tête
func (s *Sheet) DataRowCount() int {
	if len(s.Rows) <= 1 {
		return 0
	}
	return len(s.Rows) - 1
}

// Preview premières lignes de données en texte
func (s *Sheet) Preview(limit int) [][]string {
	if len(s.Rows) <= 1 || limit <= 0 {
		return [][]string{}
	}
	end := limit + 1
	if end > len(s.Rows) {
		end = len(s.Rows)
	}
	out := make([][]string, 0, end-1)
	for _, row := range s.Rows[1:end] {
		line := make([]string, len(row))
		for i, c := range row {
			line[i] = c.String()
		}
		out = append(out, line)
	}
	return out
}

// Workbook résultat de la lecture d'un fichier importé
type Workbook struct {
	FileName string  `json:"fileName"`
	Sheets   []Sheet `json:"sheets"`
}

// Sheet retourne la feuille nommée
func (w *Workbook) Sheet(name string) (*Sheet, bool) {
	for i := range w.Sheets {
		if w.Sheets[i].Name == name {
			return &w.Sheets[i], true
		}
	}
	return nil, false
}

// SheetSummary description d'une feuille envoyée au service d'inférence
type SheetSummary struct {
	Name       string     `json:"name"`
	Headers    []string   `json:"headers"`
	SampleRows [][]string `json:"sampleRows"`
	RowCount   int        `json:"rowCount"`
}
