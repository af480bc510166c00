package importer

import (
	"time"

	"github.com/Lartitiz/nowadaysagency-sub004/internal/model"
	"github.com/Lartitiz/nowadaysagency-sub004/internal/parser"
)

// TransformOptions paramètres de transformation
type TransformOptions struct {
	// BaseYear année des mois sans année quand aucune ligne précédente n'est datée (0 = année courante)
	BaseYear int
}

// TransformResult lignes normalisées, corrections appliquées et lignes écartées
type TransformResult struct {
	Rows        []model.NormalizedMonthRow `json:"rows"`
	Corrections []model.Correction         `json:"corrections"`
	Skipped     []model.SkippedRow         `json:"skipped"`
}

// Transform convertit les lignes de la feuille à partir de StartRow puis applique Normalize.
// Une cellule illisible n'interrompt jamais le lot : la valeur devient nulle ou la ligne est écartée.
func Transform(sheet *model.Sheet, m *model.ColumnMapping, opts TransformOptions) *TransformResult {
	result := &TransformResult{
		Rows:        []model.NormalizedMonthRow{},
		Corrections: []model.Correction{},
		Skipped:     []model.SkippedRow{},
	}
	if sheet == nil || m == nil {
		return result
	}

	start := m.StartRow
	if start < model.DefaultStartRow {
		start = model.DefaultStartRow
	}

	columns := mappedColumns(m)
	var previous *time.Time
	rows := make([]model.NormalizedMonthRow, 0, len(sheet.Rows))

	for i := start - 1; i < len(sheet.Rows); i++ {
		line := sheet.Rows[i]
		if isBlankRow(line) {
			continue
		}

		dateCell := cellAt(line, m.DateColumn)
		if dateCell.IsEmpty() {
			continue
		}
		month, ok := parser.ParseMonth(dateCell, parser.DateContext{
			Previous: previous,
			RowIndex: i - (start - 1),
			BaseYear: opts.BaseYear,
		})
		if !ok {
			result.Skipped = append(result.Skipped, model.SkippedRow{
				Line:     i + 1,
				RawValue: dateCell.String(),
				Reason:   model.SkipReasonDate,
			})
			continue
		}
		resolved := month
		previous = &resolved

		values := make(map[model.MetricKey]model.MetricValue, len(columns))
		for key, col := range columns {
			cell := cellAt(line, col)
			if key.Textual() {
				if s := parser.CleanText(cell); s != nil {
					values[key] = model.TextValue(*s)
				}
				continue
			}
			if n := parser.ParseNumber(cell); n != nil {
				values[key] = model.NumberValue(*n)
			}
		}

		rows = append(rows, model.NormalizedMonthRow{
			Month:      month,
			SourceLine: i + 1,
			Values:     values,
		})
	}

	result.Rows, result.Corrections = Normalize(rows)
	return result
}

// mappedColumns métriques associées à une colonne non ignorée
func mappedColumns(m *model.ColumnMapping) map[model.MetricKey]int {
	out := make(map[model.MetricKey]int, len(m.Metrics))
	for key, idx := range m.Metrics {
		if idx == nil || !key.Valid() || *idx == m.DateColumn || m.Skipped(*idx) {
			continue
		}
		out[key] = *idx
	}
	return out
}

func cellAt(row []model.Cell, col int) model.Cell {
	if col < 0 || col >= len(row) {
		return model.Cell{Kind: model.CellEmpty}
	}
	return row[col]
}

func isBlankRow(row []model.Cell) bool {
	for _, c := range row {
		if !c.IsEmpty() {
			return false
		}
	}
	return true
}
