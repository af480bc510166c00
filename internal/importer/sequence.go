package importer

import (
	"fmt"
	"sort"

	"github.com/Lartitiz/nowadaysagency-sub004/internal/model"
	"github.com/Lartitiz/nowadaysagency-sub004/internal/parser"
)

// MaxMonthGap écart maximal (en mois) toléré entre deux lignes consécutives triées.
// Au-delà, l'année est supposée mal lue et la ligne est placée un mois après la précédente.
const MaxMonthGap = 6

// Normalize trie par mois, corrige les sauts de plus de MaxMonthGap mois (passe unique,
// de proche en proche) puis déduplique par clé de mois, la dernière occurrence gagnant.
// Sans effet sur une liste déjà normalisée.
func Normalize(rows []model.NormalizedMonthRow) ([]model.NormalizedMonthRow, []model.Correction) {
	corrections := []model.Correction{}
	if len(rows) == 0 {
		return []model.NormalizedMonthRow{}, corrections
	}

	sorted := make([]model.NormalizedMonthRow, len(rows))
	copy(sorted, rows)
	sortByMonth(sorted)

	for i := 1; i < len(sorted); i++ {
		prev := sorted[i-1].Month
		cur := sorted[i].Month
		if model.MonthIndex(cur)-model.MonthIndex(prev) <= MaxMonthGap {
			continue
		}
		to := model.FirstOfMonth(prev).AddDate(0, 1, 0)
		corrections = append(corrections, model.Correction{
			SourceLine: sorted[i].SourceLine,
			From:       model.FirstOfMonth(cur).Format(model.MonthKeyLayout),
			To:         to.Format(model.MonthKeyLayout),
			Label:      fmt.Sprintf("%s → %s", parser.MonthLabel(cur), parser.MonthLabel(to)),
		})
		sorted[i].Month = to
	}
	if len(corrections) > 0 {
		sortByMonth(sorted)
	}

	return dedupeLastWins(sorted), corrections
}

// sortByMonth tri stable : à mois égal, l'ordre d'origine est conservé
func sortByMonth(rows []model.NormalizedMonthRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		return model.MonthIndex(rows[i].Month) < model.MonthIndex(rows[j].Month)
	})
}

func dedupeLastWins(sorted []model.NormalizedMonthRow) []model.NormalizedMonthRow {
	out := make([]model.NormalizedMonthRow, 0, len(sorted))
	for _, row := range sorted {
		if n := len(out); n > 0 && out[n-1].MonthKey() == row.MonthKey() {
			out[n-1] = row
			continue
		}
		out = append(out, row)
	}
	return out
}
