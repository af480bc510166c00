package importer

import (
	"reflect"
	"testing"
	"time"

	"github.com/Lartitiz/nowadaysagency-sub004/internal/model"
)

func textRow(values ...interface{}) []model.Cell {
	row := make([]model.Cell, len(values))
	for i, v := range values {
		switch x := v.(type) {
		case nil:
			row[i] = model.Cell{Kind: model.CellEmpty}
		case string:
			row[i] = model.TextCell(x)
		case float64:
			row[i] = model.NumberCell(x)
		case int:
			row[i] = model.NumberCell(float64(x))
		case time.Time:
			row[i] = model.DateCell(x)
		}
	}
	return row
}

func statsMapping() *model.ColumnMapping {
	return &model.ColumnMapping{
		SheetName:  "Stats",
		DateColumn: 0,
		StartRow:   2,
		Metrics: map[model.MetricKey]*int{
			model.MetricFollowers: model.IntPtr(1),
			model.MetricReach:     model.IntPtr(2),
		},
		Confidence: model.ConfidenceHigh,
	}
}

func monthAt(y int, m time.Month) time.Time {
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

func keys(rows []model.NormalizedMonthRow) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.MonthKey()
	}
	return out
}

func number(t *testing.T, row model.NormalizedMonthRow, key model.MetricKey) float64 {
	t.Helper()
	v, ok := row.Values[key]
	if !ok || v.Number == nil {
		t.Fatalf("%s: %s missing in %+v", row.MonthKey(), key, row.Values)
	}
	return *v.Number
}

func TestTransform_FullYear(t *testing.T) {
	t.Parallel()

	sheet := &model.Sheet{Name: "Stats", Rows: [][]model.Cell{textRow("Mois", "Abonnés", "Portée")}}
	for m := 1; m <= 12; m++ {
		sheet.Rows = append(sheet.Rows, textRow(monthAt(2024, time.Month(m)).Format("2006-01-02"), 1000+m, "1 234,56"))
	}

	res := Transform(sheet, statsMapping(), TransformOptions{})
	if len(res.Rows) != 12 {
		t.Fatalf("rows=%d", len(res.Rows))
	}
	if len(res.Corrections) != 0 || len(res.Skipped) != 0 {
		t.Fatalf("corrections=%v skipped=%v", res.Corrections, res.Skipped)
	}
	for i, row := range res.Rows {
		want := monthAt(2024, time.Month(i+1)).Format(model.MonthKeyLayout)
		if row.MonthKey() != want {
			t.Fatalf("row %d key=%s want %s", i, row.MonthKey(), want)
		}
	}
	if got := number(t, res.Rows[0], model.MetricReach); got != 1234.56 {
		t.Fatalf("reach=%v", got)
	}
	if got := number(t, res.Rows[11], model.MetricFollowers); got != 1012 {
		t.Fatalf("followers=%v", got)
	}
}

func TestTransform_YearRollover(t *testing.T) {
	t.Parallel()

	sheet := &model.Sheet{Name: "Stats", Rows: [][]model.Cell{
		textRow("Mois", "Abonnés", "Portée"),
		textRow("2024-12-01", 900, nil),
		textRow("Janvier", 950, nil),
	}}

	res := Transform(sheet, statsMapping(), TransformOptions{BaseYear: 2020})
	if got := keys(res.Rows); !reflect.DeepEqual(got, []string{"2024-12-01", "2025-01-01"}) {
		t.Fatalf("keys=%v", got)
	}
	if len(res.Corrections) != 0 {
		t.Fatalf("corrections=%v", res.Corrections)
	}
}

func TestTransform_DuplicateMonthLastWins(t *testing.T) {
	t.Parallel()

	sheet := &model.Sheet{Name: "Stats", Rows: [][]model.Cell{
		textRow("Mois", "Abonnés", "Portée"),
		textRow("mars 2024", 100, nil),
		textRow("avril 2024", 150, nil),
		textRow("15/03/2024", 200, nil),
	}}

	res := Transform(sheet, statsMapping(), TransformOptions{})
	if got := keys(res.Rows); !reflect.DeepEqual(got, []string{"2024-03-01", "2024-04-01"}) {
		t.Fatalf("keys=%v", got)
	}
	if got := number(t, res.Rows[0], model.MetricFollowers); got != 200 {
		t.Fatalf("followers=%v, want the later row", got)
	}
	if res.Rows[0].SourceLine != 4 {
		t.Fatalf("source line=%d", res.Rows[0].SourceLine)
	}
}

func TestTransform_UnrecognizedDateSkipped(t *testing.T) {
	t.Parallel()

	sheet := &model.Sheet{Name: "Stats", Rows: [][]model.Cell{
		textRow("Mois", "Abonnés", "Portée"),
		textRow("janvier 2024", 100, nil),
		textRow("n/a", 120, nil),
		textRow(nil, nil, nil),
		textRow(nil, 130, nil),
		textRow("février 2024", 140, nil),
	}}

	res := Transform(sheet, statsMapping(), TransformOptions{})
	if len(res.Rows) != 2 {
		t.Fatalf("rows=%v", keys(res.Rows))
	}
	want := []model.SkippedRow{{Line: 3, RawValue: "n/a", Reason: "date not recognized"}}
	if !reflect.DeepEqual(res.Skipped, want) {
		t.Fatalf("skipped=%+v", res.Skipped)
	}
}

func TestTransform_CoercionAndSkipColumns(t *testing.T) {
	t.Parallel()

	sheet := &model.Sheet{Name: "Stats", Rows: [][]model.Cell{
		textRow("Mois", "Objectif", "Abonnés", "Évolution", "CA"),
		textRow("janvier 2024", "Lancer l'offre", "-", "12 %", "3 500 €"),
		textRow("février 2024", "—", "1 300", "8 %", "n/a"),
	}}
	m := &model.ColumnMapping{
		SheetName:  "Stats",
		DateColumn: 0,
		StartRow:   2,
		Metrics: map[model.MetricKey]*int{
			model.MetricObjective:    model.IntPtr(1),
			model.MetricFollowers:    model.IntPtr(2),
			model.MetricReach:        model.IntPtr(3),
			model.MetricRevenue:      model.IntPtr(4),
			model.MetricAdBudget:     nil,
			model.MetricViews:        model.IntPtr(9),
			model.MetricInteractions: model.IntPtr(0),
		},
		SkipColumns: []int{3},
		Confidence:  model.ConfidenceMedium,
	}

	res := Transform(sheet, m, TransformOptions{})
	if len(res.Rows) != 2 {
		t.Fatalf("rows=%d", len(res.Rows))
	}
	jan, feb := res.Rows[0], res.Rows[1]

	if v := jan.Values[model.MetricObjective]; v.Text == nil || *v.Text != "Lancer l'offre" {
		t.Fatalf("objective=%+v", v)
	}
	if _, ok := jan.Values[model.MetricFollowers]; ok {
		t.Fatalf("placeholder should be null")
	}
	if got := number(t, jan, model.MetricRevenue); got != 3500 {
		t.Fatalf("revenue=%v", got)
	}
	if _, ok := jan.Values[model.MetricReach]; ok {
		t.Fatalf("skipped column should be ignored")
	}
	if _, ok := jan.Values[model.MetricViews]; ok {
		t.Fatalf("column beyond the row should be null")
	}
	if _, ok := jan.Values[model.MetricInteractions]; ok {
		t.Fatalf("date column must not feed a metric")
	}
	if _, ok := feb.Values[model.MetricObjective]; ok {
		t.Fatalf("dash objective should be null")
	}
	if got := number(t, feb, model.MetricFollowers); got != 1300 {
		t.Fatalf("followers=%v", got)
	}
	if _, ok := feb.Values[model.MetricRevenue]; ok {
		t.Fatalf("n/a revenue should be null")
	}
}

func TestTransform_StartRow(t *testing.T) {
	t.Parallel()

	sheet := &model.Sheet{Name: "Stats", Rows: [][]model.Cell{
		textRow("Mois", "Abonnés", "Portée"),
		textRow("Unité", "nb", "nb"),
		textRow("janvier 2024", 10, 20),
	}}
	m := statsMapping()
	m.StartRow = 3

	res := Transform(sheet, m, TransformOptions{})
	if len(res.Rows) != 1 || len(res.Skipped) != 0 {
		t.Fatalf("rows=%v skipped=%v", keys(res.Rows), res.Skipped)
	}
	if res.Rows[0].SourceLine != 3 {
		t.Fatalf("source line=%d", res.Rows[0].SourceLine)
	}
}

func row(y int, m time.Month, line int) model.NormalizedMonthRow {
	return model.NormalizedMonthRow{
		Month:      monthAt(y, m),
		SourceLine: line,
		Values:     map[model.MetricKey]model.MetricValue{model.MetricFollowers: model.NumberValue(float64(line))},
	}
}

func TestNormalize_GapCorrection(t *testing.T) {
	t.Parallel()

	rows := []model.NormalizedMonthRow{
		row(2024, time.October, 2),
		row(2024, time.November, 3),
		row(2024, time.December, 4),
		row(2023, time.January, 5),
	}
	// tri : 2023-01, 2024-10, 2024-11, 2024-12 → 2024-10 est à 21 mois de 2023-01
	out, corrections := Normalize(rows)
	if len(corrections) == 0 {
		t.Fatalf("expected a correction")
	}
	if corrections[0].Label != "octobre 2024 → février 2023" {
		t.Fatalf("label=%q", corrections[0].Label)
	}
	for i := 1; i < len(out); i++ {
		if gap := model.MonthIndex(out[i].Month) - model.MonthIndex(out[i-1].Month); gap > MaxMonthGap || gap <= 0 {
			t.Fatalf("gap %d between %s and %s", gap, out[i-1].MonthKey(), out[i].MonthKey())
		}
	}
}

func TestNormalize_SmallGapsUntouched(t *testing.T) {
	t.Parallel()

	for gap := 1; gap <= MaxMonthGap; gap++ {
		first := monthAt(2024, time.January)
		second := first.AddDate(0, gap, 0)
		rows := []model.NormalizedMonthRow{
			{Month: first, SourceLine: 2},
			{Month: second, SourceLine: 3},
		}
		out, corrections := Normalize(rows)
		if len(corrections) != 0 {
			t.Fatalf("gap %d corrected: %v", gap, corrections)
		}
		if !out[1].Month.Equal(second) {
			t.Fatalf("gap %d: month altered to %s", gap, out[1].MonthKey())
		}
	}

	out, corrections := Normalize([]model.NormalizedMonthRow{
		{Month: monthAt(2024, time.January), SourceLine: 2},
		{Month: monthAt(2024, time.August), SourceLine: 3},
	})
	if len(corrections) != 1 || out[1].MonthKey() != "2024-02-01" {
		t.Fatalf("7-month gap should be corrected: %v %v", keys(out), corrections)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	t.Parallel()

	rows := []model.NormalizedMonthRow{
		row(2024, time.March, 2),
		row(2024, time.January, 3),
		row(2024, time.March, 4),
		row(2022, time.June, 5),
		row(2024, time.February, 6),
	}
	once, _ := Normalize(rows)
	twice, corrections := Normalize(once)
	if len(corrections) != 0 {
		t.Fatalf("second pass corrected: %v", corrections)
	}
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("not idempotent:\n%v\n%v", keys(once), keys(twice))
	}
}

func TestNormalize_DoesNotMutateInput(t *testing.T) {
	t.Parallel()

	rows := []model.NormalizedMonthRow{row(2024, time.March, 2), row(2020, time.January, 3)}
	_, _ = Normalize(rows)
	if rows[0].MonthKey() != "2024-03-01" || rows[1].MonthKey() != "2020-01-01" {
		t.Fatalf("input mutated: %v", keys(rows))
	}
}
