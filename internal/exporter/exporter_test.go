package exporter

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/Lartitiz/nowadaysagency-sub004/internal/model"
	"github.com/Lartitiz/nowadaysagency-sub004/internal/service/excel"
)

type fakeRepo struct {
	rows     []model.MonthlyStat
	from, to time.Time
}

func (r *fakeRepo) ListMonthlyStats(_ context.Context, _ string, from, to time.Time) ([]model.MonthlyStat, error) {
	r.from, r.to = from, to
	return r.rows, nil
}

func TestExport_RoundTripsThroughReader(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{rows: []model.MonthlyStat{
		{Month: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Values: map[model.MetricKey]model.MetricValue{
			model.MetricFollowers: model.NumberValue(1200),
			model.MetricObjective: model.TextValue("Lancer la newsletter"),
		}},
		{Month: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), Values: map[model.MetricKey]model.MetricValue{
			model.MetricRevenue: model.NumberValue(3500.5),
		}},
	}}

	f, err := NewExporter(repo).Export(context.Background(), "owner-1", 2024)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	defer f.Close()

	if repo.from.Format(model.MonthKeyLayout) != "2024-01-01" || repo.to.Format(model.MonthKeyLayout) != "2024-12-01" {
		t.Fatalf("range=%s..%s", repo.from, repo.to)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write: %v", err)
	}

	wb, err := excel.NewReader().Read("statistiques-2024.xlsx", buf.Bytes())
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	sheet, ok := wb.Sheet(SheetName)
	if !ok {
		t.Fatalf("sheet %s missing", SheetName)
	}
	if !model.SameHeaders(sheet.HeaderStrings(), Headers()) {
		t.Fatalf("headers=%v", sheet.HeaderStrings())
	}
	if len(sheet.Rows) != 3 {
		t.Fatalf("rows=%d", len(sheet.Rows))
	}
	if got := sheet.Rows[1][0].String(); got != "janvier 2024" {
		t.Fatalf("month cell=%q", got)
	}

	col := func(key model.MetricKey) int {
		for i, k := range model.MetricKeys() {
			if k == key {
				return i + 1
			}
		}
		t.Fatalf("unknown key %s", key)
		return -1
	}
	if c := sheet.Rows[1][col(model.MetricFollowers)]; c.Kind != model.CellNumber || c.Number != 1200 {
		t.Fatalf("followers=%+v", c)
	}
	if c := sheet.Rows[1][col(model.MetricObjective)]; c.Text != "Lancer la newsletter" {
		t.Fatalf("objective=%+v", c)
	}
	if c := sheet.Rows[2][col(model.MetricRevenue)]; c.Number != 3500.5 {
		t.Fatalf("revenue=%+v", c)
	}
}

func TestContentDisposition(t *testing.T) {
	t.Parallel()

	got := ContentDisposition(2024)
	want := `attachment; filename="statistiques-2024.xlsx"; filename*=UTF-8''Statistiques%20mensuelles%202024.xlsx`
	if got != want {
		t.Fatalf("content-disposition mismatch:\n got: %s\nwant: %s", got, want)
	}
}
