package postgres

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lartitiz/nowadaysagency-sub004/internal/model"
)

func setupMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db), mock
}

func TestUpsertMonthlyStat_OnlyPresentColumns(t *testing.T) {
	s, mock := setupMock(t)

	row := model.NormalizedMonthRow{
		Month:      time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		SourceLine: 4,
		Values: map[model.MetricKey]model.MetricValue{
			model.MetricFollowers: model.NumberValue(1200),
			model.MetricObjective: model.TextValue("Lancer la newsletter"),
		},
	}

	mock.ExpectExec(regexp.QuoteMeta(
		"INSERT INTO monthly_stats (owner_id, month_date, objective, followers) VALUES ($1, $2, $3, $4) " +
			"ON CONFLICT (owner_id, month_date) DO UPDATE SET updated_at = NOW(), " +
			"objective = EXCLUDED.objective, followers = EXCLUDED.followers")).
		WithArgs("owner-1", "2024-03-01", "Lancer la newsletter", 1200.0).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.UpsertMonthlyStat(context.Background(), "owner-1", row))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertMonthlyStat_Error(t *testing.T) {
	s, mock := setupMock(t)

	mock.ExpectExec("INSERT INTO monthly_stats").WillReturnError(errors.New("connection reset"))

	err := s.UpsertMonthlyStat(context.Background(), "owner-1", model.NormalizedMonthRow{
		Month: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2024-05-01")
	assert.Contains(t, err.Error(), "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecentMappings(t *testing.T) {
	s, mock := setupMock(t)

	at := time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "owner_id", "sheet_name", "headers", "mapping", "updated_at"}).
		AddRow(int64(7), "owner-1", "Stats", "{Mois,Abonnés,Portée}",
			`{"sheetName":"Stats","dateColumn":0,"startRow":2,"metrics":{"followers":1,"reach":null},"confidence":"medium"}`, at).
		AddRow(int64(3), "owner-1", "Feuille1", "{Date}",
			`{"sheetName":"Feuille1","dateColumn":0,"startRow":2,"metrics":{},"confidence":"high"}`, at.Add(-time.Hour))

	mock.ExpectQuery("SELECT id, owner_id, sheet_name, headers, mapping, updated_at FROM column_mappings").
		WithArgs("owner-1", 5).
		WillReturnRows(rows)

	got, err := s.RecentMappings(context.Background(), "owner-1", 5)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(7), got[0].ID)
	assert.Equal(t, []string{"Mois", "Abonnés", "Portée"}, got[0].Headers)
	col, ok := got[0].Mapping.Column(model.MetricFollowers)
	assert.True(t, ok)
	assert.Equal(t, 1, col)
	_, ok = got[0].Mapping.Column(model.MetricReach)
	assert.False(t, ok)
	assert.Equal(t, "Feuille1", got[1].SheetName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveMapping(t *testing.T) {
	s, mock := setupMock(t)

	mock.ExpectExec("INSERT INTO column_mappings").
		WithArgs("owner-1", "Stats", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := s.SaveMapping(context.Background(), &model.SavedMapping{
		OwnerID:   "owner-1",
		SheetName: "Stats",
		Headers:   []string{"Mois", "Abonnés"},
		Mapping:   &model.ColumnMapping{SheetName: "Stats", StartRow: 2, Confidence: model.ConfidenceHigh},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())

	assert.Error(t, s.SaveMapping(context.Background(), &model.SavedMapping{OwnerID: "owner-1"}))
}

func TestInsertImportLog(t *testing.T) {
	s, mock := setupMock(t)

	created := time.Date(2025, 2, 1, 8, 30, 0, 0, time.UTC)
	mock.ExpectQuery("INSERT INTO import_logs").
		WithArgs("owner-1", "stats.xlsx", "Stats", 12, 12, 0, "done", "").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(42), created))

	entry := &model.ImportLog{
		OwnerID: "owner-1", FileName: "stats.xlsx", SheetName: "Stats",
		TotalRows: 12, ImportedRows: 12, Status: "done",
	}
	require.NoError(t, s.InsertImportLog(context.Background(), entry))
	assert.Equal(t, int64(42), entry.ID)
	assert.True(t, entry.CreatedAt.Equal(created))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListMonthlyStats(t *testing.T) {
	s, mock := setupMock(t)

	keys := model.MetricKeys()
	columns := append([]string{"month_date", "updated_at"}, make([]string, len(keys))...)
	for i, k := range keys {
		columns[i+2] = string(k)
	}

	values := make([]driver.Value, len(columns))
	values[0] = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	values[1] = time.Date(2024, 7, 3, 0, 0, 0, 0, time.UTC)
	for i, k := range keys {
		switch k {
		case model.MetricObjective:
			values[i+2] = "Préparer la rentrée"
		case model.MetricRevenue:
			values[i+2] = 3500.5
		}
	}

	mock.ExpectQuery(regexp.QuoteMeta("FROM monthly_stats WHERE owner_id = $1 AND month_date >= $2 ORDER BY month_date ASC")).
		WithArgs("owner-1", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)).
		WillReturnRows(sqlmock.NewRows(columns).AddRow(values...))

	stats, err := s.ListMonthlyStats(context.Background(), "owner-1", time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC), time.Time{})
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, "2024-06-01", stats[0].MonthKey())
	assert.Len(t, stats[0].Values, 2)
	require.NotNil(t, stats[0].Values[model.MetricRevenue].Number)
	assert.Equal(t, 3500.5, *stats[0].Values[model.MetricRevenue].Number)
	require.NotNil(t, stats[0].Values[model.MetricObjective].Text)
	assert.Equal(t, "Préparer la rentrée", *stats[0].Values[model.MetricObjective].Text)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListImportLogs(t *testing.T) {
	s, mock := setupMock(t)

	created := time.Date(2025, 2, 1, 8, 30, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT id, owner_id, filename").
		WithArgs("owner-1", 20).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "owner_id", "filename", "sheet_name", "total_rows", "imported_rows", "failed_rows", "status", "error_message", "created_at",
		}).AddRow(int64(42), "owner-1", "stats.xlsx", "Stats", 12, 11, 1, "partial", "timeout", created))

	logs, err := s.ListImportLogs(context.Background(), "owner-1", 20)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "partial", logs[0].Status)
	assert.Equal(t, 11, logs[0].ImportedRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDrafts(t *testing.T) {
	s, mock := setupMock(t)
	ctx := context.Background()

	mock.ExpectQuery("SELECT owner_id, kind, step, answers, updated_at FROM wizard_drafts").
		WithArgs("owner-1", "persona").
		WillReturnRows(sqlmock.NewRows([]string{"owner_id", "kind", "step", "answers", "updated_at"}))

	d, err := s.LoadDraft(ctx, "owner-1", model.WizardPersona)
	require.NoError(t, err)
	assert.Nil(t, d)

	mock.ExpectQuery("SELECT owner_id, kind, step, answers, updated_at FROM wizard_drafts").
		WithArgs("owner-1", "persona").
		WillReturnRows(sqlmock.NewRows([]string{"owner_id", "kind", "step", "answers", "updated_at"}).
			AddRow("owner-1", "persona", 2, []byte(`{"prenom":"Camille"}`), time.Now()))

	d, err = s.LoadDraft(ctx, "owner-1", model.WizardPersona)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, 2, d.Step)
	assert.Equal(t, "Camille", d.Answers["prenom"])

	mock.ExpectExec("INSERT INTO wizard_drafts").
		WithArgs("owner-1", "persona", 3, `{"prenom":"Camille"}`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	d.Step = 3
	require.NoError(t, s.SaveDraft(ctx, d))

	mock.ExpectExec("DELETE FROM wizard_drafts").
		WithArgs("owner-1", "persona").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.ClearDraft(ctx, "owner-1", model.WizardPersona))

	assert.NoError(t, mock.ExpectationsWereMet())
}
