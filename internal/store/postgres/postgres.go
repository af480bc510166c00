// Package postgres stockage des statistiques mensuelles et des correspondances sur PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/Lartitiz/nowadaysagency-sub004/internal/model"
)

//go:embed schema.sql
var schemaSQL string

// Store dépôt PostgreSQL
type Store struct {
	db *sql.DB
}

// Open ouvre la connexion et applique le schéma
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	s := New(db)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New enveloppe une connexion existante
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Migrate crée les tables absentes
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}

// Close ferme la connexion
func (s *Store) Close() error {
	return s.db.Close()
}

// UpsertMonthlyStat INSERT ... ON CONFLICT (owner_id, month_date) limité aux métriques présentes
func (s *Store) UpsertMonthlyStat(ctx context.Context, ownerID string, row model.NormalizedMonthRow) error {
	keys := row.PresentKeys()

	columns := []string{"owner_id", "month_date"}
	args := []interface{}{ownerID, row.MonthKey()}
	updates := []string{"updated_at = NOW()"}
	for _, k := range keys {
		columns = append(columns, string(k))
		args = append(args, row.Values[k].SQLValue())
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", k, k))
	}

	marks := make([]string, len(columns))
	for i := range marks {
		marks[i] = fmt.Sprintf("$%d", i+1)
	}

	query := fmt.Sprintf(
		"INSERT INTO monthly_stats (%s) VALUES (%s) ON CONFLICT (owner_id, month_date) DO UPDATE SET %s",
		strings.Join(columns, ", "), strings.Join(marks, ", "), strings.Join(updates, ", "))

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to upsert monthly stat %s: %w", row.MonthKey(), err)
	}
	return nil
}

// RecentMappings correspondances du propriétaire, la plus récente d'abord
func (s *Store) RecentMappings(ctx context.Context, ownerID string, limit int) ([]*model.SavedMapping, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, sheet_name, headers, mapping, updated_at
		FROM column_mappings
		WHERE owner_id = $1
		ORDER BY updated_at DESC, id DESC
		LIMIT $2
	`, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("query column mappings failed: %w", err)
	}
	defer rows.Close()

	out := []*model.SavedMapping{}
	for rows.Next() {
		var (
			m       model.SavedMapping
			headers pq.StringArray
			raw     []byte
		)
		if err := rows.Scan(&m.ID, &m.OwnerID, &m.SheetName, &headers, &raw, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan column mapping failed: %w", err)
		}
		m.Headers = []string(headers)
		m.Mapping = &model.ColumnMapping{}
		if err := json.Unmarshal(raw, m.Mapping); err != nil {
			return nil, fmt.Errorf("invalid mapping json for mapping %d: %w", m.ID, err)
		}
		out = append(out, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate column mappings failed: %w", err)
	}
	return out, nil
}

// SaveMapping upsert sur (owner_id, sheet_name)
func (s *Store) SaveMapping(ctx context.Context, m *model.SavedMapping) error {
	if m == nil || m.Mapping == nil {
		return fmt.Errorf("saved mapping is empty")
	}
	raw, err := json.Marshal(m.Mapping)
	if err != nil {
		return fmt.Errorf("failed to encode mapping: %w", err)
	}
	headers := m.Headers
	if headers == nil {
		headers = []string{}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO column_mappings (owner_id, sheet_name, headers, mapping, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (owner_id, sheet_name) DO UPDATE SET
			headers = EXCLUDED.headers,
			mapping = EXCLUDED.mapping,
			updated_at = NOW()
	`, m.OwnerID, m.SheetName, pq.Array(headers), raw)
	if err != nil {
		return fmt.Errorf("failed to save column mapping: %w", err)
	}
	return nil
}

// InsertImportLog ajoute une entrée au journal d'import
func (s *Store) InsertImportLog(ctx context.Context, l *model.ImportLog) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO import_logs (
			owner_id, filename, sheet_name,
			total_rows, imported_rows, failed_rows,
			status, error_message
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`,
		l.OwnerID, l.FileName, l.SheetName,
		l.TotalRows, l.ImportedRows, l.FailedRows,
		l.Status, l.ErrorMessage,
	).Scan(&l.ID, &l.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create import log: %w", err)
	}
	return nil
}

// ListMonthlyStats statistiques du propriétaire entre from et to inclus (zéro = sans borne)
func (s *Store) ListMonthlyStats(ctx context.Context, ownerID string, from, to time.Time) ([]model.MonthlyStat, error) {
	keys := model.MetricKeys()
	cols := make([]string, len(keys))
	for i, k := range keys {
		cols[i] = string(k)
	}

	query := fmt.Sprintf("SELECT month_date, updated_at, %s FROM monthly_stats WHERE owner_id = $1", strings.Join(cols, ", "))
	args := []interface{}{ownerID}
	if !from.IsZero() {
		args = append(args, model.FirstOfMonth(from))
		query += fmt.Sprintf(" AND month_date >= $%d", len(args))
	}
	if !to.IsZero() {
		args = append(args, model.FirstOfMonth(to))
		query += fmt.Sprintf(" AND month_date <= $%d", len(args))
	}
	query += " ORDER BY month_date ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query monthly stats failed: %w", err)
	}
	defer rows.Close()

	out := []model.MonthlyStat{}
	for rows.Next() {
		stat := model.MonthlyStat{OwnerID: ownerID, Values: map[model.MetricKey]model.MetricValue{}}
		values := make([]interface{}, len(keys))
		dest := []interface{}{&stat.Month, &stat.UpdatedAt}
		for i := range keys {
			dest = append(dest, &values[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan monthly stat failed: %w", err)
		}
		stat.Month = model.FirstOfMonth(stat.Month)
		for i, k := range keys {
			switch v := values[i].(type) {
			case float64:
				stat.Values[k] = model.NumberValue(v)
			case string:
				stat.Values[k] = model.TextValue(v)
			case []byte:
				stat.Values[k] = model.TextValue(string(v))
			}
		}
		out = append(out, stat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate monthly stats failed: %w", err)
	}
	return out, nil
}
