package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/Lartitiz/nowadaysagency-sub004/internal/model"
)

// UpsertMonthlyStat écrit une ligne sur la clé (propriétaire, mois).
// Seules les métriques portées par la ligne sont écrites : une valeur déjà
// enregistrée n'est jamais remplacée par NULL.
func (s *Store) UpsertMonthlyStat(ctx context.Context, ownerID string, row model.NormalizedMonthRow) error {
	keys := row.PresentKeys()

	columns := []string{"owner_id", "month_date", "updated_at"}
	args := []interface{}{ownerID, row.MonthKey(), time.Now().UTC()}
	updates := []string{"updated_at = excluded.updated_at"}
	for _, k := range keys {
		columns = append(columns, string(k))
		args = append(args, row.Values[k].SQLValue())
		updates = append(updates, fmt.Sprintf("%s = excluded.%s", k, k))
	}

	query := fmt.Sprintf(`
		INSERT INTO monthly_stats (%s) VALUES (%s)
		ON CONFLICT(owner_id, month_date) DO UPDATE SET %s
	`, strings.Join(columns, ", "), placeholders(len(columns)), strings.Join(updates, ", "))

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to upsert monthly stat %s: %w", row.MonthKey(), err)
	}
	return nil
}

// ListMonthlyStats statistiques du propriétaire entre from et to inclus (zéro = sans borne), par mois croissant
func (s *Store) ListMonthlyStats(ctx context.Context, ownerID string, from, to time.Time) ([]model.MonthlyStat, error) {
	keys := model.MetricKeys()
	cols := make([]string, len(keys))
	for i, k := range keys {
		cols[i] = string(k)
	}

	query := fmt.Sprintf(`SELECT month_date, updated_at, %s FROM monthly_stats WHERE owner_id = ?`, strings.Join(cols, ", "))
	args := []interface{}{ownerID}
	if !from.IsZero() {
		query += " AND month_date >= ?"
		args = append(args, model.FirstOfMonth(from).Format(model.MonthKeyLayout))
	}
	if !to.IsZero() {
		query += " AND month_date <= ?"
		args = append(args, model.FirstOfMonth(to).Format(model.MonthKeyLayout))
	}
	query += " ORDER BY month_date ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query monthly stats failed: %w", err)
	}
	defer rows.Close()

	out := []model.MonthlyStat{}
	for rows.Next() {
		var monthKey string
		var updatedAt time.Time
		texts := make(map[model.MetricKey]*sql.NullString)
		numbers := make(map[model.MetricKey]*sql.NullFloat64)
		dest := []interface{}{&monthKey, &updatedAt}
		for _, k := range keys {
			if k.Textual() {
				v := &sql.NullString{}
				texts[k] = v
				dest = append(dest, v)
				continue
			}
			v := &sql.NullFloat64{}
			numbers[k] = v
			dest = append(dest, v)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan monthly stat failed: %w", err)
		}

		month, err := time.Parse(model.MonthKeyLayout, monthKey)
		if err != nil {
			return nil, fmt.Errorf("invalid month_date %q: %w", monthKey, err)
		}
		stat := model.MonthlyStat{
			OwnerID:   ownerID,
			Month:     month,
			Values:    map[model.MetricKey]model.MetricValue{},
			UpdatedAt: updatedAt,
		}
		for k, v := range texts {
			if v.Valid {
				stat.Values[k] = model.TextValue(v.String)
			}
		}
		for k, v := range numbers {
			if v.Valid {
				stat.Values[k] = model.NumberValue(v.Float64)
			}
		}
		out = append(out, stat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate monthly stats failed: %w", err)
	}
	return out, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
