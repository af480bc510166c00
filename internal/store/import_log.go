package store

import (
	"context"
	"fmt"
	"time"

	"github.com/Lartitiz/nowadaysagency-sub004/internal/model"
)

// InsertImportLog ajoute une entrée au journal d'import
func (s *Store) InsertImportLog(ctx context.Context, l *model.ImportLog) error {
	createdAt := l.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO import_logs (
			owner_id, filename, sheet_name,
			total_rows, imported_rows, failed_rows,
			status, error_message, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		l.OwnerID, l.FileName, l.SheetName,
		l.TotalRows, l.ImportedRows, l.FailedRows,
		l.Status, l.ErrorMessage, createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create import log: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get import log id: %w", err)
	}
	l.ID = id
	l.CreatedAt = createdAt
	return nil
}

// ListImportLogs derniers imports du propriétaire
func (s *Store) ListImportLogs(ctx context.Context, ownerID string, limit int) ([]model.ImportLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, filename, COALESCE(sheet_name, ''),
			total_rows, imported_rows, failed_rows,
			status, COALESCE(error_message, ''), created_at
		FROM import_logs
		WHERE owner_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("query import logs failed: %w", err)
	}
	defer rows.Close()

	out := []model.ImportLog{}
	for rows.Next() {
		var l model.ImportLog
		if err := rows.Scan(&l.ID, &l.OwnerID, &l.FileName, &l.SheetName,
			&l.TotalRows, &l.ImportedRows, &l.FailedRows,
			&l.Status, &l.ErrorMessage, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan import log failed: %w", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate import logs failed: %w", err)
	}
	return out, nil
}
