package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Lartitiz/nowadaysagency-sub004/internal/model"
)

// ListImportLogs derniers imports du propriétaire
func (s *Store) ListImportLogs(ctx context.Context, ownerID string, limit int) ([]model.ImportLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, filename, COALESCE(sheet_name, ''),
			total_rows, imported_rows, failed_rows,
			status, COALESCE(error_message, ''), created_at
		FROM import_logs
		WHERE owner_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
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

// LoadDraft brouillon du parcours ; nil sans erreur s'il n'existe pas
func (s *Store) LoadDraft(ctx context.Context, ownerID string, kind model.WizardKind) (*model.WizardDraft, error) {
	var (
		d       model.WizardDraft
		answers []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT owner_id, kind, step, answers, updated_at
		FROM wizard_drafts
		WHERE owner_id = $1 AND kind = $2
	`, ownerID, string(kind)).Scan(&d.OwnerID, &d.Kind, &d.Step, &answers, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load wizard draft: %w", err)
	}
	if err := json.Unmarshal(answers, &d.Answers); err != nil {
		return nil, fmt.Errorf("invalid answers for %s draft: %w", kind, err)
	}
	if d.Answers == nil {
		d.Answers = map[string]interface{}{}
	}
	return &d, nil
}

// SaveDraft enregistre le brouillon (remplace le précédent)
func (s *Store) SaveDraft(ctx context.Context, d *model.WizardDraft) error {
	answers := d.Answers
	if answers == nil {
		answers = map[string]interface{}{}
	}
	b, err := json.Marshal(answers)
	if err != nil {
		return fmt.Errorf("failed to encode draft answers: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO wizard_drafts (owner_id, kind, step, answers, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (owner_id, kind) DO UPDATE SET
			step = EXCLUDED.step,
			answers = EXCLUDED.answers,
			updated_at = NOW()
	`, d.OwnerID, string(d.Kind), d.Step, string(b))
	if err != nil {
		return fmt.Errorf("failed to save wizard draft: %w", err)
	}
	return nil
}

// ClearDraft supprime le brouillon
func (s *Store) ClearDraft(ctx context.Context, ownerID string, kind model.WizardKind) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM wizard_drafts WHERE owner_id = $1 AND kind = $2`, ownerID, string(kind)); err != nil {
		return fmt.Errorf("failed to clear wizard draft: %w", err)
	}
	return nil
}
