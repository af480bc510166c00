package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Lartitiz/nowadaysagency-sub004/internal/model"
)

// LoadDraft brouillon du parcours ; nil sans erreur s'il n'existe pas
func (s *Store) LoadDraft(ctx context.Context, ownerID string, kind model.WizardKind) (*model.WizardDraft, error) {
	var (
		d           model.WizardDraft
		answersJSON string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT owner_id, kind, step, answers_json, updated_at
		FROM wizard_drafts
		WHERE owner_id = ? AND kind = ?
	`, ownerID, string(kind)).Scan(&d.OwnerID, &d.Kind, &d.Step, &answersJSON, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load wizard draft: %w", err)
	}
	if err := json.Unmarshal([]byte(answersJSON), &d.Answers); err != nil {
		return nil, fmt.Errorf("invalid answers_json for %s draft: %w", kind, err)
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
	updatedAt := d.UpdatedAt.UTC()
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO wizard_drafts (owner_id, kind, step, answers_json, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(owner_id, kind) DO UPDATE SET
			step = excluded.step,
			answers_json = excluded.answers_json,
			updated_at = excluded.updated_at
	`, d.OwnerID, string(d.Kind), d.Step, string(b), updatedAt)
	if err != nil {
		return fmt.Errorf("failed to save wizard draft: %w", err)
	}
	return nil
}

// ClearDraft supprime le brouillon
func (s *Store) ClearDraft(ctx context.Context, ownerID string, kind model.WizardKind) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM wizard_drafts WHERE owner_id = ? AND kind = ?`, ownerID, string(kind)); err != nil {
		return fmt.Errorf("failed to clear wizard draft: %w", err)
	}
	return nil
}
