package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Lartitiz/nowadaysagency-sub004/internal/model"
)

// RecentMappings correspondances du propriétaire, la plus récente d'abord
func (s *Store) RecentMappings(ctx context.Context, ownerID string, limit int) ([]*model.SavedMapping, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, sheet_name, headers_json, mapping_json, updated_at
		FROM column_mappings
		WHERE owner_id = ?
		ORDER BY updated_at DESC, id DESC
		LIMIT ?
	`, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("query column mappings failed: %w", err)
	}
	defer rows.Close()

	out := []*model.SavedMapping{}
	for rows.Next() {
		var (
			m           model.SavedMapping
			headersJSON string
			mappingJSON string
		)
		if err := rows.Scan(&m.ID, &m.OwnerID, &m.SheetName, &headersJSON, &mappingJSON, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan column mapping failed: %w", err)
		}
		if err := DecodeMapping(&m, headersJSON, mappingJSON); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate column mappings failed: %w", err)
	}
	return out, nil
}

// SaveMapping enregistre la correspondance (remplace celle de la même feuille)
func (s *Store) SaveMapping(ctx context.Context, m *model.SavedMapping) error {
	headersJSON, mappingJSON, err := EncodeMapping(m)
	if err != nil {
		return err
	}
	updatedAt := m.UpdatedAt.UTC()
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO column_mappings (owner_id, sheet_name, headers_json, mapping_json, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(owner_id, sheet_name) DO UPDATE SET
			headers_json = excluded.headers_json,
			mapping_json = excluded.mapping_json,
			updated_at = excluded.updated_at
	`, m.OwnerID, m.SheetName, headersJSON, mappingJSON, updatedAt)
	if err != nil {
		return fmt.Errorf("failed to save column mapping: %w", err)
	}
	return nil
}

// EncodeMapping sérialise en-têtes et correspondance pour les colonnes JSON
func EncodeMapping(m *model.SavedMapping) (headersJSON, mappingJSON string, err error) {
	if m == nil || m.Mapping == nil {
		return "", "", fmt.Errorf("saved mapping is empty")
	}
	headers := m.Headers
	if headers == nil {
		headers = []string{}
	}
	h, err := json.Marshal(headers)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode headers: %w", err)
	}
	b, err := json.Marshal(m.Mapping)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode mapping: %w", err)
	}
	return string(h), string(b), nil
}

// DecodeMapping inverse de EncodeMapping
func DecodeMapping(m *model.SavedMapping, headersJSON, mappingJSON string) error {
	if err := json.Unmarshal([]byte(headersJSON), &m.Headers); err != nil {
		return fmt.Errorf("invalid headers_json for mapping %d: %w", m.ID, err)
	}
	m.Mapping = &model.ColumnMapping{}
	if err := json.Unmarshal([]byte(mappingJSON), m.Mapping); err != nil {
		return fmt.Errorf("invalid mapping_json for mapping %d: %w", m.ID, err)
	}
	return nil
}
