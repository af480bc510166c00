package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Lartitiz/nowadaysagency-sub004/internal/model"
)

// ErrNotFound session absente ou expirée
var ErrNotFound = errors.New("import session not found")

// DefaultTTL durée de vie d'une session d'import inactive
const DefaultTTL = 2 * time.Hour

// Store port de persistance des sessions d'import
type Store interface {
	Save(ctx context.Context, s *model.ImportSession) error
	Load(ctx context.Context, id string) (*model.ImportSession, error)
	Delete(ctx context.Context, id string) error
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryStore sessions en mémoire (processus unique, CLI et tests)
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]memoryEntry
	ttl      time.Duration
	now      func() time.Time
}

// NewMemoryStore crée un stockage mémoire ; ttl <= 0 → DefaultTTL
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		sessions: make(map[string]memoryEntry),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Save enregistre une copie de la session et purge les sessions expirées
func (m *MemoryStore) Save(_ context.Context, s *model.ImportSession) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for id, entry := range m.sessions {
		if now.After(entry.expiresAt) {
			delete(m.sessions, id)
		}
	}
	m.sessions[s.ID] = memoryEntry{data: data, expiresAt: now.Add(m.ttl)}
	return nil
}

// Load retourne une copie ; ErrNotFound si absente ou expirée
func (m *MemoryStore) Load(_ context.Context, id string) (*model.ImportSession, error) {
	m.mu.RLock()
	entry, ok := m.sessions[id]
	m.mu.RUnlock()

	if !ok || m.now().After(entry.expiresAt) {
		return nil, ErrNotFound
	}
	return decode(entry.data)
}

// Delete supprime la session
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func decode(data []byte) (*model.ImportSession, error) {
	var s model.ImportSession
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &s, nil
}
