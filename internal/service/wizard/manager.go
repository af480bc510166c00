package wizard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Lartitiz/nowadaysagency-sub004/internal/model"
)

var (
	// ErrUnknownWizard parcours inexistant
	ErrUnknownWizard = errors.New("unknown wizard")
	// ErrStepOutOfRange étape hors du parcours
	ErrStepOutOfRange = errors.New("wizard step out of range")
)

type draftKey struct {
	owner string
	kind  model.WizardKind
}

// Manager brouillons en cours, un Autosaver par (propriétaire, parcours)
type Manager struct {
	store  DraftStore
	sched  Scheduler
	delay  time.Duration
	mu     sync.Mutex
	savers map[draftKey]*Autosaver
	now    func() time.Time
}

// NewManager sched nil = minuteries réelles, delay 0 = DefaultDebounce
func NewManager(store DraftStore, sched Scheduler, delay time.Duration) *Manager {
	return &Manager{
		store:  store,
		sched:  sched,
		delay:  delay,
		savers: make(map[draftKey]*Autosaver),
		now:    time.Now,
	}
}

// Get brouillon courant (vierge à l'étape 0 s'il n'existe pas)
func (m *Manager) Get(ctx context.Context, ownerID string, kind model.WizardKind) (*model.WizardDraft, error) {
	saver, err := m.saver(ctx, ownerID, kind)
	if err != nil {
		return nil, err
	}
	return saver.Draft(), nil
}

// Answer fusionne les réponses d'une étape ; l'enregistrement est différé
func (m *Manager) Answer(ctx context.Context, ownerID string, kind model.WizardKind, step int, answers map[string]interface{}) (*model.WizardDraft, error) {
	def, ok := Lookup(kind)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownWizard, kind)
	}
	if step < 0 || step > def.LastStep() {
		return nil, fmt.Errorf("%w: %d not in [0,%d]", ErrStepOutOfRange, step, def.LastStep())
	}
	saver, err := m.saver(ctx, ownerID, kind)
	if err != nil {
		return nil, err
	}
	return saver.Update(step, answers), nil
}

// Next passe à l'étape suivante et enregistre aussitôt
func (m *Manager) Next(ctx context.Context, ownerID string, kind model.WizardKind) (*model.WizardDraft, error) {
	return m.move(ctx, ownerID, kind, 1)
}

// Back revient à l'étape précédente et enregistre aussitôt
func (m *Manager) Back(ctx context.Context, ownerID string, kind model.WizardKind) (*model.WizardDraft, error) {
	return m.move(ctx, ownerID, kind, -1)
}

func (m *Manager) move(ctx context.Context, ownerID string, kind model.WizardKind, delta int) (*model.WizardDraft, error) {
	def, ok := Lookup(kind)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownWizard, kind)
	}
	saver, err := m.saver(ctx, ownerID, kind)
	if err != nil {
		return nil, err
	}

	step := saver.Draft().Step + delta
	if step < 0 {
		step = 0
	}
	if step > def.LastStep() {
		step = def.LastStep()
	}
	draft := saver.Update(step, nil)
	if err := saver.Flush(ctx); err != nil {
		return nil, err
	}
	return draft, nil
}

// Reset efface le brouillon
func (m *Manager) Reset(ctx context.Context, ownerID string, kind model.WizardKind) error {
	if _, ok := Lookup(kind); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownWizard, kind)
	}
	key := draftKey{owner: ownerID, kind: kind}
	m.mu.Lock()
	if saver, ok := m.savers[key]; ok {
		saver.Discard()
		delete(m.savers, key)
	}
	m.mu.Unlock()

	return m.store.ClearDraft(ctx, ownerID, kind)
}

// Close enregistre tous les brouillons en attente
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	savers := make([]*Autosaver, 0, len(m.savers))
	for _, s := range m.savers {
		savers = append(savers, s)
	}
	m.savers = make(map[draftKey]*Autosaver)
	m.mu.Unlock()

	var errs []error
	for _, s := range savers {
		if err := s.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) saver(ctx context.Context, ownerID string, kind model.WizardKind) (*Autosaver, error) {
	if _, ok := Lookup(kind); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownWizard, kind)
	}
	key := draftKey{owner: ownerID, kind: kind}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.savers[key]; ok {
		return s, nil
	}

	draft, err := m.store.LoadDraft(ctx, ownerID, kind)
	if err != nil {
		return nil, err
	}
	if draft == nil {
		draft = &model.WizardDraft{OwnerID: ownerID, Kind: kind, Answers: map[string]interface{}{}, UpdatedAt: m.now()}
	}
	if draft.Answers == nil {
		draft.Answers = map[string]interface{}{}
	}

	s := NewAutosaver(m.store, m.sched, m.delay, draft)
	s.now = m.now
	m.savers[key] = s
	return s, nil
}
