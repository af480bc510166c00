package wizard

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Lartitiz/nowadaysagency-sub004/internal/model"
)

// DefaultDebounce délai entre la dernière modification et l'enregistrement du brouillon
const DefaultDebounce = 800 * time.Millisecond

// DraftStore persistance des brouillons ; LoadDraft retourne nil sans erreur en l'absence de brouillon
type DraftStore interface {
	LoadDraft(ctx context.Context, ownerID string, kind model.WizardKind) (*model.WizardDraft, error)
	SaveDraft(ctx context.Context, d *model.WizardDraft) error
	ClearDraft(ctx context.Context, ownerID string, kind model.WizardKind) error
}

// Timer minuterie annulable (*time.Timer)
type Timer interface {
	Stop() bool
}

// Scheduler programme un appel différé
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Timer
}

type timeScheduler struct{}

func (timeScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// Autosaver enregistre un brouillon après une période sans modification.
// Le rappel de la minuterie et les appels de l'API peuvent être concurrents.
type Autosaver struct {
	mu     sync.Mutex
	store  DraftStore
	sched  Scheduler
	delay  time.Duration
	now    func() time.Time
	draft  *model.WizardDraft
	dirty  bool
	timer  Timer
	closed bool
}

// NewAutosaver part du brouillon initial (déjà enregistré ou vierge)
func NewAutosaver(store DraftStore, sched Scheduler, delay time.Duration, initial *model.WizardDraft) *Autosaver {
	if sched == nil {
		sched = timeScheduler{}
	}
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Autosaver{
		store: store,
		sched: sched,
		delay: delay,
		now:   time.Now,
		draft: cloneDraft(initial),
	}
}

// Update fusionne les réponses, fixe l'étape et reprogramme l'enregistrement
func (a *Autosaver) Update(step int, answers map[string]interface{}) *model.WizardDraft {
	a.mu.Lock()
	defer a.mu.Unlock()

	for k, v := range answers {
		a.draft.Answers[k] = v
	}
	a.draft.Step = step
	a.draft.UpdatedAt = a.now()
	a.dirty = true

	if !a.closed {
		if a.timer != nil {
			a.timer.Stop()
		}
		owner, kind := a.draft.OwnerID, a.draft.Kind
		a.timer = a.sched.AfterFunc(a.delay, func() {
			if err := a.Flush(context.Background()); err != nil {
				slog.Warn("wizard draft autosave failed", "owner", owner, "kind", kind, "error", err)
			}
		})
	}
	return cloneDraft(a.draft)
}

// Draft copie du brouillon courant
func (a *Autosaver) Draft() *model.WizardDraft {
	a.mu.Lock()
	defer a.mu.Unlock()
	return cloneDraft(a.draft)
}

// Flush enregistre immédiatement les modifications en attente
func (a *Autosaver) Flush(ctx context.Context) error {
	a.mu.Lock()
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	if !a.dirty {
		a.mu.Unlock()
		return nil
	}
	snapshot := cloneDraft(a.draft)
	a.dirty = false
	a.mu.Unlock()

	if err := a.store.SaveDraft(ctx, snapshot); err != nil {
		a.mu.Lock()
		a.dirty = true
		a.mu.Unlock()
		return fmt.Errorf("failed to save %s draft: %w", snapshot.Kind, err)
	}
	return nil
}

// Close annule la minuterie et enregistre ce qui reste
func (a *Autosaver) Close(ctx context.Context) error {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
	return a.Flush(ctx)
}

// Discard abandonne les modifications en attente sans les enregistrer
func (a *Autosaver) Discard() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.dirty = false
	a.closed = true
}

func cloneDraft(d *model.WizardDraft) *model.WizardDraft {
	out := *d
	out.Answers = make(map[string]interface{}, len(d.Answers))
	for k, v := range d.Answers {
		out.Answers[k] = v
	}
	return &out
}
