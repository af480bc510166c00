package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Lartitiz/nowadaysagency-sub004/internal/model"
	"github.com/Lartitiz/nowadaysagency-sub004/internal/parser"
	"github.com/Lartitiz/nowadaysagency-sub004/internal/service/excel"
	"github.com/Lartitiz/nowadaysagency-sub004/internal/service/mapping"
	"github.com/Lartitiz/nowadaysagency-sub004/internal/session"
	"github.com/Lartitiz/nowadaysagency-sub004/internal/storage"
)

var (
	// ErrInvalidStep opération impossible à l'étape courante de la session
	ErrInvalidStep = errors.New("invalid import step")
	// ErrPersistenceFailed aucune ligne n'a pu être enregistrée
	ErrPersistenceFailed = errors.New("import persistence failed")
	// ErrNoRows l'aperçu ne contient aucune ligne à importer
	ErrNoRows = errors.New("no rows to import")
)

// Statuts du journal d'import
const (
	LogStatusDone    = "done"
	LogStatusPartial = "partial"
	LogStatusFailed  = "failed"
)

// Types d'évènements de progression
const (
	EventStart   = "start"
	EventRow     = "row"
	EventWarning = "warning"
	EventDone    = "done"
	EventError   = "error"
)

// Repository écritures de l'étape de confirmation
type Repository interface {
	mapping.SavedMappingRepository
	UpsertMonthlyStat(ctx context.Context, ownerID string, row model.NormalizedMonthRow) error
	SaveMapping(ctx context.Context, m *model.SavedMapping) error
	InsertImportLog(ctx context.Context, l *model.ImportLog) error
}

// MappingResolver propose une correspondance pour un classeur
type MappingResolver interface {
	Resolve(ctx context.Context, ownerID string, wb *model.Workbook) (*mapping.Resolution, error)
}

// ProgressEvent évènement de progression de la confirmation
type ProgressEvent struct {
	Type      string      `json:"type"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Options réglages du coordinateur
type Options struct {
	// BaseYear année des mois sans année ni ligne précédente datée (0 = année courante)
	BaseYear int
	// Archive copie des fichiers reçus (facultatif)
	Archive storage.Archive
}

// Coordinator pilote une session d'import : analyse, correction, aperçu, confirmation
type Coordinator struct {
	reader   *excel.Reader
	resolver MappingResolver
	repo     Repository
	sessions session.Store
	opts     Options
	now      func() time.Time
}

// NewCoordinator crée le coordinateur
func NewCoordinator(reader *excel.Reader, resolver MappingResolver, repo Repository, sessions session.Store, opts Options) *Coordinator {
	if reader == nil {
		reader = excel.NewReader()
	}
	return &Coordinator{
		reader:   reader,
		resolver: resolver,
		repo:     repo,
		sessions: sessions,
		opts:     opts,
		now:      time.Now,
	}
}

// AnalyzeRequest fichier reçu
type AnalyzeRequest struct {
	OwnerID  string
	FileName string
	Data     []byte
}

// Analyze lit le fichier et propose une correspondance (upload → analyzing → validate).
// En cas d'échec la session revient à l'étape upload avec LastError et l'erreur typée est
// retournée avec la session.
func (c *Coordinator) Analyze(ctx context.Context, req AnalyzeRequest) (*model.ImportSession, error) {
	now := c.now()
	sess := &model.ImportSession{
		ID:          uuid.New().String(),
		OwnerID:     req.OwnerID,
		FileName:    req.FileName,
		Step:        model.StepAnalyzing,
		Rows:        []model.NormalizedMonthRow{},
		Corrections: []model.Correction{},
		Skipped:     []model.SkippedRow{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := c.save(ctx, sess); err != nil {
		return nil, err
	}

	c.archive(ctx, sess, req.Data)

	wb, err := c.reader.Read(req.FileName, req.Data)
	if err != nil {
		return c.backToUpload(ctx, sess, err)
	}
	sess.Workbook = wb

	res, err := c.resolver.Resolve(ctx, req.OwnerID, wb)
	if err != nil {
		return c.backToUpload(ctx, sess, err)
	}

	sess.Mapping = res.Mapping
	sess.MappingSource = res.Source
	sess.Step = model.StepValidate
	if err := c.save(ctx, sess); err != nil {
		return nil, err
	}

	slog.Info("import analyzed",
		"session", sess.ID, "owner", sess.OwnerID, "file", sess.FileName,
		"sheet", sess.Mapping.SheetName, "source", sess.MappingSource, "confidence", sess.Mapping.Confidence)
	return sess, nil
}

// UpdateMapping remplace la correspondance par celle corrigée par l'utilisateur (→ correcting)
func (c *Coordinator) UpdateMapping(ctx context.Context, ownerID, id string, m *model.ColumnMapping) (*model.ImportSession, error) {
	sess, err := c.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if err := requireStep(sess, model.StepValidate, model.StepCorrecting, model.StepPreview); err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("%w: empty mapping", model.ErrInvalidMapping)
	}

	m = m.Clone()
	if m.SheetName == "" && sess.Mapping != nil {
		m.SheetName = sess.Mapping.SheetName
	}
	if m.StartRow == 0 {
		m.StartRow = model.DefaultStartRow
	}
	if m.Confidence == "" {
		m.Confidence = model.ConfidenceHigh
	}
	sheet, ok := sess.Workbook.Sheet(m.SheetName)
	if !ok {
		return nil, fmt.Errorf("%w: unknown sheet %q", model.ErrInvalidMapping, m.SheetName)
	}
	if err := m.Validate(sheet.ColumnCount()); err != nil {
		return nil, err
	}

	sess.Mapping = m
	sess.MappingSource = model.MappingManual
	sess.Step = model.StepCorrecting
	sess.Rows = []model.NormalizedMonthRow{}
	sess.Corrections = []model.Correction{}
	sess.Skipped = []model.SkippedRow{}
	sess.LastError = ""
	if err := c.save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Preview transforme les lignes avec la correspondance courante (→ preview)
func (c *Coordinator) Preview(ctx context.Context, ownerID, id string) (*model.ImportSession, error) {
	sess, err := c.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if err := requireStep(sess, model.StepValidate, model.StepCorrecting, model.StepPreview); err != nil {
		return nil, err
	}
	sheet, ok := sess.TargetSheet()
	if !ok {
		return nil, fmt.Errorf("%w: target sheet missing", model.ErrInvalidMapping)
	}

	result := Transform(sheet, sess.Mapping, TransformOptions{BaseYear: c.opts.BaseYear})
	sess.Rows = result.Rows
	sess.Corrections = result.Corrections
	sess.Skipped = result.Skipped
	sess.Step = model.StepPreview
	sess.LastError = ""
	if err := c.save(ctx, sess); err != nil {
		return nil, err
	}

	slog.Info("import preview ready",
		"session", sess.ID, "rows", len(sess.Rows), "corrections", len(sess.Corrections), "skipped", len(sess.Skipped))
	return sess, nil
}

// ConfirmAsync lance Confirm en arrière-plan et retourne le flux d'évènements
func (c *Coordinator) ConfirmAsync(ctx context.Context, ownerID, id string) <-chan ProgressEvent {
	progressChan := make(chan ProgressEvent, 100)

	go func() {
		defer close(progressChan)
		if _, err := c.Confirm(ctx, ownerID, id, progressChan); err != nil {
			slog.Warn("import confirmation failed", "session", id, "error", err)
		}
	}()

	return progressChan
}

// Confirm enregistre les lignes de l'aperçu une par une (clé propriétaire + mois).
// Un échec isolé est compté sans interrompre le lot ; si aucune ligne n'a pu être écrite,
// la session revient à l'étape preview avec ses lignes et ErrPersistenceFailed est retourné.
// Sinon la correspondance est enregistrée pour les prochains imports et la session passe à done.
func (c *Coordinator) Confirm(ctx context.Context, ownerID, id string, events chan<- ProgressEvent) (*model.ImportSession, error) {
	sess, err := c.Get(ctx, ownerID, id)
	if err != nil {
		c.emit(ctx, events, EventError, "Session d'import introuvable", nil, true)
		return nil, err
	}
	if err := requireStep(sess, model.StepPreview); err != nil {
		c.emit(ctx, events, EventError, "L'aperçu doit être validé avant l'import", nil, true)
		return nil, err
	}
	if len(sess.Rows) == 0 {
		c.emit(ctx, events, EventError, "Aucune ligne à importer", nil, true)
		return nil, ErrNoRows
	}

	// une fois lancé, l'import va jusqu'au bout même si l'appelant se déconnecte
	bg := context.WithoutCancel(ctx)

	sess.Step = model.StepImporting
	sess.ImportedCount = 0
	sess.FailedCount = 0
	if err := c.save(bg, sess); err != nil {
		return nil, err
	}

	total := len(sess.Rows)
	c.emit(ctx, events, EventStart, "Import en cours", map[string]interface{}{
		"total": total,
		"file":  sess.FileName,
	}, true)

	var lastErr error
	for _, row := range sess.Rows {
		if err := c.repo.UpsertMonthlyStat(bg, sess.OwnerID, row); err != nil {
			lastErr = err
			sess.FailedCount++
			slog.Warn("monthly stat upsert failed", "session", sess.ID, "month", row.MonthKey(), "error", err)
			c.emit(ctx, events, EventWarning, fmt.Sprintf("%s non enregistré", parser.MonthLabel(row.Month)), map[string]interface{}{
				"month": row.MonthKey(),
			}, false)
			continue
		}
		sess.ImportedCount++
		c.emit(ctx, events, EventRow, parser.MonthLabel(row.Month), map[string]interface{}{
			"month":    row.MonthKey(),
			"imported": sess.ImportedCount,
			"total":    total,
		}, false)
	}

	sheetName := ""
	if sess.Mapping != nil {
		sheetName = sess.Mapping.SheetName
	}
	entry := &model.ImportLog{
		OwnerID:      sess.OwnerID,
		FileName:     sess.FileName,
		SheetName:    sheetName,
		TotalRows:    total,
		ImportedRows: sess.ImportedCount,
		FailedRows:   sess.FailedCount,
		CreatedAt:    c.now(),
	}

	if sess.ImportedCount == 0 {
		entry.Status = LogStatusFailed
		if lastErr != nil {
			entry.ErrorMessage = lastErr.Error()
		}
		c.writeLog(bg, entry)

		sess.Step = model.StepPreview
		sess.LastError = "L'import a échoué, aucune ligne n'a été enregistrée. Vous pouvez réessayer."
		if err := c.save(bg, sess); err != nil {
			slog.Error("failed to restore session after import failure", "session", sess.ID, "error", err)
		}
		c.emit(ctx, events, EventError, sess.LastError, nil, true)
		return sess, fmt.Errorf("%w: %v", ErrPersistenceFailed, lastErr)
	}

	c.saveMapping(bg, sess)

	entry.Status = LogStatusDone
	if sess.FailedCount > 0 {
		entry.Status = LogStatusPartial
		if lastErr != nil {
			entry.ErrorMessage = lastErr.Error()
		}
	}
	c.writeLog(bg, entry)

	sess.Step = model.StepDone
	sess.Workbook = nil
	sess.LastError = ""
	if err := c.save(bg, sess); err != nil {
		return nil, err
	}

	slog.Info("import confirmed",
		"session", sess.ID, "owner", sess.OwnerID, "imported", sess.ImportedCount, "failed", sess.FailedCount)
	c.emit(ctx, events, EventDone, fmt.Sprintf("%d mois importés", sess.ImportedCount), map[string]interface{}{
		"imported": sess.ImportedCount,
		"failed":   sess.FailedCount,
		"total":    total,
	}, true)
	return sess, nil
}

// Get session du propriétaire ; une session d'un autre propriétaire est introuvable
func (c *Coordinator) Get(ctx context.Context, ownerID, id string) (*model.ImportSession, error) {
	sess, err := c.sessions.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.OwnerID != ownerID {
		return nil, session.ErrNotFound
	}
	return sess, nil
}

// Discard ferme le dialogue : la session est supprimée, les lignes déjà importées restent
func (c *Coordinator) Discard(ctx context.Context, ownerID, id string) error {
	if _, err := c.Get(ctx, ownerID, id); err != nil {
		return err
	}
	return c.sessions.Delete(ctx, id)
}

func (c *Coordinator) backToUpload(ctx context.Context, sess *model.ImportSession, cause error) (*model.ImportSession, error) {
	sess.Step = model.StepUpload
	sess.Workbook = nil
	sess.LastError = userMessage(cause)
	if err := c.save(context.WithoutCancel(ctx), sess); err != nil {
		slog.Error("failed to save session", "session", sess.ID, "error", err)
	}
	slog.Warn("import analysis failed", "session", sess.ID, "file", sess.FileName, "error", cause)
	return sess, cause
}

func (c *Coordinator) saveMapping(ctx context.Context, sess *model.ImportSession) {
	sheet, ok := sess.TargetSheet()
	if !ok {
		return
	}
	saved := &model.SavedMapping{
		OwnerID:   sess.OwnerID,
		SheetName: sheet.Name,
		Headers:   mapping.Fingerprint(sheet),
		Mapping:   sess.Mapping.Clone(),
		UpdatedAt: c.now(),
	}
	if err := c.repo.SaveMapping(ctx, saved); err != nil {
		slog.Warn("failed to save column mapping", "session", sess.ID, "error", err)
	}
}

func (c *Coordinator) writeLog(ctx context.Context, entry *model.ImportLog) {
	if err := c.repo.InsertImportLog(ctx, entry); err != nil {
		slog.Warn("failed to write import log", "owner", entry.OwnerID, "error", err)
	}
}

func (c *Coordinator) archive(ctx context.Context, sess *model.ImportSession, data []byte) {
	if c.opts.Archive == nil || len(data) == 0 {
		return
	}
	key := storage.Key(sess.OwnerID, sess.ID, sess.FileName)
	if err := c.opts.Archive.Put(ctx, key, data); err != nil {
		slog.Warn("failed to archive upload", "session", sess.ID, "key", key, "error", err)
	}
}

func (c *Coordinator) save(ctx context.Context, sess *model.ImportSession) error {
	sess.UpdatedAt = c.now()
	if err := c.sessions.Save(ctx, sess); err != nil {
		return fmt.Errorf("failed to save import session: %w", err)
	}
	return nil
}

// emit envoie un évènement ; canal plein : les évènements non essentiels sont abandonnés,
// les autres attendent jusqu'à l'annulation du contexte
func (c *Coordinator) emit(ctx context.Context, ch chan<- ProgressEvent, typ, msg string, data interface{}, essential bool) {
	if ch == nil {
		return
	}
	evt := ProgressEvent{Type: typ, Message: msg, Data: data, Timestamp: c.now()}
	select {
	case ch <- evt:
		return
	default:
	}
	if !essential {
		return
	}
	select {
	case ch <- evt:
	case <-ctx.Done():
	}
}

func requireStep(sess *model.ImportSession, allowed ...model.ImportStep) error {
	for _, s := range allowed {
		if sess.Step == s {
			return nil
		}
	}
	return fmt.Errorf("%w: session is at step %s", ErrInvalidStep, sess.Step)
}

// userMessage message court affiché à l'utilisateur
func userMessage(err error) string {
	var unreadable *excel.UnreadableFileError
	var unavailable *mapping.InferenceUnavailableError
	switch {
	case errors.As(err, &unreadable):
		return "Le fichier n'a pas pu être lu. Vérifie qu'il s'agit d'un tableur ou d'un CSV."
	case errors.As(err, &unavailable):
		return "L'analyse du fichier a échoué. Réessaie dans quelques instants."
	default:
		return "L'analyse du fichier a échoué."
	}
}
