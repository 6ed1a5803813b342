package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"staylist/internal/adapters/observability"
	"staylist/internal/domain"
)

// Deps are the collaborators a wizard runs against. Gateway, Drafts and
// Sessions are required; Photos and Events may be nil.
type Deps struct {
	Gateway  domain.EntityGateway
	Drafts   domain.DraftStore
	Sessions domain.SessionProvider
	Photos   *PhotoIngest
	Events   domain.EventPublisher

	Steps            []StepDescriptor
	Gate             GateConfig
	AutosaveInterval time.Duration
}

// Wizard owns one listing document for the lifetime of a session. All
// document mutation goes through its methods.
type Wizard struct {
	deps      Deps
	validator Validator
	session   domain.Session
	autosave  *Autosaver
	cancel    context.CancelFunc

	mu         sync.Mutex
	steps      *StepController
	doc        domain.WizardDocument
	propertyID string
	editing    bool
	created    bool
	resumed    bool
	submitting bool
	finished   bool
	closed     bool
}

// Open resolves the session through the auth gate and loads the document:
// the existing entity when propertyID is set, otherwise a resumable draft,
// otherwise a blank document. Autosave starts once the wizard is open.
func Open(ctx context.Context, deps Deps, propertyID string) (*Wizard, error) {
	if deps.Gateway == nil || deps.Drafts == nil || deps.Sessions == nil {
		return nil, errors.New("wizard: gateway, drafts and sessions are required")
	}
	gate := NewGate(deps.Sessions, deps.Gate)
	sess, err := gate.Resolve(ctx)
	observability.ObserveGate(gateOutcome(err))
	if err != nil {
		return nil, err
	}

	w := &Wizard{
		deps:    deps,
		session: sess,
		steps:   NewStepController(deps.Steps, Validator{}),
		doc:     domain.NewWizardDocument(),
	}
	propertyID = strings.TrimSpace(propertyID)
	if propertyID != "" {
		if err := w.loadEntity(ctx, propertyID); err != nil {
			return nil, err
		}
	}
	w.resumeDraft(ctx)

	w.autosave = NewAutosaver(deps.Drafts, deps.AutosaveInterval, w.snapshot)
	// the wizard outlives the request that opened it
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	w.cancel = cancel
	w.autosave.Start(loopCtx)

	log.Info().
		Str("user", sess.UserID).
		Str("property", w.propertyID).
		Bool("resumed", w.resumed).
		Msg("wizard opened")
	return w, nil
}

func gateOutcome(err error) string {
	switch {
	case err == nil:
		return "allowed"
	case errors.Is(err, domain.ErrAccessDenied):
		return "denied"
	case errors.Is(err, domain.ErrSessionExpired):
		return "expired"
	}
	return "cancelled"
}

func (w *Wizard) loadEntity(ctx context.Context, id string) error {
	rec, err := w.deps.Gateway.GetByID(ctx, id, true)
	if err != nil {
		return fmt.Errorf("load property %s: %w", id, err)
	}
	if owner := rec.OwnerID(); owner != "" && owner != w.session.UserID && !strings.EqualFold(w.session.Role, "admin") {
		return fmt.Errorf("property %s belongs to another owner: %w", id, domain.ErrAccessDenied)
	}
	photos, err := w.deps.Gateway.GetPhotos(ctx, id)
	if err != nil {
		return fmt.Errorf("load photos for %s: %w", id, err)
	}
	w.doc = ToWizardDocument(rec, photos)
	w.propertyID = id
	w.editing = true
	return nil
}

// resumeDraft restores a saved draft when it belongs to the same target: a
// draft for a new listing when creating, or the draft of this property when
// editing. A create wizard never picks up an edit draft. Draft problems
// never block opening the wizard.
func (w *Wizard) resumeDraft(ctx context.Context) {
	rec, ok, err := w.deps.Drafts.Load(ctx, w.session.UserID)
	if err != nil {
		log.Warn().Err(err).Str("user", w.session.UserID).Msg("draft load failed; starting fresh")
		return
	}
	if !ok {
		return
	}
	if w.editing && rec.PropertyID != w.propertyID {
		return
	}
	if !w.editing && rec.PropertyID != "" {
		if !rec.Created {
			log.Debug().Str("user", w.session.UserID).Str("property", rec.PropertyID).Msg("edit draft not resumed by create wizard")
			return
		}
		// a create that got as far as the backend; finish it as an update
		w.propertyID = rec.PropertyID
		w.created = true
	}
	w.doc = rec.Document
	w.doc.Photos.Normalize()
	w.steps.Restore(rec.Step)
	w.resumed = true
}

func (w *Wizard) snapshot() (string, domain.DraftRecord, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.submitting || w.finished || w.closed {
		return "", domain.DraftRecord{}, false
	}
	return w.session.UserID, domain.DraftRecord{
		Document:   w.doc.Clone(),
		Step:       w.steps.Current(),
		PropertyID: w.propertyID,
		Created:    w.created,
	}, true
}

func (w *Wizard) Session() domain.Session { return w.session }

// State is a read-only view of the wizard for rendering.
type State struct {
	Step       StepDescriptor        `json:"step"`
	Index      int                   `json:"index"`
	Steps      []StepDescriptor      `json:"steps"`
	Progress   Progress              `json:"progress"`
	Document   domain.WizardDocument `json:"document"`
	PropertyID string                `json:"property_id,omitempty"`
	Editing    bool                  `json:"editing"`
	Resumed    bool                  `json:"resumed"`
	Submitting bool                  `json:"submitting"`
	Finished   bool                  `json:"finished"`
	// RemainingRooms is the live room-allocation counter for the rooms step.
	RemainingRooms int `json:"remaining_rooms"`
}

func (w *Wizard) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return State{
		Step:           w.steps.CurrentStep(),
		Index:          w.steps.Current(),
		Steps:          w.steps.Steps(),
		Progress:       w.steps.Progress(w.doc),
		Document:       w.doc.Clone(),
		PropertyID:     w.propertyID,
		Editing:        w.editing,
		Resumed:        w.resumed,
		Submitting:     w.submitting,
		Finished:       w.finished,
		RemainingRooms: RemainingRooms(w.doc),
	}
}

func (w *Wizard) Document() domain.WizardDocument {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.doc.Clone()
}

func (w *Wizard) usable() error {
	if w.closed || w.finished {
		return domain.ErrWizardClosed
	}
	return nil
}

// Update applies fn to the document. Edits are accepted while a submit is
// in flight; the submit works on the snapshot it took.
func (w *Wizard) Update(fn func(doc *domain.WizardDocument)) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.usable(); err != nil {
		return err
	}
	fn(&w.doc)
	w.doc.Capacity.MaxGuests = w.doc.Capacity.DerivedMaxGuests(w.doc.Basic.Category)
	return nil
}

// Replace swaps in a whole document, as sent by a form post. Photos are
// normalised so their invariants hold regardless of what the client sent.
func (w *Wizard) Replace(doc domain.WizardDocument) error {
	return w.Update(func(d *domain.WizardDocument) {
		*d = doc.Clone()
		d.Photos.Normalize()
		// the legacy view is rebuilt from the structured sets
		d.Amenities.Legacy = d.Amenities.Structured()
	})
}

func (w *Wizard) Next() (Transition, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.usable(); err != nil {
		return Transition{}, err
	}
	step := w.steps.CurrentStep().ID
	t, err := w.steps.Next(w.doc)
	switch {
	case err != nil:
		observability.ObserveTransition(string(step), "stay")
	case t.Moved:
		observability.ObserveTransition(string(step), "moved")
	default:
		observability.ObserveTransition(string(step), "blocked")
		log.Debug().Str("user", w.session.UserID).Str("step", string(step)).Str("reason", t.Validation.Reason).Msg("step blocked")
	}
	return t, err
}

func (w *Wizard) Previous() (Transition, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.usable(); err != nil {
		return Transition{}, err
	}
	return w.steps.Previous(w.doc), nil
}

func (w *Wizard) GoTo(i int) (Transition, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.usable(); err != nil {
		return Transition{}, err
	}
	return w.steps.GoTo(i)
}

// Validate runs the current step's checks without moving.
func (w *Wizard) Validate() Result {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.validator.Validate(w.steps.CurrentStep().ID, w.doc)
}

// SaveDraft writes the draft immediately instead of waiting for the next tick.
func (w *Wizard) SaveDraft(ctx context.Context) (bool, error) {
	w.mu.Lock()
	err := w.usable()
	w.mu.Unlock()
	if err != nil {
		return false, err
	}
	return w.autosave.SaveNow(ctx)
}

/********** photos **********/

func (w *Wizard) photos(fn func(l *domain.PhotoList) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.usable(); err != nil {
		return err
	}
	return fn(&w.doc.Photos)
}

// AddPhotoURL adds a photo that references an already hosted image.
func (w *Wizard) AddPhotoURL(rawURL, caption, altText, category string) (domain.Photo, error) {
	u, err := ValidateImageURL(rawURL)
	if err != nil {
		return domain.Photo{}, err
	}
	var added domain.Photo
	err = w.photos(func(l *domain.PhotoList) error {
		l.Add(domain.Photo{ImageURL: u, Caption: caption, AltText: altText, Category: category})
		added = (*l)[len(*l)-1]
		return nil
	})
	return added, err
}

// UploadPhotos uploads a batch and adds every photo that made it, in input
// order. The document is not locked while the uploads run.
func (w *Wizard) UploadPhotos(ctx context.Context, files []UploadFile) ([]UploadResult, error) {
	if w.deps.Photos == nil {
		return nil, errors.New("wizard: photo uploads are not configured")
	}
	w.mu.Lock()
	err := w.usable()
	w.mu.Unlock()
	if err != nil {
		return nil, err
	}

	results := w.deps.Photos.UploadBatch(ctx, w.session.UserID, files)
	err = w.photos(func(l *domain.PhotoList) error {
		for i := range results {
			if !results[i].OK() {
				continue
			}
			l.Add(results[i].Photo)
			results[i].Photo = (*l)[len(*l)-1]
		}
		return nil
	})
	return results, err
}

// RemovePhoto drops a photo and renumbers the rest.
func (w *Wizard) RemovePhoto(i int) error {
	return w.photos(func(l *domain.PhotoList) error {
		if err := l.Remove(i); err != nil {
			return err
		}
		l.Reorder()
		return nil
	})
}

func (w *Wizard) SetPrimaryPhoto(i int) error {
	return w.photos(func(l *domain.PhotoList) error { return l.SetPrimary(i) })
}

func (w *Wizard) MovePhoto(i int, d domain.Direction) error {
	return w.photos(func(l *domain.PhotoList) error { return l.Move(i, d) })
}

// UpdatePhotoMeta changes caption, alt text and category of one photo.
func (w *Wizard) UpdatePhotoMeta(i int, caption, altText, category string) error {
	return w.photos(func(l *domain.PhotoList) error {
		if i < 0 || i >= len(*l) {
			return fmt.Errorf("update photo %d: %w", i, domain.ErrInvalidPhoto)
		}
		p := &(*l)[i]
		p.Caption, p.AltText = strings.TrimSpace(caption), strings.TrimSpace(altText)
		if c := strings.TrimSpace(category); c != "" {
			p.Category = c
		}
		return nil
	})
}

/********** submit **********/

type SubmitResult struct {
	PropertyID string `json:"property_id,omitempty"`
	Created    bool   `json:"created"`
	// Validation is the aggregated outcome; on failure FailedStep points at
	// the first step that needs attention and nothing was sent.
	Validation Result `json:"validation"`
	FailedStep int    `json:"failed_step"`
}

// Submit validates every step, converts the document and creates or updates
// the property. On any failure the document and the local draft are left as
// they were, so calling Submit again retries. After success the draft is
// cleared and the wizard is finished.
func (w *Wizard) Submit(ctx context.Context) (SubmitResult, error) {
	w.mu.Lock()
	if err := w.usable(); err != nil {
		w.mu.Unlock()
		return SubmitResult{}, err
	}
	if w.submitting {
		w.mu.Unlock()
		return SubmitResult{}, domain.ErrSubmitInProgress
	}
	if !w.steps.IsFinal() {
		w.mu.Unlock()
		return SubmitResult{}, fmt.Errorf("submit from step %d: %w", w.steps.Current(), domain.ErrInvalidStep)
	}
	w.submitting = true
	doc := w.doc.Clone()
	propertyID := w.propertyID
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.submitting = false
		w.mu.Unlock()
	}()

	res := SubmitResult{FailedStep: -1}
	res.Validation, res.FailedStep = w.validator.ValidateAll(w.steps.Steps(), doc)
	if !res.Validation.OK {
		observability.ObserveSubmit(submitMode(propertyID), "invalid")
		return res, nil
	}

	payload := ToPersistedEntity(doc)
	mode := submitMode(propertyID)
	if propertyID == "" {
		rec, err := w.deps.Gateway.Create(ctx, payload, w.session.UserID)
		if err != nil {
			observability.ObserveSubmit(mode, "error")
			return res, fmt.Errorf("create property: %w", err)
		}
		if propertyID = rec.ID(); propertyID == "" {
			observability.ObserveSubmit(mode, "error")
			return res, errors.New("create property: backend returned no id")
		}
		res.Created = true
		// remembered so a retry after a later failure updates instead of duplicating
		w.mu.Lock()
		w.propertyID = propertyID
		w.created = true
		w.mu.Unlock()
	} else {
		if _, err := w.deps.Gateway.Update(ctx, propertyID, payload); err != nil {
			observability.ObserveSubmit(mode, "error")
			return res, fmt.Errorf("update property %s: %w", propertyID, err)
		}
	}
	res.PropertyID = propertyID

	if err := w.deps.Gateway.ReplacePhotos(ctx, propertyID, ToPhotoRecords(doc, propertyID)); err != nil {
		observability.ObserveSubmit(mode, "error")
		return res, fmt.Errorf("save photos for %s: %w", propertyID, err)
	}

	w.mu.Lock()
	w.finished = true
	w.mu.Unlock()
	w.stopAutosave()

	if err := w.deps.Drafts.Clear(ctx, w.session.UserID); err != nil {
		log.Warn().Err(err).Str("user", w.session.UserID).Msg("draft clear failed")
	}
	w.autosave.Forget()
	observability.ObserveSubmit(mode, "ok")
	log.Info().Str("user", w.session.UserID).Str("property", propertyID).Bool("created", res.Created).Msg("listing submitted")

	w.publish(ctx, res, doc)
	return res, nil
}

func submitMode(propertyID string) string {
	if propertyID == "" {
		return "create"
	}
	return "update"
}

func (w *Wizard) publish(ctx context.Context, res SubmitResult, doc domain.WizardDocument) {
	if w.deps.Events == nil {
		return
	}
	ev := domain.ListingSubmitted{
		PropertyID:  res.PropertyID,
		OwnerID:     w.session.UserID,
		Title:       doc.Basic.Title,
		Category:    string(doc.Basic.Category),
		Created:     res.Created,
		PhotoCount:  len(doc.Photos),
		SubmittedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := w.deps.Events.PublishListingSubmitted(ctx, ev); err != nil {
		log.Warn().Err(err).Str("property", res.PropertyID).Msg("listing event publish failed")
	}
}

func (w *Wizard) stopAutosave() {
	if w.autosave != nil {
		w.autosave.Stop()
	}
	if w.cancel != nil {
		w.cancel()
	}
}

// Close stops the autosave timer. The draft is kept so the user can resume.
func (w *Wizard) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.mu.Unlock()
	w.stopAutosave()
	log.Debug().Str("user", w.session.UserID).Msg("wizard closed")
}
