package pipeline

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/blue-scarf/paystamp/constants"
	"github.com/blue-scarf/paystamp/internal/catalog"
	"github.com/blue-scarf/paystamp/internal/common"
	"github.com/blue-scarf/paystamp/internal/document"
	"github.com/blue-scarf/paystamp/internal/extract"
	"github.com/blue-scarf/paystamp/internal/llm"
	"github.com/blue-scarf/paystamp/internal/match"
	"github.com/blue-scarf/paystamp/internal/metrics"
	"github.com/blue-scarf/paystamp/internal/parser"
	"github.com/blue-scarf/paystamp/internal/stamp"
)

// Orchestrator runs sessions through the pipeline. All session mutation goes
// through it; per-session locks keep concurrent requests for one session
// serialized while independent sessions proceed in parallel.
type Orchestrator struct {
	store     *Store
	extractor extract.TextExtractor
	parser    *parser.Parser
	matcher   *match.Matcher
	catalog   *catalog.Store
	composer  *stamp.Composer
	fallback  llm.FieldExtractor // nil disables model-assisted recovery
	approver  string
	logger    *slog.Logger

	now func() time.Time

	locks sync.Map // uuid.UUID -> *sync.Mutex
	docs  sync.Map // uuid.UUID -> *document.Document (decoded originals)
}

// Deps wires the Orchestrator's collaborators. Fallback is optional;
// everything else is required.
type Deps struct {
	Store     *Store
	Extractor extract.TextExtractor
	Parser    *parser.Parser
	Matcher   *match.Matcher
	Catalog   *catalog.Store
	Composer  *stamp.Composer
	Fallback  llm.FieldExtractor
	Approver  string
	Logger    *slog.Logger
}

// NewOrchestrator builds an Orchestrator. A nil logger falls back to
// slog.Default().
func NewOrchestrator(d Deps) *Orchestrator {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		store:     d.Store,
		extractor: d.Extractor,
		parser:    d.Parser,
		matcher:   d.Matcher,
		catalog:   d.Catalog,
		composer:  d.Composer,
		fallback:  d.Fallback,
		approver:  d.Approver,
		logger:    logger,
		now:       time.Now,
	}
}

func (o *Orchestrator) lock(id uuid.UUID) func() {
	mu, _ := o.locks.LoadOrStore(id, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

// Create registers an upload and runs it through recognition, parsing, and
// vendor resolution. Stage failures land the session in ERROR rather than
// failing the call; only an unreadable upload is rejected outright.
func (o *Orchestrator) Create(ctx context.Context, name string, pages [][]byte) (*Session, error) {
	doc, err := document.Decode(name, pages...)
	if err != nil {
		return nil, common.NewAppError(common.ErrInvalidInput, "upload rejected", err)
	}

	s := newSession(name, doc.PageCount())
	metrics.SessionsStartedTotal.Inc()
	o.logger.Info("session.create", "session_id", s.ID, "name", name, "pages", doc.PageCount())

	if err := o.store.SavePages(ctx, s.ID, false, pages); err != nil {
		return nil, common.NewAppError(common.ErrInternal, "persist upload", err)
	}
	o.docs.Store(s.ID, doc)

	o.process(ctx, s, pages)
	if err := o.store.Save(ctx, s); err != nil {
		return nil, common.NewAppError(common.ErrInternal, "persist session", err)
	}
	return s, nil
}

// process runs the automatic stages, stopping at the first failure, which
// is recorded on the session.
func (o *Orchestrator) process(ctx context.Context, s *Session, pages [][]byte) {
	ctx = common.WithSessionID(ctx, s.ID.String())
	if err := o.runExtract(ctx, s, pages); err != nil {
		s.fail(err)
		return
	}
	if err := o.runParse(ctx, s); err != nil {
		s.fail(err)
		return
	}
	o.runMatch(s)
}

func (o *Orchestrator) runExtract(ctx context.Context, s *Session, pages [][]byte) error {
	start := o.now()
	var all extract.RawExtraction
	for i, page := range pages {
		raw, err := o.extractor.Extract(ctx, page)
		if err != nil {
			metrics.StageFailuresTotal.WithLabelValues("extract").Inc()
			o.logger.Error("session.extract.failed", "session_id", s.ID, "page", i, "err", err)
			return fmt.Errorf("recognize page %d: %w", i, err)
		}
		all.Lines = append(all.Lines, raw.Lines...)
		all.Method = raw.Method
		all.Language = raw.Language
	}
	all.Duration = time.Since(start)
	s.Raw = &all
	metrics.StageDuration.WithLabelValues("extract").Observe(time.Since(start).Seconds())
	o.logger.Info("session.extract.ok",
		"session_id", s.ID, "lines", len(all.Lines), "method", all.Method)
	return s.advance(constants.StateExtracted, "")
}

func (o *Orchestrator) runParse(ctx context.Context, s *Session) error {
	start := o.now()
	fields, err := o.parser.Parse(*s.Raw)
	if err != nil {
		metrics.StageFailuresTotal.WithLabelValues("parse").Inc()
		o.logger.Error("session.parse.failed", "session_id", s.ID, "err", err)
		return err
	}
	s.Fields = fields
	metrics.StageDuration.WithLabelValues("parse").Observe(time.Since(start).Seconds())

	if o.fallback != nil && fields.NeedsReview() {
		o.runFallback(ctx, s)
	}
	o.logger.Info("session.parse.ok",
		"session_id", s.ID,
		"vendor", fields.VendorName,
		"missing", len(fields.Missing),
		"needs_review", fields.NeedsReview())
	return s.advance(constants.StateParsed, "")
}

// runFallback asks the configured model for the fields anchored parsing
// could not recover. Model answers only fill gaps and stay low-confidence;
// they never override an anchored value, and a fallback failure never fails
// the session.
func (o *Orchestrator) runFallback(ctx context.Context, s *Session) {
	missing := make([]string, 0, len(s.Fields.Missing))
	for _, f := range s.Fields.Missing {
		missing = append(missing, string(f))
	}

	req := llm.ExtractRequest{
		RecognizedText: s.Raw.Text(),
		FilenameHint:   s.DocumentName,
		MissingFields:  missing,
		KnownVendors:   o.catalog.Snapshot().Vendors(),
	}
	got, _, err := o.fallback.ExtractFields(ctx, req)
	if err != nil {
		metrics.FallbackRequestsTotal.WithLabelValues("error").Inc()
		o.logger.Warn("session.fallback.failed", "session_id", s.ID, "err", err)
		return
	}
	metrics.FallbackRequestsTotal.WithLabelValues("ok").Inc()

	fill := func(field constants.Field, value string) {
		if value == "" || !s.Fields.IsMissing(field) {
			return
		}
		if err := s.Fields.FillFromFallback(field, value); err != nil {
			o.logger.Warn("session.fallback.reject",
				"session_id", s.ID, "field", field, "err", err)
		}
	}
	fill(constants.FieldVendorName, got.VendorName)
	fill(constants.FieldApplicationNumber, got.ApplicationNumber)
	fill(constants.FieldPeriodTo, got.PeriodTo)
	fill(constants.FieldTotalCompleted, got.TotalCompleted)
	fill(constants.FieldAmountDue, got.AmountDue)
	fill(constants.FieldRetainage, got.Retainage)
	o.logger.Info("session.fallback.ok", "session_id", s.ID, "asked_for", missing)
}

func (o *Orchestrator) runMatch(s *Session) {
	start := o.now()
	o.resolveVendor(s)
	metrics.StageDuration.WithLabelValues("match").Observe(time.Since(start).Seconds())

	if err := s.advance(constants.StateMatched, string(s.Match.Outcome)); err != nil {
		s.fail(err)
		return
	}
	if err := s.advance(constants.StateAwaitingVerification, ""); err != nil {
		s.fail(err)
	}
}

// resolveVendor runs the matcher and fixes the commitment selection. A
// readable prior stamp names the commitment directly and wins over a failed
// match.
func (o *Orchestrator) resolveVendor(s *Session) {
	res := o.matcher.Resolve(s.Fields.VendorName, o.catalog.Snapshot())
	s.Match = &res
	metrics.MatchOutcomesTotal.WithLabelValues(string(res.Outcome)).Inc()

	switch {
	case res.Outcome == match.OutcomeMatched:
		s.SelectedCommitmentID = res.Best.Record.CommitmentID
		s.SelectedCostCode = res.Best.Record.CostCode
	case s.Fields.SuggestedCommitmentID != "":
		s.SelectedCommitmentID = s.Fields.SuggestedCommitmentID
		s.SelectedCostCode = s.Fields.SuggestedCostCode
	default:
		s.SelectedCommitmentID = ""
		s.SelectedCostCode = ""
	}
	s.UpdatedAt = o.now().UTC()
}

// Get returns the session snapshot.
func (o *Orchestrator) Get(ctx context.Context, id uuid.UUID) (*Session, error) {
	return o.store.Get(ctx, id)
}

// List returns summaries of all sessions, newest first.
func (o *Orchestrator) List(ctx context.Context) ([]SessionSummary, error) {
	return o.store.List(ctx)
}

// EditFields applies reviewer overrides during verification. Changing the
// vendor name re-runs resolution against the current catalog.
func (o *Orchestrator) EditFields(ctx context.Context, id uuid.UUID, updates map[constants.Field]string) (*Session, error) {
	defer o.lock(id)()

	s, err := o.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.State != constants.StateAwaitingVerification {
		return nil, common.NewAppError(common.ErrInvalidState,
			fmt.Sprintf("cannot edit fields in state %s", s.State), nil)
	}

	vendorBefore := s.Fields.VendorName
	for field, value := range updates {
		if !field.Valid() {
			return nil, common.NewAppError(common.ErrInvalidInput,
				fmt.Sprintf("unknown field %q", field), nil)
		}
		if err := s.Fields.SetField(field, value); err != nil {
			return nil, common.NewAppError(common.ErrValidation, err.Error(), nil)
		}
		o.logger.Info("session.field.edit", "session_id", s.ID, "field", field)
	}

	if s.Fields.VendorName != vendorBefore {
		o.resolveVendor(s)
	}
	s.UpdatedAt = o.now().UTC()
	if err := o.store.Save(ctx, s); err != nil {
		return nil, common.NewAppError(common.ErrInternal, "persist session", err)
	}
	return s, nil
}

// Rematch re-runs vendor resolution against the current catalog snapshot,
// e.g. after a catalog reload.
func (o *Orchestrator) Rematch(ctx context.Context, id uuid.UUID) (*Session, error) {
	defer o.lock(id)()

	s, err := o.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.State != constants.StateAwaitingVerification {
		return nil, common.NewAppError(common.ErrInvalidState,
			fmt.Sprintf("cannot rematch in state %s", s.State), nil)
	}
	o.resolveVendor(s)
	if err := o.store.Save(ctx, s); err != nil {
		return nil, common.NewAppError(common.ErrInternal, "persist session", err)
	}
	return s, nil
}

// SelectMatch records a reviewer's explicit pick among the offered
// candidates, or straight from the catalog when scoring offered nothing.
func (o *Orchestrator) SelectMatch(ctx context.Context, id uuid.UUID, commitmentID string) (*Session, error) {
	defer o.lock(id)()

	s, err := o.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.State != constants.StateAwaitingVerification {
		return nil, common.NewAppError(common.ErrInvalidState,
			fmt.Sprintf("cannot select a match in state %s", s.State), nil)
	}

	var picked *catalog.Record
	if s.Match != nil {
		for i := range s.Match.Alternates {
			if s.Match.Alternates[i].Record.CommitmentID == commitmentID {
				picked = &s.Match.Alternates[i].Record
				break
			}
		}
	}
	if picked == nil {
		for _, rec := range o.catalog.Snapshot().Records() {
			if rec.CommitmentID == commitmentID {
				r := rec
				picked = &r
				break
			}
		}
	}
	if picked == nil {
		return nil, common.NewAppError(common.ErrNotFound,
			fmt.Sprintf("commitment %q not in candidates or catalog", commitmentID), nil)
	}

	s.SelectedCommitmentID = picked.CommitmentID
	s.SelectedCostCode = picked.CostCode
	s.UpdatedAt = o.now().UTC()
	o.logger.Info("session.match.selected",
		"session_id", s.ID, "commitment_id", picked.CommitmentID)
	if err := o.store.Save(ctx, s); err != nil {
		return nil, common.NewAppError(common.ErrInternal, "persist session", err)
	}
	return s, nil
}

// Stamp composes the approval block onto the first page once verification is
// complete. A prior stamp region, when detected, is replaced in place.
func (o *Orchestrator) Stamp(ctx context.Context, id uuid.UUID) (*Session, error) {
	defer o.lock(id)()

	s, err := o.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.ReadyToStamp(); err != nil {
		return nil, err
	}

	doc, err := o.document(ctx, s)
	if err != nil {
		return nil, err
	}

	blk := stamp.Stamp{
		CommitmentID:   s.SelectedCommitmentID,
		CostCode:       s.SelectedCostCode,
		AmountDueCents: s.Fields.AmountDueCents,
		RetainageCents: s.Fields.RetainageCents,
		Approver:       o.approver,
		Date:           o.now(),
	}

	var prior *image.Rectangle
	if s.Raw != nil {
		if r, ok := stamp.DetectRegion(s.Raw.Lines); ok {
			prior = &r
			o.logger.Info("session.stamp.prior_found", "session_id", s.ID, "region", r.String())
		}
	}

	start := o.now()
	stamped, layout, err := o.composer.Compose(doc, 0, blk, prior)
	if err != nil {
		metrics.StageFailuresTotal.WithLabelValues("stamp").Inc()
		s.fail(err)
		_ = o.store.Save(ctx, s)
		return nil, common.NewAppError(common.ErrInternal, "compose stamp", err)
	}
	metrics.StageDuration.WithLabelValues("stamp").Observe(time.Since(start).Seconds())

	pages := make([][]byte, stamped.PageCount())
	for i := range pages {
		png, err := stamped.EncodePNG(i)
		if err != nil {
			return nil, common.NewAppError(common.ErrInternal, "encode stamped page", err)
		}
		pages[i] = png
	}
	if err := o.store.SavePages(ctx, s.ID, true, pages); err != nil {
		return nil, common.NewAppError(common.ErrInternal, "persist stamped pages", err)
	}

	now := o.now().UTC()
	s.StampedAt = &now
	if err := s.advance(constants.StateStamped, ""); err != nil {
		return nil, err
	}
	metrics.SessionsStampedTotal.Inc()
	o.logger.Info("session.stamp.ok",
		"session_id", s.ID,
		"commitment_id", blk.CommitmentID,
		"box", layout.Box.String(),
		"replaced_prior", layout.Replaced)
	if err := o.store.Save(ctx, s); err != nil {
		return nil, common.NewAppError(common.ErrInternal, "persist session", err)
	}
	return s, nil
}

// Deliver marks a stamped session delivered and returns its pages.
// Delivered sessions can be fetched again.
func (o *Orchestrator) Deliver(ctx context.Context, id uuid.UUID) (*Session, [][]byte, error) {
	defer o.lock(id)()

	s, err := o.store.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if s.State != constants.StateStamped && s.State != constants.StateDelivered {
		return nil, nil, common.NewAppError(common.ErrInvalidState,
			fmt.Sprintf("cannot deliver in state %s", s.State), nil)
	}
	pages, err := o.store.LoadPages(ctx, s.ID, true)
	if err != nil {
		return nil, nil, common.NewAppError(common.ErrInternal, "load stamped output", err)
	}
	if s.State == constants.StateStamped {
		if err := s.advance(constants.StateDelivered, ""); err != nil {
			return nil, nil, err
		}
		if err := o.store.Save(ctx, s); err != nil {
			return nil, nil, common.NewAppError(common.ErrInternal, "persist session", err)
		}
	}
	o.logger.Info("session.deliver.ok", "session_id", s.ID, "pages", len(pages))
	return s, pages, nil
}

// Page renders one page as PNG, scaled to fit maxWidth when non-zero. The
// stamped rendition is preferred once it exists.
func (o *Orchestrator) Page(ctx context.Context, id uuid.UUID, page, maxWidth int) ([]byte, error) {
	s, err := o.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	stampedSide := s.State == constants.StateStamped || s.State == constants.StateDelivered
	raw, err := o.store.LoadPages(ctx, id, stampedSide)
	if err != nil {
		return nil, err
	}
	doc, err := document.Decode(s.DocumentName, raw...)
	if err != nil {
		return nil, common.NewAppError(common.ErrInternal, "decode stored pages", err)
	}
	png, err := doc.PreviewPNG(page, maxWidth)
	if err != nil {
		return nil, common.NewAppError(common.ErrInvalidInput, "render page", err)
	}
	return png, nil
}

// Reset reprocesses the session from its stored extraction, discarding
// overrides, matches, and any ERROR. The upload is never re-recognized.
func (o *Orchestrator) Reset(ctx context.Context, id uuid.UUID) (*Session, error) {
	defer o.lock(id)()

	s, err := o.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	switch s.State {
	case constants.StateError:
		if s.Raw == nil {
			return nil, common.NewAppError(common.ErrInvalidState,
				"nothing recognized yet; upload the document again", nil)
		}
		s.LastError = ""
		s.LastGoodState = ""
		s.record(constants.StateExtracted, "reset")
	case constants.StateAwaitingVerification:
		if err := s.advance(constants.StateExtracted, "reset"); err != nil {
			return nil, err
		}
	default:
		return nil, common.NewAppError(common.ErrInvalidState,
			fmt.Sprintf("cannot reset in state %s", s.State), nil)
	}

	s.Fields = nil
	s.Match = nil
	s.SelectedCommitmentID = ""
	s.SelectedCostCode = ""
	s.StampedAt = nil

	if err := o.runParse(ctx, s); err != nil {
		s.fail(err)
	} else {
		o.runMatch(s)
	}
	if err := o.store.Save(ctx, s); err != nil {
		return nil, common.NewAppError(common.ErrInternal, "persist session", err)
	}
	o.logger.Info("session.reset", "session_id", s.ID, "state", s.State)
	return s, nil
}

// Delete removes the session and all stored pages.
func (o *Orchestrator) Delete(ctx context.Context, id uuid.UUID) error {
	defer o.lock(id)()
	o.docs.Delete(id)
	return o.store.Delete(ctx, id)
}

// document returns the decoded original, rehydrating from stored pages
// after a restart.
func (o *Orchestrator) document(ctx context.Context, s *Session) (*document.Document, error) {
	if cached, ok := o.docs.Load(s.ID); ok {
		return cached.(*document.Document), nil
	}
	raw, err := o.store.LoadPages(ctx, s.ID, false)
	if err != nil {
		return nil, common.NewAppError(common.ErrInternal, "load original pages", err)
	}
	doc, err := document.Decode(s.DocumentName, raw...)
	if err != nil {
		return nil, common.NewAppError(common.ErrInternal, "decode original pages", err)
	}
	o.docs.Store(s.ID, doc)
	return doc, nil
}
