package editor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/cyp0633/recuredit/recurrence"
	"github.com/cyp0633/recuredit/storage"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/cyp0633/recuredit/editor"

// DefaultDateFormat is used for row labels when a session does not choose one
const DefaultDateFormat = time.RFC3339

// OpenRequest describes a new editing session
type OpenRequest struct {
	RuleText string
	// Start anchors the rules; the current time is used when zero
	Start time.Time
	// Location names the IANA zone rows are shown in; defaults to Start's zone
	Location   string
	DateFormat string
}

// Row is one displayed occurrence
type Row struct {
	Index    int
	Instant  time.Time
	Excluded bool
	Label    string
}

// View is the expansion of a session as shown to the user
type View struct {
	Session *Session
	Result  *recurrence.Result
	// RuleError is set when the rule text could not be parsed; the rule is then treated as empty
	RuleError error
	Rows      []Row

	rules *recurrence.RuleSet
}

// ExcludedInstants returns the instants of the rows currently marked excluded
func (v *View) ExcludedInstants() []time.Time {
	var out []time.Time
	for _, r := range v.Rows {
		if r.Excluded {
			out = append(out, r.Instant)
		}
	}
	return out
}

// Editor drives editing sessions: expansion, "show more", exclusion toggles and submit
type Editor struct {
	engine     *recurrence.Engine
	store      SessionStore
	objects    storage.Storage
	expansions *expansionCache
	logger     *slog.Logger
	now        func() time.Time

	cacheSize int
	cacheTTL  time.Duration
}

// Option configures an Editor
type Option func(*Editor)

// WithLogger sets the logger for the editor
func WithLogger(logger *slog.Logger) Option {
	return func(e *Editor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(e *Editor) {
		if now != nil {
			e.now = now
		}
	}
}

// WithObjectStore enables sessions bound to stored calendar objects
func WithObjectStore(objects storage.Storage) Option {
	return func(e *Editor) {
		e.objects = objects
	}
}

// WithExpansionCache bounds the in-process cache of open expansions that lets
// "show more" continue from the rows already produced. maxEntries <= 0 disables it.
func WithExpansionCache(maxEntries int, ttl time.Duration) Option {
	return func(e *Editor) {
		e.cacheSize = maxEntries
		e.cacheTTL = ttl
	}
}

// New creates an editor over an engine and a session store
func New(engine *recurrence.Engine, store SessionStore, opts ...Option) *Editor {
	e := &Editor{
		engine:    engine,
		store:     store,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:       time.Now,
		cacheSize: DefaultExpansionCacheSize,
		cacheTTL:  DefaultExpansionCacheTTL,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.expansions = newExpansionCache(e.cacheSize, e.cacheTTL, e.now)
	return e
}

// ExpansionStats returns usage counters of the expansion cache
func (e *Editor) ExpansionStats() ExpansionStats {
	return e.expansions.stats()
}

func (e *Editor) startSpan(ctx context.Context, name, id string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name,
		trace.WithAttributes(attribute.String("recuredit.session_id", id)),
	)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// Open creates and stores a new session at multiplier 1
func (e *Editor) Open(ctx context.Context, req OpenRequest) (s *Session, err error) {
	ctx, span := e.startSpan(ctx, "editor.open", "")
	defer func() { endSpan(span, err) }()

	return e.open(ctx, req, nil)
}

func (e *Editor) open(ctx context.Context, req OpenRequest, ref *ObjectRef) (*Session, error) {
	now := e.now()

	loc, err := e.resolveLocation(req.Location, req.Start)
	if err != nil {
		return nil, err
	}

	start := req.Start
	if start.IsZero() {
		start = now.Truncate(time.Second)
	}

	format := req.DateFormat
	if format == "" {
		format = DefaultDateFormat
	}

	s := &Session{
		ID:         uuid.NewString(),
		Owner:      OwnerFromContext(ctx),
		RuleText:   req.RuleText,
		Start:      start.In(loc),
		Location:   loc.String(),
		DateFormat: format,
		Multiplier: 1,
		ObjectRef:  ref,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := e.store.Put(ctx, s); err != nil {
		e.logger.ErrorContext(ctx, "failed to store session",
			"error", err,
			"session_id", s.ID)
		return nil, fmt.Errorf("store session: %w", err)
	}

	e.logger.InfoContext(ctx, "opened session",
		"session_id", s.ID,
		"owner", s.Owner,
		"location", s.Location,
		"bound", ref != nil)
	return s, nil
}

func (e *Editor) resolveLocation(name string, start time.Time) (*time.Location, error) {
	if name == "" {
		if !start.IsZero() {
			return offsetZone(start.Location(), start), nil
		}
		if loc := e.engine.Config().Location; loc != nil {
			return loc, nil
		}
		return time.UTC, nil
	}

	return loadLocation(name)
}

// OpenObject opens a session on the recurrence of a stored calendar object.
// The request's RuleText is ignored and its Start only used when the object has no DTSTART.
func (e *Editor) OpenObject(ctx context.Context, userID, objectID string, req OpenRequest) (s *Session, err error) {
	ctx, span := e.startSpan(ctx, "editor.open_object", "")
	defer func() { endSpan(span, err) }()

	if e.objects == nil {
		return nil, &Error{Type: ErrNoObjectStore, Message: "no calendar object store configured"}
	}

	obj, err := e.objects.GetObject(ctx, userID, objectID)
	if err != nil {
		return nil, err
	}

	text, start, err := recurrence.RuleTextFromComponent(obj.Component)
	if err != nil {
		return nil, err
	}
	req.RuleText = text
	if !start.IsZero() {
		req.Start = start
	}

	return e.open(ctx, req, &ObjectRef{UserID: userID, ObjectID: objectID, ETag: obj.ETag})
}

func (e *Editor) load(ctx context.Context, id string) (*Session, error) {
	opt, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	s, ok := opt.Get()
	if !ok {
		return nil, notFound(id)
	}
	if owner := OwnerFromContext(ctx); s.Owner != owner {
		e.logger.WarnContext(ctx, "session requested by another user",
			"session_id", id,
			"owner", s.Owner,
			"user", owner)
		return nil, notFound(id)
	}
	return s, nil
}

func (e *Editor) save(ctx context.Context, s *Session) error {
	s.UpdatedAt = e.now()
	if err := e.store.Put(ctx, s); err != nil {
		e.logger.ErrorContext(ctx, "failed to store session",
			"error", err,
			"session_id", s.ID)
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

// Expand reconciles the session's rule at its current multiplier
func (e *Editor) Expand(ctx context.Context, id string) (v *View, err error) {
	ctx, span := e.startSpan(ctx, "editor.expand", id)
	defer func() { endSpan(span, err) }()

	s, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return e.view(ctx, s)
}

// ShowMore grows the session's horizon by one step and expands it
func (e *Editor) ShowMore(ctx context.Context, id string) (v *View, err error) {
	ctx, span := e.startSpan(ctx, "editor.show_more", id)
	defer func() { endSpan(span, err) }()

	s, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}

	s.Multiplier++
	if err := e.save(ctx, s); err != nil {
		return nil, err
	}

	e.logger.DebugContext(ctx, "showing more occurrences",
		"session_id", s.ID,
		"multiplier", s.Multiplier)
	return e.view(ctx, s)
}

// Toggle flips the exclusion of each displayed row index
func (e *Editor) Toggle(ctx context.Context, id string, indices ...int) (v *View, err error) {
	ctx, span := e.startSpan(ctx, "editor.toggle", id)
	defer func() { endSpan(span, err) }()

	s, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}
	v, err = e.view(ctx, s)
	if err != nil {
		return nil, err
	}
	if err := checkIndices(v, indices); err != nil {
		return nil, err
	}

	for _, idx := range indices {
		row := &v.Rows[idx]
		row.Excluded = !row.Excluded
		s.setOverride(row.Instant, row.Excluded, v.Result.Occurrences[idx].Excluded)
	}

	if err := e.save(ctx, s); err != nil {
		return nil, err
	}
	return v, nil
}

// Select marks exactly the given row indices as excluded, like a submitted form
// of checkboxes. Every other displayed row is included.
func (e *Editor) Select(ctx context.Context, id string, indices []int) (v *View, err error) {
	ctx, span := e.startSpan(ctx, "editor.select", id)
	defer func() { endSpan(span, err) }()

	s, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}
	v, err = e.view(ctx, s)
	if err != nil {
		return nil, err
	}
	if err := checkIndices(v, indices); err != nil {
		return nil, err
	}

	chosen := make(map[int]bool, len(indices))
	for _, idx := range indices {
		chosen[idx] = true
	}
	for i := range v.Rows {
		row := &v.Rows[i]
		row.Excluded = chosen[i]
		s.setOverride(row.Instant, row.Excluded, v.Result.Occurrences[i].Excluded)
	}

	if err := e.save(ctx, s); err != nil {
		return nil, err
	}
	return v, nil
}

func checkIndices(v *View, indices []int) error {
	for _, idx := range indices {
		if idx < 0 || idx >= len(v.Rows) {
			return &Error{
				Type:    ErrInvalidIndex,
				Message: fmt.Sprintf("index %d is not displayed (%d rows)", idx, len(v.Rows)),
			}
		}
	}
	return nil
}

// Submit serializes the rules with the excluded displayed occurrences and
// stores the text on the session. Stored exclusions that matched nothing are
// dropped. Bound sessions also write the text back to their calendar object.
func (e *Editor) Submit(ctx context.Context, id string) (text string, err error) {
	ctx, span := e.startSpan(ctx, "editor.submit", id)
	defer func() { endSpan(span, err) }()

	s, err := e.load(ctx, id)
	if err != nil {
		return "", err
	}
	v, err := e.view(ctx, s)
	if err != nil {
		return "", err
	}
	if v.RuleError != nil {
		return "", v.RuleError
	}

	excluded := v.ExcludedInstants()
	text = e.engine.Serialize(v.rules, excluded)

	if s.ObjectRef != nil {
		etag, err := e.writeBack(ctx, s.ObjectRef, text)
		if err != nil {
			return "", err
		}
		s.ObjectRef.ETag = etag
	}

	s.RuleText = text
	s.Overrides = nil
	if err := e.save(ctx, s); err != nil {
		return "", err
	}

	e.logger.InfoContext(ctx, "submitted rule",
		"session_id", s.ID,
		"excluded", len(excluded),
		"dropped", len(v.Result.Unmatched)+len(v.Result.OutOfRange))
	return text, nil
}

func (e *Editor) writeBack(ctx context.Context, ref *ObjectRef, text string) (string, error) {
	if e.objects == nil {
		return "", &Error{Type: ErrNoObjectStore, Message: "session is bound to an object but no object store is configured"}
	}

	obj, err := e.objects.GetObject(ctx, ref.UserID, ref.ObjectID)
	if err != nil {
		return "", err
	}
	if obj.ETag != ref.ETag {
		e.logger.WarnContext(ctx, "calendar object changed since the session was opened",
			"user_id", ref.UserID,
			"object_id", ref.ObjectID,
			"session_etag", ref.ETag,
			"stored_etag", obj.ETag)
		return "", &Error{
			Type:    ErrConflict,
			Message: fmt.Sprintf("object %s changed since the session was opened", ref.ObjectID),
		}
	}
	if err := recurrence.ApplyRuleText(obj.Component, text); err != nil {
		return "", err
	}

	// The ETag read with the object makes the update conditional
	etag, err := e.objects.UpdateObject(ctx, obj)
	if storage.IsPreconditionFailed(err) {
		return "", &Error{
			Type:    ErrConflict,
			Message: fmt.Sprintf("object %s changed while submitting", ref.ObjectID),
			Err:     err,
		}
	}
	if err != nil {
		e.logger.ErrorContext(ctx, "failed to update calendar object",
			"error", err,
			"user_id", ref.UserID,
			"object_id", ref.ObjectID)
		return "", err
	}
	return etag, nil
}

// Close discards a session
func (e *Editor) Close(ctx context.Context, id string) (err error) {
	ctx, span := e.startSpan(ctx, "editor.close", id)
	defer func() { endSpan(span, err) }()

	opt, err := e.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if s, ok := opt.Get(); ok && s.Owner != OwnerFromContext(ctx) {
		return notFound(id)
	}

	if err := e.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	e.expansions.drop(id)
	e.logger.InfoContext(ctx, "closed session",
		"session_id", id)
	return nil
}

// view expands a session and applies its overrides to the rows
func (e *Editor) view(ctx context.Context, s *Session) (*View, error) {
	loc, err := s.TimeZone()
	if err != nil {
		return nil, err
	}

	v := &View{Session: s}
	result, rules, err := e.expand(ctx, s, loc)
	switch {
	case err == nil:
		v.Result, v.rules = result, rules
	case recurrence.IsType(err, recurrence.ErrRuleParse):
		e.logger.WarnContext(ctx, "rule text does not parse, treating rule as empty",
			"session_id", s.ID,
			"error", err)
		h, herr := e.engine.Horizon(s.Multiplier)
		if herr != nil {
			return nil, herr
		}
		v.RuleError = err
		v.Result = recurrence.Reconcile(nil, nil, h)
	default:
		return nil, err
	}

	v.Rows = make([]Row, len(v.Result.Occurrences))
	for i, o := range v.Result.Occurrences {
		excluded := o.Excluded
		if choice, ok := s.override(o.Instant); ok {
			excluded = choice
		}
		v.Rows[i] = Row{
			Index:    o.Index,
			Instant:  o.Instant,
			Excluded: excluded,
			Label:    o.Instant.In(loc).Format(s.DateFormat),
		}
	}
	return v, nil
}

// expand reconciles the session at its multiplier. A cached expansion of the
// same rule is grown in place; otherwise a new one is opened and cached.
func (e *Editor) expand(ctx context.Context, s *Session, loc *time.Location) (*recurrence.Result, *recurrence.RuleSet, error) {
	start := s.Start.In(loc)
	key := expansionKey{ruleText: s.RuleText, start: start.UnixNano(), location: loc.String()}

	if entry := e.expansions.get(s.ID, key); entry != nil {
		entry.mu.Lock()
		result, err := entry.exp.Expand(s.Multiplier)
		entry.mu.Unlock()
		if err == nil {
			return result, entry.exp.Rules, nil
		}
		// A horizon below the cached one cannot be reached by growing it
		e.logger.DebugContext(ctx, "restarting cached expansion",
			"session_id", s.ID,
			"error", err)
		e.expansions.drop(s.ID)
	}

	exp, err := e.engine.Open(s.RuleText, start)
	if err != nil {
		return nil, nil, err
	}
	result, err := exp.Expand(s.Multiplier)
	if err != nil {
		return nil, nil, err
	}
	e.expansions.put(s.ID, key, exp)
	return result, exp.Rules, nil
}

// IsNotFound reports whether err means a session or calendar object is missing
func IsNotFound(err error) bool {
	return IsType(err, ErrSessionNotFound) || storage.IsNotFound(err)
}

// IsConflict reports whether err means the calendar object changed under the session
func IsConflict(err error) bool {
	return IsType(err, ErrConflict) || storage.IsPreconditionFailed(err)
}

// IsBadRequest reports whether err was caused by the caller's input
func IsBadRequest(err error) bool {
	var se *storage.Error
	return IsType(err, ErrInvalidIndex) ||
		IsType(err, ErrInvalidRequest) ||
		recurrence.IsType(err, recurrence.ErrRuleParse) ||
		recurrence.IsType(err, recurrence.ErrInvalidHorizonInput) ||
		(errors.As(err, &se) && se.Type == storage.ErrInvalidInput)
}
