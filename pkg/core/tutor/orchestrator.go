// Package tutor runs one conversational exchange end to end: load session
// history, call the generation vendor with the full history on every turn,
// decode the structured reply, and persist the new turns. Turns for the same
// session are serialized; concurrent requests queue behind each other rather
// than racing on history.
package tutor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fluently/lingua/pkg/core"
	"github.com/fluently/lingua/pkg/core/codec"
	"github.com/fluently/lingua/pkg/core/session"
	"github.com/fluently/lingua/pkg/core/types"
)

// DefaultVendorTimeout bounds a single exchange including retries. The
// vendor context is detached from the client's, so a client that gives up
// mid-call does not strand the session; this timeout is the server-side
// stop.
const DefaultVendorTimeout = 90 * time.Second

// Orchestrator coordinates session store, generation vendor, and codec for
// chat exchanges. All dependencies are injected.
type Orchestrator struct {
	store   session.Store
	gen     Generator
	locks   *session.KeyedMutex
	backoff BackoffPolicy
	sleep   sleepFunc
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithBackoff overrides the vendor retry policy.
func WithBackoff(policy BackoffPolicy) Option {
	return func(o *Orchestrator) {
		o.backoff = policy
	}
}

// WithVendorTimeout overrides the server-side bound on one exchange.
func WithVendorTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.timeout = d
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// withSleep overrides the retry sleep. Used by tests.
func withSleep(sleep sleepFunc) Option {
	return func(o *Orchestrator) {
		o.sleep = sleep
	}
}

// NewOrchestrator creates an Orchestrator over the given store and generator.
func NewOrchestrator(store session.Store, gen Generator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:   store,
		gen:     gen,
		locks:   session.NewKeyedMutex(),
		backoff: DefaultBackoff,
		sleep:   sleepContext,
		timeout: DefaultVendorTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// TurnRequest is one chat exchange request. Scenario non-empty marks a topic
// switch: the session is recreated and the tutor speaks first, so Text and
// Audio are ignored. Otherwise at least one of Text or Audio is required.
type TurnRequest struct {
	SessionID  string
	Language   string
	Scenario   string
	Privileged bool
	Text       string
	Audio      *types.AudioRef
}

// TurnResult is the outcome of a successful exchange.
type TurnResult struct {
	SessionID string
	Created   bool
	Profile   types.LanguageProfile
	Turn      *types.StructuredTurn
}

// RunTurn executes one exchange. On any vendor or decode failure the session
// is invalidated before the error is returned: a failed call leaves the
// vendor-side context consumption ambiguous, so the next request starts
// clean rather than on top of unknown state.
func (o *Orchestrator) RunTurn(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	profile, ok := types.ResolveLanguage(req.Language)
	if !ok {
		return nil, core.NewInvalidLanguageError(req.Language)
	}
	scenario, ok := types.ResolveScenario(req.Scenario)
	if !ok {
		return nil, core.NewInvalidScenarioError(req.Scenario)
	}

	userTurn := types.Turn{Role: types.RoleUser, Text: req.Text, Audio: req.Audio}
	if scenario == types.ScenarioNone && !userTurn.HasInput() {
		return nil, core.NewInvalidRequestErrorWithParam("message text or audio is required", "text")
	}

	id := req.SessionID
	if id == "" {
		id = uuid.NewString()
	}

	unlock := o.locks.Lock(id)
	defer unlock()

	sess, created, err := o.store.GetOrCreate(ctx, id, profile.Language, scenario, req.Privileged)
	if err != nil {
		return nil, err
	}

	greq := GenerateRequest{
		System:   systemInstruction(profile),
		Contents: contentsFromHistory(sess.Turns),
	}
	if scenario != types.ScenarioNone {
		greq.Contents = append(greq.Contents, Content{
			Role:  "user",
			Parts: []Part{{Text: openingInstruction(profile, scenario)}},
		})
	} else {
		greq.Contents = append(greq.Contents, userContent(userTurn))
	}

	// Detach from the client's context so a disconnect mid-call cannot
	// leave a half-persisted exchange. The server timeout is the bound.
	vctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.timeout)
	defer cancel()

	raw, err := withRetry(vctx, o.backoff, o.sleep, func(ctx context.Context) (string, error) {
		return o.gen.Generate(ctx, greq)
	})
	if err != nil {
		o.invalidate(vctx, id, "vendor call failed", err)
		return nil, normalizeVendorError(err)
	}

	structured, err := codec.Decode(raw)
	if err != nil {
		o.invalidate(vctx, id, "tutor output decode failed", err)
		return nil, core.NewDecodeError(err)
	}

	tutorTurn := types.Turn{
		Role:       types.RoleTutor,
		Text:       structured.Response.TargetText,
		Structured: structured,
	}
	var turns []types.Turn
	if scenario != types.ScenarioNone {
		// Scenario openings persist only the tutor's turn; the opening
		// instruction is synthetic and never enters history.
		turns = []types.Turn{tutorTurn}
	} else {
		turns = []types.Turn{userTurn, tutorTurn}
	}
	if err := o.store.Append(vctx, id, turns...); err != nil {
		return nil, err
	}

	return &TurnResult{
		SessionID: id,
		Created:   created,
		Profile:   profile,
		Turn:      structured,
	}, nil
}

// History returns the persisted turn list for a session.
func (o *Orchestrator) History(ctx context.Context, sessionID string) ([]types.Turn, error) {
	turns, err := o.store.History(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, core.NewSessionNotFoundError(sessionID)
		}
		return nil, err
	}
	return turns, nil
}

// EndSession removes the session outright.
func (o *Orchestrator) EndSession(ctx context.Context, sessionID string) error {
	unlock := o.locks.Lock(sessionID)
	defer unlock()
	if err := o.store.Invalidate(ctx, sessionID); err != nil && !errors.Is(err, session.ErrNotFound) {
		return err
	}
	return nil
}

func (o *Orchestrator) invalidate(ctx context.Context, id, reason string, cause error) {
	if err := o.store.Invalidate(ctx, id); err != nil && !errors.Is(err, session.ErrNotFound) {
		o.logger.Error("session invalidation failed", "session_id", id, "error", err)
		return
	}
	o.logger.Warn("session invalidated", "session_id", id, "reason", reason, "error", cause)
}

// contentsFromHistory maps persisted turns to vendor contents. Tutor turns
// are replayed in their canonical JSON form so the model sees its own prior
// output in the shape it was asked to produce.
func contentsFromHistory(turns []types.Turn) []Content {
	contents := make([]Content, 0, len(turns))
	for _, t := range turns {
		switch t.Role {
		case types.RoleTutor:
			text := t.Text
			if t.Structured != nil {
				if enc, err := codec.Encode(t.Structured); err == nil {
					text = enc
				}
			}
			contents = append(contents, Content{Role: "model", Parts: []Part{{Text: text}}})
		default:
			contents = append(contents, userContent(t))
		}
	}
	return contents
}

func userContent(t types.Turn) Content {
	var parts []Part
	if t.Text != "" {
		parts = append(parts, Part{Text: t.Text})
	}
	if t.Audio != nil && t.Audio.Data != "" {
		parts = append(parts, Part{Inline: &InlineData{
			MIMEType: t.Audio.MIMEType,
			Data:     t.Audio.Data,
		}})
	}
	return Content{Role: "user", Parts: parts}
}

// normalizeVendorError maps a vendor failure to the canonical taxonomy.
// Canonical errors pass through untouched; everything else is wrapped as a
// vendor error so the client sees one shape.
func normalizeVendorError(err error) error {
	var ce *core.Error
	if errors.As(err, &ce) {
		return ce
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return core.NewOverloadedError("the tutor took too long to respond, please try again")
	}
	return core.NewVendorError("generation", err)
}
