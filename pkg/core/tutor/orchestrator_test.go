package tutor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/fluently/lingua/pkg/core"
	"github.com/fluently/lingua/pkg/core/session"
	"github.com/fluently/lingua/pkg/core/types"
)

const validReply = `{"correction":{"hasMistake":false},"response":{"targetText":"Bonjour !","english":"Hello!","chinese":"你好！"}}`

// fakeGenerator scripts vendor responses per call and records the requests
// it saw.
type fakeGenerator struct {
	responses []string
	errs      []error
	calls     int
	requests  []GenerateRequest
}

func (f *fakeGenerator) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	i := f.calls
	f.calls++
	f.requests = append(f.requests, req)
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return validReply, nil
}

func newTestOrchestrator(t *testing.T, gen Generator, opts ...Option) (*Orchestrator, session.Store) {
	t.Helper()
	store, err := session.NewStore(session.StoreTypeMemory)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	opts = append([]Option{withSleep(noSleep)}, opts...)
	return NewOrchestrator(store, gen, opts...), store
}

func TestRunTurnScenarioOpening(t *testing.T) {
	gen := &fakeGenerator{}
	o, store := newTestOrchestrator(t, gen)

	res, err := o.RunTurn(context.Background(), TurnRequest{
		Language: "french",
		Scenario: "CAFE",
	})
	if err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	if res.SessionID == "" {
		t.Error("expected a generated session id")
	}
	if !res.Created {
		t.Error("scenario request should create a session")
	}
	if res.Turn.Response.TargetText != "Bonjour !" {
		t.Errorf("targetText = %q", res.Turn.Response.TargetText)
	}

	// Opening persists exactly one tutor turn; the synthetic instruction
	// never enters history.
	turns, err := store.History(context.Background(), res.SessionID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(turns) != 1 {
		t.Fatalf("len(turns) = %d, want 1", len(turns))
	}
	if turns[0].Role != types.RoleTutor {
		t.Errorf("role = %q, want tutor", turns[0].Role)
	}

	req := gen.requests[0]
	if !strings.Contains(req.System, "Camille") {
		t.Errorf("system instruction missing persona: %q", req.System)
	}
	last := req.Contents[len(req.Contents)-1]
	if last.Role != "user" || !strings.Contains(last.Parts[0].Text, "café") {
		t.Errorf("opening content = %+v", last)
	}
}

func TestRunTurnAppendsUserAndTutorPair(t *testing.T) {
	gen := &fakeGenerator{}
	o, store := newTestOrchestrator(t, gen)

	res, err := o.RunTurn(context.Background(), TurnRequest{
		SessionID: "s1",
		Language:  "spanish",
		Text:      "Hola, me llamo Ana",
	})
	if err != nil {
		t.Fatalf("RunTurn: %v", err)
	}

	turns, err := store.History(context.Background(), res.SessionID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("len(turns) = %d, want 2", len(turns))
	}
	if turns[0].Role != types.RoleUser || turns[0].Text != "Hola, me llamo Ana" {
		t.Errorf("user turn = %+v", turns[0])
	}
	if turns[1].Role != types.RoleTutor || turns[1].Structured == nil {
		t.Errorf("tutor turn = %+v", turns[1])
	}
	if !turns[1].Timestamp.After(turns[0].Timestamp) {
		t.Error("tutor timestamp must follow user timestamp")
	}
}

func TestRunTurnReplaysHistoryToVendor(t *testing.T) {
	gen := &fakeGenerator{}
	o, _ := newTestOrchestrator(t, gen)

	ctx := context.Background()
	if _, err := o.RunTurn(ctx, TurnRequest{SessionID: "s1", Language: "french", Text: "Bonjour"}); err != nil {
		t.Fatalf("first turn: %v", err)
	}
	if _, err := o.RunTurn(ctx, TurnRequest{SessionID: "s1", Language: "french", Text: "Ça va ?"}); err != nil {
		t.Fatalf("second turn: %v", err)
	}

	second := gen.requests[1]
	// user, model, user: strict alternation, tutor turns replayed as JSON.
	if len(second.Contents) != 3 {
		t.Fatalf("len(contents) = %d, want 3", len(second.Contents))
	}
	wantRoles := []string{"user", "model", "user"}
	for i, c := range second.Contents {
		if c.Role != wantRoles[i] {
			t.Errorf("contents[%d].Role = %q, want %q", i, c.Role, wantRoles[i])
		}
	}
	if !strings.Contains(second.Contents[1].Parts[0].Text, `"targetText"`) {
		t.Errorf("model content not replayed as structured JSON: %q", second.Contents[1].Parts[0].Text)
	}
}

func TestRunTurnCarriesAudioInline(t *testing.T) {
	gen := &fakeGenerator{}
	o, _ := newTestOrchestrator(t, gen)

	_, err := o.RunTurn(context.Background(), TurnRequest{
		SessionID: "s1",
		Language:  "german",
		Audio:     &types.AudioRef{MIMEType: "audio/wav", Data: "UklGRg=="},
	})
	if err != nil {
		t.Fatalf("RunTurn: %v", err)
	}

	parts := gen.requests[0].Contents[0].Parts
	if len(parts) != 1 || parts[0].Inline == nil {
		t.Fatalf("parts = %+v, want single inline part", parts)
	}
	if parts[0].Inline.MIMEType != "audio/wav" {
		t.Errorf("mime = %q", parts[0].Inline.MIMEType)
	}
}

func TestRunTurnRetriesTransientVendorFailure(t *testing.T) {
	gen := &fakeGenerator{
		errs: []error{errors.New("connection reset"), core.NewOverloadedError("busy")},
	}
	o, _ := newTestOrchestrator(t, gen)

	res, err := o.RunTurn(context.Background(), TurnRequest{SessionID: "s1", Language: "french", Text: "Bonjour"})
	if err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	if gen.calls != 3 {
		t.Errorf("calls = %d, want 3", gen.calls)
	}
	if res.Turn == nil {
		t.Error("expected structured turn after retries")
	}
}

func TestRunTurnInvalidatesSessionOnVendorFailure(t *testing.T) {
	boom := errors.New("upstream down")
	gen := &fakeGenerator{errs: []error{boom, boom, boom}}
	o, store := newTestOrchestrator(t, gen)

	ctx := context.Background()
	// Seed the session with one good exchange first.
	good := &fakeGenerator{}
	seed := NewOrchestrator(store, good, withSleep(noSleep))
	if _, err := seed.RunTurn(ctx, TurnRequest{SessionID: "s1", Language: "french", Text: "Bonjour"}); err != nil {
		t.Fatalf("seed turn: %v", err)
	}

	_, err := o.RunTurn(ctx, TurnRequest{SessionID: "s1", Language: "french", Text: "Encore"})
	var ce *core.Error
	if !errors.As(err, &ce) || ce.Type != core.ErrVendor {
		t.Fatalf("err = %v, want vendor error", err)
	}
	if gen.calls != 3 {
		t.Errorf("calls = %d, want full retry budget", gen.calls)
	}

	if _, err := store.History(ctx, "s1"); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("History after failure = %v, want ErrNotFound", err)
	}
}

func TestRunTurnDecodeFailureNotRetried(t *testing.T) {
	gen := &fakeGenerator{responses: []string{"sorry, I cannot answer in JSON today"}}
	o, store := newTestOrchestrator(t, gen)

	_, err := o.RunTurn(context.Background(), TurnRequest{SessionID: "s1", Language: "french", Text: "Bonjour"})
	var ce *core.Error
	if !errors.As(err, &ce) || ce.Type != core.ErrDecode {
		t.Fatalf("err = %v, want decode error", err)
	}
	if gen.calls != 1 {
		t.Errorf("calls = %d, decode failures must not trigger vendor retries", gen.calls)
	}
	if ce.Message == "" || strings.Contains(ce.Message, "JSON") {
		t.Errorf("decode message should be user-safe, got %q", ce.Message)
	}

	if _, err := store.History(context.Background(), "s1"); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("History after decode failure = %v, want ErrNotFound", err)
	}
}

func TestRunTurnTopicSwitchReplacesHistory(t *testing.T) {
	gen := &fakeGenerator{}
	o, store := newTestOrchestrator(t, gen)

	ctx := context.Background()
	if _, err := o.RunTurn(ctx, TurnRequest{SessionID: "s1", Language: "french", Text: "Bonjour"}); err != nil {
		t.Fatalf("first turn: %v", err)
	}
	if _, err := o.RunTurn(ctx, TurnRequest{SessionID: "s1", Language: "french", Scenario: "TRAVEL"}); err != nil {
		t.Fatalf("scenario turn: %v", err)
	}

	turns, err := store.History(ctx, "s1")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(turns) != 1 {
		t.Fatalf("len(turns) = %d, want 1 after topic switch", len(turns))
	}

	// The vendor call for the new topic must not see the old history.
	last := gen.requests[len(gen.requests)-1]
	if len(last.Contents) != 1 {
		t.Errorf("vendor saw %d contents after topic switch, want 1", len(last.Contents))
	}
}

func TestRunTurnValidation(t *testing.T) {
	tests := []struct {
		name string
		req  TurnRequest
		want core.ErrorType
	}{
		{"unknown language", TurnRequest{Language: "klingon", Text: "hi"}, core.ErrInvalidLanguage},
		{"unknown scenario", TurnRequest{Language: "french", Scenario: "MOON_BASE"}, core.ErrInvalidScenario},
		{"empty input", TurnRequest{Language: "french"}, core.ErrInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{}
			o, _ := newTestOrchestrator(t, gen)
			_, err := o.RunTurn(context.Background(), tt.req)
			var ce *core.Error
			if !errors.As(err, &ce) || ce.Type != tt.want {
				t.Fatalf("err = %v, want type %s", err, tt.want)
			}
			if gen.calls != 0 {
				t.Errorf("vendor called %d times for invalid request", gen.calls)
			}
		})
	}
}

func TestHistoryUnknownSession(t *testing.T) {
	o, _ := newTestOrchestrator(t, &fakeGenerator{})
	_, err := o.History(context.Background(), "nope")
	var ce *core.Error
	if !errors.As(err, &ce) || ce.Type != core.ErrSessionNotFound {
		t.Fatalf("err = %v, want session not found", err)
	}
}

func TestEndSessionIdempotent(t *testing.T) {
	o, store := newTestOrchestrator(t, &fakeGenerator{})
	ctx := context.Background()
	if _, err := o.RunTurn(ctx, TurnRequest{SessionID: "s1", Language: "italian", Text: "Ciao"}); err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	if err := o.EndSession(ctx, "s1"); err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	if err := o.EndSession(ctx, "s1"); err != nil {
		t.Fatalf("second EndSession: %v", err)
	}
	if _, err := store.History(ctx, "s1"); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("History after end = %v, want ErrNotFound", err)
	}
}
