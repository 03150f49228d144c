package lingua

import (
	"testing"

	"github.com/fluently/lingua/pkg/core/types"
)

func TestTurnStateTransitions(t *testing.T) {
	tests := []struct {
		from, to TurnState
		want     bool
	}{
		{StateIdle, StateSending, true},
		{StateIdle, StateAwaiting, false},
		{StateIdle, StateRendered, false},
		{StateSending, StateAwaiting, true},
		{StateSending, StateFailed, true},
		{StateSending, StateRendered, false},
		{StateAwaiting, StateRendered, true},
		{StateAwaiting, StateFailed, true},
		{StateAwaiting, StateSending, false},
		{StateRendered, StateSending, true},
		{StateRendered, StateFailed, false},
		{StateFailed, StateSending, true},
		{StateFailed, StateRendered, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.want {
			t.Errorf("CanTransition(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestConversationOptimisticTurn(t *testing.T) {
	conv := NewConversation("s1", "fr")

	if err := conv.beginTurn("bonjour"); err != nil {
		t.Fatalf("beginTurn: %v", err)
	}
	turns := conv.Turns()
	if len(turns) != 1 || !turns[0].Pending || turns[0].Turn.Text != "bonjour" {
		t.Fatalf("optimistic turn = %+v", turns)
	}
	if conv.State() != StateSending {
		t.Fatalf("state = %s", conv.State())
	}

	conv.sent()
	if conv.State() != StateAwaiting {
		t.Fatalf("state after sent = %s", conv.State())
	}

	conv.rendered("s1", &types.StructuredTurn{
		Response: types.Reply{TargetText: "Bonjour !"},
	})
	turns = conv.Turns()
	if len(turns) != 2 {
		t.Fatalf("turns = %d, want 2", len(turns))
	}
	if turns[0].Pending || turns[0].Failed {
		t.Errorf("learner turn not confirmed: %+v", turns[0])
	}
	if turns[1].Turn.Role != types.RoleTutor || turns[1].Turn.Text != "Bonjour !" {
		t.Errorf("tutor turn = %+v", turns[1])
	}
	if conv.State() != StateRendered {
		t.Errorf("state = %s", conv.State())
	}
}

func TestConversationRejectsConcurrentExchange(t *testing.T) {
	conv := NewConversation("s1", "fr")
	if err := conv.beginTurn("un"); err != nil {
		t.Fatalf("beginTurn: %v", err)
	}
	if err := conv.beginTurn("deux"); err == nil {
		t.Fatal("second beginTurn while sending should fail")
	}
}

func TestConversationFailureAndRetryReusesTurn(t *testing.T) {
	conv := NewConversation("s1", "fr")

	if err := conv.beginTurn("bonjour"); err != nil {
		t.Fatalf("beginTurn: %v", err)
	}
	conv.failed()
	turns := conv.Turns()
	if len(turns) != 1 || !turns[0].Failed {
		t.Fatalf("turn after failure = %+v", turns)
	}
	if conv.State() != StateFailed {
		t.Fatalf("state = %s", conv.State())
	}

	// Retry must not duplicate the learner's turn.
	if err := conv.beginTurn("bonjour"); err != nil {
		t.Fatalf("retry beginTurn: %v", err)
	}
	turns = conv.Turns()
	if len(turns) != 1 || turns[0].Failed || !turns[0].Pending {
		t.Fatalf("turn after retry = %+v", turns)
	}
}

func TestConversationScenarioOpeningHasNoLearnerTurn(t *testing.T) {
	conv := NewConversation("", "fr")
	if err := conv.beginTurn(""); err != nil {
		t.Fatalf("beginTurn: %v", err)
	}
	if len(conv.Turns()) != 0 {
		t.Fatalf("scenario opening appended a learner turn: %+v", conv.Turns())
	}
	conv.sent()
	conv.rendered("s2", &types.StructuredTurn{Response: types.Reply{TargetText: "Bienvenue !"}})
	turns := conv.Turns()
	if len(turns) != 1 || turns[0].Turn.Role != types.RoleTutor {
		t.Fatalf("turns = %+v", turns)
	}
	if conv.SessionID() != "s2" {
		t.Errorf("session id = %q", conv.SessionID())
	}
}
