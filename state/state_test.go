package state

import (
	"errors"
	"testing"
)

func TestMachine_InitialState(t *testing.T) {
	sm := NewChainMachine(Idle)
	if sm.Current() != Idle {
		t.Errorf("Expected initial state idle, got %s", sm.Current())
	}
}

func TestChainMachine_Transitions(t *testing.T) {
	cases := []struct {
		from  Status
		event Event
		want  Status
	}{
		{Idle, Accept, Active},
		{Idle, Break, Idle},
		{Idle, Hold, Idle},
		{Active, Accept, Active},
		{Active, Break, Idle},
		{Active, Hold, Active},
	}
	for _, tc := range cases {
		sm := NewChainMachine(tc.from)
		got, err := sm.Fire(tc.event)
		if err != nil {
			t.Errorf("%s on %s returned error: %v", tc.event, tc.from, err)
			continue
		}
		if got != tc.want || sm.Current() != tc.want {
			t.Errorf("%s on %s = %s, want %s", tc.event, tc.from, got, tc.want)
		}
	}
}

func TestMachine_NextDoesNotChangeState(t *testing.T) {
	sm := NewChainMachine(Active)

	next, err := sm.Next(Break)
	if err != nil {
		t.Fatalf("Next should not return an error, but got: %v", err)
	}
	if next != Idle {
		t.Errorf("Expected preview idle, got %s", next)
	}
	if sm.Current() != Active {
		t.Error("Next must not change the current state")
	}
}

func TestMachine_UnregisteredTransition(t *testing.T) {
	sm := NewMachine(Idle)
	sm.AddTransition(Idle, Accept, Active)

	// --- Test valid transition ---
	if _, err := sm.Fire(Accept); err != nil {
		t.Fatalf("Expected accept from idle to be allowed, but got error: %v", err)
	}

	// --- Test blocked transition ---
	_, err := sm.Fire(Break)
	if !errors.Is(err, ErrTransitionNotAllowed) {
		t.Errorf("Expected ErrTransitionNotAllowed, but got: %v", err)
	}
	if sm.Current() != Active {
		t.Errorf("Expected current state to remain active after a blocked transition, but got %s", sm.Current())
	}
}

func TestMachine_Reset(t *testing.T) {
	sm := NewChainMachine(Active)
	sm.Reset(Idle)
	if sm.Current() != Idle {
		t.Errorf("Expected idle after reset, got %s", sm.Current())
	}
}
