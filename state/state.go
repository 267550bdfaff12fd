package state

import (
	"errors"
	"fmt"
	"sync"
)

// Status 链的状态
type Status int

const (
	// Idle has no current word; any valid word starts a chain.
	Idle Status = iota
	// Active has a current word and waits for a different member.
	Active
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Active:
		return "active"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Event 触发状态转换的事件
type Event int

const (
	// Accept extends the chain with a word.
	Accept Event = iota
	// Break ends the chain after a breaking rejection.
	Break
	// Hold keeps the state, e.g. for self-chaining or malformed input.
	Hold
)

func (e Event) String() string {
	switch e {
	case Accept:
		return "accept"
	case Break:
		return "break"
	case Hold:
		return "hold"
	}
	return fmt.Sprintf("event(%d)", int(e))
}

// ErrTransitionNotAllowed is returned when a state transition is not allowed.
var ErrTransitionNotAllowed = errors.New("state transition not allowed")

// Machine 状态机，只允许注册过的转换
type Machine struct {
	current     Status
	transitions map[Status]map[Event]Status // fromState -> event -> toState
	mutex       sync.RWMutex
}

func NewMachine(initial Status) *Machine {
	return &Machine{
		current:     initial,
		transitions: make(map[Status]map[Event]Status),
	}
}

// NewChainMachine registers the word-chain transitions:
//
//	idle   --accept--> active    active --accept--> active
//	idle   --break---> idle      active --break---> idle
//	idle   --hold----> idle      active --hold----> active
func NewChainMachine(initial Status) *Machine {
	m := NewMachine(initial)
	m.AddTransition(Idle, Accept, Active)
	m.AddTransition(Idle, Break, Idle)
	m.AddTransition(Idle, Hold, Idle)
	m.AddTransition(Active, Accept, Active)
	m.AddTransition(Active, Break, Idle)
	m.AddTransition(Active, Hold, Active)
	return m
}

func (m *Machine) AddTransition(from Status, event Event, to Status) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, exists := m.transitions[from]; !exists {
		m.transitions[from] = make(map[Event]Status)
	}
	m.transitions[from][event] = to
}

func (m *Machine) Current() Status {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.current
}

// Next previews the status event leads to without changing state.
func (m *Machine) Next(event Event) (Status, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.next(event)
}

func (m *Machine) next(event Event) (Status, error) {
	to, exists := m.transitions[m.current][event]
	if !exists {
		return m.current, fmt.Errorf("%w: %s on %s", ErrTransitionNotAllowed, event, m.current)
	}
	return to, nil
}

// Fire applies event and returns the new status.
func (m *Machine) Fire(event Event) (Status, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	to, err := m.next(event)
	if err != nil {
		return m.current, err
	}
	m.current = to
	return to, nil
}

// Reset forces a status, used when state is reloaded or edited by admins.
func (m *Machine) Reset(status Status) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.current = status
}
