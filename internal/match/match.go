package match

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Match is a live match guarded for concurrent use. Every method applies one transition
// atomically and returns a snapshot of the resulting state.
type Match struct {
	ID        string
	StartTime time.Time

	state     State
	keypad    Keypad
	updatedAt time.Time
	now       func() time.Time
	mu        sync.RWMutex
}

// Option configures a Match
type Option func(*Match)

// WithClock sets the time source used for timestamps
func WithClock(now func() time.Time) Option {
	return func(m *Match) {
		m.now = now
	}
}

// New creates a match from the given settings, generating an ID when none is set
func New(cfg Config, opts ...Option) (*Match, error) {
	if cfg.MatchID == "" {
		cfg.MatchID = uuid.New().String()
	}

	state, err := NewState(cfg)
	if err != nil {
		return nil, err
	}
	return FromState(state, opts...), nil
}

// FromState wraps an existing state, e.g. one restored from storage
func FromState(state State, opts ...Option) *Match {
	m := &Match{
		ID:    state.MatchID,
		state: state.Clone(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.StartTime = m.now()
	m.updatedAt = m.StartTime
	return m
}

// apply runs a transition under the lock and keeps the result unless it failed
func (m *Match) apply(fn func(State) (State, error)) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next, err := fn(m.state)
	if err != nil {
		return m.state.Clone(), err
	}
	m.state = next
	m.updatedAt = m.now()
	return next.Clone(), nil
}

// Throw records a visit for the player to throw
func (m *Match) Throw(score int) (State, Outcome, error) {
	var outcome Outcome
	state, err := m.apply(func(s State) (State, error) {
		next, o, err := ApplyThrow(s, score)
		outcome = o
		return next, err
	})
	m.ClearInput()
	return state, outcome, err
}

// Press feeds one keypad digit
func (m *Match) Press(digit int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.keypad.Press(digit)
}

// Backspace removes the last keypad digit
func (m *Match) Backspace() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keypad.Backspace()
}

// ClearInput empties the keypad
func (m *Match) ClearInput() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keypad.Clear()
}

// Input returns the digits currently on the keypad
func (m *Match) Input() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.keypad.String()
}

// Submit throws whatever is on the keypad
func (m *Match) Submit() (State, Outcome, error) {
	m.mu.RLock()
	score, ok := m.keypad.Value()
	m.mu.RUnlock()

	if !ok {
		return m.GetState(), "", ErrInvalidScore
	}
	return m.Throw(score)
}

// Back undoes the last visit
func (m *Match) Back() (State, error) {
	return m.apply(Back)
}

// Edit replaces a visit in a player's current leg
func (m *Match) Edit(player, index, value int) (State, error) {
	return m.apply(func(s State) (State, error) {
		return EditThrow(s, player, index, value)
	})
}

// ConfirmLeg closes the pending leg
func (m *Match) ConfirmLeg(darts int) (State, error) {
	return m.apply(func(s State) (State, error) {
		return ConfirmLeg(s, darts, m.now())
	})
}

// CancelLeg reverts the pending leg
func (m *Match) CancelLeg() (State, error) {
	return m.apply(CancelLeg)
}

// ConfirmMatch finishes the match
func (m *Match) ConfirmMatch() (State, error) {
	return m.apply(func(s State) (State, error) {
		return ConfirmMatch(s, m.now())
	})
}

// CancelMatch reverts the pending match confirmation
func (m *Match) CancelMatch() (State, error) {
	return m.apply(CancelMatch)
}

// SetLegsToWin changes the match length
func (m *Match) SetLegsToWin(legsToWin int) (State, error) {
	return m.apply(func(s State) (State, error) {
		return SetLegsToWin(s, legsToWin)
	})
}

// Restart starts the match again with the same settings, or with cfg when given
func (m *Match) Restart(cfg *Config) (State, error) {
	state, err := m.apply(func(s State) (State, error) {
		if cfg == nil {
			return Restart(s), nil
		}
		c := *cfg
		c.MatchID = s.MatchID
		return NewState(c)
	})
	m.ClearInput()
	return state, err
}

// GetState returns a snapshot of the match
func (m *Match) GetState() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Clone()
}

// UpdatedAt returns when the match last changed
func (m *Match) UpdatedAt() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.updatedAt
}
