package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/darts-scorer/internal/match"
	"github.com/darts-scorer/internal/storage"
)

var ErrMatchNotFound = errors.New("match not found")

// Emitter publishes match events for analytics
type Emitter interface {
	EmitMatchStart(s match.State)
	EmitThrow(s match.State, player, value int, outcome match.Outcome)
	EmitLegEnd(s match.State, leg match.Leg)
	EmitMatchEnd(s match.State, duration time.Duration)
}

type nopEmitter struct{}

func (nopEmitter) EmitMatchStart(match.State) {}
func (nopEmitter) EmitThrow(match.State, int, int, match.Outcome) {}
func (nopEmitter) EmitLegEnd(match.State, match.Leg) {}
func (nopEmitter) EmitMatchEnd(match.State, time.Duration) {}

// Archiver records finished matches for history queries
type Archiver interface {
	ArchiveMatch(ctx context.Context, matchID string, stats match.MatchStats) error
}

// Manager handles live matches: it runs every action against the engine, mirrors the result
// into storage and tells listeners about it.
type Manager struct {
	bridge   *storage.Bridge
	emitter  Emitter
	archiver Archiver
	defaults match.Config
	matches  map[string]*match.Match // matchID -> match
	mu       sync.Mutex
	onChange func(s match.State)
}

// NewManager creates a new manager. defaults supplies the starting score and legs to win of
// matches opened without them.
func NewManager(bridge *storage.Bridge, emitter Emitter, defaults match.Config) *Manager {
	if emitter == nil {
		emitter = nopEmitter{}
	}
	return &Manager{
		bridge:   bridge,
		emitter:  emitter,
		defaults: defaults,
		matches:  make(map[string]*match.Match),
	}
}

// SetArchiver sets where finished matches are archived
func (m *Manager) SetArchiver(a Archiver) {
	m.archiver = a
}

// SetOnChange sets the callback run after every successful action
func (m *Manager) SetOnChange(callback func(s match.State)) {
	m.onChange = callback
}

func (m *Manager) clockOpt() match.Option {
	return match.WithClock(m.bridge.Clock().Now)
}

// Open returns the live match for cfg.MatchID, restoring it from storage when it is not
// loaded. Saved statistics win over saved progress; with neither a fresh match is created.
func (m *Manager) Open(ctx context.Context, cfg match.Config) (*match.Match, error) {
	if cfg.MatchID == "" {
		cfg.MatchID = uuid.New().String()
	}
	if cfg.StartingScore == 0 {
		cfg.StartingScore = m.defaults.StartingScore
	}
	if cfg.LegsToWin == 0 {
		cfg.LegsToWin = m.defaults.LegsToWin
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if g, ok := m.matches[cfg.MatchID]; ok {
		return g, nil
	}

	g, restored, err := m.restore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if g == nil {
		if g, err = match.New(cfg, m.clockOpt()); err != nil {
			return nil, err
		}
	}
	m.matches[g.ID] = g

	if !restored {
		m.emitter.EmitMatchStart(g.GetState())
	}
	log.Info().Str("matchId", g.ID).Bool("restored", restored).Msg("match opened")
	return g, nil
}

func (m *Manager) restore(ctx context.Context, cfg match.Config) (*match.Match, bool, error) {
	stats, ok, err := m.bridge.LoadStats(ctx, cfg.MatchID)
	if err != nil {
		return nil, false, err
	}
	if ok {
		s, err := finishedState(cfg, *stats)
		if err != nil {
			return nil, false, err
		}
		return match.FromState(s, m.clockOpt()), true, nil
	}

	s, ok, err := m.bridge.LoadProgress(ctx, cfg.MatchID)
	if err != nil {
		return nil, false, err
	}
	if ok {
		return match.FromState(s, m.clockOpt()), true, nil
	}
	return nil, false, nil
}

// finishedState rebuilds a read-only view of a finished match from its statistics
func finishedState(cfg match.Config, stats match.MatchStats) (match.State, error) {
	cfg.Player1Name = stats.Player1.Name
	cfg.Player2Name = stats.Player2.Name
	s, err := match.NewState(cfg)
	if err != nil {
		return match.State{}, err
	}

	s.Player1.LegsWon = stats.Player1.LegsWon
	s.Player2.LegsWon = stats.Player2.LegsWon
	s.Legs = append([]match.Leg{}, stats.Legs...)
	s.CurrentLeg = max(len(stats.Legs), 1)
	s.Phase = match.PhaseFinished
	s.Stats = &stats
	return s, nil
}

// Get returns a live match by ID
func (m *Manager) Get(matchID string) (*match.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.matches[matchID]
	if !ok {
		return nil, ErrMatchNotFound
	}
	return g, nil
}

// Count returns the number of live matches
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.matches)
}

// Evict unloads matches idle for longer than idle. Their saved state stays in storage.
func (m *Manager) Evict(idle time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.bridge.Clock().Now().Add(-idle)
	evicted := 0
	for id, g := range m.matches {
		if g.UpdatedAt().Before(cutoff) {
			delete(m.matches, id)
			evicted++
		}
	}
	return evicted
}

// Remove unloads a match and clears everything stored for it
func (m *Manager) Remove(ctx context.Context, matchID string) error {
	m.mu.Lock()
	delete(m.matches, matchID)
	m.mu.Unlock()
	return m.bridge.Clear(ctx, matchID)
}

// persist mirrors s into storage. Storage failures are logged; the live match stays
// authoritative.
func (m *Manager) persist(ctx context.Context, s match.State) {
	var err error
	switch {
	case s.IsFinished():
		return
	case s.HasActivity():
		err = m.bridge.SaveProgress(ctx, s)
	default:
		err = m.bridge.DeleteProgress(ctx, s.MatchID)
	}
	if err != nil {
		log.Error().Err(err).Str("matchId", s.MatchID).Msg("error saving match progress")
	}
}

func (m *Manager) changed(ctx context.Context, s match.State) {
	m.persist(ctx, s)
	if m.onChange != nil {
		m.onChange(s)
	}
}
