package session

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/darts-scorer/internal/match"
)

// ErrDigitRejected is returned when a keypad digit would make the visit invalid
var ErrDigitRejected = errors.New("digit rejected")

// run applies one action to a live match and publishes the result
func (m *Manager) run(ctx context.Context, matchID string, action func(g *match.Match) (match.State, error)) (match.State, error) {
	g, err := m.Get(matchID)
	if err != nil {
		return match.State{}, err
	}

	s, err := action(g)
	if err != nil {
		return s, err
	}
	m.changed(ctx, s)
	return s, nil
}

// Throw records a visit for the player to throw
func (m *Manager) Throw(ctx context.Context, matchID string, score int) (match.State, match.Outcome, error) {
	var outcome match.Outcome
	s, err := m.run(ctx, matchID, func(g *match.Match) (match.State, error) {
		s, o, err := g.Throw(score)
		outcome = o
		return s, err
	})
	if err != nil {
		return s, "", err
	}
	m.emitThrow(s, outcome)
	return s, outcome, nil
}

// Press feeds one keypad digit and returns the current input
func (m *Manager) Press(matchID string, digit int) (string, error) {
	g, err := m.Get(matchID)
	if err != nil {
		return "", err
	}
	if !g.Press(digit) {
		return g.Input(), ErrDigitRejected
	}
	return g.Input(), nil
}

// Backspace removes the last keypad digit and returns the current input
func (m *Manager) Backspace(matchID string) (string, error) {
	g, err := m.Get(matchID)
	if err != nil {
		return "", err
	}
	g.Backspace()
	return g.Input(), nil
}

// Submit throws whatever is on the keypad
func (m *Manager) Submit(ctx context.Context, matchID string) (match.State, match.Outcome, error) {
	var outcome match.Outcome
	s, err := m.run(ctx, matchID, func(g *match.Match) (match.State, error) {
		s, o, err := g.Submit()
		outcome = o
		return s, err
	})
	if err != nil {
		return s, "", err
	}
	m.emitThrow(s, outcome)
	return s, outcome, nil
}

// emitThrow reports the visit that produced s as it was logged, so a bust goes out as 0. The
// thrower is read from the turn log since a checkout keeps the turn while other visits pass it.
func (m *Manager) emitThrow(s match.State, outcome match.Outcome) {
	if len(s.Turns) == 0 {
		return
	}
	last := s.Turns[len(s.Turns)-1]
	m.emitter.EmitThrow(s, last.Player, last.Value, outcome)
}

// Back undoes the last visit
func (m *Manager) Back(ctx context.Context, matchID string) (match.State, error) {
	return m.run(ctx, matchID, func(g *match.Match) (match.State, error) {
		return g.Back()
	})
}

// Edit replaces a visit in the current leg
func (m *Manager) Edit(ctx context.Context, matchID string, player, index, value int) (match.State, error) {
	return m.run(ctx, matchID, func(g *match.Match) (match.State, error) {
		return g.Edit(player, index, value)
	})
}

// ConfirmLeg closes the pending leg
func (m *Manager) ConfirmLeg(ctx context.Context, matchID string, darts int) (match.State, error) {
	s, err := m.run(ctx, matchID, func(g *match.Match) (match.State, error) {
		return g.ConfirmLeg(darts)
	})
	if err != nil {
		return s, err
	}
	if n := len(s.Legs); n > 0 {
		m.emitter.EmitLegEnd(s, s.Legs[n-1])
	}
	return s, nil
}

// CancelLeg reverts the pending leg
func (m *Manager) CancelLeg(ctx context.Context, matchID string) (match.State, error) {
	return m.run(ctx, matchID, func(g *match.Match) (match.State, error) {
		return g.CancelLeg()
	})
}

// ConfirmMatch finishes the match, stores its statistics and archives it
func (m *Manager) ConfirmMatch(ctx context.Context, matchID string) (match.State, error) {
	g, err := m.Get(matchID)
	if err != nil {
		return match.State{}, err
	}

	s, err := g.ConfirmMatch()
	if err != nil {
		return s, err
	}

	if err := m.bridge.Finish(ctx, s); err != nil {
		log.Error().Err(err).Str("matchId", matchID).Msg("error saving match statistics")
	}
	if m.archiver != nil {
		if err := m.archiver.ArchiveMatch(ctx, matchID, *s.Stats); err != nil {
			log.Error().Err(err).Str("matchId", matchID).Msg("error archiving match")
		}
	}
	m.emitter.EmitMatchEnd(s, s.Stats.FinishedAt.Sub(g.StartTime))
	log.Info().Str("matchId", matchID).Int("winner", s.Stats.Winner).Msg("match finished")

	m.changed(ctx, s)
	return s, nil
}

// CancelMatch reverts the pending match confirmation
func (m *Manager) CancelMatch(ctx context.Context, matchID string) (match.State, error) {
	return m.run(ctx, matchID, func(g *match.Match) (match.State, error) {
		return g.CancelMatch()
	})
}

// SetLegsToWin changes the match length
func (m *Manager) SetLegsToWin(ctx context.Context, matchID string, legsToWin int) (match.State, error) {
	return m.run(ctx, matchID, func(g *match.Match) (match.State, error) {
		return g.SetLegsToWin(legsToWin)
	})
}

// Restart starts the match over, with cfg when given. Restarting a match that is still in
// progress throws away its throws and needs confirm.
func (m *Manager) Restart(ctx context.Context, matchID string, cfg *match.Config, confirm bool) (match.State, error) {
	g, err := m.Get(matchID)
	if err != nil {
		return match.State{}, err
	}

	current := g.GetState()
	if !current.IsFinished() && current.HasActivity() && !confirm {
		return current, match.ErrConfirmationRequired
	}

	s, err := g.Restart(cfg)
	if err != nil {
		return s, err
	}
	if err := m.bridge.Clear(ctx, matchID); err != nil {
		log.Error().Err(err).Str("matchId", matchID).Msg("error clearing match storage")
	}
	m.emitter.EmitMatchStart(s)

	m.changed(ctx, s)
	return s, nil
}
