package match

import (
	"slices"
	"time"
)

// ConfirmLeg closes the pending leg. darts is the number of darts used in the checkout visit;
// 0 accepts the automatic choice, which only exists when the checkout allows a single count.
func ConfirmLeg(s State, darts int, now time.Time) (State, error) {
	if s.Phase != PhaseLegConfirmation || s.Pending == nil {
		return s, ErrNoPendingLeg
	}

	darts, err := resolveCheckoutDarts(s.Pending, darts)
	if err != nil {
		return s, err
	}

	next := s.Clone()
	winner := next.Pending.Winner
	next.player(winner).LegsWon++
	next.recordLeg(winner, next.Pending.CheckoutScore, darts, now)
	next.Pending.CheckoutDarts = darts

	if next.Player1.LegsWon >= next.LegsToWin || next.Player2.LegsWon >= next.LegsToWin {
		// Boards stay as they are so the match confirmation can still be cancelled
		next.Phase = PhaseMatchConfirmation
		return next, nil
	}

	next.startNextLeg()
	return next, nil
}

func resolveCheckoutDarts(p *Pending, darts int) (int, error) {
	if darts == 0 {
		if p.CheckoutDarts == 0 {
			return 0, ErrCheckoutDartsRequired
		}
		darts = p.CheckoutDarts
	}
	if !slices.Contains(p.PossibleDarts, darts) {
		return 0, ErrInvalidCheckoutDarts
	}
	return darts, nil
}

// recordLeg snapshots the current leg. A leg with the same number replaces the stored one.
func (s *State) recordLeg(winner, checkout, darts int, now time.Time) {
	leg := Leg{
		LegNumber:     s.CurrentLeg,
		Player1Throws: append([]int{}, s.Player1.AllThrows...),
		Player2Throws: append([]int{}, s.Player2.AllThrows...),
		Player1Score:  sum(s.Player1.AllThrows),
		Player2Score:  sum(s.Player2.AllThrows),
		Winner:        winner,
		CheckoutScore: checkout,
		CheckoutDarts: darts,
		CreatedAt:     now,
	}

	if n := len(s.Legs); n > 0 && s.Legs[n-1].LegNumber == s.CurrentLeg {
		s.Legs[n-1] = leg
		return
	}
	s.Legs = append(s.Legs, leg)
}

// startNextLeg resets both boards and hands the break to the other player
func (s *State) startNextLeg() {
	for _, num := range []int{Player1, Player2} {
		p := s.player(num)
		p.Score = s.StartingScore
		p.AllThrows = []int{}
		p.Stats.TotalThrows = 0
		p.Stats.Average = 0
	}

	s.LegStartingPlayer = Opponent(s.LegStartingPlayer)
	s.CurrentPlayer = s.LegStartingPlayer
	s.CurrentLeg++
	s.Pending = nil
	s.Phase = PhasePlaying
	s.Turns = []Turn{}
}

// ConfirmMatch finalizes the match and computes its statistics. A checkout whose leg is missing
// from Legs is recorded first; a legs-to-win shortcut records nothing, the current leg was never won.
func ConfirmMatch(s State, now time.Time) (State, error) {
	if s.Phase != PhaseMatchConfirmation || s.Pending == nil {
		return s, ErrNoPendingMatch
	}

	next := s.Clone()
	pending := next.Pending

	n := len(next.Legs)
	if pending.Source == SourceCheckout && (n == 0 || next.Legs[n-1].LegNumber != next.CurrentLeg) {
		darts := pending.CheckoutDarts
		if darts == 0 {
			darts = DefaultCheckoutDarts
		}
		next.recordLeg(pending.Winner, pending.CheckoutScore, darts, now)
	}

	stats := ComputeMatchStats(next.Legs, next.Player1, next.Player2, pending.Winner, now)
	next.Stats = &stats
	next.Pending = nil
	next.Phase = PhaseFinished
	return next, nil
}

// SetLegsToWin changes the match length. Lowering it to a count a player already has routes
// straight to match confirmation; the player with more legs wins, player 1 on a tie.
func SetLegsToWin(s State, legsToWin int) (State, error) {
	if legsToWin < MinLegsToWin || legsToWin > MaxLegsToWin {
		return s, ErrInvalidLegsToWin
	}
	if s.Phase == PhaseFinished {
		return s, ErrMatchFinished
	}
	if s.Phase != PhasePlaying {
		return s, ErrNotPlaying
	}

	next := s.Clone()
	prev := next.LegsToWin
	next.LegsToWin = legsToWin

	if next.Player1.LegsWon < legsToWin && next.Player2.LegsWon < legsToWin {
		return next, nil
	}

	winner := Player1
	if next.Player2.LegsWon > next.Player1.LegsWon {
		winner = Player2
	}
	next.Pending = &Pending{
		Winner:        winner,
		PossibleDarts: []int{DefaultCheckoutDarts},
		CheckoutDarts: DefaultCheckoutDarts,
		Source:        SourceSettings,
		PrevLegsToWin: prev,
	}
	next.Phase = PhaseMatchConfirmation
	return next, nil
}

// Restart discards everything and starts again at leg 1 with the same settings
func Restart(s State) State {
	fresh, err := NewState(s.Config())
	if err != nil {
		// restored states may carry an out of range length
		cfg := s.Config()
		cfg.LegsToWin = DefaultLegsToWin
		fresh, _ = NewState(cfg)
	}
	return fresh
}
