package match

// Outcome is the result of applying a throw
type Outcome string

const (
	OutcomeScored   Outcome = "scored"
	OutcomeBust     Outcome = "bust"
	OutcomeCheckout Outcome = "checkout"
)

// ApplyThrow records a 3-dart visit for the player whose turn it is.
// A visit that would take the score below zero is a bust: it counts as a visit of 0 and the
// turn passes. A visit that reaches exactly zero opens the leg confirmation and keeps the turn.
func ApplyThrow(s State, score int) (State, Outcome, error) {
	if s.Phase != PhasePlaying {
		return s, "", ErrNotPlaying
	}
	if score < 0 || score > MaxThrow {
		return s, "", ErrInvalidScore
	}

	next := s.Clone()
	num := next.CurrentPlayer
	p := next.player(num)
	before := p.Stats.Average
	remaining := p.Score - score

	switch {
	case remaining < 0:
		recordVisit(p, 0)
		next.logTurn(num, ActionBust, 0, before, p.Stats.Average)
		next.CurrentPlayer = Opponent(num)
		return next, OutcomeBust, nil

	case remaining == 0:
		recordVisit(p, score)
		p.Score = 0
		next.logTurn(num, ActionCheckout, score, before, p.Stats.Average)
		next.openLegConfirmation(num, score)
		return next, OutcomeCheckout, nil

	default:
		recordVisit(p, score)
		p.Score = remaining
		next.logTurn(num, ActionThrow, score, before, p.Stats.Average)
		next.CurrentPlayer = Opponent(num)
		return next, OutcomeScored, nil
	}
}

// recordVisit appends the visit and folds it into the running average
func recordVisit(p *Player, value int) {
	n := p.Stats.TotalThrows
	p.AllThrows = append(p.AllThrows, value)
	p.Stats.Average = round2((p.Stats.Average*float64(n) + float64(value)) / float64(n+1))
	p.Stats.TotalThrows = n + 1
}

func (s *State) logTurn(num int, action string, value int, before, after float64) {
	s.Turns = append(s.Turns, Turn{
		Player:        num,
		Action:        action,
		Value:         value,
		Leg:           s.CurrentLeg,
		AverageBefore: before,
		AverageAfter:  after,
	})
}

// openLegConfirmation moves the match into leg confirmation for the given winner
func (s *State) openLegConfirmation(winner, checkout int) {
	possible := PossibleDartCounts(checkout)
	pending := &Pending{
		Winner:        winner,
		CheckoutScore: checkout,
		PossibleDarts: possible,
		Source:        SourceCheckout,
	}
	if len(possible) == 1 {
		pending.CheckoutDarts = possible[0]
	}

	s.CurrentPlayer = winner
	s.Pending = pending
	s.Phase = PhaseLegConfirmation
}

// PossibleDartCounts returns how many darts of the final visit could have been used to
// check out the given score under double-out.
func PossibleDartCounts(score int) []int {
	switch {
	case score <= 40:
		return []int{1, 2, 3}
	case score <= 98:
		return []int{2, 3}
	default:
		return []int{3}
	}
}
