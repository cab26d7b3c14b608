package match

// Back undoes the most recent visit of the current leg and gives the turn back to whoever
// threw it. Calling it repeatedly walks further back one visit at a time.
func Back(s State) (State, error) {
	if s.Phase == PhaseFinished {
		return s, ErrMatchFinished
	}
	if s.Phase != PhasePlaying {
		return s, ErrNotPlaying
	}

	num := s.lastActor()
	if len(s.Player(num).AllThrows) == 0 {
		return s, ErrNoThrows
	}

	next := s.Clone()
	next.undoVisit(num)
	next.CurrentPlayer = num
	return next, nil
}

// lastActor finds who threw last in the current leg. The turn log is authoritative; the
// turn-flip inference is only used for states that carry no log.
func (s State) lastActor() int {
	if i := s.lastVisitTurn(0); i >= 0 {
		return s.Turns[i].Player
	}
	return Opponent(s.CurrentPlayer)
}

// lastVisitTurn returns the index of the latest visit in the current leg, optionally
// restricted to one player (num == 0 means either).
func (s State) lastVisitTurn(num int) int {
	for i := len(s.Turns) - 1; i >= 0; i-- {
		t := s.Turns[i]
		if t.Leg != s.CurrentLeg {
			break
		}
		if t.Action == ActionEdit {
			continue
		}
		if num == 0 || t.Player == num {
			return i
		}
	}
	return -1
}

// undoVisit pops the last visit of the given player, restoring score, throw count and average
func (s *State) undoVisit(num int) {
	p := s.player(num)
	if len(p.AllThrows) == 0 {
		return
	}

	last := p.AllThrows[len(p.AllThrows)-1]
	p.AllThrows = p.AllThrows[:len(p.AllThrows)-1]
	p.Score += last

	n := p.Stats.TotalThrows
	idx := s.lastVisitTurn(num)

	switch {
	case idx >= 0 && s.Turns[idx].AverageAfter == p.Stats.Average && s.Turns[idx].Value == last:
		// Nothing has touched the average since this visit
		p.Stats.Average = s.Turns[idx].AverageBefore
	case n > 1:
		avg := round2((float64(n)*p.Stats.Average - float64(last)) / float64(n-1))
		if avg < 0 {
			avg = 0
		}
		p.Stats.Average = avg
	default:
		p.Stats.Average = 0
	}
	if n > 0 {
		p.Stats.TotalThrows = n - 1
	}

	if idx >= 0 {
		s.Turns = append(s.Turns[:idx], s.Turns[idx+1:]...)
	}
}

// EditThrow replaces a visit in the given player's current leg. The score and average are
// recomputed from the whole list; an edit that would take the running score below zero at
// any point is rejected. An edit that brings the score to exactly zero opens the leg
// confirmation for that player, with the last non-zero visit as the checkout.
func EditThrow(s State, num, index, value int) (State, error) {
	if s.Phase != PhasePlaying {
		return s, ErrNotPlaying
	}
	if num != Player1 && num != Player2 {
		return s, ErrInvalidPlayer
	}
	if value < 0 || value > MaxThrow {
		return s, ErrInvalidScore
	}
	throws := s.Player(num).AllThrows
	if index < 0 || index >= len(throws) {
		return s, ErrInvalidThrowIndex
	}

	running := s.StartingScore
	for i, v := range throws {
		if i == index {
			v = value
		}
		running -= v
		if running < 0 {
			return s, ErrEditBust
		}
	}

	next := s.Clone()
	p := next.player(num)
	before := p.Stats.Average
	p.AllThrows[index] = value

	total := sum(p.AllThrows)
	p.Score = next.StartingScore - total
	p.Stats.Average = round2(float64(total) / float64(len(p.AllThrows)))
	next.logTurn(num, ActionEdit, value, before, p.Stats.Average)

	if p.Score == 0 {
		next.openLegConfirmation(num, lastScoringThrow(p.AllThrows))
	}
	return next, nil
}

// lastScoringThrow returns the latest non-zero visit, the one that actually finished the leg
func lastScoringThrow(throws []int) int {
	for i := len(throws) - 1; i >= 0; i-- {
		if throws[i] > 0 {
			return throws[i]
		}
	}
	return 0
}

// CancelLeg reverts the pending checkout visit and resumes play with the same thrower
func CancelLeg(s State) (State, error) {
	if s.Phase != PhaseLegConfirmation || s.Pending == nil {
		return s, ErrNoPendingLeg
	}

	next := s.Clone()
	winner := next.Pending.Winner
	next.undoVisit(winner)
	next.CurrentPlayer = winner
	next.Pending = nil
	next.Phase = PhasePlaying
	return next, nil
}

// CancelMatch reverts a pending match confirmation. For a checkout it also takes back the
// leg credited and recorded by ConfirmLeg; for a legs-to-win change it restores the previous
// setting.
func CancelMatch(s State) (State, error) {
	if s.Phase != PhaseMatchConfirmation || s.Pending == nil {
		return s, ErrNoPendingMatch
	}

	next := s.Clone()
	pending := next.Pending

	if pending.Source == SourceSettings {
		next.LegsToWin = pending.PrevLegsToWin
	} else {
		winner := pending.Winner
		next.undoVisit(winner)
		p := next.player(winner)
		if p.LegsWon > 0 {
			p.LegsWon--
		}
		next.CurrentPlayer = winner
		if n := len(next.Legs); n > 0 && next.Legs[n-1].LegNumber == next.CurrentLeg {
			next.Legs = next.Legs[:n-1]
		}
	}

	next.Pending = nil
	next.Phase = PhasePlaying
	return next, nil
}
