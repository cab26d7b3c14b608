package match

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 14, 20, 0, 0, 0, time.UTC)

// checkoutLeg plays 180, 180, 141 for the winner while the loser throws zeros
func checkoutLeg(t *testing.T, s State, winner int) State {
	t.Helper()
	visits := []int{180, 180, 141}
	for s.Phase == PhasePlaying {
		score := 0
		if s.CurrentPlayer == winner {
			score, visits = visits[0], visits[1:]
		}
		var err error
		s, _, err = ApplyThrow(s, score)
		require.NoError(t, err)
	}
	require.Equal(t, PhaseLegConfirmation, s.Phase)
	return s
}

func winLeg(t *testing.T, s State, winner int) State {
	t.Helper()
	s = checkoutLeg(t, s, winner)
	s, err := ConfirmLeg(s, 0, testNow)
	require.NoError(t, err)
	return s
}

func TestConfirmLeg_NextLeg(t *testing.T) {
	s := checkoutLeg(t, newTestState(t, 3), Player1)

	next, err := ConfirmLeg(s, 0, testNow)
	require.NoError(t, err)

	assert.Equal(t, PhasePlaying, next.Phase)
	assert.Nil(t, next.Pending)
	assert.Equal(t, 1, next.Player1.LegsWon)
	assert.Equal(t, 2, next.CurrentLeg)
	assert.Equal(t, Player2, next.LegStartingPlayer)
	assert.Equal(t, Player2, next.CurrentPlayer)
	assert.Empty(t, next.Turns)

	for _, p := range []Player{next.Player1, next.Player2} {
		assert.Equal(t, 501, p.Score)
		assert.Empty(t, p.AllThrows)
		assert.Equal(t, 0, p.Stats.TotalThrows)
		assert.Equal(t, 0.0, p.Stats.Average)
	}

	require.Len(t, next.Legs, 1)
	leg := next.Legs[0]
	assert.Equal(t, 1, leg.LegNumber)
	assert.Equal(t, []int{180, 180, 141}, leg.Player1Throws)
	assert.Equal(t, []int{0, 0}, leg.Player2Throws)
	assert.Equal(t, 501, leg.Player1Score)
	assert.Equal(t, 0, leg.Player2Score)
	assert.Equal(t, Player1, leg.Winner)
	assert.Equal(t, 141, leg.CheckoutScore)
	assert.Equal(t, 3, leg.CheckoutDarts)
	assert.Equal(t, testNow, leg.CreatedAt)
}

func TestConfirmLeg_CheckoutDarts(t *testing.T) {
	s := newTestState(t, 3)
	s.Player1.Score = 81
	s = throwAll(t, s, 81)

	_, err := ConfirmLeg(s, 0, testNow)
	assert.ErrorIs(t, err, ErrCheckoutDartsRequired)

	_, err = ConfirmLeg(s, 1, testNow)
	assert.ErrorIs(t, err, ErrInvalidCheckoutDarts)

	_, err = ConfirmLeg(s, 4, testNow)
	assert.ErrorIs(t, err, ErrInvalidCheckoutDarts)

	next, err := ConfirmLeg(s, 2, testNow)
	require.NoError(t, err)
	assert.Equal(t, 2, next.Legs[0].CheckoutDarts)

	_, err = ConfirmLeg(next, 2, testNow)
	assert.ErrorIs(t, err, ErrNoPendingLeg)
}

func TestLegsWonMatchesWinners(t *testing.T) {
	s := newTestState(t, 10)
	winners := []int{Player1, Player2, Player2, Player1, Player2, Player2}

	p1, p2 := 0, 0
	for i, w := range winners {
		s = winLeg(t, s, w)
		if w == Player1 {
			p1++
		} else {
			p2++
		}
		assert.Equal(t, p1, s.Player1.LegsWon)
		assert.Equal(t, p2, s.Player2.LegsWon)
		assert.Equal(t, i+2, s.CurrentLeg)
		assert.Len(t, s.Legs, i+1)
	}

	// break alternates every leg
	assert.Equal(t, Player1, s.LegStartingPlayer)
}

func TestMatchLifecycle(t *testing.T) {
	s := winLeg(t, newTestState(t, 2), Player1)
	s = checkoutLeg(t, s, Player1)

	s, err := ConfirmLeg(s, 0, testNow)
	require.NoError(t, err)
	require.Equal(t, PhaseMatchConfirmation, s.Phase)
	assert.Equal(t, 2, s.Player1.LegsWon)
	assert.Equal(t, 0, s.Player1.Score, "boards are kept until the match is confirmed")
	assert.Equal(t, 2, s.CurrentLeg)
	assert.Len(t, s.Legs, 2)

	finished, err := ConfirmMatch(s, testNow)
	require.NoError(t, err)
	assert.Equal(t, PhaseFinished, finished.Phase)
	assert.True(t, finished.IsFinished())
	require.NotNil(t, finished.Stats)
	assert.Len(t, finished.Stats.Legs, 2, "the last leg is not appended twice")
	assert.Equal(t, Player1, finished.Stats.Winner)
	assert.Equal(t, testNow, finished.Stats.FinishedAt)

	p1 := finished.Stats.Player1
	assert.Equal(t, 2, p1.LegsWon)
	assert.Equal(t, 0, p1.LegsLost)
	assert.Equal(t, 1002, p1.TotalScore)
	assert.Equal(t, 18, p1.TotalDarts)
	assert.Equal(t, 167.0, p1.Average)
	assert.Equal(t, 4, p1.OneEightiesCount)
	assert.Equal(t, 141, p1.HighestCheckout)

	p2 := finished.Stats.Player2
	assert.Equal(t, 0, p2.LegsWon)
	assert.Equal(t, 2, p2.LegsLost)
	assert.Equal(t, 15, p2.TotalDarts)
	assert.Equal(t, 0.0, p2.Average)

	// finished matches only accept a restart
	_, _, err = ApplyThrow(finished, 60)
	assert.ErrorIs(t, err, ErrNotPlaying)
	_, err = Back(finished)
	assert.ErrorIs(t, err, ErrMatchFinished)
	_, err = SetLegsToWin(finished, 5)
	assert.ErrorIs(t, err, ErrMatchFinished)
	_, err = ConfirmMatch(finished, testNow)
	assert.ErrorIs(t, err, ErrNoPendingMatch)

	restarted := Restart(finished)
	assert.Equal(t, PhasePlaying, restarted.Phase)
	assert.Nil(t, restarted.Stats)
}

func TestCancelMatch_Checkout(t *testing.T) {
	s := winLeg(t, newTestState(t, 2), Player2)
	s = checkoutLeg(t, s, Player2)
	s, err := ConfirmLeg(s, 0, testNow)
	require.NoError(t, err)
	require.Equal(t, PhaseMatchConfirmation, s.Phase)

	s, err = CancelMatch(s)
	require.NoError(t, err)
	assert.Equal(t, PhasePlaying, s.Phase)
	assert.Nil(t, s.Pending)
	assert.Equal(t, 1, s.Player2.LegsWon)
	assert.Equal(t, 141, s.Player2.Score)
	assert.Equal(t, Player2, s.CurrentPlayer)
	require.Len(t, s.Legs, 1)

	// checking out again records the leg once
	s = throwAll(t, s, 141)
	s, err = ConfirmLeg(s, 0, testNow)
	require.NoError(t, err)
	require.Equal(t, PhaseMatchConfirmation, s.Phase)
	assert.Len(t, s.Legs, 2)
	assert.Equal(t, 2, s.Player2.LegsWon)

	_, err = CancelLeg(s)
	assert.ErrorIs(t, err, ErrNoPendingLeg)
}

func TestCancelMatch_ThenLowerLegsToWin(t *testing.T) {
	s := winLeg(t, newTestState(t, 2), Player1)
	s = checkoutLeg(t, s, Player2)
	s, err := ConfirmLeg(s, 0, testNow)
	require.NoError(t, err)
	require.Equal(t, PhaseMatchConfirmation, s.Phase)
	require.Len(t, s.Legs, 2)

	s, err = CancelMatch(s)
	require.NoError(t, err)
	require.Len(t, s.Legs, 1)
	assert.Equal(t, Player1, s.Legs[0].Winner)
	assert.Equal(t, 0, s.Player2.LegsWon)

	s, err = SetLegsToWin(s, 1)
	require.NoError(t, err)
	require.Equal(t, PhaseMatchConfirmation, s.Phase)
	assert.Equal(t, Player1, s.Pending.Winner)

	finished, err := ConfirmMatch(s, testNow)
	require.NoError(t, err)
	require.Len(t, finished.Stats.Legs, 1)
	assert.Equal(t, Player1, finished.Stats.Winner)
	assert.Equal(t, 1, finished.Stats.Player1.LegsWon)
	assert.Equal(t, 0, finished.Stats.Player2.LegsWon)

	won := map[int]int{}
	for _, leg := range finished.Stats.Legs {
		won[leg.Winner]++
	}
	assert.Equal(t, finished.Stats.Player1.LegsWon, won[Player1])
	assert.Equal(t, finished.Stats.Player2.LegsWon, won[Player2])
}

func TestConfirmMatch_RecordsMissingCheckoutLeg(t *testing.T) {
	s := checkoutLeg(t, newTestState(t, 1), Player1)
	s, err := ConfirmLeg(s, 0, testNow)
	require.NoError(t, err)

	// a confirmation restored without its leg record
	s.Legs = nil
	finished, err := ConfirmMatch(s, testNow)
	require.NoError(t, err)
	require.Len(t, finished.Legs, 1)
	assert.Equal(t, 141, finished.Legs[0].CheckoutScore)
}

func TestCancelMatch_LegsWonFloor(t *testing.T) {
	s := checkoutLeg(t, newTestState(t, 1), Player1)
	s, err := ConfirmLeg(s, 0, testNow)
	require.NoError(t, err)

	s.Player1.LegsWon = 0
	s, err = CancelMatch(s)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Player1.LegsWon)
}

func TestSetLegsToWin(t *testing.T) {
	s := newTestState(t, 5)
	s = winLeg(t, s, Player1)
	s = winLeg(t, s, Player2)
	s = winLeg(t, s, Player1)

	for _, n := range []int{0, 21, -3} {
		_, err := SetLegsToWin(s, n)
		assert.ErrorIs(t, err, ErrInvalidLegsToWin)
	}

	longer, err := SetLegsToWin(s, 7)
	require.NoError(t, err)
	assert.Equal(t, PhasePlaying, longer.Phase)
	assert.Equal(t, 7, longer.LegsToWin)

	shorter, err := SetLegsToWin(s, 2)
	require.NoError(t, err)
	require.Equal(t, PhaseMatchConfirmation, shorter.Phase)
	assert.Equal(t, Player1, shorter.Pending.Winner)
	assert.Equal(t, SourceSettings, shorter.Pending.Source)

	// cancelling restores the previous length and touches no throws
	cancelled, err := CancelMatch(shorter)
	require.NoError(t, err)
	assert.Equal(t, 5, cancelled.LegsToWin)
	assert.Equal(t, 2, cancelled.Player1.LegsWon)
	assert.Equal(t, s.Player1, cancelled.Player1)
	assert.Equal(t, PhasePlaying, cancelled.Phase)

	finished, err := ConfirmMatch(shorter, testNow)
	require.NoError(t, err)
	assert.Equal(t, PhaseFinished, finished.Phase)
	assert.Equal(t, Player1, finished.Stats.Winner)
	// the unfinished fourth leg is not recorded
	require.Len(t, finished.Stats.Legs, 3)
	assert.Equal(t, 3, finished.Stats.Legs[2].LegNumber)
	assert.Equal(t, 2, finished.Stats.Player1.LegsWon)
	assert.Equal(t, 1, finished.Stats.Player1.LegsLost)
}

func TestSetLegsToWin_TieGoesToPlayer1(t *testing.T) {
	s := newTestState(t, 5)
	s = winLeg(t, s, Player2)
	s = winLeg(t, s, Player1)

	next, err := SetLegsToWin(s, 1)
	require.NoError(t, err)
	assert.Equal(t, Player1, next.Pending.Winner)
}

func TestRestart(t *testing.T) {
	s := newTestState(t, 3)
	s = winLeg(t, s, Player2)
	s = throwAll(t, s, 60, 100)

	once := Restart(s)
	twice := Restart(once)
	assert.Equal(t, once, twice)

	fresh, err := NewState(s.Config())
	require.NoError(t, err)
	assert.Equal(t, fresh, once)
	assert.Equal(t, 1, once.CurrentLeg)
	assert.Equal(t, 0, once.Player2.LegsWon)
	assert.Empty(t, once.Legs)
	assert.Equal(t, "test", once.MatchID)
	assert.False(t, once.HasActivity())
}
