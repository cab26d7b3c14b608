package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBack_RestoresPreviousState(t *testing.T) {
	base := throwAll(t, newTestState(t, 3), 100, 60, 41, 45)
	require.Equal(t, Player1, base.CurrentPlayer)

	for _, x := range []int{0, 1, 26, 57, 99, 100, 140, 180} {
		thrown, outcome, err := ApplyThrow(base, x)
		require.NoError(t, err)
		require.Equal(t, OutcomeScored, outcome)

		undone, err := Back(thrown)
		require.NoError(t, err)
		assert.Equal(t, base, undone, "visit %d", x)
	}
}

func TestBack_WalksBackwards(t *testing.T) {
	s := throwAll(t, newTestState(t, 3), 100, 60, 41)

	s, err := Back(s)
	require.NoError(t, err)
	assert.Equal(t, Player1, s.CurrentPlayer)
	assert.Equal(t, []int{100}, s.Player1.AllThrows)
	assert.Equal(t, 401, s.Player1.Score)

	s, err = Back(s)
	require.NoError(t, err)
	assert.Equal(t, Player2, s.CurrentPlayer)
	assert.Empty(t, s.Player2.AllThrows)
	assert.Equal(t, 501, s.Player2.Score)
	assert.Equal(t, 0.0, s.Player2.Stats.Average)

	s, err = Back(s)
	require.NoError(t, err)
	assert.Equal(t, Player1, s.CurrentPlayer)
	assert.Equal(t, 501, s.Player1.Score)
	assert.Equal(t, 0, s.Player1.Stats.TotalThrows)

	_, err = Back(s)
	assert.ErrorIs(t, err, ErrNoThrows)
}

func TestBack_UndoesBust(t *testing.T) {
	s := newTestState(t, 3)
	s.Player1.Score = 30
	s = throwAll(t, s, 60)
	require.Equal(t, []int{0}, s.Player1.AllThrows)

	s, err := Back(s)
	require.NoError(t, err)
	assert.Equal(t, 30, s.Player1.Score)
	assert.Empty(t, s.Player1.AllThrows)
	assert.Equal(t, Player1, s.CurrentPlayer)
}

func TestBack_WithoutTurnLog(t *testing.T) {
	s := throwAll(t, newTestState(t, 3), 100, 0, 50)
	s.Turns = []Turn{}
	require.Equal(t, Player2, s.CurrentPlayer)

	// with no log the last thrower is whoever does not hold the turn
	s, err := Back(s)
	require.NoError(t, err)
	assert.Equal(t, Player1, s.CurrentPlayer)
	assert.Equal(t, []int{100}, s.Player1.AllThrows)
	assert.Equal(t, 100.0, s.Player1.Stats.Average)
	assert.Equal(t, 1, s.Player1.Stats.TotalThrows)
}

func TestBack_NotDuringConfirmation(t *testing.T) {
	s := newTestState(t, 3)
	s.Player1.Score = 40
	s = throwAll(t, s, 40)

	_, err := Back(s)
	assert.ErrorIs(t, err, ErrNotPlaying)
}

func TestEditThrow(t *testing.T) {
	// player 1: 100, 60, 45
	s := throwAll(t, newTestState(t, 3), 100, 20, 60, 20, 45)

	next, err := EditThrow(s, Player1, 1, 100)
	require.NoError(t, err)

	assert.Equal(t, []int{100, 100, 45}, next.Player1.AllThrows)
	assert.Equal(t, next.StartingScore-sum(next.Player1.AllThrows), next.Player1.Score)
	assert.Equal(t, 256, next.Player1.Score)
	assert.Equal(t, 81.67, next.Player1.Stats.Average)
	assert.Equal(t, 3, next.Player1.Stats.TotalThrows)
	assert.Equal(t, PhasePlaying, next.Phase)

	// original untouched
	assert.Equal(t, []int{100, 60, 45}, s.Player1.AllThrows)
}

func TestEditThrow_Rejected(t *testing.T) {
	s, err := NewState(Config{MatchID: "test", StartingScore: 301})
	require.NoError(t, err)
	// player 1 sits on 41 after 100, 100, 60
	s = throwAll(t, s, 100, 0, 100, 0, 60)
	require.Equal(t, 41, s.Player1.Score)

	tests := []struct {
		name   string
		player int
		index  int
		value  int
		err    error
	}{
		{name: "running score below zero", player: Player1, index: 2, value: 150, err: ErrEditBust},
		{name: "earlier visit pushes later ones below zero", player: Player1, index: 0, value: 150, err: ErrEditBust},
		{name: "index out of range", player: Player1, index: 3, value: 10, err: ErrInvalidThrowIndex},
		{name: "negative index", player: Player1, index: -1, value: 10, err: ErrInvalidThrowIndex},
		{name: "value out of range", player: Player1, index: 0, value: 181, err: ErrInvalidScore},
		{name: "unknown player", player: 3, index: 0, value: 10, err: ErrInvalidPlayer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, err := EditThrow(s, tt.player, tt.index, tt.value)
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, s, next)
		})
	}
}

func TestEditThrow_Checkout(t *testing.T) {
	s := throwAll(t, newTestState(t, 3), 180, 0, 180, 0, 100)
	require.Equal(t, Player2, s.CurrentPlayer)

	next, err := EditThrow(s, Player1, 2, 141)
	require.NoError(t, err)

	assert.Equal(t, 0, next.Player1.Score)
	assert.Equal(t, PhaseLegConfirmation, next.Phase)
	assert.Equal(t, Player1, next.CurrentPlayer)
	require.NotNil(t, next.Pending)
	assert.Equal(t, Player1, next.Pending.Winner)
	assert.Equal(t, 141, next.Pending.CheckoutScore)
	assert.Equal(t, 3, next.Pending.CheckoutDarts)
}

func TestEditThrow_CheckoutAfterZeroVisit(t *testing.T) {
	s := throwAll(t, newTestState(t, 3), 180, 0, 180, 0, 100, 0, 0)
	require.Equal(t, []int{180, 180, 100, 0}, s.Player1.AllThrows)

	next, err := EditThrow(s, Player1, 2, 141)
	require.NoError(t, err)

	require.Equal(t, PhaseLegConfirmation, next.Phase)
	assert.Equal(t, 0, next.Player1.Score)
	assert.Equal(t, 141, next.Pending.CheckoutScore)
	assert.Equal(t, []int{3}, next.Pending.PossibleDarts)
}

func TestCancelLeg(t *testing.T) {
	s := newTestState(t, 3)
	s = throwAll(t, s, 100, 100, 100, 100, 100, 100)
	s = throwAll(t, s, 100, 100, 101)
	require.Equal(t, PhaseLegConfirmation, s.Phase)
	require.Equal(t, 0, s.Player1.Score)

	next, err := CancelLeg(s)
	require.NoError(t, err)

	assert.Equal(t, PhasePlaying, next.Phase)
	assert.Nil(t, next.Pending)
	assert.Equal(t, Player1, next.CurrentPlayer)
	assert.Equal(t, 101, next.Player1.Score)
	assert.Equal(t, []int{100, 100, 100, 100}, next.Player1.AllThrows)
	assert.Equal(t, 4, next.Player1.Stats.TotalThrows)
	assert.Equal(t, 100.0, next.Player1.Stats.Average)

	_, err = CancelLeg(next)
	assert.ErrorIs(t, err, ErrNoPendingLeg)
}
