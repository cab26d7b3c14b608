package match

// Errors
var (
	ErrInvalidScore          = &GameError{"score must be between 0 and 180"}
	ErrNotPlaying            = &GameError{"match is not in play"}
	ErrNoThrows              = &GameError{"no throws to undo"}
	ErrInvalidThrowIndex     = &GameError{"throw index out of range"}
	ErrInvalidPlayer         = &GameError{"player must be 1 or 2"}
	ErrEditBust              = &GameError{"edit would take the score below zero"}
	ErrNoPendingLeg          = &GameError{"no leg awaiting confirmation"}
	ErrNoPendingMatch        = &GameError{"no match awaiting confirmation"}
	ErrCheckoutDartsRequired = &GameError{"number of checkout darts is required"}
	ErrInvalidCheckoutDarts  = &GameError{"checkout darts not possible for this score"}
	ErrInvalidLegsToWin      = &GameError{"legs to win must be between 1 and 20"}
	ErrMatchFinished         = &GameError{"match is finished"}
	ErrConfirmationRequired  = &GameError{"operation discards match data and must be confirmed"}
)

// GameError is a rule violation reported back to the operator. The engine state is unchanged
// whenever one is returned.
type GameError struct {
	msg string
}

func (e *GameError) Error() string {
	return e.msg
}
