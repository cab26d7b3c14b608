package storage

import (
	"time"

	"github.com/darts-scorer/internal/match"
)

// Progress is the persisted form of an in-progress match
type Progress struct {
	MatchID           string         `json:"matchId"`
	StartingScore     int            `json:"startingScore"`
	Player1           match.Player   `json:"player1"`
	Player2           match.Player   `json:"player2"`
	CurrentPlayer     int            `json:"currentPlayer"`
	LegStartingPlayer int            `json:"legStartingPlayer"`
	CurrentLeg        int            `json:"currentLeg"`
	LegsToWin         int            `json:"legsToWin"`
	Legs              []match.Leg    `json:"legs"`
	Phase             match.Phase    `json:"phase,omitempty"`
	Pending           *match.Pending `json:"pending,omitempty"`
	Turns             []match.Turn   `json:"turns,omitempty"`
	SavedAt           time.Time      `json:"savedAt"`
}

// StatsRecord is the persisted form of a finished match
type StatsRecord struct {
	match.MatchStats
	SavedAt time.Time `json:"savedAt"`
}

// FinishedMatch is a finished match archived in the database
type FinishedMatch struct {
	ID          string    `json:"id"`
	Player1     string    `json:"player1"`
	Player2     string    `json:"player2"`
	Winner      string    `json:"winner"`
	LegsPlayer1 int       `json:"legsPlayer1"`
	LegsPlayer2 int       `json:"legsPlayer2"`
	Average1    float64   `json:"average1"`
	Average2    float64   `json:"average2"`
	FinishedAt  time.Time `json:"finishedAt"`
}

// LeaderboardEntry represents a player's ranking across archived matches
type LeaderboardEntry struct {
	Rank            int     `json:"rank"`
	Name            string  `json:"name"`
	Wins            int     `json:"wins"`
	Losses          int     `json:"losses"`
	Matches         int     `json:"matches"`
	WinRate         float64 `json:"winRate"`
	BestAverage     float64 `json:"bestAverage"`
	OneEighties     int     `json:"oneEighties"`
	HighestCheckout int     `json:"highestCheckout"`
}

func progressFromState(s match.State, savedAt time.Time) Progress {
	return Progress{
		MatchID:           s.MatchID,
		StartingScore:     s.StartingScore,
		Player1:           s.Player1,
		Player2:           s.Player2,
		CurrentPlayer:     s.CurrentPlayer,
		LegStartingPlayer: s.LegStartingPlayer,
		CurrentLeg:        s.CurrentLeg,
		LegsToWin:         s.LegsToWin,
		Legs:              s.Legs,
		Phase:             s.Phase,
		Pending:           s.Pending,
		Turns:             s.Turns,
		SavedAt:           savedAt,
	}
}

// State rebuilds the engine state. Blobs written without the optional fields resume in play.
func (p Progress) State() match.State {
	s := match.State{
		MatchID:           p.MatchID,
		StartingScore:     p.StartingScore,
		LegsToWin:         p.LegsToWin,
		Player1:           p.Player1,
		Player2:           p.Player2,
		CurrentPlayer:     p.CurrentPlayer,
		LegStartingPlayer: p.LegStartingPlayer,
		CurrentLeg:        p.CurrentLeg,
		Legs:              p.Legs,
		Phase:             p.Phase,
		Pending:           p.Pending,
		Turns:             p.Turns,
		SavedAt:           p.SavedAt,
	}

	if s.StartingScore == 0 {
		s.StartingScore = match.DefaultStartingScore
	}
	if s.Phase == "" {
		s.Phase = match.PhasePlaying
	}
	if s.CurrentPlayer == 0 {
		s.CurrentPlayer = match.Player1
	}
	if s.LegStartingPlayer == 0 {
		s.LegStartingPlayer = match.Player1
	}
	if s.CurrentLeg == 0 {
		s.CurrentLeg = 1
	}
	if s.Legs == nil {
		s.Legs = []match.Leg{}
	}
	if s.Turns == nil {
		s.Turns = []match.Turn{}
	}
	if s.Player1.AllThrows == nil {
		s.Player1.AllThrows = []int{}
	}
	if s.Player2.AllThrows == nil {
		s.Player2.AllThrows = []int{}
	}
	return s
}
