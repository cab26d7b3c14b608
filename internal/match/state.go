package match

import (
	"math"
	"time"
)

const (
	Player1 = 1
	Player2 = 2
)

const (
	DefaultStartingScore = 501
	DefaultLegsToWin     = 3
	MinLegsToWin         = 1
	MaxLegsToWin         = 20
	MaxThrow             = 180
	DefaultCheckoutDarts = 3
)

// Phase represents where the match is in its leg/match lifecycle
type Phase string

const (
	PhasePlaying           Phase = "playing"
	PhaseLegConfirmation   Phase = "leg_confirmation"
	PhaseMatchConfirmation Phase = "match_confirmation"
	PhaseFinished          Phase = "finished"
)

// PendingSource tells how a confirmation was reached
type PendingSource string

const (
	SourceCheckout PendingSource = "checkout"
	SourceSettings PendingSource = "settings"
)

// PlayerStats holds the running aggregates for the current leg
type PlayerStats struct {
	TotalThrows     int     `json:"totalThrows"`
	Average         float64 `json:"average"`
	HighestCheckout int     `json:"highestCheckout"`
}

// Player represents one side of the match
type Player struct {
	Name      string      `json:"name"`
	Score     int         `json:"score"`
	LegsWon   int         `json:"legsWon"`
	AllThrows []int       `json:"allThrows"`
	Stats     PlayerStats `json:"stats"`
}

// Leg is the record of a completed leg
type Leg struct {
	LegNumber     int       `json:"legNumber"`
	Player1Throws []int     `json:"player1Throws"`
	Player2Throws []int     `json:"player2Throws"`
	Player1Score  int       `json:"player1Score"`
	Player2Score  int       `json:"player2Score"`
	Winner        int       `json:"winner"`
	CheckoutScore int       `json:"checkoutScore"`
	CheckoutDarts int       `json:"checkoutDarts"`
	CreatedAt     time.Time `json:"createdAt"`
}

// PlayerMatchStats is the per-player summary of a finished match
type PlayerMatchStats struct {
	Name             string  `json:"name"`
	LegsWon          int     `json:"legsWon"`
	LegsLost         int     `json:"legsLost"`
	TotalScore       int     `json:"totalScore"`
	TotalDarts       int     `json:"totalDarts"`
	Average          float64 `json:"average"`
	HighestCheckout  int     `json:"highestCheckout"`
	OneEightiesCount int     `json:"oneEightiesCount"`
}

// MatchStats is computed once when the match is confirmed and never changes afterwards
type MatchStats struct {
	Player1    PlayerMatchStats `json:"player1"`
	Player2    PlayerMatchStats `json:"player2"`
	Legs       []Leg            `json:"legs"`
	FinishedAt time.Time        `json:"finishedAt"`
	Winner     int              `json:"winner"`
}

// Pending describes a leg or match confirmation waiting on the operator
type Pending struct {
	Winner        int           `json:"winner"`
	CheckoutScore int           `json:"checkoutScore"`
	PossibleDarts []int         `json:"possibleDarts"`
	CheckoutDarts int           `json:"checkoutDarts,omitempty"` // 0 until chosen
	Source        PendingSource `json:"source"`
	PrevLegsToWin int           `json:"prevLegsToWin,omitempty"`
}

// Turn actions recorded in the log
const (
	ActionThrow    = "throw"
	ActionBust     = "bust"
	ActionCheckout = "checkout"
	ActionEdit     = "edit"
)

// Turn is one entry of the per-leg turn log
type Turn struct {
	Player        int     `json:"player"`
	Action        string  `json:"action"`
	Value         int     `json:"value"`
	Leg           int     `json:"leg"`
	AverageBefore float64 `json:"averageBefore"`
	AverageAfter  float64 `json:"averageAfter"`
}

// State is the whole match. Transitions never mutate a State in place.
type State struct {
	MatchID           string      `json:"matchId"`
	StartingScore     int         `json:"startingScore"`
	LegsToWin         int         `json:"legsToWin"`
	Player1           Player      `json:"player1"`
	Player2           Player      `json:"player2"`
	CurrentPlayer     int         `json:"currentPlayer"`
	LegStartingPlayer int         `json:"legStartingPlayer"`
	CurrentLeg        int         `json:"currentLeg"`
	Legs              []Leg       `json:"legs"`
	Phase             Phase       `json:"phase"`
	Pending           *Pending    `json:"pending,omitempty"`
	Stats             *MatchStats `json:"stats,omitempty"`
	Turns             []Turn      `json:"turns"`
	SavedAt           time.Time   `json:"savedAt"`
}

// Config holds the caller-supplied match settings
type Config struct {
	MatchID       string `json:"matchId"`
	StartingScore int    `json:"startingScore"`
	LegsToWin     int    `json:"legsToWin"`
	Player1Name   string `json:"player1Name"`
	Player2Name   string `json:"player2Name"`
}

// withDefaults fills unset fields
func (c Config) withDefaults() Config {
	if c.StartingScore <= 0 {
		c.StartingScore = DefaultStartingScore
	}
	if c.LegsToWin == 0 {
		c.LegsToWin = DefaultLegsToWin
	}
	if c.Player1Name == "" {
		c.Player1Name = "1"
	}
	if c.Player2Name == "" {
		c.Player2Name = "2"
	}
	return c
}

// Validate checks the settings a match can be created with
func (c Config) Validate() error {
	c = c.withDefaults()
	if c.LegsToWin < MinLegsToWin || c.LegsToWin > MaxLegsToWin {
		return ErrInvalidLegsToWin
	}
	return nil
}

// NewState creates a fresh match at leg 1 with player 1 to throw
func NewState(cfg Config) (State, error) {
	if err := cfg.Validate(); err != nil {
		return State{}, err
	}
	cfg = cfg.withDefaults()

	return State{
		MatchID:           cfg.MatchID,
		StartingScore:     cfg.StartingScore,
		LegsToWin:         cfg.LegsToWin,
		Player1:           newPlayer(cfg.Player1Name, cfg.StartingScore),
		Player2:           newPlayer(cfg.Player2Name, cfg.StartingScore),
		CurrentPlayer:     Player1,
		LegStartingPlayer: Player1,
		CurrentLeg:        1,
		Legs:              []Leg{},
		Phase:             PhasePlaying,
		Turns:             []Turn{},
	}, nil
}

func newPlayer(name string, startingScore int) Player {
	return Player{
		Name:      name,
		Score:     startingScore,
		AllThrows: []int{},
	}
}

// Config returns the settings the state was created with
func (s State) Config() Config {
	return Config{
		MatchID:       s.MatchID,
		StartingScore: s.StartingScore,
		LegsToWin:     s.LegsToWin,
		Player1Name:   s.Player1.Name,
		Player2Name:   s.Player2.Name,
	}
}

// Player returns a copy of the given side
func (s State) Player(num int) Player {
	if num == Player2 {
		return s.Player2
	}
	return s.Player1
}

// player returns a pointer into the given side of s
func (s *State) player(num int) *Player {
	if num == Player2 {
		return &s.Player2
	}
	return &s.Player1
}

// HasActivity reports whether anything worth persisting has happened
func (s State) HasActivity() bool {
	return len(s.Player1.AllThrows) > 0 || len(s.Player2.AllThrows) > 0 ||
		len(s.Legs) > 0 ||
		s.Player1.LegsWon > 0 || s.Player2.LegsWon > 0 ||
		s.Player1.Score != s.StartingScore || s.Player2.Score != s.StartingScore
}

// IsFinished reports whether the match has been confirmed
func (s State) IsFinished() bool {
	return s.Phase == PhaseFinished
}

// Clone returns a deep copy of s
func (s State) Clone() State {
	c := s
	c.Player1 = s.Player1.clone()
	c.Player2 = s.Player2.clone()
	c.Legs = cloneLegs(s.Legs)
	c.Turns = append([]Turn{}, s.Turns...)
	if s.Pending != nil {
		p := *s.Pending
		p.PossibleDarts = append([]int{}, s.Pending.PossibleDarts...)
		c.Pending = &p
	}
	if s.Stats != nil {
		st := *s.Stats
		st.Legs = cloneLegs(s.Stats.Legs)
		c.Stats = &st
	}
	return c
}

func (p Player) clone() Player {
	p.AllThrows = append([]int{}, p.AllThrows...)
	return p
}

func (l Leg) clone() Leg {
	l.Player1Throws = append([]int{}, l.Player1Throws...)
	l.Player2Throws = append([]int{}, l.Player2Throws...)
	return l
}

func cloneLegs(legs []Leg) []Leg {
	out := make([]Leg, len(legs))
	for i, l := range legs {
		out[i] = l.clone()
	}
	return out
}

// Opponent returns the other player number
func Opponent(num int) int {
	if num == Player1 {
		return Player2
	}
	return Player1
}

// round2 rounds to two decimals, half away from zero
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func sum(values []int) int {
	total := 0
	for _, v := range values {
		total += v
	}
	return total
}
