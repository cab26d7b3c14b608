package kafka

import (
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog/log"

	"github.com/darts-scorer/internal/match"
)

const (
	TopicMatchEvents = "darts-match-events"
)

// EventType represents the type of match event
type EventType string

const (
	EventMatchStart EventType = "match_start"
	EventThrow      EventType = "throw"
	EventLegEnd     EventType = "leg_end"
	EventMatchEnd   EventType = "match_end"
)

// MatchEvent represents a match event for analytics
type MatchEvent struct {
	Type      EventType `json:"type"`
	MatchID   string    `json:"matchId"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// MatchStartData contains data for match start events
type MatchStartData struct {
	Player1       string `json:"player1"`
	Player2       string `json:"player2"`
	StartingScore int    `json:"startingScore"`
	LegsToWin     int    `json:"legsToWin"`
}

// ThrowData contains data for throw events
type ThrowData struct {
	Player    string        `json:"player"`
	PlayerNum int           `json:"playerNum"`
	Value     int           `json:"value"`
	Outcome   match.Outcome `json:"outcome"`
	Remaining int           `json:"remaining"`
	Leg       int           `json:"leg"`
}

// LegEndData contains data for leg end events
type LegEndData struct {
	Winner        string `json:"winner"`
	LegNumber     int    `json:"legNumber"`
	CheckoutScore int    `json:"checkoutScore"`
	CheckoutDarts int    `json:"checkoutDarts"`
}

// MatchEndData contains data for match end events
type MatchEndData struct {
	Winner          string                 `json:"winner"`
	Player1         match.PlayerMatchStats `json:"player1"`
	Player2         match.PlayerMatchStats `json:"player2"`
	Legs            int                    `json:"legs"`
	DurationSeconds int                    `json:"durationSeconds"`
}

// Producer handles Kafka event production
type Producer struct {
	producer sarama.SyncProducer
	enabled  bool
}

// NewProducer creates a new Kafka producer. An unreachable cluster disables analytics
// instead of failing.
func NewProducer(brokers []string) *Producer {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 3

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		log.Warn().Err(err).Strs("brokers", brokers).Msg("kafka producer not available, analytics disabled")
		return &Producer{enabled: false}
	}

	log.Info().Strs("brokers", brokers).Msg("kafka producer connected")
	return &Producer{producer: producer, enabled: true}
}

// NewProducerFromSync wraps an existing sarama producer
func NewProducerFromSync(producer sarama.SyncProducer) *Producer {
	return &Producer{producer: producer, enabled: producer != nil}
}

// EmitMatchStart emits a match start event
func (p *Producer) EmitMatchStart(s match.State) {
	if !p.enabled {
		return
	}

	p.send(MatchEvent{
		Type:      EventMatchStart,
		MatchID:   s.MatchID,
		Timestamp: time.Now(),
		Data: MatchStartData{
			Player1:       s.Player1.Name,
			Player2:       s.Player2.Name,
			StartingScore: s.StartingScore,
			LegsToWin:     s.LegsToWin,
		},
	})
}

// EmitThrow emits a throw event. s is the state after the throw.
func (p *Producer) EmitThrow(s match.State, player, value int, outcome match.Outcome) {
	if !p.enabled {
		return
	}

	pl := s.Player(player)
	p.send(MatchEvent{
		Type:      EventThrow,
		MatchID:   s.MatchID,
		Timestamp: time.Now(),
		Data: ThrowData{
			Player:    pl.Name,
			PlayerNum: player,
			Value:     value,
			Outcome:   outcome,
			Remaining: pl.Score,
			Leg:       s.CurrentLeg,
		},
	})
}

// EmitLegEnd emits a leg end event
func (p *Producer) EmitLegEnd(s match.State, leg match.Leg) {
	if !p.enabled {
		return
	}

	p.send(MatchEvent{
		Type:      EventLegEnd,
		MatchID:   s.MatchID,
		Timestamp: time.Now(),
		Data: LegEndData{
			Winner:        s.Player(leg.Winner).Name,
			LegNumber:     leg.LegNumber,
			CheckoutScore: leg.CheckoutScore,
			CheckoutDarts: leg.CheckoutDarts,
		},
	})
}

// EmitMatchEnd emits a match end event
func (p *Producer) EmitMatchEnd(s match.State, duration time.Duration) {
	if !p.enabled || s.Stats == nil {
		return
	}

	p.send(MatchEvent{
		Type:      EventMatchEnd,
		MatchID:   s.MatchID,
		Timestamp: time.Now(),
		Data: MatchEndData{
			Winner:          s.Player(s.Stats.Winner).Name,
			Player1:         s.Stats.Player1,
			Player2:         s.Stats.Player2,
			Legs:            len(s.Stats.Legs),
			DurationSeconds: int(duration.Seconds()),
		},
	})
}

// send sends an event to Kafka
func (p *Producer) send(event MatchEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("type", string(event.Type)).Msg("error marshaling event")
		return
	}

	msg := &sarama.ProducerMessage{
		Topic: TopicMatchEvents,
		Key:   sarama.StringEncoder(event.MatchID),
		Value: sarama.ByteEncoder(data),
	}

	if _, _, err := p.producer.SendMessage(msg); err != nil {
		log.Error().Err(err).Str("matchId", event.MatchID).Msg("error sending event to kafka")
	}
}

// Close closes the producer
func (p *Producer) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// IsEnabled returns whether Kafka is enabled
func (p *Producer) IsEnabled() bool {
	return p.enabled
}
