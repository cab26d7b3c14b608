package kafka

import (
	"context"
	"encoding/json"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/rs/zerolog/log"

	"github.com/darts-scorer/internal/match"
)

// ConsumerGroup is the consumer group analytics runs under
const ConsumerGroup = "darts-analytics"

// AnalyticsMetrics holds aggregated analytics data
type AnalyticsMetrics struct {
	TotalMatches    int64                     `json:"totalMatches"`
	FinishedMatches int64                     `json:"finishedMatches"`
	TotalThrows     int64                     `json:"totalThrows"`
	TotalBusts      int64                     `json:"totalBusts"`
	TotalLegs       int64                     `json:"totalLegs"`
	OneEighties     int64                     `json:"oneEighties"`
	TotalDuration   int64                     `json:"totalDuration"`
	MatchesPerHour  map[string]int            `json:"matchesPerHour"`
	MatchesPerDay   map[string]int            `json:"matchesPerDay"`
	PlayerStats     map[string]*PlayerMetrics `json:"playerStats"`
	mu              sync.RWMutex
}

// PlayerMetrics holds per-player analytics across finished matches
type PlayerMetrics struct {
	Name            string  `json:"name"`
	Matches         int     `json:"matches"`
	Wins            int     `json:"wins"`
	Losses          int     `json:"losses"`
	LegsWon         int     `json:"legsWon"`
	OneEighties     int     `json:"oneEighties"`
	HighestCheckout int     `json:"highestCheckout"`
	TotalDarts      int     `json:"totalDarts"`
	TotalScore      int     `json:"totalScore"`
	Average         float64 `json:"average"`
}

// Consumer handles Kafka event consumption for analytics
type Consumer struct {
	consumer sarama.ConsumerGroup
	metrics  *AnalyticsMetrics
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(brokers []string) (*Consumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	config.Consumer.Offsets.Initial = sarama.OffsetOldest

	group, err := sarama.NewConsumerGroup(brokers, ConsumerGroup, config)
	if err != nil {
		return nil, err
	}

	c := newConsumer()
	c.consumer = group
	return c, nil
}

func newConsumer() *Consumer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Consumer{
		metrics: &AnalyticsMetrics{
			MatchesPerHour: make(map[string]int),
			MatchesPerDay:  make(map[string]int),
			PlayerStats:    make(map[string]*PlayerMetrics),
		},
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins consuming events
func (c *Consumer) Start() {
	go func() {
		for {
			if err := c.consumer.Consume(c.ctx, []string{TopicMatchEvents}, c); err != nil {
				log.Error().Err(err).Msg("consumer error")
			}
			if c.ctx.Err() != nil {
				return
			}
		}
	}()
	log.Info().Str("topic", TopicMatchEvents).Msg("kafka consumer started")
}

// Setup is called at the beginning of a new session
func (c *Consumer) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

// Cleanup is called at the end of a session
func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim processes messages from a partition
func (c *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		c.processMessage(msg.Value)
		session.MarkMessage(msg, "")
	}
	return nil
}

// incomingEvent is a MatchEvent with its payload left undecoded until the type is known
type incomingEvent struct {
	Type      EventType       `json:"type"`
	MatchID   string          `json:"matchId"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// processMessage handles a single event message
func (c *Consumer) processMessage(value []byte) {
	var event incomingEvent
	if err := json.Unmarshal(value, &event); err != nil {
		log.Warn().Err(err).Msg("error unmarshaling event")
		return
	}

	c.metrics.mu.Lock()
	defer c.metrics.mu.Unlock()

	var err error
	switch event.Type {
	case EventMatchStart:
		c.handleMatchStart(event.Timestamp)
	case EventThrow:
		var data ThrowData
		if err = json.Unmarshal(event.Data, &data); err == nil {
			c.handleThrow(data)
		}
	case EventLegEnd:
		c.metrics.TotalLegs++
	case EventMatchEnd:
		var data MatchEndData
		if err = json.Unmarshal(event.Data, &data); err == nil {
			c.handleMatchEnd(data)
		}
	}
	if err != nil {
		log.Warn().Err(err).Str("type", string(event.Type)).Str("matchId", event.MatchID).Msg("malformed event payload")
	}
}

func (c *Consumer) player(name string) *PlayerMetrics {
	pm := c.metrics.PlayerStats[name]
	if pm == nil {
		pm = &PlayerMetrics{Name: name}
		c.metrics.PlayerStats[name] = pm
	}
	return pm
}

func (c *Consumer) handleMatchStart(ts time.Time) {
	c.metrics.TotalMatches++
	c.metrics.MatchesPerHour[ts.Format("2006-01-02-15")]++
	c.metrics.MatchesPerDay[ts.Format("2006-01-02")]++
}

func (c *Consumer) handleThrow(data ThrowData) {
	c.metrics.TotalThrows++
	if data.Outcome == match.OutcomeBust {
		c.metrics.TotalBusts++
		return
	}
	if data.Value == match.MaxThrow {
		c.metrics.OneEighties++
	}
}

// handleMatchEnd folds the final statistics into each player's totals. Throw events are not
// used for per-player numbers since undone visits are never retracted on the topic.
func (c *Consumer) handleMatchEnd(data MatchEndData) {
	c.metrics.FinishedMatches++
	c.metrics.TotalDuration += int64(data.DurationSeconds)

	for _, ps := range []match.PlayerMatchStats{data.Player1, data.Player2} {
		if ps.Name == "" {
			continue
		}
		pm := c.player(ps.Name)
		pm.Matches++
		if ps.Name == data.Winner {
			pm.Wins++
		} else {
			pm.Losses++
		}
		pm.LegsWon += ps.LegsWon
		pm.OneEighties += ps.OneEightiesCount
		if ps.HighestCheckout > pm.HighestCheckout {
			pm.HighestCheckout = ps.HighestCheckout
		}
		pm.TotalDarts += ps.TotalDarts
		pm.TotalScore += ps.TotalScore
		if pm.TotalDarts > 0 {
			pm.Average = math.Round(float64(pm.TotalScore)/float64(pm.TotalDarts)*3*100) / 100
		}
	}
}

// GetMetrics returns a copy of the current metrics
func (c *Consumer) GetMetrics() *AnalyticsMetrics {
	c.metrics.mu.RLock()
	defer c.metrics.mu.RUnlock()

	out := &AnalyticsMetrics{
		TotalMatches:    c.metrics.TotalMatches,
		FinishedMatches: c.metrics.FinishedMatches,
		TotalThrows:     c.metrics.TotalThrows,
		TotalBusts:      c.metrics.TotalBusts,
		TotalLegs:       c.metrics.TotalLegs,
		OneEighties:     c.metrics.OneEighties,
		TotalDuration:   c.metrics.TotalDuration,
		MatchesPerHour:  make(map[string]int, len(c.metrics.MatchesPerHour)),
		MatchesPerDay:   make(map[string]int, len(c.metrics.MatchesPerDay)),
		PlayerStats:     make(map[string]*PlayerMetrics, len(c.metrics.PlayerStats)),
	}
	for k, v := range c.metrics.MatchesPerHour {
		out.MatchesPerHour[k] = v
	}
	for k, v := range c.metrics.MatchesPerDay {
		out.MatchesPerDay[k] = v
	}
	for k, v := range c.metrics.PlayerStats {
		pm := *v
		out.PlayerStats[k] = &pm
	}
	return out
}

// GetPlayer returns the metrics of one player
func (c *Consumer) GetPlayer(name string) (PlayerMetrics, bool) {
	c.metrics.mu.RLock()
	defer c.metrics.mu.RUnlock()

	pm, ok := c.metrics.PlayerStats[name]
	if !ok {
		return PlayerMetrics{}, false
	}
	return *pm, true
}

// searchThreshold is the minimum name similarity for a non-substring match
const searchThreshold = 0.6

// SearchPlayers returns the players whose name resembles query, best match first
func (c *Consumer) SearchPlayers(query string) []PlayerMetrics {
	query = strings.ToLower(strings.TrimSpace(query))

	c.metrics.mu.RLock()
	defer c.metrics.mu.RUnlock()

	type scored struct {
		metrics    PlayerMetrics
		similarity float64
	}
	var hits []scored
	for name, pm := range c.metrics.PlayerStats {
		lower := strings.ToLower(name)
		distance := fuzzy.LevenshteinDistance(query, lower)
		maxLen := float64(max(len(query), len(lower)))
		similarity := 1.0
		if maxLen > 0 {
			similarity = 1 - float64(distance)/maxLen
		}

		if query == "" || fuzzy.MatchFold(query, name) || similarity >= searchThreshold {
			hits = append(hits, scored{metrics: *pm, similarity: similarity})
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].similarity != hits[j].similarity {
			return hits[i].similarity > hits[j].similarity
		}
		return hits[i].metrics.Name < hits[j].metrics.Name
	})

	out := make([]PlayerMetrics, len(hits))
	for i, h := range hits {
		out[i] = h.metrics
	}
	return out
}

// GetAverageMatchDuration returns the average finished match duration in seconds
func (c *Consumer) GetAverageMatchDuration() float64 {
	c.metrics.mu.RLock()
	defer c.metrics.mu.RUnlock()

	if c.metrics.FinishedMatches == 0 {
		return 0
	}
	return float64(c.metrics.TotalDuration) / float64(c.metrics.FinishedMatches)
}

// GetMatchesPerHour returns matches started in the last 24 hours by hour
func (c *Consumer) GetMatchesPerHour() map[string]int {
	c.metrics.mu.RLock()
	defer c.metrics.mu.RUnlock()

	now := time.Now()
	result := make(map[string]int)
	for i := 0; i < 24; i++ {
		key := now.Add(-time.Duration(i) * time.Hour).Format("2006-01-02-15")
		result[key] = c.metrics.MatchesPerHour[key]
	}
	return result
}

// Stop stops the consumer
func (c *Consumer) Stop() {
	c.cancel()
	if c.consumer != nil {
		if err := c.consumer.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing consumer group")
		}
	}
}
