package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/darts-scorer/internal/match"
)

const (
	ProgressKeyPrefix = "local_match_"
	StatsKeyPrefix    = "local_match_stats_"

	// DefaultExpiry is how long saved state survives after its last save
	DefaultExpiry = 5 * 24 * time.Hour
)

// ProgressKey returns the key of an in-progress match
func ProgressKey(matchID string) string {
	return ProgressKeyPrefix + matchID
}

// StatsKey returns the key of a finished match
func StatsKey(matchID string) string {
	return StatsKeyPrefix + matchID
}

// Bridge mirrors match state into a Backend and applies the expiry policy on load
type Bridge struct {
	backend Backend
	clock   clockwork.Clock
	expiry  time.Duration
}

// NewBridge creates a bridge over backend. A nil clock uses the wall clock.
func NewBridge(backend Backend, clock clockwork.Clock, expiry time.Duration) *Bridge {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	return &Bridge{backend: backend, clock: clock, expiry: expiry}
}

// Clock returns the bridge's time source
func (b *Bridge) Clock() clockwork.Clock {
	return b.clock
}

func (b *Bridge) expired(savedAt time.Time) bool {
	return b.clock.Since(savedAt) > b.expiry
}

// SaveProgress stores an in-progress match. Untouched and finished matches are not written.
func (b *Bridge) SaveProgress(ctx context.Context, s match.State) error {
	if s.IsFinished() || !s.HasActivity() {
		return nil
	}

	data, err := json.Marshal(progressFromState(s, b.clock.Now()))
	if err != nil {
		return fmt.Errorf("encoding progress: %w", err)
	}
	if err := b.backend.Set(ctx, ProgressKey(s.MatchID), data); err != nil {
		return fmt.Errorf("saving progress for %s: %w", s.MatchID, err)
	}
	return nil
}

// LoadProgress restores an in-progress match. Expired or unreadable entries are deleted and
// reported as absent.
func (b *Bridge) LoadProgress(ctx context.Context, matchID string) (match.State, bool, error) {
	key := ProgressKey(matchID)

	var p Progress
	ok, err := b.load(ctx, key, &p, func() time.Time { return p.SavedAt })
	if err != nil || !ok {
		return match.State{}, false, err
	}

	s := p.State()
	if s.MatchID == "" {
		s.MatchID = matchID
	}
	return s, true, nil
}

// SaveStats stores the statistics of a finished match
func (b *Bridge) SaveStats(ctx context.Context, matchID string, stats match.MatchStats) error {
	data, err := json.Marshal(StatsRecord{MatchStats: stats, SavedAt: b.clock.Now()})
	if err != nil {
		return fmt.Errorf("encoding stats: %w", err)
	}
	if err := b.backend.Set(ctx, StatsKey(matchID), data); err != nil {
		return fmt.Errorf("saving stats for %s: %w", matchID, err)
	}
	return nil
}

// LoadStats returns the statistics of a finished match if any were saved
func (b *Bridge) LoadStats(ctx context.Context, matchID string) (*match.MatchStats, bool, error) {
	var rec StatsRecord
	ok, err := b.load(ctx, StatsKey(matchID), &rec, func() time.Time { return rec.SavedAt })
	if err != nil || !ok {
		return nil, false, err
	}
	return &rec.MatchStats, true, nil
}

// load decodes key into v, discarding corrupted or expired entries
func (b *Bridge) load(ctx context.Context, key string, v any, savedAt func() time.Time) (bool, error) {
	data, err := b.backend.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("loading %s: %w", key, err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("discarding corrupted match state")
		return false, b.discard(ctx, key)
	}
	if b.expired(savedAt()) {
		log.Info().Str("key", key).Time("savedAt", savedAt()).Msg("discarding expired match state")
		return false, b.discard(ctx, key)
	}
	return true, nil
}

func (b *Bridge) discard(ctx context.Context, key string) error {
	if err := b.backend.Delete(ctx, key); err != nil {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	return nil
}

// DeleteProgress removes the in-progress entry of a match
func (b *Bridge) DeleteProgress(ctx context.Context, matchID string) error {
	return b.discard(ctx, ProgressKey(matchID))
}

// Finish stores the final statistics and drops the in-progress entry
func (b *Bridge) Finish(ctx context.Context, s match.State) error {
	if s.Stats == nil {
		return errors.New("match has no statistics")
	}
	if err := b.SaveStats(ctx, s.MatchID, *s.Stats); err != nil {
		return err
	}
	return b.DeleteProgress(ctx, s.MatchID)
}

// Clear removes both the in-progress and the finished entry of a match
func (b *Bridge) Clear(ctx context.Context, matchID string) error {
	return errors.Join(
		b.discard(ctx, ProgressKey(matchID)),
		b.discard(ctx, StatsKey(matchID)),
	)
}

// Sweep deletes every expired or unreadable entry and returns how many were removed
func (b *Bridge) Sweep(ctx context.Context) (int, error) {
	keys, err := b.backend.Keys(ctx, ProgressKeyPrefix)
	if err != nil {
		return 0, fmt.Errorf("listing keys: %w", err)
	}

	removed := 0
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return removed, err
		}

		data, err := b.backend.Get(ctx, key)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return removed, fmt.Errorf("loading %s: %w", key, err)
		}

		var stamp struct {
			SavedAt time.Time `json:"savedAt"`
		}
		if err := json.Unmarshal(data, &stamp); err == nil && !b.expired(stamp.SavedAt) {
			continue
		}
		if err := b.discard(ctx, key); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// MatchIDs lists the matches with saved progress
func (b *Bridge) MatchIDs(ctx context.Context) ([]string, error) {
	keys, err := b.backend.Keys(ctx, ProgressKeyPrefix)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(keys))
	for _, key := range keys {
		if strings.HasPrefix(key, StatsKeyPrefix) {
			continue
		}
		ids = append(ids, strings.TrimPrefix(key, ProgressKeyPrefix))
	}
	return ids, nil
}
