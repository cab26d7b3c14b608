package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"
)

// Sweeper deletes expired saved state
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// Evictor unloads idle live matches
type Evictor interface {
	Evict(idle time.Duration) int
}

type Options struct {
	SweepInterval time.Duration
	EvictInterval time.Duration
	IdleTimeout   time.Duration
}

type Scheduler struct {
	s       gocron.Scheduler
	sweeper Sweeper
	evictor Evictor
	opts    Options
}

func NewScheduler(sweeper Sweeper, evictor Evictor, opts Options, schedOpts ...gocron.SchedulerOption) (*Scheduler, error) {
	s, err := gocron.NewScheduler(schedOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	return &Scheduler{
		s:       s,
		sweeper: sweeper,
		evictor: evictor,
		opts:    opts,
	}, nil
}

func (s *Scheduler) Start() error {
	// Expired state - swept once at startup, then every SweepInterval
	_, err := s.s.NewJob(
		gocron.DurationJob(s.opts.SweepInterval),
		gocron.NewTask(s.sweep),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to create sweep job: %w", err)
	}

	// Idle sessions
	_, err = s.s.NewJob(
		gocron.DurationJob(s.opts.EvictInterval),
		gocron.NewTask(s.evict),
	)
	if err != nil {
		return fmt.Errorf("failed to create evict job: %w", err)
	}

	s.s.Start()
	return nil
}

func (s *Scheduler) Stop() error {
	return s.s.Shutdown()
}

func (s *Scheduler) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	removed, err := s.sweeper.Sweep(ctx)
	if err != nil {
		log.Error().Err(err).Int("removed", removed).Msg("failed to sweep expired match state")
		return
	}
	if removed > 0 {
		log.Info().Int("removed", removed).Msg("swept expired match state")
	}
}

func (s *Scheduler) evict() {
	if n := s.evictor.Evict(s.opts.IdleTimeout); n > 0 {
		log.Info().Int("evicted", n).Msg("evicted idle matches")
	}
}
