package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"

	"github.com/i474232898/clock-weather/internal/weather"
)

const (
	defaultInterval = 30 * time.Minute
	jobTimeout      = 30 * time.Second
)

// Refresher is the part of the weather cache the scheduler drives.
type Refresher interface {
	Refresh(ctx context.Context) (*weather.Payload, error)
}

// Scheduler periodically refreshes the weather cache so the clock always has
// recent data even when no widget asks for it.
type Scheduler struct {
	scheduler *gocron.Scheduler
	target    Refresher
	interval  time.Duration
	log       zerolog.Logger
}

// New creates a new Scheduler. A non-positive interval falls back to 30m.
func New(target Refresher, interval time.Duration, log zerolog.Logger) *Scheduler {
	if interval <= 0 {
		interval = defaultInterval
	}
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		target:    target,
		interval:  interval,
		log:       log.With().Str("component", "scheduler").Logger(),
	}
}

// Start schedules the refresh job, runs it once right away and starts the
// underlying scheduler.
func (s *Scheduler) Start() error {
	_, err := s.scheduler.Every(s.interval).StartImmediately().Do(s.run)
	if err != nil {
		return err
	}
	s.scheduler.StartAsync()
	s.log.Info().Dur("interval", s.interval).Msg("weather refresh scheduled")
	return nil
}

// Stop stops the scheduler and cancels any future runs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	start := time.Now()
	if _, err := s.target.Refresh(ctx); err != nil {
		s.log.Warn().Err(err).Msg("scheduled refresh failed; serving previous data")
		return
	}
	s.log.Debug().Dur("took", time.Since(start)).Msg("scheduled refresh done")
}
