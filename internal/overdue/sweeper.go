package overdue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrSweepInProgress is returned by RunOnce while another sweep is running.
var ErrSweepInProgress = errors.New("overdue sweep already in progress")

// SweepFunc flips loans due before now to overdue and reports how many changed.
type SweepFunc func(ctx context.Context, now time.Time) (int, error)

// Sweeper periodically moves borrowed records past their due date to overdue.
type Sweeper interface {
	Start(ctx context.Context) error
	Shutdown()
	RunOnce(ctx context.Context) (int, error)
}

type Config struct {
	Interval time.Duration
	// SkipInitialSweep disables the sweep that normally runs right after Start.
	SkipInitialSweep bool
	Logger           *logrus.Logger
	Now              func() time.Time
}

type sweeper struct {
	cfg   Config
	sweep SweepFunc

	sem    chan struct{}
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func NewSweeper(cfg Config, sweep SweepFunc) Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &sweeper{
		cfg:   cfg,
		sweep: sweep,
		sem:   make(chan struct{}, 1),
	}
}

func (s *sweeper) Start(ctx context.Context) error {
	if s.cancel != nil {
		return errors.New("overdue sweeper already started")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()

	s.cfg.Logger.Infof("overdue sweeper started, interval: %s", s.cfg.Interval)
	return nil
}

func (s *sweeper) Shutdown() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.cfg.Logger.Info("overdue sweeper stopped")
}

func (s *sweeper) loop() {
	if !s.cfg.SkipInitialSweep {
		s.tick()
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *sweeper) tick() {
	n, err := s.RunOnce(s.ctx)
	switch {
	case errors.Is(err, ErrSweepInProgress):
		s.cfg.Logger.Debug("overdue sweep skipped, previous sweep still running")
	case errors.Is(err, context.Canceled):
	case err != nil:
		s.cfg.Logger.Errorf("overdue sweep: %v", err)
	case n > 0:
		s.cfg.Logger.WithField("records", n).Info("marked borrow records overdue")
	default:
		s.cfg.Logger.Debug("overdue sweep found nothing to do")
	}
}

// RunOnce sweeps immediately. Sweeps never overlap.
func (s *sweeper) RunOnce(ctx context.Context) (int, error) {
	select {
	case s.sem <- struct{}{}:
		defer func() { <-s.sem }()
	default:
		return 0, ErrSweepInProgress
	}
	return s.sweep(ctx, s.cfg.Now())
}
