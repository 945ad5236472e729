package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/pkg/errors"

	"github.com/guigasprogramador/oneeduca/core"
	"github.com/guigasprogramador/oneeduca/core/certificate"
)

// Sweeper issues the certificates of completed enrollments. *certificate.Service implements it.
type Sweeper interface {
	SweepCompleted(ctx context.Context) ([]certificate.BatchReport, error)
}

// Scheduler periodically sweeps completed enrollments that have no certificate yet,
// catching up on completions whose issuance was never triggered.
type Scheduler struct {
	scheduler *gocron.Scheduler
	sweeper   Sweeper
	logger    core.Logger
	timeout   time.Duration
}

func New(sweeper Sweeper, logger core.Logger) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		sweeper:   sweeper,
		logger:    logger,
		timeout:   10 * time.Minute,
	}
}

// Start runs the sweep every interval, without blocking.
func (s *Scheduler) Start(interval time.Duration) error {
	if interval <= 0 {
		return errors.New("sweep interval must be positive")
	}
	if _, err := s.scheduler.Every(interval).WaitForSchedule().Do(s.Sweep); err != nil {
		return errors.Wrap(err, "scheduling certificate sweep")
	}
	s.scheduler.StartAsync()
	return nil
}

// Stop terminates all scheduled tasks
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// Sweep runs one pass over every course.
func (s *Scheduler) Sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	reports, err := s.sweeper.SweepCompleted(ctx)
	if err != nil {
		s.logger.Error("sweeping completed enrollments", err)
		return
	}

	var issued, failed int
	for _, r := range reports {
		issued += r.Succeeded
		failed += r.Failed
	}
	s.logger.Info("certificate sweep finished", "courses", len(reports), "succeeded", issued, "failed", failed)
}
