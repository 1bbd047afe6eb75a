// Package jobs runs the server's periodic background work.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/domain/calendar"
)

// DefaultReminderSpec fires every day at 18:00.
const DefaultReminderSpec = "0 18 * * *"

// Reminders queues appointment reminders for one day.
type Reminders interface {
	SendReminders(ctx context.Context, day calendar.Date) (int, error)
}

// ReminderJob reminds families of the next day's appointments.
type ReminderJob struct {
	reminders Reminders
	now       func() time.Time
	timeout   time.Duration
	logger    zerolog.Logger
}

func NewReminderJob(reminders Reminders, logger zerolog.Logger) *ReminderJob {
	return &ReminderJob{
		reminders: reminders,
		now:       time.Now,
		timeout:   5 * time.Minute,
		logger:    logger.With().Str("job", "reminders").Logger(),
	}
}

// Run queues reminders for tomorrow and returns how many were queued.
func (j *ReminderJob) Run(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	day := calendar.DateOf(j.now()).AddDays(1)
	n, err := j.reminders.SendReminders(ctx, day)
	if err != nil {
		j.logger.Error().Err(err).Str("day", day.String()).Msg("reminder run failed")
		return n, err
	}
	j.logger.Info().Str("day", day.String()).Int("queued", n).Msg("reminders queued")
	return n, nil
}

// Scheduler wraps a cron runner whose jobs share one parent context.
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	logger zerolog.Logger
}

func NewScheduler(logger zerolog.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(cron.WithChain(cron.Recover(cronLogger{logger}))),
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
}

// Add registers fn under a standard five-field cron spec.
func (s *Scheduler) Add(spec, name string, fn func(ctx context.Context) error) error {
	_, err := s.cron.AddFunc(spec, func() {
		if err := fn(s.ctx); err != nil {
			s.logger.Error().Err(err).Str("job", name).Msg("job failed")
		}
	})
	if err != nil {
		return fmt.Errorf("schedule %s (%q): %w", name, spec, err)
	}
	s.logger.Info().Str("job", name).Str("spec", spec).Msg("job scheduled")
	return nil
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
