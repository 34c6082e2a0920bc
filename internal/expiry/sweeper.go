// Package expiry moves PENDING bookings that were never paid to EXPIRED.
package expiry

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-co-op/gocron/v2"
	"github.com/robertarktes/hotel-reservations/internal/domain"
	"github.com/robertarktes/hotel-reservations/internal/observability"
)

// JobName is also the distributed lock key, so one instance sweeps per tick.
const JobName = "booking-expiry-sweep"

type Sweeper struct {
	store  domain.Store
	ttl    time.Duration
	logger observability.Logger
	now    func() time.Time
}

type Option func(*Sweeper)

func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) { s.now = now }
}

func NewSweeper(store domain.Store, ttl time.Duration, logger observability.Logger, opts ...Option) *Sweeper {
	s := &Sweeper{
		store:  store,
		ttl:    ttl,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sweep expires every PENDING booking created more than ttl ago and records
// a lifecycle event for each. The update only matches rows still PENDING, so
// a booking paid or cancelled meanwhile is left alone.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	now := s.now()
	var expired []domain.Booking
	err := s.store.WithTx(ctx, func(tx domain.Tx) error {
		var err error
		expired, err = tx.ExpirePending(ctx, now.Add(-s.ttl), now)
		if err != nil {
			return errors.Wrap(err, "expire pending bookings")
		}
		for i := range expired {
			ev := domain.NewLifecycleEvent(&expired[i], domain.StatusPending, domain.StatusExpired, now)
			if err := tx.InsertOutbox(ctx, ev); err != nil {
				return errors.Wrap(err, "insert outbox")
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	observability.BookingsExpired.Add(float64(len(expired)))
	s.logger.WithField("expired", len(expired)).Info("expiry sweep finished")
	return len(expired), nil
}

// Schedule registers the sweep on sched every interval. A tick that is still
// running when the next one is due is skipped.
func (s *Sweeper) Schedule(ctx context.Context, sched gocron.Scheduler, interval time.Duration) (gocron.Job, error) {
	return sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			if _, err := s.Sweep(ctx); err != nil {
				s.logger.WithError(err).Error("expiry sweep failed")
			}
		}),
		gocron.WithName(JobName),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
}
