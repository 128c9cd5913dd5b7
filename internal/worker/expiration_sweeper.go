package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/polkiloo/storefront/internal/domain/model"
)

const sweeperLockName = "expiration-sweeper"

// SweepTarget exposes the order operations required by the sweeper.
type SweepTarget interface {
	ExpiredOrders(ctx context.Context, limit int) ([]model.Order, error)
	CancelExpired(ctx context.Context, orderID int64) error
}

// Locker grants a cluster-wide lease. acquired is false while another holder owns it.
type Locker interface {
	TryLock(ctx context.Context, name string, ttl time.Duration) (release func(context.Context) error, acquired bool, err error)
}

// SweepFailure describes an order the sweep could not cancel.
type SweepFailure struct {
	OrderID int64
	Number  string
	Err     error
}

// SweepReport summarises a single sweep.
type SweepReport struct {
	Skipped   bool
	Found     int
	Cancelled []int64
	Failures  []SweepFailure
}

// ExpirationSweeper periodically cancels pending orders whose payment window elapsed.
type ExpirationSweeper struct {
	target    SweepTarget
	locker    Locker
	interval  time.Duration
	batchSize int
	workers   int
	logger    *slog.Logger

	wg     sync.WaitGroup
	cancel context.CancelFunc
	mu     sync.Mutex
}

// NewExpirationSweeper constructs the sweeper.
func NewExpirationSweeper(target SweepTarget, locker Locker, interval time.Duration, batchSize, workers int, logger *slog.Logger) *ExpirationSweeper {
	if workers <= 0 {
		workers = 1
	}
	if batchSize <= 0 {
		batchSize = 1
	}
	return &ExpirationSweeper{
		target:    target,
		locker:    locker,
		interval:  interval,
		batchSize: batchSize,
		workers:   workers,
		logger:    logger,
	}
}

// Start launches the ticker loop.
func (s *ExpirationSweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.loop(runCtx)
}

// Stop cancels the loop and waits for an in-flight sweep.
func (s *ExpirationSweeper) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *ExpirationSweeper) loop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep cancels at most one batch of expired orders, oldest first.
// It does nothing when another instance holds the sweeper lock.
func (s *ExpirationSweeper) Sweep(ctx context.Context) SweepReport {
	release, acquired, err := s.locker.TryLock(ctx, sweeperLockName, s.interval)
	if err != nil {
		s.logger.Error("sweeper lock failed", slog.String("error", err.Error()))
		return SweepReport{Skipped: true}
	}
	if !acquired {
		s.logger.Info("expiration sweep skipped, lock held elsewhere")
		return SweepReport{Skipped: true}
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("sweeper lock release failed", slog.String("error", err.Error()))
		}
	}()

	orders, err := s.target.ExpiredOrders(ctx, s.batchSize)
	if err != nil {
		s.logger.Error("fetch expired orders failed", slog.String("error", err.Error()))
		return SweepReport{}
	}
	report := SweepReport{Found: len(orders)}
	if len(orders) == 0 {
		return report
	}

	results := s.cancelAll(ctx, orders)
	for i, order := range orders {
		if results[i] != nil {
			report.Failures = append(report.Failures, SweepFailure{OrderID: order.ID, Number: order.Number, Err: results[i]})
			s.logger.Error("expired order cancellation failed",
				slog.Int64("order_id", order.ID),
				slog.String("number", order.Number),
				slog.String("error", results[i].Error()),
			)
			continue
		}
		report.Cancelled = append(report.Cancelled, order.ID)
	}

	s.logger.Info("expiration sweep finished",
		slog.Int("found", report.Found),
		slog.Int("cancelled", len(report.Cancelled)),
		slog.Int("failed", len(report.Failures)),
	)
	return report
}

// cancelAll runs cancellations on a bounded pool and returns one result per order.
func (s *ExpirationSweeper) cancelAll(ctx context.Context, orders []model.Order) []error {
	results := make([]error, len(orders))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for range min(s.workers, len(orders)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = s.target.CancelExpired(ctx, orders[i].ID)
			}
		}()
	}

	for i := range orders {
		if err := ctx.Err(); err != nil {
			results[i] = err
			continue
		}
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return results
}
