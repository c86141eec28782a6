package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker"

	"phishguard/internal/domain/models"
	"phishguard/pkg/logger"
)

// PredictionObserver receives every served prediction after the response is
// built (audit log, event stream, shared stats)
type PredictionObserver interface {
	Name() string
	OnPrediction(ctx context.Context, outcome *models.PredictionOutcome) error
}

// DispatcherConfig holds configuration for the outcome dispatcher
type DispatcherConfig struct {
	QueueSize      int
	WorkerPoolSize int
	ObserveTimeout time.Duration
}

// DefaultDispatcherConfig returns default configuration
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		QueueSize:      1024,
		WorkerPoolSize: 4,
		ObserveTimeout: 2 * time.Second,
	}
}

type guardedObserver struct {
	observer PredictionObserver
	breaker  *gobreaker.CircuitBreaker
}

// Dispatcher fans prediction outcomes out to observers on a worker pool so the
// request path never waits on storage or network I/O. Each observer sits behind
// its own circuit breaker.
type Dispatcher struct {
	config    DispatcherConfig
	queue     chan *models.PredictionOutcome
	observers []guardedObserver
	logger    *logger.Logger

	wg        sync.WaitGroup
	closeOnce sync.Once
	closed    atomic.Bool

	dispatched atomic.Int64
	dropped    atomic.Int64
	failed     atomic.Int64
}

// NewDispatcher creates a dispatcher; call Start to launch the workers
func NewDispatcher(cfg DispatcherConfig, log *logger.Logger, observers ...PredictionObserver) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultDispatcherConfig().QueueSize
	}
	if cfg.WorkerPoolSize <= 0 {
		cfg.WorkerPoolSize = DefaultDispatcherConfig().WorkerPoolSize
	}
	if cfg.ObserveTimeout <= 0 {
		cfg.ObserveTimeout = DefaultDispatcherConfig().ObserveTimeout
	}

	log = log.WithComponent("dispatcher")

	d := &Dispatcher{
		config: cfg,
		queue:  make(chan *models.PredictionOutcome, cfg.QueueSize),
		logger: log,
	}

	for _, o := range observers {
		if o == nil {
			continue
		}
		d.observers = append(d.observers, guardedObserver{
			observer: o,
			breaker:  newObserverBreaker(o.Name(), log),
		})
	}

	return d
}

func newObserverBreaker(name string, log *logger.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("observer", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("observer circuit breaker state changed")
		},
	})
}

// Start launches the worker pool. Workers exit when Close is called and the
// queue has drained.
func (d *Dispatcher) Start() {
	for i := 0; i < d.config.WorkerPoolSize; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for outcome := range d.queue {
				d.deliver(outcome)
			}
		}()
	}

	d.logger.Info().
		Int("workers", d.config.WorkerPoolSize).
		Int("observers", len(d.observers)).
		Msg("dispatcher started")
}

// Submit enqueues an outcome without blocking. It returns false when the queue
// is full or the dispatcher is closed; the outcome is then dropped.
func (d *Dispatcher) Submit(outcome *models.PredictionOutcome) (ok bool) {
	if outcome == nil || len(d.observers) == 0 || d.closed.Load() {
		return false
	}

	// Close may race with Submit; a send on the closed channel is a drop
	defer func() {
		if recover() != nil {
			d.dropped.Add(1)
			ok = false
		}
	}()

	select {
	case d.queue <- outcome:
		return true
	default:
		d.dropped.Add(1)
		return false
	}
}

// Close stops accepting outcomes and waits for queued ones to be delivered
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.queue)
	})
	d.wg.Wait()

	d.logger.Info().
		Int64("dispatched", d.dispatched.Load()).
		Int64("dropped", d.dropped.Load()).
		Int64("failed", d.failed.Load()).
		Msg("dispatcher stopped")
}

func (d *Dispatcher) deliver(outcome *models.PredictionOutcome) {
	d.dispatched.Add(1)

	for _, g := range d.observers {
		ctx, cancel := context.WithTimeout(context.Background(), d.config.ObserveTimeout)
		_, err := g.breaker.Execute(func() (any, error) {
			return nil, g.observer.OnPrediction(ctx, outcome)
		})
		cancel()

		if err == nil {
			continue
		}
		d.failed.Add(1)
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			continue
		}
		d.logger.Warn().
			Err(err).
			Str("observer", g.observer.Name()).
			Str("prediction_id", outcome.ID.String()).
			Msg("observer failed")
	}
}

// DispatcherStats holds dispatcher counters
type DispatcherStats struct {
	Dispatched int64 `json:"dispatched"`
	Dropped    int64 `json:"dropped"`
	Failed     int64 `json:"failed"`
	Queued     int   `json:"queued"`
}

// Stats returns the dispatcher counters
func (d *Dispatcher) Stats() DispatcherStats {
	return DispatcherStats{
		Dispatched: d.dispatched.Load(),
		Dropped:    d.dropped.Load(),
		Failed:     d.failed.Load(),
		Queued:     len(d.queue),
	}
}
