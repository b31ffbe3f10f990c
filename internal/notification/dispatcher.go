package notification

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/frahmantamala/custody-ledger/internal/metrics"
)

var ErrQueueFull = errors.New("notification queue full")

type Worker struct {
	ID         int
	WorkerPool chan chan *Notification
	JobChannel chan *Notification
	Logger     *slog.Logger
}

func NewWorker(id int, workerPool chan chan *Notification, logger *slog.Logger) *Worker {
	return &Worker{
		ID:         id,
		WorkerPool: workerPool,
		JobChannel: make(chan *Notification),
		Logger:     logger,
	}
}

func (w *Worker) Start(ctx context.Context, wg *sync.WaitGroup, deliver func(*Notification)) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case w.WorkerPool <- w.JobChannel:
			case <-ctx.Done():
				return
			}

			select {
			case n := <-w.JobChannel:
				deliver(n)
			case <-ctx.Done():
				w.Logger.Debug("notification worker shutting down", "worker_id", w.ID)
				return
			}
		}
	}()
}

type DispatcherConfig struct {
	Workers         int
	QueueSize       int
	DeliveryTimeout time.Duration
}

// Dispatcher fans notifications out to every sink on a fixed pool of workers. Enqueue never
// blocks; a full queue drops the notification with a warning.
type Dispatcher struct {
	sinks   []Sink
	logger  *slog.Logger
	timeout time.Duration

	jobQueue   chan *Notification
	workerPool chan chan *Notification
	workers    int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
	queued atomic.Int64
}

func NewDispatcher(cfg DispatcherConfig, logger *slog.Logger, sinks ...Sink) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = 10 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		sinks:      sinks,
		logger:     logger,
		timeout:    cfg.DeliveryTimeout,
		jobQueue:   make(chan *Notification, cfg.QueueSize),
		workerPool: make(chan chan *Notification, cfg.Workers),
		workers:    cfg.Workers,
		ctx:        ctx,
		cancel:     cancel,
	}
}

func (d *Dispatcher) Start() {
	d.once.Do(func() {
		for i := 0; i < d.workers; i++ {
			NewWorker(i, d.workerPool, d.logger).Start(d.ctx, &d.wg, d.deliver)
		}
		d.wg.Add(1)
		go d.dispatch()

		d.logger.Info("notification dispatcher started",
			"workers", d.workers,
			"queue_size", cap(d.jobQueue),
			"sinks", len(d.sinks))
	})
}

func (d *Dispatcher) dispatch() {
	defer d.wg.Done()
	for {
		select {
		case n := <-d.jobQueue:
			select {
			case jobChannel := <-d.workerPool:
				select {
				case jobChannel <- n:
				case <-d.ctx.Done():
					d.queued.Add(-1)
					return
				}
			case <-d.ctx.Done():
				d.queued.Add(-1)
				return
			}
		case <-d.ctx.Done():
			return
		}
	}
}

func (d *Dispatcher) Enqueue(n *Notification) error {
	d.queued.Add(1)
	select {
	case d.jobQueue <- n:
		return nil
	default:
		d.queued.Add(-1)
		d.logger.Warn("notification queue full, dropping",
			"kind", n.Kind,
			"user_id", n.UserID,
			"queue_capacity", cap(d.jobQueue))
		return ErrQueueFull
	}
}

func (d *Dispatcher) deliver(n *Notification) {
	defer d.queued.Add(-1)
	for _, s := range d.sinks {
		ctx, cancel := context.WithTimeout(d.ctx, d.timeout)
		err := s.Deliver(ctx, n)
		cancel()
		metrics.RecordNotification(s.Name(), err)
		if err != nil {
			d.logger.Error("notification delivery failed",
				"sink", s.Name(),
				"kind", n.Kind,
				"user_id", n.UserID,
				"error", err)
		}
	}
}

// Flush waits until everything enqueued so far has been delivered, bounded by ctx.
func (d *Dispatcher) Flush(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for d.queued.Load() > 0 {
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (d *Dispatcher) Shutdown(ctx context.Context) {
	if err := d.Flush(ctx); err != nil {
		d.logger.Warn("notification dispatcher stopped with pending deliveries", "error", err)
	}
	d.cancel()
	d.wg.Wait()
	d.logger.Info("notification dispatcher stopped")
}
