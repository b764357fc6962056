package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vs-yayo-m/zalldi/internal/model"
)

type job struct {
	userID string
	n      model.Notification
}

// Dispatcher queues notifications and delivers them on worker goroutines.
// Enqueue never blocks on delivery and never reports failure to the caller.
type Dispatcher struct {
	target  Notifier
	logger  *zap.Logger
	timeout time.Duration

	queue chan job
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

type DispatcherConfig struct {
	QueueSize int
	Workers   int
	Timeout   time.Duration
}

func NewDispatcher(target Notifier, cfg DispatcherConfig, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	d := &Dispatcher{
		target:  target,
		logger:  logger,
		timeout: cfg.Timeout,
		queue:   make(chan job, cfg.QueueSize),
	}
	for i := 0; i < cfg.Workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
	return d
}

// Notify enqueues and always returns nil, so a Dispatcher can be handed to
// anything that wants a Notifier.
func (d *Dispatcher) Notify(_ context.Context, userID string, n model.Notification) error {
	d.Enqueue(userID, n)
	return nil
}

func (d *Dispatcher) Enqueue(userID string, n model.Notification) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.logger.Warn("notification dropped: dispatcher closed",
			zap.String("user_id", userID), zap.String("title", n.Title))
		return
	}
	select {
	case d.queue <- job{userID: userID, n: n}:
	default:
		d.logger.Warn("notification dropped: queue full",
			zap.String("user_id", userID), zap.String("title", n.Title))
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for j := range d.queue {
		d.deliver(j)
	}
}

func (d *Dispatcher) deliver(j job) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("notifier panicked", zap.String("user_id", j.userID), zap.Any("panic", r))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	if err := d.target.Notify(ctx, j.userID, j.n); err != nil {
		d.logger.Warn("notification failed",
			zap.String("user_id", j.userID),
			zap.String("title", j.n.Title),
			zap.Error(err))
	}
}

// Close stops accepting work and waits for queued notifications to be
// delivered, or for ctx to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
