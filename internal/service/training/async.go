package training

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type writeTask struct {
	op string
	fn func(ctx context.Context) error
}

// asyncWriter runs best-effort writes off the request path. Every task's
// outcome reaches onDone and the log; nothing is dropped silently.
type asyncWriter struct {
	mu      sync.RWMutex
	closed  bool
	tasks   chan writeTask
	wg      sync.WaitGroup
	timeout time.Duration
	onDone  func(op string, err error)
	logger  *zap.Logger
}

func newAsyncWriter(buffer int, timeout time.Duration, onDone func(op string, err error), logger *zap.Logger) *asyncWriter {
	if buffer <= 0 {
		buffer = 64
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &asyncWriter{
		tasks:   make(chan writeTask, buffer),
		timeout: timeout,
		onDone:  onDone,
		logger:  logger,
	}
	w.wg.Add(1)
	go w.loop()
	return w
}

func (w *asyncWriter) loop() {
	defer w.wg.Done()
	for t := range w.tasks {
		w.run(t)
	}
}

func (w *asyncWriter) run(t writeTask) {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()
	err := t.fn(ctx)
	if err != nil {
		w.logger.Error("background write failed", zap.String("op", t.op), zap.Error(err))
	} else {
		w.logger.Debug("background write done", zap.String("op", t.op))
	}
	if w.onDone != nil {
		w.onDone(t.op, err)
	}
}

// Submit queues fn. When the queue is full or the writer is closed the
// task runs on the caller's goroutine instead.
func (w *asyncWriter) Submit(op string, fn func(ctx context.Context) error) {
	t := writeTask{op: op, fn: fn}
	w.mu.RLock()
	if !w.closed {
		select {
		case w.tasks <- t:
			w.mu.RUnlock()
			return
		default:
			w.logger.Warn("background write queue full, writing inline", zap.String("op", op))
		}
	}
	w.mu.RUnlock()
	w.run(t)
}

// Close stops accepting tasks and waits for queued ones, or for ctx.
func (w *asyncWriter) Close(ctx context.Context) error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.tasks)
	}
	w.mu.Unlock()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
