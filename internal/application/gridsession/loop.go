package gridsession

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/erp/gridsync/internal/domain/shared"
)

// ErrSessionClosed is returned for calls on a closed session
var ErrSessionClosed = shared.NewDomainError("SESSION_CLOSED", "Session is closed")

// Loop serializes all work of one session on a single goroutine. Blocking
// backend calls run through Run on their own goroutine and hand their
// continuation back to the loop.
type Loop struct {
	tasks   chan func()
	done    chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
	logger  *zap.Logger

	mu        sync.Mutex
	inflight  int
	idle      chan struct{}
	closeOnce sync.Once
}

// NewLoop starts a loop. timeout bounds each background task; zero means no
// bound beyond the loop lifetime.
func NewLoop(logger *zap.Logger, timeout time.Duration) *Loop {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	idle := make(chan struct{})
	close(idle)
	l := &Loop{
		tasks:   make(chan func(), 64),
		done:    make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
		timeout: timeout,
		logger:  logger,
		idle:    idle,
	}
	go l.run()
	return l
}

func (l *Loop) run() {
	for {
		select {
		case fn := <-l.tasks:
			l.exec(fn)
		case <-l.done:
			return
		}
	}
}

func (l *Loop) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("panic in session loop", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()
	fn()
}

// Post queues fn on the loop. It reports false once the loop is closed.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.tasks <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Do runs fn on the loop and waits for it to return
func (l *Loop) Do(ctx context.Context, fn func() error) error {
	result := make(chan error, 1)
	queued := l.Post(func() {
		if ctx.Err() != nil {
			result <- ctx.Err()
			return
		}
		var err error
		func() {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("session loop: panic: %v", r)
				}
			}()
			err = fn()
		}()
		result <- err
	})
	if !queued {
		return ErrSessionClosed
	}
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return ErrSessionClosed
	}
}

// Run implements grid.Scheduler. The task runs on its own goroutine; the
// continuation it returns runs on the loop.
func (l *Loop) Run(task func(ctx context.Context) func()) {
	l.begin()
	go func() {
		cont := l.runTask(task)
		queued := l.Post(func() {
			defer l.end()
			if cont != nil {
				cont()
			}
		})
		if !queued {
			l.end()
		}
	}()
}

func (l *Loop) runTask(task func(ctx context.Context) func()) (cont func()) {
	ctx, cancel := l.taskContext()
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("panic in background task", zap.Any("panic", r), zap.Stack("stack"))
			cont = nil
		}
	}()
	return task(ctx)
}

func (l *Loop) begin() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.inflight == 0 {
		l.idle = make(chan struct{})
	}
	l.inflight++
}

func (l *Loop) end() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.inflight--
	if l.inflight == 0 {
		close(l.idle)
	}
}

// Pending returns the number of background tasks not yet continued
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inflight
}

func (l *Loop) taskContext() (context.Context, context.CancelFunc) {
	if l.timeout > 0 {
		return context.WithTimeout(l.ctx, l.timeout)
	}
	return context.WithCancel(l.ctx)
}

// Settle waits until every task started through Run, including tasks started
// by continuations, has finished on the loop. It must not be called from the
// loop goroutine.
func (l *Loop) Settle(ctx context.Context) error {
	l.mu.Lock()
	idle := l.idle
	l.mu.Unlock()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return ErrSessionClosed
	}
}

// Close stops the loop. Outstanding continuations are dropped.
func (l *Loop) Close() {
	l.closeOnce.Do(func() {
		l.cancel()
		close(l.done)
	})
}

// Closed reports whether Close was called
func (l *Loop) Closed() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}
