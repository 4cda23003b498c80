package moderation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// ErrQueueFull is returned by Submit when the ingestion queue is saturated;
// the webhook caller answers 503 and the platform redelivers.
var ErrQueueFull = errors.New("moderation queue full")

// Handler processes one comment event. A returned error re-enqueues the task
// up to the pool's attempt limit.
type Handler func(ctx context.Context, in *Input) error

type task struct {
	in       *Input
	attempts int
	bo       backoff.BackOff
}

// Pool is the bounded-concurrency worker pool for asynchronous comment
// ingestion. Failed tasks are re-enqueued with exponential backoff; tasks
// that exhaust their attempts are dropped with a dead-letter log line.
type Pool struct {
	queue       chan task
	workers     int
	maxAttempts int
	handler     Handler
	logger      *zap.Logger

	wg      sync.WaitGroup
	started bool
	mu      sync.Mutex
}

func NewPool(workers, queueSize, maxAttempts int, handler Handler, logger *zap.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Pool{
		queue:       make(chan task, queueSize),
		workers:     workers,
		maxAttempts: maxAttempts,
		handler:     handler,
		logger:      logger,
	}
}

// Start launches the workers. They run until ctx is cancelled.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.run(ctx)
	}
}

// Submit enqueues one comment for evaluation. Non-blocking: a full queue is
// the caller's signal to shed load.
func (p *Pool) Submit(in *Input) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxInterval = 30 * time.Second

	select {
	case p.queue <- task{in: in, bo: bo}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Wait blocks until all workers have exited after ctx cancellation.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) run(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			p.drain(context.WithoutCancel(ctx))
			return
		case t := <-p.queue:
			p.process(ctx, t)
		}
	}
}

// drain empties the queue after shutdown begins: comments already accepted
// with a 200 get evaluated rather than dropped. The detached context keeps
// downstream calls from failing on the cancelled shutdown context. Retries
// scheduled during draining are abandoned.
func (p *Pool) drain(ctx context.Context) {
	for {
		select {
		case t := <-p.queue:
			p.process(ctx, t)
		default:
			return
		}
	}
}

func (p *Pool) process(ctx context.Context, t task) {
	err := p.handler(ctx, t.in)
	if err == nil {
		return
	}

	t.attempts++
	if t.attempts >= p.maxAttempts {
		p.logger.Error("comment evaluation dropped after max attempts",
			zap.String("comment_id", t.in.CommentID),
			zap.Int("attempts", t.attempts),
			zap.Error(err))
		return
	}

	workerRetries.Inc()
	delay := t.bo.NextBackOff()
	p.logger.Warn("comment evaluation failed, re-enqueueing",
		zap.String("comment_id", t.in.CommentID),
		zap.Int("attempt", t.attempts),
		zap.Duration("retry_in", delay),
		zap.Error(err))

	time.AfterFunc(delay, func() {
		select {
		case p.queue <- t:
		default:
			p.logger.Error("retry dropped, queue full", zap.String("comment_id", t.in.CommentID))
		}
	})
}
