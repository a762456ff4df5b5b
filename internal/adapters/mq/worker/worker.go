// Package worker runs queued settlement jobs through a Settler.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/okian/fairway/internal/adapters/mq/queue"
	"github.com/okian/fairway/internal/settlement"
	"github.com/okian/fairway/pkg/logger"
	"github.com/okian/fairway/pkg/metrics"
)

// Settler settles or repairs one contest.
type Settler interface {
	Settle(ctx context.Context, contestID string) (settlement.Outcome, error)
	Repair(ctx context.Context, contestID string) (settlement.Outcome, error)
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// Report is the result of one job.
type Report struct {
	Job      queue.Job
	Summary  settlement.Summary
	Err      error
	Duration time.Duration
}

// Reporter receives job reports.
type Reporter func(Report)

// Worker processes jobs until the queue closes or it is shut down.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown stops the worker after the job in flight.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue   Queue
	settler Settler
	name    string
	report  Reporter
	clock   clockwork.Clock

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a worker.
func NewInMemoryWorker(q Queue, s Settler, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		settler:  s,
		name:     "worker",
		report:   func(Report) {},
		clock:    clockwork.NewRealClock(),
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			w.process(ctx, job)
		}
	}
}

// Shutdown stops the worker and waits for it to exit.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Done is closed when Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

func (w *InMemoryWorker) process(ctx context.Context, job queue.Job) {
	start := w.clock.Now()

	var (
		out settlement.Outcome
		err error
	)
	if job.Repair {
		out, err = w.settler.Repair(ctx, job.ContestID)
	} else {
		out, err = w.settler.Settle(ctx, job.ContestID)
	}
	d := w.clock.Since(start)
	metrics.RecordWorkerJob(float64(d.Microseconds())/1000, err != nil)

	if err != nil {
		w.logger.Warn(ctx, "settlement job failed",
			logger.String("contest_id", job.ContestID),
			logger.Bool("repair", job.Repair),
			logger.String("outcome", settlement.OutcomeLabel(err)),
			logger.Error(err),
		)
	} else {
		w.logger.Debug(ctx, "settlement job done",
			logger.String("contest_id", job.ContestID),
			logger.String("result_id", out.Summary.ResultID),
		)
	}
	w.report(Report{Job: job, Summary: out.Summary, Err: err, Duration: d})
}

// Pool manages multiple workers reading one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger
}

// NewPool creates a pool. A workerCount below 1 means one worker per CPU.
// Options apply to every worker; names are assigned per worker.
func NewPool(workerCount int, q Queue, s Settler, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}
	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Named("worker-pool"),
	}
	for i := range p.workers {
		wopts := append(append([]Option(nil), opts...), WithName("worker-"+strconv.Itoa(i)))
		p.workers[i] = NewInMemoryWorker(q, s, wopts...)
	}
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers.
func (p *Pool) Start(ctx context.Context) {
	metrics.UpdateWorkerActiveCount(len(p.workers))
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Wait blocks until every worker has exited, which happens once the queue
// is closed and drained or the start context is done.
func (p *Pool) Wait() {
	for _, w := range p.workers {
		<-w.done
	}
	metrics.UpdateWorkerActiveCount(0)
}

// Shutdown closes the queue if it can be closed and waits for the workers.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}
	for i, w := range p.workers {
		if err := w.Shutdown(ctx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			return err
		}
	}
	metrics.UpdateWorkerActiveCount(0)
	return nil
}
