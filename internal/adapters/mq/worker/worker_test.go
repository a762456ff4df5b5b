package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/fairway/internal/adapters/mq/queue"
	"github.com/okian/fairway/internal/adapters/mq/worker"
	"github.com/okian/fairway/internal/domain/failure"
	"github.com/okian/fairway/internal/settlement"
	logging "github.com/okian/fairway/pkg/logger"
)

type mockSettler struct {
	mu      sync.Mutex
	settled map[string]int
	repairs map[string]int
	errs    map[string]error
}

func newMockSettler() *mockSettler {
	return &mockSettler{
		settled: make(map[string]int),
		repairs: make(map[string]int),
		errs:    make(map[string]error),
	}
}

func (m *mockSettler) Settle(_ context.Context, id string) (settlement.Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.errs[id]; ok {
		return settlement.Outcome{}, err
	}
	m.settled[id]++
	return settlement.Outcome{Summary: settlement.Summary{ContestID: id, ResultID: "r-" + id}}, nil
}

func (m *mockSettler) Repair(_ context.Context, id string) (settlement.Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.repairs[id]++
	return settlement.Outcome{Summary: settlement.Summary{ContestID: id, ResultID: "r-" + id}}, nil
}

func (m *mockSettler) count(id string) (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settled[id], m.repairs[id]
}

type collector struct {
	mu      sync.Mutex
	reports []worker.Report
}

func (c *collector) add(r worker.Report) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reports = append(c.reports, r)
}

func (c *collector) byContest() map[string]worker.Report {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]worker.Report, len(c.reports))
	for _, r := range c.reports {
		out[r.Job.ContestID] = r
	}
	return out
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a worker reading a queue", t, func() {
		_ = logging.Init()

		q := queue.NewInMemoryQueue(queue.WithCapacity(10))
		settler := newMockSettler()
		reports := &collector{}
		w := worker.NewInMemoryWorker(q, settler, worker.WithName("test-worker"), worker.WithReporter(reports.add))

		convey.Convey("When settle and repair jobs are processed", func() {
			settler.errs["c-bad"] = failure.New("test", failure.ErrConflict, "contest c-bad is settled")
			ctx := context.Background()
			convey.So(q.Enqueue(ctx, queue.Job{ContestID: "c1"}), convey.ShouldBeTrue)
			convey.So(q.Enqueue(ctx, queue.Job{ContestID: "c2", Repair: true}), convey.ShouldBeTrue)
			convey.So(q.Enqueue(ctx, queue.Job{ContestID: "c-bad"}), convey.ShouldBeTrue)
			_ = q.Close()

			go w.Run(ctx)
			select {
			case <-w.Done():
			case <-time.After(2 * time.Second):
			}

			convey.Convey("Then each job is dispatched and reported", func() {
				s1, _ := settler.count("c1")
				_, r2 := settler.count("c2")
				convey.So(s1, convey.ShouldEqual, 1)
				convey.So(r2, convey.ShouldEqual, 1)

				got := reports.byContest()
				convey.So(len(got), convey.ShouldEqual, 3)
				convey.So(got["c1"].Err, convey.ShouldBeNil)
				convey.So(got["c1"].Summary.ResultID, convey.ShouldEqual, "r-c1")
				convey.So(errors.Is(got["c-bad"].Err, failure.ErrConflict), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When shut down while idle", func() {
			go w.Run(context.Background())
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()

			convey.Convey("Then it stops gracefully and a second call is harmless", func() {
				convey.So(w.Shutdown(ctx), convey.ShouldBeNil)
				convey.So(w.Shutdown(ctx), convey.ShouldBeNil)
			})
		})

		convey.Convey("When its context is cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			go w.Run(ctx)
			cancel()

			convey.Convey("Then Run returns", func() {
				select {
				case <-w.Done():
					convey.So(true, convey.ShouldBeTrue)
				case <-time.After(2 * time.Second):
					convey.So("worker still running", convey.ShouldBeEmpty)
				}
			})
		})
	})
}

func TestWorkerPool(t *testing.T) {
	convey.Convey("Given a pool of workers", t, func() {
		_ = logging.Init()

		q := queue.NewInMemoryQueue(queue.WithCapacity(200))
		settler := newMockSettler()
		reports := &collector{}
		pool := worker.NewPool(4, q, settler, worker.WithReporter(reports.add))

		convey.Convey("When created with a non-positive count", func() {
			convey.So(worker.NewPool(0, q, settler).Size(), convey.ShouldBeGreaterThan, 0)
		})

		convey.Convey("When many jobs are queued and the queue is closed", func() {
			ctx := context.Background()
			const jobs = 100
			for i := 0; i < jobs; i++ {
				convey.So(q.Enqueue(ctx, queue.Job{ContestID: fmt.Sprintf("c%d", i)}), convey.ShouldBeTrue)
			}
			_ = q.Close()

			pool.Start(ctx)
			done := make(chan struct{})
			go func() {
				pool.Wait()
				close(done)
			}()
			select {
			case <-done:
			case <-time.After(5 * time.Second):
			}

			convey.Convey("Then every job is processed exactly once", func() {
				got := reports.byContest()
				convey.So(len(got), convey.ShouldEqual, jobs)
				for i := 0; i < jobs; i++ {
					s, _ := settler.count(fmt.Sprintf("c%d", i))
					convey.So(s, convey.ShouldEqual, 1)
				}
			})
		})

		convey.Convey("When shut down", func() {
			pool.Start(context.Background())
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()

			convey.Convey("Then the queue is closed and workers stop", func() {
				convey.So(pool.Shutdown(ctx), convey.ShouldBeNil)
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
			})
		})
	})
}
