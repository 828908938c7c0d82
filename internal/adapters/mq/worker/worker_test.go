package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	queue "github.com/okian/ladder/internal/adapters/mq/queue"
	worker "github.com/okian/ladder/internal/adapters/mq/worker"
	. "github.com/smartystreets/goconvey/convey"
)

// recordingApplier collects applied reports and can be told to fail.
type recordingApplier struct {
	mu      sync.Mutex
	applied []worker.Report
	failOn  string
}

func (a *recordingApplier) ApplyReport(_ context.Context, r worker.Report) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if r.EventID == a.failOn {
		return errors.New("apply refused")
	}
	a.applied = append(a.applied, r)
	return nil
}

func (a *recordingApplier) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.applied)
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestWorker(t *testing.T) {
	ctx := context.Background()

	Convey("Given a worker over a queue", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(16))
		applier := &recordingApplier{}
		w := worker.NewInMemoryWorker(q, applier, worker.WithName("worker-test"))

		Convey("When reports are enqueued", func() {
			go w.Run(ctx)

			So(q.Enqueue(ctx, worker.Report{EventID: "evt-1", MatchID: "m1", PlayerID: "p1", Value: 10}), ShouldBeTrue)
			So(q.Enqueue(ctx, worker.Report{EventID: "evt-2", MatchID: "m1", PlayerID: "p2", Value: 20}), ShouldBeTrue)

			Convey("Then the worker applies them all", func() {
				So(waitFor(func() bool { return applier.count() == 2 }), ShouldBeTrue)

				shutdownCtx, cancel := context.WithTimeout(ctx, time.Second)
				defer cancel()
				So(w.Shutdown(shutdownCtx), ShouldBeNil)
			})
		})

		Convey("When a report fails to apply", func() {
			applier.failOn = "evt-bad"
			go w.Run(ctx)

			So(q.Enqueue(ctx, worker.Report{EventID: "evt-bad", MatchID: "m1", PlayerID: "p1", Value: 1}), ShouldBeTrue)
			So(q.Enqueue(ctx, worker.Report{EventID: "evt-good", MatchID: "m1", PlayerID: "p2", Value: 2}), ShouldBeTrue)

			Convey("Then the failure does not stall later reports", func() {
				So(waitFor(func() bool { return applier.count() == 1 }), ShouldBeTrue)
				applier.mu.Lock()
				got := applier.applied[0].EventID
				applier.mu.Unlock()
				So(got, ShouldEqual, "evt-good")

				shutdownCtx, cancel := context.WithTimeout(ctx, time.Second)
				defer cancel()
				So(w.Shutdown(shutdownCtx), ShouldBeNil)
			})
		})
	})
}

func TestPool(t *testing.T) {
	ctx := context.Background()

	Convey("Given a pool of workers", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(64))
		applier := &recordingApplier{}
		pool := worker.NewPool(3, q, applier)

		Convey("When the pool runs against a backlog", func() {
			pool.Start(ctx)

			const n = 30
			for i := 0; i < n; i++ {
				So(q.Enqueue(ctx, worker.Report{
					EventID: fmt.Sprintf("evt-%d", i),
					MatchID: "m1", PlayerID: "p1", Value: int64(i),
				}), ShouldBeTrue)
			}

			Convey("Then every report is applied exactly once", func() {
				So(pool.Size(), ShouldEqual, 3)
				So(waitFor(func() bool { return applier.count() == n }), ShouldBeTrue)

				So(pool.Shutdown(ctx), ShouldBeNil)
			})
		})
	})
}
