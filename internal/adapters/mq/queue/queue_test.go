package queue_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	queue "github.com/okian/ladder/internal/adapters/mq/queue"
	. "github.com/smartystreets/goconvey/convey"
)

func report(n int) queue.Report {
	return queue.Report{
		EventID:  fmt.Sprintf("evt-%d", n),
		MatchID:  "m1",
		PlayerID: fmt.Sprintf("p%d", n),
		Value:    int64(n),
	}
}

func TestInMemoryQueue(t *testing.T) {
	ctx := context.Background()

	Convey("Given an in-memory queue", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(2))

		Convey("When reports are enqueued within capacity", func() {
			So(q.Enqueue(ctx, report(1)), ShouldBeTrue)
			So(q.Enqueue(ctx, report(2)), ShouldBeTrue)

			Convey("Then the length tracks the backlog", func() {
				So(q.Len(ctx), ShouldEqual, 2)
			})

			Convey("And a report past capacity is refused", func() {
				So(q.Enqueue(ctx, report(3)), ShouldBeFalse)
				So(q.Len(ctx), ShouldEqual, 2)
			})

			Convey("And dequeue delivers in order", func() {
				out := q.Dequeue(ctx)
				first := <-out
				second := <-out
				So(first.EventID, ShouldEqual, "evt-1")
				So(second.EventID, ShouldEqual, "evt-2")
			})
		})

		Convey("When the queue is closed", func() {
			So(q.Enqueue(ctx, report(1)), ShouldBeTrue)
			So(q.Close(), ShouldBeNil)

			Convey("Then further enqueues are refused", func() {
				So(q.IsClosed(), ShouldBeTrue)
				So(q.Enqueue(ctx, report(2)), ShouldBeFalse)
			})

			Convey("And the dequeue channel drains then closes", func() {
				out := q.Dequeue(ctx)
				r, ok := <-out
				So(ok, ShouldBeTrue)
				So(r.EventID, ShouldEqual, "evt-1")

				_, ok = <-out
				So(ok, ShouldBeFalse)
			})

			Convey("And a second close is harmless", func() {
				So(q.Close(), ShouldBeNil)
			})
		})

		Convey("When the consumer context is cancelled", func() {
			cancelCtx, cancel := context.WithCancel(ctx)
			out := q.Dequeue(cancelCtx)
			cancel()

			Convey("Then the forwarder winds down instead of hanging", func() {
				So(q.Enqueue(ctx, report(1)), ShouldBeTrue)
				// The forwarder may hand over the one report it already
				// held, close the channel, or stop silently; it must not
				// keep delivering.
				deadline := time.After(200 * time.Millisecond)
				delivered := 0
			drain:
				for {
					select {
					case _, ok := <-out:
						if !ok {
							break drain
						}
						delivered++
					case <-deadline:
						break drain
					}
				}
				So(delivered, ShouldBeLessThanOrEqualTo, 1)
			})
		})
	})
}
