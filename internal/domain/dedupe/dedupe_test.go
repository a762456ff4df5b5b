package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	dedupe "github.com/okian/fairway/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new InMemoryDeduper", t, func() {
		Convey("When creating a deduper with default options", func() {
			d := dedupe.NewInMemoryDeduper()

			Convey("Then it should start empty", func() {
				So(d, ShouldNotBeNil)
				So(d.Size(), ShouldEqual, 0)
			})
		})

		Convey("When recording contest ids", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(100))

			Convey("And the id is new", func() {
				seen := d.SeenAndRecord(ctx, "contest-1")

				Convey("Then it should return false and record the id", func() {
					So(seen, ShouldBeFalse)
					So(d.Size(), ShouldEqual, 1)
				})
			})

			Convey("And the id was already seen", func() {
				d.SeenAndRecord(ctx, "contest-1")
				seen := d.SeenAndRecord(ctx, "contest-1")

				Convey("Then it should return true without growing", func() {
					So(seen, ShouldBeTrue)
					So(d.Size(), ShouldEqual, 1)
				})
			})

			Convey("And the id is unrecorded", func() {
				d.SeenAndRecord(ctx, "contest-1")
				d.Unrecord(ctx, "contest-1")

				Convey("Then it can be recorded again", func() {
					So(d.Size(), ShouldEqual, 0)
					So(d.SeenAndRecord(ctx, "contest-1"), ShouldBeFalse)
				})
			})
		})

		Convey("When the bound is reached", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))
			for i := 1; i <= 3; i++ {
				d.SeenAndRecord(ctx, fmt.Sprintf("c%d", i))
			}
			// a repeat must not refresh c1
			d.SeenAndRecord(ctx, "c1")
			d.SeenAndRecord(ctx, "c4")

			Convey("Then the oldest id is evicted first", func() {
				So(d.Size(), ShouldEqual, 3)
				So(d.SeenAndRecord(ctx, "c2"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "c4"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "c1"), ShouldBeFalse)
			})
		})

		Convey("When the deduper is unbounded", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))
			for i := 0; i < 500; i++ {
				d.SeenAndRecord(ctx, fmt.Sprintf("c%d", i))
			}
			d.Unrecord(ctx, "c0")

			Convey("Then nothing is evicted", func() {
				So(d.Size(), ShouldEqual, 499)
				So(d.SeenAndRecord(ctx, "c499"), ShouldBeTrue)
			})
		})

		Convey("When many goroutines record the same id", func() {
			d := dedupe.NewInMemoryDeduper()
			var fresh atomic.Int64
			var wg sync.WaitGroup
			for i := 0; i < 32; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if !d.SeenAndRecord(ctx, "contest-x") {
						fresh.Add(1)
					}
				}()
			}
			wg.Wait()

			Convey("Then exactly one sees it as new", func() {
				So(fresh.Load(), ShouldEqual, 1)
			})
		})
	})
}
