package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	service "github.com/okian/fairway/internal/app"
	"github.com/okian/fairway/internal/domain/failure"
	"github.com/okian/fairway/internal/domain/model"
	"github.com/okian/fairway/internal/seed"
)

func TestServiceIntegration(t *testing.T) {
	Convey("Given a service with two seeded contests", t, func() {
		svc := newService(
			service.WithWorkerCount(2),
			service.WithQueueSize(8),
			service.WithDedupeSize(16),
		)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		for i, id := range []string{"alpha", "bravo"} {
			cfg := seed.DefaultConfig()
			cfg.ContestID = id
			cfg.Seed += uint64(i)
			_, err := seed.Run(ctx, svc, cfg)
			So(err, ShouldBeNil)
		}

		Convey("When a batch lists a contest twice and an unknown one", func() {
			items, err := svc.SettleBatch(ctx, []model.SettlementJob{
				{ContestID: "alpha"},
				{ContestID: "bravo"},
				{ContestID: "alpha"},
				{ContestID: "ghost"},
				{ContestID: ""},
			})

			Convey("Then each contest is processed once and reported in order", func() {
				So(err, ShouldBeNil)
				So(len(items), ShouldEqual, 5)
				So(items[0].Outcome, ShouldEqual, "settled")
				So(items[0].ResultID, ShouldNotBeEmpty)
				So(items[1].Outcome, ShouldEqual, "settled")
				So(items[2].Duplicate, ShouldBeTrue)
				So(items[3].Outcome, ShouldEqual, "not_found")
				So(items[4].Outcome, ShouldEqual, "validation")
			})

			Convey("Then both contests read back as settled", func() {
				for _, id := range []string{"alpha", "bravo"} {
					st, err := svc.SettlementStatus(ctx, id)
					So(err, ShouldBeNil)
					So(st.State, ShouldEqual, model.SettlementSettled)

					out, err := svc.GetSettlement(ctx, id)
					So(err, ShouldBeNil)
					So(out.Result.TotalEntries, ShouldEqual, 25)
					So(out.Summary.Distributed+out.Summary.Remainder, ShouldEqual, out.Summary.NetPool)
				}
			})

			Convey("Then settling again through the batch conflicts", func() {
				again, err := svc.SettleBatch(ctx, []model.SettlementJob{{ContestID: "alpha"}})
				So(err, ShouldBeNil)
				So(again[0].Outcome, ShouldEqual, "conflict")
			})

			Convey("Then stats count the batch", func() {
				stats := svc.GetStats()
				So(stats["settlementBatches"], ShouldEqual, int64(1))
				So(stats["batchJobs"], ShouldEqual, int64(3))
			})
		})

		Convey("When the batch is larger than the queue", func() {
			jobs := make([]model.SettlementJob, 9)
			_, err := svc.SettleBatch(ctx, jobs)
			So(errors.Is(err, failure.ErrValidation), ShouldBeTrue)
		})

		Convey("When a live contest is repaired through the batch", func() {
			items, err := svc.SettleBatch(ctx, []model.SettlementJob{{ContestID: "alpha", Repair: true}})
			So(err, ShouldBeNil)
			So(items[0].Outcome, ShouldEqual, "conflict")
		})

		Convey("When the same contest is settled directly and concurrently", func() {
			results := make(chan error, 6)
			for i := 0; i < 6; i++ {
				go func() {
					_, err := svc.Settle(ctx, "bravo")
					results <- err
				}()
			}
			ok, conflicts := 0, 0
			for i := 0; i < 6; i++ {
				err := <-results
				switch {
				case err == nil:
					ok++
				case errors.Is(err, failure.ErrConflict):
					conflicts++
				}
			}

			Convey("Then exactly one wins", func() {
				So(ok, ShouldEqual, 1)
				So(conflicts, ShouldEqual, 5)
			})
		})
	})
}
