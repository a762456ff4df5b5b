package settlement_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/fairway/internal/adapters/repository"
	"github.com/okian/fairway/internal/domain/failure"
	"github.com/okian/fairway/internal/domain/model"
	"github.com/okian/fairway/internal/domain/ranking"
	"github.com/okian/fairway/internal/settlement"
	"github.com/okian/fairway/pkg/logger"
)

func init() {
	_ = logger.Init()
}

var t0 = time.Date(2026, 4, 12, 23, 0, 0, 0, time.UTC)

// faultyStore injects failures into selected single-row writes.
type faultyStore struct {
	repository.Store
	failResult    bool
	failPayoutPos int
	failAnalytics bool
}

var errInjected = errors.New("injected store failure")

func (f *faultyStore) CreateResult(ctx context.Context, r model.CompetitionResult) error {
	if f.failResult {
		return errInjected
	}
	return f.Store.CreateResult(ctx, r)
}

func (f *faultyStore) CreatePayout(ctx context.Context, p model.Payout) (bool, error) {
	if f.failPayoutPos == p.Position {
		return false, errInjected
	}
	return f.Store.CreatePayout(ctx, p)
}

func (f *faultyStore) CreateAnalytics(ctx context.Context, a model.AnalyticsSnapshot) (bool, error) {
	if f.failAnalytics {
		return false, errInjected
	}
	return f.Store.CreateAnalytics(ctx, a)
}

// txStore claims transactional support and counts WithTx calls.
type txStore struct {
	*faultyStore
	txCalls int
}

func (s *txStore) WithTx(_ context.Context, fn func(repository.Store) error) error {
	s.txCalls++
	return fn(s.faultyStore)
}

type downFeed struct{}

func (downFeed) Performances(context.Context, string, []string) (map[string]model.Performance, error) {
	return nil, errors.New("feed timeout")
}

func seedContest(ctx context.Context, store repository.Store, id string, entries int) {
	So(store.CreateContest(ctx, model.Contest{
		ID: id, Name: "The Open", Status: model.ContestOpen, EntryFee: 1000, HouseFeePercent: 10,
		PrizeCurve: []int64{50, 30, 20}, SalaryCap: 500_000, CreatedAt: t0, UpdatedAt: t0,
	}), ShouldBeNil)

	rosters := []struct {
		user  string
		picks []model.Pick
	}{
		{"u1", []model.Pick{{ContestantID: "g1", Slot: 0, Captain: true}, {ContestantID: "g2", Slot: 1}}},
		{"u2", []model.Pick{{ContestantID: "g2", Slot: 0, Captain: true}, {ContestantID: "g3", Slot: 1}}},
		{"u3", []model.Pick{{ContestantID: "g4", Slot: 0, Captain: true}, {ContestantID: "g5", Slot: 1}}},
	}
	for i := 0; i < entries; i++ {
		r := rosters[i]
		So(store.CreateEntry(ctx, model.Entry{
			ID: id + "-e" + string(rune('1'+i)), ContestID: id, UserID: r.user, DisplayName: r.user,
			Picks: r.picks, Status: model.EntrySubmitted, FeeCharged: 1000, SubmittedAt: t0.Add(-time.Duration(i) * time.Minute),
		}), ShouldBeNil)
	}
	started, err := store.TransitionContest(ctx, id, model.ContestOpen, model.ContestLive)
	So(err, ShouldBeNil)
	So(started, ShouldBeTrue)
	So(store.UpsertPerformances(ctx, id, []model.Performance{
		{ContestantID: "g1", RelativeToPar: -8},
		{ContestantID: "g2", RelativeToPar: -3},
		{ContestantID: "g3", RelativeToPar: 2},
		{ContestantID: "g4", RelativeToPar: 0},
	}), ShouldBeNil)
}

func newCoordinator(store repository.Store, opts ...settlement.Option) *settlement.Coordinator {
	opts = append([]settlement.Option{
		settlement.WithClock(clockwork.NewFakeClockAt(t0)),
		settlement.WithTieBreak(ranking.TieBreakSubmittedAt),
	}, opts...)
	return settlement.New(store, opts...)
}

func TestSettle(t *testing.T) {
	ctx := context.Background()

	Convey("Given a live contest with three entries", t, func() {
		store := repository.NewMemoryStore()
		seedContest(ctx, store, "c1", 3)
		coord := newCoordinator(store)

		Convey("When it is settled", func() {
			out, err := coord.Settle(ctx, "c1")

			Convey("Then pool and payouts match the contest rules", func() {
				So(err, ShouldBeNil)
				So(out.Result.GrossPool, ShouldEqual, 3000)
				So(out.Result.HouseFee, ShouldEqual, 300)
				So(out.Result.NetPool, ShouldEqual, 2700)
				So(out.Result.Remainder, ShouldEqual, 0)
				So(len(out.Payouts), ShouldEqual, 3)
				So(out.Payouts[0].Amount, ShouldEqual, 1350)
				So(out.Payouts[1].Amount, ShouldEqual, 810)
				So(out.Payouts[2].Amount, ShouldEqual, 540)
				So(out.Payouts[0].EntryID, ShouldEqual, "c1-e1")
				So(out.Result.WinnerEntryID, ShouldEqual, "c1-e1")
				So(out.Summary.Distributed, ShouldEqual, 2700)
			})

			Convey("Then the leaderboard and analytics are recorded", func() {
				So(out.Result.Leaderboard[0].Points, ShouldEqual, 190)
				So(out.Result.Leaderboard[1].Points, ShouldEqual, 80)
				So(out.Result.Leaderboard[2].Points, ShouldEqual, 0)
				So(out.Analytics.UniqueParticipants, ShouldEqual, 3)
				So(out.Analytics.MaxScore, ShouldEqual, 190)
				So(out.Analytics.MedianScore.String(), ShouldEqual, "80")
			})

			Convey("Then the contest is settled and entries carry final positions", func() {
				st, err := coord.Status(ctx, "c1")
				So(err, ShouldBeNil)
				So(st.State, ShouldEqual, model.SettlementSettled)
				So(st.PayoutsRecorded, ShouldEqual, 3)
				So(st.PayoutsExpected, ShouldEqual, 3)
				So(st.AnalyticsRecorded, ShouldBeTrue)

				entries, err := store.ListSubmittedEntries(ctx, "c1")
				So(err, ShouldBeNil)
				for _, e := range entries {
					So(e.FinalPosition, ShouldNotBeNil)
				}
			})

			Convey("Then Load returns the same record", func() {
				loaded, err := coord.Load(ctx, "c1")
				So(err, ShouldBeNil)
				So(loaded.Result.ID, ShouldEqual, out.Result.ID)
				So(len(loaded.Payouts), ShouldEqual, 3)
			})

			Convey("And settled again", func() {
				_, err := coord.Settle(ctx, "c1")

				Convey("Then it conflicts without writing", func() {
					So(errors.Is(err, failure.ErrConflict), ShouldBeTrue)
					payouts, _ := store.ListPayouts(ctx, out.Result.ID)
					So(len(payouts), ShouldEqual, 3)
				})
			})

			Convey("And repaired", func() {
				_, err := coord.Repair(ctx, "c1")
				So(errors.Is(err, failure.ErrConflict), ShouldBeTrue)
			})
		})

		Convey("When many callers settle at once", func() {
			var (
				wg        sync.WaitGroup
				mu        sync.Mutex
				successes int
				conflicts int
			)
			for i := 0; i < 12; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := coord.Settle(ctx, "c1")
					mu.Lock()
					defer mu.Unlock()
					switch {
					case err == nil:
						successes++
					case errors.Is(err, failure.ErrConflict):
						conflicts++
					}
				}()
			}
			wg.Wait()

			Convey("Then exactly one settles and the rest conflict", func() {
				So(successes, ShouldEqual, 1)
				So(conflicts, ShouldEqual, 11)
				r, err := store.GetResultByContest(ctx, "c1")
				So(err, ShouldBeNil)
				payouts, _ := store.ListPayouts(ctx, r.ID)
				So(len(payouts), ShouldEqual, 3)
			})
		})

		Convey("When Repair is called on a live contest", func() {
			_, err := coord.Repair(ctx, "c1")
			So(errors.Is(err, failure.ErrConflict), ShouldBeTrue)
		})

		Convey("When Load is called before settlement", func() {
			_, err := coord.Load(ctx, "c1")
			So(errors.Is(err, failure.ErrNotFound), ShouldBeTrue)
		})
	})

	Convey("Given a contest with two entries and a three-place curve", t, func() {
		store := repository.NewMemoryStore()
		seedContest(ctx, store, "c2", 2)
		coord := newCoordinator(store)

		out, err := coord.Settle(ctx, "c2")

		Convey("Then only two positions are paid and the remainder is recorded", func() {
			So(err, ShouldBeNil)
			So(out.Result.NetPool, ShouldEqual, 1800)
			So(out.Result.PaidPositions, ShouldEqual, 2)
			So(out.Result.Distributed, ShouldEqual, 1440)
			So(out.Result.Remainder, ShouldEqual, 360)
			So(len(out.Payouts), ShouldEqual, 2)
		})
	})

	Convey("Given contests that cannot be settled", t, func() {
		store := repository.NewMemoryStore()
		coord := newCoordinator(store)

		Convey("When the contest does not exist", func() {
			_, err := coord.Settle(ctx, "ghost")
			So(errors.Is(err, failure.ErrNotFound), ShouldBeTrue)
		})

		Convey("When the contest has not started", func() {
			So(store.CreateContest(ctx, model.Contest{ID: "c3", Status: model.ContestOpen}), ShouldBeNil)
			_, err := coord.Settle(ctx, "c3")
			So(errors.Is(err, failure.ErrValidation), ShouldBeTrue)
		})

		Convey("When the contest has no entries", func() {
			seedContest(ctx, store, "c4", 0)
			_, err := coord.Settle(ctx, "c4")

			Convey("Then NoEntries is returned and the claim is released", func() {
				So(errors.Is(err, failure.ErrNoEntries), ShouldBeTrue)
				st, err := coord.Status(ctx, "c4")
				So(err, ShouldBeNil)
				So(st.ContestStatus, ShouldEqual, model.ContestLive)
				So(st.State, ShouldEqual, model.SettlementPending)
			})
		})
	})
}

func TestSettleFailures(t *testing.T) {
	ctx := context.Background()

	Convey("Given a live contest behind a faulty store", t, func() {
		mem := repository.NewMemoryStore()
		seedContest(ctx, mem, "c1", 3)
		store := &faultyStore{Store: mem}

		Convey("When the performance feed is down", func() {
			_, err := newCoordinator(store, settlement.WithFeed(downFeed{})).Settle(ctx, "c1")

			Convey("Then the contest stays settling with nothing written", func() {
				So(errors.Is(err, failure.ErrDataUnavailable), ShouldBeTrue)
				st, serr := newCoordinator(store).Status(ctx, "c1")
				So(serr, ShouldBeNil)
				So(st.State, ShouldEqual, model.SettlementInProgress)
				_, rerr := mem.GetResultByContest(ctx, "c1")
				So(errors.Is(rerr, repository.ErrResultNotFound), ShouldBeTrue)
			})

			Convey("And repaired once the feed is back", func() {
				out, err := newCoordinator(store).Repair(ctx, "c1")

				Convey("Then it settles from scratch", func() {
					So(err, ShouldBeNil)
					So(len(out.Payouts), ShouldEqual, 3)
					c, _ := mem.GetContest(ctx, "c1")
					So(c.Status, ShouldEqual, model.ContestSettled)
				})
			})
		})

		Convey("When the result write fails", func() {
			store.failResult = true
			_, err := newCoordinator(store).Settle(ctx, "c1")

			Convey("Then nothing is paid and the error is not a partial write", func() {
				So(err, ShouldNotBeNil)
				So(errors.Is(err, failure.ErrPartialWrite), ShouldBeFalse)
				So(errors.Is(err, errInjected), ShouldBeTrue)
				st, _ := newCoordinator(store).Status(ctx, "c1")
				So(st.State, ShouldEqual, model.SettlementInProgress)
			})

			Convey("And repaired after the store recovers", func() {
				store.failResult = false
				out, err := newCoordinator(store).Repair(ctx, "c1")

				So(err, ShouldBeNil)
				So(out.Result.NetPool, ShouldEqual, 2700)
			})
		})

		Convey("When the second payout write fails", func() {
			store.failPayoutPos = 2
			coord := newCoordinator(store)
			_, err := coord.Settle(ctx, "c1")

			Convey("Then a partial write is reported with the result id", func() {
				So(errors.Is(err, failure.ErrPartialWrite), ShouldBeTrue)
				var pw *failure.PartialWriteError
				So(errors.As(err, &pw), ShouldBeTrue)
				So(pw.Step, ShouldEqual, "payouts")
				So(pw.ResultID, ShouldNotBeEmpty)

				st, serr := coord.Status(ctx, "c1")
				So(serr, ShouldBeNil)
				So(st.State, ShouldEqual, model.SettlementPayoutsIncomplete)
				So(st.ResultID, ShouldEqual, pw.ResultID)
				So(st.PayoutsRecorded, ShouldEqual, 1)
				So(st.PayoutsExpected, ShouldEqual, 3)
				So(st.AnalyticsRecorded, ShouldBeFalse)
			})

			Convey("Then the normal entry path refuses to run again", func() {
				_, err := coord.Settle(ctx, "c1")
				So(errors.Is(err, failure.ErrConflict), ShouldBeTrue)
			})

			Convey("And repaired after the store recovers", func() {
				var pw *failure.PartialWriteError
				So(errors.As(err, &pw), ShouldBeTrue)
				store.failPayoutPos = 0

				out, rerr := coord.Repair(ctx, "c1")

				Convey("Then payouts complete against the original result", func() {
					So(rerr, ShouldBeNil)
					So(out.Result.ID, ShouldEqual, pw.ResultID)
					So(len(out.Payouts), ShouldEqual, 3)
					var sum int64
					for _, p := range out.Payouts {
						sum += p.Amount
					}
					So(sum, ShouldEqual, 2700)

					st, _ := coord.Status(ctx, "c1")
					So(st.State, ShouldEqual, model.SettlementSettled)
				})

				Convey("Then a second repair conflicts", func() {
					_, err := coord.Repair(ctx, "c1")
					So(errors.Is(err, failure.ErrConflict), ShouldBeTrue)
				})
			})
		})

		Convey("When the analytics write fails", func() {
			store.failAnalytics = true
			_, err := newCoordinator(store).Settle(ctx, "c1")

			Convey("Then the partial write names the analytics step", func() {
				var pw *failure.PartialWriteError
				So(errors.As(err, &pw), ShouldBeTrue)
				So(pw.Step, ShouldEqual, "analytics")
				st, _ := newCoordinator(store).Status(ctx, "c1")
				So(st.PayoutsRecorded, ShouldEqual, 3)
				So(st.State, ShouldEqual, model.SettlementPayoutsIncomplete)
			})
		})
	})

	Convey("Given a store with transactions", t, func() {
		mem := repository.NewMemoryStore()
		seedContest(ctx, mem, "c1", 3)
		store := &txStore{faultyStore: &faultyStore{Store: mem}}

		Convey("When settlement succeeds", func() {
			out, err := newCoordinator(store).Settle(ctx, "c1")

			Convey("Then every write goes through one transaction", func() {
				So(err, ShouldBeNil)
				So(store.txCalls, ShouldEqual, 1)
				So(len(out.Payouts), ShouldEqual, 3)
			})
		})

		Convey("When a payout write fails inside the transaction", func() {
			store.failPayoutPos = 3
			_, err := newCoordinator(store).Settle(ctx, "c1")

			Convey("Then the failure is not reported as a partial write", func() {
				So(err, ShouldNotBeNil)
				So(errors.Is(err, failure.ErrPartialWrite), ShouldBeFalse)
				So(errors.Is(err, errInjected), ShouldBeTrue)
			})
		})
	})
}
