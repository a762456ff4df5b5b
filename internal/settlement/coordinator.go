// Package settlement scores, ranks and pays out a closed contest exactly once.
//
// The live -> settling status transition is a conditional write in the store
// and is the only mutual-exclusion primitive, so several service instances may
// settle concurrently. Once a run holds the claim it ignores caller
// cancellation and ends in one of: settled, settling without a result
// (Repair re-runs it) or settling with a result (Repair completes payouts).
package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/okian/fairway/internal/adapters/repository"
	"github.com/okian/fairway/internal/domain/analytics"
	"github.com/okian/fairway/internal/domain/failure"
	"github.com/okian/fairway/internal/domain/model"
	"github.com/okian/fairway/internal/domain/ranking"
	"github.com/okian/fairway/internal/domain/scoring"
	"github.com/okian/fairway/pkg/logger"
	"github.com/okian/fairway/pkg/metrics"
)

// Coordinator runs settlements against a Store.
type Coordinator struct {
	store        repository.Store
	feed         repository.Feed
	scorer       *scoring.Scorer
	ranker       ranking.Ranker
	defaultCurve []int64
	clock        clockwork.Clock
	log          logger.Logger
	newID        func() string
}

// New creates a Coordinator. The store doubles as the performance feed unless WithFeed is given.
func New(store repository.Store, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:        store,
		feed:         store,
		scorer:       scoring.New(),
		ranker:       ranking.Ranker{TieBreak: ranking.TieBreakSubmittedAt},
		defaultCurve: []int64{50, 30, 20},
		clock:        clockwork.NewRealClock(),
		newID:        defaultID,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.Named("settlement")
	}
	return c
}

// Settle claims a live contest and settles it. A contest that is already
// settling or settled yields a conflict and no writes.
func (c *Coordinator) Settle(ctx context.Context, contestID string) (out Outcome, err error) {
	const op = "settlement.settle"
	start := c.clock.Now()
	defer func() { c.record("settle", start, err) }()

	contest, err := c.store.GetContest(ctx, contestID)
	if err != nil {
		return Outcome{}, failure.Wrap(op, failure.KindOf(err), err)
	}
	if contest.Status == model.ContestOpen {
		return Outcome{}, failure.Validation(op, "contest %s has not started", contestID)
	}

	claimed, err := c.store.TransitionContest(ctx, contestID, model.ContestLive, model.ContestSettling)
	if err != nil {
		return Outcome{}, failure.Wrap(op, failure.KindOf(err), err)
	}
	if !claimed {
		current := contest.Status
		if fresh, gerr := c.store.GetContest(ctx, contestID); gerr == nil {
			current = fresh.Status
		}
		c.log.Info(ctx, "settlement already claimed", logger.String("contest_id", contestID), logger.String("status", string(current)))
		return Outcome{}, failure.New(op, failure.ErrConflict, "contest %s is %s", contestID, current)
	}

	ctx = context.WithoutCancel(ctx)
	c.log.Info(ctx, "settlement claimed", logger.String("contest_id", contestID))
	return c.run(ctx, op, contest, start)
}

// Repair finishes a contest stuck in settling. With a persisted result it
// writes whatever standings, payouts and analytics are missing, without
// re-scoring. Without one it re-runs the whole settlement.
func (c *Coordinator) Repair(ctx context.Context, contestID string) (out Outcome, err error) {
	const op = "settlement.repair"
	start := c.clock.Now()
	defer func() { c.record("repair", start, err) }()

	contest, err := c.store.GetContest(ctx, contestID)
	if err != nil {
		return Outcome{}, failure.Wrap(op, failure.KindOf(err), err)
	}
	if contest.Status != model.ContestSettling {
		return Outcome{}, failure.New(op, failure.ErrConflict, "contest %s is %s; only settling contests can be repaired", contestID, contest.Status)
	}

	ctx = context.WithoutCancel(ctx)
	result, err := c.store.GetResultByContest(ctx, contestID)
	switch {
	case errors.Is(err, repository.ErrResultNotFound):
		c.log.Info(ctx, "repair re-running settlement", logger.String("contest_id", contestID))
		return c.run(ctx, op, contest, start)
	case err != nil:
		return Outcome{}, failure.Wrap(op, failure.ErrInternal, err)
	}

	c.log.Info(ctx, "repair completing payouts", logger.String("contest_id", contestID), logger.String("result_id", result.ID))
	if err := c.complete(ctx, c.store, result); err != nil {
		return Outcome{}, err
	}
	return c.load(ctx, op, result, start)
}

// Status reports where a contest is in the settlement lifecycle.
func (c *Coordinator) Status(ctx context.Context, contestID string) (Status, error) {
	const op = "settlement.status"

	contest, err := c.store.GetContest(ctx, contestID)
	if err != nil {
		return Status{}, failure.Wrap(op, failure.KindOf(err), err)
	}
	st := Status{ContestID: contestID, ContestStatus: contest.Status, State: model.SettlementPending}
	if contest.Status == model.ContestOpen || contest.Status == model.ContestLive {
		return st, nil
	}

	result, err := c.store.GetResultByContest(ctx, contestID)
	if errors.Is(err, repository.ErrResultNotFound) {
		st.State = model.SettlementInProgress
		return st, nil
	}
	if err != nil {
		return Status{}, failure.Wrap(op, failure.ErrInternal, err)
	}

	payouts, err := c.store.ListPayouts(ctx, result.ID)
	if err != nil {
		return Status{}, failure.Wrap(op, failure.ErrInternal, err)
	}
	_, aerr := c.store.GetAnalytics(ctx, result.ID)
	if aerr != nil && !errors.Is(aerr, repository.ErrAnalyticsNotFound) {
		return Status{}, failure.Wrap(op, failure.ErrInternal, aerr)
	}

	st.ResultID = result.ID
	st.PayoutsRecorded = len(payouts)
	st.PayoutsExpected = result.PaidPositions
	st.AnalyticsRecorded = aerr == nil
	st.State = model.SettlementPayoutsIncomplete
	if contest.Status == model.ContestSettled {
		st.State = model.SettlementSettled
	}
	return st, nil
}

// Load returns the persisted outcome of a settled contest.
func (c *Coordinator) Load(ctx context.Context, contestID string) (Outcome, error) {
	const op = "settlement.load"

	contest, err := c.store.GetContest(ctx, contestID)
	if err != nil {
		return Outcome{}, failure.Wrap(op, failure.KindOf(err), err)
	}
	if contest.Status != model.ContestSettled {
		return Outcome{}, failure.New(op, failure.ErrNotFound, "contest %s is %s, not settled", contestID, contest.Status)
	}
	result, err := c.store.GetResultByContest(ctx, contestID)
	if err != nil {
		return Outcome{}, failure.Wrap(op, failure.KindOf(err), err)
	}
	return c.load(ctx, op, result, time.Time{})
}

// run executes steps 1-7 for a contest the caller already holds in settling.
func (c *Coordinator) run(ctx context.Context, op string, contest model.Contest, start time.Time) (Outcome, error) {
	result, err := c.compute(ctx, op, contest)
	if err != nil {
		return Outcome{}, err
	}

	if tx, ok := c.store.(repository.Transactor); ok {
		err = tx.WithTx(ctx, func(s repository.Store) error {
			if err := s.CreateResult(ctx, result); err != nil {
				return err
			}
			return c.complete(ctx, s, result)
		})
		if err != nil {
			c.log.Error(ctx, "settlement transaction rolled back", logger.String("contest_id", contest.ID), logger.Error(err))
			var pw *failure.PartialWriteError
			if errors.As(err, &pw) {
				err = pw.Err
			}
			return Outcome{}, failure.Wrap(op, failure.KindOf(err), err)
		}
	} else {
		if err := c.store.CreateResult(ctx, result); err != nil {
			c.log.Error(ctx, "result write failed", logger.String("contest_id", contest.ID), logger.Error(err))
			return Outcome{}, failure.Wrap(op, failure.KindOf(err), err)
		}
		if err := c.complete(ctx, c.store, result); err != nil {
			return Outcome{}, err
		}
	}

	metrics.RecordRoundingRemainder(result.Remainder)
	c.log.Info(ctx, "contest settled",
		logger.String("contest_id", contest.ID),
		logger.String("result_id", result.ID),
		logger.Int("entries", result.TotalEntries),
		logger.Int64("net_pool", result.NetPool),
		logger.Int64("remainder", result.Remainder),
	)
	return c.load(ctx, op, result, start)
}

// compute loads entries and performances and builds the result in memory.
func (c *Coordinator) compute(ctx context.Context, op string, contest model.Contest) (model.CompetitionResult, error) {
	entries, err := c.store.ListSubmittedEntries(ctx, contest.ID)
	if err != nil {
		return model.CompetitionResult{}, failure.Wrap(op, failure.ErrInternal, fmt.Errorf("load entries: %w", err))
	}
	if len(entries) == 0 {
		if _, rerr := c.store.TransitionContest(ctx, contest.ID, model.ContestSettling, model.ContestLive); rerr != nil {
			c.log.Error(ctx, "release claim failed", logger.String("contest_id", contest.ID), logger.Error(rerr))
		}
		return model.CompetitionResult{}, failure.New(op, failure.ErrNoEntries, "contest %s", contest.ID)
	}

	var ids []string
	seen := make(map[string]struct{})
	for _, e := range entries {
		for _, p := range e.Picks {
			if _, ok := seen[p.ContestantID]; !ok {
				seen[p.ContestantID] = struct{}{}
				ids = append(ids, p.ContestantID)
			}
		}
	}
	perf, err := c.feed.Performances(ctx, contest.ID, ids)
	if err != nil {
		c.log.Error(ctx, "performance feed unavailable", logger.String("contest_id", contest.ID), logger.Error(err))
		return model.CompetitionResult{}, failure.Wrap(op, failure.ErrDataUnavailable, err)
	}

	scored := make([]ranking.ScoredEntry, len(entries))
	for i, e := range entries {
		points, _ := c.scorer.Score(e, perf)
		scored[i] = ranking.ScoredEntry{
			EntryID:     e.ID,
			UserID:      e.UserID,
			DisplayName: e.DisplayName,
			Points:      points,
			SubmittedAt: e.SubmittedAt,
		}
	}
	standings := c.ranker.Rank(scored)

	pool, err := ranking.Pool(len(entries), contest.EntryFee, contest.HouseFeePercent)
	if err != nil {
		return model.CompetitionResult{}, failure.Wrap(op, failure.ErrValidation, err)
	}
	curve := contest.PrizeCurve
	if len(curve) == 0 {
		curve = c.defaultCurve
	}
	curve = curve[:min(len(curve), len(standings))]
	shares, err := ranking.Distribute(pool.Net, curve)
	if err != nil {
		return model.CompetitionResult{}, failure.Wrap(op, failure.ErrValidation, err)
	}
	distributed := ranking.Total(shares)

	return model.CompetitionResult{
		ID:              c.newID(),
		ContestID:       contest.ID,
		TotalEntries:    len(entries),
		EntryFee:        contest.EntryFee,
		GrossPool:       pool.Gross,
		HouseFeePercent: contest.HouseFeePercent,
		HouseFee:        pool.HouseFee,
		NetPool:         pool.Net,
		PrizeCurve:      append([]int64(nil), curve...),
		PaidPositions:   len(shares),
		Distributed:     distributed,
		Remainder:       pool.Net - distributed,
		WinnerEntryID:   standings[0].EntryID,
		TieBreak:        string(c.ranker.TieBreak),
		Leaderboard:     standings,
		CreatedAt:       c.clock.Now().UTC(),
	}, nil
}

// complete writes everything that derives from a persisted result, each write
// idempotent, then flips settling -> settled. Failures are partial writes.
func (c *Coordinator) complete(ctx context.Context, s repository.Store, result model.CompetitionResult) error {
	partial := func(step string, err error) error {
		c.log.Error(ctx, "settlement step failed",
			logger.String("contest_id", result.ContestID),
			logger.String("result_id", result.ID),
			logger.String("step", step),
			logger.Error(err),
		)
		return &failure.PartialWriteError{ContestID: result.ContestID, ResultID: result.ID, Step: step, Err: err}
	}

	if _, err := s.AttachStandings(ctx, result.ContestID, result.Leaderboard); err != nil {
		return partial("standings", err)
	}

	now := c.clock.Now().UTC()
	written, amount := 0, int64(0)
	for i := 0; i < result.PaidPositions && i < len(result.Leaderboard); i++ {
		pct := result.PrizeCurve[i]
		row := result.Leaderboard[i]
		p := model.Payout{
			ID:         c.newID(),
			ResultID:   result.ID,
			ContestID:  result.ContestID,
			EntryID:    row.EntryID,
			UserID:     row.UserID,
			Position:   row.Position,
			Percentage: pct,
			Amount:     result.NetPool * pct / 100,
			CreatedAt:  now,
		}
		created, err := s.CreatePayout(ctx, p)
		if err != nil {
			return partial("payouts", err)
		}
		if created {
			written++
			amount += p.Amount
		}
	}
	metrics.RecordPayoutsWritten(written, amount)

	sum := analytics.Summarize(result.Leaderboard)
	if _, err := s.CreateAnalytics(ctx, model.AnalyticsSnapshot{
		ID:                 c.newID(),
		ResultID:           result.ID,
		ContestID:          result.ContestID,
		UniqueParticipants: sum.UniqueParticipants,
		TotalEntries:       sum.TotalEntries,
		MeanScore:          sum.Mean,
		MedianScore:        sum.Median,
		MaxScore:           sum.Max,
		MinScore:           sum.Min,
		CreatedAt:          now,
	}); err != nil {
		return partial("analytics", err)
	}

	ok, err := s.TransitionContest(ctx, result.ContestID, model.ContestSettling, model.ContestSettled)
	if err != nil {
		return partial("status", err)
	}
	if !ok {
		cur, gerr := s.GetContest(ctx, result.ContestID)
		if gerr != nil {
			return partial("status", gerr)
		}
		if cur.Status != model.ContestSettled {
			return partial("status", fmt.Errorf("contest is %s, want %s", cur.Status, model.ContestSettling))
		}
	}
	return nil
}

// load reads back the payouts and analytics written for result.
func (c *Coordinator) load(ctx context.Context, op string, result model.CompetitionResult, start time.Time) (Outcome, error) {
	payouts, err := c.store.ListPayouts(ctx, result.ID)
	if err != nil {
		return Outcome{}, failure.Wrap(op, failure.ErrInternal, err)
	}
	snap, err := c.store.GetAnalytics(ctx, result.ID)
	if err != nil {
		return Outcome{}, failure.Wrap(op, failure.ErrInternal, err)
	}
	var d time.Duration
	if !start.IsZero() {
		d = c.clock.Since(start)
	}
	return Outcome{Result: result, Payouts: payouts, Analytics: snap, Summary: summarize(result, d)}, nil
}

func (c *Coordinator) record(operation string, start time.Time, err error) {
	metrics.RecordSettlement(operation, OutcomeLabel(err), float64(c.clock.Since(start).Microseconds())/1000)
}

// OutcomeLabel names a settlement error for metrics and logs.
func OutcomeLabel(err error) string {
	if err == nil {
		return "settled"
	}
	switch failure.KindOf(err) {
	case failure.ErrPartialWrite:
		return "partial_write"
	case failure.ErrConflict:
		return "conflict"
	case failure.ErrNoEntries:
		return "no_entries"
	case failure.ErrDataUnavailable:
		return "data_unavailable"
	case failure.ErrValidation:
		return "validation"
	case failure.ErrNotFound:
		return "not_found"
	default:
		return "error"
	}
}
