// Package repository defines the contest store interface and its memory,
// Postgres and caching implementations.
package repository

import (
	"context"

	"github.com/okian/fairway/internal/domain/model"
)

// Feed looks up performance aggregates for a contest. A contestant without a
// row is simply absent from the map.
type Feed interface {
	Performances(ctx context.Context, contestID string, contestantIDs []string) (map[string]model.Performance, error)
}

// Store provides read/write access to contests and their settlement records.
// Every write is a single-row operation so callers can tolerate stores
// without multi-row transactions.
type Store interface {
	Feed

	// CreateContest inserts a contest. Returns ErrContestExists on a duplicate id.
	CreateContest(ctx context.Context, c model.Contest) error
	// GetContest returns ErrContestNotFound if the contest is unknown.
	GetContest(ctx context.Context, id string) (model.Contest, error)
	// TransitionContest sets status to `to` only if it currently is `from`.
	// Returns false when the contest exists in another status.
	TransitionContest(ctx context.Context, id string, from, to model.ContestStatus) (bool, error)

	// SavePricingRun stores run and supersedes the contest's previous active run.
	SavePricingRun(ctx context.Context, run model.PricingRun) error
	// GetActivePricingRun returns ErrPricingNotFound if the contest was never priced.
	GetActivePricingRun(ctx context.Context, contestID string) (model.PricingRun, error)

	// CreateEntry returns ErrDuplicateEntry if the user already entered the contest
	// and ErrContestNotOpen if the contest has left the open status.
	CreateEntry(ctx context.Context, e model.Entry) error
	// ListSubmittedEntries returns submitted entries ordered by submission time then id.
	ListSubmittedEntries(ctx context.Context, contestID string) ([]model.Entry, error)
	// AttachStandings sets final score and position on entries that have none yet.
	// Returns the number of entries updated.
	AttachStandings(ctx context.Context, contestID string, standings []model.Standing) (int, error)

	// UpsertPerformances replaces performance rows keyed by (contest, contestant).
	UpsertPerformances(ctx context.Context, contestID string, perf []model.Performance) error

	// CreateResult returns ErrResultExists if the contest already has a result.
	CreateResult(ctx context.Context, r model.CompetitionResult) error
	// GetResultByContest returns ErrResultNotFound if the contest has no result.
	GetResultByContest(ctx context.Context, contestID string) (model.CompetitionResult, error)

	// CreatePayout inserts p unless (result, position) already exists.
	// Returns true if a row was written.
	CreatePayout(ctx context.Context, p model.Payout) (bool, error)
	// ListPayouts returns a result's payouts ordered by position.
	ListPayouts(ctx context.Context, resultID string) ([]model.Payout, error)

	// CreateAnalytics inserts a unless the result already has a snapshot.
	CreateAnalytics(ctx context.Context, a model.AnalyticsSnapshot) (bool, error)
	// GetAnalytics returns ErrAnalyticsNotFound if the result has no snapshot.
	GetAnalytics(ctx context.Context, resultID string) (model.AnalyticsSnapshot, error)
}

// Transactor is implemented by stores that can commit several writes atomically.
type Transactor interface {
	// WithTx runs fn against a transaction-scoped Store and commits if fn returns nil.
	WithTx(ctx context.Context, fn func(Store) error) error
}
