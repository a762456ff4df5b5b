package settlement

import (
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/okian/fairway/internal/adapters/repository"
	"github.com/okian/fairway/internal/domain/ranking"
	"github.com/okian/fairway/internal/domain/scoring"
	"github.com/okian/fairway/pkg/logger"
)

// Option applies a configuration option to the Coordinator.
type Option func(*Coordinator)

// WithFeed overrides the performance feed. By default the store is the feed.
func WithFeed(feed repository.Feed) Option {
	return func(c *Coordinator) {
		if feed != nil {
			c.feed = feed
		}
	}
}

// WithScorer sets the entry scorer.
func WithScorer(s *scoring.Scorer) Option {
	return func(c *Coordinator) {
		if s != nil {
			c.scorer = s
		}
	}
}

// WithTieBreak sets the ranking tie-break policy.
func WithTieBreak(tb ranking.TieBreak) Option {
	return func(c *Coordinator) {
		if tb != "" {
			c.ranker = ranking.Ranker{TieBreak: tb}
		}
	}
}

// WithDefaultPrizeCurve sets the curve used for contests that carry none.
func WithDefaultPrizeCurve(curve []int64) Option {
	return func(c *Coordinator) {
		if len(curve) > 0 {
			c.defaultCurve = append([]int64(nil), curve...)
		}
	}
}

// WithClock sets the clock used for timestamps and durations.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Coordinator) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.log = l
		}
	}
}

// WithIDGenerator sets the generator for result, payout and analytics ids.
func WithIDGenerator(gen func() string) Option {
	return func(c *Coordinator) {
		if gen != nil {
			c.newID = gen
		}
	}
}

func defaultID() string { return uuid.NewString() }
