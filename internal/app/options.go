package service

import (
	"github.com/jonboulle/clockwork"

	"github.com/okian/fairway/internal/adapters/repository"
	"github.com/okian/fairway/internal/config"
	"github.com/okian/fairway/internal/domain/pricing"
	"github.com/okian/fairway/internal/domain/ranking"
	"github.com/okian/fairway/internal/domain/scoring"
	"github.com/okian/fairway/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the persistence backend. The default is an in-memory store.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithFeed overrides the performance feed used by settlement.
func WithFeed(feed repository.Feed) Option {
	return func(s *Service) {
		if feed != nil {
			s.feed = feed
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock sets the clock used for timestamps.
func WithClock(c clockwork.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithPricingEngine sets the pricing engine.
func WithPricingEngine(e *pricing.Engine) Option {
	return func(s *Service) {
		if e != nil {
			s.pricer = e
		}
	}
}

// WithScorer sets the entry scorer.
func WithScorer(sc *scoring.Scorer) Option {
	return func(s *Service) {
		if sc != nil {
			s.scorer = sc
		}
	}
}

// WithTieBreak sets the leaderboard tie-break policy.
func WithTieBreak(tb ranking.TieBreak) Option {
	return func(s *Service) {
		if tb != "" {
			s.tieBreak = tb
		}
	}
}

// WithHouseFeePercent sets the default house fee for new contests.
func WithHouseFeePercent(pct int64) Option {
	return func(s *Service) {
		if pct >= 0 && pct <= 100 {
			s.houseFeePercent = pct
		}
	}
}

// WithPrizeCurve sets the default prize curve for new contests.
func WithPrizeCurve(curve []int64) Option {
	return func(s *Service) {
		if len(curve) > 0 {
			s.prizeCurve = append([]int64(nil), curve...)
		}
	}
}

// WithWorkerCount sets the number of batch settlement workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum number of jobs in one batch.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize bounds the per-batch contest id dedupe set.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithIDGenerator sets the generator for contest, entry and pricing run ids.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// OptionsFromConfig translates process configuration into service options.
func OptionsFromConfig(cfg *config.Config) ([]Option, error) {
	curve, err := cfg.PrizeCurve()
	if err != nil {
		return nil, err
	}
	mode, err := scoring.ParseMode(cfg.ScoringMode)
	if err != nil {
		return nil, err
	}
	tb, err := ranking.ParseTieBreak(cfg.SettlementTieBreak)
	if err != nil {
		return nil, err
	}
	return []Option{
		WithPricingEngine(pricing.New(
			pricing.WithSalaryBounds(cfg.PricingMinSalary, cfg.PricingMaxSalary),
			pricing.WithTotalBudget(cfg.PricingTotalBudget),
			pricing.WithFeasibilityRatio(cfg.PricingFeasibilityRatio),
		)),
		WithScorer(scoring.New(
			scoring.WithMode(mode),
			scoring.WithPointsPerStroke(cfg.ScoringPointsPerStroke),
			scoring.WithCaptainMultiplier(cfg.ScoringCaptainMultiplier),
		)),
		WithTieBreak(tb),
		WithHouseFeePercent(cfg.SettlementHouseFeePercent),
		WithPrizeCurve(curve),
		WithWorkerCount(cfg.WorkerCount),
		WithQueueSize(cfg.JobQueueSize),
		WithDedupeSize(cfg.DedupeSize),
	}, nil
}
