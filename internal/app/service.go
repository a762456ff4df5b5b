// Package service wires pricing, entries and settlement behind the operations
// the HTTP API and CLI expose.
package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/okian/fairway/internal/adapters/mq/queue"
	"github.com/okian/fairway/internal/adapters/mq/worker"
	"github.com/okian/fairway/internal/adapters/repository"
	"github.com/okian/fairway/internal/domain/dedupe"
	"github.com/okian/fairway/internal/domain/failure"
	"github.com/okian/fairway/internal/domain/model"
	"github.com/okian/fairway/internal/domain/pricing"
	"github.com/okian/fairway/internal/domain/ranking"
	"github.com/okian/fairway/internal/domain/roster"
	"github.com/okian/fairway/internal/domain/scoring"
	"github.com/okian/fairway/internal/settlement"
	"github.com/okian/fairway/pkg/logger"
	"github.com/okian/fairway/pkg/metrics"
)

// Default service configuration constants.
const (
	defaultWorkerCount     = 4
	defaultQueueSize       = 1_024
	defaultDedupeSize      = 10_000
	defaultHouseFeePercent = 10
)

// PricingPreview is the output of a pricing run that was not persisted.
type PricingPreview struct {
	Records  []model.PricingRecord `json:"records"`
	Stats    model.PricingStats    `json:"stats"`
	Rescaled bool                  `json:"rescaled"`
}

// ContestSpec describes a contest to create. Zero values take service defaults.
type ContestSpec struct {
	ID              string  `json:"id,omitempty"`
	Name            string  `json:"name"`
	EntryFee        int64   `json:"entry_fee"`
	HouseFeePercent *int64  `json:"house_fee_percent,omitempty"`
	PrizeCurve      []int64 `json:"prize_curve,omitempty"`
	SalaryCap       int64   `json:"salary_cap,omitempty"`
}

// EntrySpec is a roster submission.
type EntrySpec struct {
	ContestID   string       `json:"contest_id"`
	UserID      string       `json:"user_id"`
	DisplayName string       `json:"display_name"`
	Picks       []model.Pick `json:"picks"`
}

// BatchItem is the per-contest result of SettleBatch.
type BatchItem struct {
	ContestID string `json:"contest_id"`
	Repair    bool   `json:"repair,omitempty"`
	Outcome   string `json:"outcome"`
	ResultID  string `json:"result_id,omitempty"`
	Error     string `json:"error,omitempty"`
	Duplicate bool   `json:"duplicate,omitempty"`
}

// Service implements the API dependencies for the contest system.
type Service struct {
	mu sync.RWMutex

	store   repository.Store
	feed    repository.Feed
	pricer  *pricing.Engine
	scorer  *scoring.Scorer
	settler *settlement.Coordinator

	tieBreak        ranking.TieBreak
	houseFeePercent int64
	prizeCurve      []int64

	workerCount int
	queueSize   int
	dedupeSize  int

	clock  clockwork.Clock
	newID  func() string
	logger logger.Logger

	started bool

	pricingRuns     atomic.Int64
	entriesAccepted atomic.Int64
	entriesRejected atomic.Int64
	batches         atomic.Int64
	batchJobs       atomic.Int64
}

// New constructs a Service. Without WithStore everything lives in memory.
func New(opts ...Option) *Service {
	s := &Service{
		tieBreak:        ranking.TieBreakSubmittedAt,
		houseFeePercent: defaultHouseFeePercent,
		prizeCurve:      []int64{50, 30, 20},
		workerCount:     defaultWorkerCount,
		queueSize:       defaultQueueSize,
		dedupeSize:      defaultDedupeSize,
		clock:           clockwork.NewRealClock(),
		newID:           uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore()
	}
	if s.pricer == nil {
		s.pricer = pricing.New()
	}
	if s.scorer == nil {
		s.scorer = scoring.New()
	}
	if s.logger == nil {
		s.logger = logger.Named("service")
	}

	sopts := []settlement.Option{
		settlement.WithScorer(s.scorer),
		settlement.WithTieBreak(s.tieBreak),
		settlement.WithDefaultPrizeCurve(s.prizeCurve),
		settlement.WithClock(s.clock),
		settlement.WithLogger(s.logger.Named("settlement")),
	}
	if s.feed != nil {
		sopts = append(sopts, settlement.WithFeed(s.feed))
	}
	s.settler = settlement.New(s.store, sopts...)
	return s
}

// Start marks the service ready. It checks the store when it can be pinged.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	if err := s.ping(ctx); err != nil {
		return err
	}
	s.started = true
	s.logger.Info(ctx, "contest service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queue_size", s.queueSize),
		logger.String("tie_break", string(s.tieBreak)),
		logger.String("scoring_mode", string(s.scorer.Mode())),
	)
	return nil
}

// Stop marks the service stopped and releases the store.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	if closer, ok := s.store.(interface{ Close() }); ok {
		closer.Close()
	}
	s.started = false
	s.logger.Info(context.Background(), "contest service stopped")
}

// Health reports whether the backing store is reachable.
func (s *Service) Health(ctx context.Context) error {
	return s.ping(ctx)
}

func (s *Service) ping(ctx context.Context) error {
	if p, ok := s.store.(interface{ Ping(context.Context) error }); ok {
		if err := p.Ping(ctx); err != nil {
			return failure.Wrap("service.ping", failure.ErrDataUnavailable, err)
		}
	}
	return nil
}

// Price runs the pricing engine without persisting anything.
func (s *Service) Price(ctx context.Context, contestants []model.Contestant, fieldSize int) (PricingPreview, error) {
	start := s.clock.Now()
	records, stats, rescaled, err := s.pricer.Price(contestants, fieldSize)
	if err != nil {
		return PricingPreview{}, err
	}
	metrics.RecordPricingRun(len(records), rescaled, float64(s.clock.Since(start).Microseconds())/1000)
	s.logger.Debug(ctx, "priced field",
		logger.Int("contestants", len(records)),
		logger.Int("field_size", fieldSize),
		logger.Bool("rescaled", rescaled),
	)
	return PricingPreview{Records: records, Stats: stats, Rescaled: rescaled}, nil
}

// PriceContest prices an open contest's field and persists the run, superseding
// any earlier run.
func (s *Service) PriceContest(ctx context.Context, contestID string, contestants []model.Contestant, fieldSize int) (model.PricingRun, error) {
	const op = "service.price_contest"

	contest, err := s.store.GetContest(ctx, contestID)
	if err != nil {
		return model.PricingRun{}, failure.Wrap(op, failure.KindOf(err), err)
	}
	if contest.Status != model.ContestOpen {
		return model.PricingRun{}, failure.New(op, failure.ErrConflict, "contest %s is %s; pricing is locked", contestID, contest.Status)
	}

	preview, err := s.Price(ctx, contestants, fieldSize)
	if err != nil {
		return model.PricingRun{}, err
	}
	run := model.PricingRun{
		ID:        s.newID(),
		ContestID: contestID,
		FieldSize: fieldSize,
		Records:   preview.Records,
		Stats:     preview.Stats,
		Rescaled:  preview.Rescaled,
		CreatedAt: s.clock.Now().UTC(),
	}
	if err := s.store.SavePricingRun(ctx, run); err != nil {
		return model.PricingRun{}, failure.Wrap(op, failure.KindOf(err), err)
	}
	s.pricingRuns.Add(1)
	s.logger.Info(ctx, "pricing run saved",
		logger.String("contest_id", contestID),
		logger.String("run_id", run.ID),
		logger.Bool("rescaled", run.Rescaled),
	)
	return run, nil
}

// CreateContest stores a new open contest.
func (s *Service) CreateContest(ctx context.Context, spec ContestSpec) (model.Contest, error) {
	const op = "service.create_contest"

	if spec.Name == "" {
		return model.Contest{}, failure.Validation(op, "name is required")
	}
	if spec.EntryFee < 0 {
		return model.Contest{}, failure.Validation(op, "entry fee %d is negative", spec.EntryFee)
	}
	pct := s.houseFeePercent
	if spec.HouseFeePercent != nil {
		pct = *spec.HouseFeePercent
	}
	if pct < 0 || pct > 100 {
		return model.Contest{}, failure.Validation(op, "house fee %d%% outside 0..100", pct)
	}
	curve := spec.PrizeCurve
	if len(curve) == 0 {
		curve = s.prizeCurve
	}
	if err := ranking.ValidateCurve(curve); err != nil {
		return model.Contest{}, err
	}
	salaryCap := spec.SalaryCap
	if salaryCap == 0 {
		salaryCap = s.pricer.TotalBudget()
	}
	if salaryCap < 0 {
		return model.Contest{}, failure.Validation(op, "salary cap %d is negative", salaryCap)
	}
	id := spec.ID
	if id == "" {
		id = s.newID()
	}

	now := s.clock.Now().UTC()
	c := model.Contest{
		ID:              id,
		Name:            spec.Name,
		Status:          model.ContestOpen,
		EntryFee:        spec.EntryFee,
		HouseFeePercent: pct,
		PrizeCurve:      append([]int64(nil), curve...),
		SalaryCap:       salaryCap,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.store.CreateContest(ctx, c); err != nil {
		return model.Contest{}, failure.Wrap(op, failure.KindOf(err), err)
	}
	s.logger.Info(ctx, "contest created", logger.String("contest_id", id), logger.Int64("entry_fee", c.EntryFee))
	return c, nil
}

// StartContest moves an open contest to live, closing entries.
func (s *Service) StartContest(ctx context.Context, contestID string) (model.Contest, error) {
	const op = "service.start_contest"

	ok, err := s.store.TransitionContest(ctx, contestID, model.ContestOpen, model.ContestLive)
	if err != nil {
		return model.Contest{}, failure.Wrap(op, failure.KindOf(err), err)
	}
	c, err := s.store.GetContest(ctx, contestID)
	if err != nil {
		return model.Contest{}, failure.Wrap(op, failure.KindOf(err), err)
	}
	if !ok {
		return model.Contest{}, failure.New(op, failure.ErrConflict, "contest %s is %s", contestID, c.Status)
	}
	s.logger.Info(ctx, "contest started", logger.String("contest_id", contestID))
	return c, nil
}

// SubmitEntry validates a roster against the contest's active pricing and
// stores it. A user holds at most one entry per contest.
func (s *Service) SubmitEntry(ctx context.Context, spec EntrySpec) (e model.Entry, err error) {
	const op = "service.submit_entry"
	defer func() {
		switch {
		case err == nil:
			s.entriesAccepted.Add(1)
			metrics.RecordEntrySubmission("accepted")
		case errors.Is(err, failure.ErrConflict):
			s.entriesRejected.Add(1)
			metrics.RecordEntrySubmission("duplicate")
		default:
			s.entriesRejected.Add(1)
			metrics.RecordEntrySubmission("rejected")
		}
	}()

	if spec.UserID == "" {
		return model.Entry{}, failure.Validation(op, "user id is required")
	}
	contest, err := s.store.GetContest(ctx, spec.ContestID)
	if err != nil {
		return model.Entry{}, failure.Wrap(op, failure.KindOf(err), err)
	}
	if contest.Status != model.ContestOpen {
		return model.Entry{}, failure.Validation(op, "contest %s is %s and no longer accepts entries", contest.ID, contest.Status)
	}

	run, err := s.store.GetActivePricingRun(ctx, contest.ID)
	switch {
	case errors.Is(err, repository.ErrPricingNotFound):
		return model.Entry{}, failure.Validation(op, "contest %s has not been priced", contest.ID)
	case err != nil:
		return model.Entry{}, failure.Wrap(op, failure.KindOf(err), err)
	}

	total, err := roster.Validate(spec.Picks, &run, contest.SalaryCap)
	if err != nil {
		return model.Entry{}, err
	}

	display := spec.DisplayName
	if display == "" {
		display = spec.UserID
	}
	entry := model.Entry{
		ID:          s.newID(),
		ContestID:   contest.ID,
		UserID:      spec.UserID,
		DisplayName: display,
		Picks:       append([]model.Pick(nil), spec.Picks...),
		TotalSalary: total,
		Status:      model.EntrySubmitted,
		FeeCharged:  contest.EntryFee,
		SubmittedAt: s.clock.Now().UTC(),
	}
	if err := s.store.CreateEntry(ctx, entry); err != nil {
		return model.Entry{}, failure.Wrap(op, failure.KindOf(err), err)
	}
	s.logger.Debug(ctx, "entry submitted",
		logger.String("contest_id", contest.ID),
		logger.String("entry_id", entry.ID),
		logger.Int64("total_salary", total),
	)
	return entry, nil
}

// RecordPerformances upserts feed data for a contest that is not yet settled.
func (s *Service) RecordPerformances(ctx context.Context, contestID string, perf []model.Performance) error {
	const op = "service.record_performances"

	if len(perf) == 0 {
		return failure.Validation(op, "no performances")
	}
	for _, p := range perf {
		if p.ContestantID == "" {
			return failure.Validation(op, "performance without contestant id")
		}
	}
	contest, err := s.store.GetContest(ctx, contestID)
	if err != nil {
		return failure.Wrap(op, failure.KindOf(err), err)
	}
	if contest.Status == model.ContestSettled {
		return failure.New(op, failure.ErrConflict, "contest %s is settled", contestID)
	}
	if err := s.store.UpsertPerformances(ctx, contestID, perf); err != nil {
		return failure.Wrap(op, failure.KindOf(err), err)
	}
	return nil
}

// Settle settles a live contest exactly once.
func (s *Service) Settle(ctx context.Context, contestID string) (settlement.Outcome, error) {
	return s.settler.Settle(ctx, contestID)
}

// Repair completes or re-runs a settlement stuck in settling.
func (s *Service) Repair(ctx context.Context, contestID string) (settlement.Outcome, error) {
	return s.settler.Repair(ctx, contestID)
}

// SettlementStatus reports a contest's settlement progress.
func (s *Service) SettlementStatus(ctx context.Context, contestID string) (settlement.Status, error) {
	return s.settler.Status(ctx, contestID)
}

// GetSettlement returns the persisted outcome of a settled contest.
func (s *Service) GetSettlement(ctx context.Context, contestID string) (settlement.Outcome, error) {
	return s.settler.Load(ctx, contestID)
}

// SettleBatch runs jobs through a bounded queue and worker pool. A contest
// listed more than once is processed once. Items come back in input order.
func (s *Service) SettleBatch(ctx context.Context, jobs []model.SettlementJob) ([]BatchItem, error) {
	const op = "service.settle_batch"

	if len(jobs) == 0 {
		return nil, failure.Validation(op, "no jobs")
	}
	if len(jobs) > s.queueSize {
		return nil, failure.Validation(op, "batch of %d exceeds queue size %d", len(jobs), s.queueSize)
	}

	seen := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(max(s.dedupeSize, len(jobs))))
	q := queue.NewInMemoryQueue(queue.WithCapacity(len(jobs)))
	items := make([]BatchItem, len(jobs))
	index := make(map[string]int, len(jobs))

	for i, j := range jobs {
		items[i] = BatchItem{ContestID: j.ContestID, Repair: j.Repair}
		if j.ContestID == "" {
			items[i].Outcome = "validation"
			items[i].Error = "contest id is required"
			continue
		}
		if seen.SeenAndRecord(ctx, j.ContestID) {
			items[i].Duplicate = true
			items[i].Outcome = "duplicate"
			continue
		}
		if err := q.Push(ctx, j); err != nil {
			seen.Unrecord(ctx, j.ContestID)
			_ = q.Close()
			return nil, failure.Wrap(op, failure.ErrInternal, err)
		}
		index[j.ContestID] = i
	}
	_ = q.Close()

	var mu sync.Mutex
	report := func(r worker.Report) {
		mu.Lock()
		defer mu.Unlock()
		it := &items[index[r.Job.ContestID]]
		it.Outcome = settlement.OutcomeLabel(r.Err)
		it.ResultID = r.Summary.ResultID
		if r.Err != nil {
			it.Error = r.Err.Error()
			var pw *failure.PartialWriteError
			if errors.As(r.Err, &pw) {
				it.ResultID = pw.ResultID
			}
		}
	}

	pool := worker.NewPool(min(s.workerCount, len(index)), q, s.settler,
		worker.WithReporter(report),
		worker.WithClock(s.clock),
	)
	pool.Start(ctx)
	pool.Wait()

	s.batches.Add(1)
	s.batchJobs.Add(int64(len(index)))
	s.logger.Info(ctx, "settlement batch finished",
		logger.Int("jobs", len(jobs)),
		logger.Int("unique", len(index)),
	)
	return items, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":           s.started,
		"workerCount":       s.workerCount,
		"queueSize":         s.queueSize,
		"dedupeSize":        s.dedupeSize,
		"tieBreak":          string(s.tieBreak),
		"scoringMode":       string(s.scorer.Mode()),
		"pricingRuns":       s.pricingRuns.Load(),
		"entriesAccepted":   s.entriesAccepted.Load(),
		"entriesRejected":   s.entriesRejected.Load(),
		"settlementBatches": s.batches.Load(),
		"batchJobs":         s.batchJobs.Load(),
		"timestamp":         s.clock.Now().UTC().Format(time.RFC3339),
	}
	if c, ok := s.store.(interface{ Len() int }); ok {
		stats["cachedResults"] = c.Len()
	}
	return stats
}
