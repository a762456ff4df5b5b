package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/okian/fairway/internal/domain/model"
)

// MemoryStore is an in-process Store. Each method is atomic on its own but
// there is no multi-row transaction, so settlement takes the per-row path.
type MemoryStore struct {
	mu sync.RWMutex

	contests     map[string]model.Contest
	pricingRuns  map[string][]model.PricingRun // contest id -> runs, oldest first
	entries      map[string]model.Entry
	entryByUser  map[[2]string]string // (contest, user) -> entry id
	performances map[string]map[string]model.Performance
	results      map[string]model.CompetitionResult // contest id -> result
	payouts      map[string]map[int]model.Payout    // result id -> position -> payout
	analytics    map[string]model.AnalyticsSnapshot // result id -> snapshot
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		contests:     make(map[string]model.Contest),
		pricingRuns:  make(map[string][]model.PricingRun),
		entries:      make(map[string]model.Entry),
		entryByUser:  make(map[[2]string]string),
		performances: make(map[string]map[string]model.Performance),
		results:      make(map[string]model.CompetitionResult),
		payouts:      make(map[string]map[int]model.Payout),
		analytics:    make(map[string]model.AnalyticsSnapshot),
	}
}

func (s *MemoryStore) CreateContest(_ context.Context, c model.Contest) (err error) {
	defer observe("create_contest", time.Now(), &err)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.contests[c.ID]; ok {
		return ErrContestExists
	}
	c.PrizeCurve = append([]int64(nil), c.PrizeCurve...)
	s.contests[c.ID] = c
	return nil
}

func (s *MemoryStore) GetContest(_ context.Context, id string) (c model.Contest, err error) {
	defer observe("get_contest", time.Now(), &err)
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.contests[id]
	if !ok {
		return model.Contest{}, ErrContestNotFound
	}
	c.PrizeCurve = append([]int64(nil), c.PrizeCurve...)
	return c, nil
}

func (s *MemoryStore) TransitionContest(_ context.Context, id string, from, to model.ContestStatus) (ok bool, err error) {
	defer observe("transition_contest", time.Now(), &err)
	s.mu.Lock()
	defer s.mu.Unlock()

	c, found := s.contests[id]
	if !found {
		return false, ErrContestNotFound
	}
	if c.Status != from {
		return false, nil
	}
	c.Status = to
	c.UpdatedAt = time.Now().UTC()
	s.contests[id] = c
	return true, nil
}

func (s *MemoryStore) SavePricingRun(_ context.Context, run model.PricingRun) (err error) {
	defer observe("save_pricing_run", time.Now(), &err)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.contests[run.ContestID]; !ok {
		return ErrContestNotFound
	}
	runs := s.pricingRuns[run.ContestID]
	for i := range runs {
		if runs[i].SupersededAt == nil {
			at := run.CreatedAt
			runs[i].SupersededAt = &at
		}
	}
	run.Records = append([]model.PricingRecord(nil), run.Records...)
	run.SupersededAt = nil
	s.pricingRuns[run.ContestID] = append(runs, run)
	return nil
}

func (s *MemoryStore) GetActivePricingRun(_ context.Context, contestID string) (run model.PricingRun, err error) {
	defer observe("get_active_pricing_run", time.Now(), &err)
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := s.pricingRuns[contestID]
	for i := len(runs) - 1; i >= 0; i-- {
		if runs[i].SupersededAt == nil {
			run = runs[i]
			run.Records = append([]model.PricingRecord(nil), run.Records...)
			return run, nil
		}
	}
	return model.PricingRun{}, ErrPricingNotFound
}

func (s *MemoryStore) CreateEntry(_ context.Context, e model.Entry) (err error) {
	defer observe("create_entry", time.Now(), &err)
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.contests[e.ContestID]
	if !ok {
		return ErrContestNotFound
	}
	if c.Status != model.ContestOpen {
		return ErrContestNotOpen
	}
	key := [2]string{e.ContestID, e.UserID}
	if _, dup := s.entryByUser[key]; dup {
		return ErrDuplicateEntry
	}
	if _, dup := s.entries[e.ID]; dup {
		return ErrDuplicateEntry
	}
	s.entries[e.ID] = e.Clone()
	s.entryByUser[key] = e.ID
	return nil
}

func (s *MemoryStore) ListSubmittedEntries(_ context.Context, contestID string) (out []model.Entry, err error) {
	defer observe("list_submitted_entries", time.Now(), &err)
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.entries {
		if e.ContestID == contestID && e.Status == model.EntrySubmitted {
			out = append(out, e.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].SubmittedAt.Before(out[j].SubmittedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) AttachStandings(_ context.Context, contestID string, standings []model.Standing) (n int, err error) {
	defer observe("attach_standings", time.Now(), &err)
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, st := range standings {
		e, ok := s.entries[st.EntryID]
		if !ok || e.ContestID != contestID || e.FinalPosition != nil {
			continue
		}
		points, pos := st.Points, st.Position
		e.FinalScore = &points
		e.FinalPosition = &pos
		s.entries[st.EntryID] = e
		n++
	}
	return n, nil
}

func (s *MemoryStore) UpsertPerformances(_ context.Context, contestID string, perf []model.Performance) (err error) {
	defer observe("upsert_performances", time.Now(), &err)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.contests[contestID]; !ok {
		return ErrContestNotFound
	}
	byID := s.performances[contestID]
	if byID == nil {
		byID = make(map[string]model.Performance, len(perf))
		s.performances[contestID] = byID
	}
	for _, p := range perf {
		p.Rounds = append([]int64(nil), p.Rounds...)
		byID[p.ContestantID] = p
	}
	return nil
}

func (s *MemoryStore) Performances(_ context.Context, contestID string, contestantIDs []string) (out map[string]model.Performance, err error) {
	defer observe("performances", time.Now(), &err)
	s.mu.RLock()
	defer s.mu.RUnlock()

	out = make(map[string]model.Performance, len(contestantIDs))
	byID := s.performances[contestID]
	for _, id := range contestantIDs {
		if p, ok := byID[id]; ok {
			p.Rounds = append([]int64(nil), p.Rounds...)
			out[id] = p
		}
	}
	return out, nil
}

func (s *MemoryStore) CreateResult(_ context.Context, r model.CompetitionResult) (err error) {
	defer observe("create_result", time.Now(), &err)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.results[r.ContestID]; ok {
		return ErrResultExists
	}
	s.results[r.ContestID] = cloneResult(r)
	return nil
}

func (s *MemoryStore) GetResultByContest(_ context.Context, contestID string) (r model.CompetitionResult, err error) {
	defer observe("get_result", time.Now(), &err)
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.results[contestID]
	if !ok {
		return model.CompetitionResult{}, ErrResultNotFound
	}
	return cloneResult(r), nil
}

func (s *MemoryStore) CreatePayout(_ context.Context, p model.Payout) (created bool, err error) {
	defer observe("create_payout", time.Now(), &err)
	s.mu.Lock()
	defer s.mu.Unlock()

	byPos := s.payouts[p.ResultID]
	if byPos == nil {
		byPos = make(map[int]model.Payout)
		s.payouts[p.ResultID] = byPos
	}
	if _, ok := byPos[p.Position]; ok {
		return false, nil
	}
	byPos[p.Position] = p
	return true, nil
}

func (s *MemoryStore) ListPayouts(_ context.Context, resultID string) (out []model.Payout, err error) {
	defer observe("list_payouts", time.Now(), &err)
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.payouts[resultID] {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (s *MemoryStore) CreateAnalytics(_ context.Context, a model.AnalyticsSnapshot) (created bool, err error) {
	defer observe("create_analytics", time.Now(), &err)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.analytics[a.ResultID]; ok {
		return false, nil
	}
	s.analytics[a.ResultID] = a
	return true, nil
}

func (s *MemoryStore) GetAnalytics(_ context.Context, resultID string) (a model.AnalyticsSnapshot, err error) {
	defer observe("get_analytics", time.Now(), &err)
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.analytics[resultID]
	if !ok {
		return model.AnalyticsSnapshot{}, ErrAnalyticsNotFound
	}
	return a, nil
}

func cloneResult(r model.CompetitionResult) model.CompetitionResult {
	r.PrizeCurve = append([]int64(nil), r.PrizeCurve...)
	r.Leaderboard = append([]model.Standing(nil), r.Leaderboard...)
	return r
}
