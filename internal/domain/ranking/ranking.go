// Package ranking orders scored entries and splits a prize pool across a payout curve.
package ranking

import (
	"fmt"
	"sort"
	"time"

	"github.com/okian/fairway/internal/domain/failure"
	"github.com/okian/fairway/internal/domain/model"
)

// TieBreak names the secondary ordering applied to entries with equal points.
type TieBreak string

// Tie-break policies. Both end on entry id so the order is total.
const (
	TieBreakSubmittedAt TieBreak = "submitted_at"
	TieBreakEntryID     TieBreak = "entry_id"
)

// ParseTieBreak maps a config value onto a TieBreak.
func ParseTieBreak(s string) (TieBreak, error) {
	switch TieBreak(s) {
	case "", TieBreakSubmittedAt:
		return TieBreakSubmittedAt, nil
	case TieBreakEntryID:
		return TieBreakEntryID, nil
	default:
		return "", fmt.Errorf("unknown tie-break %q", s)
	}
}

// ScoredEntry is an entry with its computed points.
type ScoredEntry struct {
	EntryID     string
	UserID      string
	DisplayName string
	Points      int64
	SubmittedAt time.Time
}

// Ranker assigns ordinal positions.
type Ranker struct {
	TieBreak TieBreak
}

// Rank sorts by points descending then by the tie-break, and numbers positions 1..n with no gaps.
func (r Ranker) Rank(entries []ScoredEntry) []model.Standing {
	sorted := append([]ScoredEntry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Points != b.Points {
			return a.Points > b.Points
		}
		if r.TieBreak != TieBreakEntryID && !a.SubmittedAt.Equal(b.SubmittedAt) {
			return a.SubmittedAt.Before(b.SubmittedAt)
		}
		return a.EntryID < b.EntryID
	})

	out := make([]model.Standing, len(sorted))
	for i, e := range sorted {
		out[i] = model.Standing{
			Position:    i + 1,
			EntryID:     e.EntryID,
			UserID:      e.UserID,
			DisplayName: e.DisplayName,
			Points:      e.Points,
			SubmittedAt: e.SubmittedAt,
		}
	}
	return out
}

// PoolBreakdown is the audited split of entry-fee revenue.
type PoolBreakdown struct {
	Gross    int64 `json:"gross"`
	HouseFee int64 `json:"house_fee"`
	Net      int64 `json:"net"`
}

// Pool computes gross = entries x fee, house fee = floor(gross x pct / 100), net = gross - house fee.
func Pool(entries int, entryFee, houseFeePercent int64) (PoolBreakdown, error) {
	const op = "ranking.pool"
	if entries < 0 || entryFee < 0 {
		return PoolBreakdown{}, failure.Validation(op, "entries %d and entry fee %d must not be negative", entries, entryFee)
	}
	if houseFeePercent < 0 || houseFeePercent > 100 {
		return PoolBreakdown{}, failure.Validation(op, "house fee %d%% outside 0..100", houseFeePercent)
	}
	gross := int64(entries) * entryFee
	house := gross * houseFeePercent / 100
	return PoolBreakdown{Gross: gross, HouseFee: house, Net: gross - house}, nil
}

// PrizeShare is the prize for one paid position.
type PrizeShare struct {
	Position   int   `json:"position"`
	Percentage int64 `json:"percentage"`
	Amount     int64 `json:"amount"`
}

// ValidateCurve rejects negative shares and curves that pay out more than 100%.
func ValidateCurve(curve []int64) error {
	const op = "ranking.curve"
	var total int64
	for i, p := range curve {
		if p < 0 {
			return failure.Validation(op, "share %d of position %d is negative", p, i+1)
		}
		total += p
	}
	if total > 100 {
		return failure.Validation(op, "curve pays %d%%", total)
	}
	return nil
}

// Distribute floors netPool x pct / 100 for each position. Percentages stay the
// source of truth; the flooring remainder is left to the caller to record.
func Distribute(netPool int64, curve []int64) ([]PrizeShare, error) {
	if netPool < 0 {
		return nil, failure.Validation("ranking.distribute", "net pool %d is negative", netPool)
	}
	if err := ValidateCurve(curve); err != nil {
		return nil, err
	}
	shares := make([]PrizeShare, len(curve))
	for i, pct := range curve {
		shares[i] = PrizeShare{Position: i + 1, Percentage: pct, Amount: netPool * pct / 100}
	}
	return shares, nil
}

// Total sums share amounts.
func Total(shares []PrizeShare) int64 {
	var sum int64
	for _, s := range shares {
		sum += s.Amount
	}
	return sum
}
