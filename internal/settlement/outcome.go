package settlement

import (
	"time"

	"github.com/okian/fairway/internal/domain/model"
)

// Summary is the money and ranking digest of one settlement.
type Summary struct {
	ContestID     string        `json:"contest_id"`
	ResultID      string        `json:"result_id"`
	Entries       int           `json:"entries"`
	GrossPool     int64         `json:"gross_pool"`
	HouseFee      int64         `json:"house_fee"`
	NetPool       int64         `json:"net_pool"`
	PaidPositions int           `json:"paid_positions"`
	Distributed   int64         `json:"distributed"`
	Remainder     int64         `json:"remainder"`
	WinnerEntryID string        `json:"winner_entry_id"`
	Duration      time.Duration `json:"duration_ns"`
}

// Outcome is everything a completed settlement persisted.
type Outcome struct {
	Result    model.CompetitionResult `json:"result"`
	Payouts   []model.Payout          `json:"payouts"`
	Analytics model.AnalyticsSnapshot `json:"analytics"`
	Summary   Summary                 `json:"summary"`
}

// Status is the externally visible settlement progress of a contest.
type Status struct {
	ContestID         string                `json:"contest_id"`
	ContestStatus     model.ContestStatus   `json:"contest_status"`
	State             model.SettlementState `json:"state"`
	ResultID          string                `json:"result_id,omitempty"`
	PayoutsRecorded   int                   `json:"payouts_recorded"`
	PayoutsExpected   int                   `json:"payouts_expected"`
	AnalyticsRecorded bool                  `json:"analytics_recorded"`
}

func summarize(r model.CompetitionResult, d time.Duration) Summary {
	return Summary{
		ContestID:     r.ContestID,
		ResultID:      r.ID,
		Entries:       r.TotalEntries,
		GrossPool:     r.GrossPool,
		HouseFee:      r.HouseFee,
		NetPool:       r.NetPool,
		PaidPositions: r.PaidPositions,
		Distributed:   r.Distributed,
		Remainder:     r.Remainder,
		WinnerEntryID: r.WinnerEntryID,
		Duration:      d,
	}
}
