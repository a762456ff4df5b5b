package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Standing is one row of a settled leaderboard.
type Standing struct {
	Position    int       `json:"position"`
	EntryID     string    `json:"entry_id"`
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Points      int64     `json:"points"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// CompetitionResult is the immutable settlement record of a contest.
type CompetitionResult struct {
	ID              string     `json:"id"`
	ContestID       string     `json:"contest_id"`
	TotalEntries    int        `json:"total_entries"`
	EntryFee        int64      `json:"entry_fee"`
	GrossPool       int64      `json:"gross_pool"`
	HouseFeePercent int64      `json:"house_fee_percent"`
	HouseFee        int64      `json:"house_fee"`
	NetPool         int64      `json:"net_pool"`
	PrizeCurve      []int64    `json:"prize_curve"`
	PaidPositions   int        `json:"paid_positions"`
	Distributed     int64      `json:"distributed"`
	Remainder       int64      `json:"remainder"`
	WinnerEntryID   string     `json:"winner_entry_id"`
	TieBreak        string     `json:"tie_break"`
	Leaderboard     []Standing `json:"leaderboard"`
	CreatedAt       time.Time  `json:"created_at"`
}

// Payout is the prize paid to one position of a result.
type Payout struct {
	ID         string    `json:"id"`
	ResultID   string    `json:"result_id"`
	ContestID  string    `json:"contest_id"`
	EntryID    string    `json:"entry_id"`
	UserID     string    `json:"user_id"`
	Position   int       `json:"position"`
	Percentage int64     `json:"percentage"`
	Amount     int64     `json:"amount"`
	CreatedAt  time.Time `json:"created_at"`
}

// AnalyticsSnapshot holds aggregate statistics of a settled contest.
type AnalyticsSnapshot struct {
	ID                 string          `json:"id"`
	ResultID           string          `json:"result_id"`
	ContestID          string          `json:"contest_id"`
	UniqueParticipants int             `json:"unique_participants"`
	TotalEntries       int             `json:"total_entries"`
	MeanScore          decimal.Decimal `json:"mean_score"`
	MedianScore        decimal.Decimal `json:"median_score"`
	MaxScore           int64           `json:"max_score"`
	MinScore           int64           `json:"min_score"`
	CreatedAt          time.Time       `json:"created_at"`
}

// SettlementJob asks the batch runner to settle or repair one contest.
type SettlementJob struct {
	ContestID string `json:"contest_id"`
	Repair    bool   `json:"repair,omitempty"`
}
