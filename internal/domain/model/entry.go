package model

import "time"

// Pick is one contestant selected within an entry.
type Pick struct {
	ContestantID string `json:"contestant_id"`
	Slot         int    `json:"slot"`
	Salary       int64  `json:"salary"`
	Captain      bool   `json:"captain"`
}

// Entry is a user-submitted roster competing in one contest.
// FinalScore and FinalPosition are attached once by settlement.
type Entry struct {
	ID            string      `json:"id"`
	ContestID     string      `json:"contest_id"`
	UserID        string      `json:"user_id"`
	DisplayName   string      `json:"display_name"`
	Picks         []Pick      `json:"picks"`
	TotalSalary   int64       `json:"total_salary"`
	Status        EntryStatus `json:"status"`
	FeeCharged    int64       `json:"fee_charged"`
	SubmittedAt   time.Time   `json:"submitted_at"`
	FinalScore    *int64      `json:"final_score,omitempty"`
	FinalPosition *int        `json:"final_position,omitempty"`
}

// Clone returns a deep copy of e.
func (e Entry) Clone() Entry {
	out := e
	out.Picks = append([]Pick(nil), e.Picks...)
	if e.FinalScore != nil {
		v := *e.FinalScore
		out.FinalScore = &v
	}
	if e.FinalPosition != nil {
		v := *e.FinalPosition
		out.FinalPosition = &v
	}
	return out
}
