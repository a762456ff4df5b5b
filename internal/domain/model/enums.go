// Package model contains domain models passed between layers.
package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FormTag is a contestant's recent-form label used as a pricing modifier.
type FormTag string

// Form tags.
const (
	FormExcellent FormTag = "excellent"
	FormGood      FormTag = "good"
	FormAverage   FormTag = "average"
	FormPoor      FormTag = "poor"
)

// ParseFormTag maps a raw label onto a FormTag. Empty input means average.
func ParseFormTag(s string) (FormTag, error) {
	switch FormTag(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormAverage:
		return FormAverage, nil
	case FormExcellent:
		return FormExcellent, nil
	case FormGood:
		return FormGood, nil
	case FormPoor:
		return FormPoor, nil
	default:
		return "", fmt.Errorf("unknown form tag %q", s)
	}
}

// UnmarshalJSON accepts any casing and surrounding spaces, and maps an empty
// label to average. Unknown labels fail decoding.
func (f *FormTag) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("form tag: %w", err)
	}
	tag, err := ParseFormTag(raw)
	if err != nil {
		return err
	}
	*f = tag
	return nil
}

// ContestStatus is the lifecycle state of a contest.
type ContestStatus string

// Contest statuses. Settling is the mutual-exclusion state held during settlement.
const (
	ContestOpen     ContestStatus = "open"
	ContestLive     ContestStatus = "live"
	ContestSettling ContestStatus = "settling"
	ContestSettled  ContestStatus = "settled"
)

// Valid reports whether s is a known contest status.
func (s ContestStatus) Valid() bool {
	switch s {
	case ContestOpen, ContestLive, ContestSettling, ContestSettled:
		return true
	}
	return false
}

// EntryStatus is the submission state of an entry.
type EntryStatus string

// Entry statuses.
const (
	EntryDraft     EntryStatus = "draft"
	EntrySubmitted EntryStatus = "submitted"
)

// SettlementState is the externally visible settlement progress of a contest.
type SettlementState string

// Settlement states.
const (
	SettlementPending           SettlementState = "pending"
	SettlementInProgress        SettlementState = "in_progress"
	SettlementPayoutsIncomplete SettlementState = "payouts_incomplete"
	SettlementSettled           SettlementState = "settled"
)
