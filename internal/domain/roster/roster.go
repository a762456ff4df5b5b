// Package roster validates an entry's picks against a contest's active pricing.
package roster

import (
	"github.com/okian/fairway/internal/domain/failure"
	"github.com/okian/fairway/internal/domain/model"
)

// Size is the number of picks in a roster.
const Size = 6

// Validate checks the roster shape, that every salary matches the active
// pricing run, and that the total fits under the salary cap. It returns the
// total salary spent.
func Validate(picks []model.Pick, run *model.PricingRun, salaryCap int64) (int64, error) {
	const op = "roster.validate"

	if len(picks) != Size {
		return 0, failure.Validation(op, "roster has %d picks, want %d", len(picks), Size)
	}
	if run == nil {
		return 0, failure.Validation(op, "contest has no active pricing")
	}

	captains := 0
	slots := make(map[int]struct{}, Size)
	contestants := make(map[string]struct{}, Size)
	var total int64
	for _, p := range picks {
		if p.ContestantID == "" {
			return 0, failure.Validation(op, "pick in slot %d has no contestant", p.Slot)
		}
		if p.Slot < 0 || p.Slot >= Size {
			return 0, failure.Validation(op, "slot %d outside 0..%d", p.Slot, Size-1)
		}
		if _, dup := slots[p.Slot]; dup {
			return 0, failure.Validation(op, "slot %d used twice", p.Slot)
		}
		slots[p.Slot] = struct{}{}
		if _, dup := contestants[p.ContestantID]; dup {
			return 0, failure.Validation(op, "contestant %q picked twice", p.ContestantID)
		}
		contestants[p.ContestantID] = struct{}{}
		if p.Captain {
			captains++
		}

		salary, ok := run.Salary(p.ContestantID)
		if !ok {
			return 0, failure.Validation(op, "contestant %q is not priced for this contest", p.ContestantID)
		}
		if salary != p.Salary {
			return 0, failure.Validation(op, "contestant %q salary %d does not match price %d", p.ContestantID, p.Salary, salary)
		}
		total += salary
	}

	if captains != 1 {
		return 0, failure.Validation(op, "roster has %d captains, want 1", captains)
	}
	if salaryCap > 0 && total > salaryCap {
		return 0, failure.Validation(op, "roster costs %d, cap is %d", total, salaryCap)
	}
	return total, nil
}
