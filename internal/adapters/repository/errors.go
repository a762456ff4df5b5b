package repository

import (
	"fmt"

	"github.com/okian/fairway/internal/domain/failure"
)

// Sentinel kinds for store errors. Each wraps a failure kind so callers can
// classify with errors.Is against either.
var (
	ErrContestNotFound   = fmt.Errorf("contest %w", failure.ErrNotFound)
	ErrContestExists     = fmt.Errorf("contest already exists: %w", failure.ErrConflict)
	ErrPricingNotFound   = fmt.Errorf("active pricing run %w", failure.ErrNotFound)
	ErrDuplicateEntry    = fmt.Errorf("user already has an entry in this contest: %w", failure.ErrConflict)
	ErrContestNotOpen    = fmt.Errorf("contest no longer accepts entries: %w", failure.ErrValidation)
	ErrResultNotFound    = fmt.Errorf("competition result %w", failure.ErrNotFound)
	ErrResultExists      = fmt.Errorf("competition result already exists: %w", failure.ErrConflict)
	ErrAnalyticsNotFound = fmt.Errorf("analytics snapshot %w", failure.ErrNotFound)
)
