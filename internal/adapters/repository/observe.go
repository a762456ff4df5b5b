package repository

import (
	"errors"
	"time"

	"github.com/okian/fairway/internal/domain/failure"
	"github.com/okian/fairway/pkg/metrics"
)

// observe records latency and failure of one store call. Not-found and
// conflict outcomes are answers, not failures. Use with a named error result:
//
//	defer observe("get_contest", time.Now(), &err)
func observe(op string, start time.Time, err *error) {
	var e error
	if err != nil && *err != nil && !errors.Is(*err, failure.ErrNotFound) && !errors.Is(*err, failure.ErrConflict) {
		e = *err
	}
	metrics.RecordStoreOperation(op, float64(time.Since(start).Microseconds())/1000, e)
}
