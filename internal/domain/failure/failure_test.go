package failure_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/okian/fairway/internal/domain/failure"
	"github.com/smartystreets/goconvey/convey"
)

func TestErrorKinds(t *testing.T) {
	convey.Convey("Given a wrapped store error", t, func() {
		cause := errors.New("connection reset")
		err := failure.Wrap("settlement.load", failure.ErrDataUnavailable, cause)

		convey.Convey("Then both kind and cause match", func() {
			convey.So(errors.Is(err, failure.ErrDataUnavailable), convey.ShouldBeTrue)
			convey.So(errors.Is(err, cause), convey.ShouldBeTrue)
			convey.So(errors.Is(err, failure.ErrConflict), convey.ShouldBeFalse)
			convey.So(err.Error(), convey.ShouldEqual, "settlement.load: performance data unavailable: connection reset")
		})

		convey.Convey("Then further wrapping keeps the kind", func() {
			outer := fmt.Errorf("batch: %w", err)
			convey.So(failure.KindOf(outer), convey.ShouldEqual, failure.ErrDataUnavailable)
		})
	})

	convey.Convey("Given a nil cause", t, func() {
		convey.So(failure.Wrap("op", failure.ErrInternal, nil), convey.ShouldBeNil)
	})

	convey.Convey("Given a validation error", t, func() {
		err := failure.Validation("pricing.price", "field size %d must be at least 1", 0)

		convey.So(errors.Is(err, failure.ErrValidation), convey.ShouldBeTrue)
		convey.So(err.Error(), convey.ShouldContainSubstring, "field size 0")
	})

	convey.Convey("Given an unclassified error", t, func() {
		convey.So(failure.KindOf(errors.New("boom")), convey.ShouldEqual, failure.ErrInternal)
	})
}

func TestPartialWriteError(t *testing.T) {
	convey.Convey("Given a partial write", t, func() {
		cause := errors.New("disk full")
		var err error = &failure.PartialWriteError{ContestID: "c1", ResultID: "r1", Step: "payouts", Err: cause}

		convey.Convey("Then it classifies as a partial write and keeps its fields", func() {
			convey.So(errors.Is(err, failure.ErrPartialWrite), convey.ShouldBeTrue)
			convey.So(errors.Is(err, cause), convey.ShouldBeTrue)
			convey.So(failure.KindOf(err), convey.ShouldEqual, failure.ErrPartialWrite)

			var pw *failure.PartialWriteError
			convey.So(errors.As(err, &pw), convey.ShouldBeTrue)
			convey.So(pw.ResultID, convey.ShouldEqual, "r1")
			convey.So(pw.Step, convey.ShouldEqual, "payouts")
		})
	})
}
