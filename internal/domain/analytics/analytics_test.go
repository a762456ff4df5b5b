package analytics_test

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/fairway/internal/domain/analytics"
	"github.com/okian/fairway/internal/domain/model"
)

func TestSummarize(t *testing.T) {
	Convey("Given a leaderboard with a repeat participant", t, func() {
		rows := []model.Standing{
			{UserID: "u1", Points: 220},
			{UserID: "u2", Points: 150},
			{UserID: "u1", Points: 100},
			{UserID: "u3", Points: 35},
		}

		s := analytics.Summarize(rows)

		Convey("Then aggregates cover every entry", func() {
			So(s.UniqueParticipants, ShouldEqual, 3)
			So(s.TotalEntries, ShouldEqual, 4)
			So(s.Max, ShouldEqual, 220)
			So(s.Min, ShouldEqual, 35)
			So(s.Mean.String(), ShouldEqual, "126.25")
			So(s.Median.String(), ShouldEqual, "125")
		})
	})

	Convey("Given an odd number of rows", t, func() {
		s := analytics.Summarize([]model.Standing{{UserID: "a", Points: 10}, {UserID: "b", Points: 40}, {UserID: "c", Points: 11}})

		So(s.Median.String(), ShouldEqual, "11")
		So(s.Mean.String(), ShouldEqual, "20.33")
	})

	Convey("Given no rows", t, func() {
		s := analytics.Summarize(nil)

		So(s.TotalEntries, ShouldEqual, 0)
		So(s.Mean.IsZero(), ShouldBeTrue)
	})
}
