package model_test

import (
	"encoding/json"
	"testing"

	model "github.com/okian/fairway/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestParseFormTag(t *testing.T) {
	convey.Convey("Given raw form labels", t, func() {
		convey.Convey("When the label is empty", func() {
			tag, err := model.ParseFormTag("")

			convey.Convey("Then it defaults to average", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(tag, convey.ShouldEqual, model.FormAverage)
			})
		})

		convey.Convey("When the label uses mixed case and spaces", func() {
			tag, err := model.ParseFormTag(" Excellent ")

			convey.Convey("Then it normalizes", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(tag, convey.ShouldEqual, model.FormExcellent)
			})
		})

		convey.Convey("When the label is unknown", func() {
			_, err := model.ParseFormTag("hot")

			convey.Convey("Then it is rejected", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}

func TestFormTagJSON(t *testing.T) {
	convey.Convey("Given contestants decoded from JSON", t, func() {
		var cs []model.Contestant
		err := json.Unmarshal([]byte(`[
			{"id":"a","ranking":1,"form":"Excellent"},
			{"id":"b","ranking":2,"form":" poor "},
			{"id":"c","ranking":3,"form":""},
			{"id":"d","ranking":4}
		]`), &cs)

		convey.Convey("Then labels are normalized", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(cs[0].Form, convey.ShouldEqual, model.FormExcellent)
			convey.So(cs[1].Form, convey.ShouldEqual, model.FormPoor)
			convey.So(cs[2].Form, convey.ShouldEqual, model.FormAverage)
			convey.So(cs[3].Form, convey.ShouldEqual, model.FormTag(""))
		})

		convey.Convey("When a label is unknown", func() {
			var c model.Contestant
			err := json.Unmarshal([]byte(`{"id":"x","form":"hot"}`), &c)
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestContestStatus(t *testing.T) {
	convey.Convey("Given contest statuses", t, func() {
		convey.So(model.ContestLive.Valid(), convey.ShouldBeTrue)
		convey.So(model.ContestSettling.Valid(), convey.ShouldBeTrue)
		convey.So(model.ContestStatus("closed").Valid(), convey.ShouldBeFalse)
	})
}

func TestEntryClone(t *testing.T) {
	convey.Convey("Given a settled entry", t, func() {
		score, pos := int64(120), 1
		e := model.Entry{ID: "e1", Picks: []model.Pick{{ContestantID: "g1"}}, FinalScore: &score, FinalPosition: &pos}

		convey.Convey("When the clone is mutated", func() {
			c := e.Clone()
			c.Picks[0].ContestantID = "g9"
			*c.FinalScore = 0
			*c.FinalPosition = 7

			convey.Convey("Then the original is untouched", func() {
				convey.So(e.Picks[0].ContestantID, convey.ShouldEqual, "g1")
				convey.So(*e.FinalScore, convey.ShouldEqual, 120)
				convey.So(*e.FinalPosition, convey.ShouldEqual, 1)
			})
		})
	})
}

func TestPricingRunSalary(t *testing.T) {
	convey.Convey("Given a pricing run", t, func() {
		run := model.PricingRun{Records: []model.PricingRecord{{ContestantID: "g1", Salary: 150_000}}}

		s, ok := run.Salary("g1")
		convey.So(ok, convey.ShouldBeTrue)
		convey.So(s, convey.ShouldEqual, 150_000)

		_, ok = run.Salary("g2")
		convey.So(ok, convey.ShouldBeFalse)
	})
}
