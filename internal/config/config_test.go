package config_test

import (
	"errors"
	"runtime"
	"testing"

	"github.com/okian/fairway/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with defaults", t, func() {
		cfg := config.New()

		convey.Convey("Then it should carry the contest rule defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU())
			convey.So(cfg.PricingMinSalary, convey.ShouldEqual, 60_000)
			convey.So(cfg.PricingMaxSalary, convey.ShouldEqual, 150_000)
			convey.So(cfg.PricingTotalBudget, convey.ShouldEqual, 500_000)
			convey.So(cfg.PricingFeasibilityRatio, convey.ShouldEqual, 0.85)
			convey.So(cfg.ScoringPointsPerStroke, convey.ShouldEqual, 10)
			convey.So(cfg.ScoringCaptainMultiplier, convey.ShouldEqual, 2)
			convey.So(cfg.SettlementHouseFeePercent, convey.ShouldEqual, 10)
			convey.So(cfg.SettlementTieBreak, convey.ShouldEqual, "submitted_at")
			convey.So(cfg.FeasibilityLimit(), convey.ShouldEqual, 425_000)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("Then the prize curve parses to 50/30/20", func() {
			curve, err := cfg.PrizeCurve()
			convey.So(err, convey.ShouldBeNil)
			convey.So(curve, convey.ShouldResemble, []int64{50, 30, 20})
		})

		convey.Convey("Then origins split on commas", func() {
			cfg.CORSAllowedOrigins = "https://a.example, https://b.example,"
			convey.So(cfg.AllowedOrigins(), convey.ShouldResemble, []string{"https://a.example", "https://b.example"})
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"empty addr", func(c *config.Config) { c.Addr = "" }},
		{"min above max", func(c *config.Config) { c.PricingMinSalary = 200_000 }},
		{"zero budget", func(c *config.Config) { c.PricingTotalBudget = 0 }},
		{"ratio above one", func(c *config.Config) { c.PricingFeasibilityRatio = 1.5 }},
		{"six floor salaries over the limit", func(c *config.Config) { c.PricingMinSalary = 80_000 }},
		{"ratio too tight for the floor", func(c *config.Config) { c.PricingFeasibilityRatio = 0.5 }},
		{"unknown scoring mode", func(c *config.Config) { c.ScoringMode = "stableford" }},
		{"fee above 100", func(c *config.Config) { c.SettlementHouseFeePercent = 101 }},
		{"curve above 100", func(c *config.Config) { c.SettlementPrizeCurve = "60,30,20" }},
		{"curve not numeric", func(c *config.Config) { c.SettlementPrizeCurve = "50,x" }},
		{"negative share", func(c *config.Config) { c.SettlementPrizeCurve = "50,-10" }},
		{"unknown tie-break", func(c *config.Config) { c.SettlementTieBreak = "coin_flip" }},
		{"zero workers", func(c *config.Config) { c.WorkerCount = 0 }},
	}

	convey.Convey("Given invalid configurations", t, func() {
		for _, tc := range cases {
			convey.Convey("When "+tc.name, func() {
				cfg := config.New()
				tc.mutate(cfg)

				convey.Convey("Then validation fails with ErrInvalidConfig", func() {
					err := cfg.Validate()
					convey.So(err, convey.ShouldNotBeNil)
					convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				})
			})
		}
	})
}
