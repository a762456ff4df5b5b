package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/fairway/internal/adapters/http/api"
	service "github.com/okian/fairway/internal/app"
	"github.com/okian/fairway/internal/domain/failure"
	"github.com/okian/fairway/internal/domain/model"
	"github.com/okian/fairway/internal/seed"
	"github.com/okian/fairway/internal/settlement"
	"github.com/okian/fairway/pkg/logger"
)

func init() {
	_ = logger.Init()
}

// mockDeps embeds the real service for the operations a test does not override.
type mockDeps struct {
	*service.Service
	healthErr error
	settleErr error
	status    settlement.Status
}

func (m *mockDeps) Health(context.Context) error { return m.healthErr }

func (m *mockDeps) Settle(ctx context.Context, id string) (settlement.Outcome, error) {
	if m.settleErr != nil {
		return settlement.Outcome{}, m.settleErr
	}
	return m.Service.Settle(ctx, id)
}

func (m *mockDeps) SettlementStatus(ctx context.Context, id string) (settlement.Status, error) {
	if m.status.ContestID != "" {
		return m.status, nil
	}
	return m.Service.SettlementStatus(ctx, id)
}

type mockStatsProvider struct {
	stats map[string]interface{}
}

func (m *mockStatsProvider) GetStats() map[string]interface{} {
	return m.stats
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(w *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	So(json.Unmarshal(w.Body.Bytes(), &out), ShouldBeNil)
	return out
}

func TestServer_Routes(t *testing.T) {
	Convey("Given an API server over an in-memory service", t, func() {
		deps := &mockDeps{Service: service.New()}
		stats := &mockStatsProvider{stats: map[string]interface{}{"started": true}}
		h := api.NewServer(deps, stats, api.WithAllowedOrigins([]string{"https://fairway.example"})).Handler()

		Convey("When probing health and metrics", func() {
			So(do(h, http.MethodGet, "/healthz", "").Code, ShouldEqual, http.StatusOK)
			So(do(h, http.MethodGet, "/metrics", "").Code, ShouldEqual, http.StatusOK)

			Convey("And the store is unreachable", func() {
				deps.healthErr = errors.New("pool closed")
				w := do(h, http.MethodGet, "/healthz", "")
				So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
				So(decode(w)["code"], ShouldEqual, "unhealthy")
			})
		})

		Convey("When reading stats", func() {
			w := do(h, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["started"], ShouldEqual, true)
		})

		Convey("When reading the API docs", func() {
			So(do(h, http.MethodGet, "/openapi.yaml", "").Code, ShouldEqual, http.StatusOK)
			So(do(h, http.MethodGet, "/api-docs", "").Code, ShouldEqual, http.StatusOK)
		})

		Convey("When a route does not exist", func() {
			w := do(h, http.MethodGet, "/leaderboard", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(decode(w)["code"], ShouldEqual, "not_found")
		})

		Convey("When the method is wrong", func() {
			w := do(h, http.MethodGet, "/contests", "")
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})

		Convey("When a cross-origin request arrives", func() {
			req := httptest.NewRequest(http.MethodGet, "/stats", nil)
			req.Header.Set("Origin", "https://fairway.example")
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			So(w.Header().Get("Access-Control-Allow-Origin"), ShouldEqual, "https://fairway.example")
		})

		Convey("When creating a contest", func() {
			w := do(h, http.MethodPost, "/contests", `{"id":"c1","name":"Open","entry_fee":1000}`)

			Convey("Then it is created open", func() {
				So(w.Code, ShouldEqual, http.StatusCreated)
				So(w.Header().Get("Location"), ShouldEqual, "/contests/c1")
				So(decode(w)["status"], ShouldEqual, "open")
			})

			Convey("And creating it again conflicts", func() {
				w := do(h, http.MethodPost, "/contests", `{"id":"c1","name":"Open"}`)
				So(w.Code, ShouldEqual, http.StatusConflict)
			})
		})

		Convey("When the body is malformed", func() {
			for _, body := range []string{"", "{", `{"nope":1}`} {
				w := do(h, http.MethodPost, "/contests", body)
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decode(w)["code"], ShouldEqual, "bad_request")
			}
		})

		Convey("When previewing prices", func() {
			w := do(h, http.MethodPost, "/pricing/preview", `{"contestants":[{"id":"g1","ranking":1,"form":"good"},{"id":"g2","ranking":40}]}`)

			Convey("Then records come back without persisting", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				records := decode(w)["records"].([]any)
				So(len(records), ShouldEqual, 2)
			})
		})

		Convey("When the preview uses a capitalized form tag", func() {
			w := do(h, http.MethodPost, "/pricing/preview", `{"contestants":[{"id":"g1","ranking":1,"form":"Excellent"}]}`)

			Convey("Then the tag is normalized before pricing", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				record := decode(w)["records"].([]any)[0].(map[string]any)
				So(record["form"], ShouldEqual, "excellent")
			})
		})

		Convey("When the preview has an unknown form tag", func() {
			w := do(h, http.MethodPost, "/pricing/preview", `{"contestants":[{"id":"g1","ranking":1,"form":"hot"}]}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When a batch is empty", func() {
			w := do(h, http.MethodPost, "/settlements/batch", `{"jobs":[]}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestServer_SettlementErrors(t *testing.T) {
	Convey("Given a server whose settlement fails in a chosen way", t, func() {
		deps := &mockDeps{Service: service.New()}
		h := api.NewServer(deps, &mockStatsProvider{}).Handler()

		cases := []struct {
			err  error
			code int
			name string
		}{
			{failure.New("t", failure.ErrValidation, "open"), http.StatusBadRequest, "bad_request"},
			{failure.New("t", failure.ErrNotFound, "gone"), http.StatusNotFound, "not_found"},
			{failure.New("t", failure.ErrNoEntries, "empty"), http.StatusUnprocessableEntity, "no_entries"},
			{failure.New("t", failure.ErrDataUnavailable, "feed"), http.StatusServiceUnavailable, "data_unavailable"},
			{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
		}

		Convey("When each kind is returned", func() {
			Convey("Then it maps to its status and code", func() {
				for _, c := range cases {
					deps.settleErr = c.err
					w := do(h, http.MethodPost, "/contests/c1/settle", "")
					So(w.Code, ShouldEqual, c.code)
					So(decode(w)["code"], ShouldEqual, c.name)
				}
			})
		})

		Convey("When settlement conflicts", func() {
			deps.settleErr = failure.New("t", failure.ErrConflict, "contest c1 is settling")
			deps.status = settlement.Status{ContestID: "c1", ContestStatus: model.ContestSettling, State: model.SettlementPayoutsIncomplete}
			w := do(h, http.MethodPost, "/contests/c1/settle", "")

			Convey("Then the body carries the current settlement status", func() {
				So(w.Code, ShouldEqual, http.StatusConflict)
				body := decode(w)
				So(body["code"], ShouldEqual, "conflict")
				So(body["settlement"].(map[string]any)["state"], ShouldEqual, "payouts_incomplete")
			})
		})

		Convey("When payouts were only partly written", func() {
			deps.settleErr = &failure.PartialWriteError{ContestID: "c1", ResultID: "r1", Step: "payouts", Err: errors.New("timeout")}
			w := do(h, http.MethodPost, "/contests/c1/settle", "")

			Convey("Then the result is acknowledged as pending", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				body := decode(w)
				So(body["status"], ShouldEqual, "payouts_pending")
				So(body["result_id"], ShouldEqual, "r1")
			})
		})
	})
}

func TestServer_EndToEnd(t *testing.T) {
	Convey("Given a seeded live contest behind the API", t, func() {
		ctx := context.Background()
		svc := service.New()
		cfg := seed.DefaultConfig()
		cfg.ContestID = "seeded"
		_, err := seed.Run(ctx, svc, cfg)
		So(err, ShouldBeNil)
		h := api.NewServer(svc, svc).Handler()

		Convey("When the settlement is read before it exists", func() {
			w := do(h, http.MethodGet, "/contests/seeded/settlement", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When the contest is settled", func() {
			w := do(h, http.MethodPost, "/contests/seeded/settle", "")

			Convey("Then payouts are returned and the status reads settled", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(len(decode(w)["payouts"].([]any)), ShouldEqual, 3)

				st := do(h, http.MethodGet, "/contests/seeded/settlement/status", "")
				So(st.Code, ShouldEqual, http.StatusOK)
				So(decode(st)["state"], ShouldEqual, "settled")

				got := do(h, http.MethodGet, "/contests/seeded/settlement", "")
				So(got.Code, ShouldEqual, http.StatusOK)
			})

			Convey("Then a second settle and a repair conflict", func() {
				So(do(h, http.MethodPost, "/contests/seeded/settle", "").Code, ShouldEqual, http.StatusConflict)
				So(do(h, http.MethodPost, "/contests/seeded/repair", "").Code, ShouldEqual, http.StatusConflict)
			})

			Convey("Then late performances are refused", func() {
				w := do(h, http.MethodPost, "/contests/seeded/performances", `{"performances":[{"contestant_id":"g001","relative_to_par":-3}]}`)
				So(w.Code, ShouldEqual, http.StatusConflict)
			})
		})

		Convey("When settling through the batch endpoint", func() {
			w := do(h, http.MethodPost, "/settlements/batch", `{"jobs":[{"contest_id":"seeded"},{"contest_id":"seeded"}]}`)

			Convey("Then the duplicate is skipped", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				items := decode(w)["items"].([]any)
				So(items[0].(map[string]any)["outcome"], ShouldEqual, "settled")
				So(items[1].(map[string]any)["duplicate"], ShouldEqual, true)
			})
		})

		Convey("When a new contest goes through the entry flow", func() {
			So(do(h, http.MethodPost, "/contests", `{"id":"c2","name":"Second"}`).Code, ShouldEqual, http.StatusCreated)
			priced := do(h, http.MethodPost, "/contests/c2/pricing",
				`{"contestants":[{"id":"a","ranking":1},{"id":"b","ranking":2},{"id":"c","ranking":3},{"id":"d","ranking":4},{"id":"e","ranking":5},{"id":"f","ranking":6}]}`)
			So(priced.Code, ShouldEqual, http.StatusCreated)

			Convey("Then an entry with wrong salaries is rejected", func() {
				w := do(h, http.MethodPost, "/contests/c2/entries",
					`{"user_id":"u1","picks":[{"contestant_id":"a","slot":0,"salary":1,"captain":true}]}`)
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})

			Convey("Then starting it works once", func() {
				So(do(h, http.MethodPost, "/contests/c2/start", "").Code, ShouldEqual, http.StatusOK)
				So(do(h, http.MethodPost, "/contests/c2/start", "").Code, ShouldEqual, http.StatusConflict)
			})

			Convey("Then settling it without entries is unprocessable", func() {
				So(do(h, http.MethodPost, "/contests/c2/start", "").Code, ShouldEqual, http.StatusOK)
				w := do(h, http.MethodPost, "/contests/c2/settle", "")
				So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
			})
		})
	})
}
