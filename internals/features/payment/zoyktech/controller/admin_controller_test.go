package controller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"coursepay_backend/internals/features/payment/zoyktech/dto"
	"coursepay_backend/internals/features/payment/zoyktech/model"
	"coursepay_backend/internals/features/payment/zoyktech/repository"
	"coursepay_backend/internals/features/payment/zoyktech/service"
)

type fakeSweeper struct {
	report      service.SweepReport
	err         error
	calls       int
	hadDeadline bool
}

func (f *fakeSweeper) RunOnce(ctx context.Context) (service.SweepReport, error) {
	f.calls++
	_, f.hadDeadline = ctx.Deadline()
	return f.report, f.err
}

func newAdminApp(store repository.TransactionStore, events repository.EventStore, sweeper SweepTrigger) *fiber.App {
	app := fiber.New()
	ctrl := NewAdminController(store, events, sweeper)
	app.Get("/transactions", ctrl.ListTransactions)
	app.Get("/transactions/:provider_order_id", ctrl.GetTransaction)
	app.Get("/events", ctrl.ListEvents)
	app.Get("/stats", ctrl.Stats)
	app.Post("/sweep", ctrl.TriggerSweep)
	return app
}

func get(t *testing.T, app *fiber.App, target string) (int, apiResponse) {
	t.Helper()
	return call(t, app, httptest.NewRequest(http.MethodGet, target, nil))
}

func TestAdminListTransactions(t *testing.T) {
	t.Parallel()

	store := repository.NewMemoryTransactionRepository()
	seedTransactions(t, store, "user-7", "PO1", "PO2")
	seedTransactions(t, store, "user-8", "PO3")
	if _, err := store.ApplyTransition(context.Background(), "PO3", model.TransactionStatusFailed, nil); err != nil {
		t.Fatal(err)
	}
	app := newAdminApp(store, nil, nil)

	tests := []struct {
		name      string
		target    string
		wantCode  int
		wantTotal int64
	}{
		{"all", "/transactions", http.StatusOK, 3},
		{"by user", "/transactions?user_id=user-7", http.StatusOK, 2},
		{"by status", "/transactions?status=FAILED", http.StatusOK, 1},
		{"by course", "/transactions?course_id=course-none", http.StatusOK, 0},
		{"invalid status", "/transactions?status=paid", http.StatusBadRequest, 0},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			code, resp := get(t, app, tc.target)
			if code != tc.wantCode {
				t.Fatalf("status = %d, want %d (%s)", code, tc.wantCode, resp.Message)
			}
			if code == http.StatusOK && resp.Pagination.Total != tc.wantTotal {
				t.Errorf("total = %d, want %d", resp.Pagination.Total, tc.wantTotal)
			}
			if code == http.StatusBadRequest && resp.Message != "invalid status filter" {
				t.Errorf("message = %q", resp.Message)
			}
		})
	}
}

func TestAdminGetTransaction(t *testing.T) {
	t.Parallel()

	store := repository.NewMemoryTransactionRepository()
	seedTransactions(t, store, "user-7", "PO1")
	app := newAdminApp(store, nil, nil)

	code, resp := get(t, app, "/transactions/PO1")
	if code != http.StatusOK {
		t.Fatalf("status = %d (%s)", code, resp.Message)
	}
	var tx dto.TransactionResponse
	if err := json.Unmarshal(resp.Data, &tx); err != nil {
		t.Fatal(err)
	}
	if tx.ProviderOrderID != "PO1" || tx.UserID != "user-7" {
		t.Errorf("transaction = %+v", tx)
	}

	if code, _ := get(t, app, "/transactions/PO404"); code != http.StatusNotFound {
		t.Errorf("missing = %d, want 404", code)
	}
}

func TestAdminListEvents(t *testing.T) {
	t.Parallel()

	if code, _ := get(t, newAdminApp(repository.NewMemoryTransactionRepository(), nil, nil), "/events"); code != http.StatusNotFound {
		t.Errorf("disabled log = %d, want 404", code)
	}

	events := repository.NewMemoryEventRepository()
	po1, po2 := "PO1", "PO2"
	for _, ev := range []*model.CallbackEvent{
		{CallbackEventProviderOrderID: &po1, CallbackEventSource: model.CallbackEventSourceCallback, CallbackEventOutcome: model.CallbackEventOutcomeTransitioned},
		{CallbackEventProviderOrderID: &po2, CallbackEventSource: model.CallbackEventSourceSweep, CallbackEventOutcome: model.CallbackEventOutcomeTransitioned},
	} {
		if err := events.Record(context.Background(), ev); err != nil {
			t.Fatal(err)
		}
	}
	app := newAdminApp(repository.NewMemoryTransactionRepository(), events, nil)

	code, resp := get(t, app, "/events?order_id=PO2")
	if code != http.StatusOK || resp.Pagination.Total != 1 {
		t.Fatalf("events(PO2) = %d, pagination %+v", code, resp.Pagination)
	}
	var rows []dto.CallbackEventResponse
	if err := json.Unmarshal(resp.Data, &rows); err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Source != "sweep" {
		t.Errorf("rows = %+v", rows)
	}
}

func TestAdminStats(t *testing.T) {
	t.Parallel()

	store := repository.NewMemoryTransactionRepository()
	seedTransactions(t, store, "user-7", "PO1", "PO2", "PO3")
	if _, err := store.ApplyTransition(context.Background(), "PO1", model.TransactionStatusCompleted, nil); err != nil {
		t.Fatal(err)
	}
	app := newAdminApp(store, nil, nil)

	code, resp := get(t, app, "/stats")
	if code != http.StatusOK {
		t.Fatalf("status = %d (%s)", code, resp.Message)
	}
	var stats dto.PaymentStatsResponse
	if err := json.Unmarshal(resp.Data, &stats); err != nil {
		t.Fatal(err)
	}
	if stats.TotalCount != 3 || len(stats.Statuses) != 2 {
		t.Fatalf("stats = %+v", stats)
	}
	// sorted by status name
	if s := stats.Statuses[0]; s.Status != "completed" || s.Count != 1 || s.Total != "100.00" {
		t.Errorf("completed = %+v", s)
	}
	if s := stats.Statuses[1]; s.Status != "pending" || s.Count != 2 || s.Total != decimal.RequireFromString("200").StringFixed(2) {
		t.Errorf("pending = %+v", s)
	}

	code, resp = get(t, app, "/stats?since=2999-01-01")
	if code != http.StatusOK {
		t.Fatalf("since = %d", code)
	}
	if err := json.Unmarshal(resp.Data, &stats); err != nil {
		t.Fatal(err)
	}
	if stats.TotalCount != 0 || len(stats.Statuses) != 0 {
		t.Errorf("future since = %+v", stats)
	}

	if code, _ := get(t, app, "/stats?since=yesterday"); code != http.StatusBadRequest {
		t.Errorf("bad since = %d, want 400", code)
	}
}

func TestAdminTriggerSweep(t *testing.T) {
	t.Parallel()

	sweep := func(s SweepTrigger) (int, apiResponse) {
		app := newAdminApp(repository.NewMemoryTransactionRepository(), nil, s)
		return call(t, app, httptest.NewRequest(http.MethodPost, "/sweep", nil))
	}

	if code, _ := sweep(nil); code != http.StatusServiceUnavailable {
		t.Errorf("no sweeper = %d, want 503", code)
	}

	ok := &fakeSweeper{report: service.SweepReport{Scanned: 4, Transitioned: 1, Expired: 2, Unchanged: 1}}
	code, resp := sweep(ok)
	if code != http.StatusOK || ok.calls != 1 {
		t.Fatalf("sweep = %d, calls %d", code, ok.calls)
	}
	if !ok.hadDeadline {
		t.Error("sweep ran without a deadline")
	}
	var rep service.SweepReport
	if err := json.Unmarshal(resp.Data, &rep); err != nil {
		t.Fatal(err)
	}
	if rep.Scanned != 4 || rep.Expired != 2 {
		t.Errorf("report = %+v", rep)
	}

	failing := &fakeSweeper{err: errors.New("list stale: connection reset")}
	code, resp = sweep(failing)
	if code != http.StatusInternalServerError || resp.Message != "Sweep failed: list stale: connection reset" {
		t.Errorf("failing sweep = %d %q", code, resp.Message)
	}
}
