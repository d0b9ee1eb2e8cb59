package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"coursepay_backend/internals/features/payment/zoyktech/model"
)

// newSQLiteDB opens a private in-memory database with the zoyktech tables.
// One connection keeps sqlite from reporting "database table is locked".
func newSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormLogger.Default.LogMode(gormLogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(&model.Transaction{}, &model.CallbackEvent{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type storeFactory struct {
	name string
	new  func(t *testing.T) TransactionStore
}

func storeFactories() []storeFactory {
	return []storeFactory{
		{name: "memory", new: func(t *testing.T) TransactionStore { return NewMemoryTransactionRepository() }},
		{name: "gorm-sqlite", new: func(t *testing.T) TransactionStore { return NewGormTransactionRepository(newSQLiteDB(t)) }},
	}
}

func newTx(orderID string) *model.Transaction {
	email := "payer@example.com"
	return &model.Transaction{
		TransactionLocalOrderID:    "1001",
		TransactionCourseID:        "course-42",
		TransactionUserID:          "user-7",
		TransactionProviderOrderID: orderID,
		TransactionProviderID:      model.ProviderAirtelMoney,
		TransactionAmount:          decimal.RequireFromString("100.00"),
		TransactionCurrency:        "ZMW",
		TransactionPayerContact:    "+260971234567",
		TransactionPayerEmail:      &email,
		TransactionStatus:          model.TransactionStatusPending,
		TransactionRawRequest:      datatypes.JSON(`{"order_id":"` + orderID + `"}`),
	}
}

func strPtr(s string) *string { return &s }

func TestStore_CreateAndFind(t *testing.T) {
	t.Parallel()

	for _, f := range storeFactories() {
		f := f
		t.Run(f.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			store := f.new(t)

			if err := store.Create(ctx, newTx("PO1")); err != nil {
				t.Fatalf("Create: %v", err)
			}
			err := store.Create(ctx, newTx("PO1"))
			if !errors.Is(err, ErrDuplicateOrderID) {
				t.Fatalf("duplicate Create err = %v, want ErrDuplicateOrderID", err)
			}

			got, err := store.FindByProviderOrderID(ctx, "PO1")
			if err != nil {
				t.Fatalf("Find: %v", err)
			}
			if got.TransactionStatus != model.TransactionStatusPending {
				t.Errorf("status = %q, want pending", got.TransactionStatus)
			}
			if !got.TransactionAmount.Equal(decimal.NewFromInt(100)) {
				t.Errorf("amount = %s, want 100", got.TransactionAmount)
			}
			if got.TransactionProviderRef != nil {
				t.Errorf("provider ref = %v, want nil", *got.TransactionProviderRef)
			}

			if _, err := store.FindByProviderOrderID(ctx, "nope"); !errors.Is(err, ErrTransactionNotFound) {
				t.Errorf("Find unknown err = %v, want ErrTransactionNotFound", err)
			}
		})
	}
}

func TestStore_ApplyTransition(t *testing.T) {
	t.Parallel()

	for _, f := range storeFactories() {
		f := f
		t.Run(f.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			store := f.new(t)
			if err := store.Create(ctx, newTx("PO1")); err != nil {
				t.Fatalf("Create: %v", err)
			}

			// non-terminal → non-terminal
			res, err := store.ApplyTransition(ctx, "PO1", model.TransactionStatusProcessing, strPtr("IGNORED"))
			if err != nil {
				t.Fatalf("to processing: %v", err)
			}
			if res.Outcome != OutcomeTransitioned || res.From != model.TransactionStatusPending || res.To != model.TransactionStatusProcessing {
				t.Fatalf("to processing = %+v", res)
			}
			if res.Transaction.TransactionProviderRef != nil {
				t.Fatalf("provider ref set on non-completed transition")
			}

			// → completed with reference
			res, err = store.ApplyTransition(ctx, "PO1", model.TransactionStatusCompleted, strPtr("TXN9"))
			if err != nil {
				t.Fatalf("to completed: %v", err)
			}
			if res.Outcome != OutcomeTransitioned || res.From != model.TransactionStatusProcessing {
				t.Fatalf("to completed = %+v", res)
			}
			if ref := res.Transaction.TransactionProviderRef; ref == nil || *ref != "TXN9" {
				t.Fatalf("provider ref = %v, want TXN9", ref)
			}

			// terminal is sticky
			for _, to := range []model.TransactionStatus{model.TransactionStatusFailed, model.TransactionStatusCompleted, model.TransactionStatusPending} {
				res, err = store.ApplyTransition(ctx, "PO1", to, strPtr("OTHER"))
				if err != nil {
					t.Fatalf("sticky %s: %v", to, err)
				}
				if res.Outcome != OutcomeAlreadyFinal || res.To != model.TransactionStatusCompleted {
					t.Fatalf("sticky %s = %+v", to, res)
				}
			}

			got, _ := store.FindByProviderOrderID(ctx, "PO1")
			if got.TransactionStatus != model.TransactionStatusCompleted || *got.TransactionProviderRef != "TXN9" {
				t.Fatalf("stored = %s / %v", got.TransactionStatus, *got.TransactionProviderRef)
			}

			if _, err := store.ApplyTransition(ctx, "missing", model.TransactionStatusFailed, nil); !errors.Is(err, ErrTransactionNotFound) {
				t.Errorf("unknown order err = %v", err)
			}
			if _, err := store.ApplyTransition(ctx, "PO1", model.TransactionStatus("weird"), nil); !errors.Is(err, ErrInvalidStatus) {
				t.Errorf("invalid status err = %v", err)
			}
		})
	}
}

func TestStore_ConcurrentTerminalTransitions(t *testing.T) {
	t.Parallel()

	for _, f := range storeFactories() {
		f := f
		t.Run(f.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			store := f.new(t)
			if err := store.Create(ctx, newTx("PO1")); err != nil {
				t.Fatalf("Create: %v", err)
			}

			const workers = 16
			var (
				wg           sync.WaitGroup
				mu           sync.Mutex
				transitioned int
			)
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					to := model.TransactionStatusCompleted
					if i%2 == 1 {
						to = model.TransactionStatusFailed
					}
					res, err := store.ApplyTransition(ctx, "PO1", to, strPtr(fmt.Sprintf("TXN%d", i)))
					if err != nil {
						t.Errorf("worker %d: %v", i, err)
						return
					}
					if res.Outcome == OutcomeTransitioned {
						mu.Lock()
						transitioned++
						mu.Unlock()
					}
				}(i)
			}
			wg.Wait()

			if transitioned != 1 {
				t.Fatalf("transitioned %d times, want exactly 1", transitioned)
			}
			got, _ := store.FindByProviderOrderID(ctx, "PO1")
			if !got.IsTerminal() {
				t.Fatalf("final status %q is not terminal", got.TransactionStatus)
			}
		})
	}
}

func TestStore_AttachRawResponseIsWriteOnce(t *testing.T) {
	t.Parallel()

	for _, f := range storeFactories() {
		f := f
		t.Run(f.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			store := f.new(t)
			if err := store.Create(ctx, newTx("PO1")); err != nil {
				t.Fatalf("Create: %v", err)
			}

			if err := store.AttachRawResponse(ctx, "PO1", datatypes.JSON(`{"first":true}`)); err != nil {
				t.Fatalf("attach: %v", err)
			}
			if err := store.AttachRawResponse(ctx, "PO1", datatypes.JSON(`{"second":true}`)); err != nil {
				t.Fatalf("attach again: %v", err)
			}
			got, _ := store.FindByProviderOrderID(ctx, "PO1")
			if !strings.Contains(string(got.TransactionRawResponse), "first") {
				t.Errorf("raw response = %s, want the first write", got.TransactionRawResponse)
			}
			if err := store.AttachRawResponse(ctx, "missing", datatypes.JSON(`{}`)); !errors.Is(err, ErrTransactionNotFound) {
				t.Errorf("attach unknown err = %v", err)
			}
		})
	}
}

func TestStore_ListStaleAndList(t *testing.T) {
	t.Parallel()

	for _, f := range storeFactories() {
		f := f
		t.Run(f.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			store := f.new(t)

			for _, id := range []string{"A", "B", "C"} {
				tx := newTx(id)
				if id == "C" {
					tx.TransactionCourseID = "course-other"
				}
				if err := store.Create(ctx, tx); err != nil {
					t.Fatalf("Create %s: %v", id, err)
				}
			}
			if _, err := store.ApplyTransition(ctx, "B", model.TransactionStatusFailed, nil); err != nil {
				t.Fatalf("fail B: %v", err)
			}

			stale, err := store.ListStale(ctx, time.Now().Add(time.Minute), 10)
			if err != nil {
				t.Fatalf("ListStale: %v", err)
			}
			if len(stale) != 2 {
				t.Fatalf("stale = %d rows, want 2 (A, C)", len(stale))
			}
			for _, s := range stale {
				if s.IsTerminal() {
					t.Errorf("terminal %s listed as stale", s.TransactionProviderOrderID)
				}
			}

			none, err := store.ListStale(ctx, time.Now().Add(-time.Hour), 10)
			if err != nil || len(none) != 0 {
				t.Fatalf("ListStale(past) = %d rows, err %v", len(none), err)
			}

			failed := model.TransactionStatusFailed
			rows, total, err := store.List(ctx, ListFilter{Status: &failed, Limit: 10})
			if err != nil || total != 1 || len(rows) != 1 || rows[0].TransactionProviderOrderID != "B" {
				t.Fatalf("List(failed) = %v rows, total %d, err %v", len(rows), total, err)
			}
			rows, total, err = store.List(ctx, ListFilter{CourseID: "course-42", Limit: 1})
			if err != nil || total != 2 || len(rows) != 1 {
				t.Fatalf("List(course) = %d rows, total %d, err %v", len(rows), total, err)
			}
			_, total, err = store.List(ctx, ListFilter{UserID: "someone-else", Limit: 10})
			if err != nil || total != 0 {
				t.Fatalf("List(other user) total %d, err %v", total, err)
			}
		})
	}
}

func TestStore_Stats(t *testing.T) {
	t.Parallel()

	for _, f := range storeFactories() {
		f := f
		t.Run(f.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			store := f.new(t)

			amounts := map[string]string{"A": "100.00", "B": "250.50", "C": "40.25", "D": "9.75"}
			for _, id := range []string{"A", "B", "C", "D"} {
				tx := newTx(id)
				tx.TransactionAmount = decimal.RequireFromString(amounts[id])
				if id == "D" {
					tx.TransactionCourseID = "course-other"
				}
				if err := store.Create(ctx, tx); err != nil {
					t.Fatalf("Create %s: %v", id, err)
				}
			}
			for _, id := range []string{"A", "B"} {
				if _, err := store.ApplyTransition(ctx, id, model.TransactionStatusCompleted, nil); err != nil {
					t.Fatalf("complete %s: %v", id, err)
				}
			}

			stats, err := store.Stats(ctx, StatsFilter{})
			if err != nil {
				t.Fatalf("Stats: %v", err)
			}
			want := map[model.TransactionStatus]struct {
				count int64
				total string
			}{
				model.TransactionStatusCompleted: {2, "350.5"},
				model.TransactionStatusPending:   {2, "50"},
			}
			if len(stats) != len(want) {
				t.Fatalf("stats = %+v, want %d rows", stats, len(want))
			}
			for _, st := range stats {
				w, ok := want[st.Status]
				if !ok {
					t.Fatalf("unexpected status %q", st.Status)
				}
				if st.Currency != "ZMW" || st.Count != w.count || !st.Total.Equal(decimal.RequireFromString(w.total)) {
					t.Errorf("%s = %d %s %s, want %d %s", st.Status, st.Count, st.Total, st.Currency, w.count, w.total)
				}
			}

			byCourse, err := store.Stats(ctx, StatsFilter{CourseID: "course-other"})
			if err != nil {
				t.Fatalf("Stats(course): %v", err)
			}
			if len(byCourse) != 1 || byCourse[0].Count != 1 || byCourse[0].Status != model.TransactionStatusPending {
				t.Fatalf("Stats(course) = %+v", byCourse)
			}

			future := time.Now().Add(time.Hour)
			empty, err := store.Stats(ctx, StatsFilter{Since: &future})
			if err != nil || len(empty) != 0 {
				t.Fatalf("Stats(since future) = %+v, err %v", empty, err)
			}
		})
	}
}

func TestEventStores(t *testing.T) {
	t.Parallel()

	stores := []struct {
		name  string
		store EventStore
	}{
		{name: "memory", store: NewMemoryEventRepository()},
		{name: "gorm-sqlite", store: NewGormEventRepository(newSQLiteDB(t))},
	}
	for _, s := range stores {
		s := s
		t.Run(s.name, func(t *testing.T) {
			ctx := context.Background()
			for i, outcome := range []model.CallbackEventOutcome{model.CallbackEventOutcomeTransitioned, model.CallbackEventOutcomeAlreadyFinal, model.CallbackEventOutcomeRejected} {
				ev := &model.CallbackEvent{
					CallbackEventProviderOrderID: strPtr("PO1"),
					CallbackEventSource:          model.CallbackEventSourceCallback,
					CallbackEventPayload:         datatypes.JSON(`{"order_id":"PO1"}`),
					CallbackEventOutcome:         outcome,
					CallbackEventReceivedAt:      time.Now().Add(time.Duration(i) * time.Second),
				}
				if err := s.store.Record(ctx, ev); err != nil {
					t.Fatalf("Record: %v", err)
				}
			}

			rows, total, err := s.store.List(ctx, EventFilter{ProviderOrderID: "PO1", Limit: 10})
			if err != nil || total != 3 || len(rows) != 3 {
				t.Fatalf("List = %d rows, total %d, err %v", len(rows), total, err)
			}
			if rows[0].CallbackEventOutcome != model.CallbackEventOutcomeRejected {
				t.Errorf("newest first: got %q", rows[0].CallbackEventOutcome)
			}

			rejected := model.CallbackEventOutcomeRejected
			_, total, err = s.store.List(ctx, EventFilter{Outcome: &rejected})
			if err != nil || total != 1 {
				t.Fatalf("List(rejected) total %d, err %v", total, err)
			}
		})
	}
}
