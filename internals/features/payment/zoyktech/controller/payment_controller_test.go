package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"coursepay_backend/internals/features/payment/zoyktech/model"
	"coursepay_backend/internals/features/payment/zoyktech/repository"
	"coursepay_backend/internals/features/payment/zoyktech/service"
	helper "coursepay_backend/internals/helpers"
	"coursepay_backend/internals/middlewares/auth"
)

type apiResponse struct {
	Success    bool                `json:"success"`
	Message    string              `json:"message"`
	ErrorCode  string              `json:"error_code"`
	Errors     map[string][]string `json:"errors"`
	Data       json.RawMessage     `json:"data"`
	Pagination *helper.Pagination  `json:"pagination"`
}

func call(t *testing.T, app *fiber.App, req *http.Request) (int, apiResponse) {
	t.Helper()
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	var out apiResponse
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("decode %s: %v", b, err)
	}
	return resp.StatusCode, out
}

// asUser stands in for AuthJWT: the caller id comes from X-User.
func asUser(c *fiber.Ctx) error {
	if uid := c.Get("X-User"); uid != "" {
		c.Locals(auth.LocUserID, uid)
	}
	return c.Next()
}

type fakeInitiator struct {
	err  error
	last service.InitiateInput
}

func (f *fakeInitiator) Initiate(_ context.Context, in service.InitiateInput) (*model.Transaction, error) {
	f.last = in
	if f.err != nil {
		return nil, f.err
	}
	return &model.Transaction{
		TransactionLocalOrderID:    in.LocalOrderID,
		TransactionCourseID:        in.CourseID,
		TransactionUserID:          in.UserID,
		TransactionProviderOrderID: "PO-NEW",
		TransactionProviderID:      model.ProviderAirtelMoney,
		TransactionAmount:          in.Amount,
		TransactionCurrency:        "ZMW",
		TransactionPayerContact:    in.Phone,
		TransactionStatus:          model.TransactionStatusPending,
	}, nil
}

func seedTransactions(t *testing.T, store repository.TransactionStore, userID string, ids ...string) {
	t.Helper()
	for _, id := range ids {
		err := store.Create(context.Background(), &model.Transaction{
			TransactionLocalOrderID:    "1",
			TransactionCourseID:        "course-42",
			TransactionUserID:          userID,
			TransactionProviderOrderID: id,
			TransactionProviderID:      model.ProviderAirtelMoney,
			TransactionAmount:          decimal.RequireFromString("100"),
			TransactionPayerContact:    "+260971234567",
		})
		if err != nil {
			t.Fatal(err)
		}
	}
}

func newPaymentApp(ini PaymentInitiator, store repository.TransactionStore) *fiber.App {
	app := fiber.New()
	ctrl := NewPaymentController(ini, store)
	g := app.Group("/payments", asUser)
	g.Post("/initiate", ctrl.Initiate)
	g.Get("/", ctrl.ListMine)
	g.Get("/:provider_order_id/status", ctrl.GetMyPaymentStatus)
	return app
}

const validInitiateBody = `{"local_order_id":"1001","course_id":"course-42","phone":"0971234567","amount":"150.00"}`

func initiateRequest(user, body string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/payments/initiate", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	if user != "" {
		r.Header.Set("X-User", user)
	}
	return r
}

func TestInitiate_ErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		wantCode int
		wantMsg  string
	}{
		{"created", nil, http.StatusCreated, ""},
		{"invalid phone", service.ErrInvalidPhone, http.StatusBadRequest, service.ErrInvalidPhone.Error()},
		{"invalid amount", service.ErrInvalidAmount, http.StatusBadRequest, service.ErrInvalidAmount.Error()},
		{"unsupported provider", service.ErrUnsupportedProvider, http.StatusBadRequest, service.ErrUnsupportedProvider.Error()},
		{"gateway not configured", service.ErrGatewayNotConfigured, http.StatusServiceUnavailable, "Mobile money payments are not available"},
		{"provider rejected", fmt.Errorf("%w: timeout", service.ErrInitiationFailed), http.StatusBadGateway, "Payment could not be started, please try again"},
		{"duplicate order", repository.ErrDuplicateOrderID, http.StatusConflict, "Duplicate order"},
		{"foreign key", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23503"}), http.StatusBadRequest, "Referenced row not found (FK violation)."},
		{"unique violation", &pgconn.PgError{Code: "23505"}, http.StatusConflict, "Duplicate data (unique violation)."},
		{"store down", fmt.Errorf("dial tcp: connection refused"), http.StatusInternalServerError, "Failed to create payment"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			ini := &fakeInitiator{err: tc.err}
			app := newPaymentApp(ini, repository.NewMemoryTransactionRepository())

			code, resp := call(t, app, initiateRequest("user-7", validInitiateBody))
			if code != tc.wantCode {
				t.Fatalf("status = %d, want %d (%s)", code, tc.wantCode, resp.Message)
			}
			if tc.wantMsg != "" && resp.Message != tc.wantMsg {
				t.Errorf("message = %q, want %q", resp.Message, tc.wantMsg)
			}
			if ini.last.UserID != "user-7" || !ini.last.Amount.Equal(decimal.RequireFromString("150")) {
				t.Errorf("initiator input = %+v", ini.last)
			}
		})
	}
}

func TestInitiate_RejectsBeforeCallingInitiator(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		user      string
		body      string
		wantCode  int
		wantField string
	}{
		{"no user", "", validInitiateBody, http.StatusUnauthorized, ""},
		{"bad json", "user-7", `{"amount":`, http.StatusBadRequest, ""},
		{"missing phone", "user-7", `{"local_order_id":"1","course_id":"c","amount":"10"}`, http.StatusUnprocessableEntity, "phone"},
		{"non numeric amount", "user-7", `{"local_order_id":"1","course_id":"c","phone":"0971234567","amount":"ten"}`, http.StatusUnprocessableEntity, "amount"},
		{"unknown provider id", "user-7", `{"local_order_id":"1","course_id":"c","phone":"0971234567","amount":"10","provider_id":99}`, http.StatusUnprocessableEntity, "provider_id"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			ini := &fakeInitiator{}
			app := newPaymentApp(ini, repository.NewMemoryTransactionRepository())

			code, resp := call(t, app, initiateRequest(tc.user, tc.body))
			if code != tc.wantCode {
				t.Fatalf("status = %d, want %d (%s)", code, tc.wantCode, resp.Message)
			}
			if tc.wantField != "" {
				if resp.ErrorCode != "VALIDATION_ERROR" || len(resp.Errors[tc.wantField]) == 0 {
					t.Errorf("errors = %v, want an entry for %s", resp.Errors, tc.wantField)
				}
			}
			if ini.last.UserID != "" {
				t.Error("initiator was called")
			}
		})
	}
}

func TestGetMyPaymentStatus_Ownership(t *testing.T) {
	t.Parallel()

	store := repository.NewMemoryTransactionRepository()
	seedTransactions(t, store, "user-7", "PO1")
	app := newPaymentApp(&fakeInitiator{}, store)

	getStatus := func(user, order string) (int, apiResponse) {
		r := httptest.NewRequest(http.MethodGet, "/payments/"+order+"/status", nil)
		r.Header.Set("X-User", user)
		return call(t, app, r)
	}

	code, resp := getStatus("user-7", "PO1")
	if code != http.StatusOK {
		t.Fatalf("owner status = %d (%s)", code, resp.Message)
	}
	var st struct {
		OrderID string `json:"order_id"`
		Status  string `json:"status"`
		IsFinal bool   `json:"is_final"`
	}
	if err := json.Unmarshal(resp.Data, &st); err != nil {
		t.Fatal(err)
	}
	if st.OrderID != "PO1" || st.Status != "pending" || st.IsFinal {
		t.Errorf("status = %+v", st)
	}

	if code, resp := getStatus("user-8", "PO1"); code != http.StatusNotFound || resp.Message != "Transaction not found" {
		t.Errorf("other user = %d %q, want 404", code, resp.Message)
	}
	if code, _ := getStatus("user-7", "PO404"); code != http.StatusNotFound {
		t.Errorf("missing order = %d, want 404", code)
	}
}

func TestListMine(t *testing.T) {
	t.Parallel()

	store := repository.NewMemoryTransactionRepository()
	seedTransactions(t, store, "user-7", "PO1", "PO2", "PO3")
	seedTransactions(t, store, "user-8", "PO9")
	if _, err := store.ApplyTransition(context.Background(), "PO2", model.TransactionStatusCompleted, nil); err != nil {
		t.Fatal(err)
	}
	app := newPaymentApp(&fakeInitiator{}, store)

	list := func(user, query string) (int, apiResponse, []map[string]any) {
		r := httptest.NewRequest(http.MethodGet, "/payments/"+query, nil)
		if user != "" {
			r.Header.Set("X-User", user)
		}
		code, resp := call(t, app, r)
		var rows []map[string]any
		if code == http.StatusOK {
			if err := json.Unmarshal(resp.Data, &rows); err != nil {
				t.Fatal(err)
			}
		}
		return code, resp, rows
	}

	code, resp, rows := list("user-7", "?per_page=2")
	if code != http.StatusOK {
		t.Fatalf("status = %d (%s)", code, resp.Message)
	}
	if len(rows) != 2 || resp.Pagination == nil || resp.Pagination.Total != 3 || !resp.Pagination.HasNext {
		t.Fatalf("page 1 = %d rows, pagination %+v", len(rows), resp.Pagination)
	}
	for _, row := range rows {
		if row["provider_order_id"] == "PO9" {
			t.Error("another user's payment listed")
		}
	}

	_, resp, rows = list("user-7", "?status=completed")
	if len(rows) != 1 || rows[0]["provider_order_id"] != "PO2" || resp.Pagination.Total != 1 {
		t.Errorf("completed = %v", rows)
	}

	if code, _, _ := list("user-7", "?status=bogus"); code != http.StatusBadRequest {
		t.Errorf("invalid status = %d, want 400", code)
	}
	if code, _, _ := list("", ""); code != http.StatusUnauthorized {
		t.Errorf("anonymous = %d, want 401", code)
	}
}
