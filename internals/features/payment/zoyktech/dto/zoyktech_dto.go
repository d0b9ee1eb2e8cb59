package dto

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"coursepay_backend/internals/features/payment/zoyktech/model"
	"coursepay_backend/internals/features/payment/zoyktech/repository"
	"coursepay_backend/internals/features/payment/zoyktech/service"
)

/* ===================== Callback ===================== */

type CallbackResponse struct {
	OrderID           string `json:"order_id"`
	Status            string `json:"status"`
	Outcome           string `json:"outcome"`
	EnrollmentGranted bool   `json:"enrollment_granted"`
}

func OutcomeName(o repository.Outcome) string {
	switch o {
	case repository.OutcomeTransitioned:
		return string(model.CallbackEventOutcomeTransitioned)
	case repository.OutcomeAlreadyFinal:
		return string(model.CallbackEventOutcomeAlreadyFinal)
	default:
		return "unknown"
	}
}

func FromCallbackResult(r *service.CallbackResult) CallbackResponse {
	return CallbackResponse{
		OrderID:           r.ProviderOrderID,
		Status:            string(r.Status),
		Outcome:           OutcomeName(r.Outcome),
		EnrollmentGranted: r.EnrollmentGranted,
	}
}

/* ===================== Initiate ===================== */

type InitiatePaymentRequest struct {
	LocalOrderID string  `json:"local_order_id" validate:"required,max=64"`
	CourseID     string  `json:"course_id" validate:"required,max=64"`
	Phone        string  `json:"phone" validate:"required,min=9,max=20"`
	Amount       string  `json:"amount" validate:"required,numeric"`
	Currency     string  `json:"currency" validate:"omitempty,len=3,alpha"`
	ProviderID   int     `json:"provider_id" validate:"omitempty,oneof=14 237 289"`
	Email        *string `json:"email" validate:"omitempty,email"`
	Name         *string `json:"name" validate:"omitempty,max=120"`
	CourseTitle  *string `json:"course_title" validate:"omitempty,max=200"`
}

// Normalize trims string fields in place.
func (r *InitiatePaymentRequest) Normalize() {
	r.LocalOrderID = strings.TrimSpace(r.LocalOrderID)
	r.CourseID = strings.TrimSpace(r.CourseID)
	r.Phone = strings.TrimSpace(r.Phone)
	r.Amount = strings.TrimSpace(r.Amount)
	r.Currency = strings.ToUpper(strings.TrimSpace(r.Currency))
}

// Validate returns validator errors keyed by json field name.
func (r *InitiatePaymentRequest) Validate(v *validator.Validate) map[string][]string {
	err := v.Struct(r)
	if err == nil {
		return nil
	}
	out := map[string][]string{}
	ve, ok := err.(validator.ValidationErrors)
	if !ok {
		out["_"] = []string{err.Error()}
		return out
	}
	for _, fe := range ve {
		out[jsonName(fe.Field())] = append(out[jsonName(fe.Field())], fe.Tag())
	}
	return out
}

func (r *InitiatePaymentRequest) ToInput(userID string) (service.InitiateInput, error) {
	amount, err := decimal.NewFromString(r.Amount)
	if err != nil {
		return service.InitiateInput{}, err
	}
	return service.InitiateInput{
		LocalOrderID: r.LocalOrderID,
		CourseID:     r.CourseID,
		UserID:       userID,
		Phone:        r.Phone,
		ProviderID:   r.ProviderID,
		Amount:       amount,
		Currency:     r.Currency,
		PayerEmail:   deref(r.Email),
		PayerName:    deref(r.Name),
		CourseTitle:  deref(r.CourseTitle),
	}, nil
}

var fieldNames = map[string]string{
	"LocalOrderID": "local_order_id",
	"CourseID":     "course_id",
	"Phone":        "phone",
	"Amount":       "amount",
	"Currency":     "currency",
	"ProviderID":   "provider_id",
	"Email":        "email",
	"Name":         "name",
	"CourseTitle":  "course_title",
}

func jsonName(field string) string {
	if n, ok := fieldNames[field]; ok {
		return n
	}
	return field
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}

/* ===================== Transaction ===================== */

type TransactionResponse struct {
	TransactionID   uuid.UUID       `json:"transaction_id"`
	LocalOrderID    string          `json:"local_order_id"`
	CourseID        string          `json:"course_id"`
	UserID          string          `json:"user_id"`
	ProviderOrderID string          `json:"provider_order_id"`
	ProviderRef     *string         `json:"provider_transaction_id,omitempty"`
	ProviderID      int             `json:"provider_id"`
	ProviderName    string          `json:"provider_name"`
	Amount          string          `json:"amount"`
	Currency        string          `json:"currency"`
	PayerContact    string          `json:"payer_contact"`
	PayerEmail      *string         `json:"payer_email,omitempty"`
	CourseTitle     *string         `json:"course_title,omitempty"`
	Status          string          `json:"status"`
	StatusMessage   string          `json:"status_message"`
	IsFinal         bool            `json:"is_final"`
	RawRequest      json.RawMessage `json:"raw_request,omitempty"`
	RawResponse     json.RawMessage `json:"raw_response,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// FromTransactionModel maps a row; raw payloads only when withRaw (admin views).
func FromTransactionModel(m *model.Transaction, withRaw bool) TransactionResponse {
	out := TransactionResponse{
		TransactionID:   m.TransactionID,
		LocalOrderID:    m.TransactionLocalOrderID,
		CourseID:        m.TransactionCourseID,
		UserID:          m.TransactionUserID,
		ProviderOrderID: m.TransactionProviderOrderID,
		ProviderRef:     m.TransactionProviderRef,
		ProviderID:      m.TransactionProviderID,
		ProviderName:    model.ProviderName(m.TransactionProviderID),
		Amount:          m.TransactionAmount.StringFixed(2),
		Currency:        m.TransactionCurrency,
		PayerContact:    m.TransactionPayerContact,
		PayerEmail:      m.TransactionPayerEmail,
		CourseTitle:     m.TransactionCourseTitle,
		Status:          string(m.TransactionStatus),
		StatusMessage:   model.StatusMessage(m.TransactionStatus),
		IsFinal:         m.IsTerminal(),
		CreatedAt:       m.TransactionCreatedAt,
		UpdatedAt:       m.TransactionUpdatedAt,
	}
	if withRaw {
		if len(m.TransactionRawRequest) > 0 {
			out.RawRequest = json.RawMessage(m.TransactionRawRequest)
		}
		if len(m.TransactionRawResponse) > 0 {
			out.RawResponse = json.RawMessage(m.TransactionRawResponse)
		}
	}
	return out
}

func FromTransactionModels(rows []model.Transaction) []TransactionResponse {
	out := make([]TransactionResponse, 0, len(rows))
	for i := range rows {
		out = append(out, FromTransactionModel(&rows[i], false))
	}
	return out
}

// PaymentStatusResponse is the payer-facing polling view.
type PaymentStatusResponse struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
	IsFinal bool   `json:"is_final"`
}

func FromTransactionStatus(m *model.Transaction) PaymentStatusResponse {
	return PaymentStatusResponse{
		OrderID: m.TransactionProviderOrderID,
		Status:  string(m.TransactionStatus),
		Message: model.StatusMessage(m.TransactionStatus),
		IsFinal: m.IsTerminal(),
	}
}

/* ===================== Stats ===================== */

type StatusStatResponse struct {
	Status   string `json:"status"`
	Currency string `json:"currency"`
	Count    int64  `json:"count"`
	Total    string `json:"total"`
}

type PaymentStatsResponse struct {
	Statuses   []StatusStatResponse `json:"statuses"`
	TotalCount int64                `json:"total_count"`
}

func FromStatusStats(stats []repository.StatusStat) PaymentStatsResponse {
	out := PaymentStatsResponse{Statuses: make([]StatusStatResponse, 0, len(stats))}
	for _, st := range stats {
		out.Statuses = append(out.Statuses, StatusStatResponse{
			Status:   string(st.Status),
			Currency: st.Currency,
			Count:    st.Count,
			Total:    st.Total.StringFixed(2),
		})
		out.TotalCount += st.Count
	}
	return out
}

/* ===================== Callback events ===================== */

type CallbackEventResponse struct {
	ID               uuid.UUID       `json:"id"`
	ProviderOrderID  *string         `json:"provider_order_id,omitempty"`
	Source           string          `json:"source"`
	Headers          json.RawMessage `json:"headers,omitempty"`
	Payload          json.RawMessage `json:"payload,omitempty"`
	Signature        *string         `json:"signature,omitempty"`
	NormalizedStatus *string         `json:"normalized_status,omitempty"`
	Outcome          string          `json:"outcome"`
	Error            *string         `json:"error,omitempty"`
	ReceivedAt       time.Time       `json:"received_at"`
	ProcessedAt      *time.Time      `json:"processed_at,omitempty"`
}

func FromCallbackEventModels(rows []model.CallbackEvent) []CallbackEventResponse {
	out := make([]CallbackEventResponse, 0, len(rows))
	for _, ev := range rows {
		r := CallbackEventResponse{
			ID:              ev.CallbackEventID,
			ProviderOrderID: ev.CallbackEventProviderOrderID,
			Source:          string(ev.CallbackEventSource),
			Signature:       ev.CallbackEventSignature,
			Outcome:         string(ev.CallbackEventOutcome),
			Error:           ev.CallbackEventError,
			ReceivedAt:      ev.CallbackEventReceivedAt,
			ProcessedAt:     ev.CallbackEventProcessedAt,
		}
		if len(ev.CallbackEventHeaders) > 0 {
			r.Headers = json.RawMessage(ev.CallbackEventHeaders)
		}
		if len(ev.CallbackEventPayload) > 0 {
			r.Payload = json.RawMessage(ev.CallbackEventPayload)
		}
		if ev.CallbackEventNormalizedStatus != nil {
			s := string(*ev.CallbackEventNormalizedStatus)
			r.NormalizedStatus = &s
		}
		out = append(out, r)
	}
	return out
}
