package service

import (
	"bytes"
	"context"
	"text/template"

	"coursepay_backend/internals/features/payment/zoyktech/model"
)

// EnrollmentTrigger grants course access. Grant must be idempotent.
type EnrollmentTrigger interface {
	Grant(ctx context.Context, courseID, userID, providerOrderID string) (bool, error)
}

// NotificationDispatcher sends best-effort messages to payers.
type NotificationDispatcher interface {
	Send(recipient, subject, body string)
}

// EnrollmentFunc adapts a plain function to EnrollmentTrigger.
type EnrollmentFunc func(ctx context.Context, courseID, userID, providerOrderID string) (bool, error)

func (f EnrollmentFunc) Grant(ctx context.Context, courseID, userID, providerOrderID string) (bool, error) {
	return f(ctx, courseID, userID, providerOrderID)
}

type noopNotifier struct{}

func (noopNotifier) Send(string, string, string) {}

/* =======================================================================
   Payer messages
======================================================================= */

var (
	completedSubject = template.Must(template.New("completed_subject").Parse(
		`Course Enrollment Confirmed - {{.Course}}`))
	completedBody = template.Must(template.New("completed_body").Parse(`Dear {{.Name}},

Your payment has been successfully processed and you have been enrolled in the course: {{.Course}}

Payment Details:
- Amount: {{.Currency}} {{.Amount}}
- Payment Method: Mobile Money ({{.Network}})
- Order ID: {{.OrderID}}{{if .Reference}}
- Reference: {{.Reference}}{{end}}

You can now access your course content.

Thank you for your purchase!
`))

	notCompletedSubject = template.Must(template.New("not_completed_subject").Parse(
		`Payment {{.Status}} - {{.Course}}`))
	notCompletedBody = template.Must(template.New("not_completed_body").Parse(`Dear {{.Name}},

We could not complete your mobile money payment for: {{.Course}}

Status: {{.Message}}
Order ID: {{.OrderID}}

No enrollment was made. You can start a new payment at any time.
`))
)

type messageData struct {
	Name      string
	Course    string
	Currency  string
	Amount    string
	Network   string
	OrderID   string
	Reference string
	Status    string
	Message   string
}

func newMessageData(tx *model.Transaction) messageData {
	d := messageData{
		Name:     "Student",
		Course:   "your course",
		Currency: tx.TransactionCurrency,
		Amount:   tx.TransactionAmount.StringFixed(2),
		Network:  model.ProviderName(tx.TransactionProviderID),
		OrderID:  tx.TransactionProviderOrderID,
		Status:   string(tx.TransactionStatus),
		Message:  model.StatusMessage(tx.TransactionStatus),
	}
	if tx.TransactionPayerName != nil && *tx.TransactionPayerName != "" {
		d.Name = *tx.TransactionPayerName
	}
	if tx.TransactionCourseTitle != nil && *tx.TransactionCourseTitle != "" {
		d.Course = *tx.TransactionCourseTitle
	}
	if tx.TransactionProviderRef != nil {
		d.Reference = *tx.TransactionProviderRef
	}
	return d
}

func render(t *template.Template, d messageData) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, d); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// BuildPayerMessage renders the subject and body for tx's current status.
func BuildPayerMessage(tx *model.Transaction) (subject, body string, err error) {
	d := newMessageData(tx)
	subjectTpl, bodyTpl := notCompletedSubject, notCompletedBody
	if tx.TransactionStatus == model.TransactionStatusCompleted {
		subjectTpl, bodyTpl = completedSubject, completedBody
	}
	if subject, err = render(subjectTpl, d); err != nil {
		return "", "", err
	}
	if body, err = render(bodyTpl, d); err != nil {
		return "", "", err
	}
	return subject, body, nil
}
