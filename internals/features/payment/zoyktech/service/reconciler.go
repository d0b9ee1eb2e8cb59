package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/datatypes"

	"coursepay_backend/internals/features/payment/zoyktech/model"
	"coursepay_backend/internals/features/payment/zoyktech/repository"
)

var (
	ErrBadRequest   = errors.New("bad callback request")
	ErrUnauthorized = errors.New("invalid callback signature")
	ErrNotFound     = errors.New("unknown order")
)

const grantTimeout = 10 * time.Second

// transactionIDKeys are checked in order for the provider reference.
var transactionIDKeys = []string{"transaction_id", "txn_id", "reference"}

type CallbackRequest struct {
	Payload map[string]any
	// Signed is Payload as received, key order intact. Nil falls back to
	// sorted keys.
	Signed  *OrderedObject
	Headers map[string]string
	Source  model.CallbackEventSource
}

type CallbackResult struct {
	ProviderOrderID   string
	Normalized        model.TransactionStatus
	Status            model.TransactionStatus // stored status after the call
	Outcome           repository.Outcome
	EnrollmentGranted bool
	Transaction       *model.Transaction
}

type ReconcilerDeps struct {
	Store            repository.TransactionStore
	Events           repository.EventStore // optional
	Normalizer       StatusNormalizer
	Secret           string
	RequireSignature bool
	Enrollment       EnrollmentTrigger
	Notifier         NotificationDispatcher // optional
}

type Reconciler struct {
	store            repository.TransactionStore
	events           repository.EventStore
	normalizer       StatusNormalizer
	verifier         *SignatureVerifier
	requireSignature bool
	enrollment       EnrollmentTrigger
	notifier         NotificationDispatcher
	now              func() time.Time
}

func NewReconciler(d ReconcilerDeps) *Reconciler {
	r := &Reconciler{
		store:            d.Store,
		events:           d.Events,
		normalizer:       d.Normalizer,
		verifier:         NewSignatureVerifier(d.Secret),
		requireSignature: d.RequireSignature,
		enrollment:       d.Enrollment,
		notifier:         d.Notifier,
		now:              time.Now,
	}
	if r.notifier == nil {
		r.notifier = noopNotifier{}
	}
	return r
}

// HandleCallback validates, authenticates and applies one provider callback.
// Errors wrap ErrBadRequest, ErrUnauthorized or ErrNotFound; anything else is
// an infrastructure failure.
func (r *Reconciler) HandleCallback(ctx context.Context, req CallbackRequest) (*CallbackResult, error) {
	if req.Source == "" {
		req.Source = model.CallbackEventSourceCallback
	}
	ev := r.newEvent(req)

	if len(req.Payload) == 0 {
		return nil, r.reject(ctx, ev, fmt.Errorf("%w: empty payload", ErrBadRequest))
	}
	orderID := stringField(req.Payload, "order_id")
	if orderID == "" {
		return nil, r.reject(ctx, ev, fmt.Errorf("%w: missing order_id", ErrBadRequest))
	}
	ev.CallbackEventProviderOrderID = &orderID

	if HasSignature(req.Payload) {
		signed := req.Signed
		if signed == nil {
			signed = OrderedFromMap(req.Payload)
		}
		if !r.verifier.VerifyObject(signed) {
			log.Printf("[CALLBACK] ❌ invalid signature order_id=%s", orderID)
			return nil, r.reject(ctx, ev, fmt.Errorf("%w: order_id=%s", ErrUnauthorized, orderID))
		}
	} else if r.requireSignature {
		log.Printf("[CALLBACK] ❌ unsigned callback rejected order_id=%s", orderID)
		return nil, r.reject(ctx, ev, fmt.Errorf("%w: signature required, order_id=%s", ErrUnauthorized, orderID))
	} else {
		log.Printf("[CALLBACK] ⚠️ unsigned callback accepted order_id=%s", orderID)
	}

	return r.apply(ctx, ev, orderID, req.Payload)
}

// ApplyProviderStatus feeds a provider status answer for providerOrderID
// through the same transition path as a callback, without signature checks.
func (r *Reconciler) ApplyProviderStatus(ctx context.Context, providerOrderID string, payload map[string]any) (*CallbackResult, error) {
	ev := r.newEvent(CallbackRequest{Payload: payload, Source: model.CallbackEventSourceSweep})
	ev.CallbackEventProviderOrderID = &providerOrderID
	return r.apply(ctx, ev, providerOrderID, payload)
}

// ExpireTransaction moves a stuck non-terminal transaction to expired.
func (r *Reconciler) ExpireTransaction(ctx context.Context, providerOrderID, reason string) (*CallbackResult, error) {
	payload := map[string]any{"order_id": providerOrderID, "status": 5, "reason": reason}
	return r.ApplyProviderStatus(ctx, providerOrderID, payload)
}

func (r *Reconciler) apply(ctx context.Context, ev *model.CallbackEvent, orderID string, payload map[string]any) (*CallbackResult, error) {
	if _, err := r.store.FindByProviderOrderID(ctx, orderID); err != nil {
		if errors.Is(err, repository.ErrTransactionNotFound) {
			log.Printf("[CALLBACK] transaction not found order_id=%s", orderID)
			return nil, r.reject(ctx, ev, fmt.Errorf("%w: %s", ErrNotFound, orderID))
		}
		return nil, r.fail(ctx, ev, err)
	}

	normalized := r.normalizer.Normalize(payload)
	ev.CallbackEventNormalizedStatus = &normalized
	providerRef := extractTransactionID(payload)

	res, err := r.store.ApplyTransition(ctx, orderID, normalized, providerRef)
	if err != nil {
		if errors.Is(err, repository.ErrTransactionNotFound) {
			return nil, r.reject(ctx, ev, fmt.Errorf("%w: %s", ErrNotFound, orderID))
		}
		return nil, r.fail(ctx, ev, err)
	}

	out := &CallbackResult{
		ProviderOrderID: orderID,
		Normalized:      normalized,
		Status:          res.To,
		Outcome:         res.Outcome,
		Transaction:     res.Transaction,
	}

	switch res.Outcome {
	case repository.OutcomeAlreadyFinal:
		log.Printf("[CALLBACK] order_id=%s already final (%s), incoming %s ignored", orderID, res.To, normalized)
		ev.CallbackEventOutcome = model.CallbackEventOutcomeAlreadyFinal
	case repository.OutcomeTransitioned:
		log.Printf("[CALLBACK] order_id=%s %s → %s", orderID, res.From, res.To)
		ev.CallbackEventOutcome = model.CallbackEventOutcomeTransitioned
		out.EnrollmentGranted = r.runEffects(ctx, res)
	}

	r.record(ctx, ev)
	return out, nil
}

// runEffects fires enrollment + notification for a transition into a
// terminal status. Failures are logged and never surface to the caller.
func (r *Reconciler) runEffects(ctx context.Context, res repository.TransitionResult) bool {
	tx := res.Transaction
	if tx == nil || !res.To.IsTerminal() {
		return false
	}

	granted := false
	if res.To == model.TransactionStatusCompleted && r.enrollment != nil {
		// completed rows are never revisited; the grant outlives the request
		gctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), grantTimeout)
		defer cancel()
		ok, err := r.enrollment.Grant(gctx, tx.TransactionCourseID, tx.TransactionUserID, tx.TransactionProviderOrderID)
		switch {
		case err != nil:
			log.Printf("[CALLBACK][EFFECT] ❌ enrollment failed transaction=%s course=%s user=%s order_id=%s: %v",
				tx.TransactionID, tx.TransactionCourseID, tx.TransactionUserID, tx.TransactionProviderOrderID, err)
		case !ok:
			log.Printf("[CALLBACK][EFFECT] ⚠️ enrollment not granted transaction=%s course=%s user=%s",
				tx.TransactionID, tx.TransactionCourseID, tx.TransactionUserID)
		default:
			granted = true
			log.Printf("[CALLBACK][EFFECT] ✅ enrolled user=%s course=%s", tx.TransactionUserID, tx.TransactionCourseID)
		}
	}

	r.notify(tx)
	return granted
}

func (r *Reconciler) notify(tx *model.Transaction) {
	if tx.TransactionPayerEmail == nil || strings.TrimSpace(*tx.TransactionPayerEmail) == "" {
		log.Printf("[CALLBACK][EFFECT] no payer email, skipping notification order_id=%s", tx.TransactionProviderOrderID)
		return
	}
	subject, body, err := BuildPayerMessage(tx)
	if err != nil {
		log.Printf("[CALLBACK][EFFECT] render notification order_id=%s: %v", tx.TransactionProviderOrderID, err)
		return
	}
	r.notifier.Send(*tx.TransactionPayerEmail, subject, body)
}

/* =======================================================================
   Event log helpers
======================================================================= */

func (r *Reconciler) newEvent(req CallbackRequest) *model.CallbackEvent {
	ev := &model.CallbackEvent{
		CallbackEventSource:     req.Source,
		CallbackEventReceivedAt: r.now(),
	}
	if b, err := json.Marshal(req.Payload); err == nil {
		ev.CallbackEventPayload = datatypes.JSON(b)
	}
	if len(req.Headers) > 0 {
		if b, err := json.Marshal(req.Headers); err == nil {
			ev.CallbackEventHeaders = datatypes.JSON(b)
		}
	}
	if sig := stringField(req.Payload, SignatureField); sig != "" {
		ev.CallbackEventSignature = &sig
	}
	return ev
}

func (r *Reconciler) reject(ctx context.Context, ev *model.CallbackEvent, err error) error {
	ev.CallbackEventOutcome = model.CallbackEventOutcomeRejected
	msg := err.Error()
	ev.CallbackEventError = &msg
	r.record(ctx, ev)
	return err
}

func (r *Reconciler) fail(ctx context.Context, ev *model.CallbackEvent, err error) error {
	ev.CallbackEventOutcome = model.CallbackEventOutcomeError
	msg := err.Error()
	ev.CallbackEventError = &msg
	r.record(ctx, ev)
	return err
}

func (r *Reconciler) record(ctx context.Context, ev *model.CallbackEvent) {
	if r.events == nil {
		return
	}
	now := r.now()
	ev.CallbackEventProcessedAt = &now
	// detach from request cancellation, the audit row should still land
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()
	if err := r.events.Record(rctx, ev); err != nil {
		log.Printf("[CALLBACK] ⚠️ record callback event: %v", err)
	}
}

/* =======================================================================
   Payload helpers
======================================================================= */

func stringField(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

func extractTransactionID(payload map[string]any) *string {
	for _, k := range transactionIDKeys {
		if s := stringField(payload, k); s != "" {
			return &s
		}
	}
	return nil
}
