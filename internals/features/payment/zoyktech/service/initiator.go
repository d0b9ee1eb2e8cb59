package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"coursepay_backend/internals/configs"
	"coursepay_backend/internals/features/payment/zoyktech/model"
	"coursepay_backend/internals/features/payment/zoyktech/repository"
)

var (
	ErrInvalidPhone         = errors.New("invalid Zambian mobile number, use +260XXXXXXXXX")
	ErrInvalidAmount        = errors.New("amount must be greater than zero")
	ErrUnsupportedProvider  = errors.New("unsupported mobile money provider")
	ErrGatewayNotConfigured = errors.New("zoyktech gateway is not configured")
	ErrInitiationFailed     = errors.New("payment initiation failed")
)

// persistTimeout bounds the writes made after the provider answered.
const persistTimeout = 10 * time.Second

type InitiateInput struct {
	LocalOrderID string
	CourseID     string
	UserID       string
	Phone        string
	ProviderID   int // 0 = detect from phone
	Amount       decimal.Decimal
	Currency     string
	PayerEmail   string
	PayerName    string
	CourseTitle  string
}

type Initiator struct {
	store      repository.TransactionStore
	gateway    PaymentGateway
	cfg        configs.ZoyktechConfig
	normalizer StatusNormalizer
	now        func() time.Time
}

func NewInitiator(store repository.TransactionStore, gateway PaymentGateway, cfg configs.ZoyktechConfig) *Initiator {
	return &Initiator{
		store:      store,
		gateway:    gateway,
		cfg:        cfg,
		normalizer: NewStatusNormalizer(cfg.StatusOneCompletes),
		now:        time.Now,
	}
}

// NewProviderOrderID: CP_<local order>_<unix>_<8 hex>.
func NewProviderOrderID(localOrderID string, now time.Time) string {
	u := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("CP_%s_%d_%s", localOrderID, now.Unix(), u)
}

// BuildInitiatePayload returns the signed payment_c2b request body.
func BuildInitiatePayload(cfg configs.ZoyktechConfig, tx *model.Transaction) map[string]any {
	payload := map[string]any{
		"merchant_id":  cfg.MerchantID,
		"customer_id":  tx.TransactionPayerContact,
		"order_id":     tx.TransactionProviderOrderID,
		"amount":       tx.TransactionAmount.StringFixed(2),
		"currency":     tx.TransactionCurrency,
		"country":      DetectCountry(tx.TransactionPayerContact),
		"callback_url": cfg.CallbackURL,
		"provider_id":  tx.TransactionProviderID,
		"extra": map[string]any{
			"local_order_id": tx.TransactionLocalOrderID,
			"course_id":      tx.TransactionCourseID,
			"user_id":        tx.TransactionUserID,
		},
	}
	payload[SignatureField] = Sign(payload, cfg.SecretKey)
	return payload
}

// Initiate stores the pending transaction first (so an early callback finds
// it), then asks the provider to start the collection.
func (i *Initiator) Initiate(ctx context.Context, in InitiateInput) (*model.Transaction, error) {
	if !i.cfg.IsConfigured() || i.gateway == nil {
		return nil, ErrGatewayNotConfigured
	}
	phone := CleanPhone(in.Phone)
	if !ValidatePhone(phone) {
		return nil, ErrInvalidPhone
	}
	if !in.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	providerID := in.ProviderID
	if providerID == 0 {
		providerID = DetectProvider(phone)
	}
	if !IsSupportedProvider(providerID) {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedProvider, providerID)
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = "ZMW"
	}

	tx := &model.Transaction{
		TransactionLocalOrderID:    in.LocalOrderID,
		TransactionCourseID:        in.CourseID,
		TransactionUserID:          in.UserID,
		TransactionProviderOrderID: NewProviderOrderID(in.LocalOrderID, i.now()),
		TransactionProviderID:      providerID,
		TransactionAmount:          in.Amount.Round(2),
		TransactionCurrency:        currency,
		TransactionPayerContact:    phone,
		TransactionPayerEmail:      optionalString(in.PayerEmail),
		TransactionPayerName:       optionalString(in.PayerName),
		TransactionCourseTitle:     optionalString(in.CourseTitle),
		TransactionStatus:          model.TransactionStatusPending,
	}
	payload := BuildInitiatePayload(i.cfg, tx)
	if raw, err := json.Marshal(payload); err == nil {
		tx.TransactionRawRequest = datatypes.JSON(raw)
	}

	if err := i.store.Create(ctx, tx); err != nil {
		return nil, err
	}

	// Once the row exists the provider call and the writes recording its
	// outcome must finish even if the request deadline passes first.
	detached := context.WithoutCancel(ctx)
	callCtx, cancelCall := context.WithTimeout(detached, i.callTimeout())
	resp, raw, err := i.gateway.InitiatePayment(callCtx, payload)
	cancelCall()

	ctx, cancel := context.WithTimeout(detached, persistTimeout)
	defer cancel()

	if len(raw) > 0 && json.Valid(raw) {
		if aerr := i.store.AttachRawResponse(ctx, tx.TransactionProviderOrderID, datatypes.JSON(raw)); aerr != nil {
			log.Printf("[INITIATE] attach raw response order_id=%s: %v", tx.TransactionProviderOrderID, aerr)
		}
	}
	if err != nil {
		log.Printf("[INITIATE] ❌ provider call failed order_id=%s: %v", tx.TransactionProviderOrderID, err)
		i.markFailed(ctx, tx)
		return tx, fmt.Errorf("%w: %v", ErrInitiationFailed, err)
	}

	// Only failures are trusted from the synchronous answer; completion
	// always waits for a signed callback or the sweep.
	switch st := i.normalizer.Normalize(resp); st {
	case model.TransactionStatusFailed, model.TransactionStatusCancelled, model.TransactionStatusExpired:
		log.Printf("[INITIATE] provider rejected order_id=%s status=%s", tx.TransactionProviderOrderID, st)
		if res, terr := i.store.ApplyTransition(ctx, tx.TransactionProviderOrderID, st, nil); terr == nil {
			tx = res.Transaction
		}
		return tx, fmt.Errorf("%w: provider answered %s", ErrInitiationFailed, st)
	}

	log.Printf("[INITIATE] ✅ order_id=%s provider=%s amount=%s %s", tx.TransactionProviderOrderID,
		model.ProviderName(providerID), tx.TransactionAmount.StringFixed(2), currency)
	if fresh, ferr := i.store.FindByProviderOrderID(ctx, tx.TransactionProviderOrderID); ferr == nil {
		tx = fresh
	}
	return tx, nil
}

func (i *Initiator) callTimeout() time.Duration {
	if i.cfg.Timeout > 0 {
		return i.cfg.Timeout
	}
	return 30 * time.Second
}

func (i *Initiator) markFailed(ctx context.Context, tx *model.Transaction) {
	res, err := i.store.ApplyTransition(ctx, tx.TransactionProviderOrderID, model.TransactionStatusFailed, nil)
	if err != nil {
		log.Printf("[INITIATE] mark failed order_id=%s: %v", tx.TransactionProviderOrderID, err)
		return
	}
	*tx = *res.Transaction
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
