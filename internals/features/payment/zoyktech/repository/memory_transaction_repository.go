package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"coursepay_backend/internals/features/payment/zoyktech/model"
)

// MemoryTransactionRepository keeps transactions in a map guarded by one
// mutex. Used by tests and by TRANSACTION_STORE=memory local runs.
type MemoryTransactionRepository struct {
	mu   sync.Mutex
	rows map[string]*model.Transaction
	now  func() time.Time
}

func NewMemoryTransactionRepository() *MemoryTransactionRepository {
	return &MemoryTransactionRepository{
		rows: make(map[string]*model.Transaction),
		now:  time.Now,
	}
}

func (r *MemoryTransactionRepository) Create(_ context.Context, tx *model.Transaction) error {
	if tx.TransactionStatus == "" {
		tx.TransactionStatus = model.TransactionStatusPending
	}
	if !tx.TransactionStatus.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, tx.TransactionStatus)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rows[tx.TransactionProviderOrderID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateOrderID, tx.TransactionProviderOrderID)
	}
	if tx.TransactionID == uuid.Nil {
		tx.TransactionID = uuid.New()
	}
	if tx.TransactionCurrency == "" {
		tx.TransactionCurrency = "ZMW"
	}
	now := r.now()
	if tx.TransactionCreatedAt.IsZero() {
		tx.TransactionCreatedAt = now
	}
	if tx.TransactionUpdatedAt.IsZero() {
		tx.TransactionUpdatedAt = now
	}
	cp := *tx
	r.rows[tx.TransactionProviderOrderID] = &cp
	return nil
}

func (r *MemoryTransactionRepository) FindByProviderOrderID(_ context.Context, providerOrderID string) (*model.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.rows[providerOrderID]
	if !ok {
		return nil, ErrTransactionNotFound
	}
	cp := *row
	return &cp, nil
}

func (r *MemoryTransactionRepository) ApplyTransition(_ context.Context, providerOrderID string, to model.TransactionStatus, providerRef *string) (TransitionResult, error) {
	if !to.IsValid() {
		return TransitionResult{}, fmt.Errorf("%w: %q", ErrInvalidStatus, to)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.rows[providerOrderID]
	if !ok {
		return TransitionResult{}, ErrTransactionNotFound
	}
	if row.IsTerminal() {
		cp := *row
		return alreadyFinal(&cp), nil
	}

	from := row.TransactionStatus
	row.TransactionStatus = to
	row.TransactionUpdatedAt = r.now()
	if to == model.TransactionStatusCompleted && providerRef != nil && *providerRef != "" && row.TransactionProviderRef == nil {
		ref := *providerRef
		row.TransactionProviderRef = &ref
	}

	cp := *row
	return TransitionResult{
		Outcome:     OutcomeTransitioned,
		From:        from,
		To:          to,
		Transaction: &cp,
	}, nil
}

func (r *MemoryTransactionRepository) AttachRawResponse(_ context.Context, providerOrderID string, raw datatypes.JSON) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.rows[providerOrderID]
	if !ok {
		return ErrTransactionNotFound
	}
	if len(row.TransactionRawResponse) == 0 {
		row.TransactionRawResponse = append(datatypes.JSON(nil), raw...)
	}
	return nil
}

func (r *MemoryTransactionRepository) ListStale(_ context.Context, updatedBefore time.Time, limit int) ([]model.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]model.Transaction, 0)
	for _, row := range r.rows {
		if row.IsTerminal() || row.TransactionUpdatedAt.After(updatedBefore) {
			continue
		}
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].TransactionUpdatedAt.Before(out[j].TransactionUpdatedAt)
	})
	if n := normalizeLimit(limit); len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (r *MemoryTransactionRepository) List(_ context.Context, f ListFilter) ([]model.Transaction, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	matched := make([]model.Transaction, 0)
	for _, row := range r.rows {
		if f.Status != nil && row.TransactionStatus != *f.Status {
			continue
		}
		if f.CourseID != "" && row.TransactionCourseID != f.CourseID {
			continue
		}
		if f.UserID != "" && row.TransactionUserID != f.UserID {
			continue
		}
		matched = append(matched, *row)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].TransactionCreatedAt.After(matched[j].TransactionCreatedAt)
	})

	total := int64(len(matched))
	if f.Offset >= len(matched) {
		return []model.Transaction{}, total, nil
	}
	end := f.Offset + normalizeLimit(f.Limit)
	if end > len(matched) {
		end = len(matched)
	}
	return matched[f.Offset:end], total, nil
}

func (r *MemoryTransactionRepository) Stats(_ context.Context, f StatsFilter) ([]StatusStat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	type key struct {
		status   model.TransactionStatus
		currency string
	}
	acc := make(map[key]*StatusStat)
	for _, row := range r.rows {
		if f.CourseID != "" && row.TransactionCourseID != f.CourseID {
			continue
		}
		if f.Since != nil && row.TransactionCreatedAt.Before(*f.Since) {
			continue
		}
		k := key{row.TransactionStatus, row.TransactionCurrency}
		st, ok := acc[k]
		if !ok {
			st = &StatusStat{Status: k.status, Currency: k.currency}
			acc[k] = st
		}
		st.Count++
		st.Total = st.Total.Add(row.TransactionAmount)
	}

	out := make([]StatusStat, 0, len(acc))
	for _, st := range acc {
		out = append(out, *st)
	}
	sortStats(out)
	return out, nil
}
