package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"coursepay_backend/internals/features/payment/zoyktech/model"
	helper "coursepay_backend/internals/helpers"
)

type GormTransactionRepository struct {
	DB *gorm.DB
}

func NewGormTransactionRepository(db *gorm.DB) *GormTransactionRepository {
	return &GormTransactionRepository{DB: db}
}

func (r *GormTransactionRepository) Create(ctx context.Context, tx *model.Transaction) error {
	if tx.TransactionStatus != "" && !tx.TransactionStatus.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, tx.TransactionStatus)
	}
	if err := r.DB.WithContext(ctx).Create(tx).Error; err != nil {
		if helper.IsUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateOrderID, tx.TransactionProviderOrderID)
		}
		return err
	}
	return nil
}

func (r *GormTransactionRepository) FindByProviderOrderID(ctx context.Context, providerOrderID string) (*model.Transaction, error) {
	var tx model.Transaction
	err := r.DB.WithContext(ctx).
		Where("transaction_provider_order_id = ?", providerOrderID).
		Take(&tx).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &tx, nil
}

// ApplyTransition is a compare-and-set on status: the UPDATE only matches
// non-terminal rows, so of two concurrent terminal transitions exactly one
// sees RowsAffected=1.
func (r *GormTransactionRepository) ApplyTransition(ctx context.Context, providerOrderID string, to model.TransactionStatus, providerRef *string) (TransitionResult, error) {
	if !to.IsValid() {
		return TransitionResult{}, fmt.Errorf("%w: %q", ErrInvalidStatus, to)
	}
	db := r.DB.WithContext(ctx)

	// Read the prior status for reporting. The write below does not depend on it.
	before, err := r.FindByProviderOrderID(ctx, providerOrderID)
	if err != nil {
		return TransitionResult{}, err
	}
	if before.IsTerminal() {
		return alreadyFinal(before), nil
	}

	updates := map[string]any{
		"transaction_status":     to,
		"transaction_updated_at": time.Now(),
	}
	if to == model.TransactionStatusCompleted && providerRef != nil && *providerRef != "" {
		updates["transaction_provider_ref"] = gorm.Expr("COALESCE(transaction_provider_ref, ?)", *providerRef)
	}

	res := db.Model(&model.Transaction{}).
		Where("transaction_provider_order_id = ? AND transaction_status IN ?", providerOrderID, model.NonTerminalStatuses).
		Updates(updates)
	if res.Error != nil {
		return TransitionResult{}, res.Error
	}

	after, err := r.FindByProviderOrderID(ctx, providerOrderID)
	if err != nil {
		return TransitionResult{}, err
	}
	if res.RowsAffected == 0 {
		// lost the race to another terminal transition
		return alreadyFinal(after), nil
	}
	return TransitionResult{
		Outcome:     OutcomeTransitioned,
		From:        before.TransactionStatus,
		To:          to,
		Transaction: after,
	}, nil
}

func (r *GormTransactionRepository) AttachRawResponse(ctx context.Context, providerOrderID string, raw datatypes.JSON) error {
	res := r.DB.WithContext(ctx).Model(&model.Transaction{}).
		Where("transaction_provider_order_id = ? AND transaction_raw_response IS NULL", providerOrderID).
		Update("transaction_raw_response", raw)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := r.FindByProviderOrderID(ctx, providerOrderID); err != nil {
			return err
		}
	}
	return nil
}

func (r *GormTransactionRepository) ListStale(ctx context.Context, updatedBefore time.Time, limit int) ([]model.Transaction, error) {
	var rows []model.Transaction
	err := r.DB.WithContext(ctx).
		Where("transaction_status IN ? AND transaction_updated_at <= ?", model.NonTerminalStatuses, updatedBefore).
		Order("transaction_updated_at ASC").
		Limit(normalizeLimit(limit)).
		Find(&rows).Error
	return rows, err
}

func (r *GormTransactionRepository) List(ctx context.Context, f ListFilter) ([]model.Transaction, int64, error) {
	q := r.DB.WithContext(ctx).Model(&model.Transaction{})
	if f.Status != nil {
		q = q.Where("transaction_status = ?", *f.Status)
	}
	if f.CourseID != "" {
		q = q.Where("transaction_course_id = ?", f.CourseID)
	}
	if f.UserID != "" {
		q = q.Where("transaction_user_id = ?", f.UserID)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []model.Transaction
	err := q.Order("transaction_created_at DESC").
		Offset(f.Offset).
		Limit(normalizeLimit(f.Limit)).
		Find(&rows).Error
	return rows, total, err
}

func (r *GormTransactionRepository) Stats(ctx context.Context, f StatsFilter) ([]StatusStat, error) {
	q := r.DB.WithContext(ctx).Model(&model.Transaction{})
	if f.CourseID != "" {
		q = q.Where("transaction_course_id = ?", f.CourseID)
	}
	if f.Since != nil {
		q = q.Where("transaction_created_at >= ?", *f.Since)
	}

	var rows []struct {
		Status   string
		Currency string
		Count    int64
		Total    decimal.Decimal
	}
	err := q.Select("transaction_status AS status, transaction_currency AS currency, COUNT(*) AS count, COALESCE(SUM(transaction_amount), 0) AS total").
		Group("transaction_status, transaction_currency").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]StatusStat, 0, len(rows))
	for _, row := range rows {
		out = append(out, StatusStat{
			Status:   model.TransactionStatus(row.Status),
			Currency: row.Currency,
			Count:    row.Count,
			Total:    row.Total,
		})
	}
	sortStats(out)
	return out, nil
}

func alreadyFinal(tx *model.Transaction) TransitionResult {
	return TransitionResult{
		Outcome:     OutcomeAlreadyFinal,
		From:        tx.TransactionStatus,
		To:          tx.TransactionStatus,
		Transaction: tx,
	}
}
