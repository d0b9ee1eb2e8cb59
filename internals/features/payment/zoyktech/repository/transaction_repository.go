package repository

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"coursepay_backend/internals/features/payment/zoyktech/model"
)

var (
	ErrDuplicateOrderID    = errors.New("duplicate provider order id")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrInvalidStatus       = errors.New("invalid transaction status")
)

type Outcome int

const (
	OutcomeTransitioned Outcome = iota + 1
	OutcomeAlreadyFinal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeTransitioned:
		return "transitioned"
	case OutcomeAlreadyFinal:
		return "already_final"
	default:
		return "unknown"
	}
}

// TransitionResult describes one ApplyTransition call. For OutcomeAlreadyFinal
// From and To are both the stored terminal status.
type TransitionResult struct {
	Outcome     Outcome
	From        model.TransactionStatus
	To          model.TransactionStatus
	Transaction *model.Transaction
}

type ListFilter struct {
	Status   *model.TransactionStatus
	CourseID string
	UserID   string
	Offset   int
	Limit    int
}

type StatsFilter struct {
	CourseID string
	Since    *time.Time
}

// StatusStat is one row of the per-status totals, split by currency.
type StatusStat struct {
	Status   model.TransactionStatus `json:"status"`
	Currency string                  `json:"currency"`
	Count    int64                   `json:"count"`
	Total    decimal.Decimal         `json:"total"`
}

// TransactionStore is the persistence contract for zoyktech transactions.
//
// ApplyTransition must be atomic per provider order id: it writes only if the
// stored status is non-terminal, and providerRef is stored only when to is
// completed and no reference exists yet.
type TransactionStore interface {
	Create(ctx context.Context, tx *model.Transaction) error
	FindByProviderOrderID(ctx context.Context, providerOrderID string) (*model.Transaction, error)
	ApplyTransition(ctx context.Context, providerOrderID string, to model.TransactionStatus, providerRef *string) (TransitionResult, error)
	AttachRawResponse(ctx context.Context, providerOrderID string, raw datatypes.JSON) error
	ListStale(ctx context.Context, updatedBefore time.Time, limit int) ([]model.Transaction, error)
	List(ctx context.Context, f ListFilter) ([]model.Transaction, int64, error)
	Stats(ctx context.Context, f StatsFilter) ([]StatusStat, error)
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 500 {
		return 500
	}
	return limit
}

func sortStats(stats []StatusStat) {
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Status != stats[j].Status {
			return stats[i].Status < stats[j].Status
		}
		return stats[i].Currency < stats[j].Currency
	})
}
