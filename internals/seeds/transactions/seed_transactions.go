package transactions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/shopspring/decimal"

	"coursepay_backend/internals/features/payment/zoyktech/model"
	"coursepay_backend/internals/features/payment/zoyktech/repository"
)

type TransactionSeed struct {
	ProviderOrderID string          `json:"provider_order_id"`
	LocalOrderID    string          `json:"local_order_id"`
	CourseID        string          `json:"course_id"`
	CourseTitle     string          `json:"course_title"`
	UserID          string          `json:"user_id"`
	PayerContact    string          `json:"payer_contact"`
	PayerEmail      string          `json:"payer_email"`
	PayerName       string          `json:"payer_name"`
	ProviderID      int             `json:"provider_id"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
}

func (s TransactionSeed) toModel() (*model.Transaction, error) {
	if strings.TrimSpace(s.ProviderOrderID) == "" || s.CourseID == "" || s.UserID == "" {
		return nil, errors.New("provider_order_id, course_id and user_id are required")
	}
	if !s.Amount.IsPositive() {
		return nil, fmt.Errorf("amount must be positive, got %s", s.Amount)
	}
	local := s.LocalOrderID
	if local == "" {
		local = s.ProviderOrderID
	}
	return &model.Transaction{
		TransactionLocalOrderID:    local,
		TransactionCourseID:        s.CourseID,
		TransactionUserID:          s.UserID,
		TransactionProviderOrderID: s.ProviderOrderID,
		TransactionProviderID:      s.ProviderID,
		TransactionAmount:          s.Amount,
		TransactionCurrency:        s.Currency,
		TransactionPayerContact:    s.PayerContact,
		TransactionPayerEmail:      optional(s.PayerEmail),
		TransactionPayerName:       optional(s.PayerName),
		TransactionCourseTitle:     optional(s.CourseTitle),
		TransactionStatus:          model.TransactionStatusPending,
	}, nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// SeedTransactionsFromJSON inserts pending sandbox transactions so provider
// callbacks have something to land on. It returns how many rows were created.
func SeedTransactionsFromJSON(ctx context.Context, store repository.TransactionStore, filePath string) (int, error) {
	log.Println("📥 Membaca file:", filePath)

	file, err := os.ReadFile(filePath)
	if err != nil {
		return 0, fmt.Errorf("read seed file: %w", err)
	}

	var seeds []TransactionSeed
	if err := json.Unmarshal(file, &seeds); err != nil {
		return 0, fmt.Errorf("decode seed file: %w", err)
	}

	created := 0
	for _, seed := range seeds {
		if _, err := store.FindByProviderOrderID(ctx, seed.ProviderOrderID); err == nil {
			log.Printf("ℹ️ Transaksi '%s' sudah ada, lewati...", seed.ProviderOrderID)
			continue
		} else if !errors.Is(err, repository.ErrTransactionNotFound) {
			return created, err
		}

		tx, err := seed.toModel()
		if err != nil {
			log.Printf("❌ Seed '%s' tidak valid: %v", seed.ProviderOrderID, err)
			continue
		}
		if err := store.Create(ctx, tx); err != nil {
			if errors.Is(err, repository.ErrDuplicateOrderID) {
				continue
			}
			return created, fmt.Errorf("insert %s: %w", seed.ProviderOrderID, err)
		}
		created++
		log.Printf("✅ Berhasil insert '%s'", seed.ProviderOrderID)
	}
	return created, nil
}
