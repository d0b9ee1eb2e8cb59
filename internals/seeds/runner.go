package seeds

import (
	"context"

	"coursepay_backend/internals/features/payment/zoyktech/repository"
	transactions "coursepay_backend/internals/seeds/transactions"
)

// RunAllSeeds loads sandbox fixtures into store. Existing rows are skipped,
// so running it twice is harmless.
func RunAllSeeds(ctx context.Context, store repository.TransactionStore, dir string) (int, error) {
	//* Zoyktech sandbox
	return transactions.SeedTransactionsFromJSON(ctx, store, dir+"/transactions/data_transactions.json")
}
