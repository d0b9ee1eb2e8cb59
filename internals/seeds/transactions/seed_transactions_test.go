package transactions

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"coursepay_backend/internals/features/payment/zoyktech/model"
	"coursepay_backend/internals/features/payment/zoyktech/repository"
)

func writeSeed(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "seed.json")
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestSeedTransactionsIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := repository.NewMemoryTransactionRepository()

	n, err := SeedTransactionsFromJSON(ctx, store, "data_transactions.json")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("created = %d, want 2", n)
	}

	n, err = SeedTransactionsFromJSON(ctx, store, "data_transactions.json")
	if err != nil || n != 0 {
		t.Fatalf("second run created %d, err %v", n, err)
	}

	tx, err := store.FindByProviderOrderID(ctx, "WC_1002_1700000100")
	if err != nil {
		t.Fatal(err)
	}
	if tx.TransactionStatus != model.TransactionStatusPending {
		t.Errorf("status = %s, want pending", tx.TransactionStatus)
	}
	if tx.TransactionPayerEmail != nil {
		t.Errorf("blank email stored as %q", *tx.TransactionPayerEmail)
	}
}

func TestSeedTransactionsSkipsInvalidRows(t *testing.T) {
	t.Parallel()
	p := writeSeed(t, `[
		{"provider_order_id":"A","course_id":"c","user_id":"u","amount":"0"},
		{"provider_order_id":"","course_id":"c","user_id":"u","amount":"10"},
		{"provider_order_id":"B","course_id":"c","user_id":"u","payer_contact":"+260971234567","amount":"10"}
	]`)

	n, err := SeedTransactionsFromJSON(context.Background(), repository.NewMemoryTransactionRepository(), p)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("created = %d, want 1", n)
	}
}

func TestSeedTransactionsBadFile(t *testing.T) {
	t.Parallel()
	store := repository.NewMemoryTransactionRepository()

	if _, err := SeedTransactionsFromJSON(context.Background(), store, filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("missing file accepted")
	}
	if _, err := SeedTransactionsFromJSON(context.Background(), store, writeSeed(t, "{")); err == nil {
		t.Error("broken JSON accepted")
	}
}
