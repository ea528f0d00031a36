package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/mithix/backend/internal/models"
	"github.com/mithix/backend/internal/repository"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func newAccount(t *testing.T, store *repository.MemStore, balance int) string {
	t.Helper()
	ctx := context.Background()
	acc, err := store.CreateAccount(ctx, "user-"+t.Name(), "x")
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if _, _, err := store.SetBalance(ctx, acc.ID, balance); err != nil {
		t.Fatalf("SetBalance: %v", err)
	}
	return acc.ID
}

func balanceOf(t *testing.T, store *repository.MemStore, id string) int {
	t.Helper()
	acc, err := store.GetAccount(context.Background(), id)
	if err != nil || acc == nil {
		t.Fatalf("GetAccount(%s): %v", id, err)
	}
	return acc.Balance
}

// failingEntries wraps a MemStore and fails every AppendEntry.
type failingEntries struct {
	*repository.MemStore
}

func (failingEntries) AppendEntry(context.Context, *models.CreditEntry) error {
	return errors.New("disk full")
}

// ---------------------------------------------------------------------------
// Pricing
// ---------------------------------------------------------------------------

func TestQuote_FastTier(t *testing.T) {
	for n := 1; n <= 4; n++ {
		got, err := Quote(models.ModelFluxSchnell, n)
		if err != nil {
			t.Fatalf("Quote: %v", err)
		}
		if got != 2*n {
			t.Errorf("Quote(flux, %d) = %d, want %d", n, got, 2*n)
		}
	}
}

func TestQuote_StandardTier(t *testing.T) {
	for _, m := range models.KnownModels() {
		if m == models.ModelFluxSchnell {
			continue
		}
		for n := 1; n <= 4; n++ {
			got, err := Quote(m, n)
			if err != nil {
				t.Fatalf("Quote(%s): %v", m, err)
			}
			if got != 5*n {
				t.Errorf("Quote(%s, %d) = %d, want %d", m, n, got, 5*n)
			}
		}
	}
}

func TestQuote_DefaultsAndErrors(t *testing.T) {
	if got, _ := Quote(models.ModelSDXLBase, 0); got != 5 {
		t.Errorf("numImages 0 should count as 1, got cost %d", got)
	}
	if _, err := Quote(models.ModelSDXLBase, -1); !errors.Is(err, ErrInvalidQuantity) {
		t.Errorf("expected ErrInvalidQuantity, got %v", err)
	}
	if _, err := Quote(models.ModelID("someone/unknown-model"), 1); !errors.Is(err, ErrUnpricedModel) {
		t.Errorf("expected ErrUnpricedModel, got %v", err)
	}
}

func TestPrices_CoversCatalog(t *testing.T) {
	prices := Prices()
	if len(prices) != len(models.KnownModels()) {
		t.Fatalf("prices: got %d entries, want %d", len(prices), len(models.KnownModels()))
	}
	if prices[0].ID != models.ModelFluxSchnell || prices[0].CreditsPerImage != FastTierCost {
		t.Errorf("first entry: got %+v", prices[0])
	}
}

// ---------------------------------------------------------------------------
// Reservations
// ---------------------------------------------------------------------------

func TestAuthorizeAndReserve_ScenarioA(t *testing.T) {
	store := repository.NewMemStore()
	svc := NewService(store)
	ctx := context.Background()
	id := newAccount(t, store, 10)

	cost, err := svc.Quote(models.ModelSDXLBase, 2)
	if err != nil || cost != 10 {
		t.Fatalf("Quote: cost=%d err=%v", cost, err)
	}
	res, err := svc.AuthorizeAndReserve(ctx, id, cost)
	if err != nil {
		t.Fatalf("AuthorizeAndReserve: %v", err)
	}
	if res.Account.Balance != 0 {
		t.Errorf("reservation snapshot balance: got %d, want 0", res.Account.Balance)
	}
	if got := balanceOf(t, store, id); got != 0 {
		t.Errorf("balance: got %d, want 0", got)
	}
}

func TestAuthorizeAndReserve_ScenarioB(t *testing.T) {
	store := repository.NewMemStore()
	svc := NewService(store)
	ctx := context.Background()
	id := newAccount(t, store, 0)

	cost, _ := svc.Quote(models.ModelFluxSchnell, 1)
	if _, err := svc.AuthorizeAndReserve(ctx, id, cost); !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got %v", err)
	}
	if got := balanceOf(t, store, id); got != 0 {
		t.Errorf("balance: got %d, want 0", got)
	}
	entries, _ := store.ListEntriesByAccount(ctx, id)
	if len(entries) != 0 {
		t.Errorf("rejected reservation must not write entries, got %d", len(entries))
	}
}

func TestAuthorizeAndReserve_UnknownAccount(t *testing.T) {
	svc := NewService(repository.NewMemStore())
	if _, err := svc.AuthorizeAndReserve(context.Background(), "ghost", 1); !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got %v", err)
	}
}

func TestAuthorizeAndReserve_NegativeCost(t *testing.T) {
	store := repository.NewMemStore()
	svc := NewService(store)
	id := newAccount(t, store, 10)
	if _, err := svc.AuthorizeAndReserve(context.Background(), id, -3); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if got := balanceOf(t, store, id); got != 10 {
		t.Errorf("balance: got %d, want 10", got)
	}
}

func TestAuthorizeAndReserve_ConcurrentNeverNegative(t *testing.T) {
	store := repository.NewMemStore()
	svc := NewService(store)
	ctx := context.Background()
	id := newAccount(t, store, 23)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.AuthorizeAndReserve(ctx, id, 5); err == nil {
				mu.Lock()
				granted++
				mu.Unlock()
			} else if !errors.Is(err, ErrInsufficientCredits) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if granted != 4 {
		t.Errorf("granted reservations: got %d, want 4", granted)
	}
	if got := balanceOf(t, store, id); got != 3 {
		t.Errorf("balance: got %d, want 3", got)
	}
}

func TestAuthorizeAndReserve_EntryFailureRefunds(t *testing.T) {
	store := repository.NewMemStore()
	id := newAccount(t, store, 10)
	svc := NewService(failingEntries{store})

	if _, err := svc.AuthorizeAndReserve(context.Background(), id, 4); err == nil {
		t.Fatal("expected error when the hold cannot be recorded")
	}
	if got := balanceOf(t, store, id); got != 10 {
		t.Errorf("balance after failed hold: got %d, want 10", got)
	}
}

func TestRelease_RefundsHold(t *testing.T) {
	store := repository.NewMemStore()
	svc := NewService(store)
	ctx := context.Background()
	id := newAccount(t, store, 10)

	res, err := svc.AuthorizeAndReserve(ctx, id, 5)
	if err != nil {
		t.Fatalf("AuthorizeAndReserve: %v", err)
	}
	if err := svc.Release(ctx, res); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if got := balanceOf(t, store, id); got != 10 {
		t.Errorf("balance after release: got %d, want 10", got)
	}
	if err := svc.Release(ctx, res); !errors.Is(err, ErrAlreadySettled) {
		t.Errorf("second release: expected ErrAlreadySettled, got %v", err)
	}
	if err := svc.Commit(ctx, res, "rec"); !errors.Is(err, ErrAlreadySettled) {
		t.Errorf("commit after release: expected ErrAlreadySettled, got %v", err)
	}
	if got := balanceOf(t, store, id); got != 10 {
		t.Errorf("balance must not change on a settled reservation: got %d", got)
	}
}

func TestCommit_LinksRecord(t *testing.T) {
	store := repository.NewMemStore()
	svc := NewService(store)
	ctx := context.Background()
	id := newAccount(t, store, 10)

	res, _ := svc.AuthorizeAndReserve(ctx, id, 2)
	if err := svc.Commit(ctx, res, "record-1"); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if got := balanceOf(t, store, id); got != 8 {
		t.Errorf("balance after commit: got %d, want 8", got)
	}
	entries, _ := svc.Entries(ctx, id)
	if len(entries) != 2 {
		t.Fatalf("entries: got %d, want 2", len(entries))
	}
	charge := entries[0]
	if charge.EntryType != models.CreditEntryCharge || charge.RecordID == nil || *charge.RecordID != "record-1" {
		t.Errorf("charge entry: got %+v", charge)
	}
	if charge.BalanceAfter != 8 {
		t.Errorf("charge balance_after: got %d, want 8", charge.BalanceAfter)
	}
}

func TestAdjust(t *testing.T) {
	store := repository.NewMemStore()
	svc := NewService(store)
	ctx := context.Background()
	id := newAccount(t, store, 10)

	acc, err := svc.Adjust(ctx, id, 250)
	if err != nil {
		t.Fatalf("Adjust: %v", err)
	}
	if acc.Balance != 250 {
		t.Errorf("balance: got %d, want 250", acc.Balance)
	}
	entries, _ := svc.Entries(ctx, id)
	if len(entries) != 1 || entries[0].Delta != 240 {
		t.Errorf("adjustment entry: got %+v", entries)
	}

	if _, err := svc.Adjust(ctx, "ghost", 5); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("expected ErrAccountNotFound, got %v", err)
	}
	if _, err := svc.Adjust(ctx, id, -1); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Integrity: initial balance + Σ deltas == current balance.
// ---------------------------------------------------------------------------

func TestLedgerIntegrity(t *testing.T) {
	store := repository.NewMemStore()
	svc := NewService(store)
	ctx := context.Background()
	const initial = 40
	id := newAccount(t, store, initial)

	r1, _ := svc.AuthorizeAndReserve(ctx, id, 5)
	_ = svc.Commit(ctx, r1, "a")
	r2, _ := svc.AuthorizeAndReserve(ctx, id, 10)
	_ = svc.Release(ctx, r2)
	r3, _ := svc.AuthorizeAndReserve(ctx, id, 2)
	_ = svc.Commit(ctx, r3, "b")
	if _, err := svc.AuthorizeAndReserve(ctx, id, 1000); !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got %v", err)
	}

	entries, err := svc.Entries(ctx, id)
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	sum := 0
	for _, e := range entries {
		sum += e.Delta
	}
	if got := balanceOf(t, store, id); got != initial+sum || got != 33 {
		t.Errorf("balance %d, initial(%d) + ledger_sum(%d) = %d, want 33", got, initial, sum, initial+sum)
	}
}
