package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/mithix/backend/internal/inference"
	"github.com/mithix/backend/internal/ledger"
	"github.com/mithix/backend/internal/models"
	"github.com/mithix/backend/internal/repository"
)

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

type mockInference struct {
	mu    sync.Mutex
	calls []inference.Request
	img   *inference.Image
	err   error
}

func (m *mockInference) GenerateImage(ctx context.Context, req inference.Request) (*inference.Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, req)
	if m.err != nil {
		return nil, m.err
	}
	return m.img, nil
}

type mockWatermarker struct {
	err error
}

func (m *mockWatermarker) Apply(data []byte, contentType string) ([]byte, string, error) {
	if m.err != nil {
		return nil, "", m.err
	}
	return append([]byte("WM:"), data...), "image/png", nil
}

type failingRecords struct{}

func (failingRecords) CreateRecord(context.Context, *models.GenerationDraft) (*models.GenerationRecord, error) {
	return nil, errors.New("store unavailable")
}

type fixture struct {
	store *repository.MemStore
	infer *mockInference
	wm    *mockWatermarker
	gen   *Generator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repository.NewMemStore()
	if err := store.EnsureAccount(context.Background(), &models.Account{
		ID: models.DefaultAccountID, Handle: models.DefaultAccountHandle, Balance: models.StartingBalance,
	}); err != nil {
		t.Fatalf("EnsureAccount: %v", err)
	}
	f := &fixture{
		store: store,
		infer: &mockInference{img: &inference.Image{Data: []byte("PNGDATA"), ContentType: "image/jpeg"}},
		wm:    &mockWatermarker{},
	}
	f.gen = NewGenerator(newTestValidator(t), ledger.NewService(store), store, f.infer, f.wm, slog.Default())
	return f
}

func (f *fixture) setBalance(t *testing.T, id string, balance int) {
	t.Helper()
	if _, found, err := f.store.SetBalance(context.Background(), id, balance); err != nil || !found {
		t.Fatalf("SetBalance(%s): found=%v err=%v", id, found, err)
	}
}

func (f *fixture) balance(t *testing.T, id string) int {
	t.Helper()
	acc, err := f.store.GetAccount(context.Background(), id)
	if err != nil || acc == nil {
		t.Fatalf("GetAccount(%s): %v", id, err)
	}
	return acc.Balance
}

func body(model string, extra string) []byte {
	return []byte(fmt.Sprintf(`{"prompt":"a red fox in snow","model":%q%s}`, model, extra))
}

func assertKind(t *testing.T, err error, want error) *GenerationError {
	t.Helper()
	var gerr *GenerationError
	if !errors.As(err, &gerr) {
		t.Fatalf("expected *GenerationError, got %T (%v)", err, err)
	}
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
	return gerr
}

// ---------------------------------------------------------------------------
// Success path
// ---------------------------------------------------------------------------

func TestGenerate_Success(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.gen.Generate(ctx, body(string(models.ModelFluxSchnell), `,"seed":7,"stylePreset":"anime"`), "")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got := f.balance(t, models.DefaultAccountID); got != 98 {
		t.Errorf("balance: got %d, want 98", got)
	}
	if rec.AccountID == nil || *rec.AccountID != models.DefaultAccountID {
		t.Errorf("record owner: got %v", rec.AccountID)
	}
	if string(rec.ImageData) != "WM:PNGDATA" || rec.ContentType != "image/png" {
		t.Errorf("watermarked payload not stored: %q %q", rec.ImageData, rec.ContentType)
	}
	if rec.Settings == nil || rec.Settings.Seed == nil || *rec.Settings.Seed != 7 || rec.Settings.Steps != DefaultFastSteps {
		t.Errorf("settings snapshot: got %+v", rec.Settings)
	}
	if rec.StylePreset == nil || *rec.StylePreset != "anime" || rec.NegativePrompt != nil {
		t.Errorf("optionals: style=%v neg=%v", rec.StylePreset, rec.NegativePrompt)
	}

	stored, _ := f.store.GetRecord(ctx, rec.ID)
	if stored == nil {
		t.Fatal("record not persisted")
	}
	list, _ := f.store.ListRecordsByAccount(ctx, models.DefaultAccountID)
	if len(list) != 1 || list[0].ID != rec.ID {
		t.Errorf("list: got %d records", len(list))
	}

	entries, _ := f.store.ListEntriesByAccount(ctx, models.DefaultAccountID)
	if len(entries) != 2 || entries[0].EntryType != models.CreditEntryCharge || entries[1].EntryType != models.CreditEntryHold {
		t.Errorf("ledger entries: got %+v", entries)
	}

	if len(f.infer.calls) != 1 || f.infer.calls[0].Seed == nil || *f.infer.calls[0].Seed != 7 {
		t.Errorf("inference call: got %+v", f.infer.calls)
	}
}

func TestGenerate_AccountResolution(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, _ := f.store.CreateAccount(ctx, "alice", "pw")
	bob, _ := f.store.CreateAccount(ctx, "bob", "pw")

	// Body userId wins over the default.
	rec, err := f.gen.Generate(ctx, body(string(models.ModelSD15), fmt.Sprintf(`,"userId":%q`, alice.ID)), "")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if *rec.AccountID != alice.ID || f.balance(t, alice.ID) != 95 {
		t.Errorf("body userId not charged: owner=%s balance=%d", *rec.AccountID, f.balance(t, alice.ID))
	}

	// Authenticated caller wins over body userId.
	rec, err = f.gen.Generate(ctx, body(string(models.ModelSD15), fmt.Sprintf(`,"userId":%q`, alice.ID)), bob.ID)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if *rec.AccountID != bob.ID || f.balance(t, bob.ID) != 95 || f.balance(t, alice.ID) != 95 {
		t.Errorf("caller not charged: owner=%s", *rec.AccountID)
	}
	if f.balance(t, models.DefaultAccountID) != 100 {
		t.Error("default account should be untouched")
	}
}

// ---------------------------------------------------------------------------
// Scenario C: upstream loading leaves the balance intact
// ---------------------------------------------------------------------------

func TestGenerate_ModelLoadingReleasesHold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.setBalance(t, models.DefaultAccountID, 10)
	f.infer.err = &inference.UpstreamError{Err: inference.ErrModelLoading, Status: 503}

	_, err := f.gen.Generate(ctx, body(string(models.ModelSDXLBase), ""), "")
	assertKind(t, err, ErrTemporarilyUnavailable)

	if got := f.balance(t, models.DefaultAccountID); got != 10 {
		t.Errorf("balance: got %d, want 10", got)
	}
	list, _ := f.store.ListRecordsByAccount(ctx, models.DefaultAccountID)
	if len(list) != 0 {
		t.Errorf("no record should be created, got %d", len(list))
	}
	entries, _ := f.store.ListEntriesByAccount(ctx, models.DefaultAccountID)
	if len(entries) != 2 || entries[0].EntryType != models.CreditEntryRefund || entries[0].Delta != 5 {
		t.Errorf("expected hold + refund, got %+v", entries)
	}
}

// ---------------------------------------------------------------------------
// Scenario D: validation failure has no side effects
// ---------------------------------------------------------------------------

func TestGenerate_InvalidRequestNoSideEffects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.gen.Generate(ctx, []byte(`{"prompt":"","model":"black-forest-labs/FLUX.1-schnell"}`), "")
	gerr := assertKind(t, err, ErrInvalidRequest)
	if len(gerr.Fields) == 0 {
		t.Error("expected field reasons")
	}
	if f.balance(t, models.DefaultAccountID) != 100 {
		t.Error("balance changed on invalid request")
	}
	if len(f.infer.calls) != 0 {
		t.Error("inference must not be called on invalid request")
	}
	entries, _ := f.store.ListEntriesByAccount(ctx, models.DefaultAccountID)
	if len(entries) != 0 {
		t.Errorf("ledger entries written: %+v", entries)
	}
}

// ---------------------------------------------------------------------------
// Scenario A/B through the orchestrator
// ---------------------------------------------------------------------------

func TestGenerate_InsufficientCredits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.setBalance(t, models.DefaultAccountID, 10)

	if _, err := f.gen.Generate(ctx, body(string(models.ModelSDXLBase), `,"numImages":2`), ""); err != nil {
		t.Fatalf("first generate: %v", err)
	}
	if got := f.balance(t, models.DefaultAccountID); got != 0 {
		t.Fatalf("balance after first: got %d, want 0", got)
	}

	_, err := f.gen.Generate(ctx, body(string(models.ModelFluxSchnell), ""), "")
	assertKind(t, err, ErrInsufficientCredits)
	if got := f.balance(t, models.DefaultAccountID); got != 0 {
		t.Errorf("balance after rejection: got %d, want 0", got)
	}
	if len(f.infer.calls) != 1 {
		t.Errorf("inference calls: got %d, want 1", len(f.infer.calls))
	}
}

func TestGenerate_UnknownAccount(t *testing.T) {
	f := newFixture(t)
	_, err := f.gen.Generate(context.Background(), body(string(models.ModelSD15), `,"userId":"nobody"`), "")
	assertKind(t, err, ErrInsufficientCredits)
}

// ---------------------------------------------------------------------------
// Upstream error mapping
// ---------------------------------------------------------------------------

func TestGenerate_UpstreamErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		want       error
		wantDetail string
	}{
		{"not configured", inference.ErrNotConfigured, ErrInternal, "Hugging Face API key not configured. Please add your API key to environment variables."},
		{"unauthorized", &inference.UpstreamError{Err: inference.ErrUnauthorized, Status: 401}, ErrUpstreamUnauthorized, ""},
		{"bad response", &inference.UpstreamError{Err: inference.ErrBadResponse, Status: 200, Body: "<html>"}, ErrUpstreamBadResponse, "<html>"},
		{"failed", &inference.UpstreamError{Err: inference.ErrUpstream, Status: 500, Body: "CUDA out of memory"}, ErrUpstreamFailed, "CUDA out of memory"},
		{"unexpected", errors.New("boom"), ErrInternal, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.infer.err = tt.err

			_, err := f.gen.Generate(context.Background(), body(string(models.ModelSDXLBase), ""), "")
			gerr := assertKind(t, err, tt.want)
			if gerr.Detail != tt.wantDetail {
				t.Errorf("detail: got %q, want %q", gerr.Detail, tt.wantDetail)
			}
			if got := f.balance(t, models.DefaultAccountID); got != 100 {
				t.Errorf("balance: got %d, want 100 after refund", got)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Post-processing and persistence
// ---------------------------------------------------------------------------

func TestGenerate_WatermarkFailureFallsBack(t *testing.T) {
	f := newFixture(t)
	f.wm.err = errors.New("decode failed")

	rec, err := f.gen.Generate(context.Background(), body(string(models.ModelSD15), ""), "")
	if err != nil {
		t.Fatalf("watermark failure must not fail the request: %v", err)
	}
	if string(rec.ImageData) != "PNGDATA" || rec.ContentType != "image/jpeg" {
		t.Errorf("expected original payload, got %q %q", rec.ImageData, rec.ContentType)
	}
	if got := f.balance(t, models.DefaultAccountID); got != 95 {
		t.Errorf("balance: got %d, want 95", got)
	}
}

func TestGenerate_NoWatermarker(t *testing.T) {
	f := newFixture(t)
	f.gen.Watermarker = nil

	rec, err := f.gen.Generate(context.Background(), body(string(models.ModelSD15), ""), "")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if string(rec.ImageData) != "PNGDATA" {
		t.Errorf("payload: got %q", rec.ImageData)
	}
}

func TestGenerate_PersistFailureReleasesHold(t *testing.T) {
	f := newFixture(t)
	f.gen.Records = failingRecords{}

	_, err := f.gen.Generate(context.Background(), body(string(models.ModelSD15), ""), "")
	assertKind(t, err, ErrInternal)
	if got := f.balance(t, models.DefaultAccountID); got != 100 {
		t.Errorf("balance: got %d, want 100", got)
	}
}

// ---------------------------------------------------------------------------
// Concurrency: parallel requests never overdraw
// ---------------------------------------------------------------------------

func TestGenerate_ConcurrentNeverOverdraws(t *testing.T) {
	f := newFixture(t)
	f.setBalance(t, models.DefaultAccountID, 12)

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.gen.Generate(context.Background(), body(string(models.ModelSD15), ""), "")
			if err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if ok != 2 {
		t.Errorf("successful generations: got %d, want 2", ok)
	}
	if got := f.balance(t, models.DefaultAccountID); got != 2 {
		t.Errorf("balance: got %d, want 2", got)
	}
}
