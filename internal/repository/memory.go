package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mithix/backend/internal/models"
)

// MemStore is a thread-safe in-memory Store. Nothing survives a restart.
type MemStore struct {
	mu       sync.RWMutex
	accounts map[string]*models.Account
	records  map[string]*storedRecord
	entries  map[string][]*models.CreditEntry
	seq      uint64
	now      func() time.Time
}

// storedRecord carries an insertion sequence so records created within the
// same clock tick still list in creation order.
type storedRecord struct {
	rec *models.GenerationRecord
	seq uint64
}

var _ Store = (*MemStore)(nil)

// MemOption configures a MemStore.
type MemOption func(*MemStore)

// WithClock overrides the timestamp source (tests).
func WithClock(now func() time.Time) MemOption {
	return func(m *MemStore) { m.now = now }
}

// NewMemStore returns an empty store.
func NewMemStore(opts ...MemOption) *MemStore {
	m := &MemStore{
		accounts: make(map[string]*models.Account),
		records:  make(map[string]*storedRecord),
		entries:  make(map[string][]*models.CreditEntry),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// --- Accounts ---

func (m *MemStore) GetAccount(_ context.Context, id string) (*models.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.accounts[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (m *MemStore) GetAccountByHandle(_ context.Context, handle string) (*models.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if a := m.findByHandle(handle); a != nil {
		cp := *a
		return &cp, nil
	}
	return nil, nil
}

// findByHandle must be called with m.mu held.
func (m *MemStore) findByHandle(handle string) *models.Account {
	for _, a := range m.accounts {
		if a.Handle == handle {
			return a
		}
	}
	return nil
}

func (m *MemStore) CreateAccount(_ context.Context, handle, secret string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.findByHandle(handle) != nil {
		return nil, ErrDuplicateHandle
	}
	a := &models.Account{
		ID:         uuid.NewString(),
		Handle:     handle,
		SecretHash: secret,
		Balance:    models.StartingBalance,
		CreatedAt:  m.now(),
	}
	m.accounts[a.ID] = a
	cp := *a
	return &cp, nil
}

func (m *MemStore) EnsureAccount(_ context.Context, a *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.accounts[a.ID]; ok {
		return nil
	}
	if m.findByHandle(a.Handle) != nil {
		return ErrDuplicateHandle
	}
	if a.Balance < 0 {
		return ErrNegativeBalance
	}
	cp := *a
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = m.now()
	}
	m.accounts[cp.ID] = &cp
	return nil
}

func (m *MemStore) SetBalance(_ context.Context, id string, balance int) (int, bool, error) {
	if balance < 0 {
		return 0, false, ErrNegativeBalance
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.accounts[id]
	if !ok {
		return 0, false, nil
	}
	prev := a.Balance
	a.Balance = balance
	return prev, true, nil
}

func (m *MemStore) DeductCredits(_ context.Context, id string, amount int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.accounts[id]
	if !ok {
		return 0, ErrAccountNotFound
	}
	if a.Balance < amount {
		return a.Balance, ErrInsufficientCredits
	}
	a.Balance -= amount
	return a.Balance, nil
}

func (m *MemStore) AddCredits(_ context.Context, id string, amount int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.accounts[id]
	if !ok {
		return 0, ErrAccountNotFound
	}
	if a.Balance+amount < 0 {
		return a.Balance, ErrNegativeBalance
	}
	a.Balance += amount
	return a.Balance, nil
}

// --- Generation records ---

func (m *MemStore) CreateRecord(_ context.Context, d *models.GenerationDraft) (*models.GenerationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := models.NewRecord(uuid.NewString(), d, m.now())
	m.seq++
	m.records[rec.ID] = &storedRecord{rec: rec, seq: m.seq}
	return rec.Clone(), nil
}

func (m *MemStore) GetRecord(_ context.Context, id string) (*models.GenerationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sr, ok := m.records[id]
	if !ok {
		return nil, nil
	}
	return sr.rec.Clone(), nil
}

func (m *MemStore) ListRecordsByAccount(_ context.Context, accountID string) ([]*models.GenerationRecord, error) {
	m.mu.RLock()
	var matched []*storedRecord
	for _, sr := range m.records {
		if sr.rec.AccountID != nil && *sr.rec.AccountID == accountID {
			matched = append(matched, sr)
		}
	}
	m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.rec.CreatedAt.Equal(b.rec.CreatedAt) {
			return a.rec.CreatedAt.After(b.rec.CreatedAt)
		}
		return a.seq > b.seq
	})

	out := make([]*models.GenerationRecord, len(matched))
	for i, sr := range matched {
		out[i] = sr.rec.Clone()
	}
	return out, nil
}

// --- Credit entries ---

func (m *MemStore) AppendEntry(_ context.Context, e *models.CreditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = m.now()
	}
	cp := *e
	m.entries[e.AccountID] = append(m.entries[e.AccountID], &cp)
	return nil
}

func (m *MemStore) ListEntriesByAccount(_ context.Context, accountID string) ([]*models.CreditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := m.entries[accountID]
	out := make([]*models.CreditEntry, 0, len(list))
	// Appended in order, so walking backwards is newest first.
	for i := len(list) - 1; i >= 0; i-- {
		cp := *list[i]
		out = append(out, &cp)
	}
	return out, nil
}
