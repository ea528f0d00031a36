// Package repository holds the record store: accounts, generation records
// and the credit ledger rows. MemStore is the default, PgStore is used when
// a database is configured.
package repository

import (
	"context"
	"errors"

	"github.com/mithix/backend/internal/models"
)

var (
	// ErrDuplicateHandle is returned when creating an account whose handle is taken.
	ErrDuplicateHandle = errors.New("handle already taken")
	// ErrAccountNotFound is returned by balance mutators for an unknown account.
	ErrAccountNotFound = errors.New("account not found")
	// ErrInsufficientCredits is returned by DeductCredits when balance < amount.
	ErrInsufficientCredits = errors.New("insufficient credits")
	// ErrNegativeBalance is returned when a balance write would go below zero.
	ErrNegativeBalance = errors.New("balance cannot be negative")
)

// AccountStore reads and mutates accounts. Lookups return (nil, nil) when
// nothing matches.
type AccountStore interface {
	GetAccount(ctx context.Context, id string) (*models.Account, error)
	GetAccountByHandle(ctx context.Context, handle string) (*models.Account, error)
	CreateAccount(ctx context.Context, handle, secret string) (*models.Account, error)
	// EnsureAccount inserts a with its own ID unless that ID already exists.
	EnsureAccount(ctx context.Context, a *models.Account) error
	// SetBalance overwrites the balance and returns the previous one. found
	// is false, and nothing changes, when the account does not exist.
	SetBalance(ctx context.Context, id string, balance int) (previous int, found bool, err error)
	// DeductCredits subtracts amount only if the balance covers it, as one
	// atomic step.
	DeductCredits(ctx context.Context, id string, amount int) (newBalance int, err error)
	AddCredits(ctx context.Context, id string, amount int) (newBalance int, err error)
}

// GenerationStore holds immutable generation records.
type GenerationStore interface {
	CreateRecord(ctx context.Context, d *models.GenerationDraft) (*models.GenerationRecord, error)
	GetRecord(ctx context.Context, id string) (*models.GenerationRecord, error)
	// ListRecordsByAccount returns records newest first.
	ListRecordsByAccount(ctx context.Context, accountID string) ([]*models.GenerationRecord, error)
}

// CreditStore is the append-only credit history.
type CreditStore interface {
	AppendEntry(ctx context.Context, e *models.CreditEntry) error
	// ListEntriesByAccount returns entries newest first.
	ListEntriesByAccount(ctx context.Context, accountID string) ([]*models.CreditEntry, error)
}

// Store is the full record store.
type Store interface {
	AccountStore
	GenerationStore
	CreditStore
}
