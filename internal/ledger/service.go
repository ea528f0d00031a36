// Package ledger prices generation requests and moves credits: a hold is
// placed before the upstream call and is either committed against the
// stored record or released back to the account.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/mithix/backend/internal/models"
	"github.com/mithix/backend/internal/repository"
)

var (
	// ErrInsufficientCredits is returned when the account is unknown or its
	// balance does not cover the cost. Not retryable.
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrUnpricedModel       = errors.New("model has no configured price")
	ErrInvalidQuantity     = errors.New("numImages must be a positive integer")
	ErrInvalidAmount       = errors.New("amount must not be negative")
	ErrAccountNotFound     = errors.New("account not found")
	ErrAlreadySettled      = errors.New("reservation already committed or released")
)

// Repository is the subset of the record store the ledger needs.
type Repository interface {
	GetAccount(ctx context.Context, id string) (*models.Account, error)
	SetBalance(ctx context.Context, id string, balance int) (previous int, found bool, err error)
	DeductCredits(ctx context.Context, id string, amount int) (int, error)
	AddCredits(ctx context.Context, id string, amount int) (int, error)
	AppendEntry(ctx context.Context, e *models.CreditEntry) error
	ListEntriesByAccount(ctx context.Context, accountID string) ([]*models.CreditEntry, error)
}

// Reservation is a hold on Amount credits. Account is the snapshot taken
// right after the debit.
type Reservation struct {
	ID        string
	AccountID string
	Amount    int
	Account   models.Account

	settled bool
}

type Service interface {
	Quote(model models.ModelID, numImages int) (int, error)
	AuthorizeAndReserve(ctx context.Context, accountID string, cost int) (*Reservation, error)
	Commit(ctx context.Context, res *Reservation, recordID string) error
	Release(ctx context.Context, res *Reservation) error
	Adjust(ctx context.Context, accountID string, balance int) (*models.Account, error)
	Entries(ctx context.Context, accountID string) ([]*models.CreditEntry, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

var _ Service = (*service)(nil)

func (s *service) Quote(model models.ModelID, numImages int) (int, error) {
	return Quote(model, numImages)
}

// AuthorizeAndReserve debits cost in one atomic step and records a hold.
// A missing account and a short balance both yield ErrInsufficientCredits
// with the balance left untouched.
func (s *service) AuthorizeAndReserve(ctx context.Context, accountID string, cost int) (*Reservation, error) {
	if cost < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidAmount, cost)
	}
	newBalance, err := s.repo.DeductCredits(ctx, accountID, cost)
	if err != nil {
		if errors.Is(err, repository.ErrInsufficientCredits) || errors.Is(err, repository.ErrAccountNotFound) {
			return nil, ErrInsufficientCredits
		}
		return nil, fmt.Errorf("deduct credits: %w", err)
	}

	res := &Reservation{ID: uuid.NewString(), AccountID: accountID, Amount: cost}
	entry := &models.CreditEntry{
		AccountID:    accountID,
		EntryType:    models.CreditEntryHold,
		Delta:        -cost,
		BalanceAfter: newBalance,
	}
	if err := s.repo.AppendEntry(ctx, entry); err != nil {
		if _, undoErr := s.repo.AddCredits(ctx, accountID, cost); undoErr != nil {
			return nil, fmt.Errorf("record hold: %w (refund also failed: %v)", err, undoErr)
		}
		return nil, fmt.Errorf("record hold: %w", err)
	}

	acc, err := s.repo.GetAccount(ctx, accountID)
	if err != nil || acc == nil {
		res.Account = models.Account{ID: accountID, Balance: newBalance}
	} else {
		res.Account = *acc
		res.Account.Balance = newBalance
	}
	return res, nil
}

// Commit marks the hold as spent on recordID. The balance does not move.
func (s *service) Commit(ctx context.Context, res *Reservation, recordID string) error {
	if res.settled {
		return ErrAlreadySettled
	}
	acc, err := s.repo.GetAccount(ctx, res.AccountID)
	if err != nil {
		return fmt.Errorf("load account: %w", err)
	}
	balance := res.Account.Balance
	if acc != nil {
		balance = acc.Balance
	}
	res.settled = true
	return s.repo.AppendEntry(ctx, &models.CreditEntry{
		AccountID:    res.AccountID,
		RecordID:     &recordID,
		EntryType:    models.CreditEntryCharge,
		Delta:        0,
		BalanceAfter: balance,
	})
}

// Release returns the held credits to the account.
func (s *service) Release(ctx context.Context, res *Reservation) error {
	if res.settled {
		return ErrAlreadySettled
	}
	newBalance, err := s.repo.AddCredits(ctx, res.AccountID, res.Amount)
	if err != nil {
		return fmt.Errorf("refund hold %s: %w", res.ID, err)
	}
	res.settled = true
	return s.repo.AppendEntry(ctx, &models.CreditEntry{
		AccountID:    res.AccountID,
		EntryType:    models.CreditEntryRefund,
		Delta:        res.Amount,
		BalanceAfter: newBalance,
	})
}

// Adjust overwrites the balance (operator top-up) and records the difference.
func (s *service) Adjust(ctx context.Context, accountID string, balance int) (*models.Account, error) {
	if balance < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidAmount, balance)
	}
	prev, found, err := s.repo.SetBalance(ctx, accountID, balance)
	if err != nil {
		return nil, fmt.Errorf("set balance: %w", err)
	}
	if !found {
		return nil, ErrAccountNotFound
	}
	if err := s.repo.AppendEntry(ctx, &models.CreditEntry{
		AccountID:    accountID,
		EntryType:    models.CreditEntryAdjustment,
		Delta:        balance - prev,
		BalanceAfter: balance,
	}); err != nil {
		return nil, fmt.Errorf("record adjustment: %w", err)
	}
	acc, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, ErrAccountNotFound
	}
	return acc, nil
}

func (s *service) Entries(ctx context.Context, accountID string) ([]*models.CreditEntry, error) {
	acc, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, ErrAccountNotFound
	}
	return s.repo.ListEntriesByAccount(ctx, accountID)
}
