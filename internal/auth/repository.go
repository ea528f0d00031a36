package auth

import (
	"context"

	"github.com/mithix/backend/internal/models"
)

// Repository is the slice of the record store that auth needs. Both the
// in-memory and Postgres stores satisfy it.
type Repository interface {
	GetAccount(ctx context.Context, id string) (*models.Account, error)
	GetAccountByHandle(ctx context.Context, handle string) (*models.Account, error)
	CreateAccount(ctx context.Context, handle, secretHash string) (*models.Account, error)
	EnsureAccount(ctx context.Context, a *models.Account) error
}
