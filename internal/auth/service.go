package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/mithix/backend/internal/models"
	"github.com/mithix/backend/internal/repository"
)

var (
	// ErrDuplicateHandle is returned when registering with a handle that already exists.
	ErrDuplicateHandle    = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

const tokenTTL = 24 * time.Hour

type Service interface {
	Register(ctx context.Context, handle, secret string) (*models.Account, error)
	Login(ctx context.Context, handle, secret string) (string, *models.Account, error)
	ValidateToken(ctx context.Context, token string) (string, error)
	EnsureDefaultAccount(ctx context.Context) error
}

type service struct {
	repo   Repository
	secret []byte
	now    func() time.Time
}

func NewService(repo Repository, jwtSecret string) *service {
	if jwtSecret == "" {
		jwtSecret = "dev-secret-change-me"
	}
	return &service{repo: repo, secret: []byte(jwtSecret), now: time.Now}
}

// Ensure service implements Service at compile time.
var _ Service = (*service)(nil)

func (s *service) Register(ctx context.Context, handle, secret string) (*models.Account, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	acc, err := s.repo.CreateAccount(ctx, handle, string(hash))
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateHandle) {
			return nil, ErrDuplicateHandle
		}
		return nil, err
	}
	return acc, nil
}

func (s *service) Login(ctx context.Context, handle, secret string) (string, *models.Account, error) {
	acc, err := s.repo.GetAccountByHandle(ctx, handle)
	if err != nil {
		return "", nil, err
	}
	if acc == nil {
		return "", nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.SecretHash), []byte(secret)); err != nil {
		return "", nil, ErrInvalidCredentials
	}
	token, err := s.issueToken(acc.ID)
	if err != nil {
		return "", nil, err
	}
	return token, acc, nil
}

// EnsureDefaultAccount seeds the demo account used by anonymous requests.
func (s *service) EnsureDefaultAccount(ctx context.Context) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(models.DefaultAccountSecret), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	err = s.repo.EnsureAccount(ctx, &models.Account{
		ID:         models.DefaultAccountID,
		Handle:     models.DefaultAccountHandle,
		SecretHash: string(hash),
		Balance:    models.StartingBalance,
	})
	if err != nil {
		return fmt.Errorf("seed default account: %w", err)
	}
	return nil
}

func (s *service) issueToken(accountID string) (string, error) {
	now := s.now()
	c := jwt.RegisteredClaims{
		Subject:   accountID,
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		IssuedAt:  jwt.NewNumericDate(now),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return tok.SignedString(s.secret)
}

func (s *service) ValidateToken(ctx context.Context, token string) (string, error) {
	tok, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	c, ok := tok.Claims.(*jwt.RegisteredClaims)
	if !ok || !tok.Valid || c.Subject == "" {
		return "", ErrInvalidToken
	}
	return c.Subject, nil
}
