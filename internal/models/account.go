package models

import "time"

// Seeded demo account. Requests that carry no account resolve to it.
const (
	DefaultAccountID     = "default-user"
	DefaultAccountHandle = "demo"
	DefaultAccountSecret = "demo"
)

// StartingBalance is the credit balance every new account is created with.
const StartingBalance = 100

type Account struct {
	ID         string    `json:"id"`
	Handle     string    `json:"username"`
	SecretHash string    `json:"-"`
	Balance    int       `json:"credits"`
	CreatedAt  time.Time `json:"createdAt"`
}
