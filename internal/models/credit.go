package models

import "time"

// Credit ledger entry types.
const (
	CreditEntryHold       = "hold"
	CreditEntryRefund     = "refund"
	CreditEntryCharge     = "charge"
	CreditEntryAdjustment = "adjustment"
)

// CreditEntry is one append-only row of an account's credit history.
// Delta is signed: holds are negative, refunds positive, charges zero.
type CreditEntry struct {
	ID           string    `json:"id"`
	AccountID    string    `json:"accountId"`
	RecordID     *string   `json:"recordId"`
	EntryType    string    `json:"entryType"`
	Delta        int       `json:"delta"`
	BalanceAfter int       `json:"balanceAfter"`
	CreatedAt    time.Time `json:"createdAt"`
}
