package models

import "time"

// Token transaction types. Usage rows carry negative amounts, purchase rows
// positive ones.
const (
	TokenTransactionTypeUsage    = "usage"
	TokenTransactionTypePurchase = "purchase"
)

// TokenTransaction is one row in the append-only token ledger. Rows are
// never updated or deleted; the sum of a user's amounts plus the welcome
// grant must equal the wallet's current balance.
type TokenTransaction struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"not null;index:idx_token_transactions_user,priority:1" json:"user_id"`
	ServiceName string    `gorm:"type:varchar(100);not null;default:''" json:"service_name"`
	Type        string    `gorm:"type:varchar(20);not null;index" json:"type"`
	Amount      int64     `gorm:"not null" json:"amount"`
	CreatedAt   time.Time `gorm:"autoCreateTime;index:idx_token_transactions_user,priority:2" json:"created_at"`
}
