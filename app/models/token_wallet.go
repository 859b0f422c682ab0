package models

import "time"

// Subscription status constants mirroring the payment processor's
// subscription lifecycle.
const (
	SubscriptionStatusNone     = "none"
	SubscriptionStatusActive   = "active"
	SubscriptionStatusTrialing = "trialing"
	SubscriptionStatusCanceled = "canceled"
	SubscriptionStatusPastDue  = "past_due"
)

// Subscription level constants (internal tier identifiers).
const (
	SubscriptionLevelFree    = "free"
	SubscriptionLevelStarter = "starter"
	SubscriptionLevelPro     = "pro"
)

// TokenWallet holds a user's current token balance and subscription state.
// It is the single source of truth for "current" billing state; the
// TokenTransaction ledger holds the history. One row per user, created
// lazily on the first billing-relevant action and never deleted.
// InitialGrant records the balance the wallet was born with (the welcome
// grant on the registration path, zero on the payment path), so an audit can
// recompute the expected balance from the ledger alone.
type TokenWallet struct {
	ID                     uint       `gorm:"primaryKey" json:"id"`
	UserID                 uint       `gorm:"not null;uniqueIndex:ux_token_wallets_user" json:"user_id"`
	TokenBalance           int64      `gorm:"not null;default:0" json:"token_balance"`
	InitialGrant           int64      `gorm:"not null;default:0" json:"initial_grant"`
	SubscriptionStatus     string     `gorm:"type:varchar(32);not null;default:'none';index" json:"subscription_status"`
	SubscriptionLevel      string     `gorm:"type:varchar(50);not null;default:'free'" json:"subscription_level"`
	ExternalCustomerID     string     `gorm:"type:varchar(191);default:'';index" json:"external_customer_id"`
	ExternalSubscriptionID string     `gorm:"type:varchar(191);default:''" json:"external_subscription_id"`
	LastTokenPurchaseAt    *time.Time `gorm:"type:timestamp;default:null" json:"last_token_purchase_at,omitempty"`
	SubscriptionEndsAt     *time.Time `gorm:"type:timestamp;default:null" json:"subscription_ends_at,omitempty"`
	CreatedAt              time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// HasActiveSubscription reports whether the wallet's subscription currently
// entitles the user to unmetered service access.
func (w *TokenWallet) HasActiveSubscription() bool {
	return w.SubscriptionStatus == SubscriptionStatusActive
}
