package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MartinSchenk/CareerBoost/app/models"
	"github.com/MartinSchenk/CareerBoost/internal/pkg/tokens"
)

// ErrCustomerNotLinked signals a checkout attempt for a user whose wallet
// has no external customer id yet. Callers must run EnsureCustomer first.
var ErrCustomerNotLinked = errors.New("payment: external customer not linked")

// Gateway coordinates the payment processor client with the wallet store:
// it owns the processor-assigned ids persisted on the wallet.
type Gateway struct {
	client *Client
	repo   tokens.Repository
}

// NewGateway creates a gateway over an injected client and token repository.
func NewGateway(client *Client, repo tokens.Repository) *Gateway {
	return &Gateway{client: client, repo: repo}
}

// EnsureCustomer returns the user's external customer id, creating the
// wallet and the processor-side customer as needed. The check-create-persist
// sequence runs under the wallet row lock, so concurrent calls for the same
// user never create a duplicate external customer.
func (g *Gateway) EnsureCustomer(ctx context.Context, userID uint, email string) (string, error) {
	if userID == 0 {
		return "", fmt.Errorf("user_id is required: %w", tokens.ErrValidation)
	}

	_, _, err := g.repo.CreateWalletIfNotExists(&models.TokenWallet{
		UserID:             userID,
		SubscriptionStatus: models.SubscriptionStatusNone,
		SubscriptionLevel:  models.SubscriptionLevelFree,
	})
	if err != nil {
		return "", err
	}

	return g.repo.EnsureExternalCustomer(userID, func() (string, error) {
		return g.client.CreateCustomer(ctx, userID, email)
	})
}

// CreateCheckoutSession opens a checkout session for a linked customer and
// returns the redirect URL. mode must be "payment" or "subscription".
func (g *Gateway) CreateCheckoutSession(ctx context.Context, userID uint, priceID, mode string) (string, error) {
	if userID == 0 || strings.TrimSpace(priceID) == "" {
		return "", fmt.Errorf("user_id and price_id are required: %w", tokens.ErrValidation)
	}
	if mode != CheckoutModePayment && mode != CheckoutModeSubscription {
		return "", fmt.Errorf("mode must be %q or %q: %w", CheckoutModePayment, CheckoutModeSubscription, tokens.ErrValidation)
	}

	wallet, err := g.repo.GetWallet(userID)
	if err != nil {
		return "", err
	}
	if wallet.ExternalCustomerID == "" {
		return "", fmt.Errorf("user %d: %w", userID, ErrCustomerNotLinked)
	}

	return g.client.CreateCheckoutSession(ctx, wallet.ExternalCustomerID, priceID, mode, userID)
}

// CancelSubscription cancels the user's subscription at the processor. The
// status flip to canceled arrives through the webhook path.
func (g *Gateway) CancelSubscription(ctx context.Context, userID uint) error {
	if userID == 0 {
		return fmt.Errorf("user_id is required: %w", tokens.ErrValidation)
	}

	wallet, err := g.repo.GetWallet(userID)
	if err != nil {
		return err
	}
	if wallet.ExternalSubscriptionID == "" {
		return fmt.Errorf("user %d has no subscription: %w", userID, tokens.ErrNotFound)
	}
	return g.client.CancelSubscription(ctx, wallet.ExternalSubscriptionID)
}
