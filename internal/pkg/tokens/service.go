package tokens

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/MartinSchenk/CareerBoost/app/models"
	"github.com/MartinSchenk/CareerBoost/internal/pkg/env"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Config carries the billing constants injected into the token service.
type Config struct {
	// WelcomeTokenGrant is the balance a wallet starts with when created
	// through the registration path.
	WelcomeTokenGrant int64
}

// NewConfigFromEnv builds the token service config from environment values.
func NewConfigFromEnv() Config {
	grant, err := strconv.ParseInt(env.GetEnv("WELCOME_TOKEN_GRANT", "25"), 10, 64)
	if err != nil || grant < 0 {
		grant = 25
	}
	return Config{WelcomeTokenGrant: grant}
}

// Service decides whether a user may consume a metered service and performs
// the atomic debit plus ledger write. It is the only internal contract other
// subsystems (CV generation, recommendations, market analysis) consume.
type Service struct {
	repo    Repository
	catalog *Catalog
	cfg     Config
}

// NewService creates a token service from injected collaborators.
func NewService(repo Repository, catalog *Catalog, cfg Config) *Service {
	return &Service{repo: repo, catalog: catalog, cfg: cfg}
}

// NewServiceFromDB creates a token service from a GORM DB handle. cache may
// be nil to disable cost catalog caching.
func NewServiceFromDB(db *gorm.DB, cache *redis.Client, cfg Config) *Service {
	repo := NewRepository(db)
	return NewService(repo, NewCatalog(repo, cache, 0), cfg)
}

// EnsureWalletWithWelcome creates the user's wallet with the configured
// welcome grant if it does not exist yet, and returns the stored wallet.
// The welcome grant is a starting balance, not a ledger row; the ledger
// records only mutations after creation.
func (s *Service) EnsureWalletWithWelcome(ctx context.Context, userID uint) (*models.TokenWallet, error) {
	_ = ctx
	if userID == 0 {
		return nil, fmt.Errorf("user_id is required: %w", ErrValidation)
	}
	_, stored, err := s.repo.CreateWalletIfNotExists(&models.TokenWallet{
		UserID:             userID,
		TokenBalance:       s.cfg.WelcomeTokenGrant,
		InitialGrant:       s.cfg.WelcomeTokenGrant,
		SubscriptionStatus: models.SubscriptionStatusNone,
		SubscriptionLevel:  models.SubscriptionLevelFree,
	})
	return stored, err
}

// GetWallet returns the user's wallet.
func (s *Service) GetWallet(ctx context.Context, userID uint) (*models.TokenWallet, error) {
	_ = ctx
	if userID == 0 {
		return nil, fmt.Errorf("user_id is required: %w", ErrValidation)
	}
	return s.repo.GetWallet(userID)
}

// CanAccess reports whether the user may consume the named service right
// now: unconditionally true with an active subscription, otherwise true when
// the balance covers the service cost.
func (s *Service) CanAccess(ctx context.Context, userID uint, serviceName string) (bool, error) {
	if userID == 0 || strings.TrimSpace(serviceName) == "" {
		return false, fmt.Errorf("user_id and service name are required: %w", ErrValidation)
	}

	wallet, err := s.repo.GetWallet(userID)
	if err != nil {
		return false, err
	}
	if wallet.HasActiveSubscription() {
		return true, nil
	}

	cost, err := s.catalog.GetCost(ctx, serviceName)
	if err != nil {
		return false, err
	}
	return wallet.TokenBalance >= cost, nil
}

// DeductForService charges the user for one use of the named service. With
// an active subscription the call is a no-op success. A zero-cost service
// succeeds without touching the wallet or the ledger. Otherwise the debit
// and its usage ledger row commit atomically, or the call fails with
// ErrInsufficientTokens and nothing changes.
func (s *Service) DeductForService(ctx context.Context, userID uint, serviceName string) error {
	if userID == 0 || strings.TrimSpace(serviceName) == "" {
		return fmt.Errorf("user_id and service name are required: %w", ErrValidation)
	}

	wallet, err := s.repo.GetWallet(userID)
	if err != nil {
		return err
	}
	if wallet.HasActiveSubscription() {
		return nil
	}

	cost, err := s.catalog.GetCost(ctx, serviceName)
	if err != nil {
		return err
	}
	if cost == 0 {
		return nil
	}
	return s.repo.DebitTokens(userID, serviceName, cost)
}

// AddTokens credits amount tokens to the user's wallet together with one
// purchase ledger row. amount must be positive.
func (s *Service) AddTokens(ctx context.Context, userID uint, amount int64) error {
	_ = ctx
	if userID == 0 {
		return fmt.Errorf("user_id is required: %w", ErrValidation)
	}
	if amount <= 0 {
		return fmt.Errorf("amount must be positive, got %d: %w", amount, ErrValidation)
	}
	return s.repo.CreditTokens(userID, amount, time.Now())
}

// DeductTokens debits amount tokens from the user's wallet together with one
// usage ledger row. amount must be positive.
func (s *Service) DeductTokens(ctx context.Context, userID uint, serviceName string, amount int64) error {
	_ = ctx
	if userID == 0 {
		return fmt.Errorf("user_id is required: %w", ErrValidation)
	}
	if amount <= 0 {
		return fmt.Errorf("amount must be positive, got %d: %w", amount, ErrValidation)
	}
	return s.repo.DebitTokens(userID, serviceName, amount)
}

// ListTransactions returns a page of the user's ledger history, newest
// first.
func (s *Service) ListTransactions(ctx context.Context, userID uint, offset, limit int) ([]models.TokenTransaction, error) {
	_ = ctx
	if userID == 0 {
		return nil, fmt.Errorf("user_id is required: %w", ErrValidation)
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListTransactionsByUser(userID, offset, limit)
}

// ReconcileBalance recomputes the wallet's initial grant + ledger sum and
// returns the drift against the stored balance. Zero drift means the wallet
// and the ledger agree. The initial grant is read from the wallet row, not
// from config: wallets created through the payment path carry none.
func (s *Service) ReconcileBalance(ctx context.Context, userID uint) (int64, error) {
	_ = ctx
	wallet, err := s.repo.GetWallet(userID)
	if err != nil {
		return 0, err
	}
	sum, err := s.repo.SumTransactionsByUser(userID)
	if err != nil {
		return 0, err
	}
	return wallet.TokenBalance - (wallet.InitialGrant + sum), nil
}
