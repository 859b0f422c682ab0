package tokens

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MartinSchenk/CareerBoost/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides DB operations for wallets, the token ledger and the
// cost catalog. Every balance mutation funnels through here so the row
// locking discipline cannot be bypassed by individual callers.
type Repository interface {
	GetWallet(userID uint) (*models.TokenWallet, error)
	CreateWalletIfNotExists(wallet *models.TokenWallet) (bool, *models.TokenWallet, error)
	EnsureExternalCustomer(userID uint, create func() (string, error)) (string, error)
	UpdateSubscription(userID uint, status, externalSubscriptionID string) error
	GetActiveServicePrice(serviceName string) (*models.ServicePrice, error)
	CreditTokens(userID uint, amount int64, purchasedAt time.Time) error
	DebitTokens(userID uint, serviceName string, amount int64) error
	ListTransactionsByUser(userID uint, offset, limit int) ([]models.TokenTransaction, error)
	SumTransactionsByUser(userID uint) (int64, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a token repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetWallet(userID uint) (*models.TokenWallet, error) {
	var w models.TokenWallet
	err := r.db.Where("user_id = ?", userID).First(&w).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("wallet for user %d: %w", userID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *gormRepository) CreateWalletIfNotExists(wallet *models.TokenWallet) (bool, *models.TokenWallet, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(wallet)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.TokenWallet
	if err := r.db.Where("user_id = ?", wallet.UserID).First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

// EnsureExternalCustomer returns the wallet's linked customer id, invoking
// create under the locked wallet row when no id is linked yet. Concurrent
// callers for the same user serialize on the row lock, so create runs at most
// once per wallet.
func (r *gormRepository) EnsureExternalCustomer(userID uint, create func() (string, error)) (string, error) {
	var customerID string
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var w models.TokenWallet
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userID).
			First(&w).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("wallet for user %d: %w", userID, ErrNotFound)
		}
		if err != nil {
			return err
		}

		if w.ExternalCustomerID != "" {
			customerID = w.ExternalCustomerID
			return nil
		}

		id, err := create()
		if err != nil {
			return err
		}
		if err := tx.Model(&models.TokenWallet{}).Where("id = ?", w.ID).
			Update("external_customer_id", id).Error; err != nil {
			return err
		}
		customerID = id
		return nil
	})
	return customerID, err
}

func (r *gormRepository) UpdateSubscription(userID uint, status, externalSubscriptionID string) error {
	updates := map[string]interface{}{
		"subscription_status": status,
	}
	if externalSubscriptionID != "" {
		updates["external_subscription_id"] = externalSubscriptionID
	}
	res := r.db.Model(&models.TokenWallet{}).Where("user_id = ?", userID).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("wallet for user %d: %w", userID, ErrNotFound)
	}
	return nil
}

func (r *gormRepository) GetActiveServicePrice(serviceName string) (*models.ServicePrice, error) {
	name := strings.ToLower(strings.TrimSpace(serviceName))
	var p models.ServicePrice
	err := r.db.Where("service_name = ? AND is_active = ?", name, true).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("service %q: %w", serviceName, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreditTokens adds amount to the user's balance and appends one purchase
// ledger row. Both writes commit or roll back as one unit; the wallet row is
// locked for the duration of the transaction.
func (r *gormRepository) CreditTokens(userID uint, amount int64, purchasedAt time.Time) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var w models.TokenWallet
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userID).
			First(&w).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("wallet for user %d: %w", userID, ErrNotFound)
		}
		if err != nil {
			return err
		}

		if err := tx.Model(&models.TokenWallet{}).Where("id = ?", w.ID).Updates(map[string]interface{}{
			"token_balance":          w.TokenBalance + amount,
			"last_token_purchase_at": purchasedAt,
		}).Error; err != nil {
			return err
		}

		return tx.Create(&models.TokenTransaction{
			UserID: userID,
			Type:   models.TokenTransactionTypePurchase,
			Amount: amount,
		}).Error
	})
}

// DebitTokens subtracts amount from the user's balance and appends one usage
// ledger row with a negative amount. Fails with ErrInsufficientTokens and
// performs no mutation when the locked balance is below amount.
func (r *gormRepository) DebitTokens(userID uint, serviceName string, amount int64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var w models.TokenWallet
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userID).
			First(&w).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("wallet for user %d: %w", userID, ErrNotFound)
		}
		if err != nil {
			return err
		}

		if w.TokenBalance < amount {
			return fmt.Errorf("balance %d, need %d: %w", w.TokenBalance, amount, ErrInsufficientTokens)
		}

		if err := tx.Model(&models.TokenWallet{}).Where("id = ?", w.ID).
			Update("token_balance", w.TokenBalance-amount).Error; err != nil {
			return err
		}

		return tx.Create(&models.TokenTransaction{
			UserID:      userID,
			ServiceName: strings.ToLower(strings.TrimSpace(serviceName)),
			Type:        models.TokenTransactionTypeUsage,
			Amount:      -amount,
		}).Error
	})
}

func (r *gormRepository) ListTransactionsByUser(userID uint, offset, limit int) ([]models.TokenTransaction, error) {
	var rows []models.TokenTransaction
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Offset(offset).Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *gormRepository) SumTransactionsByUser(userID uint) (int64, error) {
	var sum int64
	err := r.db.Model(&models.TokenTransaction{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&sum).Error
	if err != nil {
		return 0, err
	}
	return sum, nil
}
