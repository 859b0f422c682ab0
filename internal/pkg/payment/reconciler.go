package payment

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/MartinSchenk/CareerBoost/app/models"
	"github.com/MartinSchenk/CareerBoost/internal/pkg/env"
	"github.com/MartinSchenk/CareerBoost/internal/pkg/tokens"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReconcilerConfig carries the constants injected into the webhook
// reconciler.
type ReconcilerConfig struct {
	// WebhookSecret is the shared secret the processor signs payloads with.
	WebhookSecret string
	// PurchaseTokenGrant is the fixed number of tokens one completed
	// checkout purchase credits.
	PurchaseTokenGrant int64
}

// NewReconcilerConfigFromEnv builds the reconciler config from environment
// values.
func NewReconcilerConfigFromEnv() ReconcilerConfig {
	grant, err := strconv.ParseInt(env.GetEnv("PURCHASE_TOKEN_GRANT", "50"), 10, 64)
	if err != nil || grant <= 0 {
		grant = 50
	}
	return ReconcilerConfig{
		WebhookSecret:      env.GetEnv("PAYMENT_WEBHOOK_SECRET", ""),
		PurchaseTokenGrant: grant,
	}
}

// EventStore persists a webhook event together with its effect. ProcessOnce
// records the event id and runs apply as one atomic unit: a redelivered id
// returns duplicate=true without invoking apply, and a failed apply leaves no
// record, so the processor's retry starts from a clean slate.
type EventStore interface {
	ProcessOnce(ctx context.Context, event *Event, rawPayload []byte, apply func(repo tokens.Repository) error) (duplicate bool, err error)
}

type gormEventStore struct {
	db *gorm.DB
}

func (s *gormEventStore) ProcessOnce(ctx context.Context, event *Event, rawPayload []byte, apply func(repo tokens.Repository) error) (duplicate bool, err error) {
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := &models.PaymentWebhookEvent{
			Provider:        models.PaymentProviderStripe,
			ProviderEventID: event.ID,
			EventType:       event.Type,
			PayloadJSON:     string(rawPayload),
		}
		res := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "provider"},
				{Name: "provider_event_id"},
			},
			DoNothing: true,
		}).Create(row)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			duplicate = true
			return nil
		}

		if err := apply(tokens.NewRepository(tx)); err != nil {
			return err
		}

		now := time.Now()
		return tx.Model(&models.PaymentWebhookEvent{}).
			Where("id = ?", row.ID).
			Update("processed_at", &now).Error
	})
	return duplicate, err
}

// Reconciler translates verified processor webhook events into wallet and
// ledger mutations. The idempotency record and the event's effect commit in
// one transaction, so a redelivered event is either fully applied exactly
// once or not recorded at all.
type Reconciler struct {
	store EventStore
	cfg   ReconcilerConfig
}

// NewReconciler creates a webhook reconciler on a GORM DB handle.
func NewReconciler(db *gorm.DB, cfg ReconcilerConfig) *Reconciler {
	return NewReconcilerWithStore(&gormEventStore{db: db}, cfg)
}

// NewReconcilerWithStore creates a webhook reconciler over an injected event
// store.
func NewReconcilerWithStore(store EventStore, cfg ReconcilerConfig) *Reconciler {
	return &Reconciler{store: store, cfg: cfg}
}

// HandleEvent applies one parsed webhook event. Returns duplicate=true when
// the event id was already processed, in which case nothing is mutated. The
// caller must have verified the payload signature already.
func (r *Reconciler) HandleEvent(ctx context.Context, event *Event, rawPayload []byte) (bool, error) {
	return r.store.ProcessOnce(ctx, event, rawPayload, func(repo tokens.Repository) error {
		return r.applyEvent(repo, event)
	})
}

func (r *Reconciler) applyEvent(repo tokens.Repository, event *Event) error {
	switch event.Type {
	case EventCheckoutCompleted:
		// Subscription checkouts are reconciled through the subscription
		// lifecycle events, only one-time purchases credit tokens here.
		if event.Object.Mode != CheckoutModePayment {
			return nil
		}
		userID, err := event.UserID()
		if err != nil {
			return err
		}
		return repo.CreditTokens(userID, r.cfg.PurchaseTokenGrant, time.Now())

	case EventSubscriptionCreated, EventSubscriptionUpdated, EventSubscriptionDeleted:
		userID, err := event.UserID()
		if err != nil {
			return err
		}
		status, err := MapSubscriptionStatus(event.Object.Status)
		if err != nil {
			return fmt.Errorf("event %s: %w", event.ID, err)
		}
		return repo.UpdateSubscription(userID, status, event.Object.Subscription)

	default:
		// Unknown event types are recorded and ignored.
		return nil
	}
}
