package payment

import (
	"context"
	"testing"

	"github.com/MartinSchenk/CareerBoost/app/models"
	"github.com/MartinSchenk/CareerBoost/internal/pkg/tokens"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestReconciler() *Reconciler {
	return &Reconciler{cfg: ReconcilerConfig{PurchaseTokenGrant: 50}}
}

// memEventStore honors the ProcessOnce contract in memory: a seen id
// short-circuits as a duplicate, a failed apply records nothing.
type memEventStore struct {
	repo tokens.Repository
	seen map[string]struct{}
}

func newMemEventStore(repo tokens.Repository) *memEventStore {
	return &memEventStore{repo: repo, seen: make(map[string]struct{})}
}

func (s *memEventStore) ProcessOnce(ctx context.Context, event *Event, rawPayload []byte, apply func(repo tokens.Repository) error) (bool, error) {
	if _, ok := s.seen[event.ID]; ok {
		return true, nil
	}
	if err := apply(s.repo); err != nil {
		return false, err
	}
	s.seen[event.ID] = struct{}{}
	return false, nil
}

func mustParseEvent(t *testing.T, raw string) *Event {
	t.Helper()
	ev, err := ParseEvent([]byte(raw))
	require.NoError(t, err)
	return ev
}

func TestApplyEventPurchaseCompleted(t *testing.T) {
	store := newWalletStore()
	store.wallets[42] = &models.TokenWallet{UserID: 42, TokenBalance: 10}

	ev := mustParseEvent(t, `{
		"id": "evt_1",
		"type": "checkout.session.completed",
		"data": {"object": {"mode": "payment", "metadata": {"user_id": "42"}}}
	}`)

	require.NoError(t, newTestReconciler().applyEvent(store, ev))

	wallet := store.wallets[42]
	assert.Equal(t, int64(60), wallet.TokenBalance)
	assert.NotNil(t, wallet.LastTokenPurchaseAt)

	require.Len(t, store.ledger, 1)
	assert.Equal(t, models.TokenTransactionTypePurchase, store.ledger[0].Type)
	assert.Equal(t, int64(50), store.ledger[0].Amount)
}

func TestApplyEventSubscriptionCheckoutDoesNotCredit(t *testing.T) {
	store := newWalletStore()
	store.wallets[42] = &models.TokenWallet{UserID: 42, TokenBalance: 10}

	ev := mustParseEvent(t, `{
		"id": "evt_1",
		"type": "checkout.session.completed",
		"data": {"object": {"mode": "subscription", "metadata": {"user_id": "42"}}}
	}`)

	require.NoError(t, newTestReconciler().applyEvent(store, ev))
	assert.Equal(t, int64(10), store.wallets[42].TokenBalance)
	assert.Empty(t, store.ledger)
}

func TestApplyEventPurchaseUnknownWallet(t *testing.T) {
	ev := mustParseEvent(t, `{
		"id": "evt_1",
		"type": "checkout.session.completed",
		"data": {"object": {"mode": "payment", "metadata": {"user_id": "99"}}}
	}`)

	err := newTestReconciler().applyEvent(newWalletStore(), ev)
	require.ErrorIs(t, err, tokens.ErrNotFound)
}

func TestApplyEventPurchaseMissingMetadata(t *testing.T) {
	ev := mustParseEvent(t, `{
		"id": "evt_1",
		"type": "checkout.session.completed",
		"data": {"object": {"mode": "payment"}}
	}`)

	err := newTestReconciler().applyEvent(newWalletStore(), ev)
	require.ErrorIs(t, err, ErrMissingUserID)
}

func TestApplyEventSubscriptionUpdate(t *testing.T) {
	store := newWalletStore()
	store.wallets[42] = &models.TokenWallet{UserID: 42, SubscriptionStatus: models.SubscriptionStatusNone}

	ev := mustParseEvent(t, `{
		"id": "evt_2",
		"type": "customer.subscription.updated",
		"data": {"object": {"subscription": "sub_7", "status": "active", "metadata": {"user_id": "42"}}}
	}`)

	require.NoError(t, newTestReconciler().applyEvent(store, ev))

	wallet := store.wallets[42]
	assert.Equal(t, models.SubscriptionStatusActive, wallet.SubscriptionStatus)
	assert.Equal(t, "sub_7", wallet.ExternalSubscriptionID)
}

func TestApplyEventSubscriptionUnmappedStatus(t *testing.T) {
	store := newWalletStore()
	store.wallets[42] = &models.TokenWallet{UserID: 42, SubscriptionStatus: models.SubscriptionStatusActive}

	ev := mustParseEvent(t, `{
		"id": "evt_3",
		"type": "customer.subscription.updated",
		"data": {"object": {"subscription": "sub_7", "status": "hibernating", "metadata": {"user_id": "42"}}}
	}`)

	err := newTestReconciler().applyEvent(store, ev)
	require.ErrorIs(t, err, ErrUnmappedStatus)
	assert.Equal(t, models.SubscriptionStatusActive, store.wallets[42].SubscriptionStatus)
}

func TestApplyEventSubscriptionResume(t *testing.T) {
	store := newWalletStore()
	store.wallets[42] = &models.TokenWallet{UserID: 42, SubscriptionStatus: models.SubscriptionStatusCanceled}

	ev := mustParseEvent(t, `{
		"id": "evt_4",
		"type": "customer.subscription.updated",
		"data": {"object": {"subscription": "sub_7", "status": "active", "metadata": {"user_id": "42"}}}
	}`)

	require.NoError(t, newTestReconciler().applyEvent(store, ev))
	assert.Equal(t, models.SubscriptionStatusActive, store.wallets[42].SubscriptionStatus)
}

func TestHandleEventRedeliveredPurchaseCreditsOnce(t *testing.T) {
	store := newWalletStore()
	store.wallets[42] = &models.TokenWallet{UserID: 42, TokenBalance: 10}
	rec := NewReconcilerWithStore(newMemEventStore(store), ReconcilerConfig{PurchaseTokenGrant: 50})

	raw := `{
		"id": "evt_replay",
		"type": "checkout.session.completed",
		"data": {"object": {"mode": "payment", "metadata": {"user_id": "42"}}}
	}`
	ev := mustParseEvent(t, raw)

	dup, err := rec.HandleEvent(context.Background(), ev, []byte(raw))
	require.NoError(t, err)
	assert.False(t, dup)

	// redelivery of the same event id must be a detected no-op
	dup, err = rec.HandleEvent(context.Background(), ev, []byte(raw))
	require.NoError(t, err)
	assert.True(t, dup)

	assert.Equal(t, int64(60), store.wallets[42].TokenBalance)
	require.Len(t, store.ledger, 1)
	assert.Equal(t, int64(50), store.ledger[0].Amount)
}

func TestHandleEventFailedApplyIsRetriable(t *testing.T) {
	store := newWalletStore()
	rec := NewReconcilerWithStore(newMemEventStore(store), ReconcilerConfig{PurchaseTokenGrant: 50})

	raw := `{
		"id": "evt_retry",
		"type": "checkout.session.completed",
		"data": {"object": {"mode": "payment", "metadata": {"user_id": "42"}}}
	}`
	ev := mustParseEvent(t, raw)

	// no wallet yet: the effect fails and the event must not be recorded
	_, err := rec.HandleEvent(context.Background(), ev, []byte(raw))
	require.ErrorIs(t, err, tokens.ErrNotFound)

	// the processor redelivers after the wallet exists; now it applies
	store.wallets[42] = &models.TokenWallet{UserID: 42}
	dup, err := rec.HandleEvent(context.Background(), ev, []byte(raw))
	require.NoError(t, err)
	assert.False(t, dup)
	assert.Equal(t, int64(50), store.wallets[42].TokenBalance)
}

func TestApplyEventUnknownTypeIsIgnored(t *testing.T) {
	store := newWalletStore()
	store.wallets[42] = &models.TokenWallet{UserID: 42, TokenBalance: 10}

	ev := mustParseEvent(t, `{
		"id": "evt_5",
		"type": "invoice.finalized",
		"data": {"object": {"metadata": {"user_id": "42"}}}
	}`)

	require.NoError(t, newTestReconciler().applyEvent(store, ev))
	assert.Equal(t, int64(10), store.wallets[42].TokenBalance)
	assert.Empty(t, store.ledger)
}
