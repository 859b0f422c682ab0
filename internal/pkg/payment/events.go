package payment

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/MartinSchenk/CareerBoost/app/models"
)

// Webhook event types the reconciler understands. Anything else is recorded
// and ignored, keeping the endpoint forward compatible with processor event
// types the engine does not handle yet.
const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventSubscriptionCreated = "customer.subscription.created"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
)

// ErrMissingUserID signals an event whose metadata does not carry the
// internal user id the purchase/subscription should be attributed to.
var ErrMissingUserID = errors.New("payment: event metadata has no user_id")

// ErrUnmappedStatus signals a subscription status with no internal
// counterpart. Redelivering such an event can never succeed.
var ErrUnmappedStatus = errors.New("payment: unmapped subscription status")

// EventMetadata is the out-of-band metadata the checkout path tags sessions
// and subscriptions with.
type EventMetadata struct {
	UserID string `json:"user_id"`
}

// EventObject is the typed payload object inside a webhook envelope. Only
// the fields the reconciler acts on are modeled.
type EventObject struct {
	ID           string        `json:"id"`
	Customer     string        `json:"customer"`
	Subscription string        `json:"subscription"`
	Mode         string        `json:"mode"`
	Status       string        `json:"status"`
	Metadata     EventMetadata `json:"metadata"`
}

// Event is a parsed webhook envelope from the payment processor.
type Event struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Object EventObject
}

type eventEnvelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object EventObject `json:"object"`
	} `json:"data"`
}

// ParseEvent decodes and validates a webhook envelope. Required fields are
// checked explicitly so a malformed payload fails fast instead of flowing
// through as zero values.
func ParseEvent(raw []byte) (*Event, error) {
	var env eventEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid webhook payload: %w", err)
	}
	if strings.TrimSpace(env.ID) == "" {
		return nil, errors.New("webhook payload has no event id")
	}
	if strings.TrimSpace(env.Type) == "" {
		return nil, errors.New("webhook payload has no event type")
	}
	return &Event{
		ID:     env.ID,
		Type:   env.Type,
		Object: env.Data.Object,
	}, nil
}

// UserID extracts and parses the internal user id from the event metadata.
// Fails with ErrMissingUserID when the metadata is absent or unparsable.
func (e *Event) UserID() (uint, error) {
	raw := strings.TrimSpace(e.Object.Metadata.UserID)
	if raw == "" {
		return 0, fmt.Errorf("event %s: %w", e.ID, ErrMissingUserID)
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("event %s: user_id %q is not a valid id: %w", e.ID, raw, ErrMissingUserID)
	}
	return uint(id), nil
}

// subscriptionStatusTable maps processor status strings to the internal
// enum. Deliberately explicit: an unmapped status is an error, never a
// silent default.
var subscriptionStatusTable = map[string]string{
	"active":   models.SubscriptionStatusActive,
	"trialing": models.SubscriptionStatusTrialing,
	"canceled": models.SubscriptionStatusCanceled,
	"past_due": models.SubscriptionStatusPastDue,
}

// MapSubscriptionStatus translates the processor's subscription status into
// the internal enum.
func MapSubscriptionStatus(external string) (string, error) {
	status, ok := subscriptionStatusTable[strings.ToLower(strings.TrimSpace(external))]
	if !ok {
		return "", fmt.Errorf("subscription status %q: %w", external, ErrUnmappedStatus)
	}
	return status, nil
}
