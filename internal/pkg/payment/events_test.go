package payment

import (
	"errors"
	"testing"

	"github.com/MartinSchenk/CareerBoost/app/models"
)

func TestParseEvent(t *testing.T) {
	raw := []byte(`{
		"id": "evt_123",
		"type": "checkout.session.completed",
		"data": {
			"object": {
				"id": "cs_456",
				"customer": "cus_789",
				"mode": "payment",
				"metadata": { "user_id": "42" }
			}
		}
	}`)

	ev, err := ParseEvent(raw)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if ev.ID != "evt_123" || ev.Type != "checkout.session.completed" {
		t.Fatalf("unexpected envelope: id=%q type=%q", ev.ID, ev.Type)
	}
	if ev.Object.Customer != "cus_789" || ev.Object.Mode != "payment" {
		t.Fatalf("unexpected object: %+v", ev.Object)
	}

	userID, err := ev.UserID()
	if err != nil {
		t.Fatalf("unexpected user id error: %v", err)
	}
	if userID != 42 {
		t.Fatalf("expected user id 42, got %d", userID)
	}
}

func TestParseEventRejectsMissingFields(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `{{`},
		{"missing id", `{"type":"checkout.session.completed"}`},
		{"missing type", `{"id":"evt_1"}`},
	}

	for _, tt := range tests {
		if _, err := ParseEvent([]byte(tt.raw)); err == nil {
			t.Fatalf("%s: expected parse error", tt.name)
		}
	}
}

func TestEventUserIDMissingMetadata(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"absent", `{"id":"evt_1","type":"t","data":{"object":{}}}`},
		{"empty", `{"id":"evt_1","type":"t","data":{"object":{"metadata":{"user_id":""}}}}`},
		{"non-numeric", `{"id":"evt_1","type":"t","data":{"object":{"metadata":{"user_id":"abc"}}}}`},
		{"zero", `{"id":"evt_1","type":"t","data":{"object":{"metadata":{"user_id":"0"}}}}`},
	}

	for _, tt := range tests {
		ev, err := ParseEvent([]byte(tt.raw))
		if err != nil {
			t.Fatalf("%s: unexpected parse error: %v", tt.name, err)
		}
		if _, err := ev.UserID(); !errors.Is(err, ErrMissingUserID) {
			t.Fatalf("%s: expected ErrMissingUserID, got %v", tt.name, err)
		}
	}
}

func TestMapSubscriptionStatus(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "active", want: models.SubscriptionStatusActive},
		{in: "Active", want: models.SubscriptionStatusActive},
		{in: "trialing", want: models.SubscriptionStatusTrialing},
		{in: "canceled", want: models.SubscriptionStatusCanceled},
		{in: "past_due", want: models.SubscriptionStatusPastDue},
	}

	for _, tt := range tests {
		got, err := MapSubscriptionStatus(tt.in)
		if err != nil {
			t.Fatalf("MapSubscriptionStatus(%q) unexpected error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("MapSubscriptionStatus(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMapSubscriptionStatusUnmapped(t *testing.T) {
	for _, in := range []string{"incomplete", "paused", "something_else", ""} {
		if _, err := MapSubscriptionStatus(in); !errors.Is(err, ErrUnmappedStatus) {
			t.Fatalf("MapSubscriptionStatus(%q): expected ErrUnmappedStatus, got %v", in, err)
		}
	}
}
