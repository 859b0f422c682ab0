package controllers

import (
	"context"
	"errors"
	"time"

	"github.com/MartinSchenk/CareerBoost/internal/pkg/database"
	"github.com/MartinSchenk/CareerBoost/internal/pkg/payment"
	"github.com/MartinSchenk/CareerBoost/internal/pkg/tokens"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = validator.New()

type checkoutRequest struct {
	UserID  uint   `json:"user_id" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
	PriceID string `json:"price_id" validate:"required"`
	Mode    string `json:"mode" validate:"required,oneof=payment subscription"`
}

type cancelSubscriptionRequest struct {
	UserID uint `json:"user_id" validate:"required"`
}

// HandleCreateCheckout links the user with the payment processor if needed
// and opens a hosted checkout session.
func HandleCreateCheckout(c *fiber.Ctx) error {
	var req checkoutRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request_body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_failed", "message": err.Error()})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	gateway := payment.NewGateway(payment.NewClientFromEnv(), tokens.NewRepository(database.GetDB()))
	if _, err := gateway.EnsureCustomer(ctx, req.UserID, req.Email); err != nil {
		return paymentErrorResponse(c, err)
	}

	redirectURL, err := gateway.CreateCheckoutSession(ctx, req.UserID, req.PriceID, req.Mode)
	if err != nil {
		return paymentErrorResponse(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"checkout_url": redirectURL})
}

// HandleCancelSubscription cancels the user's subscription at the processor.
// The wallet status flips to canceled once the processor's webhook arrives.
func HandleCancelSubscription(c *fiber.Ctx) error {
	var req cancelSubscriptionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request_body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_failed", "message": err.Error()})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	gateway := payment.NewGateway(payment.NewClientFromEnv(), tokens.NewRepository(database.GetDB()))
	if err := gateway.CancelSubscription(ctx, req.UserID); err != nil {
		return paymentErrorResponse(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
}

// HandlePaymentWebhook receives processor notifications. The signature is
// verified against the raw body before anything is parsed or stored; a
// failed check returns 401 without touching any state.
func HandlePaymentWebhook(c *fiber.Ctx) error {
	rawBody := c.Body()
	signature := c.Get("X-Gateway-Signature")

	cfg := payment.NewReconcilerConfigFromEnv()
	if !payment.VerifyWebhookSignature(rawBody, signature, cfg.WebhookSecret) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_signature"})
	}

	event, err := payment.ParseEvent(rawBody)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	reconciler := payment.NewReconciler(database.GetDB(), cfg)
	duplicate, err := reconciler.HandleEvent(ctx, event, rawBody)
	if err != nil {
		// Events that can never succeed get a 4xx so the processor stops
		// redelivering them; anything else returns 5xx to trigger a retry.
		// Retrying is safe because the effect and the dedupe record commit
		// together.
		switch {
		case errors.Is(err, payment.ErrMissingUserID):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing_user_metadata"})
		case errors.Is(err, payment.ErrUnmappedStatus):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unmapped_subscription_status"})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "event_processing_failed"})
		}
	}
	if duplicate {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "duplicate": true})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
}

// paymentErrorResponse maps billing errors onto HTTP statuses without
// leaking internals.
func paymentErrorResponse(c *fiber.Ctx, err error) error {
	var gatewayErr *payment.GatewayError
	switch {
	case errors.Is(err, tokens.ErrValidation):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_failed"})
	case errors.Is(err, tokens.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found"})
	case errors.Is(err, payment.ErrCustomerNotLinked):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "customer_not_linked"})
	case errors.As(err, &gatewayErr):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "payment_gateway_unavailable"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_error"})
	}
}
