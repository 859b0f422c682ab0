package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MartinSchenk/CareerBoost/internal/pkg/env"
)

const (
	defaultGatewayAPIBaseURL = "https://api.stripe.com"

	maxAttempts       = 3
	initialRetryDelay = 500 * time.Millisecond
)

// CheckoutMode selects between a one-time token purchase and a recurring
// subscription checkout.
const (
	CheckoutModePayment      = "payment"
	CheckoutModeSubscription = "subscription"
)

// GatewayError wraps a failed payment-API call with enough context to
// diagnose it without leaking credentials.
type GatewayError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *GatewayError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("payment gateway %s failed: status=%d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("payment gateway %s failed: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// Client is a thin HTTP client for the external payment processor. It covers
// only the customer/session/subscription lifecycle calls the billing core
// needs.
type Client struct {
	APIKey     string
	APIBaseURL string
	SuccessURL string
	CancelURL  string

	HTTPClient *http.Client
	// RetryDelay is the first retry backoff; it doubles per attempt.
	// Zero means the default.
	RetryDelay time.Duration
}

// NewClientFromEnv builds a gateway client from environment configuration.
func NewClientFromEnv() *Client {
	return &Client{
		APIKey:     strings.TrimSpace(env.GetEnv("PAYMENT_API_KEY", "")),
		APIBaseURL: strings.TrimRight(env.GetEnv("PAYMENT_API_BASE_URL", defaultGatewayAPIBaseURL), "/"),
		SuccessURL: strings.TrimSpace(env.GetEnv("PAYMENT_CHECKOUT_SUCCESS_URL", "")),
		CancelURL:  strings.TrimSpace(env.GetEnv("PAYMENT_CHECKOUT_CANCEL_URL", "")),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type customerResponse struct {
	ID string `json:"id"`
}

type checkoutSessionResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// CreateCustomer registers the user with the payment processor and returns
// the processor-assigned customer id.
func (c *Client) CreateCustomer(ctx context.Context, userID uint, email string) (string, error) {
	if strings.TrimSpace(c.APIKey) == "" {
		return "", errors.New("PAYMENT_API_KEY is not configured")
	}

	form := url.Values{}
	form.Set("email", strings.TrimSpace(email))
	form.Set("metadata[user_id]", strconv.FormatUint(uint64(userID), 10))

	body, err := c.postForm(ctx, "create-customer", "/v1/customers", form)
	if err != nil {
		return "", err
	}

	var out customerResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", &GatewayError{Op: "create-customer", Err: err}
	}
	if strings.TrimSpace(out.ID) == "" {
		return "", &GatewayError{Op: "create-customer", Err: errors.New("response has empty customer id")}
	}
	return out.ID, nil
}

// CreateCheckoutSession opens a hosted checkout session for the given
// customer and returns the redirect URL. The internal user id travels as
// session metadata so the webhook path can attribute the purchase.
func (c *Client) CreateCheckoutSession(ctx context.Context, customerID, priceID, mode string, userID uint) (string, error) {
	if strings.TrimSpace(c.APIKey) == "" {
		return "", errors.New("PAYMENT_API_KEY is not configured")
	}
	if c.SuccessURL == "" || c.CancelURL == "" {
		return "", errors.New("PAYMENT_CHECKOUT_SUCCESS_URL/PAYMENT_CHECKOUT_CANCEL_URL are not configured")
	}

	form := url.Values{}
	form.Set("customer", customerID)
	form.Set("mode", mode)
	form.Set("line_items[0][price]", priceID)
	form.Set("line_items[0][quantity]", "1")
	form.Set("success_url", c.SuccessURL)
	form.Set("cancel_url", c.CancelURL)
	form.Set("metadata[user_id]", strconv.FormatUint(uint64(userID), 10))

	body, err := c.postForm(ctx, "create-checkout-session", "/v1/checkout/sessions", form)
	if err != nil {
		return "", err
	}

	var out checkoutSessionResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", &GatewayError{Op: "create-checkout-session", Err: err}
	}
	if strings.TrimSpace(out.URL) == "" {
		return "", &GatewayError{Op: "create-checkout-session", Err: errors.New("response has empty redirect url")}
	}
	return out.URL, nil
}

// CancelSubscription cancels the subscription at the processor. Failures are
// wrapped and surfaced, never swallowed.
func (c *Client) CancelSubscription(ctx context.Context, externalSubscriptionID string) error {
	if strings.TrimSpace(c.APIKey) == "" {
		return errors.New("PAYMENT_API_KEY is not configured")
	}
	subID := strings.TrimSpace(externalSubscriptionID)
	if subID == "" {
		return errors.New("external subscription id is required")
	}

	_, err := c.do(ctx, "cancel-subscription", http.MethodDelete, "/v1/subscriptions/"+url.PathEscape(subID), "")
	return err
}

func (c *Client) postForm(ctx context.Context, op, path string, form url.Values) ([]byte, error) {
	return c.do(ctx, op, http.MethodPost, path, form.Encode())
}

// do performs one gateway call with bounded retries. Transport errors, 5xx
// and 429 responses are retried with a doubling delay; everything else is
// surfaced on the first attempt. Retries stay at this boundary only, the
// balance-mutation transactions above are never retried. All attempts of a
// POST share one Idempotency-Key so a retried request cannot create a second
// customer or session at the processor.
func (c *Client) do(ctx context.Context, op, method, path, payload string) ([]byte, error) {
	var lastErr error
	delay := c.RetryDelay
	if delay <= 0 {
		delay = initialRetryDelay
	}
	idempotencyKey := uuid.New().String()

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, method, c.APIBaseURL+path, strings.NewReader(payload))
		if err != nil {
			return nil, &GatewayError{Op: op, Err: err}
		}
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
		req.Header.Set("Accept", "application/json")
		if payload != "" {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
		if method == http.MethodPost {
			req.Header.Set("Idempotency-Key", idempotencyKey)
		}

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			lastErr = err
		} else {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
			resp.Body.Close()

			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return body, nil
			}
			lastErr = fmt.Errorf("body=%s", string(body))
			if !isRetryableStatus(resp.StatusCode) {
				return nil, &GatewayError{Op: op, StatusCode: resp.StatusCode, Err: lastErr}
			}
			lastErr = &GatewayError{Op: op, StatusCode: resp.StatusCode, Err: lastErr}
		}

		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				return nil, &GatewayError{Op: op, Err: ctx.Err()}
			case <-time.After(delay):
			}
			delay *= 2
		}
	}

	if ge, ok := lastErr.(*GatewayError); ok {
		return nil, ge
	}
	return nil, &GatewayError{Op: op, Err: lastErr}
}

func isRetryableStatus(status int) bool {
	return status >= 500 || status == http.StatusTooManyRequests
}
