// Package payment is the boundary to the external checkout provider.
package payment

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"alcyxob/fitness-booking/internal/domain"
)

var (
	ErrCheckoutFailed       = errors.New("failed to create checkout")
	ErrInvalidSignature     = errors.New("invalid webhook secret")
	ErrUnknownOutcome       = errors.New("unknown payment outcome")
	ErrGatewayMisconfigured = errors.New("payment gateway is not configured")
)

// Outcome is the result reported by the provider's confirmation callback.
type Outcome string

const (
	OutcomePaid   Outcome = "paid"
	OutcomeFailed Outcome = "failed"
)

// Checkout is what the client needs to complete payment for a booking.
type Checkout struct {
	Handle    string    `json:"handle"`
	URL       string    `json:"url"`
	Amount    float64   `json:"amount"`
	Currency  string    `json:"currency"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Gateway creates checkout sessions with the payment provider. The
// provider later reports the outcome through a callback keyed by
// Checkout.Handle.
type Gateway interface {
	CreateCheckout(ctx context.Context, booking *domain.Booking) (*Checkout, error)
}

// hostedCheckout issues handles for a provider-hosted checkout page.
type hostedCheckout struct {
	baseURL  string
	currency string
	ttl      time.Duration
}

// NewHostedCheckout returns a Gateway that redirects clients to baseURL
// with the handle and amount as query parameters. ttl should match the
// scheduler's pending TTL so the page expires with the held seat.
func NewHostedCheckout(baseURL, currency string, ttl time.Duration) (Gateway, error) {
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("%w: checkout base url: %v", ErrGatewayMisconfigured, err)
	}
	if currency == "" {
		currency = "USD"
	}
	return &hostedCheckout{
		baseURL:  baseURL,
		currency: strings.ToUpper(currency),
		ttl:      ttl,
	}, nil
}

func (g *hostedCheckout) CreateCheckout(ctx context.Context, booking *domain.Booking) (*Checkout, error) {
	if booking == nil || booking.ID.IsZero() {
		return nil, ErrCheckoutFailed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	handle := uuid.NewString()
	amount := fmt.Sprintf("%.2f", booking.Price)

	u, err := url.Parse(g.baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCheckoutFailed, err)
	}
	q := u.Query()
	q.Set("handle", handle)
	q.Set("booking", booking.ID.Hex())
	q.Set("amount", amount)
	q.Set("currency", g.currency)
	u.RawQuery = q.Encode()

	return &Checkout{
		Handle:    handle,
		URL:       u.String(),
		Amount:    booking.Price,
		Currency:  g.currency,
		ExpiresAt: time.Now().UTC().Add(g.ttl),
	}, nil
}

// ParseOutcome validates the status string of a callback.
func ParseOutcome(s string) (Outcome, error) {
	switch o := Outcome(strings.ToLower(strings.TrimSpace(s))); o {
	case OutcomePaid, OutcomeFailed:
		return o, nil
	}
	return "", ErrUnknownOutcome
}

// VerifyWebhookSecret checks the shared secret sent by the provider.
// An empty expected secret rejects every callback.
func VerifyWebhookSecret(expected, got string) error {
	if expected == "" || subtle.ConstantTimeCompare([]byte(expected), []byte(got)) != 1 {
		return ErrInvalidSignature
	}
	return nil
}
