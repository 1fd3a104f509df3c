package payment

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"alcyxob/fitness-booking/internal/domain"
)

func TestHostedCheckout_CreateCheckout(t *testing.T) {
	gw, err := NewHostedCheckout("https://pay.example.com/checkout", "eur", 30*time.Minute)
	if err != nil {
		t.Fatalf("NewHostedCheckout: %v", err)
	}

	booking := &domain.Booking{ID: primitive.NewObjectID(), Price: 12.5}
	co, err := gw.CreateCheckout(context.Background(), booking)
	if err != nil {
		t.Fatalf("CreateCheckout: %v", err)
	}
	if co.Handle == "" {
		t.Fatal("checkout handle is empty")
	}
	if co.Currency != "EUR" || co.Amount != 12.5 {
		t.Errorf("unexpected amount/currency: %v %s", co.Amount, co.Currency)
	}

	u, err := url.Parse(co.URL)
	if err != nil {
		t.Fatalf("checkout url: %v", err)
	}
	q := u.Query()
	if q.Get("handle") != co.Handle || q.Get("amount") != "12.50" || q.Get("booking") != booking.ID.Hex() {
		t.Errorf("unexpected checkout query: %s", u.RawQuery)
	}

	other, _ := gw.CreateCheckout(context.Background(), booking)
	if other.Handle == co.Handle {
		t.Error("handles must be unique per checkout")
	}
}

func TestHostedCheckout_Rejects(t *testing.T) {
	if _, err := NewHostedCheckout("not a url", "USD", time.Minute); !errors.Is(err, ErrGatewayMisconfigured) {
		t.Errorf("error = %v, want ErrGatewayMisconfigured", err)
	}

	gw, _ := NewHostedCheckout("https://pay.example.com", "", time.Minute)
	if _, err := gw.CreateCheckout(context.Background(), &domain.Booking{}); !errors.Is(err, ErrCheckoutFailed) {
		t.Errorf("unsaved booking error = %v, want ErrCheckoutFailed", err)
	}
}

func TestParseOutcome(t *testing.T) {
	for in, want := range map[string]Outcome{"paid": OutcomePaid, " FAILED ": OutcomeFailed} {
		got, err := ParseOutcome(in)
		if err != nil || got != want {
			t.Errorf("ParseOutcome(%q) = (%q, %v), want %q", in, got, err, want)
		}
	}
	if _, err := ParseOutcome("refunded"); !errors.Is(err, ErrUnknownOutcome) {
		t.Errorf("error = %v, want ErrUnknownOutcome", err)
	}
}

func TestVerifyWebhookSecret(t *testing.T) {
	if err := VerifyWebhookSecret("s3cret", "s3cret"); err != nil {
		t.Errorf("matching secret rejected: %v", err)
	}
	if err := VerifyWebhookSecret("s3cret", "guess"); err == nil {
		t.Error("wrong secret accepted")
	}
	if err := VerifyWebhookSecret("", ""); err == nil {
		t.Error("empty configured secret must reject")
	}
}
