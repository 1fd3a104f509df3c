package schedule

import (
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"alcyxob/fitness-booking/internal/domain"
)

var now = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

func nextMonday(t *testing.T, tpl *domain.ClassTemplate) domain.SessionOccurrence {
	t.Helper()
	occ, err := Occurrence(tpl, "2026-10-19", time.UTC)
	if err != nil {
		t.Fatalf("Occurrence: %v", err)
	}
	return occ
}

func TestSeatsRemaining(t *testing.T) {
	tpl := mondayClass()
	occ := nextMonday(t, tpl)
	other := primitive.NewObjectID()

	book := func(status domain.BookingStatus, pay domain.PaymentStatus) domain.Booking {
		b := NewBooking(tpl, occ, primitive.NewObjectID(), now)
		b.Status, b.PaymentStatus = status, pay
		return *b
	}
	elsewhere := book(domain.BookingUpcoming, domain.PaymentPaid)
	elsewhere.TemplateID = other

	tests := []struct {
		name     string
		bookings []domain.Booking
		want     int
	}{
		{"empty", nil, 2},
		{"one pending", []domain.Booking{book(domain.BookingUpcoming, domain.PaymentPending)}, 1},
		{"cancelled frees seat", []domain.Booking{book(domain.BookingCancelled, domain.PaymentPaid)}, 2},
		{"failed payment frees seat", []domain.Booking{book(domain.BookingUpcoming, domain.PaymentFailed)}, 2},
		{"completed holds seat", []domain.Booking{book(domain.BookingCompleted, domain.PaymentPaid)}, 1},
		{"other slot ignored", []domain.Booking{elsewhere}, 2},
		{"floored at zero", []domain.Booking{
			book(domain.BookingUpcoming, domain.PaymentPaid),
			book(domain.BookingUpcoming, domain.PaymentPaid),
			book(domain.BookingUpcoming, domain.PaymentPaid),
		}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SeatsRemaining(occ, tt.bookings); got != tt.want {
				t.Errorf("SeatsRemaining = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCanReserve_PastSession(t *testing.T) {
	tpl := mondayClass()
	occ := nextMonday(t, tpl)

	if !CanReserve(occ, nil, now) {
		t.Fatal("future session with free seats should be reservable")
	}
	if CanReserve(occ, nil, occ.Start) {
		t.Error("session starting now should not be reservable")
	}
	if CanReserve(occ, nil, occ.End.Add(time.Hour)) {
		t.Error("elapsed session should not be reservable")
	}
}

func TestCheckReservable(t *testing.T) {
	tpl := mondayClass()
	occ := nextMonday(t, tpl)
	alice, bob, carol := primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID()

	var slot []domain.Booking
	for _, u := range []primitive.ObjectID{alice, bob} {
		if err := CheckReservable(occ, u, slot, now); err != nil {
			t.Fatalf("reserve for %s: %v", u.Hex(), err)
		}
		slot = append(slot, *NewBooking(tpl, occ, u, now))
	}

	if err := CheckReservable(occ, carol, slot, now); !errors.Is(err, ErrSlotFull) {
		t.Errorf("third reservation error = %v, want ErrSlotFull", err)
	}
	if err := CheckReservable(occ, alice, slot, now); !errors.Is(err, ErrAlreadyBooked) {
		t.Errorf("duplicate reservation error = %v, want ErrAlreadyBooked", err)
	}
	if err := CheckReservable(occ, carol, nil, occ.Start.Add(time.Minute)); !errors.Is(err, ErrPastSession) {
		t.Errorf("past reservation error = %v, want ErrPastSession", err)
	}
}

func TestPaymentTransitions(t *testing.T) {
	tpl := mondayClass()
	b := NewBooking(tpl, nextMonday(t, tpl), primitive.NewObjectID(), now)
	if !b.Active {
		t.Fatal("new booking should be active")
	}

	changed, err := ConfirmPayment(b, now)
	if err != nil || !changed {
		t.Fatalf("ConfirmPayment = (%v, %v), want (true, nil)", changed, err)
	}
	if b.PaymentStatus != domain.PaymentPaid || b.PaidAt == nil {
		t.Fatalf("booking not paid: %+v", b)
	}

	// Webhook redelivery.
	changed, err = ConfirmPayment(b, now.Add(time.Minute))
	if err != nil || changed {
		t.Errorf("second ConfirmPayment = (%v, %v), want (false, nil)", changed, err)
	}
	if _, err := FailPayment(b, now); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("FailPayment after paid error = %v, want ErrInvalidTransition", err)
	}

	failed := NewBooking(tpl, nextMonday(t, tpl), primitive.NewObjectID(), now)
	if changed, _ := FailPayment(failed, now); !changed {
		t.Fatal("FailPayment on pending should change state")
	}
	if failed.Active || failed.OccupiesSeat() {
		t.Error("failed booking must not hold a seat")
	}

	// A late capture is kept for the refund but never takes the seat back.
	changed, err = ConfirmPayment(failed, now.Add(time.Hour))
	if err != nil || !changed {
		t.Fatalf("ConfirmPayment after failure = (%v, %v), want (true, nil)", changed, err)
	}
	if failed.PaymentStatus != domain.PaymentPaid || failed.PaidAt == nil {
		t.Errorf("late payment not recorded: %+v", failed)
	}
	if failed.Status != domain.BookingCancelled || failed.CancelledAt == nil {
		t.Errorf("status = %s, want cancelled", failed.Status)
	}
	if failed.Active || failed.OccupiesSeat() {
		t.Error("late payment must not revive the seat")
	}
	if changed, err := ConfirmPayment(failed, now.Add(2*time.Hour)); err != nil || changed {
		t.Errorf("redelivered late payment = (%v, %v), want (false, nil)", changed, err)
	}
}

func TestCancel(t *testing.T) {
	tpl := mondayClass()
	occ := nextMonday(t, tpl)

	b := NewBooking(tpl, occ, primitive.NewObjectID(), now)
	if err := Cancel(b, now); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if b.Status != domain.BookingCancelled || b.CancelledAt == nil || b.Active {
		t.Errorf("unexpected state after cancel: %+v", b)
	}
	if err := Cancel(b, now); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("double cancel error = %v, want ErrInvalidTransition", err)
	}

	late := NewBooking(tpl, occ, primitive.NewObjectID(), now)
	if err := Cancel(late, occ.Start.Add(time.Minute)); !errors.Is(err, ErrPastSession) {
		t.Errorf("cancel after start error = %v, want ErrPastSession", err)
	}
	if late.Status != domain.BookingUpcoming {
		t.Error("failed cancel must not change status")
	}
}

func TestCheckRebookable(t *testing.T) {
	tpl := mondayClass()
	occ := nextMonday(t, tpl)
	user := primitive.NewObjectID()

	if _, err := CheckRebookable(user, occ.Key(), nil); !errors.Is(err, ErrNotCancelled) {
		t.Errorf("rebook without history error = %v, want ErrNotCancelled", err)
	}

	first := NewBooking(tpl, occ, user, now)
	first.ID = primitive.NewObjectID()
	slot := []domain.Booking{*first}
	if _, err := CheckRebookable(user, occ.Key(), slot); !errors.Is(err, ErrNotCancelled) {
		t.Errorf("rebook over upcoming error = %v, want ErrNotCancelled", err)
	}

	if err := Cancel(&slot[0], now.Add(time.Minute)); err != nil {
		t.Fatal(err)
	}
	replaced, err := CheckRebookable(user, occ.Key(), slot)
	if err != nil {
		t.Fatalf("CheckRebookable: %v", err)
	}
	if replaced.ID != first.ID {
		t.Errorf("replaced booking = %s, want %s", replaced.ID.Hex(), first.ID.Hex())
	}
}

func TestCompleteAndExpire(t *testing.T) {
	tpl := mondayClass()
	occ := nextMonday(t, tpl)
	after := occ.End.Add(time.Minute)

	paid := NewBooking(tpl, occ, primitive.NewObjectID(), now)
	_, _ = ConfirmPayment(paid, now)
	if Complete(paid, occ.Start) {
		t.Error("session in progress must not complete")
	}
	if !Complete(paid, after) {
		t.Fatal("paid booking should complete after the session")
	}
	if paid.Status != domain.BookingCompleted || paid.Active || !paid.OccupiesSeat() {
		t.Errorf("unexpected completed state: %+v", paid)
	}
	if Complete(paid, after) {
		t.Error("Complete must be idempotent")
	}

	unpaid := NewBooking(tpl, occ, primitive.NewObjectID(), now)
	if Complete(unpaid, after) {
		t.Error("unpaid booking must not complete")
	}
	if ExpirePending(unpaid, now.Add(10*time.Minute), 30*time.Minute) {
		t.Error("pending booking expired before its ttl")
	}
	if !ExpirePending(unpaid, now.Add(30*time.Minute), 30*time.Minute) {
		t.Fatal("pending booking should expire at its ttl")
	}
	if unpaid.PaymentStatus != domain.PaymentFailed {
		t.Errorf("expired booking payment = %s, want failed", unpaid.PaymentStatus)
	}
}
