package schedule

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"alcyxob/fitness-booking/internal/domain"
)

var (
	ErrSlotFull           = errors.New("session is fully booked")
	ErrAlreadyBooked      = errors.New("you already have a booking for this session")
	ErrPastSession        = errors.New("session has already started or passed")
	ErrNotCancelled       = errors.New("no cancelled booking to rebook for this session")
	ErrInvalidTransition  = errors.New("booking cannot make this transition")
	ErrInvalidSessionDate = errors.New("date is not a session of this class")
	ErrInvalidTemplate    = errors.New("class template has an invalid day or time")
)

// CheckReservable is the authoritative guard for a new reservation of occ
// by userID, evaluated against every persisted booking of that slot.
func CheckReservable(occ domain.SessionOccurrence, userID primitive.ObjectID, slotBookings []domain.Booking, now time.Time) error {
	if occ.HasStarted(now) {
		return ErrPastSession
	}
	if HasActiveBooking(userID, occ.Key(), slotBookings) {
		return ErrAlreadyBooked
	}
	if SeatsRemaining(occ, slotBookings) <= 0 {
		return ErrSlotFull
	}
	return nil
}

// LatestFor returns the most recently created booking userID holds for key.
func LatestFor(userID primitive.ObjectID, key domain.SlotKey, bookings []domain.Booking) *domain.Booking {
	var latest *domain.Booking
	for i := range bookings {
		b := &bookings[i]
		if b.UserID != userID || b.Key() != key {
			continue
		}
		if latest == nil || b.CreatedAt.After(latest.CreatedAt) ||
			(b.CreatedAt.Equal(latest.CreatedAt) && b.ID.Hex() > latest.ID.Hex()) {
			latest = b
		}
	}
	return latest
}

// CheckRebookable requires the user's latest booking for the slot to be
// cancelled. The returned booking is the one being replaced.
func CheckRebookable(userID primitive.ObjectID, key domain.SlotKey, slotBookings []domain.Booking) (*domain.Booking, error) {
	latest := LatestFor(userID, key, slotBookings)
	if latest == nil || latest.Status != domain.BookingCancelled {
		return nil, ErrNotCancelled
	}
	return latest, nil
}

// NewBooking creates an upcoming, unpaid booking for occ.
func NewBooking(tpl *domain.ClassTemplate, occ domain.SessionOccurrence, userID primitive.ObjectID, now time.Time) *domain.Booking {
	b := &domain.Booking{
		UserID:        userID,
		TemplateID:    occ.TemplateID,
		SessionDate:   occ.Date,
		Status:        domain.BookingUpcoming,
		PaymentStatus: domain.PaymentPending,
		ClassName:     tpl.Name,
		TrainerID:     tpl.TrainerID,
		StartTime:     occ.StartTime,
		EndTime:       occ.EndTime,
		SessionStart:  occ.Start,
		SessionEnd:    occ.End,
		Price:         tpl.Price,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	b.SyncActive()
	return b
}

// ConfirmPayment moves a pending payment to paid. Confirming a paid booking
// is a no-op so webhook redeliveries are harmless. A payment arriving for a
// booking cancelled in the meantime is recorded without reviving it.
// The same holds once the payment failed or the hold expired: the seat may
// already be taken, so the booking is recorded as paid and cancelled.
func ConfirmPayment(b *domain.Booking, now time.Time) (changed bool, err error) {
	switch b.PaymentStatus {
	case domain.PaymentPaid:
		return false, nil
	case domain.PaymentFailed:
		if b.Status == domain.BookingUpcoming {
			b.Status = domain.BookingCancelled
			b.CancelledAt = &now
		}
	}
	b.PaymentStatus = domain.PaymentPaid
	b.PaidAt = &now
	b.UpdatedAt = now
	b.SyncActive()
	return true, nil
}

// FailPayment marks a pending payment as failed, releasing the seat.
func FailPayment(b *domain.Booking, now time.Time) (changed bool, err error) {
	switch b.PaymentStatus {
	case domain.PaymentFailed:
		return false, nil
	case domain.PaymentPaid:
		return false, ErrInvalidTransition
	}
	b.PaymentStatus = domain.PaymentFailed
	b.UpdatedAt = now
	b.SyncActive()
	return true, nil
}

// Cancel moves an upcoming booking to cancelled while its session is
// still in the future.
func Cancel(b *domain.Booking, now time.Time) error {
	if !b.SessionStart.After(now) {
		return ErrPastSession
	}
	if b.Status != domain.BookingUpcoming {
		return ErrInvalidTransition
	}
	b.Status = domain.BookingCancelled
	b.CancelledAt = &now
	b.UpdatedAt = now
	b.SyncActive()
	return nil
}

// Complete marks a paid upcoming booking completed once its session ended.
func Complete(b *domain.Booking, now time.Time) bool {
	if b.Status != domain.BookingUpcoming || b.PaymentStatus != domain.PaymentPaid {
		return false
	}
	if b.SessionEnd.After(now) {
		return false
	}
	b.Status = domain.BookingCompleted
	b.CompletedAt = &now
	b.UpdatedAt = now
	b.SyncActive()
	return true
}

// ExpirePending fails an unpaid upcoming booking that has held its seat
// for longer than ttl.
func ExpirePending(b *domain.Booking, now time.Time, ttl time.Duration) bool {
	if b.Status != domain.BookingUpcoming || b.PaymentStatus != domain.PaymentPending {
		return false
	}
	if b.CreatedAt.Add(ttl).After(now) {
		return false
	}
	changed, _ := FailPayment(b, now)
	return changed
}
