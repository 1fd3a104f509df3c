package schedule

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"alcyxob/fitness-booking/internal/domain"
)

// OccupiedSeats counts the bookings for key that hold a seat.
func OccupiedSeats(key domain.SlotKey, bookings []domain.Booking) int {
	n := 0
	for i := range bookings {
		b := &bookings[i]
		if b.Key() == key && b.OccupiesSeat() {
			n++
		}
	}
	return n
}

// SeatsRemaining is the occurrence capacity minus occupied seats, floored at zero.
func SeatsRemaining(occ domain.SessionOccurrence, bookings []domain.Booking) int {
	left := occ.Capacity - OccupiedSeats(occ.Key(), bookings)
	if left < 0 {
		return 0
	}
	return left
}

// CanReserve reports whether a new reservation is feasible for occ at now.
// At listing time the answer is advisory; the reservation path re-checks it
// inside the slot's critical section.
func CanReserve(occ domain.SessionOccurrence, bookings []domain.Booking, now time.Time) bool {
	return SeatsRemaining(occ, bookings) > 0 && !occ.HasStarted(now)
}

// HasActiveBooking reports whether userID already holds an active booking
// among bookings for key.
func HasActiveBooking(userID primitive.ObjectID, key domain.SlotKey, bookings []domain.Booking) bool {
	for i := range bookings {
		b := &bookings[i]
		if b.UserID == userID && b.Key() == key && b.Status == domain.BookingUpcoming && b.PaymentStatus != domain.PaymentFailed {
			return true
		}
	}
	return false
}
