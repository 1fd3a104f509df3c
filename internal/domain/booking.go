package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// BookingStatus tracks the attendance lifecycle of a booking.
type BookingStatus string

const (
	BookingUpcoming  BookingStatus = "upcoming"
	BookingCancelled BookingStatus = "cancelled" // Terminal for this record; rebooking creates a new one
	BookingCompleted BookingStatus = "completed" // Terminal, set by the cleanup sweep
)

// PaymentStatus tracks the checkout outcome of a booking.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

// Booking is a user's reservation against one session occurrence.
// Session details are copied from the template at creation time so the
// record survives the template being deleted.
type Booking struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID        primitive.ObjectID `bson:"userId" json:"userId"`
	TemplateID    primitive.ObjectID `bson:"templateId" json:"templateId"`
	SessionDate   string             `bson:"sessionDate" json:"sessionDate"`
	Status        BookingStatus      `bson:"status" json:"status"`
	PaymentStatus PaymentStatus      `bson:"paymentStatus" json:"paymentStatus"`
	PaymentHandle string             `bson:"paymentHandle,omitempty" json:"paymentHandle,omitempty"`

	// Active is true while the booking is upcoming and its payment has not
	// failed. A unique partial index on (userId, templateId, sessionDate)
	// over active bookings backs the double-booking guard.
	Active bool `bson:"active" json:"-"`

	// --- Denormalized session details ---
	ClassName    string             `bson:"className" json:"className"`
	TrainerID    primitive.ObjectID `bson:"trainerId" json:"trainerId"`
	StartTime    string             `bson:"startTime" json:"startTime"`
	EndTime      string             `bson:"endTime" json:"endTime"`
	SessionStart time.Time          `bson:"sessionStart" json:"sessionStart"`
	SessionEnd   time.Time          `bson:"sessionEnd" json:"sessionEnd"`
	Price        float64            `bson:"price" json:"price"`

	RebookOf    *primitive.ObjectID `bson:"rebookOf,omitempty" json:"rebookOf,omitempty"` // Cancelled booking this one replaces
	CreatedAt   time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time           `bson:"updatedAt" json:"updatedAt"`
	PaidAt      *time.Time          `bson:"paidAt,omitempty" json:"paidAt,omitempty"`
	CancelledAt *time.Time          `bson:"cancelledAt,omitempty" json:"cancelledAt,omitempty"`
	CompletedAt *time.Time          `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
}

func (b *Booking) Key() SlotKey {
	return SlotKey{TemplateID: b.TemplateID, Date: b.SessionDate}
}

// OccupiesSeat reports whether the booking counts against capacity.
// Cancelled bookings and failed payments never hold a seat.
func (b *Booking) OccupiesSeat() bool {
	if b.PaymentStatus == PaymentFailed {
		return false
	}
	return b.Status == BookingUpcoming || b.Status == BookingCompleted
}

// SyncActive recomputes Active from Status and PaymentStatus.
func (b *Booking) SyncActive() {
	b.Active = b.Status == BookingUpcoming && b.PaymentStatus != PaymentFailed
}
