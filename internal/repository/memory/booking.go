package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"alcyxob/fitness-booking/internal/domain"
	"alcyxob/fitness-booking/internal/repository"
)

// BookingRepository is an in-memory repository.BookingRepository.
// Slot locks are plain mutexes, one per occurrence.
type BookingRepository struct {
	mu       sync.RWMutex
	bookings map[primitive.ObjectID]domain.Booking

	locksMu sync.Mutex
	locks   map[domain.SlotKey]*sync.Mutex
}

func NewBookingRepository() *BookingRepository {
	return &BookingRepository{
		bookings: make(map[primitive.ObjectID]domain.Booking),
		locks:    make(map[domain.SlotKey]*sync.Mutex),
	}
}

func (r *BookingRepository) WithSlotLock(ctx context.Context, key domain.SlotKey, fn func(ctx context.Context) error) error {
	r.locksMu.Lock()
	l, ok := r.locks[key]
	if !ok {
		l = &sync.Mutex{}
		r.locks[key] = l
	}
	r.locksMu.Unlock()

	l.Lock()
	defer l.Unlock()
	return fn(ctx)
}

func (r *BookingRepository) Create(_ context.Context, booking *domain.Booking) (primitive.ObjectID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	booking.SyncActive()
	if booking.Active && r.activeConflict(booking) {
		return primitive.NilObjectID, repository.ErrDuplicateKey
	}
	booking.ID = primitive.NewObjectID()
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = time.Now().UTC()
	}
	booking.UpdatedAt = booking.CreatedAt
	r.bookings[booking.ID] = *booking
	return booking.ID, nil
}

// activeConflict mirrors the unique partial index on active bookings.
// Caller holds r.mu.
func (r *BookingRepository) activeConflict(b *domain.Booking) bool {
	for id, other := range r.bookings {
		if id != b.ID && other.Active && other.UserID == b.UserID && other.Key() == b.Key() {
			return true
		}
	}
	return false
}

func (r *BookingRepository) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &b, nil
}

func (r *BookingRepository) GetByPaymentHandle(_ context.Context, handle string) (*domain.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if handle == "" {
		return nil, repository.ErrNotFound
	}
	for _, b := range r.bookings {
		if b.PaymentHandle == handle {
			return &b, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *BookingRepository) Update(_ context.Context, booking *domain.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.bookings[booking.ID]
	if !ok {
		return repository.ErrNotFound
	}
	booking.SyncActive()
	if booking.Active && r.activeConflict(booking) {
		return repository.ErrDuplicateKey
	}

	existing.Status = booking.Status
	existing.PaymentStatus = booking.PaymentStatus
	existing.Active = booking.Active
	existing.UpdatedAt = booking.UpdatedAt
	if booking.PaymentHandle != "" {
		existing.PaymentHandle = booking.PaymentHandle
	}
	if booking.PaidAt != nil {
		existing.PaidAt = booking.PaidAt
	}
	if booking.CancelledAt != nil {
		existing.CancelledAt = booking.CancelledAt
	}
	if booking.CompletedAt != nil {
		existing.CompletedAt = booking.CompletedAt
	}
	r.bookings[booking.ID] = existing
	return nil
}

func (r *BookingRepository) ListBySlot(_ context.Context, key domain.SlotKey) ([]domain.Booking, error) {
	out := r.filter(func(b domain.Booking) bool { return b.Key() == key })
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *BookingRepository) ListByTemplateBetween(_ context.Context, templateID primitive.ObjectID, fromDate, toDate string) ([]domain.Booking, error) {
	out := r.filter(func(b domain.Booking) bool {
		return b.TemplateID == templateID && b.SessionDate >= fromDate && b.SessionDate <= toDate
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].SessionDate != out[j].SessionDate {
			return out[i].SessionDate < out[j].SessionDate
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *BookingRepository) ListByUserID(_ context.Context, userID primitive.ObjectID) ([]domain.Booking, error) {
	out := r.filter(func(b domain.Booking) bool { return b.UserID == userID })
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SessionStart.Equal(out[j].SessionStart) {
			return out[i].SessionStart.After(out[j].SessionStart)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *BookingRepository) ListDue(_ context.Context, endedBefore, createdBefore time.Time) ([]domain.Booking, error) {
	out := r.filter(func(b domain.Booking) bool {
		if b.Status != domain.BookingUpcoming {
			return false
		}
		switch b.PaymentStatus {
		case domain.PaymentPaid:
			return !b.SessionEnd.After(endedBefore)
		case domain.PaymentPending:
			return !b.CreatedAt.After(createdBefore)
		}
		return false
	})
	sort.Slice(out, func(i, j int) bool { return out[i].SessionEnd.Before(out[j].SessionEnd) })
	return out, nil
}

func (r *BookingRepository) filter(keep func(domain.Booking) bool) []domain.Booking {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.Booking
	for _, b := range r.bookings {
		if keep(b) {
			out = append(out, b)
		}
	}
	return out
}
