package repository

import (
	"alcyxob/fitness-booking/internal/domain" // Import our defined domain models
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive" // For using ObjectIDs
)

// Error constants for repository layer
var (
	ErrNotFound      = RepositoryError("not found")
	ErrUpdateFailed  = RepositoryError("update failed")
	ErrDeleteFailed  = RepositoryError("delete failed")
	ErrDuplicateKey  = RepositoryError("duplicate key")
	ErrLockContended = RepositoryError("slot is busy, try again")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// UserRepository defines the interface for interacting with user data.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error)
	ListByRole(ctx context.Context, role domain.Role) ([]domain.User, error)
}

// ClassTemplateRepository stores trainer-authored recurring classes.
type ClassTemplateRepository interface {
	Create(ctx context.Context, tpl *domain.ClassTemplate) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.ClassTemplate, error)
	List(ctx context.Context) ([]domain.ClassTemplate, error)
	ListByTrainerID(ctx context.Context, trainerID primitive.ObjectID) ([]domain.ClassTemplate, error)
	Update(ctx context.Context, tpl *domain.ClassTemplate) error
	// Delete removes the template only. Bookings referencing it are kept.
	Delete(ctx context.Context, id, trainerID primitive.ObjectID) error
}

// BookingRepository stores reservations.
type BookingRepository interface {
	// WithSlotLock runs fn as the single writer for the slot. Reads and
	// writes issued through the ctx passed to fn are serialized against
	// every other WithSlotLock call for the same key.
	WithSlotLock(ctx context.Context, key domain.SlotKey, fn func(ctx context.Context) error) error

	Create(ctx context.Context, booking *domain.Booking) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Booking, error)
	GetByPaymentHandle(ctx context.Context, handle string) (*domain.Booking, error)
	// Update persists status, payment and timestamp fields.
	Update(ctx context.Context, booking *domain.Booking) error

	ListBySlot(ctx context.Context, key domain.SlotKey) ([]domain.Booking, error)
	ListByTemplateBetween(ctx context.Context, templateID primitive.ObjectID, fromDate, toDate string) ([]domain.Booking, error)
	ListByUserID(ctx context.Context, userID primitive.ObjectID) ([]domain.Booking, error)
	// ListDue returns upcoming bookings that are either paid and ended
	// before endedBefore, or still pending and created before createdBefore.
	ListDue(ctx context.Context, endedBefore, createdBefore time.Time) ([]domain.Booking, error)
}

// SchedulerStateRepository persists run markers for periodic jobs.
type SchedulerStateRepository interface {
	// GetLastRun returns the calendar date (domain.DateLayout) of the last
	// successful run of job, or "" if it never ran.
	GetLastRun(ctx context.Context, job string) (string, error)
	SetLastRun(ctx context.Context, job, date string) error
}
