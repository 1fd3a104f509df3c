package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"alcyxob/fitness-booking/internal/domain"
	"alcyxob/fitness-booking/internal/payment"
	"alcyxob/fitness-booking/internal/repository"
	"alcyxob/fitness-booking/internal/schedule"
)

// --- Error Definitions ---
var (
	ErrBookingNotFound    = errors.New("booking not found")
	ErrNotOwner           = errors.New("booking belongs to another user")
	ErrOrphanedTemplate   = errors.New("class no longer exists")
	ErrSessionNotOffered  = errors.New("session is outside the booking window")
	ErrPaymentUnavailable = errors.New("payment could not be started, please try again")
	ErrPaymentNotRecorded = errors.New("payment outcome could not be recorded")

	// Lifecycle errors surfaced unchanged from the scheduling core.
	ErrSlotFull           = schedule.ErrSlotFull
	ErrAlreadyBooked      = schedule.ErrAlreadyBooked
	ErrPastSession        = schedule.ErrPastSession
	ErrNotCancelled       = schedule.ErrNotCancelled
	ErrInvalidTransition  = schedule.ErrInvalidTransition
	ErrInvalidSessionDate = schedule.ErrInvalidSessionDate
)

// completionSweepJob names the daily cleanup run marker.
const completionSweepJob = "completion_sweep"

// BookableSession is one projected occurrence as seen by a given user.
type BookableSession struct {
	domain.SessionOccurrence
	SeatsRemaining int  `json:"seatsRemaining"`
	AlreadyBooked  bool `json:"alreadyBooked"`
	IsPast         bool `json:"isPast"`
	CanReserve     bool `json:"canReserve"`
}

// Reservation is the result of reserving or rebooking a seat. Checkout is
// nil for free classes, which are confirmed immediately.
type Reservation struct {
	Booking  *domain.Booking   `json:"booking"`
	Checkout *payment.Checkout `json:"checkout,omitempty"`
}

// BookingView is a booking in the owner's history.
type BookingView struct {
	domain.Booking
	// Orphaned is set when the class template has since been deleted.
	Orphaned bool `json:"orphaned"`
}

// CleanupResult reports what a cleanup run did.
type CleanupResult struct {
	Date      string `json:"date"`
	Ran       bool   `json:"ran"` // false when today's run already happened
	Completed int    `json:"completed"`
	Expired   int    `json:"expired"`
}

type SchedulerService interface {
	ListBookableSessions(ctx context.Context, templateID, userID primitive.ObjectID) ([]BookableSession, error)
	Reserve(ctx context.Context, userID, templateID primitive.ObjectID, date string) (*Reservation, error)
	Rebook(ctx context.Context, userID, templateID primitive.ObjectID, date string) (*Reservation, error)
	ConfirmPayment(ctx context.Context, bookingID primitive.ObjectID) (*domain.Booking, error)
	HandlePaymentCallback(ctx context.Context, handle string, outcome payment.Outcome) (*domain.Booking, error)
	CancelBooking(ctx context.Context, bookingID, requesterID primitive.ObjectID, role domain.Role) (*domain.Booking, error)
	ListMyBookings(ctx context.Context, userID primitive.ObjectID) ([]BookingView, error)
	SessionRoster(ctx context.Context, requesterID primitive.ObjectID, role domain.Role, templateID primitive.ObjectID, date string) ([]domain.Booking, error)
	// CleanupPastSessions runs the sweep at most once per calendar day.
	CleanupPastSessions(ctx context.Context) (*CleanupResult, error)
	// ForceCleanup runs the sweep regardless of today's marker.
	ForceCleanup(ctx context.Context) (*CleanupResult, error)
}

// SchedulerOption customizes a scheduler service.
type SchedulerOption func(*schedulerService)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) SchedulerOption {
	return func(s *schedulerService) { s.now = now }
}

// WithWindowWeeks sets how many weeks ahead sessions are offered.
func WithWindowWeeks(weeks int) SchedulerOption {
	return func(s *schedulerService) { s.windowWeeks = weeks }
}

// WithLocation sets the zone template times are interpreted in.
func WithLocation(loc *time.Location) SchedulerOption {
	return func(s *schedulerService) { s.loc = loc }
}

// WithPendingTTL sets how long an unpaid reservation holds its seat.
func WithPendingTTL(ttl time.Duration) SchedulerOption {
	return func(s *schedulerService) { s.pendingTTL = ttl }
}

type schedulerService struct {
	templateRepo repository.ClassTemplateRepository
	bookingRepo  repository.BookingRepository
	stateRepo    repository.SchedulerStateRepository
	gateway      payment.Gateway

	now         func() time.Time
	windowWeeks int
	loc         *time.Location
	pendingTTL  time.Duration

	// sweptMu guards sweptDate, the last day a sweep is known to have run,
	// so listings do not hit the marker store on every request.
	sweptMu   sync.Mutex
	sweptDate string
}

// NewSchedulerService creates a new instance of schedulerService.
func NewSchedulerService(
	templateRepo repository.ClassTemplateRepository,
	bookingRepo repository.BookingRepository,
	stateRepo repository.SchedulerStateRepository,
	gateway payment.Gateway,
	opts ...SchedulerOption,
) SchedulerService {
	s := &schedulerService{
		templateRepo: templateRepo,
		bookingRepo:  bookingRepo,
		stateRepo:    stateRepo,
		gateway:      gateway,
		now:          time.Now,
		windowWeeks:  4,
		loc:          time.UTC,
		pendingTTL:   30 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// === Listing ===

// ListBookableSessions projects the template over the booking window and
// annotates each occurrence with live seat counts for userID. userID may be
// the nil ObjectID for anonymous listings.
func (s *schedulerService) ListBookableSessions(ctx context.Context, templateID, userID primitive.ObjectID) ([]BookableSession, error) {
	s.maybeCleanup(ctx)

	tpl, err := s.getTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	from, to := schedule.Window(now, s.windowWeeks)
	occurrences := schedule.Project(tpl, from, to, s.loc)
	if len(occurrences) == 0 {
		return []BookableSession{}, nil
	}

	bookings, err := s.bookingRepo.ListByTemplateBetween(ctx, tpl.ID, occurrences[0].Date, occurrences[len(occurrences)-1].Date)
	if err != nil {
		log.Printf("ERROR: Failed to load bookings for template %s: %v", tpl.ID.Hex(), err)
		return nil, err
	}

	sessions := make([]BookableSession, 0, len(occurrences))
	for _, occ := range occurrences {
		booked := !userID.IsZero() && schedule.HasActiveBooking(userID, occ.Key(), bookings)
		sessions = append(sessions, BookableSession{
			SessionOccurrence: occ,
			SeatsRemaining:    schedule.SeatsRemaining(occ, bookings),
			AlreadyBooked:     booked,
			IsPast:            occ.HasStarted(now),
			CanReserve:        !booked && schedule.CanReserve(occ, bookings, now),
		})
	}
	return sessions, nil
}

// === Reservation ===

// Reserve books a seat for userID on the template's session at date and
// starts payment for it.
func (s *schedulerService) Reserve(ctx context.Context, userID, templateID primitive.ObjectID, date string) (*Reservation, error) {
	tpl, err := s.getTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}
	occ, err := s.offeredOccurrence(tpl, date)
	if err != nil {
		return nil, err
	}

	var created *domain.Booking
	err = s.bookingRepo.WithSlotLock(ctx, occ.Key(), func(txCtx context.Context) error {
		slot, err := s.bookingRepo.ListBySlot(txCtx, occ.Key())
		if err != nil {
			return err
		}
		if err := schedule.CheckReservable(occ, userID, slot, s.now()); err != nil {
			return err
		}
		created, err = s.insertBooking(txCtx, tpl, occ, userID, nil)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Printf("INFO: Booking %s reserved by user %s for %s", created.ID.Hex(), userID.Hex(), occ.Key())
	return s.startPayment(ctx, created)
}

// Rebook replaces the user's cancelled booking for the session with a new
// one. The duplicate guard runs first, so repeating a successful rebook
// fails with ErrAlreadyBooked instead of creating a second seat.
func (s *schedulerService) Rebook(ctx context.Context, userID, templateID primitive.ObjectID, date string) (*Reservation, error) {
	tpl, err := s.templateRepo.GetByID(ctx, templateID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, s.missingTemplateError(ctx, userID, templateID, date)
		}
		return nil, err
	}
	occ, err := s.offeredOccurrence(tpl, date)
	if err != nil {
		return nil, err
	}

	var created *domain.Booking
	err = s.bookingRepo.WithSlotLock(ctx, occ.Key(), func(txCtx context.Context) error {
		slot, err := s.bookingRepo.ListBySlot(txCtx, occ.Key())
		if err != nil {
			return err
		}
		now := s.now()
		if occ.HasStarted(now) {
			return ErrPastSession
		}
		if schedule.HasActiveBooking(userID, occ.Key(), slot) {
			return ErrAlreadyBooked
		}
		replaced, err := schedule.CheckRebookable(userID, occ.Key(), slot)
		if err != nil {
			return err
		}
		if err := schedule.CheckReservable(occ, userID, slot, now); err != nil {
			return err
		}
		created, err = s.insertBooking(txCtx, tpl, occ, userID, &replaced.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Printf("INFO: Booking %s rebooked by user %s for %s (replaces %s)", created.ID.Hex(), userID.Hex(), occ.Key(), created.RebookOf.Hex())
	return s.startPayment(ctx, created)
}

// insertBooking creates the booking inside the slot's critical section.
// Free classes are confirmed on the spot.
func (s *schedulerService) insertBooking(ctx context.Context, tpl *domain.ClassTemplate, occ domain.SessionOccurrence, userID primitive.ObjectID, rebookOf *primitive.ObjectID) (*domain.Booking, error) {
	now := s.now()
	b := schedule.NewBooking(tpl, occ, userID, now)
	b.RebookOf = rebookOf
	if tpl.Price == 0 {
		if _, err := schedule.ConfirmPayment(b, now); err != nil {
			return nil, err
		}
	}

	id, err := s.bookingRepo.Create(ctx, b)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, ErrAlreadyBooked
		}
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}
	b.ID = id
	return b, nil
}

// startPayment opens a checkout for a pending booking. The seat is held
// while checkout is in flight; if the provider cannot be reached the
// payment is failed right away so the seat is released.
func (s *schedulerService) startPayment(ctx context.Context, b *domain.Booking) (*Reservation, error) {
	if b.PaymentStatus != domain.PaymentPending {
		return &Reservation{Booking: b}, nil
	}

	checkout, err := s.gateway.CreateCheckout(ctx, b)
	if err != nil {
		log.Printf("ERROR: Checkout for booking %s failed: %v", b.ID.Hex(), err)
		if _, relErr := s.transition(ctx, b.ID, func(fresh *domain.Booking, now time.Time) (bool, error) {
			return schedule.FailPayment(fresh, now)
		}); relErr != nil {
			log.Printf("ERROR: Failed to release seat of booking %s: %v", b.ID.Hex(), relErr)
		}
		return nil, ErrPaymentUnavailable
	}

	stored, err := s.transition(ctx, b.ID, func(fresh *domain.Booking, now time.Time) (bool, error) {
		fresh.PaymentHandle = checkout.Handle
		fresh.UpdatedAt = now
		return true, nil
	})
	if err != nil {
		// The seat stays held until the pending TTL expires it.
		log.Printf("ERROR: Failed to store payment handle for booking %s: %v", b.ID.Hex(), err)
		return nil, ErrPaymentUnavailable
	}
	return &Reservation{Booking: stored, Checkout: checkout}, nil
}

// === Payment ===

func (s *schedulerService) ConfirmPayment(ctx context.Context, bookingID primitive.ObjectID) (*domain.Booking, error) {
	b, err := s.transition(ctx, bookingID, func(fresh *domain.Booking, now time.Time) (bool, error) {
		return schedule.ConfirmPayment(fresh, now)
	})
	switch {
	case errors.Is(err, ErrBookingNotFound), errors.Is(err, ErrInvalidTransition):
		return nil, err
	case err != nil:
		// The booking stays pending; the provider redelivers the callback.
		return nil, fmt.Errorf("%w: %v", ErrPaymentNotRecorded, err)
	}
	if b.Status == domain.BookingCancelled {
		log.Printf("WARN: Payment received for booking %s after its seat was released, refund required", b.ID.Hex())
	}
	return b, nil
}

// HandlePaymentCallback applies the provider's outcome for a checkout
// handle. Redelivered callbacks are no-ops.
func (s *schedulerService) HandlePaymentCallback(ctx context.Context, handle string, outcome payment.Outcome) (*domain.Booking, error) {
	b, err := s.bookingRepo.GetByPaymentHandle(ctx, handle)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}

	switch outcome {
	case payment.OutcomePaid:
		return s.ConfirmPayment(ctx, b.ID)
	case payment.OutcomeFailed:
		return s.transition(ctx, b.ID, func(fresh *domain.Booking, now time.Time) (bool, error) {
			return schedule.FailPayment(fresh, now)
		})
	default:
		return nil, payment.ErrUnknownOutcome
	}
}

// === Cancellation ===

// CancelBooking cancels a future booking. Only its owner or an admin may.
func (s *schedulerService) CancelBooking(ctx context.Context, bookingID, requesterID primitive.ObjectID, role domain.Role) (*domain.Booking, error) {
	b, err := s.transition(ctx, bookingID, func(fresh *domain.Booking, now time.Time) (bool, error) {
		if fresh.UserID != requesterID && role != domain.RoleAdmin {
			return false, ErrNotOwner
		}
		if err := schedule.Cancel(fresh, now); err != nil {
			return false, err
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("INFO: Booking %s cancelled by %s", b.ID.Hex(), requesterID.Hex())
	return b, nil
}

// transition re-reads the booking inside its slot lock, applies fn and
// persists the result when fn reports a change.
func (s *schedulerService) transition(ctx context.Context, bookingID primitive.ObjectID, fn func(b *domain.Booking, now time.Time) (bool, error)) (*domain.Booking, error) {
	b, err := s.getBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	var result *domain.Booking
	err = s.bookingRepo.WithSlotLock(ctx, b.Key(), func(txCtx context.Context) error {
		fresh, err := s.getBooking(txCtx, bookingID)
		if err != nil {
			return err
		}
		changed, err := fn(fresh, s.now())
		if err != nil {
			return err
		}
		if changed {
			if err := s.bookingRepo.Update(txCtx, fresh); err != nil {
				return fmt.Errorf("failed to update booking: %w", err)
			}
		}
		result = fresh
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// === History & Roster ===

// ListMyBookings returns userID's bookings, newest session first.
func (s *schedulerService) ListMyBookings(ctx context.Context, userID primitive.ObjectID) ([]BookingView, error) {
	bookings, err := s.bookingRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	exists := make(map[primitive.ObjectID]bool)
	views := make([]BookingView, 0, len(bookings))
	for _, b := range bookings {
		ok, seen := exists[b.TemplateID]
		if !seen {
			_, err := s.templateRepo.GetByID(ctx, b.TemplateID)
			switch {
			case err == nil:
				ok = true
			case errors.Is(err, repository.ErrNotFound):
				ok = false
			default:
				return nil, err
			}
			exists[b.TemplateID] = ok
		}
		views = append(views, BookingView{Booking: b, Orphaned: !ok})
	}
	return views, nil
}

// SessionRoster lists the bookings holding a seat in one session. Only the
// class trainer or an admin may view it.
func (s *schedulerService) SessionRoster(ctx context.Context, requesterID primitive.ObjectID, role domain.Role, templateID primitive.ObjectID, date string) ([]domain.Booking, error) {
	tpl, err := s.getTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if tpl.TrainerID != requesterID && role != domain.RoleAdmin {
		return nil, ErrClassAccessDenied
	}
	occ, err := schedule.Occurrence(tpl, date, s.loc)
	if err != nil {
		return nil, err
	}

	slot, err := s.bookingRepo.ListBySlot(ctx, occ.Key())
	if err != nil {
		return nil, err
	}
	roster := make([]domain.Booking, 0, len(slot))
	for _, b := range slot {
		if b.OccupiesSeat() {
			roster = append(roster, b)
		}
	}
	return roster, nil
}

// === Cleanup ===

func (s *schedulerService) CleanupPastSessions(ctx context.Context) (*CleanupResult, error) {
	return s.cleanup(ctx, false)
}

func (s *schedulerService) ForceCleanup(ctx context.Context) (*CleanupResult, error) {
	return s.cleanup(ctx, true)
}

// maybeCleanup triggers the daily sweep from a request path. Failures are
// logged and retried on a later request.
func (s *schedulerService) maybeCleanup(ctx context.Context) {
	today := s.today()
	s.sweptMu.Lock()
	done := s.sweptDate == today
	s.sweptMu.Unlock()
	if done {
		return
	}
	if _, err := s.cleanup(ctx, false); err != nil {
		log.Printf("ERROR: Lazy cleanup sweep failed: %v", err)
	}
}

func (s *schedulerService) cleanup(ctx context.Context, force bool) (*CleanupResult, error) {
	today := s.today()
	result := &CleanupResult{Date: today}

	if !force {
		last, err := s.stateRepo.GetLastRun(ctx, completionSweepJob)
		if err != nil {
			return nil, fmt.Errorf("failed to read cleanup marker: %w", err)
		}
		if last == today {
			s.markSwept(today)
			return result, nil
		}
	}

	result.Ran = true
	completed, expired, err := s.sweepDue(ctx)
	result.Completed, result.Expired = completed, expired
	if err != nil {
		// No marker, so the next trigger retries the remainder.
		return result, err
	}

	if err := s.stateRepo.SetLastRun(ctx, completionSweepJob, today); err != nil {
		return result, fmt.Errorf("failed to write cleanup marker: %w", err)
	}
	s.markSwept(today)
	log.Printf("INFO: Cleanup sweep for %s completed %d and expired %d bookings", today, completed, expired)
	return result, nil
}

// sweepDue completes ended paid bookings and fails stale pending ones.
// A booking that cannot be updated is skipped and reported in the error.
func (s *schedulerService) sweepDue(ctx context.Context) (completed, expired int, err error) {
	now := s.now()
	due, err := s.bookingRepo.ListDue(ctx, now, now.Add(-s.pendingTTL))
	if err != nil {
		return 0, 0, fmt.Errorf("failed to list due bookings: %w", err)
	}

	var errs []error
	for _, b := range due {
		var outcome string
		_, txErr := s.transition(ctx, b.ID, func(fresh *domain.Booking, now time.Time) (bool, error) {
			if schedule.Complete(fresh, now) {
				outcome = "completed"
				return true, nil
			}
			if schedule.ExpirePending(fresh, now, s.pendingTTL) {
				outcome = "expired"
				return true, nil
			}
			return false, nil
		})
		if txErr != nil {
			log.Printf("ERROR: Sweep could not update booking %s: %v", b.ID.Hex(), txErr)
			errs = append(errs, txErr)
			continue
		}
		switch outcome {
		case "completed":
			completed++
		case "expired":
			expired++
		}
	}
	return completed, expired, errors.Join(errs...)
}

func (s *schedulerService) markSwept(date string) {
	s.sweptMu.Lock()
	s.sweptDate = date
	s.sweptMu.Unlock()
}

func (s *schedulerService) today() string {
	return s.now().In(s.loc).Format(domain.DateLayout)
}

// === Helpers ===

func (s *schedulerService) getTemplate(ctx context.Context, id primitive.ObjectID) (*domain.ClassTemplate, error) {
	tpl, err := s.templateRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrClassNotFound
		}
		return nil, err
	}
	return tpl, nil
}

func (s *schedulerService) getBooking(ctx context.Context, id primitive.ObjectID) (*domain.Booking, error) {
	b, err := s.bookingRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return b, nil
}

// offeredOccurrence resolves date to an occurrence of tpl and requires it
// to be inside the current booking window.
func (s *schedulerService) offeredOccurrence(tpl *domain.ClassTemplate, date string) (domain.SessionOccurrence, error) {
	occ, err := schedule.Occurrence(tpl, date, s.loc)
	if err != nil {
		return occ, err
	}
	now := s.now()
	if occ.HasStarted(now) {
		return occ, ErrPastSession
	}
	from, to := schedule.Window(now, s.windowWeeks)
	for _, offered := range schedule.Project(tpl, from, to, s.loc) {
		if offered.Date == occ.Date {
			return occ, nil
		}
	}
	return occ, ErrSessionNotOffered
}

// missingTemplateError distinguishes a rebook against a deleted class the
// user had booked from a plain unknown class.
func (s *schedulerService) missingTemplateError(ctx context.Context, userID, templateID primitive.ObjectID, date string) error {
	slot, err := s.bookingRepo.ListBySlot(ctx, domain.SlotKey{TemplateID: templateID, Date: date})
	if err != nil {
		return err
	}
	if schedule.LatestFor(userID, domain.SlotKey{TemplateID: templateID, Date: date}, slot) != nil {
		return ErrOrphanedTemplate
	}
	return ErrClassNotFound
}
