package mongo

import (
	"alcyxob/fitness-booking/internal/domain"
	"alcyxob/fitness-booking/internal/repository"
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	bookingCollectionName = "bookings"
	// session_slots holds one tiny document per booked occurrence. It is
	// only written to serialize reservations for the same slot.
	slotCollectionName = "session_slots"
)

// mongoBookingRepository implements repository.BookingRepository
type mongoBookingRepository struct {
	client     *mongo.Client
	collection *mongo.Collection
	slots      *mongo.Collection
}

// NewMongoBookingRepository creates a new Booking repository backed by MongoDB.
// Slot locking uses multi-document transactions, so the deployment must be
// a replica set (a single-node replica set is fine for development).
func NewMongoBookingRepository(db *mongo.Database) repository.BookingRepository {
	return &mongoBookingRepository{
		client:     db.Client(),
		collection: db.Collection(bookingCollectionName),
		slots:      db.Collection(slotCollectionName),
	}
}

// WithSlotLock runs fn inside a transaction that first bumps the slot's
// version document. Two transactions for the same slot therefore write
// the same document and one of them hits a write conflict; the driver's
// WithTransaction retries it, and on retry it sees the winner's booking.
func (r *mongoBookingRepository) WithSlotLock(ctx context.Context, key domain.SlotKey, fn func(ctx context.Context) error) error {
	session, err := r.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		filter := bson.M{"_id": key.String()}
		update := bson.M{
			"$inc": bson.M{"version": 1},
			"$set": bson.M{
				"templateId": key.TemplateID,
				"date":       key.Date,
				"touchedAt":  time.Now().UTC(),
			},
		}
		if _, err := r.slots.UpdateOne(sc, filter, update, options.Update().SetUpsert(true)); err != nil {
			return nil, err
		}
		return nil, fn(sc)
	})
	var serverErr mongo.ServerError
	if errors.As(err, &serverErr) && serverErr.HasErrorLabel("TransientTransactionError") {
		// Retries ran out while other writers kept winning the slot.
		return fmt.Errorf("%w: %v", repository.ErrLockContended, err)
	}
	return err
}

// Create inserts a new booking. The unique index over active bookings
// surfaces a concurrent duplicate as repository.ErrDuplicateKey.
func (r *mongoBookingRepository) Create(ctx context.Context, booking *domain.Booking) (primitive.ObjectID, error) {
	if booking.UserID == primitive.NilObjectID || booking.TemplateID == primitive.NilObjectID || booking.SessionDate == "" {
		return primitive.NilObjectID, errors.New("booking requires userId, templateId and sessionDate")
	}

	booking.ID = primitive.NewObjectID()
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = time.Now().UTC()
	}
	booking.UpdatedAt = booking.CreatedAt
	booking.SyncActive()

	result, err := r.collection.InsertOne(ctx, booking)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, repository.ErrDuplicateKey
		}
		return primitive.NilObjectID, err
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted booking ID")
	}
	return insertedID, nil
}

// GetByID retrieves a booking by its ID.
func (r *mongoBookingRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Booking, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// GetByPaymentHandle retrieves the booking a checkout handle was issued for.
func (r *mongoBookingRepository) GetByPaymentHandle(ctx context.Context, handle string) (*domain.Booking, error) {
	if handle == "" {
		return nil, repository.ErrNotFound
	}
	return r.findOne(ctx, bson.M{"paymentHandle": handle})
}

func (r *mongoBookingRepository) findOne(ctx context.Context, filter bson.M) (*domain.Booking, error) {
	var booking domain.Booking
	err := r.collection.FindOne(ctx, filter).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &booking, nil
}

// Update writes the mutable lifecycle fields of a booking. Session details
// and ownership never change after creation.
func (r *mongoBookingRepository) Update(ctx context.Context, booking *domain.Booking) error {
	if booking.ID == primitive.NilObjectID {
		return errors.New("booking ID is required for update")
	}
	booking.SyncActive()

	updateFields := bson.M{
		"status":        booking.Status,
		"paymentStatus": booking.PaymentStatus,
		"active":        booking.Active,
		"updatedAt":     booking.UpdatedAt,
	}
	// Optional fields are only ever set, never cleared
	if booking.PaymentHandle != "" {
		updateFields["paymentHandle"] = booking.PaymentHandle
	}
	if booking.PaidAt != nil {
		updateFields["paidAt"] = *booking.PaidAt
	}
	if booking.CancelledAt != nil {
		updateFields["cancelledAt"] = *booking.CancelledAt
	}
	if booking.CompletedAt != nil {
		updateFields["completedAt"] = *booking.CompletedAt
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": booking.ID}, bson.M{"$set": updateFields})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.ErrDuplicateKey
		}
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ListBySlot retrieves every booking, in any state, for one occurrence.
func (r *mongoBookingRepository) ListBySlot(ctx context.Context, key domain.SlotKey) ([]domain.Booking, error) {
	filter := bson.M{"templateId": key.TemplateID, "sessionDate": key.Date}
	return r.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
}

// ListByTemplateBetween retrieves bookings of a template whose session
// date lies in [fromDate, toDate]. Dates compare lexically in DateLayout.
func (r *mongoBookingRepository) ListByTemplateBetween(ctx context.Context, templateID primitive.ObjectID, fromDate, toDate string) ([]domain.Booking, error) {
	filter := bson.M{
		"templateId":  templateID,
		"sessionDate": bson.M{"$gte": fromDate, "$lte": toDate},
	}
	return r.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "sessionDate", Value: 1}, {Key: "createdAt", Value: 1}}))
}

// ListByUserID retrieves a user's bookings, newest session first.
func (r *mongoBookingRepository) ListByUserID(ctx context.Context, userID primitive.ObjectID) ([]domain.Booking, error) {
	filter := bson.M{"userId": userID}
	return r.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "sessionStart", Value: -1}, {Key: "createdAt", Value: -1}}))
}

// ListDue retrieves upcoming bookings the cleanup sweep has to advance.
func (r *mongoBookingRepository) ListDue(ctx context.Context, endedBefore, createdBefore time.Time) ([]domain.Booking, error) {
	filter := bson.M{
		"status": domain.BookingUpcoming,
		"$or": bson.A{
			bson.M{"paymentStatus": domain.PaymentPaid, "sessionEnd": bson.M{"$lte": endedBefore}},
			bson.M{"paymentStatus": domain.PaymentPending, "createdAt": bson.M{"$lte": createdBefore}},
		},
	}
	return r.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "sessionEnd", Value: 1}}))
}

func (r *mongoBookingRepository) find(ctx context.Context, filter bson.M, findOptions *options.FindOptions) ([]domain.Booking, error) {
	var bookings []domain.Booking

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &bookings); err != nil {
		return nil, err
	}
	if err = cursor.Err(); err != nil {
		return nil, err
	}
	return bookings, nil
}

// EnsureBookingIndexes creates necessary indexes for the bookings collection.
func EnsureBookingIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			// At most one active booking per user per occurrence
			Keys: bson.D{{Key: "userId", Value: 1}, {Key: "templateId", Value: 1}, {Key: "sessionDate", Value: 1}},
			Options: options.Index().
				SetName("one_active_booking_per_slot").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"active": true}),
		},
		{
			// Slot lookups for capacity checks and listings
			Keys:    bson.D{{Key: "templateId", Value: 1}, {Key: "sessionDate", Value: 1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "sessionStart", Value: -1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "paymentHandle", Value: 1}},
			Options: options.Index().SetUnique(true).SetPartialFilterExpression(bson.M{"paymentHandle": bson.M{"$gt": ""}}),
		},
		{
			// Cleanup sweep
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "sessionEnd", Value: 1}},
			Options: options.Index(),
		},
	}

	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		log.Printf("WARN: Failed to create indexes for collection %s: %v", collection.Name(), err)
	}
}
