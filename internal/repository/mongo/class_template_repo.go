package mongo

import (
	"alcyxob/fitness-booking/internal/domain"
	"alcyxob/fitness-booking/internal/repository"
	"context"
	"errors"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const classTemplateCollectionName = "class_templates"

// mongoClassTemplateRepository implements repository.ClassTemplateRepository
type mongoClassTemplateRepository struct {
	collection *mongo.Collection
}

// NewMongoClassTemplateRepository creates a new class template repository backed by MongoDB.
func NewMongoClassTemplateRepository(db *mongo.Database) repository.ClassTemplateRepository {
	return &mongoClassTemplateRepository{
		collection: db.Collection(classTemplateCollectionName),
	}
}

// Create inserts a new class template.
func (r *mongoClassTemplateRepository) Create(ctx context.Context, tpl *domain.ClassTemplate) (primitive.ObjectID, error) {
	if tpl.TrainerID == primitive.NilObjectID || tpl.Name == "" {
		return primitive.NilObjectID, errors.New("class template requires trainerId and name")
	}

	tpl.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	tpl.CreatedAt = now
	tpl.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, tpl)
	if err != nil {
		return primitive.NilObjectID, err
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted class template ID")
	}
	return insertedID, nil
}

// GetByID retrieves a class template by its ID.
func (r *mongoClassTemplateRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.ClassTemplate, error) {
	var tpl domain.ClassTemplate
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&tpl)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &tpl, nil
}

// List retrieves every class template, for the public class listing.
func (r *mongoClassTemplateRepository) List(ctx context.Context) ([]domain.ClassTemplate, error) {
	return r.find(ctx, bson.M{})
}

// ListByTrainerID retrieves the templates owned by a trainer.
func (r *mongoClassTemplateRepository) ListByTrainerID(ctx context.Context, trainerID primitive.ObjectID) ([]domain.ClassTemplate, error) {
	return r.find(ctx, bson.M{"trainerId": trainerID})
}

func (r *mongoClassTemplateRepository) find(ctx context.Context, filter bson.M) ([]domain.ClassTemplate, error) {
	var templates []domain.ClassTemplate
	findOptions := options.Find().SetSort(bson.D{{Key: "day", Value: 1}, {Key: "startTime", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &templates); err != nil {
		return nil, err
	}
	if err = cursor.Err(); err != nil {
		return nil, err
	}
	return templates, nil
}

// Update modifies an existing template. The owner (TrainerID) is part of
// the filter and never rewritten.
func (r *mongoClassTemplateRepository) Update(ctx context.Context, tpl *domain.ClassTemplate) error {
	if tpl.ID == primitive.NilObjectID {
		return errors.New("class template ID is required for update")
	}

	filter := bson.M{"_id": tpl.ID, "trainerId": tpl.TrainerID}
	tpl.UpdatedAt = time.Now().UTC()
	update := bson.M{
		"$set": bson.M{
			"name":            tpl.Name,
			"description":     tpl.Description,
			"day":             tpl.Day,
			"startTime":       tpl.StartTime,
			"endTime":         tpl.EndTime,
			"durationMinutes": tpl.DurationMinutes,
			"capacity":        tpl.Capacity,
			"price":           tpl.Price,
			"coverImageKey":   tpl.CoverImageKey,
			"updatedAt":       tpl.UpdatedAt,
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Delete removes a template, ensuring it belongs to the specified trainer.
// Bookings are deliberately left untouched: they carry their own copy of
// the session details.
func (r *mongoClassTemplateRepository) Delete(ctx context.Context, id, trainerID primitive.ObjectID) error {
	filter := bson.M{
		"_id":       id,
		"trainerId": trainerID,
	}

	result, err := r.collection.DeleteOne(ctx, filter)
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		// Either missing or owned by another trainer
		return repository.ErrNotFound
	}
	return nil
}

// EnsureClassTemplateIndexes creates necessary indexes for the class_templates collection.
func EnsureClassTemplateIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "trainerId", Value: 1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "name", Value: "text"}, {Key: "description", Value: "text"}},
			Options: options.Index().SetName("class_text_search"),
		},
	}

	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		log.Printf("WARN: Failed to create indexes for collection %s: %v", collection.Name(), err)
	}
}
