package mongo

import (
	"alcyxob/fitness-booking/internal/repository"
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const schedulerStateCollectionName = "scheduler_state"

// schedulerStateDoc is one marker per periodic job, keyed by job name.
type schedulerStateDoc struct {
	Job         string    `bson:"_id"`
	LastRunDate string    `bson:"lastRunDate"`
	UpdatedAt   time.Time `bson:"updatedAt"`
}

type mongoSchedulerStateRepository struct {
	collection *mongo.Collection
}

// NewMongoSchedulerStateRepository creates the job marker store.
func NewMongoSchedulerStateRepository(db *mongo.Database) repository.SchedulerStateRepository {
	return &mongoSchedulerStateRepository{
		collection: db.Collection(schedulerStateCollectionName),
	}
}

// GetLastRun returns the last successful run date of job, or "".
func (r *mongoSchedulerStateRepository) GetLastRun(ctx context.Context, job string) (string, error) {
	var doc schedulerStateDoc
	err := r.collection.FindOne(ctx, bson.M{"_id": job}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", nil
		}
		return "", err
	}
	return doc.LastRunDate, nil
}

// SetLastRun upserts the marker for job.
func (r *mongoSchedulerStateRepository) SetLastRun(ctx context.Context, job, date string) error {
	update := bson.M{"$set": bson.M{"lastRunDate": date, "updatedAt": time.Now().UTC()}}
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": job}, update, options.Update().SetUpsert(true))
	return err
}
