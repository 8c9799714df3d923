package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"fieldintake/internal/model"
)

// UploadUnitRepo tracks delivery state per entity. Status transitions go
// through single-document compare-and-update so racing triggers cannot move
// the same unit into uploading twice.
type UploadUnitRepo interface {
	Upsert(ctx context.Context, unit *model.UploadUnit) error
	GetByEntityID(ctx context.Context, entityID string) (*model.UploadUnit, error)
	List(ctx context.Context) ([]*model.UploadUnit, error)
	ListRetryable(ctx context.Context) ([]*model.UploadUnit, error)
	MarkUploading(ctx context.Context, entityID string, at time.Time) (bool, error)
	MarkCompleted(ctx context.Context, entityID string, at time.Time) error
	MarkFailed(ctx context.Context, entityID string, outcome model.OutcomeClass, message string, at time.Time) error
	ResetStaleUploading(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type uploadUnitRepo struct {
	collection *mongo.Collection
}

func NewUploadUnitRepo(db *mongo.Database) UploadUnitRepo {
	return &uploadUnitRepo{
		collection: db.Collection("upload_units"),
	}
}

// Upsert creates or overwrites the unit for an entity, resetting it to pending.
func (r *uploadUnitRepo) Upsert(ctx context.Context, unit *model.UploadUnit) error {
	opts := options.Replace().SetUpsert(true)
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": unit.EntityID}, unit, opts)
	return err
}

func (r *uploadUnitRepo) GetByEntityID(ctx context.Context, entityID string) (*model.UploadUnit, error) {
	var unit model.UploadUnit
	err := r.collection.FindOne(ctx, bson.M{"_id": entityID}).Decode(&unit)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &unit, nil
}

func (r *uploadUnitRepo) List(ctx context.Context) ([]*model.UploadUnit, error) {
	return r.find(ctx, bson.M{})
}

// ListRetryable returns units still awaiting delivery.
func (r *uploadUnitRepo) ListRetryable(ctx context.Context) ([]*model.UploadUnit, error) {
	filter := bson.M{"status": bson.M{"$in": []model.UploadStatus{
		model.UploadStatusPending,
		model.UploadStatusFailed,
	}}}
	return r.find(ctx, filter)
}

func (r *uploadUnitRepo) find(ctx context.Context, filter bson.M) ([]*model.UploadUnit, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var units []*model.UploadUnit
	if err = cursor.All(ctx, &units); err != nil {
		return nil, err
	}

	return units, nil
}

// MarkUploading transitions pending/failed -> uploading. Returns false when
// the unit is not eligible, which means another trigger got there first or
// the unit is already completed.
func (r *uploadUnitRepo) MarkUploading(ctx context.Context, entityID string, at time.Time) (bool, error) {
	filter := bson.M{
		"_id": entityID,
		"status": bson.M{"$in": []model.UploadStatus{
			model.UploadStatusPending,
			model.UploadStatusFailed,
		}},
	}
	update := bson.M{"$set": bson.M{
		"status":        model.UploadStatusUploading,
		"lastAttemptAt": at,
	}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return result.ModifiedCount == 1, nil
}

func (r *uploadUnitRepo) MarkCompleted(ctx context.Context, entityID string, at time.Time) error {
	update := bson.M{"$set": bson.M{
		"status":      model.UploadStatusCompleted,
		"completedAt": at,
		"lastOutcome": model.OutcomeSuccess,
		"lastError":   "",
	}}
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": entityID}, update)
	return err
}

func (r *uploadUnitRepo) MarkFailed(ctx context.Context, entityID string, outcome model.OutcomeClass, message string, at time.Time) error {
	update := bson.M{
		"$set": bson.M{
			"status":        model.UploadStatusFailed,
			"lastAttemptAt": at,
			"lastOutcome":   outcome,
			"lastError":     message,
		},
		"$inc": bson.M{"attemptCount": 1},
	}
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": entityID}, update)
	return err
}

// ResetStaleUploading returns units stranded in uploading to pending. A unit
// stays in uploading only while an attempt holds it; one older than the
// cutoff belonged to a crashed process or a failed status write.
func (r *uploadUnitRepo) ResetStaleUploading(ctx context.Context, cutoff time.Time) (int64, error) {
	filter := bson.M{
		"status":        model.UploadStatusUploading,
		"lastAttemptAt": bson.M{"$lt": cutoff},
	}
	update := bson.M{"$set": bson.M{"status": model.UploadStatusPending}}

	result, err := r.collection.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, err
	}
	return result.ModifiedCount, nil
}

// DeleteCompletedBefore purges completed units older than the retention cutoff.
func (r *uploadUnitRepo) DeleteCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	filter := bson.M{
		"status":      model.UploadStatusCompleted,
		"completedAt": bson.M{"$lt": cutoff},
	}
	result, err := r.collection.DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}
