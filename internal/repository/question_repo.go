package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"fieldintake/internal/model"
)

type QuestionRepo interface {
	GetByLanguage(ctx context.Context, language string) ([]model.Question, error)
	Upsert(ctx context.Context, question *model.Question) error
	DeleteByLanguage(ctx context.Context, language string) error
}

type questionRepo struct {
	collection *mongo.Collection
}

func NewQuestionRepo(db *mongo.Database) QuestionRepo {
	return &questionRepo{
		collection: db.Collection("questions"),
	}
}

// GetByLanguage returns the questionnaire for a language ordered by sequence index.
func (r *questionRepo) GetByLanguage(ctx context.Context, language string) ([]model.Question, error) {
	opts := options.Find().SetSort(bson.D{{Key: "index", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"language": language}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var questions []model.Question
	if err = cursor.All(ctx, &questions); err != nil {
		return nil, err
	}

	return questions, nil
}

func (r *questionRepo) Upsert(ctx context.Context, question *model.Question) error {
	if question.ID == "" {
		question.ID = primitive.NewObjectID().Hex()
	}

	filter := bson.M{"language": question.Language, "index": question.Index}
	update := bson.M{"$set": question}
	opts := options.Update().SetUpsert(true)

	_, err := r.collection.UpdateOne(ctx, filter, update, opts)
	return err
}

func (r *questionRepo) DeleteByLanguage(ctx context.Context, language string) error {
	_, err := r.collection.DeleteMany(ctx, bson.M{"language": language})
	return err
}
