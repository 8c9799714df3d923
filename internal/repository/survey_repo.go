package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"fieldintake/internal/model"
)

type SurveyRepo interface {
	Insert(ctx context.Context, survey *model.Survey) error
	GetByID(ctx context.Context, id string) (*model.Survey, error)
	Update(ctx context.Context, survey *model.Survey) error
	ListCompleted(ctx context.Context) ([]*model.Survey, error)
}

type surveyRepo struct {
	collection *mongo.Collection
}

func NewSurveyRepo(db *mongo.Database) SurveyRepo {
	return &surveyRepo{
		collection: db.Collection("surveys"),
	}
}

func (r *surveyRepo) Insert(ctx context.Context, survey *model.Survey) error {
	_, err := r.collection.InsertOne(ctx, survey)
	return err
}

func (r *surveyRepo) GetByID(ctx context.Context, id string) (*model.Survey, error) {
	var survey model.Survey
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&survey)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &survey, nil
}

func (r *surveyRepo) Update(ctx context.Context, survey *model.Survey) error {
	update := bson.M{"$set": survey}
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": survey.ID}, update)
	return err
}

func (r *surveyRepo) ListCompleted(ctx context.Context) ([]*model.Survey, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"completedAt": bson.M{"$ne": nil}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var surveys []*model.Survey
	if err = cursor.All(ctx, &surveys); err != nil {
		return nil, err
	}

	return surveys, nil
}
