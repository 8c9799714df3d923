package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"fieldintake/internal/model"
	"fieldintake/internal/repository"
)

func main() {
	mongoURI := os.Getenv("MONGO_URI")
	if mongoURI == "" {
		mongoURI = "mongodb://localhost:27017"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer client.Disconnect(ctx)

	db := client.Database("fieldintake")
	repo := repository.NewQuestionRepo(db)

	questions := []model.Question{
		{
			Index:     0,
			ShortName: "consent",
			Statement: "Do you agree to take part in this interview?",
			Type:      model.QuestionTypeSingleChoice,
			Options: []model.Option{
				{Index: 0, Text: "No"},
				{Index: 1, Text: "Yes"},
			},
		},
		{
			Index:             1,
			ShortName:         "age",
			Statement:         "How old are you?",
			Type:              model.QuestionTypeNumeric,
			SkipScript:        "consent == 1",
			ValidationScript:  "value >= 18 && value <= 100",
			ValidationMessage: "Age must be between 18 and 100.",
		},
		{
			Index:      2,
			ShortName:  "tested_before",
			Statement:  "Have you been tested in the last 12 months?",
			Type:       model.QuestionTypeSingleChoice,
			SkipScript: "consent == 1",
			Options: []model.Option{
				{Index: 0, Text: "No"},
				{Index: 1, Text: "Yes"},
				{Index: 2, Text: "Prefer not to say"},
			},
		},
		{
			Index:      3,
			ShortName:  "test_location",
			Statement:  "Where were you last tested?",
			Type:       model.QuestionTypeSingleChoice,
			SkipScript: "consent == 1 && tested_before == 1",
			Options: []model.Option{
				{Index: 0, Text: "Clinic"},
				{Index: 1, Text: "Community outreach"},
				{Index: 2, Text: "Self-test kit"},
				{Index: 3, Text: "Other"},
			},
		},
		{
			Index:      4,
			ShortName:  "info_sources",
			Statement:  "Where do you usually get health information? Select all that apply.",
			Type:       model.QuestionTypeMultiSelect,
			SkipScript: "consent == 1",
			Options: []model.Option{
				{Index: 0, Text: "Clinic or doctor"},
				{Index: 1, Text: "Friends and family"},
				{Index: 2, Text: "Radio or TV"},
				{Index: 3, Text: "Internet"},
			},
		},
		{
			Index:      5,
			ShortName:  "comments",
			Statement:  "Anything else you would like to tell us?",
			Type:       model.QuestionTypeFreeText,
			SkipScript: "consent == 1",
		},
	}

	language := os.Getenv("SEED_LANGUAGE")
	if language == "" {
		language = "en"
	}

	for i := range questions {
		questions[i].Language = language
		if err := repo.Upsert(ctx, &questions[i]); err != nil {
			log.Fatalf("Failed to upsert question %s: %v", questions[i].ShortName, err)
		}
	}

	fmt.Printf("Seeded %d questions for language %q\n", len(questions), language)
}
