package config

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func ConnectMongoDB(cfg *Config) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %v", err)
	}

	// Test connection
	err = client.Ping(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %v", err)
	}

	// Create indexes
	err = createIndexes(client, cfg.DBName)
	if err != nil {
		return nil, fmt.Errorf("failed to create indexes: %v", err)
	}

	return client, nil
}

func createIndexes(client *mongo.Client, dbName string) error {
	db := client.Database(dbName)

	// Documents collection indexes
	documentsCollection := db.Collection("documents")
	documentIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "status", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "file_hash", Value: 1}},
		},
	}
	_, err := documentsCollection.Indexes().CreateMany(context.Background(), documentIndexes)
	if err != nil {
		return err
	}

	// Concepts collection indexes
	conceptsCollection := db.Collection("concepts")
	conceptIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "next_review", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "document_id", Value: 1}, {Key: "mastery_score", Value: 1}},
		},
		{
			// Case-insensitive name lookups back the cross-document mastery broadcast
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "name", Value: 1}},
			Options: options.Index().SetCollation(&options.Collation{Locale: "en", Strength: 2}),
		},
	}
	_, err = conceptsCollection.Indexes().CreateMany(context.Background(), conceptIndexes)
	if err != nil {
		return err
	}

	// Quizzes collection indexes
	quizzesCollection := db.Collection("quizzes")
	quizIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "document_id", Value: 1}},
		},
	}
	_, err = quizzesCollection.Indexes().CreateMany(context.Background(), quizIndexes)
	if err != nil {
		return err
	}

	// Revision plans: one active plan per user
	plansCollection := db.Collection("revision_plans")
	planIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	_, err = plansCollection.Indexes().CreateMany(context.Background(), planIndexes)
	if err != nil {
		return err
	}

	// Learning events collection indexes
	eventsCollection := db.Collection("learning_events")
	eventIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "timestamp", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "event_type", Value: 1}},
		},
	}
	_, err = eventsCollection.Indexes().CreateMany(context.Background(), eventIndexes)
	if err != nil {
		return err
	}

	return nil
}
