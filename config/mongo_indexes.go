package config

import (
	"context"
	"errors"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoDatabase returns the configured database (MONGO_DB, default "interviewx").
func MongoDatabase() *mongo.Database {
	dbName := os.Getenv("MONGO_DB")
	if dbName == "" {
		dbName = "interviewx"
	}
	return MongoClient.Database(dbName)
}

func EnsureMongoIndexes() error {
	if MongoClient == nil {
		return errors.New("MongoClient is nil; call InitMongo() first")
	}
	db := MongoDatabase()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	evaluations := db.Collection("evaluations")
	_, err := evaluations.Indexes().CreateMany(ctx, []mongo.IndexModel{
		// one evaluation per (interview, question, candidate)
		{
			Keys: bson.D{
				{Key: "interview_id", Value: 1},
				{Key: "question_id", Value: 1},
				{Key: "candidate_id", Value: 1},
			},
			Options: options.Index().
				SetName("uniq_interview_question_candidate").
				SetUnique(true),
		},
		// stale sweep
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "processing_started_at", Value: 1}},
			Options: options.Index().SetName("by_status_lease"),
		},
		{
			Keys:    bson.D{{Key: "interview_id", Value: 1}, {Key: "created_at", Value: 1}},
			Options: options.Index().SetName("by_interview_created"),
		},
	})
	if err != nil {
		return err
	}

	interviews := db.Collection("interviews")
	_, err = interviews.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("by_user_created"),
		},
	})
	if err != nil {
		return err
	}

	realtime := db.Collection("realtime_events")
	_, err = realtime.Indexes().CreateMany(ctx, []mongo.IndexModel{
		// TTL: expire at expires_at (must be Date)
		{
			Keys: bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().
				SetName("ttl_expires_at").
				SetExpireAfterSeconds(0),
		},
		{
			Keys:    bson.D{{Key: "evaluation_id", Value: 1}, {Key: "timestamp", Value: 1}},
			Options: options.Index().SetName("by_evaluation_ts"),
		},
	})
	return err
}
