package ai

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// UserGeminiQuota tracks per-user daily model usage
type UserGeminiQuota struct {
	UserID          string    `bson:"user_id"`
	DailyTokenLimit int       `bson:"daily_token_limit"`
	TokensUsedToday int       `bson:"tokens_used_today"`
	RequestsToday   int       `bson:"requests_today"`
	LastResetDate   time.Time `bson:"last_reset_date"`
	CreatedAt       time.Time `bson:"created_at"`
	UpdatedAt       time.Time `bson:"updated_at"`
}

// ErrQuotaExceeded is returned when a user has exhausted their daily tokens
var ErrQuotaExceeded = errors.New("daily quota exceeded")

// CheckUserQuota verifies the user can consume estimatedTokens today and
// records the consumption. Called before interactive model usage (question
// answering, quiz generation); background pipeline runs are not charged.
func CheckUserQuota(ctx context.Context, db *mongo.Database, userID string, estimatedTokens int) error {
	col := db.Collection("gemini_quotas")

	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	// Reset if new day
	_, err := col.UpdateOne(ctx, bson.M{
		"user_id":         userID,
		"last_reset_date": bson.M{"$lt": today},
	}, bson.M{
		"$set": bson.M{
			"tokens_used_today": 0,
			"requests_today":    0,
			"last_reset_date":   today,
			"updated_at":        now,
		},
	})
	if err != nil {
		return err
	}

	var quota UserGeminiQuota
	err = col.FindOne(ctx, bson.M{"user_id": userID}).Decode(&quota)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			quota = UserGeminiQuota{
				UserID:          userID,
				DailyTokenLimit: 100000,
				LastResetDate:   today,
				CreatedAt:       now,
				UpdatedAt:       now,
			}
			if _, err := col.InsertOne(ctx, quota); err != nil {
				return err
			}
		} else {
			return err
		}
	}

	if quota.TokensUsedToday+estimatedTokens > quota.DailyTokenLimit {
		return ErrQuotaExceeded
	}

	_, err = col.UpdateOne(
		ctx,
		bson.M{"user_id": userID},
		bson.M{
			"$inc": bson.M{
				"tokens_used_today": estimatedTokens,
				"requests_today":    1,
			},
			"$set": bson.M{
				"updated_at": now,
			},
		},
	)
	return err
}

// GetUserQuotaStatus returns current quota status for a user
func GetUserQuotaStatus(ctx context.Context, db *mongo.Database, userID string) (*UserGeminiQuota, error) {
	col := db.Collection("gemini_quotas")

	var quota UserGeminiQuota
	if err := col.FindOne(ctx, bson.M{"user_id": userID}).Decode(&quota); err != nil {
		return nil, err
	}
	return &quota, nil
}
