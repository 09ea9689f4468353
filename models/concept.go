package models

import "time"

// Concept is one extracted knowledge unit with its SM-2 spaced-repetition
// state. Identity for mastery purposes is the case-insensitive name scoped to
// the owning user, not the record id: the same name across documents is
// treated as one knowledge unit and reviewed as a unit.
type Concept struct {
	ID              string    `bson:"_id,omitempty" json:"id"`
	DocumentID      string    `bson:"document_id" json:"document_id"`
	UserID          string    `bson:"user_id" json:"user_id"`
	Name            string    `bson:"name" json:"name"`
	Definition      string    `bson:"definition,omitempty" json:"definition,omitempty"`
	RelatedConcepts []string  `bson:"related_concepts,omitempty" json:"related_concepts,omitempty"`
	MasteryScore    float64   `bson:"mastery_score" json:"mastery_score"` // 0..1
	EasinessFactor  float64   `bson:"easiness_factor" json:"easiness_factor"`
	RepetitionCount int       `bson:"repetition_count" json:"repetition_count"`
	IntervalDays    int       `bson:"interval_days" json:"interval_days"`
	NextReview      time.Time `bson:"next_review" json:"next_review"`
	CreatedAt       time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time `bson:"updated_at" json:"updated_at"`
}

// SM-2 defaults for freshly extracted concepts
const (
	DefaultEasinessFactor = 2.5
	MinEasinessFactor     = 1.3
	DefaultIntervalDays   = 1
)

// AnalyticsSnapshot aggregates mastery tiers across a user's concept set
type AnalyticsSnapshot struct {
	Mastered int     `bson:"mastered" json:"mastered"` // mastery >= 0.7
	Learning int     `bson:"learning" json:"learning"` // 0.4 <= mastery < 0.7
	Weak     int     `bson:"weak" json:"weak"`         // mastery < 0.4
	Overall  float64 `bson:"overall" json:"overall"`
	Total    int     `bson:"total" json:"total"`
}
