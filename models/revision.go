package models

import "time"

// RevisionPlan is the single active study plan per user. Regeneration
// replaces the previous plan wholesale (upsert, never append).
type RevisionPlan struct {
	ID            string                  `bson:"_id,omitempty" json:"id"`
	UserID        string                  `bson:"user_id" json:"user_id"`
	ConceptIDs    []string                `bson:"concept_ids" json:"concept_ids"`
	Schedule      map[string]RevisionItem `bson:"schedule" json:"schedule"` // keyed by concept id
	PriorityScore float64                 `bson:"priority_score" json:"priority_score"`
	CreatedAt     time.Time               `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time               `bson:"updated_at" json:"updated_at"`
}

// RevisionItem is the per-concept schedule entry within a plan
type RevisionItem struct {
	Name            string    `bson:"name" json:"name"`
	NextReview      time.Time `bson:"next_review" json:"next_review"`
	Mastery         float64   `bson:"mastery" json:"mastery"`
	IntervalDays    int       `bson:"interval_days" json:"interval_days"`
	Filename        string    `bson:"filename" json:"filename"`
	SuggestedChunks []string  `bson:"suggested_chunks" json:"suggested_chunks"`
	LinkedConcepts  []string  `bson:"linked_concepts" json:"linked_concepts"`
	ScheduledDay    string    `bson:"scheduled_day" json:"scheduled_day"` // ISO date
	StrategyUsed    string    `bson:"strategy_used" json:"strategy_used"`
}

// Revision strategies and their mastery thresholds
const (
	StrategyAggressive = "aggressive" // threshold 0.8
	StrategyBalanced   = "balanced"   // threshold 0.6
	StrategyLight      = "light"      // threshold 0.4
)

// StrategyThreshold returns the mastery cutoff for a strategy,
// defaulting to balanced for unknown values
func StrategyThreshold(strategy string) float64 {
	switch strategy {
	case StrategyAggressive:
		return 0.8
	case StrategyLight:
		return 0.4
	default:
		return 0.6
	}
}
