package services

import (
	"context"
	"math"
	"time"

	"studyai-platform/internal/telemetry"
	"studyai-platform/models"
)

// Scheduler is the SM-2 derived spaced-repetition engine. Concept identity
// for review purposes is the case-insensitive name per owner, so one review
// updates every record of that name across the owner's documents.
type Scheduler struct {
	store    Store
	vectors  VectorIndex
	embedder Embedder
	metrics  *telemetry.Metrics
}

func NewScheduler(store Store, vectors VectorIndex, embedder Embedder, metrics *telemetry.Metrics) *Scheduler {
	return &Scheduler{store: store, vectors: vectors, embedder: embedder, metrics: metrics}
}

// ApplyReview records one review with quality 0..5 and returns the updated
// concept. Quality below 3 is failed recall: repetitions reset to 0 and the
// interval to 1 day. The resulting state is broadcast to every concept
// record of the same owner with a case-insensitively matching name.
func (s *Scheduler) ApplyReview(ctx context.Context, userID, conceptID string, quality int) (*models.Concept, error) {
	if quality < 0 {
		quality = 0
	}
	if quality > 5 {
		quality = 5
	}

	concept, err := s.store.GetConcept(ctx, userID, conceptID)
	if err != nil {
		return nil, err
	}

	update := NextReviewState(concept.EasinessFactor, concept.RepetitionCount, concept.IntervalDays, quality)

	if _, err := s.store.BroadcastReview(ctx, userID, concept.Name, update); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordReviewApplied(quality)
	}

	concept.MasteryScore = update.MasteryScore
	concept.EasinessFactor = update.EasinessFactor
	concept.RepetitionCount = update.RepetitionCount
	concept.IntervalDays = update.IntervalDays
	concept.NextReview = update.NextReview
	concept.UpdatedAt = time.Now()
	return concept, nil
}

// NextReviewState computes the post-review SM-2 state from the prior state
// and a quality grade. Pure so it can be tested without a store.
func NextReviewState(easiness float64, repetitions, intervalDays, quality int) ReviewUpdate {
	var newReps, newInterval int
	if quality < 3 {
		newReps = 0
		newInterval = 1
	} else {
		switch repetitions {
		case 0:
			newInterval = 1
		case 1:
			newInterval = 6
		default:
			newInterval = int(math.Round(float64(intervalDays) * easiness))
		}
		newReps = repetitions + 1
	}
	if newInterval < 1 {
		newInterval = 1
	}

	q := float64(quality)
	newEF := easiness + 0.1 - (5-q)*(0.08+(5-q)*0.02)
	if newEF < models.MinEasinessFactor {
		newEF = models.MinEasinessFactor
	}

	mastery := q / 5
	if mastery > 1 {
		mastery = 1
	}

	return ReviewUpdate{
		MasteryScore:    mastery,
		EasinessFactor:  newEF,
		RepetitionCount: newReps,
		IntervalDays:    newInterval,
		NextReview:      time.Now().AddDate(0, 0, newInterval),
	}
}
