package services

import (
	"context"

	"studyai-platform/models"
)

// Mastery tier boundaries
const (
	masteredFloor = 0.7
	learningFloor = 0.4
)

// ComputeSnapshot aggregates mastery tiers across a concept set
func ComputeSnapshot(concepts []models.Concept) *models.AnalyticsSnapshot {
	snapshot := &models.AnalyticsSnapshot{Total: len(concepts)}

	var sum float64
	for _, c := range concepts {
		sum += c.MasteryScore
		switch {
		case c.MasteryScore >= masteredFloor:
			snapshot.Mastered++
		case c.MasteryScore >= learningFloor:
			snapshot.Learning++
		default:
			snapshot.Weak++
		}
	}
	if snapshot.Total > 0 {
		snapshot.Overall = sum / float64(snapshot.Total)
	}
	return snapshot
}

// AnalyticsService serves learning progress overviews
type AnalyticsService struct {
	store Store
}

func NewAnalyticsService(store Store) *AnalyticsService {
	return &AnalyticsService{store: store}
}

// DocumentProgress summarizes one document's concept mastery
type DocumentProgress struct {
	DocumentID string  `json:"document_id"`
	Filename   string  `json:"filename"`
	Status     string  `json:"status"`
	Concepts   int     `json:"concepts"`
	AvgMastery float64 `json:"avg_mastery"`
}

// Overview is the aggregate analytics response
type Overview struct {
	Snapshot  *models.AnalyticsSnapshot `json:"snapshot"`
	Documents []DocumentProgress        `json:"documents"`
	Recent    []models.LearningEvent    `json:"recent_events"`
}

// Overview aggregates the user's mastery snapshot, per-document progress
// and recent learning activity
func (as *AnalyticsService) Overview(ctx context.Context, userID string) (*Overview, error) {
	concepts, err := as.store.ListConceptsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	docs, err := as.store.ListDocuments(ctx, userID)
	if err != nil {
		return nil, err
	}

	byDocument := make(map[string][]models.Concept)
	for _, c := range concepts {
		byDocument[c.DocumentID] = append(byDocument[c.DocumentID], c)
	}

	progress := make([]DocumentProgress, 0, len(docs))
	for _, d := range docs {
		docConcepts := byDocument[d.ID]
		var sum float64
		for _, c := range docConcepts {
			sum += c.MasteryScore
		}
		avg := 0.0
		if len(docConcepts) > 0 {
			avg = sum / float64(len(docConcepts))
		}
		progress = append(progress, DocumentProgress{
			DocumentID: d.ID,
			Filename:   d.Filename,
			Status:     d.Status,
			Concepts:   len(docConcepts),
			AvgMastery: avg,
		})
	}

	recent, err := as.store.ListEvents(ctx, userID, 20)
	if err != nil {
		return nil, err
	}

	return &Overview{
		Snapshot:  ComputeSnapshot(concepts),
		Documents: progress,
		Recent:    recent,
	}, nil
}
