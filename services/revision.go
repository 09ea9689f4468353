package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"studyai-platform/internal/logger"
	"studyai-platform/internal/vectorstore"
	"studyai-platform/models"
)

// Plan generation bounds
const (
	planCandidateCap   = 50
	planFragmentsPer   = 2
	defaultHorizonDays = 7
)

// GeneratePlan builds the user's revision schedule and replaces any prior
// plan. Candidates are concepts below the strategy's mastery threshold or
// due within the horizon, sorted weakest and most overdue first.
func (s *Scheduler) GeneratePlan(ctx context.Context, userID, strategy string, focusDocuments []string, horizonDays int) (*models.RevisionPlan, error) {
	if horizonDays <= 0 {
		horizonDays = defaultHorizonDays
	}
	threshold := models.StrategyThreshold(strategy)

	concepts, err := s.store.ListConceptsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if len(focusDocuments) > 0 {
		focus := make(map[string]bool, len(focusDocuments))
		for _, id := range focusDocuments {
			focus[id] = true
		}
		filtered := concepts[:0]
		for _, c := range concepts {
			if focus[c.DocumentID] {
				filtered = append(filtered, c)
			}
		}
		concepts = filtered
	}

	now := time.Now()
	horizon := now.AddDate(0, 0, horizonDays)

	var candidates []models.Concept
	for _, c := range concepts {
		if c.MasteryScore < threshold || !c.NextReview.After(horizon) {
			candidates = append(candidates, c)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].MasteryScore != candidates[j].MasteryScore {
			return candidates[i].MasteryScore < candidates[j].MasteryScore
		}
		return candidates[i].NextReview.Before(candidates[j].NextReview)
	})
	if len(candidates) > planCandidateCap {
		candidates = candidates[:planCandidateCap]
	}

	filenames := s.documentFilenames(ctx, userID)

	plan := &models.RevisionPlan{
		ID:         uuid.NewString(),
		UserID:     userID,
		ConceptIDs: make([]string, 0, len(candidates)),
		Schedule:   make(map[string]models.RevisionItem, len(candidates)),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	// Evenly distribute candidates across the horizon
	perDay := max(1, len(candidates)/horizonDays)

	var masterySum float64
	for i, c := range candidates {
		masterySum += c.MasteryScore
		plan.ConceptIDs = append(plan.ConceptIDs, c.ID)

		dayOffset := i / perDay
		plan.Schedule[c.ID] = models.RevisionItem{
			Name:            c.Name,
			NextReview:      c.NextReview,
			Mastery:         c.MasteryScore,
			IntervalDays:    c.IntervalDays,
			Filename:        filenames[c.DocumentID],
			SuggestedChunks: s.supportingFragments(ctx, userID, c),
			LinkedConcepts:  linkedConcepts(c, candidates),
			ScheduledDay:    now.AddDate(0, 0, dayOffset).Format("2006-01-02"),
			StrategyUsed:    strategy,
		}
	}

	if len(candidates) > 0 {
		plan.PriorityScore = 1 - masterySum/float64(len(candidates))
	}

	if err := s.store.UpsertRevisionPlan(ctx, plan); err != nil {
		return nil, err
	}

	event := &models.LearningEvent{
		ID:        uuid.NewString(),
		UserID:    userID,
		EventType: models.EventRevision,
		Result: map[string]any{
			"strategy":   strategy,
			"candidates": len(candidates),
			"horizon":    horizonDays,
		},
		Timestamp: now,
	}
	if err := s.store.InsertEvent(ctx, event); err != nil {
		logger.Warn("failed to record revision event", "error", err)
	}

	return plan, nil
}

// supportingFragments fetches up to two chunks of context for a concept,
// preferring fragments from the concept's own document. Embedding or search
// failure degrades to no fragments.
func (s *Scheduler) supportingFragments(ctx context.Context, userID string, concept models.Concept) []string {
	query := concept.Name
	if concept.Definition != "" {
		query += ": " + concept.Definition
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		logger.Warn("failed to embed concept for plan context", "concept", concept.Name, "error", err)
		return nil
	}

	own, err := s.vectors.Search(userID, vector, planFragmentsPer, func(e vectorstore.Entry) bool {
		return e.DocumentID == concept.DocumentID
	})
	if err != nil {
		logger.Warn("plan context search failed", "concept", concept.Name, "error", err)
		return nil
	}

	fragments := make([]string, 0, planFragmentsPer)
	seen := make(map[string]bool)
	for _, r := range own {
		fragments = append(fragments, r.Text)
		seen[r.ID] = true
	}

	if len(fragments) < planFragmentsPer {
		any, err := s.vectors.Search(userID, vector, planFragmentsPer, nil)
		if err == nil {
			for _, r := range any {
				if seen[r.ID] {
					continue
				}
				fragments = append(fragments, r.Text)
				if len(fragments) == planFragmentsPer {
					break
				}
			}
		}
	}

	return fragments
}

// linkedConcepts returns other candidate names appearing as a substring of
// this concept's definition, compared case-insensitively
func linkedConcepts(concept models.Concept, candidates []models.Concept) []string {
	definition := strings.ToLower(concept.Definition)
	if definition == "" {
		return nil
	}

	var linked []string
	for _, other := range candidates {
		if other.ID == concept.ID {
			continue
		}
		if strings.EqualFold(other.Name, concept.Name) {
			continue
		}
		if strings.Contains(definition, strings.ToLower(other.Name)) {
			linked = append(linked, other.Name)
		}
	}
	return linked
}

// documentFilenames maps the user's document ids to filenames for schedule
// entries; lookup failure degrades to empty names
func (s *Scheduler) documentFilenames(ctx context.Context, userID string) map[string]string {
	filenames := make(map[string]string)
	docs, err := s.store.ListDocuments(ctx, userID)
	if err != nil {
		logger.Warn("failed to list documents for plan", "error", err)
		return filenames
	}
	for _, d := range docs {
		filenames[d.ID] = d.Filename
	}
	return filenames
}
