package services

import (
	"context"
	"testing"
	"time"

	"studyai-platform/internal/config"
	"studyai-platform/models"
)

func TestSweepRefreshesDueUsers(t *testing.T) {
	store := newMemStore()
	scheduler := planTestScheduler(store)

	store.InsertConcepts(context.Background(), []models.Concept{
		{ID: "c1", UserID: "due-user", Name: "A", MasteryScore: 0.1, NextReview: time.Now().Add(-time.Hour)},
		{ID: "c2", UserID: "fresh-user", Name: "B", MasteryScore: 0.9, NextReview: time.Now().AddDate(0, 1, 0)},
	})

	sweep := NewSweepService(&config.Config{RevisionSweepCron: "0 3 * * *"}, store, scheduler)
	sweep.Sweep(context.Background())

	plan, _ := store.GetRevisionPlan(context.Background(), "due-user")
	if plan == nil || len(plan.ConceptIDs) != 1 {
		t.Errorf("due user's plan not refreshed: %+v", plan)
	}
	if plan != nil && plan.Schedule["c1"].StrategyUsed != models.StrategyBalanced {
		t.Errorf("sweep should use the balanced strategy")
	}

	if fresh, _ := store.GetRevisionPlan(context.Background(), "fresh-user"); fresh != nil {
		t.Error("user with no due concepts should be left alone")
	}
}

func TestSweepFailsStaleDocuments(t *testing.T) {
	store := newMemStore()

	store.CreateDocument(context.Background(), &models.StudyDocument{
		ID: "stuck", UserID: "u1", Status: models.StatusProcessing,
		UpdatedAt: time.Now().Add(-3 * time.Hour),
	})
	store.CreateDocument(context.Background(), &models.StudyDocument{
		ID: "active", UserID: "u1", Status: models.StatusProcessing,
		UpdatedAt: time.Now().Add(-time.Minute),
	})
	store.CreateDocument(context.Background(), &models.StudyDocument{
		ID: "finished", UserID: "u1", Status: models.StatusDone,
		UpdatedAt: time.Now().Add(-3 * time.Hour),
	})

	sweep := NewSweepService(&config.Config{RevisionSweepCron: "0 3 * * *"}, store, planTestScheduler(store))
	sweep.Sweep(context.Background())

	stuck, _ := store.GetDocument(context.Background(), "u1", "stuck")
	if stuck.Status != models.StatusError || stuck.ErrorMessage == "" {
		t.Errorf("stale document not failed: %+v", stuck)
	}
	active, _ := store.GetDocument(context.Background(), "u1", "active")
	if active.Status != models.StatusProcessing {
		t.Errorf("recent run should be untouched, got %s", active.Status)
	}
	finished, _ := store.GetDocument(context.Background(), "u1", "finished")
	if finished.Status != models.StatusDone {
		t.Errorf("finished document should be untouched, got %s", finished.Status)
	}
}

func TestSweepStartStop(t *testing.T) {
	store := newMemStore()
	sweep := NewSweepService(&config.Config{RevisionSweepCron: "0 3 * * *"}, store, planTestScheduler(store))

	if err := sweep.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	sweep.Stop()
}
