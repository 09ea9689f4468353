package services

import (
	"context"
	"testing"
	"time"

	"studyai-platform/models"
)

func TestGradeAnswerMCQ(t *testing.T) {
	question := models.QuizQuestion{Type: "mcq", Answer: "Mitochondria"}

	cases := []struct {
		given string
		want  bool
	}{
		{"Mitochondria", true},
		{"  mitochondria  ", true},
		{"MITOCHONDRIA", true},
		{"Mitochondrian", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := gradeAnswer(question, tc.given); got != tc.want {
			t.Errorf("gradeAnswer(%q) = %v, want %v", tc.given, got, tc.want)
		}
	}
}

func TestGradeAnswerFillblank(t *testing.T) {
	question := models.QuizQuestion{Type: "fillblank", Answer: "photosynthesis"}

	// One typo in a long word stays above the similarity floor
	if !gradeAnswer(question, "photosyntheses") {
		t.Error("near-miss should be accepted")
	}
	if gradeAnswer(question, "respiration") {
		t.Error("unrelated answer should be rejected")
	}
}

func TestSimilarityRatio(t *testing.T) {
	if r := similarityRatio("abc", "abc"); r != 1 {
		t.Errorf("identical ratio = %f, want 1", r)
	}
	if r := similarityRatio("abc", ""); r != 0 {
		t.Errorf("empty ratio = %f, want 0", r)
	}
	if r := similarityRatio("kitten", "sitting"); r < 0.5 || r > 0.6 {
		t.Errorf("kitten/sitting ratio = %f, want ~0.571", r)
	}
}

func quizTestService(store *memStore, gen TextGenerator) *QuizService {
	scheduler := NewScheduler(store, newMemIndex(), &fakeEmbedder{dim: 4}, nil)
	return NewQuizService(store, gen, scheduler)
}

func TestGenerateQuizFromWeakestConcepts(t *testing.T) {
	store := newMemStore()

	var concepts []models.Concept
	for i := 0; i < 10; i++ {
		concepts = append(concepts, models.Concept{
			ID: string(rune('a' + i)), UserID: "u1", DocumentID: "d1",
			Name: string(rune('A' + i)), MasteryScore: float64(i) / 10,
		})
	}
	store.InsertConcepts(context.Background(), concepts)

	gen := &fakeGenerator{response: `[{"type": "mcq", "question": "Q?", "options": ["x", "y"], "answer": "x", "explanation": "e"}]`}
	quiz, err := quizTestService(store, gen).Generate(context.Background(), "u1", "d1", models.StrategyBalanced)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	// 8 weakest concepts, one parsed question each
	if len(quiz.Questions) != 8 {
		t.Errorf("got %d questions, want 8", len(quiz.Questions))
	}
	if gen.calls != 8 {
		t.Errorf("gateway called %d times, want 8", gen.calls)
	}

	stored, err := store.GetQuiz(context.Background(), "u1", quiz.ID)
	if err != nil || len(stored.Questions) != 8 {
		t.Errorf("quiz not persisted: %v", err)
	}
}

func TestGenerateQuizEmptyNotPersisted(t *testing.T) {
	store := newMemStore()
	store.InsertConcepts(context.Background(), []models.Concept{
		{ID: "c1", UserID: "u1", DocumentID: "d1", Name: "C1"},
	})

	gen := &fakeGenerator{response: "not json"}
	quiz, err := quizTestService(store, gen).Generate(context.Background(), "u1", "d1", models.StrategyBalanced)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(quiz.Questions) != 0 {
		t.Errorf("got %d questions, want 0", len(quiz.Questions))
	}
	if _, err := store.GetQuiz(context.Background(), "u1", quiz.ID); err == nil {
		t.Error("empty quiz should not be persisted")
	}
}

func TestSubmitGradesAndAppliesReviews(t *testing.T) {
	store := newMemStore()
	store.InsertConcepts(context.Background(), []models.Concept{
		{ID: "c1", UserID: "u1", Name: "Right", EasinessFactor: 2.5, IntervalDays: 1},
		{ID: "c2", UserID: "u1", Name: "Wrong", EasinessFactor: 2.5, IntervalDays: 1},
	})

	quiz := &models.Quiz{
		ID: "q1", UserID: "u1", CreatedAt: time.Now(),
		Questions: []models.QuizQuestion{
			{Type: "mcq", Question: "1?", Answer: "yes", ConceptID: "c1"},
			{Type: "mcq", Question: "2?", Answer: "yes", ConceptID: "c2"},
		},
	}
	store.SaveQuiz(context.Background(), quiz)

	svc := quizTestService(store, &fakeGenerator{})
	result, err := svc.Submit(context.Background(), "u1", "q1", map[int]string{0: "yes", 1: "no"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if result.Correct != 1 || result.Total != 2 || result.Score != 0.5 {
		t.Errorf("result = %+v", result)
	}

	// Correct answer reviewed at quality 5, incorrect at quality 2
	right, _ := store.GetConcept(context.Background(), "u1", "c1")
	if right.MasteryScore != 1 {
		t.Errorf("correct concept mastery = %f, want 1", right.MasteryScore)
	}
	wrong, _ := store.GetConcept(context.Background(), "u1", "c2")
	if wrong.MasteryScore != 0.4 {
		t.Errorf("incorrect concept mastery = %f, want 0.4", wrong.MasteryScore)
	}
	if wrong.RepetitionCount != 0 || wrong.IntervalDays != 1 {
		t.Errorf("incorrect concept should reset: %+v", wrong)
	}

	stored, _ := store.GetQuiz(context.Background(), "u1", "q1")
	if stored.Score == nil || *stored.Score != 0.5 || stored.TakenAt == nil {
		t.Errorf("submission not recorded: %+v", stored)
	}
}

func TestSubmitSkipsUnansweredQuestions(t *testing.T) {
	store := newMemStore()
	quiz := &models.Quiz{
		ID: "q1", UserID: "u1",
		Questions: []models.QuizQuestion{
			{Type: "mcq", Question: "1?", Answer: "a"},
			{Type: "mcq", Question: "2?", Answer: "b"},
		},
	}
	store.SaveQuiz(context.Background(), quiz)

	result, err := quizTestService(store, &fakeGenerator{}).Submit(context.Background(), "u1", "q1", map[int]string{1: "b"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(result.Answers) != 1 || result.Correct != 1 || result.Total != 2 {
		t.Errorf("result = %+v", result)
	}
}
