package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"studyai-platform/internal/logger"
	"studyai-platform/models"
)

// Quiz generation bounds
const (
	quizConcepts        = 8
	questionsPerConcept = 2
)

// fillblankMatchRatio is the similarity floor for accepting a free-text
// answer as correct
const fillblankMatchRatio = 0.85

// Review qualities assigned by quiz grading
const (
	qualityCorrect   = 5
	qualityIncorrect = 2
)

// QuizService generates quizzes from the weakest concepts and grades
// submissions, feeding results back into the spaced-repetition state
type QuizService struct {
	store     Store
	generator TextGenerator
	scheduler *Scheduler
}

func NewQuizService(store Store, generator TextGenerator, scheduler *Scheduler) *QuizService {
	return &QuizService{store: store, generator: generator, scheduler: scheduler}
}

const quizPrompt = `Create %d multiple-choice questions testing understanding of the concept "%s".
Definition: %s

Respond with ONLY a JSON array where each element has the shape:
{"type": "mcq", "question": "...", "options": ["A", "B", "C", "D"], "answer": "the correct option text", "explanation": "why"}`

type generatedQuestion struct {
	Type        string   `json:"type"`
	Question    string   `json:"question"`
	Options     []string `json:"options"`
	Answer      string   `json:"answer"`
	Explanation string   `json:"explanation"`
}

// Generate builds a quiz over the weakest concepts in scope. Per-concept
// gateway failures are skipped; a quiz with zero questions is still a valid
// degraded result and is not persisted.
func (qs *QuizService) Generate(ctx context.Context, userID, documentID, difficulty string) (*models.Quiz, error) {
	var (
		concepts []models.Concept
		err      error
	)
	if documentID != "" {
		concepts, err = qs.store.ListConceptsByDocument(ctx, userID, documentID)
	} else {
		concepts, err = qs.store.ListConceptsByUser(ctx, userID)
	}
	if err != nil {
		return nil, err
	}

	sort.SliceStable(concepts, func(i, j int) bool {
		return concepts[i].MasteryScore < concepts[j].MasteryScore
	})
	if len(concepts) > quizConcepts {
		concepts = concepts[:quizConcepts]
	}

	quiz := &models.Quiz{
		ID:         uuid.NewString(),
		UserID:     userID,
		DocumentID: documentID,
		Difficulty: difficulty,
		CreatedAt:  time.Now(),
	}

	for _, concept := range concepts {
		raw, err := qs.generator.Generate(ctx, fmt.Sprintf(quizPrompt, questionsPerConcept, concept.Name, concept.Definition))
		if err != nil {
			logger.Warn("quiz generation failed for concept", "concept", concept.Name, "error", err)
			continue
		}

		questions, err := parseQuestionArray(raw)
		if err != nil {
			logger.Warn("malformed quiz response", "concept", concept.Name, "error", err)
			continue
		}

		for _, q := range questions {
			if q.Question == "" || q.Answer == "" {
				continue
			}
			qType := q.Type
			if qType == "" {
				qType = "mcq"
			}
			quiz.Questions = append(quiz.Questions, models.QuizQuestion{
				Type:        qType,
				Question:    q.Question,
				Options:     q.Options,
				Answer:      q.Answer,
				Explanation: q.Explanation,
				Concept:     concept.Name,
				ConceptID:   concept.ID,
			})
		}
	}

	if len(quiz.Questions) == 0 {
		return quiz, nil
	}

	if err := qs.store.SaveQuiz(ctx, quiz); err != nil {
		return nil, err
	}
	return quiz, nil
}

func parseQuestionArray(raw string) ([]generatedQuestion, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	start := strings.Index(cleaned, "[")
	end := strings.LastIndex(cleaned, "]")
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("no JSON array in response")
	}

	var parsed []generatedQuestion
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode question array: %w", err)
	}
	return parsed, nil
}

// SubmissionResult reports one graded quiz
type SubmissionResult struct {
	QuizID  string              `json:"quiz_id"`
	Score   float64             `json:"score"`
	Correct int                 `json:"correct"`
	Total   int                 `json:"total"`
	Answers []models.QuizAnswer `json:"answers"`
}

// Submit grades the given answers against the stored quiz, applies a review
// per answered concept (quality 5 for correct, 2 for incorrect) and records
// the submission and a learning event.
func (qs *QuizService) Submit(ctx context.Context, userID, quizID string, answers map[int]string) (*SubmissionResult, error) {
	quiz, err := qs.store.GetQuiz(ctx, userID, quizID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	result := &SubmissionResult{QuizID: quizID, Total: len(quiz.Questions)}

	for idx, question := range quiz.Questions {
		userAnswer, answered := answers[idx]
		if !answered {
			continue
		}

		correct := gradeAnswer(question, userAnswer)
		if correct {
			result.Correct++
		}

		result.Answers = append(result.Answers, models.QuizAnswer{
			QuestionIndex: idx,
			ConceptID:     question.ConceptID,
			UserAnswer:    userAnswer,
			Correct:       correct,
			AnsweredAt:    now,
		})

		if question.ConceptID == "" {
			continue
		}
		quality := qualityIncorrect
		if correct {
			quality = qualityCorrect
		}
		if _, err := qs.scheduler.ApplyReview(ctx, userID, question.ConceptID, quality); err != nil {
			logger.Warn("failed to apply quiz review", "concept_id", question.ConceptID, "error", err)
		}
	}

	if result.Total > 0 {
		result.Score = float64(result.Correct) / float64(result.Total)
	}

	if err := qs.store.RecordQuizSubmission(ctx, quizID, result.Score, result.Answers); err != nil {
		return nil, err
	}

	event := &models.LearningEvent{
		ID:        uuid.NewString(),
		UserID:    userID,
		EventType: models.EventQuiz,
		Result: map[string]any{
			"quiz_id": quizID,
			"score":   result.Score,
			"correct": result.Correct,
			"total":   result.Total,
		},
		Timestamp: now,
	}
	if err := qs.store.InsertEvent(ctx, event); err != nil {
		logger.Warn("failed to record quiz event", "error", err)
	}

	return result, nil
}

// gradeAnswer checks an answer against the expected one: exact
// case-insensitive match for choice questions, fuzzy match for free text
func gradeAnswer(question models.QuizQuestion, userAnswer string) bool {
	expected := normalizeAnswer(question.Answer)
	given := normalizeAnswer(userAnswer)

	if question.Type == "fillblank" {
		return similarityRatio(expected, given) >= fillblankMatchRatio
	}
	return expected == given
}

func normalizeAnswer(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// similarityRatio computes normalized edit-distance similarity in [0,1]
func similarityRatio(a, b string) float64 {
	if a == b {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	distance := prev[len(rb)]
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	return 1 - float64(distance)/float64(longest)
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
