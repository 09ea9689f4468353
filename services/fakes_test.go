package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"studyai-platform/internal/vectorstore"
	"studyai-platform/models"
)

// memStore is an in-memory Store for service tests
type memStore struct {
	mu        sync.Mutex
	documents map[string]*models.StudyDocument
	concepts  map[string]*models.Concept
	quizzes   map[string]*models.Quiz
	plans     map[string]*models.RevisionPlan
	events    []models.LearningEvent

	planUpserts int
}

func newMemStore() *memStore {
	return &memStore{
		documents: make(map[string]*models.StudyDocument),
		concepts:  make(map[string]*models.Concept),
		quizzes:   make(map[string]*models.Quiz),
		plans:     make(map[string]*models.RevisionPlan),
	}
}

func (m *memStore) CreateDocument(_ context.Context, doc *models.StudyDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *doc
	m.documents[doc.ID] = &copied
	return nil
}

func (m *memStore) GetDocument(_ context.Context, userID, id string) (*models.StudyDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.documents[id]
	if !ok || doc.UserID != userID {
		return nil, ErrDocumentNotFound
	}
	copied := *doc
	return &copied, nil
}

func (m *memStore) FindDocumentByHash(_ context.Context, userID, hash string) (*models.StudyDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, doc := range m.documents {
		if doc.UserID == userID && doc.FileHash == hash {
			copied := *doc
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *memStore) ListDocuments(_ context.Context, userID string) ([]models.StudyDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var docs []models.StudyDocument
	for _, doc := range m.documents {
		if doc.UserID == userID {
			docs = append(docs, *doc)
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

func (m *memStore) UpdateDocumentStatus(_ context.Context, id, status, errorMessage string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.documents[id]
	if !ok {
		return ErrDocumentNotFound
	}
	doc.Status = status
	doc.ErrorMessage = errorMessage
	return nil
}

func (m *memStore) SetDocumentResults(_ context.Context, id, summary string, connections []models.Connection, chunkCount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.documents[id]
	if !ok {
		return ErrDocumentNotFound
	}
	doc.Summary = summary
	doc.Connections = connections
	doc.ChunkCount = chunkCount
	return nil
}

func (m *memStore) DeleteDocument(_ context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.documents[id]
	if !ok || doc.UserID != userID {
		return ErrDocumentNotFound
	}
	delete(m.documents, id)
	return nil
}

func (m *memStore) InsertConcepts(_ context.Context, concepts []models.Concept) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range concepts {
		copied := concepts[i]
		m.concepts[copied.ID] = &copied
	}
	return nil
}

func (m *memStore) GetConcept(_ context.Context, userID, id string) (*models.Concept, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	concept, ok := m.concepts[id]
	if !ok || concept.UserID != userID {
		return nil, ErrConceptNotFound
	}
	copied := *concept
	return &copied, nil
}

func (m *memStore) ListConceptsByUser(_ context.Context, userID string) ([]models.Concept, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Concept
	for _, c := range m.concepts {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) ListConceptsByDocument(_ context.Context, userID, documentID string) ([]models.Concept, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Concept
	for _, c := range m.concepts {
		if c.UserID == userID && c.DocumentID == documentID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) DeleteConceptsByDocument(_ context.Context, userID, documentID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed int64
	for id, c := range m.concepts {
		if c.UserID == userID && c.DocumentID == documentID {
			delete(m.concepts, id)
			removed++
		}
	}
	return removed, nil
}

func (m *memStore) BroadcastReview(_ context.Context, userID, name string, update ReviewUpdate) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched int64
	for _, c := range m.concepts {
		if c.UserID != userID || !strings.EqualFold(c.Name, name) {
			continue
		}
		c.MasteryScore = update.MasteryScore
		c.EasinessFactor = update.EasinessFactor
		c.RepetitionCount = update.RepetitionCount
		c.IntervalDays = update.IntervalDays
		c.NextReview = update.NextReview
		c.UpdatedAt = time.Now()
		matched++
	}
	return matched, nil
}

func (m *memStore) SaveQuiz(_ context.Context, quiz *models.Quiz) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *quiz
	m.quizzes[quiz.ID] = &copied
	return nil
}

func (m *memStore) GetQuiz(_ context.Context, userID, id string) (*models.Quiz, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	quiz, ok := m.quizzes[id]
	if !ok || quiz.UserID != userID {
		return nil, fmt.Errorf("quiz not found")
	}
	copied := *quiz
	return &copied, nil
}

func (m *memStore) ListQuizzes(_ context.Context, userID string) ([]models.Quiz, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Quiz
	for _, q := range m.quizzes {
		if q.UserID == userID {
			out = append(out, *q)
		}
	}
	return out, nil
}

func (m *memStore) RecordQuizSubmission(_ context.Context, quizID string, score float64, answers []models.QuizAnswer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	quiz, ok := m.quizzes[quizID]
	if !ok {
		return fmt.Errorf("quiz not found")
	}
	now := time.Now()
	quiz.Score = &score
	quiz.Answers = answers
	quiz.TakenAt = &now
	return nil
}

func (m *memStore) UpsertRevisionPlan(_ context.Context, plan *models.RevisionPlan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *plan
	m.plans[plan.UserID] = &copied
	m.planUpserts++
	return nil
}

func (m *memStore) GetRevisionPlan(_ context.Context, userID string) (*models.RevisionPlan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	plan, ok := m.plans[userID]
	if !ok {
		return nil, nil
	}
	copied := *plan
	return &copied, nil
}

func (m *memStore) InsertEvent(_ context.Context, event *models.LearningEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, *event)
	return nil
}

func (m *memStore) ListEvents(_ context.Context, userID string, limit int) ([]models.LearningEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.LearningEvent
	for i := len(m.events) - 1; i >= 0 && len(out) < limit; i-- {
		if m.events[i].UserID == userID {
			out = append(out, m.events[i])
		}
	}
	return out, nil
}

func (m *memStore) ListUsersWithDueConcepts(_ context.Context, before time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]bool)
	var users []string
	for _, c := range m.concepts {
		if !c.NextReview.After(before) && !seen[c.UserID] {
			seen[c.UserID] = true
			users = append(users, c.UserID)
		}
	}
	return users, nil
}

func (m *memStore) MarkStaleProcessing(_ context.Context, olderThan time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var flipped int64
	for _, d := range m.documents {
		if d.Status == models.StatusProcessing && d.UpdatedAt.Before(olderThan) {
			d.Status = models.StatusError
			d.ErrorMessage = "processing interrupted"
			d.UpdatedAt = time.Now()
			flipped++
		}
	}
	return flipped, nil
}

var _ Store = (*memStore)(nil)

// fakeGenerator returns canned text, optionally routed by prompt content
type fakeGenerator struct {
	response string
	err      error
	// respond overrides response when set
	respond func(prompt string) (string, error)

	mu    sync.Mutex
	calls int
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.respond != nil {
		return f.respond(prompt)
	}
	return f.response, f.err
}

// fakeEmbedder produces deterministic vectors derived from text length
type fakeEmbedder struct {
	dim int
	err error
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	vector := make([]float32, f.dim)
	for i := range vector {
		vector[i] = float32((len(text)+i)%7) / 7
	}
	return vector, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	vectors := make([][]float32, len(texts))
	for i, t := range texts {
		vectors[i], _ = f.Embed(ctx, t)
	}
	return vectors, nil
}

// memIndex is an in-memory VectorIndex with flat L2 search
type memIndex struct {
	mu     sync.Mutex
	owners map[string][]indexedVector
	nextID int
	err    error
}

type indexedVector struct {
	vector []float32
	entry  vectorstore.Entry
}

func newMemIndex() *memIndex {
	return &memIndex{owners: make(map[string][]indexedVector)}
}

func (m *memIndex) Add(owner string, vectors [][]float32, entries []vectorstore.Entry) ([]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, len(vectors))
	for i := range vectors {
		m.nextID++
		entry := entries[i]
		entry.ID = fmt.Sprintf("v%d", m.nextID)
		ids[i] = entry.ID
		m.owners[owner] = append(m.owners[owner], indexedVector{vector: vectors[i], entry: entry})
	}
	return ids, nil
}

func (m *memIndex) Search(owner string, query []float32, k int, filter func(vectorstore.Entry) bool) ([]vectorstore.Result, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var results []vectorstore.Result
	for _, iv := range m.owners[owner] {
		if filter != nil && !filter(iv.entry) {
			continue
		}
		var dist float64
		for i := range query {
			d := float64(query[i] - iv.vector[i])
			dist += d * d
		}
		results = append(results, vectorstore.Result{
			Entry: iv.entry,
			Score: 1 / (1 + math.Sqrt(dist)),
		})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (m *memIndex) DeleteByDocument(owner, documentID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.owners[owner][:0]
	removed := 0
	for _, iv := range m.owners[owner] {
		if iv.entry.DocumentID == documentID {
			removed++
			continue
		}
		kept = append(kept, iv)
	}
	m.owners[owner] = kept
	return removed, nil
}

func (m *memIndex) Size(owner string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.owners[owner])
}

var _ VectorIndex = (*memIndex)(nil)
