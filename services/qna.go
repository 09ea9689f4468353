package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"studyai-platform/internal/logger"
	"studyai-platform/models"
)

// qnaContextChunks bounds how many retrieved fragments feed the answer
const qnaContextChunks = 5

// QnAService answers free-form questions against the user's indexed
// material. Unlike pipeline stages, a gateway failure here is surfaced to
// the caller since there is no useful degraded answer.
type QnAService struct {
	store     Store
	vectors   VectorIndex
	embedder  Embedder
	generator TextGenerator
}

func NewQnAService(store Store, vectors VectorIndex, embedder Embedder, generator TextGenerator) *QnAService {
	return &QnAService{store: store, vectors: vectors, embedder: embedder, generator: generator}
}

// Answer is a synthesized response with its supporting sources
type Answer struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}

// Source points at one fragment used to ground the answer
type Source struct {
	DocumentID string  `json:"document_id"`
	Filename   string  `json:"filename"`
	Snippet    string  `json:"snippet"`
	Score      float64 `json:"score"`
}

const answerPrompt = `Answer the question using only the provided study material.
If the material does not contain the answer, say so.

Material:
%s

Question: %s`

// Ask embeds the question, retrieves the nearest fragments from the user's
// index and synthesizes an answer from them
func (q *QnAService) Ask(ctx context.Context, userID, question string) (*Answer, error) {
	vector, err := q.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}

	results, err := q.vectors.Search(userID, vector, qnaContextChunks, nil)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	if len(results) == 0 {
		return &Answer{Answer: "No study material has been indexed yet. Upload a document first."}, nil
	}

	var contextBuilder strings.Builder
	sources := make([]Source, 0, len(results))
	for i, r := range results {
		fmt.Fprintf(&contextBuilder, "[%d] From %s:\n%s\n\n", i+1, r.Filename, r.Text)

		sources = append(sources, Source{
			DocumentID: r.DocumentID,
			Filename:   r.Filename,
			Snippet:    truncate(r.Text, connectionSnippet),
			Score:      r.Score,
		})
	}

	answer, err := q.generator.Generate(ctx, fmt.Sprintf(answerPrompt, contextBuilder.String(), question))
	if err != nil {
		return nil, fmt.Errorf("answer synthesis failed: %w", err)
	}

	event := &models.LearningEvent{
		ID:        uuid.NewString(),
		UserID:    userID,
		EventType: models.EventSearch,
		Result:    map[string]any{"question": question, "sources": len(sources)},
		Timestamp: time.Now(),
	}
	if err := q.store.InsertEvent(ctx, event); err != nil {
		logger.Warn("failed to record search event", "error", err)
	}

	return &Answer{Answer: strings.TrimSpace(answer), Sources: sources}, nil
}
