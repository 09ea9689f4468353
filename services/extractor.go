package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"studyai-platform/internal/config"
	"studyai-platform/internal/logger"
	"studyai-platform/models"
)

// Extractor asks the language model gateway for structured concepts,
// chunk by chunk, tolerating malformed responses
type Extractor struct {
	config    *config.Config
	generator TextGenerator
}

func NewExtractor(cfg *config.Config, generator TextGenerator) *Extractor {
	return &Extractor{config: cfg, generator: generator}
}

type extractedConcept struct {
	Name            string   `json:"name"`
	Definition      string   `json:"definition"`
	RelatedConcepts []string `json:"related_concepts"`
}

const extractionPrompt = `Extract the key concepts from the following study material.
Respond with ONLY a JSON array, no prose, where each element has the shape:
{"name": "concept name", "definition": "one or two sentence definition", "related_concepts": ["other concept names"]}
Limit yourself to the 5 most important concepts in the text.

Text:
%s`

// Extract processes at most the first ExtractionCap chunks. A malformed or
// failed response for one chunk is skipped, never aborts the batch.
// Duplicate names keep the first-seen definition.
func (e *Extractor) Extract(ctx context.Context, userID, documentID string, chunks []string) []models.Concept {
	limit := e.config.ExtractionCap
	if limit > len(chunks) {
		limit = len(chunks)
	}

	now := time.Now()
	seen := make(map[string]bool)
	var concepts []models.Concept

	for i := 0; i < limit; i++ {
		raw, err := e.generator.Generate(ctx, fmt.Sprintf(extractionPrompt, chunks[i]))
		if err != nil {
			logger.Warn("concept extraction failed for chunk", "chunk", i, "error", err)
			continue
		}

		parsed, err := parseConceptArray(raw)
		if err != nil {
			logger.Warn("malformed concept response", "chunk", i, "error", err)
			continue
		}

		for _, pc := range parsed {
			name := strings.TrimSpace(pc.Name)
			if name == "" {
				continue
			}
			key := strings.ToLower(name)
			if seen[key] {
				continue
			}
			seen[key] = true

			concepts = append(concepts, models.Concept{
				ID:              uuid.NewString(),
				DocumentID:      documentID,
				UserID:          userID,
				Name:            name,
				Definition:      strings.TrimSpace(pc.Definition),
				RelatedConcepts: pc.RelatedConcepts,
				MasteryScore:    0,
				EasinessFactor:  models.DefaultEasinessFactor,
				RepetitionCount: 0,
				IntervalDays:    models.DefaultIntervalDays,
				NextReview:      now,
				CreatedAt:       now,
				UpdatedAt:       now,
			})
		}
	}

	return concepts
}

// parseConceptArray decodes a model response into concepts, tolerating
// markdown fences and leading prose around the JSON array
func parseConceptArray(raw string) ([]extractedConcept, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	// Cut to the outermost array if the model wrapped it in prose
	start := strings.Index(cleaned, "[")
	end := strings.LastIndex(cleaned, "]")
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("no JSON array in response")
	}
	cleaned = cleaned[start : end+1]

	var parsed []extractedConcept
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode concept array: %w", err)
	}
	return parsed, nil
}
