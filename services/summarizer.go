package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"studyai-platform/internal/logger"
	"studyai-platform/models"
)

// Summary context bounds
const (
	summaryChunks   = 5
	summaryConcepts = 20
)

// PlaceholderSummary is stored when the gateway cannot produce a summary
const PlaceholderSummary = "Summary unavailable. The document was processed but a summary could not be generated."

// Summarizer produces a short document summary from bounded context
type Summarizer struct {
	generator TextGenerator
}

func NewSummarizer(generator TextGenerator) *Summarizer {
	return &Summarizer{generator: generator}
}

const summaryPrompt = `Write a concise study summary (3-5 sentences) of the following material.
Focus on what a student should remember.

Key concepts: %s

Material:
%s`

// Summarize builds a summary from the first few chunks and the top concept
// names. Gateway failure degrades to a placeholder, never an error.
func (s *Summarizer) Summarize(ctx context.Context, chunks []string, concepts []models.Concept) string {
	limit := summaryChunks
	if limit > len(chunks) {
		limit = len(chunks)
	}

	names := topConceptNames(concepts, summaryConcepts)

	summary, err := s.generator.Generate(ctx, fmt.Sprintf(summaryPrompt,
		strings.Join(names, ", "),
		strings.Join(chunks[:limit], "\n\n")))
	if err != nil || strings.TrimSpace(summary) == "" {
		logger.Warn("summary generation failed, using placeholder", "error", err)
		return PlaceholderSummary
	}
	return strings.TrimSpace(summary)
}

// topConceptNames returns up to limit concept names ordered by ascending
// mastery so the weakest material leads the context
func topConceptNames(concepts []models.Concept, limit int) []string {
	sorted := make([]models.Concept, len(concepts))
	copy(sorted, concepts)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].MasteryScore < sorted[j].MasteryScore
	})

	if limit > len(sorted) {
		limit = len(sorted)
	}
	names := make([]string, 0, limit)
	for _, c := range sorted[:limit] {
		names = append(names, c.Name)
	}
	return names
}
