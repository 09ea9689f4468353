package services

import (
	"context"
	"fmt"
	"sort"
	"unicode/utf8"

	"studyai-platform/internal/logger"
	"studyai-platform/internal/vectorstore"
	"studyai-platform/models"
)

// Retrieval bounds: probe with the first few chunk embeddings only and cap
// the merged result set to keep gateway usage per run predictable
const (
	retrieveProbes    = 5
	retrievePerProbe  = 3
	retrieveMaxTotal  = 10
	maxConnections    = 4
	connectionSnippet = 200
)

// Retriever finds fragments from the owner's other documents that relate
// to the one being processed
type Retriever struct {
	vectors   VectorIndex
	generator TextGenerator
}

func NewRetriever(vectors VectorIndex, generator TextGenerator) *Retriever {
	return &Retriever{vectors: vectors, generator: generator}
}

const relationPrompt = `In one short sentence, explain how this fragment from "%s" relates to the document "%s".

Fragment:
%s`

// Retrieve probes the owner's index with the first few chunk embeddings,
// excluding the current document's own entries, deduplicating by entry id
// and capping the merged set. Each kept fragment is annotated with a
// gateway-generated reason; a failed annotation degrades to a generic one.
func (r *Retriever) Retrieve(ctx context.Context, userID, documentID, filename string, embeddings [][]float32) []RetrievedFragment {
	probes := retrieveProbes
	if probes > len(embeddings) {
		probes = len(embeddings)
	}

	seen := make(map[string]bool)
	var fragments []RetrievedFragment

	for i := 0; i < probes && len(fragments) < retrieveMaxTotal; i++ {
		results, err := r.vectors.Search(userID, embeddings[i], retrievePerProbe, func(e vectorstore.Entry) bool {
			return e.DocumentID != documentID
		})
		if err != nil {
			logger.Warn("related search failed", "probe", i, "error", err)
			continue
		}

		for _, res := range results {
			if seen[res.ID] {
				continue
			}
			seen[res.ID] = true

			fragments = append(fragments, RetrievedFragment{
				Result: res,
				Reason: r.relationReason(ctx, res, filename),
			})
			if len(fragments) == retrieveMaxTotal {
				break
			}
		}
	}

	return fragments
}

// truncate cuts s to at most max bytes, backing up so a multi-byte rune is
// never split
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

func (r *Retriever) relationReason(ctx context.Context, res vectorstore.Result, filename string) string {
	text := truncate(res.Text, 500)

	reason, err := r.generator.Generate(ctx, fmt.Sprintf(relationPrompt, res.Filename, filename, text))
	if err != nil || reason == "" {
		return fmt.Sprintf("Semantically similar content found in %s", res.Filename)
	}
	return reason
}

// BuildConnections turns retrieved fragments into at most maxConnections
// named cross-document links, one per distinct other document, keeping the
// highest-scored fragment per document
func BuildConnections(fragments []RetrievedFragment) []models.Connection {
	ranked := make([]RetrievedFragment, len(fragments))
	copy(ranked, fragments)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	byDocument := make(map[string]bool)
	var connections []models.Connection

	for _, frag := range ranked {
		if byDocument[frag.DocumentID] {
			continue
		}
		byDocument[frag.DocumentID] = true

		connections = append(connections, models.Connection{
			DocumentID: frag.DocumentID,
			Filename:   frag.Filename,
			Reason:     frag.Reason,
			Score:      frag.Score,
			Snippet:    truncate(frag.Text, connectionSnippet),
		})
		if len(connections) == maxConnections {
			break
		}
	}

	return connections
}
