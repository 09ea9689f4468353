package services

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"studyai-platform/internal/vectorstore"
	"studyai-platform/models"
)

func TestRetrieveExcludesOwnDocument(t *testing.T) {
	index := newMemIndex()
	embedder := &fakeEmbedder{dim: 4}

	ownVec, _ := embedder.Embed(context.Background(), "own chunk")
	otherVec, _ := embedder.Embed(context.Background(), "other chunk text")
	index.Add("u1", [][]float32{ownVec}, []vectorstore.Entry{
		{DocumentID: "d1", Text: "own chunk", Filename: "own.txt"},
	})
	index.Add("u1", [][]float32{otherVec}, []vectorstore.Entry{
		{DocumentID: "d2", Text: "other chunk text", Filename: "other.txt"},
	})

	retriever := NewRetriever(index, &fakeGenerator{response: "They discuss the same topic."})
	fragments := retriever.Retrieve(context.Background(), "u1", "d1", "own.txt", [][]float32{ownVec})

	if len(fragments) != 1 {
		t.Fatalf("got %d fragments, want 1", len(fragments))
	}
	if fragments[0].DocumentID != "d2" {
		t.Errorf("fragment from %s, own document should be excluded", fragments[0].DocumentID)
	}
	if fragments[0].Reason != "They discuss the same topic." {
		t.Errorf("reason = %q", fragments[0].Reason)
	}
}

func TestRetrieveDeduplicatesAndCaps(t *testing.T) {
	index := newMemIndex()
	embedder := &fakeEmbedder{dim: 4}

	// 15 entries in another document; every probe hits the same pool
	var vectors [][]float32
	var entries []vectorstore.Entry
	for i := 0; i < 15; i++ {
		v, _ := embedder.Embed(context.Background(), fmt.Sprintf("chunk number %d with padding", i))
		vectors = append(vectors, v)
		entries = append(entries, vectorstore.Entry{DocumentID: "d2", Text: "t", Filename: "f"})
	}
	index.Add("u1", vectors, entries)

	retriever := NewRetriever(index, &fakeGenerator{response: "related"})

	probes := make([][]float32, 7)
	for i := range probes {
		probes[i], _ = embedder.Embed(context.Background(), fmt.Sprintf("probe %d", i))
	}
	fragments := retriever.Retrieve(context.Background(), "u1", "d1", "f1", probes)

	if len(fragments) > retrieveMaxTotal {
		t.Errorf("got %d fragments, cap is %d", len(fragments), retrieveMaxTotal)
	}
	seen := make(map[string]bool)
	for _, f := range fragments {
		if seen[f.ID] {
			t.Errorf("duplicate fragment %s", f.ID)
		}
		seen[f.ID] = true
	}
}

func TestRetrieveReasonFallback(t *testing.T) {
	index := newMemIndex()
	embedder := &fakeEmbedder{dim: 4}

	v, _ := embedder.Embed(context.Background(), "some text")
	index.Add("u1", [][]float32{v}, []vectorstore.Entry{
		{DocumentID: "d2", Text: "some text", Filename: "lecture.pdf"},
	})

	retriever := NewRetriever(index, &fakeGenerator{err: fmt.Errorf("gateway down")})
	fragments := retriever.Retrieve(context.Background(), "u1", "d1", "own.txt", [][]float32{v})

	if len(fragments) != 1 {
		t.Fatalf("got %d fragments, want 1", len(fragments))
	}
	want := "Semantically similar content found in lecture.pdf"
	if fragments[0].Reason != want {
		t.Errorf("reason = %q, want %q", fragments[0].Reason, want)
	}
}

func TestBuildConnectionsOnePerDocument(t *testing.T) {
	fragments := []RetrievedFragment{
		{Result: vectorstore.Result{Entry: vectorstore.Entry{ID: "1", DocumentID: "d2", Filename: "a"}, Score: 0.5}, Reason: "low"},
		{Result: vectorstore.Result{Entry: vectorstore.Entry{ID: "2", DocumentID: "d2", Filename: "a"}, Score: 0.9}, Reason: "high"},
		{Result: vectorstore.Result{Entry: vectorstore.Entry{ID: "3", DocumentID: "d3", Filename: "b"}, Score: 0.7}, Reason: "mid"},
	}

	connections := BuildConnections(fragments)
	if len(connections) != 2 {
		t.Fatalf("got %d connections, want 2", len(connections))
	}

	// Highest score first, best fragment kept per document
	if connections[0].DocumentID != "d2" || connections[0].Reason != "high" {
		t.Errorf("first connection = %+v, want d2's 0.9 fragment", connections[0])
	}
	if connections[1].DocumentID != "d3" {
		t.Errorf("second connection = %+v", connections[1])
	}
}

func TestBuildConnectionsCap(t *testing.T) {
	var fragments []RetrievedFragment
	for i := 0; i < 6; i++ {
		fragments = append(fragments, RetrievedFragment{
			Result: vectorstore.Result{
				Entry: vectorstore.Entry{ID: fmt.Sprintf("%d", i), DocumentID: fmt.Sprintf("d%d", i)},
				Score: float64(i),
			},
		})
	}

	connections := BuildConnections(fragments)
	if len(connections) != maxConnections {
		t.Errorf("got %d connections, cap is %d", len(connections), maxConnections)
	}
}

func TestBuildConnectionsSnippetBound(t *testing.T) {
	long := strings.Repeat("x", 500)
	fragments := []RetrievedFragment{
		{Result: vectorstore.Result{Entry: vectorstore.Entry{ID: "1", DocumentID: "d2", Text: long}, Score: 1}},
	}

	connections := BuildConnections(fragments)
	if len(connections[0].Snippet) != connectionSnippet {
		t.Errorf("snippet length = %d, want %d", len(connections[0].Snippet), connectionSnippet)
	}
}

func TestBuildConnectionsSnippetKeepsRunesWhole(t *testing.T) {
	// Multi-byte text sized so a byte cut at connectionSnippet would land
	// inside a rune
	long := strings.Repeat("é", connectionSnippet)
	fragments := []RetrievedFragment{
		{Result: vectorstore.Result{Entry: vectorstore.Entry{ID: "1", DocumentID: "d2", Text: long}, Score: 1}},
	}

	connections := BuildConnections(fragments)
	snippet := connections[0].Snippet
	if !utf8.ValidString(snippet) {
		t.Errorf("snippet contains invalid UTF-8: %q", snippet)
	}
	if len(snippet) > connectionSnippet {
		t.Errorf("snippet length = %d, want at most %d", len(snippet), connectionSnippet)
	}
}

func TestTruncate(t *testing.T) {
	cases := []struct {
		in   string
		max  int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 5, "hello"},
		{"hello", 3, "hel"},
		{"héllo", 2, "h"},  // cutting at 2 would split é
		{"ééé", 3, "é"},    // boundary falls mid-rune
		{"日本語", 4, "日"},    // 3-byte runes
		{"é", 1, ""},
	}
	for _, c := range cases {
		if got := truncate(c.in, c.max); got != c.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", c.in, c.max, got, c.want)
		}
	}
}

func TestComputeSnapshotTiers(t *testing.T) {
	concepts := []models.Concept{
		{MasteryScore: 0.9},
		{MasteryScore: 0.7},
		{MasteryScore: 0.5},
		{MasteryScore: 0.4},
		{MasteryScore: 0.1},
	}

	snapshot := ComputeSnapshot(concepts)
	if snapshot.Mastered != 2 || snapshot.Learning != 2 || snapshot.Weak != 1 {
		t.Errorf("snapshot = %+v, want 2/2/1", snapshot)
	}
	if snapshot.Total != 5 {
		t.Errorf("total = %d, want 5", snapshot.Total)
	}
	want := (0.9 + 0.7 + 0.5 + 0.4 + 0.1) / 5
	if diff := snapshot.Overall - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("overall = %f, want %f", snapshot.Overall, want)
	}
}

func TestComputeSnapshotEmpty(t *testing.T) {
	snapshot := ComputeSnapshot(nil)
	if snapshot.Total != 0 || snapshot.Overall != 0 {
		t.Errorf("snapshot = %+v, want zeroes", snapshot)
	}
}
