package services

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"studyai-platform/internal/config"
	"studyai-platform/models"
)

func pipelineTestConfig() *config.Config {
	return &config.Config{
		MinChunkSize:    100,
		MaxChunkSize:    1500,
		SplitSize:       800,
		ExtractionCap:   20,
		PipelineWorkers: 2,
		ProgressBuffer:  64,
	}
}

// pipelineResponder routes gateway prompts by their template markers
func pipelineResponder(conceptName string) func(string) (string, error) {
	return func(prompt string) (string, error) {
		switch {
		case strings.Contains(prompt, "Extract the key concepts"):
			return `[{"name": "` + conceptName + `", "definition": "A process converting energy."}]`, nil
		case strings.Contains(prompt, "multiple-choice"):
			return `[{"type": "mcq", "question": "What?", "options": ["a", "b"], "answer": "a", "explanation": "e"}]`, nil
		case strings.Contains(prompt, "study summary"):
			return "A short summary of the material.", nil
		default:
			return "These fragments cover the same process.", nil
		}
	}
}

func writeStudyFile(t *testing.T, dir, name string, paragraphs int) string {
	t.Helper()
	var b strings.Builder
	for i := 0; i < paragraphs; i++ {
		b.WriteString(strings.Repeat("Energy flows through living systems in well defined stages. ", 3))
		b.WriteString("\n\n")
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestPipeline(store *memStore, index *memIndex, respond func(string) (string, error)) *Pipeline {
	cfg := pipelineTestConfig()
	gen := &fakeGenerator{respond: respond}
	embedder := &fakeEmbedder{dim: 4}
	scheduler := NewScheduler(store, index, embedder, nil)
	quizzes := NewQuizService(store, gen, scheduler)
	return NewPipeline(cfg, store, index, gen, embedder, quizzes, scheduler, nil, nil)
}

func runDocument(t *testing.T, p *Pipeline, store *memStore, userID, id, path string) *PipelineState {
	t.Helper()
	doc := &models.StudyDocument{
		ID:       id,
		UserID:   userID,
		Filename: filepath.Base(path),
		FilePath: path,
		Status:   models.StatusPending,
	}
	if err := store.CreateDocument(context.Background(), doc); err != nil {
		t.Fatal(err)
	}
	return p.Run(context.Background(), doc, nil)
}

func TestPipelineProcessesDocument(t *testing.T) {
	store := newMemStore()
	index := newMemIndex()
	pipeline := newTestPipeline(store, index, pipelineResponder("Photosynthesis"))

	path := writeStudyFile(t, t.TempDir(), "notes.txt", 3)
	state := runDocument(t, pipeline, store, "u1", "doc1", path)

	if state.Err != nil {
		t.Fatalf("pipeline failed: %v", state.Err)
	}
	if len(state.Chunks) != 3 {
		t.Errorf("got %d chunks, want 3", len(state.Chunks))
	}
	if len(state.Concepts) != 1 || state.Concepts[0].Name != "Photosynthesis" {
		t.Errorf("concepts = %+v", state.Concepts)
	}
	if len(state.VectorIDs) != len(state.Chunks) {
		t.Errorf("indexed %d vectors for %d chunks", len(state.VectorIDs), len(state.Chunks))
	}
	if state.Summary != "A short summary of the material." {
		t.Errorf("summary = %q", state.Summary)
	}
	if state.Quiz == nil || len(state.Quiz.Questions) == 0 {
		t.Error("quiz missing")
	}
	if state.Plan == nil || len(state.Plan.ConceptIDs) == 0 {
		t.Error("revision plan missing")
	}
	if state.Analytics == nil || state.Analytics.Total != 1 {
		t.Errorf("analytics = %+v", state.Analytics)
	}

	doc, err := store.GetDocument(context.Background(), "u1", "doc1")
	if err != nil {
		t.Fatal(err)
	}
	if doc.Status != models.StatusDone {
		t.Errorf("status = %s, want done", doc.Status)
	}
	if doc.ChunkCount != 3 || doc.Summary == "" {
		t.Errorf("results not persisted: %+v", doc)
	}
}

func TestPipelineCrossDocumentConnections(t *testing.T) {
	store := newMemStore()
	index := newMemIndex()

	first := newTestPipeline(store, index, pipelineResponder("Photosynthesis"))
	dir := t.TempDir()
	runDocument(t, first, store, "u1", "doc1", writeStudyFile(t, dir, "first.txt", 2))

	second := newTestPipeline(store, index, pipelineResponder("Respiration"))
	state := runDocument(t, second, store, "u1", "doc2", writeStudyFile(t, dir, "second.txt", 2))

	if state.Err != nil {
		t.Fatalf("pipeline failed: %v", state.Err)
	}
	if len(state.Retrieved) == 0 {
		t.Fatal("no fragments retrieved from earlier document")
	}
	for _, frag := range state.Retrieved {
		if frag.DocumentID == "doc2" {
			t.Error("retrieval included the document's own chunks")
		}
	}

	if len(state.Connections) == 0 {
		t.Fatal("no connections built")
	}
	if state.Connections[0].Filename != "first.txt" {
		t.Errorf("connection filename = %s, want first.txt", state.Connections[0].Filename)
	}

	doc, _ := store.GetDocument(context.Background(), "u1", "doc2")
	if len(doc.Connections) != len(state.Connections) {
		t.Errorf("connections not persisted: %d vs %d", len(doc.Connections), len(state.Connections))
	}
}

func TestPipelineParseFailureIsFatal(t *testing.T) {
	store := newMemStore()
	pipeline := newTestPipeline(store, newMemIndex(), pipelineResponder("X"))

	sink := NewProgressSink(64)
	doc := &models.StudyDocument{
		ID: "doc1", UserID: "u1", Filename: "gone.txt",
		FilePath: filepath.Join(t.TempDir(), "does-not-exist.txt"),
		Status:   models.StatusPending,
	}
	store.CreateDocument(context.Background(), doc)

	state := pipeline.Run(context.Background(), doc, sink)
	sink.Close()

	if state.Err == nil {
		t.Fatal("expected terminal error")
	}

	stored, _ := store.GetDocument(context.Background(), "u1", "doc1")
	if stored.Status != models.StatusError {
		t.Errorf("status = %s, want error", stored.Status)
	}
	if stored.ErrorMessage == "" {
		t.Error("error message not recorded")
	}

	var last models.ProgressEvent
	for event := range sink.Events() {
		last = event
	}
	if last.Stage != models.StageError || last.Status != models.ProgressError {
		t.Errorf("last event = %+v, want terminal error event", last)
	}
}

func TestPipelineDegradesWhenEmbeddingFails(t *testing.T) {
	store := newMemStore()
	index := newMemIndex()

	cfg := pipelineTestConfig()
	gen := &fakeGenerator{respond: pipelineResponder("Photosynthesis")}
	embedder := &fakeEmbedder{dim: 4, err: os.ErrDeadlineExceeded}
	scheduler := NewScheduler(store, index, embedder, nil)
	quizzes := NewQuizService(store, gen, scheduler)
	pipeline := NewPipeline(cfg, store, index, gen, embedder, quizzes, scheduler, nil, nil)

	path := writeStudyFile(t, t.TempDir(), "notes.txt", 2)
	state := runDocument(t, pipeline, store, "u1", "doc1", path)

	// Embedding failure skips the semantic stages but the run completes
	if state.Err != nil {
		t.Fatalf("pipeline should degrade, got %v", state.Err)
	}
	if len(state.Embeddings) != 0 || len(state.VectorIDs) != 0 {
		t.Error("embedding stage should have been skipped")
	}
	if len(state.Concepts) == 0 {
		t.Error("extraction should still run")
	}

	doc, _ := store.GetDocument(context.Background(), "u1", "doc1")
	if doc.Status != models.StatusDone {
		t.Errorf("status = %s, want done despite degraded run", doc.Status)
	}
}

func TestPipelineDegradesWhenGatewayFails(t *testing.T) {
	store := newMemStore()
	index := newMemIndex()

	respond := func(prompt string) (string, error) {
		return "", os.ErrDeadlineExceeded
	}
	pipeline := newTestPipeline(store, index, respond)

	path := writeStudyFile(t, t.TempDir(), "notes.txt", 2)
	state := runDocument(t, pipeline, store, "u1", "doc1", path)

	if state.Err != nil {
		t.Fatalf("pipeline should degrade, got %v", state.Err)
	}
	if len(state.Concepts) != 0 {
		t.Error("extraction should yield nothing when the gateway is down")
	}
	if state.Summary != PlaceholderSummary {
		t.Errorf("summary = %q, want placeholder", state.Summary)
	}
	// Indexing has no gateway dependency and still runs
	if len(state.VectorIDs) != len(state.Chunks) {
		t.Error("chunks should still be indexed")
	}

	doc, _ := store.GetDocument(context.Background(), "u1", "doc1")
	if doc.Status != models.StatusDone {
		t.Errorf("status = %s, want done", doc.Status)
	}
}

func TestPipelineEmitsOrderedProgress(t *testing.T) {
	store := newMemStore()
	pipeline := newTestPipeline(store, newMemIndex(), pipelineResponder("Photosynthesis"))

	sink := NewProgressSink(128)
	doc := &models.StudyDocument{
		ID: "doc1", UserID: "u1", Filename: "notes.txt",
		FilePath: writeStudyFile(t, t.TempDir(), "notes.txt", 2),
		Status:   models.StatusPending,
	}
	store.CreateDocument(context.Background(), doc)

	state := pipeline.Run(context.Background(), doc, sink)
	sink.Close()

	if state.Err != nil {
		t.Fatalf("pipeline failed: %v", state.Err)
	}

	var events []models.ProgressEvent
	for event := range sink.Events() {
		events = append(events, event)
	}
	if len(events) == 0 {
		t.Fatal("no progress events")
	}

	first, last := events[0], events[len(events)-1]
	if first.Stage != StageParse {
		t.Errorf("first stage = %s, want parse", first.Stage)
	}
	if !last.Terminal() {
		t.Errorf("last event %+v is not terminal", last)
	}
	if last.Stage != StageAnalytics || last.Status != models.ProgressDone {
		t.Errorf("last event = %+v", last)
	}
}

func TestPipelineRecoversFromPanic(t *testing.T) {
	store := newMemStore()
	pipeline := newTestPipeline(store, newMemIndex(), func(prompt string) (string, error) {
		panic("gateway blew up")
	})

	doc := &models.StudyDocument{
		ID: "doc1", UserID: "u1", Filename: "notes.txt",
		FilePath: writeStudyFile(t, t.TempDir(), "notes.txt", 2),
		Status:   models.StatusPending,
	}
	store.CreateDocument(context.Background(), doc)

	state := pipeline.Run(context.Background(), doc, nil)
	if state.Err == nil {
		t.Fatal("panic should surface as a terminal error")
	}
	if !strings.Contains(state.Err.Error(), "panicked") {
		t.Errorf("err = %v", state.Err)
	}

	stored, _ := store.GetDocument(context.Background(), "u1", "doc1")
	if stored.Status != models.StatusError {
		t.Errorf("status = %s, want error", stored.Status)
	}
}

func TestPipelinePersistsConceptsAndVectors(t *testing.T) {
	store := newMemStore()
	index := newMemIndex()
	pipeline := newTestPipeline(store, index, pipelineResponder("Photosynthesis"))

	path := writeStudyFile(t, t.TempDir(), "notes.txt", 2)
	state := runDocument(t, pipeline, store, "u1", "doc1", path)
	if state.Err != nil {
		t.Fatal(state.Err)
	}

	// Concepts and vectors land in their stores as the stages run, not at
	// the end of the pipeline
	concepts, _ := store.ListConceptsByDocument(context.Background(), "u1", "doc1")
	if len(concepts) != 1 {
		t.Errorf("got %d persisted concepts, want 1", len(concepts))
	}
	if index.Size("u1") != len(state.Chunks) {
		t.Errorf("index size = %d, want %d", index.Size("u1"), len(state.Chunks))
	}
}

func TestPipelineKeepsPartialResultsOnLateFailure(t *testing.T) {
	store := newMemStore()
	index := newMemIndex()
	pipeline := newTestPipeline(store, index, func(prompt string) (string, error) {
		switch {
		case strings.Contains(prompt, "Extract the key concepts"):
			return `[{"name": "Photosynthesis", "definition": "A process converting energy."}]`, nil
		case strings.Contains(prompt, "study summary"):
			panic("gateway blew up mid-run")
		default:
			return "ok", nil
		}
	})

	sink := NewProgressSink(64)
	doc := &models.StudyDocument{
		ID: "doc1", UserID: "u1", Filename: "notes.txt",
		FilePath: writeStudyFile(t, t.TempDir(), "notes.txt", 2),
		Status:   models.StatusPending,
	}
	store.CreateDocument(context.Background(), doc)

	state := pipeline.Run(context.Background(), doc, sink)
	sink.Close()

	if state.Err == nil {
		t.Fatal("failure after extraction should surface as a terminal error")
	}

	stored, _ := store.GetDocument(context.Background(), "u1", "doc1")
	if stored.Status != models.StatusError {
		t.Errorf("status = %s, want error", stored.Status)
	}

	var last models.ProgressEvent
	for event := range sink.Events() {
		last = event
	}
	if last.Stage != models.StageError || last.Status != models.ProgressError {
		t.Errorf("last event = %+v, want terminal error event", last)
	}

	// Concepts persisted before the failure stay queryable; nothing rolls
	// them back
	concepts, _ := store.ListConceptsByDocument(context.Background(), "u1", "doc1")
	if len(concepts) != 1 {
		t.Errorf("got %d persisted concepts after failed run, want 1", len(concepts))
	}
	if index.Size("u1") != len(state.Chunks) {
		t.Errorf("index size = %d, want %d", index.Size("u1"), len(state.Chunks))
	}
}

func TestPipelineSkipsQuizWithoutConcepts(t *testing.T) {
	store := newMemStore()
	index := newMemIndex()

	respond := func(prompt string) (string, error) {
		if strings.Contains(prompt, "Extract the key concepts") {
			return "[]", nil
		}
		return "ok", nil
	}
	pipeline := newTestPipeline(store, index, respond)

	path := writeStudyFile(t, t.TempDir(), "notes.txt", 2)
	state := runDocument(t, pipeline, store, "u1", "doc1", path)

	if state.Err != nil {
		t.Fatal(state.Err)
	}
	if state.Quiz != nil {
		t.Error("quiz stage should be skipped without concepts")
	}
	if state.Plan != nil {
		t.Error("revision stage should be skipped without concepts")
	}
}

func TestPipelineRespectsContextCancellation(t *testing.T) {
	store := newMemStore()
	pipeline := newTestPipeline(store, newMemIndex(), pipelineResponder("X"))

	doc := &models.StudyDocument{
		ID: "doc1", UserID: "u1", Filename: "notes.txt",
		FilePath: writeStudyFile(t, t.TempDir(), "notes.txt", 2),
		Status:   models.StatusPending,
	}
	store.CreateDocument(context.Background(), doc)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan *PipelineState, 1)
	go func() { done <- pipeline.Run(ctx, doc, nil) }()

	select {
	case state := <-done:
		if state.Err == nil {
			t.Error("cancelled run should report an error")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline did not return after cancellation")
	}
}
