package services

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"

	"studyai-platform/internal/config"
	"studyai-platform/internal/logger"
	"studyai-platform/internal/telemetry"
	"studyai-platform/internal/vectorstore"
	"studyai-platform/models"
)

// Pipeline stage names, in execution order
const (
	StageParse     = "parse"
	StageExtract   = "extract"
	StageEmbed     = "embed"
	StageIndex     = "index"
	StageRetrieve  = "retrieve"
	StageConnect   = "connect"
	StageSummarize = "summarize"
	StageQuiz      = "quiz"
	StageRevision  = "revision"
	StageAnalytics = "analytics"
)

// Pipeline sequences the ten document-processing stages over one shared
// state record. Stages run strictly in order; CPU-bound work (binary
// parsing, batch embedding) is offloaded to a bounded worker pool so
// concurrent runs keep making progress.
type Pipeline struct {
	config     *config.Config
	store      Store
	vectors    VectorIndex
	generator  TextGenerator
	embedder   Embedder
	parser     *Parser
	extractor  *Extractor
	retriever  *Retriever
	summarizer *Summarizer
	quizzes    *QuizService
	scheduler  *Scheduler
	audit      *models.AuditLogger
	metrics    *telemetry.Metrics
	workers    *semaphore.Weighted
}

func NewPipeline(
	cfg *config.Config,
	store Store,
	vectors VectorIndex,
	generator TextGenerator,
	embedder Embedder,
	quizzes *QuizService,
	scheduler *Scheduler,
	audit *models.AuditLogger,
	metrics *telemetry.Metrics,
) *Pipeline {
	return &Pipeline{
		config:     cfg,
		store:      store,
		vectors:    vectors,
		generator:  generator,
		embedder:   embedder,
		parser:     NewParser(cfg),
		extractor:  NewExtractor(cfg, generator),
		retriever:  NewRetriever(vectors, generator),
		summarizer: NewSummarizer(generator),
		quizzes:    quizzes,
		scheduler:  scheduler,
		audit:      audit,
		metrics:    metrics,
		workers:    semaphore.NewWeighted(int64(cfg.PipelineWorkers)),
	}
}

// Run processes one uploaded document end to end and returns the final
// state. A stage failing unexpectedly aborts the remainder of the run: the
// document is marked error, a terminal error event is emitted and the
// partially populated state is returned. Side effects persisted by earlier
// stages are kept, not rolled back.
func (p *Pipeline) Run(ctx context.Context, doc *models.StudyDocument, sink *ProgressSink) *PipelineState {
	start := time.Now()

	state := &PipelineState{
		UserID:     doc.UserID,
		DocumentID: doc.ID,
		FilePath:   doc.FilePath,
		Filename:   doc.Filename,
	}

	err := p.runStages(ctx, state, sink)
	if err != nil {
		state.Err = err
		logger.Error("pipeline run failed", "document_id", doc.ID, "error", err)

		// Best-effort status transition; a failure here is swallowed
		if serr := p.store.UpdateDocumentStatus(ctx, doc.ID, models.StatusError, err.Error()); serr != nil {
			logger.Warn("failed to mark document error", "document_id", doc.ID, "error", serr)
		}
		emit(sink, models.StageError, models.ProgressError, err.Error())

		if p.metrics != nil {
			p.metrics.RecordPipelineRun(time.Since(start).Seconds(), models.StatusError)
		}
		return state
	}

	if p.metrics != nil {
		p.metrics.RecordPipelineRun(time.Since(start).Seconds(), models.StatusDone)
	}
	return state
}

func (p *Pipeline) runStages(ctx context.Context, state *PipelineState, sink *ProgressSink) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("stage panicked: %v", r)
		}
	}()

	if err := p.store.UpdateDocumentStatus(ctx, state.DocumentID, models.StatusProcessing, ""); err != nil {
		logger.Warn("failed to mark document processing", "document_id", state.DocumentID, "error", err)
	}

	if err := p.parse(ctx, state, sink); err != nil {
		return err
	}
	p.extract(ctx, state, sink)
	p.embed(ctx, state, sink)
	p.index(ctx, state, sink)
	p.retrieve(ctx, state, sink)
	p.connect(state, sink)
	p.summarize(ctx, state, sink)
	p.quiz(ctx, state, sink)
	p.revision(ctx, state, sink)
	return p.finalize(ctx, state, sink)
}

// parse is the only stage whose failure is fatal: with no text there is
// nothing downstream stages could degrade to.
func (p *Pipeline) parse(ctx context.Context, state *PipelineState, sink *ProgressSink) error {
	emit(sink, StageParse, models.ProgressRunning, "Reading document")

	var text string
	err := p.offload(ctx, func() error {
		var exErr error
		text, exErr = p.parser.ExtractText(state.FilePath)
		return exErr
	})
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", state.Filename, err)
	}

	state.Chunks = p.parser.ChunkText(text)
	if len(state.Chunks) == 0 {
		return fmt.Errorf("document %s produced no text", state.Filename)
	}

	emit(sink, StageParse, models.ProgressDone, fmt.Sprintf("Split into %d chunks", len(state.Chunks)))
	return nil
}

func (p *Pipeline) extract(ctx context.Context, state *PipelineState, sink *ProgressSink) {
	if len(state.Chunks) == 0 {
		p.skip(StageExtract, state, sink)
		return
	}
	emit(sink, StageExtract, models.ProgressRunning, "Extracting concepts")

	state.Concepts = p.extractor.Extract(ctx, state.UserID, state.DocumentID, state.Chunks)
	if len(state.Concepts) > 0 {
		if err := p.store.InsertConcepts(ctx, state.Concepts); err != nil {
			logger.Warn("failed to persist concepts", "document_id", state.DocumentID, "error", err)
		}
	}

	emit(sink, StageExtract, models.ProgressDone, fmt.Sprintf("Found %d concepts", len(state.Concepts)))
}

func (p *Pipeline) embed(ctx context.Context, state *PipelineState, sink *ProgressSink) {
	if len(state.Chunks) == 0 {
		p.skip(StageEmbed, state, sink)
		return
	}
	emit(sink, StageEmbed, models.ProgressRunning, "Embedding chunks")

	var vectors [][]float32
	err := p.offload(ctx, func() error {
		var embErr error
		vectors, embErr = p.embedder.EmbedBatch(ctx, state.Chunks)
		return embErr
	})
	if err != nil {
		logger.Warn("batch embedding failed", "document_id", state.DocumentID, "error", err)
		if p.metrics != nil {
			p.metrics.RecordStageSkip(StageEmbed)
		}
		emit(sink, StageEmbed, models.ProgressDone, "Embedding unavailable, skipping semantic features")
		return
	}

	state.Embeddings = vectors
	emit(sink, StageEmbed, models.ProgressDone, fmt.Sprintf("Embedded %d chunks", len(vectors)))
}

func (p *Pipeline) index(ctx context.Context, state *PipelineState, sink *ProgressSink) {
	if len(state.Embeddings) == 0 {
		p.skip(StageIndex, state, sink)
		return
	}
	emit(sink, StageIndex, models.ProgressRunning, "Indexing embeddings")

	entries := make([]vectorstore.Entry, len(state.Embeddings))
	for i := range state.Embeddings {
		entries[i] = vectorstore.Entry{
			DocumentID: state.DocumentID,
			ChunkIndex: i,
			Text:       state.Chunks[i],
			Filename:   state.Filename,
		}
	}

	ids, err := p.vectors.Add(state.UserID, state.Embeddings, entries)
	if err != nil {
		logger.Warn("vector indexing failed", "document_id", state.DocumentID, "error", err)
		if p.metrics != nil {
			p.metrics.RecordVectorStoreOp("add", false)
		}
		emit(sink, StageIndex, models.ProgressDone, "Indexing unavailable")
		return
	}

	state.VectorIDs = ids
	if p.metrics != nil {
		p.metrics.RecordVectorStoreOp("add", true)
	}
	emit(sink, StageIndex, models.ProgressDone, fmt.Sprintf("Indexed %d vectors", len(ids)))
}

func (p *Pipeline) retrieve(ctx context.Context, state *PipelineState, sink *ProgressSink) {
	if len(state.Embeddings) == 0 {
		p.skip(StageRetrieve, state, sink)
		return
	}
	emit(sink, StageRetrieve, models.ProgressRunning, "Finding related material")

	state.Retrieved = p.retriever.Retrieve(ctx, state.UserID, state.DocumentID, state.Filename, state.Embeddings)
	emit(sink, StageRetrieve, models.ProgressDone, fmt.Sprintf("Found %d related fragments", len(state.Retrieved)))
}

func (p *Pipeline) connect(state *PipelineState, sink *ProgressSink) {
	if len(state.Retrieved) == 0 {
		p.skip(StageConnect, state, sink)
		return
	}
	emit(sink, StageConnect, models.ProgressRunning, "Linking documents")

	state.Connections = BuildConnections(state.Retrieved)
	emit(sink, StageConnect, models.ProgressDone, fmt.Sprintf("Linked %d documents", len(state.Connections)))
}

func (p *Pipeline) summarize(ctx context.Context, state *PipelineState, sink *ProgressSink) {
	if len(state.Chunks) == 0 {
		p.skip(StageSummarize, state, sink)
		return
	}
	emit(sink, StageSummarize, models.ProgressRunning, "Summarizing")

	state.Summary = p.summarizer.Summarize(ctx, state.Chunks, state.Concepts)
	emit(sink, StageSummarize, models.ProgressDone, "Summary ready")
}

func (p *Pipeline) quiz(ctx context.Context, state *PipelineState, sink *ProgressSink) {
	if len(state.Concepts) == 0 {
		p.skip(StageQuiz, state, sink)
		return
	}
	emit(sink, StageQuiz, models.ProgressRunning, "Generating quiz")

	quiz, err := p.quizzes.Generate(ctx, state.UserID, state.DocumentID, models.StrategyBalanced)
	if err != nil {
		logger.Warn("quiz generation failed", "document_id", state.DocumentID, "error", err)
		if p.metrics != nil {
			p.metrics.RecordStageSkip(StageQuiz)
		}
		emit(sink, StageQuiz, models.ProgressDone, "Quiz unavailable")
		return
	}

	state.Quiz = quiz
	emit(sink, StageQuiz, models.ProgressDone, fmt.Sprintf("Generated %d questions", len(quiz.Questions)))
}

func (p *Pipeline) revision(ctx context.Context, state *PipelineState, sink *ProgressSink) {
	if len(state.Concepts) == 0 {
		p.skip(StageRevision, state, sink)
		return
	}
	emit(sink, StageRevision, models.ProgressRunning, "Building revision plan")

	plan, err := p.scheduler.GeneratePlan(ctx, state.UserID, models.StrategyBalanced, nil, defaultHorizonDays)
	if err != nil {
		logger.Warn("plan generation failed", "document_id", state.DocumentID, "error", err)
		if p.metrics != nil {
			p.metrics.RecordStageSkip(StageRevision)
		}
		emit(sink, StageRevision, models.ProgressDone, "Revision plan unavailable")
		return
	}

	state.Plan = plan
	emit(sink, StageRevision, models.ProgressDone, fmt.Sprintf("Scheduled %d concepts", len(plan.ConceptIDs)))
}

// finalize aggregates mastery tiers, persists the document's derived
// results, marks it done and appends an audit event
func (p *Pipeline) finalize(ctx context.Context, state *PipelineState, sink *ProgressSink) error {
	emit(sink, StageAnalytics, models.ProgressRunning, "Finalizing")

	concepts, err := p.store.ListConceptsByUser(ctx, state.UserID)
	if err != nil {
		return fmt.Errorf("failed to load concepts for analytics: %w", err)
	}
	state.Analytics = ComputeSnapshot(concepts)

	if err := p.store.SetDocumentResults(ctx, state.DocumentID, state.Summary, state.Connections, len(state.Chunks)); err != nil {
		return fmt.Errorf("failed to persist document results: %w", err)
	}
	if err := p.store.UpdateDocumentStatus(ctx, state.DocumentID, models.StatusDone, ""); err != nil {
		return fmt.Errorf("failed to mark document done: %w", err)
	}

	if p.audit != nil {
		p.audit.LogAsync(&models.AuditEvent{
			UserID:     state.UserID,
			Action:     "PROCESS",
			Resource:   "document",
			ResourceID: state.DocumentID,
			Success:    true,
			Details: map[string]interface{}{
				"chunks":      len(state.Chunks),
				"concepts":    len(state.Concepts),
				"connections": len(state.Connections),
			},
		})
	}

	emit(sink, StageAnalytics, models.ProgressDone, "Processing complete")
	return nil
}

func (p *Pipeline) skip(stage string, state *PipelineState, sink *ProgressSink) {
	if p.metrics != nil {
		p.metrics.RecordStageSkip(stage)
	}
	logger.Debug("stage skipped, missing input", "stage", stage, "document_id", state.DocumentID)
	emit(sink, stage, models.ProgressDone, "Skipped")
}

// offload runs fn on the bounded worker pool and waits for its result
func (p *Pipeline) offload(ctx context.Context, fn func() error) error {
	if err := p.workers.Acquire(ctx, 1); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		defer p.workers.Release(1)
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// emit pushes a progress event best-effort; a nil sink means no consumer
func emit(sink *ProgressSink, stage, status, message string) {
	if sink == nil {
		return
	}
	sink.Push(models.ProgressEvent{Stage: stage, Status: status, Message: message})
}
