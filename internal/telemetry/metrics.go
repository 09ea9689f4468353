package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics
type Metrics struct {
	RequestCounter     metric.Int64Counter
	RequestDuration    metric.Float64Histogram
	TokensUsed         metric.Int64Counter
	PipelineDuration   metric.Float64Histogram
	StageSkips         metric.Int64Counter
	VectorStoreOps     metric.Int64Counter
	ReviewsApplied     metric.Int64Counter
}

// InitMetrics initializes all application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("studyai-platform")

	requestCounter, err := meter.Int64Counter(
		"http.requests.total",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	tokensUsed, err := meter.Int64Counter(
		"gemini.tokens.used",
		metric.WithDescription("Total Gemini tokens used"),
	)
	if err != nil {
		return nil, err
	}

	pipelineDuration, err := meter.Float64Histogram(
		"pipeline.run.duration",
		metric.WithDescription("Document pipeline run duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	stageSkips, err := meter.Int64Counter(
		"pipeline.stage.skips",
		metric.WithDescription("Pipeline stages skipped due to degraded upstreams"),
	)
	if err != nil {
		return nil, err
	}

	vectorStoreOps, err := meter.Int64Counter(
		"vectorstore.operations.total",
		metric.WithDescription("Vector store add/search/delete operations"),
	)
	if err != nil {
		return nil, err
	}

	reviewsApplied, err := meter.Int64Counter(
		"reviews.applied.total",
		metric.WithDescription("Spaced-repetition reviews applied"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCounter:     requestCounter,
		RequestDuration:    requestDuration,
		TokensUsed:         tokensUsed,
		PipelineDuration:   pipelineDuration,
		StageSkips:         stageSkips,
		VectorStoreOps:     vectorStoreOps,
		ReviewsApplied:     reviewsApplied,
	}, nil
}

// RecordRequest records HTTP request metrics
func (m *Metrics) RecordRequest(method, path, status string, duration float64) {
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.path", path),
		attribute.String("http.status", status),
	}

	m.RequestCounter.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	m.RequestDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordTokensUsed records Gemini token usage
func (m *Metrics) RecordTokensUsed(tokens int64, model string) {
	attrs := []attribute.KeyValue{
		attribute.String("gemini.model", model),
		attribute.String("service", "gemini"),
	}

	m.TokensUsed.Add(context.Background(), tokens, metric.WithAttributes(attrs...))
}

// RecordPipelineRun records one document pipeline run
func (m *Metrics) RecordPipelineRun(duration float64, status string) {
	attrs := []attribute.KeyValue{
		attribute.String("pipeline.status", status),
	}

	m.PipelineDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordStageSkip records a skipped pipeline stage
func (m *Metrics) RecordStageSkip(stage string) {
	attrs := []attribute.KeyValue{
		attribute.String("pipeline.stage", stage),
	}

	m.StageSkips.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

// RecordVectorStoreOp records a vector store operation
func (m *Metrics) RecordVectorStoreOp(operation string, success bool) {
	attrs := []attribute.KeyValue{
		attribute.String("vectorstore.operation", operation),
		attribute.Bool("vectorstore.success", success),
	}

	m.VectorStoreOps.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

// RecordReviewApplied records one applied review
func (m *Metrics) RecordReviewApplied(quality int) {
	attrs := []attribute.KeyValue{
		attribute.Int("review.quality", quality),
	}

	m.ReviewsApplied.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}
