package services

import (
	"sync"

	"studyai-platform/models"
)

// ProgressSink is a bounded one-way channel of pipeline progress events.
// Pushing never blocks the run: when the buffer is full the oldest event is
// dropped to make room. A consumer that never reads cannot stall a pipeline.
type ProgressSink struct {
	mu     sync.Mutex
	ch     chan models.ProgressEvent
	closed bool
}

func NewProgressSink(buffer int) *ProgressSink {
	if buffer <= 0 {
		buffer = 16
	}
	return &ProgressSink{ch: make(chan models.ProgressEvent, buffer)}
}

// Push delivers an event best-effort, dropping the oldest buffered event
// when full. Safe to call after Close.
func (s *ProgressSink) Push(event models.ProgressEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	for {
		select {
		case s.ch <- event:
			return
		default:
		}
		select {
		case <-s.ch:
		default:
		}
	}
}

// Events exposes the read side for the transport layer. The consumer is
// responsible for stopping its read loop on a terminal event.
func (s *ProgressSink) Events() <-chan models.ProgressEvent {
	return s.ch
}

// Close ends the stream. Subsequent pushes are discarded.
func (s *ProgressSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

// ProgressRegistry maps in-flight document runs to their sinks so the
// streaming endpoint can attach to a run started by the upload handler
type ProgressRegistry struct {
	mu    sync.Mutex
	sinks map[string]*ProgressSink
}

func NewProgressRegistry() *ProgressRegistry {
	return &ProgressRegistry{sinks: make(map[string]*ProgressSink)}
}

func (r *ProgressRegistry) Register(documentID string, sink *ProgressSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks[documentID] = sink
}

func (r *ProgressRegistry) Get(documentID string) (*ProgressSink, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sink, ok := r.sinks[documentID]
	return sink, ok
}

func (r *ProgressRegistry) Remove(documentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sinks, documentID)
}
