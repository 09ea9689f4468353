package models

// ProgressEvent is one pipeline progress update streamed to the client
type ProgressEvent struct {
	Stage   string `json:"stage"`
	Status  string `json:"status"` // running, done, error
	Message string `json:"message"`
}

// Progress statuses
const (
	ProgressRunning = "running"
	ProgressDone    = "done"
	ProgressError   = "error"
)

// StageError is the stage name of the terminal event emitted when a
// pipeline run fails
const StageError = "error"

// Terminal reports whether this event ends the stream: either the final
// analytics stage completed or the run failed
func (e ProgressEvent) Terminal() bool {
	if e.Stage == StageError {
		return true
	}
	return e.Stage == "analytics" && e.Status == ProgressDone
}
