package protocol

import "time"

// SummarizeRequest is the body of POST /summarize and of requests on
// SubjectSummarize. Empty model and prompt fields take the daemon's settings.
type SummarizeRequest struct {
	WhisperModel string `json:"whisper_model,omitempty"`
	OllamaModel  string `json:"ollama_model,omitempty"`
	Prompt       string `json:"prompt,omitempty"`
	File         string `json:"file"`
}

// SummarizeResponse carries the summary on success and the error text otherwise.
type SummarizeResponse struct {
	Message string `json:"message"`
}

// SummarizeReply is the bus reply; Status mirrors the HTTP status code.
type SummarizeReply struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// RunEvent reports a pipeline state transition.
type RunEvent struct {
	RunID          string    `json:"run_id"`
	State          string    `json:"state"`
	File           string    `json:"file,omitempty"`
	TranscriptPath string    `json:"transcript_path,omitempty"`
	SummaryPath    string    `json:"summary_path,omitempty"`
	Error          string    `json:"error,omitempty"`
	ErrorKind      string    `json:"error_kind,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

const (
	SubjectSummarize    = "lecsum.summarize"
	SubjectRunState     = "lecsum.run.state"
	SubjectRunCompleted = "lecsum.run.completed"
	SubjectRunFailed    = "lecsum.run.failed"
)
