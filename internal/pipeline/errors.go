package pipeline

import (
	"context"
	"errors"
	"net/http"

	"github.com/loqalabs/lecsum/internal/config"
	"github.com/loqalabs/lecsum/internal/llm"
	"github.com/loqalabs/lecsum/internal/stt"
)

// State is a step of a run. A failed run stops at the last state it reached.
type State string

const (
	StateStart               State = "start"
	StateConfigResolved      State = "config_resolved"
	StateConfigValidated     State = "config_validated"
	StateTranscribed         State = "transcribed"
	StateTranscriptPersisted State = "transcript_persisted"
	StateSummarized          State = "summarized"
	StateSummaryPersisted    State = "summary_persisted"
	StateDone                State = "done"
)

// Kind classifies a run failure.
type Kind string

const (
	KindConfig      Kind = "config"
	KindInput       Kind = "input"
	KindModel       Kind = "model"
	KindUnavailable Kind = "unavailable"
	KindEngine      Kind = "engine"
	KindOutput      Kind = "output"
	KindCanceled    Kind = "canceled"
)

// StatusClientClosedRequest is reported when the caller gave up before the run
// finished. It is not an engine outage.
const StatusClientClosedRequest = 499

// Error is returned by Run for every failure.
type Error struct {
	State State
	Kind  Kind
	Err   error
}

func (e *Error) Error() string { return e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

func fail(state State, kind Kind, err error) *Error {
	return &Error{State: state, Kind: kind, Err: err}
}

// classify maps adapter errors to a Kind.
func classify(err error) Kind {
	var cfgErr *config.Error
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	case errors.As(err, &cfgErr), errors.Is(err, config.ErrNotFound):
		return KindConfig
	case errors.Is(err, stt.ErrUnsupportedModel), errors.Is(err, llm.ErrModelNotFound):
		return KindModel
	case errors.Is(err, stt.ErrUnavailable), errors.Is(err, llm.ErrUnavailable):
		return KindUnavailable
	default:
		return KindEngine
	}
}

// KindOf returns the Kind of err, classifying errors that did not come from Run.
func KindOf(err error) Kind {
	var runErr *Error
	if errors.As(err, &runErr) {
		return runErr.Kind
	}
	return classify(err)
}

// HTTPStatus maps err to the status code returned by the HTTP and bus entry points.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	switch KindOf(err) {
	case KindConfig, KindModel:
		return http.StatusBadRequest
	case KindInput:
		return http.StatusNotFound
	case KindUnavailable:
		return http.StatusServiceUnavailable
	case KindEngine:
		return http.StatusBadGateway
	case KindCanceled:
		return StatusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}
