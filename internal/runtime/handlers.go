package runtime

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/loqalabs/lecsum/internal/config"
	"github.com/loqalabs/lecsum/internal/pipeline"
	"github.com/loqalabs/lecsum/internal/protocol"
	"github.com/loqalabs/lecsum/internal/service"
)

// summarizeHandler serves POST /summarize. Errors never escape as panics;
// every failure is mapped to a status code with the message in the body.
func summarizeHandler(runner service.Runner, defaults config.Settings, logger *slog.Logger) http.Handler {
	logger = logger.With(slog.String("component", "http"))
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		var body protocol.SummarizeRequest
		dec := json.NewDecoder(req.Body)
		if err := dec.Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
		if body.File == "" {
			writeJSON(w, http.StatusBadRequest, "file is required")
			return
		}

		res, err := runner.Run(req.Context(), pipeline.JobFromRequest(body, defaults))
		if err != nil {
			status := pipeline.HTTPStatus(err)
			logger.Warn("summarize request failed", slog.Int("status", status), slog.String("file", body.File), slog.String("error", err.Error()))
			writeJSON(w, status, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, res.Summary)
	})
}

func writeJSON(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(protocol.SummarizeResponse{Message: message})
}
