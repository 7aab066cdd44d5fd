// Package service answers summarize requests received over NATS.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/loqalabs/lecsum/internal/config"
	"github.com/loqalabs/lecsum/internal/pipeline"
	"github.com/loqalabs/lecsum/internal/protocol"
	"github.com/nats-io/nats.go"
)

// Runner executes one pipeline job.
type Runner interface {
	Run(ctx context.Context, job pipeline.Job) (pipeline.Result, error)
}

type Service struct {
	conn     *nats.Conn
	runner   Runner
	defaults config.Settings
	sub      *nats.Subscription
	ctx      context.Context
	cancel   context.CancelFunc
	logger   *slog.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func New(parent context.Context, conn *nats.Conn, runner Runner, defaults config.Settings, logger *slog.Logger) *Service {
	ctx, cancel := context.WithCancel(parent)
	return &Service{
		conn:     conn,
		runner:   runner,
		defaults: defaults,
		ctx:      ctx,
		cancel:   cancel,
		logger:   logger.With(slog.String("component", "summarize-service")),
	}
}

// Start subscribes to protocol.SubjectSummarize. Each request runs in its own
// goroutine; the pipeline semaphore bounds engine use.
func (s *Service) Start() error {
	sub, err := s.conn.Subscribe(protocol.SubjectSummarize, s.handleRequest)
	if err != nil {
		return fmt.Errorf("subscribe summarize requests: %w", err)
	}
	s.sub = sub
	return nil
}

// Close stops accepting requests and waits for in-flight runs, which are
// cancelled.
func (s *Service) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	if s.sub != nil {
		_ = s.sub.Unsubscribe()
	}
	s.cancel()
	s.wg.Wait()
}

func (s *Service) Healthy() bool {
	return s.sub != nil && s.sub.IsValid()
}

func (s *Service) handleRequest(msg *nats.Msg) {
	var req protocol.SummarizeRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		s.logger.Warn("failed to decode summarize request", slogError(err))
		s.reply(msg, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}
	if req.File == "" {
		s.reply(msg, http.StatusBadRequest, "file is required")
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.reply(msg, http.StatusServiceUnavailable, "service is shutting down")
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()
	go func() {
		defer s.wg.Done()
		res, err := s.runner.Run(s.ctx, pipeline.JobFromRequest(req, s.defaults))
		if err != nil {
			s.reply(msg, pipeline.HTTPStatus(err), err.Error())
			return
		}
		s.reply(msg, http.StatusOK, res.Summary)
	}()
}

func (s *Service) reply(msg *nats.Msg, status int, message string) {
	if msg.Reply == "" {
		return
	}
	data, err := json.Marshal(protocol.SummarizeReply{Status: status, Message: message})
	if err != nil {
		s.logger.Warn("failed to encode reply", slogError(err))
		return
	}
	if err := msg.Respond(data); err != nil {
		s.logger.Warn("failed to send reply", slogError(err))
	}
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
