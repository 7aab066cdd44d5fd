// Package pipeline runs one lecture through transcription and summarization
// and writes both results next to the audio file.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/loqalabs/lecsum/internal/config"
	"github.com/loqalabs/lecsum/internal/llm"
	"github.com/loqalabs/lecsum/internal/modelcheck"
	"github.com/loqalabs/lecsum/internal/protocol"
	"github.com/loqalabs/lecsum/internal/stt"
)

const instrumentation = "github.com/loqalabs/lecsum/internal/pipeline"

// Notifier receives every state transition of every run.
type Notifier interface {
	Publish(ev protocol.RunEvent)
}

// Job is a single request to process an audio file.
type Job struct {
	AudioPath string
	Settings  config.Settings
}

// JobFromRequest fills empty request fields from defaults.
func JobFromRequest(req protocol.SummarizeRequest, defaults config.Settings) Job {
	s := defaults
	if req.WhisperModel != "" {
		s.WhisperModel = req.WhisperModel
	}
	if req.OllamaModel != "" {
		s.OllamaModel = req.OllamaModel
	}
	if req.Prompt != "" {
		s.Prompt = req.Prompt
	}
	return Job{AudioPath: req.File, Settings: s}
}

// Result describes a completed run.
type Result struct {
	RunID          string
	TranscriptPath string
	SummaryPath    string
	Transcript     string
	Summary        string
}

type Options struct {
	Factory  Factory
	Notifier Notifier
}

type Pipeline struct {
	cfg      config.Config
	factory  Factory
	notifier Notifier
	logger   *slog.Logger
	sem      chan struct{}

	tracer   trace.Tracer
	runs     metric.Int64Counter
	duration metric.Float64Histogram
}

// New creates a pipeline for the operational configuration cfg. The
// semaphore is sized by cfg.Pipeline.MaxConcurrent; zero means unlimited.
func New(cfg config.Config, opts Options, logger *slog.Logger) *Pipeline {
	if opts.Factory == nil {
		opts.Factory = DefaultFactory
	}
	p := &Pipeline{
		cfg:      cfg,
		factory:  opts.Factory,
		notifier: opts.Notifier,
		logger:   logger.With(slog.String("component", "pipeline")),
		tracer:   otel.Tracer(instrumentation),
	}
	if n := cfg.Pipeline.MaxConcurrent; n > 0 {
		p.sem = make(chan struct{}, n)
	}

	meter := otel.Meter(instrumentation)
	var err error
	if p.runs, err = meter.Int64Counter("lecsum_runs_total",
		metric.WithDescription("Pipeline runs by outcome")); err != nil {
		p.logger.Warn("failed to create runs counter", slogError(err))
	}
	if p.duration, err = meter.Float64Histogram("lecsum_run_duration_seconds",
		metric.WithDescription("Pipeline run duration"),
		metric.WithUnit("s")); err != nil {
		p.logger.Warn("failed to create duration histogram", slogError(err))
	}
	return p
}

type run struct {
	p      *Pipeline
	id     string
	job    Job
	state  State
	span   trace.Span
	logger *slog.Logger
	result Result
}

func (r *run) advance(state State) {
	r.state = state
	r.span.AddEvent(string(state))
	r.logger.Debug("state reached", slog.String("state", string(state)))
	r.p.notify(r, nil)
}

// Run executes the pipeline for job. Every failure is an *Error carrying the
// state the run reached. Files written before a failure are left in place.
func (p *Pipeline) Run(ctx context.Context, job Job) (Result, error) {
	id := uuid.NewString()
	ctx, span := p.tracer.Start(ctx, "lecsum.run", trace.WithAttributes(
		attribute.String("run.id", id),
		attribute.String("audio.path", job.AudioPath),
	))
	defer span.End()

	r := &run{
		p:      p,
		id:     id,
		job:    job,
		state:  StateStart,
		span:   span,
		logger: p.logger.With(slog.String("run_id", id)),
		result: Result{RunID: id},
	}
	p.notify(r, nil)

	start := time.Now()
	err := p.execute(ctx, r)
	p.record(ctx, r, err, time.Since(start))
	if err != nil {
		return r.result, err
	}
	return r.result, nil
}

func (p *Pipeline) execute(ctx context.Context, r *run) error {
	s := r.job.Settings
	r.span.SetAttributes(
		attribute.String("whisper.model", s.WhisperModel),
		attribute.String("ollama.model", s.OllamaModel),
	)
	r.advance(StateConfigResolved)

	// The run stays at config_resolved until the input and both models pass.
	if err := s.Validate(); err != nil {
		return fail(r.state, KindConfig, err)
	}

	audio, err := checkAudio(r.job.AudioPath)
	if err != nil {
		return fail(r.state, KindInput, err)
	}
	if info, err := stt.Probe(audio); err == nil {
		r.logger.Info("audio probed", slog.Duration("duration", info.Duration), slog.Int("sample_rate", info.SampleRate))
	}

	adapters, err := p.factory.Build(p.cfg)
	if err != nil {
		return fail(r.state, KindConfig, err)
	}

	release, err := p.acquire(ctx)
	if err != nil {
		return fail(r.state, KindCanceled, err)
	}
	defer release()

	checker := modelcheck.New(adapters.Backend, r.logger)
	if err := checker.Check(ctx, s.WhisperModel, s.OllamaModel); err != nil {
		return fail(r.state, classify(err), err)
	}
	r.advance(StateConfigValidated)

	transcript, err := adapters.Recognizer.Transcribe(ctx, s.WhisperModel, audio)
	if err != nil {
		return fail(r.state, classify(err), fmt.Errorf("transcribe: %w", err))
	}
	r.result.Transcript = transcript.Text
	r.advance(StateTranscribed)

	dir := filepath.Dir(audio)
	stem := strings.TrimSuffix(filepath.Base(audio), filepath.Ext(audio))
	transcriptPath := filepath.Join(dir, stem+"_transcript.txt")
	if err := os.WriteFile(transcriptPath, []byte(transcript.Text), 0o644); err != nil {
		return fail(r.state, KindOutput, fmt.Errorf("write transcript: %w", err))
	}
	r.result.TranscriptPath = transcriptPath
	r.advance(StateTranscriptPersisted)

	summary, err := llm.NewSummarizer(adapters.Backend, p.cfg.LLM).Summarize(ctx, r.id, s.OllamaModel, s.Prompt, transcript.Text)
	if err != nil {
		return fail(r.state, classify(err), fmt.Errorf("summarize: %w", err))
	}
	r.result.Summary = summary
	r.advance(StateSummarized)

	summaryPath := filepath.Join(dir, stem+"_summary.txt")
	if err := os.WriteFile(summaryPath, []byte(summary), 0o644); err != nil {
		return fail(r.state, KindOutput, fmt.Errorf("write summary: %w", err))
	}
	r.result.SummaryPath = summaryPath
	r.advance(StateSummaryPersisted)

	r.advance(StateDone)
	return nil
}

// checkAudio resolves path and requires an existing regular file.
func checkAudio(path string) (string, error) {
	notOpenable := fmt.Errorf("audio file '%s' cannot be opened", path)
	if strings.TrimSpace(path) == "" {
		return "", errors.New("audio file path is empty")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", notOpenable
	}
	info, err := os.Stat(abs)
	if err != nil || !info.Mode().IsRegular() {
		return "", notOpenable
	}
	f, err := os.Open(abs)
	if err != nil {
		return "", notOpenable
	}
	f.Close()
	return abs, nil
}

func (p *Pipeline) acquire(ctx context.Context) (func(), error) {
	if p.sem == nil {
		return func() {}, nil
	}
	select {
	case p.sem <- struct{}{}:
		return func() { <-p.sem }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for engine slot: %w", ctx.Err())
	}
}

func (p *Pipeline) notify(r *run, err error) {
	if p.notifier == nil {
		return
	}
	ev := protocol.RunEvent{
		RunID:          r.id,
		State:          string(r.state),
		File:           r.job.AudioPath,
		TranscriptPath: r.result.TranscriptPath,
		SummaryPath:    r.result.SummaryPath,
		Timestamp:      time.Now().UTC(),
	}
	if err != nil {
		ev.Error = err.Error()
		ev.ErrorKind = string(KindOf(err))
	}
	p.notifier.Publish(ev)
}

func (p *Pipeline) record(ctx context.Context, r *run, err error, elapsed time.Duration) {
	outcome := "success"
	attrs := []attribute.KeyValue{}
	if err != nil {
		kind := KindOf(err)
		outcome = "failure"
		if kind == KindCanceled {
			outcome = "canceled"
		}
		attrs = append(attrs, attribute.String("kind", string(kind)), attribute.String("state", string(r.state)))
		r.span.RecordError(err)
		r.span.SetStatus(codes.Error, err.Error())
		r.logger.Info("run failed",
			slog.String("state", string(r.state)),
			slog.String("kind", string(kind)),
			slogError(err))
		p.notify(r, err)
	} else {
		r.logger.Info("run complete",
			slog.String("transcript", r.result.TranscriptPath),
			slog.String("summary", r.result.SummaryPath),
			slog.Duration("elapsed", elapsed))
	}
	attrs = append(attrs, attribute.String("outcome", outcome))
	if p.runs != nil {
		p.runs.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	if p.duration != nil {
		p.duration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attribute.String("outcome", outcome)))
	}
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
