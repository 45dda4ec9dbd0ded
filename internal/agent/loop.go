// Package agent runs the tool-calling conversation with the model: it builds
// the system instruction, calls the model, executes requested tools in order,
// feeds results back, and stops when the model answers with plain text.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/robin-backend/internal/domain"
	"github.com/tjfontaine/robin-backend/internal/llm"
	"github.com/tjfontaine/robin-backend/internal/telemetry"
	"github.com/tjfontaine/robin-backend/internal/tools"
)

// Mode names the endpoint a run serves. It selects prompt rules and labels metrics.
type Mode string

const (
	ModeAsk        Mode = "ask"
	ModeBuild      Mode = "build"
	ModePlayground Mode = "playground"
)

// syntheticDelta is the size of text deltas synthesized when a stream yields nothing.
const syntheticDelta = 64

// Config bounds the loop.
type Config struct {
	DefaultModel string
	// MaxRounds caps model calls per attempt; zero disables the cap.
	MaxRounds int
	// ModelCallTimeout bounds each model call; zero disables it.
	ModelCallTimeout time.Duration
}

// Request is one orchestration run.
type Request struct {
	Mode Mode
	// Model is the caller-preferred model; empty means Config.DefaultModel.
	Model    string
	Contents []domain.Turn
	// System is called before every model call so artifacts created by
	// earlier tool calls show up in the next instruction.
	System          func(ctx context.Context) string
	IncludeThoughts bool
	Stream          bool
}

// Outcome is the result of a successful run.
type Outcome struct {
	Model    string
	Text     string
	Thoughts string
	Rounds   int
	// ToolEvents lists every executed call, ids increasing across attempts.
	ToolEvents []domain.ToolEvent
	Contents   []domain.Turn
	FellBack   bool
}

// Runner drives the model and the tool executor.
type Runner struct {
	model   llm.Model
	exec    *tools.Executor
	cfg     Config
	logger  *slog.Logger
	metrics *telemetry.Metrics
}

func NewRunner(model llm.Model, exec *tools.Executor, cfg Config, logger *slog.Logger, metrics *telemetry.Metrics) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "gemini-2.5-flash"
	}
	return &Runner{model: model, exec: exec, cfg: cfg, logger: logger, metrics: metrics}
}

// DefaultModel is the model used when a request names none and for the retry.
func (r *Runner) DefaultModel() string {
	return r.cfg.DefaultModel
}

// Run executes req. If the preferred model fails and is not the default,
// the whole run is retried once against the default model with the same
// Session. A cancelled context is never retried.
func (r *Runner) Run(ctx context.Context, s *tools.Session, req Request, sink Sink) (*Outcome, error) {
	if sink == nil {
		sink = Discard{}
	}
	preferred := req.Model
	if preferred == "" {
		preferred = r.cfg.DefaultModel
	}

	var toolIDs int
	out, err := r.attempt(ctx, s, req, preferred, sink, &toolIDs)
	if err == nil {
		return out, nil
	}
	if preferred == r.cfg.DefaultModel || ctx.Err() != nil {
		return nil, err
	}

	r.logger.Warn("preferred model failed, retrying with default",
		slog.String("model", preferred),
		slog.String("default_model", r.cfg.DefaultModel),
		slog.String("error", err.Error()),
	)
	r.metrics.FellBack()
	out, retryErr := r.attempt(ctx, s, req, r.cfg.DefaultModel, sink, &toolIDs)
	if retryErr != nil {
		return nil, fmt.Errorf("default model %s: %w", r.cfg.DefaultModel, retryErr)
	}
	out.FellBack = true
	return out, nil
}

func (r *Runner) attempt(ctx context.Context, s *tools.Session, req Request, model string, sink Sink, toolIDs *int) (out *Outcome, err error) {
	ctx, span := telemetry.Tracer().Start(ctx, "agent.attempt", trace.WithAttributes(
		attribute.String("agent.mode", string(req.Mode)),
		attribute.String("agent.model", model),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	sink.Started(model)
	out = &Outcome{Model: model, Contents: slices.Clone(req.Contents)}
	decls := r.exec.Registry().Declarations(s.Toolset)
	var text, thoughts strings.Builder

	for {
		if r.cfg.MaxRounds > 0 && out.Rounds >= r.cfg.MaxRounds {
			return nil, &domain.RoundLimitError{Rounds: out.Rounds}
		}
		out.Rounds++

		var system string
		if req.System != nil {
			system = req.System(ctx)
		}
		resp, err := r.callModel(ctx, &llm.Request{
			Model:           model,
			System:          system,
			Contents:        out.Contents,
			Tools:           decls,
			IncludeThoughts: req.IncludeThoughts,
		}, req.Stream, sink)
		if err != nil {
			return nil, fmt.Errorf("round %d: %w", out.Rounds, err)
		}
		// Only the terminal round's text is the answer; narration sent
		// alongside calls reaches the sink but not Outcome.Text.
		text.Reset()
		text.WriteString(resp.Text())
		if req.IncludeThoughts {
			thoughts.WriteString(resp.Thoughts())
		}

		calls := resp.FunctionCallParts()
		if len(calls) == 0 {
			break
		}
		for _, part := range calls {
			*toolIDs++
			ev := r.execute(ctx, s, *toolIDs, part.FunctionCall, sink)
			out.ToolEvents = append(out.ToolEvents, ev)
			out.Contents = append(out.Contents,
				domain.Turn{Role: domain.RoleModel, Parts: []domain.Part{part}},
				domain.Turn{Role: domain.RoleUser, Parts: []domain.Part{{FunctionResponse: &domain.FunctionResponse{
					ID:       part.FunctionCall.ID,
					Name:     part.FunctionCall.Name,
					Response: map[string]any{"result": ev.Result},
				}}}},
			)
		}
	}

	out.Text = text.String()
	out.Thoughts = thoughts.String()
	span.SetAttributes(attribute.Int("agent.rounds", out.Rounds), attribute.Int("agent.tool_calls", len(out.ToolEvents)))
	r.metrics.LoopFinished(string(req.Mode), out.Rounds)
	return out, nil
}

func (r *Runner) execute(ctx context.Context, s *tools.Session, id int, call *domain.FunctionCall, sink Sink) domain.ToolEvent {
	sink.ToolStarted(id, call.Name)
	result := r.exec.Execute(ctx, s, *call)
	if status, _ := result["status"].(string); status != "success" && status != "error" {
		r.logger.Error("tool returned malformed result", slog.String("tool", call.Name))
		result = tools.Result{"status": "error", "message": fmt.Sprintf("internal error: %s returned a malformed result", call.Name)}
	}
	sink.ToolFinished(id, call.Name, result)
	return domain.ToolEvent{ID: id, Name: call.Name, Result: result}
}

// callModel makes one bounded model call and forwards its text and thoughts
// to sink.
func (r *Runner) callModel(ctx context.Context, req *llm.Request, stream bool, sink Sink) (*llm.Response, error) {
	if d := r.cfg.ModelCallTimeout; d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, d, &domain.TimeoutError{Op: "model call " + req.Model, After: d})
		defer cancel()
	}

	start := time.Now()
	var resp *llm.Response
	var err error
	if stream {
		resp, err = r.stream(ctx, req, sink)
	} else {
		resp, err = r.model.Generate(ctx, req)
		if err == nil {
			emit(resp, req.IncludeThoughts, sink, 0)
		}
	}
	if err != nil {
		if cause := context.Cause(ctx); cause != nil && errors.Is(cause, domain.ErrTimeout) {
			err = cause
		}
		r.metrics.ModelCalled(req.Model, outcomeOf(err), time.Since(start))
		return nil, err
	}
	r.metrics.ModelCalled(req.Model, "success", time.Since(start))
	return resp, nil
}

// stream forwards parts as they arrive. A stream that yields no chunks is
// replaced by one Generate call whose text is replayed in fixed-size deltas.
func (r *Runner) stream(ctx context.Context, req *llm.Request, sink Sink) (*llm.Response, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	chunks, err := r.model.Stream(ctx, req)
	if err != nil {
		return nil, err
	}
	merged := &llm.Response{Model: req.Model}
	received := false
	for c := range chunks {
		if c.Err != nil {
			return nil, c.Err
		}
		if c.Response == nil {
			continue
		}
		received = true
		emit(c.Response, req.IncludeThoughts, sink, 0)
		merged.Parts = append(merged.Parts, c.Response.Parts...)
	}
	if err := ctx.Err(); err != nil {
		return nil, context.Cause(ctx)
	}
	if received {
		return merged, nil
	}

	r.logger.Debug("stream yielded no chunks, falling back to generate", slog.String("model", req.Model))
	resp, err := r.model.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	emit(resp, req.IncludeThoughts, sink, syntheticDelta)
	return resp, nil
}

// emit sends resp's thoughts and text to sink. A positive size splits text
// into deltas of at most size runes.
func emit(resp *llm.Response, includeThoughts bool, sink Sink, size int) {
	for _, p := range resp.Parts {
		if p.Text == "" {
			continue
		}
		if p.Thought {
			if includeThoughts {
				sink.Thought(p.Text)
			}
			continue
		}
		if size <= 0 {
			sink.Text(p.Text)
			continue
		}
		for _, d := range splitRunes(p.Text, size) {
			sink.Text(d)
		}
	}
}

func splitRunes(s string, size int) []string {
	var out []string
	for len(s) > 0 {
		n, i := 0, 0
		for i < len(s) && n < size {
			_, w := utf8.DecodeRuneInString(s[i:])
			i += w
			n++
		}
		out = append(out, s[:i])
		s = s[i:]
	}
	return out
}

func outcomeOf(err error) string {
	switch t := domain.TypeOf(err); t {
	case domain.ErrorTypeTimeout, domain.ErrorTypeCanceled:
		return string(t)
	default:
		return "error"
	}
}
