package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/tjfontaine/robin-backend/internal/attachments"
	"github.com/tjfontaine/robin-backend/internal/blob"
	"github.com/tjfontaine/robin-backend/internal/domain"
	"github.com/tjfontaine/robin-backend/internal/llm"
	"github.com/tjfontaine/robin-backend/internal/storage"
	"github.com/tjfontaine/robin-backend/internal/telemetry"
)

// Config carries model names and storage locations used by tool bodies.
type Config struct {
	DefaultModel   string
	ImageModel     string
	ReviewModel    string
	DiagnosisModel string

	GeneratedBucket string
	ImageFolder     string
	SignedURLTTL    time.Duration

	// ModelCallTimeout bounds every nested model call; zero disables it.
	ModelCallTimeout time.Duration
	FilePollInterval time.Duration
	FilePollTimeout  time.Duration
}

func (c *Config) applyDefaults() {
	if c.DefaultModel == "" {
		c.DefaultModel = "gemini-2.5-flash"
	}
	if c.ImageModel == "" {
		c.ImageModel = "gemini-2.0-flash-preview-image-generation"
	}
	if c.ReviewModel == "" {
		c.ReviewModel = c.DefaultModel
	}
	if c.DiagnosisModel == "" {
		c.DiagnosisModel = "gemini-2.5-pro"
	}
	if c.GeneratedBucket == "" {
		c.GeneratedBucket = "user-files"
	}
	if c.ImageFolder == "" {
		c.ImageFolder = "playground/images"
	}
	if c.SignedURLTTL <= 0 {
		c.SignedURLTTL = time.Hour
	}
	if c.FilePollInterval <= 0 {
		c.FilePollInterval = time.Second
	}
	if c.FilePollTimeout <= 0 {
		c.FilePollTimeout = time.Minute
	}
}

// Deps are the collaborators tool bodies call.
type Deps struct {
	Store    storage.Store
	Blob     blob.Store
	Resolver *attachments.Resolver
	Fetcher  *attachments.Fetcher
	LLM      llm.Client
	Logger   *slog.Logger
	Metrics  *telemetry.Metrics
}

type toolbox struct {
	Deps
	cfg Config
	now func() time.Time
}

// Executor dispatches function calls to registered handlers.
type Executor struct {
	registry *Registry
	logger   *slog.Logger
	metrics  *telemetry.Metrics
}

// NewExecutor builds the registry from the full catalog and fails when a
// declaration and its handler are out of step.
func NewExecutor(deps Deps, cfg Config) (*Executor, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	cfg.applyDefaults()
	tb := &toolbox{Deps: deps, cfg: cfg, now: time.Now}
	reg, err := NewRegistry(Declarations(), tb.handlers(), Toolsets()...)
	if err != nil {
		return nil, err
	}
	return &Executor{registry: reg, logger: deps.Logger, metrics: deps.Metrics}, nil
}

func (tb *toolbox) handlers() map[string]Handler {
	return map[string]Handler{
		CreateFile:        tb.createFile,
		UpdateFileContent: tb.updateFile,
		DeleteFile:        tb.deleteFile,
		ReadFile:          tb.readFile,
		Search:            tb.search,

		CanvasCreateFile:   tb.canvasCreate,
		CanvasUpdateFile:   tb.canvasUpdate,
		CanvasDeleteFile:   tb.canvasDelete,
		CanvasReadFile:     tb.canvasRead,
		CanvasSearch:       tb.canvasSearch,
		CanvasReadFileByID: tb.canvasReadByID,

		ArtifactRead:         tb.artifactRead,
		ProjectCardPreview:   tb.projectCard,
		TodoListCreate:       tb.todoCreate,
		TodoListCheck:        tb.todoCheck,
		CreateFromTemplate:   tb.createFromTemplate,
		ImplementFeatureTodo: tb.implementFeature,

		AnalyzeDocument: tb.analyzeDocument,
		GenerateImage:   tb.generateImage,
		EnhanceImage:    tb.enhanceImage,

		LintCheck:   tb.lintCheck,
		AnalyzeCode: tb.analyzeCode,
	}
}

func (e *Executor) Registry() *Registry {
	return e.registry
}

// Execute runs one function call. It never returns an error: unknown tools,
// invalid arguments, handler failures and panics all become error results.
// Tools outside the session's toolset are treated as unknown.
func (e *Executor) Execute(ctx context.Context, s *Session, call domain.FunctionCall) (result Result) {
	ctx, span := telemetry.Tracer().Start(ctx, "tool."+call.Name)
	defer span.End()
	span.SetAttributes(attribute.String("tool.name", call.Name))

	start := time.Now()
	defer func() {
		e.metrics.ToolExecuted(call.Name, result.OK(), time.Since(start))
		if !result.OK() {
			span.SetStatus(codes.Error, result.Message())
			e.logger.Warn("tool failed",
				slog.String("tool", call.Name),
				slog.String("error", result.Message()),
			)
		}
	}()

	ent, ok := e.registry.lookup(call.Name)
	if !ok || !s.allows(call.Name) {
		return failure("Unknown tool: %s", call.Name)
	}

	args, err := normalizeArgs(call.Args)
	if err != nil {
		return failureFrom("invalid arguments", err)
	}
	if err := ent.validate(args); err != nil {
		return failure("invalid arguments for %s: %v", call.Name, err)
	}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("tool panicked", slog.String("tool", call.Name), slog.Any("panic", r))
			result = failure("%s failed: %v", call.Name, r)
		}
	}()
	res := ent.handler(ctx, s, args)
	if res == nil {
		return failure("%s returned no result", call.Name)
	}
	return res
}

func (s *Session) allows(name string) bool {
	if len(s.Toolset.Tools) == 0 {
		return true
	}
	return slices.Contains(s.Toolset.Tools, name)
}

// generate makes a nested model call bounded by the configured timeout.
func (tb *toolbox) generate(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	if tb.LLM == nil {
		return nil, errors.New("no model configured")
	}
	if d := tb.cfg.ModelCallTimeout; d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, d, &domain.TimeoutError{Op: "model call " + req.Model, After: d})
		defer cancel()
	}
	start := time.Now()
	resp, err := tb.LLM.Generate(ctx, req)
	if err != nil {
		if cause := context.Cause(ctx); cause != nil && errors.Is(cause, domain.ErrTimeout) {
			err = cause
		}
		tb.Metrics.ModelCalled(req.Model, string(outcomeOf(err)), time.Since(start))
		return nil, fmt.Errorf("model %s: %w", req.Model, err)
	}
	tb.Metrics.ModelCalled(req.Model, "success", time.Since(start))
	return resp, nil
}

func outcomeOf(err error) domain.ErrorType {
	switch t := domain.TypeOf(err); t {
	case domain.ErrorTypeTimeout, domain.ErrorTypeCanceled:
		return t
	default:
		return "error"
	}
}
