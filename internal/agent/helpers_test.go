package agent

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tjfontaine/robin-backend/internal/attachments"
	"github.com/tjfontaine/robin-backend/internal/blob/memblob"
	"github.com/tjfontaine/robin-backend/internal/domain"
	"github.com/tjfontaine/robin-backend/internal/llm"
	"github.com/tjfontaine/robin-backend/internal/llm/llmtest"
	"github.com/tjfontaine/robin-backend/internal/storage/memory"
	"github.com/tjfontaine/robin-backend/internal/tools"
)

type harness struct {
	store  *memory.Store
	model  *llmtest.Script
	runner *Runner
}

func newHarness(t *testing.T, cfg Config, steps ...llmtest.Step) *harness {
	t.Helper()
	store := memory.New()
	blobs := memblob.New()
	model := llmtest.New(steps...)
	exec, err := tools.NewExecutor(tools.Deps{
		Store:    store,
		Blob:     blobs,
		Resolver: attachments.NewResolver(blobs, attachments.Config{}, nil),
		Fetcher:  attachments.NewFetcher(nil, blobs, nil),
		LLM:      model,
	}, tools.Config{})
	require.NoError(t, err)
	return &harness{store: store, model: model, runner: NewRunner(model, exec, cfg, nil, nil)}
}

func askSession() *tools.Session {
	s := tools.NewSession("p1")
	s.Toolset = tools.AskToolset
	return s
}

func buildSession() *tools.Session {
	s := tools.NewSession("p1")
	s.Toolset = tools.BuildToolset
	return s
}

// events records sink calls as compact strings.
type events struct {
	log []string
}

func (e *events) Started(model string) { e.log = append(e.log, "start "+model) }
func (e *events) Text(d string)        { e.log = append(e.log, "text "+d) }
func (e *events) Thought(d string)     { e.log = append(e.log, "thought "+d) }
func (e *events) ToolStarted(id int, name string) {
	e.log = append(e.log, fmt.Sprintf("tool_in_progress %d %s", id, name))
}
func (e *events) ToolFinished(id int, name string, r tools.Result) {
	e.log = append(e.log, fmt.Sprintf("tool_result %d %s %v", id, name, r["status"]))
}

// blockingModel never answers before ctx ends.
type blockingModel struct{}

func (blockingModel) Generate(ctx context.Context, _ *llm.Request) (*llm.Response, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (blockingModel) Stream(ctx context.Context, _ *llm.Request) (<-chan llm.Chunk, error) {
	ch := make(chan llm.Chunk)
	go func() {
		defer close(ch)
		<-ctx.Done()
	}()
	return ch, nil
}

func call(name string, args map[string]any) domain.FunctionCall {
	return domain.FunctionCall{Name: name, Args: args}
}
