package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tjfontaine/robin-backend/internal/domain"
	"github.com/tjfontaine/robin-backend/internal/llm"
	"github.com/tjfontaine/robin-backend/internal/llm/llmtest"
	"github.com/tjfontaine/robin-backend/internal/tools"
)

func TestRun_PlainAnswerRunsNoTools(t *testing.T) {
	h := newHarness(t, Config{}, llmtest.Step{Response: llmtest.Text("It adds two numbers.")})
	s := askSession()

	out, err := h.runner.Run(context.Background(), s, Request{
		Mode:     ModeAsk,
		Contents: Seed(nil, "What does this function do?", nil),
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, "It adds two numbers.", out.Text)
	assert.Empty(t, out.ToolEvents)
	assert.Equal(t, []domain.FileEdit{}, s.Edits())
	assert.Equal(t, 1, out.Rounds)

	reqs := h.model.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "gemini-2.5-flash", reqs[0].Model)
	var names []string
	for _, d := range reqs[0].Tools {
		names = append(names, d.Name)
	}
	assert.Equal(t, tools.AskToolset.Tools, names)
}

func TestRun_OneRoundOfTools(t *testing.T) {
	h := newHarness(t, Config{},
		llmtest.Step{Response: llmtest.Call(tools.ReadFile, map[string]any{"path": "main.ts"})},
		llmtest.Step{Response: llmtest.Text("It logs 1.")},
	)
	require.NoError(t, h.store.CreateFile(context.Background(), &domain.ProjectFile{ProjectID: "p1", Path: "main.ts", Content: "console.log(1)"}))
	s := askSession()

	out, err := h.runner.Run(context.Background(), s, Request{Mode: ModeAsk, Contents: Seed(nil, "explain main.ts", nil)}, nil)

	require.NoError(t, err)
	assert.Equal(t, "It logs 1.", out.Text)
	assert.Equal(t, []domain.FileEdit{{
		Operation:  domain.EditRead,
		Path:       "main.ts",
		OldContent: "console.log(1)",
		NewContent: "console.log(1)",
	}}, s.Edits())

	reqs := h.model.Requests()
	require.Len(t, reqs, 2)
	second := reqs[1].Contents
	require.Len(t, second, 3)
	assert.Equal(t, domain.RoleModel, second[1].Role)
	assert.Equal(t, tools.ReadFile, second[1].Parts[0].FunctionCall.Name)
	assert.Equal(t, domain.RoleUser, second[2].Role)
	resp := second[2].Parts[0].FunctionResponse
	require.NotNil(t, resp)
	assert.Equal(t, tools.ReadFile, resp.Name)
	assert.Equal(t, "success", resp.Response["result"].(map[string]any)["status"])
}

func TestRun_TextIsTerminalRoundOnly(t *testing.T) {
	narrated := &llm.Response{Parts: []domain.Part{
		{Text: "Let me look. "},
		{FunctionCall: &domain.FunctionCall{Name: tools.ReadFile, Args: map[string]any{"path": "main.ts"}}},
	}}
	h := newHarness(t, Config{},
		llmtest.Step{Response: narrated},
		llmtest.Step{Response: llmtest.Text("It logs 1.")},
	)
	require.NoError(t, h.store.CreateFile(context.Background(), &domain.ProjectFile{ProjectID: "p1", Path: "main.ts", Content: "console.log(1)"}))
	sink := &events{}

	out, err := h.runner.Run(context.Background(), askSession(), Request{Mode: ModeAsk, Contents: Seed(nil, "explain main.ts", nil)}, sink)

	require.NoError(t, err)
	assert.Equal(t, "It logs 1.", out.Text)
	assert.Contains(t, sink.log, "text Let me look. ")
	assert.Contains(t, sink.log, "text It logs 1.")
}

func TestRun_CallsAndResponsesArePairedInOrder(t *testing.T) {
	h := newHarness(t, Config{},
		llmtest.Step{Response: llmtest.Calls(
			call(tools.Search, map[string]any{"query": "x"}),
			call(tools.ReadFile, map[string]any{"path": "missing.ts"}),
			call("rm_rf", nil),
		)},
		llmtest.Step{Response: llmtest.Text("done")},
	)
	seed := Seed(nil, "go", nil)

	out, err := h.runner.Run(context.Background(), askSession(), Request{Mode: ModeAsk, Contents: seed}, nil)

	require.NoError(t, err)
	added := out.Contents[len(seed):]
	require.Len(t, added, 6)
	wantNames := []string{tools.Search, tools.ReadFile, "rm_rf"}
	for i, name := range wantNames {
		callTurn, respTurn := added[2*i], added[2*i+1]
		assert.Equal(t, domain.RoleModel, callTurn.Role)
		assert.Equal(t, name, callTurn.Parts[0].FunctionCall.Name)
		assert.Equal(t, domain.RoleUser, respTurn.Role)
		assert.Equal(t, name, respTurn.Parts[0].FunctionResponse.Name)
	}
	assert.Equal(t, "Unknown tool: rm_rf", out.ToolEvents[2].Result["message"])
	assert.Equal(t, []int{1, 2, 3}, []int{out.ToolEvents[0].ID, out.ToolEvents[1].ID, out.ToolEvents[2].ID})
	assert.Equal(t, seed, out.Contents[:len(seed)])
}

func TestRun_FallsBackToDefaultModelOnce(t *testing.T) {
	h := newHarness(t, Config{}, llmtest.Step{Response: llmtest.Text("from default")})
	h.model.FailModel("gemini-2.5-pro", errors.New("quota exceeded"))
	sink := &events{}

	out, err := h.runner.Run(context.Background(), askSession(), Request{Mode: ModeAsk, Model: "gemini-2.5-pro", Contents: Seed(nil, "hi", nil)}, sink)

	require.NoError(t, err)
	assert.True(t, out.FellBack)
	assert.Equal(t, "gemini-2.5-flash", out.Model)
	assert.Equal(t, "from default", out.Text)
	reqs := h.model.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "gemini-2.5-pro", reqs[0].Model)
	assert.Equal(t, "gemini-2.5-flash", reqs[1].Model)
	assert.Equal(t, []string{"start gemini-2.5-pro", "start gemini-2.5-flash", "text from default"}, sink.log)
}

func TestRun_DefaultModelFailureIsNotRetried(t *testing.T) {
	h := newHarness(t, Config{})
	boom := errors.New("unavailable")
	h.model.FailModel("gemini-2.5-flash", boom)

	_, err := h.runner.Run(context.Background(), askSession(), Request{Mode: ModeAsk, Contents: Seed(nil, "hi", nil)}, nil)

	require.ErrorIs(t, err, boom)
	assert.Len(t, h.model.Requests(), 1)
}

func TestRun_RetryFailureSurfacesDefaultError(t *testing.T) {
	h := newHarness(t, Config{})
	h.model.FailModel("gemini-2.5-pro", errors.New("pro down"))
	flashDown := errors.New("flash down")
	h.model.FailModel("gemini-2.5-flash", flashDown)

	_, err := h.runner.Run(context.Background(), askSession(), Request{Mode: ModeAsk, Model: "gemini-2.5-pro", Contents: Seed(nil, "hi", nil)}, nil)

	require.ErrorIs(t, err, flashDown)
	assert.Len(t, h.model.Requests(), 2)
}

func TestRun_ToolIDsContinueAcrossRetry(t *testing.T) {
	h := newHarness(t, Config{},
		llmtest.Step{Response: llmtest.Call(tools.Search, map[string]any{"query": "a"})},
		llmtest.Step{Err: errors.New("stream reset")},
		llmtest.Step{Response: llmtest.Call(tools.Search, map[string]any{"query": "b"})},
		llmtest.Step{Response: llmtest.Text("ok")},
	)
	sink := &events{}

	out, err := h.runner.Run(context.Background(), askSession(), Request{Mode: ModeAsk, Model: "gemini-2.5-pro", Contents: Seed(nil, "hi", nil)}, sink)

	require.NoError(t, err)
	require.Len(t, out.ToolEvents, 1)
	assert.Equal(t, 2, out.ToolEvents[0].ID)
	assert.Contains(t, sink.log, "tool_in_progress 1 search")
	assert.Contains(t, sink.log, "tool_in_progress 2 search")
}

func TestRun_RoundLimit(t *testing.T) {
	steps := make([]llmtest.Step, 5)
	for i := range steps {
		steps[i] = llmtest.Step{Response: llmtest.Call(tools.Search, map[string]any{"query": "loop"})}
	}
	h := newHarness(t, Config{MaxRounds: 3}, steps...)

	_, err := h.runner.Run(context.Background(), askSession(), Request{Mode: ModeAsk, Contents: Seed(nil, "hi", nil)}, nil)

	require.ErrorIs(t, err, domain.ErrRoundLimit)
	var rle *domain.RoundLimitError
	require.ErrorAs(t, err, &rle)
	assert.Equal(t, 3, rle.Rounds)
	assert.Len(t, h.model.Requests(), 3)
}

func TestRun_ModelCallTimeout(t *testing.T) {
	exec := newHarness(t, Config{}).runner.exec
	r := NewRunner(blockingModel{}, exec, Config{ModelCallTimeout: 20 * time.Millisecond}, nil, nil)

	for _, stream := range []bool{false, true} {
		_, err := r.Run(context.Background(), askSession(), Request{Mode: ModeAsk, Contents: Seed(nil, "hi", nil), Stream: stream}, nil)

		require.ErrorIs(t, err, domain.ErrTimeout, "stream=%v", stream)
		var te *domain.TimeoutError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, "model call gemini-2.5-flash", te.Op)
	}
}

func TestRun_CancelledContextIsNotRetried(t *testing.T) {
	h := newHarness(t, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.runner.Run(ctx, askSession(), Request{Mode: ModeAsk, Model: "gemini-2.5-pro", Contents: Seed(nil, "hi", nil)}, nil)

	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, h.model.Requests())
}

func TestRun_StreamForwardsDeltasInOrder(t *testing.T) {
	h := newHarness(t, Config{},
		llmtest.Step{Chunks: []*llm.Response{
			llmtest.Text("Let me look. "),
			llmtest.Call(tools.Search, map[string]any{"query": "todo"}),
		}},
		llmtest.Step{Chunks: []*llm.Response{
			{Parts: []domain.Part{{Text: "pondering", Thought: true}}},
			llmtest.Text("Nothing "),
			llmtest.Text("found."),
		}},
	)
	sink := &events{}

	out, err := h.runner.Run(context.Background(), askSession(), Request{
		Mode:            ModeAsk,
		Contents:        Seed(nil, "any todos?", nil),
		Stream:          true,
		IncludeThoughts: true,
	}, sink)

	require.NoError(t, err)
	assert.Equal(t, []string{
		"start gemini-2.5-flash",
		"text Let me look. ",
		"tool_in_progress 1 search",
		"tool_result 1 search success",
		"thought pondering",
		"text Nothing ",
		"text found.",
	}, sink.log)
	assert.Equal(t, "Nothing found.", out.Text)
	assert.Equal(t, "pondering", out.Thoughts)
}

func TestRun_ThoughtsAreGated(t *testing.T) {
	h := newHarness(t, Config{}, llmtest.Step{Response: &llm.Response{Parts: []domain.Part{
		{Text: "secret reasoning", Thought: true},
		{Text: "answer"},
	}}})
	sink := &events{}

	out, err := h.runner.Run(context.Background(), askSession(), Request{Mode: ModeAsk, Contents: Seed(nil, "q", nil)}, sink)

	require.NoError(t, err)
	assert.Empty(t, out.Thoughts)
	assert.NotContains(t, strings.Join(sink.log, "\n"), "secret")
}

func TestRun_EmptyStreamFallsBackToSyntheticDeltas(t *testing.T) {
	long := strings.Repeat("a", 64) + strings.Repeat("b", 64) + "cc"
	h := newHarness(t, Config{},
		llmtest.Step{Chunks: []*llm.Response{}},
		llmtest.Step{Response: llmtest.Text(long)},
	)
	sink := &events{}

	out, err := h.runner.Run(context.Background(), askSession(), Request{Mode: ModeAsk, Contents: Seed(nil, "q", nil), Stream: true}, sink)

	require.NoError(t, err)
	assert.Equal(t, long, out.Text)
	assert.Equal(t, []string{
		"start gemini-2.5-flash",
		"text " + strings.Repeat("a", 64),
		"text " + strings.Repeat("b", 64),
		"text cc",
	}, sink.log)
}

func TestRun_SystemIsRebuiltEachRound(t *testing.T) {
	h := newHarness(t, Config{},
		llmtest.Step{Response: llmtest.Call(tools.TodoListCreate, map[string]any{"title": "Plan", "tasks": []any{map[string]any{"title": "a"}}})},
		llmtest.Step{Response: llmtest.Text("created")},
	)
	chat := &domain.Chat{UserID: "u1"}
	require.NoError(t, h.store.CreateChat(context.Background(), chat))
	s := tools.NewCanvasSession(chat.ID, "u1")
	s.Toolset = tools.PlaygroundToolset
	builder := NewContextBuilder(h.store, nil)

	out, err := h.runner.Run(context.Background(), s, Request{
		Mode:     ModePlayground,
		Contents: Seed(nil, "plan it", nil),
		System:   func(ctx context.Context) string { return builder.System(ctx, ModePlayground, s) },
	}, nil)

	require.NoError(t, err)
	id := out.ToolEvents[0].Result["artifact_id"].(string)
	reqs := h.model.Requests()
	require.Len(t, reqs, 2)
	assert.NotContains(t, reqs[0].System, id)
	assert.Contains(t, reqs[1].System, "- "+id+": Plan [todo_list]")
}

func TestSplitRunes(t *testing.T) {
	assert.Equal(t, []string{"hé", "ll", "o"}, splitRunes("héllo", 2))
	assert.Nil(t, splitRunes("", 64))
}
