package frontdoor

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/tjfontaine/robin-backend/internal/agent"
	"github.com/tjfontaine/robin-backend/internal/attachments"
	"github.com/tjfontaine/robin-backend/internal/auth"
	"github.com/tjfontaine/robin-backend/internal/blob/memblob"
	"github.com/tjfontaine/robin-backend/internal/conversation"
	"github.com/tjfontaine/robin-backend/internal/domain"
	"github.com/tjfontaine/robin-backend/internal/facts"
	"github.com/tjfontaine/robin-backend/internal/llm/llmtest"
	"github.com/tjfontaine/robin-backend/internal/storage/memory"
	"github.com/tjfontaine/robin-backend/internal/stream"
	"github.com/tjfontaine/robin-backend/internal/terminal"
	"github.com/tjfontaine/robin-backend/internal/tools"
)

type fixture struct {
	store  *memory.Store
	model  *llmtest.Script
	router chi.Router
}

func newFixture(t *testing.T, steps ...llmtest.Step) *fixture {
	t.Helper()
	store := memory.New()
	blobs := memblob.New()
	model := llmtest.New(steps...)
	resolver := attachments.NewResolver(blobs, attachments.Config{}, nil)
	exec, err := tools.NewExecutor(tools.Deps{
		Store:    store,
		Blob:     blobs,
		Resolver: resolver,
		Fetcher:  attachments.NewFetcher(nil, blobs, nil),
		LLM:      model,
	}, tools.Config{})
	if err != nil {
		t.Fatalf("NewExecutor() error = %v", err)
	}
	h := NewHandler(Deps{
		Runner:   agent.NewRunner(model, exec, agent.Config{DefaultModel: "gemini-2.5-flash"}, nil, nil),
		Context:  agent.NewContextBuilder(store, nil),
		Store:    store,
		Resolver: resolver,
		Recorder: conversation.NewRecorder(store, nil),
		Shell:    terminal.New(store),
		Facts:    facts.NewGenerator(nil, "", nil),
	}, Options{})
	r := chi.NewRouter()
	h.Routes(r)
	return &fixture{store: store, model: model, router: r}
}

func (f *fixture) do(t *testing.T, method, path, body string, caller *auth.Caller, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, BasePath+path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	if caller != nil {
		req = req.WithContext(auth.WithCaller(req.Context(), caller))
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func events(t *testing.T, body string) []map[string]any {
	t.Helper()
	var out []map[string]any
	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		var ev map[string]any
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			t.Fatalf("bad event line %q: %v", sc.Text(), err)
		}
		if ev["type"] == "ping" {
			continue
		}
		out = append(out, ev)
	}
	return out
}

func TestAsk_NoTools(t *testing.T) {
	f := newFixture(t, llmtest.Step{Response: llmtest.Text("It adds two numbers.")})

	rec := f.do(t, http.MethodPost, "/agent-chat-handler", `{
		"prompt": "What does this function do?",
		"projectId": "p1",
		"attachedFiles": [{"path": "src/add.ts", "content": "export const add = (a, b) =>\n  a + b"}]
	}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"fileEdits":[]`) {
		t.Errorf("fileEdits not an empty array: %s", rec.Body.String())
	}
	var resp askResponse
	decodeBody(t, rec, &resp)
	if resp.Text != "It adds two numbers." {
		t.Errorf("text = %q", resp.Text)
	}
	if len(resp.FilesAnalyzed) != 1 || resp.FilesAnalyzed[0] != "src/add.ts" {
		t.Errorf("filesAnalyzed = %v", resp.FilesAnalyzed)
	}

	reqs := f.model.Requests()
	if len(reqs) != 1 {
		t.Fatalf("model calls = %d, want 1", len(reqs))
	}
	if !strings.Contains(reqs[0].System, "Attached files (1):\n- src/add.ts (2 lines)") {
		t.Errorf("system prompt missing attached files note:\n%s", reqs[0].System)
	}
	for _, d := range reqs[0].Tools {
		if d.Name == tools.CreateFile {
			t.Errorf("ask mode offered %s", d.Name)
		}
	}
}

func TestAsk_ReadFileCountsAsAnalyzed(t *testing.T) {
	f := newFixture(t,
		llmtest.Step{Response: llmtest.Call(tools.ReadFile, map[string]any{"path": "main.ts"})},
		llmtest.Step{Response: llmtest.Text("It logs 1.")},
	)
	if err := f.store.CreateFile(context.Background(), &domain.ProjectFile{ProjectID: "p1", Path: "main.ts", Content: "console.log(1)"}); err != nil {
		t.Fatal(err)
	}

	rec := f.do(t, http.MethodPost, "/agent-chat-handler", `{"prompt": "explain", "projectId": "p1"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp askResponse
	decodeBody(t, rec, &resp)
	if len(resp.FileEdits) != 1 || resp.FileEdits[0].Operation != domain.EditRead || resp.FileEdits[0].NewContent != "console.log(1)" {
		t.Errorf("fileEdits = %+v", resp.FileEdits)
	}
	if len(resp.FilesAnalyzed) != 1 || resp.FilesAnalyzed[0] != "main.ts" {
		t.Errorf("filesAnalyzed = %v", resp.FilesAnalyzed)
	}
}

func TestBuild_AppendsChangesApplied(t *testing.T) {
	f := newFixture(t,
		llmtest.Step{Response: llmtest.Call(tools.CreateFile, map[string]any{"path": "src/a.ts", "content": "export {}"})},
		llmtest.Step{Response: llmtest.Text("Done.")},
	)

	rec := f.do(t, http.MethodPost, "/agent-handler", `{"prompt": "add a module", "projectId": "p1"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp buildResponse
	decodeBody(t, rec, &resp)
	if want := "Done.\n\nChanges applied:\n- create src/a.ts"; resp.Text != want {
		t.Errorf("text = %q, want %q", resp.Text, want)
	}
	if len(resp.FileEdits) != 1 || resp.FileEdits[0].Path != "src/a.ts" {
		t.Errorf("fileEdits = %+v", resp.FileEdits)
	}
	if _, err := f.store.GetFile(context.Background(), "p1", "src/a.ts"); err != nil {
		t.Errorf("file not created: %v", err)
	}
}

func TestBuild_Streaming(t *testing.T) {
	f := newFixture(t,
		llmtest.Step{Response: llmtest.Call(tools.CreateFile, map[string]any{"path": "a.ts", "content": "1"})},
		llmtest.Step{Response: llmtest.Text("Done.")},
	)

	rec := f.do(t, http.MethodPost, "/agent-handler", `{"prompt": "go", "projectId": "p1"}`, nil,
		"Accept", "application/x-ndjson")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != stream.ContentType {
		t.Errorf("Content-Type = %q", got)
	}
	evs := events(t, rec.Body.String())
	if len(evs) < 2 || evs[0]["type"] != "start" {
		t.Fatalf("events = %v", evs)
	}
	last := evs[len(evs)-1]
	if last["type"] != "end" {
		t.Fatalf("last event = %v", last)
	}
	want := stream.Marker(1) + "Done.\n\nChanges applied:\n- create a.ts"
	if last["finalText"] != want {
		t.Errorf("finalText = %q, want %q", last["finalText"], want)
	}
	started := map[float64]bool{}
	for _, ev := range evs {
		switch ev["type"] {
		case "tool_in_progress":
			started[ev["id"].(float64)] = true
		case "tool_result":
			if !started[ev["id"].(float64)] {
				t.Errorf("tool_result before tool_in_progress: %v", ev)
			}
		}
	}
}

func TestModelFailure(t *testing.T) {
	boom := errors.New("upstream exploded")

	t.Run("json", func(t *testing.T) {
		f := newFixture(t, llmtest.Step{Err: boom})
		rec := f.do(t, http.MethodPost, "/agent-handler", `{"prompt": "hi", "projectId": "p1"}`, nil)
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("status = %d, want 500", rec.Code)
		}
		var body map[string]string
		decodeBody(t, rec, &body)
		if !strings.Contains(body["error"], "upstream exploded") {
			t.Errorf("error = %q", body["error"])
		}
	})

	t.Run("stream", func(t *testing.T) {
		f := newFixture(t, llmtest.Step{Err: boom})
		rec := f.do(t, http.MethodPost, "/agent-handler", `{"prompt": "hi", "projectId": "p1"}`, nil, "X-Stream", "true")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200 once streaming", rec.Code)
		}
		evs := events(t, rec.Body.String())
		last := evs[len(evs)-1]
		if last["type"] != "error" {
			t.Fatalf("last event = %v, want error", last)
		}
		for _, ev := range evs {
			if ev["type"] == "end" {
				t.Errorf("end event after failure")
			}
		}
	})
}

func TestMalformedBody(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/agent-handler", `{"prompt":`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHistory_SkipsMalformedTurns(t *testing.T) {
	f := newFixture(t, llmtest.Step{Response: llmtest.Text("ok")})
	rec := f.do(t, http.MethodPost, "/agent-handler", `{
		"prompt": "next",
		"projectId": "p1",
		"history": [
			{"role": "user", "parts": [{"text": "first"}]},
			{"role": "robot", "parts": [{"text": "ignored"}]},
			{"role": "model", "parts": [{"text": "reply"}]}
		]
	}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	contents := f.model.Requests()[0].Contents
	if len(contents) != 3 {
		t.Fatalf("contents = %+v, want 3 turns", contents)
	}
	if contents[2].Parts[0].Text != "next" {
		t.Errorf("last turn = %+v", contents[2])
	}
}

func TestPlayground_RequiresCaller(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/playground-handler", `{"prompt": "hi"}`, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestPlayground_ChatLifecycle(t *testing.T) {
	f := newFixture(t,
		llmtest.Step{Response: llmtest.Text("Hi there.")},
		llmtest.Step{Response: llmtest.Text("Still here.")},
	)
	alice := &auth.Caller{UserID: "alice", Token: "tok"}

	rec := f.do(t, http.MethodPost, "/playground-handler", `{"prompt": "hello"}`, alice)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var first playgroundResponse
	decodeBody(t, rec, &first)
	if first.ChatID == "" || first.MessageID == "" || first.Text != "Hi there." {
		t.Fatalf("first response = %+v", first)
	}
	chat, err := f.store.GetChat(context.Background(), first.ChatID)
	if err != nil {
		t.Fatalf("GetChat() error = %v", err)
	}
	if chat.UserID != "alice" || chat.Title != newChatTitle {
		t.Errorf("chat = %+v", chat)
	}

	rec = f.do(t, http.MethodPost, "/playground-handler", `{"prompt": "again", "chatId": "`+first.ChatID+`"}`, alice)
	if rec.Code != http.StatusOK {
		t.Fatalf("second status = %d, body = %s", rec.Code, rec.Body.String())
	}
	contents := f.model.Requests()[1].Contents
	if len(contents) != 3 {
		t.Fatalf("second call contents = %+v, want hello, reply, again", contents)
	}
	if contents[0].Parts[0].Text != "hello" || contents[2].Parts[0].Text != "again" {
		t.Errorf("history order = %+v", contents)
	}

	msgs, err := f.store.RecentMessages(context.Background(), first.ChatID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 4 {
		t.Errorf("stored messages = %d, want 4", len(msgs))
	}

	bob := &auth.Caller{UserID: "bob"}
	rec = f.do(t, http.MethodPost, "/playground-handler", `{"prompt": "peek", "chatId": "`+first.ChatID+`"}`, bob)
	if rec.Code != http.StatusNotFound {
		t.Errorf("foreign chat status = %d, want 404", rec.Code)
	}
}

func TestPlayground_StreamingEndCarriesIDs(t *testing.T) {
	f := newFixture(t,
		llmtest.Step{Response: llmtest.Call(tools.CanvasCreateFile, map[string]any{"path": "index.html", "content": "<p>hi</p>"})},
		llmtest.Step{Response: llmtest.Text("Made a page.")},
	)
	rec := f.do(t, http.MethodPost, "/playground-handler", `{"prompt": "make a page"}`,
		&auth.Caller{UserID: "alice"}, "Accept", "application/x-ndjson")

	evs := events(t, rec.Body.String())
	if evs[0]["chatId"] == "" || evs[0]["chatId"] == nil {
		t.Errorf("start event missing chatId: %v", evs[0])
	}
	last := evs[len(evs)-1]
	if last["type"] != "end" {
		t.Fatalf("last event = %v", last)
	}
	if last["chatId"] != evs[0]["chatId"] || last["messageId"] == nil {
		t.Errorf("end event = %v", last)
	}
	if edits, _ := last["fileEdits"].([]any); len(edits) != 1 {
		t.Errorf("fileEdits = %v", last["fileEdits"])
	}
}

func TestTerminal(t *testing.T) {
	f := newFixture(t)
	if err := f.store.CreateFile(context.Background(), &domain.ProjectFile{ProjectID: "p1", Path: "src/a.ts", Content: "x"}); err != nil {
		t.Fatal(err)
	}

	rec := f.do(t, http.MethodPost, "/terminal-handler", `{"command": "cd src", "projectId": "p1", "currentDirectory": "/"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var res terminal.Result
	decodeBody(t, rec, &res)
	if res.Cwd != "/src" || res.ExitCode != 0 {
		t.Errorf("result = %+v", res)
	}

	rec = f.do(t, http.MethodPost, "/terminal-handler", `{"command": "cat a.ts", "projectId": "p1", "cwd": "/src"}`, nil)
	decodeBody(t, rec, &res)
	if res.Output != "x" {
		t.Errorf("cat output = %q", res.Output)
	}
}

func TestFacts(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"query", http.MethodGet, "/fact-generator?count=3", "", 3},
		{"body", http.MethodPost, "/fact-generator", `{"count": 2}`, 2},
		{"default", http.MethodGet, "/fact-generator", "", facts.DefaultCount},
		{"clamped", http.MethodGet, "/fact-generator?count=500", "", facts.MaxCount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, tt.method, tt.path, tt.body, nil)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			var b facts.Batch
			decodeBody(t, rec, &b)
			if b.Source != facts.SourceFallback {
				t.Errorf("source = %q", b.Source)
			}
			if len(b.Facts) > tt.want || len(b.Facts) == 0 {
				t.Errorf("facts = %d, want up to %d", len(b.Facts), tt.want)
			}
		})
	}
}
