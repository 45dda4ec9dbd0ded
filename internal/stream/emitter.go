// Package stream writes an orchestration run to the client as newline
// delimited JSON events.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/tjfontaine/robin-backend/internal/domain"
	"github.com/tjfontaine/robin-backend/internal/tools"
)

// ContentType is the media type of the event stream.
const ContentType = "application/x-ndjson; charset=utf-8"

// Marker returns the text interleaved into the answer where tool id begins.
func Marker(id int) string {
	return fmt.Sprintf("\n\n[tool:%d]\n\n", id)
}

// Requested reports whether the client asked for a streamed response.
func Requested(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/x-ndjson") {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(r.Header.Get("X-Stream")), "true")
}

// SetHeaders prepares w for streaming. Call before the first write.
func SetHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", ContentType)
	h.Set("Cache-Control", "no-cache, no-transform")
	h.Set("X-Accel-Buffering", "no")
	h.Set("Connection", "keep-alive")
}

// End is the payload of the final event of a successful run.
type End struct {
	FinalText   string            `json:"finalText"`
	MessageID   string            `json:"messageId,omitempty"`
	ChatID      string            `json:"chatId,omitempty"`
	FileEdits   []domain.FileEdit `json:"fileEdits"`
	ArtifactIDs []string          `json:"artifactIds,omitempty"`
}

// Options configures an Emitter.
type Options struct {
	// ChatID is echoed on start events.
	ChatID string
	// IncludeThoughts forwards reasoning deltas; otherwise they are dropped.
	IncludeThoughts bool
	// OnWriteError is called once, with the first failed write. Handlers use
	// it to cancel the run when the client goes away.
	OnWriteError func(error)
	Logger       *slog.Logger
}

// Emitter serializes events onto one response. It is safe for concurrent use
// by the loop goroutine and the ping goroutine. After the first write error
// every later event is dropped.
type Emitter struct {
	mu      sync.Mutex
	w       io.Writer
	flusher http.Flusher
	opts    Options
	text    strings.Builder
	err     error
	logger  *slog.Logger
}

// New wraps w. When w implements http.Flusher each event is flushed.
func New(w io.Writer, opts Options) *Emitter {
	e := &Emitter{w: w, opts: opts, logger: opts.Logger}
	if f, ok := w.(http.Flusher); ok {
		e.flusher = f
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// Started writes a start event. Each attempt begins a fresh answer, so text
// from an earlier failed attempt is dropped from FinalText.
func (e *Emitter) Started(model string) {
	e.mu.Lock()
	e.text.Reset()
	e.mu.Unlock()
	e.write(struct {
		Type   string `json:"type"`
		Model  string `json:"model"`
		ChatID string `json:"chatId,omitempty"`
	}{"start", model, e.opts.ChatID})
}

func (e *Emitter) Text(delta string) {
	if delta == "" {
		return
	}
	e.mu.Lock()
	e.text.WriteString(delta)
	e.mu.Unlock()
	e.delta("text", delta)
}

func (e *Emitter) Thought(delta string) {
	if !e.opts.IncludeThoughts || delta == "" {
		return
	}
	e.delta("thought", delta)
}

// ToolStarted writes tool_in_progress followed by the text marker for id.
func (e *Emitter) ToolStarted(id int, name string) {
	e.write(struct {
		Type string `json:"type"`
		ID   int    `json:"id"`
		Name string `json:"name"`
	}{"tool_in_progress", id, name})
	e.Text(Marker(id))
}

func (e *Emitter) ToolFinished(id int, name string, result tools.Result) {
	e.write(struct {
		Type   string       `json:"type"`
		ID     int          `json:"id"`
		Name   string       `json:"name"`
		OK     bool         `json:"ok"`
		Result tools.Result `json:"result"`
	}{"tool_result", id, name, result.OK(), result})
}

// Error writes an in-band error event. The caller closes the stream after it.
func (e *Emitter) Error(message string) {
	e.write(struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}{"error", message})
}

// Finish writes the end event. An empty FinalText is filled with the text
// streamed so far, markers included.
func (e *Emitter) Finish(end End) {
	if end.FinalText == "" {
		end.FinalText = e.FinalText()
	}
	if end.FileEdits == nil {
		end.FileEdits = []domain.FileEdit{}
	}
	e.write(struct {
		Type string `json:"type"`
		End
	}{"end", end})
}

// FinalText is every text delta written since the last start event.
func (e *Emitter) FinalText() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.text.String()
}

// Err returns the first write error, usually a disconnected client.
func (e *Emitter) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// Ping starts a goroutine writing a ping event every interval until ctx is
// done or the returned stop function is called. stop waits for the goroutine
// to exit and may be called more than once.
func (e *Emitter) Ping(ctx context.Context, interval time.Duration) (stop func()) {
	if interval <= 0 {
		return func() {}
	}
	quit := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-quit:
				return
			case t := <-ticker.C:
				e.write(struct {
					Type string `json:"type"`
					T    int64  `json:"t"`
				}{"ping", t.UnixMilli()})
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() { close(quit) })
		<-done
	}
}

func (e *Emitter) delta(kind, delta string) {
	e.write(struct {
		Type  string `json:"type"`
		Delta string `json:"delta"`
	}{kind, delta})
}

func (e *Emitter) write(ev any) {
	line, err := json.Marshal(ev)
	if err != nil {
		e.logger.Error("failed to encode stream event", slog.String("error", err.Error()))
		return
	}
	line = append(line, '\n')

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return
	}
	if _, err := e.w.Write(line); err != nil {
		e.err = err
		e.logger.Debug("stream write failed", slog.String("error", err.Error()))
		if e.opts.OnWriteError != nil {
			e.opts.OnWriteError(err)
		}
		return
	}
	if e.flusher != nil {
		e.flusher.Flush()
	}
}
