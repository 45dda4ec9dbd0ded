// Package frontdoor exposes the IDE's HTTP endpoints: Ask, Build and
// Playground run the orchestration loop; Terminal and the fact generator are
// independent helpers.
package frontdoor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tjfontaine/robin-backend/internal/agent"
	"github.com/tjfontaine/robin-backend/internal/attachments"
	"github.com/tjfontaine/robin-backend/internal/auth"
	"github.com/tjfontaine/robin-backend/internal/conversation"
	"github.com/tjfontaine/robin-backend/internal/domain"
	"github.com/tjfontaine/robin-backend/internal/facts"
	"github.com/tjfontaine/robin-backend/internal/server"
	"github.com/tjfontaine/robin-backend/internal/storage"
	"github.com/tjfontaine/robin-backend/internal/stream"
	"github.com/tjfontaine/robin-backend/internal/terminal"
	"github.com/tjfontaine/robin-backend/internal/tools"
)

// BasePath is where every endpoint is mounted.
const BasePath = "/functions/v1"

// maxBodyBytes bounds request bodies; inline attachments make them large.
const maxBodyBytes = 32 << 20

// Options tunes request handling.
type Options struct {
	// HistoryWindow is how many stored playground messages seed a turn.
	HistoryWindow int
	PingInterval  time.Duration
}

// Deps are the collaborators a Handler needs.
type Deps struct {
	Runner   *agent.Runner
	Context  *agent.ContextBuilder
	Window   agent.Window
	Store    storage.Store
	Resolver *attachments.Resolver
	Recorder *conversation.Recorder
	Shell    *terminal.Shell
	Facts    *facts.Generator
	Logger   *slog.Logger
}

type Handler struct {
	Deps
	opts Options
}

func NewHandler(deps Deps, opts Options) *Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = 4
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = time.Second
	}
	return &Handler{Deps: deps, opts: opts}
}

// Routes mounts the endpoints under BasePath.
func (h *Handler) Routes(r chi.Router) {
	r.Route(BasePath, func(r chi.Router) {
		r.Post("/agent-handler", h.HandleBuild)
		r.Post("/agent-chat-handler", h.HandleAsk)
		r.Post("/playground-handler", h.HandlePlayground)
		r.Post("/terminal-handler", h.HandleTerminal)
		r.Get("/fact-generator", h.HandleFacts)
		r.Post("/fact-generator", h.HandleFacts)
	})
}

// chatRequest is the body shared by the loop endpoints.
type chatRequest struct {
	Prompt          string                   `json:"prompt"`
	History         []json.RawMessage        `json:"history"`
	ProjectID       string                   `json:"projectId"`
	ChatID          string                   `json:"chatId"`
	Model           string                   `json:"model"`
	IncludeThoughts bool                     `json:"includeThoughts"`
	Attachments     []attachments.Attachment `json:"attachments"`
	AttachedFiles   []attachedFile           `json:"attachedFiles"`
}

// attachedFile is an editor buffer the Ask client sends along for context.
type attachedFile struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

func decode(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: decode body: %v", domain.ErrInvalidRequest, err)
	}
	return nil
}

// history decodes client-supplied turns, dropping entries that do not parse,
// then strips thoughts and empty turns.
func history(raw []json.RawMessage) []domain.Turn {
	turns := make([]domain.Turn, 0, len(raw))
	for _, m := range raw {
		var t domain.Turn
		if err := json.Unmarshal(m, &t); err != nil {
			continue
		}
		turns = append(turns, t)
	}
	return agent.CleanHistory(turns)
}

// run executes one loop. When the client asked for a stream, events are
// written as they happen and finish renders the end event; otherwise finish
// renders the JSON body. Errors after streaming started are reported in-band.
type run struct {
	mode    agent.Mode
	session *tools.Session
	req     agent.Request
	chatID  string
	// finish builds the response from a successful outcome. It may write
	// trailing text to the emitter, which is nil when not streaming.
	finish func(ctx context.Context, out *agent.Outcome, em *stream.Emitter) any
}

func (h *Handler) execute(w http.ResponseWriter, r *http.Request, rn run) {
	ctx := r.Context()
	server.AddLogField(ctx, "mode", string(rn.mode))
	server.AddLogField(ctx, "chat_id", rn.chatID)

	if !stream.Requested(r) {
		out, err := h.Runner.Run(ctx, rn.session, rn.req, agent.Discard{})
		if err != nil {
			h.fail(w, r, err)
			return
		}
		h.logOutcome(ctx, out)
		server.WriteJSON(w, http.StatusOK, rn.finish(ctx, out, nil))
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream.SetHeaders(w)
	w.WriteHeader(http.StatusOK)
	em := stream.New(w, stream.Options{
		ChatID:          rn.chatID,
		IncludeThoughts: rn.req.IncludeThoughts,
		OnWriteError:    func(error) { cancel() },
		Logger:          h.Logger,
	})
	stop := em.Ping(ctx, h.opts.PingInterval)

	rn.req.Stream = true
	out, err := h.Runner.Run(ctx, rn.session, rn.req, em)
	stop()
	if err != nil {
		server.AddError(r.Context(), err)
		em.Error(err.Error())
		return
	}
	h.logOutcome(r.Context(), out)
	end, ok := rn.finish(ctx, out, em).(stream.End)
	if !ok {
		end = stream.End{ChatID: rn.chatID, FileEdits: rn.session.Edits()}
	}
	em.Finish(end)
}

func (h *Handler) logOutcome(ctx context.Context, out *agent.Outcome) {
	server.AddLogField(ctx, "model", out.Model)
	server.AddLogField(ctx, "rounds", strconv.Itoa(out.Rounds))
	if out.FellBack {
		server.AddLogField(ctx, "fell_back", "true")
	}
}

// fail renders err as {error}. Missing identity is 401, a chat the caller
// cannot see is 404 and a malformed body is 400; everything else is 500.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	server.AddError(r.Context(), err)
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotAuthenticated):
		status = http.StatusUnauthorized
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidRequest):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		h.Logger.Error("request failed",
			slog.String("request_id", server.GetRequestID(r.Context())),
			slog.String("error", err.Error()),
		)
	}
	server.WriteError(w, status, err.Error())
}

func bearer(ctx context.Context) string {
	if c := auth.CallerFrom(ctx); c != nil {
		return c.Token
	}
	return ""
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
