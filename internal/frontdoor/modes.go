package frontdoor

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/tjfontaine/robin-backend/internal/agent"
	"github.com/tjfontaine/robin-backend/internal/attachments"
	"github.com/tjfontaine/robin-backend/internal/auth"
	"github.com/tjfontaine/robin-backend/internal/conversation"
	"github.com/tjfontaine/robin-backend/internal/domain"
	"github.com/tjfontaine/robin-backend/internal/server"
	"github.com/tjfontaine/robin-backend/internal/stream"
	"github.com/tjfontaine/robin-backend/internal/tools"
)

const newChatTitle = "New Playground Chat"

type buildResponse struct {
	Text      string            `json:"text"`
	FileEdits []domain.FileEdit `json:"fileEdits"`
}

type askResponse struct {
	Text          string            `json:"text"`
	FileEdits     []domain.FileEdit `json:"fileEdits"`
	FilesAnalyzed []string          `json:"filesAnalyzed"`
}

type playgroundResponse struct {
	Text        string            `json:"text"`
	ChatID      string            `json:"chatId"`
	MessageID   string            `json:"messageId,omitempty"`
	ArtifactIDs []string          `json:"artifactIds"`
	FileEdits   []domain.FileEdit `json:"fileEdits"`
}

// HandleBuild serves Build mode: the model may read and change project files.
func (h *Handler) HandleBuild(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	ctx := r.Context()
	s := tools.NewSession(req.ProjectID)
	s.Toolset = tools.BuildToolset
	s.Bearer = bearer(ctx)
	s.Model = req.Model
	s.SetAttachments(h.normalize(ctx, req.Attachments))

	h.execute(w, r, run{
		mode:    agent.ModeBuild,
		session: s,
		req:     h.request(ctx, agent.ModeBuild, s, req, nil),
		finish: func(ctx context.Context, out *agent.Outcome, em *stream.Emitter) any {
			edits := nonNil(s.Edits())
			summary := changesApplied(edits)
			if em == nil {
				return buildResponse{Text: out.Text + summary, FileEdits: edits}
			}
			if summary != "" {
				em.Text(summary)
			}
			return stream.End{FileEdits: edits}
		},
	})
}

// HandleAsk serves Ask mode: read-only analysis of project files.
func (h *Handler) HandleAsk(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	ctx := r.Context()
	s := tools.NewSession(req.ProjectID)
	s.Toolset = tools.AskToolset
	s.Bearer = bearer(ctx)
	s.Model = req.Model
	s.SetAttachments(h.normalize(ctx, req.Attachments))

	var notes []string
	if n := attachedFilesNote(req.AttachedFiles); n != "" {
		notes = append(notes, n)
	}

	h.execute(w, r, run{
		mode:    agent.ModeAsk,
		session: s,
		req:     h.request(ctx, agent.ModeAsk, s, req, nil, notes...),
		finish: func(ctx context.Context, out *agent.Outcome, em *stream.Emitter) any {
			edits := nonNil(s.Edits())
			if em != nil {
				return stream.End{FileEdits: edits}
			}
			return askResponse{Text: out.Text, FileEdits: edits, FilesAnalyzed: filesAnalyzed(req.AttachedFiles, edits)}
		},
	})
}

// HandlePlayground serves Playground mode. Chats are server-tracked: the
// caller must own chatId, or a new chat is created for them.
func (h *Handler) HandlePlayground(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	ctx := r.Context()
	caller := auth.CallerFrom(ctx)
	if caller == nil || caller.UserID == "" {
		h.fail(w, r, domain.ErrNotAuthenticated)
		return
	}

	chatID, err := h.chatFor(ctx, caller.UserID, req.ChatID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	// Stored history is read before this turn's message lands so it is not
	// sent to the model twice.
	var past []domain.Turn
	rows, err := h.Store.RecentMessages(ctx, chatID, h.opts.HistoryWindow)
	if err != nil {
		h.Logger.Warn("failed to load chat history", "chat_id", chatID, "error", err)
	} else {
		past = agent.FromMessages(rows)
	}

	s := tools.NewCanvasSession(chatID, caller.UserID)
	s.Toolset = tools.PlaygroundToolset
	s.Bearer = caller.Token
	s.Model = req.Model
	atts := h.normalize(ctx, req.Attachments)
	s.SetAttachments(atts)

	h.Recorder.RecordUser(ctx, chatID, req.Prompt, atts)

	h.execute(w, r, run{
		mode:    agent.ModePlayground,
		session: s,
		chatID:  chatID,
		req:     h.request(ctx, agent.ModePlayground, s, req, past),
		finish: func(ctx context.Context, out *agent.Outcome, em *stream.Emitter) any {
			artifactIDs := nonNil(s.ArtifactIDs())
			messageID := h.Recorder.RecordAssistant(ctx, chatID, conversation.Reply{
				Text:        out.Text,
				Thoughts:    out.Thoughts,
				ToolEvents:  out.ToolEvents,
				ArtifactIDs: artifactIDs,
			})
			edits := nonNil(s.Edits())
			if em != nil {
				return stream.End{MessageID: messageID, ChatID: chatID, FileEdits: edits, ArtifactIDs: artifactIDs}
			}
			return playgroundResponse{
				Text:        out.Text,
				ChatID:      chatID,
				MessageID:   messageID,
				ArtifactIDs: artifactIDs,
				FileEdits:   edits,
			}
		},
	})
}

// chatFor returns chatID when the user owns it, or creates a new chat.
// Chats owned by someone else report not found.
func (h *Handler) chatFor(ctx context.Context, userID, chatID string) (string, error) {
	if chatID == "" {
		chat := &domain.Chat{UserID: userID, Title: newChatTitle}
		if err := h.Store.CreateChat(ctx, chat); err != nil {
			return "", fmt.Errorf("create chat: %w", err)
		}
		server.AddLogField(ctx, "chat_created", "true")
		return chat.ID, nil
	}
	chat, err := h.Store.GetChat(ctx, chatID)
	if err != nil {
		return "", fmt.Errorf("load chat: %w", err)
	}
	if chat.UserID != userID {
		return "", fmt.Errorf("chat %s: %w", chatID, domain.ErrNotFound)
	}
	return chat.ID, nil
}

// request assembles the loop input. Server-tracked history wins over the
// client's; both are trimmed to the token budget.
func (h *Handler) request(ctx context.Context, mode agent.Mode, s *tools.Session, req chatRequest, tracked []domain.Turn, notes ...string) agent.Request {
	past := tracked
	if past == nil {
		past = history(req.History)
	}
	model := req.Model
	if model == "" {
		model = h.Runner.DefaultModel()
	}
	past = h.Window.Trim(model, past)

	return agent.Request{
		Mode:     mode,
		Model:    req.Model,
		Contents: agent.Seed(past, req.Prompt, s.Attachments()),
		System: func(ctx context.Context) string {
			return h.Context.System(ctx, mode, s, notes...)
		},
		IncludeThoughts: req.IncludeThoughts,
	}
}

func (h *Handler) normalize(ctx context.Context, raw []attachments.Attachment) []attachments.Attachment {
	if len(raw) == 0 || h.Resolver == nil {
		return raw
	}
	return h.Resolver.Normalize(ctx, raw)
}

// changesApplied renders the summary appended to Build replies.
func changesApplied(edits []domain.FileEdit) string {
	var b strings.Builder
	for _, e := range edits {
		if e.Operation == domain.EditRead {
			continue
		}
		if b.Len() == 0 {
			b.WriteString("\n\nChanges applied:")
		}
		fmt.Fprintf(&b, "\n- %s %s", e.Operation, e.Path)
	}
	return b.String()
}

func attachedFilesNote(files []attachedFile) string {
	if len(files) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Attached files (%d):", len(files))
	for _, f := range files {
		fmt.Fprintf(&b, "\n- %s (%d lines)", f.Path, len(strings.Split(f.Content, "\n")))
	}
	return b.String()
}

// filesAnalyzed lists attached paths followed by paths the model read.
func filesAnalyzed(files []attachedFile, edits []domain.FileEdit) []string {
	seen := make(map[string]bool)
	out := []string{}
	add := func(p string) {
		if p == "" || seen[p] {
			return
		}
		seen[p] = true
		out = append(out, p)
	}
	for _, f := range files {
		add(f.Path)
	}
	for _, e := range edits {
		if e.Operation == domain.EditRead {
			add(e.Path)
		}
	}
	return out
}
