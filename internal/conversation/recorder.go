// Package conversation persists playground turns: the user's message, the
// assistant's reply with its reasoning and tool activity, and the link from
// artifacts to the message that produced them.
package conversation

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/tjfontaine/robin-backend/internal/attachments"
	"github.com/tjfontaine/robin-backend/internal/domain"
	"github.com/tjfontaine/robin-backend/internal/server"
	"github.com/tjfontaine/robin-backend/internal/storage"
)

// persistTimeout bounds each write once it is detached from the request.
const persistTimeout = 5 * time.Second

// Store is the subset of the datastore the recorder writes to.
type Store interface {
	storage.ChatStore
	storage.ArtifactStore
}

// Reply is what the assistant produced for one user message.
type Reply struct {
	Text        string
	Thoughts    string
	ToolEvents  []domain.ToolEvent
	ArtifactIDs []string
}

// Recorder writes chat messages best-effort: failures are logged and never
// fail the request.
type Recorder struct {
	store  Store
	logger *slog.Logger
}

func NewRecorder(store Store, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: store, logger: logger}
}

// RecordUser stores the user's prompt with its attachments, inline bytes
// stripped. It returns the message id, or "" if the write failed.
func (r *Recorder) RecordUser(ctx context.Context, chatID, prompt string, atts []attachments.Attachment) string {
	msg := &domain.ChatMessage{
		ChatID:      chatID,
		Sender:      domain.SenderUser,
		MessageType: "text",
		Content:     prompt,
	}
	if len(atts) > 0 {
		stripped := make([]attachments.Attachment, len(atts))
		for i, a := range atts {
			a.Base64 = ""
			stripped[i] = a
		}
		if b, err := json.Marshal(stripped); err == nil {
			msg.AttachedFiles = b
		}
	}
	return r.add(ctx, msg)
}

// RecordAssistant stores the reply and backfills message_id on every
// artifact the turn created or touched. It returns the message id, or "" if
// the write failed.
func (r *Recorder) RecordAssistant(ctx context.Context, chatID string, reply Reply) string {
	id := r.add(ctx, &domain.ChatMessage{
		ChatID:      chatID,
		Sender:      domain.SenderAI,
		MessageType: "text",
		Content:     reply.Text,
		Thoughts:    reply.Thoughts,
		ToolEvents:  reply.ToolEvents,
	})
	if id == "" || len(reply.ArtifactIDs) == 0 {
		return id
	}

	persistCtx, cancel := buildPersistenceContext(ctx, persistTimeout)
	defer cancel()
	if err := r.store.LinkArtifacts(persistCtx, id, reply.ArtifactIDs); err != nil {
		r.logger.Error("failed to link artifacts",
			slog.String("chat_id", chatID),
			slog.String("message_id", id),
			slog.String("request_id", server.GetRequestID(persistCtx)),
			slog.String("error", err.Error()),
		)
	}
	return id
}

func (r *Recorder) add(ctx context.Context, msg *domain.ChatMessage) string {
	persistCtx, cancel := buildPersistenceContext(ctx, persistTimeout)
	defer cancel()

	if err := r.store.AddMessage(persistCtx, msg); err != nil {
		r.logger.Error("failed to store message",
			slog.String("chat_id", msg.ChatID),
			slog.String("sender", string(msg.Sender)),
			slog.String("request_id", server.GetRequestID(persistCtx)),
			slog.String("error", err.Error()),
		)
		return ""
	}
	return msg.ID
}

// buildPersistenceContext detaches persistence from the request lifecycle so
// a disconnected client does not lose its transcript. The request id is
// carried over for log correlation.
func buildPersistenceContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	base := context.Background()
	if reqID := server.GetRequestID(ctx); reqID != "" {
		base = context.WithValue(base, server.RequestIDKey, reqID)
	}
	if timeout <= 0 {
		return context.WithCancel(base)
	}
	return context.WithTimeout(base, timeout)
}
