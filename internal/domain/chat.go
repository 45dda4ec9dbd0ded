package domain

import (
	"encoding/json"
	"time"
)

// Sender identifies who authored a stored chat message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderAI   Sender = "ai"
)

// Chat is a playground conversation owned by a user.
type Chat struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// ToolEvent summarizes one executed tool call for the stored transcript.
type ToolEvent struct {
	ID     int            `json:"id"`
	Name   string         `json:"name"`
	Result map[string]any `json:"result"`
}

// ChatMessage is an append-only row of chat history.
type ChatMessage struct {
	ID            string          `json:"id"`
	ChatID        string          `json:"chat_id"`
	Sender        Sender          `json:"sender"`
	MessageType   string          `json:"message_type"`
	Content       string          `json:"content"`
	AttachedFiles json.RawMessage `json:"attached_files,omitempty"`
	ToolEvents    []ToolEvent     `json:"tool_events,omitempty"`
	Thoughts      string          `json:"thoughts,omitempty"`
	SentAt        time.Time       `json:"sent_at"`
}

// Artifact types created by tools.
const (
	ArtifactTodoList    = "todo_list"
	ArtifactProjectCard = "project_card_preview"
	ArtifactTemplate    = "template"
)

// Artifact is a structured, id-addressable side product of a tool call.
type Artifact struct {
	ID           string          `json:"id"`
	ChatID       string          `json:"chat_id"`
	Type         string          `json:"artifact_type"`
	Title        string          `json:"title"`
	Data         json.RawMessage `json:"data"`
	MessageID    string          `json:"message_id,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	LastModified time.Time       `json:"last_modified"`
}
