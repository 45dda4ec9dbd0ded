package domain

import "time"

// EditOperation names the kind of change recorded in a FileEdit.
type EditOperation string

const (
	EditCreate EditOperation = "create"
	EditUpdate EditOperation = "update"
	EditDelete EditOperation = "delete"
	EditRead   EditOperation = "read"
)

// FileEdit is one audit entry accumulated during a single orchestration run.
type FileEdit struct {
	Operation  EditOperation `json:"operation"`
	Path       string        `json:"path"`
	OldContent string        `json:"old_content"`
	NewContent string        `json:"new_content"`
}

// Project is the metadata of a user project.
type Project struct {
	ID          string    `json:"id" db:"id"`
	UserID      string    `json:"user_id" db:"user_id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	Stack       []string  `json:"stack" db:"-"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// ProjectFile is a file keyed by (project, path).
type ProjectFile struct {
	ID           string    `json:"id" db:"id"`
	ProjectID    string    `json:"project_id" db:"project_id"`
	Path         string    `json:"path" db:"path"`
	Content      string    `json:"content" db:"content"`
	LastModified time.Time `json:"last_modified" db:"last_modified"`
}

// CanvasMetadata is the descriptive metadata stored with a canvas file.
type CanvasMetadata struct {
	Description string `json:"description,omitempty"`
	Type        string `json:"type,omitempty"`
	CanvasReady bool   `json:"canvas_ready"`
}

// CanvasFile is a chat-scoped editable document keyed by (chat, path).
type CanvasFile struct {
	ID            string         `json:"id"`
	ChatID        string         `json:"chat_id"`
	Path          string         `json:"path"`
	Content       string         `json:"content"`
	VersionNumber int            `json:"version_number"`
	Metadata      CanvasMetadata `json:"metadata"`
	LastModified  time.Time      `json:"last_modified"`
}

// CanvasFileVersion is an immutable snapshot taken when a canvas file's version is bumped.
type CanvasFileVersion struct {
	ID            string    `json:"id"`
	CanvasFileID  string    `json:"canvas_file_id"`
	VersionNumber int       `json:"version_number"`
	Content       string    `json:"content"`
	CreatedAt     time.Time `json:"created_at"`
}
