// Package storage defines the datastore ports used by the tool executor, the
// persistence sink and the terminal. Implementations return domain.ErrNotFound
// for missing rows and domain.ErrAlreadyExists for uniqueness violations.
package storage

import (
	"context"
	"encoding/json"

	"github.com/tjfontaine/robin-backend/internal/domain"
)

type ProjectStore interface {
	CreateProject(ctx context.Context, p *domain.Project) error
	GetProject(ctx context.Context, id string) (*domain.Project, error)
}

// FileStore holds project files, unique per (project, path).
type FileStore interface {
	ListFiles(ctx context.Context, projectID string) ([]domain.ProjectFile, error)
	ListFilesByPrefix(ctx context.Context, projectID, prefix string) ([]domain.ProjectFile, error)
	GetFile(ctx context.Context, projectID, path string) (*domain.ProjectFile, error)
	CreateFile(ctx context.Context, f *domain.ProjectFile) error
	UpdateFileContent(ctx context.Context, projectID, path, content string) error
	TouchFile(ctx context.Context, projectID, path string) error
	DeleteFile(ctx context.Context, projectID, path string) error
}

// CanvasStore holds chat-scoped canvas files, unique per (chat, path), and
// their version snapshots.
type CanvasStore interface {
	ListCanvasFiles(ctx context.Context, chatID string) ([]domain.CanvasFile, error)
	GetCanvasFile(ctx context.Context, chatID, path string) (*domain.CanvasFile, error)
	GetCanvasFileByID(ctx context.Context, id string) (*domain.CanvasFile, error)
	CreateCanvasFile(ctx context.Context, f *domain.CanvasFile) error
	UpdateCanvasFile(ctx context.Context, f *domain.CanvasFile) error
	DeleteCanvasFile(ctx context.Context, chatID, path string) error
	SaveCanvasVersion(ctx context.Context, v *domain.CanvasFileVersion) error
	ListCanvasVersions(ctx context.Context, canvasFileID string) ([]domain.CanvasFileVersion, error)
}

type ArtifactStore interface {
	CreateArtifact(ctx context.Context, a *domain.Artifact) error
	GetArtifact(ctx context.Context, id string) (*domain.Artifact, error)
	UpdateArtifactData(ctx context.Context, id string, data json.RawMessage) error
	// ListArtifacts returns a chat's artifacts, most recently modified first.
	ListArtifacts(ctx context.Context, chatID string, limit int) ([]domain.Artifact, error)
	LinkArtifacts(ctx context.Context, messageID string, artifactIDs []string) error
}

type ChatStore interface {
	CreateChat(ctx context.Context, c *domain.Chat) error
	GetChat(ctx context.Context, id string) (*domain.Chat, error)
	AddMessage(ctx context.Context, m *domain.ChatMessage) error
	// RecentMessages returns up to limit messages, newest first.
	RecentMessages(ctx context.Context, chatID string, limit int) ([]domain.ChatMessage, error)
}

// Store is the full datastore.
type Store interface {
	ProjectStore
	FileStore
	CanvasStore
	ArtifactStore
	ChatStore
	Close() error
}
