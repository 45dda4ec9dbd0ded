package tools

import (
	"slices"
	"sync"

	"github.com/tjfontaine/robin-backend/internal/attachments"
	"github.com/tjfontaine/robin-backend/internal/domain"
)

// Scope selects which file table path-based tools operate on.
type Scope int

const (
	// ScopeProject targets project files keyed by ProjectID.
	ScopeProject Scope = iota
	// ScopeCanvas targets a chat's canvas files keyed by ChatID.
	ScopeCanvas
)

// Session is the per-request state shared by the context builder, the
// executor and the loop. It is created once per HTTP request and survives the
// default-model retry, so a retried loop sees the checkpoints and edits of
// the failed attempt.
type Session struct {
	Scope     Scope
	ProjectID string
	ChatID    string
	UserID    string
	// Bearer is the caller's token, forwarded on authenticated fetches.
	Bearer string
	// Model is the caller-preferred model for nested analysis calls.
	Model string
	// Toolset limits which tools Execute accepts; empty allows all.
	Toolset Toolset

	mu          sync.Mutex
	attachments []attachments.Attachment
	edits       []domain.FileEdit
	artifactIDs []string
	checkpoint  map[string]bool
}

// NewSession returns a project-scoped session.
func NewSession(projectID string) *Session {
	return &Session{Scope: ScopeProject, ProjectID: projectID, checkpoint: make(map[string]bool)}
}

// NewCanvasSession returns a chat-scoped session.
func NewCanvasSession(chatID, userID string) *Session {
	return &Session{Scope: ScopeCanvas, ChatID: chatID, UserID: userID, checkpoint: make(map[string]bool)}
}

// SetAttachments replaces the normalized attachment list.
func (s *Session) SetAttachments(list []attachments.Attachment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attachments = slices.Clone(list)
}

// AddAttachment makes a generated file resolvable by later tool calls.
func (s *Session) AddAttachment(a attachments.Attachment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attachments = append(s.attachments, a)
}

func (s *Session) Attachments() []attachments.Attachment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.attachments)
}

func (s *Session) RecordEdit(e domain.FileEdit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.edits = append(s.edits, e)
}

// Edits returns every file edit recorded so far, reads included.
func (s *Session) Edits() []domain.FileEdit {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := slices.Clone(s.edits)
	if out == nil {
		out = []domain.FileEdit{}
	}
	return out
}

// TouchArtifact records an artifact created or modified in this request.
func (s *Session) TouchArtifact(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !slices.Contains(s.artifactIDs, id) {
		s.artifactIDs = append(s.artifactIDs, id)
	}
}

func (s *Session) ArtifactIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := slices.Clone(s.artifactIDs)
	if out == nil {
		out = []string{}
	}
	return out
}

// checkpointTaken reports whether path already had its version bumped (or
// was created) in this request, and marks it.
func (s *Session) checkpointTaken(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.checkpoint == nil {
		s.checkpoint = make(map[string]bool)
	}
	taken := s.checkpoint[path]
	s.checkpoint[path] = true
	return taken
}

func (s *Session) markCheckpoint(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.checkpoint == nil {
		s.checkpoint = make(map[string]bool)
	}
	s.checkpoint[path] = true
}
