// Package memory is an in-process implementation of storage.Store.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tjfontaine/robin-backend/internal/domain"
	"github.com/tjfontaine/robin-backend/internal/storage"
)

var _ storage.Store = (*Store)(nil)

type fileKey struct{ scope, path string }

// Store keeps every table in maps guarded by a single RWMutex.
type Store struct {
	mu        sync.RWMutex
	projects  map[string]domain.Project
	files     map[fileKey]domain.ProjectFile
	canvas    map[string]domain.CanvasFile // by id
	versions  map[string][]domain.CanvasFileVersion
	artifacts map[string]domain.Artifact
	order     map[string]int // artifact insertion order for stable sorting
	chats     map[string]domain.Chat
	messages  map[string][]domain.ChatMessage
	seq       int
}

// New creates an empty store.
func New() *Store {
	return &Store{
		projects:  make(map[string]domain.Project),
		files:     make(map[fileKey]domain.ProjectFile),
		canvas:    make(map[string]domain.CanvasFile),
		versions:  make(map[string][]domain.CanvasFileVersion),
		artifacts: make(map[string]domain.Artifact),
		order:     make(map[string]int),
		chats:     make(map[string]domain.Chat),
		messages:  make(map[string][]domain.ChatMessage),
	}
}

func (s *Store) Close() error { return nil }

func (s *Store) CreateProject(ctx context.Context, p *domain.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if _, ok := s.projects[p.ID]; ok {
		return fmt.Errorf("project %s: %w", p.ID, domain.ErrAlreadyExists)
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	s.projects[p.ID] = *p
	return nil
}

func (s *Store) GetProject(ctx context.Context, id string) (*domain.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, fmt.Errorf("project %s: %w", id, domain.ErrNotFound)
	}
	return &p, nil
}

func (s *Store) ListFiles(ctx context.Context, projectID string) ([]domain.ProjectFile, error) {
	return s.ListFilesByPrefix(ctx, projectID, "")
}

func (s *Store) ListFilesByPrefix(ctx context.Context, projectID, prefix string) ([]domain.ProjectFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.ProjectFile
	for k, f := range s.files {
		if k.scope == projectID && strings.HasPrefix(k.path, prefix) {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (s *Store) GetFile(ctx context.Context, projectID, path string) (*domain.ProjectFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.files[fileKey{projectID, path}]
	if !ok {
		return nil, fmt.Errorf("file %s: %w", path, domain.ErrNotFound)
	}
	return &f, nil
}

func (s *Store) CreateFile(ctx context.Context, f *domain.ProjectFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := fileKey{f.ProjectID, f.Path}
	if _, ok := s.files[key]; ok {
		return fmt.Errorf("file %s: %w", f.Path, domain.ErrAlreadyExists)
	}
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	f.LastModified = time.Now().UTC()
	s.files[key] = *f
	return nil
}

func (s *Store) UpdateFileContent(ctx context.Context, projectID, path, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := fileKey{projectID, path}
	f, ok := s.files[key]
	if !ok {
		return fmt.Errorf("file %s: %w", path, domain.ErrNotFound)
	}
	f.Content = content
	f.LastModified = time.Now().UTC()
	s.files[key] = f
	return nil
}

func (s *Store) TouchFile(ctx context.Context, projectID, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := fileKey{projectID, path}
	f, ok := s.files[key]
	if !ok {
		return fmt.Errorf("file %s: %w", path, domain.ErrNotFound)
	}
	f.LastModified = time.Now().UTC()
	s.files[key] = f
	return nil
}

func (s *Store) DeleteFile(ctx context.Context, projectID, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := fileKey{projectID, path}
	if _, ok := s.files[key]; !ok {
		return fmt.Errorf("file %s: %w", path, domain.ErrNotFound)
	}
	delete(s.files, key)
	return nil
}
