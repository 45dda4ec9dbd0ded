package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/tjfontaine/robin-backend/internal/domain"
)

func (s *Store) ListCanvasFiles(ctx context.Context, chatID string) ([]domain.CanvasFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.CanvasFile
	for _, f := range s.canvas {
		if f.ChatID == chatID {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (s *Store) GetCanvasFile(ctx context.Context, chatID, path string) (*domain.CanvasFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, f := range s.canvas {
		if f.ChatID == chatID && f.Path == path {
			return &f, nil
		}
	}
	return nil, fmt.Errorf("canvas file %s: %w", path, domain.ErrNotFound)
}

func (s *Store) GetCanvasFileByID(ctx context.Context, id string) (*domain.CanvasFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.canvas[id]
	if !ok {
		return nil, fmt.Errorf("canvas file %s: %w", id, domain.ErrNotFound)
	}
	return &f, nil
}

func (s *Store) CreateCanvasFile(ctx context.Context, f *domain.CanvasFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.canvas {
		if existing.ChatID == f.ChatID && existing.Path == f.Path {
			return fmt.Errorf("canvas file %s: %w", f.Path, domain.ErrAlreadyExists)
		}
	}
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.VersionNumber == 0 {
		f.VersionNumber = 1
	}
	f.LastModified = time.Now().UTC()
	s.canvas[f.ID] = *f
	return nil
}

func (s *Store) UpdateCanvasFile(ctx context.Context, f *domain.CanvasFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.canvas[f.ID]
	if !ok {
		return fmt.Errorf("canvas file %s: %w", f.ID, domain.ErrNotFound)
	}
	existing.Content = f.Content
	existing.VersionNumber = f.VersionNumber
	existing.Metadata = f.Metadata
	existing.LastModified = time.Now().UTC()
	s.canvas[f.ID] = existing
	f.LastModified = existing.LastModified
	return nil
}

func (s *Store) DeleteCanvasFile(ctx context.Context, chatID, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, f := range s.canvas {
		if f.ChatID == chatID && f.Path == path {
			delete(s.canvas, id)
			delete(s.versions, id)
			return nil
		}
	}
	return fmt.Errorf("canvas file %s: %w", path, domain.ErrNotFound)
}

func (s *Store) SaveCanvasVersion(ctx context.Context, v *domain.CanvasFileVersion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.versions[v.CanvasFileID] {
		if existing.VersionNumber == v.VersionNumber {
			return fmt.Errorf("canvas version %d: %w", v.VersionNumber, domain.ErrAlreadyExists)
		}
	}
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	v.CreatedAt = time.Now().UTC()
	s.versions[v.CanvasFileID] = append(s.versions[v.CanvasFileID], *v)
	return nil
}

func (s *Store) ListCanvasVersions(ctx context.Context, canvasFileID string) ([]domain.CanvasFileVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.CanvasFileVersion, len(s.versions[canvasFileID]))
	copy(out, s.versions[canvasFileID])
	return out, nil
}
