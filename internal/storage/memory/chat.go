package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/tjfontaine/robin-backend/internal/domain"
)

func (s *Store) CreateArtifact(ctx context.Context, a *domain.Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if _, ok := s.artifacts[a.ID]; ok {
		return fmt.Errorf("artifact %s: %w", a.ID, domain.ErrAlreadyExists)
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.LastModified = now
	s.seq++
	s.order[a.ID] = s.seq
	s.artifacts[a.ID] = *a
	return nil
}

func (s *Store) GetArtifact(ctx context.Context, id string) (*domain.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.artifacts[id]
	if !ok {
		return nil, fmt.Errorf("artifact %s: %w", id, domain.ErrNotFound)
	}
	return &a, nil
}

func (s *Store) UpdateArtifactData(ctx context.Context, id string, data json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.artifacts[id]
	if !ok {
		return fmt.Errorf("artifact %s: %w", id, domain.ErrNotFound)
	}
	a.Data = slices.Clone(data)
	a.LastModified = time.Now().UTC()
	s.seq++
	s.order[id] = s.seq
	s.artifacts[id] = a
	return nil
}

func (s *Store) ListArtifacts(ctx context.Context, chatID string, limit int) ([]domain.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Artifact
	for _, a := range s.artifacts {
		if a.ChatID == chatID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return s.order[out[i].ID] > s.order[out[j].ID] })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) LinkArtifacts(ctx context.Context, messageID string, artifactIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range artifactIDs {
		a, ok := s.artifacts[id]
		if !ok {
			continue
		}
		a.MessageID = messageID
		s.artifacts[id] = a
	}
	return nil
}

func (s *Store) CreateChat(ctx context.Context, c *domain.Chat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if _, ok := s.chats[c.ID]; ok {
		return fmt.Errorf("chat %s: %w", c.ID, domain.ErrAlreadyExists)
	}
	c.CreatedAt = time.Now().UTC()
	s.chats[c.ID] = *c
	return nil
}

func (s *Store) GetChat(ctx context.Context, id string) (*domain.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chats[id]
	if !ok {
		return nil, fmt.Errorf("chat %s: %w", id, domain.ErrNotFound)
	}
	return &c, nil
}

func (s *Store) AddMessage(ctx context.Context, m *domain.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.chats[m.ChatID]; !ok {
		return fmt.Errorf("chat %s: %w", m.ChatID, domain.ErrNotFound)
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.SentAt.IsZero() {
		m.SentAt = time.Now().UTC()
	}
	s.messages[m.ChatID] = append(s.messages[m.ChatID], *m)
	return nil
}

func (s *Store) RecentMessages(ctx context.Context, chatID string, limit int) ([]domain.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.messages[chatID]
	out := make([]domain.ChatMessage, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		out = append(out, all[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
