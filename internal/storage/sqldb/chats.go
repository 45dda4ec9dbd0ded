package sqldb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/tjfontaine/robin-backend/internal/domain"
)

func (s *Store) CreateArtifact(ctx context.Context, a *domain.Artifact) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.LastModified = now
	query := s.dialect.Rebind(`INSERT INTO artifacts (id, chat_id, artifact_type, title, data, message_id, created_at, last_modified)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query, a.ID, a.ChatID, a.Type, a.Title, string(a.Data), nullString(a.MessageID), a.CreatedAt, a.LastModified)
	return s.mapWriteErr("artifact "+a.ID, err)
}

func scanArtifact(row rowScanner) (*domain.Artifact, error) {
	var a domain.Artifact
	var data string
	var messageID sql.NullString
	if err := row.Scan(&a.ID, &a.ChatID, &a.Type, &a.Title, &data, &messageID, &a.CreatedAt, &a.LastModified); err != nil {
		return nil, err
	}
	a.Data = json.RawMessage(data)
	a.MessageID = messageID.String
	return &a, nil
}

const artifactColumns = `id, chat_id, artifact_type, title, data, message_id, created_at, last_modified`

func (s *Store) GetArtifact(ctx context.Context, id string) (*domain.Artifact, error) {
	query := s.dialect.Rebind(`SELECT ` + artifactColumns + ` FROM artifacts WHERE id = ?`)
	a, err := scanArtifact(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err, "artifact "+id)
	}
	return a, nil
}

func (s *Store) UpdateArtifactData(ctx context.Context, id string, data json.RawMessage) error {
	query := s.dialect.Rebind(`UPDATE artifacts SET data = ?, last_modified = ? WHERE id = ?`)
	res, err := s.db.ExecContext(ctx, query, string(data), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update artifact: %w", err)
	}
	return expectRows(res, "artifact "+id)
}

func (s *Store) ListArtifacts(ctx context.Context, chatID string, limit int) ([]domain.Artifact, error) {
	if limit <= 0 {
		limit = 100
	}
	query := s.dialect.Rebind(`SELECT ` + artifactColumns + ` FROM artifacts WHERE chat_id = ?
	          ORDER BY last_modified DESC LIMIT ?`)
	rows, err := s.db.QueryContext(ctx, query, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query artifacts: %w", err)
	}
	defer rows.Close()

	var out []domain.Artifact
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan artifact: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (s *Store) LinkArtifacts(ctx context.Context, messageID string, artifactIDs []string) error {
	if len(artifactIDs) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`UPDATE artifacts SET message_id = ? WHERE id IN (?)`, messageID, artifactIDs)
	if err != nil {
		return fmt.Errorf("failed to build link query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, s.dialect.Rebind(query), args...); err != nil {
		return fmt.Errorf("failed to link artifacts: %w", err)
	}
	return nil
}

func (s *Store) CreateChat(ctx context.Context, c *domain.Chat) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = time.Now().UTC()
	query := s.dialect.Rebind(`INSERT INTO playground_chats (id, user_id, title, created_at) VALUES (?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query, c.ID, c.UserID, c.Title, c.CreatedAt)
	return s.mapWriteErr("chat "+c.ID, err)
}

func (s *Store) GetChat(ctx context.Context, id string) (*domain.Chat, error) {
	query := s.dialect.Rebind(`SELECT id, user_id, title, created_at FROM playground_chats WHERE id = ?`)
	var c domain.Chat
	if err := s.db.QueryRowContext(ctx, query, id).Scan(&c.ID, &c.UserID, &c.Title, &c.CreatedAt); err != nil {
		return nil, notFound(err, "chat "+id)
	}
	return &c, nil
}

type toolResults struct {
	Events []domain.ToolEvent `json:"events"`
}

func (s *Store) AddMessage(ctx context.Context, m *domain.ChatMessage) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.SentAt.IsZero() {
		m.SentAt = time.Now().UTC()
	}
	if m.MessageType == "" {
		m.MessageType = "text"
	}
	var tools sql.NullString
	if len(m.ToolEvents) > 0 {
		b, err := json.Marshal(toolResults{Events: m.ToolEvents})
		if err != nil {
			return fmt.Errorf("failed to marshal tool results: %w", err)
		}
		tools = nullString(string(b))
	}
	query := s.dialect.Rebind(`INSERT INTO chat_messages (id, chat_id, sender, message_type, content, attached_files, tool_results, thoughts, sent_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query, m.ID, m.ChatID, string(m.Sender), m.MessageType, m.Content,
		nullString(string(m.AttachedFiles)), tools, nullString(m.Thoughts), m.SentAt)
	return s.mapWriteErr("message "+m.ID, err)
}

func (s *Store) RecentMessages(ctx context.Context, chatID string, limit int) ([]domain.ChatMessage, error) {
	if limit <= 0 {
		limit = 10
	}
	query := s.dialect.Rebind(`SELECT id, chat_id, sender, message_type, content, attached_files, tool_results, thoughts, sent_at
	          FROM chat_messages WHERE chat_id = ? ORDER BY sent_at DESC LIMIT ?`)
	rows, err := s.db.QueryContext(ctx, query, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var out []domain.ChatMessage
	for rows.Next() {
		var m domain.ChatMessage
		var sender string
		var attached, tools, thoughts sql.NullString
		if err := rows.Scan(&m.ID, &m.ChatID, &sender, &m.MessageType, &m.Content, &attached, &tools, &thoughts, &m.SentAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.Sender = domain.Sender(sender)
		m.Thoughts = thoughts.String
		if attached.Valid && attached.String != "" {
			m.AttachedFiles = json.RawMessage(attached.String)
		}
		if tools.Valid && tools.String != "" {
			var tr toolResults
			if err := json.Unmarshal([]byte(tools.String), &tr); err != nil {
				return nil, fmt.Errorf("failed to unmarshal tool results: %w", err)
			}
			m.ToolEvents = tr.Events
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
