package sqldb

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tjfontaine/robin-backend/internal/domain"
)

func (s *Store) CreateProject(ctx context.Context, p *domain.Project) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	stack, err := json.Marshal(p.Stack)
	if err != nil {
		return fmt.Errorf("failed to marshal stack: %w", err)
	}
	query := s.dialect.Rebind(`INSERT INTO projects (id, user_id, name, description, stack, created_at)
	          VALUES (?, ?, ?, ?, ?, ?)`)
	_, err = s.db.ExecContext(ctx, query, p.ID, p.UserID, p.Name, p.Description, string(stack), p.CreatedAt)
	return s.mapWriteErr("project "+p.ID, err)
}

func (s *Store) GetProject(ctx context.Context, id string) (*domain.Project, error) {
	query := s.dialect.Rebind(`SELECT id, user_id, name, description, stack, created_at
	          FROM projects WHERE id = ?`)
	var p domain.Project
	var stack string
	err := s.db.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.UserID, &p.Name, &p.Description, &stack, &p.CreatedAt)
	if err != nil {
		return nil, notFound(err, "project "+id)
	}
	if stack != "" {
		if err := json.Unmarshal([]byte(stack), &p.Stack); err != nil {
			return nil, fmt.Errorf("failed to unmarshal stack: %w", err)
		}
	}
	return &p, nil
}

func (s *Store) ListFiles(ctx context.Context, projectID string) ([]domain.ProjectFile, error) {
	return s.ListFilesByPrefix(ctx, projectID, "")
}

func (s *Store) ListFilesByPrefix(ctx context.Context, projectID, prefix string) ([]domain.ProjectFile, error) {
	query := s.dialect.Rebind(`SELECT id, project_id, path, content, last_modified
	          FROM project_files WHERE project_id = ? AND path LIKE ? ESCAPE '\' ORDER BY path ASC`)
	var files []domain.ProjectFile
	if err := s.db.SelectContext(ctx, &files, query, projectID, escapeLike(prefix)+"%"); err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	return files, nil
}

func (s *Store) GetFile(ctx context.Context, projectID, path string) (*domain.ProjectFile, error) {
	query := s.dialect.Rebind(`SELECT id, project_id, path, content, last_modified
	          FROM project_files WHERE project_id = ? AND path = ?`)
	var f domain.ProjectFile
	if err := s.db.GetContext(ctx, &f, query, projectID, path); err != nil {
		return nil, notFound(err, "file "+path)
	}
	return &f, nil
}

func (s *Store) CreateFile(ctx context.Context, f *domain.ProjectFile) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	f.LastModified = time.Now().UTC()
	query := s.dialect.Rebind(`INSERT INTO project_files (id, project_id, path, content, last_modified)
	          VALUES (?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query, f.ID, f.ProjectID, f.Path, f.Content, f.LastModified)
	return s.mapWriteErr("file "+f.Path, err)
}

func (s *Store) UpdateFileContent(ctx context.Context, projectID, path, content string) error {
	query := s.dialect.Rebind(`UPDATE project_files SET content = ?, last_modified = ?
	          WHERE project_id = ? AND path = ?`)
	res, err := s.db.ExecContext(ctx, query, content, time.Now().UTC(), projectID, path)
	if err != nil {
		return fmt.Errorf("failed to update file: %w", err)
	}
	return expectRows(res, "file "+path)
}

func (s *Store) TouchFile(ctx context.Context, projectID, path string) error {
	query := s.dialect.Rebind(`UPDATE project_files SET last_modified = ?
	          WHERE project_id = ? AND path = ?`)
	res, err := s.db.ExecContext(ctx, query, time.Now().UTC(), projectID, path)
	if err != nil {
		return fmt.Errorf("failed to touch file: %w", err)
	}
	return expectRows(res, "file "+path)
}

func (s *Store) DeleteFile(ctx context.Context, projectID, path string) error {
	query := s.dialect.Rebind(`DELETE FROM project_files WHERE project_id = ? AND path = ?`)
	res, err := s.db.ExecContext(ctx, query, projectID, path)
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return expectRows(res, "file "+path)
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
