package sqldb

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tjfontaine/robin-backend/internal/domain"
)

const canvasColumns = `id, chat_id, path, content, version_number, metadata, last_modified`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCanvasFile(row rowScanner) (*domain.CanvasFile, error) {
	var f domain.CanvasFile
	var meta string
	if err := row.Scan(&f.ID, &f.ChatID, &f.Path, &f.Content, &f.VersionNumber, &meta, &f.LastModified); err != nil {
		return nil, err
	}
	if meta != "" {
		if err := json.Unmarshal([]byte(meta), &f.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal canvas metadata: %w", err)
		}
	}
	return &f, nil
}

func (s *Store) ListCanvasFiles(ctx context.Context, chatID string) ([]domain.CanvasFile, error) {
	query := s.dialect.Rebind(`SELECT ` + canvasColumns + ` FROM canvas_files WHERE chat_id = ? ORDER BY path ASC`)
	rows, err := s.db.QueryContext(ctx, query, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to query canvas files: %w", err)
	}
	defer rows.Close()

	var out []domain.CanvasFile
	for rows.Next() {
		f, err := scanCanvasFile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan canvas file: %w", err)
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}

func (s *Store) GetCanvasFile(ctx context.Context, chatID, path string) (*domain.CanvasFile, error) {
	query := s.dialect.Rebind(`SELECT ` + canvasColumns + ` FROM canvas_files WHERE chat_id = ? AND path = ?`)
	f, err := scanCanvasFile(s.db.QueryRowContext(ctx, query, chatID, path))
	if err != nil {
		return nil, notFound(err, "canvas file "+path)
	}
	return f, nil
}

func (s *Store) GetCanvasFileByID(ctx context.Context, id string) (*domain.CanvasFile, error) {
	query := s.dialect.Rebind(`SELECT ` + canvasColumns + ` FROM canvas_files WHERE id = ?`)
	f, err := scanCanvasFile(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err, "canvas file "+id)
	}
	return f, nil
}

func (s *Store) CreateCanvasFile(ctx context.Context, f *domain.CanvasFile) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.VersionNumber == 0 {
		f.VersionNumber = 1
	}
	f.LastModified = time.Now().UTC()
	meta, err := json.Marshal(f.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal canvas metadata: %w", err)
	}
	query := s.dialect.Rebind(`INSERT INTO canvas_files (` + canvasColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	_, err = s.db.ExecContext(ctx, query, f.ID, f.ChatID, f.Path, f.Content, f.VersionNumber, string(meta), f.LastModified)
	return s.mapWriteErr("canvas file "+f.Path, err)
}

func (s *Store) UpdateCanvasFile(ctx context.Context, f *domain.CanvasFile) error {
	meta, err := json.Marshal(f.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal canvas metadata: %w", err)
	}
	f.LastModified = time.Now().UTC()
	query := s.dialect.Rebind(`UPDATE canvas_files SET content = ?, version_number = ?, metadata = ?, last_modified = ?
	          WHERE id = ?`)
	res, err := s.db.ExecContext(ctx, query, f.Content, f.VersionNumber, string(meta), f.LastModified, f.ID)
	if err != nil {
		return fmt.Errorf("failed to update canvas file: %w", err)
	}
	return expectRows(res, "canvas file "+f.ID)
}

func (s *Store) DeleteCanvasFile(ctx context.Context, chatID, path string) error {
	query := s.dialect.Rebind(`DELETE FROM canvas_files WHERE chat_id = ? AND path = ?`)
	res, err := s.db.ExecContext(ctx, query, chatID, path)
	if err != nil {
		return fmt.Errorf("failed to delete canvas file: %w", err)
	}
	return expectRows(res, "canvas file "+path)
}

func (s *Store) SaveCanvasVersion(ctx context.Context, v *domain.CanvasFileVersion) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	v.CreatedAt = time.Now().UTC()
	query := s.dialect.Rebind(`INSERT INTO canvas_file_versions (id, canvas_file_id, version_number, content, created_at)
	          VALUES (?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query, v.ID, v.CanvasFileID, v.VersionNumber, v.Content, v.CreatedAt)
	return s.mapWriteErr(fmt.Sprintf("canvas version %d", v.VersionNumber), err)
}

func (s *Store) ListCanvasVersions(ctx context.Context, canvasFileID string) ([]domain.CanvasFileVersion, error) {
	query := s.dialect.Rebind(`SELECT id, canvas_file_id, version_number, content, created_at
	          FROM canvas_file_versions WHERE canvas_file_id = ? ORDER BY version_number ASC`)
	rows, err := s.db.QueryContext(ctx, query, canvasFileID)
	if err != nil {
		return nil, fmt.Errorf("failed to query canvas versions: %w", err)
	}
	defer rows.Close()

	var out []domain.CanvasFileVersion
	for rows.Next() {
		var v domain.CanvasFileVersion
		if err := rows.Scan(&v.ID, &v.CanvasFileID, &v.VersionNumber, &v.Content, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan canvas version: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
