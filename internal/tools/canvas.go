package tools

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/tjfontaine/robin-backend/internal/domain"
)

func requireChat(s *Session) Result {
	if s.ChatID == "" {
		return failure("no chat in scope")
	}
	return nil
}

func (tb *toolbox) canvasCreate(ctx context.Context, s *Session, args Args) Result {
	path := args.String("path")
	if path == "" {
		return failure("path is required")
	}
	meta := domain.CanvasMetadata{
		Description: args.String("description"),
		Type:        args.String("file_type"),
		CanvasReady: true,
	}
	return tb.createCanvas(ctx, s, path, args.Raw("content"), meta)
}

// createCanvas enforces one canvas file per chat. Creation counts as the
// request's checkpoint for path, so later edits in the same request do not
// bump the version again.
func (tb *toolbox) createCanvas(ctx context.Context, s *Session, path, content string, meta domain.CanvasMetadata) Result {
	if r := requireChat(s); r != nil {
		return r
	}
	existing, err := tb.Store.ListCanvasFiles(ctx, s.ChatID)
	if err != nil {
		return failureFrom("create "+path, err)
	}
	if len(existing) > 0 {
		paths := make([]string, 0, len(existing))
		for _, f := range existing {
			paths = append(paths, f.Path)
		}
		r := failure("This chat already has a canvas file (%s). Use canvas_update_file_content on it instead of creating another file.",
			strings.Join(paths, ", "))
		r["existing_paths"] = paths
		return r
	}

	f := &domain.CanvasFile{ChatID: s.ChatID, Path: path, Content: content, VersionNumber: 1, Metadata: meta}
	if err := tb.Store.CreateCanvasFile(ctx, f); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return failure("canvas file %s already exists; use canvas_update_file_content", path)
		}
		return failureFrom("create "+path, err)
	}
	s.markCheckpoint(path)
	s.RecordEdit(domain.FileEdit{Operation: domain.EditCreate, Path: path, NewContent: content})
	return success(map[string]any{"path": path, "id": f.ID, "version_number": f.VersionNumber})
}

func (tb *toolbox) canvasUpdate(ctx context.Context, s *Session, args Args) Result {
	path := args.String("path")
	if path == "" {
		return failure("path is required")
	}
	return tb.updateCanvas(ctx, s, path, args.Raw("new_content"), args.Bool("new_version"))
}

// updateCanvas overwrites a canvas file. Only the first content change to a
// path in a request bumps version_number, unless force is set. A bump first
// snapshots the outgoing content under its version number.
func (tb *toolbox) updateCanvas(ctx context.Context, s *Session, path, newContent string, force bool) Result {
	if r := requireChat(s); r != nil {
		return r
	}
	f, err := tb.Store.GetCanvasFile(ctx, s.ChatID, path)
	if err != nil {
		return failureFrom("update "+path, err)
	}
	old := f.Content

	var bump bool
	switch {
	case force:
		bump = true
		s.markCheckpoint(path)
	case old != newContent:
		bump = !s.checkpointTaken(path)
	}

	if bump {
		snapshot := &domain.CanvasFileVersion{CanvasFileID: f.ID, VersionNumber: f.VersionNumber, Content: old}
		if err := tb.Store.SaveCanvasVersion(ctx, snapshot); err != nil {
			if !errors.Is(err, domain.ErrAlreadyExists) {
				return failureFrom("snapshot "+path, err)
			}
			tb.Logger.Debug("canvas version already saved", slog.String("path", path), slog.Int("version", f.VersionNumber))
		}
		f.VersionNumber++
	}

	f.Content = newContent
	if err := tb.Store.UpdateCanvasFile(ctx, f); err != nil {
		return failureFrom("update "+path, err)
	}
	s.RecordEdit(domain.FileEdit{Operation: domain.EditUpdate, Path: path, OldContent: old, NewContent: newContent})
	return success(map[string]any{
		"path":           path,
		"id":             f.ID,
		"version_number": f.VersionNumber,
		"new_version":    bump,
	})
}

func (tb *toolbox) canvasDelete(ctx context.Context, s *Session, args Args) Result {
	if r := requireChat(s); r != nil {
		return r
	}
	path := args.String("path")
	if path == "" {
		return failure("path is required")
	}
	f, err := tb.Store.GetCanvasFile(ctx, s.ChatID, path)
	if err != nil {
		return failureFrom("delete "+path, err)
	}
	if err := tb.Store.DeleteCanvasFile(ctx, s.ChatID, path); err != nil {
		return failureFrom("delete "+path, err)
	}
	s.RecordEdit(domain.FileEdit{Operation: domain.EditDelete, Path: path, OldContent: f.Content})
	return success(map[string]any{"path": path})
}

func (tb *toolbox) canvasRead(ctx context.Context, s *Session, args Args) Result {
	if r := requireChat(s); r != nil {
		return r
	}
	path := args.String("path")
	if path == "" {
		return failure("path is required")
	}
	f, err := tb.Store.GetCanvasFile(ctx, s.ChatID, path)
	if err != nil {
		return failureFrom("read "+path, err)
	}
	s.RecordEdit(domain.FileEdit{Operation: domain.EditRead, Path: path, OldContent: f.Content, NewContent: f.Content})
	content, truncated := truncate(f.Content, args.Int("max_bytes", 0))
	return success(map[string]any{
		"path":           path,
		"id":             f.ID,
		"content":        content,
		"version_number": f.VersionNumber,
		"truncated":      truncated,
	})
}

func (tb *toolbox) canvasReadByID(ctx context.Context, s *Session, args Args) Result {
	if r := requireChat(s); r != nil {
		return r
	}
	id := args.String("id")
	if id == "" {
		return failure("id is required")
	}
	f, err := tb.Store.GetCanvasFileByID(ctx, id)
	if err != nil || f.ChatID != s.ChatID {
		return Result{"status": statusError, "message": "Not found for this chat", "error_type": string(domain.ErrorTypeNotFound)}
	}
	content, truncated := truncate(f.Content, args.Int("max_bytes", 0))
	return success(map[string]any{"id": f.ID, "path": f.Path, "content": content, "truncated": truncated})
}

func (tb *toolbox) canvasSearch(ctx context.Context, s *Session, args Args) Result {
	if r := requireChat(s); r != nil {
		return r
	}
	query := args.Raw("query")
	if strings.TrimSpace(query) == "" {
		return failure("query must not be empty")
	}
	files, err := tb.Store.ListCanvasFiles(ctx, s.ChatID)
	if err != nil {
		return failureFrom("search", err)
	}
	docs := make([]document, 0, len(files))
	for _, f := range files {
		docs = append(docs, document{path: f.Path, content: f.Content})
	}
	return searchResult(query, docs, args)
}
