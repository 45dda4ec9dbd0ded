package tools

import (
	"context"
	"errors"
	"strings"

	"github.com/tjfontaine/robin-backend/internal/domain"
)

const (
	defaultMatchesPerFile = 20
	maxMatchesPerFile     = 200
)

func (tb *toolbox) requireProject(s *Session) Result {
	if s.ProjectID == "" {
		return failure("no project in scope")
	}
	return nil
}

func (tb *toolbox) createFile(ctx context.Context, s *Session, args Args) Result {
	if r := tb.requireProject(s); r != nil {
		return r
	}
	path := args.String("path")
	if path == "" {
		return failure("path is required")
	}
	content := args.Raw("content")
	err := tb.Store.CreateFile(ctx, &domain.ProjectFile{ProjectID: s.ProjectID, Path: path, Content: content})
	if errors.Is(err, domain.ErrAlreadyExists) {
		return failure("%s already exists; use update_file_content to change it", path)
	}
	if err != nil {
		return failureFrom("create "+path, err)
	}
	s.RecordEdit(domain.FileEdit{Operation: domain.EditCreate, Path: path, NewContent: content})
	return success(map[string]any{"message": "Created " + path})
}

func (tb *toolbox) updateFile(ctx context.Context, s *Session, args Args) Result {
	if r := tb.requireProject(s); r != nil {
		return r
	}
	path := args.String("path")
	if path == "" {
		return failure("path is required")
	}
	existing, err := tb.Store.GetFile(ctx, s.ProjectID, path)
	if err != nil {
		return failureFrom("update "+path, err)
	}
	newContent := args.Raw("new_content")
	if err := tb.Store.UpdateFileContent(ctx, s.ProjectID, path, newContent); err != nil {
		return failureFrom("update "+path, err)
	}
	s.RecordEdit(domain.FileEdit{Operation: domain.EditUpdate, Path: path, OldContent: existing.Content, NewContent: newContent})
	return success(map[string]any{"message": "Updated " + path})
}

func (tb *toolbox) deleteFile(ctx context.Context, s *Session, args Args) Result {
	if r := tb.requireProject(s); r != nil {
		return r
	}
	path := args.String("path")
	if path == "" {
		return failure("path is required")
	}
	existing, err := tb.Store.GetFile(ctx, s.ProjectID, path)
	if err != nil {
		return failureFrom("delete "+path, err)
	}
	if err := tb.Store.DeleteFile(ctx, s.ProjectID, path); err != nil {
		return failureFrom("delete "+path, err)
	}
	s.RecordEdit(domain.FileEdit{Operation: domain.EditDelete, Path: path, OldContent: existing.Content})
	return success(map[string]any{"message": "Deleted " + path})
}

func (tb *toolbox) readFile(ctx context.Context, s *Session, args Args) Result {
	if r := tb.requireProject(s); r != nil {
		return r
	}
	path := args.String("path")
	if path == "" {
		return failure("path is required")
	}
	f, err := tb.Store.GetFile(ctx, s.ProjectID, path)
	if err != nil {
		return failureFrom("read "+path, err)
	}
	s.RecordEdit(domain.FileEdit{Operation: domain.EditRead, Path: path, OldContent: f.Content, NewContent: f.Content})
	content, truncated := truncate(f.Content, args.Int("max_bytes", 0))
	return success(map[string]any{"path": path, "content": content, "truncated": truncated})
}

func (tb *toolbox) search(ctx context.Context, s *Session, args Args) Result {
	if r := tb.requireProject(s); r != nil {
		return r
	}
	query := args.Raw("query")
	if strings.TrimSpace(query) == "" {
		return failure("query must not be empty")
	}
	files, err := tb.Store.ListFiles(ctx, s.ProjectID)
	if err != nil {
		return failureFrom("search", err)
	}
	docs := make([]document, 0, len(files))
	for _, f := range files {
		docs = append(docs, document{path: f.Path, content: f.Content})
	}
	return searchResult(query, docs, args)
}

type document struct {
	path    string
	content string
}

// FileMatches are the matching lines of one file.
type FileMatches struct {
	Path    string      `json:"path"`
	Matches []LineMatch `json:"matches"`
}

type LineMatch struct {
	Line int    `json:"line"`
	Text string `json:"text"`
}

// searchDocuments does a case-insensitive substring search, 1-based line
// numbers, at most perFile matches per document.
func searchDocuments(query string, docs []document, perFile int) []FileMatches {
	needle := strings.ToLower(query)
	var out []FileMatches
	for _, d := range docs {
		var matches []LineMatch
		for i, line := range strings.Split(d.content, "\n") {
			if !strings.Contains(strings.ToLower(line), needle) {
				continue
			}
			matches = append(matches, LineMatch{Line: i + 1, Text: strings.TrimRight(line, "\r")})
			if len(matches) >= perFile {
				break
			}
		}
		if len(matches) > 0 {
			out = append(out, FileMatches{Path: d.path, Matches: matches})
		}
	}
	return out
}

func searchResult(query string, docs []document, args Args) Result {
	perFile := clamp(args.Int("max_results_per_file", defaultMatchesPerFile), 1, maxMatchesPerFile)
	results := searchDocuments(query, docs, perFile)
	if results == nil {
		results = []FileMatches{}
	}
	return success(map[string]any{
		"query":         query,
		"results":       results,
		"files_matched": len(results),
	})
}

// truncate cuts s to max bytes without splitting a UTF-8 sequence. max <= 0
// means no limit.
func truncate(s string, max int) (string, bool) {
	if max <= 0 || len(s) <= max {
		return s, false
	}
	cut := max
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut], true
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
