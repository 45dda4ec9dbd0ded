package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tjfontaine/robin-backend/internal/domain"
)

func TestFileCRUD_RecordsEdits(t *testing.T) {
	f := newFixture(t)
	s := NewSession("p1")
	ctx := context.Background()

	require.True(t, f.call(s, CreateFile, map[string]any{"path": "main.ts", "content": "v1"}).OK())
	require.True(t, f.call(s, UpdateFileContent, map[string]any{"path": "main.ts", "new_content": "v2"}).OK())
	require.True(t, f.call(s, ReadFile, map[string]any{"path": "main.ts"}).OK())
	require.True(t, f.call(s, DeleteFile, map[string]any{"path": "main.ts"}).OK())

	assert.Equal(t, []domain.FileEdit{
		{Operation: domain.EditCreate, Path: "main.ts", NewContent: "v1"},
		{Operation: domain.EditUpdate, Path: "main.ts", OldContent: "v1", NewContent: "v2"},
		{Operation: domain.EditRead, Path: "main.ts", OldContent: "v2", NewContent: "v2"},
		{Operation: domain.EditDelete, Path: "main.ts", OldContent: "v2"},
	}, s.Edits())

	_, err := f.store.GetFile(ctx, "p1", "main.ts")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdateAndDelete_MissingPathIsError(t *testing.T) {
	f := newFixture(t)
	s := NewSession("p1")

	for _, name := range []string{UpdateFileContent, DeleteFile} {
		got := f.call(s, name, map[string]any{"path": "ghost.ts", "new_content": "x"})
		assert.False(t, got.OK(), name)
		assert.Equal(t, "not_found", got["error_type"], name)
	}
	assert.Empty(t, s.Edits())
}

func TestCreateFile_DuplicateIsError(t *testing.T) {
	f := newFixture(t)
	f.seedFile(t, "p1", "a.ts", "old")
	s := NewSession("p1")

	got := f.call(s, CreateFile, map[string]any{"path": "a.ts", "content": "new"})

	assert.False(t, got.OK())
	assert.Contains(t, got.Message(), "already exists")
	file, err := f.store.GetFile(context.Background(), "p1", "a.ts")
	require.NoError(t, err)
	assert.Equal(t, "old", file.Content)
}

func TestSearch_CaseInsensitive(t *testing.T) {
	f := newFixture(t)
	f.seedFile(t, "p1", "a.txt", "Hello\nworld")
	f.seedFile(t, "p1", "b.txt", "nothing here")

	got := f.call(NewSession("p1"), Search, map[string]any{"query": "hello"})

	require.True(t, got.OK())
	assert.Equal(t, []FileMatches{{Path: "a.txt", Matches: []LineMatch{{Line: 1, Text: "Hello"}}}}, got["results"])
}

func TestSearch_EmptyQueryIsError(t *testing.T) {
	f := newFixture(t)

	got := f.call(NewSession("p1"), Search, map[string]any{"query": "   "})

	assert.False(t, got.OK())
	assert.Equal(t, "query must not be empty", got.Message())
}

func TestSearch_CapsMatchesPerFile(t *testing.T) {
	f := newFixture(t)
	f.seedFile(t, "p1", "big.txt", "x\nx\nx\nx\nx")

	got := f.call(NewSession("p1"), Search, map[string]any{"query": "x", "max_results_per_file": 2})

	results := got["results"].([]FileMatches)
	require.Len(t, results, 1)
	assert.Len(t, results[0].Matches, 2)

	got = f.call(NewSession("p1"), Search, map[string]any{"query": "x", "max_results_per_file": 0})
	assert.Len(t, got["results"].([]FileMatches)[0].Matches, 1)
}

func TestTruncate_KeepsRunesWhole(t *testing.T) {
	got, cut := truncate("héllo", 2)
	assert.True(t, cut)
	assert.Equal(t, "h", got)

	got, cut = truncate("abc", 0)
	assert.False(t, cut)
	assert.Equal(t, "abc", got)
}
