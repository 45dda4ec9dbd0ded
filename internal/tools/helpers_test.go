package tools

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tjfontaine/robin-backend/internal/attachments"
	"github.com/tjfontaine/robin-backend/internal/blob/memblob"
	"github.com/tjfontaine/robin-backend/internal/domain"
	"github.com/tjfontaine/robin-backend/internal/llm/llmtest"
	"github.com/tjfontaine/robin-backend/internal/storage/memory"
)

// offline fails every outbound request so fetches fall through to storage.
type offline struct{}

func (offline) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, errors.New("network disabled in tests")
}

type fixture struct {
	exec     *Executor
	store    *memory.Store
	blobs    *memblob.Store
	model    *llmtest.Script
	resolver *attachments.Resolver
}

func newFixture(t *testing.T, steps ...llmtest.Step) *fixture {
	t.Helper()
	store := memory.New()
	blobs := memblob.New()
	model := llmtest.New(steps...)
	resolver := attachments.NewResolver(blobs, attachments.Config{}, nil)
	fetcher := attachments.NewFetcher(&http.Client{Transport: offline{}}, blobs, nil)

	exec, err := NewExecutor(Deps{
		Store:    store,
		Blob:     blobs,
		Resolver: resolver,
		Fetcher:  fetcher,
		LLM:      model,
	}, Config{FilePollInterval: time.Millisecond, FilePollTimeout: time.Second})
	require.NoError(t, err)
	return &fixture{exec: exec, store: store, blobs: blobs, model: model, resolver: resolver}
}

func (f *fixture) call(s *Session, name string, args map[string]any) Result {
	return f.exec.Execute(context.Background(), s, domain.FunctionCall{Name: name, Args: args})
}

func (f *fixture) seedFile(t *testing.T, projectID, path, content string) {
	t.Helper()
	require.NoError(t, f.store.CreateFile(context.Background(), &domain.ProjectFile{ProjectID: projectID, Path: path, Content: content}))
}

func (f *fixture) seedChat(t *testing.T) string {
	t.Helper()
	c := &domain.Chat{UserID: "user-1", Title: "test"}
	require.NoError(t, f.store.CreateChat(context.Background(), c))
	return c.ID
}
