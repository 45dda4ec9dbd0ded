package agent

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tjfontaine/robin-backend/internal/attachments"
	"github.com/tjfontaine/robin-backend/internal/domain"
	"github.com/tjfontaine/robin-backend/internal/storage/memory"
	"github.com/tjfontaine/robin-backend/internal/tools"
)

func TestContextBuilder_BuildMode(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	p := &domain.Project{Name: "Todo App", Description: "A list", Stack: []string{"React", "Vite"}}
	require.NoError(t, store.CreateProject(ctx, p))
	require.NoError(t, store.CreateFile(ctx, &domain.ProjectFile{ProjectID: p.ID, Path: "src/App.tsx"}))

	got := NewContextBuilder(store, nil).System(ctx, ModeBuild, tools.NewSession(p.ID))

	assert.Contains(t, got, "You are Robin, an expert AI software development assistant")
	assert.Contains(t, got, "Current project: Todo App.\nProject description: A list.\nStack:\n- React\n- Vite")
	assert.Contains(t, got, "Project files (1):\n- src/App.tsx")
	assert.NotContains(t, got, "Attached files")
}

func TestContextBuilder_AskModeDegradesWithoutProject(t *testing.T) {
	got := NewContextBuilder(memory.New(), nil).System(context.Background(), ModeAsk, tools.NewSession("missing"), "Attached files (1):\n- a.ts (3 lines)")

	assert.Contains(t, got, "acting in Ask mode")
	assert.Contains(t, got, "You must NOT modify files")
	assert.Contains(t, got, "Current project: Project.\nProject description: No description provided.")
	assert.Contains(t, got, "Project files (0):")
	assert.Contains(t, got, "- a.ts (3 lines)")
}

func TestContextBuilder_PlaygroundListsCanvasArtifactsAndAttachments(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	chat := &domain.Chat{UserID: "u1"}
	require.NoError(t, store.CreateChat(ctx, chat))
	file := &domain.CanvasFile{ChatID: chat.ID, Path: "index.html"}
	require.NoError(t, store.CreateCanvasFile(ctx, file))
	art := &domain.Artifact{ChatID: chat.ID, Type: domain.ArtifactProjectCard, Data: json.RawMessage(`{}`)}
	require.NoError(t, store.CreateArtifact(ctx, art))

	s := tools.NewCanvasSession(chat.ID, "u1")
	s.SetAttachments([]attachments.Attachment{{FileName: "logo.png", MIMEType: "image/png", URL: "https://cdn/logo.png"}})

	got := NewContextBuilder(store, nil).System(ctx, ModePlayground, s)

	assert.Contains(t, got, "You are Robin in Playground mode.")
	assert.Contains(t, got, "- "+file.ID+": index.html (v1)")
	assert.Contains(t, got, "- "+art.ID+": project_card_preview [project_card_preview]")
	assert.Contains(t, got, "- logo.png (image/png) -> https://cdn/logo.png")
	assert.Contains(t, got, "Never fabricate")
}
