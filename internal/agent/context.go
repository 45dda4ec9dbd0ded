package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tjfontaine/robin-backend/internal/attachments"
	"github.com/tjfontaine/robin-backend/internal/storage"
	"github.com/tjfontaine/robin-backend/internal/tools"
)

// artifactManifestLimit is how many recent artifacts the playground prompt lists.
const artifactManifestLimit = 20

const (
	buildPersona = "You are Robin, an expert AI software development assistant working inside a multi-pane IDE. Always identify yourself as Robin."
	askPersona   = "You are Robin, acting in Ask mode. Provide analysis, suggestions, and code review. You must NOT modify files or suggest that you changed files. You only read code via the read_file and search tools and reason about it."

	playgroundPersona = `You are Robin in Playground mode.
- Prefer web-first solutions (React or HTML/CSS/JS) unless the user specifically requests another stack or web is unsuitable.
- Use tools when needed instead of fabricating results.
- When creating simple web features that can run in a single file, prefer making self-contained components suitable for Canvas preview.
- A chat has a single canvas file. Update it with canvas_update_file_content instead of creating another.
- Do not dump large JSON inline unless asked. Summarize and store structured outputs as artifacts when appropriate.`

	styleNote = `NOTE:
Do not start a response with a prefix like "Robin:", "AI:" or "Assistant:". If you introduce yourself, do it only at the start of the conversation.`

	attachmentRule = "Use attachment URLs exactly as listed when calling tools. Never fabricate, shorten or retype a URL. When exactly one file is attached you may omit the reference."
)

// ContextBuilder assembles the system instruction for a model call.
type ContextBuilder struct {
	store  storage.Store
	logger *slog.Logger
}

func NewContextBuilder(store storage.Store, logger *slog.Logger) *ContextBuilder {
	if logger == nil {
		logger = slog.Default()
	}
	return &ContextBuilder{store: store, logger: logger}
}

// System renders the instruction for mode. Store failures degrade to
// placeholders and are logged; notes are appended verbatim.
func (b *ContextBuilder) System(ctx context.Context, mode Mode, s *tools.Session, notes ...string) string {
	var sections []string
	switch mode {
	case ModeAsk:
		sections = append(sections, askPersona, b.project(ctx, s.ProjectID))
	case ModePlayground:
		sections = append(sections, playgroundPersona, b.canvas(ctx, s.ChatID), b.artifacts(ctx, s.ChatID))
	default:
		sections = append(sections, buildPersona, b.project(ctx, s.ProjectID),
			"Assist the user with requests in the context of the project.", styleNote)
	}
	if m := attachments.Manifest(s.Attachments()); m != "" {
		sections = append(sections, m+"\n"+attachmentRule)
	}
	sections = append(sections, notes...)

	var out []string
	for _, sec := range sections {
		if sec = strings.TrimSpace(sec); sec != "" {
			out = append(out, sec)
		}
	}
	return strings.Join(out, "\n\n")
}

func (b *ContextBuilder) project(ctx context.Context, projectID string) string {
	name, desc := "Project", "No description provided"
	var stack []string
	if p, err := b.store.GetProject(ctx, projectID); err == nil {
		if p.Name != "" {
			name = p.Name
		}
		if p.Description != "" {
			desc = p.Description
		}
		stack = p.Stack
	} else {
		b.logger.Warn("project lookup failed", slog.String("project_id", projectID), slog.String("error", err.Error()))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Current project: %s.\nProject description: %s.", name, desc)
	if len(stack) > 0 {
		sb.WriteString("\nStack:")
		for _, s := range stack {
			sb.WriteString("\n- " + s)
		}
	}

	files, err := b.store.ListFiles(ctx, projectID)
	if err != nil {
		b.logger.Warn("file listing failed", slog.String("project_id", projectID), slog.String("error", err.Error()))
	}
	fmt.Fprintf(&sb, "\n\nProject files (%d):", len(files))
	for _, f := range files {
		sb.WriteString("\n- " + f.Path)
	}
	return sb.String()
}

func (b *ContextBuilder) canvas(ctx context.Context, chatID string) string {
	files, err := b.store.ListCanvasFiles(ctx, chatID)
	if err != nil {
		b.logger.Warn("canvas listing failed", slog.String("chat_id", chatID), slog.String("error", err.Error()))
		return ""
	}
	if len(files) == 0 {
		return "Canvas: empty. Create the canvas file with canvas_create_file when the user wants something runnable."
	}
	var sb strings.Builder
	sb.WriteString("Canvas file (id: path, version):")
	for _, f := range files {
		fmt.Fprintf(&sb, "\n- %s: %s (v%d)", f.ID, f.Path, f.VersionNumber)
	}
	return sb.String()
}

func (b *ContextBuilder) artifacts(ctx context.Context, chatID string) string {
	arts, err := b.store.ListArtifacts(ctx, chatID, artifactManifestLimit)
	if err != nil {
		b.logger.Warn("artifact listing failed", slog.String("chat_id", chatID), slog.String("error", err.Error()))
		return ""
	}
	if len(arts) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("Available artifacts (id: title [type]):")
	for _, a := range arts {
		title := a.Title
		if title == "" {
			title = a.Type
		}
		fmt.Fprintf(&sb, "\n- %s: %s [%s]", a.ID, title, a.Type)
	}
	return sb.String()
}
