package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/tjfontaine/robin-backend/internal/domain"
)

// Composite tools issue their writes sequentially with no rollback. When a
// later step fails after an earlier one succeeded, the result is an error
// with partial=true naming the failed and completed steps, and the earlier
// write stays visible.

func (tb *toolbox) createFromTemplate(ctx context.Context, s *Session, args Args) Result {
	if r := requireChat(s); r != nil {
		return r
	}
	artifactID := args.String("artifact_id")
	if artifactID == "" {
		return failure("artifact_id is required")
	}
	path := args.String("path")
	if path == "" {
		return failure("path is required")
	}

	a, err := tb.Store.GetArtifact(ctx, artifactID)
	if err != nil || a.ChatID != s.ChatID {
		return Result{"status": statusError, "message": "Artifact not found for this chat", "error_type": string(domain.ErrorTypeNotFound)}
	}
	var data struct {
		Template string `json:"template"`
	}
	if err := json.Unmarshal(a.Data, &data); err != nil || data.Template == "" {
		return failure("Artifact does not contain a 'template' string")
	}

	content := applySubstitutions(data.Template, args.Map("substitutions"))
	r := tb.createCanvas(ctx, s, path, content, domain.CanvasMetadata{Description: "from template " + a.Title, CanvasReady: true})
	if r.OK() {
		r["artifact_id"] = artifactID
	}
	return r
}

// applySubstitutions replaces {{key}} with each value, in key order.
func applySubstitutions(template string, subs map[string]any) string {
	keys := make([]string, 0, len(subs))
	for k := range subs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		template = strings.ReplaceAll(template, "{{"+k+"}}", Args(subs).Raw(k))
	}
	return template
}

func (tb *toolbox) implementFeature(ctx context.Context, s *Session, args Args) Result {
	if r := requireChat(s); r != nil {
		return r
	}
	artifactID := args.String("artifact_id")
	taskID := args.String("task_id")
	path := args.String("path")
	if artifactID == "" || taskID == "" || path == "" {
		return failure("artifact_id, task_id and path are required")
	}

	edit := tb.updateCanvas(ctx, s, path, args.Raw("new_content"), false)
	if !edit.OK() {
		edit["failed_step"] = "canvas_update"
		edit["completed_steps"] = []string{}
		return edit
	}

	todo, marked, err := tb.checkTodo(ctx, s, artifactID, []string{taskID})
	if err != nil {
		r := failureFrom(fmt.Sprintf("%s was updated but the todo could not be checked", path), err)
		r["partial"] = true
		r["failed_step"] = "todo_check"
		r["completed_steps"] = []string{"canvas_update"}
		r["edit"] = edit
		return r
	}

	return success(map[string]any{
		"path":            path,
		"artifact_id":     artifactID,
		"task_id":         taskID,
		"version_number":  edit["version_number"],
		"todo":            todo,
		"marked":          marked,
		"completed_steps": []string{"canvas_update", "todo_check"},
	})
}
