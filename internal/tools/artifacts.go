package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/tjfontaine/robin-backend/internal/domain"
)

const maxCardItems = 12

// ProjectCard is the payload of a project_card_preview artifact.
type ProjectCard struct {
	Name                 string   `json:"name"`
	Summary              string   `json:"summary"`
	Stack                []string `json:"stack"`
	KeyFeatures          []string `json:"key_features"`
	CanImplementInCanvas bool     `json:"can_implement_in_canvas"`
}

// TodoList is the payload of a todo_list artifact.
type TodoList struct {
	Title string     `json:"title"`
	Tasks []TodoTask `json:"tasks"`
}

type TodoTask struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Done  bool   `json:"done"`
	Notes string `json:"notes,omitempty"`
}

func (tb *toolbox) artifactRead(ctx context.Context, s *Session, args Args) Result {
	if r := requireChat(s); r != nil {
		return r
	}
	id := args.String("id")
	if id == "" {
		return failure("id is required")
	}
	a, err := tb.Store.GetArtifact(ctx, id)
	if err != nil || a.ChatID != s.ChatID {
		return Result{"status": statusError, "message": "Not found for this chat", "error_type": string(domain.ErrorTypeNotFound)}
	}
	var data any
	if len(a.Data) > 0 {
		if err := json.Unmarshal(a.Data, &data); err != nil {
			return failureFrom("decode artifact "+id, err)
		}
	}
	return success(map[string]any{
		"id":            a.ID,
		"artifact_type": a.Type,
		"title":         a.Title,
		"data":          data,
		"last_modified": a.LastModified,
	})
}

func (tb *toolbox) projectCard(ctx context.Context, s *Session, args Args) Result {
	if r := requireChat(s); r != nil {
		return r
	}
	card := ProjectCard{
		Name:                 args.String("name"),
		Summary:              args.String("summary"),
		Stack:                capItems(args.Strings("stack")),
		KeyFeatures:          capItems(args.Strings("key_features")),
		CanImplementInCanvas: args.Bool("can_implement_in_canvas"),
	}
	id, err := tb.saveArtifact(ctx, s, domain.ArtifactProjectCard, card.Name, card)
	if err != nil {
		r := failureFrom("save project card", err)
		r["card"] = card
		return r
	}
	return success(map[string]any{"card": card, "artifact_id": id})
}

func capItems(items []string) []string {
	if len(items) > maxCardItems {
		items = items[:maxCardItems]
	}
	return items
}

func (tb *toolbox) todoCreate(ctx context.Context, s *Session, args Args) Result {
	if r := requireChat(s); r != nil {
		return r
	}
	todo := TodoList{Title: args.StringOr("title", "Todo"), Tasks: []TodoTask{}}
	for i, t := range args.Objects("tasks") {
		todo.Tasks = append(todo.Tasks, TodoTask{
			ID:    t.StringOr("id", fmt.Sprint(i+1)),
			Title: t.StringOr("title", fmt.Sprintf("Task %d", i+1)),
			Done:  t.Bool("done"),
			Notes: t.Raw("notes"),
		})
	}
	id, err := tb.saveArtifact(ctx, s, domain.ArtifactTodoList, todo.Title, todo)
	if err != nil {
		r := failureFrom("save todo list", err)
		r["todo"] = todo
		return r
	}
	return success(map[string]any{"todo": todo, "artifact_id": id})
}

func (tb *toolbox) todoCheck(ctx context.Context, s *Session, args Args) Result {
	if r := requireChat(s); r != nil {
		return r
	}
	artifactID := args.String("artifact_id")
	if artifactID == "" {
		return failure("artifact_id is required")
	}
	todo, marked, err := tb.checkTodo(ctx, s, artifactID, args.Strings("completed_task_ids"))
	if err != nil {
		return failureFrom("todo_list_check", err)
	}
	r := success(map[string]any{"todo": todo, "artifact_id": artifactID, "marked": marked})
	if len(marked) == 0 {
		r["message"] = "No matching task ids; nothing changed"
	}
	if c := args.String("context"); c != "" {
		r["notes"] = "Context considered: " + firstRunes(c, 200)
	}
	return r
}

// checkTodo marks ids done on a chat's todo list. A missing artifact, or one
// of another type or chat, is domain.ErrNotFound; ids that match no task are
// ignored and nothing is written when none match.
func (tb *toolbox) checkTodo(ctx context.Context, s *Session, artifactID string, ids []string) (TodoList, []string, error) {
	var todo TodoList
	a, err := tb.Store.GetArtifact(ctx, artifactID)
	if err != nil || a.ChatID != s.ChatID || a.Type != domain.ArtifactTodoList {
		return todo, nil, fmt.Errorf("artifact %s is not a todo_list for this chat: %w", artifactID, domain.ErrNotFound)
	}
	if err := json.Unmarshal(a.Data, &todo); err != nil {
		return todo, nil, fmt.Errorf("decode todo list %s: %w", artifactID, err)
	}

	marked := []string{}
	for i := range todo.Tasks {
		if slices.Contains(ids, todo.Tasks[i].ID) && !todo.Tasks[i].Done {
			todo.Tasks[i].Done = true
			marked = append(marked, todo.Tasks[i].ID)
		}
	}
	if len(marked) == 0 {
		return todo, marked, nil
	}

	data, err := json.Marshal(todo)
	if err != nil {
		return todo, nil, err
	}
	if err := tb.Store.UpdateArtifactData(ctx, artifactID, data); err != nil {
		return todo, nil, fmt.Errorf("update todo list %s: %w", artifactID, err)
	}
	s.TouchArtifact(artifactID)
	return todo, marked, nil
}

func (tb *toolbox) saveArtifact(ctx context.Context, s *Session, kind, title string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	a := &domain.Artifact{ChatID: s.ChatID, Type: kind, Title: title, Data: data}
	if err := tb.Store.CreateArtifact(ctx, a); err != nil {
		return "", err
	}
	s.TouchArtifact(a.ID)
	return a.ID, nil
}

func firstRunes(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		r = r[:n]
	}
	return string(r)
}
