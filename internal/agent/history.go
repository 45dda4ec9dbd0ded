package agent

import (
	"encoding/json"
	"slices"

	"github.com/tjfontaine/robin-backend/internal/attachments"
	"github.com/tjfontaine/robin-backend/internal/domain"
	"github.com/tjfontaine/robin-backend/internal/tokens"
)

// Seed returns history followed by the user prompt and, when there are
// attachments, a second user turn listing them.
func Seed(history []domain.Turn, prompt string, atts []attachments.Attachment) []domain.Turn {
	contents := slices.Clone(history)
	contents = append(contents, domain.TextTurn(domain.RoleUser, prompt))
	if m := attachments.Manifest(atts); m != "" {
		contents = append(contents, domain.TextTurn(domain.RoleUser, m))
	}
	return contents
}

// FromMessages converts stored chat rows, newest first, into chronological
// turns. Stored tool events are replayed as a "Previous tool activity" text
// part; thoughts are never replayed.
func FromMessages(rows []domain.ChatMessage) []domain.Turn {
	var turns []domain.Turn
	for i := len(rows) - 1; i >= 0; i-- {
		m := rows[i]
		role := domain.RoleModel
		if m.Sender == domain.SenderUser {
			role = domain.RoleUser
		}
		if m.Content != "" {
			turns = append(turns, domain.TextTurn(role, m.Content))
		}
		if len(m.ToolEvents) > 0 {
			summary, err := json.Marshal(map[string]any{"tool_results": m.ToolEvents})
			if err == nil {
				turns = append(turns, domain.TextTurn(role, "Previous tool activity:\n"+string(summary)))
			}
		}
	}
	return turns
}

// CleanHistory drops thought parts, turns with an unknown role and turns left
// empty, from client-supplied history.
func CleanHistory(turns []domain.Turn) []domain.Turn {
	out := make([]domain.Turn, 0, len(turns))
	for _, t := range turns {
		if t.Role != domain.RoleUser && t.Role != domain.RoleModel {
			continue
		}
		parts := slices.DeleteFunc(slices.Clone(t.Parts), func(p domain.Part) bool {
			return p.Thought || (p.Text == "" && p.InlineData == nil && p.FileData == nil && p.FunctionCall == nil && p.FunctionResponse == nil)
		})
		if len(parts) == 0 {
			continue
		}
		out = append(out, domain.Turn{Role: t.Role, Parts: parts})
	}
	return out
}

// Window trims history to a token budget.
type Window struct {
	Tokens *tokens.Registry
	// Budget is the token ceiling for history; zero or less disables trimming.
	Budget int
}

// Trim drops the oldest turns until the rest fits the budget. A trimmed
// result always starts with a plain user turn, so a call is never separated
// from its response.
func (w Window) Trim(model string, turns []domain.Turn) []domain.Turn {
	if w.Budget <= 0 || w.Tokens == nil {
		return turns
	}
	total := w.Tokens.CountTurns(model, turns)
	start := 0
	for start < len(turns) && total > w.Budget {
		total -= w.Tokens.CountTurn(model, turns[start])
		start++
	}
	if start == 0 {
		return turns
	}
	for start < len(turns) && !opensConversation(turns[start]) {
		start++
	}
	return turns[start:]
}

func opensConversation(t domain.Turn) bool {
	if t.Role != domain.RoleUser {
		return false
	}
	for _, p := range t.Parts {
		if p.FunctionResponse != nil {
			return false
		}
	}
	return true
}
