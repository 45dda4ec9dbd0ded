// Package tokens counts tokens in conversation turns so history can be
// trimmed to a budget before it is sent to a model.
package tokens

import (
	"encoding/json"
	"strings"

	"github.com/tjfontaine/robin-backend/internal/domain"
)

// Counter counts tokens in plain text for the models it supports.
type Counter interface {
	CountText(model, text string) int
	SupportsModel(model string) bool
}

// Per-turn and per-part overheads approximating role and structure framing.
const (
	tokensPerTurn = 4
	tokensPerCall = 3
	tokensPerBlob = 258
)

// Registry picks a counter by model name.
type Registry struct {
	counters []Counter
	fallback Counter
}

// NewRegistry creates a registry that falls back to character estimation.
func NewRegistry(counters ...Counter) *Registry {
	return &Registry{counters: counters, fallback: NewEstimator()}
}

// Register adds a counter. Earlier registrations win.
func (r *Registry) Register(c Counter) {
	r.counters = append(r.counters, c)
}

// For returns the counter for model.
func (r *Registry) For(model string) Counter {
	for _, c := range r.counters {
		if c.SupportsModel(model) {
			return c
		}
	}
	return r.fallback
}

// CountTurns counts every turn, including function call arguments and
// responses serialized as JSON. Inline and file data count as a fixed cost.
func (r *Registry) CountTurns(model string, turns []domain.Turn) int {
	c := r.For(model)
	total := 0
	for _, t := range turns {
		total += r.countTurn(c, model, t)
	}
	return total
}

// CountTurn counts a single turn.
func (r *Registry) CountTurn(model string, t domain.Turn) int {
	return r.countTurn(r.For(model), model, t)
}

func (r *Registry) countTurn(c Counter, model string, t domain.Turn) int {
	total := tokensPerTurn
	for _, p := range t.Parts {
		total += c.CountText(model, p.Text)
		if p.InlineData != nil || p.FileData != nil {
			total += tokensPerBlob
		}
		if p.FunctionCall != nil {
			total += c.CountText(model, p.FunctionCall.Name) + tokensPerCall
			total += countJSON(c, model, p.FunctionCall.Args)
		}
		if p.FunctionResponse != nil {
			total += c.CountText(model, p.FunctionResponse.Name) + tokensPerCall
			total += countJSON(c, model, p.FunctionResponse.Response)
		}
	}
	return total
}

func countJSON(c Counter, model string, v map[string]any) int {
	if len(v) == 0 {
		return 0
	}
	b, err := json.Marshal(v)
	if err != nil {
		return 0
	}
	return c.CountText(model, string(b))
}

// Estimator approximates tokens from character length. It supports every model.
type Estimator struct {
	CharsPerToken float64
}

// NewEstimator creates an estimator with four characters per token.
func NewEstimator() *Estimator {
	return &Estimator{CharsPerToken: 4.0}
}

func (e *Estimator) CountText(_, text string) int {
	if text == "" {
		return 0
	}
	n := int(float64(len(text))/e.CharsPerToken + 0.5)
	if n == 0 {
		n = 1
	}
	return n
}

func (e *Estimator) SupportsModel(string) bool { return true }

// ModelMatcher matches model names by prefix or exact name.
type ModelMatcher struct {
	prefixes []string
	exact    []string
}

func NewModelMatcher(prefixes, exact []string) *ModelMatcher {
	return &ModelMatcher{prefixes: prefixes, exact: exact}
}

func (m *ModelMatcher) Matches(model string) bool {
	model = strings.ToLower(model)
	for _, e := range m.exact {
		if model == e {
			return true
		}
	}
	for _, p := range m.prefixes {
		if strings.HasPrefix(model, p) {
			return true
		}
	}
	return false
}
