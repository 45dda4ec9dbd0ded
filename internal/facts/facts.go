// Package facts produces short programming facts for the IDE's loading
// screen. It never fails: any problem degrades to a fixed list.
package facts

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/tjfontaine/robin-backend/internal/domain"
	"github.com/tjfontaine/robin-backend/internal/llm"
)

const (
	DefaultCount = 8
	MaxCount     = 20
)

// Sources reported with a batch.
const (
	SourceModel         = "gemini"
	SourceFallback      = "fallback"
	SourceErrorFallback = "error-fallback"
)

var fallback = []string{
	"The first computer bug was a real moth found in 1947.",
	"Python is named after Monty Python, not the snake.",
	"CSS stands for Cascading Style Sheets, so order matters!",
	"JavaScript was created in just 10 days in 1995.",
	"In Git, HEAD is just a pointer to your current branch.",
	"SQL is declarative: you say what you want, not how to get it.",
	"HTTP/2 multiplexes multiple streams over one connection.",
	"Rust's borrow checker prevents data races at compile time.",
}

// Batch is the response body of the facts endpoint.
type Batch struct {
	Facts  []string `json:"facts"`
	Source string   `json:"source"`
	Error  string   `json:"error,omitempty"`
}

type Generator struct {
	model     llm.Model
	modelName string
	logger    *slog.Logger
}

// NewGenerator returns a generator. A nil model always serves the fallback list.
func NewGenerator(model llm.Model, modelName string, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{model: model, modelName: modelName, logger: logger}
}

// ClampCount bounds n to 1..MaxCount; zero or less selects DefaultCount.
func ClampCount(n int) int {
	if n <= 0 {
		return DefaultCount
	}
	return min(n, MaxCount)
}

// Generate returns n facts.
func (g *Generator) Generate(ctx context.Context, n int) Batch {
	n = ClampCount(n)
	if g.model == nil {
		return Batch{Facts: fallbackFacts(n), Source: SourceFallback}
	}

	resp, err := g.model.Generate(ctx, &llm.Request{
		Model: g.modelName,
		Contents: []domain.Turn{domain.TextTurn(domain.RoleUser, fmt.Sprintf(
			"Return exactly %d short one-line programming facts as a JSON array of strings. No prose, no markdown, just the JSON array.", n))},
	})
	if err != nil {
		g.logger.Warn("fact generation failed", slog.String("model", g.modelName), slog.String("error", err.Error()))
		return Batch{Facts: fallbackFacts(n), Source: SourceErrorFallback, Error: err.Error()}
	}

	facts := Parse(resp.Text())
	if len(facts) == 0 {
		return Batch{Facts: fallbackFacts(n), Source: SourceFallback}
	}
	return Batch{Facts: facts[:min(n, len(facts))], Source: SourceModel}
}

var (
	fence    = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")
	itemSep  = regexp.MustCompile(`\r?\n|•`)
	listMark = regexp.MustCompile(`^(?:[-*]|\d+[.)])\s*`)
)

// Parse reads a JSON array of strings, tolerating a markdown fence. Text
// that is not an array is split into one fact per line or bullet.
func Parse(text string) []string {
	text = strings.TrimSpace(text)
	if m := fence.FindStringSubmatch(text); m != nil {
		text = m[1]
	}

	var raw []any
	if err := json.Unmarshal([]byte(text), &raw); err == nil {
		var out []string
		for _, v := range raw {
			if s := strings.TrimSpace(fmt.Sprint(v)); s != "" {
				out = append(out, s)
			}
		}
		return out
	}

	var out []string
	for _, line := range itemSep.Split(text, -1) {
		line = strings.TrimSpace(listMark.ReplaceAllString(strings.TrimSpace(line), ""))
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

func fallbackFacts(n int) []string {
	return append([]string(nil), fallback[:min(n, len(fallback))]...)
}
