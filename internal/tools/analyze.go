package tools

import (
	"context"
	"fmt"

	"github.com/tjfontaine/robin-backend/internal/domain"
	"github.com/tjfontaine/robin-backend/internal/llm"
)

const maxAnalyzeBytes = 60000

const reviewPrompt = `Review the following code. Point out bugs, risky patterns and concrete improvements, most important first. Be brief.`

const diagnosisPrompt = `Diagnose the issue described below in the following code. Identify the most likely root cause, point to the exact lines, and propose a minimal fix.`

func (tb *toolbox) analyzeCode(ctx context.Context, s *Session, args Args) Result {
	path, content, r := tb.loadSource(ctx, s, args)
	if r != nil {
		return r
	}
	content, truncated := truncate(content, maxAnalyzeBytes)

	model, prompt := tb.cfg.ReviewModel, reviewPrompt
	issue := args.String("issue")
	if issue != "" {
		model = tb.cfg.DiagnosisModel
		prompt = diagnosisPrompt + "\n\nIssue: " + issue
	}
	label := path
	if label == "" {
		label = "snippet"
	}
	text := fmt.Sprintf("%s\n\nFile: %s\n```\n%s\n```", prompt, label, content)

	resp, err := tb.generate(ctx, &llm.Request{
		Model:    model,
		Contents: []domain.Turn{domain.TextTurn(domain.RoleUser, text)},
	})
	if err != nil {
		return failureFrom("analyze_code", err)
	}
	return success(map[string]any{
		"path":      path,
		"model":     model,
		"analysis":  resp.Text(),
		"truncated": truncated,
	})
}
