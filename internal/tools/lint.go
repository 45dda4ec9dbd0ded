package tools

import (
	"context"
	"fmt"
)

const (
	defaultMaxIssues = 50
	maxIssuesCap     = 200
)

// LintIssue is one heuristic finding.
type LintIssue struct {
	Line    int    `json:"line"`
	Column  int    `json:"column"`
	Message string `json:"message"`
}

var closerFor = map[rune]rune{'(': ')', '[': ']', '{': '}'}
var openerFor = map[rune]rune{')': '(', ']': '[', '}': '{'}

type openDelim struct {
	r         rune
	line, col int
}

// Lint reports unbalanced brackets and unterminated string literals. Line
// and block comments are skipped; single and double quoted strings must close
// on their line, template literals may span lines.
func Lint(content string, maxIssues int) (issues []LintIssue, truncated bool) {
	add := func(line, col int, format string, args ...any) {
		if len(issues) >= maxIssues {
			truncated = true
			return
		}
		issues = append(issues, LintIssue{Line: line, Column: col, Message: fmt.Sprintf(format, args...)})
	}

	var stack []openDelim
	var quote rune
	var quoteLine, quoteCol int
	inLineComment, inBlockComment, escaped := false, false, false
	line, col := 1, 0
	runes := []rune(content)

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		col++
		var next rune
		if i+1 < len(runes) {
			next = runes[i+1]
		}

		if r == '\n' {
			if quote == '\'' || quote == '"' {
				add(quoteLine, quoteCol, "unterminated %c string", quote)
				quote = 0
			}
			inLineComment, escaped = false, false
			line++
			col = 0
			continue
		}

		switch {
		case inLineComment:
			continue
		case inBlockComment:
			if r == '*' && next == '/' {
				inBlockComment = false
				i++
				col++
			}
			continue
		case quote != 0:
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == quote:
				quote = 0
			}
			continue
		}

		switch r {
		case '/':
			if next == '/' {
				inLineComment = true
			} else if next == '*' {
				inBlockComment = true
				i++
				col++
			}
		case '\'', '"', '`':
			quote, quoteLine, quoteCol = r, line, col
		case '(', '[', '{':
			stack = append(stack, openDelim{r: r, line: line, col: col})
		case ')', ']', '}':
			if len(stack) == 0 {
				add(line, col, "unmatched closing %c", r)
				continue
			}
			top := stack[len(stack)-1]
			if top.r != openerFor[r] {
				add(line, col, "mismatched %c: expected %c to close %c from line %d", r, closerFor[top.r], top.r, top.line)
			}
			stack = stack[:len(stack)-1]
		}
	}

	if quote != 0 {
		add(quoteLine, quoteCol, "unterminated %c string", quote)
	}
	if inBlockComment {
		add(line, col, "unterminated block comment")
	}
	for i := len(stack) - 1; i >= 0; i-- {
		add(stack[i].line, stack[i].col, "unclosed %c", stack[i].r)
	}
	return issues, truncated
}

func (tb *toolbox) lintCheck(ctx context.Context, s *Session, args Args) Result {
	path, content, r := tb.loadSource(ctx, s, args)
	if r != nil {
		return r
	}
	maxIssues := clamp(args.Int("max_issues", defaultMaxIssues), 1, maxIssuesCap)
	issues, truncated := Lint(content, maxIssues)
	if issues == nil {
		issues = []LintIssue{}
	}
	return success(map[string]any{
		"path":        path,
		"issues":      issues,
		"issue_count": len(issues),
		"truncated":   truncated,
	})
}

// loadSource returns inline content when given, otherwise the stored file at
// path from the session's scope.
func (tb *toolbox) loadSource(ctx context.Context, s *Session, args Args) (string, string, Result) {
	path := args.String("path")
	if args.Has("content") {
		return path, args.Raw("content"), nil
	}
	if path == "" {
		return "", "", failure("path or content is required")
	}
	switch s.Scope {
	case ScopeCanvas:
		if r := requireChat(s); r != nil {
			return "", "", r
		}
		f, err := tb.Store.GetCanvasFile(ctx, s.ChatID, path)
		if err != nil {
			return "", "", failureFrom("read "+path, err)
		}
		return path, f.Content, nil
	default:
		if r := tb.requireProject(s); r != nil {
			return "", "", r
		}
		f, err := tb.Store.GetFile(ctx, s.ProjectID, path)
		if err != nil {
			return "", "", failureFrom("read "+path, err)
		}
		return path, f.Content, nil
	}
}
