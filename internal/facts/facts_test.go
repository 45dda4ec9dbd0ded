package facts

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/tjfontaine/robin-backend/internal/llm/llmtest"
)

func TestClampCount(t *testing.T) {
	tests := map[int]int{0: 8, -3: 8, 1: 1, 12: 12, 20: 20, 50: 20}
	for in, want := range tests {
		if got := ClampCount(in); got != want {
			t.Errorf("ClampCount(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"json", `["a", "b", " "]`, []string{"a", "b"}},
		{"fenced json", "```json\n[\"a\",\"b\"]\n```", []string{"a", "b"}},
		{"bullets", "- one\n* two\n3. three\n• four", []string{"one", "two", "three", "four"}},
		{"empty", "  ", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Parse(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Parse() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestGenerator_Generate(t *testing.T) {
	t.Run("no model", func(t *testing.T) {
		got := NewGenerator(nil, "", nil).Generate(context.Background(), 3)
		if got.Source != SourceFallback || len(got.Facts) != 3 {
			t.Fatalf("Generate() = %+v", got)
		}
	})

	t.Run("model facts truncated to n", func(t *testing.T) {
		model := llmtest.New(llmtest.Step{Response: llmtest.Text(`["a","b","c"]`)})
		got := NewGenerator(model, "gemini-2.5-flash", nil).Generate(context.Background(), 2)
		if got.Source != SourceModel || !reflect.DeepEqual(got.Facts, []string{"a", "b"}) {
			t.Fatalf("Generate() = %+v", got)
		}
		if reqs := model.Requests(); len(reqs) != 1 || reqs[0].Model != "gemini-2.5-flash" {
			t.Fatalf("requests = %+v", reqs)
		}
	})

	t.Run("model error", func(t *testing.T) {
		model := llmtest.New(llmtest.Step{Err: errors.New("quota")})
		got := NewGenerator(model, "m", nil).Generate(context.Background(), 0)
		if got.Source != SourceErrorFallback || got.Error != "quota" || len(got.Facts) != DefaultCount {
			t.Fatalf("Generate() = %+v", got)
		}
	})

	t.Run("empty answer", func(t *testing.T) {
		model := llmtest.New(llmtest.Step{Response: llmtest.Text("")})
		got := NewGenerator(model, "m", nil).Generate(context.Background(), 20)
		if got.Source != SourceFallback || len(got.Facts) != len(fallback) {
			t.Fatalf("Generate() = %+v", got)
		}
	})
}
