package tokens

import (
	"testing"

	"github.com/tjfontaine/robin-backend/internal/domain"
)

func TestEstimator_CountText(t *testing.T) {
	e := NewEstimator()

	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty", "", 0},
		{"single char", "a", 1},
		{"sixteen chars", "0123456789abcdef", 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := e.CountText("any", tt.text); got != tt.want {
				t.Errorf("CountText(%q) = %d, want %d", tt.text, got, tt.want)
			}
		})
	}
}

func TestModelMatcher(t *testing.T) {
	m := NewModelMatcher([]string{"gemini-"}, []string{"exact"})

	tests := []struct {
		model string
		want  bool
	}{
		{"gemini-2.5-flash", true},
		{"Gemini-2.5-Pro", true},
		{"exact", true},
		{"exactly", false},
		{"claude-3", false},
	}
	for _, tt := range tests {
		if got := m.Matches(tt.model); got != tt.want {
			t.Errorf("Matches(%q) = %v, want %v", tt.model, got, tt.want)
		}
	}
}

func TestRegistry_For(t *testing.T) {
	tk := NewTiktokenCounter()
	r := NewRegistry(tk)

	if got := r.For("gemini-2.5-flash"); got != Counter(tk) {
		t.Errorf("For(gemini) = %T, want *TiktokenCounter", got)
	}
	if _, ok := r.For("some-local-model").(*Estimator); !ok {
		t.Errorf("For(unknown) = %T, want *Estimator", r.For("some-local-model"))
	}
}

func TestRegistry_CountTurns(t *testing.T) {
	r := NewRegistry()

	plain := []domain.Turn{domain.TextTurn(domain.RoleUser, "0123456789abcdef")}
	if got, want := r.CountTurns("m", plain), tokensPerTurn+4; got != want {
		t.Errorf("CountTurns(plain) = %d, want %d", got, want)
	}

	withCall := []domain.Turn{{
		Role: domain.RoleModel,
		Parts: []domain.Part{{
			FunctionCall: &domain.FunctionCall{Name: "read_file", Args: map[string]any{"path": "src/App.tsx"}},
		}},
	}}
	if got := r.CountTurns("m", withCall); got <= tokensPerTurn+tokensPerCall {
		t.Errorf("CountTurns(call) = %d, want more than framing overhead", got)
	}

	withImage := []domain.Turn{{
		Role:  domain.RoleUser,
		Parts: []domain.Part{{InlineData: &domain.Blob{MIMEType: "image/png", Data: []byte{1}}}},
	}}
	if got, want := r.CountTurns("m", withImage), tokensPerTurn+tokensPerBlob; got != want {
		t.Errorf("CountTurns(image) = %d, want %d", got, want)
	}
}

func TestTiktokenCounter_CountText(t *testing.T) {
	c := NewTiktokenCounter()

	if got := c.CountText("gemini-2.5-flash", ""); got != 0 {
		t.Errorf("CountText(empty) = %d, want 0", got)
	}
	got := c.CountText("gemini-2.5-flash", "hello world")
	if got < 1 || got > 4 {
		t.Errorf("CountText(hello world) = %d, want 1..4", got)
	}
}
