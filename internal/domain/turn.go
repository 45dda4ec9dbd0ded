package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Role is the author of a conversation turn. Reasoning traces are not a role;
// they are parts flagged with Thought.
type Role uint8

const (
	RoleUser Role = iota + 1
	RoleModel
)

func (r Role) String() string {
	switch r {
	case RoleUser:
		return "user"
	case RoleModel:
		return "model"
	default:
		return "unknown"
	}
}

// ParseRole accepts the wire names used by the IDE client and stored history.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "user":
		return RoleUser, nil
	case "model", "assistant", "ai":
		return RoleModel, nil
	default:
		return 0, fmt.Errorf("%w: unknown role %q", ErrInvalidRequest, s)
	}
}

func (r Role) MarshalJSON() ([]byte, error) {
	if r != RoleUser && r != RoleModel {
		return nil, fmt.Errorf("invalid role %d", r)
	}
	return json.Marshal(r.String())
}

func (r *Role) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseRole(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Turn is one entry of the conversation sent to the model.
type Turn struct {
	Role  Role   `json:"role"`
	Parts []Part `json:"parts"`
}

// Part is exactly one of text, inline data, file reference, function call or
// function response.
type Part struct {
	Text             string            `json:"text,omitempty"`
	Thought          bool              `json:"thought,omitempty"`
	InlineData       *Blob             `json:"inlineData,omitempty"`
	FileData         *FileData         `json:"fileData,omitempty"`
	FunctionCall     *FunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *FunctionResponse `json:"functionResponse,omitempty"`

	// Signature is an opaque provider token that must be echoed back with the part.
	Signature []byte `json:"thoughtSignature,omitempty"`
}

// Blob carries raw bytes; encoding/json renders Data as base64.
type Blob struct {
	MIMEType string `json:"mimeType"`
	Data     []byte `json:"data"`
}

type FileData struct {
	FileURI  string `json:"fileUri"`
	MIMEType string `json:"mimeType,omitempty"`
}

// FunctionCall is a model-emitted tool invocation. Args is untrusted.
type FunctionCall struct {
	ID   string         `json:"id,omitempty"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

type FunctionResponse struct {
	ID       string         `json:"id,omitempty"`
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

// TextTurn builds a single-part text turn.
func TextTurn(role Role, text string) Turn {
	return Turn{Role: role, Parts: []Part{{Text: text}}}
}

// Text concatenates the non-thought text parts of the turn.
func (t Turn) Text() string {
	var b strings.Builder
	for _, p := range t.Parts {
		if p.Thought {
			continue
		}
		b.WriteString(p.Text)
	}
	return b.String()
}
