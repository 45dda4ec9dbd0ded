// Package llm is the model-provider port used by the orchestration loop and
// by tools that make nested model calls.
package llm

import (
	"context"
	"strings"

	"github.com/tjfontaine/robin-backend/internal/domain"
)

// Output modalities for Request.Modalities.
const (
	ModalityText  = "TEXT"
	ModalityImage = "IMAGE"
)

// Request is one content-generation call.
type Request struct {
	Model           string
	System          string
	Contents        []domain.Turn
	Tools           []domain.ToolDeclaration
	IncludeThoughts bool
	Modalities      []string
	// ResponseMIMEType asks for structured output such as "application/json".
	ResponseMIMEType string
}

// Response is the first candidate of a model reply, flattened to parts.
type Response struct {
	Model string
	Parts []domain.Part
}

// Text concatenates non-thought text parts.
func (r *Response) Text() string {
	if r == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range r.Parts {
		if !p.Thought {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// Thoughts concatenates reasoning-trace parts.
func (r *Response) Thoughts() string {
	if r == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range r.Parts {
		if p.Thought {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// FunctionCalls returns the calls in the order the model emitted them.
func (r *Response) FunctionCalls() []domain.FunctionCall {
	if r == nil {
		return nil
	}
	var calls []domain.FunctionCall
	for _, p := range r.Parts {
		if p.FunctionCall != nil {
			calls = append(calls, *p.FunctionCall)
		}
	}
	return calls
}

// FunctionCallParts returns the function-call parts with their signatures.
func (r *Response) FunctionCallParts() []domain.Part {
	if r == nil {
		return nil
	}
	var parts []domain.Part
	for _, p := range r.Parts {
		if p.FunctionCall != nil {
			parts = append(parts, p)
		}
	}
	return parts
}

// FirstImage returns the first inline image payload, or nil.
func (r *Response) FirstImage() *domain.Blob {
	if r == nil {
		return nil
	}
	for _, p := range r.Parts {
		if p.InlineData != nil && strings.HasPrefix(p.InlineData.MIMEType, "image/") && len(p.InlineData.Data) > 0 {
			return p.InlineData
		}
	}
	return nil
}

// Chunk is one element of a streamed reply. Err terminates the stream.
type Chunk struct {
	Response *Response
	Err      error
}

// Model generates content.
type Model interface {
	Generate(ctx context.Context, req *Request) (*Response, error)
	// Stream returns a channel closed after the last chunk. Cancel ctx to abandon it.
	Stream(ctx context.Context, req *Request) (<-chan Chunk, error)
}

// FileState is the processing state of a provider-hosted file.
type FileState string

const (
	FileProcessing FileState = "PROCESSING"
	FileActive     FileState = "ACTIVE"
	FileFailed     FileState = "FAILED"
)

// File is a document uploaded to the provider's file store.
type File struct {
	Name     string
	URI      string
	MIMEType string
	State    FileState
}

// FileStore uploads documents the model can reference by URI.
type FileStore interface {
	UploadFile(ctx context.Context, data []byte, mimeType, displayName string) (*File, error)
	GetFile(ctx context.Context, name string) (*File, error)
}

// Client is a provider offering both generation and file hosting.
type Client interface {
	Model
	FileStore
}
