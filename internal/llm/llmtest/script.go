// Package llmtest provides a scripted llm.Client for tests.
package llmtest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/tjfontaine/robin-backend/internal/domain"
	"github.com/tjfontaine/robin-backend/internal/llm"
)

// ErrExhausted is returned when the script has no steps left.
var ErrExhausted = errors.New("llmtest: script exhausted")

// Step is one scripted model reply.
type Step struct {
	Response *llm.Response
	Err      error
	// Chunks overrides how Stream delivers the reply; an empty non-nil slice
	// simulates a stream that yields nothing.
	Chunks []*llm.Response
}

// Script replays steps in order and records every request.
type Script struct {
	mu       sync.Mutex
	steps    []Step
	requests []llm.Request
	failures map[string]error

	files      map[string]*llm.File
	uploads    [][]byte
	readyAfter int
	polls      map[string]int
}

// New returns a script that replays steps.
func New(steps ...Step) *Script {
	return &Script{
		steps:    steps,
		failures: make(map[string]error),
		files:    make(map[string]*llm.File),
		polls:    make(map[string]int),
	}
}

// FailModel makes every call naming model fail with err.
func (s *Script) FailModel(model string, err error) *Script {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[model] = err
	return s
}

// FilesReadyAfter makes uploaded files report PROCESSING for n polls.
func (s *Script) FilesReadyAfter(n int) *Script {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readyAfter = n
	return s
}

// Requests returns a snapshot of every request received.
func (s *Script) Requests() []llm.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]llm.Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// Uploads returns the payloads passed to UploadFile.
func (s *Script) Uploads() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.uploads...)
}

func (s *Script) next(req *llm.Request) (Step, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := *req
	snapshot.Contents = append([]domain.Turn(nil), req.Contents...)
	s.requests = append(s.requests, snapshot)
	if err, ok := s.failures[req.Model]; ok {
		return Step{}, err
	}
	if len(s.steps) == 0 {
		return Step{}, ErrExhausted
	}
	step := s.steps[0]
	s.steps = s.steps[1:]
	return step, nil
}

func (s *Script) Generate(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	step, err := s.next(req)
	if err != nil {
		return nil, err
	}
	if step.Err != nil {
		return nil, step.Err
	}
	return step.Response, nil
}

func (s *Script) Stream(ctx context.Context, req *llm.Request) (<-chan llm.Chunk, error) {
	step, err := s.next(req)
	if err != nil {
		return nil, err
	}
	chunks := step.Chunks
	if chunks == nil && step.Response != nil {
		chunks = []*llm.Response{step.Response}
	}
	ch := make(chan llm.Chunk, len(chunks)+1)
	for _, c := range chunks {
		ch <- llm.Chunk{Response: c}
	}
	if step.Err != nil {
		ch <- llm.Chunk{Err: step.Err}
	}
	close(ch)
	return ch, nil
}

func (s *Script) UploadFile(ctx context.Context, data []byte, mimeType, displayName string) (*llm.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads = append(s.uploads, data)
	name := fmt.Sprintf("files/%d", len(s.uploads))
	f := &llm.File{Name: name, URI: "https://files.test/" + name, MIMEType: mimeType, State: llm.FileProcessing}
	if s.readyAfter == 0 {
		f.State = llm.FileActive
	}
	s.files[name] = f
	cp := *f
	return &cp, nil
}

func (s *Script) GetFile(ctx context.Context, name string) (*llm.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[name]
	if !ok {
		return nil, fmt.Errorf("file %s: %w", name, domain.ErrNotFound)
	}
	s.polls[name]++
	if s.polls[name] >= s.readyAfter {
		f.State = llm.FileActive
	}
	cp := *f
	return &cp, nil
}

// Text is a reply carrying only text.
func Text(text string) *llm.Response {
	return &llm.Response{Parts: []domain.Part{{Text: text}}}
}

// Call is a reply carrying a single function call.
func Call(name string, args map[string]any) *llm.Response {
	return &llm.Response{Parts: []domain.Part{{FunctionCall: &domain.FunctionCall{Name: name, Args: args}}}}
}

// Calls is a reply carrying several function calls in order.
func Calls(calls ...domain.FunctionCall) *llm.Response {
	r := &llm.Response{}
	for i := range calls {
		c := calls[i]
		r.Parts = append(r.Parts, domain.Part{FunctionCall: &c})
	}
	return r
}

// Image is a reply carrying one inline image and an optional caption.
func Image(data []byte, mimeType, caption string) *llm.Response {
	r := &llm.Response{}
	if caption != "" {
		r.Parts = append(r.Parts, domain.Part{Text: caption})
	}
	r.Parts = append(r.Parts, domain.Part{InlineData: &domain.Blob{MIMEType: mimeType, Data: data}})
	return r
}
