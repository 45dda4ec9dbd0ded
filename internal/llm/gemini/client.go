// Package gemini adapts google.golang.org/genai to the llm port.
package gemini

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"google.golang.org/genai"

	"github.com/tjfontaine/robin-backend/internal/llm"
)

// Client implements llm.Client against the Gemini API.
type Client struct {
	client *genai.Client
	logger *slog.Logger
}

var _ llm.Client = (*Client)(nil)

// New creates a Gemini client. httpClient may be nil.
func New(ctx context.Context, apiKey string, httpClient *http.Client, logger *slog.Logger) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: api key is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &Client{client: c, logger: logger}, nil
}

func (c *Client) Generate(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	resp, err := c.client.Models.GenerateContent(ctx, req.Model, toContents(req.Contents), buildConfig(req))
	if err != nil {
		return nil, fmt.Errorf("gemini: generate %s: %w", req.Model, err)
	}
	return fromResponse(req.Model, resp), nil
}

func (c *Client) Stream(ctx context.Context, req *llm.Request) (<-chan llm.Chunk, error) {
	contents := toContents(req.Contents)
	config := buildConfig(req)
	chunks := make(chan llm.Chunk)

	go func() {
		defer close(chunks)
		send := func(chunk llm.Chunk) bool {
			select {
			case chunks <- chunk:
				return true
			case <-ctx.Done():
				return false
			}
		}
		for resp, err := range c.client.Models.GenerateContentStream(ctx, req.Model, contents, config) {
			if err != nil {
				send(llm.Chunk{Err: fmt.Errorf("gemini: stream %s: %w", req.Model, err)})
				return
			}
			if resp == nil {
				continue
			}
			if !send(llm.Chunk{Response: fromResponse(req.Model, resp)}) {
				return
			}
		}
	}()

	return chunks, nil
}

func (c *Client) UploadFile(ctx context.Context, data []byte, mimeType, displayName string) (*llm.File, error) {
	f, err := c.client.Files.Upload(ctx, bytes.NewReader(data), &genai.UploadFileConfig{
		MIMEType:    mimeType,
		DisplayName: displayName,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: upload file: %w", err)
	}
	c.logger.Debug("uploaded file to gemini", slog.String("name", f.Name), slog.String("mime_type", mimeType))
	return fromFile(f), nil
}

func (c *Client) GetFile(ctx context.Context, name string) (*llm.File, error) {
	f, err := c.client.Files.Get(ctx, name, nil)
	if err != nil {
		return nil, fmt.Errorf("gemini: get file %s: %w", name, err)
	}
	return fromFile(f), nil
}

func fromFile(f *genai.File) *llm.File {
	return &llm.File{
		Name:     f.Name,
		URI:      f.URI,
		MIMEType: f.MIMEType,
		State:    llm.FileState(f.State),
	}
}
