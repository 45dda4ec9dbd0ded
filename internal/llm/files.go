package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tjfontaine/robin-backend/internal/domain"
)

// ErrFileFailed is returned when the provider rejects an uploaded file.
var ErrFileFailed = errors.New("file processing failed")

// WaitForFile polls until the file is ACTIVE, fails, or timeout elapses.
func WaitForFile(ctx context.Context, fs FileStore, f *File, interval, timeout time.Duration) (*File, error) {
	if f.State == FileActive || f.State == "" {
		return f, nil
	}
	ctx, cancel := context.WithTimeoutCause(ctx, timeout, &domain.TimeoutError{Op: "file processing", After: timeout})
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		switch f.State {
		case FileActive:
			return f, nil
		case FileFailed:
			return nil, fmt.Errorf("%s: %w", f.Name, ErrFileFailed)
		}
		select {
		case <-ctx.Done():
			return nil, context.Cause(ctx)
		case <-ticker.C:
		}
		next, err := fs.GetFile(ctx, f.Name)
		if err != nil {
			if cause := context.Cause(ctx); cause != nil {
				return nil, cause
			}
			return nil, fmt.Errorf("get file %s: %w", f.Name, err)
		}
		f = next
	}
}
