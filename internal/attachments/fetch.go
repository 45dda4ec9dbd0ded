package attachments

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/tjfontaine/robin-backend/internal/blob"
)

// DefaultMaxBytes bounds a single fetched attachment.
const DefaultMaxBytes = 20 << 20

// ErrTooLarge is returned when a fetched body exceeds the fetcher's limit.
var ErrTooLarge = errors.New("attachment exceeds size limit")

// Fetched is the downloaded content of a resolved attachment.
type Fetched struct {
	Data     []byte
	MIMEType string
	// Stage names the retrieval step that succeeded.
	Stage string
}

// Fetcher downloads resolved URLs, trying a plain GET, then a GET carrying
// the caller's bearer token, then a direct storage read with the service
// credential. Only exhaustion of every stage is an error.
type Fetcher struct {
	client   *http.Client
	store    blob.Store
	maxBytes int64
	logger   *slog.Logger
}

func NewFetcher(client *http.Client, store blob.Store, logger *slog.Logger) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{client: client, store: store, maxBytes: DefaultMaxBytes, logger: logger}
}

// Fetch downloads res. bearer may be empty, in which case the authenticated
// stage is skipped.
func (f *Fetcher) Fetch(ctx context.Context, res *Resolved, bearer string) (*Fetched, error) {
	var errs []error

	out, err := f.get(ctx, res.URL, "")
	if err == nil {
		out.Stage = "plain"
		return f.withMIME(out, res), nil
	}
	errs = append(errs, fmt.Errorf("plain fetch: %w", err))

	if bearer != "" {
		out, err = f.get(ctx, res.URL, bearer)
		if err == nil {
			out.Stage = "authenticated"
			return f.withMIME(out, res), nil
		}
		errs = append(errs, fmt.Errorf("authenticated fetch: %w", err))
	}

	obj, ok := res.Object, res.HasObject
	if !ok && f.store != nil {
		obj, ok = f.store.Locate(res.URL)
	}
	if ok && f.store != nil {
		data, contentType, err := f.store.Get(ctx, obj)
		if err == nil && int64(len(data)) > f.maxBytes {
			err = ErrTooLarge
		}
		if err == nil {
			return f.withMIME(&Fetched{Data: data, MIMEType: contentType, Stage: "storage"}, res), nil
		}
		errs = append(errs, fmt.Errorf("storage download: %w", err))
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		errs = append(errs, ctxErr)
	}
	f.logger.Warn("attachment fetch exhausted", slog.String("url", res.URL), slog.Int("stages", len(errs)))
	return nil, errors.Join(errs...)
}

func (f *Fetcher) get(ctx context.Context, rawURL, bearer string) (*Fetched, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > f.maxBytes {
		return nil, ErrTooLarge
	}
	return &Fetched{Data: data, MIMEType: resp.Header.Get("Content-Type")}, nil
}

func (f *Fetcher) withMIME(out *Fetched, res *Resolved) *Fetched {
	if res.MIMEType != "" && res.MIMEType != "application/octet-stream" {
		out.MIMEType = res.MIMEType
	}
	if out.MIMEType == "" {
		out.MIMEType = "application/octet-stream"
	}
	return out
}
