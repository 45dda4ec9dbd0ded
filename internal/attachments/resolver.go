package attachments

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tjfontaine/robin-backend/internal/blob"
	"github.com/tjfontaine/robin-backend/internal/domain"
)

// Provenance records which rule produced a resolved URL.
type Provenance string

const (
	ProvenanceExplicit Provenance = "explicit"
	ProvenanceMatch    Provenance = "attachment"
	ProvenanceSole     Provenance = "sole_attachment"
	ProvenanceResigned Provenance = "resigned"
)

// Reference is what a tool call says about its source.
type Reference struct {
	// URL is an absolute URL or a bare name/path.
	URL  string
	Name string
}

// Resolved is one concrete URL for a tool to fetch.
type Resolved struct {
	URL        string
	Name       string
	MIMEType   string
	Provenance Provenance
	// Object is set when the URL is served by the system's own storage.
	Object    blob.Object
	HasObject bool
}

// Config holds the upload location for inline attachments.
type Config struct {
	Bucket    string
	Folder    string
	SignedTTL time.Duration
}

// Resolver normalizes attachments and resolves tool references against them.
type Resolver struct {
	store  blob.Store
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// NewResolver returns a resolver writing inline uploads into cfg.Bucket.
func NewResolver(store blob.Store, cfg Config, logger *slog.Logger) *Resolver {
	if cfg.Bucket == "" {
		cfg.Bucket = "user-uploads"
	}
	if cfg.Folder == "" {
		cfg.Folder = "playground/uploads"
	}
	if cfg.SignedTTL <= 0 {
		cfg.SignedTTL = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{store: store, cfg: cfg, logger: logger, now: time.Now}
}

// Normalize uploads inline bytes, (re-)signs bare storage references and
// passes URLs through. Failures degrade the entry to metadata only; raw bytes
// never survive into the output.
func (r *Resolver) Normalize(ctx context.Context, raw []Attachment) []Attachment {
	out := make([]Attachment, 0, len(raw))
	for _, a := range raw {
		out = append(out, r.normalizeOne(ctx, a))
	}
	return out
}

func (r *Resolver) normalizeOne(ctx context.Context, a Attachment) Attachment {
	if a.MIMEType == "" {
		a.MIMEType = "application/octet-stream"
	}
	switch {
	case a.Base64 != "":
		return r.upload(ctx, a)
	case a.URL != "":
		a.Base64 = ""
		if obj, ok := r.store.Locate(a.URL); ok && a.Bucket == "" {
			a.Bucket, a.Path = obj.Bucket, obj.Key
		}
		return a
	case a.Bucket != "" && a.Path != "":
		obj := blob.Object{Bucket: a.Bucket, Key: a.Path}
		signed, err := r.store.SignedURL(ctx, obj, r.cfg.SignedTTL)
		if err != nil {
			r.logger.Warn("attachment re-sign failed", slog.String("path", a.Path), slog.String("error", err.Error()))
			return a
		}
		a.SignedURL = signed
		a.URL = signed
		return a
	default:
		return metadataOnly(a)
	}
}

func (r *Resolver) upload(ctx context.Context, a Attachment) Attachment {
	data, err := DecodeBase64(a.Base64)
	if err != nil {
		r.logger.Warn("attachment decode failed", slog.String("file_name", a.FileName), slog.String("error", err.Error()))
		return metadataOnly(a)
	}
	name := a.FileName
	if name == "" {
		name = fmt.Sprintf("upload_%d", r.now().UnixMilli())
	}
	obj := blob.Object{
		Bucket: r.cfg.Bucket,
		Key:    fmt.Sprintf("%s/%d_%s_%s", r.cfg.Folder, r.now().UnixMilli(), uploadToken(), SanitizeName(name)),
	}
	if err := r.store.Put(ctx, obj, data, a.MIMEType); err != nil {
		r.logger.Warn("attachment upload failed", slog.String("file_name", name), slog.String("error", err.Error()))
		return metadataOnly(a)
	}

	out := Attachment{
		Bucket:    obj.Bucket,
		Path:      obj.Key,
		PublicURL: r.store.PublicURL(obj),
		MIMEType:  a.MIMEType,
		FileName:  name,
	}
	signed, err := r.store.SignedURL(ctx, obj, r.cfg.SignedTTL)
	if err != nil {
		r.logger.Warn("attachment signing failed", slog.String("path", obj.Key), slog.String("error", err.Error()))
		return out
	}
	out.SignedURL = signed
	out.URL = signed
	return out
}

func metadataOnly(a Attachment) Attachment {
	return Attachment{MIMEType: a.MIMEType, FileName: a.FileName, Bucket: a.Bucket, Path: a.Path}
}

func uploadToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
}

// DecodeBase64 decodes padded or unpadded standard base64, accepting an
// optional data: URI prefix.
func DecodeBase64(s string) ([]byte, error) {
	if _, after, ok := strings.Cut(s, ";base64,"); ok && strings.HasPrefix(s, "data:") {
		s = after
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(s)
	}
	return data, err
}

// ResolveBestURL picks one fetchable URL for ref. Precedence: an explicit
// absolute URL outside our own storage; an exact then suffix name match
// against list; the sole attachment when ref is empty; re-signing a URL that
// points at our own storage. An own-storage URL that cannot be re-signed is
// still returned as given, with its object, since it was named explicitly.
// Exhaustion returns domain.ErrNoSource.
func (r *Resolver) ResolveBestURL(ctx context.Context, ref Reference, list []Attachment) (*Resolved, error) {
	ref.URL = strings.TrimSpace(ref.URL)
	ref.Name = strings.TrimSpace(ref.Name)

	var own blob.Object
	var isOwn bool
	if isAbsoluteURL(ref.URL) {
		own, isOwn = r.store.Locate(ref.URL)
		if !isOwn {
			return &Resolved{URL: ref.URL, Name: ref.Name, Provenance: ProvenanceExplicit}, nil
		}
	}

	names := make([]string, 0, 2)
	if ref.Name != "" {
		names = append(names, ref.Name)
	}
	switch {
	case isOwn:
		names = append(names, own.Key)
	case ref.URL != "":
		names = append(names, ref.URL)
	}
	if a, ok := matchAttachment(names, list); ok {
		if res, err := r.fromAttachment(ctx, a, ProvenanceMatch); err == nil {
			return res, nil
		}
	}

	if len(names) == 0 && len(list) == 1 {
		if res, err := r.fromAttachment(ctx, list[0], ProvenanceSole); err == nil {
			return res, nil
		}
	}

	if isOwn {
		signed, err := r.store.SignedURL(ctx, own, r.cfg.SignedTTL)
		if err == nil {
			return &Resolved{URL: signed, Name: ref.Name, Provenance: ProvenanceResigned, Object: own, HasObject: true}, nil
		}
		r.logger.Warn("re-sign failed", slog.String("key", own.Key), slog.String("error", err.Error()))
		return &Resolved{URL: ref.URL, Name: ref.Name, Provenance: ProvenanceExplicit, Object: own, HasObject: true}, nil
	}

	return nil, domain.ErrNoSource
}

func (r *Resolver) fromAttachment(ctx context.Context, a Attachment, prov Provenance) (*Resolved, error) {
	res := &Resolved{URL: a.URL, Name: a.DisplayName(), MIMEType: a.MIMEType, Provenance: prov}
	if a.Bucket != "" && a.Path != "" {
		res.Object = blob.Object{Bucket: a.Bucket, Key: a.Path}
		res.HasObject = true
	} else if obj, ok := r.store.Locate(a.URL); ok {
		res.Object, res.HasObject = obj, true
	}
	if res.URL == "" && res.HasObject {
		signed, err := r.store.SignedURL(ctx, res.Object, r.cfg.SignedTTL)
		if err != nil {
			return nil, err
		}
		res.URL = signed
	}
	if res.URL == "" {
		return nil, domain.ErrNoSource
	}
	return res, nil
}

func matchAttachment(names []string, list []Attachment) (Attachment, bool) {
	for _, name := range names {
		for _, a := range list {
			for _, c := range candidates(a) {
				if c == name {
					return a, true
				}
			}
		}
	}
	for _, name := range names {
		for _, a := range list {
			for _, c := range candidates(a) {
				if strings.HasSuffix(c, "/"+name) || strings.HasSuffix(name, "/"+c) || strings.HasSuffix(c, "_"+name) {
					return a, true
				}
			}
		}
	}
	return Attachment{}, false
}

func candidates(a Attachment) []string {
	var out []string
	for _, c := range []string{a.FileName, a.Path, a.URL, a.PublicURL} {
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

func isAbsoluteURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
