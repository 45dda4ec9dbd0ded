package attachments

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tjfontaine/robin-backend/internal/blob"
	"github.com/tjfontaine/robin-backend/internal/blob/memblob"
	"github.com/tjfontaine/robin-backend/internal/domain"
)

func newResolver(store *memblob.Store) *Resolver {
	return NewResolver(store, Config{}, nil)
}

func TestNormalize_UploadsInlineBytes(t *testing.T) {
	store := memblob.New()
	r := newResolver(store)

	out := r.Normalize(context.Background(), []Attachment{{
		Base64:   base64.StdEncoding.EncodeToString([]byte("hello")),
		MIMEType: "text/plain",
		FileName: "my notes.txt",
	}})

	require.Len(t, out, 1)
	a := out[0]
	assert.Empty(t, a.Base64)
	assert.Equal(t, "user-uploads", a.Bucket)
	assert.True(t, strings.HasPrefix(a.Path, "playground/uploads/"), a.Path)
	assert.True(t, strings.HasSuffix(a.Path, "_my_notes.txt"), a.Path)
	assert.Equal(t, a.SignedURL, a.URL)
	assert.Contains(t, a.URL, "/object/sign/user-uploads/")
	assert.Contains(t, a.PublicURL, "/object/public/user-uploads/")

	data, _, err := store.Get(context.Background(), blob.Object{Bucket: a.Bucket, Key: a.Path})
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestNormalize_Idempotent(t *testing.T) {
	store := memblob.New()
	r := newResolver(store)
	ctx := context.Background()

	once := r.Normalize(ctx, []Attachment{{Base64: base64.StdEncoding.EncodeToString([]byte("x")), FileName: "x.bin"}})
	twice := r.Normalize(ctx, once)

	assert.Equal(t, 1, store.Puts())
	assert.Equal(t, once, twice)
}

func TestNormalize_UploadFailureDegradesToMetadata(t *testing.T) {
	store := memblob.New()
	store.FailPuts(true)
	r := newResolver(store)

	out := r.Normalize(context.Background(), []Attachment{{
		Base64:   base64.StdEncoding.EncodeToString([]byte("secret")),
		MIMEType: "image/png",
		FileName: "shot.png",
	}})

	require.Len(t, out, 1)
	assert.Equal(t, Attachment{MIMEType: "image/png", FileName: "shot.png"}, out[0])
	assert.False(t, out[0].Resolvable())
}

func TestNormalize_InvalidBase64DegradesToMetadata(t *testing.T) {
	r := newResolver(memblob.New())

	out := r.Normalize(context.Background(), []Attachment{{Base64: "!!not base64!!", FileName: "a.txt"}})

	require.Len(t, out, 1)
	assert.Empty(t, out[0].Base64)
	assert.Empty(t, out[0].URL)
	assert.Equal(t, "a.txt", out[0].FileName)
}

func TestNormalize_ResignsBareReference(t *testing.T) {
	r := newResolver(memblob.New())

	out := r.Normalize(context.Background(), []Attachment{{Bucket: "user-uploads", Path: "playground/uploads/a.png"}})

	require.Len(t, out, 1)
	assert.Contains(t, out[0].URL, "/object/sign/user-uploads/playground/uploads/a.png")
}

func TestNormalize_URLPassThroughInfersObject(t *testing.T) {
	r := newResolver(memblob.New())

	out := r.Normalize(context.Background(), []Attachment{
		{URL: memblob.BaseURL + "/object/public/user-files/playground/images/cat.png"},
		{URL: "https://example.com/cat.png", FileName: "cat.png"},
	})

	require.Len(t, out, 2)
	assert.Equal(t, "user-files", out[0].Bucket)
	assert.Equal(t, "playground/images/cat.png", out[0].Path)
	assert.Empty(t, out[1].Bucket)
	assert.Equal(t, "https://example.com/cat.png", out[1].URL)
}

func TestAttachment_UnmarshalAliases(t *testing.T) {
	var a Attachment
	err := json.Unmarshal([]byte(`{"data":"aGk=","mimeType":"text/plain","name":"hi.txt"}`), &a)
	require.NoError(t, err)
	assert.Equal(t, Attachment{Base64: "aGk=", MIMEType: "text/plain", FileName: "hi.txt"}, a)
}

func TestResolveBestURL(t *testing.T) {
	ctx := context.Background()
	r := newResolver(memblob.New())

	report := Attachment{Bucket: "user-uploads", Path: "playground/uploads/1_abc_report.pdf", URL: "https://blob.local/object/sign/user-uploads/playground/uploads/1_abc_report.pdf?token=t", FileName: "report.pdf", MIMEType: "application/pdf"}
	photo := Attachment{URL: "https://cdn.example.com/photo.jpg", FileName: "photo.jpg", MIMEType: "image/jpeg"}

	tests := []struct {
		name     string
		ref      Reference
		list     []Attachment
		wantURL  string
		wantProv Provenance
		wantErr  error
	}{
		{
			name:     "explicit external URL wins over attachments",
			ref:      Reference{URL: "https://other.example.com/x.pdf", Name: "report.pdf"},
			list:     []Attachment{report},
			wantURL:  "https://other.example.com/x.pdf",
			wantProv: ProvenanceExplicit,
		},
		{
			name:     "exact name match",
			ref:      Reference{Name: "photo.jpg"},
			list:     []Attachment{report, photo},
			wantURL:  photo.URL,
			wantProv: ProvenanceMatch,
		},
		{
			name:     "suffix path match",
			ref:      Reference{URL: "uploads/1_abc_report.pdf"},
			list:     []Attachment{photo, report},
			wantURL:  report.URL,
			wantProv: ProvenanceMatch,
		},
		{
			name:     "sole attachment without alias",
			ref:      Reference{},
			list:     []Attachment{photo},
			wantURL:  photo.URL,
			wantProv: ProvenanceSole,
		},
		{
			name:    "no alias and several attachments",
			ref:     Reference{},
			list:    []Attachment{photo, report},
			wantErr: domain.ErrNoSource,
		},
		{
			name:    "unknown alias does not fall back to sole attachment",
			ref:     Reference{Name: "missing.txt"},
			list:    []Attachment{photo},
			wantErr: domain.ErrNoSource,
		},
		{
			name:     "own storage URL is re-signed",
			ref:      Reference{URL: "https://blob.local/object/public/user-files/playground/images/gen.png"},
			list:     nil,
			wantProv: ProvenanceResigned,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.ResolveBestURL(ctx, tt.ref, tt.list)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantProv, got.Provenance)
			if tt.wantURL != "" {
				assert.Equal(t, tt.wantURL, got.URL)
			}
			if tt.wantProv == ProvenanceResigned {
				assert.Contains(t, got.URL, "/object/sign/user-files/playground/images/gen.png")
				assert.True(t, got.HasObject)
			}
		})
	}
}

func TestResolveBestURL_KeepsOwnURLWhenResignFails(t *testing.T) {
	store := memblob.New()
	store.FailSigning(true)
	r := newResolver(store)
	url := "https://blob.local/object/public/user-files/playground/images/gen_1.png"

	got, err := r.ResolveBestURL(context.Background(), Reference{URL: url}, nil)

	require.NoError(t, err)
	assert.Equal(t, url, got.URL)
	assert.Equal(t, ProvenanceExplicit, got.Provenance)
	assert.True(t, got.HasObject)
	assert.Equal(t, blob.Object{Bucket: "user-files", Key: "playground/images/gen_1.png"}, got.Object)
}

func TestManifest(t *testing.T) {
	got := Manifest([]Attachment{
		{FileName: "a.pdf", MIMEType: "application/pdf", URL: "https://x/a.pdf"},
		{Path: "playground/uploads/b.png"},
	})
	want := "Attached files:\n- a.pdf (application/pdf) -> https://x/a.pdf\n- b.png (unknown) -> playground/uploads/b.png"
	assert.Equal(t, want, got)
	assert.Empty(t, Manifest(nil))
}

func TestSanitizeName(t *testing.T) {
	tests := map[string]string{
		"report.pdf":        "report.pdf",
		"../../etc/passwd":  "passwd",
		"my file (1).png":   "my_file_1_.png",
		"":                  "file",
		"C:\\Users\\me.txt": "me.txt",
	}
	for in, want := range tests {
		if got := SanitizeName(in); got != want {
			t.Errorf("SanitizeName(%q) = %q, want %q", in, got, want)
		}
	}
}
