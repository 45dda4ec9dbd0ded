// Package attachments turns user-supplied attachments into fetchable storage
// references and resolves the reference a tool call names to one URL.
package attachments

import (
	"encoding/json"
	"fmt"
	"path"
	"regexp"
	"strings"
)

// Attachment is a user-supplied file reference. Inline bytes arrive as Base64
// and are never present after normalization.
type Attachment struct {
	Bucket    string `json:"bucket,omitempty"`
	Path      string `json:"path,omitempty"`
	URL       string `json:"url,omitempty"`
	PublicURL string `json:"publicUrl,omitempty"`
	SignedURL string `json:"signedUrl,omitempty"`
	MIMEType  string `json:"mime_type,omitempty"`
	FileName  string `json:"file_name,omitempty"`
	Base64    string `json:"base64,omitempty"`
}

// UnmarshalJSON accepts the alternate field names browser clients send
// (data, mimeType, name, key).
func (a *Attachment) UnmarshalJSON(b []byte) error {
	type plain Attachment
	var aux struct {
		plain
		Data        string `json:"data"`
		MimeTypeAlt string `json:"mimeType"`
		Name        string `json:"name"`
		Key         string `json:"key"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return fmt.Errorf("decode attachment: %w", err)
	}
	*a = Attachment(aux.plain)
	if a.Base64 == "" {
		a.Base64 = aux.Data
	}
	if a.MIMEType == "" {
		a.MIMEType = aux.MimeTypeAlt
	}
	if a.FileName == "" {
		a.FileName = aux.Name
	}
	if a.Path == "" {
		a.Path = aux.Key
	}
	return nil
}

// Resolvable reports whether the attachment carries a URL.
func (a Attachment) Resolvable() bool {
	return a.URL != ""
}

// DisplayName is the file name, falling back to the last path segment.
func (a Attachment) DisplayName() string {
	if a.FileName != "" {
		return a.FileName
	}
	if a.Path != "" {
		return path.Base(a.Path)
	}
	return "file"
}

// Manifest renders the "Attached files:" turn appended after the user prompt.
func Manifest(list []Attachment) string {
	if len(list) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Attached files:")
	for _, a := range list {
		mime := a.MIMEType
		if mime == "" {
			mime = "unknown"
		}
		ref := a.URL
		if ref == "" {
			ref = a.Path
		}
		fmt.Fprintf(&b, "\n- %s (%s) -> %s", a.DisplayName(), mime, ref)
	}
	return b.String()
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SanitizeName makes a file name safe to embed in an object key.
func SanitizeName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	name = unsafeName.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" {
		return "file"
	}
	if len(name) > 100 {
		name = name[len(name)-100:]
	}
	return name
}
