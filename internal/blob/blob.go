// Package blob defines the object storage port: byte upload/download keyed by
// (bucket, key) plus signed and public URL issuance.
package blob

import (
	"context"
	"net/url"
	"strings"
	"time"
)

// Object identifies a stored object.
type Object struct {
	Bucket string
	Key    string
}

// Store is implemented by s3store and memblob.
type Store interface {
	Put(ctx context.Context, obj Object, data []byte, contentType string) error
	// Get downloads an object with the service credential and returns its content type.
	Get(ctx context.Context, obj Object) ([]byte, string, error)
	SignedURL(ctx context.Context, obj Object, ttl time.Duration) (string, error)
	PublicURL(obj Object) string
	// Locate reports the object addressed by rawURL when it is served by this store.
	Locate(rawURL string) (Object, bool)
}

var routePrefixes = []string{"object/public/", "object/sign/", "object/authenticated/", "object/"}

// LocatePathStyle parses rawURL as a path-style object URL under base
// ("<base>/<bucket>/<key>"), also accepting the object/public and object/sign
// route prefixes used by hosted storage gateways.
func LocatePathStyle(base *url.URL, rawURL string) (Object, bool) {
	if base == nil {
		return Object{}, false
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" || !strings.EqualFold(u.Host, base.Host) {
		return Object{}, false
	}
	p := strings.TrimPrefix(u.Path, strings.TrimSuffix(base.Path, "/"))
	p = strings.TrimPrefix(p, "/")
	for _, prefix := range routePrefixes {
		if strings.HasPrefix(p, prefix) {
			p = strings.TrimPrefix(p, prefix)
			break
		}
	}
	bucket, key, ok := strings.Cut(p, "/")
	if !ok || bucket == "" || key == "" {
		return Object{}, false
	}
	return Object{Bucket: bucket, Key: key}, true
}

// JoinURL appends bucket and key to base, escaping each path segment.
func JoinURL(base string, obj Object) string {
	segments := strings.Split(obj.Key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.TrimSuffix(base, "/") + "/" + url.PathEscape(obj.Bucket) + "/" + strings.Join(segments, "/")
}
