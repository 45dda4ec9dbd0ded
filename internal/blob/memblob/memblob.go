// Package memblob is an in-memory blob.Store for tests and local development.
package memblob

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tjfontaine/robin-backend/internal/blob"
	"github.com/tjfontaine/robin-backend/internal/domain"
)

// BaseURL is the host all memblob URLs are issued under.
const BaseURL = "https://blob.local"

// ErrInjected is returned by Put or SignedURL when failure injection is enabled.
var ErrInjected = errors.New("memblob: injected failure")

type object struct {
	data        []byte
	contentType string
}

// Store keeps objects in a map.
type Store struct {
	mu      sync.RWMutex
	objects map[blob.Object]object
	base    *url.URL

	puts     int
	failPut  bool
	failSign bool
}

var _ blob.Store = (*Store)(nil)

func New() *Store {
	base, _ := url.Parse(BaseURL)
	return &Store{objects: make(map[blob.Object]object), base: base}
}

// FailPuts makes subsequent Put calls fail.
func (s *Store) FailPuts(fail bool) {
	s.mu.Lock()
	s.failPut = fail
	s.mu.Unlock()
}

// FailSigning makes subsequent SignedURL calls fail.
func (s *Store) FailSigning(fail bool) {
	s.mu.Lock()
	s.failSign = fail
	s.mu.Unlock()
}

// Puts returns how many objects have been written.
func (s *Store) Puts() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.puts
}

func (s *Store) Put(ctx context.Context, obj blob.Object, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failPut {
		return ErrInjected
	}
	s.objects[obj] = object{data: slices.Clone(data), contentType: contentType}
	s.puts++
	return nil
}

func (s *Store) Get(ctx context.Context, obj blob.Object) ([]byte, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.objects[obj]
	if !ok {
		return nil, "", fmt.Errorf("object %s/%s: %w", obj.Bucket, obj.Key, domain.ErrNotFound)
	}
	return slices.Clone(o.data), o.contentType, nil
}

func (s *Store) SignedURL(ctx context.Context, obj blob.Object, ttl time.Duration) (string, error) {
	s.mu.RLock()
	fail := s.failSign
	s.mu.RUnlock()
	if fail {
		return "", ErrInjected
	}
	q := url.Values{}
	q.Set("token", uuid.NewString())
	q.Set("expires", fmt.Sprint(time.Now().Add(ttl).Unix()))
	return blob.JoinURL(BaseURL+"/object/sign", obj) + "?" + q.Encode(), nil
}

func (s *Store) PublicURL(obj blob.Object) string {
	return blob.JoinURL(BaseURL+"/object/public", obj)
}

func (s *Store) Locate(rawURL string) (blob.Object, bool) {
	return blob.LocatePathStyle(s.base, rawURL)
}
