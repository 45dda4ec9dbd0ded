// Package s3store implements blob.Store on an S3-compatible service.
package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/tjfontaine/robin-backend/internal/blob"
	"github.com/tjfontaine/robin-backend/internal/domain"
)

// Config configures an S3-compatible object store.
type Config struct {
	Region          string
	Endpoint        string
	PublicBaseURL   string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

// Store stores objects in S3 and issues presigned GET URLs.
type Store struct {
	client    *s3.Client
	presigner *s3.PresignClient
	region    string
	endpoint  *url.URL
	public    *url.URL
}

var _ blob.Store = (*Store)(nil)

// New creates a new S3-backed store.
func New(ctx context.Context, cfg Config) (*Store, error) {
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	loadOptions := []func(*config.LoadOptions) error{
		config.WithRegion(region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOptions = append(loadOptions, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOptions...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	endpoint := strings.TrimSpace(cfg.Endpoint)
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	s := &Store{
		client:    client,
		presigner: s3.NewPresignClient(client),
		region:    region,
	}
	if endpoint != "" {
		if s.endpoint, err = url.Parse(endpoint); err != nil {
			return nil, fmt.Errorf("parse endpoint: %w", err)
		}
	}
	publicBase := strings.TrimSpace(cfg.PublicBaseURL)
	if publicBase == "" && endpoint != "" {
		publicBase = endpoint
	}
	if publicBase != "" {
		if s.public, err = url.Parse(publicBase); err != nil {
			return nil, fmt.Errorf("parse public base url: %w", err)
		}
	}
	return s, nil
}

func (s *Store) Put(ctx context.Context, obj blob.Object, data []byte, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(obj.Bucket),
		Key:    aws.String(obj.Key),
		Body:   bytes.NewReader(data),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("s3 put object: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, obj blob.Object) ([]byte, string, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(obj.Bucket),
		Key:    aws.String(obj.Key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, "", fmt.Errorf("object %s/%s: %w", obj.Bucket, obj.Key, domain.ErrNotFound)
		}
		return nil, "", fmt.Errorf("s3 get object: %w", err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, "", fmt.Errorf("s3 read object: %w", err)
	}
	return data, aws.ToString(out.ContentType), nil
}

func (s *Store) SignedURL(ctx context.Context, obj blob.Object, ttl time.Duration) (string, error) {
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(obj.Bucket),
		Key:    aws.String(obj.Key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("s3 presign: %w", err)
	}
	return req.URL, nil
}

// PublicURL returns an unsigned URL, valid only for buckets with public read.
func (s *Store) PublicURL(obj blob.Object) string {
	if s.public != nil {
		return blob.JoinURL(s.public.String(), obj)
	}
	return blob.JoinURL(fmt.Sprintf("https://s3.%s.amazonaws.com", s.region), obj)
}

func (s *Store) Locate(rawURL string) (blob.Object, bool) {
	for _, base := range []*url.URL{s.public, s.endpoint} {
		if obj, ok := blob.LocatePathStyle(base, rawURL); ok {
			return obj, true
		}
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return blob.Object{}, false
	}
	host := strings.ToLower(u.Hostname())
	if bucket, rest, ok := strings.Cut(host, ".s3."); ok && strings.HasSuffix(rest, "amazonaws.com") {
		key := strings.TrimPrefix(u.Path, "/")
		if bucket != "" && key != "" {
			return blob.Object{Bucket: bucket, Key: key}, true
		}
	}
	if host == "s3.amazonaws.com" || (strings.HasPrefix(host, "s3.") && strings.HasSuffix(host, ".amazonaws.com")) {
		return blob.LocatePathStyle(&url.URL{Scheme: u.Scheme, Host: u.Host}, rawURL)
	}
	return blob.Object{}, false
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return true
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && (apiErr.ErrorCode() == "NoSuchKey" || apiErr.ErrorCode() == "NotFound")
}
