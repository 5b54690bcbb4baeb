// Package s3 stores the continuation token as a single S3 object.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/custodia-labs/indexsync/internal/core/domain"
	"github.com/custodia-labs/indexsync/internal/core/ports/driven"
)

// maxTokenBytes bounds how much of the object Load will read.
const maxTokenBytes = 64 << 10

// Client is the subset of the S3 API the checkpoint store uses.
type Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

var _ driven.CheckpointStore = (*CheckpointStore)(nil)

// CheckpointStore keeps the token as the body of bucket/key. A PutObject
// replaces the whole object, so readers see the old token or the new one.
type CheckpointStore struct {
	client Client
	bucket string
	key    string
}

// Options configures NewCheckpointStoreFromConfig.
type Options struct {
	// Region overrides the region from the shared AWS config.
	Region string

	// Endpoint points at an S3-compatible service such as MinIO.
	Endpoint string

	// PathStyle forces path-style addressing.
	PathStyle bool
}

// NewCheckpointStore wraps an existing client.
func NewCheckpointStore(client Client, bucket, key string) (*CheckpointStore, error) {
	bucket = strings.TrimSpace(bucket)
	key = strings.Trim(strings.TrimSpace(key), "/")
	if client == nil || bucket == "" || key == "" {
		return nil, fmt.Errorf("%w: s3 checkpoint needs a client, bucket and key", domain.ErrInvalidInput)
	}
	return &CheckpointStore{client: client, bucket: bucket, key: key}, nil
}

// NewCheckpointStoreFromConfig builds a client from the default AWS
// credential chain.
func NewCheckpointStoreFromConfig(ctx context.Context, bucket, key string, opts Options) (*CheckpointStore, error) {
	var loadOpts []func(*config.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.PathStyle
	})
	return NewCheckpointStore(client, bucket, key)
}

// Load returns the stored checkpoint, or nil if the object does not exist.
func (s *CheckpointStore) Load(ctx context.Context) (*domain.Checkpoint, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, &domain.PersistenceError{Op: "load", Err: err}
	}
	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(out.Body, maxTokenBytes))
	if err != nil {
		return nil, &domain.PersistenceError{Op: "load", Err: fmt.Errorf("reading s3://%s/%s: %w", s.bucket, s.key, err)}
	}

	token := strings.TrimSpace(string(data))
	if token == "" {
		return nil, nil
	}

	cp := &domain.Checkpoint{Token: token}
	if out.LastModified != nil {
		cp.SavedAt = *out.LastModified
	}
	return cp, nil
}

// Save writes the token as the object body.
func (s *CheckpointStore) Save(ctx context.Context, token string) error {
	if token == "" {
		return &domain.PersistenceError{Op: "save", Err: domain.ErrInvalidInput}
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key),
		Body:        strings.NewReader(token),
		ContentType: aws.String("text/plain; charset=utf-8"),
		Metadata:    map[string]string{"saved-at": time.Now().UTC().Format(time.RFC3339)},
	})
	if err != nil {
		return &domain.PersistenceError{Op: "save", Err: err}
	}
	return nil
}

// Clear deletes the object. Deleting a missing object succeeds.
func (s *CheckpointStore) Clear(ctx context.Context) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil && !isNotFound(err) {
		return &domain.PersistenceError{Op: "clear", Err: err}
	}
	return nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	return errors.As(err, &nf)
}
