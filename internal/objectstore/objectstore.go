// Package objectstore is the byte-sink job handlers upload their output
// to: an S3-compatible facade over MinIO. Unlike the teacher's MinIODriver,
// which is bound to one bucket for its lifetime, every call here takes an
// explicit bucket — job handlers derive a bucket name per (provider,
// source) pair at run time, so there is no single bucket to fix at
// construction.
package objectstore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

// Error wraps a failed object store operation.
type Error struct {
	Op     string
	Bucket string
	Key    string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("objectstore: %s %s/%s: %v", e.Op, e.Bucket, e.Key, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Config configures the S3-compatible endpoint.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	PublicURL string // overrides the derived public URL when set
}

// Store is a bucket-agnostic S3 facade.
type Store struct {
	client    *s3.S3
	uploader  *s3manager.Uploader
	publicURL string
}

// New builds a Store configured for path-style addressing, which MinIO
// requires.
func New(cfg Config) (*Store, error) {
	sess, err := session.NewSession(&aws.Config{
		Region:           aws.String("us-east-1"),
		Credentials:      credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, ""),
		Endpoint:         aws.String(cfg.Endpoint),
		DisableSSL:       aws.Bool(!cfg.UseSSL),
		S3ForcePathStyle: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("objectstore: creating session: %w", err)
	}

	publicURL := cfg.PublicURL
	if publicURL == "" {
		protocol := "http"
		if cfg.UseSSL {
			protocol = "https"
		}
		publicURL = fmt.Sprintf("%s://%s", protocol, cfg.Endpoint)
	}

	return &Store{
		client:    s3.New(sess),
		uploader:  s3manager.NewUploader(sess),
		publicURL: publicURL,
	}, nil
}

// EnsureBucket creates bucket if it does not already exist.
func (s *Store) EnsureBucket(ctx context.Context, bucket string) error {
	_, err := s.client.HeadBucketWithContext(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
	if err == nil {
		return nil
	}

	aerr, ok := err.(awserr.Error)
	if !ok || aerr.Code() != "NotFound" {
		return &Error{Op: "ensure_bucket", Bucket: bucket, Err: err}
	}

	if _, err := s.client.CreateBucketWithContext(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)}); err != nil {
		return &Error{Op: "create_bucket", Bucket: bucket, Err: err}
	}
	return nil
}

// Put uploads content to bucket/key, detecting its content type from the
// first bytes when content is seekable.
func (s *Store) Put(ctx context.Context, bucket, key string, content io.Reader) error {
	contentType := "application/octet-stream"
	if seeker, ok := content.(io.ReadSeeker); ok {
		buf := make([]byte, 512)
		n, _ := seeker.Read(buf)
		contentType = http.DetectContentType(buf[:n])
		seeker.Seek(0, io.SeekStart)
	}

	_, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        content,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return &Error{Op: "put", Bucket: bucket, Key: key, Err: err}
	}
	return nil
}

// Get retrieves bucket/key's content.
func (s *Store) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	result, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, &Error{Op: "get", Bucket: bucket, Key: key, Err: err}
	}
	return result.Body, nil
}

// Exists reports whether bucket/key is present.
func (s *Store) Exists(ctx context.Context, bucket, key string) (bool, error) {
	_, err := s.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && aerr.Code() == "NotFound" {
			return false, nil
		}
		return false, &Error{Op: "exists", Bucket: bucket, Key: key, Err: err}
	}
	return true, nil
}

// Delete removes bucket/key.
func (s *Store) Delete(ctx context.Context, bucket, key string) error {
	if _, err := s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}); err != nil {
		return &Error{Op: "delete", Bucket: bucket, Key: key, Err: err}
	}
	return nil
}

// URL returns the public URL for bucket/key.
func (s *Store) URL(bucket, key string) string {
	return fmt.Sprintf("%s/%s/%s", strings.TrimSuffix(s.publicURL, "/"), bucket, strings.TrimPrefix(key, "/"))
}

// TemporaryURL returns a signed, time-limited URL for bucket/key.
func (s *Store) TemporaryURL(bucket, key string, expiration time.Duration) (string, error) {
	req, _ := s.client.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	url, err := req.Presign(expiration)
	if err != nil {
		return "", &Error{Op: "temporary_url", Bucket: bucket, Key: key, Err: err}
	}
	return url, nil
}
