package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"social-service/internal/config"
)

// ErrDisabled is returned when no bucket is configured.
var ErrDisabled = errors.New("object storage is not configured")

// Object describes an object to store.
type Object struct {
	Key         string
	ContentType string
	Size        int64
	Body        io.Reader
	Metadata    map[string]string
}

// Uploader stores objects and issues presigned upload URLs.
type Uploader interface {
	Upload(ctx context.Context, obj Object) (string, error)
	PresignPut(ctx context.Context, key, contentType string, expires time.Duration) (string, error)
}

// S3Uploader is an Uploader backed by any S3-compatible endpoint.
type S3Uploader struct {
	client     *s3.Client
	presign    *s3.PresignClient
	bucket     string
	publicBase string
	endpoint   string
	pathStyle  bool
}

// NewS3Uploader builds the client from static credentials when given and the
// default AWS chain otherwise.
func NewS3Uploader(ctx context.Context, cfg config.StorageConfig) (*S3Uploader, error) {
	if !cfg.Enabled() {
		return nil, ErrDisabled
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	return &S3Uploader{
		client:     client,
		presign:    s3.NewPresignClient(client),
		bucket:     cfg.Bucket,
		publicBase: strings.TrimRight(cfg.PublicBaseURL, "/"),
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		pathStyle:  cfg.UsePathStyle,
	}, nil
}

// Upload stores obj and returns its public URL.
func (u *S3Uploader) Upload(ctx context.Context, obj Object) (string, error) {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(obj.Key),
		Body:        obj.Body,
		ContentType: aws.String(obj.ContentType),
		Metadata:    obj.Metadata,
	}
	if obj.Size > 0 {
		input.ContentLength = aws.Int64(obj.Size)
	}
	if _, err := u.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("put object %s: %w", obj.Key, err)
	}
	return u.ObjectURL(obj.Key), nil
}

// PresignPut returns a URL the client can PUT the object to directly.
func (u *S3Uploader) PresignPut(ctx context.Context, key, contentType string, expires time.Duration) (string, error) {
	req, err := u.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(expires))
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return req.URL, nil
}

// ObjectURL is the public location of key.
func (u *S3Uploader) ObjectURL(key string) string {
	return objectURL(u.publicBase, u.endpoint, u.bucket, key, u.pathStyle)
}

func objectURL(publicBase, endpoint, bucket, key string, pathStyle bool) string {
	switch {
	case publicBase != "":
		return publicBase + "/" + key
	case endpoint != "" && pathStyle:
		return endpoint + "/" + bucket + "/" + key
	case endpoint != "":
		scheme, host, ok := strings.Cut(endpoint, "://")
		if !ok {
			return endpoint + "/" + bucket + "/" + key
		}
		return scheme + "://" + bucket + "." + host + "/" + key
	default:
		return "https://" + bucket + ".s3.amazonaws.com/" + key
	}
}
