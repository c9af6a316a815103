// Package s3uploader stores listing images in an S3 bucket
package s3uploader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/housinglord/housing-lord/models"
)

type Config struct {
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	// Prefix is prepended to every object key
	Prefix string
	// Endpoint overrides the AWS endpoint, e.g. for MinIO. Path style
	// addressing is used when set.
	Endpoint string
	// PublicBaseURL is where uploaded objects are served from. Defaults to
	// the bucket's virtual-hosted URL.
	PublicBaseURL string
}

type Uploader struct {
	client  *s3.Client
	bucket  string
	prefix  string
	baseURL string
}

func New(ctx context.Context, cfg Config) (*Uploader, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}

	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}

	if cfg.AccessKey != "" {
		creds := credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
		opts = append(opts, config.WithCredentialsProvider(creds))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	base := cfg.PublicBaseURL
	if base == "" {
		if cfg.Endpoint != "" {
			base = strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
		} else {
			base = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
		}
	}

	return &Uploader{
		client:  client,
		bucket:  cfg.Bucket,
		prefix:  strings.Trim(cfg.Prefix, "/"),
		baseURL: strings.TrimRight(base, "/"),
	}, nil
}

// UploadImage stores body under a fresh key and returns a reference to it
func (u *Uploader) UploadImage(ctx context.Context, filename, contentType string, body io.Reader) (models.ImageRef, error) {
	key := u.objectKey(filename)

	// signing over plain HTTP needs a seekable payload
	rs, ok := body.(io.ReadSeeker)
	if !ok {
		data, err := io.ReadAll(body)
		if err != nil {
			return models.ImageRef{}, fmt.Errorf("read image: %w", err)
		}

		rs = bytes.NewReader(data)
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
		Body:   rs,
	}

	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := u.client.PutObject(ctx, input); err != nil {
		return models.ImageRef{}, fmt.Errorf("put object %s: %w", key, err)
	}

	return models.NewImageRef("s3-"+key, u.objectURL(key)), nil
}

func (u *Uploader) objectKey(filename string) string {
	ext := strings.ToLower(path.Ext(path.Base(filename)))

	key := uuid.NewString() + ext
	if u.prefix != "" {
		key = u.prefix + "/" + key
	}

	return key
}

func (u *Uploader) objectURL(key string) string {
	parts := strings.Split(key, "/")
	for i := range parts {
		parts[i] = url.PathEscape(parts[i])
	}

	return u.baseURL + "/" + strings.Join(parts, "/")
}
