// Package objectstore is the MinIO / S3 client behind the remote profile
// store and the snapshot archive.
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/kadirbelkuyu/schemasync/internal/errs"
)

// Bucket is the subset of object storage the rest of schemasync needs.
type Bucket interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

type Config struct {
	Endpoint  string `yaml:"endpoint" json:"endpoint"`
	AccessKey string `yaml:"access_key" json:"access_key"`
	SecretKey string `yaml:"secret_key" json:"-"`
	Bucket    string `yaml:"bucket" json:"bucket"`
	Region    string `yaml:"region" json:"region"`
	UseSSL    bool   `yaml:"use_ssl" json:"use_ssl"`
}

// ConfigFromEnv reads SCHEMASYNC_S3_* variables. ok is false when no
// endpoint is set.
func ConfigFromEnv() (cfg Config, ok bool) {
	cfg = Config{
		Endpoint:  os.Getenv("SCHEMASYNC_S3_ENDPOINT"),
		AccessKey: os.Getenv("SCHEMASYNC_S3_ACCESS_KEY"),
		SecretKey: os.Getenv("SCHEMASYNC_S3_SECRET_KEY"),
		Bucket:    os.Getenv("SCHEMASYNC_S3_BUCKET"),
		Region:    os.Getenv("SCHEMASYNC_S3_REGION"),
	}
	cfg.UseSSL, _ = strconv.ParseBool(os.Getenv("SCHEMASYNC_S3_USE_SSL"))
	return cfg, cfg.Endpoint != ""
}

func (c Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Endpoint) == "":
		return errs.New(errs.ErrKindConfiguration, "object storage endpoint is required")
	case strings.TrimSpace(c.Bucket) == "":
		return errs.New(errs.ErrKindConfiguration, "object storage bucket is required")
	}
	return nil
}

// Client is a Bucket backed by minio-go. It is safe for concurrent use.
type Client struct {
	client *miniogo.Client
	bucket string
}

// New builds a client; no request is made until the first Get or Put.
func New(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConfiguration, "failed to create object storage client", err)
	}
	return &Client{client: client, bucket: cfg.Bucket}, nil
}

func (c *Client) BucketName() string {
	return c.bucket
}

func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := c.client.GetObject(ctx, c.bucket, key, miniogo.GetObjectOptions{})
	if err != nil {
		return nil, mapError(err, "failed to get "+key)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, mapError(err, "failed to read "+key)
	}
	return data, nil
}

func (c *Client) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := c.client.PutObject(ctx, c.bucket, key, bytes.NewReader(data), int64(len(data)),
		miniogo.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return mapError(err, "failed to put "+key)
	}
	return nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (c *Client) EnsureBucket(ctx context.Context) error {
	exists, err := c.client.BucketExists(ctx, c.bucket)
	if err != nil {
		return mapError(err, "failed to check bucket")
	}
	if exists {
		return nil
	}
	if err := c.client.MakeBucket(ctx, c.bucket, miniogo.MakeBucketOptions{}); err != nil {
		return mapError(err, "failed to create bucket")
	}
	return nil
}

// mapError translates a MinIO SDK error into a *errs.Error.
func mapError(err error, msg string) error {
	if err == nil {
		return nil
	}

	var resp miniogo.ErrorResponse
	if errors.As(err, &resp) {
		switch resp.Code {
		case "NoSuchBucket", "NoSuchKey":
			return errs.Wrap(errs.ErrKindNotFound, msg, err)
		case "InvalidBucketName", "InvalidObjectName", "KeyTooLongError":
			return errs.Wrap(errs.ErrKindInvalidInput, msg, err)
		}
		switch resp.StatusCode {
		case http.StatusNotFound:
			return errs.Wrap(errs.ErrKindNotFound, msg, err)
		case http.StatusBadRequest:
			return errs.Wrap(errs.ErrKindInvalidInput, msg, err)
		}
	}

	return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
}
