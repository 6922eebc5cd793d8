/*
Package eventlog
File: archive.go
Description:
    Uploads a finished text log to S3 or an S3-compatible store such as MinIO.
*/

package eventlog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ArchiveConfig holds explicit construction parameters for the S3 upload.
// Environment variables (see ArchiveConfigFromEnv):
//
//	OUTBREAK_S3_BUCKET=<bucket> (required)
//	OUTBREAK_S3_REGION=<region> (default us-east-1)
//	OUTBREAK_S3_PREFIX=<key prefix> (optional)
//	OUTBREAK_S3_ENDPOINT=<url> (optional, for MinIO)
//	OUTBREAK_S3_PATH_STYLE=true|false (default false)
//	AWS_ACCESS_KEY_ID / AWS_SECRET_ACCESS_KEY / AWS_SESSION_TOKEN (optional)
type ArchiveConfig struct {
	Region          string
	Bucket          string
	Prefix          string
	Endpoint        string // optional; enables a custom endpoint such as MinIO
	AccessKeyID     string // optional (falls back to default credentials chain)
	SecretAccessKey string // optional
	SessionToken    string // optional
	PathStyle       bool
	HTTPClient      aws.HTTPClient // optional; tests route requests through a fake transport
}

// ArchiveConfigFromEnv reads the OUTBREAK_S3_* variables.
func ArchiveConfigFromEnv() (ArchiveConfig, error) {
	bucket := os.Getenv("OUTBREAK_S3_BUCKET")
	if bucket == "" {
		return ArchiveConfig{}, errors.New("OUTBREAK_S3_BUCKET required for log archiving")
	}
	return ArchiveConfig{
		Bucket:          bucket,
		Region:          os.Getenv("OUTBREAK_S3_REGION"),
		Prefix:          os.Getenv("OUTBREAK_S3_PREFIX"),
		Endpoint:        os.Getenv("OUTBREAK_S3_ENDPOINT"),
		AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
		PathStyle:       strings.EqualFold(os.Getenv("OUTBREAK_S3_PATH_STYLE"), "true"),
	}, nil
}

type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Archive is a File log that is uploaded to S3 once it is finalized.
type Archive struct {
	*File
	client  objectPutter
	bucket  string
	key     string
	timeout time.Duration
}

// NewArchive wraps a file-backed log. The object key is the prefix joined
// with the file's base name.
func NewArchive(ctx context.Context, cfg ArchiveConfig, file *File) (*Archive, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	if file == nil || file.Path() == "" {
		return nil, fmt.Errorf("archive needs a file-backed log")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.PathStyle {
			o.UsePathStyle = true
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.HTTPClient != nil {
			o.HTTPClient = cfg.HTTPClient
		}
	})
	return newArchive(client, cfg.Bucket, archiveKey(cfg.Prefix, file.Path()), file), nil
}

func newArchive(client objectPutter, bucket, key string, file *File) *Archive {
	return &Archive{File: file, client: client, bucket: bucket, key: key, timeout: 2 * time.Minute}
}

func archiveKey(prefix, file string) string {
	base := filepath.Base(file)
	if prefix == "" {
		return base
	}
	return path.Join(strings.Trim(prefix, "/"), base)
}

// Key returns the object key the log is uploaded to.
func (a *Archive) Key() string { return a.key }

// Finalize closes the local file and uploads it.
func (a *Archive) Finalize() error {
	if err := a.File.Finalize(); err != nil {
		return err
	}
	f, err := os.Open(a.File.Path())
	if err != nil {
		return fmt.Errorf("reopen log: %w", err)
	}
	defer func() { _ = f.Close() }()
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(a.key),
		Body:        f,
		ContentType: aws.String("text/plain; charset=utf-8"),
	})
	if err != nil {
		return fmt.Errorf("upload log to s3://%s/%s: %w", a.bucket, a.key, err)
	}
	return nil
}
