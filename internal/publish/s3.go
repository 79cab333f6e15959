package publish

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/goldfish-inc/evalita-prep/internal/config"
)

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Publisher uploads converted files to a bucket.
type Publisher struct {
	client objectPutter
	bucket string
	prefix string
	logger *log.Logger
}

// NewS3Client builds a client from cfg. Explicit keys take precedence over
// the default credential chain; a custom endpoint switches to path-style
// addressing.
func NewS3Client(ctx context.Context, cfg config.S3Config) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AWSAccessKey != "" && cfg.AWSSecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKey, cfg.AWSSecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		// For MinIO/testing
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}
	return s3.NewFromConfig(awsCfg, s3Opts...), nil
}

// New returns a Publisher writing under prefix in bucket.
func New(client objectPutter, bucket, prefix string, logger *log.Logger) *Publisher {
	return &Publisher{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/"), logger: logger}
}

// Publish uploads files under a key derived from the run and returns the keys
// written. It stops at the first failed upload.
func (p *Publisher) Publish(ctx context.Context, runID uuid.UUID, dataset, split string, files []string, t time.Time) ([]string, error) {
	keys := make([]string, 0, len(files))
	for _, path := range files {
		key := ShardKey(p.prefix, dataset, split, runID, t, filepath.Base(path))
		if err := p.put(ctx, path, key); err != nil {
			return keys, err
		}
		p.logger.Printf("Uploaded %s to s3://%s/%s", path, p.bucket, key)
		keys = append(keys, key)
	}
	return keys, nil
}

func (p *Publisher) put(ctx context.Context, path, key string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType(path)),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", path, err)
	}
	return nil
}

// ShardKey lays files out as
// <prefix>/dataset-<name>/split-<split>/YYYY/MM/DD/run-<id>/<file>.
func ShardKey(prefix, dataset, split string, runID uuid.UUID, t time.Time, name string) string {
	ts := t.UTC()
	key := fmt.Sprintf(
		"dataset-%s/split-%s/%s/%s/%s/run-%s/%s",
		safePathComponent(dataset),
		safePathComponent(split),
		ts.Format("2006"),
		ts.Format("01"),
		ts.Format("02"),
		runID,
		safePathComponent(name),
	)
	if prefix == "" {
		return key
	}
	return prefix + "/" + key
}

func safePathComponent(value string) string {
	value = strings.ReplaceAll(value, "/", "-")
	value = strings.ReplaceAll(value, " ", "_")
	if value == "" {
		return "unknown"
	}
	return value
}

func contentType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl":
		return "application/x-ndjson"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/octet-stream"
	}
}
