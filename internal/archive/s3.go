// Package archive stores raw crawl payloads in S3-compatible object
// storage, so a document can be re-normalized later without refetching it.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/wanderdesk/wanderdesk/pkg/models"
)

// Config holds S3/MinIO client configuration.
type Config struct {
	Endpoint        string // "localhost:9000" for MinIO
	Bucket          string // "wanderdesk"
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
}

// Client wraps the MinIO/S3 client for crawl archiving.
type Client struct {
	minioClient *minio.Client
	bucket      string
}

// New creates a new S3/MinIO client.
func New(config Config) (*Client, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if config.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}

	minioClient, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKeyID, config.SecretAccessKey, ""),
		Secure: config.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &Client{
		minioClient: minioClient,
		bucket:      config.Bucket,
	}, nil
}

// EnsureBucket creates the bucket if it doesn't exist.
func (c *Client) EnsureBucket(ctx context.Context) error {
	exists, err := c.minioClient.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if exists {
		return nil
	}

	err = c.minioClient.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{})
	if err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// RunMetadata summarizes one crawl run under its prefix.
type RunMetadata struct {
	Source    string   `json:"source"`
	Timestamp string   `json:"timestamp"`
	ItemCount int      `json:"item_count"`
	URLs      []string `json:"urls"`
}

// NewRunPrefix generates a unique object prefix for one crawl run:
// crawls/{source}/{timestamp}-{shortid}.
func NewRunPrefix(source string) string {
	timestamp := time.Now().UTC().Format("2006-01-02T15-04-05")
	shortID := uuid.NewString()[:8]
	return fmt.Sprintf("crawls/%s/%s-%s", source, timestamp, shortID)
}

// PutRaw archives one fetched document as JSON under the run prefix,
// keyed by the document's URL hash.
func (c *Client) PutRaw(ctx context.Context, prefix string, doc models.RawDocument) error {
	objectName := path.Join(prefix, "items", models.DocumentID(doc.URL)+".json")

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal raw document: %w", err)
	}

	reader := bytes.NewReader(data)
	_, err = c.minioClient.PutObject(ctx, c.bucket, objectName, reader, int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("failed to put raw document: %w", err)
	}
	return nil
}

// PutRunMetadata writes the run summary JSON under the prefix.
func (c *Client) PutRunMetadata(ctx context.Context, prefix string, meta RunMetadata) error {
	objectName := path.Join(prefix, "metadata.json")

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	reader := bytes.NewReader(data)
	_, err = c.minioClient.PutObject(ctx, c.bucket, objectName, reader, int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("failed to put metadata: %w", err)
	}
	return nil
}

// GetRaw reads an archived document back by URL.
func (c *Client) GetRaw(ctx context.Context, prefix, url string) (models.RawDocument, error) {
	objectName := path.Join(prefix, "items", models.DocumentID(url)+".json")

	object, err := c.minioClient.GetObject(ctx, c.bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return models.RawDocument{}, fmt.Errorf("failed to get raw document: %w", err)
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		return models.RawDocument{}, fmt.Errorf("failed to read raw document: %w", err)
	}

	var doc models.RawDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return models.RawDocument{}, fmt.Errorf("failed to unmarshal raw document: %w", err)
	}
	return doc, nil
}

// ListRuns returns the run prefixes recorded for a source, most recent
// last.
func (c *Client) ListRuns(ctx context.Context, source string) ([]string, error) {
	base := "crawls/" + source + "/"
	var prefixes []string

	objectCh := c.minioClient.ListObjects(ctx, c.bucket, minio.ListObjectsOptions{
		Prefix: base,
	})
	for object := range objectCh {
		if object.Err != nil {
			return nil, fmt.Errorf("failed to list runs: %w", object.Err)
		}
		prefixes = append(prefixes, object.Key)
	}
	return prefixes, nil
}

// Bucket returns the bucket name.
func (c *Client) Bucket() string {
	return c.bucket
}
