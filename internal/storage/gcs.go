package storage

import (
	"context"
	"fmt"
	"net/http"
	"time"

	gcs "cloud.google.com/go/storage"
)

// Compile-time assertion that GCS satisfies the Gateway interface.
var _ Gateway = (*GCS)(nil)

// GCS is the Google Cloud Storage implementation of Gateway. Signed URLs
// use the V4 scheme and are scoped to a single object, method and content
// type; the bucket rejects writes after the URL expires, so the service
// does not track authorization expiry itself.
type GCS struct {
	client *gcs.Client
	bucket string
	ttl    time.Duration
}

// NewGCS creates a gateway for the given bucket. Credentials are resolved
// from the environment (Application Default Credentials).
func NewGCS(ctx context.Context, bucket string, uploadURLTTL time.Duration) (*GCS, error) {
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	return &GCS{
		client: client,
		bucket: bucket,
		ttl:    uploadURLTTL,
	}, nil
}

// SignUpload implements Gateway.SignUpload.
func (g *GCS) SignUpload(_ context.Context, object, contentType string) (string, error) {
	opts := &gcs.SignedURLOptions{
		Scheme:      gcs.SigningSchemeV4,
		Method:      http.MethodPut,
		Expires:     time.Now().Add(g.ttl),
		ContentType: contentType,
	}

	url, err := g.client.Bucket(g.bucket).SignedURL(object, opts)
	if err != nil {
		return "", fmt.Errorf("failed to sign upload URL for %s: %w", object, err)
	}

	return url, nil
}

// Write implements Gateway.Write.
func (g *GCS) Write(ctx context.Context, object, contentType string, data []byte) error {
	w := g.client.Bucket(g.bucket).Object(object).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write object %s: %w", object, err)
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finalize object %s: %w", object, err)
	}

	return nil
}

// BlobPath implements Gateway.BlobPath.
func (g *GCS) BlobPath(object string) string {
	return "gs://" + g.bucket + "/" + object
}

// Close releases the underlying storage client.
func (g *GCS) Close() error {
	return g.client.Close()
}
