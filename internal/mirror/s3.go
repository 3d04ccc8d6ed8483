package mirror

import (
	"context"
	"net/http"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Client is an aws-sdk-go-v2-backed S3Fetcher for organizations that keep
// an air-gapped mirror of the upstream repository in a private bucket,
// configured via an s3://bucket/prefix entry in trusted_mirrors or
// fallback_mirrors.
type S3Client struct {
	client *s3.Client
}

// NewS3Client loads the default AWS credential chain (environment, shared
// config file, instance profile) the same way a-h-depot's S3 storage layer
// does and wraps it for mirror use.
func NewS3Client(ctx context.Context) (*S3Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	return &S3Client{client: s3.NewFromConfig(cfg)}, nil
}

// GetObject fetches bucket/key and adapts the result to an *http.Response
// so callers that already speak HTTP (HashStore, Pipeline) don't need a
// separate code path for s3:// mirrors.
func (c *S3Client) GetObject(ctx context.Context, bucket, key string) (*http.Response, error) {
	out, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	})
	if err != nil {
		return nil, err
	}
	resp := &http.Response{
		StatusCode: http.StatusOK,
		Body:       out.Body,
		Header:     make(http.Header),
	}
	if out.ContentLength != nil {
		resp.ContentLength = *out.ContentLength
	}
	return resp, nil
}
