package secretstore

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config configures the S3-backed secret store.
type S3Config struct {
	Bucket   string
	Region   string
	Endpoint string // optional custom endpoint (MinIO, LocalStack)
	Prefix   string
	Envelope *Envelope // optional client-side encryption before upload
}

// S3Client implements Client against an S3-compatible object store. Payloads
// are stored one object per reference, at key <prefix>secrets/<kind>/<name>/<id>.
type S3Client struct {
	client   *s3.Client
	bucket   string
	prefix   string
	envelope *Envelope
}

// NewS3Client builds an S3Client from cfg.
func NewS3Client(ctx context.Context, cfg S3Config) (*S3Client, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, &Error{Kind: ErrSecretStoreError, Msg: fmt.Sprintf("loading AWS config: %v", err)}
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Client{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix, envelope: cfg.Envelope}, nil
}

func (c *S3Client) objectKey(kind, name, id string) string {
	return fmt.Sprintf("%ssecrets/%s/%s/%s", c.prefix, kind, name, id)
}

// Store encrypts (if an Envelope is configured) and uploads payload, and
// returns a reference URL recognized by IsReference.
func (c *S3Client) Store(ctx context.Context, kind, name string, payload []byte) (string, error) {
	id := NewReferenceID()
	key := c.objectKey(kind, name, id)

	body := payload
	if c.envelope != nil {
		sealed, err := c.envelope.Seal(payload)
		if err != nil {
			return "", &Error{Kind: ErrSecretStoreError, Msg: err.Error()}
		}
		body = sealed
	}

	_, err := c.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/octet-stream"),
	})
	if err != nil {
		return "", &Error{Kind: ErrSecretStoreError, Msg: fmt.Sprintf("s3 put: %v", err), Retry: true}
	}

	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", c.bucket, key), nil
}

// Fetch downloads and, if an Envelope is configured, decrypts the object
// named by reference.
func (c *S3Client) Fetch(ctx context.Context, reference string) ([]byte, error) {
	key, err := keyFromReference(c.bucket, reference)
	if err != nil {
		return nil, &Error{Kind: ErrSecretStoreError, Msg: err.Error()}
	}

	out, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, &Error{Kind: ErrSecretStoreError, Msg: fmt.Sprintf("s3 get: %v", err), Retry: true}
	}
	defer func() { _ = out.Body.Close() }()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, &Error{Kind: ErrSecretStoreError, Msg: err.Error()}
	}

	if c.envelope != nil {
		plaintext, err := c.envelope.Open(body)
		if err != nil {
			return nil, &Error{Kind: ErrSecretStoreError, Msg: err.Error()}
		}
		return plaintext, nil
	}
	return body, nil
}

func keyFromReference(bucket, reference string) (string, error) {
	prefix := fmt.Sprintf("https://%s.s3.amazonaws.com/", bucket)
	if len(reference) <= len(prefix) || reference[:len(prefix)] != prefix {
		return "", fmt.Errorf("reference %q does not belong to bucket %q", reference, bucket)
	}
	return reference[len(prefix):], nil
}
