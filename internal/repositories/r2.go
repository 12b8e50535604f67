package repositories

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// ArtifactStore keeps compiled contract artifacts in an S3-compatible bucket
// (Cloudflare R2 in production).
type ArtifactStore struct {
	client *s3.Client
	bucket string
}

// R2Endpoint is the S3 API endpoint of a Cloudflare account.
func R2Endpoint(accountID string) string {
	return fmt.Sprintf("https://%s.r2.cloudflarestorage.com", accountID)
}

// NewArtifactStore builds a path-style S3 client with static credentials.
func NewArtifactStore(accessKey, secretKey, endpoint, bucketName, region string) *ArtifactStore {
	cfg := aws.Config{
		Credentials: credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		Region:      region,
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})

	return &ArtifactStore{client: client, bucket: bucketName}
}

// ArtifactKey is the object key for a contract's compiled output.
func ArtifactKey(wallet string, contractID uint) string {
	return fmt.Sprintf("artifacts/%s/%d.json", wallet, contractID)
}

// Put uploads body under key as JSON.
func (s *ArtifactStore) Put(ctx context.Context, key string, body []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// PresignGet creates a presigned URL for downloading key.
func (s *ArtifactStore) PresignGet(ctx context.Context, key string, expires time.Duration) (string, error) {
	presigner := s3.NewPresignClient(s.client)
	req, err := presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expires))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}

// Exists checks if a given object key exists in the bucket.
// Returns true if the object exists, false if not, and an error if something went wrong.
func (s *ArtifactStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *s3types.NotFound
		if errors.As(err, &nsk) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
