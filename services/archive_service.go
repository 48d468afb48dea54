package services

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Archiver keeps a copy of submitted metadata outside the database.
type Archiver interface {
	Archive(ctx context.Context, productID string, metadata []byte) (string, error)
}

// ObjectPutter is the subset of the S3 client used by S3Archive.
type ObjectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archive stores metadata as <prefix>/<productId>.json in a bucket.
type S3Archive struct {
	client ObjectPutter
	bucket string
	prefix string
}

func NewS3Archive(cfg aws.Config, bucket string) *S3Archive {
	return &S3Archive{client: s3.NewFromConfig(cfg), bucket: bucket, prefix: "food-records"}
}

func NewS3ArchiveWithClient(client ObjectPutter, bucket, prefix string) *S3Archive {
	return &S3Archive{client: client, bucket: bucket, prefix: prefix}
}

// Key returns the object key for productID.
func (a *S3Archive) Key(productID string) string {
	if a.prefix == "" {
		return productID + ".json"
	}
	return strings.TrimSuffix(a.prefix, "/") + "/" + productID + ".json"
}

func (a *S3Archive) Archive(ctx context.Context, productID string, metadata []byte) (string, error) {
	key := a.Key(productID)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(metadata),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}
	return key, nil
}
