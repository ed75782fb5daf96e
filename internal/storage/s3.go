package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// s3API is the subset of the S3 client the cache uses.
type s3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Cache struct {
	client s3API
	bucket string
	ttl    time.Duration
	now    func() time.Time
}

// NewS3Cache builds a client from the default AWS credential chain.
func NewS3Cache(ctx context.Context, bucket string, ttl time.Duration) (*S3Cache, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: load aws config: %v", ErrStorageInit, err)
	}
	return newS3Cache(s3.NewFromConfig(awsCfg), bucket, ttl), nil
}

func newS3Cache(client s3API, bucket string, ttl time.Duration) *S3Cache {
	return &S3Cache{
		client: client,
		bucket: bucket,
		ttl:    ttl,
		now:    time.Now,
	}
}

func (c *S3Cache) Close() error {
	return nil
}

func (c *S3Cache) Put(ctx context.Context, key string, value any) error {
	data, err := encodeEntry(value, c.now())
	if err != nil {
		return err
	}

	_, err = c.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", c.bucket, key, err)
	}
	return nil
}

func (c *S3Cache) Get(ctx context.Context, key string, out any) error {
	obj, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return ErrCacheMiss
		}
		return fmt.Errorf("get s3://%s/%s: %w", c.bucket, key, err)
	}
	defer obj.Body.Close()

	data, err := io.ReadAll(obj.Body)
	if err != nil {
		return fmt.Errorf("read s3://%s/%s: %w", c.bucket, key, err)
	}
	return decodeEntry(data, c.ttl, c.now(), out)
}
