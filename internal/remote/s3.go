package remote

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"golang.org/x/sync/errgroup"
)

// s3FetchLimit bounds concurrent object operations per batch.
const s3FetchLimit = 8

// S3Config holds connection settings for an S3-compatible endpoint
// (AWS, MinIO, R2, ...).
type S3Config struct {
	BaseEndpoint string
	Region       string
	Bucket       string
	AccessKey    string
	SecretKey    string
	Prefix       string
}

// S3KV implements KV over an S3-compatible bucket: one object per item,
// under an optional key prefix.
type S3KV struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3KV builds an S3-backed KV from static credentials, overriding the
// base endpoint when one is configured (MinIO-style deployments).
func NewS3KV(ctx context.Context, cfg S3Config) (*S3KV, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.BaseEndpoint)
			o.UsePathStyle = true
		}
	})

	return &S3KV{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (s *S3KV) objectKey(key string) string {
	return s.prefix + key
}

func isMissingObject(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NoSuchKey" || code == "NotFound"
	}
	return false
}

func (s *S3KV) Get(ctx context.Context, keys []string) (map[string]string, error) {
	var mu sync.Mutex
	out := make(map[string]string, len(keys))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s3FetchLimit)

	for _, key := range keys {
		g.Go(func() error {
			resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
				Bucket: aws.String(s.bucket),
				Key:    aws.String(s.objectKey(key)),
			})
			if err != nil {
				if isMissingObject(err) {
					return nil
				}
				return err
			}
			defer resp.Body.Close()

			data, err := io.ReadAll(resp.Body)
			if err != nil {
				return err
			}

			mu.Lock()
			out[key] = string(data)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *S3KV) Set(ctx context.Context, items map[string]string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s3FetchLimit)

	for key, value := range items {
		g.Go(func() error {
			_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
				Bucket:      aws.String(s.bucket),
				Key:         aws.String(s.objectKey(key)),
				Body:        bytes.NewReader([]byte(value)),
				ContentType: aws.String("application/json"),
			})
			return err
		})
	}

	return g.Wait()
}

func (s *S3KV) Remove(ctx context.Context, keys []string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s3FetchLimit)

	for _, key := range keys {
		g.Go(func() error {
			_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
				Bucket: aws.String(s.bucket),
				Key:    aws.String(s.objectKey(key)),
			})
			if err != nil && !isMissingObject(err) {
				return err
			}
			return nil
		})
	}

	return g.Wait()
}

var _ KV = (*S3KV)(nil)
