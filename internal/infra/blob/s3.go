// File: internal/infra/blob/s3.go
package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"photo-enhance-pipeline/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.BlobStore = (*S3Store)(nil)

type S3Config struct {
	Region       string
	Endpoint     string // custom endpoint for MinIO and friends
	PathStyle    bool
	MaxDimension int
	PresignTTL   time.Duration
}

// S3Store implements BlobStore against S3 or any S3-compatible endpoint.
type S3Store struct {
	client  *s3.Client
	presign *s3.PresignClient
	cfg     S3Config
	log     zerolog.Logger
}

func NewS3Store(ctx context.Context, cfg S3Config, logger zerolog.Logger) (*S3Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.Endpoint != "" {
		resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, _ ...interface{}) (aws.Endpoint, error) {
			if service == s3.ServiceID {
				return aws.Endpoint{
					URL:               cfg.Endpoint,
					HostnameImmutable: cfg.PathStyle,
					SigningRegion:     cfg.Region,
					Source:            aws.EndpointSourceCustom,
				}, nil
			}
			return aws.Endpoint{}, &aws.EndpointNotFoundError{}
		})
		opts = append(opts, awsconfig.WithEndpointResolverWithOptions(resolver))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
	})
	return &S3Store{
		client:  client,
		presign: s3.NewPresignClient(client),
		cfg:     cfg,
		log:     logger.With().Str("component", "s3-store").Logger(),
	}, nil
}

func (s *S3Store) OptimizeAndStore(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) error {
	obj, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(srcBucket),
		Key:    aws.String(srcKey),
	})
	if err != nil {
		return fmt.Errorf("get object %s/%s: %w", srcBucket, srcKey, err)
	}
	defer obj.Body.Close()
	data, err := io.ReadAll(obj.Body)
	if err != nil {
		return fmt.Errorf("read object %s/%s: %w", srcBucket, srcKey, err)
	}

	optimized, contentType, err := optimize(data, s.cfg.MaxDimension)
	if err != nil {
		return err
	}
	s.log.Debug().
		Str("src", srcBucket+"/"+srcKey).
		Int("in_bytes", len(data)).
		Int("out_bytes", len(optimized)).
		Msg("optimized upload")
	return s.Put(ctx, dstBucket, dstKey, optimized, contentType)
}

func (s *S3Store) Copy(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) error {
	_, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(dstBucket),
		Key:        aws.String(dstKey),
		CopySource: aws.String(fmt.Sprintf("%s/%s", srcBucket, url.PathEscape(srcKey))),
	})
	if err != nil {
		return fmt.Errorf("copy object %s/%s: %w", srcBucket, srcKey, err)
	}
	return nil
}

func (s *S3Store) Put(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("put object %s/%s: %w", bucket, key, err)
	}
	return nil
}

func (s *S3Store) Delete(ctx context.Context, bucket, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object %s/%s: %w", bucket, key, err)
	}
	return nil
}

func (s *S3Store) PresignedDownloadURL(ctx context.Context, bucket, key string) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.cfg.PresignTTL))
	if err != nil {
		return "", fmt.Errorf("presign %s/%s: %w", bucket, key, err)
	}
	return req.URL, nil
}
