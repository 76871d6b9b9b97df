package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"brandkit/internal/infra/metrics"
)

// S3Options configures an S3-compatible bucket.
type S3Options struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
	// PublicBaseURL is prepended to object keys; when blank the virtual-hosted
	// (or path-style, with a custom endpoint) bucket URL is used.
	PublicBaseURL string
}

type s3Putter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store uploads objects to an S3-compatible bucket.
type S3Store struct {
	bucket  string
	baseURL string
	client  s3Putter
	log     zerolog.Logger
}

// PublicBaseURL is the prefix of every URL returned by Put.
func (s *S3Store) PublicBaseURL() string { return s.baseURL }

// NewS3Store builds a client from static credentials when given, otherwise from the default AWS chain.
func NewS3Store(ctx context.Context, opts S3Options, log zerolog.Logger) (*S3Store, error) {
	bucket := strings.TrimSpace(opts.Bucket)
	if bucket == "" {
		return nil, errors.New("storage: S3 bucket is required")
	}
	region := strings.TrimSpace(opts.Region)
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("storage: load aws config: %w", err)
	}
	endpoint := strings.TrimRight(strings.TrimSpace(opts.Endpoint), "/")
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = opts.UsePathStyle
	})

	baseURL := strings.TrimSpace(opts.PublicBaseURL)
	if baseURL == "" {
		switch {
		case endpoint != "":
			baseURL = endpoint + "/" + bucket
		default:
			baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", bucket, region)
		}
	}
	return newS3Store(bucket, baseURL, client, log), nil
}

func newS3Store(bucket, baseURL string, client s3Putter, log zerolog.Logger) *S3Store {
	return &S3Store{
		bucket:  bucket,
		baseURL: baseURL,
		client:  client,
		log:     log.With().Str("component", "s3-storage").Logger(),
	}
}

// Put uploads data under key and returns its public URL.
func (s *S3Store) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	mime, err := DetectImageType(data, contentType)
	if err != nil {
		metrics.RecordUpload("s3", "rejected")
		return "", err
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(cleanKey),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(mime),
	})
	if err != nil {
		metrics.RecordUpload("s3", "error")
		s.log.Error().Err(err).Str("key", cleanKey).Msg("put object failed")
		return "", fmt.Errorf("storage: put object: %w", err)
	}
	metrics.RecordUpload("s3", "success")
	s.log.Debug().Str("key", cleanKey).Int("bytes", len(data)).Msg("object stored")
	return publicURL(s.baseURL, cleanKey), nil
}
