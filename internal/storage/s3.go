package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

// s3API is the subset of *s3.Client used by S3Store.
type s3API interface {
	manager.UploadAPIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Config configures an S3Store.
type S3Config struct {
	// Endpoint is an optional base URL for S3-compatible services. Empty
	// means AWS.
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	PathStyle bool
	// MaxRetries overrides the SDK retryer's attempt count when positive.
	MaxRetries int
	// Timeout bounds Delete, List and the open phase of Get; zero disables
	// it.
	Timeout time.Duration
	// UploadTimeout bounds a whole Put, body transfer included; zero
	// disables it.
	UploadTimeout time.Duration
}

// S3Store implements ObjectStore with the AWS SDK. Uploads go through the
// SDK upload manager so bodies of unknown length are streamed in bounded
// parts instead of being read into memory.
type S3Store struct {
	client        s3API
	uploader      *manager.Uploader
	bucket        string
	timeout       time.Duration
	uploadTimeout time.Duration
}

// NewS3Store builds an S3 client from cfg. Static credentials are used when
// both keys are set; otherwise the default AWS credential chain applies.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3: bucket is required")
	}
	if cfg.Region == "" {
		return nil, errors.New("s3: region is required")
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	if cfg.MaxRetries > 0 {
		opts = append(opts, config.WithRetryMaxAttempts(cfg.MaxRetries))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})

	st := newS3Store(client, cfg.Bucket, cfg.Timeout)
	st.uploadTimeout = cfg.UploadTimeout
	return st, nil
}

func newS3Store(client s3API, bucket string, timeout time.Duration) *S3Store {
	return &S3Store{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   bucket,
		timeout:  timeout,
	}
}

// Put uploads in.Body through the upload manager. Only UploadTimeout
// applies, since the body arrives at the client's pace.
func (s *S3Store) Put(ctx context.Context, in PutInput) (*PutResult, error) {
	if err := validateKey("put", in.Key); err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx, s.uploadTimeout)
	defer cancel()

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(in.Key),
		Body:   in.Body,
	}
	if in.ContentType != "" {
		input.ContentType = aws.String(in.ContentType)
	}

	out, err := s.uploader.Upload(ctx, input)
	if err != nil {
		return nil, s3Error("put", in.Key, err)
	}

	return &PutResult{
		Key:      in.Key,
		Location: out.Location,
		ETag:     aws.ToString(out.ETag),
		Size:     in.Size,
	}, nil
}

// Get opens the object. The returned body streams directly from the
// response.
func (s *S3Store) Get(ctx context.Context, key string) (*ObjectReader, error) {
	if err := validateKey("get", key); err != nil {
		return nil, err
	}

	ctx, opened, cancel := openWindow(ctx, s.timeout)

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	opened()
	if err != nil {
		cancel()
		return nil, s3Error("get", key, err)
	}

	size := int64(-1)
	if out.ContentLength != nil {
		size = *out.ContentLength
	}

	return &ObjectReader{
		Body: &cancelOnClose{ReadCloser: out.Body, cancel: cancel},
		Info: Object{
			Key:          key,
			Size:         size,
			LastModified: aws.ToTime(out.LastModified),
			ContentType:  aws.ToString(out.ContentType),
			ETag:         aws.ToString(out.ETag),
		},
	}, nil
}

// Delete removes the object. S3 reports success for absent keys.
func (s *S3Store) Delete(ctx context.Context, key string) error {
	if err := validateKey("delete", key); err != nil {
		return err
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return s3Error("delete", key, err)
	}
	return nil
}

// List issues one ListObjectsV2 request; S3 returns keys in ascending
// UTF-8 binary order.
func (s *S3Store) List(ctx context.Context, in ListInput) (*ListResult, error) {
	limit, err := validateList(in)
	if err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	input := &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		MaxKeys: aws.Int32(int32(min(limit, 1<<31-1))),
	}
	if in.Prefix != "" {
		input.Prefix = aws.String(in.Prefix)
	}

	out, err := s.client.ListObjectsV2(ctx, input)
	if err != nil {
		return nil, s3Error("list", in.Prefix, err)
	}

	objects := make([]Object, 0, len(out.Contents))
	for _, obj := range out.Contents {
		if len(objects) == limit {
			break
		}
		objects = append(objects, Object{
			Key:          aws.ToString(obj.Key),
			Size:         aws.ToInt64(obj.Size),
			LastModified: aws.ToTime(obj.LastModified),
			ETag:         aws.ToString(obj.ETag),
		})
	}

	return &ListResult{
		Objects:   objects,
		Count:     len(objects),
		Truncated: aws.ToBool(out.IsTruncated) || len(out.Contents) > limit,
	}, nil
}

// s3Error normalizes an AWS SDK error.
func s3Error(op, key string, err error) *Error {
	return newError(op, key, classifyS3(err), err)
}

func classifyS3(err error) Kind {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if k, ok := kindFromCode(apiErr.ErrorCode()); ok {
			return k
		}
	}

	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		if k := kindFromStatus(respErr.HTTPStatusCode()); k != KindUnknown {
			return k
		}
	}

	if k, ok := transportKind(err); ok {
		return k
	}
	return KindUnknown
}

// Ensure S3Store implements ObjectStore.
var _ ObjectStore = (*S3Store)(nil)
