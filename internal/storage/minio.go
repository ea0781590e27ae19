package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// DefaultPartSize is the multipart chunk used for uploads of unknown
// length. minio-go otherwise sizes parts for a 5 TiB object and allocates
// one such buffer per upload.
const DefaultPartSize = 16 << 20

// MinioConfig configures a MinioStore.
type MinioConfig struct {
	// Endpoint is host[:port] without a scheme, e.g. "localhost:9000".
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	PathStyle bool
	// EnsureBucket creates the bucket at start-up when it is missing.
	EnsureBucket bool
	// Timeout bounds Delete, List and the open phase of Get; zero disables
	// it.
	Timeout time.Duration
	// UploadTimeout bounds a whole Put, body transfer included; zero
	// disables it.
	UploadTimeout time.Duration
	// PartSize is the multipart chunk for uploads of unknown length.
	// Zero means DefaultPartSize; minio-go rejects values under 5 MiB.
	PartSize uint64
	// MaxRetries overrides minio-go's retry count when positive.
	MaxRetries int
}

// minioAPI is the subset of *minio.Client used by MinioStore.
type minioAPI interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucket, key string, opts minio.GetObjectOptions) (minioObject, error)
	RemoveObject(ctx context.Context, bucket, key string, opts minio.RemoveObjectOptions) error
	ListObjects(ctx context.Context, bucket string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
}

// minioObject is the part of *minio.Object MinioStore reads.
type minioObject interface {
	io.ReadCloser
	Stat() (minio.ObjectInfo, error)
}

// minioClient adapts *minio.Client to minioAPI.
type minioClient struct {
	*minio.Client
}

func (c minioClient) GetObject(ctx context.Context, bucket, key string, opts minio.GetObjectOptions) (minioObject, error) {
	obj, err := c.Client.GetObject(ctx, bucket, key, opts)
	if err != nil {
		return nil, err
	}
	return obj, nil
}

// MinioStore implements ObjectStore using a MinIO (or any S3-compatible)
// backend.
type MinioStore struct {
	client        minioAPI
	bucket        string
	timeout       time.Duration
	uploadTimeout time.Duration
	partSize      uint64
}

// NewMinioStore creates a MinIO client and, if requested, makes sure the
// bucket exists.
func NewMinioStore(ctx context.Context, cfg MinioConfig) (*MinioStore, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("minio: bucket is required")
	}

	client, err := minio.New(strings.TrimRight(cfg.Endpoint, "/"), minioOptions(cfg))
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	s := newMinioStore(minioClient{client}, cfg)

	if cfg.EnsureBucket {
		if err := s.ensureBucket(ctx, cfg.Region); err != nil {
			return nil, err
		}
	}

	return s, nil
}

func minioOptions(cfg MinioConfig) *minio.Options {
	opts := &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	}
	if cfg.PathStyle {
		opts.BucketLookup = minio.BucketLookupPath
	}
	if cfg.MaxRetries > 0 {
		opts.MaxRetries = cfg.MaxRetries
	}
	return opts
}

func newMinioStore(client minioAPI, cfg MinioConfig) *MinioStore {
	partSize := cfg.PartSize
	if partSize == 0 {
		partSize = DefaultPartSize
	}
	return &MinioStore{
		client:        client,
		bucket:        cfg.Bucket,
		timeout:       cfg.Timeout,
		uploadTimeout: cfg.UploadTimeout,
		partSize:      partSize,
	}
}

func (s *MinioStore) ensureBucket(ctx context.Context, region string) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket existence: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		return fmt.Errorf("create bucket %q: %w", s.bucket, err)
	}
	slog.InfoContext(ctx, "storage: created bucket", slog.String("bucket", s.bucket))
	return nil
}

// Put streams in.Body to MinIO. With a known size the body is sent as-is;
// with size -1 it is uploaded in parts of s.partSize, so memory per upload
// stays at one part.
func (s *MinioStore) Put(ctx context.Context, in PutInput) (*PutResult, error) {
	if err := validateKey("put", in.Key); err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx, s.uploadTimeout)
	defer cancel()

	opts := minio.PutObjectOptions{ContentType: in.ContentType}
	if in.Size < 0 {
		opts.PartSize = s.partSize
	}

	info, err := s.client.PutObject(ctx, s.bucket, in.Key, in.Body, in.Size, opts)
	if err != nil {
		return nil, minioError("put", in.Key, err)
	}

	return &PutResult{
		Key:      in.Key,
		Location: info.Location,
		ETag:     info.ETag,
		Size:     info.Size,
	}, nil
}

// Get opens the object and stats it so a missing key is reported before
// any bytes are streamed.
func (s *MinioStore) Get(ctx context.Context, key string) (*ObjectReader, error) {
	if err := validateKey("get", key); err != nil {
		return nil, err
	}

	ctx, opened, cancel := openWindow(ctx, s.timeout)

	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		cancel()
		return nil, minioError("get", key, err)
	}

	st, err := obj.Stat()
	opened()
	if err != nil {
		_ = obj.Close()
		cancel()
		return nil, minioError("get", key, err)
	}

	return &ObjectReader{
		Body: &cancelOnClose{ReadCloser: obj, cancel: cancel},
		Info: Object{
			Key:          key,
			Size:         st.Size,
			LastModified: st.LastModified,
			ContentType:  st.ContentType,
			ETag:         st.ETag,
		},
	}, nil
}

// Delete removes the object. MinIO reports success for absent keys.
func (s *MinioStore) Delete(ctx context.Context, key string) error {
	if err := validateKey("delete", key); err != nil {
		return err
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return minioError("delete", key, err)
	}
	return nil
}

// List asks for one key beyond the limit so truncation can be reported,
// then cancels the listing channel so no further pages are requested.
func (s *MinioStore) List(ctx context.Context, in ListInput) (*ListResult, error) {
	limit, err := validateList(in)
	if err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	res := &ListResult{Objects: make([]Object, 0, min(limit, 64))}
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    in.Prefix,
		Recursive: true,
		MaxKeys:   limit + 1,
	}) {
		if obj.Err != nil {
			return nil, minioError("list", in.Prefix, obj.Err)
		}
		if len(res.Objects) == limit {
			res.Truncated = true
			break
		}
		res.Objects = append(res.Objects, Object{
			Key:          obj.Key,
			Size:         obj.Size,
			LastModified: obj.LastModified,
			ContentType:  obj.ContentType,
			ETag:         obj.ETag,
		})
	}

	res.Count = len(res.Objects)
	return res, nil
}

// minioError normalizes a minio-go error.
func minioError(op, key string, err error) *Error {
	return newError(op, key, classifyMinio(err), err)
}

func classifyMinio(err error) Kind {
	if k, ok := transportKind(err); ok {
		return k
	}

	resp := minio.ToErrorResponse(err)
	if k, ok := kindFromCode(resp.Code); ok {
		return k
	}
	if resp.StatusCode != 0 {
		return kindFromStatus(resp.StatusCode)
	}
	return KindUnknown
}

// Ensure MinioStore implements ObjectStore.
var _ ObjectStore = (*MinioStore)(nil)
