// Package gateway orchestrates the file operations exposed over HTTP:
// it derives keys for uploads, calls the object store, and maps store
// outcomes onto the response contract.
package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/radif/filegateway/internal/keys"
	"github.com/radif/filegateway/internal/storage"
)

// List bounds applied when the caller omits or oversizes max_keys.
const (
	DefaultListKeys = 100
	MaxListKeys     = 1000
)

// sniffLen is how many leading bytes are inspected to detect a MIME type.
const sniffLen = 3072

// ErrBadRequest marks caller mistakes detected before the store is called.
var ErrBadRequest = errors.New("bad request")

// Config holds the settings the service needs to build object URLs and
// bound listings.
type Config struct {
	Bucket string
	Region string
	// PublicBase, when set, replaces the AWS URL pattern, e.g.
	// "http://localhost:9000/files".
	PublicBase string
	// DefaultListKeys and MaxListKeys override the package defaults when
	// positive.
	DefaultListKeys int
	MaxListKeys     int
}

// Service implements upload, download, delete and list.
type Service struct {
	store   storage.ObjectStore
	deriver *keys.Deriver
	cfg     Config
	log     *slog.Logger
}

// NewService creates a Service. A nil logger uses slog.Default.
func NewService(store storage.ObjectStore, deriver *keys.Deriver, cfg Config, log *slog.Logger) *Service {
	if cfg.DefaultListKeys <= 0 {
		cfg.DefaultListKeys = DefaultListKeys
	}
	if cfg.MaxListKeys <= 0 {
		cfg.MaxListKeys = MaxListKeys
	}
	if cfg.DefaultListKeys > cfg.MaxListKeys {
		cfg.DefaultListKeys = cfg.MaxListKeys
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, deriver: deriver, cfg: cfg, log: log}
}

// UploadInput describes one upload.
type UploadInput struct {
	Filename string
	Body     io.Reader
	// Size is the body length, or -1 when unknown.
	Size        int64
	ContentType string
}

// UploadResult is returned by a successful Upload.
type UploadResult struct {
	Key              string
	URL              string
	OriginalFilename string
	ContentType      string
}

// Upload stores the body under a freshly derived key. It is not retried.
func (s *Service) Upload(ctx context.Context, in UploadInput) (*UploadResult, error) {
	if in.Body == nil {
		return nil, fmt.Errorf("%w: no file provided", ErrBadRequest)
	}

	key := s.deriver.Derive(in.Filename)

	body, contentType, err := detectContentType(in.Body, in.ContentType)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}

	res, err := s.store.Put(ctx, storage.PutInput{
		Key:         key,
		Body:        body,
		Size:        in.Size,
		ContentType: contentType,
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "file uploaded",
		slog.String("key", key),
		slog.String("content_type", contentType),
	)

	return &UploadResult{
		Key:              key,
		URL:              s.objectURL(key, res.Location),
		OriginalFilename: in.Filename,
		ContentType:      contentType,
	}, nil
}

// Download opens the object at key. The caller must close the body.
func (s *Service) Download(ctx context.Context, key string) (*storage.ObjectReader, error) {
	if key == "" {
		return nil, fmt.Errorf("%w: file key is required", ErrBadRequest)
	}

	obj, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if obj.Info.ContentType == "" {
		obj.Info.ContentType = storage.DefaultContentType
	}
	return obj, nil
}

// DeleteResult is returned by Delete.
type DeleteResult struct {
	Key string
}

// Delete removes key. Deleting an absent key succeeds on every backend,
// whether or not the store reports the absence.
func (s *Service) Delete(ctx context.Context, key string) (*DeleteResult, error) {
	if key == "" {
		return nil, fmt.Errorf("%w: file key is required", ErrBadRequest)
	}

	if err := s.store.Delete(ctx, key); err != nil {
		if !storage.IsNotFound(err) {
			return nil, err
		}
		s.log.DebugContext(ctx, "delete of absent key", slog.String("key", key))
	}

	s.log.InfoContext(ctx, "file deleted", slog.String("key", key))
	return &DeleteResult{Key: key}, nil
}

// FileInfo is one entry of a listing.
type FileInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// ListResult is returned by List.
type ListResult struct {
	Files []FileInfo
	Count int
	// Truncated is set when the store holds more matching keys than were
	// returned.
	Truncated bool
}

// List returns up to maxKeys objects under prefix. A nil maxKeys uses the
// default bound; values above the ceiling are clamped; values below one are
// rejected.
func (s *Service) List(ctx context.Context, prefix string, maxKeys *int) (*ListResult, error) {
	limit, err := s.listLimit(maxKeys)
	if err != nil {
		return nil, err
	}

	res, err := s.store.List(ctx, storage.ListInput{Prefix: prefix, MaxKeys: limit})
	if err != nil {
		return nil, err
	}

	files := make([]FileInfo, 0, len(res.Objects))
	for _, obj := range res.Objects {
		files = append(files, FileInfo{
			Key:          obj.Key,
			Size:         obj.Size,
			LastModified: obj.LastModified,
		})
	}

	s.log.DebugContext(ctx, "files listed",
		slog.String("prefix", prefix),
		slog.Int("count", len(files)),
	)

	return &ListResult{Files: files, Count: len(files), Truncated: res.Truncated}, nil
}

func (s *Service) listLimit(maxKeys *int) (int, error) {
	if maxKeys == nil {
		return s.cfg.DefaultListKeys, nil
	}
	if *maxKeys <= 0 {
		return 0, fmt.Errorf("%w: max_keys must be a positive integer", ErrBadRequest)
	}
	return min(*maxKeys, s.cfg.MaxListKeys), nil
}

// objectURL prefers the location reported by the store, then the
// configured public base, then the AWS virtual-hosted URL pattern.
func (s *Service) objectURL(key, location string) string {
	if location != "" {
		return location
	}
	escaped := escapeKey(key)
	if s.cfg.PublicBase != "" {
		return strings.TrimRight(s.cfg.PublicBase, "/") + "/" + escaped
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.cfg.Bucket, s.cfg.Region, escaped)
}

// escapeKey percent-encodes each path segment of key.
func escapeKey(key string) string {
	segments := strings.Split(key, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, "/")
}

// detectContentType returns contentType unchanged when set. Otherwise it
// peeks at the first bytes of r, detects the type, and returns a reader that
// still yields the whole stream.
func detectContentType(r io.Reader, contentType string) (io.Reader, string, error) {
	if contentType != "" && contentType != storage.DefaultContentType {
		return r, contentType, nil
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, "", err
	}
	head = head[:n]

	detected := mimetype.Detect(head).String()
	if n == 0 {
		detected = storage.DefaultContentType
	}
	return io.MultiReader(bytes.NewReader(head), r), detected, nil
}

// Outcome maps an error from Service onto an HTTP status and a message safe
// to show to the caller.
func Outcome(err error) (int, string) {
	if errors.Is(err, ErrBadRequest) {
		return http.StatusBadRequest, strings.TrimPrefix(err.Error(), ErrBadRequest.Error()+": ")
	}

	switch storage.KindOf(err) {
	case storage.KindNotFound:
		return http.StatusNotFound, "file not found"
	case storage.KindAccessDenied:
		return http.StatusForbidden, "access denied"
	case storage.KindInvalidArgument:
		return http.StatusBadRequest, "bad request: the store rejected the request"
	default:
		return http.StatusBadGateway, "upstream storage error"
	}
}
