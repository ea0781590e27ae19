package storage

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-process ObjectStore. It reads whole bodies into
// memory and is meant for tests and local development only.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memObject
	now     func() time.Time

	// deny, when set, is consulted before every operation and lets tests
	// simulate a store that refuses or fails requests.
	deny func(op, key string) Kind
}

type memObject struct {
	data []byte
	info Object
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock overrides the time source used for LastModified.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) { s.now = now }
}

// WithFailure makes the store fail operations for which fn returns a Kind
// other than KindUnknown.
func WithFailure(fn func(op, key string) Kind) MemoryOption {
	return func(s *MemoryStore) { s.deny = fn }
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		objects: make(map[string]memObject),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) fail(op, key string) error {
	if s.deny == nil {
		return nil
	}
	if k := s.deny(op, key); k != KindUnknown {
		return newError(op, key, k, fmt.Errorf("simulated %s", k))
	}
	return nil
}

// Put stores the body under in.Key, replacing any existing object.
func (s *MemoryStore) Put(ctx context.Context, in PutInput) (*PutResult, error) {
	if err := validateKey("put", in.Key); err != nil {
		return nil, err
	}
	if err := s.fail("put", in.Key); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, newError("put", in.Key, KindStoreUnavailable, err)
	}

	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, newError("put", in.Key, KindUnknown, fmt.Errorf("read body: %w", err))
	}
	if in.Size >= 0 && int64(len(data)) != in.Size {
		return nil, newError("put", in.Key, KindInvalidArgument,
			fmt.Errorf("body is %d bytes, declared %d", len(data), in.Size))
	}

	sum := md5.Sum(data)
	contentType := in.ContentType
	if contentType == "" {
		contentType = DefaultContentType
	}
	info := Object{
		Key:          in.Key,
		Size:         int64(len(data)),
		LastModified: s.now().UTC(),
		ContentType:  contentType,
		ETag:         hex.EncodeToString(sum[:]),
	}

	s.mu.Lock()
	s.objects[in.Key] = memObject{data: data, info: info}
	s.mu.Unlock()

	return &PutResult{Key: in.Key, ETag: info.ETag, Size: info.Size}, nil
}

// Get returns a reader over a copy-free view of the stored bytes.
func (s *MemoryStore) Get(ctx context.Context, key string) (*ObjectReader, error) {
	if err := validateKey("get", key); err != nil {
		return nil, err
	}
	if err := s.fail("get", key); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, newError("get", key, KindStoreUnavailable, err)
	}

	s.mu.RLock()
	obj, ok := s.objects[key]
	s.mu.RUnlock()
	if !ok {
		return nil, newError("get", key, KindNotFound, nil)
	}

	return &ObjectReader{
		Body: io.NopCloser(bytes.NewReader(obj.data)),
		Info: obj.info,
	}, nil
}

// Delete removes key. Unlike S3, it reports KindNotFound for absent keys.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	if err := validateKey("delete", key); err != nil {
		return err
	}
	if err := s.fail("delete", key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return newError("delete", key, KindStoreUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[key]; !ok {
		return newError("delete", key, KindNotFound, nil)
	}
	delete(s.objects, key)
	return nil
}

// List returns up to in.MaxKeys objects with the given prefix, by key.
func (s *MemoryStore) List(ctx context.Context, in ListInput) (*ListResult, error) {
	limit, err := validateList(in)
	if err != nil {
		return nil, err
	}
	if err := s.fail("list", in.Prefix); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, newError("list", in.Prefix, KindStoreUnavailable, err)
	}

	s.mu.RLock()
	matched := make([]Object, 0)
	for k, obj := range s.objects {
		if strings.HasPrefix(k, in.Prefix) {
			matched = append(matched, obj.info)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Key < matched[j].Key
	})

	res := &ListResult{}
	if len(matched) > limit {
		matched = matched[:limit]
		res.Truncated = true
	}
	res.Objects = matched
	res.Count = len(matched)
	return res, nil
}

// Ensure MemoryStore implements ObjectStore.
var _ ObjectStore = (*MemoryStore)(nil)
