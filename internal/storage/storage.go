// Package storage defines the capability interface over the remote object
// store and its backends. The MinIO implementation works with any
// S3-compatible provider; the S3 implementation uses the AWS SDK directly.
//
// Backends are the only place store-native errors are seen: every failure
// leaves this package as an *Error carrying one Kind.
package storage

import (
	"context"
	"io"
	"time"
)

// DefaultContentType is reported for objects stored without a type.
const DefaultContentType = "application/octet-stream"

// ObjectStore is the capability interface over a remote object store.
type ObjectStore interface {
	// Put streams in.Body to the store under in.Key. in.Size may be -1 when
	// the length is unknown.
	Put(ctx context.Context, in PutInput) (*PutResult, error)
	// Get opens the object at key. The caller must close the returned body.
	Get(ctx context.Context, key string) (*ObjectReader, error)
	// Delete removes the object at key.
	Delete(ctx context.Context, key string) error
	// List returns at most in.MaxKeys objects whose keys start with
	// in.Prefix, ordered by key. It issues a single store request.
	List(ctx context.Context, in ListInput) (*ListResult, error)
}

// Object describes a stored object.
type Object struct {
	Key          string
	Size         int64
	LastModified time.Time
	ContentType  string
	ETag         string
}

// PutInput is the argument to ObjectStore.Put.
type PutInput struct {
	Key         string
	Body        io.Reader
	Size        int64
	ContentType string
}

// PutResult is returned by a successful Put.
type PutResult struct {
	Key string
	// Location is the object URL reported by the store; empty when the store
	// does not report one.
	Location string
	ETag     string
	Size     int64
}

// ObjectReader is an open object: a body still to be read plus metadata.
type ObjectReader struct {
	Body io.ReadCloser
	Info Object
}

// ListInput is the argument to ObjectStore.List.
type ListInput struct {
	Prefix  string
	MaxKeys int
}

// ListResult is returned by ObjectStore.List.
type ListResult struct {
	Objects []Object
	// Count is len(Objects).
	Count int
	// Truncated is set when the store reported more matching keys.
	Truncated bool
}

// validateList rejects list bounds below one.
func validateList(in ListInput) (int, error) {
	if in.MaxKeys <= 0 {
		return 0, newError("list", in.Prefix, KindInvalidArgument, errMaxKeys)
	}
	return in.MaxKeys, nil
}

// validateKey rejects keys no store accepts.
func validateKey(op, key string) error {
	if key == "" {
		return newError(op, key, KindInvalidArgument, errEmptyKey)
	}
	if len(key) > 1024 {
		return newError(op, key, KindInvalidArgument, errKeyTooLong)
	}
	return nil
}

// cancelOnClose releases a per-call context once the body is closed.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

// openWindow returns a context whose lifetime is bounded by d only until
// the returned stop func is called. Used for Get, where the deadline must
// cover opening the object but not streaming its body.
func openWindow(ctx context.Context, d time.Duration) (context.Context, func(), context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	if d <= 0 {
		return ctx, func() {}, cancel
	}
	t := time.AfterFunc(d, cancel)
	return ctx, func() { t.Stop() }, cancel
}

// withTimeout applies d to ctx when d is positive.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
