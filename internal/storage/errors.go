package storage

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind is the closed set of failure categories every backend maps its
// native errors onto.
type Kind int

const (
	// KindUnknown covers failures that fit no other category.
	KindUnknown Kind = iota
	// KindNotFound means the object does not exist.
	KindNotFound
	// KindAccessDenied means the store refused the credentials or the action.
	KindAccessDenied
	// KindStoreUnavailable means the store could not be reached, timed out,
	// or reported a transient server-side failure.
	KindStoreUnavailable
	// KindInvalidArgument means the request itself was rejected: a bad
	// key, an oversized object, a non-positive list bound.
	KindInvalidArgument
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindAccessDenied:
		return "access_denied"
	case KindStoreUnavailable:
		return "store_unavailable"
	case KindInvalidArgument:
		return "invalid_argument"
	default:
		return "unknown"
	}
}

// Sentinel errors, one per Kind, usable with errors.Is.
var (
	ErrNotFound         = errors.New("storage: object not found")
	ErrAccessDenied     = errors.New("storage: access denied")
	ErrStoreUnavailable = errors.New("storage: store unavailable")
	ErrInvalidArgument  = errors.New("storage: invalid argument")
	ErrUnknown          = errors.New("storage: unknown error")
)

// Error is returned by every ObjectStore operation. The native SDK error is
// kept only as text so callers cannot depend on SDK types.
type Error struct {
	// Op is the failed operation: "put", "get", "delete" or "list".
	Op string
	// Key is the object key or list prefix involved, if any.
	Key  string
	Kind Kind
	// Err carries the flattened store message.
	Err error
}

func (e *Error) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("storage.%s %q: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("storage.%s: %v", e.Op, e.Err)
}

// Unwrap exposes the Kind sentinel, so errors.Is(err, ErrNotFound) works.
func (e *Error) Unwrap() error {
	return e.Err
}

// newError builds an *Error whose chain contains the sentinel for kind and
// the cause's message, but not the cause's concrete type.
func newError(op, key string, kind Kind, cause error) *Error {
	var err error
	if cause == nil {
		err = sentinel(kind)
	} else {
		err = fmt.Errorf("%w: %v", sentinel(kind), cause)
	}
	return &Error{Op: op, Key: key, Kind: kind, Err: err}
}

func sentinel(k Kind) error {
	switch k {
	case KindNotFound:
		return ErrNotFound
	case KindAccessDenied:
		return ErrAccessDenied
	case KindStoreUnavailable:
		return ErrStoreUnavailable
	case KindInvalidArgument:
		return ErrInvalidArgument
	default:
		return ErrUnknown
	}
}

// KindOf reports the Kind carried by err. Errors that did not come from an
// ObjectStore are KindUnknown; nil is KindUnknown as well.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUnknown
}

// IsNotFound reports whether err means the object does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// transportKind classifies errors that are not store API responses: context
// cancellation, deadlines and network failures.
func transportKind(err error) (Kind, bool) {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindStoreUnavailable, true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindStoreUnavailable, true
	}
	return KindUnknown, false
}

// kindFromStatus maps an HTTP status returned by the store.
func kindFromStatus(status int) Kind {
	switch {
	case status == 404:
		return KindNotFound
	case status == 401 || status == 403:
		return KindAccessDenied
	case status == 400 || status == 411 || status == 413 || status == 416:
		return KindInvalidArgument
	case status == 408 || status == 429 || status >= 500:
		return KindStoreUnavailable
	default:
		return KindUnknown
	}
}

// kindFromCode maps S3 error codes shared by AWS and MinIO.
func kindFromCode(code string) (Kind, bool) {
	switch code {
	case "NoSuchKey", "NotFound", "NoSuchObject":
		return KindNotFound, true
	case "AccessDenied", "Forbidden", "AllAccessDisabled", "InvalidAccessKeyId",
		"SignatureDoesNotMatch", "ExpiredToken", "InvalidToken", "AccountProblem",
		"RequestTimeTooSkewed":
		return KindAccessDenied, true
	case "InvalidArgument", "InvalidRequest", "KeyTooLongError", "EntityTooLarge",
		"EntityTooSmall", "InvalidObjectName", "MaxMessageLengthExceeded",
		"MissingContentLength", "InvalidDigest", "BadDigest", "QuotaExceeded",
		"XMinioInvalidObjectName", "XMinioStorageFull":
		return KindInvalidArgument, true
	case "SlowDown", "ServiceUnavailable", "InternalError", "RequestTimeout",
		"Throttling", "ThrottlingException",
		"RequestLimitExceeded", "XMinioServerNotInitialized":
		return KindStoreUnavailable, true
	case "NoSuchBucket":
		return KindUnknown, true
	}
	return KindUnknown, false
}

var (
	errEmptyKey   = errors.New("key must not be empty")
	errKeyTooLong = errors.New("key exceeds 1024 bytes")
	errMaxKeys    = errors.New("max keys must be positive")
)
