// Package keys derives collision-resistant object keys from client filenames.
package keys

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Separator joins the random token and the sanitized filename.
const Separator = "_"

// maxNameBytes caps the filename part so the key stays well under the
// 1024-byte S3 key limit.
const maxNameBytes = 255

// TokenSource returns a fresh unique token on every call. Implementations
// must be safe for concurrent use.
type TokenSource func() string

// Deriver turns client filenames into storage keys of the form
// "<token>_<name>". A Deriver is immutable and safe for concurrent use.
type Deriver struct {
	token TokenSource
}

// Option configures a Deriver.
type Option func(*Deriver)

// WithTokenSource replaces the default UUID token source.
func WithTokenSource(src TokenSource) Option {
	return func(d *Deriver) {
		if src != nil {
			d.token = src
		}
	}
}

// NewDeriver returns a Deriver backed by random (v4) UUIDs.
func NewDeriver(opts ...Option) *Deriver {
	d := &Deriver{token: uuidToken}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Derive returns a unique key for originalFilename. The key never contains
// path separators or control characters. When the sanitized name is empty
// the bare token is returned.
func (d *Deriver) Derive(originalFilename string) string {
	token := d.token()
	name := Sanitize(originalFilename)
	if name == "" {
		return token
	}
	return token + Separator + name
}

// OriginalName recovers the filename part of a derived key. Keys without a
// separator are returned unchanged.
func OriginalName(key string) string {
	if i := strings.LastIndex(key, "/"); i >= 0 {
		key = key[i+1:]
	}
	if _, name, ok := strings.Cut(key, Separator); ok && name != "" {
		return name
	}
	return key
}

// Sanitize reduces a client-supplied filename to a single safe path segment.
func Sanitize(name string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}

	name = strings.Map(func(r rune) rune {
		if r == utf8.RuneError || unicode.IsControl(r) || unicode.Is(unicode.Cf, r) {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)

	if name == "." || name == ".." {
		return ""
	}
	return truncate(name, maxNameBytes)
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func uuidToken() string {
	id := uuid.New()
	return strings.ReplaceAll(id.String(), "-", "")
}
