package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radif/filegateway/internal/gateway"
	"github.com/radif/filegateway/internal/handler"
	"github.com/radif/filegateway/internal/keys"
	"github.com/radif/filegateway/internal/storage"
)

type env struct {
	store  *storage.MemoryStore
	router http.Handler
}

func newEnv(t *testing.T, opts ...storage.MemoryOption) *env {
	t.Helper()
	store := storage.NewMemoryStore(opts...)
	svc := gateway.NewService(store, keys.NewDeriver(), gateway.Config{Bucket: "files", Region: "us-east-1"}, nil)
	r := chi.NewRouter()
	handler.NewHandler(svc, nil, 1<<20).Routes(r)
	return &env{store: store, router: r}
}

func (e *env) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func multipartRequest(t *testing.T, field, filename, contentType string, body []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	require.NoError(t, mw.WriteField("note", "ignored"))

	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	if contentType != "" {
		hdr.Set("Content-Type", contentType)
	}
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write(body)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestUploadDownloadDeleteList(t *testing.T) {
	t.Parallel()

	e := newEnv(t)

	rec := e.do(multipartRequest(t, "file", "hello.txt", "text/plain", []byte("hi")))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	up := decode(t, rec)
	assert.Equal(t, true, up["success"])
	assert.Equal(t, "hello.txt", up["original_filename"])

	key, _ := up["file_key"].(string)
	token, name, ok := strings.Cut(key, "_")
	require.True(t, ok)
	assert.Equal(t, "hello.txt", name)
	assert.Equal(t, "https://files.s3.us-east-1.amazonaws.com/"+key, up["url"])

	rec = e.do(httptest.NewRequest(http.MethodGet, "/download/"+key, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hi", rec.Body.String())
	assert.Equal(t, "text/plain", rec.Header().Get("Content-Type"))
	assert.Equal(t, "2", rec.Header().Get("Content-Length"))
	assert.Equal(t, `attachment; filename=hello.txt`, rec.Header().Get("Content-Disposition"))

	rec = e.do(httptest.NewRequest(http.MethodGet, "/list?prefix="+token, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode(t, rec)
	assert.EqualValues(t, 1, list["count"])
	files, _ := list["files"].([]any)
	require.Len(t, files, 1)
	entry, _ := files[0].(map[string]any)
	assert.Equal(t, key, entry["key"])
	assert.EqualValues(t, 2, entry["size"])
	assert.NotEmpty(t, entry["last_modified"])

	for range 2 {
		rec = e.do(httptest.NewRequest(http.MethodDelete, "/delete/"+key, nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, key, decode(t, rec)["file_key"])
	}

	rec = e.do(httptest.NewRequest(http.MethodGet, "/list?prefix="+token, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	list = decode(t, rec)
	assert.EqualValues(t, 0, list["count"])
	assert.Equal(t, []any{}, list["files"])
}

func TestUpload_Errors(t *testing.T) {
	t.Parallel()

	t.Run("no file field", func(t *testing.T) {
		t.Parallel()
		rec := newEnv(t).do(multipartRequest(t, "other", "a.txt", "", []byte("x")))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, false, decode(t, rec)["success"])
	})

	t.Run("not multipart", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("{}"))
		req.Header.Set("Content-Type", "application/json")
		rec := newEnv(t).do(req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("too large", func(t *testing.T) {
		t.Parallel()
		rec := newEnv(t).do(multipartRequest(t, "file", "big.bin", "application/zip", bytes.Repeat([]byte("a"), 2<<20)))
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})

	t.Run("access denied", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t, storage.WithFailure(func(op, _ string) storage.Kind {
			if op == "put" {
				return storage.KindAccessDenied
			}
			return storage.KindUnknown
		}))
		rec := e.do(multipartRequest(t, "file", "a.txt", "text/plain", []byte("x")))
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "access denied", decode(t, rec)["error"])
	})

	t.Run("body cut off mid-part", func(t *testing.T) {
		t.Parallel()
		for _, contentType := range []string{"text/plain", ""} {
			e := newEnv(t)
			rec := e.do(truncatedUpload(t, contentType, nil))
			assert.Equal(t, http.StatusBadRequest, rec.Code, "content type %q", contentType)
			assert.Equal(t, false, decode(t, rec)["success"])
			assertEmpty(t, e.store)
		}
	})

	t.Run("client connection fails", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		rec := e.do(truncatedUpload(t, "text/plain", iotest.ErrReader(errors.New("connection reset by peer"))))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.NotContains(t, rec.Body.String(), "upstream")
		assertEmpty(t, e.store)
	})

	t.Run("store unavailable", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t, storage.WithFailure(func(string, string) storage.Kind {
			return storage.KindStoreUnavailable
		}))
		rec := e.do(multipartRequest(t, "file", "a.txt", "text/plain", []byte("x")))
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.NotContains(t, rec.Body.String(), "simulated")
	})
}

// truncatedUpload builds an upload whose file part ends without a closing
// boundary, followed by tail when set.
func truncatedUpload(t *testing.T, contentType string, tail io.Reader) *http.Request {
	t.Helper()
	head := "--XBOUNDARY\r\n" +
		"Content-Disposition: form-data; name=\"file\"; filename=\"a.txt\"\r\n"
	if contentType != "" {
		head += "Content-Type: " + contentType + "\r\n"
	}
	head += "\r\nhello wor"

	var body io.Reader = strings.NewReader(head)
	if tail != nil {
		body = io.MultiReader(body, tail)
	}
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", "multipart/form-data; boundary=XBOUNDARY")
	return req
}

func assertEmpty(t *testing.T, s storage.ObjectStore) {
	t.Helper()
	res, err := s.List(context.Background(), storage.ListInput{MaxKeys: 10})
	require.NoError(t, err)
	assert.Zero(t, res.Count)
}

func TestDownload_NotFound(t *testing.T) {
	t.Parallel()

	rec := newEnv(t).do(httptest.NewRequest(http.MethodGet, "/download/never-uploaded", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, map[string]any{"success": false, "error": "file not found"}, decode(t, rec))
}

func TestDownload_EscapedAndNestedKeys(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	for _, k := range []string{"images/cat.png", "my file.txt"} {
		_, err := e.store.Put(context.Background(), storage.PutInput{Key: k, Body: strings.NewReader(k), Size: int64(len(k))})
		require.NoError(t, err)
	}

	rec := e.do(httptest.NewRequest(http.MethodGet, "/download/images/cat.png", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "images/cat.png", rec.Body.String())
	assert.Equal(t, "attachment; filename=cat.png", rec.Header().Get("Content-Disposition"))

	rec = e.do(httptest.NewRequest(http.MethodGet, "/download/my%20file.txt", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, "my file.txt", string(body))
}

func TestDelete_AccessDenied(t *testing.T) {
	t.Parallel()

	e := newEnv(t, storage.WithFailure(func(op, _ string) storage.Kind {
		if op == "delete" {
			return storage.KindAccessDenied
		}
		return storage.KindUnknown
	}))
	rec := e.do(httptest.NewRequest(http.MethodDelete, "/delete/k", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestList_MaxKeys(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	for i := range 5 {
		k := fmt.Sprintf("p/%d", i)
		_, err := e.store.Put(context.Background(), storage.PutInput{Key: k, Body: strings.NewReader("x"), Size: 1})
		require.NoError(t, err)
	}

	tests := []struct {
		query     string
		status    int
		count     int
		truncated bool
	}{
		{"?prefix=p/&max_keys=2", http.StatusOK, 2, true},
		{"?prefix=p/", http.StatusOK, 5, false},
		{"?max_keys=0", http.StatusBadRequest, 0, false},
		{"?max_keys=-1", http.StatusBadRequest, 0, false},
		{"?max_keys=abc", http.StatusBadRequest, 0, false},
		{"?prefix=zzz", http.StatusOK, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			t.Parallel()
			rec := e.do(httptest.NewRequest(http.MethodGet, "/list"+tt.query, nil))
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			body := decode(t, rec)
			if tt.status != http.StatusOK {
				assert.Equal(t, false, body["success"])
				assert.NotEmpty(t, body["error"])
				return
			}
			assert.EqualValues(t, tt.count, body["count"])
			assert.Equal(t, tt.truncated, body["truncated"])
		})
	}
}

func TestInfo(t *testing.T) {
	t.Parallel()

	rec := newEnv(t).do(httptest.NewRequest(http.MethodGet, "/info", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	endpoints, _ := body["endpoints"].(map[string]any)
	for _, name := range []string{"upload", "download", "delete", "list"} {
		assert.Contains(t, endpoints, name)
	}
}
