// Package handler exposes the gateway's file operations over HTTP.
package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/radif/filegateway/internal/gateway"
	"github.com/radif/filegateway/internal/keys"
	"github.com/radif/filegateway/internal/response"
)

// fileField is the multipart form field carrying the upload.
const fileField = "file"

// Handler holds HTTP handlers for file endpoints.
type Handler struct {
	svc       *gateway.Service
	log       *slog.Logger
	maxUpload int64
}

// NewHandler creates a new file Handler. maxUpload caps the request body of
// an upload in bytes.
func NewHandler(svc *gateway.Service, log *slog.Logger, maxUpload int64) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, log: log, maxUpload: maxUpload}
}

// Routes registers the file endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/info", h.Info)
	r.Post("/upload", h.Upload)
	r.Get("/download/*", h.Download)
	r.Delete("/delete/*", h.Delete)
	r.Get("/list", h.List)
}

type uploadResponse struct {
	Success          bool   `json:"success"          example:"true"`
	Message          string `json:"message"          example:"File uploaded successfully"`
	FileKey          string `json:"file_key"         example:"3f2b8c0e9d7a4e51b6c2a1f0e9d8c7b6_hello.txt"`
	URL              string `json:"url"              example:"https://files.s3.us-east-1.amazonaws.com/3f2b8c0e9d7a4e51b6c2a1f0e9d8c7b6_hello.txt"`
	OriginalFilename string `json:"original_filename" example:"hello.txt"`
}

type deleteResponse struct {
	Success bool   `json:"success"  example:"true"`
	Message string `json:"message"  example:"File deleted successfully"`
	FileKey string `json:"file_key" example:"3f2b8c0e9d7a4e51b6c2a1f0e9d8c7b6_hello.txt"`
}

type fileEntry struct {
	Key          string `json:"key"           example:"3f2b8c0e9d7a4e51b6c2a1f0e9d8c7b6_hello.txt"`
	Size         int64  `json:"size"          example:"2"`
	LastModified string `json:"last_modified" example:"2026-02-27T14:48:34Z"`
}

type listResponse struct {
	Success   bool        `json:"success"   example:"true"`
	Files     []fileEntry `json:"files"`
	Count     int         `json:"count"     example:"1"`
	Truncated bool        `json:"truncated" example:"false"`
}

type endpoint struct {
	URL         string            `json:"url"`
	Method      string            `json:"method"`
	Description string            `json:"description"`
	Parameters  map[string]string `json:"parameters,omitempty"`
	Example     string            `json:"example"`
}

type infoResponse struct {
	Name      string              `json:"name"`
	Version   string              `json:"version"`
	Endpoints map[string]endpoint `json:"endpoints"`
}

// Info godoc
//
//	@Summary		API information
//	@Description	Lists the available file endpoints.
//	@Tags			files
//	@Produce		json
//	@Success		200	{object}	infoResponse
//	@Router			/info [get]
func (h *Handler) Info(w http.ResponseWriter, _ *http.Request) {
	response.OK(w, infoResponse{
		Name:    "File Gateway API",
		Version: "1.0",
		Endpoints: map[string]endpoint{
			"upload": {
				URL:         "/upload",
				Method:      http.MethodPost,
				Description: "Upload a file to object storage",
				Example:     `curl -X POST -F "file=@/path/to/file.txt" http://localhost:8080/upload`,
			},
			"download": {
				URL:         "/download/{file_key}",
				Method:      http.MethodGet,
				Description: "Download a file from object storage",
				Example:     "curl -O http://localhost:8080/download/{file_key}",
			},
			"delete": {
				URL:         "/delete/{file_key}",
				Method:      http.MethodDelete,
				Description: "Delete a file from object storage",
				Example:     "curl -X DELETE http://localhost:8080/delete/{file_key}",
			},
			"list": {
				URL:         "/list",
				Method:      http.MethodGet,
				Description: "List files in the bucket",
				Parameters: map[string]string{
					"prefix":   "Filter files by key prefix (optional)",
					"max_keys": "Maximum number of files to return (optional, default: 100)",
				},
				Example: "curl 'http://localhost:8080/list?prefix=images/&max_keys=50'",
			},
		},
	})
}

// Upload godoc
//
//	@Summary		Upload file
//	@Description	Streams the multipart field "file" to object storage under a unique key of the form {token}_{filename}.
//	@Tags			files
//	@Accept			mpfd
//	@Produce		json
//	@Param			file	formData	file	true	"File to upload"
//	@Success		201		{object}	uploadResponse
//	@Failure		400		{object}	response.Envelope
//	@Failure		403		{object}	response.Envelope
//	@Failure		413		{object}	response.Envelope
//	@Failure		502		{object}	response.Envelope
//	@Router			/upload [post]
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	mr, err := r.MultipartReader()
	if err != nil {
		response.BadRequest(w, "expected a multipart/form-data request")
		return
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			response.BadRequest(w, "No file provided. Please include a file in the request.")
			return
		}
		if err != nil {
			if isTooLarge(err) {
				h.tooLarge(w)
				return
			}
			response.BadRequest(w, "malformed multipart body")
			return
		}
		if part.FormName() != fileField {
			_ = part.Close()
			continue
		}

		body := &bodyGuard{r: part}
		res, err := h.svc.Upload(r.Context(), gateway.UploadInput{
			Filename:    part.FileName(),
			Body:        body,
			Size:        -1,
			ContentType: part.Header.Get("Content-Type"),
		})
		_ = part.Close()
		if body.err != nil {
			h.badBody(w, r, res, body.err)
			return
		}
		if err != nil {
			h.fail(w, r, "upload", err)
			return
		}

		response.Created(w, uploadResponse{
			Success:          true,
			Message:          "File uploaded successfully",
			FileKey:          res.Key,
			URL:              res.URL,
			OriginalFilename: res.OriginalFilename,
		})
		return
	}
}

// Download godoc
//
//	@Summary		Download file
//	@Description	Streams the object back with the content type recorded by the store.
//	@Tags			files
//	@Produce		octet-stream
//	@Param			file_key	path		string	true	"Object key"
//	@Success		200			{file}		binary
//	@Failure		404			{object}	response.Envelope
//	@Failure		403			{object}	response.Envelope
//	@Failure		502			{object}	response.Envelope
//	@Router			/download/{file_key} [get]
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	key := keyParam(r)

	obj, err := h.svc.Download(r.Context(), key)
	if err != nil {
		h.fail(w, r, "download", err)
		return
	}
	defer obj.Body.Close()

	hdr := w.Header()
	hdr.Set("Content-Type", obj.Info.ContentType)
	if obj.Info.Size >= 0 {
		hdr.Set("Content-Length", strconv.FormatInt(obj.Info.Size, 10))
	}
	if !obj.Info.LastModified.IsZero() {
		hdr.Set("Last-Modified", obj.Info.LastModified.UTC().Format(http.TimeFormat))
	}
	if cd := mime.FormatMediaType("attachment", map[string]string{"filename": keys.OriginalName(key)}); cd != "" {
		hdr.Set("Content-Disposition", cd)
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, obj.Body); err != nil {
		h.log.WarnContext(r.Context(), "download interrupted",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}

// Delete godoc
//
//	@Summary		Delete file
//	@Description	Removes the object. Deleting a key that does not exist also succeeds.
//	@Tags			files
//	@Produce		json
//	@Param			file_key	path		string	true	"Object key"
//	@Success		200			{object}	deleteResponse
//	@Failure		403			{object}	response.Envelope
//	@Failure		502			{object}	response.Envelope
//	@Router			/delete/{file_key} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Delete(r.Context(), keyParam(r))
	if err != nil {
		h.fail(w, r, "delete", err)
		return
	}

	response.OK(w, deleteResponse{
		Success: true,
		Message: "File deleted successfully",
		FileKey: res.Key,
	})
}

// List godoc
//
//	@Summary		List files
//	@Description	Lists at most max_keys objects whose keys start with prefix, ordered by key. truncated is set when more matching files exist.
//	@Tags			files
//	@Produce		json
//	@Param			prefix		query		string	false	"Key prefix"
//	@Param			max_keys	query		int		false	"Maximum number of files (default 100, capped at 1000)"
//	@Success		200			{object}	listResponse
//	@Failure		400			{object}	response.Envelope
//	@Failure		403			{object}	response.Envelope
//	@Failure		502			{object}	response.Envelope
//	@Router			/list [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var maxKeys *int
	if raw := q.Get("max_keys"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			response.BadRequest(w, "max_keys must be a positive integer")
			return
		}
		maxKeys = &n
	}

	res, err := h.svc.List(r.Context(), q.Get("prefix"), maxKeys)
	if err != nil {
		h.fail(w, r, "list", err)
		return
	}

	files := make([]fileEntry, 0, len(res.Files))
	for _, f := range res.Files {
		files = append(files, fileEntry{
			Key:          f.Key,
			Size:         f.Size,
			LastModified: f.LastModified.UTC().Format(time.RFC3339),
		})
	}

	response.OK(w, listResponse{Success: true, Files: files, Count: res.Count, Truncated: res.Truncated})
}

// fail logs the full error and writes the caller-safe outcome.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, msg := gateway.Outcome(err)

	level := slog.LevelInfo
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.log.Log(r.Context(), level, op+" failed",
		slog.Int("status", status),
		slog.String("error", err.Error()),
	)

	response.Error(w, status, msg)
}

// badBody answers an upload whose body could not be read: 413 over the
// size limit, 400 otherwise. An object stored from a short read is removed.
func (h *Handler) badBody(w http.ResponseWriter, r *http.Request, res *gateway.UploadResult, err error) {
	if res != nil {
		if _, derr := h.svc.Delete(context.WithoutCancel(r.Context()), res.Key); derr != nil {
			h.log.WarnContext(r.Context(), "remove partial upload failed",
				slog.String("key", res.Key),
				slog.String("error", derr.Error()),
			)
		}
	}

	if isTooLarge(err) {
		h.tooLarge(w)
		return
	}
	h.log.InfoContext(r.Context(), "upload body unreadable", slog.String("error", err.Error()))
	response.BadRequest(w, "failed to read the uploaded file")
}

func (h *Handler) tooLarge(w http.ResponseWriter) {
	response.TooLarge(w, "file exceeds the upload size limit of "+strconv.FormatInt(h.maxUpload, 10)+" bytes")
}

// keyParam returns the object key from the wildcard route segment. chi
// matches on the raw path when the URL carried escapes, so those are
// decoded here.
func keyParam(r *http.Request) string {
	raw := chi.URLParam(r, "*")
	if r.URL.RawPath == "" {
		return raw
	}
	if key, err := url.PathUnescape(raw); err == nil {
		return key
	}
	return raw
}

// bodyGuard records the first error reading the client's upload, since
// the store flattens whatever error it sees into its own.
type bodyGuard struct {
	r   io.Reader
	err error
}

func (g *bodyGuard) Read(p []byte) (int, error) {
	n, err := g.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) && g.err == nil {
		g.err = err
	}
	return n, err
}

func isTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}
