// Package upload sends local files as multipart/form-data. Any HTTP response is
// handed back as is; only failures to deliver the file are errors.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/okian/voiceprint/pkg/logger"
	"github.com/okian/voiceprint/pkg/metrics"
)

const (
	defaultTimeout  = 60 * time.Second
	defaultMaxBytes = 10 << 20
	maxResponseBody = 1 << 20
)

// Request describes one file upload.
type Request struct {
	URL      string
	FilePath string
	Name     string // form field of the file part
	FormData map[string]string
	Header   map[string]string
}

// Response is whatever the server answered, body kept as text.
type Response struct {
	StatusCode int
	Data       string
}

// Uploader performs multipart uploads.
type Uploader interface {
	Upload(ctx context.Context, req Request) (Response, error)
}

// UploaderFunc adapts a function to Uploader.
type UploaderFunc func(ctx context.Context, req Request) (Response, error)

// Upload implements Uploader.
func (f UploaderFunc) Upload(ctx context.Context, req Request) (Response, error) { return f(ctx, req) }

// Option applies a configuration option to the HTTPUploader.
type Option func(*HTTPUploader)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(u *HTTPUploader) {
		if hc != nil {
			u.client = hc
		}
	}
}

// WithMaxBytes rejects larger files before sending them.
func WithMaxBytes(n int64) Option {
	return func(u *HTTPUploader) {
		if n > 0 {
			u.maxBytes = n
		}
	}
}

// WithLogger sets the uploader logger.
func WithLogger(l logger.Logger) Option {
	return func(u *HTTPUploader) {
		if l != nil {
			u.logger = l
		}
	}
}

// HTTPUploader streams files to the server without buffering them in memory.
type HTTPUploader struct {
	client   *http.Client
	maxBytes int64
	logger   logger.Logger
}

// NewHTTPUploader creates an uploader with a 60s timeout and a 10 MiB file cap.
func NewHTTPUploader(opts ...Option) *HTTPUploader {
	u := &HTTPUploader{
		client:   &http.Client{Timeout: defaultTimeout},
		maxBytes: defaultMaxBytes,
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Upload implements Uploader. Every returned error is a *Failure.
func (u *HTTPUploader) Upload(ctx context.Context, req Request) (Response, error) {
	if req.Name == "" {
		req.Name = "file"
	}

	f, err := os.Open(req.FilePath)
	if err != nil {
		return Response{}, failf(err, "open %s: %v", filepath.Base(req.FilePath), errors.Unwrap(err))
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Response{}, failf(err, "stat %s: %v", filepath.Base(req.FilePath), err)
	}
	if info.IsDir() {
		return Response{}, failf(nil, "%s is a directory", filepath.Base(req.FilePath))
	}
	if info.Size() > u.maxBytes {
		return Response{}, failf(nil, "audio file too large: %d bytes, limit %d", info.Size(), u.maxBytes)
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeForm(mw, req, f))
	}()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.URL, pr)
	if err != nil {
		_ = pr.CloseWithError(err)
		return Response{}, failf(err, "create request: %v", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())
	for k, v := range req.Header {
		httpReq.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := u.client.Do(httpReq)
	if err != nil {
		_ = pr.CloseWithError(err)
		return Response{}, &Failure{ErrMsg: transportMessage(err), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return Response{}, failf(err, "read response: %v", err)
	}

	metrics.RecordUploadBytes(info.Size())
	u.logger.Debug(ctx, "file uploaded",
		logger.String("file", filepath.Base(req.FilePath)),
		logger.Int("status", resp.StatusCode),
		logger.Duration("elapsed", time.Since(start)),
	)
	return Response{StatusCode: resp.StatusCode, Data: string(body)}, nil
}

func writeForm(mw *multipart.Writer, req Request, file io.Reader) error {
	for k, v := range req.FormData {
		if err := mw.WriteField(k, v); err != nil {
			return fmt.Errorf("write field %s: %w", k, err)
		}
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, req.Name, filepath.Base(req.FilePath)))
	h.Set("Content-Type", ContentType(req.FilePath))
	part, err := mw.CreatePart(h)
	if err != nil {
		return fmt.Errorf("create file part: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("copy file: %w", err)
	}
	return mw.Close()
}

var audioTypes = map[string]string{
	".wav":  "audio/wav",
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",
	".ogg":  "audio/ogg",
	".opus": "audio/opus",
	".flac": "audio/flac",
	".pcm":  "audio/pcm",
	".amr":  "audio/amr",
	".webm": "audio/webm",
}

// ContentType guesses the part content type from the file extension.
func ContentType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ct, ok := audioTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// transportMessage maps client errors to short messages such as "timeout".
func transportMessage(err error) string {
	var ne interface{ Timeout() bool }
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	return err.Error()
}
