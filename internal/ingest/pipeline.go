// Package ingest turns multipart upload requests into object store writes.
//
// Each file part is buffered in memory up to a per-file ceiling and written
// as one object. Writes run concurrently; the request succeeds only when every
// write succeeded.
package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"filedrop/internal/domain"
	"filedrop/internal/storage"
)

// DefaultMaxFileSize is the per-file ceiling.
const DefaultMaxFileSize int64 = 100 << 20

// Error is a request level ingestion failure with the status and message shown to the client.
type Error struct {
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// ErrFileTooLarge is wrapped by the error returned for a file over the ceiling.
var ErrFileTooLarge = errors.New("file exceeds size limit")

// Target names where the files of one request go.
type Target struct {
	Bucket     string
	Prefix     string
	PublicRead bool
	// PublicBaseURL, when set, is used to build the URL of each stored file.
	PublicBaseURL string
}

type Config struct {
	MaxFileSize       int64
	Concurrency       int
	RollbackOnFailure bool
	Logger            *logrus.Logger
}

// Pipeline ingests multipart bodies. It is safe for concurrent use.
type Pipeline struct {
	cfg   Config
	store storage.Service
	newID func() string
}

func NewPipeline(cfg Config, store storage.Service) *Pipeline {
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Pipeline{
		cfg:   cfg,
		store: store,
		newID: uuid.NewString,
	}
}

// Ingest parses body as multipart/form-data and stores every file part under target.
func (p *Pipeline) Ingest(ctx context.Context, contentType string, body io.Reader, target Target) (domain.IngestionResult, error) {
	boundary, err := multipartBoundary(contentType)
	if err != nil {
		p.cfg.Logger.Warnf("multipart parse: %v", err)
		return domain.IngestionResult{}, &Error{Status: http.StatusInternalServerError, Message: "Parsing error", Err: err}
	}
	reader := multipart.NewReader(body, boundary)

	writeCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(writeCtx)
	g.SetLimit(p.cfg.Concurrency)

	var (
		files    []domain.StoredFile
		mu       sync.Mutex
		written  = make(map[int]bool)
		parseErr error
	)

	for gctx.Err() == nil {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			p.cfg.Logger.Warnf("multipart parse: %v", err)
			parseErr = &Error{Status: http.StatusInternalServerError, Message: "Parsing error", Err: err}
			break
		}

		name := part.FileName()
		if name == "" {
			_ = part.Close()
			continue
		}

		mimeType := part.Header.Get("Content-Type")
		p.cfg.Logger.WithFields(logrus.Fields{
			"field":    part.FormName(),
			"filename": name,
			"mimeType": mimeType,
		}).Debug("file received")

		data, err := p.readPart(part)
		_ = part.Close()
		if err != nil {
			if errors.Is(err, ErrFileTooLarge) {
				p.cfg.Logger.Warnf("reject %q: over %d bytes", name, p.cfg.MaxFileSize)
				parseErr = &Error{
					Status:  http.StatusRequestEntityTooLarge,
					Message: fmt.Sprintf(`File "%s" exceeds %s limit.`, name, sizeLabel(p.cfg.MaxFileSize)),
					Err:     err,
				}
			} else {
				p.cfg.Logger.Warnf("file stream %q: %v", name, err)
				parseErr = &Error{Status: http.StatusInternalServerError, Message: "File stream error", Err: err}
			}
			break
		}

		if mimeType == "" {
			mimeType = http.DetectContentType(data)
		}
		key := target.Prefix + p.newID() + "-" + name
		idx := len(files)
		files = append(files, domain.StoredFile{
			Key:         key,
			Name:        name,
			URL:         storage.PublicURL(target.PublicBaseURL, key),
			ContentType: mimeType,
			Size:        int64(len(data)),
		})

		g.Go(func() error {
			err := p.store.PutObject(gctx, storage.PutInput{
				Bucket:      target.Bucket,
				Key:         key,
				Body:        bytes.NewReader(data),
				Size:        int64(len(data)),
				ContentType: mimeType,
				PublicRead:  target.PublicRead,
			})
			if err != nil {
				p.cfg.Logger.Errorf("upload %s: %v", key, err)
				return err
			}
			mu.Lock()
			written[idx] = true
			mu.Unlock()
			p.cfg.Logger.Infof("upload complete: %s", key)
			return nil
		})
	}

	if parseErr != nil {
		cancel()
	}
	waitErr := g.Wait()

	failure := parseErr
	if failure == nil && waitErr != nil {
		failure = &Error{Status: http.StatusInternalServerError, Message: "Upload processing failed", Err: waitErr}
	}
	if failure == nil {
		// the request context may have ended while writes were draining
		if err := ctx.Err(); err != nil {
			failure = &Error{Status: http.StatusInternalServerError, Message: "Upload processing failed", Err: err}
		}
	}
	if failure != nil {
		if p.cfg.RollbackOnFailure {
			p.rollback(ctx, target.Bucket, files, written)
		}
		return domain.IngestionResult{}, failure
	}

	p.cfg.Logger.Infof("all uploads complete: %d file(s)", len(files))
	return domain.IngestionResult{Files: files}, nil
}

func (p *Pipeline) readPart(part io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(part, p.cfg.MaxFileSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > p.cfg.MaxFileSize {
		return nil, ErrFileTooLarge
	}
	return data, nil
}

// rollback removes the objects this request already wrote.
func (p *Pipeline) rollback(ctx context.Context, bucket string, files []domain.StoredFile, written map[int]bool) {
	if len(written) == 0 {
		return
	}
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	for idx := range files {
		if !written[idx] {
			continue
		}
		key := files[idx].Key
		if err := p.store.DeleteObject(cleanupCtx, bucket, key); err != nil {
			p.cfg.Logger.Warnf("rollback %s: %v", key, err)
			continue
		}
		p.cfg.Logger.Infof("rolled back %s", key)
	}
}

func multipartBoundary(contentType string) (string, error) {
	if strings.TrimSpace(contentType) == "" {
		return "", errors.New("missing content type")
	}
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", fmt.Errorf("parse content type: %w", err)
	}
	if !strings.HasPrefix(mediaType, "multipart/") {
		return "", fmt.Errorf("unsupported content type %q", mediaType)
	}
	boundary := params["boundary"]
	if boundary == "" {
		return "", errors.New("multipart boundary missing")
	}
	return boundary, nil
}

func sizeLabel(n int64) string {
	const mib = 1 << 20
	if n >= mib && n%mib == 0 {
		return fmt.Sprintf("%dMB", n/mib)
	}
	return fmt.Sprintf("%d bytes", n)
}
