package storage

import (
	"context"
	"errors"
	"io"
	"net/url"
	"strings"
	"time"
)

// ErrNotFound is returned when the requested object does not exist.
var ErrNotFound = errors.New("object not found")

// DefaultPageSize matches the single page limit of S3 compatible listings.
const DefaultPageSize = 1000

type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified *time.Time
}

// ObjectPage is one page of a listing.
type ObjectPage struct {
	Objects               []ObjectInfo
	NextContinuationToken string
}

// PutInput describes a single object write.
type PutInput struct {
	Bucket      string
	Key         string
	Body        io.Reader
	Size        int64
	ContentType string
	PublicRead  bool
}

// ListInput selects one listing page.
type ListInput struct {
	Bucket            string
	Prefix            string
	ContinuationToken string
	MaxKeys           int32
}

// Service talks to remote object storage.
type Service interface {
	PutObject(ctx context.Context, in PutInput) error
	ListObjects(ctx context.Context, in ListInput) (ObjectPage, error)
	HeadObject(ctx context.Context, bucket, key string) (ObjectInfo, error)
	DeleteObject(ctx context.Context, bucket, key string) error
	PresignGetObject(ctx context.Context, bucket, key string, expires time.Duration) (string, error)
}

// PublicURL joins the public base URL of a bucket with an escaped object key.
// It returns an empty string when no base URL is configured.
func PublicURL(base, key string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		return ""
	}
	return base + "/" + (&url.URL{Path: key}).EscapedPath()
}
