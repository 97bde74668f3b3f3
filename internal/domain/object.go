package domain

import "time"

// Tier partitions stored files by visibility.
type Tier string

const (
	TierPublic  Tier = "public"
	TierPrivate Tier = "private"
)

// Prefix returns the key prefix every object of the tier lives under.
func (t Tier) Prefix() string {
	if t == TierPrivate {
		return "private/"
	}
	return "uploads/"
}

// Object describes a file held by the object store.
type Object struct {
	Key          string
	Name         string
	URL          string
	Size         int64
	LastModified time.Time
}

// ObjectPage is one listing page. NextCursor is empty once the listing is exhausted.
type ObjectPage struct {
	Objects    []Object
	NextCursor string
}

// StoredFile is the outcome of one successful write during ingestion.
type StoredFile struct {
	Key         string
	Name        string
	URL         string
	ContentType string
	Size        int64
}

// IngestionResult lists the files written by one upload request, in part order.
type IngestionResult struct {
	Files []StoredFile
}

// URLs returns the public URLs of the stored files.
func (r IngestionResult) URLs() []string {
	urls := make([]string, 0, len(r.Files))
	for _, f := range r.Files {
		urls = append(urls, f.URL)
	}
	return urls
}

// LinkRequest asks for a time limited download link on a private object.
type LinkRequest struct {
	Key           string
	ExpirySeconds int64
	Recipients    []string
}

// SignedLink is a presigned download URL. It is never persisted.
type SignedLink struct {
	URL           string
	ExpirySeconds int64
}
