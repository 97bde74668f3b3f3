package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"filedrop/internal/domain"
	"filedrop/internal/ingest"
	"filedrop/internal/storage"
)

// Buckets maps each tier to its bucket.
type Buckets struct {
	Public        string
	Private       string
	PublicBaseURL string
}

func (b Buckets) bucket(tier domain.Tier) string {
	if tier == domain.TierPrivate {
		return b.Private
	}
	return b.Public
}

// ListOptions selects a listing page.
type ListOptions struct {
	Cursor string
	Limit  int
}

// FileService coordinates uploads, listings and deletes for both tiers.
type FileService interface {
	Upload(ctx context.Context, tier domain.Tier, contentType string, body io.Reader) (domain.IngestionResult, error)
	List(ctx context.Context, tier domain.Tier, opts ListOptions) (domain.ObjectPage, error)
	Delete(ctx context.Context, tier domain.Tier, key string) error
}

type fileService struct {
	store    storage.Service
	pipeline *ingest.Pipeline
	buckets  Buckets
}

func NewFileService(store storage.Service, pipeline *ingest.Pipeline, buckets Buckets) FileService {
	return &fileService{
		store:    store,
		pipeline: pipeline,
		buckets:  buckets,
	}
}

func (s *fileService) Upload(ctx context.Context, tier domain.Tier, contentType string, body io.Reader) (domain.IngestionResult, error) {
	target := ingest.Target{
		Bucket: s.buckets.bucket(tier),
		Prefix: tier.Prefix(),
	}
	if tier == domain.TierPublic {
		target.PublicRead = true
		target.PublicBaseURL = s.buckets.PublicBaseURL
	}
	return s.pipeline.Ingest(ctx, contentType, body, target)
}

func (s *fileService) List(ctx context.Context, tier domain.Tier, opts ListOptions) (domain.ObjectPage, error) {
	limit := opts.Limit
	if limit == 0 {
		limit = storage.DefaultPageSize
	}
	if limit < 0 || limit > storage.DefaultPageSize {
		return domain.ObjectPage{}, invalid(fmt.Sprintf("Limit must be between 1 and %d.", storage.DefaultPageSize))
	}

	page, err := s.store.ListObjects(ctx, storage.ListInput{
		Bucket:            s.buckets.bucket(tier),
		Prefix:            tier.Prefix(),
		ContinuationToken: opts.Cursor,
		MaxKeys:           int32(limit),
	})
	if err != nil {
		return domain.ObjectPage{}, err
	}

	objects := make([]domain.Object, 0, len(page.Objects))
	for _, info := range page.Objects {
		obj := domain.Object{
			Key:  info.Key,
			Name: DisplayName(info.Key, tier),
			Size: info.Size,
		}
		if info.LastModified != nil {
			obj.LastModified = *info.LastModified
		}
		if tier == domain.TierPublic {
			obj.URL = storage.PublicURL(s.buckets.PublicBaseURL, info.Key)
		}
		objects = append(objects, obj)
	}
	sort.SliceStable(objects, func(i, j int) bool {
		return objects[i].LastModified.After(objects[j].LastModified)
	})

	return domain.ObjectPage{Objects: objects, NextCursor: page.NextContinuationToken}, nil
}

func (s *fileService) Delete(ctx context.Context, tier domain.Tier, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return invalid("Key is required.")
	}
	if !validKey(key, tier) {
		return invalid("Invalid key.")
	}
	return s.store.DeleteObject(ctx, s.buckets.bucket(tier), key)
}

// validKey reports whether key addresses an object of tier.
func validKey(key string, tier domain.Tier) bool {
	rest, ok := strings.CutPrefix(key, tier.Prefix())
	if !ok || rest == "" {
		return false
	}
	for _, segment := range strings.Split(rest, "/") {
		if segment == ".." {
			return false
		}
	}
	return true
}

func mapStoreError(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
