// Package storagetest provides an in-memory storage.Service for tests.
package storagetest

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"filedrop/internal/storage"
)

// Object is a stored blob together with its write metadata.
type Object struct {
	Bucket       string
	Key          string
	Data         []byte
	ContentType  string
	PublicRead   bool
	LastModified time.Time
}

// Memory keeps objects in a map. Fail hooks let tests inject errors per call.
type Memory struct {
	mu      sync.Mutex
	objects map[string]Object
	clock   func() time.Time

	FailPut     func(in storage.PutInput) error
	FailList    error
	FailDelete  error
	FailPresign error

	Puts     int
	Deletes  []string
	Presigns int
}

func NewMemory() *Memory {
	return &Memory{
		objects: make(map[string]Object),
		clock:   time.Now,
	}
}

func id(bucket, key string) string { return bucket + "/" + key }

// Seed stores an object directly, bypassing hooks and counters.
func (m *Memory) Seed(bucket, key string, data []byte, modified time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[id(bucket, key)] = Object{Bucket: bucket, Key: key, Data: data, LastModified: modified}
}

// Get returns a stored object.
func (m *Memory) Get(bucket, key string) (Object, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[id(bucket, key)]
	return obj, ok
}

// Keys returns the sorted keys stored in bucket.
func (m *Memory) Keys(bucket string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for _, obj := range m.objects {
		if obj.Bucket == bucket {
			keys = append(keys, obj.Key)
		}
	}
	sort.Strings(keys)
	return keys
}

func (m *Memory) PutObject(ctx context.Context, in storage.PutInput) error {
	m.mu.Lock()
	m.Puts++
	hook := m.FailPut
	m.mu.Unlock()

	if hook != nil {
		if err := hook(in); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[id(in.Bucket, in.Key)] = Object{
		Bucket:       in.Bucket,
		Key:          in.Key,
		Data:         data,
		ContentType:  in.ContentType,
		PublicRead:   in.PublicRead,
		LastModified: m.clock(),
	}
	return nil
}

func (m *Memory) ListObjects(_ context.Context, in storage.ListInput) (storage.ObjectPage, error) {
	if m.FailList != nil {
		return storage.ObjectPage{}, m.FailList
	}

	m.mu.Lock()
	var matched []storage.ObjectInfo
	for _, obj := range m.objects {
		if obj.Bucket != in.Bucket || !strings.HasPrefix(obj.Key, in.Prefix) {
			continue
		}
		modified := obj.LastModified
		matched = append(matched, storage.ObjectInfo{
			Key:          obj.Key,
			Size:         int64(len(obj.Data)),
			LastModified: &modified,
		})
	}
	m.mu.Unlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].Key < matched[j].Key })

	start := 0
	if in.ContinuationToken != "" {
		n, err := strconv.Atoi(in.ContinuationToken)
		if err != nil || n < 0 || n > len(matched) {
			return storage.ObjectPage{}, fmt.Errorf("invalid continuation token %q", in.ContinuationToken)
		}
		start = n
	}
	limit := int(in.MaxKeys)
	if limit <= 0 {
		limit = storage.DefaultPageSize
	}
	end := start + limit
	page := storage.ObjectPage{}
	if end < len(matched) {
		page.NextContinuationToken = strconv.Itoa(end)
	} else {
		end = len(matched)
	}
	page.Objects = matched[start:end]
	return page, nil
}

func (m *Memory) HeadObject(_ context.Context, bucket, key string) (storage.ObjectInfo, error) {
	obj, ok := m.Get(bucket, key)
	if !ok {
		return storage.ObjectInfo{}, storage.ErrNotFound
	}
	modified := obj.LastModified
	return storage.ObjectInfo{Key: key, Size: int64(len(obj.Data)), LastModified: &modified}, nil
}

func (m *Memory) DeleteObject(_ context.Context, bucket, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Deletes = append(m.Deletes, key)
	if m.FailDelete != nil {
		return m.FailDelete
	}
	delete(m.objects, id(bucket, key))
	return nil
}

func (m *Memory) PresignGetObject(_ context.Context, bucket, key string, expires time.Duration) (string, error) {
	m.mu.Lock()
	m.Presigns++
	m.mu.Unlock()
	if m.FailPresign != nil {
		return "", m.FailPresign
	}
	q := url.Values{}
	q.Set("X-Amz-Expires", strconv.FormatInt(int64(expires/time.Second), 10))
	return fmt.Sprintf("https://presigned.test/%s/%s?%s", bucket, key, q.Encode()), nil
}

var _ storage.Service = (*Memory)(nil)
