package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filedrop/internal/domain"
	"filedrop/internal/ingest"
	"filedrop/internal/storage/storagetest"
)

var testBuckets = Buckets{Public: "pub", Private: "priv", PublicBaseURL: "https://files.example.com"}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newFileService(store *storagetest.Memory) FileService {
	pipeline := ingest.NewPipeline(ingest.Config{Logger: quietLogger(), RollbackOnFailure: true}, store)
	return NewFileService(store, pipeline, testBuckets)
}

func uploadBody(t *testing.T, files map[string]string) (string, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	for name, content := range files {
		fw, err := w.CreateFormFile("file", name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return w.FormDataContentType(), buf
}

func TestFileService_UploadListDeleteRoundTrip(t *testing.T) {
	store := storagetest.NewMemory()
	svc := newFileService(store)
	ctx := context.Background()

	ct, body := uploadBody(t, map[string]string{"report.pdf": "pdf"})
	res, err := svc.Upload(ctx, domain.TierPublic, ct, body)
	require.NoError(t, err)
	require.Len(t, res.Files, 1)
	key := res.Files[0].Key
	assert.Regexp(t, `^uploads/[0-9a-f-]{36}-report\.pdf$`, key)
	assert.Equal(t, "https://files.example.com/"+key, res.URLs()[0])

	page, err := svc.List(ctx, domain.TierPublic, ListOptions{})
	require.NoError(t, err)
	require.Len(t, page.Objects, 1)
	assert.Equal(t, key, page.Objects[0].Key)
	assert.Equal(t, "report.pdf", page.Objects[0].Name)
	assert.Equal(t, int64(3), page.Objects[0].Size)
	assert.Equal(t, "https://files.example.com/"+key, page.Objects[0].URL)

	require.NoError(t, svc.Delete(ctx, domain.TierPublic, key))

	page, err = svc.List(ctx, domain.TierPublic, ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, page.Objects)
}

func TestFileService_UploadPrivate(t *testing.T) {
	store := storagetest.NewMemory()
	svc := newFileService(store)

	ct, body := uploadBody(t, map[string]string{"secret.txt": "s"})
	res, err := svc.Upload(context.Background(), domain.TierPrivate, ct, body)
	require.NoError(t, err)
	require.Len(t, res.Files, 1)
	assert.Empty(t, res.Files[0].URL)

	keys := store.Keys("priv")
	require.Len(t, keys, 1)
	assert.Regexp(t, `^private/`, keys[0])
	assert.Empty(t, store.Keys("pub"))

	obj, _ := store.Get("priv", keys[0])
	assert.False(t, obj.PublicRead)
}

func TestFileService_ListScopesAndSorts(t *testing.T) {
	store := storagetest.NewMemory()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	store.Seed("priv", "private/aaa-old.txt", []byte("1"), base)
	store.Seed("priv", "private/bbb-new.txt", []byte("22"), base.Add(time.Hour))
	store.Seed("priv", "other/ccc-x.txt", []byte("3"), base)
	store.Seed("pub", "uploads/ddd-y.txt", []byte("4"), base)
	svc := newFileService(store)

	page, err := svc.List(context.Background(), domain.TierPrivate, ListOptions{})
	require.NoError(t, err)
	require.Len(t, page.Objects, 2)
	assert.Equal(t, "private/bbb-new.txt", page.Objects[0].Key)
	assert.Equal(t, "new.txt", page.Objects[0].Name)
	assert.Empty(t, page.Objects[0].URL)
	assert.Equal(t, "private/aaa-old.txt", page.Objects[1].Key)
	assert.Empty(t, page.NextCursor)
}

func TestFileService_ListIsIdempotent(t *testing.T) {
	store := storagetest.NewMemory()
	now := time.Now().UTC()
	store.Seed("pub", "uploads/abc-report.pdf", []byte("r"), now)
	store.Seed("pub", "uploads/def-image.png", []byte("i"), now)
	svc := newFileService(store)

	first, err := svc.List(context.Background(), domain.TierPublic, ListOptions{})
	require.NoError(t, err)
	second, err := svc.List(context.Background(), domain.TierPublic, ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestFileService_ListPagination(t *testing.T) {
	store := storagetest.NewMemory()
	now := time.Now().UTC()
	for _, k := range []string{"a", "b", "c"} {
		store.Seed("pub", "uploads/"+k+"-f.txt", []byte(k), now)
	}
	svc := newFileService(store)
	ctx := context.Background()

	page, err := svc.List(ctx, domain.TierPublic, ListOptions{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page.Objects, 2)
	require.NotEmpty(t, page.NextCursor)

	page, err = svc.List(ctx, domain.TierPublic, ListOptions{Limit: 2, Cursor: page.NextCursor})
	require.NoError(t, err)
	assert.Len(t, page.Objects, 1)
	assert.Empty(t, page.NextCursor)

	_, err = svc.List(ctx, domain.TierPublic, ListOptions{Limit: 1001})
	var vErr *ValidationError
	assert.True(t, errors.As(err, &vErr))
}

func TestFileService_ListStoreError(t *testing.T) {
	store := storagetest.NewMemory()
	store.FailList = errors.New("unreachable")
	svc := newFileService(store)

	_, err := svc.List(context.Background(), domain.TierPublic, ListOptions{})
	assert.EqualError(t, err, "unreachable")
}

func TestFileService_DeleteValidation(t *testing.T) {
	store := storagetest.NewMemory()
	svc := newFileService(store)
	ctx := context.Background()

	cases := map[string]string{
		"":                     "Key is required.",
		"   ":                  "Key is required.",
		"private/abc-x.txt":    "Invalid key.",
		"uploads/":             "Invalid key.",
		"uploads/../private/x": "Invalid key.",
	}
	for key, want := range cases {
		err := svc.Delete(ctx, domain.TierPublic, key)
		var vErr *ValidationError
		require.True(t, errors.As(err, &vErr), key)
		assert.Equal(t, want, vErr.Message, key)
	}
	assert.Empty(t, store.Deletes)

	store.FailDelete = errors.New("denied")
	assert.EqualError(t, svc.Delete(ctx, domain.TierPrivate, "private/abc-x.txt"), "denied")
}
