package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filedrop/internal/storage"
	"filedrop/internal/storage/storagetest"
)

type testPart struct {
	field       string
	filename    string
	contentType string
	data        []byte
}

func multipartBody(t *testing.T, parts ...testPart) (string, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	for _, p := range parts {
		h := make(textproto.MIMEHeader)
		if p.filename != "" {
			h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, p.field, p.filename))
		} else {
			h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q`, p.field))
		}
		if p.contentType != "" {
			h.Set("Content-Type", p.contentType)
		}
		pw, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = pw.Write(p.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return w.FormDataContentType(), buf
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestPipeline(store storage.Service, cfg Config) *Pipeline {
	cfg.Logger = quietLogger()
	p := NewPipeline(cfg, store)
	n := 0
	p.newID = func() string {
		n++
		return fmt.Sprintf("id%d", n)
	}
	return p
}

var publicTarget = Target{
	Bucket:        "pub",
	Prefix:        "uploads/",
	PublicRead:    true,
	PublicBaseURL: "https://files.example.com/",
}

var privateTarget = Target{Bucket: "priv", Prefix: "private/"}

func TestIngest_PublicFiles(t *testing.T) {
	store := storagetest.NewMemory()
	p := newTestPipeline(store, Config{Concurrency: 1})

	ct, body := multipartBody(t,
		testPart{field: "file", filename: "report.pdf", contentType: "application/pdf", data: []byte("%PDF-1.4")},
		testPart{field: "file", filename: "my image.png", contentType: "image/png", data: []byte("png")},
	)

	res, err := p.Ingest(context.Background(), ct, body, publicTarget)
	require.NoError(t, err)
	require.Len(t, res.Files, 2)

	assert.Equal(t, "uploads/id1-report.pdf", res.Files[0].Key)
	assert.Equal(t, "uploads/id2-my image.png", res.Files[1].Key)
	assert.Equal(t, []string{
		"https://files.example.com/uploads/id1-report.pdf",
		"https://files.example.com/uploads/id2-my%20image.png",
	}, res.URLs())

	obj, ok := store.Get("pub", "uploads/id1-report.pdf")
	require.True(t, ok)
	assert.Equal(t, []byte("%PDF-1.4"), obj.Data)
	assert.Equal(t, "application/pdf", obj.ContentType)
	assert.True(t, obj.PublicRead)
}

func TestIngest_PrivateFilesAreNotPublic(t *testing.T) {
	store := storagetest.NewMemory()
	p := newTestPipeline(store, Config{})

	ct, body := multipartBody(t, testPart{field: "file", filename: "secret.txt", contentType: "text/plain", data: []byte("s")})

	res, err := p.Ingest(context.Background(), ct, body, privateTarget)
	require.NoError(t, err)
	require.Len(t, res.Files, 1)
	assert.Empty(t, res.Files[0].URL)

	obj, ok := store.Get("priv", "private/id1-secret.txt")
	require.True(t, ok)
	assert.False(t, obj.PublicRead)
}

func TestIngest_LimitIsPerFile(t *testing.T) {
	store := storagetest.NewMemory()
	p := newTestPipeline(store, Config{MaxFileSize: 1024})

	chunk := bytes.Repeat([]byte("a"), 1000)
	ct, body := multipartBody(t,
		testPart{field: "file", filename: "a.bin", data: chunk},
		testPart{field: "file", filename: "b.bin", data: chunk},
		testPart{field: "file", filename: "c.bin", data: bytes.Repeat([]byte("c"), 1024)},
	)

	res, err := p.Ingest(context.Background(), ct, body, privateTarget)
	require.NoError(t, err)
	assert.Len(t, res.Files, 3)
	assert.Len(t, store.Keys("priv"), 3)
}

func TestIngest_FileOverLimit(t *testing.T) {
	store := storagetest.NewMemory()
	p := newTestPipeline(store, Config{MaxFileSize: 1024})

	ct, body := multipartBody(t,
		testPart{field: "file", filename: "big.bin", data: bytes.Repeat([]byte("x"), 1025)},
	)

	_, err := p.Ingest(context.Background(), ct, body, privateTarget)
	require.Error(t, err)

	var ingestErr *Error
	require.True(t, errors.As(err, &ingestErr))
	assert.Equal(t, http.StatusRequestEntityTooLarge, ingestErr.Status)
	assert.Equal(t, `File "big.bin" exceeds 1024 bytes limit.`, ingestErr.Message)
	assert.True(t, errors.Is(err, ErrFileTooLarge))
	assert.Equal(t, 0, store.Puts)
	assert.Empty(t, store.Keys("priv"))
}

func TestIngest_DefaultLimitMessage(t *testing.T) {
	assert.Equal(t, "100MB", sizeLabel(DefaultMaxFileSize))
	assert.Equal(t, "1024 bytes", sizeLabel(1024))
}

func TestIngest_OverLimitRollsBackSiblings(t *testing.T) {
	store := storagetest.NewMemory()
	p := newTestPipeline(store, Config{MaxFileSize: 16, Concurrency: 1, RollbackOnFailure: true})

	ct, body := multipartBody(t,
		testPart{field: "file", filename: "small.txt", data: []byte("ok")},
		testPart{field: "file", filename: "big.txt", data: bytes.Repeat([]byte("x"), 17)},
	)

	_, err := p.Ingest(context.Background(), ct, body, privateTarget)
	var ingestErr *Error
	require.True(t, errors.As(err, &ingestErr))
	assert.Equal(t, http.StatusRequestEntityTooLarge, ingestErr.Status)
	assert.Empty(t, store.Keys("priv"))
	_, ok := store.Get("priv", "private/id2-big.txt")
	assert.False(t, ok)
}

func TestIngest_WriteFailure(t *testing.T) {
	for _, rollback := range []bool{true, false} {
		t.Run(fmt.Sprintf("rollback=%v", rollback), func(t *testing.T) {
			store := storagetest.NewMemory()
			store.FailPut = func(in storage.PutInput) error {
				if strings.HasSuffix(in.Key, "bad.txt") {
					return errors.New("boom")
				}
				return nil
			}
			p := newTestPipeline(store, Config{Concurrency: 1, RollbackOnFailure: rollback})

			ct, body := multipartBody(t,
				testPart{field: "file", filename: "good.txt", data: []byte("good")},
				testPart{field: "file", filename: "bad.txt", data: []byte("bad")},
			)

			res, err := p.Ingest(context.Background(), ct, body, privateTarget)
			var ingestErr *Error
			require.True(t, errors.As(err, &ingestErr))
			assert.Equal(t, http.StatusInternalServerError, ingestErr.Status)
			assert.Equal(t, "Upload processing failed", ingestErr.Message)
			assert.Empty(t, res.Files)

			if rollback {
				assert.Empty(t, store.Keys("priv"))
				assert.Equal(t, []string{"private/id1-good.txt"}, store.Deletes)
			} else {
				assert.Equal(t, []string{"private/id1-good.txt"}, store.Keys("priv"))
				assert.Empty(t, store.Deletes)
			}
		})
	}
}

func TestIngest_NotMultipart(t *testing.T) {
	store := storagetest.NewMemory()
	p := newTestPipeline(store, Config{})

	for _, ct := range []string{"", "application/json", "multipart/form-data", "%%%"} {
		_, err := p.Ingest(context.Background(), ct, strings.NewReader("{}"), privateTarget)
		var ingestErr *Error
		require.True(t, errors.As(err, &ingestErr), ct)
		assert.Equal(t, http.StatusInternalServerError, ingestErr.Status)
		assert.Equal(t, "Parsing error", ingestErr.Message)
	}
}

func TestIngest_MalformedBody(t *testing.T) {
	store := storagetest.NewMemory()
	p := newTestPipeline(store, Config{})

	_, err := p.Ingest(context.Background(), "multipart/form-data; boundary=xyz", strings.NewReader("garbage"), privateTarget)
	var ingestErr *Error
	require.True(t, errors.As(err, &ingestErr))
	assert.Equal(t, "Parsing error", ingestErr.Message)
}

func TestIngest_SkipsFieldsAndSniffsType(t *testing.T) {
	store := storagetest.NewMemory()
	p := newTestPipeline(store, Config{})

	ct, body := multipartBody(t,
		testPart{field: "note", data: []byte("not a file")},
		testPart{field: "file", filename: "plain.txt", data: []byte("hello there")},
	)

	res, err := p.Ingest(context.Background(), ct, body, privateTarget)
	require.NoError(t, err)
	require.Len(t, res.Files, 1)
	assert.Equal(t, "text/plain; charset=utf-8", res.Files[0].ContentType)
}

func TestIngest_NoFiles(t *testing.T) {
	store := storagetest.NewMemory()
	p := newTestPipeline(store, Config{})

	ct, body := multipartBody(t, testPart{field: "note", data: []byte("x")})

	res, err := p.Ingest(context.Background(), ct, body, publicTarget)
	require.NoError(t, err)
	assert.Empty(t, res.Files)
	assert.Equal(t, 0, store.Puts)
}

func TestIngest_CancelledContext(t *testing.T) {
	store := storagetest.NewMemory()
	p := newTestPipeline(store, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ct, body := multipartBody(t, testPart{field: "file", filename: "a.txt", data: []byte("a")})
	_, err := p.Ingest(ctx, ct, body, privateTarget)
	var ingestErr *Error
	require.True(t, errors.As(err, &ingestErr))
	assert.Equal(t, http.StatusInternalServerError, ingestErr.Status)
	assert.Empty(t, store.Keys("priv"))
}
