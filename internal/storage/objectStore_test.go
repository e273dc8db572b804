package storage

import (
	"context"
	"encoding/xml"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"dgisync/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 answers the path-style S3 calls ObjectStore makes against one bucket.
type fakeS3 struct {
	mu            sync.Mutex
	bucket        string
	bucketCreated bool
	objects       map[string]string // key -> content type
}

type listEntry struct {
	Key          string `xml:"Key"`
	LastModified string `xml:"LastModified"`
	ETag         string `xml:"ETag"`
	Size         int64  `xml:"Size"`
	StorageClass string `xml:"StorageClass"`
}

type listResult struct {
	XMLName     xml.Name    `xml:"http://s3.amazonaws.com/doc/2006-03-01/ ListBucketResult"`
	Name        string      `xml:"Name"`
	Prefix      string      `xml:"Prefix"`
	KeyCount    int         `xml:"KeyCount"`
	MaxKeys     int         `xml:"MaxKeys"`
	IsTruncated bool        `xml:"IsTruncated"`
	Contents    []listEntry `xml:"Contents"`
}

func newFakeS3(bucket string) *fakeS3 {
	return &fakeS3{bucket: bucket, objects: make(map[string]string)}
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	bucket, key, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/"), "/")
	if bucket != f.bucket || (!f.bucketCreated && !(r.Method == http.MethodPut && key == "")) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeS3Error(w, http.StatusNotFound, "NoSuchBucket")
		return
	}

	switch {
	case r.Method == http.MethodHead && key == "":
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut && key == "":
		f.bucketCreated = true
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut:
		_, _ = io.Copy(io.Discard, r.Body)
		f.objects[key] = r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodDelete:
		delete(f.objects, key)
		w.WriteHeader(http.StatusNoContent)
	case r.Method == http.MethodGet && key == "" && r.URL.Query().Get("list-type") == "2":
		prefix := r.URL.Query().Get("prefix")
		result := listResult{Name: f.bucket, Prefix: prefix, MaxKeys: 1000}
		keys := make([]string, 0, len(f.objects))
		for k := range f.objects {
			if strings.HasPrefix(k, prefix) {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			result.Contents = append(result.Contents, listEntry{
				Key:          k,
				LastModified: "2025-03-01T00:00:00.000Z",
				ETag:         `"etag"`,
				Size:         1,
				StorageClass: "STANDARD",
			})
		}
		result.KeyCount = len(result.Contents)
		w.Header().Set("Content-Type", "application/xml")
		_ = xml.NewEncoder(w).Encode(result)
	default:
		writeS3Error(w, http.StatusNotImplemented, "NotImplemented")
	}
}

func (f *fakeS3) contentType(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	value, ok := f.objects[key]
	return value, ok
}

func writeS3Error(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>`+code+`</Code><Message>`+code+`</Message></Error>`)
}

func newTestObjectStore(t *testing.T, fake *fakeS3) *ObjectStore {
	t.Helper()
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	store, err := NewObjectStore(config.Config{
		S3Endpoint:  server.URL,
		S3AccessKey: "access",
		S3SecretKey: "secret",
		S3Bucket:    fake.bucket,
		S3Prefix:    "/dgi/",
		S3Region:    "us-east-1",
	})
	require.NoError(t, err)
	return store
}

func TestObjectStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3("contribuables")
	store := newTestObjectStore(t, fake)

	require.NoError(t, store.EnsureBucket(ctx))
	require.NoError(t, store.EnsureBucket(ctx), "existing bucket is kept")

	dir := t.TempDir()
	workbook := filepath.Join(dir, "FICHIER_MARS_2024.xlsx")
	require.NoError(t, os.WriteFile(workbook, []byte("xlsx"), 0o644))
	dataset := filepath.Join(dir, "contribuables.parquet")
	require.NoError(t, os.WriteFile(dataset, []byte("PAR1"), 0o644))

	id, err := store.Upsert(ctx, workbook, "sources/FICHIER_MARS_2024.xlsx")
	require.NoError(t, err)
	assert.Equal(t, "dgi/sources/FICHIER_MARS_2024.xlsx", id)

	again, err := store.Upsert(ctx, workbook, "sources/FICHIER_MARS_2024.xlsx")
	require.NoError(t, err)
	assert.Equal(t, id, again, "upsert keeps the identifier")

	_, err = store.Upsert(ctx, dataset, "dataset/contribuables.parquet")
	require.NoError(t, err)

	contentType, ok := fake.contentType("dgi/sources/FICHIER_MARS_2024.xlsx")
	require.True(t, ok)
	assert.Equal(t, WorkbookContentType, contentType)
	contentType, ok = fake.contentType("dgi/dataset/contribuables.parquet")
	require.True(t, ok)
	assert.Equal(t, ParquetContentType, contentType)

	objects, err := store.List(ctx, "sources")
	require.NoError(t, err)
	require.Len(t, objects, 1, "listing is scoped to the folder")
	assert.Equal(t, id, objects[0].ID)
	assert.Equal(t, "FICHIER_MARS_2024.xlsx", objects[0].Name)

	require.NoError(t, store.Delete(ctx, objects[0].ID))

	objects, err = store.List(ctx, "sources")
	require.NoError(t, err)
	assert.Empty(t, objects)
}

func TestObjectStore_MissingBucket(t *testing.T) {
	store := newTestObjectStore(t, newFakeS3("contribuables"))

	_, err := store.List(context.Background(), "sources")

	var coded *Error
	require.True(t, errors.As(err, &coded))
	assert.Equal(t, CodeBucketNotFound, coded.Code)
	assert.False(t, coded.Retryable)
}

func TestObjectStore_DeleteHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := newTestObjectStore(t, newFakeS3("contribuables")).Delete(ctx, "dgi/sources/a.xlsx")

	assert.ErrorIs(t, err, context.Canceled)
}
