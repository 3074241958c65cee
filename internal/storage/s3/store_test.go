package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingdombarber/insight/internal/storage"
)

type fakeClient struct {
	objects       map[string][]byte
	bucketExists  bool
	createdBucket string
	deleteErr     error
}

func newFakeClient() *fakeClient { return &fakeClient{objects: map[string][]byte{}} }

func (f *fakeClient) Put(_ context.Context, bucket, key string, r io.Reader, _ int64, _ string) (storage.ObjectInfo, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	f.objects[bucket+"/"+key] = b
	return storage.ObjectInfo{Key: key, Size: int64(len(b))}, nil
}

func (f *fakeClient) Get(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	b, ok := f.objects[bucket+"/"+key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (f *fakeClient) Stat(_ context.Context, bucket, key string) (storage.ObjectInfo, error) {
	b, ok := f.objects[bucket+"/"+key]
	if !ok {
		return storage.ObjectInfo{}, storage.ErrObjectNotFound
	}
	return storage.ObjectInfo{Key: key, Size: int64(len(b))}, nil
}

func (f *fakeClient) Delete(_ context.Context, bucket, key string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.objects, bucket+"/"+key)
	return nil
}

func (f *fakeClient) BucketExists(context.Context, string) (bool, error) { return f.bucketExists, nil }

func (f *fakeClient) CreateBucket(_ context.Context, bucket, _ string) error {
	f.createdBucket = bucket
	return nil
}

func TestStore_PrefixedRoundTrip(t *testing.T) {
	ctx := context.Background()
	fake := newFakeClient()
	store, err := newWithClient("reports-bucket", "/insight/prod/", fake)
	require.NoError(t, err)

	_, err = store.Put(ctx, "/reports/a/report.md", strings.NewReader("# hola"), 6, storage.PutOptions{ContentType: "text/markdown"})
	require.NoError(t, err)
	assert.Contains(t, fake.objects, "reports-bucket/insight/prod/reports/a/report.md")

	rc, err := store.Get(ctx, "reports/a/report.md")
	require.NoError(t, err)
	body, _ := io.ReadAll(rc)
	assert.Equal(t, "# hola", string(body))

	info, err := store.Stat(ctx, "reports/a/report.md")
	require.NoError(t, err)
	assert.Equal(t, int64(6), info.Size)
}

func TestStore_Errors(t *testing.T) {
	ctx := context.Background()
	fake := newFakeClient()
	store, err := newWithClient("b", "", fake)
	require.NoError(t, err)

	_, err = store.Put(ctx, "../secrets.txt", strings.NewReader("x"), 1, storage.PutOptions{})
	assert.Error(t, err)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)
	_, err = store.Stat(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)

	fake.deleteErr = storage.ErrObjectNotFound
	assert.NoError(t, store.Delete(ctx, "missing"))
	fake.deleteErr = errors.New("access denied")
	assert.ErrorContains(t, store.Delete(ctx, "x"), "access denied")

	_, err = newWithClient(" ", "", fake)
	assert.Error(t, err)
	_, err = newWithClient("b", "", nil)
	assert.Error(t, err)
}

func TestStore_EnsureBucket(t *testing.T) {
	fake := newFakeClient()
	store, err := newWithClient("b", "", fake)
	require.NoError(t, err)

	require.NoError(t, store.ensureBucket(context.Background(), "us-east-1"))
	assert.Equal(t, "b", fake.createdBucket)

	fake.createdBucket, fake.bucketExists = "", true
	require.NoError(t, store.ensureBucket(context.Background(), ""))
	assert.Empty(t, fake.createdBucket)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(context.Background(), Config{Bucket: "b"})
	assert.ErrorContains(t, err, "endpoint")
	_, err = New(context.Background(), Config{Endpoint: "localhost:9000"})
	assert.ErrorContains(t, err, "bucket")
}

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		raw        string
		useSSL     bool
		wantHost   string
		wantSecure bool
	}{
		{"https://minio.example.com", false, "minio.example.com", true},
		{"http://localhost:9000", false, "localhost:9000", false},
		{"localhost:9000", true, "localhost:9000", true},
	}
	for _, tt := range tests {
		host, secure, err := parseEndpoint(tt.raw, tt.useSSL)
		require.NoError(t, err)
		assert.Equal(t, tt.wantHost, host)
		assert.Equal(t, tt.wantSecure, secure)
	}
	_, _, err := parseEndpoint("https://", false)
	assert.Error(t, err)
}

func TestMapMinioErr(t *testing.T) {
	assert.NoError(t, mapMinioErr(nil))
	assert.ErrorIs(t, mapMinioErr(minio.ErrorResponse{Code: "NoSuchKey"}), storage.ErrObjectNotFound)
	other := errors.New("boom")
	assert.Equal(t, other, mapMinioErr(other))
}
