package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-dues/backend/pkg/apperr"
)

// fakeObjectStore keeps objects in memory; behavior can be overridden per test.
type fakeObjectStore struct {
	objects     map[string][]byte
	PutFunc     func(key string) error
	PresignFunc func(key string, ttl time.Duration) (string, error)
	presigns    int
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: map[string][]byte{}}
}

func (f *fakeObjectStore) Name() string { return "fake" }

func (f *fakeObjectStore) Put(_ context.Context, key, _ string, body io.Reader, _ int64) error {
	if f.PutFunc != nil {
		if err := f.PutFunc(key); err != nil {
			return err
		}
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.objects[key] = data
	return nil
}

func (f *fakeObjectStore) PresignGet(_ context.Context, key string, ttl time.Duration) (string, error) {
	f.presigns++
	if f.PresignFunc != nil {
		return f.PresignFunc(key, ttl)
	}
	return "https://signed.example/" + key + "?n=" + string(rune('0'+f.presigns)), nil
}

func (f *fakeObjectStore) PublicURL(key string) string { return "https://public.example/" + key }

func (f *fakeObjectStore) Delete(_ context.Context, key string) error {
	delete(f.objects, key)
	return nil
}

func (f *fakeObjectStore) Open(_ context.Context, key string) (io.ReadCloser, string, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, "", apperr.NotFound("object")
	}
	return io.NopCloser(bytes.NewReader(data)), "image/png", nil
}

var pngUpload = Upload{Data: []byte("\x89PNG\r\n\x1a\nfake"), ContentType: "image/png", Filename: "proof.png"}

func TestStoreUsesCloudWhenConfigured(t *testing.T) {
	cloud := newFakeObjectStore()
	b := NewBlobs(cloud, NewLocalDisk(t.TempDir(), "/uploads"), nil, nil)

	obj, err := b.Store(context.Background(), pngUpload, "proofs/p1.png")
	require.NoError(t, err)
	assert.Equal(t, Object{Path: "proofs/p1.png"}, obj)
	assert.Equal(t, pngUpload.Data, cloud.objects["proofs/p1.png"])
}

func TestStoreFallsBackToLocalOnUploadFailure(t *testing.T) {
	cloud := newFakeObjectStore()
	cloud.PutFunc = func(string) error { return errors.New("access denied") }
	local := NewLocalDisk(t.TempDir(), "/uploads")
	b := NewBlobs(cloud, local, nil, nil)

	obj, err := b.Store(context.Background(), pngUpload, "proofs/p1.png")
	require.NoError(t, err)
	assert.True(t, obj.IsLocal)
	assert.NotEqual(t, "proofs/p1.png", obj.Path)
	assert.Equal(t, ".png", obj.Path[len(obj.Path)-4:])

	rc, _, err := b.Open(context.Background(), obj)
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, pngUpload.Data, got)
}

func TestStoreWithoutCloudIsLocal(t *testing.T) {
	b := NewBlobs(nil, NewLocalDisk(t.TempDir(), "/uploads"), nil, nil)
	first, err := b.Store(context.Background(), pngUpload, "qr/e1.png")
	require.NoError(t, err)
	second, err := b.Store(context.Background(), pngUpload, "qr/e1.png")
	require.NoError(t, err)
	assert.True(t, first.IsLocal)
	assert.NotEqual(t, first.Path, second.Path, "local names are unique")

	u, err := b.ResolveURL(context.Background(), first, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, ResolvedURL{URL: "/uploads/" + first.Path, Local: true}, u)
}

func TestResolveURLWithoutCloudIsMisconfigured(t *testing.T) {
	b := NewBlobs(nil, NewLocalDisk(t.TempDir(), "/uploads"), nil, nil)
	_, err := b.ResolveURL(context.Background(), Object{Path: "proofs/p1.png"}, time.Hour)
	assert.ErrorIs(t, err, apperr.ErrStorageMisconfigured)
}

func TestResolveURLReusesCachedURLOutsideMargin(t *testing.T) {
	cloud := newFakeObjectStore()
	b := NewBlobs(cloud, NewLocalDisk(t.TempDir(), "/uploads"), NewMemoryURLCache(8), nil)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }
	obj := Object{Path: "proofs/p1.png"}

	first, err := b.ResolveURL(context.Background(), obj, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 60, first.ExpiresIn)

	now = now.Add(50 * time.Second)
	second, err := b.ResolveURL(context.Background(), obj, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, first.URL, second.URL)
	assert.Equal(t, 10, second.ExpiresIn)
	assert.Equal(t, 1, cloud.presigns)

	// Within the safety margin of expiry a fresh URL is minted.
	now = now.Add(9 * time.Second)
	third, err := b.ResolveURL(context.Background(), obj, time.Minute)
	require.NoError(t, err)
	assert.NotEqual(t, first.URL, third.URL)
	assert.Equal(t, 2, cloud.presigns)
}

func TestResolveURLFallsBackToPublicURL(t *testing.T) {
	cloud := newFakeObjectStore()
	cloud.PresignFunc = func(string, time.Duration) (string, error) { return "", errors.New("no credentials") }
	cache := NewMemoryURLCache(8)
	b := NewBlobs(cloud, NewLocalDisk(t.TempDir(), "/uploads"), cache, nil)

	u, err := b.ResolveURL(context.Background(), Object{Path: "qr/e1.png"}, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "https://public.example/qr/e1.png", u.URL)
	assert.Zero(t, cache.Len(), "public fallback is not cached")
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	cloud := newFakeObjectStore()
	b := NewBlobs(cloud, NewLocalDisk(t.TempDir(), "/uploads"), nil, nil)
	obj, err := b.Store(ctx, pngUpload, "qr/e1.png")
	require.NoError(t, err)
	require.NoError(t, b.Remove(ctx, obj))
	assert.Empty(t, cloud.objects)
	assert.NoError(t, b.Remove(ctx, Object{}))
}
