package objects

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-dues/backend/pkg/storage"
)

type fakeBucket struct {
	presign func(key string, ttl time.Duration) (string, error)
	calls   int
}

func (f *fakeBucket) Name() string { return "fake" }
func (f *fakeBucket) Put(context.Context, string, string, io.Reader, int64) error {
	return nil
}
func (f *fakeBucket) PresignGet(_ context.Context, key string, ttl time.Duration) (string, error) {
	f.calls++
	return f.presign(key, ttl)
}
func (f *fakeBucket) PublicURL(key string) string         { return "https://public.example/" + key }
func (f *fakeBucket) Delete(context.Context, string) error { return nil }
func (f *fakeBucket) Open(context.Context, string) (io.ReadCloser, string, error) {
	return nil, "", nil
}

func setupRouter(t *testing.T, cloud storage.ObjectStore) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	blobs := storage.NewBlobs(cloud, storage.NewLocalDisk(t.TempDir(), "/uploads"), storage.NewMemoryURLCache(16), nil)
	h := NewHandler(blobs, time.Hour)
	r := gin.New()
	r.GET("/api/storage/signed-url", h.SignedURL)
	return r
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestSignedURLLocalObject(t *testing.T) {
	r := setupRouter(t, nil)

	w := get(r, "/api/storage/signed-url?path=proofs/p1.png&local=true")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var got storage.ResolvedURL
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "/uploads/proofs/p1.png", got.URL)
	assert.True(t, got.Local)
	assert.Zero(t, got.ExpiresIn)
}

func TestSignedURLCloudObjectIsCached(t *testing.T) {
	bucket := &fakeBucket{presign: func(key string, _ time.Duration) (string, error) {
		return "https://signed.example/" + key, nil
	}}
	r := setupRouter(t, bucket)

	for i := 0; i < 2; i++ {
		w := get(r, "/api/storage/signed-url?path=/qr/e1.png")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var got storage.ResolvedURL
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, "https://signed.example/qr/e1.png", got.URL)
		assert.False(t, got.Local)
		assert.Greater(t, got.ExpiresIn, 3500)
	}
	assert.Equal(t, 1, bucket.calls)
}

func TestSignedURLRejectsBadPaths(t *testing.T) {
	r := setupRouter(t, nil)

	assert.Equal(t, http.StatusBadRequest, get(r, "/api/storage/signed-url").Code)
	assert.Equal(t, http.StatusBadRequest, get(r, "/api/storage/signed-url?path=../etc/passwd").Code)
}

func TestSignedURLCloudObjectWithoutBucket(t *testing.T) {
	r := setupRouter(t, nil)

	w := get(r, "/api/storage/signed-url?path=proofs/p1.png")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
