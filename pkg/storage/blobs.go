// Package storage stores proof-of-payment images and event QR codes either
// in a private cloud bucket or on local disk, and resolves them to URLs on
// demand. No long-lived credentialed URL is ever persisted.
package storage

import (
	"bytes"
	"context"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campus-dues/backend/pkg/apperr"
)

const (
	// DefaultURLTTL is how long a minted signed URL stays valid.
	DefaultURLTTL = time.Hour
	// ExpirySafetyMargin is the minimum remaining lifetime for a cached URL to be reused.
	ExpirySafetyMargin = 2 * time.Second
)

// ObjectStore is a private cloud bucket.
type ObjectStore interface {
	Name() string
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
	PublicURL(key string) string
	Delete(ctx context.Context, key string) error
	Open(ctx context.Context, key string) (io.ReadCloser, string, error)
}

// Object locates a stored blob.
type Object struct {
	Path    string
	IsLocal bool
}

// ResolvedURL is a dereferenceable URL for an Object. ExpiresIn is in seconds;
// zero for local objects, which do not expire.
type ResolvedURL struct {
	URL       string `json:"url"`
	ExpiresIn int    `json:"expiresIn"`
	Local     bool   `json:"local"`
}

// Blobs is the single writer of binary objects. The cloud store is optional;
// local disk is always available.
type Blobs struct {
	cloud  ObjectStore
	local  *LocalDisk
	cache  URLCache
	logger *zap.Logger
	now    func() time.Time
}

// NewBlobs wires the object backends. cloud and cache may be nil.
func NewBlobs(cloud ObjectStore, local *LocalDisk, cache URLCache, logger *zap.Logger) *Blobs {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cache == nil {
		cache = NewMemoryURLCache(DefaultURLCacheSize)
	}
	return &Blobs{cloud: cloud, local: local, cache: cache, logger: logger, now: time.Now}
}

// HasCloud reports whether a cloud object store is configured.
func (b *Blobs) HasCloud() bool { return b.cloud != nil }

// Store uploads up to the cloud store at suggestedPath. Without a cloud store,
// or when the upload fails, it writes a uniquely named local file in the
// same folder instead.
func (b *Blobs) Store(ctx context.Context, up Upload, suggestedPath string) (Object, error) {
	if b.cloud != nil {
		err := b.cloud.Put(ctx, suggestedPath, up.ContentType, bytes.NewReader(up.Data), int64(len(up.Data)))
		if err == nil {
			return Object{Path: suggestedPath}, nil
		}
		b.logger.Warn("cloud upload failed; storing locally",
			zap.String("backend", b.cloud.Name()), zap.String("path", suggestedPath), zap.Error(err))
	}
	ext := up.Ext()
	if ext == "" {
		ext = strings.ToLower(path.Ext(suggestedPath))
	}
	name := uuid.NewString() + ext
	if dir := path.Dir(suggestedPath); dir != "." && dir != "/" {
		name = path.Join(dir, name)
	}
	if err := b.local.Save(name, up.Data); err != nil {
		return Object{}, err
	}
	return Object{Path: name, IsLocal: true}, nil
}

// ResolveURL returns a URL for obj. Local objects get their static path.
// Cloud objects get a signed URL valid for ttl, reused from the cache while
// more than ExpirySafetyMargin of its lifetime remains. If signing fails the
// public URL is returned, which only works for public buckets.
func (b *Blobs) ResolveURL(ctx context.Context, obj Object, ttl time.Duration) (ResolvedURL, error) {
	if obj.Path == "" {
		return ResolvedURL{}, apperr.NotFound("object")
	}
	if obj.IsLocal {
		return ResolvedURL{URL: b.local.URL(obj.Path), Local: true}, nil
	}
	if b.cloud == nil {
		return ResolvedURL{}, apperr.Misconfigured("no object storage configured for cloud object")
	}
	if ttl <= 0 {
		ttl = DefaultURLTTL
	}
	now := b.now()
	if cached, ok := b.cache.Get(ctx, obj.Path); ok {
		if remaining := cached.ExpiresAt.Sub(now); remaining > ExpirySafetyMargin {
			return ResolvedURL{URL: cached.URL, ExpiresIn: int(remaining.Seconds())}, nil
		}
	}
	url, err := b.cloud.PresignGet(ctx, obj.Path, ttl)
	if err != nil {
		b.logger.Warn("presign failed; falling back to public url",
			zap.String("backend", b.cloud.Name()), zap.String("path", obj.Path), zap.Error(err))
		return ResolvedURL{URL: b.cloud.PublicURL(obj.Path)}, nil
	}
	b.cache.Set(ctx, obj.Path, CachedURL{URL: url, ExpiresAt: now.Add(ttl)})
	return ResolvedURL{URL: url, ExpiresIn: int(ttl.Seconds())}, nil
}

// Open streams the bytes of obj. Caller must close the body.
func (b *Blobs) Open(ctx context.Context, obj Object) (io.ReadCloser, string, error) {
	if obj.IsLocal {
		f, err := b.local.Open(obj.Path)
		if err != nil {
			return nil, "", apperr.NotFound("object")
		}
		return f, AllowedImageExtensions[strings.ToLower(path.Ext(obj.Path))], nil
	}
	if b.cloud == nil {
		return nil, "", apperr.Misconfigured("no object storage configured for cloud object")
	}
	return b.cloud.Open(ctx, obj.Path)
}

// Remove deletes obj. Failures are logged and returned.
func (b *Blobs) Remove(ctx context.Context, obj Object) error {
	if obj.Path == "" {
		return nil
	}
	var err error
	switch {
	case obj.IsLocal:
		err = b.local.Remove(obj.Path)
	case b.cloud != nil:
		err = b.cloud.Delete(ctx, obj.Path)
	default:
		return nil
	}
	if err != nil {
		b.logger.Warn("object delete failed", zap.String("path", obj.Path), zap.Bool("local", obj.IsLocal), zap.Error(err))
	}
	return err
}
