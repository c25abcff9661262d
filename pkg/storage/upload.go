package storage

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"strings"

	"github.com/campus-dues/backend/pkg/apperr"
)

// DefaultMaxUploadSize caps proof and QR uploads (10MB).
const DefaultMaxUploadSize = 10 * 1024 * 1024

// Allowed image MIME types and extensions.
var (
	AllowedImageTypes = map[string]string{
		"image/jpeg": ".jpg",
		"image/jpg":  ".jpg",
		"image/png":  ".png",
		"image/webp": ".webp",
		"image/gif":  ".gif",
	}
	AllowedImageExtensions = map[string]string{
		".jpg":  "image/jpeg",
		".jpeg": "image/jpeg",
		".png":  "image/png",
		".webp": "image/webp",
		".gif":  "image/gif",
	}
)

// Upload is a fully buffered file. It is kept in memory so a failed cloud
// upload can be retried against local disk.
type Upload struct {
	Data        []byte
	ContentType string
	Filename    string
}

// Ext returns the file extension to use for the stored object.
func (u Upload) Ext() string {
	if ext := strings.ToLower(path.Ext(u.Filename)); ext != "" {
		if _, ok := AllowedImageExtensions[ext]; ok {
			return ext
		}
	}
	if ext, ok := AllowedImageTypes[u.ContentType]; ok {
		return ext
	}
	return ""
}

// ValidateImageType returns true if the content type or extension is an allowed image.
func ValidateImageType(contentType, filename string) bool {
	if contentType != "" {
		if _, ok := AllowedImageTypes[strings.ToLower(contentType)]; ok {
			return true
		}
	}
	if ext := strings.ToLower(path.Ext(filename)); ext != "" {
		if _, ok := AllowedImageExtensions[ext]; ok {
			return true
		}
	}
	return false
}

// ReadUpload buffers a multipart file after checking its size and type.
func ReadUpload(fh *multipart.FileHeader, maxBytes int64) (*Upload, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadSize
	}
	if fh.Size > maxBytes {
		return nil, apperr.Validation("file %q exceeds %dMB limit", fh.Filename, maxBytes/(1024*1024))
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, apperr.Validation("file %q exceeds %dMB limit", fh.Filename, maxBytes/(1024*1024))
	}
	// A declared image type is trusted; anything else must sniff as one.
	contentType := strings.ToLower(fh.Header.Get("Content-Type"))
	if _, ok := AllowedImageTypes[contentType]; !ok {
		contentType = http.DetectContentType(data)
	}
	if !ValidateImageType(contentType, "") {
		return nil, apperr.Validation("invalid file type: only jpg, png, webp and gif images are allowed")
	}
	return &Upload{Data: data, ContentType: contentType, Filename: fh.Filename}, nil
}
