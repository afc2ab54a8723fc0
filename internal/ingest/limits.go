package ingest

import (
	"errors"
	"fmt"
	"mime/multipart"
	"path/filepath"
	"slices"
	"strings"
)

var ErrInvalidUpload = errors.New("ingest: invalid upload")

// Limits whitelists what an upload may be.
type Limits struct {
	MaxFileSize       int64
	AllowedMimeTypes  []string
	AllowedExtensions []string
}

func DefaultLimits() Limits {
	return Limits{
		MaxFileSize: 50 * 1024 * 1024, // 50MB
		AllowedMimeTypes: []string{
			"audio/mpeg",
			"audio/mp3",
			"audio/wav",
			"audio/x-wav",
			"audio/wave",
			"audio/ogg",
			"audio/flac",
			"audio/x-flac",
			"audio/aiff",
			"audio/x-aiff",
			"audio/mp4",
			"audio/x-m4a",
			"application/octet-stream",
		},
		AllowedExtensions: []string{
			".mp3",
			".wav",
			".ogg",
			".flac",
			".aiff",
			".m4a",
		},
	}
}

// Validate checks size, extension, MIME type and that the name is a bare
// file name.
func (l Limits) Validate(file *multipart.FileHeader) error {
	if file.Size == 0 {
		return fmt.Errorf("%w: file is empty", ErrInvalidUpload)
	}
	if l.MaxFileSize > 0 && file.Size > l.MaxFileSize {
		return fmt.Errorf("%w: file size exceeds maximum allowed size of %d bytes", ErrInvalidUpload, l.MaxFileSize)
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !slices.Contains(l.AllowedExtensions, ext) {
		return fmt.Errorf("%w: file extension %q is not allowed", ErrInvalidUpload, ext)
	}

	if strings.ContainsAny(file.Filename, `/\`) || strings.Contains(file.Filename, "..") {
		return fmt.Errorf("%w: invalid filename", ErrInvalidUpload)
	}

	// The Content-Type header is client supplied; it only narrows, never widens.
	contentType := file.Header.Get("Content-Type")
	if contentType != "" && !slices.Contains(l.AllowedMimeTypes, contentType) {
		return fmt.Errorf("%w: file type %s is not allowed", ErrInvalidUpload, contentType)
	}
	return nil
}
