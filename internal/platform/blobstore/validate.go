package blobstore

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"
)

// MaxFileSize is the maximum accepted upload size in bytes (10 MiB).
const MaxFileSize = 10 * 1024 * 1024

// allowedTypes maps each accepted extension to the MIME types a client may
// declare for it.
var allowedTypes = map[string][]string{
	"jpg":  {"image/jpeg", "image/jpg", "image/pjpeg"},
	"jpeg": {"image/jpeg", "image/jpg", "image/pjpeg"},
	"png":  {"image/png"},
	"gif":  {"image/gif"},
	"pdf":  {"application/pdf"},
}

// Extension returns the lower-cased extension of name without the dot.
func Extension(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

// ValidateFile accepts a file only when its extension is whitelisted and the
// declared content type belongs to the family of that extension. Checking
// either one alone is not enough: a renamed binary with a spoofed extension
// keeps its MIME type, and a spoofed MIME type keeps its extension.
func ValidateFile(name, contentType string) error {
	if strings.TrimSpace(name) == "" {
		return ErrMissingFileName
	}

	ext := Extension(name)
	families, ok := allowedTypes[ext]
	if !ok {
		return fmt.Errorf("%w: extension %q", ErrInvalidContentType, ext)
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return fmt.Errorf("%w: unparseable content type", ErrInvalidContentType)
	}
	mediaType = strings.ToLower(mediaType)

	for _, allowed := range families {
		if mediaType == allowed {
			return nil
		}
	}
	return fmt.Errorf("%w: %s does not match .%s", ErrInvalidContentType, mediaType, ext)
}
