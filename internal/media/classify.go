package media

import (
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/naperu/wabarelay/internal/domain"
)

// Category maps a MIME type to its temp-area folder. Audio and anything
// unrecognised are stored as documents.
func Category(mimeType string) string {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return domain.CategoryImages
	case strings.HasPrefix(mimeType, "video/"):
		return domain.CategoryVideos
	default:
		return domain.CategoryDocuments
	}
}

// DetectType sniffs data and falls back to the filename extension when
// the content is not recognised. Parameters such as charset are dropped.
func DetectType(data []byte, filename string) string {
	detected := mimetype.Detect(data)
	mt := detected.String()
	if detected.Is("application/octet-stream") {
		if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); byExt != "" {
			mt = byExt
		}
	}
	if base, _, err := mime.ParseMediaType(mt); err == nil {
		return base
	}
	return mt
}

// Extension is derived from the sniffed MIME type so identical bytes map
// to one stored name. The filename only decides when the content was not
// recognised.
func Extension(filename, mimeType string) string {
	if mimeType != "" && mimeType != "application/octet-stream" {
		if t := mimetype.Lookup(mimeType); t != nil && t.Extension() != "" {
			return t.Extension()
		}
		if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
			return exts[0]
		}
	}
	if ext := strings.ToLower(filepath.Ext(filename)); ext != "" && len(ext) <= 8 && !strings.ContainsAny(ext, `/\`) {
		return ext
	}
	return ".bin"
}

// renditions covers the extensions the store produces, which the
// platform MIME table may not know.
var renditions = map[string]string{
	".jpg": "image/jpeg",
	".mp4": "video/mp4",
	".ogg": "audio/ogg",
}

// ContentType guesses a Content-Type header from a stored file name.
func ContentType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if t, ok := renditions[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}
