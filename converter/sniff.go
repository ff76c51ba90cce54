package converter

import (
	"mime"
	"strings"

	"fileflow/models"

	"github.com/gabriel-vasile/mimetype"
)

var mimeByExt = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"webp": "image/webp",
	"gif":  "image/gif",
	"bmp":  "image/bmp",
	"tiff": "image/tiff",
	"heic": "image/heic",
	"pdf":  "application/pdf",
	"mp4":  "video/mp4",
	"mov":  "video/quicktime",
	"mkv":  "video/x-matroska",
	"webm": "video/webm",
	"avi":  "video/x-msvideo",
	"mp3":  "audio/mpeg",
	"wav":  "audio/wav",
	"aac":  "audio/aac",
}

// MimeTypeFor returns the content type for an extension.
func MimeTypeFor(ext string) string {
	if mt, ok := mimeByExt[strings.TrimPrefix(strings.ToLower(ext), ".")]; ok {
		return mt
	}
	if mt := mime.TypeByExtension("." + ext); mt != "" {
		return mt
	}
	return "application/octet-stream"
}

// Detect sniffs the content type of data from its magic bytes.
func Detect(data []byte) string {
	return mimetype.Detect(data).String()
}

// fileMatches reports whether the name or declared type of file is in one of
// the given extensions or MIME prefixes.
func fileMatches(file models.UploadedFile, exts []string, mimePrefixes ...string) bool {
	ext := file.Extension()
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	declared := strings.ToLower(file.DeclaredMimeType)
	for _, p := range mimePrefixes {
		if declared != "" && strings.HasPrefix(declared, p) {
			return true
		}
	}
	return false
}

// requireContent fails with invalid_input unless the magic bytes of data
// match one of the accepted MIME types or prefixes (a trailing "/").
func requireContent(in Input, what string, accepted ...string) error {
	detected := mimetype.Detect(in.Data)
	for _, a := range accepted {
		if strings.HasSuffix(a, "/") {
			if strings.HasPrefix(detected.String(), a) {
				return nil
			}
			continue
		}
		if detected.Is(a) {
			return nil
		}
	}
	return models.NewError(models.KindInvalidInput, "%s does not look like %s (detected %s)", in.File.OriginalName, what, detected.String())
}
