package ocr

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// DetectImage sniffs the content type of b. ok is false for anything that is
// not an image.
func DetectImage(b []byte) (mimeType string, ok bool) {
	mt := mimetype.Detect(b)
	for m := mt; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "image/") {
			return mt.String(), true
		}
	}
	return mt.String(), false
}

func isHEIC(mimeType string) bool {
	switch mimeType {
	case "image/heic", "image/heif", "image/heic-sequence", "image/heif-sequence":
		return true
	}
	return false
}

// extFor picks a file extension the CLI tools recognize.
func extFor(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/tiff":
		return ".tif"
	case "image/bmp":
		return ".bmp"
	case "image/gif":
		return ".gif"
	}
	if isHEIC(mimeType) {
		return ".heic"
	}
	return ".img"
}
