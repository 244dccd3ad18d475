package ingest

import (
	"path/filepath"
	"strings"
)

// defaultExts are the inbox file extensions considered receipt photos.
var defaultExts = map[string]struct{}{
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"webp": {},
	"heic": {},
	"heif": {},
}

// ResultSuffix marks the sidecar written next to each processed image.
const ResultSuffix = ".scan.json"

func allowed(path string, exts map[string]struct{}) bool {
	if IsHidden(path) {
		return false
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	_, ok := exts[ext]
	return ok
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".")
}

func resultPath(imagePath string) string {
	return imagePath + ResultSuffix
}
