package constants

import "strings"

// AllowedExtensions holds the scanned-page formats accepted for upload.
var AllowedExtensions = map[string]struct{}{
	"png":  {},
	"jpg":  {},
	"jpeg": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// ExtAllowed reports whether the extension of path is an accepted page format.
func ExtAllowed(path string) bool {
	i := strings.LastIndexByte(path, '.')
	if i < 0 {
		return false
	}
	_, ok := AllowedExtensions[NormalizeExt(path[i:])]
	return ok
}
