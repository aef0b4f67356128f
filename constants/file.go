package constants

import "strings"

// AllowedExtensions holds the document extensions accepted for extraction.
var AllowedExtensions = map[string]struct{}{
	"pdf": {},
}

// ManifestExtensions are the job manifest formats picked up from a watch folder.
var ManifestExtensions = map[string]struct{}{
	"yaml": {},
	"yml":  {},
	"json": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
