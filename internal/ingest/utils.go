package ingest

import (
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/filings-extractor/constants"
)

// IsManifest reports whether path has a job manifest extension.
func IsManifest(path string) bool {
	_, ok := constants.ManifestExtensions[constants.NormalizeExt(filepath.Ext(path))]
	return ok
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".")
}
