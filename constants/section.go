package constants

import "strings"

// SectionMode selects how a section's service output is turned into content.
type SectionMode string

const (
	SectionModeTable SectionMode = "table"
	SectionModeField SectionMode = "field"
	SectionModeText  SectionMode = "text"
)

// ParseSectionMode accepts the mode names used in job requests. Unknown values
// return false.
func ParseSectionMode(s string) (SectionMode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "table", "tables":
		return SectionModeTable, true
	case "field", "fields", "key-value", "keyvalue":
		return SectionModeField, true
	case "text", "lines":
		return SectionModeText, true
	default:
		return "", false
	}
}

// Storage folder types used in object names.
const (
	FolderUserUpload  = "user_upload"
	FolderUserExtract = "user_extract"
)
