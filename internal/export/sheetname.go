package export

import (
	"fmt"
	"strings"
)

const maxSheetName = 31

// SanitizeSheetName strips characters spreadsheet applications reject in
// sheet names and caps the length.
func SanitizeSheetName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case '\\', '/', '*', '?', ':', '[', ']':
			return -1
		}
		return r
	}, strings.TrimSpace(name))
	name = strings.Trim(name, "'")
	if r := []rune(name); len(r) > maxSheetName {
		name = string(r[:maxSheetName])
	}
	if name == "" {
		name = "Sheet"
	}
	return name
}

// uniqueSheetName returns a sanitized name not yet in used, suffixing " (n)"
// when needed, and records it.
func uniqueSheetName(name string, used map[string]bool) string {
	base := SanitizeSheetName(name)
	candidate := base
	for n := 2; used[strings.ToLower(candidate)]; n++ {
		suffix := fmt.Sprintf(" (%d)", n)
		r := []rune(base)
		if len(r)+len(suffix) > maxSheetName {
			r = r[:maxSheetName-len(suffix)]
		}
		candidate = string(r) + suffix
	}
	used[strings.ToLower(candidate)] = true
	return candidate
}
