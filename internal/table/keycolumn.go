package table

import (
	"regexp"
	"strings"

	"github.com/joseph-ayodele/filings-extractor/constants"
)

const romanNumeral = `(m{0,3}(?:cm|cd|d?c{0,3})(?:xc|xl|l?x{0,3})(?:ix|iv|v?i{0,3}))`

var (
	romanRe       = regexp.MustCompile(`^(?i)\(?` + romanNumeral + `[.)]?$`)
	romanPrefixRe = regexp.MustCompile(`^(?i)\(?` + romanNumeral + `[.)]\s+`)
)

var placeholderValues = map[string]struct{}{
	"-": {}, "--": {}, "—": {}, "–": {}, "n/a": {}, "na": {}, "nil": {}, ".": {},
}

// keyColumnStats are the ratios the retention decision is based on, all taken
// over the non-empty values of the first column.
type keyColumnStats struct {
	values       int
	shortish     float64 // roman, integer or at most five characters
	romanOrInt   float64
	numeric      float64
	sameAsNext   float64
	finance      float64
	placeholders bool
}

func measureKeyColumn(t *Table) keyColumnStats {
	var st keyColumnStats
	if t.Width() == 0 {
		return st
	}
	var shortish, romanInt, numeric, same, finance, placeholder int
	for _, row := range t.Rows {
		v := strings.TrimSpace(row[0])
		if v == "" {
			continue
		}
		st.values++
		roman := isRoman(v)
		integer := isInteger(v)
		if roman || integer {
			romanInt++
		}
		if roman || integer || len([]rune(v)) <= 5 {
			shortish++
		}
		if isNumeric(v) {
			numeric++
		}
		if t.Width() > 1 && v == strings.TrimSpace(row[1]) {
			same++
		}
		if constants.ContainsFinanceKeyword(v) {
			finance++
		}
		if _, ok := placeholderValues[strings.ToLower(v)]; ok {
			placeholder++
		}
	}
	if st.values == 0 {
		st.placeholders = true
		return st
	}
	n := float64(st.values)
	st.shortish = float64(shortish) / n
	st.romanOrInt = float64(romanInt) / n
	st.numeric = float64(numeric) / n
	st.sameAsNext = float64(same) / n
	st.finance = float64(finance) / n
	st.placeholders = placeholder == st.values
	return st
}

// keepKeyColumn applies the retention decision. A finance-keyword ratio at or
// above threshold always keeps the column.
func keepKeyColumn(st keyColumnStats, threshold float64) (bool, string) {
	switch {
	case st.values > 0 && st.finance >= threshold:
		return true, "finance_keywords"
	case st.sameAsNext > 0.85:
		return false, "duplicates_next_column"
	case st.romanOrInt > 0.40:
		return false, "index_markers"
	case st.shortish > 0.85:
		return false, "short_values"
	case st.numeric > 0.9:
		return false, "numeric"
	case st.placeholders:
		return false, "empty"
	}
	return true, "labels"
}

func isRoman(s string) bool {
	m := romanRe.FindStringSubmatch(strings.TrimSpace(s))
	return m != nil && m[1] != ""
}

// stripRomanPrefix removes leading index markers such as "IV. " or "(ii) ".
func stripRomanPrefix(s string) string {
	m := romanPrefixRe.FindStringSubmatchIndex(s)
	if m == nil || m[3] == m[2] {
		return s
	}
	return strings.TrimSpace(s[m[1]:])
}
