package table

import "strings"

// RemoveColumns drops non-key columns whose header or first-row value matches
// any of names (case-insensitive). It returns the number of columns removed.
func RemoveColumns(t *Table, names []string) int {
	match := normalizedSet(names)
	if len(match) == 0 || t.Empty() {
		return 0
	}
	before := t.Width()
	first := t.Rows[0]
	t.KeepColumns(func(i int) bool {
		if i == 0 {
			return true
		}
		_, byHeader := match[norm(t.Columns[i])]
		_, byFirstRow := match[norm(first[i])]
		return !byHeader && !byFirstRow
	})
	return before - t.Width()
}

// RemoveRows drops rows where any cell equals one of ids (case-insensitive).
func RemoveRows(t *Table, ids []string) int {
	match := normalizedSet(ids)
	if len(match) == 0 || t == nil {
		return 0
	}
	before := len(t.Rows)
	t.KeepRows(func(row []string) bool {
		for _, v := range row {
			if _, ok := match[norm(v)]; ok {
				return false
			}
		}
		return true
	})
	return before - len(t.Rows)
}

func normalizedSet(values []string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		if n := norm(v); n != "" {
			out[n] = struct{}{}
		}
	}
	return out
}

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
