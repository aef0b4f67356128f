package table

import (
	"regexp"
	"sort"
	"strconv"
)

var yearRe = regexp.MustCompile(`(?:^|\D)((?:19|20)\d{2})(?:\D|$)`)

// YearOf returns the first four-digit year embedded in s.
func YearOf(s string) (int, bool) {
	m := yearRe.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	y, _ := strconv.Atoi(m[1])
	return y, true
}

func hasYear(s string) bool {
	_, ok := YearOf(s)
	return ok
}

// ChronologicalOrder returns a permutation of column indexes in which the
// year-bearing columns (ignoring index 0) are sorted ascending by year while
// every other column keeps its position.
func ChronologicalOrder(columns []string) []int {
	order := make([]int, len(columns))
	var slots, yearCols []int
	for i, c := range columns {
		order[i] = i
		if i == 0 {
			continue
		}
		if hasYear(c) {
			slots = append(slots, i)
			yearCols = append(yearCols, i)
		}
	}
	sort.SliceStable(yearCols, func(a, b int) bool {
		ya, _ := YearOf(columns[yearCols[a]])
		yb, _ := YearOf(columns[yearCols[b]])
		return ya < yb
	})
	for k, slot := range slots {
		order[slot] = yearCols[k]
	}
	return order
}

// SortYearColumns reorders t's columns chronologically in place.
func SortYearColumns(t *Table) {
	order := ChronologicalOrder(t.Columns)
	cols := make([]string, len(order))
	for j, i := range order {
		cols[j] = t.Columns[i]
	}
	for r, row := range t.Rows {
		nr := make([]string, len(order))
		for j, i := range order {
			nr[j] = row[i]
		}
		t.Rows[r] = nr
	}
	t.Columns = cols
}
