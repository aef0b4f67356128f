package table

import (
	"strings"

	"github.com/joseph-ayodele/filings-extractor/constants"
)

// Classifier decides whether a structured table is financial content worth
// keeping.
type Classifier struct {
	Keywords []string
	MinHits  int
}

func NewClassifier() *Classifier {
	return &Classifier{Keywords: constants.FinanceKeywords, MinHits: 3}
}

// IsRelevant lowercases all cell and header text and requires MinHits distinct
// keywords to appear.
func (c *Classifier) IsRelevant(t *Table) bool {
	if t.Empty() || t.IsPlaceholder() {
		return false
	}
	var b strings.Builder
	b.WriteString(strings.ToLower(strings.Join(t.Columns, " ")))
	for _, row := range t.Rows {
		b.WriteByte(' ')
		b.WriteString(strings.ToLower(strings.Join(row, " ")))
	}
	text := b.String()

	hits := 0
	for _, kw := range c.Keywords {
		if strings.Contains(text, kw) {
			hits++
			if hits >= c.MinHits {
				return true
			}
		}
	}
	return false
}

// Filter returns the relevant tables, preserving order.
func (c *Classifier) Filter(tables []*Table) []*Table {
	var out []*Table
	for _, t := range tables {
		if c.IsRelevant(t) {
			out = append(out, t)
		}
	}
	return out
}
