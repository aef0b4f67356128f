// Package pages parses page-range specifications and splits them into chunks.
package pages

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/filings-extractor/internal/common"
)

// Chunk is a group of consecutive-in-request pages submitted as one unit.
type Chunk struct {
	Section string
	Index   int
	Pages   []int
}

// Max returns the highest page number in the chunk.
func (c Chunk) Max() int {
	m := 0
	for _, p := range c.Pages {
		if p > m {
			m = p
		}
	}
	return m
}

// Selection renders the pages as a comma separated list ("3,4").
func (c Chunk) Selection() string {
	parts := make([]string, len(c.Pages))
	for i, p := range c.Pages {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, ",")
}

// Parse resolves specs like "2", "5,6", "6-9" and "1,3-4" into ascending,
// de-duplicated page numbers no greater than maxPage. Pages past maxPage are
// never expanded; beyond is how many the spec asked for.
func Parse(spec string, maxPage int) (pages []int, beyond int, err error) {
	spans, err := parseSpans(spec)
	if err != nil {
		return nil, 0, err
	}
	for _, s := range spans {
		if s.hi > maxPage {
			beyond += s.hi - max(s.lo, maxPage+1) + 1
		}
		for p := s.lo; p <= min(s.hi, maxPage); p++ {
			pages = append(pages, p)
		}
	}
	return pages, beyond, nil
}

type span struct{ lo, hi int }

// parseSpans validates spec and returns its ranges sorted and merged.
func parseSpans(spec string) ([]span, error) {
	spec = strings.ReplaceAll(strings.TrimSpace(spec), " ", "")
	if spec == "" {
		return nil, common.NewAppError("INVALID_PAGE_RANGE", "empty page range", common.ErrInvalidInput)
	}

	var spans []span
	for _, part := range strings.Split(spec, ",") {
		if part == "" {
			return nil, invalid(spec, "empty element")
		}
		lo, hi, err := parsePart(part)
		if err != nil {
			return nil, invalid(spec, err.Error())
		}
		spans = append(spans, span{lo, hi})
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].lo < spans[j].lo })

	merged := []span{spans[0]}
	for _, s := range spans[1:] {
		last := &merged[len(merged)-1]
		// lo-1 rather than hi+1: hi may be math.MaxInt
		if s.lo-1 <= last.hi {
			last.hi = max(last.hi, s.hi)
			continue
		}
		merged = append(merged, s)
	}
	return merged, nil
}

func parsePart(part string) (int, int, error) {
	if bounds := strings.SplitN(part, "-", 2); len(bounds) == 2 {
		lo, err := page(bounds[0])
		if err != nil {
			return 0, 0, err
		}
		hi, err := page(bounds[1])
		if err != nil {
			return 0, 0, err
		}
		if lo > hi {
			return 0, 0, fmt.Errorf("descending range %q", part)
		}
		return lo, hi, nil
	}
	p, err := page(part)
	return p, p, err
}

func page(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("not a page number: %q", s)
	}
	if n < 1 {
		return 0, fmt.Errorf("page numbers start at 1: %d", n)
	}
	return n, nil
}

func invalid(spec, reason string) error {
	return common.NewAppError("INVALID_PAGE_RANGE", fmt.Sprintf("page range %q: %s", spec, reason), common.ErrInvalidInput)
}

// Split groups pages into chunks of at most size pages, preserving order.
func Split(section string, pages []int, size int) []Chunk {
	if size <= 0 {
		size = 1
	}
	var chunks []Chunk
	for i := 0; i < len(pages); i += size {
		end := i + size
		if end > len(pages) {
			end = len(pages)
		}
		ps := make([]int, end-i)
		copy(ps, pages[i:end])
		chunks = append(chunks, Chunk{Section: section, Index: len(chunks), Pages: ps})
	}
	return chunks
}
