// Package pdfdoc reads page counts from PDFs and cuts page subsets out of them.
package pdfdoc

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/joseph-ayodele/filings-extractor/internal/common"
)

// Slicer cuts the given 1-based pages out of a document.
type Slicer interface {
	Extract(document []byte, pages []int) ([]byte, error)
}

// PDF implements Slicer with pdfcpu.
type PDF struct {
	conf *model.Configuration
}

func New() *PDF {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &PDF{conf: conf}
}

// PageCount returns the number of pages in document.
func (p *PDF) PageCount(document []byte) (int, error) {
	if len(document) == 0 {
		return 0, common.NewAppError("INVALID_DOCUMENT", "empty document", common.ErrInvalidInput)
	}
	n, err := api.PageCount(bytes.NewReader(document), p.conf)
	if err != nil {
		return 0, common.NewAppError("INVALID_DOCUMENT", "read page count", fmt.Errorf("%w: %v", common.ErrInvalidInput, err))
	}
	return n, nil
}

// Extract returns a new PDF holding only pages, renumbered from 1.
func (p *PDF) Extract(document []byte, pages []int) ([]byte, error) {
	if len(pages) == 0 {
		return nil, common.NewAppError("INVALID_PAGE_RANGE", "no pages selected", common.ErrInvalidInput)
	}
	sel := make([]string, len(pages))
	for i, pg := range pages {
		sel[i] = strconv.Itoa(pg)
	}

	var out bytes.Buffer
	if err := api.Trim(bytes.NewReader(document), &out, sel, p.conf); err != nil {
		return nil, fmt.Errorf("trim pages %v: %w", pages, err)
	}
	return out.Bytes(), nil
}
