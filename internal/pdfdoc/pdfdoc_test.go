package pdfdoc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/filings-extractor/internal/common"
)

func TestPageCountRejectsGarbage(t *testing.T) {
	p := New()

	_, err := p.PageCount(nil)
	require.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = p.PageCount([]byte("not a pdf"))
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestExtractRequiresPages(t *testing.T) {
	_, err := New().Extract([]byte("%PDF-1.4"), nil)
	require.ErrorIs(t, err, common.ErrInvalidInput)
}
