package jobspec

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/filings-extractor/constants"
	"github.com/joseph-ayodele/filings-extractor/internal/common"
)

const yamlManifest = `
owner_id: owner-1
document: annual-2023.pdf
filter_tables: true
sections:
  - name: Balance Sheet
    pages: "3-6"
    mode: table
    columns_to_remove: ["Note"]
    combine: true
  - name: Invoice Details
    pages: "1"
    model: invoice
  - name: Auditor Notes
    pages: "7, 9"
    mode: text
    grid_lines_removal: true
`

func TestDecodeYAMLManifest(t *testing.T) {
	req, err := Decode([]byte(yamlManifest), "yaml")
	require.NoError(t, err)

	assert.Equal(t, "owner-1", req.OwnerID)
	assert.True(t, req.FilterTables)
	require.Len(t, req.Sections, 3)
	assert.Equal(t, []string{"Note"}, req.Sections[0].ColumnsToRemove)
	assert.Equal(t, map[string]bool{"Balance Sheet": true}, req.CombineSet())
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	_, err := Decode([]byte(`{"owner_id":"o","document":"a.pdf","surprise":1}`), "json")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestDecodeRejectsBadPages(t *testing.T) {
	_, err := Decode([]byte(`{"owner_id":"o","document":"a.pdf","sections":[{"name":"x","pages":"one"}]}`), ".json")
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestValidateCollectsFieldErrors(t *testing.T) {
	req := &Request{
		OwnerID:  "o",
		Document: "scan.png",
		Sections: []Section{
			{Name: "P&L", Pages: "1-2", Mode: "chart"},
			{Name: "p&l", Pages: "3"},
		},
	}
	err := req.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be a PDF document")
	assert.Contains(t, err.Error(), "sections[0].mode")
	assert.Contains(t, err.Error(), "is used by another section")
}

func TestDecodeUnsupportedFormat(t *testing.T) {
	_, err := Decode([]byte(`owner_id = "x"`), "toml")
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestJobResolvesModesAndModels(t *testing.T) {
	req, err := Decode([]byte(yamlManifest), "yml")
	require.NoError(t, err)

	job, err := req.Job(uuid.New(), []byte("%PDF"), 12, 10, false)
	require.NoError(t, err)

	assert.True(t, job.FilterTables)
	require.Len(t, job.Sections, 3)

	bs := job.Sections[0]
	assert.Equal(t, constants.SectionModeTable, bs.Mode)
	assert.Equal(t, "prebuilt-layout", bs.ModelID)
	assert.True(t, bs.CombineAcrossFiles)

	inv := job.Sections[1]
	assert.Equal(t, constants.SectionModeField, inv.Mode)
	assert.Equal(t, "prebuilt-invoice", inv.ModelID)

	notes := job.Sections[2]
	assert.Equal(t, constants.SectionModeText, notes.Mode)
	assert.Equal(t, "prebuilt-read", notes.ModelID)
	assert.True(t, notes.GridLinesRemoval)
}

func TestJobWithoutSections(t *testing.T) {
	req := &Request{OwnerID: "o", Document: "reports/short.pdf", ExtractionModel: "printed tables"}

	job, err := req.Job(uuid.New(), nil, 4, 10, false)
	require.NoError(t, err)
	require.Len(t, job.Sections, 1)
	assert.Equal(t, "short", job.Sections[0].Name)
	assert.Equal(t, "1-4", job.Sections[0].PageRange)
	assert.Equal(t, constants.SectionModeTable, job.Sections[0].Mode)

	_, err = req.Job(uuid.New(), nil, 11, 10, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "page configuration is mandatory")
}

func TestRequestedPages(t *testing.T) {
	req := &Request{Sections: []Section{{Name: "a", Pages: "1-3"}, {Name: "b", Pages: "3,4,20"}, {Name: "c", Pages: "x"}}}
	n, err := req.RequestedPages(10)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	n, err = (&Request{}).RequestedPages(7)
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	_, err = (&Request{Sections: []Section{{Name: "a", Pages: "40"}}}).RequestedPages(10)
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	n, err = (&Request{Sections: []Section{{Name: "a", Pages: "2-4000000000"}}}).RequestedPages(10)
	require.NoError(t, err)
	assert.Equal(t, 9, n)
}
