package core

import (
	"github.com/google/uuid"

	"github.com/joseph-ayodele/filings-extractor/constants"
	"github.com/joseph-ayodele/filings-extractor/internal/table"
)

// SectionConfig describes one named page range and how to extract it.
type SectionConfig struct {
	Name               string
	PageRange          string
	Mode               constants.SectionMode
	ModelID            string
	ColumnsToRemove    []string
	RowsToRemove       []string
	CombineAcrossFiles bool
	GridLinesRemoval   bool
}

// Job is one document submitted for extraction.
type Job struct {
	ID           uuid.UUID
	OwnerID      string
	DocumentName string
	Document     []byte
	TotalPages   int
	Sections     []SectionConfig
	FilterTables bool
}

type ContentKind string

const (
	ContentTable  ContentKind = "table"
	ContentFields ContentKind = "fields"
	ContentText   ContentKind = "text"
)

// SectionContent holds exactly one of Tables, Fields or Text, selected by Kind.
type SectionContent struct {
	Kind       ContentKind
	Tables     []*table.Table
	Fields     map[string]string
	FieldOrder []string
	Text       string
}

func contentKindFor(mode constants.SectionMode) ContentKind {
	switch mode {
	case constants.SectionModeField:
		return ContentFields
	case constants.SectionModeText:
		return ContentText
	default:
		return ContentTable
	}
}

type ChunkFailure struct {
	Chunk int
	Pages []int
	Error string
}

// SectionResult is the merged outcome of every chunk of a section.
type SectionResult struct {
	Name    string
	Config  SectionConfig
	Content SectionContent
	// Consolidated is the merged table of a table-mode section.
	Consolidated *table.Table
	Lines        []string
	Failures     []ChunkFailure
	// Arrival lists chunk indexes in the order their results came back.
	Arrival      []int
	ChunksOK     int
	ChunksFailed int
	// ChunksSkipped is 1 when the page range runs past the document; the
	// pages it asked for there are counted in PagesSkipped.
	ChunksSkipped int
	PagesSkipped  int
	PagesOK       int
	ConfigError   string
}

func (r *SectionResult) Status() constants.JobStatus {
	switch {
	case r.ConfigError != "":
		return constants.JobStatusFailed
	case r.ChunksOK == 0:
		return constants.JobStatusFailed
	case r.ChunksFailed > 0 || r.ChunksSkipped > 0:
		return constants.JobStatusPartial
	default:
		return constants.JobStatusCompleted
	}
}

// UsageFlags tells the ledger what may be charged.
type UsageFlags struct {
	Billable     bool
	PagesCharged int
}

type Result struct {
	JobID    uuid.UUID
	Order    []string
	Sections map[string]*SectionResult
	Usage    UsageFlags
}

// FailedSections maps section name to the reason it produced nothing.
func (r *Result) FailedSections() map[string]string {
	out := make(map[string]string)
	for _, name := range r.Order {
		s := r.Sections[name]
		if s.Status() != constants.JobStatusFailed {
			continue
		}
		switch {
		case s.ConfigError != "":
			out[name] = s.ConfigError
		case len(s.Failures) > 0:
			out[name] = s.Failures[0].Error
		default:
			out[name] = "no pages within document"
		}
	}
	return out
}

func (r *Result) Status() constants.JobStatus {
	ok, total := 0, 0
	for _, s := range r.Sections {
		total++
		if s.Status() == constants.JobStatusCompleted {
			ok++
		}
	}
	switch {
	case total > 0 && ok == total:
		return constants.JobStatusCompleted
	case !r.Usage.Billable:
		return constants.JobStatusFailed
	default:
		return constants.JobStatusPartial
	}
}
