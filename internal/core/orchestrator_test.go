package core

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/filings-extractor/constants"
	"github.com/joseph-ayodele/filings-extractor/internal/consolidate"
	"github.com/joseph-ayodele/filings-extractor/internal/docintel"
	"github.com/joseph-ayodele/filings-extractor/internal/progress"
	"github.com/joseph-ayodele/filings-extractor/internal/table"
)

// grid builds a raw table whose first row is flagged as column headers.
func grid(header []string, rows ...[]string) docintel.Table {
	g := docintel.Table{RowCount: len(rows) + 1, ColumnCount: len(header)}
	for c, h := range header {
		g.Cells = append(g.Cells, docintel.Cell{Kind: docintel.CellKindColumnHeader, RowIndex: 0, ColumnIndex: c, Content: h})
	}
	for r, row := range rows {
		for c, v := range row {
			g.Cells = append(g.Cells, docintel.Cell{RowIndex: r + 1, ColumnIndex: c, Content: v})
		}
	}
	return g
}

func newTestOrchestrator(a docintel.Analyzer, opts ...Option) *Orchestrator {
	return NewOrchestrator(a, table.NewStructurer(table.DefaultOptions(), nil), consolidate.NewEngine(nil), nil, opts...)
}

func tableJob(pageRange string, total int) *Job {
	return &Job{
		ID:           uuid.New(),
		DocumentName: "annual-report.pdf",
		Document:     []byte("%PDF-fake"),
		TotalPages:   total,
		Sections: []SectionConfig{{
			Name:      "Balance Sheet",
			PageRange: pageRange,
			Mode:      constants.SectionModeTable,
			ModelID:   "prebuilt-layout",
		}},
	}
}

func TestRunPartialSectionOnChunkTimeout(t *testing.T) {
	tracker := progress.NewTracker(0, nil)
	var mu sync.Mutex
	seen := map[int]int{}

	analyzer := docintel.AnalyzerFunc(func(ctx context.Context, model string, doc []byte, pages []int) (*docintel.AnalysisResult, error) {
		mu.Lock()
		seen[pages[0]] = tracker.Read()
		mu.Unlock()
		if pages[0] == 3 {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return &docintel.AnalysisResult{
			Pages:  []docintel.Page{{PageNumber: 1, Lines: []docintel.Line{{Content: "Revenue 100"}}}},
			Tables: []docintel.Table{grid([]string{"Particulars", "2022"}, []string{"Revenue", "100"})},
		}, nil
	})

	o := newTestOrchestrator(analyzer, WithWorkers(1), WithChunkTimeout(50*time.Millisecond))
	res, err := o.Run(context.Background(), tableJob("1-4", 10), tracker)
	require.NoError(t, err)

	sec := res.Sections["Balance Sheet"]
	require.NotNil(t, sec)
	assert.Equal(t, constants.JobStatusPartial, sec.Status())
	assert.Equal(t, 1, sec.ChunksOK)
	assert.Equal(t, 1, sec.ChunksFailed)
	require.Len(t, sec.Failures, 1)
	assert.Equal(t, []int{3, 4}, sec.Failures[0].Pages)
	assert.Contains(t, sec.Failures[0].Error, "deadline")
	assert.True(t, strings.HasPrefix(sec.Failures[0].Error, "analyze pages 3,4: "), sec.Failures[0].Error)

	assert.True(t, res.Usage.Billable)
	assert.Equal(t, 2, res.Usage.PagesCharged)

	// one worker runs chunks in order: the second chunk starts at half way
	assert.Equal(t, 0, seen[1])
	assert.Equal(t, 50, seen[3])
	assert.Equal(t, 99, tracker.Read())

	require.NotNil(t, sec.Consolidated)
	assert.Equal(t, []string{"Particulars", "2022"}, sec.Consolidated.Columns)
	assert.Equal(t, [][]string{{"Revenue", "100"}}, sec.Consolidated.Rows)
	assert.Equal(t, constants.JobStatusPartial, res.Status())
}

func TestRunProgressStaysBelowHundredUntilComplete(t *testing.T) {
	tracker := progress.NewTracker(0, nil)
	var last int
	analyzer := docintel.AnalyzerFunc(func(ctx context.Context, model string, doc []byte, pages []int) (*docintel.AnalysisResult, error) {
		last = tracker.Read()
		return &docintel.AnalysisResult{}, nil
	})

	o := newTestOrchestrator(analyzer, WithWorkers(1), WithChunkSize(1))
	_, err := o.Run(context.Background(), tableJob("1-3", 3), tracker)
	require.NoError(t, err)

	assert.Equal(t, 66, last)
	// the caller owns completion
	assert.Equal(t, 99, tracker.Read())
	tracker.Complete()
	assert.Equal(t, 100, tracker.Read())
}

func TestRunMergesInChunkOrderWhateverTheArrival(t *testing.T) {
	analyzer := docintel.AnalyzerFunc(func(ctx context.Context, model string, doc []byte, pages []int) (*docintel.AnalysisResult, error) {
		value := "120"
		if pages[0] == 1 {
			time.Sleep(30 * time.Millisecond)
			value = "100"
		}
		return &docintel.AnalysisResult{
			Tables: []docintel.Table{grid([]string{"Particulars", "2022"}, []string{"Revenue", value})},
		}, nil
	})

	o := newTestOrchestrator(analyzer, WithWorkers(2))
	res, err := o.Run(context.Background(), tableJob("1-4", 4), nil)
	require.NoError(t, err)

	sec := res.Sections["Balance Sheet"]
	assert.Equal(t, []int{1, 0}, sec.Arrival)
	assert.Equal(t, []string{"Particulars", "2022", "2022_1"}, sec.Consolidated.Columns)
	assert.Equal(t, [][]string{{"Revenue", "100", "120"}}, sec.Consolidated.Rows)
	assert.Equal(t, constants.JobStatusCompleted, res.Status())
}

func TestRunSectionConfigErrorsFailOnlyThatSection(t *testing.T) {
	analyzer := docintel.AnalyzerFunc(func(ctx context.Context, model string, doc []byte, pages []int) (*docintel.AnalysisResult, error) {
		return &docintel.AnalysisResult{
			Tables: []docintel.Table{grid([]string{"Particulars", "2023"}, []string{"Cash", "7"})},
		}, nil
	})

	job := tableJob("1-2", 5)
	job.Sections = append(job.Sections,
		SectionConfig{Name: "Bad Range", PageRange: "4-x", Mode: constants.SectionModeTable, ModelID: "prebuilt-layout"},
		SectionConfig{Name: "No Model", PageRange: "3", Mode: constants.SectionModeTable},
	)

	res, err := newTestOrchestrator(analyzer).Run(context.Background(), job, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"Balance Sheet", "Bad Range", "No Model"}, res.Order)
	assert.Equal(t, constants.JobStatusCompleted, res.Sections["Balance Sheet"].Status())

	failed := res.FailedSections()
	assert.Len(t, failed, 2)
	assert.Contains(t, failed, "Bad Range")
	assert.Contains(t, failed["No Model"], "no model")
	assert.Equal(t, 2, res.Usage.PagesCharged)
	assert.Equal(t, constants.JobStatusPartial, res.Status())
}

func TestRunSkipsChunksPastTheLastPage(t *testing.T) {
	var calls [][]int
	var mu sync.Mutex
	analyzer := docintel.AnalyzerFunc(func(ctx context.Context, model string, doc []byte, pages []int) (*docintel.AnalysisResult, error) {
		mu.Lock()
		calls = append(calls, pages)
		mu.Unlock()
		return &docintel.AnalysisResult{
			Tables: []docintel.Table{grid([]string{"Particulars", "2023"}, []string{"Equity", "1,000"})},
		}, nil
	})

	res, err := newTestOrchestrator(analyzer, WithWorkers(1)).Run(context.Background(), tableJob("1-4", 3), nil)
	require.NoError(t, err)

	sec := res.Sections["Balance Sheet"]
	assert.Equal(t, [][]int{{1, 2}, {3}}, calls)
	assert.Equal(t, 1, sec.ChunksSkipped)
	assert.Equal(t, 1, sec.PagesSkipped)
	assert.Equal(t, constants.JobStatusPartial, sec.Status())
	assert.Equal(t, 3, res.Usage.PagesCharged)
}

func TestRunHugeRangeOnlyVisitsRealPages(t *testing.T) {
	var calls atomic.Int32
	analyzer := docintel.AnalyzerFunc(func(ctx context.Context, model string, doc []byte, pages []int) (*docintel.AnalysisResult, error) {
		calls.Add(1)
		return &docintel.AnalysisResult{
			Tables: []docintel.Table{grid([]string{"Particulars", "2023"}, []string{"Equity", "1,000"})},
		}, nil
	})

	tracker := progress.NewTracker(0, nil)
	res, err := newTestOrchestrator(analyzer).Run(context.Background(), tableJob("1-2000000000", 4), tracker)
	require.NoError(t, err)

	sec := res.Sections["Balance Sheet"]
	assert.EqualValues(t, 2, calls.Load())
	assert.Equal(t, 1, sec.ChunksSkipped)
	assert.Equal(t, 2000000000-4, sec.PagesSkipped)
	assert.Equal(t, 4, res.Usage.PagesCharged)
	assert.Equal(t, constants.JobStatusPartial, res.Status())
	assert.Equal(t, 99, tracker.Read())
}

func TestRunAllChunksFailedIsNotBillable(t *testing.T) {
	analyzer := docintel.AnalyzerFunc(func(ctx context.Context, model string, doc []byte, pages []int) (*docintel.AnalysisResult, error) {
		return nil, errors.New("service unavailable")
	})

	tracker := progress.NewTracker(0, nil)
	res, err := newTestOrchestrator(analyzer).Run(context.Background(), tableJob("1-4", 4), tracker)
	require.NoError(t, err)

	assert.False(t, res.Usage.Billable)
	assert.Zero(t, res.Usage.PagesCharged)
	assert.Equal(t, constants.JobStatusFailed, res.Status())
	assert.Equal(t, 99, tracker.Read())

	sheets := res.Sheets()
	require.Len(t, sheets, 1)
	assert.True(t, sheets[0].Table.IsPlaceholder())
}

func TestRunRecoversFromPanickingChunk(t *testing.T) {
	analyzer := docintel.AnalyzerFunc(func(ctx context.Context, model string, doc []byte, pages []int) (*docintel.AnalysisResult, error) {
		if pages[0] == 1 {
			panic("malformed response")
		}
		return &docintel.AnalysisResult{
			Tables: []docintel.Table{grid([]string{"Particulars", "2021"}, []string{"Reserves", "12"})},
		}, nil
	})

	res, err := newTestOrchestrator(analyzer).Run(context.Background(), tableJob("1-4", 4), nil)
	require.NoError(t, err)

	sec := res.Sections["Balance Sheet"]
	require.Len(t, sec.Failures, 1)
	assert.Contains(t, sec.Failures[0].Error, "malformed response")
	assert.Equal(t, [][]string{{"Reserves", "12"}}, sec.Consolidated.Rows)
}

func TestRunFieldAndTextSections(t *testing.T) {
	amount := 1250.5
	analyzer := docintel.AnalyzerFunc(func(ctx context.Context, model string, doc []byte, pages []int) (*docintel.AnalysisResult, error) {
		ar := &docintel.AnalysisResult{
			Pages: []docintel.Page{{PageNumber: pages[0], Lines: []docintel.Line{
				{Content: "Item    Amount"},
				{Content: "Fees    1,250.50"},
			}}},
		}
		if model == "prebuilt-invoice" {
			ar.Documents = []docintel.Document{{Fields: map[string]docintel.Field{
				"VendorName":   {Type: "string", ValueString: "Acme Ltd"},
				"InvoiceTotal": {Type: "number", ValueNumber: &amount, Content: "1,250.50"},
			}}}
		}
		return ar, nil
	})

	job := &Job{
		ID:         uuid.New(),
		Document:   []byte("%PDF-fake"),
		TotalPages: 2,
		Sections: []SectionConfig{
			{Name: "Invoice", PageRange: "1", Mode: constants.SectionModeField, ModelID: "prebuilt-invoice"},
			{Name: "Notes", PageRange: "2", Mode: constants.SectionModeText, ModelID: "prebuilt-read", GridLinesRemoval: true},
		},
	}
	res, err := newTestOrchestrator(analyzer).Run(context.Background(), job, nil)
	require.NoError(t, err)

	inv := res.Sections["Invoice"]
	assert.Equal(t, ContentFields, inv.Content.Kind)
	assert.Equal(t, []string{"InvoiceTotal", "VendorName"}, inv.Content.FieldOrder)
	assert.Equal(t, "Acme Ltd", inv.Content.Fields["VendorName"])

	notes := res.Sections["Notes"]
	assert.Equal(t, "Item    Amount\nFees    1,250.50", notes.Content.Text)

	sheets := res.Sheets()
	require.Len(t, sheets, 2)
	assert.Equal(t, []string{"Field", "Value"}, sheets[0].Table.Columns)
	assert.Equal(t, []string{"Text", "Column 2"}, sheets[1].Table.Columns)
	assert.Equal(t, [][]string{{"Item", "Amount"}, {"Fees", "1,250.50"}}, sheets[1].Table.Rows)
	assert.True(t, sheets[1].HideGridLines)

	tr := res.Transcript()
	require.Len(t, tr, 2)
	assert.Len(t, tr[0].Fields, 2)
	assert.Equal(t, "Fees    1,250.50", tr[1].Lines[1])
}

func TestRunFilterTablesDropsIrrelevantTables(t *testing.T) {
	analyzer := docintel.AnalyzerFunc(func(ctx context.Context, model string, doc []byte, pages []int) (*docintel.AnalysisResult, error) {
		return &docintel.AnalysisResult{Tables: []docintel.Table{
			grid([]string{"Particulars", "2023"}, []string{"Revenue", "10"}, []string{"Tax", "2"}, []string{"Profit", "8"}),
			grid([]string{"Director", "2023"}, []string{"Board meetings attended", "4"}),
		}}, nil
	})

	job := tableJob("1", 1)
	job.FilterTables = true
	res, err := newTestOrchestrator(analyzer).Run(context.Background(), job, nil)
	require.NoError(t, err)

	sec := res.Sections["Balance Sheet"]
	assert.Len(t, sec.Content.Tables, 1)
	assert.Equal(t, [][]string{{"Revenue", "10"}, {"Tax", "2"}, {"Profit", "8"}}, sec.Consolidated.Rows)
}

func TestRunUsesSlicerWhenConfigured(t *testing.T) {
	var sliced [][]int
	slicer := sliceFunc(func(doc []byte, pages []int) ([]byte, error) {
		sliced = append(sliced, pages)
		return []byte("chunk"), nil
	})
	analyzer := docintel.AnalyzerFunc(func(ctx context.Context, model string, doc []byte, pages []int) (*docintel.AnalysisResult, error) {
		assert.Equal(t, "chunk", string(doc))
		assert.Nil(t, pages)
		return &docintel.AnalysisResult{}, nil
	})

	_, err := newTestOrchestrator(analyzer, WithSlicer(slicer), WithWorkers(1)).Run(context.Background(), tableJob("2-3", 3), nil)
	require.NoError(t, err)
	assert.Equal(t, [][]int{{2, 3}}, sliced)
}

func TestRunRejectsEmptyJobs(t *testing.T) {
	o := newTestOrchestrator(docintel.AnalyzerFunc(nil))

	_, err := o.Run(context.Background(), &Job{TotalPages: 0, Sections: []SectionConfig{{Name: "x"}}}, nil)
	assert.Error(t, err)

	_, err = o.Run(context.Background(), &Job{TotalPages: 3}, nil)
	assert.Error(t, err)
}

type sliceFunc func(doc []byte, pages []int) ([]byte, error)

func (f sliceFunc) Extract(doc []byte, pages []int) ([]byte, error) { return f(doc, pages) }
