// Package core runs extraction jobs: it chunks section page ranges, analyzes
// chunks concurrently and folds the results into per-section content.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/filings-extractor/constants"
	"github.com/joseph-ayodele/filings-extractor/internal/common"
	"github.com/joseph-ayodele/filings-extractor/internal/consolidate"
	"github.com/joseph-ayodele/filings-extractor/internal/docintel"
	"github.com/joseph-ayodele/filings-extractor/internal/pages"
	"github.com/joseph-ayodele/filings-extractor/internal/pdfdoc"
	"github.com/joseph-ayodele/filings-extractor/internal/progress"
	"github.com/joseph-ayodele/filings-extractor/internal/table"
)

// Orchestrator owns no per-job state; one instance serves many jobs.
type Orchestrator struct {
	analyzer   docintel.Analyzer
	slicer     pdfdoc.Slicer
	structurer *table.Structurer
	classifier *table.Classifier
	engine     *consolidate.Engine
	logger     *slog.Logger

	workers      int
	chunkSize    int
	chunkTimeout time.Duration
}

type Option func(*Orchestrator)

func WithWorkers(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.workers = n
		}
	}
}

func WithChunkSize(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.chunkSize = n
		}
	}
}

func WithChunkTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.chunkTimeout = d
		}
	}
}

// WithSlicer makes workers cut each chunk's pages out of the document before
// submitting it, instead of sending the whole file with a page selection.
func WithSlicer(s pdfdoc.Slicer) Option {
	return func(o *Orchestrator) {
		o.slicer = s
	}
}

func WithClassifier(c *table.Classifier) Option {
	return func(o *Orchestrator) {
		if c != nil {
			o.classifier = c
		}
	}
}

func NewOrchestrator(analyzer docintel.Analyzer, structurer *table.Structurer, engine *consolidate.Engine, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		analyzer:     analyzer,
		structurer:   structurer,
		classifier:   table.NewClassifier(),
		engine:       engine,
		logger:       logger,
		workers:      2,
		chunkSize:    2,
		chunkTimeout: 3 * time.Minute,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type plannedChunk struct {
	section *SectionConfig
	chunk   pages.Chunk
}

// partial is what a worker hands to the accumulator.
type partial struct {
	section string
	chunk   pages.Chunk
	content SectionContent
	lines   []string
	err     error
}

// Run processes every section of job. Section and chunk failures are recorded
// on the result; only an unusable job returns an error. tracker may be nil.
func (o *Orchestrator) Run(ctx context.Context, job *Job, tracker *progress.Tracker) (*Result, error) {
	if job == nil || job.TotalPages <= 0 {
		return nil, common.NewAppError("INVALID_JOB", "job has no pages", common.ErrInvalidInput)
	}
	if len(job.Sections) == 0 {
		return nil, common.NewAppError("INVALID_JOB", "job has no sections", common.ErrInvalidInput)
	}
	start := time.Now()
	log := o.logger.With("job_id", job.ID.String())

	res := &Result{JobID: job.ID, Sections: make(map[string]*SectionResult, len(job.Sections))}
	var plan []plannedChunk
	for i := range job.Sections {
		sec := &job.Sections[i]
		sr := &SectionResult{Name: sec.Name, Config: *sec, Content: SectionContent{Kind: contentKindFor(sec.Mode)}}
		res.Order = append(res.Order, sec.Name)
		res.Sections[sec.Name] = sr

		chunks, beyond, err := o.planSection(sec, job.TotalPages)
		if err != nil {
			sr.ConfigError = err.Error()
			log.Warn("orchestrator.section.config_error", "section", sec.Name, "error", err)
			continue
		}
		if beyond > 0 {
			sr.ChunksSkipped = 1
			sr.PagesSkipped = beyond
			log.Warn("orchestrator.section.pages_skipped", "section", sec.Name, "page_range", sec.PageRange,
				"pages_beyond", beyond, "total_pages", job.TotalPages)
		}
		for _, c := range chunks {
			plan = append(plan, plannedChunk{section: sec, chunk: c})
		}
	}

	planned := 0
	for _, p := range plan {
		planned += len(p.chunk.Pages)
	}
	owned := tracker == nil
	if owned {
		tracker = progress.NewTracker(planned, o.logger)
	} else {
		tracker.Reset(planned)
	}

	parts := make(chan partial)
	done := make(chan struct{})
	pending := make(map[string]map[int]partial, len(res.Sections))
	go func() {
		defer close(done)
		for p := range parts {
			if pending[p.section] == nil {
				pending[p.section] = make(map[int]partial)
			}
			accumulate(res.Sections[p.section], pending[p.section], p)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)
	for _, p := range plan {
		g.Go(func() error {
			out := o.runChunk(gctx, job, p.section, p.chunk)
			pct := tracker.Update(len(p.chunk.Pages), planned, false)
			log.Debug("orchestrator.progress", "section", p.section.Name, "chunk", p.chunk.Index, "percent", pct)
			parts <- out
			return nil
		})
	}
	_ = g.Wait()
	close(parts)
	<-done

	for _, name := range res.Order {
		o.finalize(res.Sections[name], pending[name], job.FilterTables)
		sr := res.Sections[name]
		res.Usage.PagesCharged += sr.PagesOK
	}
	res.Usage.Billable = res.Usage.PagesCharged > 0
	// a caller-supplied tracker stays at 99 until the caller has recorded the outcome
	if owned {
		tracker.Complete()
	}

	log.Info("orchestrator.job.done",
		"status", res.Status(),
		"sections", len(res.Order),
		"chunks", len(plan),
		"pages_charged", res.Usage.PagesCharged,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

// planSection chunks the section's pages up to totalPages and reports how
// many requested pages lie past it.
func (o *Orchestrator) planSection(sec *SectionConfig, totalPages int) ([]pages.Chunk, int, error) {
	if sec.ModelID == "" {
		return nil, 0, common.NewAppError("CONFIG_ERROR", fmt.Sprintf("section %q has no model mapping", sec.Name), common.ErrConfig)
	}
	if _, ok := constants.ParseSectionMode(string(sec.Mode)); !ok {
		return nil, 0, common.NewAppError("CONFIG_ERROR", fmt.Sprintf("section %q has unknown mode %q", sec.Name, sec.Mode), common.ErrConfig)
	}
	ps, beyond, err := pages.Parse(sec.PageRange, totalPages)
	if err != nil {
		return nil, 0, err
	}
	return pages.Split(sec.Name, ps, o.chunkSize), beyond, nil
}

// accumulate is only called from the single accumulator goroutine.
func accumulate(sr *SectionResult, ok map[int]partial, p partial) {
	sr.Arrival = append(sr.Arrival, p.chunk.Index)
	if p.err != nil {
		sr.ChunksFailed++
		sr.Failures = append(sr.Failures, ChunkFailure{Chunk: p.chunk.Index, Pages: p.chunk.Pages, Error: p.err.Error()})
		return
	}
	sr.ChunksOK++
	sr.PagesOK += len(p.chunk.Pages)
	ok[p.chunk.Index] = p
}

// finalize folds successful partials in chunk order so that the first writer
// for a key is always the earliest page, whatever the arrival order was.
func (o *Orchestrator) finalize(sr *SectionResult, parts map[int]partial, filter bool) {
	idx := make([]int, 0, len(parts))
	for i := range parts {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	sort.Slice(sr.Failures, func(a, b int) bool { return sr.Failures[a].Chunk < sr.Failures[b].Chunk })

	c := &sr.Content
	for _, i := range idx {
		p := parts[i]
		sr.Lines = append(sr.Lines, p.lines...)
		switch c.Kind {
		case ContentTable:
			c.Tables = append(c.Tables, p.content.Tables...)
		case ContentFields:
			if c.Fields == nil {
				c.Fields = make(map[string]string)
			}
			for _, name := range p.content.FieldOrder {
				if _, ok := c.Fields[name]; ok {
					continue
				}
				c.Fields[name] = p.content.Fields[name]
				c.FieldOrder = append(c.FieldOrder, name)
			}
		case ContentText:
			if c.Text != "" && p.content.Text != "" {
				c.Text += "\n"
			}
			c.Text += p.content.Text
		}
	}

	if c.Kind != ContentTable || sr.ChunksOK == 0 {
		return
	}
	tables := c.Tables
	if filter {
		tables = o.classifier.Filter(tables)
		if dropped := len(c.Tables) - len(tables); dropped > 0 {
			o.logger.Info("orchestrator.tables.filtered", "section", sr.Name, "dropped", dropped, "kept", len(tables))
		}
		c.Tables = tables
	}
	sr.Consolidated = o.engine.MergeTables(tables)
}

// runChunk never returns an error; failures travel inside the partial so one
// bad chunk cannot cancel its siblings.
func (o *Orchestrator) runChunk(ctx context.Context, job *Job, sec *SectionConfig, c pages.Chunk) (out partial) {
	out = partial{section: sec.Name, chunk: c}
	start := time.Now()
	log := o.logger.With("job_id", job.ID.String(), "section", sec.Name, "chunk", c.Index, "pages", c.Selection(), "last_page", c.Max())

	defer func() {
		if r := recover(); r != nil {
			out.err = fmt.Errorf("chunk %d panicked: %v", c.Index, r)
		}
		if out.err != nil {
			log.Warn("orchestrator.chunk.failed", "error", out.err, "elapsed_ms", time.Since(start).Milliseconds())
			return
		}
		log.Debug("orchestrator.chunk.ok", "elapsed_ms", time.Since(start).Milliseconds())
	}()

	ctx, cancel := context.WithTimeout(ctx, o.chunkTimeout)
	defer cancel()

	doc, selection := job.Document, c.Pages
	if o.slicer != nil {
		sliced, err := o.slicer.Extract(job.Document, c.Pages)
		if err != nil {
			out.err = common.WrapError(err, "slice pages "+c.Selection())
			return out
		}
		doc, selection = sliced, nil
	}

	ar, err := o.analyzer.Analyze(ctx, sec.ModelID, doc, selection)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil {
		out.err = common.WrapError(err, "analyze pages "+c.Selection())
		return out
	}
	if ar == nil {
		ar = &docintel.AnalysisResult{}
	}
	out.lines = ar.Lines()
	out.content = o.route(sec, ar)
	return out
}

func (o *Orchestrator) route(sec *SectionConfig, ar *docintel.AnalysisResult) SectionContent {
	content := SectionContent{Kind: contentKindFor(sec.Mode)}
	switch content.Kind {
	case ContentTable:
		for _, grid := range ar.Tables {
			t := o.structurer.Structure(grid)
			if t.IsPlaceholder() {
				continue
			}
			table.RemoveColumns(t, sec.ColumnsToRemove)
			table.RemoveRows(t, sec.RowsToRemove)
			if t.Empty() {
				continue
			}
			content.Tables = append(content.Tables, t)
		}
	case ContentFields:
		content.Fields = make(map[string]string)
		for _, d := range ar.Documents {
			names := make([]string, 0, len(d.Fields))
			for name := range d.Fields {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				if _, ok := content.Fields[name]; ok {
					continue
				}
				content.Fields[name] = d.Fields[name].Text()
				content.FieldOrder = append(content.FieldOrder, name)
			}
		}
	case ContentText:
		content.Text = strings.Join(ar.Lines(), "\n")
	}
	return content
}
