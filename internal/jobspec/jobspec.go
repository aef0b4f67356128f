// Package jobspec decodes and validates extraction requests and turns them
// into runnable jobs.
package jobspec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/filings-extractor/constants"
	"github.com/joseph-ayodele/filings-extractor/internal/common"
	"github.com/joseph-ayodele/filings-extractor/internal/core"
	"github.com/joseph-ayodele/filings-extractor/internal/docintel"
	"github.com/joseph-ayodele/filings-extractor/internal/export"
	"github.com/joseph-ayodele/filings-extractor/internal/pages"
)

// Request asks for one document to be extracted. Sections keep their order in
// the produced workbook.
type Request struct {
	OwnerID         string    `json:"owner_id" yaml:"owner_id"`
	Document        string    `json:"document" yaml:"document"`
	ExtractionModel string    `json:"extraction_model,omitempty" yaml:"extraction_model,omitempty"`
	FilterTables    bool      `json:"filter_tables,omitempty" yaml:"filter_tables,omitempty"`
	CombineOutput   string    `json:"combine_output,omitempty" yaml:"combine_output,omitempty"`
	Sections        []Section `json:"sections,omitempty" yaml:"sections,omitempty"`
}

type Section struct {
	Name             string   `json:"name" yaml:"name"`
	Pages            string   `json:"pages" yaml:"pages"`
	Mode             string   `json:"mode,omitempty" yaml:"mode,omitempty"`
	Model            string   `json:"model,omitempty" yaml:"model,omitempty"`
	ColumnsToRemove  []string `json:"columns_to_remove,omitempty" yaml:"columns_to_remove,omitempty"`
	RowsToRemove     []string `json:"rows_to_remove,omitempty" yaml:"rows_to_remove,omitempty"`
	Combine          bool     `json:"combine,omitempty" yaml:"combine,omitempty"`
	GridLinesRemoval bool     `json:"grid_lines_removal,omitempty" yaml:"grid_lines_removal,omitempty"`
}

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

func schema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource("request.json", strings.NewReader(requestSchema)); err != nil {
			compileErr = fmt.Errorf("add schema: %w", err)
			return
		}
		compiled, compileErr = c.Compile("request.json")
	})
	return compiled, compileErr
}

// Decode parses a request in the given format ("json", "yaml" or "yml"),
// checks it against the request schema and runs field validation.
func Decode(data []byte, format string) (*Request, error) {
	raw := data
	switch constants.NormalizeExt(format) {
	case "json", "":
	case "yaml", "yml":
		var v any
		if err := yaml.Unmarshal(data, &v); err != nil {
			return nil, common.NewAppError("INVALID_REQUEST", "parse yaml", fmt.Errorf("%w: %v", common.ErrInvalidInput, err))
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, common.NewAppError("INVALID_REQUEST", "yaml is not representable as json", fmt.Errorf("%w: %v", common.ErrInvalidInput, err))
		}
		raw = b
	default:
		return nil, common.NewAppError("INVALID_REQUEST", "unsupported request format "+format, common.ErrInvalidInput)
	}

	s, err := schema()
	if err != nil {
		return nil, common.NewAppError("SCHEMA_ERROR", "compile request schema", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, common.NewAppError("INVALID_REQUEST", "parse json", fmt.Errorf("%w: %v", common.ErrInvalidInput, err))
	}
	if err := s.Validate(doc); err != nil {
		return nil, common.NewAppError("INVALID_REQUEST", "request does not match schema", fmt.Errorf("%w: %v", common.ErrInvalidInput, err))
	}

	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, common.NewAppError("INVALID_REQUEST", "decode request", fmt.Errorf("%w: %v", common.ErrInvalidInput, err))
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return &req, nil
}

// DecodeFile picks the format from the file extension.
func DecodeFile(name string, data []byte) (*Request, error) {
	return Decode(data, filepath.Ext(name))
}

var pageRangeRe = regexp.MustCompile(`^\d+(-\d+)?(,\d+(-\d+)?)*$`)

func (r *Request) Validate() error {
	v := common.NewValidator()
	v.Field("owner_id", r.OwnerID, common.Required, common.MaxLength(128))
	v.Field("document", r.Document, common.Required)
	if r.Document != "" {
		v.Field("document", r.Document, allowedDocument)
	}
	seen := make(map[string]bool, len(r.Sections))
	for i, s := range r.Sections {
		prefix := fmt.Sprintf("sections[%d]", i)
		v.Field(prefix+".name", s.Name, common.Required, common.MaxLength(100))
		v.Field(prefix+".pages", s.Pages, common.Required, common.Matches(pageRangeRe, "must look like 1,3-4"))
		if s.Mode != "" {
			v.Field(prefix+".mode", s.Mode, common.OneOf("table", "tables", "field", "fields", "key-value", "keyvalue", "text", "lines"))
		}
		key := strings.ToLower(strings.TrimSpace(s.Name))
		if key != "" && seen[key] {
			v.Field(prefix+".name", s.Name, duplicateName)
		}
		seen[key] = true
	}
	return v.Error()
}

func allowedDocument(field string, value interface{}) *common.ValidationError {
	name, _ := value.(string)
	if _, ok := constants.AllowedExtensions[constants.NormalizeExt(filepath.Ext(name))]; ok {
		return nil
	}
	return &common.ValidationError{Field: field, Value: value, Message: "must be a PDF document"}
}

func duplicateName(field string, value interface{}) *common.ValidationError {
	return &common.ValidationError{Field: field, Value: value, Message: "is used by another section"}
}

// RequestedPages counts the distinct pages the request asks for. Without
// sections every page of the document is requested.
func (r *Request) RequestedPages(totalPages int) (int, error) {
	if len(r.Sections) == 0 {
		return totalPages, nil
	}
	distinct := make(map[int]struct{})
	for _, s := range r.Sections {
		ps, _, err := pages.Parse(s.Pages, totalPages)
		if err != nil {
			continue
		}
		for _, p := range ps {
			distinct[p] = struct{}{}
		}
	}
	if len(distinct) == 0 {
		return 0, common.NewAppError("NO_PAGES", "no pages to process based on the configuration", common.ErrInvalidInput)
	}
	return len(distinct), nil
}

// Job turns the request into a job for a document of totalPages pages.
// Documents longer than maxPagesWithoutConfig need explicit sections.
func (r *Request) Job(id uuid.UUID, document []byte, totalPages, maxPagesWithoutConfig int, filterTables bool) (*core.Job, error) {
	if totalPages <= 0 {
		return nil, common.NewAppError("EMPTY_DOCUMENT", r.Document+" has no pages", common.ErrInvalidInput)
	}
	if len(r.Sections) == 0 && maxPagesWithoutConfig > 0 && totalPages > maxPagesWithoutConfig {
		return nil, common.NewAppError("PAGE_CONFIG_REQUIRED",
			fmt.Sprintf("page configuration is mandatory for %s with more than %d pages", r.Document, maxPagesWithoutConfig),
			common.ErrInvalidInput)
	}

	job := &core.Job{
		ID:           id,
		OwnerID:      r.OwnerID,
		DocumentName: r.Document,
		Document:     document,
		TotalPages:   totalPages,
		FilterTables: r.FilterTables || filterTables,
	}
	if len(r.Sections) == 0 {
		model := docintel.MapModel(r.ExtractionModel)
		if model == "" {
			model = docintel.DefaultModel
		}
		job.Sections = []core.SectionConfig{{
			Name:      export.BaseName(r.Document),
			PageRange: fmt.Sprintf("1-%d", totalPages),
			Mode:      modeForModel(model),
			ModelID:   model,
		}}
		return job, nil
	}

	for _, s := range r.Sections {
		job.Sections = append(job.Sections, r.section(s))
	}
	return job, nil
}

// section resolves mode and model: an explicit section mode wins, then the
// section model, then the request-wide model.
func (r *Request) section(s Section) core.SectionConfig {
	model := docintel.MapModel(s.Model)
	if model == "" {
		model = docintel.MapModel(r.ExtractionModel)
	}
	mode, ok := constants.ParseSectionMode(s.Mode)
	if !ok {
		if model != "" {
			mode = modeForModel(model)
		} else {
			mode = constants.SectionModeTable
		}
	}
	if s.Model == "" && r.ExtractionModel == "" {
		model = docintel.ModelForMode(string(mode))
	}
	return core.SectionConfig{
		Name:               strings.TrimSpace(s.Name),
		PageRange:          s.Pages,
		Mode:               mode,
		ModelID:            model,
		ColumnsToRemove:    s.ColumnsToRemove,
		RowsToRemove:       s.RowsToRemove,
		CombineAcrossFiles: s.Combine,
		GridLinesRemoval:   s.GridLinesRemoval,
	}
}

// CombineSet lists the section names flagged for cross-document merging.
func (r *Request) CombineSet() map[string]bool {
	out := make(map[string]bool)
	for _, s := range r.Sections {
		if s.Combine {
			out[s.Name] = true
		}
	}
	return out
}

func modeForModel(model string) constants.SectionMode {
	switch model {
	case "prebuilt-layout":
		return constants.SectionModeTable
	case "prebuilt-invoice", "prebuilt-receipt", "prebuilt-businessCard":
		return constants.SectionModeField
	default:
		return constants.SectionModeText
	}
}
