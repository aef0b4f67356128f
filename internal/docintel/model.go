package docintel

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

type OperationStatus string

const (
	OperationStatusSucceeded  OperationStatus = "succeeded"
	OperationStatusRunning    OperationStatus = "running"
	OperationStatusNotStarted OperationStatus = "notStarted"
	OperationStatusFailed     OperationStatus = "failed"
)

type AnalyzeOperation struct {
	Status OperationStatus `json:"status"`
	Error  *ServiceError   `json:"error,omitempty"`

	Result AnalysisResult `json:"analyzeResult"`
}

type ServiceError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// AnalysisResult is the subset of the analyze response the pipeline consumes.
type AnalysisResult struct {
	ModelID string `json:"modelId"`

	Pages     []Page     `json:"pages"`
	Tables    []Table    `json:"tables"`
	Documents []Document `json:"documents"`
}

type Page struct {
	PageNumber int    `json:"pageNumber"`
	Lines      []Line `json:"lines"`
}

type Line struct {
	Content string `json:"content"`
}

// Table is the raw cell grid of one detected table.
type Table struct {
	RowCount    int    `json:"rowCount"`
	ColumnCount int    `json:"columnCount"`
	Cells       []Cell `json:"cells"`
}

const CellKindColumnHeader = "columnHeader"

type Cell struct {
	Kind        string `json:"kind,omitempty"`
	RowIndex    int    `json:"rowIndex"`
	ColumnIndex int    `json:"columnIndex"`
	RowSpan     int    `json:"rowSpan,omitempty"`
	ColumnSpan  int    `json:"columnSpan,omitempty"`
	Content     string `json:"content"`
}

func (c Cell) IsHeader() bool { return c.Kind == CellKindColumnHeader }

// Span returns the column span, treating a missing value as 1.
func (c Cell) Span() int {
	if c.ColumnSpan < 1 {
		return 1
	}
	return c.ColumnSpan
}

type Document struct {
	DocType string           `json:"docType"`
	Fields  map[string]Field `json:"fields"`
}

type Field struct {
	Type          string           `json:"type"`
	Content       string           `json:"content,omitempty"`
	ValueString   string           `json:"valueString,omitempty"`
	ValueNumber   *float64         `json:"valueNumber,omitempty"`
	ValueDate     string           `json:"valueDate,omitempty"`
	ValueArray    []Field          `json:"valueArray,omitempty"`
	ValueObject   map[string]Field `json:"valueObject,omitempty"`
	ValueCurrency *CurrencyValue   `json:"valueCurrency,omitempty"`
}

type CurrencyValue struct {
	Amount       float64 `json:"amount"`
	CurrencyCode string  `json:"currencyCode,omitempty"`
}

// Text flattens a field into a single display string. Objects render as
// "key: value" pairs in key order and arrays join their items with "; ".
func (f Field) Text() string {
	switch {
	case len(f.ValueObject) > 0:
		keys := make([]string, 0, len(f.ValueObject))
		for k := range f.ValueObject {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			if v := f.ValueObject[k].Text(); v != "" {
				parts = append(parts, k+": "+v)
			}
		}
		return strings.Join(parts, ", ")
	case len(f.ValueArray) > 0:
		parts := make([]string, 0, len(f.ValueArray))
		for _, item := range f.ValueArray {
			if v := item.Text(); v != "" {
				parts = append(parts, v)
			}
		}
		return strings.Join(parts, "; ")
	case f.ValueCurrency != nil:
		amount := strconv.FormatFloat(f.ValueCurrency.Amount, 'f', 2, 64)
		if f.ValueCurrency.CurrencyCode != "" {
			return fmt.Sprintf("%s %s", f.ValueCurrency.CurrencyCode, amount)
		}
		return amount
	case f.ValueString != "":
		return f.ValueString
	case f.Content != "":
		return f.Content
	case f.ValueDate != "":
		return f.ValueDate
	case f.ValueNumber != nil:
		return strconv.FormatFloat(*f.ValueNumber, 'f', -1, 64)
	}
	return ""
}

// Lines returns every page line in page order.
func (r *AnalysisResult) Lines() []string {
	var out []string
	for _, p := range r.Pages {
		for _, l := range p.Lines {
			out = append(out, l.Content)
		}
	}
	return out
}
