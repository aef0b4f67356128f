// Package docintel talks to the external document-intelligence service.
package docintel

import (
	"context"
	"sort"
	"strings"
)

// Analyzer submits a document (or a page subset of it) to a layout/field model.
// pages may be nil to analyze every page of document.
type Analyzer interface {
	Analyze(ctx context.Context, modelID string, document []byte, pages []int) (*AnalysisResult, error)
}

// AnalyzerFunc adapts a function to Analyzer.
type AnalyzerFunc func(ctx context.Context, modelID string, document []byte, pages []int) (*AnalysisResult, error)

func (f AnalyzerFunc) Analyze(ctx context.Context, modelID string, document []byte, pages []int) (*AnalysisResult, error) {
	return f(ctx, modelID, document, pages)
}

const DefaultModel = "prebuilt-read"

// models maps the friendly names offered to users onto service model IDs.
var models = map[string]string{
	"invoice":        "prebuilt-invoice",
	"printed text":   "prebuilt-read",
	"printed tables": "prebuilt-layout",
	"business card":  "prebuilt-businessCard",
	"receipt":        "prebuilt-receipt",
}

// MapModel resolves a friendly model name or a raw "prebuilt-*" ID. Unknown
// friendly names fall back to DefaultModel; an empty name returns "".
func MapModel(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		return ""
	}
	if strings.HasPrefix(n, "prebuilt-") {
		return strings.TrimSpace(name)
	}
	if id, ok := models[n]; ok {
		return id
	}
	return DefaultModel
}

// Models lists the friendly model names in a stable order.
func Models() []string {
	out := make([]string, 0, len(models))
	for k := range models {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ModelForMode picks the default model for a section mode when none is given.
func ModelForMode(mode string) string {
	switch strings.ToLower(mode) {
	case "table":
		return "prebuilt-layout"
	case "field":
		return "prebuilt-invoice"
	default:
		return DefaultModel
	}
}
