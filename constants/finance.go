package constants

import "strings"

// FinanceKeywords drives both the key-column override and the table classifier.
var FinanceKeywords = []string{
	"revenue",
	"income",
	"expenses",
	"expenditure",
	"profit",
	"loss",
	"tax",
	"equity",
	"cash",
	"liabilities",
	"assets",
	"depreciation",
	"amortisation",
	"amortization",
	"dividend",
	"interest",
	"borrowings",
	"receivables",
	"payables",
	"inventories",
	"provisions",
	"reserves",
	"capital",
	"turnover",
	"earnings",
	"investments",
	"finance costs",
	"total",
}

// ContainsFinanceKeyword reports whether s mentions any finance keyword.
func ContainsFinanceKeyword(s string) bool {
	s = strings.ToLower(s)
	for _, kw := range FinanceKeywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// KeyColumnName is the canonical header of the first (row-label) column.
const KeyColumnName = "Particulars"

// NoDataExtracted is the single cell of the placeholder table.
const NoDataExtracted = "No Data Extracted"
