// Package ingestion turns an uploaded résumé document into the ordered chunk
// sequence the knowledge index is built from.
package ingestion

import (
	"path/filepath"
	"strings"
)

// DocumentFormat enumerates supported résumé payload formats.
type DocumentFormat string

const (
	// FormatUnknown represents an unsupported or undetected format.
	FormatUnknown DocumentFormat = ""
	// FormatPDF represents PDF documents.
	FormatPDF DocumentFormat = "pdf"
	// FormatMarkdown represents Markdown documents.
	FormatMarkdown DocumentFormat = "markdown"
	// FormatText represents plain text documents.
	FormatText DocumentFormat = "text"
)

// DetectFormat infers a document format from the provided filename's extension.
func DetectFormat(name string) DocumentFormat {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".pdf":
		return FormatPDF
	case ".md", ".markdown":
		return FormatMarkdown
	case ".txt", ".text":
		return FormatText
	default:
		return FormatUnknown
	}
}
