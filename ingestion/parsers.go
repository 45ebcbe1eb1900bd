package ingestion

import (
	"bytes"
	"fmt"
	"strings"

	pdf "github.com/ledongthuc/pdf"
)

type extracted struct {
	text       string
	pageStarts []int
}

func extractText(doc Document) (extracted, error) {
	switch DetectFormat(doc.Name) {
	case FormatPDF:
		return extractPDF(doc.Data)
	case FormatMarkdown, FormatText:
		return extracted{text: normalizePlainText(string(doc.Data))}, nil
	default:
		return extracted{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, doc.Name)
	}
}

func extractPDF(data []byte) (extracted, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return extracted{}, fmt.Errorf("open pdf: %w", err)
	}

	var sb strings.Builder
	pageStarts := make([]int, 0, reader.NumPage())
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			return extracted{}, fmt.Errorf("extract pdf page %d: %w", i, err)
		}
		pageStarts = append(pageStarts, sb.Len())
		sb.WriteString(normalizePlainText(content))
		if !strings.HasSuffix(content, "\n") {
			sb.WriteString("\n")
		}
	}

	return extracted{text: sb.String(), pageStarts: pageStarts}, nil
}

func normalizePlainText(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	return content
}
