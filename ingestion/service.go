package ingestion

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoExtractableText reports a document that parsed but yielded no
	// usable text. The upload is unusable and must be retried with a
	// different file.
	ErrNoExtractableText = errors.New("document contains no extractable text")

	// ErrUnsupportedFormat reports a document whose format could not be
	// detected from its filename.
	ErrUnsupportedFormat = errors.New("unsupported document format")
)

// Document is a validated résumé payload handed over by the upload layer.
type Document struct {
	Name string
	Data []byte
}

// Ingest extracts the document's text and splits it into retrievable chunks.
// Chunks are at most 500 runes long and adjacent chunks share up to 50 runes
// of overlap so retrieval keeps context across boundaries.
func Ingest(doc Document) ([]Chunk, error) {
	ext, err := extractText(doc)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(ext.text) == "" {
		return nil, fmt.Errorf("%s: %w", doc.Name, ErrNoExtractableText)
	}

	return splitText(ext.text, ext.pageStarts, defaultChunkSize, defaultChunkOverlap), nil
}
