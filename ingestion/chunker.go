package ingestion

import (
	"strings"
	"unicode/utf8"
)

const (
	defaultChunkSize    = 500
	defaultChunkOverlap = 50
)

// Chunk is an immutable slice of the extracted résumé text. Start and End are
// byte offsets into the extracted text; concatenating consecutive chunks while
// dropping the overlap reproduces the source exactly.
type Chunk struct {
	Text  string `json:"text"`
	Page  int    `json:"page"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// Separator priority for splitting: paragraph break, line break, sentence
// terminators (Latin and CJK), then single spaces. Anything still too long
// after all of these is cut at the rune limit.
var chunkSeparators = []string{"\n\n", "\n", ". ", "! ", "? ", "。", "！", "？", "；", " "}

type span struct {
	start int
	end   int
}

// splitText splits extracted text into chunks of at most size runes where
// adjacent chunks share up to overlap runes. pageStarts holds the byte offset
// at which each source page begins; pass nil for single-page documents.
func splitText(text string, pageStarts []int, size, overlap int) []Chunk {
	if size <= 0 {
		size = defaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = defaultChunkOverlap
	}
	if text == "" {
		return nil
	}

	// Segments are capped below the chunk size so that prepending the
	// overlap never pushes a chunk past the limit.
	limit := size - overlap
	fragments := fragment(text, 0, chunkSeparators, limit)
	segments := mergeFragments(text, fragments, limit)

	chunks := make([]Chunk, 0, len(segments))
	for i, seg := range segments {
		start := seg.start
		if i > 0 {
			start = stepBack(text, seg.start, overlap, segments[i-1].start)
		}
		chunks = append(chunks, Chunk{
			Text:  text[start:seg.end],
			Page:  pageAt(pageStarts, seg.start),
			Start: start,
			End:   seg.end,
		})
	}
	return chunks
}

// fragment recursively cuts text into pieces of at most limit runes, trying
// each separator in priority order before falling back to a hard rune cut.
// The returned spans are contiguous and cover text entirely.
func fragment(text string, base int, seps []string, limit int) []span {
	if utf8.RuneCountInString(text) <= limit {
		return []span{{base, base + len(text)}}
	}

	for i, sep := range seps {
		if !strings.Contains(text, sep) {
			continue
		}
		parts := strings.SplitAfter(text, sep)
		out := make([]span, 0, len(parts))
		pos := 0
		for _, part := range parts {
			if part == "" {
				continue
			}
			if utf8.RuneCountInString(part) <= limit {
				out = append(out, span{base + pos, base + pos + len(part)})
			} else {
				out = append(out, fragment(part, base+pos, seps[i+1:], limit)...)
			}
			pos += len(part)
		}
		return out
	}

	return hardCut(text, base, limit)
}

func hardCut(text string, base, limit int) []span {
	out := make([]span, 0, utf8.RuneCountInString(text)/limit+1)
	start := 0
	count := 0
	for pos := range text {
		if count == limit {
			out = append(out, span{base + start, base + pos})
			start = pos
			count = 0
		}
		count++
	}
	out = append(out, span{base + start, base + len(text)})
	return out
}

// mergeFragments greedily joins adjacent fragments so each resulting segment
// stays within limit runes.
func mergeFragments(text string, fragments []span, limit int) []span {
	if len(fragments) == 0 {
		return nil
	}

	out := make([]span, 0, len(fragments))
	cur := fragments[0]
	curLen := utf8.RuneCountInString(text[cur.start:cur.end])
	for _, f := range fragments[1:] {
		l := utf8.RuneCountInString(text[f.start:f.end])
		if curLen+l > limit {
			out = append(out, cur)
			cur = f
			curLen = l
			continue
		}
		cur.end = f.end
		curLen += l
	}
	return append(out, cur)
}

// stepBack moves pos backwards by up to n runes without crossing floor.
func stepBack(text string, pos, n, floor int) int {
	for i := 0; i < n && pos > floor; i++ {
		_, size := utf8.DecodeLastRuneInString(text[floor:pos])
		pos -= size
	}
	return pos
}

func pageAt(pageStarts []int, offset int) int {
	page := 1
	for i, start := range pageStarts {
		if offset >= start {
			page = i + 1
		}
	}
	return page
}
