// Package report turns run outcomes into message-sized text.
package report

import (
	"strings"
	"unicode/utf8"
)

// Chunk packs lines greedily into segments of at most maxSize characters
// (runes). header prefixes the first segment only. A line is never split:
// one longer than maxSize becomes its own oversized segment. Empty input
// yields a single segment holding just the header.
func Chunk(lines []string, maxSize int, header string) []string {
	var (
		chunks   []string
		buf      strings.Builder
		size     = utf8.RuneCountInString(header)
		open     = header != "" // buf holds something that must be flushed
		hasLines = false
	)
	buf.WriteString(header)

	for _, line := range lines {
		n := utf8.RuneCountInString(line)
		sep := 0
		if hasLines {
			sep = 1
		}

		if open && size+sep+n > maxSize {
			chunks = append(chunks, buf.String())
			buf.Reset()
			size, sep = 0, 0
			hasLines = false
		}

		if sep == 1 {
			buf.WriteByte('\n')
		}
		buf.WriteString(line)
		size += sep + n
		open, hasLines = true, true
	}

	if open || len(chunks) == 0 {
		chunks = append(chunks, buf.String())
	}
	return chunks
}

// Delivery splits chunks by transport action: Edit replaces the progress
// message in place, Append goes out as new messages in order.
type Delivery struct {
	Edit   string
	Append []string
}

// Plan maps Chunk output onto a Delivery.
func Plan(chunks []string) Delivery {
	if len(chunks) == 0 {
		return Delivery{}
	}
	return Delivery{Edit: chunks[0], Append: chunks[1:]}
}
