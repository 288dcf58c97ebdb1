// Package frontmatter splits page sources into a metadata header and a body,
// and loads the optional sidecar metadata file that sits next to a page.
package frontmatter

import (
	"bytes"
)

// Delimiter opens a header block and, optionally, closes it.
const Delimiter = "---"

// Style captures formatting details needed for stable rewriting.
//
// It intentionally focuses on newline/trailing newline shape and does not
// attempt to preserve original YAML formatting.
type Style struct {
	Newline            string
	HasTrailingNewline bool
}

// Split separates a front-matter header from the body.
//
// A header exists only when the first line is exactly `---`. It ends at the next
// `---` line or at the first blank line, so the closing delimiter is optional when
// the header is followed by a blank line. Reaching the end of input also ends it.
// Without a header, had is false and body is the full input.
func Split(content []byte) (header []byte, body []byte, had bool, style Style) {
	style = detectStyle(content)

	first, rest := nextLine(content)
	if trimLine(first) != Delimiter {
		return nil, content, false, style
	}

	start := len(content) - len(rest)
	pos := start
	for pos < len(content) {
		line, _ := nextLine(content[pos:])
		t := trimLine(line)
		if t == "" || t == Delimiter {
			return content[start:pos], content[pos+len(line):], true, style
		}
		pos += len(line)
	}
	return content[start:], []byte{}, true, style
}

// Join reassembles a document from raw header and body.
//
// If had is false, Join returns body as-is.
// If had is true, Join emits the header between `---` delimiters using the
// newline style captured in Style.
func Join(header []byte, body []byte, had bool, style Style) []byte {
	if !had {
		return body
	}

	nl := style.Newline
	if nl == "" {
		nl = "\n"
	}

	delim := []byte(Delimiter + nl)

	out := make([]byte, 0, 2*len(delim)+len(header)+len(body))
	out = append(out, delim...)
	out = append(out, header...)
	out = append(out, delim...)
	out = append(out, body...)
	return out
}

// nextLine returns the first line of b including its terminator, and the remainder.
func nextLine(b []byte) (line, rest []byte) {
	if i := bytes.IndexByte(b, '\n'); i >= 0 {
		return b[:i+1], b[i+1:]
	}
	return b, nil
}

func trimLine(line []byte) string {
	return string(bytes.TrimRight(line, " \t\r\n"))
}

func detectStyle(content []byte) Style {
	newline := "\n"
	for i := 0; i+1 < len(content); i++ {
		if content[i] == '\r' && content[i+1] == '\n' {
			newline = "\r\n"
			break
		}
		if content[i] == '\n' {
			newline = "\n"
			break
		}
	}

	hasTrailingNewline := len(content) > 0 && (content[len(content)-1] == '\n')

	return Style{
		Newline:            newline,
		HasTrailingNewline: hasTrailingNewline,
	}
}
