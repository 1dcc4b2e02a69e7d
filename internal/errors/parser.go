package errors

import (
	"regexp"
	"strconv"
	"strings"
)

// frameDelimiter opens a diagnostic frame in the transformer's pretty
// output, e.g. "╭─[src/App.tsx:12:5]".
const frameDelimiter = "╭─["

// framePosition matches the ":<line>:<column>]" tail of a frame header.
var framePosition = regexp.MustCompile(`:(\d+):(\d+)\]`)

// ParsePosition scans a diagnostic message for the frame delimiter and
// parses the 1-based line and column that close the frame header on the
// same logical line. Returns ok=false when the message carries no frame;
// callers treat that as "no position available", not as an error.
func ParsePosition(message string) (line, column int, ok bool) {
	idx := strings.Index(message, frameDelimiter)
	if idx < 0 {
		return 0, 0, false
	}

	frame := message[idx:]
	if end := strings.IndexByte(frame, '\n'); end >= 0 {
		frame = frame[:end]
	}

	matches := framePosition.FindStringSubmatch(frame)
	if matches == nil {
		return 0, 0, false
	}

	line, err := strconv.Atoi(matches[1])
	if err != nil || line < 1 {
		return 0, 0, false
	}
	column, err = strconv.Atoi(matches[2])
	if err != nil {
		return 0, 0, false
	}

	return line, column, true
}
