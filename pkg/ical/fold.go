package ical

import (
	"strings"
	"unicode/utf8"
)

// MaxLineOctets is the RFC5545 soft limit for one physical line, excluding
// the CRLF.
const MaxLineOctets = 75

// Fold splits a logical line into physical lines of at most width octets.
// Continuation lines start with a single space that counts toward the width.
// Splits never fall inside a multi-byte UTF-8 sequence.
func Fold(line string, width int) []string {
	// A continuation must hold at least one full four-byte rune.
	width = max(width, 5)

	var out []string
	prefix, limit := "", width
	for len(line) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(line[cut]) {
			cut--
		}
		out = append(out, prefix+line[:cut])
		line = line[cut:]
		prefix, limit = " ", width-1
	}
	return append(out, prefix+line)
}

type logicalLine struct {
	num  int
	text string
}

// Unfold joins continuation lines, dropping exactly one leading space or
// tab from each, and returns the non-blank logical lines. Both CRLF and
// bare LF terminators are accepted.
func Unfold(text string) []string {
	lines := unfold(text)
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.text
	}
	return out
}

func unfold(text string) []logicalLine {
	var (
		out     []logicalLine
		current strings.Builder
		start   int
		open    bool
	)
	flush := func() {
		if open && current.Len() > 0 {
			out = append(out, logicalLine{num: start, text: current.String()})
		}
		current.Reset()
		open = false
	}

	for i, raw := range strings.Split(text, "\n") {
		raw = strings.TrimSuffix(raw, "\r")
		if open && raw != "" && (raw[0] == ' ' || raw[0] == '\t') {
			current.WriteString(raw[1:])
			continue
		}
		flush()
		current.WriteString(raw)
		start, open = i+1, true
	}
	flush()
	return out
}
