// Package transcript normalizes and joins recognized speech segments.
package transcript

import "strings"

// Clean normalizes segment whitespace.
func Clean(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	return strings.Join(strings.Fields(raw), " ")
}

// Join concatenates segments into one display line. Each input event is
// self-contained for the current utterance window, so segments within one
// event are simply joined; continuation duplicates are merged to keep the
// rendered line from stuttering.
func Join(segments []string) string {
	merged := make([]string, 0, len(segments))
	for _, segment := range segments {
		merged = appendSegment(merged, segment)
	}
	return strings.Join(merged, " ")
}

// appendSegment merges continuation segments to avoid duplicated growth.
func appendSegment(segments []string, segment string) []string {
	segment = Clean(segment)
	if segment == "" {
		return segments
	}
	if len(segments) == 0 {
		return append(segments, segment)
	}

	last := segments[len(segments)-1]
	switch {
	case segment == last:
		return segments
	case strings.HasPrefix(segment, last):
		segments[len(segments)-1] = segment
		return segments
	case strings.HasPrefix(last, segment):
		return segments
	default:
		return append(segments, segment)
	}
}
