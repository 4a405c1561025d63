// Package logcat parses `adb logcat -v threadtime` output and supervises
// the long-running logcat subprocess for each device serial: one child
// process per stream, raw lines teed to an on-disk capture file, parsed
// lines delivered on a per-stream channel.
package logcat

import "strings"

// Line is one tokenized threadtime log line. For lines that do not match
// the threadtime shape only Message and Raw are populated, so a consumer
// can still render what the device printed.
type Line struct {
	Timestamp string `json:"timestamp"` // MM-DD HH:MM:SS.mmm
	PID       string `json:"pid"`
	TID       string `json:"tid"`
	Level     string `json:"level"` // V/D/I/W/E/F/S
	Tag       string `json:"tag"`
	Message   string `json:"message"`
	Raw       string `json:"raw"`
}

// timestampLen covers "MM-DD HH:MM:SS.mmm".
const timestampLen = 18

func validLevel(s string) bool {
	switch s {
	case "V", "D", "I", "W", "E", "F", "S":
		return true
	}
	return false
}

// ParseLine tokenizes a threadtime line. ok is false for lines that are not
// log records at all — logcat banners ("--------- beginning of main"),
// blank lines, truncated fragments. Parsing is stateless: the same input
// always produces the same result.
func ParseLine(line string) (Line, bool) {
	raw := line
	trimmed := strings.TrimSpace(line)

	// "MM-DD HH:MM:SS.mmm  PID  TID L TAG: msg" needs at least the
	// timestamp plus a couple of fields.
	if len(trimmed) < 20 {
		return Line{}, false
	}

	// Positional gate on the date prefix. Cheap and rejects banners
	// without touching the rest of the line.
	if trimmed[2] != '-' || trimmed[5] != ' ' || trimmed[8] != ':' || trimmed[11] != ':' || trimmed[14] != '.' {
		return Line{}, false
	}

	timestamp := trimmed[:timestampLen]
	rest := strings.TrimLeft(trimmed[timestampLen:], " \t")

	pid, rest, ok := nextField(rest)
	if !ok {
		return Line{}, false
	}
	tid, rest, ok := nextField(rest)
	if !ok {
		return Line{}, false
	}
	level, rest, _ := nextField(rest)
	if !validLevel(level) {
		return Line{}, false
	}
	if rest == "" {
		// pid/tid/level with nothing after is a fragment, not a record.
		return Line{}, false
	}

	tag, message := splitTagMessage(rest)

	return Line{
		Timestamp: timestamp,
		PID:       pid,
		TID:       tid,
		Level:     level,
		Tag:       tag,
		Message:   message,
		Raw:       raw,
	}, true
}

// nextField pops one whitespace-delimited token and returns the remainder
// with leading whitespace stripped.
func nextField(s string) (field, rest string, ok bool) {
	if s == "" {
		return "", "", false
	}
	idx := strings.IndexAny(s, " \t")
	if idx < 0 {
		return s, "", true
	}
	return s[:idx], strings.TrimLeft(s[idx:], " \t"), true
}

// splitTagMessage separates TAG from MESSAGE on the first ": " occurrence.
// Messages legitimately contain colons, so only the first ": " counts as
// the boundary. A remainder that merely ends in ':' is a tag with an empty
// message, and a remainder with no colon at all is treated the same way.
// The fallbacks are heuristic but long-standing; downstream consumers
// depend on them as they are.
func splitTagMessage(s string) (tag, message string) {
	if idx := strings.Index(s, ": "); idx >= 0 {
		return strings.TrimSpace(s[:idx]), s[idx+2:]
	}
	if strings.HasSuffix(s, ":") {
		return strings.TrimSpace(s[:len(s)-1]), ""
	}
	return strings.TrimSpace(s), ""
}
