package logcat

import "testing"

func TestParseLine(t *testing.T) {
	line := "01-15 12:34:56.789  1234  5678 D MyTag   : hello"
	got, ok := ParseLine(line)
	if !ok {
		t.Fatal("line should parse")
	}
	if got.Timestamp != "01-15 12:34:56.789" {
		t.Errorf("timestamp = %q", got.Timestamp)
	}
	if got.PID != "1234" || got.TID != "5678" {
		t.Errorf("pid/tid = %q/%q", got.PID, got.TID)
	}
	if got.Level != "D" {
		t.Errorf("level = %q", got.Level)
	}
	if got.Tag != "MyTag" {
		t.Errorf("tag = %q", got.Tag)
	}
	if got.Message != "hello" {
		t.Errorf("message = %q", got.Message)
	}
	if got.Raw != line {
		t.Errorf("raw = %q", got.Raw)
	}
}

func TestParseLineErrorLevel(t *testing.T) {
	got, ok := ParseLine("12-25 08:00:00.000  9999    42 E SomeTag : error msg")
	if !ok {
		t.Fatal("line should parse")
	}
	if got.Level != "E" || got.Tag != "SomeTag" || got.Message != "error msg" {
		t.Errorf("got level=%q tag=%q message=%q", got.Level, got.Tag, got.Message)
	}
}

func TestParseLineMessageWithColons(t *testing.T) {
	// The message body contains colons; only the first ": " is the boundary.
	got, ok := ParseLine("03-10 14:22:33.456  1000  2000 I ActivityManager: Start proc 1234:com.example/u0a12 for activity")
	if !ok {
		t.Fatal("line should parse")
	}
	if got.Tag != "ActivityManager" {
		t.Errorf("tag = %q", got.Tag)
	}
	if got.Message != "Start proc 1234:com.example/u0a12 for activity" {
		t.Errorf("message = %q", got.Message)
	}
}

func TestParseLineRejects(t *testing.T) {
	cases := []string{
		"",
		"not a logcat line",
		"--------- beginning of main",
		"--------- beginning of system",
		"01-15 12:34:56.789",                  // timestamp only
		"01-15 12:34:56.789  1234  5678 Q Tag: x", // unknown level
		"01/15 12:34:56.789  1234  5678 D Tag: x", // wrong date separator
	}
	for _, line := range cases {
		if _, ok := ParseLine(line); ok {
			t.Errorf("ParseLine(%q) should be rejected", line)
		}
	}
}

func TestParseLineTagFallbacks(t *testing.T) {
	// Trailing colon with no ": " pair: tag with empty message.
	got, ok := ParseLine("01-15 12:34:56.789  1234  5678 W chatty:")
	if !ok {
		t.Fatal("line should parse")
	}
	if got.Tag != "chatty" || got.Message != "" {
		t.Errorf("got tag=%q message=%q", got.Tag, got.Message)
	}

	// No colon at all: the whole remainder is the tag.
	got, ok = ParseLine("01-15 12:34:56.789  1234  5678 W bare-remainder")
	if !ok {
		t.Fatal("line should parse")
	}
	if got.Tag != "bare-remainder" || got.Message != "" {
		t.Errorf("got tag=%q message=%q", got.Tag, got.Message)
	}
}

func TestParseLineIdempotent(t *testing.T) {
	line := "01-15 12:34:56.789  1234  5678 D MyTag   : hello"
	first, ok1 := ParseLine(line)
	second, ok2 := ParseLine(line)
	if ok1 != ok2 || first != second {
		t.Errorf("repeat parse diverged: %+v vs %+v", first, second)
	}
}
