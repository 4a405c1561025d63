package logcat

import (
	"errors"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"
)

// testManager returns a Manager whose subprocess is an arbitrary shell
// script instead of adb.
func testManager(t *testing.T, script string) *Manager {
	t.Helper()
	m := NewManager(Config{AdbPath: "adb-unused", LogDir: t.TempDir()})
	m.newCommand = func(serial string) *exec.Cmd {
		return exec.Command("sh", "-c", script)
	}
	return m
}

func waitDone(t *testing.T, s *Stream) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not finish in time")
	}
}

func collectLines(t *testing.T, s *Stream) []Line {
	t.Helper()
	var got []Line
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ln, ok := <-s.Lines():
			if !ok {
				return got
			}
			got = append(got, ln)
		case <-timeout:
			t.Fatal("line channel never closed")
		}
	}
}

func TestStreamForwardsEveryLineInOrder(t *testing.T) {
	script := `printf '%s\n' \
"01-15 12:34:56.789  1234  5678 D MyTag   : first" \
"--------- beginning of main" \
"01-15 12:34:56.790  1234  5678 I Other: second" \
"" \
"not a logcat line"`
	m := testManager(t, script)

	s, err := m.Start("emulator-5554")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	got := collectLines(t, s)

	// Blank line is skipped; everything else is exactly one event each,
	// in input order.
	if len(got) != 4 {
		t.Fatalf("got %d events, want 4: %+v", len(got), got)
	}
	if got[0].Tag != "MyTag" || got[0].Message != "first" {
		t.Errorf("event 0 = %+v", got[0])
	}
	if got[1].Message != "--------- beginning of main" || got[1].Level != "" {
		t.Errorf("banner should be forwarded raw-only, got %+v", got[1])
	}
	if got[2].Tag != "Other" || got[2].Message != "second" {
		t.Errorf("event 2 = %+v", got[2])
	}
	if got[3].Message != "not a logcat line" || got[3].Tag != "" {
		t.Errorf("event 3 = %+v", got[3])
	}

	waitDone(t, s)

	data, err := os.ReadFile(s.LogPath)
	if err != nil {
		t.Fatalf("read capture file: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "D MyTag   : first") {
		t.Error("capture file missing raw line")
	}
	if !strings.Contains(content, "--------- beginning of main") {
		t.Error("capture file missing banner line")
	}
	if !strings.Contains(content, "--- logcat terminated:") {
		t.Error("capture file missing termination marker")
	}
}

func TestStreamStderrGoesToFileOnly(t *testing.T) {
	m := testManager(t, `echo "01-15 12:34:56.789  1  2 I T: out"; echo "device offline" 1>&2`)

	s, err := m.Start("serial-x")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	got := collectLines(t, s)
	waitDone(t, s)

	for _, ln := range got {
		if strings.Contains(ln.Raw, "device offline") {
			t.Error("stderr line must not be forwarded as an event")
		}
	}

	data, _ := os.ReadFile(s.LogPath)
	if !strings.Contains(string(data), "[STDERR] device offline") {
		t.Errorf("capture file missing prefixed stderr line:\n%s", data)
	}
}

func TestStartTwiceRejected(t *testing.T) {
	m := testManager(t, "sleep 10")

	s, err := m.Start("dup-serial")
	if err != nil {
		t.Fatalf("first Start: %v", err)
	}

	_, err = m.Start("dup-serial")
	var already *AlreadyStreamingError
	if !errors.As(err, &already) {
		t.Fatalf("second Start: got %v, want AlreadyStreamingError", err)
	}
	if already.Serial != "dup-serial" {
		t.Errorf("error serial = %q", already.Serial)
	}

	if err := m.Stop("dup-serial"); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	waitDone(t, s)
}

func TestStopWithoutStream(t *testing.T) {
	m := testManager(t, "sleep 10")

	err := m.Stop("ghost")
	var notStreaming *NotStreamingError
	if !errors.As(err, &notStreaming) {
		t.Fatalf("got %v, want NotStreamingError", err)
	}
}

func TestRestartAfterExit(t *testing.T) {
	m := testManager(t, "exit 0")

	s, err := m.Start("respawn")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitDone(t, s)

	if m.Active("respawn") {
		t.Fatal("registry entry should be cleared after process exit")
	}

	s2, err := m.Start("respawn")
	if err != nil {
		t.Fatalf("Start after exit: %v", err)
	}
	waitDone(t, s2)
}

func TestStartSpawnFailureLeavesNoEntry(t *testing.T) {
	m := NewManager(Config{AdbPath: "adb-unused", LogDir: t.TempDir()})
	m.newCommand = func(serial string) *exec.Cmd {
		return exec.Command("/nonexistent/binary/for/test")
	}

	if _, err := m.Start("broken"); err == nil {
		t.Fatal("Start with unspawnable binary should fail")
	}
	if m.Active("broken") {
		t.Error("failed spawn must not leave a registry entry")
	}
}

func TestStopAll(t *testing.T) {
	m := testManager(t, "sleep 10")

	s1, err := m.Start("serial-1")
	if err != nil {
		t.Fatalf("Start serial-1: %v", err)
	}
	s2, err := m.Start("serial-2")
	if err != nil {
		t.Fatalf("Start serial-2: %v", err)
	}

	m.StopAll()
	waitDone(t, s1)
	waitDone(t, s2)

	if len(m.ActiveSerials()) != 0 {
		t.Errorf("active serials after StopAll: %v", m.ActiveSerials())
	}
}

func TestStopDoesNotWaitForExit(t *testing.T) {
	// A subprocess that ignores SIGTERM: Stop must still return
	// immediately and clear the registry entry.
	m := testManager(t, `trap '' TERM; sleep 2`)

	s, err := m.Start("stubborn")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	start := time.Now()
	if err := m.Stop("stubborn"); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Stop blocked for %v", elapsed)
	}
	if m.Active("stubborn") {
		t.Error("registry entry should be gone right after Stop")
	}

	// Unblock the reaper so the test does not leak the process.
	_ = s.cmd.Process.Kill()
	waitDone(t, s)
}
