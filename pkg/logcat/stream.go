package logcat

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// AlreadyStreamingError is returned by Start when a stream is already
// active for the serial. One stream per serial is an invariant: concurrent
// start requests are rejected, never queued or merged.
type AlreadyStreamingError struct {
	Serial string
}

func (e *AlreadyStreamingError) Error() string {
	return fmt.Sprintf("logcat stream already active for device %s", e.Serial)
}

// NotStreamingError is returned by Stop when no stream exists for the
// serial. Stopping an inactive stream indicates a caller bug or a race and
// is surfaced rather than swallowed.
type NotStreamingError struct {
	Serial string
}

func (e *NotStreamingError) Error() string {
	return fmt.Sprintf("no active logcat stream for device %s", e.Serial)
}

// lineBuffer sizes the per-stream event channel. Emission never blocks:
// when a consumer stops draining, lines beyond the buffer are dropped from
// the channel (the on-disk capture still gets every line).
const lineBuffer = 1024

// Config for a Manager.
type Config struct {
	// AdbPath is the adb binary to spawn. Resolving it is the caller's
	// concern.
	AdbPath string

	// LogDir receives one capture file per stream start.
	LogDir string

	// Logger is optional; the zero value logs nothing.
	Logger zerolog.Logger
}

// Manager owns the active-stream registry, one subprocess and one pump
// goroutine per streaming serial. It is the only component that touches the
// process and capture-file handles.
type Manager struct {
	adbPath string
	logDir  string
	log     zerolog.Logger

	mu      sync.Mutex
	streams map[string]*Stream

	// newCommand builds the logcat subprocess; swapped in tests.
	newCommand func(serial string) *exec.Cmd
}

// NewManager creates a Manager. The log directory is created lazily on the
// first Start.
func NewManager(cfg Config) *Manager {
	m := &Manager{
		adbPath: cfg.AdbPath,
		logDir:  cfg.LogDir,
		log:     cfg.Logger,
		streams: make(map[string]*Stream),
	}
	m.newCommand = func(serial string) *exec.Cmd {
		return exec.Command(m.adbPath, "-s", serial, "logcat", "-v", "threadtime")
	}
	return m
}

// Stream is one active logcat subprocess for a device serial.
type Stream struct {
	Serial  string
	LogPath string

	cmd   *exec.Cmd
	lines chan Line
	done  chan struct{}

	fileMu sync.Mutex
	file   *os.File

	dropWarn *rate.Limiter
	log      zerolog.Logger
}

// Lines returns the event channel. Every line the subprocess emits —
// tokenizable or not — becomes exactly one Line, in emission order. The
// channel closes when the subprocess exits. Abandoning the channel does not
// terminate the subprocess; only Stop or process death does.
func (s *Stream) Lines() <-chan Line {
	return s.lines
}

// Done closes when the subprocess has exited and its resources are
// released.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// PID of the subprocess.
func (s *Stream) PID() int {
	return s.cmd.Process.Pid
}

// Start spawns `adb -s serial logcat -v threadtime`, registers the stream
// and begins line-by-line consumption. Spawn failures are returned
// synchronously and leave no registry entry.
func (m *Manager) Start(serial string) (*Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, active := m.streams[serial]; active {
		return nil, &AlreadyStreamingError{Serial: serial}
	}

	if err := os.MkdirAll(m.logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	name := fmt.Sprintf("logcat_%s_%s.log", serial, time.Now().Format("20060102_150405"))
	logPath := filepath.Join(m.logDir, name)
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}

	cmd := m.newCommand(serial)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to get stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to get stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to start logcat: %w", err)
	}

	s := &Stream{
		Serial:   serial,
		LogPath:  logPath,
		cmd:      cmd,
		lines:    make(chan Line, lineBuffer),
		done:     make(chan struct{}),
		file:     file,
		dropWarn: rate.NewLimiter(rate.Every(time.Second), 1),
		log:      m.log,
	}
	m.streams[serial] = s

	var pumps sync.WaitGroup
	pumps.Add(2)
	go func() {
		defer pumps.Done()
		s.pumpStdout(stdout)
	}()
	go func() {
		defer pumps.Done()
		s.pumpStderr(stderr)
	}()
	go m.reap(s, &pumps)

	m.log.Info().Str("module", "logcat").Str("serial", serial).
		Int("pid", cmd.Process.Pid).Str("file", logPath).Msg("logcat stream started")

	return s, nil
}

// Stop signals the subprocess for the serial to terminate and removes the
// registry entry immediately. It does not wait for the process to exit;
// file close and channel close happen asynchronously when the exit is
// reaped.
func (m *Manager) Stop(serial string) error {
	m.mu.Lock()
	s, ok := m.streams[serial]
	if !ok {
		m.mu.Unlock()
		return &NotStreamingError{Serial: serial}
	}
	delete(m.streams, serial)
	m.mu.Unlock()

	s.terminate()
	m.log.Info().Str("module", "logcat").Str("serial", serial).Msg("logcat stream stopped")
	return nil
}

// StopAll signals every active subprocess. Used once at application
// teardown.
func (m *Manager) StopAll() {
	m.mu.Lock()
	all := make([]*Stream, 0, len(m.streams))
	for serial, s := range m.streams {
		all = append(all, s)
		delete(m.streams, serial)
	}
	m.mu.Unlock()

	for _, s := range all {
		s.terminate()
	}
}

// Active reports whether a stream is registered for the serial.
func (m *Manager) Active(serial string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.streams[serial]
	return ok
}

// ActiveSerials returns the serials currently streaming.
func (m *Manager) ActiveSerials() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	serials := make([]string, 0, len(m.streams))
	for serial := range m.streams {
		serials = append(serials, serial)
	}
	return serials
}

// CleanupOldLogs deletes capture files in the log directory older than
// maxAge. Called once at startup.
func (m *Manager) CleanupOldLogs(maxAge time.Duration) {
	files, err := filepath.Glob(filepath.Join(m.logDir, "logcat_*.log"))
	if err != nil {
		return
	}
	now := time.Now()
	for _, f := range files {
		info, err := os.Stat(f)
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) > maxAge {
			os.Remove(f)
		}
	}
}

// pumpStdout consumes the subprocess stdout line by line: the raw line goes
// to the capture file first (durability regardless of parse success), then
// tokenization, then a single event per line.
func (s *Stream) pumpStdout(r io.Reader) {
	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			line = strings.TrimRight(line, "\r\n")
			s.writeFile(line)
			s.emit(line)
		}
		if err != nil {
			return
		}
	}
}

// pumpStderr appends subprocess stderr to the capture file with a
// distinguishing prefix. Stderr never becomes structured events.
func (s *Stream) pumpStderr(r io.Reader) {
	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			s.writeFile("[STDERR] " + strings.TrimRight(line, "\r\n"))
		}
		if err != nil {
			return
		}
	}
}

// emit forwards one line as a structured event. Unparseable non-blank
// lines still go out with only the message/raw fields set, so a consumer
// never silently loses device output. The send never blocks: with no
// consumer draining, lines past the buffer are dropped from the channel
// only (the capture file already has them).
func (s *Stream) emit(line string) {
	parsed, ok := ParseLine(line)
	if !ok {
		if strings.TrimSpace(line) == "" {
			return
		}
		parsed = Line{Message: line, Raw: line}
	}

	select {
	case s.lines <- parsed:
	default:
		if s.dropWarn.Allow() {
			s.log.Warn().Str("module", "logcat").Str("serial", s.Serial).
				Msg("event buffer full, dropping lines")
		}
	}
}

// writeFile appends one line to the capture file. Write errors are ignored
// to keep the stream alive; the structured events still flow.
func (s *Stream) writeFile(line string) {
	s.fileMu.Lock()
	defer s.fileMu.Unlock()
	if s.file != nil {
		fmt.Fprintln(s.file, line)
	}
}

// reap waits for both pumps to drain, collects the exit status, writes the
// termination marker, releases the file and clears the registry entry.
// This is the only path back to idle besides an explicit Stop (which only
// removes the registry entry up front — the resources are still released
// here).
func (m *Manager) reap(s *Stream, pumps *sync.WaitGroup) {
	pumps.Wait()
	err := s.cmd.Wait()

	state := "exit status 0"
	if err != nil {
		state = err.Error()
	} else if s.cmd.ProcessState != nil {
		state = s.cmd.ProcessState.String()
	}

	s.fileMu.Lock()
	if s.file != nil {
		fmt.Fprintf(s.file, "\n--- logcat terminated: %s ---\n", state)
		s.file.Close()
		s.file = nil
	}
	s.fileMu.Unlock()

	m.mu.Lock()
	if cur, ok := m.streams[s.Serial]; ok && cur == s {
		delete(m.streams, s.Serial)
	}
	m.mu.Unlock()

	close(s.lines)
	close(s.done)

	m.log.Info().Str("module", "logcat").Str("serial", s.Serial).
		Str("state", state).Msg("logcat stream ended")
}

// terminate asks the subprocess to exit. SIGTERM where the platform
// supports it, hard kill otherwise. No wait and no timeout: exit cleanup is
// asynchronous via reap.
func (s *Stream) terminate() {
	if s.cmd.Process == nil {
		return
	}
	if err := s.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		_ = s.cmd.Process.Kill()
	}
}
