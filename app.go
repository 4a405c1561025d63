package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"AdbTool/pkg/logcat"
	"AdbTool/pkg/oplog"
)

// logRetention is how long per-stream logcat capture files are kept.
const logRetention = 7 * 24 * time.Hour

// App struct
type App struct {
	ctx     context.Context
	adbPath string
	dataDir string
	version string

	logcat *logcat.Manager
	opLog  *oplog.Store
}

// NewApp creates a new App instance
func NewApp(version string) *App {
	return &App{version: version}
}

// startup is called when the app starts
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx
	a.initDataDir()

	if err := InitLogger(PersistentLogConfig(a.dataDir)); err != nil {
		fmt.Printf("Error initializing logger: %v\n", err)
	}

	a.setupBinaries()

	a.logcat = logcat.NewManager(logcat.Config{
		AdbPath: a.adbPath,
		LogDir:  filepath.Join(a.dataDir, "logs"),
		Logger:  Logger,
	})
	a.logcat.CleanupOldLogs(logRetention)

	store, err := oplog.NewStore(a.dataDir)
	if err != nil {
		LogError("app").Err(err).Msg("Failed to open operation history")
	} else {
		a.opLog = store
	}

	LogInfo("app").Str("version", a.version).Str("adb", a.adbPath).Msg("Application started")
}

// Shutdown is called when the application is closing
func (a *App) Shutdown(ctx context.Context) {
	if a.logcat != nil {
		a.logcat.StopAll()
	}
	if a.opLog != nil {
		a.opLog.Close()
	}
	LogInfo("app").Msg("Application shutting down")
	CloseLogger()
}

// GetAppVersion returns the application version
func (a *App) GetAppVersion() string {
	return a.version
}

func (a *App) initDataDir() {
	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}
	a.dataDir = filepath.Join(configDir, "AdbTool")
	_ = os.MkdirAll(a.dataDir, 0755)
}

// setupBinaries resolves the adb binary: system PATH first, then a bundled
// binary directory next to the executable, then an Android SDK dev tree.
func (a *App) setupBinaries() {
	if path, err := exec.LookPath("adb"); err == nil {
		a.adbPath = path
		LogInfo("app").Str("path", path).Msg("Using system adb from PATH")
		return
	}

	name := "adb"
	if runtime.GOOS == "windows" {
		name = "adb.exe"
	}

	if exe, err := os.Executable(); err == nil {
		bundled := filepath.Join(filepath.Dir(exe), "bin", name)
		if info, err := os.Stat(bundled); err == nil && !info.IsDir() {
			a.adbPath = bundled
			LogInfo("app").Str("path", bundled).Msg("Using bundled adb")
			return
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		sdk := filepath.Join(home, "Android", "Sdk", "platform-tools", name)
		if info, err := os.Stat(sdk); err == nil && !info.IsDir() {
			a.adbPath = sdk
			LogInfo("app").Str("path", sdk).Msg("Using SDK platform-tools adb")
			return
		}
	}

	// Last resort: let exec fail with a clear "not found" at call time.
	a.adbPath = "adb"
	LogWarn("app").Msg("adb binary not found, falling back to bare name")
}

// newAdbCommand creates an exec.Cmd with a clean environment to avoid proxy issues
func (a *App) newAdbCommand(ctx context.Context, args ...string) *exec.Cmd {
	var cmd *exec.Cmd
	if ctx != nil {
		cmd = exec.CommandContext(ctx, a.adbPath, args...)
	} else {
		cmd = exec.Command(a.adbPath, args...)
	}

	env := os.Environ()
	newEnv := make([]string, 0, len(env))
	proxyVars := []string{"HTTP_PROXY", "HTTPS_PROXY", "ALL_PROXY", "NO_PROXY", "http_proxy", "https_proxy", "all_proxy", "no_proxy"}

	for _, e := range env {
		isProxy := false
		for _, v := range proxyVars {
			if strings.HasPrefix(e, v+"=") {
				isProxy = true
				break
			}
		}
		if !isProxy {
			newEnv = append(newEnv, e)
		}
	}
	cmd.Env = newEnv
	return cmd
}

// runAdb executes adb and returns stdout. adb reports many failures on
// stdout with a zero exit code (install being the worst offender), so the
// exit status alone decides nothing: an error comes back only when there is
// no usable stdout at all.
func (a *App) runAdb(ctx context.Context, args ...string) (string, error) {
	cmd := a.newAdbCommand(ctx, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()

	out := stdout.String()
	if strings.TrimSpace(out) == "" && strings.TrimSpace(stderr.String()) != "" && err != nil {
		return "", fmt.Errorf("adb error: %s", strings.TrimSpace(stderr.String()))
	}
	if err != nil && strings.TrimSpace(out) == "" {
		return "", fmt.Errorf("failed to execute adb: %w", err)
	}
	return out, nil
}

// runAdbDevice runs adb scoped to a device with `-s serial`.
func (a *App) runAdbDevice(ctx context.Context, serial string, args ...string) (string, error) {
	full := append([]string{"-s", serial}, args...)
	return a.runAdb(ctx, full...)
}

// recordOp appends an operation-history entry, best effort.
func (a *App) recordOp(entry oplog.Entry) {
	if a.opLog == nil {
		return
	}
	if err := a.opLog.Add(entry); err != nil {
		LogError("oplog").Err(err).Str("type", entry.OpType).Msg("Failed to record operation")
	}
}

// GetOpLogs returns operation history entries, optionally filtered by
// operation type and/or device serial.
func (a *App) GetOpLogs(opType, device string) ([]oplog.Entry, error) {
	if a.opLog == nil {
		return nil, fmt.Errorf("operation history unavailable")
	}
	return a.opLog.Query(oplog.Filter{OpType: opType, Device: device})
}

// ClearOpLogs removes all operation history entries
func (a *App) ClearOpLogs() error {
	if a.opLog == nil {
		return fmt.Errorf("operation history unavailable")
	}
	return a.opLog.Clear()
}
