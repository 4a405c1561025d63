package main

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// deviceIDPattern validates device serials:
// - USB serials: "1234567890ABCDEF", "emulator-5554"
// - wireless devices: "192.168.1.100:5555"
// - mDNS devices: "adb-xxxxx._adb-tls-connect._tcp."
var deviceIDPattern = regexp.MustCompile(`^[a-zA-Z0-9._:\-]+$`)

// ValidateDeviceID checks that a device serial is safe to pass to adb
func ValidateDeviceID(deviceId string) error {
	if deviceId == "" {
		return fmt.Errorf("device ID cannot be empty")
	}
	if len(deviceId) > 256 {
		return fmt.Errorf("device ID too long (max 256 characters)")
	}
	if !deviceIDPattern.MatchString(deviceId) {
		return fmt.Errorf("invalid device ID format: contains illegal characters")
	}
	dangerousPatterns := []string{";", "&&", "||", "|", "`", "$", "(", ")", "{", "}", "<", ">", "!", "'", "\"", "\\"}
	for _, p := range dangerousPatterns {
		if strings.Contains(deviceId, p) {
			return fmt.Errorf("invalid device ID format: contains dangerous character '%s'", p)
		}
	}
	return nil
}

// GetDevices returns the list of connected ADB devices
func (a *App) GetDevices() ([]Device, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if a.adbPath == "" {
		return nil, fmt.Errorf("ADB path is not initialized")
	}

	output, err := a.runAdb(ctx, "devices", "-l")
	if err != nil {
		return nil, fmt.Errorf("failed to run adb devices: %w", err)
	}

	return parseDeviceList(output), nil
}

// parseDeviceList parses `adb devices -l` output
func parseDeviceList(output string) []Device {
	devices := []Device{}
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "List of devices attached") || strings.HasPrefix(line, "*") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}
		dev := Device{
			Serial: parts[0],
			State:  parts[1],
		}
		for _, p := range parts[2:] {
			if !strings.Contains(p, ":") {
				continue
			}
			kv := strings.SplitN(p, ":", 2)
			switch kv[0] {
			case "model":
				dev.Model = kv[1]
			case "product":
				dev.Product = kv[1]
			}
		}
		devices = append(devices, dev)
	}
	return devices
}

// GetDeviceDetail returns model, Android version and storage figures for a device
func (a *App) GetDeviceDetail(deviceId string) (*DeviceDetail, error) {
	if err := ValidateDeviceID(deviceId); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	detail := &DeviceDetail{Serial: deviceId}

	if out, err := a.runAdbDevice(ctx, deviceId, "shell", "getprop", "ro.product.model"); err == nil {
		detail.Model = strings.TrimSpace(out)
	}
	if out, err := a.runAdbDevice(ctx, deviceId, "shell", "getprop", "ro.build.version.release"); err == nil {
		detail.AndroidVersion = strings.TrimSpace(out)
	}
	if out, err := a.runAdbDevice(ctx, deviceId, "shell", "getprop", "ro.build.version.sdk"); err == nil {
		detail.SdkVersion = strings.TrimSpace(out)
	}

	if out, err := a.runAdbDevice(ctx, deviceId, "shell", "df", "/data"); err == nil {
		total, free, ok := parseDfOutput(out)
		if ok {
			detail.StorageTotalMB = total
			detail.StorageFreeMB = free
		}
	}

	return detail, nil
}

// parseDfOutput extracts total and available space in MB from `df /data`.
// df on Android reports 1K blocks.
func parseDfOutput(output string) (totalMB, freeMB int64, ok bool) {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) < 2 {
		return 0, 0, false
	}
	fields := strings.Fields(lines[len(lines)-1])
	if len(fields) < 4 {
		return 0, 0, false
	}
	total, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	free, err := strconv.ParseInt(fields[3], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	return total / 1024, free / 1024, true
}

// AdbVersion returns the adb client version banner
func (a *App) AdbVersion() (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	out, err := a.runAdb(ctx, "version")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// KillServer stops the adb server
func (a *App) KillServer() error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if _, err := a.runAdb(ctx, "kill-server"); err != nil {
		return fmt.Errorf("failed to kill adb server: %w", err)
	}
	return nil
}

// StartServer starts the adb server
func (a *App) StartServer() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := a.runAdb(ctx, "start-server"); err != nil {
		return fmt.Errorf("failed to start adb server: %w", err)
	}
	return nil
}

// AdbConnect connects to a device over TCP/IP
func (a *App) AdbConnect(addr string) (string, error) {
	if err := ValidateDeviceID(addr); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	out, err := a.runAdb(ctx, "connect", addr)
	if err != nil {
		return "", fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	result := strings.TrimSpace(out)
	if strings.Contains(result, "failed") || strings.Contains(result, "cannot") {
		return "", fmt.Errorf("adb connect failed: %s", result)
	}
	return result, nil
}

// AdbDisconnect disconnects a TCP/IP device
func (a *App) AdbDisconnect(addr string) (string, error) {
	if err := ValidateDeviceID(addr); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	out, err := a.runAdb(ctx, "disconnect", addr)
	if err != nil {
		return "", fmt.Errorf("failed to disconnect %s: %w", addr, err)
	}
	return strings.TrimSpace(out), nil
}
