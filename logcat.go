package main

import (
	"fmt"

	wailsRuntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"AdbTool/pkg/logcat"
)

// StartLogcat begins streaming logcat from a device. Parsed lines are
// emitted to the frontend on the "logcat-line-<serial>" event; a
// "logcat-stopped-<serial>" event fires when the stream ends for any
// reason. The raw capture file path is returned.
func (a *App) StartLogcat(deviceId string) (string, error) {
	if err := ValidateDeviceID(deviceId); err != nil {
		return "", err
	}

	stream, err := a.logcat.Start(deviceId)
	if err != nil {
		return "", fmt.Errorf("failed to start logcat: %w", err)
	}

	go a.forwardLogcat(stream)

	return stream.LogPath, nil
}

// forwardLogcat drains a stream's line channel into frontend events
func (a *App) forwardLogcat(stream *logcat.Stream) {
	lineEvent := "logcat-line-" + stream.Serial
	for line := range stream.Lines() {
		wailsRuntime.EventsEmit(a.ctx, lineEvent, line)
	}
	wailsRuntime.EventsEmit(a.ctx, "logcat-stopped-"+stream.Serial)
}

// StopLogcat stops the logcat stream for a device
func (a *App) StopLogcat(deviceId string) error {
	if err := ValidateDeviceID(deviceId); err != nil {
		return err
	}
	if err := a.logcat.Stop(deviceId); err != nil {
		return fmt.Errorf("failed to stop logcat: %w", err)
	}
	return nil
}

// IsLogcatActive reports whether a logcat stream is running for a device
func (a *App) IsLogcatActive(deviceId string) bool {
	return a.logcat.Active(deviceId)
}

// GetActiveLogcats returns the serials with running logcat streams
func (a *App) GetActiveLogcats() []string {
	return a.logcat.ActiveSerials()
}
