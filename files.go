package main

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"AdbTool/pkg/oplog"
)

// lsDateTimeRegex matches the timestamp column of toybox and busybox ls:
// "2024-01-15 10:30" or "Jan 15 10:30" or "Jan 15 2024".
var lsDateTimeRegex = regexp.MustCompile(`(\d{4}-\d{2}-\d{2}\s+\d{2}:\d{2})|([A-Z][a-z]{2}\s+\d{1,2}\s+(\d{2}:\d{2}|\d{4}))`)

// ListFiles lists a directory on the device
func (a *App) ListFiles(deviceId, pathStr string) ([]FileInfo, error) {
	if err := ValidateDeviceID(deviceId); err != nil {
		return nil, err
	}

	pathStr = path.Clean("/" + pathStr)
	cmdPath := pathStr
	if cmdPath != "/" {
		cmdPath += "/"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	output, err := a.runAdbDevice(ctx, deviceId, "shell", "ls", "-la", "\""+cmdPath+"\"")
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	return parseLsOutput(output, pathStr), nil
}

// parseLsOutput parses `ls -la` output. The timestamp column anchors the
// split: everything before it is mode/links/owner/group/size, everything
// after is the name. File names containing spaces survive this way.
func parseLsOutput(output, pathStr string) []FileInfo {
	var files []FileInfo

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "total ") {
			continue
		}

		loc := lsDateTimeRegex.FindStringIndex(line)
		if loc == nil {
			continue
		}

		modTime := line[loc[0]:loc[1]]
		afterDateTime := strings.TrimSpace(line[loc[1]:])
		beforeParts := strings.Fields(strings.TrimSpace(line[:loc[0]]))
		if len(beforeParts) < 1 {
			continue
		}

		mode := beforeParts[0]
		isDir := strings.HasPrefix(mode, "d")
		isLink := strings.HasPrefix(mode, "l")

		var size int64
		fmt.Sscanf(beforeParts[len(beforeParts)-1], "%d", &size)

		name := afterDateTime
		if isLink {
			if arrowIdx := strings.Index(name, " -> "); arrowIdx != -1 {
				name = name[:arrowIdx]
			}
			// Links are navigable; treating them as directories is wrong
			// for file links but lets directory links work
			isDir = true
		}

		cleanName := strings.TrimSpace(name)
		if cleanName == "." || cleanName == ".." || cleanName == "" || cleanName == "?" {
			continue
		}

		files = append(files, FileInfo{
			Name:    cleanName,
			Size:    size,
			Mode:    mode,
			ModTime: modTime,
			IsDir:   isDir,
			Path:    path.Join(pathStr, cleanName),
		})
	}

	return files
}

// PushFile copies a local file to the device
func (a *App) PushFile(deviceId, localPath, remotePath string) error {
	if err := ValidateDeviceID(deviceId); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	out, err := a.runAdbDevice(ctx, deviceId, "push", localPath, remotePath)

	a.recordOp(oplog.Entry{
		OpType:    "upload",
		Device:    deviceId,
		Detail:    fmt.Sprintf("%s -> %s", filepath.Base(localPath), remotePath),
		Success:   err == nil,
		Command:   fmt.Sprintf("adb -s %s push %s %s", deviceId, localPath, remotePath),
		RawOutput: strings.TrimSpace(out),
	})

	if err != nil {
		return fmt.Errorf("failed to push file: %w", err)
	}
	return nil
}

// PullFile copies a file from the device to a local path
func (a *App) PullFile(deviceId, remotePath, localPath string) error {
	if err := ValidateDeviceID(deviceId); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	out, err := a.runAdbDevice(ctx, deviceId, "pull", remotePath, localPath)

	a.recordOp(oplog.Entry{
		OpType:    "download",
		Device:    deviceId,
		Detail:    fmt.Sprintf("%s -> %s", remotePath, filepath.Base(localPath)),
		Success:   err == nil,
		Command:   fmt.Sprintf("adb -s %s pull %s %s", deviceId, remotePath, localPath),
		RawOutput: strings.TrimSpace(out),
	})

	if err != nil {
		return fmt.Errorf("failed to pull file: %w", err)
	}
	return nil
}

// DeleteFile deletes a file or directory on the device
func (a *App) DeleteFile(deviceId, pathStr string) error {
	if err := ValidateDeviceID(deviceId); err != nil {
		return err
	}
	if pathStr == "" || pathStr == "/" {
		return fmt.Errorf("refusing to delete %q", pathStr)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	if _, err := a.runAdbDevice(ctx, deviceId, "shell", "rm", "-rf", "\""+pathStr+"\""); err != nil {
		return fmt.Errorf("failed to delete %s: %w", pathStr, err)
	}
	return nil
}

// Screenshot captures the device screen and pulls the image to localPath
func (a *App) Screenshot(deviceId, localPath string) error {
	if err := ValidateDeviceID(deviceId); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	remote := fmt.Sprintf("/sdcard/screenshot_%d.png", time.Now().Unix())

	_, err := a.runAdbDevice(ctx, deviceId, "shell", "screencap", "-p", remote)
	if err == nil {
		_, err = a.runAdbDevice(ctx, deviceId, "pull", remote, localPath)
		// Clean up the temp file regardless of pull outcome
		_, _ = a.runAdbDevice(ctx, deviceId, "shell", "rm", "-f", remote)
	}

	a.recordOp(oplog.Entry{
		OpType:  "screenshot",
		Device:  deviceId,
		Detail:  filepath.Base(localPath),
		Success: err == nil,
		Command: fmt.Sprintf("adb -s %s shell screencap -p %s", deviceId, remote),
	})

	if err != nil {
		return fmt.Errorf("failed to capture screenshot: %w", err)
	}
	return nil
}
