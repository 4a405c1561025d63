package main

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"AdbTool/pkg/apk"
	"AdbTool/pkg/oplog"
)

// ListPackages returns installed packages on a device. When thirdPartyOnly
// is set, system packages are excluded.
func (a *App) ListPackages(deviceId string, thirdPartyOnly bool) ([]InstalledApp, error) {
	if err := ValidateDeviceID(deviceId); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	out, err := a.runAdbDevice(ctx, deviceId, "shell", "pm", "list", "packages", "-f")
	if err != nil {
		return nil, fmt.Errorf("failed to list packages: %w", err)
	}

	thirdParty := map[string]bool{}
	if tpOut, err := a.runAdbDevice(ctx, deviceId, "shell", "pm", "list", "packages", "-3"); err == nil {
		for _, line := range strings.Split(tpOut, "\n") {
			line = strings.TrimSpace(line)
			if name, ok := strings.CutPrefix(line, "package:"); ok {
				thirdParty[name] = true
			}
		}
	}

	apps := parsePackageList(out, thirdParty)
	if thirdPartyOnly {
		filtered := apps[:0]
		for _, app := range apps {
			if !app.IsSystem {
				filtered = append(filtered, app)
			}
		}
		apps = filtered
	}
	return apps, nil
}

// parsePackageList parses `pm list packages -f` output. Each line has the
// form "package:/data/app/.../base.apk=com.example.app"; the package name
// follows the last '=' since APK paths may themselves contain one.
func parsePackageList(output string, thirdParty map[string]bool) []InstalledApp {
	apps := []InstalledApp{}
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		rest, ok := strings.CutPrefix(line, "package:")
		if !ok {
			continue
		}
		idx := strings.LastIndex(rest, "=")
		if idx < 0 {
			continue
		}
		name := rest[idx+1:]
		if name == "" {
			continue
		}
		apps = append(apps, InstalledApp{
			PackageName: name,
			IsSystem:    !thirdParty[name],
		})
	}
	return apps
}

// GetAppDetail fills in version information for a package via dumpsys
func (a *App) GetAppDetail(deviceId, packageName string) (*InstalledApp, error) {
	if err := ValidateDeviceID(deviceId); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	out, err := a.runAdbDevice(ctx, deviceId, "shell", "dumpsys", "package", packageName)
	if err != nil {
		return nil, fmt.Errorf("failed to query package %s: %w", packageName, err)
	}

	app := &InstalledApp{PackageName: packageName}
	app.VersionName, app.VersionCode = parseDumpsysVersion(out)
	return app, nil
}

// parseDumpsysVersion extracts versionName and versionCode from dumpsys
// package output. versionCode lines look like "versionCode=42 minSdk=24".
func parseDumpsysVersion(output string) (versionName, versionCode string) {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if v, ok := strings.CutPrefix(line, "versionName="); ok && versionName == "" {
			versionName = strings.TrimSpace(v)
		}
		if v, ok := strings.CutPrefix(line, "versionCode="); ok && versionCode == "" {
			if i := strings.IndexByte(v, ' '); i >= 0 {
				v = v[:i]
			}
			versionCode = strings.TrimSpace(v)
		}
		if versionName != "" && versionCode != "" {
			break
		}
	}
	return versionName, versionCode
}

// InstallAPK installs an APK on a device. The package name is read from the
// APK's binary manifest first so any existing installation can be removed,
// which avoids signature-mismatch failures on reinstall. pm reports install
// failures on stdout with a zero exit code, so success is decided from the
// output text.
func (a *App) InstallAPK(deviceId, apkPath string) (*InstallResult, error) {
	if err := ValidateDeviceID(deviceId); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	packageName, pkgOK := apk.ExtractPackageNameFromFile(apkPath)
	if pkgOK {
		LogInfo("apps").Str("package", packageName).Msg("Extracted package name from APK")
		// Best effort: a missing package is the common case
		if _, err := a.runAdbDevice(ctx, deviceId, "uninstall", packageName); err != nil {
			LogDebug("apps").Str("package", packageName).Err(err).Msg("Pre-install uninstall skipped")
		}
	} else {
		LogWarn("apps").Str("apk", apkPath).Msg("Could not extract package name from APK")
	}

	out, err := a.runAdbDevice(ctx, deviceId, "install", "-r", apkPath)
	if err != nil {
		a.recordInstall(deviceId, apkPath, packageName, &InstallResult{
			Success:   false,
			ErrorCode: "ADB_ERROR",
			RawOutput: err.Error(),
		})
		return nil, fmt.Errorf("failed to install %s: %w", filepath.Base(apkPath), err)
	}

	result := &InstallResult{RawOutput: strings.TrimSpace(out)}
	if strings.Contains(out, "Success") {
		result.Success = true
	} else {
		result.ErrorCode = extractErrorCode(out)
	}

	a.recordInstall(deviceId, apkPath, packageName, result)
	return result, nil
}

func (a *App) recordInstall(deviceId, apkPath, packageName string, result *InstallResult) {
	meta := map[string]string{"apk": filepath.Base(apkPath)}
	if packageName != "" {
		meta["package"] = packageName
	}
	if result.ErrorCode != "" {
		meta["errorCode"] = result.ErrorCode
	}
	metaJSON, _ := json.Marshal(meta)

	entry := oplog.Entry{
		OpType:    "install",
		Device:    deviceId,
		Detail:    filepath.Base(apkPath),
		Success:   result.Success,
		Command:   fmt.Sprintf("adb -s %s install -r %s", deviceId, apkPath),
		RawOutput: result.RawOutput,
		Metadata:  string(metaJSON),
	}
	if !result.Success {
		entry.ErrorMessage = result.ErrorCode
	}
	a.recordOp(entry)
}

// extractErrorCode pulls the failure code out of pm install output.
// Failures look like "Failure [INSTALL_FAILED_OLDER_SDK]" or
// "Failure [INSTALL_FAILED_INVALID_APK: detail text]".
func extractErrorCode(output string) string {
	idx := strings.Index(output, "Failure [")
	if idx < 0 {
		return "UNKNOWN_ERROR"
	}
	rest := output[idx+len("Failure ["):]
	end := strings.IndexByte(rest, ']')
	if end < 0 {
		return "UNKNOWN_ERROR"
	}
	code := rest[:end]
	if colon := strings.IndexByte(code, ':'); colon >= 0 {
		code = code[:colon]
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return "UNKNOWN_ERROR"
	}
	return code
}

// UninstallApp removes a package from a device
func (a *App) UninstallApp(deviceId, packageName string) error {
	if err := ValidateDeviceID(deviceId); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	out, err := a.runAdbDevice(ctx, deviceId, "uninstall", packageName)
	success := err == nil && strings.Contains(out, "Success")

	a.recordOp(oplog.Entry{
		OpType:    "uninstall",
		Device:    deviceId,
		Detail:    packageName,
		Success:   success,
		Command:   fmt.Sprintf("adb -s %s uninstall %s", deviceId, packageName),
		RawOutput: strings.TrimSpace(out),
	})

	if err != nil {
		return fmt.Errorf("failed to uninstall %s: %w", packageName, err)
	}
	if !success {
		return fmt.Errorf("uninstall failed: %s", strings.TrimSpace(out))
	}
	return nil
}

// ClearAppData clears a package's data and cache
func (a *App) ClearAppData(deviceId, packageName string) error {
	if err := ValidateDeviceID(deviceId); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	out, err := a.runAdbDevice(ctx, deviceId, "shell", "pm", "clear", packageName)
	if err != nil {
		return fmt.Errorf("failed to clear data for %s: %w", packageName, err)
	}
	if !strings.Contains(out, "Success") {
		return fmt.Errorf("clear data failed: %s", strings.TrimSpace(out))
	}
	return nil
}

// ForceStopApp force-stops a running package
func (a *App) ForceStopApp(deviceId, packageName string) error {
	if err := ValidateDeviceID(deviceId); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := a.runAdbDevice(ctx, deviceId, "shell", "am", "force-stop", packageName); err != nil {
		return fmt.Errorf("failed to force-stop %s: %w", packageName, err)
	}
	return nil
}

// StartApp launches a package's main activity via monkey
func (a *App) StartApp(deviceId, packageName string) error {
	if err := ValidateDeviceID(deviceId); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	out, err := a.runAdbDevice(ctx, deviceId, "shell", "monkey",
		"-p", packageName, "-c", "android.intent.category.LAUNCHER", "1")
	if err != nil {
		return fmt.Errorf("failed to start %s: %w", packageName, err)
	}
	if strings.Contains(out, "No activities found") {
		return fmt.Errorf("no launchable activity in %s", packageName)
	}
	return nil
}
