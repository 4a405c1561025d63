package main

// Device represents a connected ADB device as reported by `adb devices -l`
type Device struct {
	Serial  string `json:"serial"`
	State   string `json:"state"` // "device", "offline" or "unauthorized"
	Model   string `json:"model"`
	Product string `json:"product"`
}

// DeviceDetail contains detailed information about a device
type DeviceDetail struct {
	Serial         string `json:"serial"`
	Model          string `json:"model"`
	AndroidVersion string `json:"androidVersion"`
	SdkVersion     string `json:"sdkVersion"`
	StorageTotalMB int64 `json:"storageTotalMb"`
	StorageFreeMB  int64 `json:"storageFreeMb"`
}

// InstalledApp represents an installed application
type InstalledApp struct {
	PackageName string `json:"packageName"`
	VersionName string `json:"versionName"`
	VersionCode string `json:"versionCode"`
	IsSystem    bool   `json:"isSystem"`
}

// InstallResult classifies the outcome of an `adb install`
type InstallResult struct {
	Success   bool   `json:"success"`
	ErrorCode string `json:"errorCode,omitempty"` // e.g. INSTALL_FAILED_UPDATE_INCOMPATIBLE
	RawOutput string `json:"rawOutput"`
}

// FileInfo represents a file or directory on the device
type FileInfo struct {
	Name    string `json:"name"`
	Size    int64  `json:"size"`
	Mode    string `json:"mode"`
	ModTime string `json:"modTime"`
	IsDir   bool   `json:"isDir"`
	Path    string `json:"path"`
}
