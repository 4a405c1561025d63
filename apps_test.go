package main

import "testing"

func TestExtractErrorCode(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   string
	}{
		{
			name:   "plain code",
			output: "Failure [INSTALL_FAILED_OLDER_SDK]",
			want:   "INSTALL_FAILED_OLDER_SDK",
		},
		{
			name:   "code with detail",
			output: "Failure [INSTALL_FAILED_INVALID_APK: Package couldn't be parsed]",
			want:   "INSTALL_FAILED_INVALID_APK",
		},
		{
			name:   "code embedded in other output",
			output: "Performing Streamed Install\nFailure [INSTALL_FAILED_VERSION_DOWNGRADE]\n",
			want:   "INSTALL_FAILED_VERSION_DOWNGRADE",
		},
		{
			name:   "no failure marker",
			output: "something went wrong",
			want:   "UNKNOWN_ERROR",
		},
		{
			name:   "unterminated bracket",
			output: "Failure [INSTALL_FAILED_",
			want:   "UNKNOWN_ERROR",
		},
		{
			name:   "empty brackets",
			output: "Failure []",
			want:   "UNKNOWN_ERROR",
		},
		{
			name:   "empty output",
			output: "",
			want:   "UNKNOWN_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractErrorCode(tt.output); got != tt.want {
				t.Errorf("extractErrorCode(%q) = %q, want %q", tt.output, got, tt.want)
			}
		})
	}
}

func TestParsePackageList(t *testing.T) {
	output := `package:/system/priv-app/Settings/Settings.apk=com.android.settings
package:/data/app/~~abc==/com.example.app-xyz==/base.apk=com.example.app
package:/data/app/weird=path/base.apk=com.other.app
garbage line
package:
`
	thirdParty := map[string]bool{
		"com.example.app": true,
		"com.other.app":   true,
	}

	apps := parsePackageList(output, thirdParty)
	if len(apps) != 3 {
		t.Fatalf("got %d apps, want 3", len(apps))
	}

	if apps[0].PackageName != "com.android.settings" || !apps[0].IsSystem {
		t.Errorf("app 0 = %+v", apps[0])
	}
	if apps[1].PackageName != "com.example.app" || apps[1].IsSystem {
		t.Errorf("app 1 = %+v", apps[1])
	}
	// Package name must come from the last '=' even when the path has one
	if apps[2].PackageName != "com.other.app" {
		t.Errorf("app 2 package = %q", apps[2].PackageName)
	}
}

func TestParseDumpsysVersion(t *testing.T) {
	output := `Packages:
  Package [com.example.app] (abc123):
    userId=10123
    versionCode=42 minSdk=24 targetSdk=34
    versionName=1.2.3
    splits=[base]
`
	name, code := parseDumpsysVersion(output)
	if name != "1.2.3" {
		t.Errorf("versionName = %q, want 1.2.3", name)
	}
	if code != "42" {
		t.Errorf("versionCode = %q, want 42", code)
	}
}

func TestParseDumpsysVersionMissing(t *testing.T) {
	name, code := parseDumpsysVersion("Unable to find package: com.example.app")
	if name != "" || code != "" {
		t.Errorf("got (%q, %q), want empty", name, code)
	}
}
