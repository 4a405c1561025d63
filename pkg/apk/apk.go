// Package apk extracts metadata from Android application packages without
// shelling out to aapt. It understands just enough of the ZIP container and
// the compiled binary-XML manifest format to pull the package name off the
// root <manifest> element.
//
// Extraction is advisory: installers use the result to pre-clean a
// conflicting install, so every structural problem in the archive or the
// manifest collapses into "no package name" rather than an error the caller
// has to classify.
package apk

import "os"

// manifestEntry is the archive entry holding the compiled manifest.
const manifestEntry = "AndroidManifest.xml"

// ExtractPackageName returns the package attribute of the APK's root
// manifest element. ok is false when the archive is unreadable, the
// manifest is absent or malformed, or the attribute is missing.
func ExtractPackageName(apkBytes []byte) (pkg string, ok bool) {
	manifest, err := readZipEntry(apkBytes, manifestEntry)
	if err != nil {
		return "", false
	}
	name, err := parsePackageName(manifest)
	if err != nil || name == "" {
		return "", false
	}
	return name, true
}

// ExtractPackageNameFromFile is ExtractPackageName over a file on disk.
func ExtractPackageNameFromFile(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	return ExtractPackageName(data)
}
