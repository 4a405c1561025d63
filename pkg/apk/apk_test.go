package apk

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"
)

func buildAPK(t *testing.T, method uint16, pkgName string) []byte {
	t.Helper()

	var b bxmlBuilder
	b.stringPool(true, []string{"manifest", "package", pkgName})
	b.startElement(0, []bxmlAttr{{nameIdx: 1, rawIdx: 2}})

	return buildZip(t, method, "", map[string][]byte{
		"AndroidManifest.xml": b.build(),
		"classes.dex":         []byte("\x64\x65\x78\x0a"),
	})
}

func TestExtractPackageName(t *testing.T) {
	for _, method := range []uint16{zip.Store, zip.Deflate} {
		apk := buildAPK(t, method, "com.example.demo")
		got, ok := ExtractPackageName(apk)
		if !ok {
			t.Fatalf("method %d: extraction failed", method)
		}
		if got != "com.example.demo" {
			t.Errorf("method %d: got %q, want com.example.demo", method, got)
		}
	}
}

func TestExtractPackageNameBadArchive(t *testing.T) {
	if _, ok := ExtractPackageName([]byte("not a zip at all")); ok {
		t.Error("garbage input should not yield a package name")
	}
	if _, ok := ExtractPackageName(nil); ok {
		t.Error("nil input should not yield a package name")
	}
}

func TestExtractPackageNameCorruptedEntry(t *testing.T) {
	apk := buildAPK(t, zip.Store, "com.example.demo")
	entry, err := findEntry(apk, "AndroidManifest.xml")
	if err != nil {
		t.Fatalf("findEntry: %v", err)
	}
	apk[entry.localOffset] ^= 0xFF

	if _, ok := ExtractPackageName(apk); ok {
		t.Error("corrupt local header should not yield a package name")
	}
}

func TestExtractPackageNameFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demo.apk")
	if err := os.WriteFile(path, buildAPK(t, zip.Deflate, "io.example.file"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, ok := ExtractPackageNameFromFile(path)
	if !ok || got != "io.example.file" {
		t.Errorf("got (%q, %v), want (io.example.file, true)", got, ok)
	}

	if _, ok := ExtractPackageNameFromFile(filepath.Join(t.TempDir(), "missing.apk")); ok {
		t.Error("missing file should not yield a package name")
	}
}
