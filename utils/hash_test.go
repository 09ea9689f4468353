package utils

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestHashFileMatchesHashBytes(t *testing.T) {
	content := []byte("some study material")
	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	fromFile, err := HashFile(path)
	if err != nil {
		t.Fatalf("HashFile: %v", err)
	}
	if fromFile != HashBytes(content) {
		t.Errorf("file hash %s != bytes hash %s", fromFile, HashBytes(content))
	}
}

func TestHashFileMissing(t *testing.T) {
	if _, err := HashFile("/nonexistent/file"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestCompressRoundTrip(t *testing.T) {
	original := bytes.Repeat([]byte("vector data "), 100)

	compressed, err := CompressData(original)
	if err != nil {
		t.Fatalf("CompressData: %v", err)
	}
	if len(compressed) >= len(original) {
		t.Errorf("repetitive data did not compress: %d >= %d", len(compressed), len(original))
	}

	restored, err := DecompressData(compressed)
	if err != nil {
		t.Fatalf("DecompressData: %v", err)
	}
	if !bytes.Equal(restored, original) {
		t.Error("round trip mismatch")
	}
}

func TestDecompressGarbage(t *testing.T) {
	if _, err := DecompressData([]byte("not gzip")); err == nil {
		t.Error("expected error for invalid input")
	}
}
