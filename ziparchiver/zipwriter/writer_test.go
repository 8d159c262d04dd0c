package zipwriter_test

import (
	"archive/zip"
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stupid-simple/cloudbackup/ziparchiver/zipwriter"
)

func writeOne(t *testing.T, level int, content string) (*bytes.Buffer, *zipwriter.Writer) {
	t.Helper()
	var buf bytes.Buffer
	zw := zipwriter.New(&buf, level)

	w, err := zw.Create("dir/test.txt", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), int64(len(content)))
	if err != nil {
		t.Fatalf("Failed to create zip entry: %v", err)
	}
	if _, err = w.Write([]byte(content)); err != nil {
		t.Fatalf("Failed to write content: %v", err)
	}
	if err = zw.Close(); err != nil {
		t.Fatalf("Failed to close zip writer: %v", err)
	}
	return &buf, zw
}

func TestWriter_Deflate(t *testing.T) {
	content := strings.Repeat("compressible ", 1000)
	buf, zw := writeOne(t, 9, content)

	if !zw.Compressed() {
		t.Error("expected compressed writer")
	}
	if zw.Written() != int64(buf.Len()) {
		t.Errorf("expected %d written bytes, got %d", buf.Len(), zw.Written())
	}
	if zw.Written() >= int64(len(content)) {
		t.Errorf("expected archive smaller than %d bytes, got %d", len(content), zw.Written())
	}

	r, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatal(err)
	}
	if len(r.File) != 1 || r.File[0].Method != zip.Deflate {
		t.Fatalf("expected one deflated entry, got %+v", r.File)
	}
	f, err := r.File[0].Open()
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	got, err := io.ReadAll(f)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != content {
		t.Error("content mismatch after round trip")
	}
}

func TestWriter_Store(t *testing.T) {
	buf, zw := writeOne(t, zipwriter.NoCompression, "stored")

	if zw.Compressed() {
		t.Error("expected stored entries")
	}
	r, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatal(err)
	}
	if r.File[0].Method != zip.Store {
		t.Errorf("expected store method, got %d", r.File[0].Method)
	}
	if r.File[0].Name != "dir/test.txt" {
		t.Errorf("expected name dir/test.txt, got %s", r.File[0].Name)
	}
}
