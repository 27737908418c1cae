package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDirectorySourceDiscoversNewFiles(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old.xml")
	fresh := filepath.Join(dir, "fresh.xml")
	if err := os.WriteFile(old, []byte("<article/>"), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	watermark := time.Now()
	time.Sleep(10 * time.Millisecond)
	if err := os.WriteFile(fresh, []byte("<article/>"), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	src := NewDirectorySource(dir)
	inputs, err := src.Discover(context.Background(), watermark)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(inputs) != 1 || inputs[0].ID != fresh {
		t.Fatalf("expected only fresh.xml discovered, got %+v", inputs)
	}
}

func TestDirectorySourceIgnoresNonXML(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	src := NewDirectorySource(dir)
	inputs, err := src.Discover(context.Background(), time.Time{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(inputs) != 0 {
		t.Errorf("expected no xml files discovered, got %d", len(inputs))
	}
}

func TestUploadSourceDrainsOnDiscover(t *testing.T) {
	src := NewUploadSource()
	src.Push("a", []byte("one"))
	src.Push("b", []byte("two"))

	inputs, err := src.Discover(context.Background(), time.Time{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(inputs) != 2 {
		t.Fatalf("expected 2 pending uploads, got %d", len(inputs))
	}

	again, err := src.Discover(context.Background(), time.Time{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("expected queue drained, got %d", len(again))
	}
}
