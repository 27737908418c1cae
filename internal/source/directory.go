package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DirectorySource discovers `*.xml` files under Root whose modification
// time is after the watermark, matching the `ingest(xml_directory, ...)`
// entry point.
type DirectorySource struct {
	Root string
}

// NewDirectorySource builds a DirectorySource rooted at dir.
func NewDirectorySource(dir string) *DirectorySource {
	return &DirectorySource{Root: dir}
}

func (d *DirectorySource) Discover(ctx context.Context, watermark time.Time) ([]RawInput, error) {
	var inputs []RawInput
	err := filepath.WalkDir(d.Root, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(path), ".xml") {
			return nil
		}
		info, err := entry.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", path, err)
		}
		if !watermark.IsZero() && !info.ModTime().After(watermark) {
			return nil
		}
		p := path
		inputs = append(inputs, RawInput{
			ID:      p,
			ModTime: info.ModTime(),
			Load: func(ctx context.Context) ([]byte, error) {
				return os.ReadFile(p)
			},
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover directory %s: %w", d.Root, err)
	}
	return inputs, nil
}
