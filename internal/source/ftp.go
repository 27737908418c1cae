package source

import (
	"context"
	"errors"
	"time"
)

// FTPSource discovers inputs from an FTP listing. No FTP client library
// is exercised elsewhere in this module's dependency set, so this stands
// as the documented stub the spec's "FTP listing" source variant names;
// Discover reports an explicit not-implemented error rather than
// pretending to succeed.
type FTPSource struct {
	Host string
	Dir  string
}

// NewFTPSource builds an (unimplemented) FTP listing source against host/dir.
func NewFTPSource(host, dir string) *FTPSource {
	return &FTPSource{Host: host, Dir: dir}
}

func (f *FTPSource) Discover(ctx context.Context, watermark time.Time) ([]RawInput, error) {
	return nil, errors.New("ftp source not implemented: no FTP listing backend configured")
}
