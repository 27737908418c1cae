package source

import (
	"context"
	"sync"
	"time"
)

// UploadSource buffers pushed payloads (an HTTP upload handler's events)
// until the next Discover call drains them, regardless of watermark —
// an uploaded file is always "new" relative to the caller that pushed it.
type UploadSource struct {
	mu      sync.Mutex
	pending []RawInput
}

// NewUploadSource builds an empty upload queue.
func NewUploadSource() *UploadSource {
	return &UploadSource{}
}

// Push enqueues one uploaded payload for the next Discover call.
func (u *UploadSource) Push(id string, data []byte) {
	u.mu.Lock()
	defer u.mu.Unlock()
	payload := data
	u.pending = append(u.pending, RawInput{
		ID:      id,
		ModTime: time.Now().UTC(),
		Load: func(ctx context.Context) ([]byte, error) {
			return payload, nil
		},
	})
}

func (u *UploadSource) Discover(ctx context.Context, watermark time.Time) ([]RawInput, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	drained := u.pending
	u.pending = nil
	return drained, nil
}
