package tagio

import "sync"

// Tag abstracts the physical write/read of one payload string to an NFC
// tag. Write reports success; a tag refuses payloads over its capacity.
type Tag interface {
	Write(payload string) bool
	Read() string
}

// MemoryTag is an in-memory Tag used by tests and dry-run tag
// programming.
type MemoryTag struct {
	mu       sync.Mutex
	payload  string
	capacity int
}

// NewMemoryTag creates a memory tag. capacity <= 0 means unlimited.
func NewMemoryTag(capacity int) *MemoryTag {
	return &MemoryTag{capacity: capacity}
}

// Write stores the payload if it fits.
func (t *MemoryTag) Write(payload string) bool {
	if t.capacity > 0 && len(payload) > t.capacity {
		return false
	}
	t.mu.Lock()
	t.payload = payload
	t.mu.Unlock()
	return true
}

// Read returns the stored payload.
func (t *MemoryTag) Read() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.payload
}
