package logging

import (
	"bytes"
	"fmt"
	"io"
	"sync"
)

// HeldWriter buffers log output while a live view owns the terminal and
// writes it through once Release is called. Lines past limit bytes are
// dropped and counted.
type HeldWriter struct {
	mu       sync.Mutex
	w        io.Writer
	buf      bytes.Buffer
	limit    int
	dropped  int
	released bool
}

func NewHeldWriter(w io.Writer, limit int) *HeldWriter {
	return &HeldWriter{w: w, limit: limit}
}

func (h *HeldWriter) Write(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return h.w.Write(p)
	}
	if h.buf.Len()+len(p) > h.limit {
		h.dropped++
		return len(p), nil
	}
	return h.buf.Write(p)
}

// Release flushes everything held so far and passes later writes straight through.
func (h *HeldWriter) Release() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return nil
	}
	h.released = true
	_, err := h.w.Write(h.buf.Bytes())
	h.buf.Reset()
	if err == nil && h.dropped > 0 {
		_, err = fmt.Fprintf(h.w, "%d log lines dropped while the live view was active\n", h.dropped)
	}
	return err
}
