package eventbus

import (
	"context"
	"strings"
	"sync"
)

// Recorder keeps the most recent events in a fixed-size ring.
// It backs the activity feed of /api/v1/status.
type Recorder struct {
	mu    sync.Mutex
	buf   []Event
	next  int
	full  bool
	types []string
}

// NewRecorder keeps up to size events. When prefixes are given only events whose
// Type starts with one of them are kept.
func NewRecorder(size int, prefixes ...string) *Recorder {
	if size <= 0 {
		size = 50
	}
	return &Recorder{buf: make([]Event, size), types: prefixes}
}

// Run consumes the bus until ctx is done.
func (r *Recorder) Run(ctx context.Context, bus Bus) error {
	ch, unsub := bus.Subscribe(len(r.buf))
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-ch:
			if !ok {
				return nil
			}
			r.Record(e)
		}
	}
}

func (r *Recorder) Record(e Event) {
	if !r.accepts(e.Type) {
		return
	}
	r.mu.Lock()
	r.buf[r.next] = e
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.full = true
	}
	r.mu.Unlock()
}

// Recent returns recorded events, newest first.
func (r *Recorder) Recent() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.next
	if r.full {
		n = len(r.buf)
	}
	out := make([]Event, 0, n)
	for i := 0; i < n; i++ {
		idx := (r.next - 1 - i + len(r.buf)) % len(r.buf)
		out = append(out, r.buf[idx])
	}
	return out
}

func (r *Recorder) accepts(typ string) bool {
	if len(r.types) == 0 {
		return true
	}
	for _, p := range r.types {
		if strings.HasPrefix(typ, p) {
			return true
		}
	}
	return false
}
