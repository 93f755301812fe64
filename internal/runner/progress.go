package runner

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Progress writes timestamped lifecycle lines. Writes are serialized so
// lines from concurrent units never interleave.
type Progress struct {
	mu      sync.Mutex
	w       io.Writer
	enabled bool
	now     func() time.Time
}

func NewProgress(w io.Writer, enabled bool) *Progress {
	return &Progress{w: w, enabled: enabled, now: time.Now}
}

// Logf writes one "[skillcheck] HH:MM:SS message" line. It is a no-op on a
// nil or disabled Progress.
func (p *Progress) Logf(format string, args ...any) {
	if p == nil || !p.enabled {
		return
	}
	msg := fmt.Sprintf(format, args...)
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "[skillcheck] %s %s\n", p.now().UTC().Format("15:04:05"), msg)
}
