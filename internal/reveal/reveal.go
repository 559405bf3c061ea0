// Package reveal implements the cosmetic character-by-character narrative
// reveal. It is a single cooperative stream: cancel the context to skip,
// and the remaining text is flushed at once. The effect only paces what is
// on screen; it never gates when the next action may be submitted.
package reveal

import (
	"context"
	"fmt"
	"io"
	"time"
)

// Revealer paces text output at a configured character rate.
type Revealer struct {
	out      io.Writer
	interval time.Duration
	enabled  bool
}

// New creates a revealer writing to out. When disabled, Reveal degrades to
// a plain write.
func New(out io.Writer, charsPerSecond int, enabled bool) *Revealer {
	if charsPerSecond < 1 {
		charsPerSecond = 1
	}
	return &Revealer{
		out:      out,
		interval: time.Second / time.Duration(charsPerSecond),
		enabled:  enabled,
	}
}

// Reveal streams text one rune at a time until done or canceled. On
// cancellation the untyped remainder is flushed immediately, so skipping
// always leaves the full text on screen.
func (r *Revealer) Reveal(ctx context.Context, text string) {
	if !r.enabled {
		fmt.Fprint(r.out, text)
		return
	}

	runes := []rune(text)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for i, ch := range runes {
		select {
		case <-ctx.Done():
			fmt.Fprint(r.out, string(runes[i:]))
			return
		case <-ticker.C:
			fmt.Fprint(r.out, string(ch))
		}
	}
}
