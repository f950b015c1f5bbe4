package scheduler

import (
	"context"
	"time"
)

// ---------------------------------------------------------------------------
// Coalescing writer
// ---------------------------------------------------------------------------

type writerStats struct {
	written int
	failed  int
}

// runWriter is the single goroutine that touches the host's write path.
// Results accumulate in a pending map keyed fieldKey.locale; the first
// pending result arms a debounce timer, and when it fires the whole batch is
// flushed in arrival order with a pacing delay between writes. Closing the
// results channel triggers the unconditional final flush.
func runWriter(ctx context.Context, host Host, opts *Options, results <-chan result, done chan<- writerStats) {
	debounce := duration(opts.FlushDebounce, DefaultFlushDebounce)
	pacing := duration(opts.WritePacing, DefaultWritePacing)

	pending := make(map[string]result)
	var order []string
	var stats writerStats

	flush := func() {
		for i, key := range order {
			if i > 0 && pacing > 0 {
				time.Sleep(pacing)
			}
			r := pending[key]
			if err := host.SetValue(ctx, r.fieldKey, r.locale, r.value); err != nil {
				stats.failed++
				opts.logError("writing %s → %s: %v", r.fieldKey, r.locale, err)
				continue
			}
			stats.written++
		}
		pending = make(map[string]result)
		order = order[:0]
	}

	var timer *time.Timer
	var timerC <-chan time.Time
	for {
		select {
		case r, ok := <-results:
			if !ok {
				if timer != nil {
					timer.Stop()
				}
				flush()
				done <- stats
				return
			}
			if _, exists := pending[r.key]; !exists {
				order = append(order, r.key)
			}
			pending[r.key] = r
			if debounce == 0 {
				flush()
			} else if timerC == nil {
				timer = time.NewTimer(debounce)
				timerC = timer.C
			}

		case <-timerC:
			timerC = nil
			flush()
		}
	}
}
