package selection

import (
	"sync"
	"time"
)

// HoverDebouncer delays hover writes until input settles. A new Trigger
// cancels the pending one; after Stop nothing fires.
type HoverDebouncer struct {
	mu      sync.Mutex
	delay   time.Duration
	apply   func(ids []string)
	timer   *time.Timer
	gen     uint64
	stopped bool
}

// NewHoverDebouncer returns a debouncer calling apply delay after the last
// Trigger. apply runs with the debouncer locked and must not call back
// into it.
func NewHoverDebouncer(delay time.Duration, apply func(ids []string)) *HoverDebouncer {
	return &HoverDebouncer{delay: delay, apply: apply}
}

// Trigger schedules apply(ids), superseding any pending call.
func (d *HoverDebouncer) Trigger(ids []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	ids = append([]string(nil), ids...)
	d.timer = time.AfterFunc(d.delay, func() { d.fire(gen, ids) })
}

func (d *HoverDebouncer) fire(gen uint64, ids []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped || gen != d.gen {
		return
	}
	d.timer = nil
	d.apply(ids)
}

// Pending reports whether a call is scheduled.
func (d *HoverDebouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Stop cancels any pending call and disables the debouncer.
func (d *HoverDebouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
