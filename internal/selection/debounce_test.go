package selection

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type hoverSink struct {
	mu    sync.Mutex
	calls [][]string
}

func (h *hoverSink) apply(ids []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, ids)
}

func (h *hoverSink) snapshot() [][]string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([][]string(nil), h.calls...)
}

func TestHoverDebouncer_SupersededNeverFire(t *testing.T) {
	sink := &hoverSink{}
	d := NewHoverDebouncer(30*time.Millisecond, sink.apply)
	defer d.Stop()

	d.Trigger([]string{"a"})
	d.Trigger([]string{"b"})
	d.Trigger([]string{"c"})

	assert.Eventually(t, func() bool { return len(sink.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)

	calls := sink.snapshot()
	assert.Len(t, calls, 1)
	assert.Equal(t, []string{"c"}, calls[0])
	assert.False(t, d.Pending())
}

func TestHoverDebouncer_StopPreventsWrites(t *testing.T) {
	sink := &hoverSink{}
	d := NewHoverDebouncer(20*time.Millisecond, sink.apply)

	d.Trigger([]string{"a"})
	assert.True(t, d.Pending())
	d.Stop()
	d.Trigger([]string{"b"})

	time.Sleep(80 * time.Millisecond)
	assert.Empty(t, sink.snapshot())
	assert.False(t, d.Pending())
}

func TestHoverDebouncer_DrivesStore(t *testing.T) {
	s := loadedStore(nil, "a", "b")
	d := NewHoverDebouncer(10*time.Millisecond, s.Hover)
	defer d.Stop()

	d.Trigger([]string{"a"})
	d.Trigger([]string{"b"})
	assert.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]string{"b"}, s.Hovered())
	}, time.Second, 5*time.Millisecond)
}
