package selection

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingBus captures published messages and lets tests inject foreign ones.
type recordingBus struct {
	mu        sync.Mutex
	published []Message
	subs      []func(Message)
	err       error
}

func (b *recordingBus) Publish(m Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, m)
	return b.err
}

func (b *recordingBus) Subscribe(fn func(Message)) func() {
	b.mu.Lock()
	b.subs = append(b.subs, fn)
	b.mu.Unlock()
	return func() {}
}

func (b *recordingBus) deliver(m Message) {
	b.mu.Lock()
	subs := append([]func(Message)(nil), b.subs...)
	b.mu.Unlock()
	for _, fn := range subs {
		fn(m)
	}
}

func (b *recordingBus) last() Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.published[len(b.published)-1]
}

func loadedStore(bus Bus, ids ...string) *Store {
	s := NewStore(bus)
	s.SetLoaded(ids)
	return s
}

func TestToggle(t *testing.T) {
	s := loadedStore(nil, "a", "b")

	assert.True(t, s.Toggle("a"))
	assert.Equal(t, []string{"a"}, s.Selected())
	assert.False(t, s.Toggle("a"))
	assert.Empty(t, s.Selected())

	assert.False(t, s.Toggle("zzz"), "unloaded ids are ignored")
	assert.Empty(t, s.Selected())
}

func TestToggleGroup_AddsMissingMembers(t *testing.T) {
	s := loadedStore(nil, "1", "2", "3", "4", "5", "6")
	s.Toggle("1")
	s.Toggle("2")
	s.Toggle("3")
	before := len(s.Selected())

	n := s.ToggleGroup([]string{"1", "2", "3", "4", "5"})

	assert.Equal(t, before+2, n)
	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, s.Selected())
}

func TestToggleGroup_RemovesWhenAllSelected(t *testing.T) {
	s := loadedStore(nil, "1", "2", "3", "4")
	s.ToggleGroup([]string{"1", "2", "3"})
	s.Toggle("4")

	n := s.ToggleGroup([]string{"1", "2", "3", "ghost"})

	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"4"}, s.Selected())
}

func TestToggleGroup_NoLoadedMembers(t *testing.T) {
	bus := &recordingBus{}
	s := loadedStore(bus, "1")
	assert.Equal(t, 0, s.ToggleGroup([]string{"x", "y"}))
	assert.Empty(t, bus.published)
}

func TestHoverOverwrites(t *testing.T) {
	s := loadedStore(nil, "a", "b", "c")
	s.Hover([]string{"a", "b"})
	s.Hover([]string{"c", "nope"})
	assert.Equal(t, []string{"c"}, s.Hovered())

	s.ClearHover()
	assert.Empty(t, s.Hovered())
}

func TestSetLoadedPrunes(t *testing.T) {
	s := loadedStore(nil, "a", "b", "c")
	s.ToggleGroup([]string{"a", "b", "c"})
	s.Hover([]string{"b", "c"})

	s.SetLoaded([]string{"a", "c", "d"})

	assert.Equal(t, []string{"a", "c"}, s.Selected())
	assert.Equal(t, []string{"c"}, s.Hovered())
}

func TestClear(t *testing.T) {
	s := loadedStore(nil, "a", "b")
	s.ToggleGroup([]string{"a", "b"})
	s.Clear()
	assert.Empty(t, s.Selected())
}

func TestMutationsPublish(t *testing.T) {
	bus := &recordingBus{}
	s := loadedStore(bus, "a", "b")

	s.Toggle("b")
	m := bus.last()
	assert.Equal(t, s.Origin(), m.Origin)
	assert.Equal(t, []string{"b"}, m.Selected)
	assert.Empty(t, m.Hovered)
	assert.False(t, m.SentAt.IsZero())

	s.Hover([]string{"a"})
	assert.Equal(t, []string{"a"}, bus.last().Hovered)
	assert.Len(t, bus.published, 2)
}

func TestPublishErrorIsNotFatal(t *testing.T) {
	bus := &recordingBus{err: errors.New("down")}
	s := loadedStore(bus, "a")
	assert.True(t, s.Toggle("a"))
	assert.Equal(t, []string{"a"}, s.Selected())
}

func TestForeignMessageReplacesAndValidates(t *testing.T) {
	bus := &recordingBus{}
	s := loadedStore(bus, "a", "b", "c")
	s.Toggle("a")

	bus.deliver(Message{
		Origin:   "other-tab",
		Selected: []string{"b", "unknown"},
		Hovered:  []string{"c", "gone"},
		SentAt:   time.Now().Add(time.Second),
	})

	assert.Equal(t, []string{"b"}, s.Selected(), "last write wins, no merge")
	assert.Equal(t, []string{"c"}, s.Hovered())
}

func TestOwnAndStaleMessagesIgnored(t *testing.T) {
	bus := &recordingBus{}
	s := loadedStore(bus, "a", "b")
	s.Toggle("a")

	bus.deliver(Message{Origin: s.Origin(), Selected: []string{"b"}, SentAt: time.Now().Add(time.Hour)})
	assert.Equal(t, []string{"a"}, s.Selected())

	bus.deliver(Message{Origin: "other", Selected: []string{"b"}, SentAt: time.Now().Add(-time.Hour)})
	assert.Equal(t, []string{"a"}, s.Selected())

	bus.deliver(Message{Selected: []string{"b"}, SentAt: time.Now().Add(time.Hour)})
	assert.Equal(t, []string{"a"}, s.Selected(), "messages without origin are dropped")
}

func TestLocalBusSyncsStores(t *testing.T) {
	bus := NewLocalBus()
	defer bus.Close()

	ids := []string{"r1", "r2", "r3"}
	a := loadedStore(bus, ids...)
	defer a.Close()
	b := loadedStore(bus, ids...)
	defer b.Close()

	a.ToggleGroup([]string{"r1", "r2"})
	assert.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]string{"r1", "r2"}, b.Selected())
	}, time.Second, 5*time.Millisecond)

	// Let a's clock move past b's write before b answers.
	time.Sleep(2 * time.Millisecond)
	b.Hover([]string{"r3"})
	assert.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]string{"r3"}, a.Hovered())
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"r1", "r2"}, a.Selected())
}

func TestLocalBusClosed(t *testing.T) {
	bus := NewLocalBus()
	require.NoError(t, bus.Close())
	assert.ErrorIs(t, bus.Publish(Message{Origin: "x"}), ErrBusClosed)
}

func TestLocalBusDeliversCopies(t *testing.T) {
	bus := NewLocalBus()
	got := make(chan Message, 1)
	bus.Subscribe(func(m Message) { got <- m })

	sel := []string{"a"}
	require.NoError(t, bus.Publish(Message{Origin: "x", Selected: sel}))
	sel[0] = "mutated"

	m := <-got
	assert.Equal(t, []string{"a"}, m.Selected)
	require.NoError(t, bus.Close())
}
