package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cyp0633/recuredit/editor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2015, 4, 14, 9, 0, 0, 0, time.UTC)}
}

func session(id string) *editor.Session {
	return &editor.Session{
		ID:         id,
		RuleText:   "RRULE:FREQ=DAILY;COUNT=5",
		Start:      time.Date(2015, 4, 14, 9, 0, 0, 0, time.UTC),
		Location:   "UTC",
		Multiplier: 1,
		Overrides:  map[int64]bool{1: true},
	}
}

func TestStore_BasicOperations(t *testing.T) {
	store := New(Config{TTL: 5 * time.Minute, MaxEntries: 100, CleanupInterval: time.Minute})
	defer store.Close()
	ctx := context.Background()

	got, err := store.Get(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, got.IsAbsent())

	require.NoError(t, store.Put(ctx, session("abc")))

	got, err = store.Get(ctx, "abc")
	require.NoError(t, err)
	s, ok := got.Get()
	require.True(t, ok)
	assert.Equal(t, "RRULE:FREQ=DAILY;COUNT=5", s.RuleText)
	assert.Equal(t, map[int64]bool{1: true}, s.Overrides)

	// Returned sessions are copies
	s.Multiplier = 7
	got, err = store.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, 1, got.MustGet().Multiplier)

	require.NoError(t, store.Delete(ctx, "abc"))
	require.NoError(t, store.Delete(ctx, "abc"))
	got, err = store.Get(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, got.IsAbsent())
}

func TestStore_TTLExpiration(t *testing.T) {
	clock := newClock()
	store := New(Config{TTL: 10 * time.Minute, MaxEntries: 100}, WithClock(clock.Now))
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, session("abc")))

	// Reading extends the lifetime
	clock.Advance(8 * time.Minute)
	got, err := store.Get(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, got.IsPresent())

	clock.Advance(8 * time.Minute)
	got, err = store.Get(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, got.IsPresent())

	clock.Advance(11 * time.Minute)
	got, err = store.Get(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, got.IsAbsent())
}

func TestStore_Eviction(t *testing.T) {
	clock := newClock()
	store := New(Config{TTL: time.Hour, MaxEntries: 3}, WithClock(clock.Now))
	defer store.Close()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, store.Put(ctx, session(fmt.Sprintf("s%d", i))))
		clock.Advance(time.Second)
	}

	// Touch s0 so s1 becomes the least recently accessed
	_, err := store.Get(ctx, "s0")
	require.NoError(t, err)
	clock.Advance(time.Second)

	require.NoError(t, store.Put(ctx, session("s3")))
	assert.Equal(t, 3, store.Stats().TotalEntries)

	for id, present := range map[string]bool{"s0": true, "s1": false, "s2": true, "s3": true} {
		got, err := store.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, present, got.IsPresent(), id)
	}
}

func TestStore_Stats(t *testing.T) {
	clock := newClock()
	store := New(Config{TTL: time.Minute, MaxEntries: 100}, WithClock(clock.Now))
	defer store.Close()
	ctx := context.Background()

	assert.Equal(t, Stats{}, store.Stats())

	require.NoError(t, store.Put(ctx, session("old")))
	clock.Advance(2 * time.Minute)
	require.NoError(t, store.Put(ctx, session("new")))

	assert.Equal(t, Stats{TotalEntries: 2, ExpiredEntries: 1, ActiveEntries: 1}, store.Stats())
}

func TestStore_CleanupLoop(t *testing.T) {
	store := New(Config{TTL: 20 * time.Millisecond, MaxEntries: 100, CleanupInterval: 10 * time.Millisecond})
	defer store.Close()

	require.NoError(t, store.Put(context.Background(), session("abc")))

	assert.Eventually(t, func() bool {
		return store.Stats().TotalEntries == 0
	}, time.Second, 10*time.Millisecond)
}

func TestStore_Close(t *testing.T) {
	store := New(DefaultConfig)
	require.NoError(t, store.Put(context.Background(), session("abc")))

	store.Close()
	store.Close()
	assert.Equal(t, 0, store.Stats().TotalEntries)
}

func TestStore_ConcurrentAccess(t *testing.T) {
	store := New(DefaultConfig)
	defer store.Close()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("s%d", i%5)
			assert.NoError(t, store.Put(ctx, session(id)))
			_, err := store.Get(ctx, id)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 5, store.Stats().TotalEntries)
}

func TestStore_WithEditor(t *testing.T) {
	store := New(DefaultConfig)
	defer store.Close()
	ctx := context.Background()

	var _ editor.SessionStore = store

	ed := editor.New(nil, store)
	_, err := ed.Expand(ctx, "missing")
	assert.True(t, editor.IsNotFound(err))
}
