package cache

import (
	"errors"
	"sync"
	"testing"
)

type evictLog struct {
	mu   sync.Mutex
	keys []int
}

func (l *evictLog) fn(k int, _ string) {
	l.mu.Lock()
	l.keys = append(l.keys, k)
	l.mu.Unlock()
}

func TestGetPut(t *testing.T) {
	c := New[int, string](2, nil)

	c.Put(1, "a")
	if v, ok := c.Get(1); !ok || v != "a" {
		t.Errorf("Get(1) = %q, %v; want a, true", v, ok)
	}
	if _, ok := c.Get(2); ok {
		t.Error("Get(2) should miss")
	}

	s := c.Stats()
	if s.Hits != 1 || s.Misses != 1 || s.Len != 1 || s.Capacity != 2 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	var log evictLog
	c := New[int, string](2, log.fn)

	c.Put(1, "a")
	c.Put(2, "b")
	c.Get(1) // 2 is now oldest
	c.Put(3, "c")

	if _, ok := c.Get(2); ok {
		t.Error("key 2 should have been evicted")
	}
	if len(log.keys) != 1 || log.keys[0] != 2 {
		t.Errorf("evicted = %v, want [2]", log.keys)
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}
}

func TestPutReplaceReleasesOldValue(t *testing.T) {
	var log evictLog
	c := New[int, string](4, log.fn)

	c.Put(1, "a")
	c.Put(1, "b")

	if v, _ := c.Get(1); v != "b" {
		t.Errorf("Get(1) = %q, want b", v)
	}
	if len(log.keys) != 1 {
		t.Errorf("evicted = %v, want the replaced value", log.keys)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestGetOrCreate(t *testing.T) {
	c := New[int, string](2, nil)
	calls := 0
	create := func() (string, error) {
		calls++
		return "x", nil
	}

	for range 3 {
		v, err := c.GetOrCreate(7, create)
		if err != nil || v != "x" {
			t.Fatalf("GetOrCreate() = %q, %v", v, err)
		}
	}
	if calls != 1 {
		t.Errorf("create called %d times, want 1", calls)
	}
}

func TestGetOrCreateErrorCachesNothing(t *testing.T) {
	c := New[int, string](2, nil)
	boom := errors.New("boom")

	_, err := c.GetOrCreate(1, func() (string, error) { return "", boom })
	if !errors.Is(err, boom) {
		t.Errorf("GetOrCreate() error = %v, want boom", err)
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d after failed create", c.Len())
	}
}

func TestRemoveAndPurge(t *testing.T) {
	var log evictLog
	c := New[int, string](8, log.fn)
	for i := range 4 {
		c.Put(i, "v")
	}

	if !c.Remove(2) {
		t.Error("Remove(2) = false")
	}
	if c.Remove(2) {
		t.Error("second Remove(2) = true")
	}

	c.Purge()
	if c.Len() != 0 {
		t.Errorf("Len() = %d after Purge", c.Len())
	}
	want := []int{2, 0, 1, 3}
	if len(log.keys) != len(want) {
		t.Fatalf("evicted = %v, want %v", log.keys, want)
	}
	for i := range want {
		if log.keys[i] != want[i] {
			t.Fatalf("evicted = %v, want %v", log.keys, want)
		}
	}
	if got := c.Stats().Evictions; got != 4 {
		t.Errorf("Evictions = %d, want 4", got)
	}
}

func TestMinimumCapacity(t *testing.T) {
	c := New[int, int](0, nil)
	c.Put(1, 1)
	c.Put(2, 2)
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestConcurrentAccess(t *testing.T) {
	var log evictLog
	c := New[int, string](16, log.fn)

	var wg sync.WaitGroup
	for g := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 200 {
				k := (g*200 + i) % 64
				_, _ = c.GetOrCreate(k, func() (string, error) { return "v", nil })
				c.Get(k)
			}
		}()
	}
	wg.Wait()

	if c.Len() > 16 {
		t.Errorf("Len() = %d exceeds capacity", c.Len())
	}
	s := c.Stats()
	if int(s.Evictions) != len(log.keys) {
		t.Errorf("Evictions = %d, callback ran %d times", s.Evictions, len(log.keys))
	}
}
