// Harmonia - Contextual Music Recommendation Engine
// Copyright 2026 Harmonia Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harmonia-labs/harmonia

package cache

import (
	"fmt"
	"testing"
	"time"
)

func TestLRUCache_AddGet(t *testing.T) {
	c := New[string](4, time.Minute)

	c.Add("a", "alpha")
	c.Add("b", "beta")

	if v, ok := c.Get("a"); !ok || v != "alpha" {
		t.Errorf("Get(a) = %q, %v; want alpha, true", v, ok)
	}
	if _, ok := c.Get("missing"); ok {
		t.Error("Get(missing) = true, want false")
	}
}

func TestLRUCache_Eviction(t *testing.T) {
	c := New[int](3, time.Minute)

	c.Add("a", 1)
	c.Add("b", 2)
	c.Add("c", 3)

	// Touch a so b becomes least recently used.
	c.Get("a")
	c.Add("d", 4)

	if c.Contains("b") {
		t.Error("expected b to be evicted as least recently used")
	}
	for _, k := range []string{"a", "c", "d"} {
		if !c.Contains(k) {
			t.Errorf("expected %s to survive eviction", k)
		}
	}
}

func TestLRUCache_TTLExpiry(t *testing.T) {
	c := New[int](8, 10*time.Millisecond)

	c.Add("a", 1)
	time.Sleep(20 * time.Millisecond)

	if _, ok := c.Get("a"); ok {
		t.Error("expired entry returned from Get")
	}
	if c.Contains("a") {
		t.Error("Contains reported expired entry as live")
	}
}

func TestLRUCache_CleanupExpired(t *testing.T) {
	c := New[int](8, 10*time.Millisecond)

	c.Add("a", 1)
	c.Add("b", 2)
	time.Sleep(20 * time.Millisecond)
	c.Add("c", 3)

	if removed := c.CleanupExpired(); removed != 2 {
		t.Errorf("CleanupExpired() = %d, want 2", removed)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d after cleanup, want 1", c.Len())
	}
}

func TestLRUCache_UpdateResetsTTL(t *testing.T) {
	c := New[int](8, 50*time.Millisecond)

	c.Add("a", 1)
	time.Sleep(30 * time.Millisecond)
	c.Add("a", 2)
	time.Sleep(30 * time.Millisecond)

	if v, ok := c.Get("a"); !ok || v != 2 {
		t.Errorf("Get(a) after update = %d, %v; want 2, true", v, ok)
	}
}

func TestLRUCache_Stats(t *testing.T) {
	c := New[int](8, time.Minute)

	c.Add("a", 1)
	c.Get("a")
	c.Get("b")

	hits, misses, size := c.Stats()
	if hits != 1 || misses != 1 || size != 1 {
		t.Errorf("Stats() = %d, %d, %d; want 1, 1, 1", hits, misses, size)
	}
}

func TestLRUCache_ConcurrentAccess(t *testing.T) {
	c := New[int](64, time.Minute)
	done := make(chan struct{})

	for g := 0; g < 4; g++ {
		go func(g int) {
			defer func() { done <- struct{}{} }()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("k%d", i%32)
				c.Add(key, g*1000+i)
				c.Get(key)
			}
		}(g)
	}

	for g := 0; g < 4; g++ {
		<-done
	}
	if c.Len() > 64 {
		t.Errorf("Len() = %d exceeds capacity", c.Len())
	}
}
