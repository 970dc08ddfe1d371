// Harmonia - Contextual Music Recommendation Engine
// Copyright 2026 Harmonia Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harmonia-labs/harmonia

// Package cache provides a generic in-process TTL LRU cache. It backs the
// weather lookup cache and the per-user suggestion cache, both of which need
// bounded memory and lazy expiry rather than a shared external cache.
package cache

import (
	"sync"
	"time"
)

// entry is one node in the doubly-linked LRU list.
type entry[V any] struct {
	key       string
	value     V
	prev      *entry[V]
	next      *entry[V]
	expiresAt time.Time
}

// LRUCache is a thread-safe Least Recently Used cache with per-entry TTL.
// All operations are O(1). Expired entries are dropped lazily on access
// and eagerly via CleanupExpired.
//
// The doubly-linked list holds access order: head.next is the most
// recently used, tail.prev the least.
type LRUCache[V any] struct {
	mu sync.RWMutex

	capacity int
	ttl      time.Duration

	items map[string]*entry[V]

	// head and tail are sentinel nodes.
	head *entry[V]
	tail *entry[V]

	hits   int64
	misses int64
}

// New creates an LRU cache with the given capacity and TTL.
// Non-positive values fall back to 1024 entries and 5 minutes.
func New[V any](capacity int, ttl time.Duration) *LRUCache[V] {
	if capacity <= 0 {
		capacity = 1024
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	c := &LRUCache[V]{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[string]*entry[V], capacity),
		head:     &entry[V]{},
		tail:     &entry[V]{},
	}
	c.head.next = c.tail
	c.tail.prev = c.head

	return c
}

// Get retrieves a value. Returns the value and true if present and not
// expired. Found entries are promoted to most recently used.
func (c *LRUCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.items[key]
	if !ok {
		c.misses++
		return zero, false
	}
	if time.Now().After(e.expiresAt) {
		c.removeEntry(e)
		c.misses++
		return zero, false
	}

	c.moveToFront(e)
	c.hits++
	return e.value, true
}

// Contains reports whether a live entry exists without touching access order.
func (c *LRUCache[V]) Contains(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if e, ok := c.items[key]; ok {
		return !time.Now().After(e.expiresAt)
	}
	return false
}

// Add inserts or replaces a value, resetting its TTL. The least recently
// used entry is evicted when the cache is at capacity.
func (c *LRUCache[V]) Add(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := time.Now().Add(c.ttl)

	if e, ok := c.items[key]; ok {
		e.value = value
		e.expiresAt = expiresAt
		c.moveToFront(e)
		return
	}

	e := &entry[V]{key: key, value: value, expiresAt: expiresAt}
	c.addToFront(e)
	c.items[key] = e

	for len(c.items) > c.capacity {
		c.evictOldest()
	}
}

// Remove deletes an entry. Returns true if it existed.
func (c *LRUCache[V]) Remove(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.items[key]; ok {
		c.removeEntry(e)
		return true
	}
	return false
}

// Len returns the current number of entries, expired or not.
func (c *LRUCache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Clear removes every entry.
func (c *LRUCache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*entry[V], c.capacity)
	c.head.next = c.tail
	c.tail.prev = c.head
}

// CleanupExpired removes all expired entries and returns how many.
func (c *LRUCache[V]) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0

	for e := c.tail.prev; e != c.head; {
		prev := e.prev
		if now.After(e.expiresAt) {
			c.removeEntry(e)
			removed++
		}
		e = prev
	}

	return removed
}

// Stats returns hit/miss counters and current size.
func (c *LRUCache[V]) Stats() (hits, misses int64, size int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses, len(c.items)
}

// Internal methods, called with the lock held.

func (c *LRUCache[V]) addToFront(e *entry[V]) {
	e.prev = c.head
	e.next = c.head.next
	c.head.next.prev = e
	c.head.next = e
}

func (c *LRUCache[V]) moveToFront(e *entry[V]) {
	e.prev.next = e.next
	e.next.prev = e.prev
	c.addToFront(e)
}

func (c *LRUCache[V]) removeEntry(e *entry[V]) {
	e.prev.next = e.next
	e.next.prev = e.prev
	delete(c.items, e.key)
}

func (c *LRUCache[V]) evictOldest() {
	oldest := c.tail.prev
	if oldest == c.head {
		return
	}
	c.removeEntry(oldest)
}
