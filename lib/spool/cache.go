// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package spool

import "sync"

// Cache is a FIFO index of spool record names. Pushing a name that is
// already queued is a no-op. Safe for concurrent use.
type Cache struct {
	mu     sync.Mutex
	queue  []string
	head   int
	queued map[string]struct{}
}

// NewCache returns an empty Cache.
func NewCache() *Cache {
	return &Cache{queued: make(map[string]struct{})}
}

// Push appends name to the tail unless it is already queued.
func (c *Cache) Push(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.queued[name]; exists {
		return
	}
	c.queued[name] = struct{}{}
	c.queue = append(c.queue, name)
}

// Pop removes and returns the head. The second result is false when
// the cache is empty.
func (c *Cache) Pop() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.head == len(c.queue) {
		return "", false
	}
	name := c.queue[c.head]
	c.queue[c.head] = ""
	c.head++
	delete(c.queued, name)

	// Reclaim the consumed prefix once it dominates the backing array.
	if c.head == len(c.queue) {
		c.queue = c.queue[:0]
		c.head = 0
	} else if c.head > 64 && c.head*2 > len(c.queue) {
		remaining := copy(c.queue, c.queue[c.head:])
		c.queue = c.queue[:remaining]
		c.head = 0
	}
	return name, true
}

// Contains reports whether name is queued.
func (c *Cache) Contains(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, exists := c.queued[name]
	return exists
}

// Len returns the number of queued names.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue) - c.head
}

// Reset empties the cache.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queue = nil
	c.head = 0
	c.queued = make(map[string]struct{})
}
