// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package spool

import (
	"fmt"
	"sync"
	"testing"
)

func TestCacheFIFO(t *testing.T) {
	cache := NewCache()
	if _, ok := cache.Pop(); ok {
		t.Fatal("Pop on empty cache returned a name")
	}

	for i := range 200 {
		cache.Push(fmt.Sprintf("name-%03d", i))
	}
	if cache.Len() != 200 {
		t.Fatalf("Len = %d, want 200", cache.Len())
	}
	for i := range 200 {
		name, ok := cache.Pop()
		if !ok {
			t.Fatalf("Pop %d: cache empty early", i)
		}
		if want := fmt.Sprintf("name-%03d", i); name != want {
			t.Fatalf("Pop %d = %q, want %q", i, name, want)
		}
	}
	if cache.Len() != 0 {
		t.Errorf("Len after draining = %d, want 0", cache.Len())
	}
}

func TestCacheIgnoresQueuedDuplicates(t *testing.T) {
	cache := NewCache()
	cache.Push("a")
	cache.Push("b")
	cache.Push("a")
	if cache.Len() != 2 {
		t.Fatalf("Len = %d, want 2", cache.Len())
	}
	if !cache.Contains("a") {
		t.Error("Contains(a) = false")
	}

	cache.Pop()
	if cache.Contains("a") {
		t.Error("Contains(a) after popping it = true")
	}
	cache.Push("a")
	if got, _ := cache.Pop(); got != "b" {
		t.Errorf("Pop = %q, want b", got)
	}
	if got, _ := cache.Pop(); got != "a" {
		t.Errorf("Pop = %q, want re-pushed a", got)
	}
}

func TestCacheReset(t *testing.T) {
	cache := NewCache()
	cache.Push("a")
	cache.Reset()
	if cache.Len() != 0 || cache.Contains("a") {
		t.Error("Reset left entries behind")
	}
	cache.Push("a")
	if cache.Len() != 1 {
		t.Errorf("Len after Reset and Push = %d, want 1", cache.Len())
	}
}

func TestCacheConcurrentProducers(t *testing.T) {
	cache := NewCache()
	const producers, perProducer = 8, 250

	var wg sync.WaitGroup
	for p := range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perProducer {
				cache.Push(fmt.Sprintf("%d-%d", p, i))
			}
		}()
	}
	wg.Wait()

	seen := make(map[string]bool)
	for {
		name, ok := cache.Pop()
		if !ok {
			break
		}
		if seen[name] {
			t.Fatalf("name %q popped twice", name)
		}
		seen[name] = true
	}
	if len(seen) != producers*perProducer {
		t.Errorf("popped %d names, want %d", len(seen), producers*perProducer)
	}
}
