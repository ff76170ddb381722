// PhotoMirror - Synchronized Media Library Mirror and Streaming Gateway
// Copyright 2026 PhotoMirror Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/photomirror/photomirror

package cache

import (
	"testing"
	"time"
)

func TestLRUBasicOperations(t *testing.T) {
	c := NewLRU(10)
	expiry := time.Now().Add(time.Minute)

	if _, ok := c.Get("missing"); ok {
		t.Error("Get on empty cache should miss")
	}

	c.Add("a", 1, expiry)
	v, ok := c.Get("a")
	if !ok || v.(int) != 1 {
		t.Errorf("Expected hit with 1, got %v %v", v, ok)
	}

	c.Add("a", 2, expiry)
	if v, _ := c.Get("a"); v.(int) != 2 {
		t.Errorf("Expected updated value 2, got %v", v)
	}

	c.Remove("a")
	if _, ok := c.Get("a"); ok {
		t.Error("Expected miss after Remove")
	}
}

func TestLRUEviction(t *testing.T) {
	c := NewLRU(2)
	expiry := time.Now().Add(time.Minute)

	c.Add("a", "A", expiry)
	c.Add("b", "B", expiry)

	// Touch "a" so "b" becomes the eviction candidate.
	if _, ok := c.Get("a"); !ok {
		t.Fatal("Expected a present")
	}

	c.Add("c", "C", expiry)

	if _, ok := c.Get("b"); ok {
		t.Error("Expected b evicted as least recently used")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("Expected a retained")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("Expected c present")
	}
}

func TestLRUExpiry(t *testing.T) {
	c := NewLRU(10)

	c.Add("soon", "x", time.Now().Add(20*time.Millisecond))
	if _, ok := c.Get("soon"); !ok {
		t.Fatal("Entry should be live before expiry")
	}

	time.Sleep(30 * time.Millisecond)
	if _, ok := c.Get("soon"); ok {
		t.Error("Entry should expire")
	}

	// Already-expired entries are never stored.
	c.Add("past", "x", time.Now().Add(-time.Second))
	if c.Len() != 0 {
		t.Errorf("Expected empty cache, got %d entries", c.Len())
	}
}

func TestLRUZeroCapacityDisabled(t *testing.T) {
	c := NewLRU(0)
	c.Add("a", 1, time.Now().Add(time.Minute))

	if _, ok := c.Get("a"); ok {
		t.Error("Zero-capacity cache must never store entries")
	}
	if c.Len() != 0 {
		t.Errorf("Expected empty cache, got %d entries", c.Len())
	}
}

func TestLRUStats(t *testing.T) {
	c := NewLRU(10)
	c.Add("a", 1, time.Now().Add(time.Minute))

	c.Get("a")
	c.Get("a")
	c.Get("nope")

	hits, misses := c.Stats()
	if hits != 2 || misses != 1 {
		t.Errorf("Expected 2 hits 1 miss, got %d %d", hits, misses)
	}
}
