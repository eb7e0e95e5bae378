// FILE: blacklist.go
// Package main – Time-boxed per-symbol suppression registry.
//
// A blocked key makes its candidate invisible to evaluation until the entry
// expires. Entries are only checked lazily on read — there is no background
// sweeper; an expired entry simply reads as "not blocked".
//
// Populated from three directions (see trader.go):
//   • gateway error classification (permission / missing contract) -> long TTL
//   • data-quality score reasons                                   -> short TTL
//   • failed bracket submission                                    -> short TTL
//
// The registry is owned by the Trader and passed explicitly; no globals.

package main

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// SuppressKey identifies a candidate across venues.
type SuppressKey struct {
	Symbol   string
	Currency string
	Exchange string
}

func (k SuppressKey) String() string {
	return fmt.Sprintf("%s:%s:%s", k.Symbol, k.Currency, k.Exchange)
}

type suppressEntry struct {
	until  time.Time
	reason string
}

// Blacklist maps keys to expiry instants. The scheduler is the only writer,
// but reads can come from the scan mode too, so it carries its own lock.
type Blacklist struct {
	mu      sync.Mutex
	entries map[SuppressKey]suppressEntry
}

func NewBlacklist() *Blacklist {
	return &Blacklist{entries: map[SuppressKey]suppressEntry{}}
}

// IsBlocked reports whether key is suppressed at instant now.
func (b *Blacklist) IsBlocked(key SuppressKey, now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[key]
	return ok && now.Before(e.until)
}

// Block suppresses key for d starting at now. Re-blocking an existing key
// replaces its expiry (last write wins, no stacking).
func (b *Blacklist) Block(key SuppressKey, d time.Duration, reason string, now time.Time) {
	b.mu.Lock()
	b.entries[key] = suppressEntry{until: now.Add(d), reason: reason}
	b.mu.Unlock()
	mtxSuppressions.WithLabelValues(reason).Inc()
	logrus.Infof("[BLACKLIST] %s for %s (reason=%s)", key, d, reason)
}

// ActiveCount returns the number of unexpired entries at now.
func (b *Blacklist) ActiveCount(now time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, e := range b.entries {
		if now.Before(e.until) {
			n++
		}
	}
	return n
}
