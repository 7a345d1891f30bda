package engine

import (
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

const windowShardCount = 64

type windowEntry struct {
	fingerprint uint64
	insertedAt  time.Time
}

type windowShard struct {
	mu      sync.Mutex
	entries map[string][]windowEntry
}

// WindowStore is a sliding-time-window multiset keyed by (user, category).
// Entries are purged lazily on access and reclaimed for inactive keys by
// the periodic Sweep; an entry past its window never affects a count
// regardless of sweep timing. Fingerprints are irreversible digests and
// exist only in memory.
type WindowStore struct {
	shards [windowShardCount]windowShard
}

func NewWindowStore() *WindowStore {
	ws := &WindowStore{}
	for i := range ws.shards {
		ws.shards[i].entries = make(map[string][]windowEntry)
	}
	return ws
}

// Fingerprint digests message content for duplicate detection without
// retaining the content.
func Fingerprint(content string) uint64 {
	return xxhash.Sum64String(content)
}

func windowKey(userID, category string) string {
	return userID + "\x00" + category
}

func (ws *WindowStore) shardFor(key string) *windowShard {
	return &ws.shards[xxhash.Sum64String(key)%windowShardCount]
}

// RecordAndCount inserts the fingerprint, drops entries for the key that
// fall outside the window relative to ts, and returns how many entries
// with the same fingerprint (including the new one) remain inside it.
func (ws *WindowStore) RecordAndCount(userID, category string, fingerprint uint64, ts time.Time, window time.Duration) int {
	key := windowKey(userID, category)
	shard := ws.shardFor(key)
	cutoff := ts.Add(-window)

	shard.mu.Lock()
	defer shard.mu.Unlock()

	kept := shard.entries[key][:0]
	count := 1
	for _, e := range shard.entries[key] {
		if !e.insertedAt.After(cutoff) {
			continue
		}
		kept = append(kept, e)
		if e.fingerprint == fingerprint {
			count++
		}
	}
	kept = append(kept, windowEntry{fingerprint: fingerprint, insertedAt: ts})
	shard.entries[key] = kept

	return count
}

// Sweep reclaims entries older than maxAge and removes empty keys so
// inactive users do not grow memory without bound.
func (ws *WindowStore) Sweep(now time.Time, maxAge time.Duration) {
	cutoff := now.Add(-maxAge)
	for i := range ws.shards {
		shard := &ws.shards[i]
		shard.mu.Lock()
		for key, entries := range shard.entries {
			kept := entries[:0]
			for _, e := range entries {
				if e.insertedAt.After(cutoff) {
					kept = append(kept, e)
				}
			}
			if len(kept) == 0 {
				delete(shard.entries, key)
			} else {
				shard.entries[key] = kept
			}
		}
		shard.mu.Unlock()
	}
}

// Len returns the number of live entries across all shards.
func (ws *WindowStore) Len() int {
	total := 0
	for i := range ws.shards {
		shard := &ws.shards[i]
		shard.mu.Lock()
		for _, entries := range shard.entries {
			total += len(entries)
		}
		shard.mu.Unlock()
	}
	return total
}
