// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package intent

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru"
)

// CacheStats reports classification-cache hit/miss accounting.
type CacheStats struct {
	Size    int
	MaxSize int
	Hits    int64
	Misses  int64
}

// HitRate returns Hits / (Hits + Misses), or 0 when nothing has been looked
// up yet.
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// cache memoizes classified intents by normalized message, evicting least
// recently used entries once it reaches capacity. The underlying
// hashicorp/golang-lru v0.5.4 Cache is non-generic and doesn't expose
// hit/miss counters itself, so this wrapper tracks them separately.
type cache struct {
	lru     *lru.Cache
	maxSize int
	hits    int64
	misses  int64
}

func newCache(capacity int) *cache {
	if capacity <= 0 {
		capacity = 500
	}
	l, err := lru.New(capacity)
	if err != nil {
		// Only invalid (<=0) size causes an error, already guarded above.
		panic(err)
	}
	return &cache{lru: l, maxSize: capacity}
}

// normalize lowercases and collapses whitespace exactly like the reference
// classifier cache, then MD5-hashes the result for the lookup key.
func normalize(message string) string {
	fields := strings.Fields(strings.ToLower(message))
	joined := strings.Join(fields, " ")
	sum := md5.Sum([]byte(joined))
	return hex.EncodeToString(sum[:])
}

func (c *cache) get(message string) ([]Intent, bool) {
	key := normalize(message)
	v, ok := c.lru.Get(key)
	if !ok {
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}
	atomic.AddInt64(&c.hits, 1)
	intents, _ := v.([]Intent)
	return intents, true
}

func (c *cache) set(message string, intents []Intent) {
	key := normalize(message)
	c.lru.Add(key, intents)
}

func (c *cache) stats() CacheStats {
	return CacheStats{
		Size:    c.lru.Len(),
		MaxSize: c.maxSize,
		Hits:    atomic.LoadInt64(&c.hits),
		Misses:  atomic.LoadInt64(&c.misses),
	}
}
