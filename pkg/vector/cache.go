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

package vector

import (
	"fmt"
	"hash/fnv"
	"sort"
)

// fifoCache is a bounded, first-in-first-out cache of search results.
// It holds no TTL of its own — Store clears it wholesale on every write,
// since a stale cached search result is worse than a cache miss.
type fifoCache struct {
	capacity int
	order    []string
	entries  map[string][]Result
}

func newFIFOCache(capacity int) *fifoCache {
	if capacity <= 0 {
		capacity = 128
	}
	return &fifoCache{
		capacity: capacity,
		entries:  make(map[string][]Result),
	}
}

func (c *fifoCache) get(key string) ([]Result, bool) {
	v, ok := c.entries[key]
	return v, ok
}

func (c *fifoCache) put(key string, results []Result) {
	if _, exists := c.entries[key]; !exists {
		if len(c.order) >= c.capacity {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
		c.order = append(c.order, key)
	}
	c.entries[key] = results
}

func (c *fifoCache) clear() {
	c.order = nil
	c.entries = make(map[string][]Result)
}

// cacheKey derives a compact, stable key from a query vector, topK, and
// filter so identical repeated queries hit the cache without storing
// the full vector as the key.
func cacheKey(vector []float32, topK int, filter map[string]any) string {
	h := fnv.New64a()
	for _, v := range vector {
		fmt.Fprintf(h, "%.6f:", v)
	}
	fmt.Fprintf(h, "|%d|", topK)

	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(h, "%s=%v;", k, filter[k])
	}
	return fmt.Sprintf("%x", h.Sum64())
}
