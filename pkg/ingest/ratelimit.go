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

package ingest

import (
	"context"
	"sync"
	"time"
)

// RateLimiter enforces a minimum interval between successive tokens,
// used to throttle page fetches against the wiki source. Unlike the
// teacher's quota-oriented pkg/ratelimit (token/request budgets across
// sessions and users), ingestion only needs simple pacing, so this is a
// small, purpose-built spacer rather than an adaptation of that package.
type RateLimiter struct {
	minInterval time.Duration

	mu   sync.Mutex
	next time.Time
}

// NewRateLimiter returns a limiter spacing tokens at least minInterval apart.
func NewRateLimiter(minInterval time.Duration) *RateLimiter {
	return &RateLimiter{minInterval: minInterval}
}

// Wait blocks until a token is available or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if r.minInterval <= 0 {
		return nil
	}

	r.mu.Lock()
	now := time.Now()
	wait := r.next.Sub(now)
	if wait < 0 {
		wait = 0
	}
	r.next = now.Add(wait).Add(r.minInterval)
	r.mu.Unlock()

	if wait == 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Semaphore bounds the number of concurrently in-flight page tasks.
//
// Grounded in the teacher's pkg/context/document_store_indexing.go
// buffered-channel-as-semaphore idiom.
type Semaphore struct {
	tokens chan struct{}
}

// NewSemaphore allows up to n concurrent holders.
func NewSemaphore(n int) *Semaphore {
	if n <= 0 {
		n = 1
	}
	return &Semaphore{tokens: make(chan struct{}, n)}
}

// Acquire blocks until a slot is free or ctx is done.
func (s *Semaphore) Acquire(ctx context.Context) error {
	select {
	case s.tokens <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot.
func (s *Semaphore) Release() {
	<-s.tokens
}
