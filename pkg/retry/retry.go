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

// Package retry provides exponential backoff with jitter for transient
// failures against the embedder, LLM, and wiki source collaborators.
//
// Grounded in the teacher's v2/rag/retry.go Retryer, generalized beyond
// RAG-specific operation names.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"
)

// Config configures retry behavior.
type Config struct {
	MaxRetries      int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	JitterFactor    float64
	RetryableErrors []string
}

// DefaultConfig returns sensible defaults for transport operations.
func DefaultConfig() Config {
	return Config{
		MaxRetries:   3,
		BaseDelay:    time.Second,
		MaxDelay:     30 * time.Second,
		JitterFactor: 0.2,
		RetryableErrors: []string{
			"connection refused",
			"connection reset",
			"timeout",
			"rate limit",
			"429",
			"500",
			"502",
			"503",
			"504",
			"temporarily unavailable",
			"too many requests",
			"eof",
		},
	}
}

// Retryer executes operations with exponential backoff and jitter.
type Retryer struct {
	config Config
}

func New(cfg Config) *Retryer {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 30 * time.Second
	}
	if cfg.JitterFactor <= 0 {
		cfg.JitterFactor = 0.2
	}
	return &Retryer{config: cfg}
}

// retryableChecker is satisfied by errors that know whether they are
// worth retrying (e.g. *ragerrors.TransportError).
type retryableChecker interface {
	Retryable() bool
}

// Do executes fn, retrying while the error looks transient, honoring
// ctx cancellation between attempts.
func (r *Retryer) Do(ctx context.Context, operation string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !r.isRetryable(err) {
			return err
		}
		if attempt >= r.config.MaxRetries {
			return &ExhaustedError{Operation: operation, Attempts: attempt + 1, LastError: err}
		}

		delay := r.calculateDelay(attempt)
		slog.Debug("retrying operation", "operation", operation, "attempt", attempt+1, "delay", delay, "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return lastErr
}

func (r *Retryer) isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var rc retryableChecker
	if errors.As(err, &rc) {
		return rc.Retryable()
	}
	errStr := strings.ToLower(err.Error())
	for _, pattern := range r.config.RetryableErrors {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}

func (r *Retryer) calculateDelay(attempt int) time.Duration {
	delay := time.Duration(math.Pow(2, float64(attempt))) * r.config.BaseDelay
	jitter := time.Duration(rand.Float64() * float64(delay) * r.config.JitterFactor)
	if rand.Float64() < 0.5 {
		delay -= jitter
	} else {
		delay += jitter
	}
	if delay > r.config.MaxDelay {
		delay = r.config.MaxDelay
	}
	return delay
}

// ExhaustedError is returned once the first attempt and all MaxRetries
// retries have failed with a retryable error.
type ExhaustedError struct {
	Operation string
	Attempts  int
	LastError error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: exhausted after %d attempt(s): %v", e.Operation, e.Attempts, e.LastError)
}

func (e *ExhaustedError) Unwrap() error { return e.LastError }
