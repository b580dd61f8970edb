// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ParkHaven Contributors

package command

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Default rate limiting values.
const (
	// DefaultBurstCapacity is the maximum number of commands a member can
	// execute in a burst before rate limiting kicks in.
	DefaultBurstCapacity = 10

	// DefaultSustainedRate is the number of commands per second allowed as
	// sustained rate (token refill rate).
	DefaultSustainedRate = 2.0

	// MinBurstCapacity ensures burst capacity is at least 1.
	MinBurstCapacity = 1

	// MinSustainedRate ensures sustained rate is at least 0.1 tokens/second.
	MinSustainedRate = 0.1

	// CapabilityRateLimitBypass is the capability that exempts a member
	// from rate limiting when granted.
	CapabilityRateLimitBypass = "park.ratelimit.bypass"

	// DefaultCleanupInterval is the interval at which the background goroutine
	// runs to clean up stale member buckets.
	DefaultCleanupInterval = 5 * time.Minute

	// DefaultMemberMaxAge is the default maximum idle age for a member bucket
	// before it is eligible for cleanup.
	DefaultMemberMaxAge = time.Hour
)

// RateLimiterConfig configures the rate limiter.
type RateLimiterConfig struct {
	// BurstCapacity is the maximum number of commands allowed in a burst.
	// Defaults to DefaultBurstCapacity (10) if zero or negative.
	BurstCapacity int

	// SustainedRate is the number of commands per second allowed as sustained rate.
	// Defaults to DefaultSustainedRate (2.0) if zero or negative.
	SustainedRate float64

	// CleanupInterval is the interval at which background cleanup runs.
	// Defaults to DefaultCleanupInterval (5 minutes) if zero.
	CleanupInterval time.Duration

	// MemberMaxAge is the maximum idle age for a member bucket before cleanup
	// removes it. Defaults to DefaultMemberMaxAge (1 hour) if zero.
	MemberMaxAge time.Duration
}

// memberBucket tracks rate limiting state for a single member using the
// token bucket algorithm.
type memberBucket struct {
	tokens    float64
	lastCheck time.Time
}

// RateLimiter implements per-member rate limiting using a token bucket
// algorithm. It is safe for concurrent use.
//
// The RateLimiter runs a background goroutine to periodically clean up stale
// member buckets. Call Close() to stop the goroutine and release resources.
type RateLimiter struct {
	mu            sync.Mutex
	members       map[string]*memberBucket
	burstCapacity int
	sustainedRate float64 // tokens per second
	memberMaxAge  time.Duration

	stopChan chan struct{}
	wg       sync.WaitGroup

	// Metrics gauge for member count (nil if no registry provided)
	memberGauge prometheus.Gauge
}

// NewRateLimiter creates a new rate limiter with the given configuration.
// It starts a background goroutine for cleanup. Call Close() to stop it.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	return newRateLimiter(cfg, nil)
}

// NewRateLimiterWithRegistry creates a new rate limiter and registers a
// member count gauge with the provided Prometheus registry.
// It starts a background goroutine for cleanup. Call Close() to stop it.
func NewRateLimiterWithRegistry(cfg RateLimiterConfig, reg prometheus.Registerer) *RateLimiter {
	return newRateLimiter(cfg, reg)
}

func newRateLimiter(cfg RateLimiterConfig, reg prometheus.Registerer) *RateLimiter {
	burstCapacity := cfg.BurstCapacity
	if burstCapacity <= 0 {
		burstCapacity = DefaultBurstCapacity
	}
	if burstCapacity < MinBurstCapacity {
		burstCapacity = MinBurstCapacity
	}

	sustainedRate := cfg.SustainedRate
	if sustainedRate <= 0 {
		sustainedRate = DefaultSustainedRate
	}
	if sustainedRate < MinSustainedRate {
		sustainedRate = MinSustainedRate
	}

	cleanupInterval := cfg.CleanupInterval
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}

	memberMaxAge := cfg.MemberMaxAge
	if memberMaxAge <= 0 {
		memberMaxAge = DefaultMemberMaxAge
	}

	rl := &RateLimiter{
		members:       make(map[string]*memberBucket),
		burstCapacity: burstCapacity,
		sustainedRate: sustainedRate,
		memberMaxAge:  memberMaxAge,
		stopChan:      make(chan struct{}),
	}

	if reg != nil {
		rl.memberGauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "parkhaven_ratelimiter_members",
			Help: "Current number of tracked rate limiter members",
		})
		reg.MustRegister(rl.memberGauge)
	}

	rl.wg.Add(1)
	go rl.cleanupLoop(cleanupInterval)

	return rl
}

// Allow checks if a command is allowed for the given member.
// Returns (allowed, cooldownMs) where:
//   - allowed: true if the command should be executed
//   - cooldownMs: milliseconds until the next token is available (0 if allowed)
//
// Each call to Allow consumes one token if available. Tokens refill at the
// sustained rate, up to the burst capacity.
func (rl *RateLimiter) Allow(memberID string) (allowed bool, cooldownMs int64) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()

	bucket, exists := rl.members[memberID]
	if !exists {
		// New member starts with full bucket
		bucket = &memberBucket{
			tokens:    float64(rl.burstCapacity),
			lastCheck: now,
		}
		rl.members[memberID] = bucket
	}

	// Refill tokens based on elapsed time
	elapsed := now.Sub(bucket.lastCheck).Seconds()
	bucket.tokens += elapsed * rl.sustainedRate
	if bucket.tokens > float64(rl.burstCapacity) {
		bucket.tokens = float64(rl.burstCapacity)
	}
	bucket.lastCheck = now

	if bucket.tokens >= 1.0 {
		bucket.tokens -= 1.0
		return true, 0
	}

	// Calculate cooldown until next token
	deficit := 1.0 - bucket.tokens
	cooldownSeconds := deficit / rl.sustainedRate
	cooldownMs = int64(cooldownSeconds * 1000)

	return false, cooldownMs
}

// MemberCount returns the number of tracked members. Useful for testing and
// monitoring.
func (rl *RateLimiter) MemberCount() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.members)
}

// Cleanup removes member buckets idle since maxAge ago.
// This is called automatically by the background goroutine, but can also
// be called manually if immediate cleanup is desired.
func (rl *RateLimiter) Cleanup(maxAge time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	threshold := time.Now().Add(-maxAge)
	for memberID, bucket := range rl.members {
		if bucket.lastCheck.Before(threshold) {
			delete(rl.members, memberID)
		}
	}

	if rl.memberGauge != nil {
		rl.memberGauge.Set(float64(len(rl.members)))
	}
}

// cleanupLoop runs periodic cleanup in the background.
func (rl *RateLimiter) cleanupLoop(interval time.Duration) {
	defer rl.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopChan:
			return
		case <-ticker.C:
			rl.Cleanup(rl.memberMaxAge)
		}
	}
}

// Close stops the background cleanup goroutine and releases resources.
// It blocks until the goroutine has stopped.
func (rl *RateLimiter) Close() {
	close(rl.stopChan)
	rl.wg.Wait()
}
