package probe

import (
	"context"
	"math"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// minRateFloor is the minimum rate in requests per second. Throttling
	// never pushes the limiter below this.
	minRateFloor = 1.0

	// maxRateCeiling is the maximum rate in requests per second.
	maxRateCeiling = 200.0

	// emaAlpha is the smoothing factor for the RTT moving average.
	// 0.2 means ~20% weight to new observation, ~80% to historical average.
	emaAlpha = 0.2

	// recoveryFactor is the multiplier for rate increase on a fast, healthy response.
	recoveryFactor = 1.1

	// backoffFactor limits how much the rate can drop from slow RTT in one step.
	backoffFactor = 0.5

	// throttleFactor is applied when the platform signals throttling
	// (403, 429 or 5xx).
	throttleFactor = 0.7
)

// AdaptiveLimiter is a rate limiter shared by every session of a run. It
// slows down when the platform throttles or responds slowly and speeds back
// up on healthy responses.
type AdaptiveLimiter struct {
	limiter   *rate.Limiter
	targetRTT time.Duration

	mu          sync.RWMutex
	emaRTT      time.Duration
	currentRate float64
	fixed       bool
}

// NewAdaptiveLimiter creates an adaptive rate limiter with the given initial
// rate and target RTT.
func NewAdaptiveLimiter(initialRPS int, targetRTT time.Duration) *AdaptiveLimiter {
	r := clampRate(float64(initialRPS))
	return &AdaptiveLimiter{
		limiter:     rate.NewLimiter(rate.Limit(r), int(math.Ceil(r))),
		targetRTT:   targetRTT,
		emaRTT:      targetRTT,
		currentRate: r,
	}
}

// Wait blocks until the limiter allows the next request or ctx is done.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// Observe records the outcome of a completed request and adjusts the rate.
func (a *AdaptiveLimiter) Observe(rtt time.Duration, statusCode int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.fixed {
		return
	}

	if isThrottleStatus(statusCode) {
		a.setRateLocked(a.currentRate * throttleFactor)
		return
	}

	// new_ema = alpha * rtt + (1 - alpha) * old_ema
	a.emaRTT = time.Duration(emaAlpha*float64(rtt) + (1-emaAlpha)*float64(a.emaRTT))
	if a.emaRTT <= 0 {
		return
	}

	ratio := float64(a.targetRTT) / float64(a.emaRTT)
	newRate := a.currentRate * recoveryFactor
	if ratio < 1 {
		newRate = max(a.currentRate*ratio, a.currentRate*backoffFactor)
	}
	a.setRateLocked(newRate)
}

// SetRate pins the rate and disables adaptation. Used when the operator sets
// an explicit rate.
func (a *AdaptiveLimiter) SetRate(rps int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fixed = true
	a.currentRate = clampRate(float64(rps))
	a.limiter.SetLimit(rate.Limit(a.currentRate))
	a.limiter.SetBurst(int(math.Ceil(a.currentRate)))
}

// CurrentRate returns the current rate limit in requests per second.
func (a *AdaptiveLimiter) CurrentRate() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return int(math.Round(a.currentRate))
}

// CurrentEMA returns the moving average of observed RTT values.
func (a *AdaptiveLimiter) CurrentEMA() time.Duration {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.emaRTT
}

func (a *AdaptiveLimiter) setRateLocked(rps float64) {
	rps = clampRate(rps)
	// ignore changes under 0.1 RPS
	if math.Abs(rps-a.currentRate) <= 0.1 {
		return
	}
	a.currentRate = rps
	a.limiter.SetLimit(rate.Limit(rps))
	a.limiter.SetBurst(int(math.Ceil(rps)))
}

func isThrottleStatus(code int) bool {
	return code == http.StatusForbidden || code == http.StatusTooManyRequests || code >= 500
}

func clampRate(rps float64) float64 {
	return min(max(rps, minRateFloor), maxRateCeiling)
}
