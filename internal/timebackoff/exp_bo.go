package timebackoff

import (
	"math/rand/v2"
	"time"
)

const (
	BaseDelay    = 1 * time.Second
	JitterFactor = 0.1 // Jitter (10% der Verzögerung)

	maxShift = 30 // 2^30 s passt noch in time.Duration
)

// ExponentialBackoff liefert die Wartezeit vor dem nächsten Versuch, begrenzt auf maxDelay.
func ExponentialBackoff(attempts int, maxDelay time.Duration) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > maxShift {
		attempts = maxShift
	}
	delay := time.Duration(1<<attempts) * BaseDelay
	if maxDelay > 0 {
		delay = min(delay, maxDelay)
	}
	return delay
}

// WithJitter fügt bis zu JitterFactor zufällige Verzögerung hinzu.
func WithJitter(delay time.Duration) time.Duration {
	jitter := time.Duration(rand.Float64() * JitterFactor * float64(delay))
	return delay + jitter
}

// Delay liefert die Wartezeit samt Jitter. Auch mit Jitter wird maxDelay nicht überschritten.
func Delay(attempts int, maxDelay time.Duration) time.Duration {
	delay := WithJitter(ExponentialBackoff(attempts, maxDelay))
	if maxDelay > 0 {
		delay = min(delay, maxDelay)
	}
	return delay
}
