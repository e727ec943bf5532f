package resilience

import (
	"time"
)

// FromRetryConfig converts config values to a fixed-wait RetryConfig.
// Non-positive maxAttempts keeps the default; a negative waitMs keeps the
// default wait.
func FromRetryConfig(maxAttempts, waitMs int) RetryConfig {
	cfg := DefaultRetryConfig()
	if maxAttempts > 0 {
		cfg.MaxAttempts = maxAttempts
	}
	if waitMs >= 0 {
		cfg.Wait = time.Duration(waitMs) * time.Millisecond
	}
	return cfg
}

// FromCircuitConfig converts config values to a CircuitBreakerConfig. A
// threshold of zero disables the breaker.
func FromCircuitConfig(failureThreshold, cooldownSecs int) CircuitBreakerConfig {
	cfg := DefaultCircuitBreakerConfig()
	cfg.FailureThreshold = failureThreshold
	if cooldownSecs > 0 {
		cfg.Cooldown = time.Duration(cooldownSecs) * time.Second
	}
	return cfg
}
