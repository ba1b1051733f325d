// Package resilience provides reliability and fault tolerance patterns for
// the outer edges of the system. It includes circuit breakers and retry
// logic used when calling the remote fallback providers.
//
// The local inference path has its own health-window policy in
// internal/health; the patterns here protect the cloud APIs the system
// falls back to when the local endpoint is down.
//
// Usage Example:
//
//	cb := circuitbreaker.New(circuitbreaker.ClaudeFallbackConfig())
//	result, err := cb.Execute(func() (interface{}, error) {
//	    return callFallbackAPI()
//	})
//
//	retryConfig := retry.FallbackAPIConfig()
//	err := retry.WithBackoff(ctx, retryConfig, func() error {
//	    return performOperation()
//	})
package resilience
