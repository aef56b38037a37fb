// Package middleware provides request throttling for the HTTP API.
//
// RateLimit keys callers by client IP and asks a Limiter whether to admit
// them. RateLimiter is an in-process token bucket; DistributedRateLimiter
// shares a fixed-window counter through Redis across instances.
//
//	limiter := middleware.NewDistributedRateLimiter(redisClient, &middleware.RateLimitConfig{
//		RequestsPerWindow: 600,
//		WindowDuration:    time.Minute,
//		BurstSize:         50,
//	}, "")
//	router.Use(middleware.RateLimit(limiter))
//
// Rejected requests get 429 with Retry-After. When Redis errors the request
// is admitted and a warning is logged.
package middleware
