// Package middleware provides the HTTP middleware for the arbitration API.
//
// Middleware stack includes:
//   - CORS: Cross-origin resource sharing with configurable origins
//   - RateLimit: Per-IP token bucket rate limiting of event and intent ingress
//   - GlobalRateLimit: One bucket shared by every client
//   - BodyLimit: Request body size cap
//
// Rate Limiting:
//   - Per-IP tracking; idle clients are swept after IdleTTL
//   - Token bucket algorithm (golang.org/x/time/rate)
//   - Configurable RPS and burst capacity
//
// Example Usage:
//
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
