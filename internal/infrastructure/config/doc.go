// Package config provides 12-factor configuration management for the
// arbitration service and its UI surface client.
//
// Configuration is loaded from environment variables with sensible defaults.
// An optional policy file (YAML or TOML, chosen by extension) can override
// the arbitration settings.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host)
//   - Logging: Log level and output format
//   - RateLimit: Per-IP rate limiting of event ingress
//   - Storage: Persistent store driver (sqlite, redis, memory)
//   - Authority: Quota, quick task duration, surface guard TTL, app lists
//   - Surface: Authority URL and heartbeat interval for the surface client
//
// Example Usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Printf("Server running on %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//
// Environment Variables:
//   - PORT, HOST
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
//   - STORAGE_DRIVER, STORAGE_PATH, REDIS_URL, REDIS_PREFIX
//   - QUOTA_MAX, QUOTA_WINDOW, SURFACE_GUARD_TTL, QUICK_TASK_DURATION
//   - POLICY_FILE, MONITORED_APPS, INFRASTRUCTURE_APPS
//   - SURFACE_AUTHORITY_URL, SURFACE_HEARTBEAT
//
// Policy file example (policy.yaml):
//
//	monitored_apps: [com.instagram.android, com.twitter.android]
//	infrastructure_apps: ["com.android.systemui*"]
//	quota:
//	  max: 2
//	  window: 15m
//	quick_task_duration: 3m
package config
