package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Server config
	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)

	// Logging config
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	// Storage config
	assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, "focusgate.db", cfg.Storage.Path)

	// Authority config
	assert.Equal(t, 3, cfg.Authority.QuotaMax)
	assert.Equal(t, time.Duration(0), cfg.Authority.QuotaWindow)
	assert.Equal(t, 10*time.Second, cfg.Authority.SurfaceGuardTTL)
	assert.Equal(t, 3*time.Minute, cfg.Authority.QuickTaskDuration)
	assert.Equal(t, 30*time.Minute, cfg.Authority.ActivityLease)

	require.NoError(t, cfg.Validate())
}

func TestLoadMatchesDefault(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	def := Default()
	assert.Equal(t, def.Storage, cfg.Storage)
	assert.Equal(t, def.Authority.QuotaMax, cfg.Authority.QuotaMax)
	assert.Equal(t, def.Authority.SurfaceGuardTTL, cfg.Authority.SurfaceGuardTTL)
	assert.Equal(t, def.Authority.ActivityLease, cfg.Authority.ActivityLease)
	assert.Equal(t, def.Surface, cfg.Surface)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"PORT":                "9000",
		"LOG_LEVEL":           "debug",
		"STORAGE_DRIVER":      "memory",
		"QUOTA_MAX":           "5",
		"QUOTA_WINDOW":        "15m",
		"SURFACE_GUARD_TTL":   "4s",
		"QUICK_TASK_DURATION": "90s",
		"ACTIVITY_LEASE":      "45m",
		"MONITORED_APPS":      "com.a,com.b",
		"INFRASTRUCTURE_APPS": "com.android.systemui*",
		"SURFACE_HEARTBEAT":   "1s",
	}
	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, 5, cfg.Authority.QuotaMax)
	assert.Equal(t, 15*time.Minute, cfg.Authority.QuotaWindow)
	assert.Equal(t, 4*time.Second, cfg.Authority.SurfaceGuardTTL)
	assert.Equal(t, 90*time.Second, cfg.Authority.QuickTaskDuration)
	assert.Equal(t, 45*time.Minute, cfg.Authority.ActivityLease)
	assert.Equal(t, []string{"com.a", "com.b"}, cfg.Authority.MonitoredApps)
	assert.Equal(t, []string{"com.android.systemui*"}, cfg.Authority.InfrastructureApps)
	assert.Equal(t, time.Second, cfg.Surface.HeartbeatInterval)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unknown driver", "STORAGE_DRIVER", "cassandra"},
		{"negative quota", "QUOTA_MAX", "-1"},
		{"zero guard ttl", "SURFACE_GUARD_TTL", "0s"},
		{"zero activity lease", "ACTIVITY_LEASE", "0s"},
		{"unparseable duration", "QUICK_TASK_DURATION", "soon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadOrDefaultFallsBack(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "cassandra")

	cfg := LoadOrDefault()
	assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
}

func TestParsePolicy(t *testing.T) {
	yamlDoc := []byte(`
monitored_apps: [com.instagram.android, com.twitter.android]
infrastructure_apps: ["com.android.systemui*"]
quota:
  max: 2
  window: 15m
quick_task_duration: 2m
`)
	tomlDoc := []byte(`
monitored_apps = ["com.instagram.android", "com.twitter.android"]
infrastructure_apps = ["com.android.systemui*"]
quick_task_duration = "2m"

[quota]
max = 2
window = "15m"
`)

	tests := []struct {
		name string
		ext  string
		data []byte
	}{
		{"yaml", ".yaml", yamlDoc},
		{"yml", ".yml", yamlDoc},
		{"toml", ".toml", tomlDoc},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ParsePolicy(tt.ext, tt.data)
			require.NoError(t, err)

			assert.Equal(t, []string{"com.instagram.android", "com.twitter.android"}, p.MonitoredApps)
			assert.Equal(t, []string{"com.android.systemui*"}, p.InfrastructureApps)
			require.NotNil(t, p.Quota.Max)
			assert.Equal(t, 2, *p.Quota.Max)

			cfg := Default()
			require.NoError(t, cfg.ApplyPolicy(p))
			assert.Equal(t, 2, cfg.Authority.QuotaMax)
			assert.Equal(t, 15*time.Minute, cfg.Authority.QuotaWindow)
			assert.Equal(t, 2*time.Minute, cfg.Authority.QuickTaskDuration)
			// Unset fields keep their previous value.
			assert.Equal(t, 10*time.Second, cfg.Authority.SurfaceGuardTTL)
		})
	}
}

func TestParsePolicyErrors(t *testing.T) {
	_, err := ParsePolicy(".json", []byte(`{}`))
	assert.Error(t, err)

	p, err := ParsePolicy(".yaml", []byte("quick_task_duration: whenever\n"))
	require.NoError(t, err)
	assert.Error(t, Default().ApplyPolicy(p))
}

func TestLoadWithPolicyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("quota:\n  max: 7\n"), 0o600))

	t.Setenv("POLICY_FILE", path)
	t.Setenv("QUOTA_MAX", "1")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Authority.QuotaMax, "policy file overrides environment")
}
