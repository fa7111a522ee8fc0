package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
)

// Policy is the optional on-disk arbitration policy. Every field is
// optional; unset fields leave the environment value in place.
type Policy struct {
	MonitoredApps      []string    `yaml:"monitored_apps" toml:"monitored_apps"`
	InfrastructureApps []string    `yaml:"infrastructure_apps" toml:"infrastructure_apps"`
	Quota              QuotaPolicy `yaml:"quota" toml:"quota"`
	QuickTaskDuration  string      `yaml:"quick_task_duration" toml:"quick_task_duration"`
	SurfaceGuardTTL    string      `yaml:"surface_guard_ttl" toml:"surface_guard_ttl"`
	ActivityLease      string      `yaml:"activity_lease" toml:"activity_lease"`
}

// QuotaPolicy configures the global quick task quota.
type QuotaPolicy struct {
	Max    *int   `yaml:"max" toml:"max"`
	Window string `yaml:"window" toml:"window"`
}

// LoadPolicy reads a policy file, choosing the decoder by extension.
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	return ParsePolicy(filepath.Ext(path), data)
}

// ParsePolicy decodes policy bytes in the format named by ext
// (".yaml", ".yml" or ".toml").
func ParsePolicy(ext string, data []byte) (*Policy, error) {
	var p Policy
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("failed to parse yaml policy: %w", err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("failed to parse toml policy: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported policy format %q", ext)
	}
	return &p, nil
}

// ApplyPolicy overlays the non-empty policy fields onto the authority config.
func (c *Config) ApplyPolicy(p *Policy) error {
	if p == nil {
		return nil
	}
	if len(p.MonitoredApps) > 0 {
		c.Authority.MonitoredApps = p.MonitoredApps
	}
	if len(p.InfrastructureApps) > 0 {
		c.Authority.InfrastructureApps = p.InfrastructureApps
	}
	if p.Quota.Max != nil {
		c.Authority.QuotaMax = *p.Quota.Max
	}

	durations := []struct {
		name  string
		value string
		dst   *time.Duration
	}{
		{"quota.window", p.Quota.Window, &c.Authority.QuotaWindow},
		{"quick_task_duration", p.QuickTaskDuration, &c.Authority.QuickTaskDuration},
		{"surface_guard_ttl", p.SurfaceGuardTTL, &c.Authority.SurfaceGuardTTL},
		{"activity_lease", p.ActivityLease, &c.Authority.ActivityLease},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.value)
		if err != nil {
			return fmt.Errorf("invalid policy %s %q: %w", d.name, d.value, err)
		}
		*d.dst = parsed
	}
	return nil
}
