// Package config loads the YAML configuration surface for falldetectd,
// substituting ${VAR}-style environment references before parsing, and
// validates the derived invariants that make the pipeline's timing
// constants mutually consistent.
package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Camera describes the frame source's nominal characteristics.
type Camera struct {
	Source     string `yaml:"source"`
	FPS        float64 `yaml:"fps"`
	Width      int     `yaml:"width"`
	Height     int     `yaml:"height"`
}

// Detection selects bbox vs. pose mode and the smoothing parameters used
// when pose mode is active.
type Detection struct {
	UsePose             bool    `yaml:"use_pose"`
	EnableSmoothing     bool    `yaml:"enable_smoothing"`
	SmoothingMinCutoff  float64 `yaml:"smoothing_min_cutoff"`
	SmoothingBeta       float64 `yaml:"smoothing_beta"`
	SmoothingDCutoff    float64 `yaml:"smoothing_d_cutoff"`
	MinVisibility       float64 `yaml:"min_visibility"`
}

// Analysis holds the rule-engine and debounce thresholds.
type Analysis struct {
	FallThreshold    float64 `yaml:"fall_threshold"`     // bbox aspect ratio
	TorsoAngle       float64 `yaml:"torso_angle"`        // pose mode
	DelaySec         float64 `yaml:"delay_sec"`
	SameEventWindow  float64 `yaml:"same_event_window"`
	ReNotifyInterval float64 `yaml:"re_notify_interval"`
}

// Recording controls the rolling buffer and clip extraction window.
type Recording struct {
	BufferSeconds float64 `yaml:"buffer_seconds"`
	ClipBeforeSec float64 `yaml:"clip_before_sec"`
	ClipAfterSec  float64 `yaml:"clip_after_sec"`
}

// Lifecycle controls the skeleton collector.
type Lifecycle struct {
	AutoSkeletonExtract bool   `yaml:"auto_skeleton_extract"`
	SkeletonOutputDir   string `yaml:"skeleton_output_dir"`
	MaxWorkers          int    `yaml:"max_workers"`
	ExtractorEngine     string `yaml:"extractor_engine"`
	ExtractorModel      string `yaml:"extractor_model"`
}

// Notification controls the push notifier.
type Notification struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// RedisConfig controls the optional durable pending-retry-queue backend
// for the push notifier. Addr empty disables it (in-memory queue only).
type RedisConfig struct {
	Addr       string `yaml:"addr"`
	PendingKey string `yaml:"pending_key"`
	PendingTTL int    `yaml:"pending_ttl_sec"`
}

// StoreConfig controls the Postgres event store.
type StoreConfig struct {
	DSN string `yaml:"dsn"`
}

// LogConfig controls the shared zap logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "console"
}

// Config is the full core-relevant configuration surface.
type Config struct {
	Camera       Camera       `yaml:"camera"`
	Detection    Detection    `yaml:"detection"`
	Analysis     Analysis     `yaml:"analysis"`
	Recording    Recording    `yaml:"recording"`
	Lifecycle    Lifecycle    `yaml:"lifecycle"`
	Notification Notification `yaml:"notification"`
	Store        StoreConfig  `yaml:"store"`
	Redis        RedisConfig  `yaml:"redis"`
	Log          LogConfig    `yaml:"log"`
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// substituteEnv replaces every ${VAR} occurrence in s with the value of
// the environment variable VAR, leaving the placeholder untouched when
// the variable is unset.
func substituteEnv(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := match[2 : len(match)-1]
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		return match
	})
}

// Load reads and parses the YAML file at path, substitutes environment
// references, applies defaults for anything left zero, and validates the
// buffer-sizing invariant.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	substituted := substituteEnv(string(raw))

	var cfg Config
	if err := yaml.Unmarshal([]byte(substituted), &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(c *Config) {
	if c.Camera.FPS == 0 {
		c.Camera.FPS = 15
	}
	if c.Analysis.FallThreshold == 0 {
		c.Analysis.FallThreshold = 1.3
	}
	if c.Analysis.TorsoAngle == 0 {
		c.Analysis.TorsoAngle = 60
	}
	if c.Analysis.DelaySec == 0 {
		c.Analysis.DelaySec = 3.0
	}
	if c.Analysis.SameEventWindow == 0 {
		c.Analysis.SameEventWindow = 60.0
	}
	if c.Analysis.ReNotifyInterval == 0 {
		c.Analysis.ReNotifyInterval = 120.0
	}
	if c.Recording.BufferSeconds == 0 {
		c.Recording.BufferSeconds = 15
	}
	if c.Recording.ClipBeforeSec == 0 {
		c.Recording.ClipBeforeSec = 5
	}
	if c.Recording.ClipAfterSec == 0 {
		c.Recording.ClipAfterSec = 5
	}
	if c.Detection.SmoothingMinCutoff == 0 {
		c.Detection.SmoothingMinCutoff = 1.0
	}
	if c.Detection.SmoothingBeta == 0 {
		c.Detection.SmoothingBeta = 0.007
	}
	if c.Detection.SmoothingDCutoff == 0 {
		c.Detection.SmoothingDCutoff = 1.0
	}
	if c.Detection.MinVisibility == 0 {
		c.Detection.MinVisibility = 0.3
	}
	if c.Lifecycle.MaxWorkers == 0 {
		c.Lifecycle.MaxWorkers = 2
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Redis.PendingKey == "" {
		c.Redis.PendingKey = "falldetectd:notifier:pending"
	}
	if c.Redis.PendingTTL == 0 {
		c.Redis.PendingTTL = 86400
	}
}

// Validate checks the buffer-sizing invariant from the recording window:
// the buffer must outlast the confirmation delay plus the clip window
// plus a margin, or the clip extractor would systematically starve.
func (c *Config) Validate() error {
	const margin = 2.0
	required := c.Analysis.DelaySec + c.Recording.ClipBeforeSec + c.Recording.ClipAfterSec + margin
	if c.Recording.BufferSeconds < required {
		return fmt.Errorf("config: recording.buffer_seconds (%.1f) must be >= delay_sec+clip_before_sec+clip_after_sec+%.1f (%.1f)",
			c.Recording.BufferSeconds, margin, required)
	}
	return nil
}
