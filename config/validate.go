package config

import (
	"fmt"
	"strings"

	"github.com/yeti47/securitycam/ccc/logging"
	"github.com/yeti47/securitycam/detection"
	eventlevel "github.com/yeti47/securitycam/event-level"
)

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.FrameSkip < 1 {
		return NewConfigurationError("frame_skip", fmt.Sprintf("must be at least 1, got %d", c.FrameSkip))
	}
	if len(c.Cameras) == 0 {
		return NewConfigurationError("cameras", "at least one camera is required")
	}

	seen := make(map[string]bool, len(c.Cameras))
	for i, cam := range c.Cameras {
		field := fmt.Sprintf("cameras[%d]", i)
		if strings.TrimSpace(cam.ID) == "" {
			return NewConfigurationError(field+".id", "must not be empty")
		}
		if seen[cam.ID] {
			return NewConfigurationError(field+".id", "duplicate camera id "+cam.ID)
		}
		seen[cam.ID] = true

		if _, err := detection.ParseKind(c.CameraDetector(cam)); err != nil {
			return NewConfigurationError(field+".detector", err.Error())
		}
		if _, err := eventlevel.ParsePolicyKind(c.CameraPolicy(cam)); err != nil {
			return NewConfigurationError(field+".policy", err.Error())
		}
	}

	if c.OutputDirectory == "" {
		return NewConfigurationError("output_directory", "must not be empty")
	}
	if c.PollIntervalMillis <= 0 {
		return NewConfigurationError("poll_interval_millis", "must be positive")
	}
	if c.SourceRetryMillis < 0 {
		return NewConfigurationError("source_retry_millis", "must not be negative")
	}
	if q := c.Snapshot.LowQuality; q < 1 || q > 100 {
		return NewConfigurationError("snapshot.low_quality", fmt.Sprintf("must be between 1 and 100, got %d", q))
	}
	if q := c.Snapshot.HighQuality; q < 1 || q > 100 {
		return NewConfigurationError("snapshot.high_quality", fmt.Sprintf("must be between 1 and 100, got %d", q))
	}
	if c.Recording.FrameRate <= 0 {
		return NewConfigurationError("recording.frame_rate", "must be positive")
	}
	if c.Recording.Width <= 0 || c.Recording.Height <= 0 {
		return NewConfigurationError("recording", fmt.Sprintf("invalid resolution %dx%d", c.Recording.Width, c.Recording.Height))
	}
	if len(c.Recording.Codec) != 4 {
		return NewConfigurationError("recording.codec", fmt.Sprintf("expected a FourCC, got %q", c.Recording.Codec))
	}
	if c.Alarm.CooldownSeconds < 0 {
		return NewConfigurationError("alarm.cooldown_seconds", "must not be negative")
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return NewConfigurationError("mqtt.broker", "required when mqtt is enabled")
	}
	if c.Web.Enabled && (c.Web.Port <= 0 || c.Web.Port > 65535) {
		return NewConfigurationError("web.port", fmt.Sprintf("invalid web port: %d", c.Web.Port))
	}
	if c.Web.MaxAuthFailures < 0 {
		return NewConfigurationError("web.max_auth_failures", "must not be negative")
	}
	if c.Web.MaxAuthFailures > 0 && c.Web.AuthFailureWindowSecs <= 0 {
		return NewConfigurationError("web.auth_failure_window_secs", "must be positive when a lockout is configured")
	}
	if _, err := logging.ParseLogLevel(c.LogLevel); err != nil {
		return NewConfigurationError("log_level", err.Error())
	}

	return nil
}
