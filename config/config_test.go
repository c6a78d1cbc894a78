package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_CreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)

	_, err = os.Stat(path)
	require.NoError(t, err, "default config file should have been written")

	assert.Equal(t, 7, cfg.FrameSkip)
	assert.Equal(t, "threshold", cfg.Policy)
	assert.Equal(t, 100, cfg.Alarm.CooldownSeconds)
	assert.Equal(t, "MJPG", cfg.Recording.Codec)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig_FileEnvAndFlagPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
  "frame_skip": 3,
  "policy": "trend",
  "detector": "hog",
  "cameras": [{"id": "front", "device": "0"}, {"id": "back", "device": "rtsp://cam/stream", "policy": "threshold"}],
  "alarm": {"cooldown_seconds": 42}
}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	t.Setenv("SECURITYCAM_DETECTOR", "haar_face")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("frame-skip", 7, "")
	require.NoError(t, flags.Parse([]string{"--frame-skip=5"}))

	cfg, err := LoadConfig(path, flags)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.FrameSkip, "flag wins over file")
	assert.Equal(t, "haar_face", cfg.Detector, "env wins over file")
	assert.Equal(t, "trend", cfg.Policy)
	assert.Equal(t, 42, cfg.Alarm.CooldownSeconds)
	assert.Equal(t, 90, cfg.Snapshot.HighQuality, "missing keys keep their defaults")

	require.Len(t, cfg.Cameras, 2)
	assert.Equal(t, "trend", cfg.CameraPolicy(cfg.Cameras[0]))
	assert.Equal(t, "threshold", cfg.CameraPolicy(cfg.Cameras[1]))
	assert.Equal(t, "rtsp://cam/stream", cfg.Cameras[1].Device)
}

func TestLoadConfig_UnchangedFlagKeepsFileValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"frame_skip": 3}`), 0644))

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("frame-skip", 7, "")
	require.NoError(t, flags.Parse(nil))

	cfg, err := LoadConfig(path, flags)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.FrameSkip)
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"frame_skip": `), 0644))

	_, err := LoadConfig(path, nil)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
		field  string
	}{
		{"zero frame skip", func(c *Config) { c.FrameSkip = 0 }, "frame_skip"},
		{"no cameras", func(c *Config) { c.Cameras = nil }, "cameras"},
		{"empty camera id", func(c *Config) { c.Cameras = []CameraConfig{{Device: "0"}} }, "cameras[0].id"},
		{"duplicate camera id", func(c *Config) {
			c.Cameras = []CameraConfig{{ID: "a", Device: "0"}, {ID: "a", Device: "1"}}
		}, "cameras[1].id"},
		{"unknown detector", func(c *Config) { c.Detector = "yolo" }, "cameras[0].detector"},
		{"unknown policy", func(c *Config) { c.Cameras[0].Policy = "random" }, "cameras[0].policy"},
		{"snapshot quality", func(c *Config) { c.Snapshot.LowQuality = 101 }, "snapshot.low_quality"},
		{"codec", func(c *Config) { c.Recording.Codec = "H26" }, "recording.codec"},
		{"mqtt without broker", func(c *Config) { c.MQTT.Enabled = true; c.MQTT.Broker = "" }, "mqtt.broker"},
		{"web port", func(c *Config) { c.Web.Port = 70000 }, "web.port"},
		{"log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			require.True(t, IsConfigurationError(err))

			var cfgErr *ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg := DefaultConfig()
	cfg.FrameSkip = 11
	cfg.Cameras = []CameraConfig{{ID: "garage", Device: "2", Detector: "hog"}}
	require.NoError(t, cfg.SaveConfig(path))

	loaded, err := LoadConfig(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 11, loaded.FrameSkip)
	assert.Equal(t, cfg.Cameras, loaded.Cameras)
	assert.Equal(t, "hog", loaded.CameraDetector(loaded.Cameras[0]))
}

func TestStaticSettingsProvider(t *testing.T) {
	p := NewStaticSettingsProvider(SnapshotConfig{LowQuality: 1, HighQuality: 2})
	assert.Equal(t, SnapshotConfig{LowQuality: 1, HighQuality: 2}, p.GetSettings())
}
