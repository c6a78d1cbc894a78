package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. SECURITYCAM_FRAME_SKIP.
const EnvPrefix = "SECURITYCAM"

// Config holds the configuration of the camera system.
type Config struct {
	Cameras         []CameraConfig `json:"cameras" mapstructure:"cameras"`
	FrameSkip       int            `json:"frame_skip" mapstructure:"frame_skip"`             // Every n-th frame is run through the detector
	Detector        string         `json:"detector" mapstructure:"detector"`                 // haar_upperbody, haar_frontalface or hog
	Policy          string         `json:"policy" mapstructure:"policy"`                     // threshold or trend
	CascadeDir      string         `json:"cascade_dir" mapstructure:"cascade_dir"`           // Directory holding the Haar cascade files
	OutputDirectory string         `json:"output_directory" mapstructure:"output_directory"` // Snapshots and recordings are written below this directory

	PollIntervalMillis  int `json:"poll_interval_millis" mapstructure:"poll_interval_millis"`   // How often the level observer polls
	SourceRetryMillis   int `json:"source_retry_millis" mapstructure:"source_retry_millis"`     // Back-off after the camera was unavailable
	ShutdownTimeoutSecs int `json:"shutdown_timeout_secs" mapstructure:"shutdown_timeout_secs"` // Upper bound for a graceful shutdown

	Snapshot       SnapshotConfig       `json:"snapshot" mapstructure:"snapshot"`
	Recording      RecordingConfig      `json:"recording" mapstructure:"recording"`
	PostProcessing PostProcessingConfig `json:"post_processing" mapstructure:"post_processing"`
	Alarm          AlarmConfig          `json:"alarm" mapstructure:"alarm"`
	MQTT           MQTTConfig           `json:"mqtt" mapstructure:"mqtt"`
	Web            WebConfig            `json:"web" mapstructure:"web"`

	JournalPath string `json:"journal_path" mapstructure:"journal_path"` // SQLite event journal, empty disables it
	LogPath     string `json:"log_path" mapstructure:"log_path"`
	LogLevel    string `json:"log_level" mapstructure:"log_level"`
}

// CameraConfig describes one camera. Empty detector and policy fall back to the global values.
type CameraConfig struct {
	ID       string `json:"id" mapstructure:"id"`
	Device   string `json:"device" mapstructure:"device"` // Camera index ("0") or a stream URL
	Detector string `json:"detector,omitempty" mapstructure:"detector"`
	Policy   string `json:"policy,omitempty" mapstructure:"policy"`
}

type SnapshotConfig struct {
	LowQuality  int `json:"low_quality" mapstructure:"low_quality"`
	HighQuality int `json:"high_quality" mapstructure:"high_quality"`
}

type RecordingConfig struct {
	Codec     string  `json:"codec" mapstructure:"codec"`
	FrameRate float64 `json:"frame_rate" mapstructure:"frame_rate"`
	Width     int     `json:"width" mapstructure:"width"`
	Height    int     `json:"height" mapstructure:"height"`
}

type PostProcessingConfig struct {
	Enabled      bool   `json:"enabled" mapstructure:"enabled"`
	OutputFormat string `json:"output_format" mapstructure:"output_format"`
	OutputCodec  string `json:"output_codec" mapstructure:"output_codec"`
	VideoBitRate string `json:"video_bit_rate" mapstructure:"video_bit_rate"`
	Grayscale    bool   `json:"grayscale" mapstructure:"grayscale"`
	KeepRaw      bool   `json:"keep_raw" mapstructure:"keep_raw"`
}

type AlarmConfig struct {
	CooldownSeconds    int      `json:"cooldown_seconds" mapstructure:"cooldown_seconds"`         // Minimum time between two alarms of a camera
	SendTimeoutSeconds int      `json:"send_timeout_seconds" mapstructure:"send_timeout_seconds"` // Upper bound for one delivery attempt
	AccountFile        string   `json:"account_file" mapstructure:"account_file"`                 // YAML file holding the SMTP account and recipients
	Secret             string   `json:"secret" mapstructure:"secret"`                             // Secret used to seal the SMTP password
	NotifyURLs         []string `json:"notify_urls" mapstructure:"notify_urls"`                   // Additional shoutrrr service URLs
}

type MQTTConfig struct {
	Enabled     bool   `json:"enabled" mapstructure:"enabled"`
	Broker      string `json:"broker" mapstructure:"broker"`
	ClientID    string `json:"client_id" mapstructure:"client_id"`
	Username    string `json:"username" mapstructure:"username"`
	Password    string `json:"password" mapstructure:"password"`
	TopicPrefix string `json:"topic_prefix" mapstructure:"topic_prefix"`
}

type WebConfig struct {
	Enabled        bool     `json:"enabled" mapstructure:"enabled"`
	Addr           string   `json:"addr" mapstructure:"addr"`
	Port           int      `json:"port" mapstructure:"port"`
	APIToken       string   `json:"api_token" mapstructure:"api_token"`             // Bearer token for the control endpoints, empty to disable
	TrustedProxies []string `json:"trusted_proxies" mapstructure:"trusted_proxies"` // Proxies whose forwarded headers gin trusts

	MaxAuthFailures       int `json:"max_auth_failures" mapstructure:"max_auth_failures"`               // Failed token checks before an address is locked out, 0 disables
	AuthFailureWindowSecs int `json:"auth_failure_window_secs" mapstructure:"auth_failure_window_secs"` // Window the failures are counted in
}

func (w WebConfig) AuthFailureWindow() time.Duration {
	return time.Duration(w.AuthFailureWindowSecs) * time.Second
}

// ListenAddr returns the address the web server binds to.
func (w WebConfig) ListenAddr() string {
	return fmt.Sprintf("%s:%d", w.Addr, w.Port)
}

// DefaultConfig returns a new Config with default values
func DefaultConfig() *Config {

	dataDir := "."

	homeDir, err := os.UserHomeDir()
	if err == nil && homeDir != "" {
		dataDir = filepath.Join(homeDir, "securitycam")
	}

	return &Config{
		Cameras:             []CameraConfig{{ID: "0", Device: "0"}},
		FrameSkip:           7,
		Detector:            "haar_upperbody",
		Policy:              "threshold",
		CascadeDir:          "/usr/share/opencv4/haarcascades",
		OutputDirectory:     filepath.Join(dataDir, "output"),
		PollIntervalMillis:  10,
		SourceRetryMillis:   500,
		ShutdownTimeoutSecs: 10,
		Snapshot: SnapshotConfig{
			LowQuality:  50,
			HighQuality: 90,
		},
		Recording: RecordingConfig{
			Codec:     "MJPG",
			FrameRate: 12,
			Width:     1280,
			Height:    720,
		},
		PostProcessing: PostProcessingConfig{
			Enabled:      false,
			OutputFormat: "mp4",
			OutputCodec:  "libx264",
			VideoBitRate: "1000k",
			KeepRaw:      true,
		},
		Alarm: AlarmConfig{
			CooldownSeconds:    100,
			SendTimeoutSeconds: 30,
			AccountFile:        filepath.Join(dataDir, "alarm.yaml"),
		},
		MQTT: MQTTConfig{
			Enabled:     false,
			Broker:      "tcp://localhost:1883",
			ClientID:    "securitycam",
			TopicPrefix: "securitycam",
		},
		Web: WebConfig{
			Enabled:               true,
			Addr:                  "127.0.0.1",
			Port:                  8080,
			MaxAuthFailures:       5,
			AuthFailureWindowSecs: 300,
		},
		JournalPath: filepath.Join(dataDir, "securitycam.db"),
		LogPath:     "logs",
		LogLevel:    "info",
	}
}

// DefaultConfigPath returns config.json inside ~/securitycam, or in the working
// directory when there is no home directory.
func DefaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil || homeDir == "" {
		return "config.json"
	}
	return filepath.Join(homeDir, "securitycam", "config.json")
}

// FlagKeys maps command line flag names to configuration keys.
var FlagKeys = map[string]string{
	"frame-skip": "frame_skip",
	"detector":   "detector",
	"policy":     "policy",
	"output":     "output_directory",
	"log-level":  "log_level",
	"web-port":   "web.port",
	"journal":    "journal_path",
}

// LoadConfig reads the configuration from a JSON file, environment variables and the
// flags named in FlagKeys, in increasing order of precedence. A missing file is
// created with the default values.
func LoadConfig(path string, flags *pflag.FlagSet) (*Config, error) {
	if path == "" {
		path = DefaultConfigPath()
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range FlagKeys {
			if flag := flags.Lookup(name); flag != nil {
				if err := v.BindPFlag(key, flag); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := DefaultConfig().SaveConfig(path); err != nil {
			return nil, fmt.Errorf("failed to create default config file: %w", err)
		}
		fmt.Printf("Default config file created at %s\n", path)
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	return config, nil
}

// setDefaults registers every leaf of defaults with v so that env variables and flags
// can override keys that are absent from the file.
func setDefaults(v *viper.Viper, defaults *Config) {
	v.SetDefault("cameras", defaults.Cameras)
	v.SetDefault("frame_skip", defaults.FrameSkip)
	v.SetDefault("detector", defaults.Detector)
	v.SetDefault("policy", defaults.Policy)
	v.SetDefault("cascade_dir", defaults.CascadeDir)
	v.SetDefault("output_directory", defaults.OutputDirectory)
	v.SetDefault("poll_interval_millis", defaults.PollIntervalMillis)
	v.SetDefault("source_retry_millis", defaults.SourceRetryMillis)
	v.SetDefault("shutdown_timeout_secs", defaults.ShutdownTimeoutSecs)

	v.SetDefault("snapshot.low_quality", defaults.Snapshot.LowQuality)
	v.SetDefault("snapshot.high_quality", defaults.Snapshot.HighQuality)

	v.SetDefault("recording.codec", defaults.Recording.Codec)
	v.SetDefault("recording.frame_rate", defaults.Recording.FrameRate)
	v.SetDefault("recording.width", defaults.Recording.Width)
	v.SetDefault("recording.height", defaults.Recording.Height)

	v.SetDefault("post_processing.enabled", defaults.PostProcessing.Enabled)
	v.SetDefault("post_processing.output_format", defaults.PostProcessing.OutputFormat)
	v.SetDefault("post_processing.output_codec", defaults.PostProcessing.OutputCodec)
	v.SetDefault("post_processing.video_bit_rate", defaults.PostProcessing.VideoBitRate)
	v.SetDefault("post_processing.grayscale", defaults.PostProcessing.Grayscale)
	v.SetDefault("post_processing.keep_raw", defaults.PostProcessing.KeepRaw)

	v.SetDefault("alarm.cooldown_seconds", defaults.Alarm.CooldownSeconds)
	v.SetDefault("alarm.send_timeout_seconds", defaults.Alarm.SendTimeoutSeconds)
	v.SetDefault("alarm.account_file", defaults.Alarm.AccountFile)
	v.SetDefault("alarm.secret", defaults.Alarm.Secret)
	v.SetDefault("alarm.notify_urls", defaults.Alarm.NotifyURLs)

	v.SetDefault("mqtt.enabled", defaults.MQTT.Enabled)
	v.SetDefault("mqtt.broker", defaults.MQTT.Broker)
	v.SetDefault("mqtt.client_id", defaults.MQTT.ClientID)
	v.SetDefault("mqtt.username", defaults.MQTT.Username)
	v.SetDefault("mqtt.password", defaults.MQTT.Password)
	v.SetDefault("mqtt.topic_prefix", defaults.MQTT.TopicPrefix)

	v.SetDefault("web.enabled", defaults.Web.Enabled)
	v.SetDefault("web.addr", defaults.Web.Addr)
	v.SetDefault("web.port", defaults.Web.Port)
	v.SetDefault("web.api_token", defaults.Web.APIToken)
	v.SetDefault("web.trusted_proxies", defaults.Web.TrustedProxies)
	v.SetDefault("web.max_auth_failures", defaults.Web.MaxAuthFailures)
	v.SetDefault("web.auth_failure_window_secs", defaults.Web.AuthFailureWindowSecs)

	v.SetDefault("journal_path", defaults.JournalPath)
	v.SetDefault("log_path", defaults.LogPath)
	v.SetDefault("log_level", defaults.LogLevel)
}

// SaveConfig saves the configuration to a JSON file
func (c *Config) SaveConfig(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMillis) * time.Millisecond
}

func (c *Config) SourceRetryInterval() time.Duration {
	return time.Duration(c.SourceRetryMillis) * time.Millisecond
}

func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSecs) * time.Second
}

func (a AlarmConfig) Cooldown() time.Duration {
	return time.Duration(a.CooldownSeconds) * time.Second
}

func (a AlarmConfig) SendTimeout() time.Duration {
	return time.Duration(a.SendTimeoutSeconds) * time.Second
}

// CameraDetector returns the detector configured for cam, falling back to the global one.
func (c *Config) CameraDetector(cam CameraConfig) string {
	if cam.Detector != "" {
		return cam.Detector
	}
	return c.Detector
}

// CameraPolicy returns the policy configured for cam, falling back to the global one.
func (c *Config) CameraPolicy(cam CameraConfig) string {
	if cam.Policy != "" {
		return cam.Policy
	}
	return c.Policy
}
