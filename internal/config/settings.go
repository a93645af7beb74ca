package config

import (
	"errors"
	"os"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

const defaultBaseURL = "http://127.0.0.1:3000"

type Settings struct {
	Server  ServerConfig  `toml:"server"`
	Live    LiveConfig    `toml:"live"`
	UI      UIConfig      `toml:"ui"`
	Logging LoggingConfig `toml:"logging"`
}

type ServerConfig struct {
	BaseURL   string `toml:"base_url"`
	APIKey    string `toml:"api_key"`
	ProjectID string `toml:"project_id"`
}

type LoggingConfig struct {
	Level string `toml:"level"`
}

// LiveConfig tunes the push-stream subscription and the buffer reconciler.
// Zero values fall back to defaults so a partial config file stays valid.
type LiveConfig struct {
	ReconnectBaseDelayMS int `toml:"reconnect_base_delay_ms"`
	MaxReconnectAttempts int `toml:"max_reconnect_attempts"`
	MaxBackoffMS         int `toml:"max_backoff_ms"`
	TerminateReopenMS    int `toml:"terminate_reopen_ms"`
	InactivityTimeoutMS  int `toml:"inactivity_timeout_ms"`
	DebounceMS           int `toml:"debounce_ms"`
	ThrottleMS           int `toml:"throttle_ms"`
	LateArrivalWindowMS  int `toml:"late_arrival_window_ms"`
	MaxBufferBlocks      int `toml:"max_buffer_blocks"`
}

type UIConfig struct {
	BottomThresholdLines int `toml:"bottom_threshold_lines"`
	WheelNoiseLines      int `toml:"wheel_noise_lines"`
}

func DefaultSettings() Settings {
	return Settings{
		Server: ServerConfig{
			BaseURL: defaultBaseURL,
		},
		Live: LiveConfig{
			ReconnectBaseDelayMS: 1000,
			MaxReconnectAttempts: 10,
			MaxBackoffMS:         30000,
			TerminateReopenMS:    250,
			InactivityTimeoutMS:  90000,
			DebounceMS:           100,
			ThrottleMS:           500,
			LateArrivalWindowMS:  5000,
			MaxBufferBlocks:      2000,
		},
		UI: UIConfig{
			BottomThresholdLines: 2,
			WheelNoiseLines:      1,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

func Load() (Settings, error) {
	path, err := SettingsPath()
	if err != nil {
		return Settings{}, err
	}
	return loadFromPath(path)
}

func loadFromPath(path string) (Settings, error) {
	cfg := DefaultSettings()
	if err := readTOML(path, &cfg); err != nil {
		return Settings{}, err
	}
	return cfg, nil
}

func readTOML(path string, out any) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return errors.New("path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	return toml.Unmarshal(data, out)
}

func (s Settings) ServerBaseURL() string {
	url := strings.TrimSpace(s.Server.BaseURL)
	if url == "" {
		url = defaultBaseURL
	}
	return strings.TrimRight(url, "/")
}

func (s Settings) LogLevel() string {
	level := strings.TrimSpace(s.Logging.Level)
	if level == "" {
		return "info"
	}
	return level
}

func (c LiveConfig) ReconnectBaseDelay() time.Duration {
	return msOrDefault(c.ReconnectBaseDelayMS, 1000)
}

func (c LiveConfig) MaxAttempts() int {
	if c.MaxReconnectAttempts <= 0 {
		return 10
	}
	return c.MaxReconnectAttempts
}

func (c LiveConfig) MaxBackoff() time.Duration {
	return msOrDefault(c.MaxBackoffMS, 30000)
}

func (c LiveConfig) TerminateReopenDelay() time.Duration {
	return msOrDefault(c.TerminateReopenMS, 250)
}

func (c LiveConfig) InactivityTimeout() time.Duration {
	return msOrDefault(c.InactivityTimeoutMS, 90000)
}

func (c LiveConfig) DebounceWindow() time.Duration {
	return msOrDefault(c.DebounceMS, 100)
}

func (c LiveConfig) ThrottleInterval() time.Duration {
	return msOrDefault(c.ThrottleMS, 500)
}

func (c LiveConfig) LateArrivalWindow() time.Duration {
	return msOrDefault(c.LateArrivalWindowMS, 5000)
}

func (c LiveConfig) BufferLimit() int {
	if c.MaxBufferBlocks <= 0 {
		return 2000
	}
	return c.MaxBufferBlocks
}

func (c UIConfig) BottomThreshold() int {
	if c.BottomThresholdLines <= 0 {
		return 2
	}
	return c.BottomThresholdLines
}

func (c UIConfig) WheelNoise() int {
	if c.WheelNoiseLines <= 0 {
		return 1
	}
	return c.WheelNoiseLines
}

func msOrDefault(ms, fallback int) time.Duration {
	if ms <= 0 {
		ms = fallback
	}
	return time.Duration(ms) * time.Millisecond
}
