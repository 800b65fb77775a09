package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	defaultControlHost   = "127.0.0.1"
	defaultControlPort   = 43434
	defaultRetryInterval = time.Second
	defaultRetryMax      = 10 * time.Second
	defaultFormat        = "opus"
	defaultClipsDir      = "pacenotes"
	defaultClipPrefix    = "pacenote"
	defaultSampleRate    = 48000
	defaultChannels      = 1
	defaultLogLevel      = "info"
	defaultMirrorClients = 8
)

// Config stores runtime configuration.
type Config struct {
	Control   ControlConfig
	Transcode TranscodeConfig
	Clips     ClipsConfig
	Capture   CaptureConfig
	Log       LogConfig
	Mirror    MirrorConfig

	// File is the config file that was loaded, or "" when none was found.
	File string
}

type ControlConfig struct {
	Host          string
	Port          int
	RetryInterval time.Duration
	RetryMax      time.Duration
}

func (c ControlConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

type TranscodeConfig struct {
	FFmpegCommand string
	Format        string
	Bitrate       string
	// Timeout kills a hung encoder. Zero, the default, lets every job run
	// until ffmpeg exits.
	Timeout       time.Duration
	Prewarm       bool
	PrewarmSample string
}

type ClipsConfig struct {
	DirName    string
	FilePrefix string
}

// CaptureConfig drives ffmpeg microphone capture in headless mode.
type CaptureConfig struct {
	InputFormat string
	InputDevice string
	SampleRate  int
	Channels    int
	Beep        bool
}

type LogConfig struct {
	Dir   string
	Level string
}

// MirrorConfig controls the websocket status mirror. Port 0 disables it.
type MirrorConfig struct {
	Host       string
	Port       int
	MaxClients int
}

func (m MirrorConfig) Enabled() bool {
	return m.Port > 0
}

func (m MirrorConfig) Address() string {
	return net.JoinHostPort(m.Host, strconv.Itoa(m.Port))
}

type fileConfig struct {
	Control struct {
		Host            string `toml:"host"`
		Port            int    `toml:"port"`
		RetryIntervalMS int    `toml:"retry_interval_ms"`
		RetryMaxMS      int    `toml:"retry_max_ms"`
	} `toml:"control"`
	Transcode struct {
		FFmpegCommand string `toml:"ffmpeg_command"`
		Format        string `toml:"format"`
		Bitrate       string `toml:"bitrate"`
		TimeoutMS     int    `toml:"timeout_ms"`
		Prewarm       *bool  `toml:"prewarm"`
		PrewarmSample string `toml:"prewarm_sample"`
	} `toml:"transcode"`
	Clips struct {
		DirName    string `toml:"dir_name"`
		FilePrefix string `toml:"file_prefix"`
	} `toml:"clips"`
	Capture struct {
		InputFormat string `toml:"input_format"`
		InputDevice string `toml:"input_device"`
		SampleRate  int    `toml:"sample_rate"`
		Channels    int    `toml:"channels"`
		Beep        *bool  `toml:"beep"`
	} `toml:"capture"`
	Log struct {
		Dir   string `toml:"dir"`
		Level string `toml:"level"`
	} `toml:"log"`
	Mirror struct {
		Host       string `toml:"host"`
		Port       int    `toml:"port"`
		MaxClients int    `toml:"max_clients"`
	} `toml:"mirror"`
}

// Load resolves configuration from defaults, the optional TOML file and
// PACENOTES_* environment variables, in that order.
func Load() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, errors.New("could not determine home directory")
	}

	cfg := defaults(home)

	path, explicit := configFilePath(home)
	if path != "" {
		if _, statErr := os.Stat(path); statErr == nil {
			if err := applyFile(&cfg, path); err != nil {
				return Config{}, err
			}
			cfg.File = path
		} else if explicit {
			return Config{}, fmt.Errorf("config file %s: %w", path, statErr)
		}
	}

	applyEnv(&cfg)
	sanitize(&cfg)
	return cfg, nil
}

func defaults(home string) Config {
	inputFormat, inputDevice := defaultCaptureInput()
	return Config{
		Control: ControlConfig{
			Host:          defaultControlHost,
			Port:          defaultControlPort,
			RetryInterval: defaultRetryInterval,
			RetryMax:      defaultRetryMax,
		},
		Transcode: TranscodeConfig{
			FFmpegCommand: "ffmpeg",
			Format:        defaultFormat,
			Prewarm:       true,
		},
		Clips: ClipsConfig{
			DirName:    defaultClipsDir,
			FilePrefix: defaultClipPrefix,
		},
		Capture: CaptureConfig{
			InputFormat: inputFormat,
			InputDevice: inputDevice,
			SampleRate:  defaultSampleRate,
			Channels:    defaultChannels,
			Beep:        true,
		},
		Log: LogConfig{
			Dir:   defaultLogDir(home),
			Level: defaultLogLevel,
		},
		Mirror: MirrorConfig{
			Host:       defaultControlHost,
			MaxClients: defaultMirrorClients,
		},
	}
}

func applyFile(cfg *Config, path string) error {
	var fc fileConfig
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	cfg.Control.Host = firstNonEmpty(fc.Control.Host, cfg.Control.Host)
	if fc.Control.Port != 0 {
		cfg.Control.Port = fc.Control.Port
	}
	if fc.Control.RetryIntervalMS > 0 {
		cfg.Control.RetryInterval = time.Duration(fc.Control.RetryIntervalMS) * time.Millisecond
	}
	if fc.Control.RetryMaxMS > 0 {
		cfg.Control.RetryMax = time.Duration(fc.Control.RetryMaxMS) * time.Millisecond
	}

	cfg.Transcode.FFmpegCommand = firstNonEmpty(fc.Transcode.FFmpegCommand, cfg.Transcode.FFmpegCommand)
	cfg.Transcode.Format = firstNonEmpty(fc.Transcode.Format, cfg.Transcode.Format)
	cfg.Transcode.Bitrate = firstNonEmpty(fc.Transcode.Bitrate, cfg.Transcode.Bitrate)
	if fc.Transcode.TimeoutMS > 0 {
		cfg.Transcode.Timeout = time.Duration(fc.Transcode.TimeoutMS) * time.Millisecond
	}
	if fc.Transcode.Prewarm != nil {
		cfg.Transcode.Prewarm = *fc.Transcode.Prewarm
	}
	if fc.Transcode.PrewarmSample != "" {
		cfg.Transcode.PrewarmSample = expandTilde(fc.Transcode.PrewarmSample)
	}

	cfg.Clips.DirName = firstNonEmpty(fc.Clips.DirName, cfg.Clips.DirName)
	cfg.Clips.FilePrefix = firstNonEmpty(fc.Clips.FilePrefix, cfg.Clips.FilePrefix)

	cfg.Capture.InputFormat = firstNonEmpty(fc.Capture.InputFormat, cfg.Capture.InputFormat)
	cfg.Capture.InputDevice = firstNonEmpty(fc.Capture.InputDevice, cfg.Capture.InputDevice)
	if fc.Capture.SampleRate != 0 {
		cfg.Capture.SampleRate = fc.Capture.SampleRate
	}
	if fc.Capture.Channels != 0 {
		cfg.Capture.Channels = fc.Capture.Channels
	}
	if fc.Capture.Beep != nil {
		cfg.Capture.Beep = *fc.Capture.Beep
	}

	if fc.Log.Dir != "" {
		cfg.Log.Dir = expandTilde(fc.Log.Dir)
	}
	cfg.Log.Level = firstNonEmpty(fc.Log.Level, cfg.Log.Level)

	cfg.Mirror.Host = firstNonEmpty(fc.Mirror.Host, cfg.Mirror.Host)
	if fc.Mirror.Port != 0 {
		cfg.Mirror.Port = fc.Mirror.Port
	}
	if fc.Mirror.MaxClients != 0 {
		cfg.Mirror.MaxClients = fc.Mirror.MaxClients
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Control.Host = envOrDefault("PACENOTES_CONTROL_HOST", cfg.Control.Host)
	cfg.Control.Port = envOrDefaultInt("PACENOTES_CONTROL_PORT", cfg.Control.Port)
	cfg.Control.RetryInterval = envOrDefaultMillis("PACENOTES_BIND_RETRY_MS", cfg.Control.RetryInterval)
	cfg.Control.RetryMax = envOrDefaultMillis("PACENOTES_BIND_RETRY_MAX_MS", cfg.Control.RetryMax)

	cfg.Transcode.FFmpegCommand = envOrDefault("PACENOTES_FFMPEG_COMMAND", cfg.Transcode.FFmpegCommand)
	cfg.Transcode.Format = envOrDefault("PACENOTES_FORMAT", cfg.Transcode.Format)
	cfg.Transcode.Bitrate = envOrDefault("PACENOTES_BITRATE", cfg.Transcode.Bitrate)
	cfg.Transcode.Timeout = envOrDefaultMillis("PACENOTES_TRANSCODE_TIMEOUT_MS", cfg.Transcode.Timeout)
	cfg.Transcode.Prewarm = envOrDefaultBool("PACENOTES_PREWARM", cfg.Transcode.Prewarm)
	cfg.Transcode.PrewarmSample = expandTilde(envOrDefault("PACENOTES_PREWARM_SAMPLE", cfg.Transcode.PrewarmSample))

	cfg.Clips.DirName = envOrDefault("PACENOTES_CLIPS_DIR", cfg.Clips.DirName)
	cfg.Clips.FilePrefix = envOrDefault("PACENOTES_CLIP_PREFIX", cfg.Clips.FilePrefix)

	cfg.Capture.InputFormat = envOrDefault("PACENOTES_AUDIO_INPUT_FORMAT", cfg.Capture.InputFormat)
	cfg.Capture.InputDevice = envOrDefault("PACENOTES_AUDIO_INPUT_DEVICE", cfg.Capture.InputDevice)
	cfg.Capture.SampleRate = envOrDefaultInt("PACENOTES_SAMPLE_RATE", cfg.Capture.SampleRate)
	cfg.Capture.Channels = envOrDefaultInt("PACENOTES_CHANNELS", cfg.Capture.Channels)
	cfg.Capture.Beep = envOrDefaultBool("PACENOTES_BEEP", cfg.Capture.Beep)

	cfg.Log.Dir = expandTilde(envOrDefault("PACENOTES_LOG_DIR", cfg.Log.Dir))
	cfg.Log.Level = envOrDefault("PACENOTES_LOG_LEVEL", cfg.Log.Level)

	cfg.Mirror.Port = envOrDefaultInt("PACENOTES_MIRROR_PORT", cfg.Mirror.Port)
}

func sanitize(cfg *Config) {
	if cfg.Control.Port <= 0 || cfg.Control.Port > 65535 {
		cfg.Control.Port = defaultControlPort
	}
	if cfg.Control.RetryInterval <= 0 {
		cfg.Control.RetryInterval = defaultRetryInterval
	}
	if cfg.Control.RetryMax < cfg.Control.RetryInterval {
		cfg.Control.RetryMax = cfg.Control.RetryInterval
	}
	if cfg.Transcode.Timeout < 0 {
		cfg.Transcode.Timeout = 0
	}
	cfg.Transcode.Format = strings.ToLower(cfg.Transcode.Format)
	if cfg.Capture.SampleRate <= 0 {
		cfg.Capture.SampleRate = defaultSampleRate
	}
	if cfg.Capture.Channels <= 0 {
		cfg.Capture.Channels = defaultChannels
	}
	if cfg.Mirror.Port < 0 || cfg.Mirror.Port > 65535 {
		cfg.Mirror.Port = 0
	}
	if cfg.Mirror.MaxClients <= 0 {
		cfg.Mirror.MaxClients = defaultMirrorClients
	}
}

// configFilePath reports the config file location and whether it was set
// explicitly through PACENOTES_CONFIG.
func configFilePath(home string) (string, bool) {
	if explicit := strings.TrimSpace(os.Getenv("PACENOTES_CONFIG")); explicit != "" {
		return expandTilde(explicit), true
	}
	if xdg := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); xdg != "" {
		return filepath.Join(xdg, "pacenotes", "config.toml"), false
	}
	return filepath.Join(home, ".config", "pacenotes", "config.toml"), false
}

func defaultLogDir(home string) string {
	if state := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); state != "" {
		return filepath.Join(state, "pacenotes")
	}
	if runtime.GOOS == "windows" {
		if dir, err := os.UserCacheDir(); err == nil {
			return filepath.Join(dir, "pacenotes", "logs")
		}
	}
	return filepath.Join(home, ".local", "state", "pacenotes")
}

func defaultCaptureInput() (string, string) {
	switch runtime.GOOS {
	case "darwin":
		return "avfoundation", ":0"
	case "windows":
		return "dshow", "audio=default"
	default:
		return "pulse", "default"
	}
}

func expandTilde(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultMillis(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return fallback
	}
	return time.Duration(parsed) * time.Millisecond
}

func envOrDefaultBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
