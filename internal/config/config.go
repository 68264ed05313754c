// Package config handles configuration loading from YAML files, a .env file
// for Spotify credentials, and environment variables.
// Precedence: environment variables > config file > defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Duration is a wrapper around time.Duration that supports YAML unmarshaling
// from human-readable strings like "4s", "500ms", "1m".
type Duration struct {
	time.Duration
}

// UnmarshalYAML implements the yaml.Unmarshaler interface for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		parsed, err := time.ParseDuration(value.Value)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", value.Value, err)
		}
		d.Duration = parsed
		return nil
	default:
		return fmt.Errorf("unsupported duration format: %v", value.Kind)
	}
}

// MarshalYAML implements the yaml.Marshaler interface for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// Config holds all agent configuration.
type Config struct {
	Spotify SpotifyConfig `yaml:"spotify"`
	OpenRGB OpenRGBConfig `yaml:"openrgb"`
	Render  RenderConfig  `yaml:"render"`
	Bands   BandsConfig   `yaml:"bands"`
	Audio   AudioConfig   `yaml:"audio"`
	Monitor MonitorConfig `yaml:"monitor"`
	Cache   CacheConfig   `yaml:"cache"`
	Logging LoggingConfig `yaml:"logging"`
}

// SpotifyConfig holds Web API credentials and polling cadence.
// Credentials are normally supplied via .env / environment, not the YAML file.
type SpotifyConfig struct {
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	RefreshToken string   `yaml:"refresh_token"`
	PollInterval Duration `yaml:"poll_interval"` // while a track is playing
	PollIdle     Duration `yaml:"poll_idle"`     // while nothing is playing
	PollEnding   Duration `yaml:"poll_ending"`   // when the track is about to end
	EndingWindow Duration `yaml:"ending_window"` // how close to the end counts as "ending"
	ProcessCheck bool     `yaml:"process_check"` // skip API polls when Spotify isn't running
	ProcessName  string   `yaml:"process_name"`
}

// OpenRGBConfig holds the SDK server connection and device quirks.
type OpenRGBConfig struct {
	Host            string   `yaml:"host"`
	Port            int      `yaml:"port"`
	ClientName      string   `yaml:"client_name"`
	ConnectRetries  int      `yaml:"connect_retries"`
	ConnectDelay    Duration `yaml:"connect_delay"`
	ExcludedDevices []string `yaml:"excluded_devices"`
	BGRDevices      []string `yaml:"bgr_devices"`
	LEDSkipStart    int      `yaml:"led_skip_start"`
	LEDSkipEnd      int      `yaml:"led_skip_end"`
	LEDCount        int      `yaml:"led_count"` // 0 = use all usable LEDs
}

// RenderConfig holds frame pacing and brightness settings.
type RenderConfig struct {
	MaxFPS             int     `yaml:"max_fps"`
	StandbyFPS         int     `yaml:"standby_fps"`
	BrightnessFloor    float64 `yaml:"brightness_floor"`
	StandbyMode        string  `yaml:"standby_mode"` // software or hardware
	StandbyMin         float64 `yaml:"standby_min"`
	StandbyMax         float64 `yaml:"standby_max"`
	StandbyBreathSpeed float64 `yaml:"standby_breath_speed"`
}

// BrightnessPoint is one point of the piecewise-linear intensity→brightness curve.
type BrightnessPoint struct {
	Intensity  float64 `yaml:"intensity"`
	Brightness float64 `yaml:"brightness"`
}

// BandsConfig holds the zoned visualizer settings.
type BandsConfig struct {
	ZonePercussion   float64           `yaml:"zone_percussion"`
	ZoneBass         float64           `yaml:"zone_bass"`
	ZoneMelody       float64           `yaml:"zone_melody"`
	SmoothingAttack  float64           `yaml:"smoothing_attack"`
	SmoothingDecay   float64           `yaml:"smoothing_decay"`
	BeatAttack       float64           `yaml:"beat_attack"`
	BeatDecay        float64           `yaml:"beat_decay"`
	BeatFlash        float64           `yaml:"beat_flash"`
	BeatColorShift   float64           `yaml:"beat_color_shift"`
	ColorShiftMode   string            `yaml:"color_shift_mode"` // white, saturate, complement, warm, cool
	InternalGradient float64           `yaml:"internal_gradient"`
	ZoneBlendWidth   int               `yaml:"zone_blend_width"`
	ColorLerp        float64           `yaml:"color_lerp"`
	ColorScheme      string            `yaml:"color_scheme"` // album_colors or a derived scheme
	BrightnessMap    []BrightnessPoint `yaml:"brightness_map"`

	// Palette selection for album_colors.
	SelectionStrategy string  `yaml:"selection_strategy"` // balanced, vibrant, max_saturation, contrast, adaptive
	AssignmentMode    string  `yaml:"assignment_mode"`    // luminance, vibrant_bass, even, inverted
	MinSaturation     float64 `yaml:"min_saturation"`
}

// BandRange is a frequency band in Hz.
type BandRange struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// AudioConfig holds the analyzer and DSP chain settings.
type AudioConfig struct {
	PercussionBand BandRange `yaml:"percussion_band"`
	BassBand       BandRange `yaml:"bass_band"`
	MelodyBand     BandRange `yaml:"melody_band"`

	Sensitivity string   `yaml:"sensitivity"` // low, medium, high, ultra, custom
	BeatHold    Duration `yaml:"beat_hold"`
	CustomKick  float64  `yaml:"custom_kick_threshold"`
	CustomSnare float64  `yaml:"custom_snare_threshold"`

	AGCEnabled bool    `yaml:"agc_enabled"`
	AGCMaxGain float64 `yaml:"agc_max_gain"`
	AGCMinGain float64 `yaml:"agc_min_gain"`
	AGCAttack  float64 `yaml:"agc_attack"`
	AGCRelease float64 `yaml:"agc_release"`
	AGCTarget  float64 `yaml:"agc_target"`

	CompressorThreshold float64 `yaml:"compressor_threshold"`
	CompressorRatio     float64 `yaml:"compressor_ratio"`
	CompressorKnee      float64 `yaml:"compressor_knee"`
	CompressorMakeup    float64 `yaml:"compressor_makeup"`

	AdaptiveSmoothing bool    `yaml:"adaptive_smoothing"`
	LowVolMult        float64 `yaml:"smoothing_low_vol_mult"`
	LowVolThresh      float64 `yaml:"smoothing_low_vol_thresh"`

	DynamicFloorEnabled bool    `yaml:"dynamic_floor_enabled"`
	DynamicFloorMax     float64 `yaml:"dynamic_floor_max"`
	DynamicFloorThresh  float64 `yaml:"dynamic_floor_thresh"`
}

// MonitorConfig holds the live monitor server settings.
type MonitorConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// CacheConfig holds the persistent palette cache settings.
type CacheConfig struct {
	DBPath string `yaml:"db_path"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Spotify: SpotifyConfig{
			PollInterval: Duration{4 * time.Second},
			PollIdle:     Duration{5 * time.Second},
			PollEnding:   Duration{1500 * time.Millisecond},
			EndingWindow: Duration{10 * time.Second},
			ProcessCheck: true,
			ProcessName:  "spotify",
		},
		OpenRGB: OpenRGBConfig{
			Host:           "127.0.0.1",
			Port:           6742,
			ClientName:     "SpotifySync",
			ConnectRetries: 3,
			ConnectDelay:   Duration{2 * time.Second},
			BGRDevices:     []string{"ASUS", "TUF", "ROG", "AURA"},
		},
		Render: RenderConfig{
			MaxFPS:             60,
			StandbyFPS:         15,
			BrightnessFloor:    0.1,
			StandbyMode:        "software",
			StandbyMin:         0.15,
			StandbyMax:         0.40,
			StandbyBreathSpeed: 0.025,
		},
		Bands: BandsConfig{
			ZonePercussion:   0.33,
			ZoneBass:         0.34,
			ZoneMelody:       0.33,
			SmoothingAttack:  0.45,
			SmoothingDecay:   0.08,
			BeatAttack:       0.5,
			BeatDecay:        0.90,
			BeatFlash:        0.6,
			BeatColorShift:   0.25,
			ColorShiftMode:   "white",
			InternalGradient: 0.03,
			ZoneBlendWidth:   2,
			ColorLerp:        0.4,
			ColorScheme:      "album_colors",
			BrightnessMap: []BrightnessPoint{
				{0.02, 0.01}, {0.15, 0.02}, {0.3, 0.08}, {0.5, 0.25},
				{0.7, 0.5}, {0.85, 0.75}, {1.0, 1.0},
			},
			SelectionStrategy: "contrast",
			AssignmentMode:    "vibrant_bass",
			MinSaturation:     0.8,
		},
		Audio: AudioConfig{
			PercussionBand: BandRange{Min: 20, Max: 200},
			BassBand:       BandRange{Min: 200, Max: 400},
			MelodyBand:     BandRange{Min: 6000, Max: 16000},
			Sensitivity:    "medium",
			BeatHold:       Duration{180 * time.Millisecond},
			CustomKick:     0.45,
			CustomSnare:    0.35,

			AGCEnabled: true,
			AGCMaxGain: 3.5,
			AGCMinGain: 0.8,
			AGCAttack:  0.03,
			AGCRelease: 0.01,
			AGCTarget:  0.35,

			CompressorThreshold: 0.25,
			CompressorRatio:     2.5,
			CompressorKnee:      0.15,
			CompressorMakeup:    1.4,

			AdaptiveSmoothing: true,
			LowVolMult:        2.5,
			LowVolThresh:      0.35,

			DynamicFloorEnabled: true,
			DynamicFloorMax:     0.15,
			DynamicFloorThresh:  0.30,
		},
		Monitor: MonitorConfig{
			Enabled: false,
			Listen:  "127.0.0.1:6743",
		},
		Cache: CacheConfig{
			DBPath: "./palette.db",
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "./spotrgb.log",
		},
	}
}

// Load reads configuration from a YAML file and merges with defaults.
// A .env file next to the config file (or in the working directory) is
// loaded first so that credential variables are visible to the overrides.
// If path is empty or the file does not exist, defaults and environment
// variables are used.
func Load(path string) (*Config, error) {
	loadDotEnv(path)

	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// loadDotEnv loads a .env file into the process environment without
// overriding variables that are already set. Looked up next to the config
// file first, then in the working directory.
func loadDotEnv(configPath string) {
	candidates := []string{".env"}
	if configPath != "" {
		candidates = append([]string{filepath.Join(filepath.Dir(configPath), ".env")}, candidates...)
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
			return
		}
	}
}

// applyEnvOverrides applies environment variable overrides to the
// configuration. Credential variable names match the original .env keys.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SPOTIFY_CLIENT_ID"); v != "" {
		cfg.Spotify.ClientID = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		cfg.Spotify.ClientSecret = v
	}
	if v := os.Getenv("SPOTIFY_REFRESH_TOKEN"); v != "" {
		cfg.Spotify.RefreshToken = v
	}
	if v := os.Getenv("OPENRGB_HOST"); v != "" {
		cfg.OpenRGB.Host = v
	}
	if v := os.Getenv("SPOTRGB_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// DefaultPath returns the first existing config file from the standard
// per-user locations, or the last candidate when none exists yet.
func DefaultPath() string {
	candidates := configSearchPaths()
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return candidates[len(candidates)-1]
}

// WriteConfig serializes the config to a YAML file at the given path.
// Creates parent directories if needed.
func WriteConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0640)
}

// Validate checks that the configuration is usable. Spotify credentials are
// required; everything else has workable defaults.
func (c *Config) Validate() error {
	if c.Spotify.ClientID == "" || c.Spotify.ClientSecret == "" {
		return fmt.Errorf("spotify client credentials are required (set SPOTIFY_CLIENT_ID / SPOTIFY_CLIENT_SECRET)")
	}
	if c.Spotify.RefreshToken == "" {
		return fmt.Errorf("spotify refresh token is required (set SPOTIFY_REFRESH_TOKEN)")
	}
	if c.OpenRGB.Port <= 0 || c.OpenRGB.Port > 65535 {
		return fmt.Errorf("invalid openrgb port %d", c.OpenRGB.Port)
	}
	if c.Render.MaxFPS <= 0 || c.Render.StandbyFPS <= 0 {
		return fmt.Errorf("fps values must be positive")
	}
	switch c.Render.StandbyMode {
	case "", "software", "hardware":
	default:
		return fmt.Errorf("unknown standby mode %q", c.Render.StandbyMode)
	}
	if c.OpenRGB.LEDSkipStart < 0 || c.OpenRGB.LEDSkipEnd < 0 {
		return fmt.Errorf("led skip values must not be negative")
	}
	total := c.Bands.ZonePercussion + c.Bands.ZoneBass + c.Bands.ZoneMelody
	if total <= 0 {
		return fmt.Errorf("band zone fractions must sum to a positive value")
	}
	return nil
}
