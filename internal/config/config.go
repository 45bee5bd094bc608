// Package config loads application settings from defaults, an optional YAML
// file and environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvConfigFile names the environment variable that points at a YAML config file.
const EnvConfigFile = "PERCEPTIVE_CONFIG"

// Config holds all application configuration.
type Config struct {
	// HTTP settings
	HTTPAddr        string        `yaml:"http_addr"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes"`
	MaxPixels       int64         `yaml:"max_pixels"`
	SessionTTL      time.Duration `yaml:"session_ttl"`
	PreviewMaxWidth int           `yaml:"preview_max_width"`

	OCR OCRConfig `yaml:"ocr"`
	TTS TTSConfig `yaml:"tts"`

	// Logging settings
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// OCRConfig configures the Tesseract engine.
type OCRConfig struct {
	Languages      []string          `yaml:"languages"`
	TessdataPrefix string            `yaml:"tessdata_prefix"`
	Variables      map[string]string `yaml:"variables"`
}

// TTSConfig configures the speech backends.
type TTSConfig struct {
	Backend string `yaml:"backend"`

	EspeakPath  string `yaml:"espeak_path"`
	EspeakVoice string `yaml:"espeak_voice"`
	EspeakRate  int    `yaml:"espeak_rate"`

	PiperPath    string `yaml:"piper_path"`
	PiperModel   string `yaml:"piper_model"`
	PiperSpeaker string `yaml:"piper_speaker"`
	PlayerPath   string `yaml:"player_path"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		HTTPAddr:        ":8501",
		MaxUploadBytes:  200 << 20,
		MaxPixels:       178956970,
		SessionTTL:      30 * time.Minute,
		PreviewMaxWidth: 1024,
		OCR: OCRConfig{
			Languages: []string{"eng"},
		},
		TTS: TTSConfig{
			Backend:    "espeak",
			EspeakPath: "espeak-ng",
			EspeakRate: 175,
			PiperPath:  "piper",
			PlayerPath: "aplay",
		},
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// Load builds the configuration: defaults, then the YAML file named by
// PERCEPTIVE_CONFIG (if set), then environment variables.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// mergeFile overlays the YAML document at path onto cfg. Keys missing from
// the file keep their current values.
func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.HTTPAddr = getEnvString("PERCEPTIVE_HTTP_ADDR", c.HTTPAddr)
	c.MaxUploadBytes = int64(getEnvInt("PERCEPTIVE_MAX_UPLOAD_BYTES", int(c.MaxUploadBytes)))
	c.MaxPixels = int64(getEnvInt("PERCEPTIVE_MAX_PIXELS", int(c.MaxPixels)))
	c.SessionTTL = getEnvDuration("PERCEPTIVE_SESSION_TTL", c.SessionTTL)
	c.PreviewMaxWidth = getEnvInt("PERCEPTIVE_PREVIEW_MAX_WIDTH", c.PreviewMaxWidth)

	c.OCR.Languages = getEnvList("PERCEPTIVE_OCR_LANGUAGES", c.OCR.Languages)
	c.OCR.TessdataPrefix = getEnvString("PERCEPTIVE_TESSDATA_PREFIX", c.OCR.TessdataPrefix)

	c.TTS.Backend = getEnvString("PERCEPTIVE_TTS_BACKEND", c.TTS.Backend)
	c.TTS.EspeakPath = getEnvString("PERCEPTIVE_ESPEAK_PATH", c.TTS.EspeakPath)
	c.TTS.EspeakVoice = getEnvString("PERCEPTIVE_ESPEAK_VOICE", c.TTS.EspeakVoice)
	c.TTS.EspeakRate = getEnvInt("PERCEPTIVE_ESPEAK_RATE", c.TTS.EspeakRate)
	c.TTS.PiperPath = getEnvString("PERCEPTIVE_PIPER_PATH", c.TTS.PiperPath)
	c.TTS.PiperModel = getEnvString("PERCEPTIVE_PIPER_MODEL", c.TTS.PiperModel)
	c.TTS.PiperSpeaker = getEnvString("PERCEPTIVE_PIPER_SPEAKER", c.TTS.PiperSpeaker)
	c.TTS.PlayerPath = getEnvString("PERCEPTIVE_PLAYER_PATH", c.TTS.PlayerPath)

	c.LogLevel = getEnvString("PERCEPTIVE_LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnvString("PERCEPTIVE_LOG_FORMAT", c.LogFormat)
}

// Validate checks that configuration values are usable.
func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		return errors.New("PERCEPTIVE_HTTP_ADDR must not be empty")
	}

	if c.MaxUploadBytes < 1 {
		return errors.New("PERCEPTIVE_MAX_UPLOAD_BYTES must be at least 1")
	}

	if c.MaxPixels < 1 {
		return errors.New("PERCEPTIVE_MAX_PIXELS must be at least 1")
	}

	if c.SessionTTL <= 0 {
		return errors.New("PERCEPTIVE_SESSION_TTL must be positive")
	}

	if c.PreviewMaxWidth < 1 {
		return errors.New("PERCEPTIVE_PREVIEW_MAX_WIDTH must be at least 1")
	}

	if len(c.OCR.Languages) == 0 {
		return errors.New("PERCEPTIVE_OCR_LANGUAGES must name at least one language")
	}

	switch c.TTS.Backend {
	case "espeak":
		if c.TTS.EspeakRate < 1 {
			return errors.New("PERCEPTIVE_ESPEAK_RATE must be at least 1")
		}
	case "piper":
		if c.TTS.PiperModel == "" {
			return errors.New("PERCEPTIVE_PIPER_MODEL is required when PERCEPTIVE_TTS_BACKEND=piper")
		}
	default:
		return fmt.Errorf("PERCEPTIVE_TTS_BACKEND must be one of: espeak, piper (got %q)", c.TTS.Backend)
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.LogLevel] {
		return errors.New("PERCEPTIVE_LOG_LEVEL must be one of: debug, info, warn, error")
	}

	validLogFormats := map[string]bool{"text": true, "json": true}
	if !validLogFormats[c.LogFormat] {
		return errors.New("PERCEPTIVE_LOG_FORMAT must be one of: text, json")
	}

	return nil
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as an int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns the environment variable as a duration or a default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList splits a comma or plus separated variable ("eng+deu" is how
// Tesseract itself spells language lists).
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	fields := strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == '+'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
