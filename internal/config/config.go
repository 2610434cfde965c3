package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"golang.org/x/text/language"
)

// Config holds all application configuration.
// Values come from environment variables with sensible defaults.
//
// Environment Variables:
// STT Configuration:
// - STT_API_KEY: API key for the streaming transcription provider (required)
// - STT_URL: websocket endpoint (default: wss://api.deepgram.com/v1/listen)
// - STT_MODEL: transcription model (default: nova-2)
//
// LLM Configuration (translation):
// - LLM_API_KEY: API key for the LLM provider (required)
// - LLM_API_URL: API endpoint URL (default: https://api.openai.com/v1)
// - LLM_MODEL: model name (default: gpt-3.5-turbo)
// - LLM_MAX_TOKENS: maximum tokens for responses (default: 1024)
// - LLM_TEMPERATURE: sampling temperature (default: 0.3)
// - LLM_TIMEOUT: request timeout in seconds (default: 30)
//
// TTS Configuration:
// - TTS_API_KEY: API key for the synthesis provider (default: LLM_API_KEY)
// - TTS_API_URL: API endpoint URL (default: LLM_API_URL)
// - TTS_MODEL: synthesis model (default: tts-1)
// - TTS_VOICE: synthesis voice (default: alloy)
//
// Media Configuration:
// - MEDIA_DIR: root directory for job output (default: /media)
// - OUTPUT_SAMPLE_RATE: resample final track via ffmpeg, 0 disables (default: 0)
//
// Pipeline Configuration:
// - FLUSH_CHARS: segment buffer size threshold (default: 150)
// - FLUSH_INTERVAL_MS: segment buffer idle flush interval (default: 3000)
// - WORKER_COUNT: translate/synthesize worker pool size (default: 4)
// - UNIT_TIMEOUT: per-unit remote call timeout in seconds (default: 30)
// - EXTRACT_TIMEOUT: source resolution timeout in seconds (default: 60)
// - CHUNK_DELAY_MS: delay between audio chunk sends (default: 10)
//
// Language Configuration:
// - SOURCE_LANGUAGE: default source language tag, "auto" to detect (default: auto)
// - TARGET_LANGUAGE: default target language tag (default: en)
//
// Server / housekeeping:
// - HTTP_ADDR: listen address (default: :8080)
// - ARCHIVE_DB_PATH: sqlite path for the segment archive, "" disables
// - CLEANUP_CRON: cron expression for fragment cleanup (default: @hourly)
// - LOG_LEVEL: debug|info|warn|error (default: info)
type Config struct {
	STT      STTConfig      `json:"stt"`
	LLM      LLMConfig      `json:"llm"`
	TTS      TTSConfig      `json:"tts"`
	Media    MediaConfig    `json:"media"`
	Pipeline PipelineConfig `json:"pipeline"`
	Language LanguageConfig `json:"language"`
	Server   ServerConfig   `json:"server"`
	Archive  ArchiveConfig  `json:"archive"`
	Cleanup  CleanupConfig  `json:"cleanup"`
	LogLevel string         `json:"log_level"`
}

// STTConfig holds the configuration for the streaming transcription provider.
type STTConfig struct {
	APIKey string `json:"api_key"`
	URL    string `json:"url"`
	Model  string `json:"model"`
}

// LLMConfig holds the configuration for the translation LLM client.
// Supports any OpenAI-compatible provider.
type LLMConfig struct {
	APIKey      string  `json:"api_key"`
	APIURL      string  `json:"api_url"`
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	Timeout     int     `json:"timeout"`
}

// TTSConfig holds the configuration for the speech synthesis provider.
type TTSConfig struct {
	APIKey string `json:"api_key"`
	APIURL string `json:"api_url"`
	Model  string `json:"model"`
	Voice  string `json:"voice"`
}

// MediaConfig holds the configuration for job output storage.
type MediaConfig struct {
	Dir              string `json:"dir"`
	OutputSampleRate int    `json:"output_sample_rate"`
}

// DubbedDir is where per-job working directories are created.
func (c MediaConfig) DubbedDir() string {
	return filepath.Join(c.Dir, "dubbed")
}

// PipelineConfig holds the tunables of the dubbing pipeline.
type PipelineConfig struct {
	FlushChars     int           `json:"flush_chars"`
	FlushInterval  time.Duration `json:"flush_interval"`
	WorkerCount    int           `json:"worker_count"`
	UnitTimeout    time.Duration `json:"unit_timeout"`
	ExtractTimeout time.Duration `json:"extract_timeout"`
	ChunkDelay     time.Duration `json:"chunk_delay"`
}

// LanguageConfig holds the default language pair for new jobs.
type LanguageConfig struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	Addr string `json:"addr"`
}

// ArchiveConfig holds the segment archive configuration.
type ArchiveConfig struct {
	DBPath string `json:"db_path"`
}

// CleanupConfig holds the fragment cleanup schedule.
type CleanupConfig struct {
	CronExpr string `json:"cron_expr"`
}

// Option is a function type for configuring Config
type Option func(*Config)

// NewFromEnv creates a new Config instance with values from environment
// variables and options.
func NewFromEnv(opts ...Option) (*Config, error) {
	llmKey := getEnvString("LLM_API_KEY", "")
	llmURL := getEnvString("LLM_API_URL", "https://api.openai.com/v1")

	config := &Config{
		STT: STTConfig{
			APIKey: getEnvString("STT_API_KEY", ""),
			URL:    getEnvString("STT_URL", "wss://api.deepgram.com/v1/listen"),
			Model:  getEnvString("STT_MODEL", "nova-2"),
		},
		LLM: LLMConfig{
			APIKey:      llmKey,
			APIURL:      llmURL,
			Model:       getEnvString("LLM_MODEL", "gpt-3.5-turbo"),
			MaxTokens:   getEnvInt("LLM_MAX_TOKENS", 1024),
			Temperature: getEnvFloat("LLM_TEMPERATURE", 0.3),
			Timeout:     getEnvInt("LLM_TIMEOUT", 30),
		},
		TTS: TTSConfig{
			APIKey: getEnvString("TTS_API_KEY", llmKey),
			APIURL: getEnvString("TTS_API_URL", llmURL),
			Model:  getEnvString("TTS_MODEL", "tts-1"),
			Voice:  getEnvString("TTS_VOICE", "alloy"),
		},
		Media: MediaConfig{
			Dir:              getEnvString("MEDIA_DIR", "/media"),
			OutputSampleRate: getEnvInt("OUTPUT_SAMPLE_RATE", 0),
		},
		Pipeline: PipelineConfig{
			FlushChars:     getEnvInt("FLUSH_CHARS", 150),
			FlushInterval:  time.Duration(getEnvInt("FLUSH_INTERVAL_MS", 3000)) * time.Millisecond,
			WorkerCount:    getEnvInt("WORKER_COUNT", 4),
			UnitTimeout:    time.Duration(getEnvInt("UNIT_TIMEOUT", 30)) * time.Second,
			ExtractTimeout: time.Duration(getEnvInt("EXTRACT_TIMEOUT", 60)) * time.Second,
			ChunkDelay:     time.Duration(getEnvInt("CHUNK_DELAY_MS", 10)) * time.Millisecond,
		},
		Language: LanguageConfig{
			Source: getEnvString("SOURCE_LANGUAGE", "auto"),
			Target: getEnvString("TARGET_LANGUAGE", "en"),
		},
		Server: ServerConfig{
			Addr: getEnvString("HTTP_ADDR", ":8080"),
		},
		Archive: ArchiveConfig{
			DBPath: getEnvString("ARCHIVE_DB_PATH", ""),
		},
		Cleanup: CleanupConfig{
			CronExpr: getEnvString("CLEANUP_CRON", "@hourly"),
		},
		LogLevel: getEnvString("LOG_LEVEL", "info"),
	}

	for _, opt := range opts {
		opt(config)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// validate checks if all required configuration is properly set.
func (c *Config) validate() error {
	if c.STT.APIKey == "" {
		return fmt.Errorf("STT_API_KEY is required")
	}
	if c.LLM.APIKey == "" {
		return fmt.Errorf("LLM_API_KEY is required")
	}
	if c.Language.Target == "" {
		return fmt.Errorf("TARGET_LANGUAGE is required")
	}
	if _, err := language.Parse(c.Language.Target); err != nil {
		return fmt.Errorf("invalid TARGET_LANGUAGE %q: %w", c.Language.Target, err)
	}
	if c.Language.Source != "" && c.Language.Source != "auto" {
		if _, err := language.Parse(c.Language.Source); err != nil {
			return fmt.Errorf("invalid SOURCE_LANGUAGE %q: %w", c.Language.Source, err)
		}
	}
	if c.Pipeline.FlushChars <= 0 {
		return fmt.Errorf("FLUSH_CHARS must be positive")
	}
	if c.Pipeline.FlushInterval <= 0 {
		return fmt.Errorf("FLUSH_INTERVAL_MS must be positive")
	}
	if c.Pipeline.WorkerCount <= 0 {
		return fmt.Errorf("WORKER_COUNT must be positive")
	}
	return nil
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat gets a float value from environment variables with default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
