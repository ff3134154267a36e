package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	// DefaultChunkSize keeps each chunk request under the 4.5 MB body limit of
	// the hosting platform once multipart overhead is added.
	DefaultChunkSize = 3*1024*1024 + 512*1024
	// DefaultThreshold is the largest file sent in a single request
	DefaultThreshold = 4 * 1024 * 1024
)

// Config represents runtime configuration for the client.
type Config struct {
	ChunkSizeBytes           int64    `json:"chunk_size_bytes"`
	SingleShotThresholdBytes int64    `json:"single_shot_threshold_bytes"`
	CandidatePasswords       []string `json:"candidate_passwords"`
	AllowedPartCounts        []int    `json:"allowed_part_counts"`

	API     APIConfig `json:"api"`
	Workers int       `json:"workers"`
	// DatabasePath is where batch reports are recorded. Empty disables history.
	DatabasePath string `json:"database_path"`
}

// APIConfig describes the remote extraction service
type APIConfig struct {
	BaseURL              string   `json:"base_url"`
	UploadPath           string   `json:"upload_path"`
	ChunkPath            string   `json:"chunk_path"`
	FinalizePath         string   `json:"finalize_path"`
	Timeout              Duration `json:"timeout"`
	MaxRetries           int      `json:"max_retries"`
	UploadBytesPerSecond int64    `json:"upload_bytes_per_second"`
}

// Duration decodes from either a Go duration string ("90s") or seconds.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value * float64(time.Second))
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", value, err)
		}
		d.Duration = parsed
	default:
		return fmt.Errorf("invalid duration: %s", string(b))
	}
	return nil
}

// Default returns the configuration used when no file is provided
func Default() *Config {
	return &Config{
		ChunkSizeBytes:           DefaultChunkSize,
		SingleShotThresholdBytes: DefaultThreshold,
		CandidatePasswords:       []string{"", "1234", "123456", "0000", "senha", "password", "admin"},
		AllowedPartCounts:        []int{2, 3, 4, 5, 6, 8, 10},
		API: APIConfig{
			BaseURL:      "http://localhost:5000",
			UploadPath:   "/api/upload",
			ChunkPath:    "/api/upload/chunk",
			FinalizePath: "/api/upload/finalize",
			Timeout:      Duration{2 * time.Minute},
			MaxRetries:   2,
		},
		Workers: 1,
	}
}

// Load reads configuration from the provided path on top of the defaults and
// applies environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("resolve config path: %w", err)
		}

		file, err := os.Open(absPath)
		if err != nil {
			return nil, fmt.Errorf("open config %s: %w", absPath, err)
		}
		defer file.Close()

		if err := json.NewDecoder(file).Decode(cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}

		if cfg.DatabasePath != "" && !filepath.IsAbs(cfg.DatabasePath) {
			cfg.DatabasePath = filepath.Join(filepath.Dir(absPath), cfg.DatabasePath)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("LABREPORT_API_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("LABREPORT_DB_PATH"); v != "" {
		c.DatabasePath = v
	}
	if v := os.Getenv("LABREPORT_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid LABREPORT_WORKERS %q: %w", v, err)
		}
		c.Workers = n
	}
	return nil
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	if c.ChunkSizeBytes <= 0 {
		return errors.New("chunk_size_bytes must be positive")
	}
	if c.SingleShotThresholdBytes <= 0 {
		return errors.New("single_shot_threshold_bytes must be positive")
	}
	if c.ChunkSizeBytes > c.SingleShotThresholdBytes {
		return fmt.Errorf("chunk_size_bytes (%d) must not exceed single_shot_threshold_bytes (%d)",
			c.ChunkSizeBytes, c.SingleShotThresholdBytes)
	}
	for _, n := range c.AllowedPartCounts {
		if n < 1 {
			return fmt.Errorf("allowed_part_counts contains invalid value %d", n)
		}
	}
	if c.API.BaseURL == "" {
		return errors.New("api.base_url must be configured")
	}
	if c.API.MaxRetries < 0 {
		return errors.New("api.max_retries cannot be negative")
	}
	if c.Workers < 1 {
		c.Workers = 1
	}
	return nil
}

// AllowsParts reports whether n is an accepted part count. An empty allowed
// set accepts any positive count.
func (c *Config) AllowsParts(n int) bool {
	if n < 1 {
		return false
	}
	if len(c.AllowedPartCounts) == 0 {
		return true
	}
	for _, allowed := range c.AllowedPartCounts {
		if allowed == n {
			return true
		}
	}
	return false
}
