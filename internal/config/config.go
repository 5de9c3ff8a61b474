// Copyright (c) 2025-2026 Lumina Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/lumina-analytics/lumina-tui/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config is the complete lumina configuration.
type Config struct {
	Version string `toml:"version"`

	Backend   BackendConfig   `toml:"backend"`
	Auth      AuthConfig      `toml:"auth"`
	Chat      ChatConfig      `toml:"chat"`
	Telemetry TelemetryConfig `toml:"telemetry"`
	Logging   LoggingConfig   `toml:"logging"`
	UI        UIConfig        `toml:"ui"`
}

// BackendConfig points the client at the analytics backend.
type BackendConfig struct {
	// BaseURL is the backend API root.
	BaseURL string `toml:"base_url"`
	// TimeoutSeconds bounds non-streaming requests. Streams have no
	// timeout; they end when the backend closes them.
	TimeoutSeconds int `toml:"timeout_seconds"`
	// SidebarLimit caps how many conversations one sidebar load fetches.
	SidebarLimit int `toml:"sidebar_limit"`
	// PageSize is the message pagination size.
	PageSize int `toml:"page_size"`
}

// AuthConfig carries the bearer credential. An empty token starts the
// session in ephemeral mode.
type AuthConfig struct {
	Token string `toml:"token"`
}

// ChatConfig tunes send behavior.
type ChatConfig struct {
	// HistoryTurns caps how many prior turns accompany a query.
	HistoryTurns int `toml:"history_turns"`
	// SendsPerMinute bounds the send rate. Zero disables the limit.
	SendsPerMinute int `toml:"sends_per_minute"`
	// SendBurst is how many sends may fire back to back.
	SendBurst int `toml:"send_burst"`
}

// TelemetryConfig controls the local send-outcome database.
type TelemetryConfig struct {
	Enabled bool `toml:"enabled"`
	// DBPath overrides the database location. Empty means
	// ~/.lumina/telemetry.db.
	DBPath string `toml:"db_path"`
}

// LoggingConfig controls the diagnostic log file.
type LoggingConfig struct {
	Debug bool `toml:"debug"`
	// Dir overrides the log directory. Empty means ~/.lumina.
	Dir string `toml:"dir"`
}

// UIConfig contains rendering preferences.
type UIConfig struct {
	// Theme selects the color scheme: "dark", "light", or "auto".
	Theme string `toml:"theme"`
	// Markdown enables glamour rendering of assistant answers.
	Markdown bool `toml:"markdown"`
	// ShowTimestamps prefixes messages with their time.
	ShowTimestamps bool `toml:"show_timestamps"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Version: "1",
		Backend: BackendConfig{
			BaseURL:        "http://127.0.0.1:8000",
			TimeoutSeconds: 30,
			SidebarLimit:   50,
			PageSize:       30,
		},
		Chat: ChatConfig{
			HistoryTurns:   20,
			SendsPerMinute: 60,
			SendBurst:      3,
		},
		Telemetry: TelemetryConfig{
			Enabled: true,
		},
		UI: UIConfig{
			Theme:    "dark",
			Markdown: true,
		},
	}
}

// fillDefaults patches zero values left by a partial config file.
func fillDefaults(cfg *Config) {
	def := Default()
	if cfg.Version == "" {
		cfg.Version = def.Version
	}
	if cfg.Backend.BaseURL == "" {
		cfg.Backend.BaseURL = def.Backend.BaseURL
	}
	if cfg.Backend.TimeoutSeconds <= 0 {
		cfg.Backend.TimeoutSeconds = def.Backend.TimeoutSeconds
	}
	if cfg.Backend.SidebarLimit <= 0 {
		cfg.Backend.SidebarLimit = def.Backend.SidebarLimit
	}
	if cfg.Backend.PageSize <= 0 {
		cfg.Backend.PageSize = def.Backend.PageSize
	}
	if cfg.Chat.HistoryTurns <= 0 {
		cfg.Chat.HistoryTurns = def.Chat.HistoryTurns
	}
	if cfg.Chat.SendBurst <= 0 {
		cfg.Chat.SendBurst = def.Chat.SendBurst
	}
	if cfg.UI.Theme == "" {
		cfg.UI.Theme = def.UI.Theme
	}
}

// =============================================================================
// PATHS
// =============================================================================

// ConfigDir returns ~/.lumina.
func ConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".lumina"), nil
}

// ConfigPath returns the TOML config file location.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// EnsureConfigDir creates ~/.lumina if missing.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// =============================================================================
// LOADING
// =============================================================================

// Load reads the config file, fills defaults and applies environment
// overrides. A missing file yields the defaults, not an error.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath is Load with an explicit file location.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// Defaults only.
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	fillDefaults(cfg)
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// =============================================================================
// SAVING
// =============================================================================

// Save writes cfg to the default location, atomically.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveToPath(cfg, path)
}

// SaveToPath writes cfg as TOML. The write is atomic so a crash never
// leaves a truncated config behind.
func SaveToPath(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("# lumina configuration\n\n")
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	// The file may hold the auth token, keep it owner-only.
	return util.AtomicWriteFile(path, buf.Bytes(), 0600)
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError describes one invalid field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if _, err := url.Parse(c.Backend.BaseURL); err != nil {
		return ValidationError{Field: "backend.base_url", Message: "not a valid URL"}
	}
	if !strings.HasPrefix(c.Backend.BaseURL, "http://") && !strings.HasPrefix(c.Backend.BaseURL, "https://") {
		return ValidationError{Field: "backend.base_url", Message: "must start with http:// or https://"}
	}
	if c.Backend.PageSize < 1 || c.Backend.PageSize > 200 {
		return ValidationError{Field: "backend.page_size", Message: "must be between 1 and 200"}
	}
	if c.Backend.SidebarLimit < 1 || c.Backend.SidebarLimit > 500 {
		return ValidationError{Field: "backend.sidebar_limit", Message: "must be between 1 and 500"}
	}
	if c.Chat.SendsPerMinute < 0 {
		return ValidationError{Field: "chat.sends_per_minute", Message: "cannot be negative"}
	}
	switch c.UI.Theme {
	case "dark", "light", "auto":
	default:
		return ValidationError{Field: "ui.theme", Message: "must be dark, light, or auto"}
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies LUMINA_* variables over the loaded values.
// The token override exists so the credential can stay out of the file.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("LUMINA_BACKEND_URL"); v != "" {
		c.Backend.BaseURL = v
	}
	if v := os.Getenv("LUMINA_TOKEN"); v != "" {
		c.Auth.Token = v
	}
	if v := os.Getenv("LUMINA_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Logging.Debug = b
		}
	}
	if v := os.Getenv("LUMINA_TELEMETRY"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Telemetry.Enabled = b
		}
	}
	if v := os.Getenv("LUMINA_THEME"); v != "" {
		c.UI.Theme = v
	}
}

// =============================================================================
// GLOBAL CONFIG
// =============================================================================

var (
	globalMu  sync.RWMutex
	globalCfg *Config
)

// Global returns the process-wide configuration, loading it on first
// use. Load failures fall back to defaults so the UI can still start.
func Global() *Config {
	globalMu.RLock()
	cfg := globalCfg
	globalMu.RUnlock()
	if cfg != nil {
		return cfg
	}

	loaded, err := Load()
	if err != nil {
		loaded = Default()
	}
	globalMu.Lock()
	if globalCfg == nil {
		globalCfg = loaded
	}
	cfg = globalCfg
	globalMu.Unlock()
	return cfg
}

// SetGlobal replaces the process-wide configuration.
func SetGlobal(cfg *Config) {
	globalMu.Lock()
	globalCfg = cfg
	globalMu.Unlock()
}

// ResetGlobalForTesting clears the global config.
func ResetGlobalForTesting() {
	globalMu.Lock()
	globalCfg = nil
	globalMu.Unlock()
}
