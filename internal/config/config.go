// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/jeranaias/docchat-tui/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete docchat configuration.
type Config struct {
	Server  ServerConfig  `toml:"server" json:"server"`
	Session SessionConfig `toml:"session" json:"session"`
	Chat    ChatConfig    `toml:"chat" json:"chat"`
	UI      UIConfig      `toml:"ui" json:"ui"`
	Logging LoggingConfig `toml:"logging" json:"logging"`
}

// ServerConfig describes the question-answering service.
type ServerConfig struct {
	// WSURL is the base URL of the streaming endpoint (ws:// or wss://).
	WSURL string `toml:"ws_url" json:"ws_url"`
	// APIURL is the base URL of the request/response endpoint (http:// or https://).
	APIURL string `toml:"api_url" json:"api_url"`
	// APIKey is sent as a bearer token and embedded in direct-mode stream URLs.
	APIKey string `toml:"api_key" json:"api_key"`
	// Proxy connects through the session-keyed proxy endpoint.
	Proxy bool `toml:"proxy" json:"proxy"`
	// SendPath is the path of the send endpoint under APIURL.
	SendPath string `toml:"send_path" json:"send_path"`
	// SendTimeoutSecs bounds each send call. 0 disables the timeout.
	SendTimeoutSecs int `toml:"send_timeout_secs" json:"send_timeout_secs"`
}

// SessionConfig holds the parameters that identify a conversation.
type SessionConfig struct {
	ID        string `toml:"id" json:"id"`
	Bucket    string `toml:"bucket" json:"bucket"`
	Path      string `toml:"path" json:"path"`
	StoreKind string `toml:"store_kind" json:"store_kind"`
}

// ChatConfig holds per-send settings.
type ChatConfig struct {
	Model        string  `toml:"model" json:"model"`
	SystemPrompt string  `toml:"system_prompt" json:"system_prompt"`
	Temperature  float64 `toml:"temperature" json:"temperature"`
	Sources      bool    `toml:"sources" json:"sources"`
	// StreamPolicy is "append" (one turn per frame) or "merge" (grow one turn).
	StreamPolicy string `toml:"stream_policy" json:"stream_policy"`
}

// UIConfig contains terminal UI preferences.
type UIConfig struct {
	// Theme is "dark" or "light".
	Theme string `toml:"theme" json:"theme"`
	// CodeStyle is a chroma style name used for fenced code.
	CodeStyle string `toml:"code_style" json:"code_style"`
	Mouse     bool   `toml:"mouse" json:"mouse"`
	WordWrap  int    `toml:"word_wrap" json:"word_wrap"`
}

// LoggingConfig controls the rotating log file.
type LoggingConfig struct {
	// Path of the log file. Empty means ~/.docchat/docchat.log.
	Path       string `toml:"path" json:"path"`
	Level      string `toml:"level" json:"level"`
	MaxSizeMB  int    `toml:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" json:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" json:"max_age_days"`
	Compress   bool   `toml:"compress" json:"compress"`
}

// Stream policies accepted in chat.stream_policy.
const (
	StreamPolicyAppend = "append"
	StreamPolicyMerge  = "merge"
)

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			WSURL:    "ws://localhost:8000",
			APIURL:   "http://localhost:8000",
			SendPath: "/api/v1/chat/vectorstore",
		},
		Session: SessionConfig{
			StoreKind: "faiss",
		},
		Chat: ChatConfig{
			Model:        "gpt-3.5-turbo",
			SystemPrompt: "You are a helpful assistant.",
			Temperature:  0.5,
			StreamPolicy: StreamPolicyAppend,
		},
		UI: UIConfig{
			Theme:     "dark",
			CodeStyle: "monokai",
			Mouse:     true,
			WordWrap:  100,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   true,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the docchat configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".docchat"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
// DOCCHAT_CONFIG overrides the location.
func ConfigPathTOML() (string, error) {
	if p := os.Getenv("DOCCHAT_CONFIG"); p != "" {
		return p, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// ensureSecurePermissions tightens config file permissions to 0600.
// SECURITY: the file may hold an API key.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the default locations.
// Tries TOML first, then JSON, and falls back to defaults. A missing file
// is not an error.
func Load() (*Config, error) {
	tomlPath, err := ConfigPathTOML()
	if err == nil {
		if _, statErr := os.Stat(tomlPath); statErr == nil {
			return LoadFromPath(tomlPath)
		}
	}

	jsonPath, err := ConfigPathJSON()
	if err == nil {
		if _, statErr := os.Stat(jsonPath); statErr == nil {
			return LoadFromPath(jsonPath)
		}
	}

	cfg := Default()
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file with full validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}

	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// finish applies .env and environment overrides, fills defaults and validates.
func (c *Config) finish() error {
	// Missing .env is the common case.
	_ = godotenv.Load()
	c.ApplyEnvOverrides()
	c.SetDefaults()
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// LoadTOML decodes a TOML file into cfg.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadJSON decodes a JSON file into cfg.
func LoadJSON(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes the configuration to the default TOML path.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes the configuration as TOML with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var sb strings.Builder
	sb.WriteString("# docchat configuration file\n")
	sb.WriteString("# Generated by docchat - edit with care\n\n")
	if err := toml.NewEncoder(&sb).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.ReplaceFile(path, []byte(sb.String()), util.PrivatePerms); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if err := validateURL(c.Server.WSURL, "ws", "wss"); err != "" {
		errs = append(errs, ValidationError{Field: "server.ws_url", Message: err})
	}
	if err := validateURL(c.Server.APIURL, "http", "https"); err != "" {
		errs = append(errs, ValidationError{Field: "server.api_url", Message: err})
	}
	if c.Server.SendPath != "" && !strings.HasPrefix(c.Server.SendPath, "/") {
		errs = append(errs, ValidationError{Field: "server.send_path", Message: "must start with /"})
	}
	if c.Server.SendTimeoutSecs < 0 {
		errs = append(errs, ValidationError{Field: "server.send_timeout_secs", Message: "must not be negative"})
	}

	if c.Chat.Temperature < 0 || c.Chat.Temperature > 1 {
		errs = append(errs, ValidationError{
			Field:   "chat.temperature",
			Message: fmt.Sprintf("must be between 0 and 1, got %g", c.Chat.Temperature),
		})
	}
	switch c.Chat.StreamPolicy {
	case StreamPolicyAppend, StreamPolicyMerge:
	default:
		errs = append(errs, ValidationError{
			Field:   "chat.stream_policy",
			Message: fmt.Sprintf("must be %q or %q, got %q", StreamPolicyAppend, StreamPolicyMerge, c.Chat.StreamPolicy),
		})
	}

	switch c.UI.Theme {
	case "dark", "light":
	default:
		errs = append(errs, ValidationError{Field: "ui.theme", Message: fmt.Sprintf("unknown theme %q", c.UI.Theme)})
	}
	if c.UI.WordWrap < 0 {
		errs = append(errs, ValidationError{Field: "ui.word_wrap", Message: "must not be negative"})
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{Field: "logging.level", Message: fmt.Sprintf("unknown level %q", c.Logging.Level)})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// validateURL returns a message describing why raw is not an absolute URL
// with one of the given schemes, or "" if it is.
func validateURL(raw string, schemes ...string) string {
	if raw == "" {
		return "must not be empty"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Sprintf("invalid URL: %v", err)
	}
	for _, s := range schemes {
		if u.Scheme == s {
			if u.Host == "" {
				return "missing host"
			}
			return ""
		}
	}
	return fmt.Sprintf("scheme must be one of %s", strings.Join(schemes, ", "))
}

// SetDefaults fills zero values that must not stay empty.
func (c *Config) SetDefaults() {
	d := Default()
	if c.Server.WSURL == "" {
		c.Server.WSURL = d.Server.WSURL
	}
	if c.Server.APIURL == "" {
		c.Server.APIURL = d.Server.APIURL
	}
	if c.Server.SendPath == "" {
		c.Server.SendPath = d.Server.SendPath
	}
	if c.Session.StoreKind == "" {
		c.Session.StoreKind = d.Session.StoreKind
	}
	if c.Chat.Model == "" {
		c.Chat.Model = d.Chat.Model
	}
	if c.Chat.StreamPolicy == "" {
		c.Chat.StreamPolicy = d.Chat.StreamPolicy
	}
	c.Chat.StreamPolicy = strings.ToLower(c.Chat.StreamPolicy)
	if c.UI.Theme == "" {
		c.UI.Theme = d.UI.Theme
	}
	if c.UI.CodeStyle == "" {
		c.UI.CodeStyle = d.UI.CodeStyle
	}
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = d.Logging.MaxSizeMB
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies DOCCHAT_* environment variables:
//   - DOCCHAT_WS_URL, DOCCHAT_API_URL, DOCCHAT_API_KEY, DOCCHAT_PROXY
//   - DOCCHAT_SESSION, DOCCHAT_BUCKET, DOCCHAT_PATH
//   - DOCCHAT_MODEL, DOCCHAT_TEMPERATURE, DOCCHAT_STREAM_POLICY
//   - DOCCHAT_LOG_LEVEL
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("DOCCHAT_WS_URL"); v != "" {
		c.Server.WSURL = v
	}
	if v := os.Getenv("DOCCHAT_API_URL"); v != "" {
		c.Server.APIURL = v
	}
	if v := os.Getenv("DOCCHAT_API_KEY"); v != "" {
		c.Server.APIKey = v
	}
	if v := os.Getenv("DOCCHAT_PROXY"); v != "" {
		c.Server.Proxy = util.ParseBool(v)
	}
	if v := os.Getenv("DOCCHAT_SESSION"); v != "" {
		c.Session.ID = v
	}
	if v := os.Getenv("DOCCHAT_BUCKET"); v != "" {
		c.Session.Bucket = v
	}
	if v := os.Getenv("DOCCHAT_PATH"); v != "" {
		c.Session.Path = v
	}
	if v := os.Getenv("DOCCHAT_MODEL"); v != "" {
		c.Chat.Model = v
	}
	if v := os.Getenv("DOCCHAT_TEMPERATURE"); v != "" {
		if t, err := util.ParseTemperature(v); err == nil {
			c.Chat.Temperature = t
		}
	}
	if v := os.Getenv("DOCCHAT_STREAM_POLICY"); v != "" {
		c.Chat.StreamPolicy = v
	}
	if v := os.Getenv("DOCCHAT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "chat.model").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation (e.g., "chat.model").
// String values are converted to the field's type.
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	if key == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")
	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)
		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			if field.Kind() == reflect.Struct {
				return reflect.Value{}, fmt.Errorf("field '%s' is a section, not a value", key)
			}
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts a snake_case or kebab-case name to its Go field equivalent.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})

	var result strings.Builder
	for _, part := range parts {
		if len(part) > 0 {
			result.WriteString(strings.ToUpper(string(part[0])))
			result.WriteString(strings.ToLower(part[1:]))
		}
	}
	return result.String()
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Float64:
			floatVal, err := strconv.ParseFloat(strVal, 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %v", err)
			}
			field.SetFloat(floatVal)
			return nil
		case reflect.Bool:
			field.SetBool(util.ParseBool(strVal))
			return nil
		}
	}

	val := reflect.ValueOf(value)
	if !val.IsValid() {
		return fmt.Errorf("cannot assign nil to %s", field.Type())
	}
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// GetAllKeys returns all configuration keys in dot notation.
func GetAllKeys() []string {
	return []string{
		"server.ws_url",
		"server.api_url",
		"server.api_key",
		"server.proxy",
		"server.send_path",
		"server.send_timeout_secs",
		"session.id",
		"session.bucket",
		"session.path",
		"session.store_kind",
		"chat.model",
		"chat.system_prompt",
		"chat.temperature",
		"chat.sources",
		"chat.stream_policy",
		"ui.theme",
		"ui.code_style",
		"ui.mouse",
		"ui.word_wrap",
		"logging.path",
		"logging.level",
		"logging.max_size_mb",
		"logging.max_backups",
		"logging.max_age_days",
		"logging.compress",
	}
}

// Clone returns a copy of the configuration. Config holds no reference types.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// String returns a JSON rendering with the API key redacted.
func (c *Config) String() string {
	safe := c.Clone()
	if safe.Server.APIKey != "" {
		safe.Server.APIKey = "[REDACTED]"
	}
	data, _ := json.MarshalIndent(safe, "", "  ")
	return string(data)
}
