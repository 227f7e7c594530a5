package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "./config/config.yaml"

// Ledger backends
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Ledger load failure policies
const (
	OnLoadErrorAbort  = "abort"
	OnLoadErrorMemory = "memory"
)

// Session actions
const (
	ActionConnect = "connect"
	ActionMessage = "message"
)

// Decision sources
const (
	DecisionPrompt = "prompt"
	DecisionAuto   = "auto"
)

// Config represents the application configuration
type Config struct {
	LinkedIn   LinkedInConfig   `yaml:"linkedin"`
	Search     SearchConfig     `yaml:"search"`
	Connection ConnectionConfig `yaml:"connection"`
	Messaging  MessagingConfig  `yaml:"messaging"`
	Stealth    StealthConfig    `yaml:"stealth"`
	Ledger     LedgerConfig     `yaml:"ledger"`
	Session    SessionConfig    `yaml:"session"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// LinkedInConfig contains LinkedIn credentials
type LinkedInConfig struct {
	Email      string `yaml:"email"`
	Password   string `yaml:"password"`
	CookiePath string `yaml:"cookie_path"`
}

// SearchConfig contains search parameters
type SearchConfig struct {
	JobTitles  []string `yaml:"job_titles"`
	Locations  []string `yaml:"locations"`
	Keywords   []string `yaml:"keywords"`
	Profiles   []string `yaml:"profiles"`
	MaxResults int      `yaml:"max_results"`
	MaxPages   int      `yaml:"max_pages"`
}

// ConnectionConfig contains connection request settings
type ConnectionConfig struct {
	DailyLimit      int    `yaml:"daily_limit"`
	NoteTemplate    string `yaml:"note_template"`
	MaxNoteLength   int    `yaml:"max_note_length"`
	MinDelaySeconds int    `yaml:"min_delay_seconds"`
	MaxDelaySeconds int    `yaml:"max_delay_seconds"`
}

// MessagingConfig contains messaging settings
type MessagingConfig struct {
	Template        string `yaml:"template"`
	MinDelaySeconds int    `yaml:"min_delay_seconds"`
	MaxDelaySeconds int    `yaml:"max_delay_seconds"`
}

// StealthConfig contains pacing and browser settings
type StealthConfig struct {
	TypingSpeedMs     int           `yaml:"typing_speed_ms"`
	BusinessHoursOnly bool          `yaml:"business_hours_only"`
	BusinessHours     BusinessHours `yaml:"business_hours"`
	WorkDays          []string      `yaml:"work_days"`
	BreakEvery        int           `yaml:"break_every"`
	Headless          bool          `yaml:"headless"`
}

// BusinessHours defines the operating hours
type BusinessHours struct {
	Start int `yaml:"start"`
	End   int `yaml:"end"`
}

// LedgerConfig says where the "already contacted" records live
type LedgerConfig struct {
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path"`
	OnLoadError string `yaml:"on_load_error"`
}

// SessionConfig bounds one outreach run
type SessionConfig struct {
	Action              string `yaml:"action"`
	Decision            string `yaml:"decision"`
	MaxTargets          int    `yaml:"max_targets"`
	SendAttempts        int    `yaml:"send_attempts"`
	RetryBaseSeconds    int    `yaml:"retry_base_seconds"`
	RetryMaxSeconds     int    `yaml:"retry_max_seconds"`
	AbortOnPersistError bool   `yaml:"abort_on_persist_error"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level    string `yaml:"level"`
	ToFile   bool   `yaml:"to_file"`
	FilePath string `yaml:"file_path"`
}

// Load loads configuration from the file named by CONFIG_PATH (or DefaultPath)
// after reading a .env file if one exists
func Load() (*Config, error) {
	// Load .env file if it exists (ignore errors if not present)
	_ = godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = DefaultPath
	}

	return LoadFile(configPath)
}

// LoadFile reads, expands, defaults and validates a single YAML file
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML content
func Parse(data []byte) (*Config, error) {
	// Expand environment variables in YAML
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.LinkedIn.CookiePath == "" {
		c.LinkedIn.CookiePath = "./sessions/cookies.json"
	}
	if c.Search.MaxResults == 0 {
		c.Search.MaxResults = 10
	}
	if c.Search.MaxPages == 0 {
		c.Search.MaxPages = 1
	}
	if c.Connection.MaxNoteLength == 0 {
		c.Connection.MaxNoteLength = 300
	}
	if c.Stealth.BreakEvery == 0 {
		c.Stealth.BreakEvery = 25
	}
	if c.Ledger.Backend == "" {
		c.Ledger.Backend = BackendJSON
	}
	if c.Ledger.Path == "" {
		if c.Ledger.Backend == BackendSQLite {
			c.Ledger.Path = "./data/outreach.db"
		} else {
			c.Ledger.Path = "./data/contacted.json"
		}
	}
	if c.Ledger.OnLoadError == "" {
		c.Ledger.OnLoadError = OnLoadErrorAbort
	}
	if c.Session.Action == "" {
		c.Session.Action = ActionConnect
	}
	if c.Session.Decision == "" {
		c.Session.Decision = DecisionPrompt
	}
	if c.Session.SendAttempts == 0 {
		c.Session.SendAttempts = 2
	}
	if c.Session.RetryBaseSeconds == 0 {
		c.Session.RetryBaseSeconds = 2
	}
	if c.Session.RetryMaxSeconds == 0 {
		c.Session.RetryMaxSeconds = 30
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate LinkedIn credentials
	if c.LinkedIn.Email == "" {
		return fmt.Errorf("LinkedIn email is required")
	}
	if c.LinkedIn.Password == "" {
		return fmt.Errorf("LinkedIn password is required")
	}

	// Validate search config
	if c.Search.MaxResults < 0 {
		return fmt.Errorf("max_results must be positive")
	}
	if c.Search.MaxPages < 0 {
		return fmt.Errorf("max_pages must be positive")
	}

	// Validate connection config
	if c.Connection.DailyLimit < 0 {
		return fmt.Errorf("daily_limit must be non-negative")
	}
	if c.Connection.MinDelaySeconds < 0 {
		return fmt.Errorf("min_delay_seconds must be non-negative")
	}
	if c.Connection.MaxDelaySeconds < c.Connection.MinDelaySeconds {
		return fmt.Errorf("max_delay_seconds must be >= min_delay_seconds")
	}
	if c.Messaging.MinDelaySeconds < 0 {
		return fmt.Errorf("messaging min_delay_seconds must be non-negative")
	}
	if c.Messaging.MaxDelaySeconds < c.Messaging.MinDelaySeconds {
		return fmt.Errorf("messaging max_delay_seconds must be >= min_delay_seconds")
	}

	// Validate stealth config
	if c.Stealth.BusinessHours.Start < 0 || c.Stealth.BusinessHours.Start > 23 {
		return fmt.Errorf("business hours start must be between 0 and 23")
	}
	if c.Stealth.BusinessHours.End < 0 || c.Stealth.BusinessHours.End > 23 {
		return fmt.Errorf("business hours end must be between 0 and 23")
	}

	// Validate ledger config
	switch c.Ledger.Backend {
	case BackendJSON, BackendSQLite:
	default:
		return fmt.Errorf("invalid ledger backend: %s (must be json or sqlite)", c.Ledger.Backend)
	}
	switch c.Ledger.OnLoadError {
	case OnLoadErrorAbort, OnLoadErrorMemory:
	default:
		return fmt.Errorf("invalid on_load_error: %s (must be abort or memory)", c.Ledger.OnLoadError)
	}

	// Validate session config
	switch c.Session.Action {
	case ActionConnect, ActionMessage:
	default:
		return fmt.Errorf("invalid session action: %s (must be connect or message)", c.Session.Action)
	}
	switch c.Session.Decision {
	case DecisionPrompt, DecisionAuto:
	default:
		return fmt.Errorf("invalid decision source: %s (must be prompt or auto)", c.Session.Decision)
	}
	if c.Session.MaxTargets < 0 {
		return fmt.Errorf("max_targets must be non-negative")
	}
	if c.Session.SendAttempts < 1 {
		return fmt.Errorf("send_attempts must be at least 1")
	}
	if c.Session.Action == ActionMessage && c.Messaging.Template == "" {
		return fmt.Errorf("messaging template is required when action is message")
	}

	// Validate logging config
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	return nil
}

// IsBusinessHours checks if t is within business hours
func (c *Config) IsBusinessHours(t time.Time) bool {
	if !c.Stealth.BusinessHoursOnly {
		return true
	}

	// Check if it's a work day
	currentDay := t.Weekday().String()
	isWorkDay := false
	for _, day := range c.Stealth.WorkDays {
		if day == currentDay {
			isWorkDay = true
			break
		}
	}
	if !isWorkDay {
		return false
	}

	// Check if it's within business hours
	currentHour := t.Hour()
	return currentHour >= c.Stealth.BusinessHours.Start && currentHour < c.Stealth.BusinessHours.End
}

var envPattern = regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}
func expandEnvVars(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := envPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultValue := ""
		if len(parts) > 2 {
			defaultValue = parts[2]
		}

		value := os.Getenv(varName)
		if value == "" {
			return defaultValue
		}
		return value
	})
}

// ConnectionDelay returns the pause range between connection requests
func (c *Config) ConnectionDelay() (time.Duration, time.Duration) {
	return time.Duration(c.Connection.MinDelaySeconds) * time.Second,
		time.Duration(c.Connection.MaxDelaySeconds) * time.Second
}

// MessageDelay returns the pause range between messages
func (c *Config) MessageDelay() (time.Duration, time.Duration) {
	return time.Duration(c.Messaging.MinDelaySeconds) * time.Second,
		time.Duration(c.Messaging.MaxDelaySeconds) * time.Second
}

// GetTypingSpeed returns the typing speed as a duration
func (c *Config) GetTypingSpeed() time.Duration {
	return time.Duration(c.Stealth.TypingSpeedMs) * time.Millisecond
}

// RetryDelays returns the base and cap of the send retry backoff
func (c *Config) RetryDelays() (time.Duration, time.Duration) {
	return time.Duration(c.Session.RetryBaseSeconds) * time.Second,
		time.Duration(c.Session.RetryMaxSeconds) * time.Second
}
