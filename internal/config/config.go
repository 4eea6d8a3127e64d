package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPath          = "config.yaml"
	DefaultHighRankRole  = "brotato"
	DefaultGraceWindow   = 5 * time.Minute
	DefaultMinAttendance = 0.25
	DefaultHistoryLimit  = 10
	DefaultMigrationPath = "migrations/001_initial_schema.sql"
)

type Config struct {
	Discord    DiscordConfig    `yaml:"discord"`
	Database   DatabaseConfig   `yaml:"database"`
	Attendance AttendanceConfig `yaml:"attendance"`
}

type DiscordConfig struct {
	Token    string `yaml:"token" env:"DISCORD_TOKEN"`
	ClientID string `yaml:"client_id" env:"DISCORD_CLIENT_ID"`
	// Permissions is computed at startup, never configured.
	Permissions int64 `yaml:"-" env:"-"`
}

type DatabaseConfig struct {
	Host          string `yaml:"host" env:"DB_HOST"`
	Port          int    `yaml:"port" env:"DB_PORT"`
	User          string `yaml:"user" env:"DB_USER"`
	Password      string `yaml:"password" env:"DB_PASSWORD"`
	DBName        string `yaml:"dbname" env:"DB_NAME"`
	SSLMode       string `yaml:"sslmode" env:"DB_SSLMODE"`
	MigrationPath string `yaml:"migration_path" env:"DB_MIGRATION_PATH"`
}

type AttendanceConfig struct {
	HighRankRole         string        `yaml:"high_rank_role" env:"HIGH_RANK_ROLE"`
	GraceWindow          time.Duration `yaml:"grace_window" env:"GRACE_WINDOW"`
	DefaultMinAttendance *float64      `yaml:"default_min_attendance" env:"DEFAULT_MIN_ATTENDANCE"`
	HistoryLimit         int           `yaml:"history_limit" env:"HISTORY_LIMIT"`
}

// Enabled reports whether a report archive database is configured.
func (d DatabaseConfig) Enabled() bool {
	return d.Host != ""
}

// ConnString builds the PostgreSQL URL for pgx.
func (d DatabaseConfig) ConnString() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     "/" + d.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(d.SSLMode),
	}
	return u.String()
}

// MinAttendance returns the configured default or DefaultMinAttendance.
func (a AttendanceConfig) MinAttendance() float64 {
	if a.DefaultMinAttendance == nil {
		return DefaultMinAttendance
	}
	return *a.DefaultMinAttendance
}

// Load reads the YAML file at path (missing file allowed), substitutes
// ${VAR} placeholders, then applies environment overrides and defaults.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal([]byte(expandEnv(string(data))), &cfg); err != nil {
			return nil, fmt.Errorf("error parsing config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("error reading environment: %w", err)
	}

	// Some hosts only expose the token as TOKEN.
	if cfg.Discord.Token == "" {
		cfg.Discord.Token = os.Getenv("TOKEN")
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var placeholder = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv replaces ${VAR} placeholders; unset variables become empty.
func expandEnv(content string) string {
	return placeholder.ReplaceAllStringFunc(content, func(m string) string {
		return os.Getenv(m[2 : len(m)-1])
	})
}

func (c *Config) applyDefaults() {
	if c.Attendance.HighRankRole == "" {
		c.Attendance.HighRankRole = DefaultHighRankRole
	}
	if c.Attendance.GraceWindow == 0 {
		c.Attendance.GraceWindow = DefaultGraceWindow
	}
	if c.Attendance.HistoryLimit == 0 {
		c.Attendance.HistoryLimit = DefaultHistoryLimit
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Database.MigrationPath == "" {
		c.Database.MigrationPath = DefaultMigrationPath
	}
}

func (c *Config) validate() error {
	if c.Discord.Token == "" {
		return errors.New("discord token is required (DISCORD_TOKEN or TOKEN)")
	}
	if c.Attendance.GraceWindow < 0 {
		return fmt.Errorf("grace window must be positive, got %s", c.Attendance.GraceWindow)
	}
	if m := c.Attendance.MinAttendance(); m < 0 || m > 1 {
		return fmt.Errorf("default minimum attendance must be between 0 and 1, got %v", m)
	}
	return nil
}
