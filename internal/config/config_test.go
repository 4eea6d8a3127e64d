package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DISCORD_TOKEN", "TOKEN", "DISCORD_CLIENT_ID", "HIGH_RANK_ROLE", "GRACE_WINDOW",
		"DEFAULT_MIN_ATTENDANCE", "HISTORY_LIMIT", "DB_HOST", "DB_PORT", "DB_USER",
		"DB_PASSWORD", "DB_NAME", "DB_SSLMODE", "DB_MIGRATION_PATH",
	} {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_YAMLWithPlaceholders(t *testing.T) {
	clearEnv(t)
	t.Setenv("TEST_BOT_TOKEN", "secret-token")
	path := writeConfig(t, `
discord:
  token: ${TEST_BOT_TOKEN}
  client_id: "1234"
database:
  host: db.local
  port: 6543
  user: bot
  password: pw
  dbname: attendance
  sslmode: require
attendance:
  high_rank_role: Officer
  grace_window: 2m
  default_min_attendance: 0.5
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "secret-token", cfg.Discord.Token)
	assert.Equal(t, "1234", cfg.Discord.ClientID)
	assert.Equal(t, "Officer", cfg.Attendance.HighRankRole)
	assert.Equal(t, 2*time.Minute, cfg.Attendance.GraceWindow)
	assert.Equal(t, 0.5, cfg.Attendance.MinAttendance())
	assert.True(t, cfg.Database.Enabled())
	assert.Equal(t, "postgres://bot:pw@db.local:6543/attendance?sslmode=require", cfg.Database.ConnString())
}

func TestLoad_EnvOnlyWithDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("DISCORD_TOKEN", "env-token")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "env-token", cfg.Discord.Token)
	assert.Equal(t, DefaultHighRankRole, cfg.Attendance.HighRankRole)
	assert.Equal(t, DefaultGraceWindow, cfg.Attendance.GraceWindow)
	assert.Equal(t, DefaultMinAttendance, cfg.Attendance.MinAttendance())
	assert.Equal(t, DefaultHistoryLimit, cfg.Attendance.HistoryLimit)
	assert.False(t, cfg.Database.Enabled())
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	clearEnv(t)
	t.Setenv("DISCORD_TOKEN", "from-env")
	t.Setenv("GRACE_WINDOW", "90s")
	t.Setenv("DB_PORT", "7000")
	t.Setenv("DEFAULT_MIN_ATTENDANCE", "0")
	path := writeConfig(t, `
discord:
  token: from-yaml
database:
  host: db.local
  port: 5432
attendance:
  grace_window: 10m
  default_min_attendance: 0.75
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Discord.Token)
	assert.Equal(t, 90*time.Second, cfg.Attendance.GraceWindow)
	assert.Equal(t, 7000, cfg.Database.Port)
	assert.Equal(t, 0.0, cfg.Attendance.MinAttendance())
}

func TestLoad_TokenFallback(t *testing.T) {
	clearEnv(t)
	t.Setenv("DISCORD_TOKEN", "")
	t.Setenv("TOKEN", "legacy-token")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "legacy-token", cfg.Discord.Token)
}

func TestLoad_Validation(t *testing.T) {
	clearEnv(t)
	t.Setenv("DISCORD_TOKEN", "")
	t.Setenv("TOKEN", "")
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err, "token is required")

	t.Setenv("DISCORD_TOKEN", "x")
	t.Setenv("DEFAULT_MIN_ATTENDANCE", "1.5")
	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	t.Setenv("DEFAULT_MIN_ATTENDANCE", "abc")
	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "error reading environment")
}

func TestLoad_MinAttendanceFromEnvOnly(t *testing.T) {
	clearEnv(t)
	t.Setenv("DISCORD_TOKEN", "x")
	t.Setenv("DEFAULT_MIN_ATTENDANCE", "0.4")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.NotNil(t, cfg.Attendance.DefaultMinAttendance)
	assert.Equal(t, 0.4, cfg.Attendance.MinAttendance())
}

func TestLoad_UnsetMinAttendanceKeepsYAML(t *testing.T) {
	clearEnv(t)
	t.Setenv("DISCORD_TOKEN", "x")
	path := writeConfig(t, `
attendance:
  default_min_attendance: 0.75
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.75, cfg.Attendance.MinAttendance())
}

func TestLoad_MalformedYAML(t *testing.T) {
	clearEnv(t)
	t.Setenv("DISCORD_TOKEN", "x")
	path := writeConfig(t, "discord: [unclosed")

	_, err := Load(path)
	assert.Error(t, err)
}

func TestConnStringEscapesCredentials(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "bot", Password: "p@ss/w", DBName: "att", SSLMode: "disable"}
	assert.Equal(t, "postgres://bot:p%40ss%2Fw@db:5432/att?sslmode=disable", d.ConnString())
}

func TestLoad_UnsetPlaceholdersAreEmpty(t *testing.T) {
	clearEnv(t)
	t.Setenv("DISCORD_TOKEN", "env-token")
	path := writeConfig(t, `
database:
  host: ${DB_HOST}
  password: pa$$word
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Empty(t, cfg.Database.Host)
	assert.False(t, cfg.Database.Enabled())
	assert.Equal(t, "pa$$word", cfg.Database.Password)
}
