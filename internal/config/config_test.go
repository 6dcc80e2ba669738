package config

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var appKeys = []string{
	"APP_LISTEN_ADDR", "APP_DEFAULT_JOB_LIMIT",
	"APP_DB_DRIVER", "APP_DB_PATH", "APP_DB_HOST", "APP_DB_PORT", "APP_DB_USER", "APP_DB_PASSWORD", "APP_DB_NAME",
	"APP_REFRESH_SCHEDULE", "APP_SESSION_IDLE_MINUTES", "APP_WS_PUSH_INTERVAL_MS",
	"APP_LOG_LEVEL", "APP_LOG_OUTPUT", "APP_LOG_FILE", "APP_TUI_REFRESH_SEC",
}

// isolateEnv blanks every APP_* key for the test and points the file lookups at path.
// Keys seeded from files are restored by t.Setenv's cleanup.
func isolateEnv(t *testing.T, path string) {
	t.Helper()
	for _, k := range appKeys {
		t.Setenv(k, "")
	}
	t.Setenv("APP_CONFIG_FILE", path)
	t.Setenv("APP_SECRETS_FILE", filepath.Join(t.TempDir(), "missing-secrets.env"))
	t.Setenv("CREDENTIALS_DIRECTORY", "")
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestFromEnvDefaults(t *testing.T) {
	isolateEnv(t, filepath.Join(t.TempDir(), "missing.env"))

	cfg := FromEnv()
	assert.Equal(t, ":8050", cfg.ListenAddr)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "./laue_portal.db", cfg.DBPath)
	assert.Equal(t, 3306, cfg.DBPort)
	assert.Equal(t, "@every 5s", cfg.RefreshSchedule)
	assert.Equal(t, time.Hour, cfg.SessionIdleTTL)
	assert.Equal(t, 500*time.Millisecond, cfg.WSPushInterval)
	assert.Equal(t, []string{"stdout"}, cfg.LogOutput)
	assert.Equal(t, 5*time.Second, cfg.TUIRefreshInterval)
	assert.NoError(t, cfg.Validate())
}

func TestFromEnvReadsEnvFile(t *testing.T) {
	path := writeFile(t, "monitor.env", `
# site overrides
APP_DB_DRIVER=mysql
APP_DB_HOST="db.beamline.local"
APP_DB_PORT=9999
APP_LOG_OUTPUT='stdout, file'
not a setting
`)
	isolateEnv(t, path)
	t.Setenv("APP_DB_PORT", "3307")

	cfg := FromEnv()
	assert.Equal(t, "mysql", cfg.DBDriver)
	assert.Equal(t, "db.beamline.local", cfg.DBHost)
	assert.Equal(t, 3307, cfg.DBPort, "explicit environment wins over the file")
	assert.Equal(t, []string{"stdout", "file"}, cfg.LogOutput)
	assert.NoError(t, cfg.Validate())
}

func TestFromEnvReadsYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
db:
  driver: mysql
  host: db.local
  name: portal
refresh-schedule: "*/10 * * * * *"
log_output: [stdout, file]
default_job_limit: 25
`)
	isolateEnv(t, path)

	cfg := FromEnv()
	assert.Equal(t, "mysql", cfg.DBDriver)
	assert.Equal(t, "db.local", cfg.DBHost)
	assert.Equal(t, "portal", cfg.DBName)
	assert.Equal(t, "*/10 * * * * *", cfg.RefreshSchedule)
	assert.Equal(t, []string{"stdout", "file"}, cfg.LogOutput)
	assert.Equal(t, 25, cfg.DefaultJobLimit)
	assert.NoError(t, cfg.Validate())
}

func TestLoadStructuredFileTOML(t *testing.T) {
	path := writeFile(t, "config.toml", `
listen_addr = ":9000"
log_output = ["file"]

[db]
driver = "sqlite"
path = "/data/laue.db"
port = 3310
`)

	values, err := loadStructuredFile(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"APP_LISTEN_ADDR": ":9000",
		"APP_LOG_OUTPUT":  "file",
		"APP_DB_DRIVER":   "sqlite",
		"APP_DB_PATH":     "/data/laue.db",
		"APP_DB_PORT":     "3310",
	}, values)
}

func TestLoadStructuredFileRejectsBrokenDocument(t *testing.T) {
	path := writeFile(t, "config.yaml", "db: [unterminated\n")
	_, err := loadStructuredFile(path)
	assert.Error(t, err)
}

func validConfig() Config {
	return Config{
		ListenAddr:         ":8050",
		ReadTimeout:        time.Second,
		WriteTimeout:       time.Second,
		ShutdownTimeout:    time.Second,
		DefaultJobLimit:    100,
		DBDriver:           "sqlite",
		DBPath:             "laue.db",
		DBPort:             3306,
		DBConnTimeout:      time.Second,
		DBQueryTimeout:     time.Second,
		RefreshSchedule:    "@every 5s",
		SessionIdleTTL:     time.Minute,
		LogLevel:           "info",
		LogOutput:          []string{"stdout"},
		TUIRefreshInterval: time.Second,
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	cases := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"unknown driver", func(c *Config) { c.DBDriver = "postgres" }, "DBDriver"},
		{"sqlite without path", func(c *Config) { c.DBPath = "" }, "DBPath"},
		{"mysql without host", func(c *Config) { c.DBDriver = "mysql" }, "DBHost"},
		{"bad schedule", func(c *Config) { c.RefreshSchedule = "every now and then" }, "RefreshSchedule"},
		{"job limit too large", func(c *Config) { c.DefaultJobLimit = 5000 }, "DefaultJobLimit"},
		{"negative push interval", func(c *Config) { c.WSPushInterval = -time.Second }, "WSPushInterval"},
		{"unknown log output", func(c *Config) { c.LogOutput = []string{"syslog"} }, "LogOutput"},
		{"unknown log level", func(c *Config) { c.LogLevel = "loud" }, "LogLevel"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, strings.HasPrefix(err.Error(), "invalid configuration:"))
			assert.Contains(t, err.Error(), tc.field)
		})
	}
}

func TestDSN(t *testing.T) {
	cfg := validConfig()
	cfg.DBPath = "/data/laue.db"
	cfg.DBConnTimeout = 5 * time.Second

	dsn := cfg.DSN()
	require.True(t, strings.HasPrefix(dsn, "file:/data/laue.db?"))
	q, err := url.ParseQuery(strings.SplitN(dsn, "?", 2)[1])
	require.NoError(t, err)
	assert.Equal(t, []string{"foreign_keys(1)", "busy_timeout(5000)"}, q["_pragma"])

	cfg.DBDriver = "mysql"
	cfg.DBHost = "db"
	cfg.DBUser = "laue"
	cfg.DBPassword = "pw"
	cfg.DBName = "portal"
	dsn = cfg.DSN()
	assert.True(t, strings.HasPrefix(dsn, "laue:pw@tcp(db:3306)/portal?"))
	assert.Contains(t, dsn, "parseTime=true")
}
