package config

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
)

// Config holds runtime configuration for the run monitor.
type Config struct {
	ListenAddr      string        `validate:"required"`
	ReadTimeout     time.Duration `validate:"gt=0"`
	WriteTimeout    time.Duration `validate:"gt=0"`
	ShutdownTimeout time.Duration `validate:"gt=0"`
	DefaultJobLimit int           `validate:"min=1,max=1000"`

	DBDriver       string `validate:"oneof=sqlite mysql"`
	DBPath         string `validate:"required_if=DBDriver sqlite"`
	DBHost         string `validate:"required_if=DBDriver mysql"`
	DBPort         int    `validate:"min=1,max=65535"`
	DBUser         string
	DBPassword     string
	DBName         string        `validate:"required_if=DBDriver mysql"`
	DBConnTimeout  time.Duration `validate:"gt=0"`
	DBQueryTimeout time.Duration `validate:"gt=0"`

	RefreshSchedule string        `validate:"required,cronspec"`
	SessionIdleTTL  time.Duration `validate:"gt=0"`
	WSPushInterval  time.Duration `validate:"gte=0"`

	LogLevel  string   `validate:"oneof=trace debug info warn error"`
	LogOutput []string `validate:"dive,oneof=stdout console file"`
	LogFile   string

	TUIRefreshInterval time.Duration `validate:"gt=0"`
}

// ScheduleParser accepts standard five-field specs, an optional leading seconds field
// and descriptors such as "@every 5s".
var ScheduleParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// FromEnv loads configuration from environment variables with sensible defaults.
func FromEnv() Config {
	loadConfigDefaultsFromFile()
	loadSecretsDefaultsFromFile()

	return Config{
		ListenAddr:         getEnv("APP_LISTEN_ADDR", ":8050"),
		ReadTimeout:        time.Duration(getEnvInt("APP_READ_TIMEOUT_SEC", 10)) * time.Second,
		WriteTimeout:       time.Duration(getEnvInt("APP_WRITE_TIMEOUT_SEC", 20)) * time.Second,
		ShutdownTimeout:    time.Duration(getEnvInt("APP_SHUTDOWN_TIMEOUT_SEC", 10)) * time.Second,
		DefaultJobLimit:    getEnvInt("APP_DEFAULT_JOB_LIMIT", 200),
		DBDriver:           strings.ToLower(getEnv("APP_DB_DRIVER", "sqlite")),
		DBPath:             getEnv("APP_DB_PATH", "./laue_portal.db"),
		DBHost:             getEnv("APP_DB_HOST", "127.0.0.1"),
		DBPort:             getEnvInt("APP_DB_PORT", 3306),
		DBUser:             getEnv("APP_DB_USER", "laue"),
		DBPassword:         getEnv("APP_DB_PASSWORD", ""),
		DBName:             getEnv("APP_DB_NAME", "laue_portal"),
		DBConnTimeout:      time.Duration(getEnvInt("APP_DB_CONN_TIMEOUT_SEC", 5)) * time.Second,
		DBQueryTimeout:     time.Duration(getEnvInt("APP_DB_QUERY_TIMEOUT_SEC", 10)) * time.Second,
		RefreshSchedule:    getEnv("APP_REFRESH_SCHEDULE", "@every 5s"),
		SessionIdleTTL:     time.Duration(getEnvInt("APP_SESSION_IDLE_MINUTES", 60)) * time.Minute,
		WSPushInterval:     time.Duration(getEnvInt("APP_WS_PUSH_INTERVAL_MS", 500)) * time.Millisecond,
		LogLevel:           strings.ToLower(getEnv("APP_LOG_LEVEL", "info")),
		LogOutput:          getEnvList("APP_LOG_OUTPUT", []string{"stdout"}),
		LogFile:            getEnv("APP_LOG_FILE", "./logs/laue-run-monitor.log"),
		TUIRefreshInterval: time.Duration(getEnvInt("APP_TUI_REFRESH_SEC", 5)) * time.Second,
	}
}

// Validate checks value ranges and cross-field requirements.
func (c Config) Validate() error {
	if err := newValidator().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("cronspec", func(fl validator.FieldLevel) bool {
		_, err := ScheduleParser.Parse(fl.Field().String())
		return err == nil
	})
	return v
}

func loadConfigDefaultsFromFile() {
	bootstrapCandidates := []string{
		"./laue-run-monitor.env",
		"/etc/default/laue-run-monitor",
	}

	for _, candidate := range bootstrapCandidates {
		_ = applyDefaultsFromFile(absPath(candidate))
	}

	candidates := make([]string, 0, 4)
	if explicit := strings.TrimSpace(os.Getenv("APP_CONFIG_FILE")); explicit != "" {
		candidates = append(candidates, explicit)
	}
	candidates = append(candidates, "./config.yaml", "/etc/laue-run-monitor/config.env")

	for _, candidate := range candidates {
		if err := applyDefaultsFromFile(absPath(candidate)); err == nil {
			return
		}
	}
}

func loadSecretsDefaultsFromFile() {
	candidates := make([]string, 0, 3)
	if explicit := strings.TrimSpace(os.Getenv("APP_SECRETS_FILE")); explicit != "" {
		candidates = append(candidates, explicit)
	}
	if credDir := strings.TrimSpace(os.Getenv("CREDENTIALS_DIRECTORY")); credDir != "" {
		credName := strings.TrimSpace(os.Getenv("APP_SECRETS_CREDENTIAL_NAME"))
		if credName == "" {
			credName = "app-secrets"
		}
		candidates = append(candidates, filepath.Join(credDir, credName))
	}
	candidates = append(candidates, "/etc/laue-run-monitor/secrets.env")
	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		if err := applyDefaultsFromFile(candidate); err == nil {
			return
		}
	}
}

func absPath(candidate string) string {
	if filepath.IsAbs(candidate) {
		return candidate
	}
	if wd, err := os.Getwd(); err == nil {
		return filepath.Join(wd, candidate)
	}
	return candidate
}

// applyDefaultsFromFile seeds unset environment variables from path. YAML and TOML
// documents are flattened to APP_* keys; anything else is read as KEY=VALUE lines.
func applyDefaultsFromFile(path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".toml":
		values, err := loadStructuredFile(path)
		if err != nil {
			return err
		}
		for key, val := range values {
			setDefault(key, val)
		}
		return nil
	}
	return applyEnvDefaultsFromFile(path)
}

func applyEnvDefaultsFromFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		kv := strings.SplitN(line, "=", 2)
		if len(kv) != 2 {
			continue
		}

		key := strings.TrimSpace(kv[0])
		val := strings.TrimSpace(kv[1])
		if key == "" {
			continue
		}

		if len(val) >= 2 {
			if (val[0] == '"' && val[len(val)-1] == '"') || (val[0] == '\'' && val[len(val)-1] == '\'') {
				val = val[1 : len(val)-1]
			}
		}

		setDefault(key, val)
	}

	return scanner.Err()
}

func setDefault(key, val string) {
	if os.Getenv(key) == "" {
		_ = os.Setenv(key, val)
	}
}

// DSN returns the database/sql data source name for the configured driver.
func (c Config) DSN() string {
	if c.DBDriver == "mysql" {
		return c.MySQLDSN()
	}
	params := url.Values{}
	params.Add("_pragma", "foreign_keys(1)")
	params.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", c.DBConnTimeout.Milliseconds()))
	return "file:" + c.DBPath + "?" + params.Encode()
}

// MySQLDSN returns a mysql driver DSN with safe defaults for TCP access.
func (c Config) MySQLDSN() string {
	params := url.Values{}
	params.Set("parseTime", "true")
	params.Set("loc", "UTC")
	params.Set("timeout", c.DBConnTimeout.String())
	params.Set("readTimeout", c.DBQueryTimeout.String())
	params.Set("writeTimeout", c.DBQueryTimeout.String())
	params.Set("charset", "utf8mb4")
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s", c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, params.Encode())
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return def
	}
	return parsed
}

func getEnvList(key string, def []string) []string {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		out := make([]string, 0, len(def))
		for _, d := range def {
			d = strings.TrimSpace(d)
			if d != "" {
				out = append(out, d)
			}
		}
		return out
	}

	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
