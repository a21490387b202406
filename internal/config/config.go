package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/lestrrat-go/strftime"
	"github.com/spf13/viper"
)

const WildcardExport = "*"

var ErrInvalidTarget = errors.New("invalid backup target")

type Config struct {
	App           AppConfig      `mapstructure:"app"`
	Server        ServerConfig   `mapstructure:"server"`
	Backup        BackupConfig   `mapstructure:"backup"`
	Schedule      ScheduleConfig `mapstructure:"schedule"`
	UploadTargets []UploadTarget `mapstructure:"upload_targets"`
}

type AppConfig struct {
	Name     string `mapstructure:"name"`
	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`
}

type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

type BackupConfig struct {
	Exports             []string `mapstructure:"exports"`
	Forgets             []string `mapstructure:"forgets"`
	Folder              string   `mapstructure:"folder"`
	TimeFormat          string   `mapstructure:"time_format"`
	KeepCount           int      `mapstructure:"keep_count"`
	Passphrase          string   `mapstructure:"passphrase"`
	DumpCommand         string   `mapstructure:"dump_command"`
	DumpArgs            []string `mapstructure:"dump_args"`
	RemoteRetentionDays int      `mapstructure:"remote_retention_days"`
}

type ScheduleConfig struct {
	TriggerTime string `mapstructure:"trigger_time"`
	Timezone    string `mapstructure:"timezone"`
}

type UploadTarget struct {
	Type    string `mapstructure:"type"`
	Enabled bool   `mapstructure:"enabled"`

	// Google Drive
	CredentialsFile  string `mapstructure:"credentials_file"`
	ClientSecretFile string `mapstructure:"client_secret_file"`
	RefreshToken     string `mapstructure:"refresh_token"`
	FolderID         string `mapstructure:"folder_id"`

	// AWS S3
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`

	// Telegram
	BotToken   string `mapstructure:"bot_token"`
	ChatID     string `mapstructure:"chat_id"`
	SendFile   bool   `mapstructure:"send_file"`
	NotifyOnly bool   `mapstructure:"notify_only"`
}

// envBindings maps config keys to the environment variable names the
// deployment .env files use.
var envBindings = map[string]string{
	"server.host":           "DB_HOST",
	"server.port":           "DB_PORT",
	"server.username":       "DB_USERNAME",
	"server.password":       "DB_PASSWORD",
	"backup.exports":        "DB_EXPORTS",
	"backup.forgets":        "DB_FORGETS",
	"backup.folder":         "DB_FOLDER",
	"backup.time_format":    "DB_BACKUP_FILE_TIME_FORMAT",
	"backup.keep_count":     "DB_BACKUP_FILE_KEEP_SIZE",
	"backup.passphrase":     "DB_BACKUP_PASSPHRASE",
	"schedule.trigger_time": "DB_BACKUP_TRIGGER_TIME",
	"schedule.timezone":     "DB_BACKUP_TIMEZONE",
	"app.log_level":         "LOG_LEVEL",
	"app.log_file":          "LOG_FILE",
}

// Loader reads a fresh Config on every call so a long running process picks
// up edits to the YAML or .env file at the next cycle.
type Loader struct {
	ConfigPath string
	EnvFile    string
}

func (l Loader) Load() (*Config, error) {
	return Load(l.ConfigPath, l.EnvFile)
}

func Load(path, envFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("app.name", "dbvault")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("server.port", 3306)
	v.SetDefault("server.connect_timeout", 10*time.Second)
	v.SetDefault("backup.exports", []string{WildcardExport})
	v.SetDefault("backup.forgets", []string{"information_schema", "performance_schema", "sys"})
	v.SetDefault("backup.keep_count", 7)
	v.SetDefault("backup.dump_command", "mysqldump")
	v.SetDefault("schedule.trigger_time", "00:00:00")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat config: %w", err)
		}
	}

	dotenv, err := readEnvFile(envFile)
	if err != nil {
		return nil, err
	}

	for key, name := range envBindings {
		if err := v.BindEnv(key, name); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", name, err)
		}
		if _, set := os.LookupEnv(name); set {
			continue
		}
		if val, ok := dotenv[name]; ok {
			v.Set(key, val)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Backup.Exports = splitList(cfg.Backup.Exports)
	cfg.Backup.Forgets = splitList(cfg.Backup.Forgets)

	layout, err := TimeLayout(cfg.Backup.TimeFormat)
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	cfg.Backup.TimeFormat = layout

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// readEnvFile looks for the .env file at the given path first and then next
// to the running executable. A missing file is not an error.
func readEnvFile(envFile string) (map[string]string, error) {
	if envFile == "" {
		return map[string]string{}, nil
	}

	candidates := []string{envFile}
	if !filepath.IsAbs(envFile) {
		if exe, err := os.Executable(); err == nil {
			candidates = append(candidates, filepath.Join(filepath.Dir(exe), envFile))
		}
	}

	for _, candidate := range candidates {
		values, err := godotenv.Read(candidate)
		if err == nil {
			return values, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read env file %s: %w", candidate, err)
		}
	}

	return map[string]string{}, nil
}

// splitList trims entries and drops empty ones. Values arriving from the
// environment are comma separated.
func splitList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate checks the settings needed to start the process. The backup
// target itself is checked per cycle by ValidateTarget.
func (c *Config) Validate() error {
	if _, err := ParseTriggerTime(c.Schedule.TriggerTime); err != nil {
		return err
	}
	if c.Schedule.Timezone != "" {
		if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
			return fmt.Errorf("schedule.timezone: %w", err)
		}
	}
	return nil
}

func (c *Config) ValidateTarget() error {
	switch {
	case c.Server.Host == "":
		return fmt.Errorf("%w: server.host is required", ErrInvalidTarget)
	case c.Server.Port <= 0 || c.Server.Port > 65535:
		return fmt.Errorf("%w: server.port %d out of range", ErrInvalidTarget, c.Server.Port)
	case c.Server.Username == "":
		return fmt.Errorf("%w: server.username is required", ErrInvalidTarget)
	case len(c.Backup.Exports) == 0:
		return fmt.Errorf("%w: backup.exports is required", ErrInvalidTarget)
	case c.Backup.Folder == "":
		return fmt.Errorf("%w: backup.folder is required", ErrInvalidTarget)
	case c.Backup.KeepCount < 0:
		return fmt.Errorf("%w: backup.keep_count must not be negative", ErrInvalidTarget)
	case c.Backup.Passphrase == "":
		return fmt.Errorf("%w: backup.passphrase is required", ErrInvalidTarget)
	case c.Backup.DumpCommand == "":
		return fmt.Errorf("%w: backup.dump_command is required", ErrInvalidTarget)
	case c.Backup.TimeFormat != "" && constantLayout(c.Backup.TimeFormat):
		return fmt.Errorf("%w: backup.time_format %q yields the same name at every instant", ErrInvalidTarget, c.Backup.TimeFormat)
	}
	return nil
}

// referenceTime is the instant Go layouts are written in.
var referenceTime = time.Date(2006, time.January, 2, 15, 4, 5, 0, time.FixedZone("MST", -7*60*60))

// TimeLayout turns a backup.time_format value into a Go layout. Values
// containing % are strftime patterns, as written in older .env files, and
// are rendered at the reference time to obtain the equivalent layout. Other
// values are taken as Go layouts already.
func TimeLayout(format string) (string, error) {
	if !strings.Contains(format, "%") {
		return format, nil
	}
	layout, err := strftime.Format(format, referenceTime)
	if err != nil {
		return "", fmt.Errorf("backup.time_format %q: %w", format, err)
	}
	return layout, nil
}

func constantLayout(layout string) bool {
	a := time.Date(2001, time.February, 3, 4, 5, 6, 1_000_000, time.UTC)
	b := time.Date(2002, time.March, 4, 5, 6, 7, 2_000_000, time.UTC)
	return a.Format(layout) == b.Format(layout)
}

// TimeOfDay is a wall clock instant within a day.
type TimeOfDay struct {
	Hour   int
	Minute int
	Second int
}

func ParseTriggerTime(s string) (TimeOfDay, error) {
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return TimeOfDay{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}, nil
		}
	}
	return TimeOfDay{}, fmt.Errorf("schedule.trigger_time %q: expected HH:MM:SS", s)
}

func (c *Config) Location() *time.Location {
	if c.Schedule.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Schedule.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func (c *Config) GetEnabledUploadTargets() []UploadTarget {
	var enabled []UploadTarget
	for _, target := range c.UploadTargets {
		if target.Enabled {
			enabled = append(enabled, target)
		}
	}
	return enabled
}
