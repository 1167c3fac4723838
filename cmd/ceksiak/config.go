package main

import (
	"ceksiak/internal/configutil"
	"ceksiak/internal/monitor"
	"ceksiak/internal/siak"
	"ceksiak/internal/snapshot"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

type SiakConfig struct {
	BaseUrl  string `json:"base_url"`
	CertFile string `json:"cert_file"`
	Username string `json:"username"`
	Password string `json:"password"`
	// per request timeout
	TimeoutSeconds    int     `json:"timeout_seconds"`
	RequestsPerSecond float64 `json:"requests_per_second"`
}

type SnapshotConfig struct {
	File string `json:"file"`
	// sqlite file path or libsql:// url, takes priority over File when set
	Database string `json:"database"`
}

type DiscordConfig struct {
	Token     string `json:"token"`
	ChannelId string `json:"channel_id"`
}

func (c DiscordConfig) enabled() bool {
	return c.Token != "" || c.ChannelId != ""
}

type EmailConfig struct {
	Server   string   `json:"server"`
	Port     int      `json:"port"`
	Address  string   `json:"address"`
	Password string   `json:"password"`
	To       []string `json:"to"`
}

func (c EmailConfig) enabled() bool {
	return c.Server != ""
}

type Config struct {
	Siak                SiakConfig     `json:"siak"`
	Snapshot            SnapshotConfig `json:"snapshot"`
	Discord             DiscordConfig  `json:"discord"`
	Email               EmailConfig    `json:"email"`
	Schedule            string         `json:"schedule"`
	CycleTimeoutSeconds int            `json:"cycle_timeout_seconds"`
}

func (c *Config) applyEnv() error {
	configutil.EnvString("CEKSIAK_BOT_TOKEN", &c.Discord.Token)
	configutil.EnvString("CEKSIAK_CHANNEL_ID", &c.Discord.ChannelId)
	configutil.EnvString("CEKSIAK_SIAK_USERNAME", &c.Siak.Username)
	configutil.EnvString("CEKSIAK_SIAK_PASSWORD", &c.Siak.Password)
	configutil.EnvString("CEKSIAK_SMTP_PASSWORD", &c.Email.Password)
	return configutil.EnvInt("CEKSIAK_SMTP_PORT", &c.Email.Port)
}

func (c *Config) applyDefaults() {
	if c.Siak.BaseUrl == "" {
		c.Siak.BaseUrl = siak.DefaultBaseUrl
	}
	if c.Siak.CertFile == "" {
		c.Siak.CertFile = siak.DefaultCertFile
	}
	if c.Siak.TimeoutSeconds <= 0 {
		c.Siak.TimeoutSeconds = 30
	}
	if c.Siak.RequestsPerSecond <= 0 {
		c.Siak.RequestsPerSecond = 1
	}
	if c.Snapshot.File == "" {
		c.Snapshot.File = snapshot.DefaultFile
	}
	if c.Schedule == "" {
		c.Schedule = monitor.DefaultSchedule
	}
	if c.CycleTimeoutSeconds <= 0 {
		c.CycleTimeoutSeconds = int(monitor.DefaultCycleTimeout / time.Second)
	}
}

// Validate checks the settings that have no sensible default.
func (c Config) Validate(requireNotifier bool) error {
	var errs []error
	if c.Siak.Username == "" {
		errs = append(errs, fmt.Errorf("siak.username (or CEKSIAK_SIAK_USERNAME) is required"))
	}
	if c.Siak.Password == "" {
		errs = append(errs, fmt.Errorf("siak.password (or CEKSIAK_SIAK_PASSWORD) is required"))
	}
	if c.Discord.enabled() {
		if c.Discord.Token == "" {
			errs = append(errs, fmt.Errorf("discord.token (or CEKSIAK_BOT_TOKEN) is required when discord is configured"))
		}
		if c.Discord.ChannelId == "" {
			errs = append(errs, fmt.Errorf("discord.channel_id (or CEKSIAK_CHANNEL_ID) is required when discord is configured"))
		}
	}
	if c.Email.enabled() && c.Email.Address == "" {
		errs = append(errs, fmt.Errorf("email.address is required when email is configured"))
	}
	if requireNotifier && !c.Discord.enabled() && !c.Email.enabled() {
		errs = append(errs, fmt.Errorf("at least one of discord or email has to be configured"))
	}
	return errors.Join(errs...)
}

// LoadConfig reads the config file (and its .local override), then the .env.local and .env
// files next to it, then the process environment.
func LoadConfig(path string) (Config, error) {
	cfg, err := configutil.ReadConfig[Config](path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	err = configutil.LoadDotenv(
		filepath.Join(dir, ".env.local"),
		filepath.Join(dir, ".env"),
	)
	if err != nil {
		return Config{}, err
	}
	err = cfg.applyEnv()
	if err != nil {
		return Config{}, err
	}
	cfg.applyDefaults()

	return cfg, nil
}
