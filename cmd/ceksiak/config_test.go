package main

import (
	"ceksiak/internal/monitor"
	"ceksiak/internal/notifier"
	"ceksiak/internal/siak"
	"ceksiak/internal/snapshot"
	"ceksiak/internal/telemetry"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, key := range []string{
		"CEKSIAK_BOT_TOKEN",
		"CEKSIAK_CHANNEL_ID",
		"CEKSIAK_SIAK_USERNAME",
		"CEKSIAK_SIAK_PASSWORD",
		"CEKSIAK_SMTP_PASSWORD",
		"CEKSIAK_SMTP_PORT",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func writeFile(t *testing.T, path, contents string) {
	err := os.WriteFile(path, []byte(contents), 0644)
	if err != nil {
		t.Fatal(err)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.json5")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, siak.DefaultBaseUrl, cfg.Siak.BaseUrl)
	require.Equal(t, siak.DefaultCertFile, cfg.Siak.CertFile)
	require.Equal(t, 30, cfg.Siak.TimeoutSeconds)
	require.Equal(t, snapshot.DefaultFile, cfg.Snapshot.File)
	require.Equal(t, monitor.DefaultSchedule, cfg.Schedule)
	require.Equal(t, 300, cfg.CycleTimeoutSeconds)

	require.Error(t, cfg.Validate(true))
}

func TestLoadConfigLayers(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json5")

	writeFile(t, path, `{
		siak: {
			username: "from-file",
			password: "from-file",
		},
		discord: {
			token: "from-file",
			channel_id: "42",
		},
		schedule: "@every 10m",
	}`)
	writeFile(t, filepath.Join(dir, "config.local.json5"), `{
		siak: { password: "from-local" },
	}`)
	writeFile(t, filepath.Join(dir, ".env"), "CEKSIAK_BOT_TOKEN=from-dotenv\nCEKSIAK_SIAK_USERNAME=from-dotenv\n")
	t.Setenv("CEKSIAK_SIAK_USERNAME", "from-process")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "from-process", cfg.Siak.Username)
	require.Equal(t, "from-local", cfg.Siak.Password)
	require.Equal(t, "from-dotenv", cfg.Discord.Token)
	require.Equal(t, "42", cfg.Discord.ChannelId)
	require.Equal(t, "@every 10m", cfg.Schedule)
	require.NoError(t, cfg.Validate(true))
}

func TestLoadConfigInvalidFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.json5")
	writeFile(t, path, "{ siak: ")

	_, err := LoadConfig(path)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := Config{
		Siak:    SiakConfig{Username: "u", Password: "p"},
		Discord: DiscordConfig{Token: "t", ChannelId: "c"},
	}
	require.NoError(t, valid.Validate(true))

	emailOnly := valid
	emailOnly.Discord = DiscordConfig{}
	emailOnly.Email = EmailConfig{Server: "smtp.example.com", Address: "bot@example.com"}
	require.NoError(t, emailOnly.Validate(true))

	testCases := []struct {
		name   string
		mutate func(c *Config)
	}{
		{name: "missing username", mutate: func(c *Config) { c.Siak.Username = "" }},
		{name: "missing password", mutate: func(c *Config) { c.Siak.Password = "" }},
		{name: "discord without channel", mutate: func(c *Config) { c.Discord.ChannelId = "" }},
		{name: "discord without token", mutate: func(c *Config) { c.Discord.Token = "" }},
		{name: "no notifier", mutate: func(c *Config) { c.Discord = DiscordConfig{} }},
		{name: "email without sender", mutate: func(c *Config) {
			c.Email = EmailConfig{Server: "smtp.example.com"}
		}},
	}
	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			cfg := valid
			test.mutate(&cfg)
			require.Error(t, cfg.Validate(true))
		})
	}

	checkOnly := valid
	checkOnly.Discord = DiscordConfig{}
	require.NoError(t, checkOnly.Validate(false))
}

func TestNewStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	tel := &telemetry.Recorder{}

	cfg := Config{Snapshot: SnapshotConfig{File: filepath.Join(dir, "courses.json")}}
	store, closeStore, err := newStore(ctx, cfg, tel)
	require.NoError(t, err)
	defer closeStore()
	require.IsType(t, snapshot.FileStore{}, store)

	cfg.Snapshot.Database = filepath.Join(dir, "snapshots.db")
	store, closeDb, err := newStore(ctx, cfg, tel)
	require.NoError(t, err)
	defer closeDb()
	require.IsType(t, snapshot.SQLiteStore{}, store)

	err = store.Save(ctx, []siak.Course{{CourseCode: "CSGE601020", Status: siak.StatusEmpty}})
	require.NoError(t, err)
	courses, exists := store.Load(ctx)
	require.True(t, exists)
	require.Len(t, courses, 1)
}

func TestNewNotifierEmail(t *testing.T) {
	cfg := Config{Email: EmailConfig{Server: "smtp.example.com", Address: "bot@example.com"}}
	n, err := newNotifier(context.Background(), cfg, &telemetry.Recorder{})
	require.NoError(t, err)
	multi, ok := n.(notifier.Multi)
	require.True(t, ok)
	require.Len(t, multi, 1)
	require.IsType(t, notifier.Email{}, multi[0])
}
