package main

import (
	"ceksiak/internal/notifier"
	"ceksiak/internal/siak"
	"ceksiak/internal/snapshot"
	"ceksiak/internal/telemetry"
	"context"
	"time"
)

func newClient(cfg Config, tel telemetry.API) (*siak.Client, error) {
	return siak.NewClient(siak.ClientOptions{
		BaseUrl:           cfg.Siak.BaseUrl,
		CertFile:          cfg.Siak.CertFile,
		Timeout:           time.Duration(cfg.Siak.TimeoutSeconds) * time.Second,
		RequestsPerSecond: cfg.Siak.RequestsPerSecond,
	}, tel)
}

// newStore returns the sqlite store when a database is configured and the file store
// otherwise, the returned function releases the store.
func newStore(ctx context.Context, cfg Config, tel telemetry.API) (snapshot.Store, func(), error) {
	if cfg.Snapshot.Database == "" {
		return snapshot.NewFileStore(cfg.Snapshot.File, tel), func() {}, nil
	}

	store, db, err := newSQLiteStore(ctx, cfg, tel)
	if err != nil {
		return nil, nil, err
	}
	return store, func() { db.Close() }, nil
}

// newNotifier builds every configured notifier, a discord bot token that is rejected
// is an error.
func newNotifier(ctx context.Context, cfg Config, tel telemetry.API) (notifier.Notifier, error) {
	var notifiers notifier.Multi

	if cfg.Discord.enabled() {
		discord := notifier.NewDiscord(notifier.DiscordOptions{
			Token:     cfg.Discord.Token,
			ChannelId: cfg.Discord.ChannelId,
		}, tel)
		err := discord.Verify(ctx)
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, discord)
	}
	if cfg.Email.enabled() {
		notifiers = append(notifiers, notifier.NewEmail(notifier.EmailOptions{
			Server:   cfg.Email.Server,
			Port:     cfg.Email.Port,
			Address:  cfg.Email.Address,
			Password: cfg.Email.Password,
			To:       cfg.Email.To,
		}, tel))
	}

	return notifiers, nil
}
