package main

import (
	"ceksiak/internal/chrono"
	"ceksiak/internal/monitor"
	"ceksiak/internal/serviceutil"
	"ceksiak/internal/telemetry"
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run [-v] [--config <config.json5>]",
	Short: "Checks the course history on a schedule and sends a notification on every change.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := mustLoadConfig(true)
		ctx := serviceutil.SignalContext(cmd.Context())
		tel := telemetry.SlogAPI{}

		client, err := newClient(cfg, tel)
		if err != nil {
			serviceutil.Fatal("failed to create portal client", err)
		}
		store, closeStore, err := newStore(ctx, cfg, tel)
		if err != nil {
			serviceutil.Fatal("failed to open snapshot store", err)
		}
		defer closeStore()

		verifyCtx, cancel := context.WithTimeout(ctx, time.Second*30)
		notify, err := newNotifier(verifyCtx, cfg, tel)
		cancel()
		if err != nil {
			serviceutil.Fatal("failed to connect notifier", err)
		}

		m := monitor.New(monitor.Options{
			Portal:       client,
			Store:        store,
			Notifier:     notify,
			Username:     cfg.Siak.Username,
			Password:     cfg.Siak.Password,
			Telemetry:    tel,
			CycleTimeout: time.Duration(cfg.CycleTimeoutSeconds) * time.Second,
		})

		loginCtx, cancel := context.WithTimeout(ctx, time.Minute)
		err = m.Login(loginCtx)
		cancel()
		if err != nil {
			slog.Warn("initial login failed, the first check will try again", "err", err)
		} else {
			slog.Info("logged in", "username", cfg.Siak.Username)
		}

		slog.Info("watching course history", "schedule", cfg.Schedule)
		err = m.Run(ctx, chrono.NewStandardCron(tel), cfg.Schedule)
		if err != nil {
			serviceutil.Fatal("failed to schedule checks", err)
		}
		slog.Info("stopped")
	},
}
