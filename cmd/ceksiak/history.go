package main

import (
	"ceksiak/internal/serviceutil"
	"ceksiak/internal/telemetry"
	"context"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var historyLimit int

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 5, "The number of snapshots to show, 0 shows all of them.")
	rootCmd.AddCommand(historyCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history [-n <count>]",
	Short: "Lists the saved snapshots, newest first (requires snapshot.database).",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := LoadConfig(configPath)
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), time.Second*30)
		defer cancel()

		store, db, err := newSQLiteStore(ctx, cfg, telemetry.SlogAPI{})
		if err != nil {
			serviceutil.Fatal("failed to open snapshot database", err)
		}
		defer db.Close()

		entries, err := store.History(ctx, historyLimit)
		if err != nil {
			serviceutil.Fatal("failed to read snapshot history", err)
		}

		t := newTable()
		t.AppendHeader(table.Row{"Snapshot", "Saved at", "Code", "Name", "Status"})
		for _, entry := range entries {
			savedAt := entry.CreatedAt.Format(time.DateTime)
			if len(entry.Courses) == 0 {
				t.AppendRow(table.Row{entry.Id, savedAt, "", "", ""})
			}
			for _, c := range entry.Courses {
				t.AppendRow(table.Row{entry.Id, savedAt, c.CourseCode, c.NameLocal, c.Status})
			}
			t.AppendSeparator()
		}
		t.Render()
	},
}
