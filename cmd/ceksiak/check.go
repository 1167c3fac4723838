package main

import (
	"ceksiak/internal/serviceutil"
	"ceksiak/internal/siak"
	"ceksiak/internal/telemetry"
	"context"
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(checkCmd)
}

func courseRows(courses []siak.Course) []table.Row {
	rows := make([]table.Row, len(courses))
	for i, c := range courses {
		rows[i] = table.Row{c.CourseCode, c.Curriculum, c.NameLocal, c.NameAlternate, c.Status}
	}
	return rows
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Logs in, scrapes the current term once and prints it without saving or notifying.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := mustLoadConfig(false)
		tel := telemetry.SlogAPI{}

		client, err := newClient(cfg, tel)
		if err != nil {
			serviceutil.Fatal("failed to create portal client", err)
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute*2)
		defer cancel()

		err = client.Login(ctx, cfg.Siak.Username, cfg.Siak.Password)
		if err != nil {
			serviceutil.Fatal("failed to log in", err)
		}
		courses, found, err := client.FetchCourses(ctx)
		if err != nil {
			serviceutil.Fatal("failed to fetch courses", err)
		}
		if !found {
			serviceutil.Fatal("failed to fetch courses", fmt.Errorf("history table not found after logging in"))
		}

		t := newTable()
		t.AppendHeader(table.Row{"Code", "Curriculum", "Name", "English name", "Status"})
		t.AppendRows(courseRows(courses))
		t.Render()
	},
}
