// Package main implements ceylonctl, the operator CLI for Ceylon360.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/heritagelanka/ceylon360-backend/internal/app"
	"github.com/heritagelanka/ceylon360-backend/internal/config"
	"github.com/heritagelanka/ceylon360-backend/internal/logger"
	"github.com/heritagelanka/ceylon360-backend/internal/metrics"
	"github.com/heritagelanka/ceylon360-backend/internal/planner"
	"github.com/heritagelanka/ceylon360-backend/internal/services"
	"github.com/heritagelanka/ceylon360-backend/internal/utils"
)

var version = "1.0.0"

func main() {
	rootCmd := &cobra.Command{
		Use:     "ceylonctl",
		Short:   "Ceylon360 operator tool",
		Long:    `ceylonctl runs reminder jobs, generates secrets and checks AI itinerary drafts.`,
		Version: version,
	}

	rootCmd.AddCommand(remindersCmd())
	rootCmd.AddCommand(secretsCmd())
	rootCmd.AddCommand(planCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func remindersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reminders",
		Short: "Run reminder jobs outside the scheduler",
	}

	run := &cobra.Command{
		Use:       "run [trip-start|daily-itinerary]",
		Short:     "Run one reminder job now and print its result",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"trip-start", "daily-itinerary"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			log := logger.New(cfg.Server.LogLevel, cfg.Logging)

			a, err := app.New(cmd.Context(), cfg, log, prometheus.NewRegistry())
			if err != nil {
				return err
			}
			defer a.Close()

			var result *services.RunResult
			switch args[0] {
			case "trip-start":
				result, err = a.Cron.RunTripStartNow()
			default:
				result, err = a.Cron.RunDailyItineraryNow()
			}
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		},
	}

	cmd.AddCommand(run)
	return cmd
}

func secretsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secrets",
		Short: "Manage signing secrets",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "generate",
		Short: "Print fresh JWT access and refresh secrets",
		RunE: func(cmd *cobra.Command, args []string) error {
			accessSecret, refreshSecret, err := utils.GenerateJWTSecrets()
			if err != nil {
				return fmt.Errorf("failed to generate secrets: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "JWT_SECRET=%s\n", accessSecret)
			fmt.Fprintf(out, "JWT_REFRESH_SECRET=%s\n", refreshSecret)
			return nil
		},
	})

	return cmd
}

func planCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Work with AI itinerary drafts",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "validate <draft.json>",
		Short: "Validate a saved LLM draft and print the locations that survive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			draft, err := planner.ParseDraft(string(content))
			if err != nil {
				return err
			}

			log := logger.New("warn", config.LoggingConfig{})
			plans := services.NewPlanService(nil, metrics.New(prometheus.NewRegistry()), log)
			return printJSON(cmd, plans.ValidateDraft(draft))
		},
	})

	return cmd
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
