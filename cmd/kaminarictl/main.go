// kaminarictl is the operator CLI: it runs automation ticks by hand, reports the
// subscriber count, exports notification history, prints the audit trail and
// generates key material.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/amirphl/Kaminari/app/bootstrap"
	"github.com/amirphl/Kaminari/config"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

var (
	timeout time.Duration
	verbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "kaminarictl",
		Short:         "Operator tooling for the Kaminari web push service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().DurationVarP(&timeout, "timeout", "t", 10*time.Minute, "overall deadline for the command")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print service logs to stderr")

	rootCmd.AddCommand(tickCmd())
	rootCmd.AddCommand(countCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(auditCmd())
	rootCmd.AddCommand(vapidCmd())
	rootCmd.AddCommand(hashPasswordCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// cliEnv holds what the store-backed commands need
type cliEnv struct {
	cfg   *config.ProductionConfig
	repos bootstrap.Repositories
	flows *bootstrap.Flows
	close func()
}

func openEnv() (*cliEnv, error) {
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		return nil, err
	}

	out := io.Discard
	if verbose {
		out = os.Stderr
	}
	logger := log.New(out, "kaminarictl ", log.LstdFlags|log.LUTC)

	db, err := bootstrap.InitializeDatabase(cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	rc, err := bootstrap.InitializeCache(cfg.Cache, logger)
	if err != nil {
		return nil, err
	}

	repos := bootstrap.NewRepositories(db)
	flows, err := bootstrap.NewFlows(cfg, repos, rc, bootstrap.NewPushService(cfg.Push, logger), logger)
	if err != nil {
		return nil, err
	}

	return &cliEnv{
		cfg:   cfg,
		repos: repos,
		flows: flows,
		close: func() {
			if rc != nil {
				_ = rc.Close()
			}
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		},
	}, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func tickCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tick",
		Short: "Run one automation tick now (honours the shared tick lock)",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openEnv()
			if err != nil {
				return err
			}
			defer rt.close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			res, err := rt.flows.Automation.ProcessTick(ctx, time.Now().UTC())
			if err != nil {
				return fmt.Errorf("automation tick failed: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
}

func countCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print the number of stored subscriptions",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openEnv()
			if err != nil {
				return err
			}
			defer rt.close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			res, err := rt.flows.Subscribers.Count(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
}

func exportCmd() *cobra.Command {
	var (
		limit  int
		output string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write recent notification history to an xlsx file",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openEnv()
			if err != nil {
				return err
			}
			defer rt.close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			filename, content, err := rt.flows.History.ExportRecent(ctx, limit)
			if err != nil {
				return err
			}
			if output == "" {
				output = filename
			}
			if err := os.WriteFile(output, content, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", output)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "number of notifications (max 50)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output path (default: generated name)")
	return cmd
}

func auditCmd() *cobra.Command {
	var (
		limit      int
		failedOnly bool
	)
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Print the most recent operator audit entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openEnv()
			if err != nil {
				return err
			}
			defer rt.close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			list := rt.repos.Audit.ListRecent
			if failedOnly {
				list = rt.repos.Audit.ListFailedActions
			}
			entries, err := list(ctx, limit, 0)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), entries)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries")
	cmd.Flags().BoolVar(&failedOnly, "failed", false, "only failed actions")
	return cmd
}

func vapidCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "vapid",
		Short: "Generate a VAPID key pair as env lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			privateKey, publicKey, err := webpush.GenerateVAPIDKeys()
			if err != nil {
				return fmt.Errorf("failed to generate VAPID keys: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "VAPID_PUBLIC_KEY=%s\nVAPID_PRIVATE_KEY=%s\n", publicKey, privateKey)
			return nil
		},
	}
}

func hashPasswordCmd() *cobra.Command {
	var cost int
	cmd := &cobra.Command{
		Use:   "hash-password <password>",
		Short: "Print a bcrypt hash for ADMIN_PASSWORD_HASH",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := bcrypt.GenerateFromPassword([]byte(args[0]), cost)
			if err != nil {
				return fmt.Errorf("failed to hash password: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ADMIN_PASSWORD_HASH=%s\n", hash)
			return nil
		},
	}
	cmd.Flags().IntVar(&cost, "cost", bcrypt.DefaultCost, "bcrypt cost")
	return cmd
}
