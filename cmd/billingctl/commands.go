package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"workspace-billing/internal/application"
	"workspace-billing/internal/config"
	"workspace-billing/internal/domain/model"
	"workspace-billing/internal/infra/api/apiv1"
	pg "workspace-billing/internal/infra/db/postgres"
	"workspace-billing/internal/infra/logging"
	"workspace-billing/internal/infra/sched"
)

var (
	cfgPath  string
	devMode  bool
	timeout  time.Duration
	tokenTTL time.Duration
)

var rootCmd = &cobra.Command{
	Use:           "billingctl",
	Short:         "Operator tooling for workspace billing",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "path to YAML config file")
	rootCmd.PersistentFlags().BoolVar(&devMode, "dev", false, "console logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "overall command timeout")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")

	migrateCmd.AddCommand(migrateStatusCmd)
	rootCmd.AddCommand(migrateCmd, seedCmd, syncProvidersCmd, expireTrialsCmd, statsCmd, tokenCmd)
}

func loadConfig() (*config.Config, *zerolog.Logger, error) {
	cfg, err := config.LoadConfig(cfgPath, devMode)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logging.New(cfg.Log, cfg.Runtime.Dev), nil
}

// withContainer runs fn against a fully wired container.
func withContainer(cmd *cobra.Command, fn func(ctx context.Context, c *application.Container) error) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	c, err := application.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(ctx, c)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()
		pool, err := pg.Connect(ctx, cfg.Database.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := pg.Migrate(ctx, pool); err != nil {
			return err
		}
		v, err := pg.MigrationVersion(ctx, pool)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "database at version %d\n", v)
		return nil
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the current schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()
		pool, err := pg.Connect(ctx, cfg.Database.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		v, err := pg.MigrationVersion(ctx, pool)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "database at version %d\n", v)
		return nil
	},
}

// seedCatalog is the default plan catalog. Prices are whole rupees and dollars.
func seedCatalog() ([]*model.Plan, error) {
	specs := []struct {
		id, name, slug      string
		inr, usd            int64
		users, projects, ws int
		features            []string
	}{
		{"plan-free", "Free", "free", 0, 0, 1, 1, 1, []string{"basic_reports"}},
		{"plan-starter", "Starter", "starter", 499, 9, 3, 5, 1, []string{"basic_reports", "email_support"}},
		{"plan-pro", "Pro", "pro", 1499, 19, 10, 20, 3, []string{"basic_reports", "advanced_reports", "priority_support", "api_access"}},
		{"plan-business", "Business", "business", 4999, 59, model.Unlimited, 50, model.Unlimited, []string{"basic_reports", "advanced_reports", "priority_support", "api_access", "sso", "audit_log"}},
	}
	out := make([]*model.Plan, 0, len(specs))
	for _, s := range specs {
		p, err := model.NewPlan(s.id, s.name, s.slug, s.inr, s.usd, s.users, s.projects, s.ws, s.features)
		if err != nil {
			return nil, fmt.Errorf("plan %s: %w", s.slug, err)
		}
		out = append(out, p)
	}
	return out, nil
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create or update the default plan catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		plans, err := seedCatalog()
		if err != nil {
			return err
		}
		return withContainer(cmd, func(ctx context.Context, c *application.Container) error {
			for _, p := range plans {
				if err := c.Plans.Create(ctx, p); err != nil {
					return fmt.Errorf("seed %s: %w", p.Slug, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "seeded: %s (INR %d, USD %d, users=%d projects=%d workspaces=%d)\n",
					p.Slug, p.PriceINR, p.PriceUSD, p.MaxUsers, p.MaxProjects, p.MaxWorkspaces)
			}
			return nil
		})
	},
}

var syncProvidersCmd = &cobra.Command{
	Use:   "sync-providers",
	Short: "Create provider plans/prices for plans missing provider ids",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd, func(ctx context.Context, c *application.Container) error {
			if len(c.Providers) == 0 {
				return fmt.Errorf("no payment provider configured")
			}
			n, err := c.Plans.SyncProviders(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored %d provider plan ids\n", n)
			return nil
		})
	},
}

var expireTrialsCmd = &cobra.Command{
	Use:   "expire-trials",
	Short: "Expire lapsed trials now",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd, func(ctx context.Context, c *application.Container) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			w := sched.NewExpiryWorker(cfg.Scheduler.TrialSweepInterval, cfg.Scheduler.TrialSweepBatch, c.Status, c.Locker, logger)
			n, err := w.RunOnce(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "expired %d trials\n", n)
			return nil
		})
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print subscription counts and captured revenue",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd, func(ctx context.Context, c *application.Container) error {
			byStatus, err := c.Stats.Totals(ctx)
			if err != nil {
				return err
			}
			week, month, year, err := c.Stats.Revenue(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Subscriptions")
			for _, s := range model.SubscriptionStatuses() {
				fmt.Fprintf(out, "  %-10s %d\n", s, byStatus[s])
			}
			fmt.Fprintln(out, "Revenue (minor units)")
			for _, row := range []struct {
				label string
				sums  map[string]int64
			}{{"7d", week}, {"30d", month}, {"365d", year}} {
				fmt.Fprintf(out, "  %-5s %s\n", row.label, formatSums(row.sums))
			}
			return nil
		})
	},
}

func formatSums(sums map[string]int64) string {
	if len(sums) == 0 {
		return "-"
	}
	currencies := make([]string, 0, len(sums))
	for c := range sums {
		currencies = append(currencies, c)
	}
	sort.Strings(currencies)
	s := ""
	for i, c := range currencies {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%s %d", c, sums[c])
	}
	return s
}

var tokenCmd = &cobra.Command{
	Use:   "token <user-id>",
	Short: "Mint an API bearer token for a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Auth.JWTSecret == "" {
			return fmt.Errorf("auth.jwt_secret is not configured")
		}
		tok, err := apiv1.NewAuthManager(cfg.Auth.JWTSecret, tokenTTL).Mint(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}
