// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/olegiv/wellness-site/internal/backend"
	"github.com/olegiv/wellness-site/internal/backend/local"
	"github.com/olegiv/wellness-site/internal/config"
	"github.com/olegiv/wellness-site/internal/content"
	"github.com/olegiv/wellness-site/internal/logging"
	"github.com/olegiv/wellness-site/internal/store"
	"github.com/olegiv/wellness-site/internal/version"
)

// cli carries state shared by every subcommand.
type cli struct {
	envFile string
	info    version.Info
	cfg     *config.Config
	logger  *slog.Logger
}

func newRootCmd(info version.Info) *cobra.Command {
	c := &cli{info: info}

	root := &cobra.Command{
		Use:           "wellnessctl",
		Short:         "Administer a wellness site installation",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&c.envFile, "env-file", ".env", "path to the environment file")

	root.AddCommand(
		c.versionCmd(),
		c.migrateCmd(),
		c.usersCmd(),
		c.sessionsCmd(),
		c.sweepCmd(),
	)
	return root
}

func (c *cli) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "wellnessctl", c.info.String())
		},
	}
}

func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()
			fmt.Fprintln(cmd.OutOrStdout(), "database is up to date:", cfg.DBPath)
			return nil
		},
	}
}

func (c *cli) usersCmd() *cobra.Command {
	users := &cobra.Command{
		Use:   "users",
		Short: "Manage accounts",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withService(cmd.Context(), func(ctx context.Context, svc *local.Service) error {
				users, err := svc.ListUsers(ctx)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "EMAIL\tROLE\tCONFIRMED\tLAST SIGN-IN")
				for _, u := range users {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", u.Email, u.Role, yesNo(u.ConfirmedAt.Valid), orDash(u.LastSignInAt))
				}
				return tw.Flush()
			})
		},
	}

	var password string
	var admin, unconfirmed bool
	create := &cobra.Command{
		Use:   "create EMAIL",
		Short: "Create an account",
		Long:  "Create an account. The password is read from standard input when --password is not given.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				p, err := readPassword(cmd.InOrStdin())
				if err != nil {
					return err
				}
				password = p
			}
			role := "user"
			if admin {
				role = "admin"
			}
			return c.withService(cmd.Context(), func(ctx context.Context, svc *local.Service) error {
				u, err := svc.CreateUser(ctx, args[0], password, role, !unconfirmed)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s)\n", u.Email, u.Role)
				return nil
			})
		},
	}
	create.Flags().StringVar(&password, "password", "", "account password")
	create.Flags().BoolVar(&admin, "admin", false, "grant the admin role")
	create.Flags().BoolVar(&unconfirmed, "unconfirmed", false, "leave the email unconfirmed")

	users.AddCommand(
		list,
		create,
		c.emailCmd("grant-admin", "Grant the admin role", func(ctx context.Context, svc *local.Service, email string) (string, error) {
			return "granted admin to " + email, svc.SetRole(ctx, email, "admin")
		}),
		c.emailCmd("revoke-admin", "Revoke the admin role", func(ctx context.Context, svc *local.Service, email string) (string, error) {
			return "revoked admin from " + email, svc.SetRole(ctx, email, "user")
		}),
		c.emailCmd("confirm", "Confirm an account's email", func(ctx context.Context, svc *local.Service, email string) (string, error) {
			return "confirmed " + email, svc.ConfirmUser(ctx, email)
		}),
		c.emailCmd("revoke-sessions", "Sign an account out everywhere", func(ctx context.Context, svc *local.Service, email string) (string, error) {
			n, err := svc.RevokeSessions(ctx, email)
			return fmt.Sprintf("revoked %d session(s) for %s", n, email), err
		}),
	)
	return users
}

// emailCmd builds a subcommand that acts on a single account.
func (c *cli) emailCmd(use, short string, fn func(context.Context, *local.Service, string) (string, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " EMAIL",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withService(cmd.Context(), func(ctx context.Context, svc *local.Service) error {
				msg, err := fn(ctx, svc, strings.ToLower(strings.TrimSpace(args[0])))
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), msg)
				return nil
			})
		},
	}
}

func (c *cli) sessionsCmd() *cobra.Command {
	sessions := &cobra.Command{
		Use:   "sessions",
		Short: "Manage backend sessions",
	}
	sessions.AddCommand(&cobra.Command{
		Use:   "purge",
		Short: "Delete expired and revoked sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withService(cmd.Context(), func(ctx context.Context, svc *local.Service) error {
				n, err := svc.PurgeSessions(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "purged %d session(s)\n", n)
				return nil
			})
		},
	})
	return sessions
}

func (c *cli) sweepCmd() *cobra.Command {
	var minAge time.Duration
	var email, password string
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Remove stored video files that no video references",
		Long: `Remove stored video files that no upload video references.

The sweep signs in as an admin. --email and --password default to
WELLNESS_ADMIN_EMAIL and WELLNESS_ADMIN_PASSWORD; a missing password is
read from standard input.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withService(cmd.Context(), func(ctx context.Context, svc *local.Service) error {
				if email == "" {
					email = c.cfg.AdminEmail
				}
				if password == "" {
					password = c.cfg.AdminPassword
				}
				if email == "" {
					return errors.New("an admin email is required")
				}
				if password == "" {
					p, err := readPassword(cmd.InOrStdin())
					if err != nil {
						return err
					}
					password = p
				}

				client := svc.NewClient(nil)
				if _, err := client.SignIn(ctx, email, password); err != nil {
					return fmt.Errorf("signing in as %s: %w", email, err)
				}
				defer func() { _ = client.SignOut(context.WithoutCancel(ctx)) }()

				videos := content.NewVideoManager(client, client, content.Options{Logger: c.logger})
				n, err := videos.SweepOrphans(ctx, minAge)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %d orphaned file(s)\n", n)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&minAge, "min-age", 24*time.Hour, "only remove files older than this")
	cmd.Flags().StringVar(&email, "email", "", "admin email")
	cmd.Flags().StringVar(&password, "password", "", "admin password")
	return cmd
}

func (c *cli) loadConfig() (*config.Config, error) {
	if err := godotenv.Load(c.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading %s: %w", c.envFile, err)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	c.cfg = cfg
	c.logger = logging.New(os.Stderr, cfg.LogLevel, nil)
	return cfg, nil
}

func openDB(cfg *config.Config) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	db, err := store.NewDB(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := store.Migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}

func (c *cli) withService(ctx context.Context, fn func(context.Context, *local.Service) error) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	svc, err := local.New(db, local.Options{
		JWTSecret:       cfg.JWTSecret,
		AccessTokenTTL:  cfg.AccessTokenTTL,
		RefreshTokenTTL: cfg.RefreshTokenTTL,
		StorageDir:      cfg.StorageDir,
		PublicBaseURL:   cfg.BaseURL(),
		Buckets:         []string{backend.BucketVideos},
		Logger:          c.logger,
	})
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return fn(ctx, svc)
}

func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("password is required")
	}
	return line, nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func orDash(s sql.NullString) string {
	if !s.Valid || s.String == "" {
		return "-"
	}
	return s.String
}
