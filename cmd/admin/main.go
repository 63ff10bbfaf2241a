// Command admin is the operator CLI for maintenance tasks that do not go
// through the bot: migrations, blocking users, status fixes, exports and API
// tokens.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"qabulxona/backend/internal/api/handler"
	"qabulxona/backend/internal/models"
	"qabulxona/backend/internal/report"
	"qabulxona/backend/internal/storage"
)

// operatorActor marks audit entries written from the CLI.
const operatorActor int64 = 0

type cliConfig struct {
	DatabaseURL  string `env:"DATABASE_URL"`
	APIJWTSecret string `env:"API_JWT_SECRET"`
	Timezone     string `env:"TIMEZONE" envDefault:"Asia/Tashkent"`

	// The bot caches block flags in Redis, so block and unblock must
	// refresh the same keys.
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
}

var cfg cliConfig

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "admin",
	Short:         "Operator tools for the qabulxona bot",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()
		cfg = cliConfig{}
		return env.Parse(&cfg)
	},
}

func init() {
	exportCmd.Flags().String("out", "", "write the CSV to this file instead of stdout")
	tokenCmd.Flags().Duration("ttl", 24*time.Hour, "token lifetime")

	rootCmd.AddCommand(migrateCmd, blockCmd, unblockCmd, statusCmd, exportCmd, tokenCmd)
}

func openStorage(ctx context.Context) (*storage.Service, error) {
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is not set")
	}
	rdb, err := storage.OpenRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, err
	}
	db, err := storage.Open(cfg.DatabaseURL)
	if err != nil {
		if rdb != nil {
			_ = rdb.Close()
		}
		return nil, err
	}
	return storage.NewStorageService(db, rdb, zerolog.Nop()), nil
}

func parseUserID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid user id %q", raw)
	}
	return id, nil
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database tables",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.DatabaseURL == "" {
			return errors.New("DATABASE_URL is not set")
		}
		db, err := storage.Open(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		if err := storage.AutoMigrate(db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "migrations complete")
		return nil
	},
}

var blockCmd = &cobra.Command{
	Use:   "block <user_id> [reason]",
	Short: "Block a user from submitting complaints",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := parseUserID(args[0])
		if err != nil {
			return err
		}
		reason := strings.Join(args[1:], " ")
		s, err := openStorage(cmd.Context())
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if err := s.SetBlocked(ctx, userID, reason); err != nil {
			return fmt.Errorf("block user: %w", err)
		}
		_ = s.AppendAudit(ctx, operatorActor, models.ActionBlock, strconv.FormatInt(userID, 10))
		fmt.Fprintf(cmd.OutOrStdout(), "user %d has been blocked\n", userID)
		return nil
	},
}

var unblockCmd = &cobra.Command{
	Use:   "unblock <user_id>",
	Short: "Lift a block",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := parseUserID(args[0])
		if err != nil {
			return err
		}
		s, err := openStorage(cmd.Context())
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if err := s.Unblock(ctx, userID); err != nil {
			return fmt.Errorf("unblock user: %w", err)
		}
		_ = s.AppendAudit(ctx, operatorActor, models.ActionUnblock, strconv.FormatInt(userID, 10))
		fmt.Fprintf(cmd.OutOrStdout(), "user %d has been unblocked\n", userID)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <complaint_id> <Pending|In Progress|Resolved>",
	Short: "Set the status of a complaint without notifying the submitter",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := models.ParseStatus(strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		s, err := openStorage(cmd.Context())
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if err := s.UpdateStatus(ctx, args[0], status); err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		_ = s.AppendAudit(ctx, operatorActor, models.ActionUpdateStatus, args[0]+" "+string(status))
		fmt.Fprintf(cmd.OutOrStdout(), "complaint %s is now %s\n", args[0], status)
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write every complaint as a CSV report",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")
		s, err := openStorage(cmd.Context())
		if err != nil {
			return err
		}
		complaints, err := s.ListAll(cmd.Context())
		if err != nil {
			return err
		}

		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			loc = time.UTC
		}
		w := cmd.OutOrStdout()
		if out != "" {
			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("create %s: %w", out, err)
			}
			defer f.Close()
			w = f
		}
		if err := report.NewCSVExporter(loc).Export(w, complaints); err != nil {
			return err
		}
		if out != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "exported %d complaints to %s\n", len(complaints), out)
		}
		return nil
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token <admin_id>",
	Short: "Mint a JWT for the ops HTTP API",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.APIJWTSecret == "" {
			return errors.New("API_JWT_SECRET is not set")
		}
		adminID, err := parseUserID(args[0])
		if err != nil {
			return err
		}
		ttl, _ := cmd.Flags().GetDuration("ttl")
		token, err := handler.GenerateToken([]byte(cfg.APIJWTSecret), adminID, ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}
