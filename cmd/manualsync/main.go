// Command manualsync runs one sync from the command line, outside the
// worker's schedule. Runs are committed per unit of work, so an aborted run
// can simply be repeated.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"ttfl_tracker/ingestion/internal/client"
	"ttfl_tracker/ingestion/internal/config"
	"ttfl_tracker/ingestion/internal/models"
	"ttfl_tracker/ingestion/internal/ratelimit"
	"ttfl_tracker/ingestion/internal/reconcile"
	"ttfl_tracker/ingestion/internal/repository"
	"ttfl_tracker/ingestion/internal/retry"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	app := &cli.App{
		Name:  "manualsync",
		Usage: "reconcile the TTFL database with the stats provider",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log-level", Value: "info", EnvVars: []string{"LOG_LEVEL"}},
		},
		Before: func(c *cli.Context) error {
			level, err := zerolog.ParseLevel(c.String("log-level"))
			if err != nil {
				return fmt.Errorf("invalid log level: %w", err)
			}
			zerolog.SetGlobalLevel(level)
			return nil
		},
		Commands: []*cli.Command{
			syncCommand(),
			migrateCommand(),
			healthCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("manualsync failed")
	}
}

func openDatabase(ctx context.Context, cfg *config.Config) (*repository.Database, error) {
	return repository.NewDatabase(ctx, repository.Config{
		Host:     cfg.DatabaseHost,
		Port:     strconv.Itoa(cfg.DatabasePort),
		User:     cfg.DatabaseUser,
		Password: cfg.DatabasePassword,
		Database: cfg.DatabaseName,
		SSLMode:  cfg.DatabaseSSLMode,
		MaxConns: 4,
	})
}

func syncCommand() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "run sync phases once",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "phases",
				Usage: "comma separated phases (status,scores,metrics,injuries,minutes,rosters), \"all\" or \"everything\"",
				Value: "all",
			},
			&cli.BoolFlag{Name: "dry-run", Usage: "report what would change without writing"},
			&cli.BoolFlag{Name: "games-only", Usage: "shorthand for --phases status,scores"},
			&cli.StringFlag{Name: "season-start", Usage: "first game date to backfill (YYYY-MM-DD)"},
		},
		Action: func(c *cli.Context) error {
			selector := c.String("phases")
			if c.Bool("games-only") {
				selector = "status,scores"
			}
			phases, err := reconcile.ParsePhases(selector)
			if err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			seasonStart := cfg.PinnedSeasonStart()
			if raw := c.String("season-start"); raw != "" {
				if seasonStart, err = time.Parse(models.DateLayout, raw); err != nil {
					return fmt.Errorf("--season-start must be YYYY-MM-DD: %w", err)
				}
			}

			db, err := openDatabase(c.Context, cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			limiter := ratelimit.NewInterval(cfg.RateLimitInterval)
			orchestrator := reconcile.New(db,
				client.NewClient(cfg.ProviderBaseURL, cfg.ProviderAPIKey, cfg.ProviderTimeout, limiter),
				client.NewInjuryFeed(cfg.InjuryFeedURL, cfg.InjuryFeedTimeout, limiter),
				reconcile.Config{
					SeasonStart:         seasonStart,
					FallbackRecentGames: cfg.FallbackRecentGames,
					Retry:               retry.Policy{Attempts: cfg.RetryAttempts, BaseDelay: cfg.RetryBaseDelay},
					Location:            cfg.Location(),
				})

			result, runErr := orchestrator.Run(c.Context, reconcile.Options{Phases: phases, DryRun: c.Bool("dry-run")})
			if result != nil {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(result); err != nil {
					return fmt.Errorf("failed to encode result: %w", err)
				}
			}
			return runErr
		},
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "create or update the database schema",
		Action: func(c *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			db, err := openDatabase(c.Context, cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			return db.EnsureSchema(c.Context)
		},
	}
}

func healthCommand() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "check database connectivity",
		Action: func(c *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			db, err := openDatabase(c.Context, cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.Health(c.Context); err != nil {
				return err
			}
			log.Info().Interface("pool", db.PoolStats()).Msg("Database healthy")
			return nil
		},
	}
}
