package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/pressly/goose/v3"
	"github.com/spf13/pflag"
	_ "modernc.org/sqlite"

	"lfp_bot/migrations"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(argv []string) error {
	flagSet := pflag.NewFlagSet("migrate", pflag.ContinueOnError)
	dbPath := flagSet.StringP("db", "d", envOrDefault("DATABASE_PATH", "./data/lfp.db"), "path to sqlite database")
	flagSet.Usage = func() { printUsage(flagSet) }

	if err := flagSet.Parse(argv); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	args := flagSet.Args()
	if len(args) != 1 {
		printUsage(flagSet)
		return fmt.Errorf("expected exactly one command")
	}

	db, err := sql.Open("sqlite", *dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	provider, err := migrations.NewProvider(db)
	if err != nil {
		return err
	}

	ctx := context.Background()
	cmd := args[0]
	switch cmd {
	case "up":
		results, err := provider.Up(ctx)
		printResults(results...)
		if err != nil {
			return fmt.Errorf("%s: %w", cmd, err)
		}
	case "up-one":
		result, err := provider.UpByOne(ctx)
		if errors.Is(err, goose.ErrNoNextVersion) {
			fmt.Println("no pending migrations")
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s: %w", cmd, err)
		}
		printResults(result)
	case "down":
		result, err := provider.Down(ctx)
		if err != nil {
			return fmt.Errorf("%s: %w", cmd, err)
		}
		printResults(result)
	case "reset":
		results, err := provider.DownTo(ctx, 0)
		printResults(results...)
		if err != nil {
			return fmt.Errorf("%s: %w", cmd, err)
		}
	case "status":
		statuses, err := provider.Status(ctx)
		if err != nil {
			return fmt.Errorf("%s: %w", cmd, err)
		}
		for _, s := range statuses {
			applied := "pending"
			if s.State == goose.StateApplied {
				applied = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
			fmt.Printf("%-20s %s\n", applied, s.Source.Path)
		}
	case "version":
		v, err := provider.GetDBVersion(ctx)
		if err != nil {
			return fmt.Errorf("%s: %w", cmd, err)
		}
		fmt.Printf("version %d\n", v)
	default:
		return fmt.Errorf("unknown command: %s", cmd)
	}
	return nil
}

func printResults(results ...*goose.MigrationResult) {
	for _, r := range results {
		if r != nil {
			fmt.Println(r)
		}
	}
}

func printUsage(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `Usage: migrate [--db path] <command>

Commands:
  up          Migrate to the latest version
  up-one      Migrate one version up
  down        Roll back one version
  status      Show migration status
  version     Show current version
  reset       Roll back all migrations

Flags:
%s`, flagSet.FlagUsages())
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
