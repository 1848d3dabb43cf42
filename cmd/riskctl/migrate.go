package main

import (
	"context"
	"errors"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/ajharbinger/riskscore-preview/internal/database"
)

var migrateCmd = &cli.Command{
	Name:  "migrate",
	Usage: "Manage the database schema",
	Flags: []cli.Flag{
		databaseURLFlag,
	},
	Commands: []*cli.Command{
		{
			Name:   "up",
			Usage:  "Apply all pending migrations",
			Action: cmdMigrateUp,
		},
		{
			Name:   "down",
			Usage:  "Revert all migrations",
			Action: cmdMigrateDown,
		},
		{
			Name:   "version",
			Usage:  "Print the applied schema version",
			Action: cmdMigrateVersion,
		},
	},
}

func databaseURL(cmd *cli.Command) (string, error) {
	url := cmd.String(databaseURLFlag.Name)
	if url == "" {
		return "", errors.New("--database-url or DATABASE_URL is required")
	}
	return url, nil
}

func cmdMigrateUp(_ context.Context, cmd *cli.Command) error {
	url, err := databaseURL(cmd)
	if err != nil {
		return err
	}
	if err := database.RunMigrations(url); err != nil {
		return err
	}
	log.Info("Migrations applied")
	return nil
}

func cmdMigrateDown(_ context.Context, cmd *cli.Command) error {
	url, err := databaseURL(cmd)
	if err != nil {
		return err
	}
	if err := database.RollbackMigrations(url); err != nil {
		return err
	}
	log.Info("Migrations reverted")
	return nil
}

func cmdMigrateVersion(_ context.Context, cmd *cli.Command) error {
	url, err := databaseURL(cmd)
	if err != nil {
		return err
	}
	version, dirty, err := database.MigrationVersion(url)
	if err != nil {
		return err
	}
	return encode(os.Stdout, cmd.String(formatFlag.Name), map[string]any{
		"version": version,
		"dirty":   dirty,
	})
}
