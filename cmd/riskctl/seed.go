package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/ajharbinger/riskscore-preview/internal/database"
	"github.com/ajharbinger/riskscore-preview/internal/services"
	"github.com/ajharbinger/riskscore-preview/pkg/config"
)

var (
	seedFileFlag = &cli.StringFlag{
		Name:     "file",
		Aliases:  []string{"f"},
		Usage:    "YAML file with data_views, engine_configuration and risk_inputs",
		Required: true,
	}

	seedCmd = &cli.Command{
		Name:  "seed",
		Usage: "Load data views, engine configuration and risk inputs in one transaction",
		Flags: []cli.Flag{
			databaseURLFlag,
			seedFileFlag,
		},
		Action: cmdSeed,
	}
)

func readSeedFile(path string) (*services.SeedData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening seed file: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)

	var data services.SeedData
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("parsing seed file %s: %w", path, err)
	}
	return &data, nil
}

func cmdSeed(ctx context.Context, cmd *cli.Command) error {
	url, err := databaseURL(cmd)
	if err != nil {
		return err
	}

	data, err := readSeedFile(cmd.String(seedFileFlag.Name))
	if err != nil {
		return err
	}

	if err := database.RunMigrations(url); err != nil {
		return err
	}
	db, err := database.New(url)
	if err != nil {
		return err
	}
	defer db.Close()

	cfg := config.New()
	svcs := services.NewServices(db.DB, cfg, log)
	summary, err := svcs.Seed.Load(ctx, data)
	if err != nil {
		return err
	}

	log.Info("Seed data loaded", "data_views", summary.DataViews, "risk_inputs", summary.RiskInputs)
	return encode(os.Stdout, cmd.String(formatFlag.Name), summary)
}
