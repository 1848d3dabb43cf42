// Command riskctl previews risk scores and manages the risk score database.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/ajharbinger/riskscore-preview/internal/logger"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
)

var (
	version = "v0.0.1-default"
	commit  = ""

	log = logger.NewNop()

	debugFlag = &cli.BoolFlag{
		Name:  "debug",
		Usage: "Prints verbose logs (optional, default: false)",
	}

	formatFlag = &cli.StringFlag{
		Name:  "format",
		Usage: "Output format [json, yaml]",
		Value: formatJSON,
	}

	databaseURLFlag = &cli.StringFlag{
		Name:    "database-url",
		Usage:   "Postgres connection string",
		Sources: cli.EnvVars("DATABASE_URL"),
	}
)

func main() {
	// Load environment variables
	_ = godotenv.Load()

	if err := newApp().Run(context.Background(), os.Args); err != nil {
		log.Error("fatal error", err)
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "riskctl",
		Version: fmt.Sprintf("%s (commit: %s)", version, commit),
		Usage:   "Preview entity risk scores and manage the risk score database",
		Flags: []cli.Flag{
			debugFlag,
			formatFlag,
		},
		Commands: []*cli.Command{
			previewCmd,
			migrateCmd,
			seedCmd,
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			level := "info"
			if cmd.Bool(debugFlag.Name) {
				level = "debug"
			}
			log = logger.New(logger.Options{Level: level, Console: true, Output: os.Stderr, Component: "riskctl"})

			switch f := cmd.String(formatFlag.Name); f {
			case formatJSON, formatYAML, "yml":
			default:
				return ctx, fmt.Errorf("unsupported format %q, expected json or yaml", f)
			}
			return ctx, nil
		},
	}
}

func encode(w io.Writer, format string, v any) error {
	if format == formatYAML || format == "yml" {
		// Round trip through JSON so YAML keys match the wire names
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encoding result: %w", err)
		}
		var doc any
		if err := json.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("encoding result: %w", err)
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(doc)
	}
	e := json.NewEncoder(w)
	e.SetIndent("", "  ")
	return e.Encode(v)
}
