package main

import (
	"context"
	"log"
	"os"

	"github.com/rxtech-lab/argo-autotrade/internal/version"
	"github.com/urfave/cli/v3"
)

func main() {
	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func newCommand() *cli.Command {
	configFlag := &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to the YAML configuration file (optional when everything comes from the environment)",
		Value:   "config.yaml",
		Sources: cli.EnvVars("AUTOTRADE_CONFIG"),
	}
	envFlag := &cli.StringSliceFlag{
		Name:  "env-file",
		Usage: "Dotenv files to load before reading the environment",
		Value: []string{".env"},
	}

	return &cli.Command{
		Name:    "autotrade",
		Usage:   "US stock breakout auto-trader on the KIS open API",
		Version: version.GetVersion(),
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Trade today's session",
				Flags: []cli.Flag{
					configFlag,
					envFlag,
					&cli.BoolFlag{
						Name:  "daemon",
						Usage: "Keep running and trade every session until interrupted",
					},
				},
				Action: runAction,
			},
			{
				Name:  "check",
				Usage: "Validate the configuration and test the broker connection",
				Flags: []cli.Flag{
					configFlag,
					envFlag,
					&cli.BoolFlag{
						Name:  "offline",
						Usage: "Only validate the configuration",
					},
				},
				Action: checkAction,
			},
			{
				Name:  "schema",
				Usage: "Print the JSON schema of the configuration file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "provider",
						Usage: "Print the schema of a trading provider's config instead",
					},
				},
				Action: schemaAction,
			},
		},
	}
}
