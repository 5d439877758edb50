package main

import (
	"fmt"
	"log"
	"os"

	"github.com/carlmjohnson/versioninfo"
	"github.com/iancoleman/strcase"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"tilemosaic/internal/config"
	"tilemosaic/internal/logger"
)

const CONFIG string = `config`
const LOGLEVEL string = `log-level`
const LOGENCODING string = `log-encoding`

func envVar(flag string) []string {
	return []string{config.EnvPrefix + "_" + strcase.ToScreamingSnake(flag)}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "tilemosaic"
	app.Usage = "Assemble slippy-map tiles into Web Mercator mosaics"
	app.Version = versioninfo.Short()

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    CONFIG,
			Aliases: []string{"c"},
			Usage:   "Config file (TOML, YAML or JSON)",
			EnvVars: envVar("config_file"),
		},
		&cli.StringFlag{
			Name:  LOGLEVEL,
			Usage: "Log level: debug, info, warn or error",
		},
		&cli.StringFlag{
			Name:  LOGENCODING,
			Usage: "Log encoding: json or console",
		},
	}

	app.Commands = []*cli.Command{
		renderCommand(),
		tilesCommand(),
		serveCommand(),
	}
	return app
}

// setup loads the configuration and builds the logger. Global flags
// override the configured log settings.
func setup(c *cli.Context) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(c.String(CONFIG))
	if err != nil {
		return nil, nil, err
	}
	if c.IsSet(LOGLEVEL) {
		cfg.LogLevel = c.String(LOGLEVEL)
	}
	if c.IsSet(LOGENCODING) {
		cfg.LogEncoding = c.String(LOGENCODING)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	l, err := logger.New(cfg.LogLevel, cfg.LogEncoding)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, l, nil
}
