package main

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	logging "github.com/ipfs/go-log/v2"
	"github.com/urfave/cli/v2"

	"github.com/storacha/w3clock/config"
	"github.com/storacha/w3clock/durable/dsregistry"
)

var log = logging.Logger("clockd")

func main() {
	app := &cli.App{
		Name:  "clockd",
		Usage: "Merkle clock service",
		Commands: []*cli.Command{
			runCmd,
			configCmd,
			datastoresCmd,
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a TOML config file",
				EnvVars: []string{"W3CLOCK_CONFIG"},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Errorf("%+v", err)
		os.Exit(1)
	}
}

var configCmd = &cli.Command{
	Name:  "config",
	Usage: "Print the effective configuration as TOML",
	Action: func(cctx *cli.Context) error {
		cfg, err := config.Load(cctx.String("config"))
		if err != nil {
			return err
		}
		return toml.NewEncoder(cctx.App.Writer).Encode(cfg)
	},
}

var datastoresCmd = &cli.Command{
	Name:  "datastores",
	Usage: "List supported datastore backends",
	Action: func(cctx *cli.Context) error {
		for _, b := range dsregistry.List() {
			if b.Description == "" {
				_, _ = fmt.Fprintf(cctx.App.Writer, "%s\n", b.Name)
				continue
			}
			_, _ = fmt.Fprintf(cctx.App.Writer, "%s\t%s\n", b.Name, b.Description)
		}
		return nil
	},
}
