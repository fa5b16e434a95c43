package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/storacha/w3clock/principal"
)

var keygenCmd = &cli.Command{
	Name:  "keygen",
	Usage: "Create a named Ed25519 identity",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "name", Required: true, Usage: "key name"},
		&cli.StringFlag{Name: "seed-hex", Usage: "use a fixed 32 byte seed (hex)"},
		&cli.StringFlag{Name: "from", Usage: "derive from an existing key instead of generating"},
		&cli.BoolFlag{Name: "force", Usage: "overwrite an existing key"},
	},
	Action: func(cctx *cli.Context) error {
		ks, err := keyStore(cctx)
		if err != nil {
			return err
		}
		name := cctx.String("name")

		var (
			id   *principal.Identity
			path string
		)
		switch {
		case cctx.IsSet("from"):
			if cctx.IsSet("seed-hex") {
				return fmt.Errorf("--from and --seed-hex are mutually exclusive")
			}
			id, path, err = ks.Derive(cctx.String("from"), name, cctx.Bool("force"))
		case cctx.IsSet("seed-hex"):
			var seed []byte
			if seed, err = principal.ParseSeedHex(cctx.String("seed-hex")); err != nil {
				return fmt.Errorf("invalid --seed-hex: %w", err)
			}
			if id, err = principal.FromSeed(seed); err == nil {
				path, err = ks.Save(name, id, cctx.Bool("force"))
			}
		default:
			if id, err = principal.Generate(); err == nil {
				path, err = ks.Save(name, id, cctx.Bool("force"))
			}
		}
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cctx.App.Writer, "%s\n", id.DID())
		_, _ = fmt.Fprintf(cctx.App.ErrWriter, "stored at %s\n", path)
		return nil
	},
}

var keysCmd = &cli.Command{
	Name:  "keys",
	Usage: "List stored identities",
	Action: func(cctx *cli.Context) error {
		ks, err := keyStore(cctx)
		if err != nil {
			return err
		}
		names, err := ks.List()
		if err != nil {
			return err
		}
		for _, n := range names {
			id, err := ks.Load(n)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cctx.App.Writer, "%s\t%s\n", n, id.DID())
		}
		return nil
	},
}
