package main

import (
	"fmt"

	blocks "github.com/ipfs/go-block-format"
	"github.com/ipfs/go-cid"
	"github.com/urfave/cli/v2"

	"github.com/storacha/w3clock/capability"
	"github.com/storacha/w3clock/merkle"
)

func withClockFlags(flags ...cli.Flag) []cli.Flag {
	return append(append([]cli.Flag{}, clockFlags...), flags...)
}

// followCaveats maps --emitter and --target onto nb.iss and nb.clk.
func followCaveats(cctx *cli.Context) capability.Caveats {
	nb := capability.Caveats{}
	if v := cctx.String("emitter"); v != "" {
		nb[capability.CaveatIssuer] = v
	}
	if v := cctx.String("target"); v != "" {
		nb[capability.CaveatClock] = v
	}
	return nb
}

var followFlags = []cli.Flag{
	&cli.StringFlag{Name: "emitter", Usage: "DID allowed to advance the target (default: the agent)"},
	&cli.StringFlag{Name: "target", Usage: "clock DID whose events are accepted (default: the clock)"},
}

var followCmd = &cli.Command{
	Name:  "follow",
	Usage: "Accept advances of a target clock from an emitter",
	Flags: withClockFlags(followFlags...),
	Action: func(cctx *cli.Context) error {
		return mutate(cctx, capability.Follow)
	},
}

var unfollowCmd = &cli.Command{
	Name:  "unfollow",
	Usage: "Stop accepting advances of a target clock from an emitter",
	Flags: withClockFlags(followFlags...),
	Action: func(cctx *cli.Context) error {
		return mutate(cctx, capability.Unfollow)
	},
}

func mutate(cctx *cli.Context, can capability.Ability) error {
	s, err := openSession(cctx)
	if err != nil {
		return err
	}
	defer s.Close()
	_, err = s.invoke(cctx, capability.Invocation{
		Capability: capability.Capability{Can: can, Nb: followCaveats(cctx)},
	})
	return err
}

var followingCmd = &cli.Command{
	Name:  "following",
	Usage: "List the clocks and emitters a clock follows",
	Flags: withClockFlags(),
	Action: func(cctx *cli.Context) error {
		s, err := openSession(cctx)
		if err != nil {
			return err
		}
		defer s.Close()
		res, err := s.invoke(cctx, capability.Invocation{
			Capability: capability.Capability{Can: capability.Following},
		})
		if err != nil {
			return err
		}
		for _, e := range res.Following {
			for _, em := range e.Emitters {
				_, _ = fmt.Fprintf(cctx.App.Writer, "%s\t%s\n", e.Clock, em)
			}
		}
		return nil
	},
}

var headCmd = &cli.Command{
	Name:  "head",
	Usage: "Print the head of a clock",
	Flags: withClockFlags(),
	Action: func(cctx *cli.Context) error {
		s, err := openSession(cctx)
		if err != nil {
			return err
		}
		defer s.Close()
		head, err := s.head(cctx)
		if err != nil {
			return err
		}
		printHead(cctx, head)
		return nil
	},
}

var advanceCmd = &cli.Command{
	Name:  "advance",
	Usage: "Create an event on top of the current head and advance the clock with it",
	Flags: withClockFlags(
		&cli.StringFlag{Name: "data", Required: true, Usage: "event payload"},
		&cli.StringSliceFlag{Name: "parent", Usage: "explicit parent CID (default: the current head)"},
	),
	Action: func(cctx *cli.Context) error {
		s, err := openSession(cctx)
		if err != nil {
			return err
		}
		defer s.Close()

		var parents []cid.Cid
		if cctx.IsSet("parent") {
			for _, p := range cctx.StringSlice("parent") {
				c, err := cid.Decode(p)
				if err != nil {
					return fmt.Errorf("invalid --parent %q: %w", p, err)
				}
				parents = append(parents, c)
			}
		} else if parents, err = s.head(cctx); err != nil {
			return err
		}
		if parents == nil {
			parents = []cid.Cid{}
		}

		ev, err := merkle.NewEventBlock(parents, cctx.String("data"))
		if err != nil {
			return err
		}
		res, err := s.invoke(cctx, capability.Invocation{
			Capability: capability.Capability{
				Can: capability.Advance,
				Nb:  capability.Caveats{capability.CaveatEvent: ev.Cid().String()},
			},
			Blocks:     []blocks.Block{ev.Block()},
		})
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cctx.App.ErrWriter, "event %s\n", ev.Cid())
		printHead(cctx, res.Head)
		return nil
	},
}

func (s *session) head(cctx *cli.Context) ([]cid.Cid, error) {
	res, err := s.invoke(cctx, capability.Invocation{
		Capability: capability.Capability{Can: capability.Head},
	})
	if err != nil {
		return nil, err
	}
	return res.Head, nil
}

func printHead(cctx *cli.Context, head []cid.Cid) {
	for _, c := range head {
		_, _ = fmt.Fprintln(cctx.App.Writer, c)
	}
}
