package main

import (
	"fmt"
	"os"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"github.com/urfave/cli/v2"

	"github.com/storacha/w3clock/capability"
	"github.com/storacha/w3clock/principal"
	"github.com/storacha/w3clock/service"
	"github.com/storacha/w3clock/transport/grpcclock"
)

var log = logging.Logger("clockctl")

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "clockctl",
		Usage: "Manage merkle clocks on a clockd service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "api",
				Usage:   "clockd gRPC address",
				Value:   "127.0.0.1:7370",
				EnvVars: []string{"W3CLOCK_API"},
			},
			&cli.StringFlag{
				Name:    "key-dir",
				Usage:   "key directory (default ~/.w3clock/keys)",
				EnvVars: []string{"W3CLOCK_KEY_DIR"},
			},
			&cli.StringFlag{
				Name:    "service",
				Usage:   "DID of the service, used as invocation audience",
				Value:   "did:web:clock.web3.storage",
				EnvVars: []string{"W3CLOCK_SERVICE_DID"},
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "per-request timeout",
				Value: 30 * time.Second,
			},
		},
		Commands: []*cli.Command{
			keygenCmd,
			keysCmd,
			followCmd,
			unfollowCmd,
			followingCmd,
			advanceCmd,
			headCmd,
		},
	}
}

func keyStore(cctx *cli.Context) (*principal.KeyStore, error) {
	return principal.OpenKeyStore(cctx.String("key-dir"))
}

// session is one connection to clockd acting as a stored identity on a clock.
type session struct {
	client  *grpcclock.Client
	agent   *principal.Identity
	clock   principal.DID
	proofs  []capability.Delegation
	service principal.DID
}

var clockFlags = []cli.Flag{
	&cli.StringFlag{
		Name:     "clock",
		Usage:    "clock key name or DID",
		Required: true,
	},
	&cli.StringFlag{
		Name:  "as",
		Usage: "key name of the invoking agent (default: the clock key)",
	},
}

// openSession resolves --clock and --as. When the agent is not the clock
// itself, the clock key must be local so it can delegate clock/* to the
// agent.
func openSession(cctx *cli.Context) (*session, error) {
	ks, err := keyStore(cctx)
	if err != nil {
		return nil, err
	}
	aud, err := principal.ParseDID(cctx.String("service"))
	if err != nil {
		return nil, fmt.Errorf("invalid --service: %w", err)
	}

	var clockID *principal.Identity
	clk, err := principal.ParseDID(cctx.String("clock"))
	if err != nil {
		if clockID, err = ks.Load(cctx.String("clock")); err != nil {
			return nil, fmt.Errorf("invalid --clock: %w", err)
		}
		clk = clockID.DID()
	}

	agent := clockID
	if name := cctx.String("as"); name != "" {
		if agent, err = ks.Load(name); err != nil {
			return nil, fmt.Errorf("invalid --as: %w", err)
		}
	}
	if agent == nil {
		return nil, fmt.Errorf("--as is required when --clock is a DID")
	}

	var proofs []capability.Delegation
	if agent.DID() != clk {
		if clockID == nil {
			return nil, fmt.Errorf("cannot delegate from %s: clock key is not local", clk)
		}
		proofs = append(proofs, capability.Delegation{
			Issuer:       clk,
			Audience:     agent.DID(),
			Capabilities: []capability.Capability{{Can: capability.ClockAll, With: clk}},
		})
	}

	c, err := grpcclock.Dial(cctx.String("api"), grpcclock.DialOptions{Timeout: cctx.Duration("timeout")})
	if err != nil {
		return nil, err
	}
	c.Timeout = cctx.Duration("timeout")
	return &session{client: c, agent: agent, clock: clk, proofs: proofs, service: aud}, nil
}

func (s *session) Close() error { return s.client.Close() }

func (s *session) invoke(cctx *cli.Context, inv capability.Invocation) (service.Result, error) {
	inv.Issuer = s.agent.DID()
	inv.Audience = s.service
	inv.Capability.With = s.clock
	inv.Proofs = s.proofs
	log.Debugw("invoking", "capability", inv.Capability.String(), "issuer", inv.Issuer)
	return s.client.Invoke(cctx.Context, inv)
}
