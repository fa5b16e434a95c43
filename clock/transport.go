package clock

import (
	"context"

	"github.com/storacha/w3clock/principal"
)

// Transport delivers a command to the actor of a clock and returns its
// result. Actors interact with each other only through a Transport.
type Transport interface {
	Send(ctx context.Context, clock principal.DID, cmd Command) (Result, error)
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, clock principal.DID, cmd Command) (Result, error)

func (f TransportFunc) Send(ctx context.Context, clock principal.DID, cmd Command) (Result, error) {
	return f(ctx, clock, cmd)
}
