package capability

import "github.com/storacha/w3clock/principal"

// Params are the clock-level arguments of an invocation.
type Params struct {
	// Clock is the resource the invocation addresses.
	Clock principal.DID
	// Target is the clock the emitter's events contribute to.
	Target principal.DID
	// Emitter is the agent the events are attributed to.
	Emitter principal.DID
}

// Resolve derives Params from inv: Target is nb.clk (or its nb.with alias),
// defaulting to the resource; Emitter is nb.iss, defaulting to the invoker.
func Resolve(inv Invocation) Params {
	c := inv.Capability
	p := Params{Clock: c.With, Target: c.With, Emitter: inv.Issuer}
	if clk, ok := c.Nb[CaveatClock]; ok {
		p.Target = principal.DID(clk)
	} else if w, ok := c.Nb[CaveatWith]; ok {
		p.Target = principal.DID(w)
	}
	if iss, ok := c.Nb[CaveatIssuer]; ok {
		p.Emitter = principal.DID(iss)
	}
	return p
}
