package clock

import (
	"sort"

	"github.com/storacha/w3clock/principal"
)

// Storage keys of an actor's durable state.
const (
	keyFollowing   = "following"
	keySubscribers = "subscribers"
	keyHead        = "head"
)

// Entry is one row of a follow or subscriber graph: a clock and the
// emitters associated with it. It encodes as [clock, [emitters...]].
type Entry struct {
	_        struct{} `cbor:",toarray"`
	Clock    principal.DID
	Emitters []principal.DID
}

// graph maps a clock DID to a set of emitter DIDs. Empty sets are never
// stored.
type graph map[principal.DID]map[principal.DID]struct{}

func graphFrom(entries []Entry) graph {
	g := make(graph, len(entries))
	for _, e := range entries {
		for _, em := range e.Emitters {
			g.add(e.Clock, em)
		}
	}
	return g
}

func (g graph) add(clock, emitter principal.DID) bool {
	set, ok := g[clock]
	if !ok {
		set = make(map[principal.DID]struct{})
		g[clock] = set
	}
	if _, ok := set[emitter]; ok {
		return false
	}
	set[emitter] = struct{}{}
	return true
}

func (g graph) remove(clock, emitter principal.DID) bool {
	set, ok := g[clock]
	if !ok {
		return false
	}
	if _, ok := set[emitter]; !ok {
		return false
	}
	delete(set, emitter)
	if len(set) == 0 {
		delete(g, clock)
	}
	return true
}

func (g graph) has(clock, emitter principal.DID) bool {
	_, ok := g[clock][emitter]
	return ok
}

// entries lists g sorted by clock, then emitter.
func (g graph) entries() []Entry {
	out := make([]Entry, 0, len(g))
	for c, set := range g {
		ems := make([]principal.DID, 0, len(set))
		for em := range set {
			ems = append(ems, em)
		}
		sort.Slice(ems, func(i, j int) bool { return ems[i] < ems[j] })
		out = append(out, Entry{Clock: c, Emitters: ems})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Clock < out[j].Clock })
	return out
}

// hasEmitter reports whether emitter appears in e.
func (e Entry) hasEmitter(emitter principal.DID) bool {
	for _, em := range e.Emitters {
		if em == emitter {
			return true
		}
	}
	return false
}
