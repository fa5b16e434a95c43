package capability

import (
	"testing"

	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/require"

	"github.com/storacha/w3clock/merkle"
	"github.com/storacha/w3clock/principal"
)

const (
	alice principal.DID = "did:key:z6MkAlice"
	bob   principal.DID = "did:key:z6MkBob"
	clk   principal.DID = "did:key:z6MkClock"
	other principal.DID = "did:key:z6MkOther"
)

func eventLink(t *testing.T) cid.Cid {
	t.Helper()
	eb, err := merkle.NewEventBlock([]cid.Cid{}, "e0")
	require.NoError(t, err)
	return eb.Cid()
}

func delegate(from, to principal.DID, caps ...Capability) Delegation {
	return Delegation{Issuer: from, Audience: to, Capabilities: caps}
}

func TestAbilityCovers(t *testing.T) {
	require.True(t, Top.Covers(Follow))
	require.True(t, Top.Covers(ClockAll))
	require.True(t, ClockAll.Covers(Advance))
	require.False(t, ClockAll.Covers(Top))
	require.True(t, Head.Covers(Head))
	require.False(t, Head.Covers(Advance))
	require.False(t, Top.Covers("store/add"))
}

func TestDerive_ResourceMustMatch(t *testing.T) {
	err := Derive(
		Capability{Can: Follow, With: clk},
		Capability{Can: ClockAll, With: other},
	)
	require.Equal(t, NameResourceMismatch, ErrorName(err))
	require.EqualError(t, err, "Can not derive clock/follow with did:key:z6MkClock from did:key:z6MkOther")
}

func TestDerive_BroaderAbilityIgnoresCaveats(t *testing.T) {
	claim := Capability{Can: Follow, With: clk, Nb: Caveats{CaveatIssuer: string(bob)}}
	require.NoError(t, Derive(claim, Capability{Can: Top, With: clk}))
	require.NoError(t, Derive(claim, Capability{Can: ClockAll, With: clk}))
}

func TestDerive_IssuerCaveat(t *testing.T) {
	tests := []struct {
		name  string
		claim Caveats
		proof Caveats
		want  string
		msg   string
	}{
		{
			name:  "claim carries iss the proof lacks",
			claim: Caveats{CaveatIssuer: string(bob)},
			want:  NameMissingClaimCaveat,
			msg:   "missing nb.iss on claimed capability",
		},
		{
			name:  "proof fixes iss the claim omits",
			proof: Caveats{CaveatIssuer: string(bob)},
			want:  NameMissingProofCaveat,
			msg:   "missing nb.iss on delegated capability",
		},
		{
			name:  "different iss",
			claim: Caveats{CaveatIssuer: string(other)},
			proof: Caveats{CaveatIssuer: string(bob)},
			want:  NameMismatchedCaveat,
			msg:   "mismatched nb.iss",
		},
		{
			name:  "same iss",
			claim: Caveats{CaveatIssuer: string(bob)},
			proof: Caveats{CaveatIssuer: string(bob)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Derive(
				Capability{Can: Follow, With: clk, Nb: tt.claim},
				Capability{Can: Follow, With: clk, Nb: tt.proof},
			)
			if tt.want == "" {
				require.NoError(t, err)
				return
			}
			require.Equal(t, tt.want, ErrorName(err))
			require.Contains(t, err.Error(), tt.msg)
			require.True(t, IsKind(err, KindAuthorization))
		})
	}
}

func TestValidate(t *testing.T) {
	ev := eventLink(t)

	c := Capability{Can: Follow, With: clk, Nb: Caveats{CaveatWith: string(other)}}
	require.NoError(t, Validate(&c))
	require.Equal(t, Caveats{CaveatClock: string(other)}, c.Nb, "with alias normalized to clk")

	adv := Capability{Can: Advance, With: clk, Nb: Caveats{CaveatEvent: ev.String()}}
	require.NoError(t, Validate(&adv))
	got, err := adv.Event()
	require.NoError(t, err)
	require.Equal(t, ev, got)

	bad := []Capability{
		{Can: "store/add", With: clk},
		{Can: Head, With: "https://example.com"},
		{Can: Head, With: clk, Nb: Caveats{CaveatIssuer: string(bob)}},
		{Can: Follow, With: clk, Nb: Caveats{CaveatIssuer: "bob"}},
		{Can: Advance, With: clk},
		{Can: Advance, With: clk, Nb: Caveats{CaveatEvent: "not-a-cid"}},
		{Can: Follow, With: clk, Nb: Caveats{CaveatClock: string(bob), CaveatWith: string(other)}},
	}
	for _, b := range bad {
		b := b
		err := Validate(&b)
		require.Error(t, err, b.String())
		require.True(t, IsKind(err, KindSchema), b.String())
	}
}

func TestValidate_AdvanceRequiresDagCBOREvent(t *testing.T) {
	raw, err := cid.Prefix{Version: 1, Codec: cid.Raw, MhType: 0x12, MhLength: -1}.Sum([]byte("raw"))
	require.NoError(t, err)
	c := Capability{Can: Advance, With: clk, Nb: Caveats{CaveatEvent: raw.String()}}
	err = Validate(&c)
	require.Equal(t, NameInvalidCaveat, ErrorName(err))
}

func TestAuthorize_SelfIssued(t *testing.T) {
	inv := Invocation{Issuer: clk, Audience: other, Capability: Capability{Can: Head, With: clk}}
	require.NoError(t, Authorize(&inv))
}

func TestAuthorize_NoProof(t *testing.T) {
	inv := Invocation{Issuer: alice, Capability: Capability{Can: Head, With: clk}}
	err := Authorize(&inv)
	require.Equal(t, NameNoProof, ErrorName(err))
}

func TestAuthorize_DelegatedWildcard(t *testing.T) {
	inv := Invocation{
		Issuer:     alice,
		Capability: Capability{Can: Follow, With: clk, Nb: Caveats{CaveatIssuer: string(bob)}},
		Proofs:     []Delegation{delegate(clk, alice, Capability{Can: Top, With: clk})},
	}
	require.NoError(t, Authorize(&inv))
}

func TestAuthorize_ReportsMostSpecificFailure(t *testing.T) {
	inv := Invocation{
		Issuer:     alice,
		Capability: Capability{Can: Follow, With: clk, Nb: Caveats{CaveatIssuer: string(other)}},
		Proofs: []Delegation{
			delegate(clk, alice, Capability{Can: Head, With: clk}),
			delegate(clk, alice, Capability{Can: Follow, With: clk, Nb: Caveats{CaveatIssuer: string(bob)}}),
			delegate(other, alice, Capability{Can: ClockAll, With: other}),
		},
	}
	err := Authorize(&inv)
	require.Equal(t, NameMismatchedCaveat, ErrorName(err))
}

func TestAuthorize_AudienceMustBeInvoker(t *testing.T) {
	inv := Invocation{
		Issuer:     alice,
		Capability: Capability{Can: Head, With: clk},
		Proofs:     []Delegation{delegate(clk, bob, Capability{Can: Top, With: clk})},
	}
	err := Authorize(&inv)
	require.Equal(t, NameAudienceMismatch, ErrorName(err))
}

func TestResolve(t *testing.T) {
	p := Resolve(Invocation{Issuer: alice, Capability: Capability{Can: Follow, With: clk}})
	require.Equal(t, Params{Clock: clk, Target: clk, Emitter: alice}, p)

	p = Resolve(Invocation{Issuer: alice, Capability: Capability{
		Can: Follow, With: clk,
		Nb: Caveats{CaveatIssuer: string(bob), CaveatClock: string(other)},
	}})
	require.Equal(t, Params{Clock: clk, Target: other, Emitter: bob}, p)

	p = Resolve(Invocation{Issuer: alice, Capability: Capability{
		Can: Follow, With: clk, Nb: Caveats{CaveatWith: string(other)},
	}})
	require.Equal(t, other, p.Target)
}
