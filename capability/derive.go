package capability

// Derive checks that claim may be derived from the delegated proof.
//
// The resource must be identical, whatever the abilities. When both sides
// name the same ability, every caveat present on either side must be present
// on both with the same value. Wildcard abilities carry no caveats, so only
// the resource is compared against them.
func Derive(claim, proof Capability) error {
	if !proof.Can.Covers(claim.Can) {
		return authError(NameAbilityMismatch, "Can not derive %s from %s", claim.Can, proof.Can)
	}
	if claim.With != proof.With {
		return authError(NameResourceMismatch, "Can not derive %s with %s from %s", claim.Can, claim.With, proof.With)
	}
	if claim.Can != proof.Can {
		return nil
	}

	union := make(Caveats, len(claim.Nb)+len(proof.Nb))
	for k, v := range proof.Nb {
		union[k] = v
	}
	for k, v := range claim.Nb {
		union[k] = v
	}
	for _, k := range union.Keys() {
		cv, inClaim := claim.Nb[k]
		pv, inProof := proof.Nb[k]
		switch {
		case inClaim && !inProof:
			return authError(NameMissingClaimCaveat, "missing nb.%s on claimed capability", k)
		case !inClaim && inProof:
			return authError(NameMissingProofCaveat, "missing nb.%s on delegated capability", k)
		case cv != pv:
			return authError(NameMismatchedCaveat, "mismatched nb.%s: claimed %s, delegated %s", k, cv, pv)
		}
	}
	return nil
}

// specificity ranks failures so the most informative one is reported when
// no proof authorizes an invocation.
func specificity(err error) int {
	switch ErrorName(err) {
	case NameMissingClaimCaveat, NameMissingProofCaveat, NameMismatchedCaveat:
		return 3
	case NameResourceMismatch:
		return 2
	case NameAbilityMismatch:
		return 1
	}
	return 0
}

// Authorize validates inv's capability and checks that it is either issued by
// the resource itself or derivable from a capability delegated to the
// invoker. inv.Capability is normalized in place.
func Authorize(inv *Invocation) error {
	if err := Validate(&inv.Capability); err != nil {
		return err
	}
	claim := inv.Capability
	if inv.Issuer == claim.With {
		return nil
	}

	var best error
	for _, d := range inv.Proofs {
		if d.Audience != inv.Issuer {
			if best == nil {
				best = authError(NameAudienceMismatch, "delegation from %s is addressed to %s, not %s", d.Issuer, d.Audience, inv.Issuer)
			}
			continue
		}
		for _, p := range d.Capabilities {
			if err := Validate(&p); err != nil {
				if best == nil {
					best = err
				}
				continue
			}
			err := Derive(claim, p)
			if err == nil {
				return nil
			}
			if best == nil || specificity(err) > specificity(best) {
				best = err
			}
		}
	}
	if best == nil {
		return authError(NameNoProof, "%s is not authorized to %s: no proofs", inv.Issuer, claim)
	}
	return best
}
