package gaol

// This file implements the policy-wide query contract both backends
// consult: "does any allowed operation match predicate P?" The BPF filter
// compiler and the jail builder each ask a handful of these questions
// independently; neither caches a derived subset of the Profile, per the
// invariant documented on Profile.

// AnyFileReadAll reports whether the profile allows FileReadAll for any
// pattern.
func (p *Profile) AnyFileReadAll() bool {
	return p.any(func(op Operation) bool { return op.IsFileReadAll() })
}

// AnyFileReadMetadata reports whether the profile allows FileReadMetadata
// for any pattern.
func (p *Profile) AnyFileReadMetadata() bool {
	return p.any(func(op Operation) bool { return op.IsFileReadMetadata() })
}

// AnyNetworkOutbound reports whether the profile allows NetworkOutbound for
// any pattern.
func (p *Profile) AnyNetworkOutbound() bool {
	return p.any(func(op Operation) bool { return op.IsNetworkOutbound() })
}

// AnySystemSocket reports whether the profile allows SystemSocket.
func (p *Profile) AnySystemSocket() bool {
	return p.any(func(op Operation) bool { return op.IsSystemSocket() })
}

// AnySystemInfoRead reports whether the profile allows SystemInfoRead.
func (p *Profile) AnySystemInfoRead() bool {
	return p.any(func(op Operation) bool { return op.IsSystemInfoRead() })
}

func (p *Profile) any(pred func(Operation) bool) bool {
	for _, op := range p.ops {
		if pred(op) {
			return true
		}
	}
	return false
}

// FileReadAllPatterns returns every PathPattern allowed for FileReadAll, in
// profile order.
func (p *Profile) FileReadAllPatterns() []PathPattern {
	return p.pathPatterns(func(op Operation) bool { return op.IsFileReadAll() })
}

// FileReadMetadataPatterns returns every PathPattern allowed for
// FileReadMetadata, in profile order.
func (p *Profile) FileReadMetadataPatterns() []PathPattern {
	return p.pathPatterns(func(op Operation) bool { return op.IsFileReadMetadata() })
}

func (p *Profile) pathPatterns(pred func(Operation) bool) []PathPattern {
	var out []PathPattern
	for _, op := range p.ops {
		if pred(op) {
			out = append(out, op.path)
		}
	}
	return out
}

// NetworkOutboundPatterns returns every AddressPattern allowed for
// NetworkOutbound, in profile order.
func (p *Profile) NetworkOutboundPatterns() []AddressPattern {
	var out []AddressPattern
	for _, op := range p.ops {
		if op.IsNetworkOutbound() {
			out = append(out, op.addr)
		}
	}
	return out
}
