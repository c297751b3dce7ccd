// Package gaol provides a declarative, platform-neutral sandbox policy and
// the entry points that compile and activate it on the current process.
//
// A caller builds a Profile describing exactly what the process is allowed
// to do, then hands it to a ChildSandbox (on the child side, immediately
// before running untrusted code) which consumes it once. There is no way
// to widen a Profile after activation, and there is no deactivation.
package gaol

import "fmt"

// Operation is a single category of action a Profile may permit.
//
// The zero Operation is invalid; always construct one with the FileReadAll,
// FileReadMetadata, NetworkOutbound, SystemInfoRead, SystemSocket, or
// PlatformSpecific constructors below.
type Operation struct {
	kind    operationKind
	path    PathPattern
	addr    AddressPattern
	backend PlatformSpecific
}

type operationKind int

const (
	kindInvalid operationKind = iota
	kindFileReadAll
	kindFileReadMetadata
	kindNetworkOutbound
	kindSystemInfoRead
	kindSystemSocket
	kindPlatformSpecific
)

// FileReadAll permits arbitrary reads (read-only open, read, lseek) of the
// path(s) matched by pattern. It does not grant stat, fstat, access or
// readlink; those come only with FileReadMetadata.
func FileReadAll(pattern PathPattern) Operation {
	return Operation{kind: kindFileReadAll, path: pattern}
}

// FileReadMetadata permits metadata-only reads (stat, fstat, access,
// readlink) of the path(s) matched by pattern. Content remains unreadable.
func FileReadMetadata(pattern PathPattern) Operation {
	return Operation{kind: kindFileReadMetadata, path: pattern}
}

// NetworkOutbound permits active connect/bind. The Linux backend does not
// restrict these calls to the endpoint(s) matched by pattern: any
// NetworkOutbound grant allows connect and bind to any address.
func NetworkOutbound(pattern AddressPattern) Operation {
	return Operation{kind: kindNetworkOutbound, addr: pattern}
}

// SystemInfoRead permits reading kernel/system tunables.
func SystemInfoRead() Operation {
	return Operation{kind: kindSystemInfoRead}
}

// SystemSocket permits creating a socket (Unix, IPv4, IPv6, or netlink
// route). It does not by itself permit connect/bind; pair it with
// NetworkOutbound for that.
func SystemSocket() Operation {
	return Operation{kind: kindSystemSocket}
}

// PlatformSpecificOp wraps a backend-defined extension operation. The core
// policy layer never interprets it; only the active backend does.
func PlatformSpecificOp(op PlatformSpecific) Operation {
	return Operation{kind: kindPlatformSpecific, backend: op}
}

// PlatformSpecific is an opaque, backend-supplied operation. Its meaning is
// defined entirely by whichever backend produced it; the core treats it as
// uninterpreted data that round-trips through the policy layer untouched.
type PlatformSpecific struct {
	// Name identifies the extension to the backend that defines it (for
	// example "landlock.ioctlDev"). Unrecognized names are rejected by
	// Profile construction with UnsupportedOperation.
	Name string
	// Data carries whatever the backend needs to interpret Name; its
	// structure is a contract between the backend and its own callers.
	Data map[string]string
}

// PathPattern describes a path or paths on the filesystem.
type PathPattern struct {
	path   string
	subtre bool
}

// Literal matches exactly one path, which must not represent a directory.
func Literal(path string) PathPattern {
	return PathPattern{path: path}
}

// Subpath matches a directory and all of its contents, recursively.
func Subpath(path string) PathPattern {
	return PathPattern{path: path, subtre: true}
}

// Path returns the pattern's underlying filesystem path.
func (p PathPattern) Path() string { return p.path }

// IsSubpath reports whether the pattern matches a directory's transitive
// contents rather than a single literal path.
func (p PathPattern) IsSubpath() bool { return p.subtre }

func (p PathPattern) String() string {
	if p.subtre {
		return fmt.Sprintf("Subpath(%s)", p.path)
	}
	return fmt.Sprintf("Literal(%s)", p.path)
}

// AddressPattern describes a network address.
type AddressPattern struct {
	port      uint16
	localPath string
	isLocal   bool
}

// Tcp matches TCP connections on the given port.
func Tcp(port uint16) AddressPattern { //nolint:revive // Tcp mirrors the spec's naming
	return AddressPattern{port: port}
}

// LocalSocket matches a local (Unix domain) socket at the given path.
func LocalSocket(path string) AddressPattern {
	return AddressPattern{localPath: path, isLocal: true}
}

// IsLocal reports whether the pattern matches a Unix domain socket path
// rather than a TCP port.
func (a AddressPattern) IsLocal() bool { return a.isLocal }

// Port returns the TCP port matched by the pattern; meaningless if IsLocal.
func (a AddressPattern) Port() uint16 { return a.port }

// Path returns the Unix socket path matched by the pattern; meaningless
// unless IsLocal.
func (a AddressPattern) Path() string { return a.localPath }

func (a AddressPattern) String() string {
	if a.isLocal {
		return fmt.Sprintf("LocalSocket(%s)", a.localPath)
	}
	return fmt.Sprintf("Tcp(%d)", a.port)
}

// PolicyErrorKind classifies a PolicyError.
type PolicyErrorKind int

const (
	// UnsupportedOperation means the current backend has no enforcement
	// mechanism for a requested operation.
	UnsupportedOperation PolicyErrorKind = iota
	// OverlappingPatterns means two operations in the profile have
	// path patterns whose enforcement order is not well defined; see
	// Profile's doc comment.
	OverlappingPatterns
)

// PolicyError reports why a Profile could not be constructed.
type PolicyError struct {
	Kind PolicyErrorKind
	// Operation is the offending operation's kind, for diagnostics.
	Operation string
	// Detail is a free-form human-readable explanation.
	Detail string
}

func (e *PolicyError) Error() string {
	switch e.Kind {
	case UnsupportedOperation:
		return fmt.Sprintf("gaol: operation %s has no enforcement mechanism on this platform: %s", e.Operation, e.Detail)
	case OverlappingPatterns:
		return fmt.Sprintf("gaol: overlapping patterns in profile: %s", e.Detail)
	default:
		return fmt.Sprintf("gaol: policy error: %s", e.Detail)
	}
}

// Profile is an immutable, ordered allow-list of operations a sandboxed
// process may perform. Operations not present are implicitly denied.
//
// A Profile never mutates after construction and is the sole source of
// truth consulted by both the namespace/chroot jail builder and the
// seccomp filter compiler; neither subsystem caches a derived subset of it.
//
// Because of platform limitations, patterns within one profile must not
// overlap (for example, allowing metadata reads of "/dev" while also
// allowing full reads of "/dev/null"); behavior when they do is undefined
// at enforcement time. NewProfile validates against the common cases of
// this (see Options) but cannot catch every overlap an enforcement backend
// might care about.
type Profile struct {
	ops []Operation
}

// Options controls optional Profile-construction behavior.
type Options struct {
	// SkipOverlapCheck disables the doublestar-based overlap validation
	// NewProfile otherwise performs. Overlap is undefined behavior either
	// way; this only controls whether NewProfile tries to catch it early.
	SkipOverlapCheck bool
}

// NewProfile builds a Profile from the given operations. Construction is
// fallible: a profile requesting enforcement this platform cannot provide
// is rejected with a *PolicyError wrapping UnsupportedOperation, rather
// than silently widened.
func NewProfile(ops []Operation, opts ...Options) (*Profile, error) {
	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}

	for _, op := range ops {
		if op.kind == kindInvalid {
			return nil, &PolicyError{Kind: UnsupportedOperation, Operation: "<zero value>", Detail: "a zero-value Operation was passed to NewProfile"}
		}
		if op.kind == kindPlatformSpecific {
			if err := checkPlatformSpecific(op.backend); err != nil {
				return nil, err
			}
		}
	}

	p := &Profile{ops: append([]Operation(nil), ops...)}

	if !o.SkipOverlapCheck {
		if err := validateNoOverlap(p.ops); err != nil {
			return nil, err
		}
	}

	return p, nil
}

// AllowedOperations returns the profile's operations in the order they were
// supplied to NewProfile. The returned slice must not be mutated by callers;
// it is the profile's own backing array.
func (p *Profile) AllowedOperations() []Operation {
	return p.ops
}

// Kind identifiers, exported for code outside this package that needs to
// switch on operation category (the policy-file loader and BPF compiler
// both do). Obtained via Operation.Is*.
func (op Operation) IsFileReadAll() bool      { return op.kind == kindFileReadAll }
func (op Operation) IsFileReadMetadata() bool { return op.kind == kindFileReadMetadata }
func (op Operation) IsNetworkOutbound() bool  { return op.kind == kindNetworkOutbound }
func (op Operation) IsSystemInfoRead() bool   { return op.kind == kindSystemInfoRead }
func (op Operation) IsSystemSocket() bool     { return op.kind == kindSystemSocket }
func (op Operation) IsPlatformSpecific() bool { return op.kind == kindPlatformSpecific }

// PathPattern returns the operation's path pattern. Only meaningful for
// FileReadAll and FileReadMetadata operations.
func (op Operation) PathPattern() PathPattern { return op.path }

// AddressPattern returns the operation's address pattern. Only meaningful
// for NetworkOutbound operations.
func (op Operation) AddressPattern() AddressPattern { return op.addr }

// PlatformSpecificOp returns the operation's opaque backend payload. Only
// meaningful for PlatformSpecific operations.
func (op Operation) PlatformSpecificOp() PlatformSpecific { return op.backend }

func (op Operation) String() string {
	switch op.kind {
	case kindFileReadAll:
		return fmt.Sprintf("FileReadAll(%s)", op.path)
	case kindFileReadMetadata:
		return fmt.Sprintf("FileReadMetadata(%s)", op.path)
	case kindNetworkOutbound:
		return fmt.Sprintf("NetworkOutbound(%s)", op.addr)
	case kindSystemInfoRead:
		return "SystemInfoRead"
	case kindSystemSocket:
		return "SystemSocket"
	case kindPlatformSpecific:
		return fmt.Sprintf("PlatformSpecific(%s)", op.backend.Name)
	default:
		return "<invalid operation>"
	}
}

// checkPlatformSpecific is overridden (via the backend registry in
// platformext.go) by whichever backend is linked in. A nil registry means
// no platform-specific operations are recognized, which is the correct
// default for a core build with no backend extension imported.
var checkPlatformSpecific = func(op PlatformSpecific) error {
	return &PolicyError{Kind: UnsupportedOperation, Operation: "PlatformSpecific", Detail: fmt.Sprintf("extension %q is not registered by any backend", op.Name)}
}
