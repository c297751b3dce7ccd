//go:build !linux && !darwin

package sandbox

import "github.com/opensandbox/gaol/pkg/gaol"

func activate(_ *gaol.Profile, _ Options) error {
	return &gaol.PolicyError{Kind: gaol.UnsupportedOperation, Operation: "Activate", Detail: "no gaol backend for this platform"}
}
