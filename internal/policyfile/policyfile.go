// Package policyfile loads and serializes a gaol.Profile from a JSONC
// document, the same comments-allowed ergonomics the teacher's
// internal/config package gives its own configuration file. This is the
// supervisor-side convenience spec §6 gestures at ("transported to the
// child... implementations may serialize") and is what makes testable
// property P7 (round-trip) meaningful for a real caller, not just an
// in-memory test.
package policyfile

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"

	"github.com/opensandbox/gaol/pkg/gaol"
)

// document is the on-disk shape of a Profile. Operation is a tagged variant
// internally; on disk it flattens into one optional field per operation
// kind, which keeps hand-written policy files readable without needing a
// discriminator tag.
type document struct {
	FileReadAll      []pathPatternDoc    `json:"fileReadAll,omitempty"`
	FileReadMetadata []pathPatternDoc    `json:"fileReadMetadata,omitempty"`
	NetworkOutbound  []addressPatternDoc `json:"networkOutbound,omitempty"`
	SystemInfoRead   bool                `json:"systemInfoRead,omitempty"`
	SystemSocket     bool                `json:"systemSocket,omitempty"`
}

type pathPatternDoc struct {
	Path    string `json:"path"`
	Subpath bool   `json:"subpath,omitempty"`
}

type addressPatternDoc struct {
	Port      uint16 `json:"port,omitempty"`
	LocalPath string `json:"localPath,omitempty"`
}

// Load reads a JSONC policy file and constructs the Profile it describes.
// Comments and trailing commas are accepted, exactly as the teacher's
// config.Load tolerates them via tidwall/jsonc.
func Load(path string) (*gaol.Profile, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is supplied by the calling supervisor, not attacker-controlled input
	if err != nil {
		return nil, fmt.Errorf("gaol: reading policy file: %w", err)
	}

	var doc document
	if err := json.Unmarshal(jsonc.ToJSON(data), &doc); err != nil {
		return nil, fmt.Errorf("gaol: parsing policy file: %w", err)
	}

	return doc.toProfile()
}

// Save serializes profile as an indented JSON policy file at path.
func Save(path string, profile *gaol.Profile) error {
	doc := fromProfile(profile)
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("gaol: serializing policy file: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("gaol: writing policy file: %w", err)
	}
	return nil
}

func (d document) toProfile() (*gaol.Profile, error) {
	var ops []gaol.Operation
	for _, p := range d.FileReadAll {
		ops = append(ops, gaol.FileReadAll(p.pattern()))
	}
	for _, p := range d.FileReadMetadata {
		ops = append(ops, gaol.FileReadMetadata(p.pattern()))
	}
	for _, a := range d.NetworkOutbound {
		ops = append(ops, gaol.NetworkOutbound(a.pattern()))
	}
	if d.SystemInfoRead {
		ops = append(ops, gaol.SystemInfoRead())
	}
	if d.SystemSocket {
		ops = append(ops, gaol.SystemSocket())
	}

	profile, err := gaol.NewProfile(ops)
	if err != nil {
		return nil, fmt.Errorf("gaol: policy file describes an invalid profile: %w", err)
	}
	return profile, nil
}

func fromProfile(profile *gaol.Profile) document {
	var doc document
	for _, op := range profile.AllowedOperations() {
		switch {
		case op.IsFileReadAll():
			doc.FileReadAll = append(doc.FileReadAll, fromPathPattern(op.PathPattern()))
		case op.IsFileReadMetadata():
			doc.FileReadMetadata = append(doc.FileReadMetadata, fromPathPattern(op.PathPattern()))
		case op.IsNetworkOutbound():
			doc.NetworkOutbound = append(doc.NetworkOutbound, fromAddressPattern(op.AddressPattern()))
		case op.IsSystemInfoRead():
			doc.SystemInfoRead = true
		case op.IsSystemSocket():
			doc.SystemSocket = true
		}
	}
	return doc
}

func (p pathPatternDoc) pattern() gaol.PathPattern {
	if p.Subpath {
		return gaol.Subpath(p.Path)
	}
	return gaol.Literal(p.Path)
}

func fromPathPattern(p gaol.PathPattern) pathPatternDoc {
	return pathPatternDoc{Path: p.Path(), Subpath: p.IsSubpath()}
}

func (a addressPatternDoc) pattern() gaol.AddressPattern {
	if a.LocalPath != "" {
		return gaol.LocalSocket(a.LocalPath)
	}
	return gaol.Tcp(a.Port)
}

func fromAddressPattern(a gaol.AddressPattern) addressPatternDoc {
	if a.IsLocal() {
		return addressPatternDoc{LocalPath: a.Path()}
	}
	return addressPatternDoc{Port: a.Port()}
}
