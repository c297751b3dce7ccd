package policyfile

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/opensandbox/gaol/pkg/gaol"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	profile, err := gaol.NewProfile([]gaol.Operation{
		gaol.FileReadAll(gaol.Subpath("/usr/lib")),
		gaol.FileReadMetadata(gaol.Literal("/etc/hostname")),
		gaol.NetworkOutbound(gaol.Tcp(443)),
		gaol.NetworkOutbound(gaol.LocalSocket("/run/dbus/system_bus_socket")),
		gaol.SystemInfoRead(),
		gaol.SystemSocket(),
	})
	if err != nil {
		t.Fatalf("NewProfile: %v", err)
	}

	path := filepath.Join(t.TempDir(), "policy.jsonc")
	if err := Save(path, profile); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if !reflect.DeepEqual(profile.AllowedOperations(), got.AllowedOperations()) {
		t.Errorf("round-trip mismatch:\n  before: %v\n  after:  %v", profile.AllowedOperations(), got.AllowedOperations())
	}
}

func TestLoadToleratesComments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.jsonc")
	const doc = `{
  // only the hostname's metadata is visible
  "fileReadMetadata": [
    { "path": "/etc/hostname" }, // trailing comma below is also fine
  ],
}`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	profile, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	ops := profile.AllowedOperations()
	if len(ops) != 1 || !ops[0].IsFileReadMetadata() || ops[0].PathPattern().Path() != "/etc/hostname" {
		t.Errorf("unexpected operations: %v", ops)
	}
}

func TestLoadRejectsOverlap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.jsonc")
	const doc = `{
  "fileReadAll": [ { "path": "/dev", "subpath": true } ],
  "fileReadMetadata": [ { "path": "/dev/null" } ]
}`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Error("expected an overlap error, got nil")
	}
}
