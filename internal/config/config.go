// Package config loads the small session configuration every command in
// this module shares: where the administrative database lives, where the
// alternatives indirection links and split-package depot are kept, and
// which architectures the running system accepts packages for.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"
)

// defaultAdminDir is dpkg's traditional administrative directory.
const defaultAdminDir = "/var/lib/dpkg"

// Session is the configuration shared by every subcommand: admindir
// location, the alternatives link directory, the split-package depot
// directory, and the architectures the database accepts.
type Session struct {
	// AdminDir is the root of the status database (status, available,
	// lock, lock-frontend, updates/). Defaults to /var/lib/dpkg.
	AdminDir string `yaml:"admindir"`
	// AltLinkDir is where alternatives indirection links are created.
	// Defaults to AdminDir's sibling "alternatives" directory the way
	// update-alternatives derives --altdir from --admindir when neither
	// is given explicitly.
	AltLinkDir string `yaml:"altdir"`
	// DepotDir is where dpkg-split accumulates incoming parts awaiting
	// reassembly. Defaults to AdminDir's "parts" subdirectory.
	DepotDir string `yaml:"depotdir"`
	// Architectures lists the architectures this system accepts
	// packages for, native architecture first.
	Architectures []string `yaml:"architectures"`
}

// Default returns the session configuration dpkg uses when no
// configuration file is present: admindir /var/lib/dpkg and its usual
// siblings, with no architectures configured (callers fall back to
// detecting the native one, e.g. via `dpkg --print-architecture`).
func Default() *Session {
	return applyDefaults(&Session{})
}

// Load reads a YAML session configuration from path, filling in any field
// left unset with its default. A missing file is not an error: it behaves
// exactly like Default, since most installations never need to override
// these paths.
func Load(path string) (*Session, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var s Session
	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return applyDefaults(&s), nil
}

// NativeArchitecture returns the first configured architecture, the
// convention dpkg uses for "the architecture this system installs
// natively" (dpkg --print-architecture). Returns "" if none is
// configured; callers fall back to their own detection in that case.
func (s *Session) NativeArchitecture() string {
	if len(s.Architectures) == 0 {
		return ""
	}
	return s.Architectures[0]
}

func applyDefaults(s *Session) *Session {
	if s.AdminDir == "" {
		s.AdminDir = defaultAdminDir
	}
	if s.AltLinkDir == "" {
		s.AltLinkDir = filepath.Join(filepath.Dir(s.AdminDir), "alternatives")
	}
	if s.DepotDir == "" {
		s.DepotDir = filepath.Join(s.AdminDir, "parts")
	}
	return s
}
