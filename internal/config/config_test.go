package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultFillsConventionalPaths(t *testing.T) {
	s := Default()
	if s.AdminDir != "/var/lib/dpkg" {
		t.Errorf("AdminDir = %s, want /var/lib/dpkg", s.AdminDir)
	}
	if s.AltLinkDir != "/var/lib/alternatives" {
		t.Errorf("AltLinkDir = %s, want /var/lib/alternatives", s.AltLinkDir)
	}
	if s.DepotDir != "/var/lib/dpkg/parts" {
		t.Errorf("DepotDir = %s, want /var/lib/dpkg/parts", s.DepotDir)
	}
	if s.NativeArchitecture() != "" {
		t.Errorf("expected no native architecture configured by default")
	}
}

func TestLoadMissingFileFallsBackToDefault(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.AdminDir != "/var/lib/dpkg" {
		t.Errorf("AdminDir = %s, want default", s.AdminDir)
	}
}

func TestLoadParsesYAMLAndFillsGaps(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dpkg.yaml")
	content := "admindir: /srv/dpkg\narchitectures:\n  - amd64\n  - i386\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.AdminDir != "/srv/dpkg" {
		t.Errorf("AdminDir = %s, want /srv/dpkg", s.AdminDir)
	}
	if s.AltLinkDir != "/srv/alternatives" {
		t.Errorf("AltLinkDir = %s, want /srv/alternatives (derived from admindir's sibling)", s.AltLinkDir)
	}
	if s.DepotDir != "/srv/dpkg/parts" {
		t.Errorf("DepotDir = %s, want /srv/dpkg/parts", s.DepotDir)
	}
	if got := s.NativeArchitecture(); got != "amd64" {
		t.Errorf("NativeArchitecture() = %s, want amd64", got)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dpkg.yaml")
	if err := os.WriteFile(path, []byte("admindir: /srv/dpkg\nbogus: true\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for unknown field")
	}
}
