package hostconfig

import "testing"

func TestLoad_MissingFileReturnsZeroValue(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Theme != "" || cfg.LastAccessAt != 0 {
		t.Errorf("Load() on missing file = %+v, want zero value", cfg)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	want := &Config{Theme: "dark", LastAccessAt: 1234, VaultPath: "/custom/vault.json"}

	if err := Save(dir, want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if *got != *want {
		t.Errorf("Load() = %+v, want %+v", got, want)
	}
}

func TestTouch(t *testing.T) {
	dir := t.TempDir()
	if err := Save(dir, &Config{Theme: "light"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if err := Touch(dir, 9999); err != nil {
		t.Fatalf("Touch() error = %v", err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LastAccessAt != 9999 || cfg.Theme != "light" {
		t.Errorf("Touch() left config as %+v", cfg)
	}
}
