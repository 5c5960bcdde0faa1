package main

import "testing"

func TestDetectImportSource(t *testing.T) {
	if got := detectImportSource("vault-2026-08-06.kvbackup"); got != "backup" {
		t.Errorf("detectImportSource(.kvbackup) = %q, want %q", got, "backup")
	}
	if got := detectImportSource("export.json"); got != "" {
		t.Errorf("detectImportSource(.json) = %q, want empty (requires --source)", got)
	}
}

func TestImportCompetitorExport_UnreadableFile(t *testing.T) {
	if err := importCompetitorExport("/nonexistent/path/does-not-exist.json", "bitwarden"); err == nil {
		t.Error("importCompetitorExport() error = nil, want error for missing file")
	}
}

func TestImportBackup_UnreadableFile(t *testing.T) {
	if err := importBackup("/nonexistent/path/does-not-exist.kvbackup"); err == nil {
		t.Error("importBackup() error = nil, want error for missing file")
	}
}
