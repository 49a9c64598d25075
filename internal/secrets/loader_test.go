package secrets

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadFromValue(t *testing.T) {
	secret, err := Load(Source{Name: "api key", Value: "  sk-test  "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if secret != "sk-test" {
		t.Fatalf("expected trimmed secret, got %q", secret)
	}
}

func TestLoadFilePrecedesValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key")
	if err := os.WriteFile(path, []byte("sk-from-file\n"), 0o600); err != nil {
		t.Fatalf("write key file: %v", err)
	}

	secret, err := Load(Source{Name: "api key", Value: "sk-inline", File: path})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if secret != "sk-from-file" {
		t.Fatalf("expected file secret to win, got %q", secret)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(Source{Name: "api key"}); err == nil {
		t.Fatal("expected error for empty source")
	}

	path := filepath.Join(t.TempDir(), "empty")
	if err := os.WriteFile(path, []byte("   \n"), 0o600); err != nil {
		t.Fatalf("write key file: %v", err)
	}

	if _, err := Load(Source{Name: "api key", File: path}); err == nil {
		t.Fatal("expected error for empty file")
	}

	if _, err := Load(Source{Name: "api key", File: filepath.Join(t.TempDir(), "missing")}); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadAllPreservesOrder(t *testing.T) {
	secrets, err := LoadAll(
		Source{Name: "primary key", Value: "sk-one"},
		Source{Name: "backup key", Value: "sk-two"},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(secrets) != 2 || secrets[0] != "sk-one" || secrets[1] != "sk-two" {
		t.Fatalf("unexpected secrets: %v", secrets)
	}
}

func TestLoadAllFailsOnBadBackup(t *testing.T) {
	_, err := LoadAll(
		Source{Name: "primary key", Value: "sk-one"},
		Source{Name: "backup key"},
	)
	if err == nil {
		t.Fatal("expected error for unresolved backup key")
	}

	if !strings.Contains(err.Error(), "backup key") {
		t.Fatalf("expected error to name the failing source, got %v", err)
	}
}

func TestLoadAllRequiresSources(t *testing.T) {
	if _, err := LoadAll(); err == nil {
		t.Fatal("expected error when no sources are configured")
	}
}
