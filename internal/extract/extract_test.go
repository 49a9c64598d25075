package extract

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func TestSplitRejectsBadConfig(t *testing.T) {
	out := t.TempDir()

	if err := Split("resume.pdf", out, nil, zap.NewNop()); err == nil {
		t.Fatal("expected error for missing page groups")
	}

	if err := Split("resume.pdf", out, []PageGroup{{}}, zap.NewNop()); err == nil {
		t.Fatal("expected error for empty page group")
	}

	if err := Split("resume.pdf", out, []PageGroup{{Pages: []int{0}}}, zap.NewNop()); err == nil {
		t.Fatal("expected error for page number below 1")
	}
}

func TestTextFailsOnMissingDirectory(t *testing.T) {
	err := Text(filepath.Join(t.TempDir(), "missing"), t.TempDir(), zap.NewNop())
	if err == nil {
		t.Fatal("expected error for missing pdf directory")
	}
}

func TestTextFailsWhenNothingConverted(t *testing.T) {
	pdfDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(pdfDir, "notes.txt"), []byte("not a pdf"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	if err := Text(pdfDir, t.TempDir(), zap.NewNop()); err == nil {
		t.Fatal("expected error when no pdf files are present")
	}
}

func TestTextSkipsBrokenPDFs(t *testing.T) {
	pdfDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(pdfDir, "broken.pdf"), []byte("not really a pdf"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	// The broken file is skipped with a warning, leaving nothing converted.
	if err := Text(pdfDir, t.TempDir(), zap.NewNop()); err == nil {
		t.Fatal("expected error when every pdf is skipped")
	}
}
