// Package extract prepares resume inputs: it splits a source PDF into
// page-group variants and converts PDFs to plain text files consumed by the
// evaluation run. Pages without an extractable text layer are skipped; OCR is
// deliberately out of scope.
package extract

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"go.uber.org/zap"
)

// PageGroup selects a set of pages copied into one output variant.
type PageGroup struct {
	Pages []int `mapstructure:"pages"`
}

// Split copies each page group of the source PDF into its own file under
// outDir. Output names encode the selected pages: resume_1_4_5.pdf.
func Split(source, outDir string, groups []PageGroup, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	if len(groups) == 0 {
		return fmt.Errorf("no page groups configured")
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))

	for _, group := range groups {
		if len(group.Pages) == 0 {
			return fmt.Errorf("page group must not be empty")
		}

		pages := make([]string, 0, len(group.Pages))
		suffix := make([]string, 0, len(group.Pages))
		for _, page := range group.Pages {
			if page < 1 {
				return fmt.Errorf("invalid page number %d", page)
			}
			pages = append(pages, strconv.Itoa(page))
			suffix = append(suffix, strconv.Itoa(page))
		}

		out := filepath.Join(outDir, fmt.Sprintf("%s_%s.pdf", base, strings.Join(suffix, "_")))

		if err := api.CollectFile(source, out, pages, nil); err != nil {
			return fmt.Errorf("collect pages %v: %w", group.Pages, err)
		}

		logger.Info("wrote pdf variant",
			zap.String("file", out),
			zap.Ints("pages", group.Pages),
		)
	}

	return nil
}

// Text converts every PDF in pdfDir into a .txt file in txtDir using the
// embedded text layer.
func Text(pdfDir, txtDir string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := os.MkdirAll(txtDir, 0o755); err != nil {
		return fmt.Errorf("create text directory: %w", err)
	}

	entries, err := os.ReadDir(pdfDir)
	if err != nil {
		return fmt.Errorf("read pdf directory: %w", err)
	}

	converted := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".pdf") {
			continue
		}

		source := filepath.Join(pdfDir, entry.Name())
		text, err := textOf(source)
		if err != nil {
			logger.Warn("skipping pdf without extractable text",
				zap.String("file", source),
				zap.Error(err),
			)
			continue
		}

		name := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name())) + ".txt"
		target := filepath.Join(txtDir, name)
		if err := os.WriteFile(target, []byte(text), 0o644); err != nil {
			return fmt.Errorf("write text file: %w", err)
		}

		logger.Info("extracted text", zap.String("file", target))
		converted++
	}

	if converted == 0 {
		return fmt.Errorf("no pdf files converted in %s", pdfDir)
	}

	return nil
}

func textOf(path string) (string, error) {
	file, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer file.Close()

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("read text: %w", err)
	}

	text := strings.TrimSpace(buf.String())
	if text == "" {
		return "", fmt.Errorf("pdf has no text layer")
	}

	return text, nil
}
