package extract

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/tsawler/tabula"
	"github.com/tsawler/tabula/docx"
	"github.com/tsawler/tabula/reader"
)

// The tabula readers operate on files, so binary payloads are staged in a
// private temp file that is removed before returning.
func withTempFile(payload []byte, pattern string, fn func(path string) (string, error)) (string, error) {
	f, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", fmt.Errorf("extract: create temp file: %w", err)
	}
	path := f.Name()
	defer os.Remove(path)

	if _, err := f.Write(payload); err != nil {
		f.Close()
		return "", fmt.Errorf("extract: write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("extract: close temp file: %w", err)
	}
	return fn(path)
}

// extractPDF returns the text of every page joined with "\n". A page with
// no extractable text (e.g. a scanned image) contributes an empty string.
func extractPDF(payload []byte) (string, error) {
	if len(payload) == 0 {
		return "", &DecodeError{Format: PDF, Err: errors.New("empty payload")}
	}

	return withTempFile(payload, "ragdesk-*.pdf", func(path string) (string, error) {
		r, err := reader.Open(path)
		if err != nil {
			return "", &DecodeError{Format: PDF, Err: err}
		}
		defer r.Close()

		n, err := r.PageCount()
		if err != nil {
			return "", &DecodeError{Format: PDF, Err: err}
		}

		pages := make([]string, 0, n)
		for i := 1; i <= n; i++ {
			text, _, err := tabula.FromReader(r).Pages(i).Text()
			if err != nil {
				return "", &DecodeError{Format: PDF, Err: fmt.Errorf("page %d: %w", i, err)}
			}
			pages = append(pages, text)
		}
		return strings.Join(pages, "\n"), nil
	})
}

// extractDOCX returns paragraph texts in document order joined with "\n".
func extractDOCX(payload []byte) (string, error) {
	if len(payload) == 0 {
		return "", &DecodeError{Format: DOCX, Err: errors.New("empty payload")}
	}

	return withTempFile(payload, "ragdesk-*.docx", func(path string) (string, error) {
		d, err := docx.Open(path)
		if err != nil {
			return "", &DecodeError{Format: DOCX, Err: err}
		}
		defer d.Close()

		text, err := d.Text()
		if err != nil {
			return "", &DecodeError{Format: DOCX, Err: err}
		}
		return text, nil
	})
}
