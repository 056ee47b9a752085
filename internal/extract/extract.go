// Package extract converts uploaded document payloads into plain text.
// Supported formats are plain UTF-8 text, PDF and DOCX; PDF and DOCX parsing
// is delegated to github.com/tsawler/tabula.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// FileType identifies the format of a source document.
type FileType string

const (
	// TXT is UTF-8 plain text.
	TXT FileType = "txt"
	// PDF is a Portable Document Format file.
	PDF FileType = "pdf"
	// DOCX is an Office Open XML word-processing document.
	DOCX FileType = "docx"
)

// Supported lists the file types ExtractText accepts, in display order.
var Supported = []FileType{TXT, PDF, DOCX}

// ErrUnsupportedFormat is the sentinel matched by every *UnsupportedFormatError.
var ErrUnsupportedFormat = errors.New("unsupported format")

// UnsupportedFormatError is returned when a file type tag is not one of the
// supported formats.
type UnsupportedFormatError struct {
	// Format is the rejected tag as supplied by the caller.
	Format string
}

// Error implements the error interface.
func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("extract: unsupported format %q (supported: txt, pdf, docx)", e.Format)
}

// Is reports whether target is ErrUnsupportedFormat.
func (e *UnsupportedFormatError) Is(target error) bool {
	return target == ErrUnsupportedFormat
}

// DecodeError is returned when a payload cannot be decoded in its declared format.
type DecodeError struct {
	// Format is the declared format of the payload.
	Format FileType
	// Err is the underlying parser error, if any.
	Err error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("extract: cannot decode %s payload", e.Format)
	}
	return fmt.Sprintf("extract: cannot decode %s payload: %v", e.Format, e.Err)
}

// Unwrap returns the underlying parser error.
func (e *DecodeError) Unwrap() error { return e.Err }

// utf8BOM is stripped from the start of text payloads.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ParseFileType normalises a format tag or extension ("PDF", ".docx", " txt ")
// into a FileType. Unknown tags yield *UnsupportedFormatError.
func ParseFileType(tag string) (FileType, error) {
	norm := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(tag), "."))
	switch FileType(norm) {
	case TXT, PDF, DOCX:
		return FileType(norm), nil
	}
	return "", &UnsupportedFormatError{Format: tag}
}

// FileTypeFromName derives the FileType from a filename's extension.
func FileTypeFromName(name string) (FileType, error) {
	ext := filepath.Ext(name)
	if ext == "" {
		return "", &UnsupportedFormatError{Format: name}
	}
	return ParseFileType(ext)
}

// ExtractText returns the textual content of payload interpreted as fileType.
//
//   - txt:  payload decoded as UTF-8; a leading byte-order mark is dropped.
//   - pdf:  text of every page in page order, joined with "\n".
//   - docx: paragraph texts in document order, joined with "\n".
//
// The payload is never modified. Malformed payloads yield *DecodeError and
// unknown formats yield *UnsupportedFormatError.
func ExtractText(payload []byte, fileType FileType) (string, error) {
	switch fileType {
	case TXT:
		return extractPlain(payload)
	case PDF:
		return extractPDF(payload)
	case DOCX:
		return extractDOCX(payload)
	default:
		return "", &UnsupportedFormatError{Format: string(fileType)}
	}
}

func extractPlain(payload []byte) (string, error) {
	if !utf8.Valid(payload) {
		return "", &DecodeError{Format: TXT, Err: errors.New("payload is not valid UTF-8")}
	}
	return string(bytes.TrimPrefix(payload, utf8BOM)), nil
}
