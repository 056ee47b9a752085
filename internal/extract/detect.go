package extract

import (
	"bytes"
	"path/filepath"
	"unicode/utf8"

	"github.com/tsawler/tabula/format"
)

// Detect resolves the FileType of an upload. The filename extension is
// authoritative when present; otherwise the payload is sniffed (PDF header,
// ZIP archive containing word/ parts) and valid UTF-8 falls back to txt.
func Detect(name string, payload []byte) (FileType, error) {
	if filepath.Ext(name) != "" {
		return FileTypeFromName(name)
	}

	if format.DetectFromMagic(payload) == format.PDF {
		return PDF, nil
	}

	f, err := format.DetectFromReader(bytes.NewReader(payload), int64(len(payload)))
	if err == nil && f == format.DOCX {
		return DOCX, nil
	}
	if err == nil && f != format.Unknown {
		return "", &UnsupportedFormatError{Format: f.String()}
	}

	if utf8.Valid(payload) {
		return TXT, nil
	}
	return "", &UnsupportedFormatError{Format: name}
}
