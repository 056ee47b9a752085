package ingestion

import (
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/54b3r/ragdesk/internal/extract"
)

// TextSourceName is the source name given to raw text submitted without a file.
const TextSourceName = "user_input"

// Origin classifies where a source came from.
type Origin string

const (
	// OriginUpload is a file received over HTTP.
	OriginUpload Origin = "upload"
	// OriginFile is a local file ingested from the CLI.
	OriginFile Origin = "file"
	// OriginURL is a document fetched over HTTP(S) by the CLI.
	OriginURL Origin = "url"
	// OriginText is raw text with no file behind it.
	OriginText Origin = "text"
)

// SourceMetadata is best-effort information derived from a source reference.
// It is stored alongside every chunk as string metadata.
type SourceMetadata struct {
	// Origin is how the source entered the system.
	Origin Origin
	// Name is the source name stored on each chunk.
	Name string
	// Title is a human-readable label (file name without extension).
	Title string
	// FileType is the extension-derived format, empty when unknown.
	FileType extract.FileType
	// Host is the URL host for OriginURL sources.
	Host string
}

// Map flattens m into chunk metadata. Empty fields are omitted.
func (m SourceMetadata) Map() map[string]string {
	out := map[string]string{"origin": string(m.Origin)}
	if m.Title != "" {
		out["title"] = m.Title
	}
	if m.FileType != "" {
		out["file_type"] = string(m.FileType)
	}
	if m.Host != "" {
		out["host"] = m.Host
	}
	return out
}

// InferMetadata inspects a CLI argument (local path or http(s) URL) and
// returns best-effort metadata. Unknown extensions leave FileType empty so
// the payload can be sniffed after it is read.
//
// Supported reference forms:
//
//	./notes/handbook.pdf
//	/abs/path/report.docx
//	https://example.com/papers/guide.pdf
//	https://example.com/readme         (no extension: sniffed later)
func InferMetadata(ref string) SourceMetadata {
	if isURL(ref) {
		return inferURL(ref)
	}
	base := filepath.Base(ref)
	return SourceMetadata{
		Origin:   OriginFile,
		Name:     base,
		Title:    trimExt(base),
		FileType: fileTypeOf(base),
	}
}

// UploadMetadata returns the metadata for an HTTP upload named name.
func UploadMetadata(name string, ft extract.FileType) SourceMetadata {
	return SourceMetadata{Origin: OriginUpload, Name: name, Title: trimExt(name), FileType: ft}
}

// TextMetadata returns the metadata for raw text submissions.
func TextMetadata() SourceMetadata {
	return SourceMetadata{Origin: OriginText, Name: TextSourceName, FileType: extract.TXT}
}

// inferURL handles http(s)://host/path/name.ext references. The stored
// source name keeps the host so identically named files from different sites
// stay distinct.
func inferURL(raw string) SourceMetadata {
	m := SourceMetadata{Origin: OriginURL, Name: raw}
	parsed, err := url.Parse(raw)
	if err != nil {
		return m
	}
	m.Host = strings.ToLower(parsed.Hostname())

	segments := trimSegments(parsed.Path)
	if len(segments) == 0 {
		m.Title = m.Host
		return m
	}
	last := segments[len(segments)-1]
	m.Title = trimExt(last)
	m.FileType = fileTypeOf(last)
	return m
}

func isURL(ref string) bool {
	lower := strings.ToLower(ref)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func fileTypeOf(name string) extract.FileType {
	ft, err := extract.FileTypeFromName(name)
	if err != nil {
		return ""
	}
	return ft
}

func trimExt(name string) string {
	return strings.TrimSuffix(name, path.Ext(name))
}

// trimSegments splits a URL path into non-empty segments.
func trimSegments(p string) []string {
	parts := strings.Split(p, "/")
	out := make([]string, 0, len(parts))
	for _, s := range parts {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
