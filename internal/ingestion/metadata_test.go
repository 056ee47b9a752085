package ingestion

import (
	"reflect"
	"testing"

	"github.com/54b3r/ragdesk/internal/extract"
)

func TestInferMetadata(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ref  string
		want SourceMetadata
	}{
		// ── Local files ──────────────────────────────────────────────────
		{
			name: "relative pdf",
			ref:  "./docs/handbook.pdf",
			want: SourceMetadata{Origin: OriginFile, Name: "handbook.pdf", Title: "handbook", FileType: extract.PDF},
		},
		{
			name: "absolute docx upper-case extension",
			ref:  "/srv/in/Report.DOCX",
			want: SourceMetadata{Origin: OriginFile, Name: "Report.DOCX", Title: "Report", FileType: extract.DOCX},
		},
		{
			name: "no extension",
			ref:  "notes/README",
			want: SourceMetadata{Origin: OriginFile, Name: "README", Title: "README"},
		},
		{
			name: "unsupported extension",
			ref:  "sheet.xlsx",
			want: SourceMetadata{Origin: OriginFile, Name: "sheet.xlsx", Title: "sheet"},
		},
		// ── URLs ─────────────────────────────────────────────────────────
		{
			name: "url with pdf",
			ref:  "https://Example.com/papers/guide.pdf",
			want: SourceMetadata{Origin: OriginURL, Name: "https://Example.com/papers/guide.pdf", Title: "guide", FileType: extract.PDF, Host: "example.com"},
		},
		{
			name: "url with query string",
			ref:  "http://docs.local/a/b/notes.txt?rev=2",
			want: SourceMetadata{Origin: OriginURL, Name: "http://docs.local/a/b/notes.txt?rev=2", Title: "notes", FileType: extract.TXT, Host: "docs.local"},
		},
		{
			name: "bare host",
			ref:  "https://example.org/",
			want: SourceMetadata{Origin: OriginURL, Name: "https://example.org/", Title: "example.org", Host: "example.org"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := InferMetadata(tc.ref)
			if got != tc.want {
				t.Errorf("InferMetadata(%q)\n got  %+v\n want %+v", tc.ref, got, tc.want)
			}
		})
	}
}

func TestSourceMetadata_Map(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		meta SourceMetadata
		want map[string]string
	}{
		{
			name: "text",
			meta: TextMetadata(),
			want: map[string]string{"origin": "text", "file_type": "txt"},
		},
		{
			name: "upload",
			meta: UploadMetadata("a.pdf", extract.PDF),
			want: map[string]string{"origin": "upload", "title": "a", "file_type": "pdf"},
		},
		{
			name: "url",
			meta: InferMetadata("https://h.example/x.docx"),
			want: map[string]string{"origin": "url", "title": "x", "file_type": "docx", "host": "h.example"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := tc.meta.Map(); !reflect.DeepEqual(got, tc.want) {
				t.Errorf("Map() = %v, want %v", got, tc.want)
			}
		})
	}
}
