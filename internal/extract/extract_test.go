package extract

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
)

// buildDOCX returns a minimal in-memory DOCX archive with one paragraph per entry.
func buildDOCX(t *testing.T, paragraphs ...string) []byte {
	t.Helper()

	var body strings.Builder
	for _, p := range paragraphs {
		body.WriteString(`<w:p><w:r><w:t xml:space="preserve">` + p + `</w:t></w:r></w:p>`)
	}

	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)
	files := map[string]string{
		"[Content_Types].xml": `<?xml version="1.0" encoding="UTF-8"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="xml" ContentType="application/xml"/>
</Types>`,
		"word/document.xml": `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>` + body.String() + `</w:body>
</w:document>`,
	}
	for name, content := range files {
		f, err := w.Create(name)
		if err != nil {
			t.Fatalf("zip create %s: %v", name, err)
		}
		if _, err := f.Write([]byte(content)); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

// emptyPDF is a structurally valid PDF with a page tree of zero pages.
const emptyPDF = `%PDF-1.4
1 0 obj
<< /Type /Catalog /Pages 2 0 R >>
endobj
2 0 obj
<< /Type /Pages /Kids [] /Count 0 >>
endobj
xref
0 3
0000000000 65535 f
0000000009 00000 n
0000000058 00000 n
trailer
<< /Size 3 /Root 1 0 R >>
startxref
110
%%EOF`

// buildPDF returns a PDF with one page per entry. Each non-empty entry is
// drawn as a single Helvetica text run; an empty entry yields a page with an
// empty content stream. Cross-reference offsets are computed as written.
func buildPDF(t *testing.T, pages ...string) []byte {
	t.Helper()

	const fontObj = 3
	n := len(pages)
	kids := make([]string, n)
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}

	objs := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), n),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
	}
	for i, text := range pages {
		content := ""
		if text != "" {
			content = fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
		}
		objs = append(objs,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 %d 0 R >> >> /Contents %d 0 R >>", fontObj, 5+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		)
	}

	buf := new(bytes.Buffer)
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, o := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(buf, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}
	xref := buf.Len()
	fmt.Fprintf(buf, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return buf.Bytes()
}

// ── ParseFileType / FileTypeFromName ─────────────────────────────────────────

func Test_ParseFileType(t *testing.T) {
	t.Parallel()
	cases := []struct {
		tag     string
		want    FileType
		wantErr bool
	}{
		{"txt", TXT, false},
		{"PDF", PDF, false},
		{".docx", DOCX, false},
		{" .Txt ", TXT, false},
		{"exe", "", true},
		{"", "", true},
		{"doc", "", true},
	}
	for _, tc := range cases {
		got, err := ParseFileType(tc.tag)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseFileType(%q) error = %v, wantErr %v", tc.tag, err, tc.wantErr)
			continue
		}
		if err != nil && !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("ParseFileType(%q) error %v does not match ErrUnsupportedFormat", tc.tag, err)
		}
		if got != tc.want {
			t.Errorf("ParseFileType(%q) = %q, want %q", tc.tag, got, tc.want)
		}
	}
}

func Test_FileTypeFromName(t *testing.T) {
	t.Parallel()
	cases := map[string]FileType{
		"notes.txt":          TXT,
		"Report.PDF":         PDF,
		"dir/contract.docx":  DOCX,
		"archive.tar.gz":     "",
		"README":             "",
		"/tmp/weird.name.md": "",
	}
	for name, want := range cases {
		got, err := FileTypeFromName(name)
		if want == "" {
			if err == nil {
				t.Errorf("FileTypeFromName(%q) = %q, want error", name, got)
			}
			continue
		}
		if err != nil || got != want {
			t.Errorf("FileTypeFromName(%q) = %q, %v; want %q", name, got, err, want)
		}
	}
}

// ── ExtractText ──────────────────────────────────────────────────────────────

func Test_ExtractText_Plain(t *testing.T) {
	t.Parallel()
	got, err := ExtractText([]byte("hello\nworld"), TXT)
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	if got != "hello\nworld" {
		t.Errorf("got %q, want %q", got, "hello\nworld")
	}
}

func Test_ExtractText_PlainStripsBOM(t *testing.T) {
	t.Parallel()
	payload := append([]byte{0xEF, 0xBB, 0xBF}, []byte("café")...)
	got, err := ExtractText(payload, TXT)
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	if got != "café" {
		t.Errorf("got %q, want %q", got, "café")
	}
	if payload[0] != 0xEF {
		t.Error("ExtractText mutated its input")
	}
}

func Test_ExtractText_InvalidUTF8(t *testing.T) {
	t.Parallel()
	_, err := ExtractText([]byte{'o', 'k', 0xff, 0xfe}, TXT)
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("want *DecodeError, got %v", err)
	}
	if de.Format != TXT {
		t.Errorf("DecodeError.Format = %q, want txt", de.Format)
	}
}

func Test_ExtractText_Unsupported(t *testing.T) {
	t.Parallel()
	_, err := ExtractText([]byte("MZ..."), FileType("exe"))
	var ue *UnsupportedFormatError
	if !errors.As(err, &ue) {
		t.Fatalf("want *UnsupportedFormatError, got %v", err)
	}
	if ue.Format != "exe" {
		t.Errorf("UnsupportedFormatError.Format = %q, want exe", ue.Format)
	}
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Error("error does not match ErrUnsupportedFormat")
	}
}

func Test_ExtractText_DOCX(t *testing.T) {
	t.Parallel()
	payload := buildDOCX(t, "First paragraph.", "Second paragraph.")
	got, err := ExtractText(payload, DOCX)
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	if got != "First paragraph.\nSecond paragraph." {
		t.Errorf("got %q", got)
	}
}

func Test_ExtractText_CorruptDOCX(t *testing.T) {
	t.Parallel()
	_, err := ExtractText([]byte("definitely not a zip archive"), DOCX)
	var de *DecodeError
	if !errors.As(err, &de) || de.Format != DOCX {
		t.Fatalf("want *DecodeError for docx, got %v", err)
	}
}

func Test_ExtractText_CorruptPDF(t *testing.T) {
	t.Parallel()
	for _, payload := range [][]byte{nil, []byte("not a pdf"), []byte("%PDF-1.4\ngarbage")} {
		_, err := ExtractText(payload, PDF)
		var de *DecodeError
		if !errors.As(err, &de) || de.Format != PDF {
			t.Errorf("payload %q: want *DecodeError for pdf, got %v", payload, err)
		}
	}
}

func Test_ExtractText_PDFWithoutPages(t *testing.T) {
	t.Parallel()
	got, err := ExtractText([]byte(emptyPDF), PDF)
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	if got != "" {
		t.Errorf("want empty text for a zero-page PDF, got %q", got)
	}
}

func Test_ExtractText_PDFPages(t *testing.T) {
	t.Parallel()
	got, err := ExtractText(buildPDF(t, "p1", "", "p3"), PDF)
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	if got != "p1\n\np3" {
		t.Errorf("want pages joined in order with the blank page empty, got %q", got)
	}
}

// ── Detect ───────────────────────────────────────────────────────────────────

func Test_Detect(t *testing.T) {
	t.Parallel()
	docxPayload := buildDOCX(t, "x")
	cases := []struct {
		name    string
		file    string
		payload []byte
		want    FileType
		wantErr bool
	}{
		{"extension wins", "notes.pdf", []byte("plain text"), PDF, false},
		{"unsupported extension", "image.png", []byte{0x89, 'P', 'N', 'G'}, "", true},
		{"pdf magic", "upload", []byte(emptyPDF), PDF, false},
		{"docx magic", "upload", docxPayload, DOCX, false},
		{"utf8 fallback", "pasted", []byte("just text"), TXT, false},
		{"binary", "blob", []byte{0x00, 0xff, 0xfe, 0x80}, "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := Detect(tc.file, tc.payload)
			if (err != nil) != tc.wantErr {
				t.Fatalf("Detect error = %v, wantErr %v", err, tc.wantErr)
			}
			if got != tc.want {
				t.Errorf("Detect = %q, want %q", got, tc.want)
			}
		})
	}
}
