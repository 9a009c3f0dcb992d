package document

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/spigell/legallens/internal/tender"
)

// minimalPDF builds a single-page PDF with a correct cross-reference table.
func minimalPDF(t *testing.T) []byte {
	t.Helper()

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>",
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	offsets := make([]int, 0, len(objects))
	for i, obj := range objects {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)

	return buf.Bytes()
}

func TestAdmitRejectsNonPDF(t *testing.T) {
	encoder := NewEncoder(0, false)

	tests := []struct {
		name  string
		input Input
	}{
		{name: "declared text", input: FromBytes("notes.txt", "text/plain", []byte("hello"))},
		{name: "declared docx", input: FromBytes("a.docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document", []byte("PK"))},
		{name: "unknown extension", input: FromBytes("payload.bin", "", []byte("%PDF-1.4"))},
		{name: "missing reader", input: Input{Name: "a.pdf", MIMEType: MIMETypePDF}},
		{name: "empty", input: FromBytes("a.pdf", MIMETypePDF, nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := encoder.Admit(tt.input)
			if !errors.Is(err, tender.ErrAdmission) {
				t.Fatalf("expected admission error, got %v", err)
			}
		})
	}
}

func TestAdmitAcceptsDeclaredPDF(t *testing.T) {
	encoder := NewEncoder(0, false)

	inputs := []Input{
		FromBytes("tender.pdf", "application/pdf", []byte("%PDF-1.4")),
		FromBytes("tender", "Application/PDF; charset=binary", []byte("%PDF-1.4")),
		FromBytes("tender.PDF", "", []byte("%PDF-1.4")),
	}

	for _, in := range inputs {
		if _, err := encoder.Admit(in); err != nil {
			t.Fatalf("unexpected admission error for %q (%q): %v", in.Name, in.MIMEType, err)
		}
	}
}

func TestAdmitRejectsOversizedDeclaredSize(t *testing.T) {
	encoder := NewEncoder(10, false)
	in := FromBytes("big.pdf", MIMETypePDF, bytes.Repeat([]byte("a"), 11))

	if _, err := encoder.Admit(in); !errors.Is(err, tender.ErrAdmission) {
		t.Fatalf("expected admission error, got %v", err)
	}
}

func TestAdmitChecksPayloadWithUnknownSize(t *testing.T) {
	encoder := NewEncoder(10, false)

	tests := []struct {
		name    string
		payload string
	}{
		{name: "oversized", payload: "%PDF-1.4 and much more"},
		{name: "empty", payload: ""},
		{name: "missing signature", payload: "<html>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := Input{Name: "tender.pdf", MIMEType: MIMETypePDF, Size: -1, Reader: strings.NewReader(tt.payload)}
			if _, err := encoder.Admit(in); !errors.Is(err, tender.ErrAdmission) {
				t.Fatalf("expected admission error, got %v", err)
			}
		})
	}
}

func TestAdmitBuffersPayload(t *testing.T) {
	encoder := NewEncoder(0, false)
	in := Input{Name: "tender.pdf", MIMEType: MIMETypePDF, Size: -1, Reader: strings.NewReader("%PDF-1.7\nbody")}

	admitted, err := encoder.Admit(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if admitted.Size != 13 || admitted.Name != "tender.pdf" {
		t.Fatalf("unexpected admitted input: %+v", admitted)
	}

	encoded, err := encoder.Encode(admitted)
	if err != nil {
		t.Fatalf("unexpected error encoding admitted input: %v", err)
	}
	if encoded.Size != 13 {
		t.Fatalf("expected the buffered payload to be encoded, got size %d", encoded.Size)
	}
}

func TestEncodeProducesBase64(t *testing.T) {
	payload := []byte("%PDF-1.7\nbody")
	encoder := NewEncoder(0, false)

	encoded, err := encoder.Encode(FromBytes("tender.pdf", MIMETypePDF, payload))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if encoded.Data != base64.StdEncoding.EncodeToString(payload) {
		t.Fatalf("unexpected encoding: %q", encoded.Data)
	}
	if encoded.Size != int64(len(payload)) || encoded.MIMEType != MIMETypePDF {
		t.Fatalf("unexpected metadata: %+v", encoded)
	}

	decoded, err := encoded.Bytes()
	if err != nil || !bytes.Equal(decoded, payload) {
		t.Fatalf("decoded payload mismatch: %v", err)
	}
}

func TestEncodeReadFailure(t *testing.T) {
	encoder := NewEncoder(0, false)
	in := Input{
		Name:     "broken.pdf",
		MIMEType: MIMETypePDF,
		Size:     -1,
		Reader:   iotest.ErrReader(errors.New("disk gone")),
	}

	_, err := encoder.Encode(in)
	if !errors.Is(err, tender.ErrEncoding) {
		t.Fatalf("expected encoding error, got %v", err)
	}
}

func TestAdmitRejectsMissingSignature(t *testing.T) {
	encoder := NewEncoder(0, false)

	_, err := encoder.Admit(FromBytes("fake.pdf", MIMETypePDF, []byte("<html></html>")))
	if !errors.Is(err, tender.ErrAdmission) {
		t.Fatalf("expected admission error, got %v", err)
	}

	if _, err := encoder.Encode(FromBytes("fake.pdf", MIMETypePDF, []byte("<html></html>"))); !errors.Is(err, tender.ErrAdmission) {
		t.Fatalf("expected admission error from encode, got %v", err)
	}
}

func TestEncodeVerifiesStructure(t *testing.T) {
	encoder := NewEncoder(0, true)

	encoded, err := encoder.Encode(FromBytes("tender.pdf", MIMETypePDF, minimalPDF(t)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if encoded.Pages != 1 {
		t.Fatalf("expected 1 page, got %d", encoded.Pages)
	}

	_, err = encoder.Encode(FromBytes("corrupt.pdf", MIMETypePDF, []byte("%PDF-1.4\nnot really a pdf")))
	if !errors.Is(err, tender.ErrEncoding) {
		t.Fatalf("expected encoding error for corrupt pdf, got %v", err)
	}
}

func TestFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tender.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4\nbody"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	in, file, err := FromFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer file.Close()

	if in.Name != "tender.pdf" || in.Size != 13 {
		t.Fatalf("unexpected input: %+v", in)
	}
	if DeclaredType(in) != MIMETypePDF {
		t.Fatalf("unexpected declared type: %q", DeclaredType(in))
	}

	if _, _, err := FromFile(filepath.Join(t.TempDir(), "missing.pdf")); !errors.Is(err, tender.ErrEncoding) {
		t.Fatalf("expected encoding error for missing file, got %v", err)
	}
}
