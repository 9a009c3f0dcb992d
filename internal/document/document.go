package document

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/spigell/legallens/internal/tender"
)

const (
	// MIMETypePDF is the only declared type admitted for analysis.
	MIMETypePDF = "application/pdf"
	// DefaultMaxSize matches the upload limit advertised to users.
	DefaultMaxSize int64 = 20 << 20

	pdfSignature = "%PDF-"
)

// Input is a document as received from the caller, before admission.
type Input struct {
	Name     string
	MIMEType string
	// Size is the declared payload size; negative when unknown.
	Size   int64
	Reader io.Reader
}

// FromFile opens path as an Input. The caller closes the returned file.
func FromFile(path string) (Input, *os.File, error) {
	file, err := os.Open(path)
	if err != nil {
		return Input{}, nil, &tender.EncodingError{Name: filepath.Base(path), Err: err}
	}

	size := int64(-1)
	if stat, err := file.Stat(); err == nil {
		size = stat.Size()
	}

	return Input{
		Name:     filepath.Base(path),
		MIMEType: mime.TypeByExtension(strings.ToLower(filepath.Ext(path))),
		Size:     size,
		Reader:   file,
	}, file, nil
}

// FromBytes wraps an in-memory payload.
func FromBytes(name, mimeType string, data []byte) Input {
	return Input{
		Name:     name,
		MIMEType: mimeType,
		Size:     int64(len(data)),
		Reader:   bytes.NewReader(data),
	}
}

// Encoded is a fully buffered document in a transport-safe encoding.
type Encoded struct {
	Name     string
	MIMEType string
	Size     int64
	// Pages is zero when structural verification is disabled.
	Pages int
	// Data is the standard base64 encoding of the payload.
	Data string
}

// Bytes decodes the payload back to its binary form.
func (e *Encoded) Bytes() ([]byte, error) {
	if e == nil {
		return nil, errors.New("document is not encoded")
	}
	return base64.StdEncoding.DecodeString(e.Data)
}

// Encoder admits and encodes documents.
type Encoder struct {
	MaxSize         int64
	VerifyStructure bool
}

// NewEncoder returns an encoder with the provided size limit in bytes.
func NewEncoder(maxSize int64, verifyStructure bool) *Encoder {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Encoder{MaxSize: maxSize, VerifyStructure: verifyStructure}
}

func (e *Encoder) maxSize() int64 {
	if e == nil || e.MaxSize <= 0 {
		return DefaultMaxSize
	}
	return e.MaxSize
}

// Admit runs every check that needs no backend: declared type and size,
// then the buffered payload size and the PDF signature. The returned Input
// holds the buffered payload and is what Encode should receive.
func (e *Encoder) Admit(in Input) (Input, error) {
	data, err := e.admit(in)
	if err != nil {
		return Input{}, err
	}
	return FromBytes(in.Name, MIMETypePDF, data), nil
}

func (e *Encoder) admit(in Input) ([]byte, error) {
	if in.Reader == nil {
		return nil, &tender.AdmissionError{Reason: "document payload is missing"}
	}

	declared := DeclaredType(in)
	if declared != MIMETypePDF {
		if declared == "" {
			declared = "unknown"
		}
		return nil, &tender.AdmissionError{Reason: fmt.Sprintf("unsupported document type %q, expected %s", declared, MIMETypePDF)}
	}

	if in.Size == 0 {
		return nil, &tender.AdmissionError{Reason: "document is empty"}
	}

	limit := e.maxSize()
	if in.Size > limit {
		return nil, &tender.AdmissionError{Reason: fmt.Sprintf("document size %d exceeds limit of %d bytes", in.Size, limit)}
	}

	data, err := io.ReadAll(io.LimitReader(in.Reader, limit+1))
	if err != nil {
		return nil, &tender.EncodingError{Name: in.Name, Err: fmt.Errorf("read document: %w", err)}
	}

	switch {
	case int64(len(data)) > limit:
		return nil, &tender.AdmissionError{Reason: fmt.Sprintf("document exceeds limit of %d bytes", limit)}
	case len(data) == 0:
		return nil, &tender.AdmissionError{Reason: "document is empty"}
	case !bytes.HasPrefix(data, []byte(pdfSignature)):
		return nil, &tender.AdmissionError{Reason: "payload is not a PDF document"}
	}

	return data, nil
}

// Encode admits in and encodes the buffered payload.
// Structural verification failures are encoding errors.
func (e *Encoder) Encode(in Input) (*Encoded, error) {
	payload, err := e.admit(in)
	if err != nil {
		return nil, err
	}

	encoded := &Encoded{
		Name:     in.Name,
		MIMEType: MIMETypePDF,
		Size:     int64(len(payload)),
		Data:     base64.StdEncoding.EncodeToString(payload),
	}

	if e.VerifyStructure {
		pages, err := pageCount(payload)
		if err != nil {
			return nil, &tender.EncodingError{Name: in.Name, Err: fmt.Errorf("parse pdf: %w", err)}
		}
		encoded.Pages = pages
	}

	return encoded, nil
}

// DeclaredType returns the media type declared by the caller, falling back to
// the file extension when no type was declared.
func DeclaredType(in Input) string {
	declared := strings.TrimSpace(in.MIMEType)
	if declared == "" {
		return strings.ToLower(strings.TrimSpace(mime.TypeByExtension(strings.ToLower(filepath.Ext(in.Name)))))
	}

	mediaType, _, err := mime.ParseMediaType(declared)
	if err != nil {
		return strings.ToLower(declared)
	}
	return strings.ToLower(mediaType)
}

// pageCount parses the document. The pdf package panics on some malformed
// inputs, so panics are turned into errors.
func pageCount(data []byte) (pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, err
	}

	pages = reader.NumPage()
	if pages <= 0 {
		return 0, errors.New("pdf has no pages")
	}
	return pages, nil
}
