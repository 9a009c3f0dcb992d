package tender

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors matched with errors.Is against the typed errors below.
var (
	ErrAdmission        = errors.New("document rejected")
	ErrEncoding         = errors.New("document encoding failed")
	ErrEmptyResponse    = errors.New("empty analysis response")
	ErrSchemaViolation  = errors.New("analysis response violates schema")
	ErrContextRetrieval = errors.New("market context retrieval failed")
)

const (
	// GenericFailureMessage is shown to users for every fatal pipeline error.
	GenericFailureMessage = "Failed to analyze document. Please ensure the PDF is readable and try again."
	emptyResponseGuidance = "The model returned an empty response. The document might be too complex or blocked by safety filters."
	admissionGuidance     = "Please upload a valid PDF file."
)

// AdmissionError rejects a document before any backend call is made.
type AdmissionError struct {
	Reason string
}

func (e *AdmissionError) Error() string {
	return fmt.Sprintf("%s: %s", ErrAdmission, e.Reason)
}

func (e *AdmissionError) Is(target error) bool { return target == ErrAdmission }

// EncodingError reports that a document could not be read or encoded.
type EncodingError struct {
	Name string
	Err  error
}

func (e *EncodingError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("%s: %v", ErrEncoding, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", ErrEncoding, e.Name, e.Err)
}

func (e *EncodingError) Unwrap() error { return e.Err }

func (e *EncodingError) Is(target error) bool { return target == ErrEncoding }

// EmptyResponseError is returned when the analyzer produced no content.
type EmptyResponseError struct {
	// BlockReason and FinishReason are copied from the backend when present.
	BlockReason  string
	FinishReason string
}

func (e *EmptyResponseError) Error() string {
	var details []string
	if e.BlockReason != "" {
		details = append(details, "block reason "+e.BlockReason)
	}
	if e.FinishReason != "" {
		details = append(details, "finish reason "+e.FinishReason)
	}
	msg := ErrEmptyResponse.Error() + ": document too complex or blocked by safety filtering"
	if len(details) > 0 {
		msg += " (" + strings.Join(details, ", ") + ")"
	}
	return msg
}

func (e *EmptyResponseError) Is(target error) bool { return target == ErrEmptyResponse }

// SchemaViolationError is returned when the analyzer body cannot be trusted.
type SchemaViolationError struct {
	Violations []string
	Err        error
}

func (e *SchemaViolationError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", ErrSchemaViolation, e.Err)
	case len(e.Violations) > 0:
		return fmt.Sprintf("%s: %s", ErrSchemaViolation, strings.Join(e.Violations, "; "))
	default:
		return ErrSchemaViolation.Error()
	}
}

func (e *SchemaViolationError) Unwrap() error { return e.Err }

func (e *SchemaViolationError) Is(target error) bool { return target == ErrSchemaViolation }

// ContextRetrievalFailure is logged by the retriever and never returned to callers.
type ContextRetrievalFailure struct {
	Entity string
	Err    error
}

func (e *ContextRetrievalFailure) Error() string {
	return fmt.Sprintf("%s for %q: %v", ErrContextRetrieval, e.Entity, e.Err)
}

func (e *ContextRetrievalFailure) Unwrap() error { return e.Err }

func (e *ContextRetrievalFailure) Is(target error) bool { return target == ErrContextRetrieval }

// UserMessage maps a pipeline error to the text shown to end users.
// Internal details stay in the logs.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAdmission):
		return admissionGuidance
	case errors.Is(err, ErrEmptyResponse):
		return emptyResponseGuidance
	default:
		return GenericFailureMessage
	}
}
