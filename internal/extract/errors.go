package extract

import (
	"fmt"
	"time"
)

// NonDigitalDocumentError means the statement text is implausibly short
// for a digital statement, which almost always indicates a scanned or
// image-only PDF. Failing fast here is cheaper than spending the
// extraction budget on a doomed call; the user must re-source the
// document.
type NonDigitalDocumentError struct {
	TextLength int
}

func (e *NonDigitalDocumentError) Error() string {
	return fmt.Sprintf("statement text is too short (%d bytes) to be a digital statement", e.TextLength)
}

// Suggestion returns user-actionable guidance for this failure.
func (e *NonDigitalDocumentError) Suggestion() string {
	return "This looks like a scanned or image-only document. Please download a digital (text) statement from your bank's app or net banking portal and upload that instead."
}

// ExtractionTimeoutError means the extraction service did not answer
// within the hard latency budget. No partial results are trusted.
type ExtractionTimeoutError struct {
	Budget time.Duration
}

func (e *ExtractionTimeoutError) Error() string {
	return fmt.Sprintf("extraction did not complete within %s", e.Budget)
}

func (e *ExtractionTimeoutError) Suggestion() string {
	return "The statement took too long to process. Please try again; if the statement is very long, try uploading a shorter date range."
}

// ServiceUnavailableError means the extraction service signalled a
// rate-limit or quota condition. Retryable by the caller after the
// hinted delay; this pipeline performs no automatic retries.
type ServiceUnavailableError struct {
	RetryAfter time.Duration
}

func (e *ServiceUnavailableError) Error() string {
	return fmt.Sprintf("extraction service unavailable, retry after %s", e.RetryAfter)
}

func (e *ServiceUnavailableError) Suggestion() string {
	return "The extraction service is busy right now. Please retry in a minute."
}

// ExtractionServiceError covers every other extraction failure: a
// non-2xx response, an empty reply, or output that violates the schema
// contract.
type ExtractionServiceError struct {
	Reason string
	Err    error
}

func (e *ExtractionServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extraction service error: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("extraction service error: %s", e.Reason)
}

func (e *ExtractionServiceError) Unwrap() error { return e.Err }

func (e *ExtractionServiceError) Suggestion() string {
	return "Something went wrong while reading the statement. Please try uploading it again."
}
