package pipeline

import "github.com/cardspark/spendmatch/internal/extract"

// Defaults for statement ingestion. These can be overridden via
// configuration in the future.
const (
	// DefaultModelName is the Gemini model recorded on ingestion runs.
	DefaultModelName = extract.DefaultModelName

	// DefaultStatementKind is the statement kind when the upload does
	// not declare one.
	DefaultStatementKind = "BANK_STATEMENT"
)
