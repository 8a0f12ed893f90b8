// Package extract turns unstructured statement text into raw
// transactions via a generative extraction service under a hard latency
// budget. The model is treated as an untrusted oracle behind a strict
// schema boundary; every correctness guarantee lives in the
// deterministic layers built around this call.
package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/genai"

	"github.com/cardspark/spendmatch/internal/domain"
	"github.com/cardspark/spendmatch/internal/logger"
)

// Defaults for the extraction call. Overridable via Config.
const (
	DefaultModelName     = "gemini-2.5-flash"
	DefaultTimeout       = 30 * time.Second
	DefaultMaxInputBytes = 120_000
	DefaultMinTextBytes  = 280
	DefaultRetryAfter    = 60 * time.Second
)

// ContentGenerator is the slice of the genai client this package
// needs. *genai.Models satisfies it; tests substitute a fake.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Config tunes the extraction client. Zero values fall back to the
// package defaults.
type Config struct {
	Model         string
	Timeout       time.Duration
	MaxInputBytes int
	MinTextBytes  int
}

// StatementDocument is one statement's worth of text ready for
// extraction. Upload transport and PDF decryption happen before text
// reaches this pipeline.
type StatementDocument struct {
	UserID  string
	BatchID string
	Text    string
	Kind    string // expected statement kind, e.g. "bank" or "credit_card"
}

// ExtractionResult is the raw, not-yet-deduplicated output of one
// extraction run plus diagnostics about the input.
type ExtractionResult struct {
	Transactions   []domain.RawTransaction
	Issuer         string // detected issuer signature, diagnostics only
	Truncated      bool
	DateRangeStart string
	DateRangeEnd   string
}

// Client calls the generative extraction service.
type Client struct {
	gen ContentGenerator
	cfg Config
}

// NewClient creates an extraction client backed by the Gemini API.
// Credentials come from the environment, same as every other Google
// client in this codebase.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewClient: create genai client: %w", err)
	}
	return NewClientWithGenerator(gc.Models, cfg), nil
}

// NewClientWithGenerator wires an explicit generator, used by tests.
func NewClientWithGenerator(gen ContentGenerator, cfg Config) *Client {
	if cfg.Model == "" {
		cfg.Model = DefaultModelName
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxInputBytes == 0 {
		cfg.MaxInputBytes = DefaultMaxInputBytes
	}
	if cfg.MinTextBytes == 0 {
		cfg.MinTextBytes = DefaultMinTextBytes
	}
	return &Client{gen: gen, cfg: cfg}
}

// ExtractTransactions runs format-aware preprocessing and one
// schema-constrained model call. On timeout nothing is trusted; on
// rate-limit the error carries a retry-after hint. The output still has
// to go through the deduplicator before anything is persisted.
func (c *Client) ExtractTransactions(ctx context.Context, doc StatementDocument) (*ExtractionResult, error) {
	log := logger.FromContext(ctx)

	if looksScanned(doc.Text, c.cfg.MinTextBytes) {
		return nil, &NonDigitalDocumentError{TextLength: len(strings.TrimSpace(doc.Text))}
	}

	issuer := DetectIssuer(doc.Text)
	text, truncated := truncateText(doc.Text, c.cfg.MaxInputBytes)
	if truncated {
		log.Warn().
			Str("issuer", issuer).
			Int("original_bytes", len(doc.Text)).
			Int("kept_bytes", len(text)).
			Msg("Statement text truncated to fit extraction budget")
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: extractionPrompt(issuer, doc.Kind)},
				{Text: text},
			},
		},
	}
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   responseSchema(),
		Temperature:      genai.Ptr[float32](0),
	}

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	resp, err := c.gen.GenerateContent(callCtx, c.cfg.Model, contents, config)
	if err != nil {
		return nil, c.classify(callCtx, err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return nil, &ExtractionServiceError{Reason: "empty response from model"}
	}

	txs, meta, err := parseExtractionOutput(rawText)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("issuer", issuer).
		Int("transaction_count", len(txs)).
		Bool("truncated", truncated).
		Msg("Extraction completed")

	return &ExtractionResult{
		Transactions:   txs,
		Issuer:         issuer,
		Truncated:      truncated,
		DateRangeStart: meta.DateRangeStart,
		DateRangeEnd:   meta.DateRangeEnd,
	}, nil
}

// classify maps a transport failure onto the extraction error taxonomy.
func (c *Client) classify(callCtx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) && callCtx.Err() == context.DeadlineExceeded {
		return &ExtractionTimeoutError{Budget: c.cfg.Timeout}
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == 429 {
			return &ServiceUnavailableError{RetryAfter: DefaultRetryAfter}
		}
		return &ExtractionServiceError{Reason: fmt.Sprintf("model call failed with status %d", apiErr.Code), Err: err}
	}

	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		if gErr.Code == 429 {
			return &ServiceUnavailableError{RetryAfter: DefaultRetryAfter}
		}
		return &ExtractionServiceError{Reason: fmt.Sprintf("model call failed with status %d", gErr.Code), Err: err}
	}

	return &ExtractionServiceError{Reason: "model call failed", Err: err}
}

func extractionPrompt(issuer, kind string) string {
	label := issuer
	if label == IssuerUnknown {
		label = "an Indian bank"
	}
	if kind == "" {
		kind = "bank"
	}

	var b strings.Builder
	b.WriteString("You are a financial statement parser. The text below is a " + kind + " statement from " + label + ".\n\n")
	b.WriteString("Task:\n")
	b.WriteString("- Extract EVERY transaction line from the statement text.\n")
	b.WriteString("- Report each amount as a positive number and carry the sign in \"direction\" (debit = money out, credit = money in).\n")
	b.WriteString("- Use ISO dates (YYYY-MM-DD). Resolve two-digit years from the statement period.\n")
	b.WriteString("- Classify each transaction into exactly one of the allowed categories; use \"other\" when unsure.\n")
	b.WriteString("- Do not invent transactions for summary rows, opening balances or totals.\n")
	b.WriteString("- Fill metadata.total_count with the number of transactions you extracted, and the date range you observed.\n")
	return b.String()
}
