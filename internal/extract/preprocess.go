package extract

import (
	"regexp"
	"strings"
)

// issuerSignature pairs an issuer label with a regex that tends to
// appear in that issuer's statements. Detection feeds diagnostics and
// the document label sent to the model; it is never used for
// correctness.
type issuerSignature struct {
	label   string
	pattern *regexp.Regexp
}

var issuerSignatures = []issuerSignature{
	{"HDFC", regexp.MustCompile(`(?i)hdfc\s+bank`)},
	{"ICICI", regexp.MustCompile(`(?i)icici\s+bank`)},
	{"SBI", regexp.MustCompile(`(?i)(state\s+bank\s+of\s+india|sbi\s+card)`)},
	{"AXIS", regexp.MustCompile(`(?i)axis\s+bank`)},
	{"KOTAK", regexp.MustCompile(`(?i)kotak\s+mahindra`)},
	{"AMEX", regexp.MustCompile(`(?i)american\s+express`)},
	{"IDFC", regexp.MustCompile(`(?i)idfc\s+first`)},
	{"YES", regexp.MustCompile(`(?i)yes\s+bank`)},
}

// IssuerUnknown is reported when no signature matches.
const IssuerUnknown = "UNKNOWN"

// DetectIssuer scans statement text for known issuer signatures.
// Only the first few KB are scanned; the issuer name shows up in the
// statement header when it shows up at all.
func DetectIssuer(text string) string {
	head := text
	if len(head) > 8192 {
		head = head[:8192]
	}
	for _, sig := range issuerSignatures {
		if sig.pattern.MatchString(head) {
			return sig.label
		}
	}
	return IssuerUnknown
}

// looksScanned reports whether the text is implausibly short for a
// digital statement. Scanned PDFs yield little or no extractable text.
func looksScanned(text string, minBytes int) bool {
	return len(strings.TrimSpace(text)) < minBytes
}

// truncateText caps the input at maxBytes without splitting a UTF-8
// rune. Long statements lose their tail; recall on very long
// statements is traded for a bounded extraction latency.
func truncateText(text string, maxBytes int) (string, bool) {
	if len(text) <= maxBytes {
		return text, false
	}
	cut := maxBytes
	for cut > 0 && (text[cut]&0xC0) == 0x80 {
		cut--
	}
	return text[:cut], true
}
