package fraud

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"regexp"
	"time"
)

// ReceiptValidation holds the flags extracted from receipt text.
// Advisory metadata for admin review, never a settlement gate.
type ReceiptValidation struct {
	HasAmount     bool `json:"has_amount"`
	HasCardNumber bool `json:"has_card_number"`
	HasDate       bool `json:"has_date"`
	HasTime       bool `json:"has_time"`
	IsValidFormat bool `json:"is_valid_format"`
}

var (
	amountPatterns = []*regexp.Regexp{
		regexp.MustCompile(`[\d,]+\.?\d*\s*تومان`),
		regexp.MustCompile(`[\d,]+\.?\d*\s*ریال`),
		regexp.MustCompile(`مبلغ[\s:]*[\d,]+\.?\d*`),
		regexp.MustCompile(`(?i)amount[\s:]*[\d,]+\.?\d*`),
	}
	cardPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\d{4}[\s\-]?\d{4}[\s\-]?\d{4}[\s\-]?\d{4}`),
		regexp.MustCompile(`کارت[\s:]*\d{4}[\s\-]?\d{4}[\s\-]?\d{4}[\s\-]?\d{4}`),
		regexp.MustCompile(`(?i)card[\s:]*\d{4}[\s\-]?\d{4}[\s\-]?\d{4}[\s\-]?\d{4}`),
	}
	datePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\d{4}[/\-]\d{2}[/\-]\d{2}`),
		regexp.MustCompile(`\d{2}[/\-]\d{2}[/\-]\d{4}`),
		regexp.MustCompile(`\d{4}[\s\-]\d{2}[\s\-]\d{2}`),
	}
	timePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\d{2}:\d{2}:\d{2}`),
		regexp.MustCompile(`\d{2}:\d{2}`),
		regexp.MustCompile(`(?i)\d{1,2}:\d{2}\s*(AM|PM|ق\.ظ|ب\.ظ)`),
	}
)

func matchAny(patterns []*regexp.Regexp, text string) bool {
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

// ValidateReceiptFormat extracts format flags from card-transfer receipt
// text. Valid format requires amount, card number and date; time alone
// is informational.
func ValidateReceiptFormat(text string) ReceiptValidation {
	var v ReceiptValidation
	if text == "" {
		return v
	}

	v.HasAmount = matchAny(amountPatterns, text)
	v.HasCardNumber = matchAny(cardPatterns, text)
	v.HasDate = matchAny(datePatterns, text)
	v.HasTime = matchAny(timePatterns, text)
	v.IsValidFormat = v.HasAmount && v.HasCardNumber && v.HasDate
	return v
}

// ReceiptFingerprint returns a deterministic hash of the receipt
// reference, user and UTC calendar day. Dedup bookkeeping only, not a
// security primitive.
func ReceiptFingerprint(receiptRef string, userID uint, at time.Time) string {
	content := fmt.Sprintf("%s_%d_%s", receiptRef, userID, at.UTC().Format("20060102"))
	sum := md5.Sum([]byte(content))
	return hex.EncodeToString(sum[:])
}
