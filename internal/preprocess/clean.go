package preprocess

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	specialChars = regexp.MustCompile(`[^\w\s\-.]`)
	multiSpace   = regexp.MustCompile(`\s+`)
	longNumbers  = regexp.MustCompile(`\b\d{4,}\b`)
	dateDMY      = regexp.MustCompile(`\b\d{1,2}[/-]\d{1,2}[/-]\d{2,4}\b`)
	dateYMD      = regexp.MustCompile(`\b\d{2,4}[/-]\d{1,2}[/-]\d{1,2}\b`)
)

// paymentPrefixes are channel markers banks prepend to descriptions. They
// carry no merchant signal and are stripped during cleaning.
var paymentPrefixes = []string{"pos", "debit", "credit", "purchase", "payment", "transfer"}

// CleanDescription normalizes a raw transaction description: lowercase,
// strip noise characters, drop payment channel prefixes, and remove
// transaction ids and embedded dates. Cleaning an already cleaned string
// returns it unchanged.
func CleanDescription(description string) string {
	text := strings.ToLower(strings.TrimSpace(description))
	if text == "" {
		return ""
	}

	text = specialChars.ReplaceAllString(text, " ")
	text = longNumbers.ReplaceAllString(text, "")
	text = dateDMY.ReplaceAllString(text, "")
	text = dateYMD.ReplaceAllString(text, "")
	text = multiSpace.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)

	// Prefixes can stack ("transfer debit starbucks"), so strip until
	// the text stops changing.
	for {
		stripped := text
		for _, prefix := range paymentPrefixes {
			if strings.HasPrefix(stripped, prefix+" ") {
				stripped = strings.TrimSpace(stripped[len(prefix):])
			}
		}
		if stripped == text {
			break
		}
		text = stripped
	}

	return text
}

// ExtractMerchant pulls a merchant name out of a description. Short
// descriptions are taken whole; longer ones contribute their first few
// purely alphabetic words.
func ExtractMerchant(description string) string {
	cleaned := CleanDescription(description)
	if cleaned == "" {
		return "unknown"
	}

	words := strings.Fields(cleaned)
	if len(words) <= 3 {
		return cleaned
	}

	var merchant []string
	limit := 4
	if len(words) < limit {
		limit = len(words)
	}
	for _, word := range words[:limit] {
		if len(word) > 2 && isAlpha(word) {
			merchant = append(merchant, word)
		}
	}
	if len(merchant) == 0 {
		return cleaned
	}
	return strings.Join(merchant, " ")
}

func isAlpha(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return len(s) > 0
}
