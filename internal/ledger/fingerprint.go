package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
)

// SanitizeText strips every rune that is not a letter or digit (Unicode-aware)
// and lowercases the rest. Re-transcriptions of the same utterance differ in
// punctuation, casing and whitespace; after sanitization they collapse to the
// same string.
func SanitizeText(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// Fingerprint computes the content fingerprint used for persistence-side
// deduplication: SHA-256 over the interview id and the sanitized transcript.
// Two messages with the same fingerprint are the same utterance as far as the
// durable store is concerned.
func Fingerprint(interviewID, transcript string) string {
	sum := sha256.Sum256([]byte(interviewID + ":" + SanitizeText(transcript)))
	return hex.EncodeToString(sum[:])
}
