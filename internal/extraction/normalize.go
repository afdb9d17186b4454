package extraction

import (
	"regexp"

	"golang.org/x/text/unicode/norm"
)

var (
	reLineEndings = regexp.MustCompile(`\r\n?`)
	reSpaceRuns   = regexp.MustCompile(`[ \t]+`)
	reBlankRuns   = regexp.MustCompile(`\n\s*\n`)
)

// Normalize canonicalizes OCR whitespace: runs of spaces and tabs become a
// single space and any run of blank lines becomes exactly one blank line.
// Every section rule assumes text in this form.
func Normalize(text string) string {
	if text == "" {
		return text
	}
	text = norm.NFC.String(text)
	text = reLineEndings.ReplaceAllString(text, "\n")
	text = reSpaceRuns.ReplaceAllString(text, " ")
	return reBlankRuns.ReplaceAllString(text, "\n\n")
}
