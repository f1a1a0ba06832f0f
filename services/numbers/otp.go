package numbers

import (
	"regexp"
	"strings"
)

// codeRe matches six-digit verification codes, allowing a dash or space
// between the halves ("482910", "482-910", "482 910").
var codeRe = regexp.MustCompile(`\b\d{3}[-\s]?\d{3}\b`)

// CodeNotFound is returned by ExtractCode when the text carries no code.
const CodeNotFound = "N/A"

// ExtractCode pulls the first verification code out of an SMS body and
// strips the separator. Returns CodeNotFound when nothing matches.
func ExtractCode(body string) string {
	match := codeRe.FindString(body)
	if match == "" {
		return CodeNotFound
	}
	match = strings.ReplaceAll(match, "-", "")
	match = strings.ReplaceAll(match, " ", "")
	return match
}
