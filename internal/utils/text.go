package utils

import (
	"strings"
	"unicode/utf8"
)

// CleanUTF8 drops NUL bytes and invalid UTF-8 sequences. The boolean reports
// whether anything was removed.
func CleanUTF8(input string) (string, bool) {
	if !strings.Contains(input, "\x00") && utf8.ValidString(input) {
		return input, false
	}

	cleaned := strings.ToValidUTF8(input, "")
	return strings.ReplaceAll(cleaned, "\x00", ""), true
}
