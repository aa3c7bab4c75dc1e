package shell

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/simplifiedchinese"
)

// Decode turns raw process output into a string. Valid UTF-8 is returned as
// is; anything else is decoded as GBK (code page 936, the default console
// encoding on Chinese Windows) and, failing that, with invalid sequences
// replaced by U+FFFD.
func Decode(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	if utf8.Valid(raw) {
		return string(raw)
	}
	if decoded, err := simplifiedchinese.GBK.NewDecoder().Bytes(raw); err == nil {
		return string(decoded)
	}
	return strings.ToValidUTF8(string(raw), string(utf8.RuneError))
}

// combine joins decoded stdout and stderr the way the UI displays them.
func combine(stdout, stderr string) string {
	result := stdout
	if stderr != "" {
		if result != "" {
			result += "\n"
		}
		result += stderr
	}
	return result
}
