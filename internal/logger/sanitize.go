package logger

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Length caps applied before text reaches a log entry
const (
	MaxPathLength          = 500
	MaxSessionIDLength     = 128
	MaxErrorMessageLength  = 1000
	MaxGeneralStringLength = 2000
	// MaxDebugContentLength caps prompts, model replies and user input
	MaxDebugContentLength = 10000
)

// SanitizeString drops control characters and invalid UTF-8 from s and caps
// it at maxLength bytes without splitting a rune. maxLength <= 0 selects
// MaxGeneralStringLength.
func SanitizeString(s string, maxLength int) string {
	if s == "" {
		return ""
	}
	if maxLength <= 0 {
		maxLength = MaxGeneralStringLength
	}

	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	var b strings.Builder
	b.Grow(min(len(s), maxLength+3))
	for _, r := range s {
		if !unicode.IsPrint(r) && r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			continue
		}
		if b.Len()+utf8.RuneLen(r) > maxLength {
			b.WriteString("...")
			break
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SanitizePath cleans a request path
func SanitizePath(path string) string {
	return SanitizeString(path, MaxPathLength)
}

// SanitizeError cleans an error message; nil yields ""
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeString(err.Error(), MaxErrorMessageLength)
}

// SanitizeSessionID cleans a client-supplied session id
func SanitizeSessionID(id string) string {
	return SanitizeString(id, MaxSessionIDLength)
}

// SanitizeDebugContent cleans prompts, replies and user input. Even in debug
// mode these are capped.
func SanitizeDebugContent(content string) string {
	return SanitizeString(content, MaxDebugContentLength)
}
