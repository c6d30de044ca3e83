// Package format renders the model's final reply for a terminal.
package format

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// "<prefix>: <item>, <item>, and <item>. <question>?"
	listReply = regexp.MustCompile(`^(.+?):\s+(.*?)\.\s+([^.?!]*\?)$`)
	itemSep   = regexp.MustCompile(`\s*,\s+(?:and\s+)?|\s+and\s+`)
)

// Output turns a one-line "prefix: a, b, and c. question?" reply into a
// numbered list followed by the question. Any other text is returned as is.
func Output(text string) string {
	m := listReply.FindStringSubmatch(text)
	if m == nil {
		return text
	}
	prefix, list, question := m[1], m[2], m[3]

	parts := itemSep.Split(list, -1)
	items := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		items = append(items, strconv.Itoa(len(items)+1)+". "+p)
	}
	if len(items) == 0 {
		return text
	}

	return prefix + ":\n\n" + strings.Join(items, ",\n") + ". \n\n" + strings.TrimSpace(question)
}
