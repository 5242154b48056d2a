package agent

import (
	"strconv"
	"strings"
)

// NumberLines prefixes every line of text with its 1-based number as
// "<n> | <line>". Line endings are normalized to "\n" and trailing empty
// lines are dropped, so empty input yields empty output.
func NumberLines(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	var b strings.Builder
	for i, line := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(" | ")
		b.WriteString(line)
	}
	return b.String()
}
