package channel

import (
	"strings"
	"unicode/utf8"
)

// splitMessage breaks text into chunks of at most max bytes for transports
// with a message length limit. Cuts prefer a newline in the back half of the
// chunk and never land inside a UTF-8 rune.
func splitMessage(text string, max int) []string {
	var chunks []string
	for len(text) > max {
		cutAt := strings.LastIndex(text[:max], "\n")
		if cutAt < max/2 {
			cutAt = max
			for cutAt > 0 && !utf8.RuneStart(text[cutAt]) {
				cutAt--
			}
			if cutAt == 0 {
				cutAt = max
			}
		}
		chunks = append(chunks, text[:cutAt])
		text = text[cutAt:]
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}
