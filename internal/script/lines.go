package script

import "strings"

// Line is one executable line of a script.
type Line struct {
	Number int // 1-based line number in the source text
	Text   string
}

// Lines returns the executable lines of a script: blank lines and lines
// whose first non-blank character is '#' are dropped, the rest trimmed.
func Lines(script string) []Line {
	var out []Line
	for i, raw := range strings.Split(script, "\n") {
		text := strings.TrimSpace(raw)
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		out = append(out, Line{Number: i + 1, Text: text})
	}
	return out
}

// CountComments returns the number of comment lines in a script.
func CountComments(script string) int {
	n := 0
	for _, raw := range strings.Split(script, "\n") {
		if strings.HasPrefix(strings.TrimSpace(raw), "#") {
			n++
		}
	}
	return n
}
