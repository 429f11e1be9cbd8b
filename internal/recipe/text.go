package recipe

import "strings"

// NormalizeTextList splits every entry on newlines, trims each line and drops empty ones. Order is
// preserved, so a textarea payload and a JSON array produce the same list.
func NormalizeTextList(entries []string) []string {
	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		for _, line := range strings.Split(entry, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				out = append(out, line)
			}
		}
	}
	return out
}
