package api

import (
	"regexp"
	"strings"
)

var listMarker = regexp.MustCompile(`^(?:[-*+]\s*|\d+\.\s*)`)

// Section extracts the list items under a "## <heading>" block of the
// summary markdown. Returns nil when the heading is absent.
func (s *Summary) Section(heading string) []string {
	re, err := regexp.Compile(`(?i)##\s*` + regexp.QuoteMeta(heading) + `[\s\S]*?(?:\n##|$)`)
	if err != nil {
		return nil
	}

	match := re.FindString(s.Markdown)
	if match == "" {
		return nil
	}
	match = strings.TrimSuffix(match, "\n##")

	var items []string
	lines := strings.Split(match, "\n")
	for _, line := range lines[1:] {
		line = strings.TrimSpace(listMarker.ReplaceAllString(strings.TrimSpace(line), ""))
		if line != "" {
			items = append(items, line)
		}
	}
	return items
}
