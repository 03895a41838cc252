package util

import (
	"strings"

	"github.com/tidwall/gjson"
)

// SplitItems turns a text value into a collection. A JSON array yields one
// item per element (objects and arrays keep their raw JSON); any other text
// yields its non-empty lines with list bullets removed.
func SplitItems(text string) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	if strings.HasPrefix(trimmed, "[") && gjson.Valid(trimmed) {
		var items []string
		gjson.Parse(trimmed).ForEach(func(_, v gjson.Result) bool {
			items = append(items, v.String())
			return true
		})
		return items
	}

	var items []string
	for _, line := range strings.Split(trimmed, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "- ")
		line = strings.TrimPrefix(line, "* ")
		if line = strings.TrimSpace(line); line != "" {
			items = append(items, line)
		}
	}
	return items
}
