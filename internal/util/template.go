package util

import (
	"bytes"
	"strings"
	"text/template"
)

// RenderTemplate expands {{.name}} references against the values a node
// received from its incoming data edges and its enclosing loops.
// Missing keys render as the empty string.
func RenderTemplate(text string, values map[string]string) (string, error) {
	if !strings.Contains(text, "{{") { // fast path: no template markers
		return text, nil
	}

	tmpl, err := template.New("node").Option("missingkey=zero").Funcs(template.FuncMap{
		"default": func(defaultVal, val string) string {
			if strings.TrimSpace(val) == "" {
				return defaultVal
			}
			return val
		},
		"upper": strings.ToUpper,
		"lower": strings.ToLower,
		"trim":  strings.TrimSpace,
		"title": func(s string) string {
			if len(s) == 0 {
				return s
			}
			return strings.ToUpper(string(s[0])) + strings.ToLower(s[1:])
		},
		"items": SplitItems,
		"join": func(sep string, items []string) string {
			return strings.Join(items, sep)
		},
	}).Parse(text)
	if err != nil {
		return "", err
	}

	if values == nil {
		values = map[string]string{}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, values); err != nil {
		return "", err
	}

	return buf.String(), nil
}
