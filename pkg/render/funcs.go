package render

import (
	"fmt"
	"html/template"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/rubiojr/fedsearch/pkg/settings"
)

// HumanSize formats a byte count string such as "2048" as "2.0 KB".
// Values that are not numbers are returned unchanged.
func HumanSize(s string) string {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return s
	}
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}

// OptionLabel turns an option key like "title_link" into "Title Link".
func OptionLabel(key string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(key, "_", " "))
}

// FormatElapsed renders a search duration in seconds.
func FormatElapsed(d time.Duration) string {
	return fmt.Sprintf("%.2fs", d.Seconds())
}

// Truncate shortens s to at most length runes, ending in "...".
func Truncate(s string, length int) string {
	r := []rune(s)
	if len(r) <= length {
		return s
	}
	if length <= 3 {
		return string(r[:length])
	}
	return string(r[:length-3]) + "..."
}

// Snippet returns s as HTML. Highlighted snippets come escaped from the
// engine with only the match markers as markup; plain ones are escaped
// here.
func Snippet(s *string, highlight int) template.HTML {
	if s == nil {
		return ""
	}
	if highlight == 0 {
		return template.HTML(template.HTMLEscapeString(*s))
	}
	return template.HTML(*s)
}

// GetTemplateFuncs returns the helpers available to page templates.
func GetTemplateFuncs() template.FuncMap {
	return template.FuncMap{
		"humanSize":   HumanSize,
		"optionLabel": OptionLabel,
		"elapsed":     FormatElapsed,
		"truncate":    Truncate,
		"title":       cases.Title(language.English).String,
		"join":        strings.Join,
		"mountKey":    settings.MountKey,
		"add":         func(a, b int) int { return a + b },

		"snippet": Snippet,
	}
}
