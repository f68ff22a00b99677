package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/rubiojr/fedsearch/pkg/catalog"
	"github.com/rubiojr/fedsearch/pkg/render"
	"github.com/rubiojr/fedsearch/pkg/search"
)

// Define styles using lipgloss
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214")).
			Margin(1, 0, 0, 0)

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)

	summaryStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("32"))

	noDataStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)

	urlStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33"))

	snippetStyle = lipgloss.NewStyle().
			PaddingLeft(4)
)

// formatNumber formats a number with K/M suffixes for readability
func formatNumber(n int) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	} else if n < 1000000 {
		return fmt.Sprintf("%.1fK", float64(n)/1000)
	} else {
		return fmt.Sprintf("%.1fM", float64(n)/1000000)
	}
}

// formatPage renders a page of results for the terminal
func formatPage(expr string, page *search.Page) string {
	var b strings.Builder
	if page.Total == 0 {
		b.WriteString(noDataStyle.Render("No results for "+expr) + "\n")
		return b.String()
	}

	summary := fmt.Sprintf("%s results for %q in %s", formatNumber(page.Total), expr, render.FormatElapsed(page.Elapsed))
	if page.Page > 0 {
		summary += fmt.Sprintf(" (page %d of %d)", page.Page, page.Pages())
	}
	b.WriteString(summaryStyle.Render(summary) + "\n")

	offset := 0
	if page.Page > 0 {
		offset = (page.Page - 1) * page.PerPage
	}
	for i := range page.Records {
		b.WriteString(formatRecord(offset+i+1, &page.Records[i]))
	}
	return b.String()
}

// formatRecord renders one result with its position
func formatRecord(n int, rec *search.Record) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("\n%3d. %s\n", n, titleStyle.Render(rec.Label)))
	url := rec.URL
	if rec.IPath != "" {
		url += " > " + rec.IPath
	}
	b.WriteString("     " + urlStyle.Render(url) + "\n")

	var meta []string
	for _, m := range []string{rec.MType, render.HumanSize(rec.Size), rec.Time, rec.Author} {
		if m != "" {
			meta = append(meta, m)
		}
	}
	if len(meta) > 0 {
		b.WriteString("     " + metaStyle.Render(strings.Join(meta, " · ")) + "\n")
	}
	if rec.Snippet != nil && *rec.Snippet != "" {
		b.WriteString(snippetStyle.Render(strings.Join(strings.Fields(*rec.Snippet), " ")) + "\n")
	}
	return b.String()
}

// formatDirs renders the directory catalog and its browse tree
func formatDirs(entries []catalog.Entry, tree []string) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Top directories") + "\n")
	if len(entries) == 0 {
		b.WriteString(noDataStyle.Render("No directories configured yet.") + "\n")
		return b.String()
	}
	for _, e := range entries {
		b.WriteString(fmt.Sprintf("  %s %s\n", e.Dir, metaStyle.Render("("+e.Location+")")))
	}
	b.WriteString(headerStyle.Render("Scopes") + "\n")
	for _, t := range tree {
		b.WriteString("  " + t + "\n")
	}
	return b.String()
}
