package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/shabari/shabari/internal/types"
)

// MarkdownFormatter outputs the report as GitHub-flavored markdown,
// designed for GitHub Actions Job Summaries and PR comments.
type MarkdownFormatter struct{}

func (f *MarkdownFormatter) Format(w io.Writer, report *Report) error {
	s := report.Summary()
	if s.Malware == 0 && s.Errors == 0 {
		fmt.Fprintf(w, "### :white_check_mark: Shabari Scan: no threats detected\n\n")
		fmt.Fprintf(w, "> %d targets scanned · %d rules · %.2fs\n",
			s.Targets, report.RulesLoaded, report.Duration.Seconds())
		return nil
	}

	fmt.Fprintf(w, "### :rotating_light: Shabari Scan: %d malware, %d errors\n\n", s.Malware, s.Errors)
	fmt.Fprintf(w, "> **Target:** `%s` · %d targets · %d rules · %.2fs\n\n",
		report.Target, s.Targets, report.RulesLoaded, report.Duration.Seconds())

	f.printTable(w, ":red_circle:", "Malware", report.ByCategory(types.CategoryMalware), true)
	f.printTable(w, ":yellow_circle:", "Errors", report.ByCategory(types.CategoryError), false)

	fmt.Fprintf(w, "---\n")
	fmt.Fprintf(w, "*Scanned by %s*\n", report.Engine)
	return nil
}

func (f *MarkdownFormatter) printTable(w io.Writer, emoji, title string, results []types.ScanResult, open bool) {
	if len(results) == 0 {
		return
	}
	attr := ""
	if open {
		attr = " open"
	}
	fmt.Fprintf(w, "<details%s>\n", attr)
	fmt.Fprintf(w, "<summary>%s <strong>%s (%d)</strong></summary>\n\n", emoji, title, len(results))
	fmt.Fprintf(w, "| Target | Verdict | Details |\n")
	fmt.Fprintf(w, "|--------|---------|---------|\n")
	for _, res := range results {
		fmt.Fprintf(w, "| `%s` | %s | %s |\n",
			escapeMarkdown(res.Target), res.ThreatName, escapeMarkdown(truncate(res.Details, previewWidth)))
	}
	fmt.Fprintf(w, "\n</details>\n\n")
}

func escapeMarkdown(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}
