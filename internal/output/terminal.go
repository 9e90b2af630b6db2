package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/shabari/shabari/internal/types"
)

// ANSI color codes
const (
	reset     = "\033[0m"
	bold      = "\033[1m"
	dim       = "\033[2m"
	underline = "\033[4m"
	red       = "\033[31m"
	green     = "\033[32m"
	yellow    = "\033[33m"
	cyan      = "\033[36m"
)

const (
	barWidth     = 40
	lineWidth    = 72
	labelWidth   = 10
	previewWidth = 60
)

// TerminalFormatter outputs a triage-oriented summary: a verdict dashboard,
// then detections and errors grouped by target.
type TerminalFormatter struct {
	NoColor bool
	Verbose bool
}

func (f *TerminalFormatter) color(code, text string) string {
	if f.NoColor {
		return text
	}
	return code + text + reset
}

func (f *TerminalFormatter) Format(w io.Writer, report *Report) error {
	if os.Getenv("NO_COLOR") != "" {
		f.NoColor = true
	}

	summary := report.Summary()
	f.printHeader(w, report, summary)

	if summary.Malware == 0 && summary.Errors == 0 {
		fmt.Fprintf(w, "\n  %s No threats detected.\n", f.color(green, "✔"))
	} else {
		f.printDashboard(w, summary)
		if threats := report.ByCategory(types.CategoryMalware); len(threats) > 0 {
			f.printSection(w, "MALWARE", threats)
		}
		if errs := report.ByCategory(types.CategoryError); len(errs) > 0 {
			f.printSection(w, "ERRORS", errs)
		}
	}

	if f.Verbose {
		f.printClean(w, report)
	}
	f.printFooter(w, report, summary)
	return nil
}

func (f *TerminalFormatter) separator() string {
	return strings.Repeat("─", lineWidth)
}

func (f *TerminalFormatter) sectionHeader(title string) string {
	prefix := "── " + title + " "
	displayLen := utf8.RuneCountInString(prefix)
	remaining := max(lineWidth-displayLen, 0)
	return prefix + strings.Repeat("─", remaining)
}

func (f *TerminalFormatter) printHeader(w io.Writer, report *Report, s Summary) {
	sep := f.separator()
	fmt.Fprintf(w, "\n%s\n", f.color(dim, sep))
	fmt.Fprintf(w, "  %s\n", f.color(bold, "SHABARI SCAN RESULTS"))

	parts := []string{}
	if report.Target != "" {
		parts = append(parts, fmt.Sprintf("Target: %s", report.Target))
	}
	parts = append(parts, fmt.Sprintf("%d targets", s.Targets))
	parts = append(parts, fmt.Sprintf("%d rules", report.RulesLoaded))
	if report.Duration > 0 {
		parts = append(parts, fmt.Sprintf("%.2fs", report.Duration.Seconds()))
	}
	fmt.Fprintf(w, "  %s\n", strings.Join(parts, "  ·  "))
	fmt.Fprintf(w, "%s\n", f.color(dim, sep))
}

func (f *TerminalFormatter) printDashboard(w io.Writer, s Summary) {
	rows := []struct {
		label string
		count int
		code  string
	}{
		{"malware", s.Malware, red},
		{"error", s.Errors, yellow},
		{"safe", s.Safe, green},
	}
	peak := max(s.Malware, s.Errors, s.Safe)

	fmt.Fprintln(w)
	for _, row := range rows {
		if row.count == 0 {
			continue
		}
		label := fmt.Sprintf("  %-*s", labelWidth, row.label)
		fmt.Fprintf(w, "%s %s %4d\n", f.color(bold, label), f.renderBar(row.count, peak, barWidth, row.code), row.count)
	}
}

func (f *TerminalFormatter) printSection(w io.Writer, title string, results []types.ScanResult) {
	header := f.sectionHeader(fmt.Sprintf("%s (%d)", title, len(results)))
	fmt.Fprintf(w, "\n%s\n", f.color(bold, header))

	for _, res := range results {
		icon := f.color(red, "▲")
		if res.Category == types.CategoryError {
			icon = f.color(yellow, "■")
		}
		name := res.Target
		if res.FileType != "" {
			name += " " + f.color(dim, "["+res.FileType+"]")
		}
		fmt.Fprintf(w, "\n  %s %s  %s\n", icon, f.color(bold+underline, name), f.color(cyan, res.ThreatName))

		if res.Category == types.CategoryError || !f.Verbose {
			fmt.Fprintf(w, "      %s %s\n", f.color(dim, "│"), truncate(res.Details, previewWidth))
			continue
		}
		for _, id := range res.MatchedRuleIDs {
			fmt.Fprintf(w, "      %s %s\n", f.color(dim, "│"), id)
		}
	}
}

func (f *TerminalFormatter) printClean(w io.Writer, report *Report) {
	var clean []string
	for _, res := range report.Results {
		if res.IsSafe {
			clean = append(clean, res.Target)
		}
	}
	if len(clean) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s\n\n", f.color(bold, f.sectionHeader(fmt.Sprintf("CLEAN (%d)", len(clean)))))
	for _, target := range clean {
		fmt.Fprintf(w, "  %s %s\n", f.color(green, "✔"), target)
	}
}

func (f *TerminalFormatter) printFooter(w io.Writer, report *Report, s Summary) {
	sep := f.separator()
	fmt.Fprintf(w, "\n%s\n", f.color(dim, sep))

	parts := []string{
		fmt.Sprintf("%d targets scanned", s.Targets),
		fmt.Sprintf("%d malware", s.Malware),
		fmt.Sprintf("%d errors", s.Errors),
		fmt.Sprintf("%d rules", report.RulesLoaded),
	}
	if report.Duration > 0 {
		parts = append(parts, fmt.Sprintf("%.2fs", report.Duration.Seconds()))
	}

	fmt.Fprintf(w, "  %s\n", strings.Join(parts, " · "))
	fmt.Fprintf(w, "%s\n", f.color(dim, sep))
}

func (f *TerminalFormatter) renderBar(count, peak, width int, code string) string {
	if peak == 0 {
		return strings.Repeat("░", width)
	}
	filled := count * width / peak
	if filled == 0 && count > 0 {
		filled = 1
	}
	// Always keep at least 1 empty block so bar boundary is visible
	if filled >= width {
		filled = width - 1
	}
	empty := width - filled
	return f.color(code, strings.Repeat("█", filled)) + f.color(dim, strings.Repeat("░", empty))
}

func truncate(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\t", " ")
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
