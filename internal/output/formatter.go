// Package output formats scan reports for terminal (ANSI), JSON, SARIF,
// and Markdown output.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/shabari/shabari/internal/types"
)

// Formatter is the interface for outputting scan reports.
type Formatter interface {
	Format(w io.Writer, report *Report) error
}

// Formats lists the names accepted by New.
var Formats = []string{"terminal", "json", "sarif", "markdown"}

// New returns the formatter for name.
func New(name string, noColor, verbose bool) (Formatter, error) {
	switch name {
	case "", "terminal":
		return &TerminalFormatter{NoColor: noColor, Verbose: verbose}, nil
	case "json":
		return &JSONFormatter{}, nil
	case "sarif":
		return &SARIFFormatter{}, nil
	case "markdown":
		return &MarkdownFormatter{}, nil
	default:
		return nil, fmt.Errorf("unknown format %q (valid: terminal, json, sarif, markdown)", name)
	}
}

// Report is the outcome of scanning one or more targets in a CLI run.
type Report struct {
	Target          string             `json:"target,omitempty"`
	Engine          string             `json:"engine"`
	RulesLoaded     int                `json:"rules_loaded"`
	RuleFingerprint string             `json:"rule_fingerprint,omitempty"`
	Results         []types.ScanResult `json:"results"`
	Duration        time.Duration      `json:"-"`
}

// Summary counts results by verdict.
type Summary struct {
	Targets int `json:"targets"`
	Safe    int `json:"safe"`
	Malware int `json:"malware"`
	Errors  int `json:"errors"`
}

// Summary tallies the report results.
func (r *Report) Summary() Summary {
	s := Summary{Targets: len(r.Results)}
	for _, res := range r.Results {
		switch {
		case res.IsSafe:
			s.Safe++
		case res.Category == types.CategoryMalware:
			s.Malware++
		default:
			s.Errors++
		}
	}
	return s
}

// ByCategory returns the unsafe results in category, in report order.
func (r *Report) ByCategory(category string) []types.ScanResult {
	var out []types.ScanResult
	for _, res := range r.Results {
		if !res.IsSafe && res.Category == category {
			out = append(out, res)
		}
	}
	return out
}

// MarshalJSON adds duration_ms and the summary.
func (r Report) MarshalJSON() ([]byte, error) {
	type Alias Report
	if r.Results == nil {
		r.Results = []types.ScanResult{}
	}
	return json.Marshal(struct {
		Alias
		Summary    Summary `json:"summary"`
		DurationMS int64   `json:"duration_ms"`
	}{
		Alias:      Alias(r),
		Summary:    r.Summary(),
		DurationMS: r.Duration.Milliseconds(),
	})
}
