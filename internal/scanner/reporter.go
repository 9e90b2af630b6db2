package scanner

import "github.com/shabari/shabari/internal/types"

// MatchRuleID is the rule identifier passed to a Reporter. It summarizes
// that some indicator fired; the individual records are on the Outcome.
const MatchRuleID = "malware_detected"

// ReportAction tells the scanner whether to keep going after a report.
type ReportAction int

const (
	ReportContinue ReportAction = iota
	ReportAbort
)

// Reporter is notified once per scan, on the first match.
//
// Report runs synchronously inside the scan. When the scanner is driven by
// an engine, the engine lock is held for the call, so Report must not call
// back into that engine; doing so deadlocks.
type Reporter interface {
	Report(ruleID string, first types.MatchRecord) ReportAction
}

// ReporterFunc adapts a plain function to Reporter.
type ReporterFunc func(ruleID string, first types.MatchRecord) ReportAction

func (f ReporterFunc) Report(ruleID string, first types.MatchRecord) ReportAction {
	return f(ruleID, first)
}
