// Package classifier maps a raw scan Outcome onto the caller-facing
// ScanResult. It is a pure function of its input.
package classifier

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shabari/shabari/internal/types"
)

// Threat names and fixed detail strings.
const (
	ThreatGeneric     = "Malware.Generic"
	ThreatScanError   = "Scan Error"
	ThreatDataError   = "Data Error"
	ThreatEngineError = "Engine Error"

	DetailsSafe       = "No threats detected"
	DetailsSuspicious = "Suspicious patterns or file signatures detected"
	DetailsInvalid    = "invalid scan input"
	DetailsNotLoaded  = "engine not properly initialized"
)

// Classify builds the ScanResult for outcome. engine is copied into
// ScanEngine verbatim.
func Classify(outcome types.Outcome, engine string) types.ScanResult {
	res := types.ScanResult{
		MatchedRuleIDs: []string{},
		ScanEngine:     engine,
		Target:         outcome.Target,
		FileType:       outcome.FileType,
		BytesScanned:   outcome.BytesScanned,
		Duration:       outcome.Duration,
	}

	switch outcome.Kind {
	case types.OutcomeNoMatch:
		res.IsSafe = true
		res.Severity = types.SeveritySafe
		res.Details = DetailsSafe

	case types.OutcomeMatched:
		for _, m := range outcome.Matches {
			res.MatchedRuleIDs = append(res.MatchedRuleIDs, m.ID)
		}
		res.ThreatName = ThreatGeneric
		res.Category = types.CategoryMalware
		res.Severity = types.SeverityHigh
		if len(res.MatchedRuleIDs) > 0 {
			res.Details = "Detected malware patterns: " + strings.Join(res.MatchedRuleIDs, ", ")
		} else {
			res.Details = DetailsSuspicious
		}

	case types.OutcomeIOError:
		res.ThreatName = ThreatScanError
		res.Category = types.CategoryError
		res.Severity = types.SeverityMedium
		res.Details = "scan failed"
		if outcome.Err != nil {
			res.Details = outcome.Err.Error()
		}

	case types.OutcomeInvalidArgument:
		res.ThreatName = ThreatDataError
		res.Category = types.CategoryError
		res.Severity = types.SeverityMedium
		res.Details = DetailsInvalid

	case types.OutcomeTimeout:
		res.ThreatName = ThreatScanError
		res.Category = types.CategoryError
		res.Severity = types.SeverityMedium
		elapsed := outcome.Duration.Round(time.Millisecond)
		if errors.Is(outcome.Err, context.Canceled) {
			res.Details = "scan cancelled after " + elapsed.String()
		} else {
			res.Details = "scan timed out after " + elapsed.String()
		}

	default:
		res.ThreatName = ThreatEngineError
		res.Category = types.CategoryError
		res.Severity = types.SeverityHigh
		res.Details = DetailsNotLoaded
	}

	return res
}
