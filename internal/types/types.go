// Package types defines shared data structures (Severity, MatchRecord,
// Outcome, ScanResult) used across the scanner, classifier and engine
// packages to prevent import cycles.
package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Severity represents the severity level of a scan verdict.
type Severity int

const (
	SeveritySafe Severity = iota
	SeverityMedium
	SeverityHigh
)

func (s Severity) String() string {
	switch s {
	case SeverityHigh:
		return "high"
	case SeverityMedium:
		return "medium"
	case SeveritySafe:
		return "safe"
	default:
		return "unknown"
	}
}

// ParseSeverity converts a string to a Severity level.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return SeverityHigh, nil
	case "medium":
		return SeverityMedium, nil
	case "safe":
		return SeveritySafe, nil
	default:
		return SeveritySafe, fmt.Errorf("unknown severity: %q", s)
	}
}

// MarshalText encodes the severity as its lowercase name.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a severity name.
func (s *Severity) UnmarshalText(b []byte) error {
	sev, err := ParseSeverity(string(b))
	if err != nil {
		return err
	}
	*s = sev
	return nil
}

// Verdict categories.
const (
	CategoryNone    = ""
	CategoryMalware = "malware"
	CategoryError   = "error"
)

// Tier identifies which part of the pattern dictionary produced a match.
type Tier int

const (
	TierStandard Tier = iota
	TierHighRisk
	TierSignature // file header, not content
)

func (t Tier) String() string {
	switch t {
	case TierStandard:
		return "standard"
	case TierHighRisk:
		return "high-risk"
	case TierSignature:
		return "signature"
	default:
		return "unknown"
	}
}

// ParseTier converts a tier name to a Tier.
func ParseTier(s string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "standard":
		return TierStandard, nil
	case "high-risk", "high_risk", "highrisk":
		return TierHighRisk, nil
	case "signature":
		return TierSignature, nil
	default:
		return TierStandard, fmt.Errorf("unknown tier: %q", s)
	}
}

// Identifier prefixes used to tag non-standard match records.
const (
	HighRiskPrefix  = "HIGH_RISK:"
	SignaturePrefix = "SIGNATURE:"
)

// MatchRecord is one detected indicator within a single scan.
type MatchRecord struct {
	ID      string `json:"id"`
	Pattern string `json:"pattern"`
	Tier    Tier   `json:"tier"`
}

// NewMatchRecord builds a record whose ID carries the tier prefix.
func NewMatchRecord(pattern string, tier Tier) MatchRecord {
	id := pattern
	switch tier {
	case TierHighRisk:
		id = HighRiskPrefix + pattern
	case TierSignature:
		id = SignaturePrefix + pattern
	}
	return MatchRecord{ID: id, Pattern: pattern, Tier: tier}
}

// OutcomeKind is the raw result class of one scan, before classification.
type OutcomeKind int

const (
	OutcomeNoMatch OutcomeKind = iota
	OutcomeMatched
	OutcomeIOError
	OutcomeInvalidArgument
	OutcomeNotLoaded
	OutcomeTimeout
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeNoMatch:
		return "no-match"
	case OutcomeMatched:
		return "matched"
	case OutcomeIOError:
		return "io-error"
	case OutcomeInvalidArgument:
		return "invalid-argument"
	case OutcomeNotLoaded:
		return "not-loaded"
	case OutcomeTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Outcome is what the scan engine hands to the classifier.
type Outcome struct {
	Kind    OutcomeKind
	Matches []MatchRecord
	// Aborted is set when a reporter stopped the scan; it is still a match.
	Aborted      bool
	Err          error
	Target       string
	FileType     string
	BytesScanned int64
	Duration     time.Duration
}

// ScanResult is the classified, caller-facing verdict of one scan. It is
// always fully populated.
type ScanResult struct {
	IsSafe         bool          `json:"is_safe"`
	ThreatName     string        `json:"threat_name"`
	Category       string        `json:"category"`
	Severity       Severity      `json:"severity"`
	Details        string        `json:"details"`
	MatchedRuleIDs []string      `json:"matched_rule_ids"`
	ScanEngine     string        `json:"scan_engine"`
	Target         string        `json:"target,omitempty"`
	FileType       string        `json:"file_type,omitempty"`
	BytesScanned   int64         `json:"bytes_scanned"`
	Duration       time.Duration `json:"-"`
}

// MarshalJSON implements custom JSON marshaling so Duration serializes as milliseconds.
func (r ScanResult) MarshalJSON() ([]byte, error) {
	type Alias ScanResult
	return json.Marshal(struct {
		Alias
		DurationMS int64 `json:"duration_ms"`
	}{
		Alias:      Alias(r),
		DurationMS: r.Duration.Milliseconds(),
	})
}
