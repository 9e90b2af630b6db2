package output

import (
	"encoding/json"
	"io"

	"github.com/shabari/shabari/internal/types"
)

// ToolVersion is the shabari version reported in SARIF output.
var ToolVersion = "dev"

// scanErrorRuleID is the SARIF rule for targets that could not be scanned.
const scanErrorRuleID = "scan-error"

// SARIFFormatter outputs detections in SARIF 2.1.0 format for GitHub Code Scanning.
type SARIFFormatter struct{}

type sarifLog struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool       sarifTool      `json:"tool"`
	Results    []sarifResult  `json:"results"`
	Properties map[string]any `json:"properties,omitempty"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name           string      `json:"name"`
	Version        string      `json:"version"`
	InformationURI string      `json:"informationUri"`
	Rules          []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID               string              `json:"id"`
	Name             string              `json:"name"`
	ShortDescription sarifMessage        `json:"shortDescription"`
	DefaultConfig    sarifDefaultConfig  `json:"defaultConfiguration"`
	Properties       sarifRuleProperties `json:"properties"`
}

type sarifDefaultConfig struct {
	Level string `json:"level"`
}

type sarifRuleProperties struct {
	Tags []string `json:"tags,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifResult struct {
	RuleID     string          `json:"ruleId"`
	RuleIndex  int             `json:"ruleIndex"`
	Level      string          `json:"level"`
	Message    sarifMessage    `json:"message"`
	Locations  []sarifLocation `json:"locations"`
	Properties map[string]any  `json:"properties,omitempty"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysicalLocation `json:"physicalLocation"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation sarifArtifactLocation `json:"artifactLocation"`
}

type sarifArtifactLocation struct {
	URI string `json:"uri"`
}

func (f *SARIFFormatter) Format(w io.Writer, report *Report) error {
	ruleIndex := map[string]int{}
	rules := []sarifRule{}
	addRule := func(id, name, level, tag string) int {
		if idx, ok := ruleIndex[id]; ok {
			return idx
		}
		ruleIndex[id] = len(rules)
		rules = append(rules, sarifRule{
			ID:               id,
			Name:             name,
			ShortDescription: sarifMessage{Text: name},
			DefaultConfig:    sarifDefaultConfig{Level: level},
			Properties:       sarifRuleProperties{Tags: []string{tag}},
		})
		return ruleIndex[id]
	}

	results := []sarifResult{}
	for _, res := range report.Results {
		if res.IsSafe {
			continue
		}
		loc := []sarifLocation{{
			PhysicalLocation: sarifPhysicalLocation{
				ArtifactLocation: sarifArtifactLocation{URI: res.Target},
			},
		}}
		level := severityToLevel(res.Severity)

		if res.Category != types.CategoryMalware {
			idx := addRule(scanErrorRuleID, "Target could not be scanned", "warning", types.CategoryError)
			results = append(results, sarifResult{
				RuleID:    scanErrorRuleID,
				RuleIndex: idx,
				Level:     level,
				Message:   sarifMessage{Text: res.ThreatName + ": " + res.Details},
				Locations: loc,
			})
			continue
		}

		for _, id := range res.MatchedRuleIDs {
			idx := addRule(id, "Indicator "+id, "error", types.CategoryMalware)
			r := sarifResult{
				RuleID:    id,
				RuleIndex: idx,
				Level:     level,
				Message:   sarifMessage{Text: res.ThreatName + ": " + id},
				Locations: loc,
			}
			if res.FileType != "" {
				r.Properties = map[string]any{"file_type": res.FileType}
			}
			results = append(results, r)
		}
	}

	log := sarifLog{
		Schema:  "https://docs.oasis-open.org/sarif/sarif/v2.1.0/sarif-schema-2.1.0.json",
		Version: "2.1.0",
		Runs: []sarifRun{
			{
				Tool: sarifTool{
					Driver: sarifDriver{
						Name:           "shabari",
						Version:        ToolVersion,
						InformationURI: "https://github.com/shabari/shabari",
						Rules:          rules,
					},
				},
				Results: results,
				Properties: map[string]any{
					"duration_ms":      report.Duration.Milliseconds(),
					"rule_fingerprint": report.RuleFingerprint,
				},
			},
		},
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(log)
}

func severityToLevel(sev types.Severity) string {
	switch sev {
	case types.SeverityHigh:
		return "error"
	case types.SeverityMedium:
		return "warning"
	default:
		return "none"
	}
}
