// Package rules compiles rule source text into the rule set the scan engine
// executes, and validates rule files before they are handed to the engine.
package rules

import (
	"errors"
	"time"

	"github.com/shabari/shabari/internal/types"
)

// DefaultRuleID and DefaultCategory name the single rule every compile produces.
const (
	DefaultRuleID   = "default_malware_rule"
	DefaultCategory = types.CategoryMalware
)

// ErrSyntax is returned for rule text the compiler cannot accept.
var ErrSyntax = errors.New("rule syntax error")

// CompiledPattern is a dictionary pattern ready for matching.
type CompiledPattern struct {
	Value string // as catalogued
	Lower string // ASCII-lowercased for case-insensitive search
	Tier  types.Tier
}

// Record builds the match record reported when this pattern fires.
func (p CompiledPattern) Record() types.MatchRecord {
	return types.NewMatchRecord(p.Value, p.Tier)
}

// Rule binds an identifier and category to a subset of the dictionary.
// Patterns are ordered standard tier first, then high-risk.
type Rule struct {
	ID       string
	Category string
	HighRisk bool
	Patterns []CompiledPattern
}

// RuleSet is the installed, scan-ready product of the compiler.
type RuleSet struct {
	Rules       []*Rule
	Fingerprint string
	CompiledAt  time.Time
}

// Len returns the number of rules in the set.
func (rs *RuleSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.Rules)
}

// MaxPatternLen is the byte length of the longest bound pattern.
func (rs *RuleSet) MaxPatternLen() int {
	n := 0
	if rs == nil {
		return n
	}
	for _, r := range rs.Rules {
		for _, p := range r.Patterns {
			n = max(n, len(p.Lower))
		}
	}
	return n
}
