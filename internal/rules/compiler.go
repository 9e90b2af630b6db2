package rules

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spaolacci/murmur3"

	"github.com/shabari/shabari/internal/dictionary"
	"github.com/shabari/shabari/internal/types"
)

// Compile converts rule source text into a RuleSet bound to dict.
//
// The text is validated for non-emptiness only; its content is not
// interpreted. Every accepted input yields exactly one rule,
// default_malware_rule, covering both tiers of the dictionary.
func Compile(text string, dict *dictionary.Dictionary) (*RuleSet, error) {
	if dict == nil {
		return nil, fmt.Errorf("compile: no pattern dictionary")
	}
	if len(text) == 0 {
		return nil, fmt.Errorf("compile: empty rule text: %w", ErrSyntax)
	}

	rule := &Rule{
		ID:       DefaultRuleID,
		Category: DefaultCategory,
	}
	for _, p := range dict.Standard() {
		rule.Patterns = append(rule.Patterns, compilePattern(p, types.TierStandard))
	}
	for _, p := range dict.HighRisk() {
		rule.Patterns = append(rule.Patterns, compilePattern(p, types.TierHighRisk))
	}

	return &RuleSet{
		Rules:       []*Rule{rule},
		Fingerprint: Fingerprint(text),
		CompiledAt:  time.Now().UTC(),
	}, nil
}

// Fingerprint returns a short, stable hash of rule source text.
func Fingerprint(text string) string {
	return strconv.FormatUint(murmur3.Sum64([]byte(text)), 16)
}

func compilePattern(value string, tier types.Tier) CompiledPattern {
	return CompiledPattern{
		Value: value,
		Lower: string(ToLowerASCII([]byte(value))),
		Tier:  tier,
	}
}

// ToLowerASCII returns a copy of b with A-Z lowercased. Every other byte is
// left untouched so offsets into binary content stay aligned.
func ToLowerASCII(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return out
}
