package rules

import (
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"

	"github.com/shabari/shabari/internal/rules/builtin"
)

// maxRuleFileSize is the maximum size for a single rule file (1 MB).
const maxRuleFileSize = 1 << 20

// DefaultFile is the name of the default rule source inside the builtin FS.
const DefaultFile = "default.yar"

var (
	ruleBlockRe = regexp.MustCompile(`(?is)rule\s+\w+\s*\{.*?\}`)
	ruleNameRe  = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
)

// DefaultRules returns the built-in rule source loaded after initialization.
func DefaultRules() (string, error) {
	data, err := fs.ReadFile(builtin.FS(), DefaultFile)
	if err != nil {
		return "", fmt.Errorf("reading built-in rules: %w", err)
	}
	return string(data), nil
}

// LoadFile reads a rule file from disk and validates it.
// Files larger than 1 MB are rejected.
func LoadFile(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("reading %s: is a directory", path)
	}
	if info.Size() > maxRuleFileSize {
		return "", fmt.Errorf("rule file too large: %s (%d bytes, max %d)", path, info.Size(), maxRuleFileSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	text := string(data)
	if err := Validate(text); err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	return text, nil
}

// Validate performs the structural checks applied to rule files: at least
// one rule block, a condition section, and balanced braces. It is stricter
// than Compile, which only requires non-empty text.
func Validate(text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("rule content is empty: %w", ErrSyntax)
	}
	if !ruleBlockRe.MatchString(text) {
		return fmt.Errorf("no rule block found: %w", ErrSyntax)
	}
	if !strings.Contains(text, "condition:") {
		return fmt.Errorf("no condition section found: %w", ErrSyntax)
	}
	if open, closed := strings.Count(text, "{"), strings.Count(text, "}"); open != closed {
		return fmt.Errorf("unbalanced braces (%d open, %d close): %w", open, closed, ErrSyntax)
	}
	return nil
}

// CountDeclared counts lines that open a rule declaration.
func CountDeclared(text string) int {
	count := 0
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "rule ") && strings.Contains(trimmed, "{") {
			count++
		}
	}
	return count
}

// DeclaredNames returns the names of all declared rules in source order.
func DeclaredNames(text string) []string {
	var names []string
	for _, line := range strings.Split(text, "\n") {
		if name := ExtractRuleName(line); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// ExtractRuleName returns the rule name declared on line, or "" if the line
// is not a rule declaration.
func ExtractRuleName(line string) string {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "rule ") {
		return ""
	}
	parts := strings.Fields(trimmed)
	if len(parts) < 2 {
		return ""
	}
	name, _, _ := strings.Cut(parts[1], "{")
	return strings.TrimSpace(name)
}

// IsValidRuleName reports whether name is a legal rule identifier.
func IsValidRuleName(name string) bool {
	return ruleNameRe.MatchString(name)
}
