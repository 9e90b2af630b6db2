package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shabari/shabari/internal/dictionary"
	"github.com/shabari/shabari/internal/rules"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect and validate rule files",
}

var rulesValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Check that a rule file loads and compiles",
	Args:  cobra.ExactArgs(1),
	RunE:  runRulesValidate,
}

var rulesDefaultCmd = &cobra.Command{
	Use:   "default",
	Short: "Print the built-in rule source",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := defaultRuleText()
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(cmd.OutOrStdout(), text)
		return err
	},
}

func init() {
	rulesCmd.AddCommand(rulesValidateCmd, rulesDefaultCmd)
	rootCmd.AddCommand(rulesCmd)
}

type validateInfo struct {
	File        string   `json:"file"`
	Declared    []string `json:"declared"`
	Compiled    string   `json:"compiled_rule"`
	Patterns    int      `json:"patterns"`
	Fingerprint string   `json:"fingerprint"`
}

func runRulesValidate(cmd *cobra.Command, args []string) error {
	text, err := rules.LoadFile(args[0])
	if err != nil {
		return err
	}
	dict, err := dictionary.Builtin()
	if err != nil {
		return err
	}
	rs, err := rules.Compile(text, dict)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}

	names := rules.DeclaredNames(text)
	for _, n := range names {
		if !rules.IsValidRuleName(n) {
			componentLog("rules").WithField("rule", n).Warn("invalid rule name")
		}
	}

	patterns := 0
	for _, r := range rs.Rules {
		patterns += len(r.Patterns)
	}
	info := validateInfo{
		File:        args[0],
		Declared:    names,
		Compiled:    rules.DefaultRuleID,
		Patterns:    patterns,
		Fingerprint: rs.Fingerprint,
	}

	w := cmd.OutOrStdout()
	if strings.ToLower(flagFormat) == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	fmt.Fprintf(w, "%s: ok\n", info.File)
	fmt.Fprintf(w, "  declared rules: %d (%s)\n", rules.CountDeclared(text), strings.Join(names, ", "))
	fmt.Fprintf(w, "  compiled as:    %s (%d patterns)\n", info.Compiled, info.Patterns)
	fmt.Fprintf(w, "  fingerprint:    %s\n", info.Fingerprint)
	return nil
}

func defaultRuleText() (string, error) {
	return rules.DefaultRules()
}
