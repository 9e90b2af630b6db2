package commands

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/shabari/shabari/internal/dictionary"
	"github.com/shabari/shabari/internal/types"
)

var flagTier string

var listPatternsCmd = &cobra.Command{
	Use:   "list-patterns",
	Short: "List the indicators in the built-in pattern dictionary",
	RunE:  runListPatterns,
}

func init() {
	listPatternsCmd.Flags().StringVar(&flagTier, "tier", "", "Filter by tier (standard, high-risk, signature)")
	rootCmd.AddCommand(listPatternsCmd)
}

type patternInfo struct {
	ID      string `json:"id"`
	Pattern string `json:"pattern"`
	Tier    string `json:"tier"`
}

func runListPatterns(cmd *cobra.Command, args []string) error {
	dict, err := dictionary.Builtin()
	if err != nil {
		return err
	}

	entries := dict.Patterns()
	if flagTier != "" {
		tier, err := types.ParseTier(flagTier)
		if err != nil {
			return fmt.Errorf("invalid --tier: %w", err)
		}
		var filtered []dictionary.Entry
		for _, e := range entries {
			if e.Tier == tier {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}

	infos := make([]patternInfo, len(entries))
	for i, e := range entries {
		infos[i] = patternInfo{
			ID:      types.NewMatchRecord(e.Value, e.Tier).ID,
			Pattern: e.Value,
			Tier:    e.Tier.String(),
		}
	}

	w := cmd.OutOrStdout()
	if strings.ToLower(flagFormat) == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\tTIER\n")
	fmt.Fprintf(tw, "--\t----\n")
	for _, p := range infos {
		fmt.Fprintf(tw, "%s\t%s\n", p.ID, p.Tier)
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d indicators\n", len(infos))
	return nil
}
