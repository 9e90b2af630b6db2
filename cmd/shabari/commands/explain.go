package commands

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shabari/shabari/internal/dictionary"
	"github.com/shabari/shabari/internal/types"
)

var explainCmd = &cobra.Command{
	Use:   "explain <ID>",
	Short: "Show how a matched indicator ID is detected",
	Long: `Explain a matched rule ID as reported in scan output, for example
"CreateRemoteThread", "HIGH_RISK:zeus" or "SIGNATURE:pe_executable".`,
	Args: cobra.ExactArgs(1),
	RunE: runExplain,
}

func init() {
	rootCmd.AddCommand(explainCmd)
}

type explainInfo struct {
	ID          string `json:"id"`
	Pattern     string `json:"pattern"`
	Tier        string `json:"tier"`
	Description string `json:"description"`
	Offset      *int   `json:"offset,omitempty"`
	Bytes       string `json:"bytes,omitempty"`
}

func runExplain(cmd *cobra.Command, args []string) error {
	dict, err := dictionary.Builtin()
	if err != nil {
		return err
	}
	info, ok := lookupIndicator(dict, strings.TrimSpace(args[0]))
	if !ok {
		return fmt.Errorf("indicator %q not found", args[0])
	}

	w := cmd.OutOrStdout()
	if strings.ToLower(flagFormat) == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}

	color := func(code, text string) string {
		if flagNoColor {
			return text
		}
		return code + text + "\033[0m"
	}
	bold := "\033[1m"
	dim := "\033[2m"

	fmt.Fprintf(w, "\n%s %s\n", color(dim, "ID:"), color(bold, info.ID))
	fmt.Fprintf(w, "%s %s\n", color(dim, "Pattern:"), info.Pattern)
	fmt.Fprintf(w, "%s %s\n", color(dim, "Tier:"), info.Tier)
	if info.Offset != nil {
		fmt.Fprintf(w, "%s %d\n", color(dim, "Offset:"), *info.Offset)
		fmt.Fprintf(w, "%s %s\n", color(dim, "Bytes:"), info.Bytes)
	}
	fmt.Fprintf(w, "\n%s\n%s\n\n", color(bold, "Description:"), info.Description)
	return nil
}

// lookupIndicator resolves a match ID, with or without its tier prefix,
// against the dictionary. Names compare case-insensitively.
func lookupIndicator(dict *dictionary.Dictionary, id string) (explainInfo, bool) {
	name := id
	for _, prefix := range []string{types.HighRiskPrefix, types.SignaturePrefix} {
		if len(name) > len(prefix) && strings.EqualFold(name[:len(prefix)], prefix) {
			name = name[len(prefix):]
			break
		}
	}

	for _, sig := range dict.Signatures() {
		if strings.EqualFold(sig.Name, name) {
			offset := sig.Offset
			return explainInfo{
				ID:          types.NewMatchRecord(sig.Name, types.TierSignature).ID,
				Pattern:     sig.Name,
				Tier:        types.TierSignature.String(),
				Description: sig.Description + ". Matched against the leading bytes of the content.",
				Offset:      &offset,
				Bytes:       hex.EncodeToString(sig.Bytes),
			}, true
		}
	}
	for _, e := range dict.Patterns() {
		if e.Tier == types.TierSignature || !strings.EqualFold(e.Value, name) {
			continue
		}
		desc := "Suspicious API or string. Matched case-insensitively anywhere in the content."
		if e.Tier == types.TierHighRisk {
			desc = "Known malware family, registry persistence key or dropper script. Matched case-insensitively anywhere in the content."
		}
		return explainInfo{
			ID:          types.NewMatchRecord(e.Value, e.Tier).ID,
			Pattern:     e.Value,
			Tier:        e.Tier.String(),
			Description: desc,
		}, true
	}
	return explainInfo{}, false
}
