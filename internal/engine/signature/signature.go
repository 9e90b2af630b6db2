// Package signature checks the leading bytes of a target against the header
// signature table of the pattern dictionary.
package signature

import (
	"github.com/shabari/shabari/internal/dictionary"
	"github.com/shabari/shabari/internal/types"
)

// Check returns one SIGNATURE:<name> record per signature found in header,
// in table order. Headers shorter than dictionary.MinHeaderLen never match.
func Check(header []byte, dict *dictionary.Dictionary) []types.MatchRecord {
	if dict == nil || len(header) < dictionary.MinHeaderLen {
		return nil
	}
	var records []types.MatchRecord
	for _, sig := range dict.Signatures() {
		if sig.Matches(header) {
			records = append(records, types.NewMatchRecord(sig.Name, types.TierSignature))
		}
	}
	return records
}
