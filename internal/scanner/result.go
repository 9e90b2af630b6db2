package scanner

// This package re-exports types from internal/types for convenience.
// The canonical types live in internal/types to avoid import cycles.

import "github.com/shabari/shabari/internal/types"

type (
	MatchRecord = types.MatchRecord
	Outcome     = types.Outcome
	OutcomeKind = types.OutcomeKind
)

const (
	OutcomeNoMatch         = types.OutcomeNoMatch
	OutcomeMatched         = types.OutcomeMatched
	OutcomeIOError         = types.OutcomeIOError
	OutcomeInvalidArgument = types.OutcomeInvalidArgument
	OutcomeNotLoaded       = types.OutcomeNotLoaded
	OutcomeTimeout         = types.OutcomeTimeout
)
