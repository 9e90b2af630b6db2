// Package scanner resolves scan targets and runs the header signature and
// textual indicator checks over them, producing a raw Outcome.
package scanner

import (
	"bufio"
	"context"
	"errors"
	"io"
	"time"

	"github.com/h2non/filetype"

	"github.com/shabari/shabari/internal/dictionary"
	"github.com/shabari/shabari/internal/engine/pattern"
	"github.com/shabari/shabari/internal/engine/signature"
	"github.com/shabari/shabari/internal/rules"
	"github.com/shabari/shabari/internal/types"
)

// sniffLen is how many leading bytes filetype needs to identify any of the
// formats it knows.
const sniffLen = 262

// Scanner runs one scan at a time against a dictionary and rule set.
// It holds no per-scan state and may be reused.
type Scanner struct {
	dict      *dictionary.Dictionary
	chunkSize int
	reporter  Reporter
}

// New creates a Scanner over dict.
func New(dict *dictionary.Dictionary) *Scanner {
	return &Scanner{dict: dict, chunkSize: pattern.DefaultChunkSize}
}

// SetChunkSize sets the streaming read size. Values <= 0 restore the
// default; values above pattern.MaxChunkSize are clamped to it.
func (s *Scanner) SetChunkSize(n int) {
	if n <= 0 {
		n = pattern.DefaultChunkSize
	}
	s.chunkSize = min(n, pattern.MaxChunkSize)
}

// ChunkSize returns the effective streaming read size.
func (s *Scanner) ChunkSize() int { return s.chunkSize }

// SetReporter installs a reporter notified on the first match of each scan.
func (s *Scanner) SetReporter(r Reporter) {
	s.reporter = r
}

// Scan checks target against rs. It never returns an error: every failure
// is expressed as an Outcome kind.
func (s *Scanner) Scan(ctx context.Context, target *Target, rs *rules.RuleSet) types.Outcome {
	start := time.Now()
	out := s.scan(ctx, target, rs)
	out.Target = target.Name()
	out.Duration = time.Since(start)
	return out
}

func (s *Scanner) scan(ctx context.Context, target *Target, rs *rules.RuleSet) types.Outcome {
	if s.dict == nil || rs.Len() == 0 {
		return types.Outcome{Kind: types.OutcomeNotLoaded}
	}

	rc, err := target.Open()
	if err != nil {
		return failure(err)
	}
	defer rc.Close()

	br := bufio.NewReaderSize(rc, max(sniffLen, s.dict.HeaderLen()))
	header, err := br.Peek(max(sniffLen, s.dict.HeaderLen()))
	if err != nil && !errors.Is(err, io.EOF) {
		return failure(&IOError{Path: target.Path, Err: err})
	}

	var out types.Outcome
	if kind, _ := filetype.Match(header); kind != filetype.Unknown {
		out.FileType = kind.MIME.Value
	}

	reported := false
	report := func(rec types.MatchRecord) bool {
		if reported || s.reporter == nil {
			reported = true
			return true
		}
		reported = true
		if s.reporter.Report(MatchRuleID, rec) == ReportAbort {
			out.Aborted = true
			return false
		}
		return true
	}

	for _, rec := range signature.Check(header, s.dict) {
		out.Matches = append(out.Matches, rec)
		if !report(rec) {
			out.Kind = types.OutcomeMatched
			return out
		}
	}

	res, err := pattern.NewMatcher(rs, s.chunkSize).Scan(ctx, br, report)
	out.Matches = append(out.Matches, res.Matches...)
	out.BytesScanned = res.BytesScanned
	switch {
	case err == nil:
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		out.Kind = types.OutcomeTimeout
		out.Err = err
		return out
	default:
		out.Kind = types.OutcomeIOError
		out.Err = &IOError{Path: target.Path, Err: err}
		return out
	}

	if len(out.Matches) == 0 {
		out.Kind = types.OutcomeNoMatch
	} else {
		out.Kind = types.OutcomeMatched
	}
	return out
}

func failure(err error) types.Outcome {
	if errors.Is(err, ErrInvalidArgument) {
		return types.Outcome{Kind: types.OutcomeInvalidArgument, Err: err}
	}
	return types.Outcome{Kind: types.OutcomeIOError, Err: err}
}
