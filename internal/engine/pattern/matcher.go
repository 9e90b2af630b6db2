// Package pattern implements the textual indicator check: case-insensitive
// substring search over a stream, in bounded memory.
package pattern

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/shabari/shabari/internal/rules"
	"github.com/shabari/shabari/internal/types"
)

// DefaultChunkSize is the number of bytes read per step.
const DefaultChunkSize = 64 * 1024

// MaxChunkSize bounds the read size so the chunk buffer stays allocatable.
const MaxChunkSize = 16 << 20

// HitFunc is called for each newly matched pattern. Returning false stops
// the scan after the current record.
type HitFunc func(rec types.MatchRecord) bool

// Matcher searches a stream for every pattern bound to a rule set.
type Matcher struct {
	patterns  []rules.CompiledPattern
	needles   [][]byte
	chunkSize int
	overlap   int
}

// Result is what one pass over a stream produced.
type Result struct {
	Matches      []types.MatchRecord
	BytesScanned int64
	Stopped      bool
}

// NewMatcher creates a matcher for rs. Patterns shared by several rules are
// searched once. chunkSize <= 0 selects DefaultChunkSize; larger than
// MaxChunkSize is clamped.
func NewMatcher(rs *rules.RuleSet, chunkSize int) *Matcher {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	chunkSize = min(chunkSize, MaxChunkSize)
	m := &Matcher{chunkSize: chunkSize}
	if rs == nil {
		return m
	}
	seen := make(map[string]bool)
	for _, rule := range rs.Rules {
		for _, p := range rule.Patterns {
			id := p.Record().ID
			if seen[id] || p.Lower == "" {
				continue
			}
			seen[id] = true
			m.patterns = append(m.patterns, p)
			m.needles = append(m.needles, []byte(p.Lower))
		}
	}
	m.overlap = max(rs.MaxPatternLen()-1, 0)
	return m
}

func (m *Matcher) Name() string { return "pattern" }

// Len is the number of distinct patterns searched.
func (m *Matcher) Len() int { return len(m.patterns) }

// Scan reads r to EOF and reports every pattern found, in pattern order,
// each at most once. The tail of each chunk is carried into the next one so
// that patterns straddling a chunk boundary are still found.
//
// ctx is checked between chunks and between patterns; on cancellation the
// partial result is returned with ctx.Err().
func (m *Matcher) Scan(ctx context.Context, r io.Reader, onHit HitFunc) (Result, error) {
	var res Result
	found := make([]bool, len(m.patterns))
	buf := make([]byte, m.overlap+m.chunkSize)
	carry := 0

	for {
		if err := ctx.Err(); err != nil {
			res.Matches = m.collect(found)
			return res, err
		}

		n, err := io.ReadFull(r, buf[carry:carry+m.chunkSize])
		last := false
		switch {
		case err == nil:
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			last = true
		default:
			res.Matches = m.collect(found)
			return res, fmt.Errorf("reading target: %w", err)
		}
		res.BytesScanned += int64(n)
		lowerInPlace(buf[carry : carry+n])
		window := buf[:carry+n]

		for i, p := range m.patterns {
			if found[i] {
				continue
			}
			if err := ctx.Err(); err != nil {
				res.Matches = m.collect(found)
				return res, err
			}
			if !bytes.Contains(window, m.needles[i]) {
				continue
			}
			found[i] = true
			if onHit != nil && !onHit(p.Record()) {
				res.Matches = m.collect(found)
				res.Stopped = true
				return res, nil
			}
		}

		if last {
			break
		}
		keep := min(m.overlap, len(window))
		copy(buf, window[len(window)-keep:])
		carry = keep
	}

	res.Matches = m.collect(found)
	return res, nil
}

// ScanBytes is Scan over an in-memory buffer.
func (m *Matcher) ScanBytes(ctx context.Context, data []byte, onHit HitFunc) (Result, error) {
	return m.Scan(ctx, bytes.NewReader(data), onHit)
}

func (m *Matcher) collect(found []bool) []types.MatchRecord {
	var out []types.MatchRecord
	for i, ok := range found {
		if ok {
			out = append(out, m.patterns[i].Record())
		}
	}
	return out
}

// lowerInPlace folds A-Z only. Non-ASCII bytes are binary content and are
// left as they are.
func lowerInPlace(b []byte) {
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + 'a' - 'A'
		}
	}
}
