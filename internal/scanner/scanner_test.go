package scanner_test

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shabari/shabari/internal/dictionary"
	"github.com/shabari/shabari/internal/engine/pattern"
	"github.com/shabari/shabari/internal/rules"
	"github.com/shabari/shabari/internal/scanner"
	"github.com/shabari/shabari/internal/types"
	"github.com/stretchr/testify/require"
)

func setupScanner(t *testing.T) (*scanner.Scanner, *rules.RuleSet) {
	t.Helper()
	dict, err := dictionary.Builtin()
	require.NoError(t, err)
	rs, err := rules.Compile("rule test { condition: true }", dict)
	require.NoError(t, err)
	return scanner.New(dict), rs
}

func ids(recs []types.MatchRecord) []string {
	var out []string
	for _, r := range recs {
		out = append(out, r.ID)
	}
	return out
}

func TestScanBufferNoMatch(t *testing.T) {
	s, rs := setupScanner(t)

	out := s.Scan(context.Background(), scanner.BufferTarget([]byte("hello world")), rs)
	require.Equal(t, scanner.OutcomeNoMatch, out.Kind)
	require.Empty(t, out.Matches)
	require.Equal(t, int64(11), out.BytesScanned)
	require.Equal(t, "<buffer>", out.Target)
}

func TestScanBufferEmpty(t *testing.T) {
	s, rs := setupScanner(t)

	out := s.Scan(context.Background(), scanner.BufferTarget([]byte{}), rs)
	require.Equal(t, scanner.OutcomeNoMatch, out.Kind)
	require.Zero(t, out.BytesScanned)
}

func TestScanBufferNil(t *testing.T) {
	s, rs := setupScanner(t)

	out := s.Scan(context.Background(), scanner.BufferTarget(nil), rs)
	require.Equal(t, scanner.OutcomeInvalidArgument, out.Kind)
	require.ErrorIs(t, out.Err, scanner.ErrInvalidArgument)
}

func TestScanTextualMatches(t *testing.T) {
	s, rs := setupScanner(t)

	out := s.Scan(context.Background(), scanner.BufferTarget([]byte("this is a TROJAN dropping WannaCry")), rs)
	require.Equal(t, scanner.OutcomeMatched, out.Kind)
	require.Equal(t, []string{"trojan", "HIGH_RISK:WannaCry"}, ids(out.Matches))
}

func TestScanHeaderSignature(t *testing.T) {
	s, rs := setupScanner(t)

	out := s.Scan(context.Background(), scanner.BufferTarget([]byte{0x4D, 0x5A, 0x90, 0x00}), rs)
	require.Equal(t, scanner.OutcomeMatched, out.Kind)
	require.Equal(t, []string{"SIGNATURE:pe_executable"}, ids(out.Matches))

	out = s.Scan(context.Background(), scanner.BufferTarget([]byte("PK\x03\x04\x14\x00")), rs)
	require.Equal(t, scanner.OutcomeMatched, out.Kind)
	require.Equal(t, "SIGNATURE:zip_archive", out.Matches[0].ID)
	require.Equal(t, "application/zip", out.FileType)
}

func TestScanShortHeaderIgnored(t *testing.T) {
	s, rs := setupScanner(t)

	out := s.Scan(context.Background(), scanner.BufferTarget([]byte("MZ")), rs)
	require.Equal(t, scanner.OutcomeNoMatch, out.Kind)
}

func TestScanFile(t *testing.T) {
	s, rs := setupScanner(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "dropper.txt")
	require.NoError(t, os.WriteFile(path, []byte("calls CreateRemoteThread then VirtualAllocEx"), 0644))

	out := s.Scan(context.Background(), scanner.FileTarget(path), rs)
	require.Equal(t, scanner.OutcomeMatched, out.Kind)
	require.Equal(t, []string{"CreateRemoteThread", "VirtualAllocEx"}, ids(out.Matches))
	require.Equal(t, path, out.Target)
}

func TestScanFileMissing(t *testing.T) {
	s, rs := setupScanner(t)

	out := s.Scan(context.Background(), scanner.FileTarget(filepath.Join(t.TempDir(), "nope")), rs)
	require.Equal(t, scanner.OutcomeIOError, out.Kind)
	var ioErr *scanner.IOError
	require.True(t, errors.As(out.Err, &ioErr))
	require.True(t, ioErr.NotFound)
}

func TestScanLargeFileStraddlingChunks(t *testing.T) {
	s, rs := setupScanner(t)
	s.SetChunkSize(1024)

	var buf bytes.Buffer
	buf.WriteString(strings.Repeat("=", 1020))
	buf.WriteString("KeyLogger")
	buf.WriteString(strings.Repeat("=", 5000))
	path := filepath.Join(t.TempDir(), "big.dat")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))

	out := s.Scan(context.Background(), scanner.FileTarget(path), rs)
	require.Equal(t, scanner.OutcomeMatched, out.Kind)
	require.Equal(t, []string{"keylogger"}, ids(out.Matches))
	require.Equal(t, int64(buf.Len()), out.BytesScanned)
}

func TestSetChunkSizeBounds(t *testing.T) {
	s, rs := setupScanner(t)

	s.SetChunkSize(0)
	require.Equal(t, pattern.DefaultChunkSize, s.ChunkSize())

	s.SetChunkSize(math.MaxInt)
	require.Equal(t, pattern.MaxChunkSize, s.ChunkSize())

	out := s.Scan(context.Background(), scanner.BufferTarget([]byte("hello trojan")), rs)
	require.Equal(t, scanner.OutcomeMatched, out.Kind)
	require.Equal(t, []string{"trojan"}, ids(out.Matches))
}

func TestScanWithoutRules(t *testing.T) {
	s, _ := setupScanner(t)

	out := s.Scan(context.Background(), scanner.BufferTarget([]byte("virus")), nil)
	require.Equal(t, scanner.OutcomeNotLoaded, out.Kind)
}

func TestScanDeadline(t *testing.T) {
	s, rs := setupScanner(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	out := s.Scan(ctx, scanner.BufferTarget([]byte("virus")), rs)
	require.Equal(t, scanner.OutcomeTimeout, out.Kind)
	require.ErrorIs(t, out.Err, context.DeadlineExceeded)
}

func TestScanReporterOncePerScan(t *testing.T) {
	s, rs := setupScanner(t)

	var calls []string
	s.SetReporter(scanner.ReporterFunc(func(ruleID string, first types.MatchRecord) scanner.ReportAction {
		calls = append(calls, ruleID+"|"+first.ID)
		return scanner.ReportContinue
	}))

	out := s.Scan(context.Background(), scanner.BufferTarget([]byte("MZ\x90\x00 virus worm zeus")), rs)
	require.Equal(t, scanner.OutcomeMatched, out.Kind)
	require.False(t, out.Aborted)
	require.Equal(t, []string{"malware_detected|SIGNATURE:pe_executable"}, calls)
	require.Equal(t, []string{"SIGNATURE:pe_executable", "virus", "worm", "HIGH_RISK:zeus"}, ids(out.Matches))

	calls = nil
	out = s.Scan(context.Background(), scanner.BufferTarget([]byte("nothing to see")), rs)
	require.Equal(t, scanner.OutcomeNoMatch, out.Kind)
	require.Empty(t, calls)
}

func TestScanReporterAbort(t *testing.T) {
	s, rs := setupScanner(t)
	s.SetReporter(scanner.ReporterFunc(func(string, types.MatchRecord) scanner.ReportAction {
		return scanner.ReportAbort
	}))

	out := s.Scan(context.Background(), scanner.BufferTarget([]byte("virus worm zeus")), rs)
	require.Equal(t, scanner.OutcomeMatched, out.Kind)
	require.True(t, out.Aborted)
	require.Equal(t, []string{"virus"}, ids(out.Matches))
}
