package commands

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/shabari/shabari/internal/logging"
	"github.com/shabari/shabari/internal/rules"
)

// execute runs the root command with fresh flag state and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out, _, err := executeWithStderr(t, args...)
	return out, err
}

func executeWithStderr(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	resetFlags()

	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)
	defer rootCmd.SetOut(nil)
	defer rootCmd.SetErr(nil)

	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func resetFlags() {
	flagFormat, flagOutput, flagRules = "terminal", "", ""
	flagWorkers, flagNoColor = 0, true
	flagLogLevel, flagLogFormat = "warn", "text"
	flagFailOn, flagVerbose, flagTimeout, flagChunkSize = "", false, 0, 0
	flagNoDefault, flagIgnore, flagShowProgress = false, nil, false
	flagTier, flagHook, flagCIOnly = "", false, false

	unset := func(f *pflag.Flag) { f.Changed = false }
	rootCmd.PersistentFlags().VisitAll(unset)
	for _, c := range rootCmd.Commands() {
		c.Flags().VisitAll(unset)
	}
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

type jsonReport struct {
	RulesLoaded int `json:"rules_loaded"`
	Summary     struct {
		Targets int `json:"targets"`
		Safe    int `json:"safe"`
		Malware int `json:"malware"`
		Errors  int `json:"errors"`
	} `json:"summary"`
	Results []struct {
		IsSafe         bool     `json:"is_safe"`
		ThreatName     string   `json:"threat_name"`
		MatchedRuleIDs []string `json:"matched_rule_ids"`
		Target         string   `json:"target"`
	} `json:"results"`
}

func TestScanDirectoryJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "clean.txt", []byte("12345 67890"))
	writeFile(t, dir, "payload.bin", append([]byte("MZ\x90\x00"), []byte("CreateRemoteThread")...))

	out, err := execute(t, "scan", dir, "--format", "json", "--workers", "2")
	require.NoError(t, err)

	var rep jsonReport
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	require.Equal(t, 1, rep.RulesLoaded)
	require.Equal(t, 2, rep.Summary.Targets)
	require.Equal(t, 1, rep.Summary.Safe)
	require.Equal(t, 1, rep.Summary.Malware)

	byTarget := map[string]bool{}
	for _, r := range rep.Results {
		byTarget[r.Target] = r.IsSafe
		if r.Target == "payload.bin" {
			require.Equal(t, "Malware.Generic", r.ThreatName)
			require.Equal(t, []string{"SIGNATURE:pe_executable", "CreateRemoteThread"}, r.MatchedRuleIDs)
		}
	}
	require.Equal(t, map[string]bool{"clean.txt": true, "payload.bin": false}, byTarget)
}

func TestScanFailOnMalware(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "dropper.js", []byte("new ActiveX; WriteProcessMemory"))

	_, err := execute(t, "scan", path, "--format", "json", "--fail-on", "malware")
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrThreshold))
}

func TestScanFailOnErrorMissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.bin")

	out, err := execute(t, "scan", missing, "--format", "json", "--fail-on", "error")
	require.ErrorIs(t, err, ErrThreshold)

	var rep jsonReport
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	require.Equal(t, 1, rep.Summary.Errors)
	require.Equal(t, "Scan Error", rep.Results[0].ThreatName)
}

func TestScanCleanPassesFailOn(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "notes.txt", []byte("12345 67890"))

	_, err := execute(t, "scan", dir, "--format", "json", "--fail-on", "any")
	require.NoError(t, err)
}

func TestScanInvalidFailOn(t *testing.T) {
	_, err := execute(t, "scan", t.TempDir(), "--fail-on", "critical")
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid --fail-on")
}

func TestScanNoRulesReportsEngineError(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.txt", []byte("malware"))

	out, err := execute(t, "scan", path, "--format", "json", "--no-default-rules")
	require.NoError(t, err)

	var rep jsonReport
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	require.Equal(t, 0, rep.RulesLoaded)
	require.Equal(t, "Engine Error", rep.Results[0].ThreatName)
}

func TestScanConfigFileSetsFormat(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".shabari.yml", []byte("format: json\nfail_on: malware\nignore:\n  - \".shabari.yml\"\n"))
	writeFile(t, dir, "zeus.txt", []byte("ZeUs panel"))

	out, err := execute(t, "scan", dir)
	require.ErrorIs(t, err, ErrThreshold)

	var rep jsonReport
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	require.Equal(t, 1, rep.Summary.Targets)
	require.Equal(t, 1, rep.Summary.Malware)
}

func TestScanChunkSizeTooLarge(t *testing.T) {
	_, err := execute(t, "scan", t.TempDir(), "--chunk-size", "9223372036854775807")
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid --chunk-size")
}

func TestScanConfigChunkSizeTooLarge(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".shabari.yml", []byte("chunk_size: 9223372036854775807\n"))
	writeFile(t, dir, "a.txt", []byte("12345"))

	// An invalid config file is ignored with a warning; the scan proceeds.
	out, err := execute(t, "scan", filepath.Join(dir, "a.txt"), "--format", "json")
	require.NoError(t, err)

	var rep jsonReport
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	require.Equal(t, 1, rep.Summary.Safe)
}

func TestScanConfigLogLevel(t *testing.T) {
	t.Setenv(logging.EnvLevel, "")
	dir := t.TempDir()
	writeFile(t, dir, ".shabari.yml", []byte("log_level: debug\nignore:\n  - \".shabari.yml\"\n"))
	writeFile(t, dir, "a.txt", []byte("12345"))

	_, stderr, err := executeWithStderr(t, "scan", dir, "--format", "json")
	require.NoError(t, err)
	require.Contains(t, stderr, "level=debug")
	require.Contains(t, stderr, "targets collected")
}

func TestScanLogLevelFlagBeatsConfig(t *testing.T) {
	t.Setenv(logging.EnvLevel, "")
	dir := t.TempDir()
	writeFile(t, dir, ".shabari.yml", []byte("log_level: debug\n"))

	_, stderr, err := executeWithStderr(t, "scan", dir, "--format", "json", "--log-level", "error")
	require.NoError(t, err)
	require.NotContains(t, stderr, "targets collected")
}

func TestLogLevelFlagBeatsEnv(t *testing.T) {
	t.Setenv(logging.EnvLevel, "error")
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", []byte("12345"))

	_, stderr, err := executeWithStderr(t, "scan", dir, "--format", "json", "--log-level", "debug")
	require.NoError(t, err)
	require.Contains(t, stderr, "targets collected")
}

func TestScanCustomRulesFile(t *testing.T) {
	dir := t.TempDir()
	ruleFile := writeFile(t, dir, "custom.yar", []byte("rule Custom_One {\n  condition:\n    true\n}\n"))
	target := writeFile(t, dir, "sample.bin", []byte("\x7fELF\x02\x01"))

	out, err := execute(t, "scan", target, "--rules", ruleFile, "--format", "json")
	require.NoError(t, err)

	var rep jsonReport
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	require.False(t, rep.Results[0].IsSafe)
}

func TestScanBadRulesFile(t *testing.T) {
	dir := t.TempDir()
	ruleFile := writeFile(t, dir, "broken.yar", []byte("not a rule"))

	_, err := execute(t, "scan", dir, "--rules", ruleFile)
	require.ErrorIs(t, err, rules.ErrSyntax)
}

func TestScanOutputFile(t *testing.T) {
	dir := t.TempDir()
	target := writeFile(t, dir, "x.txt", []byte("12345"))
	outPath := filepath.Join(t.TempDir(), "report.sarif")

	out, err := execute(t, "scan", target, "--format", "sarif", "--output", outPath)
	require.NoError(t, err)
	require.Empty(t, out)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	require.Contains(t, string(data), `"version": "2.1.0"`)
}

func TestListPatterns(t *testing.T) {
	out, err := execute(t, "list-patterns")
	require.NoError(t, err)
	require.Contains(t, out, "CreateRemoteThread")
	require.Contains(t, out, "HIGH_RISK:zeus")
	require.Contains(t, out, "SIGNATURE:pe_executable")
	require.Contains(t, out, "indicators")
}

func TestListPatternsTierJSON(t *testing.T) {
	out, err := execute(t, "list-patterns", "--tier", "signature", "--format", "json")
	require.NoError(t, err)

	var infos []patternInfo
	require.NoError(t, json.Unmarshal([]byte(out), &infos))
	require.Len(t, infos, 3)
	for _, p := range infos {
		require.Equal(t, "signature", p.Tier)
	}
}

func TestListPatternsBadTier(t *testing.T) {
	_, err := execute(t, "list-patterns", "--tier", "critical")
	require.Error(t, err)
}

func TestExplainSignature(t *testing.T) {
	out, err := execute(t, "explain", "signature:PE_EXECUTABLE")
	require.NoError(t, err)
	require.Contains(t, out, "SIGNATURE:pe_executable")
	require.Contains(t, out, "4d5a")
}

func TestExplainHighRiskJSON(t *testing.T) {
	out, err := execute(t, "explain", "HIGH_RISK:Zeus", "--format", "json")
	require.NoError(t, err)

	var info explainInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	require.Equal(t, "HIGH_RISK:zeus", info.ID)
	require.Equal(t, "high-risk", info.Tier)
	require.Nil(t, info.Offset)
}

func TestExplainUnknown(t *testing.T) {
	_, err := execute(t, "explain", "NOT_A_THING")
	require.Error(t, err)
	require.Contains(t, err.Error(), "not found")
}

func TestRulesValidate(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "two.yar", []byte("rule A_One {\n condition: true\n}\nrule B_Two {\n condition: true\n}\n"))

	out, err := execute(t, "rules", "validate", path, "--format", "json")
	require.NoError(t, err)

	var info validateInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	require.Equal(t, []string{"A_One", "B_Two"}, info.Declared)
	require.Equal(t, "default_malware_rule", info.Compiled)
	require.Positive(t, info.Patterns)
	require.NotEmpty(t, info.Fingerprint)
}

func TestRulesValidateRejects(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "bad.yar", []byte("rule Broken {\n condition: true\n"))

	_, err := execute(t, "rules", "validate", path)
	require.ErrorIs(t, err, rules.ErrSyntax)
}

func TestRulesDefault(t *testing.T) {
	out, err := execute(t, "rules", "default")
	require.NoError(t, err)
	require.Contains(t, out, "rule Android_Banking_Trojan")
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	require.Contains(t, out, "shabari dev")
	require.Contains(t, out, "Shabari Scan Engine v")
}

func TestInvalidLogLevel(t *testing.T) {
	_, err := execute(t, "version", "--log-level", "loud")
	require.Error(t, err)
}

func TestInitCreatesFiles(t *testing.T) {
	dir := t.TempDir()

	_, err := execute(t, "init", dir)
	require.NoError(t, err)

	for _, name := range []string{
		".shabari.yml",
		".shabariignore",
		filepath.Join(".github", "workflows", "shabari.yml"),
	} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err, "expected %s to exist", name)
		require.NotEmpty(t, data)
	}
}

func TestInitSkipsExisting(t *testing.T) {
	dir := t.TempDir()
	existing := writeFile(t, dir, ".shabari.yml", []byte("format: json\n"))

	out, err := execute(t, "init", dir)
	require.NoError(t, err)
	require.Contains(t, out, "skip")

	data, err := os.ReadFile(existing)
	require.NoError(t, err)
	require.Equal(t, "format: json\n", string(data))
}

func TestInitConfigTemplateLoads(t *testing.T) {
	dir := t.TempDir()
	_, err := execute(t, "init", dir)
	require.NoError(t, err)

	_, err = execute(t, "scan", dir, "--format", "json")
	require.NoError(t, err)
}

func TestInitHookRequiresGit(t *testing.T) {
	_, err := execute(t, "init", t.TempDir(), "--hook")
	require.Error(t, err)
	require.Contains(t, err.Error(), "no .git directory")
}

func TestInitHook(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".git"), 0o755))

	_, err := execute(t, "init", dir, "--hook")
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(dir, ".git", "hooks", "pre-commit"))
	require.NoError(t, err)
	require.NotZero(t, info.Mode()&0o100)
}
