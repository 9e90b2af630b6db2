// Package shabari provides the malware signature scan engine as a library.
//
// The package-level functions operate on a process-wide default engine and
// mirror the host adapter contract: they never panic, report rule loading
// as a bool, and always return a fully populated ScanResult. Use NewEngine
// for an isolated instance with its own options.
//
// This is the library entry point. For the CLI tool, see cmd/shabari/.
package shabari

import (
	"context"
	"sync"

	"github.com/shabari/shabari/internal/engine"
	"github.com/shabari/shabari/internal/rules"
	"github.com/shabari/shabari/internal/scanner"
	"github.com/shabari/shabari/internal/types"
)

// Re-export core types from internal packages so consumers don't need to
// import them.
type (
	Engine       = engine.Engine
	State        = engine.State
	RuleSetInfo  = engine.RuleSetInfo
	Severity     = types.Severity
	ScanResult   = types.ScanResult
	MatchRecord  = types.MatchRecord
	Reporter     = scanner.Reporter
	ReporterFunc = scanner.ReporterFunc
	ReportAction = scanner.ReportAction
)

const (
	SeveritySafe   = types.SeveritySafe
	SeverityMedium = types.SeverityMedium
	SeverityHigh   = types.SeverityHigh

	StateUninitialized = engine.StateUninitialized
	StateInitialized   = engine.StateInitialized
	StateRulesLoaded   = engine.StateRulesLoaded

	ReportContinue = scanner.ReportContinue
	ReportAbort    = scanner.ReportAbort

	// MatchRuleID is the rule identifier handed to a Reporter.
	MatchRuleID = scanner.MatchRuleID
)

var (
	ErrNotInitialized = engine.ErrNotInitialized
	ErrSyntax         = rules.ErrSyntax
)

// NewEngine creates an uninitialized engine.
func NewEngine(opts ...Option) *Engine {
	return engine.New(opts...)
}

var defaultEngine = sync.OnceValue(func() *Engine { return engine.New() })

// Default returns the process-wide engine behind the package-level functions.
func Default() *Engine { return defaultEngine() }

// Initialize prepares the default engine. It is idempotent.
func Initialize() bool {
	return Default().Initialize() == nil
}

// LoadRules compiles and installs text on the default engine. It fails on
// empty text or before Initialize; the previous rule set is then kept.
func LoadRules(text string) bool {
	return Default().LoadRules(text) == nil
}

// ScanFile scans the file at path with the default engine.
func ScanFile(path string) ScanResult {
	return Default().ScanFile(context.Background(), path)
}

// ScanBuffer scans data with the default engine.
func ScanBuffer(data []byte) ScanResult {
	return Default().ScanBuffer(context.Background(), data)
}

// GetVersion returns the static engine identifier.
func GetVersion() string {
	return engine.VersionString()
}

// GetLoadedRuleCount returns the number of rules installed on the default
// engine, 0 if none.
func GetLoadedRuleCount() int {
	return Default().LoadedRuleCount()
}

// Cleanup releases all default engine state. It is idempotent.
func Cleanup() {
	Default().Cleanup()
}

// DefaultRules returns the built-in rule text hosts load after Initialize.
func DefaultRules() (string, error) {
	return rules.DefaultRules()
}
