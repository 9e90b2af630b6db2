// Package engine owns the scan engine lifecycle: it builds the pattern
// dictionary, installs compiled rule sets, and serializes every operation
// behind a single lock.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/shabari/shabari/internal/classifier"
	"github.com/shabari/shabari/internal/dictionary"
	"github.com/shabari/shabari/internal/logging"
	"github.com/shabari/shabari/internal/rules"
	"github.com/shabari/shabari/internal/scanner"
	"github.com/shabari/shabari/internal/telemetry"
	"github.com/shabari/shabari/internal/types"
)

// Name is the engine product name.
const Name = "Shabari Scan Engine"

// Version is set at build time via ldflags.
var Version = "1.0.0"

// VersionString is the static identifier reported by Version and carried in
// every ScanResult.
func VersionString() string { return Name + " v" + Version }

// ErrNotInitialized is returned by LoadRules before Initialize.
var ErrNotInitialized = errors.New("engine not initialized")

// State is the engine lifecycle state.
type State int

const (
	StateUninitialized State = iota
	StateInitialized
	StateRulesLoaded
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateRulesLoaded:
		return "rules-loaded"
	default:
		return "unknown"
	}
}

// RuleSetInfo describes the installed rule set.
type RuleSetInfo struct {
	Rules       int       `json:"rules"`
	Patterns    int       `json:"patterns"`
	Fingerprint string    `json:"fingerprint"`
	CompiledAt  time.Time `json:"compiled_at"`
}

// Engine is safe for concurrent use. All operations are totally ordered by
// acquisition of one mutex, held for the whole operation, scans included.
type Engine struct {
	mu      sync.Mutex
	state   State
	dict    *dictionary.Dictionary
	ruleSet *rules.RuleSet
	scanner *scanner.Scanner

	cfg     config
	log     *logrus.Entry
	metrics telemetry.Metrics
}

// New creates an uninitialized engine.
func New(opts ...Option) *Engine {
	var cfg config
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logging.Discard()
	}
	return &Engine{
		cfg:     cfg,
		log:     cfg.logger.WithField("component", "engine"),
		metrics: telemetry.New(cfg.meterProvider),
	}
}

// Initialize builds the pattern dictionary. Calling it again has no effect.
func (e *Engine) Initialize() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateUninitialized {
		return nil
	}
	dict, err := dictionary.Builtin()
	if err != nil {
		e.log.WithError(err).Error("dictionary build failed")
		return fmt.Errorf("initialize: %w", err)
	}

	s := scanner.New(dict)
	s.SetChunkSize(e.cfg.chunkSize)
	s.SetReporter(e.cfg.reporter)

	e.dict = dict
	e.scanner = s
	e.state = StateInitialized
	e.log.WithFields(logrus.Fields{
		"patterns":   dict.Len(),
		"signatures": len(dict.Signatures()),
	}).Info("engine initialized")
	return nil
}

// LoadRules compiles text and installs it, replacing any previous rule set.
// On failure the previous rule set and state are kept.
func (e *Engine) LoadRules(text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateUninitialized {
		return ErrNotInitialized
	}

	rs, err := rules.Compile(text, e.dict)
	e.metrics.RecordRuleLoad(context.Background(), err)
	if err != nil {
		e.log.WithError(err).Warn("rule load rejected")
		return err
	}

	e.ruleSet = rs
	e.state = StateRulesLoaded
	e.log.WithFields(logrus.Fields{
		"rules":       rs.Len(),
		"fingerprint": rs.Fingerprint,
	}).Info("rules loaded")
	return nil
}

// LoadRulesFile validates the rule file at path and loads its text.
func (e *Engine) LoadRulesFile(path string) error {
	text, err := rules.LoadFile(path)
	if err != nil {
		e.metrics.RecordRuleLoad(context.Background(), err)
		e.log.WithError(err).WithField("path", path).Warn("rule file rejected")
		return err
	}
	return e.LoadRules(text)
}

// ScanFile scans the file at path. The result is always well formed.
func (e *Engine) ScanFile(ctx context.Context, path string) types.ScanResult {
	return e.scan(ctx, scanner.FileTarget(path))
}

// ScanBuffer scans data. A nil slice is an invalid argument; an empty one is
// scanned as a zero-length target.
func (e *Engine) ScanBuffer(ctx context.Context, data []byte) types.ScanResult {
	return e.scan(ctx, scanner.BufferTarget(data))
}

func (e *Engine) scan(ctx context.Context, target *scanner.Target) types.ScanResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out types.Outcome
	if e.state != StateRulesLoaded {
		out = types.Outcome{Kind: types.OutcomeNotLoaded, Target: target.Name()}
	} else {
		if e.cfg.scanTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, e.cfg.scanTimeout)
			defer cancel()
		}
		out = e.scanner.Scan(ctx, target, e.ruleSet)
	}

	e.metrics.RecordScan(context.WithoutCancel(ctx), out)
	res := classifier.Classify(out, VersionString())

	entry := e.log.WithFields(logrus.Fields{
		"target":   out.Target,
		"outcome":  out.Kind.String(),
		"bytes":    out.BytesScanned,
		"duration": out.Duration,
	})
	switch {
	case res.IsSafe:
		entry.Debug("scan clean")
	case res.Category == types.CategoryMalware:
		entry.WithField("matches", len(res.MatchedRuleIDs)).Warn("malware detected")
	default:
		entry.WithError(out.Err).Error(res.Details)
	}
	return res
}

// Version returns the static engine identifier.
func (e *Engine) Version() string { return VersionString() }

// LoadedRuleCount returns the number of installed rules, or 0 when no rule
// set is loaded.
func (e *Engine) LoadedRuleCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateRulesLoaded {
		return 0
	}
	return e.ruleSet.Len()
}

// RuleSetInfo describes the installed rule set. ok is false when none is.
func (e *Engine) RuleSetInfo() (info RuleSetInfo, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateRulesLoaded {
		return RuleSetInfo{}, false
	}
	info = RuleSetInfo{
		Rules:       e.ruleSet.Len(),
		Fingerprint: e.ruleSet.Fingerprint,
		CompiledAt:  e.ruleSet.CompiledAt,
	}
	for _, r := range e.ruleSet.Rules {
		info.Patterns += len(r.Patterns)
	}
	return info, true
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Cleanup drops the rule set and dictionary and returns the engine to the
// uninitialized state. Calling it again has no effect.
func (e *Engine) Cleanup() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateUninitialized {
		return
	}
	e.ruleSet = nil
	e.dict = nil
	e.scanner = nil
	e.state = StateUninitialized
	e.log.Info("engine cleaned up")
}
