package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/shabari/shabari/internal/config"
	"github.com/shabari/shabari/internal/engine"
	"github.com/shabari/shabari/internal/engine/pattern"
	"github.com/shabari/shabari/internal/logging"
	"github.com/shabari/shabari/internal/output"
	"github.com/shabari/shabari/internal/scanner"
	"github.com/shabari/shabari/internal/types"
)

// ErrThreshold is returned when scan results meet the --fail-on condition.
var ErrThreshold = errors.New("fail-on threshold reached")

var (
	flagFailOn       string
	flagVerbose      bool
	flagTimeout      time.Duration
	flagChunkSize    int
	flagNoDefault    bool
	flagIgnore       []string
	flagShowProgress bool
)

var scanCmd = &cobra.Command{
	Use:   "scan <path>...",
	Short: "Scan files or directories for malware indicators",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runScan,
}

func init() {
	scanCmd.Flags().StringVar(&flagFailOn, "fail-on", "", "Exit with code 1 on: any (malware or error), malware, error")
	scanCmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "List clean targets and matched indicators")
	scanCmd.Flags().DurationVar(&flagTimeout, "timeout", 0, "Per-target scan timeout (0 disables)")
	scanCmd.Flags().IntVar(&flagChunkSize, "chunk-size", 0, "Read chunk size in bytes (default 64 KiB)")
	scanCmd.Flags().BoolVar(&flagNoDefault, "no-default-rules", false, "Do not load the built-in rules when --rules is unset")
	scanCmd.Flags().StringSliceVar(&flagIgnore, "ignore", nil, "Extra ignore patterns for directory scans")
	scanCmd.Flags().BoolVar(&flagShowProgress, "progress", true, "Show a progress spinner on an interactive terminal")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	log := componentLog("scan")
	cfg := loadScanConfig(cmd, args[0])

	formatter, err := output.New(flagFormat, flagNoColor || os.Getenv("NO_COLOR") != "", flagVerbose)
	if err != nil {
		return err
	}
	if !validFailOn(flagFailOn) {
		return fmt.Errorf("invalid --fail-on %q (valid: any, malware, error)", flagFailOn)
	}
	if flagChunkSize < 0 || flagChunkSize > pattern.MaxChunkSize {
		return fmt.Errorf("invalid --chunk-size %d (valid: 0 to %d)", flagChunkSize, pattern.MaxChunkSize)
	}

	targets, err := collectTargets(args, append(cfg.Ignore, flagIgnore...))
	if err != nil {
		return err
	}
	log.WithField("targets", len(targets)).Debug("targets collected")

	workers := flagWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, max(len(targets), 1))

	pool, err := newEnginePool(workers, cfg)
	if err != nil {
		return err
	}
	defer pool.cleanup()

	ctx, cancel := contextWithInterrupt()
	defer cancel()

	var progress *output.Spinner
	if flagShowProgress && isTerminal(os.Stderr) && flagOutput == "" {
		progress = output.NewSpinner(cmd.ErrOrStderr())
		progress.Start("scanning", len(targets))
		defer progress.Stop()
	}

	start := time.Now()
	results := make([]types.ScanResult, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, t := range targets {
		g.Go(func() error {
			eng := pool.acquire()
			defer pool.release(eng)
			results[i] = eng.ScanFile(gctx, t.Path)
			results[i].Target = t.Name()
			if progress != nil {
				progress.Advance()
			}
			return nil
		})
	}
	_ = g.Wait()
	if progress != nil {
		progress.Stop()
	}

	info, _ := pool.info()
	report := &output.Report{
		Target:          targetLabel(args),
		Engine:          engine.VersionString(),
		RulesLoaded:     info.Rules,
		RuleFingerprint: info.Fingerprint,
		Results:         results,
		Duration:        time.Since(start),
	}
	if err := writeOutput(cmd.OutOrStdout(), formatter, report); err != nil {
		return err
	}
	return checkFailOnThreshold(report)
}

// loadScanConfig merges .shabari.yml into flags the user did not set.
func loadScanConfig(cmd *cobra.Command, targetPath string) config.Config {
	cfg, err := config.Load(targetPath)
	if err != nil {
		componentLog("config").WithError(err).Warn("ignoring config file")
		cfg = config.Config{}
	}
	flags := cmd.Flags()
	if !flags.Changed("format") && cfg.Format != "" {
		flagFormat = cfg.Format
	}
	if !flags.Changed("fail-on") && cfg.FailOn != "" {
		flagFailOn = cfg.FailOn
	}
	if !flags.Changed("rules") && cfg.Rules != "" {
		flagRules = cfg.Rules
	}
	if !flags.Changed("workers") && cfg.Workers > 0 {
		flagWorkers = cfg.Workers
	}
	if !flags.Changed("timeout") && cfg.Timeout > 0 {
		flagTimeout = time.Duration(cfg.Timeout)
	}
	if !flags.Changed("chunk-size") && cfg.ChunkSize > 0 {
		flagChunkSize = cfg.ChunkSize
	}
	if !flags.Changed("no-default-rules") && !cfg.UseDefaultRules() {
		flagNoDefault = true
	}
	// SHABARI_LOG_LEVEL and --log-level both outrank the config file.
	if !flags.Changed("log-level") && os.Getenv(logging.EnvLevel) == "" && cfg.LogLevel != "" {
		if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
			logger.SetLevel(lvl)
		}
	}
	return cfg
}

func validFailOn(v string) bool {
	switch v {
	case "", config.FailOnAny, config.FailOnMalware, config.FailOnError:
		return true
	}
	return false
}

// collectTargets expands directory arguments into their files. File
// arguments, including missing ones, are scanned as given so that errors
// are reported per target.
func collectTargets(paths []string, ignore []string) ([]*scanner.Target, error) {
	var targets []*scanner.Target
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil || !info.IsDir() {
			targets = append(targets, scanner.FileTarget(p))
			continue
		}
		td := &scanner.TargetDiscovery{IgnorePatterns: ignore}
		found, err := td.Discover(p)
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", p, err)
		}
		targets = append(targets, found...)
	}
	return targets, nil
}

func targetLabel(args []string) string {
	if len(args) == 1 {
		return args[0]
	}
	return fmt.Sprintf("%d paths", len(args))
}

// enginePool hands out initialized engines, one per worker. Each engine
// serializes its own scans, so parallelism comes from the pool size.
type enginePool struct {
	engines []*engine.Engine
	free    chan *engine.Engine
}

func newEnginePool(size int, cfg config.Config) (*enginePool, error) {
	opts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithScanTimeout(flagTimeout),
		engine.WithChunkSize(flagChunkSize),
	}
	p := &enginePool{free: make(chan *engine.Engine, size)}
	for range size {
		eng := engine.New(opts...)
		if err := eng.Initialize(); err != nil {
			p.cleanup()
			return nil, err
		}
		if err := loadRules(eng, cfg); err != nil {
			p.cleanup()
			return nil, err
		}
		p.engines = append(p.engines, eng)
		p.free <- eng
	}
	return p, nil
}

func loadRules(eng *engine.Engine, cfg config.Config) error {
	switch {
	case flagRules != "":
		if err := eng.LoadRulesFile(flagRules); err != nil {
			return fmt.Errorf("loading rules: %w", err)
		}
	case !flagNoDefault && cfg.UseDefaultRules():
		text, err := defaultRuleText()
		if err != nil {
			return err
		}
		if err := eng.LoadRules(text); err != nil {
			return fmt.Errorf("loading built-in rules: %w", err)
		}
	}
	return nil
}

func (p *enginePool) acquire() *engine.Engine  { return <-p.free }
func (p *enginePool) release(e *engine.Engine) { p.free <- e }

func (p *enginePool) info() (engine.RuleSetInfo, bool) {
	if len(p.engines) == 0 {
		return engine.RuleSetInfo{}, false
	}
	return p.engines[0].RuleSetInfo()
}

func (p *enginePool) cleanup() {
	for _, e := range p.engines {
		e.Cleanup()
	}
}

func contextWithInterrupt() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}

func writeOutput(stdout io.Writer, formatter output.Formatter, report *output.Report) error {
	output.ToolVersion = Version

	w := stdout
	if flagOutput != "" {
		f, err := os.Create(flagOutput)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer func() { _ = f.Close() }()
		w = f
	}
	return formatter.Format(w, report)
}

// checkFailOnThreshold returns ErrThreshold when the report meets --fail-on.
func checkFailOnThreshold(report *output.Report) error {
	s := report.Summary()
	var hit bool
	switch flagFailOn {
	case config.FailOnAny:
		hit = s.Malware > 0 || s.Errors > 0
	case config.FailOnMalware:
		hit = s.Malware > 0
	case config.FailOnError:
		hit = s.Errors > 0
	}
	if hit {
		return fmt.Errorf("%w: %d malware, %d errors", ErrThreshold, s.Malware, s.Errors)
	}
	return nil
}
