package commands

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/shabari/shabari/internal/logging"
)

var (
	flagFormat    string
	flagOutput    string
	flagWorkers   int
	flagRules     string
	flagNoColor   bool
	flagLogLevel  string
	flagLogFormat string
)

// logger is built from --log-level/--log-format before any command runs.
var logger = logging.Discard()

var rootCmd = &cobra.Command{
	Use:   "shabari",
	Short: "Malware signature scanner for files and binaries",
	Long: `Shabari scans files for known malware indicators: suspicious API names,
ransomware and RAT family names, autorun registry keys, and executable or
archive headers.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := logging.FromEnv(logging.Settings{
			Level:     flagLogLevel,
			Format:    flagLogFormat,
			LevelSet:  cmd.Flags().Changed("log-level"),
			FormatSet: cmd.Flags().Changed("log-format"),
		}, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "terminal", "Output format (terminal, json, sarif, markdown)")
	rootCmd.PersistentFlags().StringVarP(&flagOutput, "output", "o", "", "Output file path (default: stdout)")
	rootCmd.PersistentFlags().IntVar(&flagWorkers, "workers", 0, "Number of concurrent scans (default: NumCPU)")
	rootCmd.PersistentFlags().StringVar(&flagRules, "rules", "", "Rule file to load instead of the built-in rules")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func componentLog(name string) *logrus.Entry {
	return logger.WithField("component", name)
}
