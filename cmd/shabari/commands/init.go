package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	flagHook   bool
	flagCIOnly bool
)

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Create Shabari configuration files",
	Long:  `Scaffolds .shabari.yml, .shabariignore, and a GitHub Actions workflow that scans uploads and release artifacts.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runInit,
}

func init() {
	initCmd.Flags().BoolVar(&flagHook, "hook", false, "Create a git pre-commit hook that runs shabari")
	initCmd.Flags().BoolVar(&flagCIOnly, "ci", false, "Only generate the GitHub Actions workflow")
	rootCmd.AddCommand(initCmd)
}

type scaffoldFile struct {
	path    string
	content string
	mode    os.FileMode
}

func runInit(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	w := cmd.OutOrStdout()

	workflow := scaffoldFile{filepath.Join(dir, ".github", "workflows", "shabari.yml"), workflowTemplate, 0o644}
	switch {
	case flagHook:
		gitDir := filepath.Join(dir, ".git")
		if _, err := os.Stat(gitDir); os.IsNotExist(err) {
			return fmt.Errorf("no .git directory found in %s (is this a git repository?)", dir)
		}
		return writeScaffold(w, scaffoldFile{filepath.Join(gitDir, "hooks", "pre-commit"), preCommitTemplate, 0o755})
	case flagCIOnly:
		return writeScaffold(w, workflow)
	}

	return writeScaffold(w,
		scaffoldFile{filepath.Join(dir, ".shabari.yml"), configTemplate, 0o644},
		scaffoldFile{filepath.Join(dir, ".shabariignore"), ignoreTemplate, 0o644},
		workflow,
	)
}

// writeScaffold creates each file that does not exist yet.
func writeScaffold(w io.Writer, files ...scaffoldFile) error {
	for _, f := range files {
		if _, err := os.Stat(f.path); err == nil {
			fmt.Fprintf(w, "  skip %s (already exists)\n", f.path)
			continue
		}
		if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
			return fmt.Errorf("creating directory for %s: %w", f.path, err)
		}
		if err := os.WriteFile(f.path, []byte(f.content), f.mode); err != nil {
			return fmt.Errorf("writing %s: %w", f.path, err)
		}
		fmt.Fprintf(w, "  create %s\n", f.path)
	}
	return nil
}

const configTemplate = `# Shabari malware scanner configuration

# Rule file to load instead of the built-in rules
# rules: rules/custom.yar

# Load the built-in rules when no rule file is set
default_rules: true

# Paths to skip in directory scans (see also .shabariignore)
ignore:
  - ".git/"
  - "node_modules/"

# Output format: terminal, json, sarif, markdown
format: terminal

# Exit with code 1 on: any, malware, error
# fail_on: malware

# Per-target scan timeout
# timeout: 30s

# Read chunk size in bytes and number of concurrent scans
# chunk_size: 65536
# workers: 4
`

const ignoreTemplate = `# Shabari ignore patterns
# Files matching these patterns are skipped in directory scans

# Version control and dependencies
.git/
node_modules/
vendor/

# Logs and temp
*.log
tmp/
`

const preCommitTemplate = `#!/bin/sh
# Shabari pre-commit hook
echo "Running Shabari malware scan..."
shabari scan . --fail-on malware --no-color
exit $?
`

const workflowTemplate = `name: Shabari Malware Scan

on:
  push:
    branches: [main]
  pull_request:
    branches: [main]

permissions:
  security-events: write
  contents: read

jobs:
  shabari:
    runs-on: ubuntu-latest
    steps:
      - uses: actions/checkout@v4

      - uses: actions/setup-go@v5
        with:
          go-version: stable

      - name: Install Shabari
        run: go install github.com/shabari/shabari/cmd/shabari@latest

      - name: Run Shabari scan
        run: shabari scan . --format sarif --output results.sarif --fail-on malware

      - name: Upload SARIF results
        if: always()
        uses: github/codeql-action/upload-sarif@v3
        with:
          sarif_file: results.sarif
`
