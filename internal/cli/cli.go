// Package cli implements the graphsdk command-line interface.
//
// The CLI exposes utilities around the graph SDK: generating graph key
// pairs, decoding serialized keys and pages, and running chain
// simulations that exercise import, churn and export end to end. It is
// built on cobra with charmbracelet/log for verbose logging.
package cli

import (
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/dsnplabs/graphsdk/pkg/buildinfo"
)

// appName is the application name used for directories and display.
const appName = "graphsdk"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands
// registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "graphsdk manages DSNP social graphs",
		Long:         `graphsdk is a toolbox around the DSNP social graph SDK: generate graph key pairs, decode serialized keys and pages, and run chain simulations that exercise the import, update and export paths end to end.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())

	root.AddCommand(c.keygenCommand())
	root.AddCommand(c.inspectCommand())
	root.AddCommand(c.simulateCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// runDir returns the simulation run directory using the XDG config
// convention (~/.config/graphsdk/runs).
func runDir() (string, error) {
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, appName, "runs"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName, "runs"), nil
}
