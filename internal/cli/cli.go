// Package cli implements the heatgrid command-line interface.
//
// This package provides commands for building routable street graphs,
// planning district heating networks end to end, and managing the local
// result cache. The CLI is built using cobra and supports verbose
// logging via the charmbracelet/log library.
//
// # Commands
//
// The main commands are:
//   - plan: Run the full pipeline from street and building data
//   - graph: Build and export the street graph only
//   - optimize: Re-run the convergence optimizer on a saved network
//   - cache: Manage the local result cache
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. Loggers
// are passed through context.Context to allow structured progress
// tracking.
package cli

import (
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/heatgrid/heatgrid/pkg/buildinfo"
	"github.com/heatgrid/heatgrid/pkg/cache"
	"github.com/heatgrid/heatgrid/pkg/pipeline"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for directories and display.
const appName = "heatgrid"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

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

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "heatgrid",
		Short:        "Heatgrid plans district heating networks from street data",
		Long:         `Heatgrid is a CLI tool for planning district heating networks: it builds a routable street graph, attaches buildings, constructs a cost-aware trunk topology and prepares a solver-ready hydraulic model.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())

	// Register all subcommands
	root.AddCommand(c.planCommand())
	root.AddCommand(c.graphCommand())
	root.AddCommand(c.optimizeCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Runner Factory
// =============================================================================

// cacheSettings selects the cache backend and key scope for a run.
type cacheSettings struct {
	Disabled bool
	URL      string // redis:// URL; empty means the local file cache
	Project  string // key-scope prefix for shared backends
}

// newRunner creates a pipeline runner for CLI use.
func (c *CLI) newRunner(cs cacheSettings) (*pipeline.Runner, error) {
	backend, err := newCache(cs)
	if err != nil {
		return nil, err
	}
	var keyer cache.Keyer
	if cs.Project != "" {
		keyer = cache.NewScopedKeyer(nil, "project:"+cs.Project+":")
	}
	return pipeline.NewRunner(backend, keyer, c.Logger), nil
}

func newCache(cs cacheSettings) (cache.Cache, error) {
	if cs.Disabled {
		return cache.NewNullCache(), nil
	}
	if cs.URL != "" {
		return cache.NewRedisCache(cs.URL)
	}
	dir, err := cacheDir()
	if err != nil {
		return cache.NewNullCache(), nil
	}
	return cache.NewFileCache(dir)
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/heatgrid/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
