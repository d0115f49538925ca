package python

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/wagiedev/pykernel-sdk-go/internal/errors"
)

// Config holds configuration for interpreter discovery.
type Config struct {
	// PythonPath is an explicit interpreter path that skips PATH search.
	// If empty, discovery will search PATH and common locations.
	PythonPath string

	// Logger is an optional logger for discovery operations.
	// If nil, a default no-op logger is used.
	Logger *slog.Logger
}

// Discoverer locates the Python interpreter binary.
type Discoverer interface {
	// Discover locates the Python interpreter.
	// Returns the absolute path to the binary or an error.
	Discover(ctx context.Context) (string, error)
}

// discoverer implements the Discoverer interface.
type discoverer struct {
	cfg *Config
	log *slog.Logger
}

// Compile-time verification that discoverer implements Discoverer.
var _ Discoverer = (*discoverer)(nil)

// NewDiscoverer creates a new interpreter discoverer with the given configuration.
func NewDiscoverer(cfg *Config) Discoverer {
	if cfg == nil {
		cfg = &Config{}
	}

	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 1}))
	}

	return &discoverer{
		cfg: cfg,
		log: log,
	}
}

// Discover locates the Python interpreter binary.
func (d *discoverer) Discover(_ context.Context) (string, error) {
	d.log.Debug("Discovering Python interpreter")

	// If explicit path provided, use it and only it
	if d.cfg.PythonPath != "" {
		d.log.Debug("Using explicit interpreter path", "python_path", d.cfg.PythonPath)

		if _, err := os.Stat(d.cfg.PythonPath); err == nil {
			return d.cfg.PythonPath, nil
		}

		d.log.Debug("Explicit interpreter path not found", "python_path", d.cfg.PythonPath)

		return "", &errors.PythonNotFoundError{SearchedPaths: []string{d.cfg.PythonPath}}
	}

	searchedPaths := make([]string, 0, 6)

	// Search in PATH, preferring python3
	for _, name := range []string{"python3", "python"} {
		d.log.Debug("Searching PATH", "name", name)

		if path, err := exec.LookPath(name); err == nil {
			d.log.Debug("Found interpreter in PATH", "path", path)

			return path, nil
		}

		searchedPaths = append(searchedPaths, "$PATH/"+name)
	}

	// Check common locations
	commonPaths := []string{
		"/usr/local/bin/python3",
		"/usr/bin/python3",
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		commonPaths = append(commonPaths, filepath.Join(homeDir, ".local/bin/python3"))
	}

	for _, path := range commonPaths {
		searchedPaths = append(searchedPaths, path)
		d.log.Debug("Checking common path", "path", path)

		if _, err := os.Stat(path); err == nil {
			d.log.Debug("Found interpreter at common path", "path", path)

			return path, nil
		}
	}

	d.log.Warn("Python interpreter not found in any searched paths", "searched_paths", searchedPaths)

	return "", &errors.PythonNotFoundError{SearchedPaths: searchedPaths}
}
