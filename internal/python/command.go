package python

import (
	"fmt"
	"os"

	"github.com/wagiedev/pykernel-sdk-go/internal/config"
)

// BuildArgs constructs the worker invocation arguments.
//
// The worker program is passed inline via -c; -u disables stdio buffering so
// replies are delivered as soon as the worker writes them.
func BuildArgs() []string {
	return []string{"-u", "-c", WorkerProgram}
}

// BuildEnvironment constructs the environment variables for the worker process.
func BuildEnvironment(options *config.Options) []string {
	// Start with current environment
	env := os.Environ()

	// Covers streams the -u flag does not reach, e.g. in forked children
	env = append(env, "PYTHONUNBUFFERED=1")

	// Add or override with user-provided environment variables
	if options != nil {
		for key, value := range options.Env {
			env = append(env, fmt.Sprintf("%s=%s", key, value))
		}
	}

	return env
}
