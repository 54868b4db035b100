package smart

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"time"
)

// Runner executes a disk tool and returns its combined stdout.
// The production implementation shells out; tests and dry runs substitute
// recorded output.
type Runner interface {
	Run(ctx context.Context, tool string, args ...string) ([]byte, error)
}

// execRunner invokes tools through os/exec with a per-call timeout.
type execRunner struct {
	timeout time.Duration
}

// NewRunner returns a Runner enforcing the given per-call timeout.
func NewRunner(timeout time.Duration) Runner {
	return &execRunner{timeout: timeout}
}

func (r *execRunner) Run(ctx context.Context, tool string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, tool, args...).Output()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &ToolError{Tool: tool, Args: args, Err: ErrToolTimeout}
		}
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			return nil, &ToolError{Tool: tool, Args: args, Err: ErrToolNotFound}
		}
		// smartctl exits non-zero for many non-fatal conditions (failing
		// self-assessment, unsupported subcommands) while still printing a
		// usable report. Hand partial output back to the caller.
		if len(out) > 0 {
			return out, nil
		}
		return nil, &ToolError{Tool: tool, Args: args, Err: err}
	}
	return out, nil
}

// fixtureRunner replays recorded tool output from disk. Used by DRY_RUN
// so parsing and evaluation can be exercised without the real tools.
type fixtureRunner struct {
	dump     string // udisksctl dump fixture path
	smartctl string // smartctl JSON fixture path
}

// NewFixtureRunner returns a Runner serving recorded udisksctl and
// smartctl output. Empty paths report the tool as missing.
func NewFixtureRunner(dumpPath, smartctlPath string) Runner {
	return &fixtureRunner{dump: dumpPath, smartctl: smartctlPath}
}

func (r *fixtureRunner) Run(_ context.Context, tool string, args ...string) ([]byte, error) {
	path := r.smartctl
	if len(args) > 0 && args[0] == "dump" {
		path = r.dump
	}
	if path == "" {
		return nil, &ToolError{Tool: tool, Args: args, Err: ErrToolNotFound}
	}
	out, err := os.ReadFile(path)
	if err != nil {
		return nil, &ToolError{Tool: tool, Args: args, Err: err}
	}
	return out, nil
}
