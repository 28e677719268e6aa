package exec

import (
	"bytes"
	"context"
	"os"
	osexec "os/exec"
	"strings"
)

type processResult struct {
	stdout   string
	stderr   string
	exitCode int
	timedOut bool
}

// runProcess executes an external toolchain command inside the given
// sandbox directory, bounded by the context. On expiry the process is
// killed and timedOut is set; an already-dead process is not an error
// here, the exit code and captured output tell the story.
func runProcess(ctx context.Context, dir string, env []string, name string, args ...string) (processResult, error) {
	cmd := osexec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Env = os.Environ()
	cmd.Env = append(cmd.Env, env...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	res := processResult{
		stdout: sanitizeOutput(stdout.String(), dir),
		stderr: sanitizeOutput(stderr.String(), dir),
	}

	if ctx.Err() == context.DeadlineExceeded {
		res.timedOut = true
		return res, nil
	}
	if err != nil {
		if exitErr, ok := err.(*osexec.ExitError); ok {
			res.exitCode = exitErr.ExitCode()
			return res, nil
		}
		// Toolchain missing or unstartable.
		return res, err
	}
	return res, nil
}

// sanitizeOutput strips the sandbox directory from compiler and
// runtime messages so users see "main.ts:3" instead of a temp path.
func sanitizeOutput(s, dir string) string {
	if s == "" {
		return s
	}
	s = strings.ReplaceAll(s, dir+string(os.PathSeparator), "")
	s = strings.ReplaceAll(s, dir, "")
	s = strings.ReplaceAll(s, "/private", "")
	return s
}

// sandboxDir creates a throwaway working directory for one execution.
func sandboxDir(prefix string) (string, func(), error) {
	dir, err := os.MkdirTemp("", prefix)
	if err != nil {
		return "", nil, err
	}
	return dir, func() { os.RemoveAll(dir) }, nil
}
