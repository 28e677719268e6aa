package exec

import (
	"context"
	"os"
	"path/filepath"
)

// Java compiles Main.java with javac and runs the resulting class,
// both inside a throwaway directory. The submitted code must declare
// a public class Main with a main method.
type Java struct{}

func NewJava() *Java { return &Java{} }

func (*Java) Language() string { return "java" }

func (*Java) Run(ctx context.Context, code string) (Result, error) {
	dir, cleanup, err := sandboxDir("exec-java-")
	if err != nil {
		return Result{}, err
	}
	defer cleanup()

	src := filepath.Join(dir, "Main.java")
	if err := os.WriteFile(src, []byte(code), 0o644); err != nil {
		return Result{}, err
	}

	compile, err := runProcess(ctx, dir, nil, "javac", src)
	if err != nil {
		return Result{}, err
	}
	if compile.timedOut {
		return Result{Stderr: timeoutMessage, TimedOut: true}, nil
	}
	if compile.exitCode != 0 || compile.stderr != "" {
		return Result{Stderr: compile.stderr}, nil
	}

	run, err := runProcess(ctx, dir, nil, "java", "-cp", dir, "Main")
	if err != nil {
		return Result{}, err
	}
	if run.timedOut {
		return Result{Stdout: run.stdout, Stderr: timeoutMessage, TimedOut: true}, nil
	}
	return Result{Stdout: run.stdout, Stderr: run.stderr}, nil
}
