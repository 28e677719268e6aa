package exec

import (
	"context"
	"os"
	"path/filepath"
)

const tsconfig = `{
  "compilerOptions": {
    "target": "ES2020",
    "module": "commonjs",
    "strict": true,
    "esModuleInterop": true,
    "skipLibCheck": true,
    "rootDir": ".",
    "outDir": "out"
  },
  "include": ["main.ts"]
}`

// TypeScript shells out to the tsc toolchain: a type-check pass first
// so type errors surface cleanly, then compile and run under node.
// Everything happens in a throwaway directory torn down afterwards.
type TypeScript struct{}

func NewTypeScript() *TypeScript { return &TypeScript{} }

func (*TypeScript) Language() string { return "typescript" }

func (*TypeScript) Run(ctx context.Context, code string) (Result, error) {
	dir, cleanup, err := sandboxDir("exec-ts-")
	if err != nil {
		return Result{}, err
	}
	defer cleanup()

	if err := os.WriteFile(filepath.Join(dir, "tsconfig.json"), []byte(tsconfig), 0o644); err != nil {
		return Result{}, err
	}
	if err := os.WriteFile(filepath.Join(dir, "main.ts"), []byte(code), 0o644); err != nil {
		return Result{}, err
	}

	// Type-check only; tsc reports type errors on stdout.
	check, err := runProcess(ctx, dir, nil,
		"npx", "--yes", "-p", "typescript", "tsc", "--noEmit", "-p", dir, "--pretty", "false")
	if err != nil {
		return Result{}, err
	}
	if check.timedOut {
		return Result{Stderr: timeoutMessage, TimedOut: true}, nil
	}
	if check.exitCode != 0 {
		msg := check.stderr
		if msg == "" {
			msg = check.stdout
		}
		return Result{Stderr: msg}, nil
	}

	compile, err := runProcess(ctx, dir, nil,
		"npx", "--yes", "-p", "typescript", "tsc", "-p", dir, "--pretty", "false")
	if err != nil {
		return Result{}, err
	}
	if compile.timedOut {
		return Result{Stderr: timeoutMessage, TimedOut: true}, nil
	}
	if compile.exitCode != 0 {
		msg := compile.stderr
		if msg == "" {
			msg = compile.stdout
		}
		if msg == "" {
			msg = "TypeScript compilation produced no output"
		}
		return Result{Stderr: msg}, nil
	}

	run, err := runProcess(ctx, dir, nil, "node", filepath.Join(dir, "out", "main.js"))
	if err != nil {
		return Result{}, err
	}
	if run.timedOut {
		return Result{Stdout: run.stdout, Stderr: timeoutMessage, TimedOut: true}, nil
	}
	if run.exitCode != 0 && run.stderr != "" {
		return Result{Stdout: run.stdout, Stderr: run.stderr}, nil
	}
	return Result{Stdout: run.stdout, Stderr: run.stderr}, nil
}
