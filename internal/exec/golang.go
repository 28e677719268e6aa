package exec

import (
	"bytes"
	"context"
	"os"
	"path/filepath"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"
)

// Golang compiles the submitted source for wasip1 with the host Go
// toolchain and runs the module inside an in-process wazero runtime.
// The module gets no filesystem mounts and no network; stdout and
// stderr are the only channels out, and the runtime is closed with
// the context so a timed-out module cannot linger.
type Golang struct{}

func NewGolang() *Golang { return &Golang{} }

func (*Golang) Language() string { return "go" }

func (*Golang) Run(ctx context.Context, code string) (Result, error) {
	dir, cleanup, err := sandboxDir("exec-go-")
	if err != nil {
		return Result{}, err
	}
	defer cleanup()

	if err := os.WriteFile(filepath.Join(dir, "main.go"), []byte(code), 0o644); err != nil {
		return Result{}, err
	}
	if err := os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module sandbox\n\ngo 1.21\n"), 0o644); err != nil {
		return Result{}, err
	}

	build, err := runProcess(ctx, dir,
		[]string{"GOOS=wasip1", "GOARCH=wasm"},
		"go", "build", "-o", "main.wasm", "main.go")
	if err != nil {
		return Result{}, err
	}
	if build.timedOut {
		return Result{Stderr: timeoutMessage, TimedOut: true}, nil
	}
	if build.exitCode != 0 {
		msg := build.stderr
		if msg == "" {
			msg = build.stdout
		}
		return Result{Stderr: msg}, nil
	}

	wasmBytes, err := os.ReadFile(filepath.Join(dir, "main.wasm"))
	if err != nil {
		return Result{}, err
	}

	return runWasm(ctx, wasmBytes)
}

func runWasm(ctx context.Context, wasmBytes []byte) (Result, error) {
	runtimeCfg := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	r := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)
	// Teardown must happen even when ctx is already dead.
	defer r.Close(context.Background())

	wasi_snapshot_preview1.MustInstantiate(ctx, r)

	var stdout, stderr bytes.Buffer
	moduleCfg := wazero.NewModuleConfig().
		WithStdout(&stdout).
		WithStderr(&stderr).
		WithArgs("main").
		WithSysWalltime().
		WithSysNanotime()

	compiled, err := r.CompileModule(ctx, wasmBytes)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return Result{Stderr: timeoutMessage, TimedOut: true}, nil
		}
		return Result{Stderr: "WASM compilation failed: " + err.Error()}, nil
	}

	_, err = r.InstantiateModule(ctx, compiled, moduleCfg)
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			res.Stderr = timeoutMessage
			res.TimedOut = true
			return res, nil
		}
		if exitErr, ok := err.(*sys.ExitError); ok {
			if exitErr.ExitCode() != 0 && res.Stderr == "" {
				res.Stderr = err.Error()
			}
			return res, nil
		}
		if res.Stderr == "" {
			res.Stderr = err.Error()
		}
	}
	return res, nil
}
