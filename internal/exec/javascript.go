package exec

import (
	"context"
	"errors"
	"strings"

	"github.com/dop251/goja"
)

// JavaScript runs submitted code on an in-process goja interpreter.
// Each invocation gets a fresh VM with no host access; the only
// bindings are a console that captures into the result buffers.
type JavaScript struct{}

func NewJavaScript() *JavaScript { return &JavaScript{} }

func (*JavaScript) Language() string { return "javascript" }

func (*JavaScript) Run(ctx context.Context, code string) (Result, error) {
	vm := goja.New()

	var stdout, stderr strings.Builder
	console := vm.NewObject()
	writeTo := func(buf *strings.Builder) func(call goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			parts := make([]string, 0, len(call.Arguments))
			for _, arg := range call.Arguments {
				parts = append(parts, arg.String())
			}
			buf.WriteString(strings.Join(parts, " "))
			buf.WriteString("\n")
			return goja.Undefined()
		}
	}
	console.Set("log", writeTo(&stdout))
	console.Set("info", writeTo(&stdout))
	console.Set("warn", writeTo(&stderr))
	console.Set("error", writeTo(&stderr))
	vm.Set("console", console)

	// Interrupt tears the VM down when the deadline or a disconnect
	// cancellation fires; a busy loop cannot outlive the context.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	_, err := vm.RunString(code)
	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			if ctx.Err() == context.DeadlineExceeded {
				return Result{Stdout: stdout.String(), Stderr: timeoutMessage, TimedOut: true}, nil
			}
			return Result{Stdout: stdout.String(), Stderr: "execution canceled"}, nil
		}
		msg := err.Error()
		if prior := stderr.String(); prior != "" {
			msg = prior + msg
		}
		return Result{Stdout: stdout.String(), Stderr: msg}, nil
	}

	return Result{Stdout: stdout.String(), Stderr: stderr.String()}, nil
}
