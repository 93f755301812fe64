package shell

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

// DefaultWaitDelay bounds how long Run waits for buffered output to drain
// after the process tree has been killed.
const DefaultWaitDelay = 5 * time.Second

type Runner struct {
	Shell     string
	ShellArgs []string
	WaitDelay time.Duration
}

// Outcome is the result of one command execution. Started is false only when
// the shell itself could not be spawned; a command that the shell cannot find
// still starts and exits with a non-zero code.
type Outcome struct {
	Started    bool
	ExitCode   int
	Stdout     string
	Stderr     string
	TimedOut   bool
	StartError string
	Duration   time.Duration
}

// Combined joins stdout and stderr the way evidence scanning expects.
func (o Outcome) Combined() string {
	return o.Stdout + "\n" + o.Stderr
}

func DefaultRunner() *Runner {
	if runtime.GOOS == "windows" {
		return &Runner{Shell: "cmd", ShellArgs: []string{"/C"}, WaitDelay: DefaultWaitDelay}
	}
	return &Runner{Shell: "/bin/bash", ShellArgs: []string{"-lc"}, WaitDelay: DefaultWaitDelay}
}

// Run executes command through the configured shell with both streams
// captured in memory. When timeout elapses the whole process group is killed
// and whatever output was already captured is returned with TimedOut set.
func (r *Runner) Run(ctx context.Context, command string, timeout time.Duration) Outcome {
	shellPath := r.Shell
	args := r.ShellArgs
	if shellPath == "" {
		def := DefaultRunner()
		shellPath, args = def.Shell, def.ShellArgs
	}
	waitDelay := r.WaitDelay
	if waitDelay <= 0 {
		waitDelay = DefaultWaitDelay
	}

	runCtx := ctx
	cancel := func() {}
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	cmd := exec.CommandContext(runCtx, shellPath, append(append([]string{}, args...), command)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	configureCommandProcess(cmd)
	cmd.Cancel = func() error {
		terminateCommandProcess(cmd)
		return nil
	}
	cmd.WaitDelay = waitDelay

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return Outcome{
			Started:    false,
			ExitCode:   -1,
			StartError: err.Error(),
			Duration:   time.Since(start),
		}
	}

	// Kill the group on every exit path, including a panic in Wait.
	defer terminateCommandProcess(cmd)

	waitErr := cmd.Wait()
	out := Outcome{
		Started:  true,
		ExitCode: exitCode(cmd, waitErr),
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}
	if waitErr != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		out.TimedOut = true
	}
	return out
}

func exitCode(cmd *exec.Cmd, err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	return -1
}

// Quote wraps value in single quotes for a POSIX shell.
func Quote(value string) string {
	return "'" + strings.ReplaceAll(value, "'", `'"'"'`) + "'"
}

// Expand substitutes the quoted prompt into the {prompt} placeholder of
// template, or appends it when the template has no placeholder.
func Expand(template, prompt string) string {
	quoted := Quote(prompt)
	if strings.Contains(template, "{prompt}") {
		return strings.ReplaceAll(template, "{prompt}", quoted)
	}
	return template + " " + quoted
}
