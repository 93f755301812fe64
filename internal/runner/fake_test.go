package runner_test

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/signalnine/skillcheck/internal/shell"
)

// fakeExec records calls and tracks how many commands overlap.
type fakeExec struct {
	mu      sync.Mutex
	cur     int
	peak    int
	calls   []string
	delay   func(command string) time.Duration
	respond func(command string) shell.Outcome
}

func (f *fakeExec) Run(ctx context.Context, command string, timeout time.Duration) shell.Outcome {
	f.mu.Lock()
	f.cur++
	f.peak = max(f.peak, f.cur)
	f.calls = append(f.calls, command)
	f.mu.Unlock()

	if f.delay != nil {
		time.Sleep(f.delay(command))
	}

	f.mu.Lock()
	f.cur--
	f.mu.Unlock()
	if f.respond == nil {
		return shell.Outcome{Started: true}
	}
	return f.respond(command)
}

func (f *fakeExec) Peak() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.peak
}

const skillRecord = `{"type":"tool_use","name":"Skill","input":{"skill":"dotnet-xunit"}}`

// passFor answers with a matching skill record when the command mentions
// the agent.
func passFor(agent string) func(string) shell.Outcome {
	return func(command string) shell.Outcome {
		if strings.HasPrefix(command, agent+" ") {
			return shell.Outcome{Started: true, Stdout: skillRecord}
		}
		return shell.Outcome{Started: true, Stdout: "no evidence here"}
	}
}
