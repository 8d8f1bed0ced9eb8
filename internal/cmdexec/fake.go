package cmdexec

import (
	"context"
	"time"

	"github.com/vibecoding/demo2apk/logger"
)

// FakeRunner is a Runner for tests: it never execs anything and instead
// replays scripted responses keyed by the command's first argv token, so
// pipeline stages can be tested without npm/gradle installed.
type FakeRunner struct {
	Responses map[string]Result
	Errors    map[string]error
	Calls     []Command
}

func NewFakeRunner() *FakeRunner {
	return &FakeRunner{Responses: map[string]Result{}, Errors: map[string]error{}}
}

func (f *FakeRunner) Run(ctx context.Context, log logger.Logger, cmd Command) (Result, error) {
	f.Calls = append(f.Calls, cmd)
	if len(cmd.Argv) == 0 {
		return Result{}, nil
	}
	key := cmd.Argv[0]
	if err, ok := f.Errors[key]; ok {
		return Result{ExitCode: 1, Duration: time.Millisecond}, err
	}
	if res, ok := f.Responses[key]; ok {
		return res, nil
	}
	return Result{ExitCode: 0, Duration: time.Millisecond}, nil
}
