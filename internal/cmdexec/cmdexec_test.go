package cmdexec

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/vibecoding/demo2apk/logger"
)

func TestProcessRunner_CapturesOutputAndExitCode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a posix shell")
	}
	r := ProcessRunner{}
	res, err := r.Run(context.Background(), logger.Discard, Command{
		Argv: []string{"sh", "-c", "echo hello; exit 3"},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.ExitCode != 3 {
		t.Fatalf("expected exit code 3, got %d", res.ExitCode)
	}
	if res.Output == "" {
		t.Fatal("expected captured output")
	}
}

func TestProcessRunner_MissingDir(t *testing.T) {
	r := ProcessRunner{}
	_, err := r.Run(context.Background(), logger.Discard, Command{
		Argv: []string{"true"},
		Dir:  "/no/such/directory/demo2apk",
	})
	if err == nil {
		t.Fatal("expected an error for a missing working directory")
	}
}

func TestProcessRunner_ContextCancelTerminates(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a posix shell")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	r := ProcessRunner{}
	start := time.Now()
	_, err := r.Run(ctx, logger.Discard, Command{Argv: []string{"sleep", "30"}})
	if err == nil {
		t.Fatal("expected a timeout error")
	}
	if time.Since(start) > 10*time.Second {
		t.Fatal("runner did not terminate the process promptly")
	}
}

func TestWithHeartbeat_TicksWhileRunning(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a posix shell")
	}
	var ticks int
	runner := WithHeartbeat(ProcessRunner{}, 20*time.Millisecond, func() { ticks++ })

	_, err := runner.Run(context.Background(), logger.Discard, Command{
		Argv: []string{"sleep", "0.2"},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if ticks < 2 {
		t.Fatalf("expected at least 2 heartbeat ticks, got %d", ticks)
	}
}

func TestFakeRunner_ReplaysScriptedResult(t *testing.T) {
	f := NewFakeRunner()
	f.Responses["gradle"] = Result{ExitCode: 0, Output: "BUILD SUCCESSFUL"}
	f.Errors["npm"] = context.DeadlineExceeded

	res, err := f.Run(context.Background(), logger.Discard, Command{Argv: []string{"gradle", "assembleRelease"}})
	if err != nil || res.ExitCode != 0 {
		t.Fatalf("expected scripted success, got res=%v err=%v", res, err)
	}

	_, err = f.Run(context.Background(), logger.Discard, Command{Argv: []string{"npm", "install"}})
	if err != context.DeadlineExceeded {
		t.Fatalf("expected scripted error, got %v", err)
	}

	if len(f.Calls) != 2 {
		t.Fatalf("expected 2 recorded calls, got %d", len(f.Calls))
	}
}
