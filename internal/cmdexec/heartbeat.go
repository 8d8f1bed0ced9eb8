package cmdexec

import (
	"context"
	"time"

	"github.com/vibecoding/demo2apk/logger"
)

// HeartbeatRunner wraps another Runner and calls onTick at every interval
// while the command is running, so a worker can keep pushing progress
// updates (and the queue's heartbeat) during long-running toolchain steps
// like a first Gradle build that has to download the distribution.
type HeartbeatRunner struct {
	Runner   Runner
	Interval time.Duration
	OnTick   func()
}

func WithHeartbeat(r Runner, interval time.Duration, onTick func()) Runner {
	return &HeartbeatRunner{Runner: r, Interval: interval, OnTick: onTick}
}

func (h *HeartbeatRunner) Run(ctx context.Context, log logger.Logger, cmd Command) (Result, error) {
	if h.Interval <= 0 || h.OnTick == nil {
		return h.Runner.Run(ctx, log, cmd)
	}

	type outcome struct {
		res Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := h.Runner.Run(ctx, log, cmd)
		done <- outcome{res, err}
	}()

	ticker := time.NewTicker(h.Interval)
	defer ticker.Stop()
	for {
		select {
		case o := <-done:
			return o.res, o.err
		case <-ticker.C:
			h.OnTick()
		}
	}
}
