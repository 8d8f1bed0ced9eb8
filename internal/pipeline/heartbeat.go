package pipeline

import "time"

// HeartbeatInterval and MaxHeartbeatTicks match spec.md §4.4: one synthetic progress
// tick every 5s, capped at 10 increments, within a declared band.
const HeartbeatInterval = 5 * time.Second
const MaxHeartbeatTicks = 10

// BandHeartbeat returns a tick function that advances synthetic progress
// within [start, end) by 1/MaxHeartbeatTicks of the band per tick, always
// reporting the fixed message passed in alongside the new percent. Real progress
// from the pipeline itself always overrides the last heartbeat tick
// because both write through the same Progress sink in the same order.
func BandHeartbeat(progress Progress, message string, start, end int) func() {
	span := end - start
	if span <= 0 {
		span = 1
	}
	step := span / MaxHeartbeatTicks
	if step <= 0 {
		step = 1
	}
	ticks := 0
	return func() {
		if ticks >= MaxHeartbeatTicks {
			return
		}
		ticks++
		pct := start + step*ticks
		if pct >= end {
			pct = end - 1
		}
		progress.Report(message, pct)
	}
}
