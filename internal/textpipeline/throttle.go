package textpipeline

import "time"

// ThrottleDelay converts a configured throttle value in [0,99] into the
// sleep duration inserted between per-chunk operations (§4.3 "Throttling":
// "a sleep proportional to throttle·100 µs").
func ThrottleDelay(throttle int) time.Duration {
	if throttle <= 0 {
		return 0
	}
	if throttle > 99 {
		throttle = 99
	}
	return time.Duration(throttle) * 100 * time.Microsecond
}
