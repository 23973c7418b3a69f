package notify

import "time"

var DefaultRetrySchedule = []time.Duration{
	30 * time.Second,
	2 * time.Minute,
	10 * time.Minute,
	30 * time.Minute,
	2 * time.Hour,
}

func NextAttemptTime(attemptCount int, schedule []time.Duration) *time.Time {
	// attemptCount is 1-indexed (attempt 1 just happened, so index 0 gives
	// the delay before attempt 2). Past the end of the schedule the last
	// delay repeats; max_attempts decides when retrying stops, not the
	// schedule length.
	if len(schedule) == 0 {
		return nil
	}
	idx := attemptCount - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(schedule) {
		idx = len(schedule) - 1
	}
	t := time.Now().UTC().Add(schedule[idx])
	return &t
}

func IsSuccess(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}
