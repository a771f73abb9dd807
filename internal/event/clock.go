package event

import "time"

// now/setFixedTime follow the teacher's scheduler test fixture: tests
// pin wall-clock reads to a fixed instant instead of mocking a clock
// interface through every call site.
var fixedTime time.Time

func now() time.Time {
	if !fixedTime.IsZero() {
		return fixedTime
	}
	return time.Now()
}

// setFixedTime pins now() to t; passing the zero Time resumes reading
// the real wall clock.
func setFixedTime(t time.Time) {
	fixedTime = t
}
