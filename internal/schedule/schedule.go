package schedule

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// ScheduleID names one of the fixed schedules. The set is closed on purpose:
// runs are anchored to calendar boundaries so repeated rescheduling cannot
// drift the way "now + interval" does.
type ScheduleID string

const (
	Disabled     ScheduleID = "disabled"
	Every6Hours  ScheduleID = "every6hours"
	Every12Hours ScheduleID = "every12hours"
	Daily        ScheduleID = "daily"
	Daily2AM     ScheduleID = "daily2am"
	Weekly       ScheduleID = "weekly"
)

// MinDelay is the floor handed to the job queue so a run landing exactly on a
// slot boundary never produces a zero or negative delay.
const MinDelay = 60 * time.Second

// cronExprs pins each schedule to a standard five-field cron expression.
var cronExprs = map[ScheduleID]string{
	Every6Hours:  "0 0,6,12,18 * * *",
	Every12Hours: "0 0,12 * * *",
	Daily:        "0 0 * * *",
	Daily2AM:     "0 2 * * *",
	Weekly:       "0 0 * * 1",
}

var schedules = make(map[ScheduleID]cron.Schedule, len(cronExprs))

func init() {
	for id, expr := range cronExprs {
		s, err := cron.ParseStandard(expr)
		if err != nil {
			panic(fmt.Sprintf("schedule: bad cron expression %q for %s: %v", expr, id, err))
		}
		schedules[id] = s
	}
}

var labels = map[ScheduleID]string{
	Disabled:     "Disabled",
	Every6Hours:  "Every 6 hours",
	Every12Hours: "Every 12 hours",
	Daily:        "Daily at midnight",
	Daily2AM:     "Daily at 2 AM",
	Weekly:       "Weekly on Monday",
}

// IsValid reports whether id names a recognized schedule, including Disabled.
func IsValid(id ScheduleID) bool {
	_, ok := labels[id]
	return ok
}

// Label returns a human-readable description of the schedule.
func Label(id ScheduleID) string {
	if l, ok := labels[id]; ok {
		return l
	}
	return string(id)
}

// NextRun computes the next slot instant strictly after now for the given
// schedule. cron's Next is strictly-after, so a run landing exactly on a slot
// boundary counts as already consumed and advances to the following
// occurrence. Disabled and unknown schedules are errors; callers decide
// whether that means "never fire" or "bad config".
func NextRun(id ScheduleID, now time.Time) (time.Time, error) {
	if id == Disabled {
		return time.Time{}, fmt.Errorf("schedule %q never fires", id)
	}
	s, ok := schedules[id]
	if !ok {
		return time.Time{}, fmt.Errorf("unknown schedule %q", id)
	}
	return s.Next(now), nil
}

// Delay is NextRun expressed as a queue delay, clamped to MinDelay.
func Delay(id ScheduleID, now time.Time) (time.Duration, error) {
	next, err := NextRun(id, now)
	if err != nil {
		return 0, err
	}
	d := next.Sub(now)
	if d < MinDelay {
		d = MinDelay
	}
	return d, nil
}
