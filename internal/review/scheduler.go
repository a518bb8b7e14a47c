// Package review schedules spaced-repetition reviews from a mastery score.
package review

import (
	"fmt"
	"math"
	"time"
)

// DefaultIntervals is the expanding review schedule in days, weakest band first.
var DefaultIntervals = []int{1, 3, 7, 14, 30, 60}

// Scheduler maps a mastery score onto a fixed ascending interval table.
type Scheduler struct {
	intervals []int
	now       func() time.Time
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock overrides the time source used by Schedule.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// NewScheduler creates a scheduler. A nil or empty table selects DefaultIntervals.
// The table must be strictly positive and non-decreasing.
func NewScheduler(intervals []int, opts ...Option) (*Scheduler, error) {
	if len(intervals) == 0 {
		intervals = DefaultIntervals
	}
	for i, d := range intervals {
		if d <= 0 {
			return nil, fmt.Errorf("interval %d is %d days, must be positive", i, d)
		}
		if i > 0 && d < intervals[i-1] {
			return nil, fmt.Errorf("interval table must be non-decreasing, %d < %d at %d", d, intervals[i-1], i)
		}
	}

	s := &Scheduler{
		intervals: append([]int(nil), intervals...),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Default returns a scheduler over DefaultIntervals using the wall clock.
func Default() *Scheduler {
	s, _ := NewScheduler(nil)
	return s
}

// Interval returns the review interval in days for a mastery score.
// Scores outside [0,1] are clamped; NaN is treated as 0.
func (s *Scheduler) Interval(score float64) int {
	switch {
	case math.IsNaN(score) || score < 0:
		score = 0
	case score > 1:
		score = 1
	}
	idx := int(math.Floor(score * float64(len(s.intervals))))
	if idx > len(s.intervals)-1 {
		idx = len(s.intervals) - 1
	}
	return s.intervals[idx]
}

// Schedule returns the next review date for a score, counted from today.
func (s *Scheduler) Schedule(score float64) time.Time {
	return s.ScheduleFrom(score, s.now())
}

// ScheduleFrom returns the next review date counted from the UTC day of now.
func (s *Scheduler) ScheduleFrom(score float64, now time.Time) time.Time {
	return Today(now).AddDate(0, 0, s.Interval(score))
}

// Today truncates t to midnight UTC.
func Today(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
