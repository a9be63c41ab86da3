package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	// MinMinutes is the shortest interval an autonomous task may run at.
	MinMinutes = 5
	// DefaultMinutes seeds a new interval schedule.
	DefaultMinutes = 5
	// DefaultCron seeds a new cron schedule (top of every hour).
	DefaultCron = "0 * * * *"
)

// ErrNoSchedule is returned by Schedule.Next for a task with no schedule.
var ErrNoSchedule = errors.New("task has no schedule")

// ScheduleKind discriminates the Schedule union.
type ScheduleKind string

const (
	ScheduleNone    ScheduleKind = ""
	ScheduleMinutes ScheduleKind = "minutes"
	ScheduleCron    ScheduleKind = "cron"
)

// Schedule is either a fixed interval in minutes or a cron expression.
// The zero value is "no schedule".
type Schedule struct {
	kind    ScheduleKind
	minutes int
	cron    string
}

// EveryMinutes returns an interval schedule.
func EveryMinutes(n int) Schedule {
	return Schedule{kind: ScheduleMinutes, minutes: n}
}

// CronExpr returns a cron schedule.
func CronExpr(expr string) Schedule {
	return Schedule{kind: ScheduleCron, cron: expr}
}

// Kind reports which variant is set.
func (s Schedule) Kind() ScheduleKind { return s.kind }

// Minutes returns the interval and whether this is an interval schedule.
func (s Schedule) Minutes() (int, bool) {
	return s.minutes, s.kind == ScheduleMinutes
}

// Cron returns the expression and whether this is a cron schedule.
func (s Schedule) Cron() (string, bool) {
	return s.cron, s.kind == ScheduleCron
}

// IsZero reports whether no schedule is set.
func (s Schedule) IsZero() bool { return s.kind == ScheduleNone }

// String renders the schedule for list views.
func (s Schedule) String() string {
	switch s.kind {
	case ScheduleMinutes:
		if s.minutes == 1 {
			return "Every minute"
		}
		return fmt.Sprintf("Every %d minutes", s.minutes)
	case ScheduleCron:
		return "Cron: " + s.cron
	default:
		return "No schedule"
	}
}

// Next returns the first fire time strictly after from.
func (s Schedule) Next(from time.Time) (time.Time, error) {
	switch s.kind {
	case ScheduleMinutes:
		if s.minutes <= 0 {
			return time.Time{}, fmt.Errorf("invalid interval: %d minutes", s.minutes)
		}
		return from.Add(time.Duration(s.minutes) * time.Minute), nil
	case ScheduleCron:
		sched, err := ParseCron(s.cron)
		if err != nil {
			return time.Time{}, err
		}
		return sched.Next(from), nil
	default:
		return time.Time{}, ErrNoSchedule
	}
}

// ParseCron parses a standard five-field cron expression (descriptors such
// as @hourly are accepted too).
func ParseCron(expr string) (cron.Schedule, error) {
	sched, err := cron.ParseStandard(strings.TrimSpace(expr))
	if err != nil {
		return nil, fmt.Errorf("parse cron %q: %w", expr, err)
	}
	return sched, nil
}
