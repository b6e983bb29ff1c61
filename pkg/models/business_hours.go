package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// BusinessHoursMode selects what happens to an execution that falls outside
// the tenant's business hours.
type BusinessHoursMode string

const (
	// BusinessHoursDefer re-queues the execution for the next open window.
	BusinessHoursDefer BusinessHoursMode = "defer"
	// BusinessHoursDrop fails the execution permanently instead of deferring.
	BusinessHoursDrop BusinessHoursMode = "drop"
)

// BusinessWindow is one weekday's open interval on a 24h clock ("09:00").
type BusinessWindow struct {
	Open  string `json:"open"`
	Close string `json:"close"`
}

// BusinessHoursPolicy restricts automation side effects to the tenant's
// configured hours. Weekdays without a window are closed all day.
type BusinessHoursPolicy struct {
	Enabled  bool                      `json:"enabled"`
	Timezone string                    `json:"timezone"`
	Mode     BusinessHoursMode         `json:"mode"`
	Days     map[string]BusinessWindow `json:"days"`
}

// GateDecision is the outcome of the business-hours gate. When not allowed,
// NextAllowedAt is the start of the next open window.
type GateDecision struct {
	Allowed       bool
	NextAllowedAt time.Time
}

// Validate rejects enabled policies whose configuration would be silently
// ignored at runtime, where conversion problems fail open. Disabled policies
// are always valid.
func (p *BusinessHoursPolicy) Validate() error {
	if p == nil || !p.Enabled {
		return nil
	}

	if p.Mode != BusinessHoursDefer && p.Mode != BusinessHoursDrop {
		return fmt.Errorf("unknown business hours mode %q", p.Mode)
	}

	_, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return fmt.Errorf("unknown timezone %q", p.Timezone)
	}

	if len(p.Days) == 0 {
		return fmt.Errorf("enabled policy has no open days")
	}

	for day, window := range p.Days {
		if _, ok := weekdays[day]; !ok {
			return fmt.Errorf("unknown weekday %q", day)
		}

		_, _, err := window.bounds()
		if err != nil {
			return fmt.Errorf("%s: %w", day, err)
		}
	}

	return nil
}

var weekdays = map[string]struct{}{
	"monday": {}, "tuesday": {}, "wednesday": {}, "thursday": {},
	"friday": {}, "saturday": {}, "sunday": {},
}

// Allow decides whether an execution may proceed at the given instant.
//
// Any conversion problem (unknown timezone, malformed window) fails open:
// delivery is favored over a silent drop. This is a deliberate exception to
// fail-closed defaults.
func (p *BusinessHoursPolicy) Allow(now time.Time) GateDecision {
	if p == nil || !p.Enabled {
		return GateDecision{Allowed: true}
	}

	location, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return GateDecision{Allowed: true}
	}

	local := now.In(location)

	if window, open := p.Days[weekdayKey(local.Weekday())]; open {
		openMin, closeMin, err := window.bounds()
		if err != nil {
			return GateDecision{Allowed: true}
		}

		minute := local.Hour()*60 + local.Minute()
		if minute >= openMin && minute < closeMin {
			return GateDecision{Allowed: true}
		}
	}

	next, found := p.nextOpen(local, location)
	if !found {
		return GateDecision{Allowed: true}
	}

	return GateDecision{Allowed: false, NextAllowedAt: next}
}

// nextOpen scans forward up to a week for the start of the next open window.
func (p *BusinessHoursPolicy) nextOpen(local time.Time, location *time.Location) (time.Time, bool) {
	for offset := 0; offset <= 7; offset++ {
		day := local.AddDate(0, 0, offset)

		window, open := p.Days[weekdayKey(day.Weekday())]
		if !open {
			continue
		}

		openMin, _, err := window.bounds()
		if err != nil {
			continue
		}

		candidate := time.Date(day.Year(), day.Month(), day.Day(), openMin/60, openMin%60, 0, 0, location)
		if candidate.After(local) {
			return candidate, true
		}
	}

	return time.Time{}, false
}

func (w BusinessWindow) bounds() (int, int, error) {
	openMin, err := parseClock(w.Open)
	if err != nil {
		return 0, 0, err
	}

	closeMin, err := parseClock(w.Close)
	if err != nil {
		return 0, 0, err
	}

	if openMin >= closeMin {
		return 0, 0, fmt.Errorf("window opens at or after it closes: %s-%s", w.Open, w.Close)
	}

	return openMin, closeMin, nil
}

func parseClock(value string) (int, error) {
	parts := strings.SplitN(value, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("malformed clock value %q", value)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("malformed hour in %q: %w", value, err)
	}

	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("malformed minute in %q: %w", value, err)
	}

	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("clock value %q out of range", value)
	}

	return hour*60 + minute, nil
}

func weekdayKey(day time.Weekday) string {
	return strings.ToLower(day.String())
}
