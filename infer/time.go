// Package infer resolves the noisy metadata around a message: when it was
// sent and who sent it. Both resolutions are ordered ladders of
// predicate/extractor pairs evaluated in fixed order; only the first
// applicable rule fires, there is no cross-rule scoring.
package infer

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// timeRule resolves partial or relative time text to an absolute instant.
// A rule returns (zero, false) when it does not apply.
type timeRule func(attr, text string, now time.Time) (time.Time, bool)

// timeLadder is the resolution precedence: machine-readable attribute,
// clock text, weekday abbreviation, month-day, in that order.
var timeLadder = []timeRule{
	fromDatetimeAttr,
	fromClockText,
	fromWeekday,
	fromMonthDay,
}

// Time resolves a message timestamp from a machine-readable datetime
// attribute and/or display text. The current instant is the fallback when
// no rule applies.
func Time(attr, text string, now time.Time) time.Time {
	for _, rule := range timeLadder {
		if ts, ok := rule(attr, text, now); ok {
			return ts
		}
	}
	return now
}

// datetimeLayouts are tried in order against the datetime attribute.
var datetimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func fromDatetimeAttr(attr, _ string, _ time.Time) (time.Time, bool) {
	attr = strings.TrimSpace(attr)
	if attr == "" {
		return time.Time{}, false
	}
	for _, layout := range datetimeLayouts {
		if ts, err := time.ParseInLocation(layout, attr, time.Local); err == nil {
			return ts, true
		}
	}
	// Epoch milliseconds show up in data attributes on some inbox UIs.
	if ms, err := strconv.ParseInt(attr, 10, 64); err == nil && ms > 1e11 {
		return time.UnixMilli(ms), true
	}
	return time.Time{}, false
}

var clockRe = regexp.MustCompile(`(?i)\b(\d{1,2}):(\d{2})\s*(AM|PM)?\b`)

// fromClockText resolves "HH:MM" or "H:MM PM" assuming today, rolling back
// one day if the result lands in the future.
func fromClockText(_, text string, now time.Time) (time.Time, bool) {
	m := clockRe.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	if hour > 23 || minute > 59 {
		return time.Time{}, false
	}
	switch strings.ToUpper(m[3]) {
	case "PM":
		if hour < 12 {
			hour += 12
		}
	case "AM":
		if hour == 12 {
			hour = 0
		}
	}
	ts := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if ts.After(now) {
		ts = ts.AddDate(0, 0, -1)
	}
	return ts, true
}

var weekdays = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday,
	"wed": time.Wednesday, "thu": time.Thursday, "fri": time.Friday,
	"sat": time.Saturday,
}

// weekdayRe accepts the exact abbreviated and full forms only. A loose
// prefix match would fire on words like "money" or "sunset" when the time
// label is noisy.
var weekdayRe = regexp.MustCompile(`(?i)\b(sunday|monday|tuesday|wednesday|thursday|friday|saturday|sun|mon|tue|tues|wed|thu|thur|thurs|fri|sat)\b`)

// fromWeekday resolves a weekday abbreviation to the most recent occurrence
// within the past 7 days, at local noon.
func fromWeekday(_, text string, now time.Time) (time.Time, bool) {
	m := weekdayRe.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}
	target, ok := weekdays[strings.ToLower(m[1])[:3]]
	if !ok {
		return time.Time{}, false
	}
	delta := int(now.Weekday() - target)
	if delta <= 0 {
		delta += 7
	}
	day := now.AddDate(0, 0, -delta)
	return time.Date(day.Year(), day.Month(), day.Day(), 12, 0, 0, 0, now.Location()), true
}

var months = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

var monthDayRe = regexp.MustCompile(`(?i)\b(january|february|march|april|may|june|july|august|september|october|november|december|jan|feb|mar|apr|jun|jul|aug|sept|sep|oct|nov|dec)\.?\s+(\d{1,2})\b`)

// fromMonthDay resolves "Mon DD" assuming the current year, rolling back one
// year if the result lands in the future.
func fromMonthDay(_, text string, now time.Time) (time.Time, bool) {
	m := monthDayRe.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}
	month := months[strings.ToLower(m[1])[:3]]
	day, _ := strconv.Atoi(m[2])
	if day < 1 || day > 31 {
		return time.Time{}, false
	}
	ts := time.Date(now.Year(), month, day, 12, 0, 0, 0, now.Location())
	if ts.After(now) {
		ts = ts.AddDate(-1, 0, 0)
	}
	return ts, true
}
