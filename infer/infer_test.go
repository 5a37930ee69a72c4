package infer

import (
	"testing"
	"time"
)

// fixedNow is a Thursday afternoon, chosen so weekday and rollback cases
// are deterministic.
var fixedNow = time.Date(2026, time.March, 12, 15, 30, 0, 0, time.Local)

func TestTime_DatetimeAttrWins(t *testing.T) {
	// The attribute outranks any text, even text that parses.
	ts := Time("2026-03-10T09:15:00Z", "11:45 PM", fixedNow)
	want := time.Date(2026, time.March, 10, 9, 15, 0, 0, time.UTC)
	if !ts.Equal(want) {
		t.Fatalf("Time = %v, want %v", ts, want)
	}
}

func TestTime_EpochMillisAttr(t *testing.T) {
	ts := Time("1773010200000", "", fixedNow)
	if ts.UnixMilli() != 1773010200000 {
		t.Fatalf("Time = %v, want epoch 1773010200000", ts)
	}
}

func TestTime_ClockTextToday(t *testing.T) {
	ts := Time("", "10:23 AM", fixedNow)
	want := time.Date(2026, time.March, 12, 10, 23, 0, 0, time.Local)
	if !ts.Equal(want) {
		t.Fatalf("Time = %v, want %v", ts, want)
	}
}

func TestTime_ClockTextFutureRollsBack(t *testing.T) {
	// 11:45 PM is in the future at 15:30, so the message must be from
	// yesterday.
	ts := Time("", "11:45 PM", fixedNow)
	want := time.Date(2026, time.March, 11, 23, 45, 0, 0, time.Local)
	if !ts.Equal(want) {
		t.Fatalf("Time = %v, want %v", ts, want)
	}
}

func TestTime_WeekdayMostRecent(t *testing.T) {
	// fixedNow is a Thursday. "Mon" is three days back, at local noon.
	ts := Time("", "Mon", fixedNow)
	want := time.Date(2026, time.March, 9, 12, 0, 0, 0, time.Local)
	if !ts.Equal(want) {
		t.Fatalf("Time = %v, want %v", ts, want)
	}

	// Same weekday as today resolves to a full week back, never today.
	ts = Time("", "Thursday", fixedNow)
	want = time.Date(2026, time.March, 5, 12, 0, 0, 0, time.Local)
	if !ts.Equal(want) {
		t.Fatalf("Time = %v, want %v", ts, want)
	}
}

func TestTime_MonthDayCurrentYear(t *testing.T) {
	ts := Time("", "Feb 28", fixedNow)
	want := time.Date(2026, time.February, 28, 12, 0, 0, 0, time.Local)
	if !ts.Equal(want) {
		t.Fatalf("Time = %v, want %v", ts, want)
	}
}

func TestTime_MonthDayFutureRollsBackOneYear(t *testing.T) {
	ts := Time("", "Dec 25", fixedNow)
	want := time.Date(2025, time.December, 25, 12, 0, 0, 0, time.Local)
	if !ts.Equal(want) {
		t.Fatalf("Time = %v, want %v", ts, want)
	}
}

func TestTime_FallbackIsNow(t *testing.T) {
	ts := Time("", "just now", fixedNow)
	if !ts.Equal(fixedNow) {
		t.Fatalf("Time = %v, want fallback %v", ts, fixedNow)
	}
}

func TestTime_NoisyWordsDoNotMatchWeekday(t *testing.T) {
	// "money" and "sunset" must not trigger the weekday rule.
	for _, text := range []string{"send money", "sunset photos"} {
		ts := Time("", text, fixedNow)
		if !ts.Equal(fixedNow) {
			t.Errorf("Time(%q) = %v, want fallback", text, ts)
		}
	}
}

func TestSource_CreditUnion(t *testing.T) {
	cases := map[string]string{
		"SF Fire CU: Your verification code is 123456":   "SF Fire CU",
		"Navy FCU security code 4821":                    "Navy FCU",
		"Golden 1 Credit Union: use 482135 to verify":    "Golden 1 Credit Union",
	}
	for text, want := range cases {
		got, ok := Source(text)
		if !ok || got != want {
			t.Errorf("Source(%q) = %q, %v; want %q", text, got, ok, want)
		}
	}
}

func TestSource_KnownServiceTitleCased(t *testing.T) {
	got, ok := Source("your google verification code is 482135")
	if !ok || got != "Google" {
		t.Fatalf("Source = %q, %v; want Google", got, ok)
	}

	got, ok = Source("WELLS FARGO never asks... your wells fargo code is 4821")
	if !ok || got != "Wells Fargo" {
		t.Fatalf("Source = %q, %v; want Wells Fargo", got, ok)
	}
}

func TestSource_LadderPrecedence(t *testing.T) {
	// A credit-union shape outranks the known-service table.
	got, ok := Source("Navy FCU (via paypal): code 4821")
	if !ok || got != "Navy FCU" {
		t.Fatalf("Source = %q, %v; want Navy FCU", got, ok)
	}
}

func TestSource_OrgPatterns(t *testing.T) {
	cases := map[string]string{
		"ACME: your code is 4821":              "ACME",
		"[Vandelay] verification code 482135":  "Vandelay",
		"Message from Initech about your code": "Initech",
	}
	for text, want := range cases {
		got, ok := Source(text)
		if !ok || got != want {
			t.Errorf("Source(%q) = %q, %v; want %q", text, got, ok, want)
		}
	}
}

func TestSource_StopwordsRejected(t *testing.T) {
	if got, ok := Source("OTP: 4821. Reply STOP to opt out"); ok {
		t.Fatalf("Source = %q, want no match for stopword-only candidates", got)
	}
}
