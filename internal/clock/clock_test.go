package clock

import (
	"testing"
	"time"
)

func fixed(t time.Time) Clock {
	return Clock{Loc: time.UTC, NowFunc: func() time.Time { return t }}
}

func TestTodayUsesConfiguredZone(t *testing.T) {
	// 23:30 UTC on the 4th is already the 5th in UTC+2
	instant := time.Date(2024, 3, 4, 23, 30, 0, 0, time.UTC)
	east := Clock{Loc: time.FixedZone("east", 2*3600), NowFunc: func() time.Time { return instant }}
	if got := east.Today(); got != "2024-03-05" {
		t.Fatalf("Today() = %s, want 2024-03-05", got)
	}
	if got := fixed(instant).Today(); got != "2024-03-04" {
		t.Fatalf("Today() in UTC = %s, want 2024-03-04", got)
	}
}

func TestParseDateRejectsGarbage(t *testing.T) {
	c := Clock{Loc: time.UTC}
	if _, err := c.ParseDate("04/03/2024"); err == nil {
		t.Fatal("expected error for non-ISO date")
	}
	got, err := c.ParseDate("2024-03-04")
	if err != nil || got != "2024-03-04" {
		t.Fatalf("ParseDate = %q, %v", got, err)
	}
}

func TestDayBoundsAreExclusive(t *testing.T) {
	c := Clock{Loc: time.UTC}
	start, err := c.DayStart("2024-03-04")
	if err != nil {
		t.Fatal(err)
	}
	end, err := c.DayEnd("2024-03-04")
	if err != nil {
		t.Fatal(err)
	}
	if end.Sub(start) != 24*time.Hour {
		t.Fatalf("day bounds span %v", end.Sub(start))
	}
	if c.DateOf(end) != "2024-03-05" {
		t.Fatalf("DayEnd should be next midnight, got %v", end)
	}
}

func TestDaysBetween(t *testing.T) {
	c := Clock{Loc: time.UTC}
	days, err := c.DaysBetween("2024-02-28", "2024-03-01")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"2024-02-28", "2024-02-29", "2024-03-01"}
	if len(days) != len(want) {
		t.Fatalf("got %v, want %v", days, want)
	}
	for i := range want {
		if days[i] != want[i] {
			t.Fatalf("got %v, want %v", days, want)
		}
	}
}

func TestNextDayCrossesMonth(t *testing.T) {
	c := Clock{Loc: time.UTC}
	next, err := c.NextDay("2024-02-29")
	if err != nil || next != "2024-03-01" {
		t.Fatalf("NextDay = %q, %v", next, err)
	}
}
