package server

import (
	"testing"
	"time"
)

func TestClaimHasAudience(t *testing.T) {
	if !claimHasAudience("expected", "expected") {
		t.Fatalf("expected string audience to match")
	}
	if claimHasAudience("other", "expected") {
		t.Fatalf("expected mismatched string audience to fail")
	}
	if !claimHasAudience([]any{"x", "expected", "y"}, "expected") {
		t.Fatalf("expected []any audience to match")
	}
	if !claimHasAudience([]string{"x", "expected", "y"}, "expected") {
		t.Fatalf("expected []string audience to match")
	}
	if claimHasAudience(nil, "expected") {
		t.Fatalf("expected nil audience to fail")
	}
}

func TestParseDate(t *testing.T) {
	got, err := parseDate("2026-02-15")
	if err != nil {
		t.Fatalf("expected parseDate to succeed: %v", err)
	}
	if got.Format(time.RFC3339) != "2026-02-15T00:00:00Z" {
		t.Fatalf("unexpected parsed date: %s", got.Format(time.RFC3339))
	}

	if _, err := parseDate("02/15/2026"); err == nil {
		t.Fatalf("expected invalid date to fail")
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := truncateRunes("short", 200); got != "short" {
		t.Fatalf("expected short string unchanged, got %q", got)
	}
	long := "日記の内容abcdef"
	if got := truncateRunes(long, 5); got != "日記の内容" {
		t.Fatalf("expected rune-safe truncation, got %q", got)
	}
}

func TestPawLevel(t *testing.T) {
	if pawLevel(0) != "none" {
		t.Fatalf("expected none for 0 entries")
	}
	if pawLevel(1) != "light" {
		t.Fatalf("expected light for 1 entry")
	}
	if pawLevel(2) != "dark" || pawLevel(9) != "dark" {
		t.Fatalf("expected dark for 2+ entries")
	}
}

func TestMondayOf(t *testing.T) {
	// 2026-03-11 is a Wednesday.
	wednesday := time.Date(2026, 3, 11, 15, 30, 0, 0, time.UTC)
	monday := mondayOf(wednesday)
	if monday.Format("2006-01-02") != "2026-03-09" {
		t.Fatalf("unexpected monday: %s", monday.Format("2006-01-02"))
	}
	if monday.Weekday() != time.Monday {
		t.Fatalf("expected Monday, got %s", monday.Weekday())
	}

	// A Monday maps to itself, a Sunday to the previous Monday.
	if got := mondayOf(monday); !got.Equal(monday) {
		t.Fatalf("expected monday fixpoint, got %s", got)
	}
	sunday := time.Date(2026, 3, 15, 1, 0, 0, 0, time.UTC)
	if got := mondayOf(sunday); got.Format("2006-01-02") != "2026-03-09" {
		t.Fatalf("expected sunday to fold back to monday, got %s", got.Format("2006-01-02"))
	}
}

func TestBuildWeekCalendar(t *testing.T) {
	monday := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	counts := map[string]int{
		"2026-03-09": 1,
		"2026-03-11": 3,
	}
	week := buildWeekCalendar(monday, counts)
	if len(week) != 7 {
		t.Fatalf("expected 7 days, got %d", len(week))
	}
	if week[0]["paw"] != "light" {
		t.Fatalf("expected light monday, got %v", week[0]["paw"])
	}
	if week[2]["paw"] != "dark" {
		t.Fatalf("expected dark wednesday, got %v", week[2]["paw"])
	}
	if week[6]["paw"] != "none" {
		t.Fatalf("expected none sunday, got %v", week[6]["paw"])
	}
	if week[6]["date"] != "2026-03-15" {
		t.Fatalf("unexpected last date: %v", week[6]["date"])
	}
}

func TestBuildMonthGridShape(t *testing.T) {
	// March 2026 starts on a Sunday, so six leading none cells.
	counts := map[string]int{
		"2026-03-01": 2,
		"2026-03-31": 1,
	}
	grid := buildMonthGrid(2026, time.March, counts)
	if len(grid) != 6 {
		t.Fatalf("expected 6 rows, got %d", len(grid))
	}
	for i, row := range grid {
		if len(row) != 7 {
			t.Fatalf("expected 7 cells in row %d, got %d", i, len(row))
		}
	}
	for i := 0; i < 6; i++ {
		if grid[0][i] != "none" {
			t.Fatalf("expected leading none at cell %d, got %s", i, grid[0][i])
		}
	}
	if grid[0][6] != "dark" {
		t.Fatalf("expected dark on March 1st, got %s", grid[0][6])
	}
	// March 31st lands on cell offset 6+30 = 36 → row 5, col 1.
	if grid[5][1] != "light" {
		t.Fatalf("expected light on March 31st, got %s", grid[5][1])
	}
	if grid[5][2] != "none" {
		t.Fatalf("expected trailing none, got %s", grid[5][2])
	}
}

func TestEntryListWindow(t *testing.T) {
	start, end, err := entryListWindow("2026-03", "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if start.Format("2006-01-02") != "2026-03-01" || end.Format("2006-01-02") != "2026-04-01" {
		t.Fatalf("unexpected month window: %s .. %s", start, end)
	}

	start, end, err = entryListWindow("2026-03-15", "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if start.Format("2006-01-02") != "2026-03-15" || end.Format("2006-01-02") != "2026-03-16" {
		t.Fatalf("unexpected day window: %s .. %s", start, end)
	}

	start, end, err = entryListWindow("", "2026-01-01", "2026-01-31")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if end.Format("2006-01-02") != "2026-02-01" {
		t.Fatalf("expected inclusive end day, got %s", end)
	}
	_ = start

	if _, _, err := entryListWindow("March 2026", "", ""); err == nil {
		t.Fatalf("expected invalid date to fail")
	}

	start, end, err = entryListWindow("", "", "")
	if err != nil || start != nil || end != nil {
		t.Fatalf("expected open window without filters")
	}
}

func TestEmotionValence(t *testing.T) {
	cases := map[string]int{
		"joy":     2,
		"calm":    1,
		"tired":   -1,
		"anxiety": -1,
		"sadness": -2,
		"anger":   -2,
	}
	for emotion, want := range cases {
		e := emotion
		if got := emotionValence(&e); got != want {
			t.Fatalf("expected valence %d for %s, got %d", want, emotion, got)
		}
	}
	if emotionValence(nil) != 0 {
		t.Fatalf("expected zero valence for missing emotion")
	}
}

func TestPleasureScore(t *testing.T) {
	joy := "joy"
	three := 3
	if got := pleasureScore(&joy, &three); got != 9 {
		t.Fatalf("expected joy x high = 9, got %f", got)
	}

	sadness := "sadness"
	two := 2
	if got := pleasureScore(&sadness, &two); got != 2.4 {
		t.Fatalf("expected sadness x medium = 2.4, got %f", got)
	}

	if got := pleasureScore(nil, nil); got != 0 {
		t.Fatalf("expected zero for missing emotion, got %f", got)
	}

	calm := "calm"
	if got := pleasureScore(&calm, nil); got != 5 {
		t.Fatalf("expected default weight 1.0, got %f", got)
	}
}

func TestWeekPleasureCurve(t *testing.T) {
	monday := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	joy := "joy"
	one := 1
	entries := []statsEntry{
		{CreatedAt: monday.Add(10 * time.Hour), Emotion: &joy, Intensity: &one},
		{CreatedAt: monday.AddDate(0, 0, 2).Add(8 * time.Hour), Emotion: &joy, Intensity: &one},
	}

	curve, activity := weekPleasureCurve(entries, monday)
	if len(curve) != 7 {
		t.Fatalf("expected 7 points, got %d", len(curve))
	}
	if curve[0]["day"] != "Mon" || curve[0]["pleasure"] != 6.0 {
		t.Fatalf("unexpected monday point: %v", curve[0])
	}
	if curve[1]["pleasure"] != nil {
		t.Fatalf("expected nil pleasure for empty day, got %v", curve[1]["pleasure"])
	}
	if !activity["2026-03-09"] || activity["2026-03-10"] {
		t.Fatalf("unexpected activity map: %v", activity)
	}
}

func TestEmotionPieCoversAllLabels(t *testing.T) {
	joy := "joy"
	entries := []statsEntry{{Emotion: &joy}, {Emotion: &joy}, {}}
	pie := emotionPie(entries)
	if len(pie) != 6 {
		t.Fatalf("expected all six labels, got %d", len(pie))
	}
	if pie["joy"] != 2 {
		t.Fatalf("expected joy count 2, got %d", pie["joy"])
	}
	if pie["anger"] != 0 {
		t.Fatalf("expected zero anger, got %d", pie["anger"])
	}
}
