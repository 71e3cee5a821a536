package server

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"pawdiary/backend/internal/config"
)

func newNoteTestApp(t *testing.T, model *fakeModelCaller) (*App, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = cache.Close() })

	app := &App{
		cfg:   config.Config{NoteCacheTTLMinutes: 60},
		cache: cache,
		model: model,
	}
	app.analyzer = newEntryAnalyzer(
		&fakeAnalysisStore{},
		&fakeCompanionResolver{profile: companionProfile{ID: "c1", Name: "Luna"}},
		model,
	)
	return app, mr
}

func TestCompanionNoteCachesModelOutput(t *testing.T) {
	model := &fakeModelCaller{response: "You carried a heavy week with real steadiness. Be gentle with yourself tonight."}
	app, mr := newNoteTestApp(t, model)

	ctx := context.Background()
	periodStart := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	trend := []gin.H{{"date": "2026-03-09", "valence": -2}}
	counts := map[string]int{"sadness": 1}

	note, author := app.companionNote(ctx, "user-1", "week", periodStart, trend, counts)
	if note != model.response {
		t.Fatalf("unexpected note: %q", note)
	}
	if author != "Luna" {
		t.Fatalf("unexpected author: %q", author)
	}
	if model.calls != 1 {
		t.Fatalf("expected one model call, got %d", model.calls)
	}

	// Second view of the same period serves from the cache.
	note2, _ := app.companionNote(ctx, "user-1", "week", periodStart, trend, counts)
	if note2 != note {
		t.Fatalf("expected cached note, got %q", note2)
	}
	if model.calls != 1 {
		t.Fatalf("expected cache hit, got %d model calls", model.calls)
	}

	key := noteCacheKey("user-1", "week", periodStart)
	if !mr.Exists(key) {
		t.Fatalf("expected cache key %q to exist", key)
	}

	// Cache expiry triggers a fresh generation.
	mr.FastForward(2 * time.Hour)
	if _, _ = app.companionNote(ctx, "user-1", "week", periodStart, trend, counts); model.calls != 2 {
		t.Fatalf("expected regeneration after expiry, got %d calls", model.calls)
	}
}

func TestCompanionNoteDegradesOnModelFailure(t *testing.T) {
	model := &fakeModelCaller{err: contextErr{}}
	app, _ := newNoteTestApp(t, model)

	note, author := app.companionNote(
		context.Background(),
		"user-1",
		"week",
		time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC),
		nil,
		nil,
	)
	if note != "" {
		t.Fatalf("expected empty note on model failure, got %q", note)
	}
	if author != "Luna" {
		t.Fatalf("expected author even without a note, got %q", author)
	}
}

type contextErr struct{}

func (contextErr) Error() string { return "model offline" }

func TestBuildNotePromptEmbedsData(t *testing.T) {
	prompt := buildNotePrompt(
		companionProfile{Name: "Sol"},
		[]gin.H{{"date": "2026-03-09", "valence": 2}},
		map[string]int{"joy": 3},
	)
	for _, required := range []string{
		"You are Sol",
		"2-4 sentences only",
		"2026-03-09",
		`"joy":3`,
		"No markdown. No JSON.",
	} {
		if !strings.Contains(prompt, required) {
			t.Fatalf("expected prompt to contain %q", required)
		}
	}
}

func TestRenormalizeStoredThemes(t *testing.T) {
	got := renormalizeStoredThemes(map[string]float64{"work": 2, "hobbies": 1, "social": 1, "other": -3})
	if got == nil {
		t.Fatalf("expected normalized scores")
	}
	sum := 0.0
	for _, v := range got {
		if v < 0 {
			t.Fatalf("expected non-negative score, got %f", v)
		}
		sum += v
	}
	if sum < 0.999999 || sum > 1.000001 {
		t.Fatalf("expected unit sum, got %f", sum)
	}

	if renormalizeStoredThemes(map[string]float64{"work": 0}) != nil {
		t.Fatalf("expected nil for all-zero scores")
	}
	if renormalizeStoredThemes(nil) != nil {
		t.Fatalf("expected nil for missing scores")
	}
}

func TestAggregateThemeDistribution(t *testing.T) {
	entries := []insightEntry{
		{ThemeScores: map[string]float64{"work": 1, "hobbies": 0, "social": 0, "other": 0}},
		{ThemeScores: map[string]float64{"work": 0, "hobbies": 1, "social": 0, "other": 0}},
		{ThemeScores: nil}, // skipped
	}
	got := aggregateThemeDistribution(entries)
	if got["work"] != 0.5 || got["hobbies"] != 0.5 {
		t.Fatalf("unexpected distribution: %v", got)
	}

	if len(aggregateThemeDistribution(nil)) != 0 {
		t.Fatalf("expected empty distribution without entries")
	}
}

func TestValenceTrendSortsByDay(t *testing.T) {
	joy := "joy"
	sadness := "sadness"
	entries := []insightEntry{
		{CreatedAt: time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC), Emotion: &sadness},
		{CreatedAt: time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC), Emotion: &joy},
		{CreatedAt: time.Date(2026, 3, 9, 20, 0, 0, 0, time.UTC), Emotion: &joy},
	}
	trend := valenceTrend(entries)
	if len(trend) != 2 {
		t.Fatalf("expected two trend points, got %d", len(trend))
	}
	if trend[0]["date"] != "2026-03-09" || trend[0]["valence"] != 4 {
		t.Fatalf("unexpected first point: %v", trend[0])
	}
	if trend[1]["date"] != "2026-03-11" || trend[1]["valence"] != -2 {
		t.Fatalf("unexpected second point: %v", trend[1])
	}
}

func TestInsightWindow(t *testing.T) {
	now := time.Date(2026, 3, 11, 13, 0, 0, 0, time.UTC) // Wednesday
	start, end := insightWindow("week", now)
	if start.Format("2006-01-02") != "2026-03-09" || end.Format("2006-01-02") != "2026-03-16" {
		t.Fatalf("unexpected week window: %s .. %s", start, end)
	}

	start, end = insightWindow("month", now)
	if start.Format("2006-01-02") != "2026-03-01" || end.Format("2006-01-02") != "2026-04-01" {
		t.Fatalf("unexpected month window: %s .. %s", start, end)
	}
}
