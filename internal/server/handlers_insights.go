package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"pawdiary/backend/internal/analysis"
)

type insightEntry struct {
	CreatedAt   time.Time
	Content     string
	Emotion     *string
	ThemeScores map[string]float64
}

func (a *App) loadInsightEntries(ctx context.Context, userID string, start, end time.Time) ([]insightEntry, error) {
	rows, err := a.db.Query(
		ctx,
		`SELECT created_at, content, emotion, theme_scores
		 FROM journal_entries
		 WHERE user_id = $1 AND deleted = FALSE AND created_at >= $2 AND created_at < $3
		 ORDER BY created_at ASC`,
		userID,
		start,
		end,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]insightEntry, 0)
	for rows.Next() {
		var e insightEntry
		var themeScoresRaw []byte
		if err := rows.Scan(&e.CreatedAt, &e.Content, &e.Emotion, &themeScoresRaw); err != nil {
			return nil, err
		}
		e.CreatedAt = e.CreatedAt.UTC()
		e.ThemeScores = parseThemeScores(themeScoresRaw)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// insightWindow returns [start, end) in UTC: the current ISO week or the
// current calendar month.
func insightWindow(rangeType string, now time.Time) (time.Time, time.Time) {
	if rangeType == "week" {
		start := mondayOf(now)
		return start, start.AddDate(0, 0, 7)
	}
	utc := now.UTC()
	start := time.Date(utc.Year(), utc.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

// renormalizeStoredThemes cleans one entry's stored distribution the same way
// the write path does: negatives clamp to zero, an all-zero map is discarded,
// and the rounding residual lands on "other".
func renormalizeStoredThemes(scores map[string]float64) map[string]float64 {
	if scores == nil {
		return nil
	}
	cleaned := make(map[string]float64, len(analysis.ThemeKeys))
	total := 0.0
	for _, key := range analysis.ThemeKeys {
		v := scores[key]
		if v < 0 {
			v = 0
		}
		cleaned[key] = v
		total += v
	}
	if total <= 0 {
		return nil
	}
	sum := 0.0
	for _, key := range analysis.ThemeKeys {
		cleaned[key] /= total
		sum += cleaned[key]
	}
	if delta := 1 - sum; delta != 0 {
		other := cleaned[analysis.ThemeOther] + delta
		if other < 0 {
			other = 0
		}
		cleaned[analysis.ThemeOther] = other
	}
	return cleaned
}

// aggregateThemeDistribution averages the per-entry distributions. Entries
// without usable theme scores are skipped; no usable entry means an empty map
// so the client can render an empty state.
func aggregateThemeDistribution(entries []insightEntry) map[string]float64 {
	sums := make(map[string]float64, len(analysis.ThemeKeys))
	validCount := 0
	for _, e := range entries {
		normalized := renormalizeStoredThemes(e.ThemeScores)
		if normalized == nil {
			continue
		}
		validCount++
		for _, key := range analysis.ThemeKeys {
			sums[key] += normalized[key]
		}
	}
	if validCount == 0 {
		return map[string]float64{}
	}

	total := 0.0
	for _, key := range analysis.ThemeKeys {
		total += sums[key]
	}
	if total == 0 {
		total = 1
	}
	distribution := make(map[string]float64, len(analysis.ThemeKeys))
	for _, key := range analysis.ThemeKeys {
		distribution[key] = roundTo(sums[key]/total, 3)
	}
	return distribution
}

func roundTo(value float64, decimals int) float64 {
	factor := 1.0
	for i := 0; i < decimals; i++ {
		factor *= 10
	}
	return float64(int64(value*factor+0.5)) / factor
}

func emotionCounts(entries []insightEntry) map[string]int {
	counts := make(map[string]int)
	for _, e := range entries {
		if e.Emotion != nil {
			counts[*e.Emotion]++
		}
	}
	return counts
}

func valenceTrend(entries []insightEntry) []gin.H {
	byDay := make(map[string]int)
	for _, e := range entries {
		day := e.CreatedAt.Format("2006-01-02")
		byDay[day] += emotionValence(e.Emotion)
	}

	days := make([]string, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Strings(days)

	trend := make([]gin.H, 0, len(days))
	for _, day := range days {
		trend = append(trend, gin.H{"date": day, "valence": byDay[day]})
	}
	return trend
}

func buildNotePrompt(companion companionProfile, trend []gin.H, counts map[string]int) string {
	persona := strings.TrimSpace(companion.PersonaPrompt)
	if persona == "" {
		name := companion.Name
		if name == "" {
			name = "Your companion"
		}
		persona = fmt.Sprintf(
			"You are %s, a warm, supportive emotional journaling companion. "+
				"You speak gently, with emotional sensitivity, never clinical. "+
				"Your tone is encouraging, calming and empathetic.",
			name,
		)
	}

	trendJSON, _ := json.Marshal(trend)
	countsJSON, _ := json.Marshal(counts)

	var b strings.Builder
	b.WriteString(persona)
	b.WriteString("\n\nYour task:\n")
	b.WriteString("Write a short supportive message for the user based on their recent emotional patterns.\n\n")
	b.WriteString("Guidelines:\n")
	b.WriteString("- 2-4 sentences only.\n")
	b.WriteString("- Warm, encouraging, human-like tone.\n")
	b.WriteString("- Reference the emotions or patterns implied by the data.\n")
	b.WriteString("- Avoid generic statements like \"everything will be fine.\"\n")
	b.WriteString("- No markdown. No JSON. Return plain text only.\n\n")
	b.WriteString("Emotional data:\n")
	b.WriteString("Valence trend: ")
	b.Write(trendJSON)
	b.WriteString("\nEmotion counts: ")
	b.Write(countsJSON)
	b.WriteString("\n\nNow write the message:\n")
	return b.String()
}

func noteCacheKey(userID, rangeType string, periodStart time.Time) string {
	return fmt.Sprintf("insights:note:%s:%s:%s", userID, rangeType, periodStart.Format("2006-01-02"))
}

// companionNote produces the "note from your companion" block, caching the
// model output per user/range/period so every page view does not cost a model
// call. A model failure degrades to an empty note.
func (a *App) companionNote(
	ctx context.Context,
	userID, rangeType string,
	periodStart time.Time,
	trend []gin.H,
	counts map[string]int,
) (string, string) {
	companion, err := a.analyzer.companions.CompanionForUser(ctx, userID)
	author := "Companion"
	if err == nil && companion.Name != "" {
		author = companion.Name
	}

	key := noteCacheKey(userID, rangeType, periodStart)
	if a.cache != nil {
		if cached, err := a.cache.Get(ctx, key).Result(); err == nil && cached != "" {
			return cached, author
		}
	}

	raw, err := a.model.CallModel(ctx, buildNotePrompt(companion, trend, counts))
	if err != nil {
		log.Printf("insights note generation failed: %v", err)
		return "", author
	}
	note := strings.TrimSpace(raw)
	if note == "" {
		return "", author
	}

	if a.cache != nil {
		ttl := time.Duration(a.cfg.NoteCacheTTLMinutes) * time.Minute
		if ttl <= 0 {
			ttl = 6 * time.Hour
		}
		if err := a.cache.Set(ctx, key, note, ttl).Err(); err != nil {
			log.Printf("insights note cache write failed: %v", err)
		}
	}
	return note, author
}

func (a *App) getInsights(c *gin.Context) {
	user, ok := authUserFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	rangeType := strings.TrimSpace(c.DefaultQuery("range", "week"))
	if rangeType != "week" && rangeType != "month" {
		writeError(c, http.StatusBadRequest, "Invalid range")
		return
	}

	ctx := c.Request.Context()
	now := time.Now().UTC()
	start, end := insightWindow(rangeType, now)

	entries, err := a.loadInsightEntries(ctx, user.ID, start, end)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "Failed to load insights")
		return
	}

	joined := make([]string, 0, len(entries))
	for _, e := range entries {
		joined = append(joined, e.Content)
	}
	words := 0
	if len(joined) > 0 {
		words = len(strings.Fields(strings.Join(joined, " ")))
	}
	activeDays := make(map[string]struct{})
	for _, e := range entries {
		activeDays[e.CreatedAt.Format("2006-01-02")] = struct{}{}
	}

	counts := emotionCounts(entries)
	trend := valenceTrend(entries)

	var calendarBlock gin.H
	if rangeType == "week" {
		monday := mondayOf(now)
		dayCounts, err := a.entryCountsByDay(ctx, user.ID, monday, monday.AddDate(0, 0, 7))
		if err != nil {
			writeError(c, http.StatusInternalServerError, "Failed to load calendar")
			return
		}
		calendarBlock = gin.H{"week": buildWeekCalendar(monday, dayCounts)}
	} else {
		dayCounts, err := a.entryCountsByDay(ctx, user.ID, start, end)
		if err != nil {
			writeError(c, http.StatusInternalServerError, "Failed to load calendar")
			return
		}
		calendarBlock = gin.H{"month": buildMonthGrid(start.Year(), start.Month(), dayCounts)}
	}

	note := ""
	noteAuthor := "Companion"
	if len(entries) > 0 {
		note, noteAuthor = a.companionNote(ctx, user.ID, rangeType, start, trend, counts)
	}

	c.JSON(http.StatusOK, gin.H{
		"stats": gin.H{
			"entries":     len(entries),
			"words":       words,
			"active_days": len(activeDays),
		},
		"themes":        aggregateThemeDistribution(entries),
		"emotions":      counts,
		"valence_trend": trend,
		"calendar":      calendarBlock,
		"booster":       []string{"Morning Run", "Coffee Time", "Drawing"},
		"stressors":     []string{"Deadlines", "Rainy days"},
		"note":          note,
		"note_author":   noteAuthor,
	})
}
