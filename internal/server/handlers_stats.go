package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"pawdiary/backend/internal/analysis"
)

var weekdayLabels = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

type statsEntry struct {
	CreatedAt    time.Time
	Content      string
	Emotion      *string
	Intensity    *int
	PrimaryTheme *string
}

func (a *App) loadStatsEntries(ctx context.Context, userID string, start, end time.Time) ([]statsEntry, error) {
	rows, err := a.db.Query(
		ctx,
		`SELECT created_at, content, emotion, emotion_intensity, primary_theme
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

	entries := make([]statsEntry, 0)
	for rows.Next() {
		var e statsEntry
		if err := rows.Scan(&e.CreatedAt, &e.Content, &e.Emotion, &e.Intensity, &e.PrimaryTheme); err != nil {
			return nil, err
		}
		e.CreatedAt = e.CreatedAt.UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func emotionPie(entries []statsEntry) map[string]int {
	counts := map[string]int{
		analysis.EmotionJoy:     0,
		analysis.EmotionCalm:    0,
		analysis.EmotionTired:   0,
		analysis.EmotionAnxiety: 0,
		analysis.EmotionSadness: 0,
		analysis.EmotionAnger:   0,
	}
	for _, e := range entries {
		if e.Emotion == nil {
			continue
		}
		if _, ok := counts[*e.Emotion]; ok {
			counts[*e.Emotion]++
		}
	}
	return counts
}

func topicCounts(entries []statsEntry) map[string]int {
	counts := map[string]int{
		analysis.ThemeWork:    0,
		analysis.ThemeHobbies: 0,
		analysis.ThemeSocial:  0,
		analysis.ThemeOther:   0,
	}
	for _, e := range entries {
		if e.PrimaryTheme == nil {
			continue
		}
		if _, ok := counts[*e.PrimaryTheme]; ok {
			counts[*e.PrimaryTheme]++
		}
	}
	return counts
}

func activeDayCount(entries []statsEntry) int {
	days := make(map[string]struct{})
	for _, e := range entries {
		days[e.CreatedAt.Format("2006-01-02")] = struct{}{}
	}
	return len(days)
}

func totalWordCount(entries []statsEntry) int {
	total := 0
	for _, e := range entries {
		total += len([]rune(e.Content))
	}
	return total
}

func monthPleasureCurve(entries []statsEntry, year int, month time.Month, daysInMonth int) ([]gin.H, map[string]bool) {
	byDay := make(map[int][]float64)
	for _, e := range entries {
		byDay[e.CreatedAt.Day()] = append(byDay[e.CreatedAt.Day()], pleasureScore(e.Emotion, e.Intensity))
	}

	curve := make([]gin.H, 0, daysInMonth)
	activity := make(map[string]bool, daysInMonth)
	for day := 1; day <= daysInMonth; day++ {
		curve = append(curve, gin.H{
			"day":      day,
			"pleasure": meanOrNil(byDay[day]),
		})
		activity[fmt.Sprintf("%04d-%02d-%02d", year, int(month), day)] = len(byDay[day]) > 0
	}
	return curve, activity
}

func weekPleasureCurve(entries []statsEntry, monday time.Time) ([]gin.H, map[string]bool) {
	byWeekday := make(map[int][]float64)
	for _, e := range entries {
		wd := (int(e.CreatedAt.Weekday()) + 6) % 7
		byWeekday[wd] = append(byWeekday[wd], pleasureScore(e.Emotion, e.Intensity))
	}

	curve := make([]gin.H, 0, 7)
	activity := make(map[string]bool, 7)
	for i, label := range weekdayLabels {
		curve = append(curve, gin.H{
			"day":      label,
			"pleasure": meanOrNil(byWeekday[i]),
		})
		activity[monday.AddDate(0, 0, i).Format("2006-01-02")] = len(byWeekday[i]) > 0
	}
	return curve, activity
}

func (a *App) getStats(c *gin.Context) {
	user, ok := authUserFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	statsRange := strings.TrimSpace(c.Query("stats_range"))
	dateParam := strings.TrimSpace(c.Query("date"))

	var (
		start, end    time.Time
		pleasureCurve []gin.H
		activity      map[string]bool
	)

	switch statsRange {
	case "month":
		parsed, err := time.Parse("2006-01", dateParam)
		if err != nil {
			writeError(c, http.StatusBadRequest, "Invalid month format (YYYY-MM)")
			return
		}
		start = time.Date(parsed.Year(), parsed.Month(), 1, 0, 0, 0, 0, time.UTC)
		end = start.AddDate(0, 1, 0)
	case "week":
		day, err := parseDate(dateParam)
		if err != nil {
			writeError(c, http.StatusBadRequest, "Invalid date format (YYYY-MM-DD)")
			return
		}
		start = mondayOf(day)
		end = start.AddDate(0, 0, 7)
	default:
		writeError(c, http.StatusBadRequest, "stats_range must be week or month")
		return
	}

	entries, err := a.loadStatsEntries(c.Request.Context(), user.ID, start, end)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "Failed to load stats")
		return
	}

	if statsRange == "month" {
		daysInMonth := int(end.Sub(start).Hours() / 24)
		pleasureCurve, activity = monthPleasureCurve(entries, start.Year(), start.Month(), daysInMonth)
	} else {
		pleasureCurve, activity = weekPleasureCurve(entries, start)
	}

	c.JSON(http.StatusOK, gin.H{
		"basic": gin.H{
			"total_entries": len(entries),
			"total_words":   totalWordCount(entries),
			"active_days":   activeDayCount(entries),
			"stats_range":   statsRange,
			"date":          dateParam,
		},
		"emotion_pie":       emotionPie(entries),
		"pleasure_curve":    pleasureCurve,
		"activity_calendar": activity,
		"topics":            topicCounts(entries),
	})
}
