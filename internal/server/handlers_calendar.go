package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

func pawLevel(count int) string {
	switch {
	case count <= 0:
		return "none"
	case count == 1:
		return "light"
	default:
		return "dark"
	}
}

// mondayOf returns the Monday 00:00 UTC of the week containing t.
func mondayOf(t time.Time) time.Time {
	day := startOfUTCDay(t)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// entryCountsByDay groups the user's live entries in [start, end) by UTC day.
func (a *App) entryCountsByDay(ctx context.Context, userID string, start, end time.Time) (map[string]int, error) {
	rows, err := a.db.Query(
		ctx,
		`SELECT (created_at AT TIME ZONE 'UTC')::date AS day, COUNT(*)
		 FROM journal_entries
		 WHERE user_id = $1 AND deleted = FALSE AND created_at >= $2 AND created_at < $3
		 GROUP BY day`,
		userID,
		start,
		end,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var day time.Time
		var count int
		if err := rows.Scan(&day, &count); err != nil {
			return nil, err
		}
		counts[day.Format("2006-01-02")] = count
	}
	return counts, rows.Err()
}

func buildWeekCalendar(monday time.Time, counts map[string]int) []gin.H {
	week := make([]gin.H, 0, 7)
	for i := 0; i < 7; i++ {
		day := monday.AddDate(0, 0, i)
		key := day.Format("2006-01-02")
		week = append(week, gin.H{
			"date": key,
			"paw":  pawLevel(counts[key]),
		})
	}
	return week
}

// buildMonthGrid lays the month out as 6 rows of 7 cells, Monday first, with
// leading and trailing cells padded to "none".
func buildMonthGrid(year int, month time.Month, counts map[string]int) [][]string {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	startWeekday := (int(first.Weekday()) + 6) % 7
	totalDays := first.AddDate(0, 1, 0).Sub(first).Hours() / 24

	cells := make([]string, 0, 42)
	for i := 0; i < startWeekday; i++ {
		cells = append(cells, "none")
	}
	for day := 1; day <= int(totalDays); day++ {
		key := time.Date(year, month, day, 0, 0, 0, 0, time.UTC).Format("2006-01-02")
		cells = append(cells, pawLevel(counts[key]))
	}
	for len(cells) < 42 {
		cells = append(cells, "none")
	}

	grid := make([][]string, 0, 6)
	for i := 0; i < 42; i += 7 {
		grid = append(grid, cells[i:i+7])
	}
	return grid
}

func (a *App) getWeekCalendar(c *gin.Context) {
	user, ok := authUserFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	monday := mondayOf(time.Now().UTC())
	counts, err := a.entryCountsByDay(c.Request.Context(), user.ID, monday, monday.AddDate(0, 0, 7))
	if err != nil {
		writeError(c, http.StatusInternalServerError, "Failed to load calendar")
		return
	}

	c.JSON(http.StatusOK, gin.H{"week": buildWeekCalendar(monday, counts)})
}

func (a *App) getMonthCalendar(c *gin.Context) {
	user, ok := authUserFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	monthParam := strings.TrimSpace(c.Query("month"))
	parsed, err := time.Parse("2006-01", monthParam)
	if err != nil {
		writeError(c, http.StatusBadRequest, "Invalid month format. Use YYYY-MM.")
		return
	}

	first := time.Date(parsed.Year(), parsed.Month(), 1, 0, 0, 0, 0, time.UTC)
	counts, err := a.entryCountsByDay(c.Request.Context(), user.ID, first, first.AddDate(0, 1, 0))
	if err != nil {
		writeError(c, http.StatusInternalServerError, "Failed to load calendar")
		return
	}

	c.JSON(http.StatusOK, gin.H{"month": buildMonthGrid(parsed.Year(), parsed.Month(), counts)})
}
