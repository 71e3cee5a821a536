package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const entrySummaryLimit = 200

type entryCreateRequest struct {
	Content   string     `json:"content" binding:"required"`
	CreatedAt *time.Time `json:"created_at"`
}

type entryUpdateRequest struct {
	Content string `json:"content" binding:"required"`
}

func entryPayload(entry entrySnapshot, reply *replyRecord) gin.H {
	payload := gin.H{
		"id":                entry.ID,
		"content":           entry.Content,
		"created_at":        entry.CreatedAt.UTC().Format(time.RFC3339),
		"emotion":           optionalString(entry.Emotion),
		"emotion_intensity": optionalInt(entry.EmotionIntensity),
		"primary_theme":     optionalString(entry.PrimaryTheme),
		"theme_scores":      entry.ThemeScores,
	}
	if reply != nil {
		payload["ai_reply"] = replyPayload(*reply)
	} else {
		payload["ai_reply"] = nil
	}
	return payload
}

func replyPayload(reply replyRecord) gin.H {
	return gin.H{
		"id":           reply.ID,
		"entry_id":     reply.EntryID,
		"companion_id": reply.CompanionID,
		"reply_type":   reply.ReplyType,
		"content":      reply.Content,
		"model_name":   reply.ModelName,
		"created_at":   reply.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (a *App) createEntry(c *gin.Context) {
	user, ok := authUserFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req entryCreateRequest
	if !mustJSON(c, &req) {
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		writeError(c, http.StatusBadRequest, "Entry content must not be empty")
		return
	}

	createdAt := time.Now().UTC()
	if req.CreatedAt != nil {
		createdAt = req.CreatedAt.UTC()
	}

	entryID := uuid.NewString()
	if _, err := a.db.Exec(
		c.Request.Context(),
		`INSERT INTO journal_entries (id, user_id, content, created_at, deleted)
		 VALUES ($1, $2, $3, $4, FALSE)`,
		entryID,
		user.ID,
		content,
		createdAt,
	); err != nil {
		writeError(c, http.StatusInternalServerError, "Failed to create entry")
		return
	}

	c.JSON(http.StatusOK, entryPayload(entrySnapshot{
		ID:        entryID,
		UserID:    user.ID,
		Content:   content,
		CreatedAt: createdAt,
	}, nil))
}

// entryListWindow translates the list query parameters into a [start, end)
// window. date accepts YYYY-MM (whole month) or YYYY-MM-DD (whole day);
// from/to accept YYYY-MM-DD and take the end day inclusively.
func entryListWindow(date, from, to string) (*time.Time, *time.Time, error) {
	if date != "" {
		if len(date) == 7 {
			month, err := time.Parse("2006-01", date)
			if err != nil {
				return nil, nil, errors.New("Invalid date format")
			}
			start := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)
			end := start.AddDate(0, 1, 0)
			return &start, &end, nil
		}
		day, err := parseDate(date)
		if err != nil {
			return nil, nil, errors.New("Invalid date format")
		}
		end := day.AddDate(0, 0, 1)
		return &day, &end, nil
	}

	if from != "" && to != "" {
		start, err := parseDate(from)
		if err != nil {
			return nil, nil, errors.New("Invalid date range")
		}
		endDay, err := parseDate(to)
		if err != nil {
			return nil, nil, errors.New("Invalid date range")
		}
		end := endDay.AddDate(0, 0, 1)
		return &start, &end, nil
	}

	return nil, nil, nil
}

func (a *App) listEntries(c *gin.Context) {
	user, ok := authUserFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	start, end, err := entryListWindow(
		strings.TrimSpace(c.Query("date")),
		strings.TrimSpace(c.Query("from")),
		strings.TrimSpace(c.Query("to")),
	)
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}

	query := `SELECT id, content, created_at, emotion, primary_theme
	          FROM journal_entries
	          WHERE user_id = $1 AND deleted = FALSE`
	args := []any{user.ID}
	if start != nil && end != nil {
		query += ` AND created_at >= $2 AND created_at < $3`
		args = append(args, *start, *end)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := a.db.Query(c.Request.Context(), query, args...)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "Failed to load entries")
		return
	}
	defer rows.Close()

	result := make([]gin.H, 0)
	for rows.Next() {
		var (
			id           string
			content      string
			createdAt    time.Time
			emotion      *string
			primaryTheme *string
		)
		if err := rows.Scan(&id, &content, &createdAt, &emotion, &primaryTheme); err != nil {
			writeError(c, http.StatusInternalServerError, "Failed to parse entries")
			return
		}
		result = append(result, gin.H{
			"id":            id,
			"created_at":    createdAt.UTC().Format(time.RFC3339),
			"summary":       truncateRunes(content, entrySummaryLimit),
			"emotion":       optionalString(emotion),
			"primary_theme": optionalString(primaryTheme),
		})
	}
	if err := rows.Err(); err != nil {
		writeError(c, http.StatusInternalServerError, "Failed to read entries")
		return
	}

	c.JSON(http.StatusOK, result)
}

func (a *App) getEntry(c *gin.Context) {
	user, ok := authUserFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}
	entryID := c.Param("id")

	store := pgAnalysisStore{db: a.db}
	entry, err := store.GetOwnedEntry(c.Request.Context(), entryID, user.ID)
	if errors.Is(err, ErrEntryNotFound) {
		writeError(c, http.StatusNotFound, "Entry not found")
		return
	}
	if err != nil {
		writeError(c, http.StatusInternalServerError, "Failed to load entry")
		return
	}

	reply, err := store.GetReplyForEntry(c.Request.Context(), entryID)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "Failed to load reply")
		return
	}

	c.JSON(http.StatusOK, entryPayload(entry, reply))
}

func (a *App) updateEntry(c *gin.Context) {
	user, ok := authUserFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}
	entryID := c.Param("id")

	var req entryUpdateRequest
	if !mustJSON(c, &req) {
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		writeError(c, http.StatusBadRequest, "Entry content must not be empty")
		return
	}

	tag, err := a.db.Exec(
		c.Request.Context(),
		`UPDATE journal_entries SET content = $3
		 WHERE id = $1 AND user_id = $2 AND deleted = FALSE`,
		entryID,
		user.ID,
		content,
	)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "Failed to update entry")
		return
	}
	if tag.RowsAffected() == 0 {
		writeError(c, http.StatusNotFound, "Entry not found")
		return
	}

	store := pgAnalysisStore{db: a.db}
	entry, err := store.GetOwnedEntry(c.Request.Context(), entryID, user.ID)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "Failed to load entry")
		return
	}
	reply, err := store.GetReplyForEntry(c.Request.Context(), entryID)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "Failed to load reply")
		return
	}
	c.JSON(http.StatusOK, entryPayload(entry, reply))
}

func (a *App) deleteEntry(c *gin.Context) {
	user, ok := authUserFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}
	entryID := c.Param("id")

	tag, err := a.db.Exec(
		c.Request.Context(),
		`UPDATE journal_entries SET deleted = TRUE
		 WHERE id = $1 AND user_id = $2 AND deleted = FALSE`,
		entryID,
		user.ID,
	)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "Failed to delete entry")
		return
	}
	if tag.RowsAffected() == 0 {
		writeError(c, http.StatusNotFound, "Entry not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Entry deleted"})
}

func (a *App) entryExistsForUser(c *gin.Context, entryID, userID string) bool {
	var exists bool
	err := a.db.QueryRow(
		c.Request.Context(),
		`SELECT EXISTS (
		   SELECT 1 FROM journal_entries
		   WHERE id = $1 AND user_id = $2 AND deleted = FALSE
		 )`,
		entryID,
		userID,
	).Scan(&exists)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		writeError(c, http.StatusInternalServerError, "Failed to load entry")
		return false
	}
	if !exists {
		writeError(c, http.StatusNotFound, "Entry not found")
		return false
	}
	return true
}
