package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// exportUserData dumps everything the user wrote as one JSON document so the
// diary can leave the service intact.
func (a *App) exportUserData(c *gin.Context) {
	user, ok := authUserFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	ctx := c.Request.Context()

	entries, err := a.exportEntries(ctx, user.ID)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "Failed to export entries")
		return
	}
	comments, err := a.exportComments(ctx, user.ID)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "Failed to export comments")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"exported_at": time.Now().UTC().Format(time.RFC3339),
		"user":        userPayload(user),
		"entries":     entries,
		"comments":    comments,
	})
}

func (a *App) exportEntries(ctx context.Context, userID string) ([]gin.H, error) {
	rows, err := a.db.Query(
		ctx,
		`SELECT e.id, e.content, e.created_at, e.emotion, e.emotion_intensity,
		        e.primary_theme, e.theme_scores,
		        r.id, r.companion_id, r.reply_type, r.content, r.model_name, r.created_at
		 FROM journal_entries e
		 LEFT JOIN ai_replies r ON r.entry_id = e.id
		 WHERE e.user_id = $1 AND e.deleted = FALSE
		 ORDER BY e.created_at ASC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]gin.H, 0)
	for rows.Next() {
		var (
			id             string
			content        string
			createdAt      time.Time
			emotion        *string
			intensity      *int
			primaryTheme   *string
			themeScoresRaw []byte
			replyID        *string
			replyCompanion *string
			replyType      *string
			replyContent   *string
			replyModelName *string
			replyCreatedAt *time.Time
		)
		if err := rows.Scan(
			&id, &content, &createdAt, &emotion, &intensity, &primaryTheme, &themeScoresRaw,
			&replyID, &replyCompanion, &replyType, &replyContent, &replyModelName, &replyCreatedAt,
		); err != nil {
			return nil, err
		}

		item := gin.H{
			"id":                id,
			"content":           content,
			"created_at":        createdAt.UTC().Format(time.RFC3339),
			"emotion":           optionalString(emotion),
			"emotion_intensity": optionalInt(intensity),
			"primary_theme":     optionalString(primaryTheme),
			"theme_scores":      parseThemeScores(themeScoresRaw),
		}
		if replyID != nil {
			item["ai_reply"] = gin.H{
				"id":           *replyID,
				"companion_id": optionalString(replyCompanion),
				"reply_type":   optionalString(replyType),
				"content":      optionalString(replyContent),
				"model_name":   optionalString(replyModelName),
				"created_at":   replyCreatedAt.UTC().Format(time.RFC3339),
			}
		} else {
			item["ai_reply"] = nil
		}
		entries = append(entries, item)
	}
	return entries, rows.Err()
}

func (a *App) exportComments(ctx context.Context, userID string) ([]gin.H, error) {
	rows, err := a.db.Query(
		ctx,
		`SELECT id, entry_id, content, created_at
		 FROM journal_comments
		 WHERE user_id = $1 AND deleted = FALSE
		 ORDER BY created_at ASC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	comments := make([]gin.H, 0)
	for rows.Next() {
		var (
			id        string
			entryID   string
			content   string
			createdAt time.Time
		)
		if err := rows.Scan(&id, &entryID, &content, &createdAt); err != nil {
			return nil, err
		}
		comments = append(comments, gin.H{
			"id":         id,
			"entry_id":   entryID,
			"content":    content,
			"created_at": createdAt.UTC().Format(time.RFC3339),
		})
	}
	return comments, rows.Err()
}
