package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type commentCreateRequest struct {
	Content string `json:"content" binding:"required"`
}

func (a *App) listComments(c *gin.Context) {
	user, ok := authUserFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}
	entryID := c.Param("id")
	if !a.entryExistsForUser(c, entryID, user.ID) {
		return
	}

	rows, err := a.db.Query(
		c.Request.Context(),
		`SELECT id, entry_id, user_id, content, created_at
		 FROM journal_comments
		 WHERE entry_id = $1 AND deleted = FALSE
		 ORDER BY created_at ASC`,
		entryID,
	)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "Failed to load comments")
		return
	}
	defer rows.Close()

	result := make([]gin.H, 0)
	for rows.Next() {
		var (
			id        string
			rowEntry  string
			userID    string
			content   string
			createdAt time.Time
		)
		if err := rows.Scan(&id, &rowEntry, &userID, &content, &createdAt); err != nil {
			writeError(c, http.StatusInternalServerError, "Failed to parse comments")
			return
		}
		result = append(result, gin.H{
			"id":         id,
			"entry_id":   rowEntry,
			"user_id":    userID,
			"content":    content,
			"created_at": createdAt.UTC().Format(time.RFC3339),
		})
	}
	if err := rows.Err(); err != nil {
		writeError(c, http.StatusInternalServerError, "Failed to read comments")
		return
	}

	c.JSON(http.StatusOK, result)
}

func (a *App) createComment(c *gin.Context) {
	user, ok := authUserFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}
	entryID := c.Param("id")
	if !a.entryExistsForUser(c, entryID, user.ID) {
		return
	}

	var req commentCreateRequest
	if !mustJSON(c, &req) {
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		writeError(c, http.StatusBadRequest, "Comment content must not be empty")
		return
	}

	commentID := uuid.NewString()
	createdAt := time.Now().UTC()
	if _, err := a.db.Exec(
		c.Request.Context(),
		`INSERT INTO journal_comments (id, entry_id, user_id, content, deleted, created_at)
		 VALUES ($1, $2, $3, $4, FALSE, $5)`,
		commentID,
		entryID,
		user.ID,
		content,
		createdAt,
	); err != nil {
		writeError(c, http.StatusInternalServerError, "Failed to create comment")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":         commentID,
		"entry_id":   entryID,
		"user_id":    user.ID,
		"content":    content,
		"created_at": createdAt.Format(time.RFC3339),
	})
}

func (a *App) deleteComment(c *gin.Context) {
	user, ok := authUserFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}
	commentID := c.Param("comment_id")

	var authorID string
	var deleted bool
	err := a.db.QueryRow(
		c.Request.Context(),
		`SELECT user_id, deleted FROM journal_comments WHERE id = $1 AND entry_id = $2`,
		commentID,
		c.Param("id"),
	).Scan(&authorID, &deleted)
	if err != nil || deleted {
		writeError(c, http.StatusNotFound, "Comment not found")
		return
	}
	if authorID != user.ID {
		writeError(c, http.StatusForbidden, "Not allowed to delete this comment")
		return
	}

	if _, err := a.db.Exec(
		c.Request.Context(),
		`UPDATE journal_comments SET deleted = TRUE WHERE id = $1`,
		commentID,
	); err != nil {
		writeError(c, http.StatusInternalServerError, "Failed to delete comment")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Comment deleted"})
}
