package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
)

type companionSelectRequest struct {
	CompanionID string `json:"companion_id" binding:"required"`
}

func (a *App) listCompanions(c *gin.Context) {
	rows, err := a.db.Query(
		c.Request.Context(),
		`SELECT id, name, key, identity_title, description, tags, avatar_key, theme_color, order_index
		 FROM ai_companions
		 WHERE is_active = TRUE
		 ORDER BY order_index ASC`,
	)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "Failed to load companions")
		return
	}
	defer rows.Close()

	result := make([]gin.H, 0)
	for rows.Next() {
		var (
			id            string
			name          string
			key           string
			identityTitle string
			description   string
			tags          []string
			avatarKey     string
			themeColor    string
			orderIndex    int
		)
		if err := rows.Scan(&id, &name, &key, &identityTitle, &description, &tags, &avatarKey, &themeColor, &orderIndex); err != nil {
			writeError(c, http.StatusInternalServerError, "Failed to parse companions")
			return
		}
		result = append(result, gin.H{
			"id":             id,
			"name":           name,
			"key":            key,
			"identity_title": identityTitle,
			"description":    description,
			"tags":           tags,
			"avatar_key":     avatarKey,
			"theme_color":    themeColor,
			"order_index":    orderIndex,
		})
	}
	if err := rows.Err(); err != nil {
		writeError(c, http.StatusInternalServerError, "Failed to read companions")
		return
	}

	c.JSON(http.StatusOK, result)
}

func (a *App) getCompanion(c *gin.Context) {
	var (
		id              string
		name            string
		key             string
		identityTitle   string
		description     string
		tags            []string
		avatarKey       string
		themeColor      string
		orderIndex      int
		replyLengthHint *string
		createdAt       time.Time
	)
	err := a.db.QueryRow(
		c.Request.Context(),
		`SELECT id, name, key, identity_title, description, tags, avatar_key, theme_color,
		        order_index, reply_length_hint, created_at
		 FROM ai_companions
		 WHERE id = $1`,
		c.Param("id"),
	).Scan(&id, &name, &key, &identityTitle, &description, &tags, &avatarKey, &themeColor,
		&orderIndex, &replyLengthHint, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(c, http.StatusNotFound, "Companion not found")
		return
	}
	if err != nil {
		writeError(c, http.StatusInternalServerError, "Failed to load companion")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":                id,
		"name":              name,
		"key":               key,
		"identity_title":    identityTitle,
		"description":       description,
		"tags":              tags,
		"avatar_key":        avatarKey,
		"theme_color":       themeColor,
		"order_index":       orderIndex,
		"reply_length_hint": optionalString(replyLengthHint),
		"created_at":        createdAt.UTC().Format(time.RFC3339),
	})
}

func (a *App) selectCompanion(c *gin.Context) {
	user, ok := authUserFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req companionSelectRequest
	if !mustJSON(c, &req) {
		return
	}

	var exists bool
	if err := a.db.QueryRow(
		c.Request.Context(),
		`SELECT EXISTS (SELECT 1 FROM ai_companions WHERE id = $1 AND is_active = TRUE)`,
		req.CompanionID,
	).Scan(&exists); err != nil {
		writeError(c, http.StatusInternalServerError, "Failed to load companion")
		return
	}
	if !exists {
		writeError(c, http.StatusNotFound, "Companion not found")
		return
	}

	if _, err := a.db.Exec(
		c.Request.Context(),
		`UPDATE users SET companion_id = $2 WHERE id = $1`,
		user.ID,
		req.CompanionID,
	); err != nil {
		writeError(c, http.StatusInternalServerError, "Failed to select companion")
		return
	}

	user.CompanionID = &req.CompanionID
	c.JSON(http.StatusOK, userPayload(user))
}
