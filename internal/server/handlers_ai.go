package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

func parseForceRegenerate(c *gin.Context) bool {
	raw := strings.ToLower(strings.TrimSpace(c.Query("force_regenerate")))
	return raw == "1" || raw == "true" || raw == "yes"
}

func writeAnalysisError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrEntryNotFound):
		writeError(c, http.StatusNotFound, "Journal entry not found")
	case errors.Is(err, ErrAIUnavailable):
		writeError(c, http.StatusBadGateway, "AI service unavailable")
	case errors.Is(err, ErrReplyConflict):
		writeError(c, http.StatusConflict, "Reply generation conflicted with another request; retry")
	case errors.Is(err, ErrCompanionNotConfigured):
		writeError(c, http.StatusInternalServerError, "Default AI companion not configured")
	default:
		writeError(c, http.StatusInternalServerError, "Failed to run analysis")
	}
}

func (a *App) generateEntryReply(c *gin.Context) {
	user, ok := authUserFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	outcome, err := a.analyzer.runEntryAnalysis(
		c.Request.Context(),
		c.Param("id"),
		user.ID,
		modeReplyAndAnalysis,
		parseForceRegenerate(c),
	)
	if err != nil {
		writeAnalysisError(c, err)
		return
	}

	payload := gin.H{"cached": outcome.Cached, "entry": entryPayload(outcome.Entry, outcome.Reply)}
	if outcome.Reply != nil {
		payload["reply"] = replyPayload(*outcome.Reply)
	}
	c.JSON(http.StatusOK, payload)
}

func (a *App) generateEntryAnalysis(c *gin.Context) {
	user, ok := authUserFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	outcome, err := a.analyzer.runEntryAnalysis(
		c.Request.Context(),
		c.Param("id"),
		user.ID,
		modeAnalysisOnly,
		parseForceRegenerate(c),
	)
	if err != nil {
		writeAnalysisError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"cached":            outcome.Cached,
		"entry_id":          outcome.Entry.ID,
		"emotion":           optionalString(outcome.Entry.Emotion),
		"emotion_intensity": optionalInt(outcome.Entry.EmotionIntensity),
		"primary_theme":     optionalString(outcome.Entry.PrimaryTheme),
		"theme_scores":      outcome.Entry.ThemeScores,
	})
}
