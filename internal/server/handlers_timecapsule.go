package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
)

type timeCapsuleCandidate struct {
	Level string
	Date  time.Time
}

// safeDay clamps the day to the last day of the target month, so "one year
// before Feb 29" and similar lookups stay valid.
func safeDay(year int, month time.Month, day int) time.Time {
	lastDay := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, -1).Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func timeCapsuleCandidates(today time.Time) []timeCapsuleCandidate {
	lastYear := safeDay(today.Year()-1, today.Month(), today.Day())

	var lastMonth time.Time
	if today.Month() == time.January {
		lastMonth = safeDay(today.Year()-1, time.December, today.Day())
	} else {
		lastMonth = safeDay(today.Year(), today.Month()-1, today.Day())
	}

	lastWeek := startOfUTCDay(today).AddDate(0, 0, -7)

	return []timeCapsuleCandidate{
		{Level: "year", Date: lastYear},
		{Level: "month", Date: lastMonth},
		{Level: "week", Date: lastWeek},
	}
}

func (a *App) findEntryOnDate(ctx context.Context, userID string, day time.Time) (string, string, error) {
	start := startOfUTCDay(day)
	end := start.AddDate(0, 0, 1)

	var entryID, content string
	err := a.db.QueryRow(
		ctx,
		`SELECT id, content
		 FROM journal_entries
		 WHERE user_id = $1 AND deleted = FALSE AND created_at >= $2 AND created_at < $3
		 ORDER BY created_at DESC
		 LIMIT 1`,
		userID,
		start,
		end,
	).Scan(&entryID, &content)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", "", nil
	}
	if err != nil {
		return "", "", err
	}
	return entryID, content, nil
}

func buildTimeCapsulePrompt(content string, companion companionProfile) string {
	persona := strings.TrimSpace(companion.PersonaPrompt)
	if persona == "" {
		persona = fmt.Sprintf(
			"You are %s, a warm journaling companion. You are helping the user reflect on past writing.",
			companion.Name,
		)
	}

	var b strings.Builder
	b.WriteString(persona)
	b.WriteString("\n\nYou are selecting ONE sentence from the journal entry to show in a \"Time Capsule\" card.\n\n")
	b.WriteString("Rules:\n")
	b.WriteString("- Return exactly one complete sentence from the entry (verbatim, no paraphrase).\n")
	b.WriteString("- Prefer a meaningful or joyful sentence; if none, pick the most meaningful sentence.\n")
	b.WriteString("- Output only the sentence. No quotes, no JSON, no extra text.\n\n")
	b.WriteString("Journal entry:\n\"\"\"")
	b.WriteString(content)
	b.WriteString("\"\"\"\n")
	return b.String()
}

var (
	openingFencePattern = regexp.MustCompile("^```[a-zA-Z0-9]*")
	closingFencePattern = regexp.MustCompile("```$")
)

// cleanModelQuote strips code fences and surrounding quotes and keeps only
// the first non-empty line of the model output.
func cleanModelQuote(raw string) string {
	text := strings.TrimSpace(raw)
	if text == "" {
		return ""
	}

	if strings.HasPrefix(text, "```") {
		text = strings.TrimSpace(openingFencePattern.ReplaceAllString(text, ""))
		text = strings.TrimSpace(closingFencePattern.ReplaceAllString(text, ""))
	}

	if len(text) >= 2 {
		if (strings.HasPrefix(text, `"`) && strings.HasSuffix(text, `"`)) ||
			(strings.HasPrefix(text, "'") && strings.HasSuffix(text, "'")) {
			text = strings.TrimSpace(text[1 : len(text)-1])
		}
	}

	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return text
}

// fallbackQuote picks the longest sentence locally when the model cannot
// produce a usable verbatim quote.
func fallbackQuote(content string) string {
	text := strings.TrimSpace(content)
	if text == "" {
		return ""
	}

	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return strings.TrimSpace(truncateRunes(text, 120))
	}

	longest := sentences[0]
	for _, s := range sentences[1:] {
		if len([]rune(s)) > len([]rune(longest)) {
			longest = s
		}
	}
	return strings.TrimSpace(truncateRunes(longest, 120))
}

func splitSentences(text string) []string {
	terminators := map[rune]bool{
		'.': true, '!': true, '?': true,
		'。': true, '！': true, '？': true,
	}

	sentences := make([]string, 0)
	var current strings.Builder
	for _, r := range text {
		current.WriteRune(r)
		if terminators[r] {
			if s := strings.TrimSpace(current.String()); s != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

func (a *App) extractQuote(ctx context.Context, userID, content string) string {
	companion, err := a.analyzer.companions.CompanionForUser(ctx, userID)
	if err != nil {
		return fallbackQuote(content)
	}

	raw, err := a.model.CallModel(ctx, buildTimeCapsulePrompt(content, companion))
	if err != nil {
		return fallbackQuote(content)
	}

	quote := cleanModelQuote(raw)
	if quote == "" || !strings.Contains(content, quote) {
		return fallbackQuote(content)
	}
	return quote
}

func (a *App) getTimeCapsule(c *gin.Context) {
	user, ok := authUserFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	ctx := c.Request.Context()
	today := time.Now().UTC()

	for _, candidate := range timeCapsuleCandidates(today) {
		entryID, content, err := a.findEntryOnDate(ctx, user.ID, candidate.Date)
		if err != nil {
			writeError(c, http.StatusInternalServerError, "Failed to load time capsule")
			return
		}
		if entryID == "" {
			continue
		}

		c.JSON(http.StatusOK, gin.H{
			"found":        true,
			"source_date":  candidate.Date.Format("2006-01-02"),
			"source_level": candidate.Level,
			"quote":        a.extractQuote(ctx, user.ID, content),
			"entry_id":     entryID,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"found":        false,
		"source_date":  nil,
		"source_level": nil,
		"quote":        nil,
		"entry_id":     nil,
	})
}
