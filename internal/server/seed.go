package server

import (
	"context"
	"log"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type companionPreset struct {
	Name            string
	Key             string
	IdentityTitle   string
	Description     string
	Tags            []string
	AvatarKey       string
	ThemeColor      string
	OrderIndex      int
	PersonaPrompt   string
	ReplyLengthHint string
	AllowSuggest    bool
}

var companionPresets = []companionPreset{
	{
		Name:          "Luna",
		Key:           "luna",
		IdentityTitle: "Your Gentle Companion",
		Description:   "Luna quietly listens, helping you explore feelings and find inner peace.",
		Tags:          []string{"Gentle", "Insightful", "Calming"},
		AvatarKey:     "luna",
		ThemeColor:    "#CDE6DF",
		OrderIndex:    1,
		PersonaPrompt: "You are Luna, a gentle, soft-spoken journaling companion. " +
			"Your priorities are to listen, validate feelings, and help the user feel safe. " +
			"You never judge or rush them. You do not diagnose or give medical advice. " +
			"When things sound serious, gently encourage seeking real-world professional help.",
		ReplyLengthHint: "medium",
		AllowSuggest:    false,
	},
	{
		Name:          "Sol",
		Key:           "sol",
		IdentityTitle: "Your Bright Cheerleader",
		Description:   "Sol radiates positivity, inspiring you to embrace strengths and move forward.",
		Tags:          []string{"Uplifting", "Optimistic", "Motivating"},
		AvatarKey:     "sol",
		ThemeColor:    "#FADC9B",
		OrderIndex:    2,
		PersonaPrompt: "You are Sol, an encouraging and optimistic journaling companion. " +
			"You highlight the user's strengths and small wins, and offer gentle motivation. " +
			"You stay realistic and avoid toxic positivity. " +
			"You do not diagnose or give medical advice, and for serious issues you encourage seeking real-world help.",
		ReplyLengthHint: "medium",
		AllowSuggest:    true,
	},
	{
		Name:          "Terra",
		Key:           "terra",
		IdentityTitle: "Your Steady Anchor",
		Description:   "Terra offers perspective, helping organize thoughts and find grounding.",
		Tags:          []string{"Grounding", "Clear-headed", "Organizing"},
		AvatarKey:     "terra",
		ThemeColor:    "#C7CBA6",
		OrderIndex:    3,
		PersonaPrompt: "You are Terra, a calm and grounded journaling companion. " +
			"You help the user organize messy thoughts, spot patterns, and see situations more clearly. " +
			"You stay neutral and practical. You do not diagnose or give medical advice, " +
			"and you suggest seeking professional support when things sound severe.",
		ReplyLengthHint: "medium",
		AllowSuggest:    true,
	},
}

// SeedCompanions inserts the preset companions when the table is empty.
// Safe to run on every boot.
func SeedCompanions(ctx context.Context, pool *pgxpool.Pool) error {
	var count int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM ai_companions`).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	for _, preset := range companionPresets {
		if _, err := pool.Exec(
			ctx,
			`INSERT INTO ai_companions (
			   id, name, key, identity_title, description, tags, avatar_key, theme_color,
			   order_index, created_by_user_id, is_active, persona_prompt, reply_length_hint,
			   allow_suggestions, created_at, updated_at
			 )
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULL, TRUE, $10, $11, $12, NOW(), NOW())`,
			uuid.NewString(),
			preset.Name,
			preset.Key,
			preset.IdentityTitle,
			preset.Description,
			preset.Tags,
			preset.AvatarKey,
			preset.ThemeColor,
			preset.OrderIndex,
			preset.PersonaPrompt,
			preset.ReplyLengthHint,
			preset.AllowSuggest,
		); err != nil {
			return err
		}
	}

	log.Printf("seeded %d AI companions", len(companionPresets))
	return nil
}
