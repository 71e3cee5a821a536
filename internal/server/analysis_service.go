package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"pawdiary/backend/internal/analysis"
)

const replyTypeEmpathetic = "empathetic_reply_with_emotion"

type analysisMode string

const (
	modeReplyAndAnalysis analysisMode = "reply_and_analysis"
	modeAnalysisOnly     analysisMode = "analysis_only"
)

var (
	ErrEntryNotFound          = errors.New("journal entry not found")
	ErrAIUnavailable          = errors.New("AI service unavailable")
	ErrCompanionNotConfigured = errors.New("default AI companion not configured")
	ErrReplyConflict          = errors.New("a reply for this entry was created concurrently")
)

type entrySnapshot struct {
	ID               string
	UserID           string
	Content          string
	CreatedAt        time.Time
	Emotion          *string
	EmotionIntensity *int
	PrimaryTheme     *string
	ThemeScores      map[string]float64
}

type replyRecord struct {
	ID          string
	EntryID     string
	UserID      string
	CompanionID string
	ReplyType   string
	Content     string
	ModelName   string
	CreatedAt   time.Time
}

// entryUpdate carries only the analysis fields the latest run produced.
// Nil fields keep the stored value; a regeneration never nulls out what a
// previous run wrote.
type entryUpdate struct {
	Emotion          *string
	EmotionIntensity *int
	PrimaryTheme     *string
	ThemeScores      map[string]float64
}

type companionProfile struct {
	ID              string
	Name            string
	PersonaPrompt   string
	ReplyLengthHint string
}

type analysisStore interface {
	GetOwnedEntry(ctx context.Context, entryID, userID string) (entrySnapshot, error)
	GetReplyForEntry(ctx context.Context, entryID string) (*replyRecord, error)
	ApplyAnalysis(ctx context.Context, entryID string, update entryUpdate, newReply *replyRecord, replaceReply bool) error
}

type companionResolver interface {
	CompanionForUser(ctx context.Context, userID string) (companionProfile, error)
}

type analysisOutcome struct {
	Entry  entrySnapshot
	Reply  *replyRecord
	Cached bool
}

// entryAnalyzer runs one journal entry through the model and persists the
// outcome. All collaborators are narrow interfaces so the state machine can
// be exercised without a database or a live model.
type entryAnalyzer struct {
	store      analysisStore
	companions companionResolver
	model      ModelCaller
}

func newEntryAnalyzer(store analysisStore, companions companionResolver, model ModelCaller) *entryAnalyzer {
	return &entryAnalyzer{store: store, companions: companions, model: model}
}

func (s *entryAnalyzer) runEntryAnalysis(
	ctx context.Context,
	entryID, userID string,
	mode analysisMode,
	forceRegenerate bool,
) (analysisOutcome, error) {
	entry, err := s.store.GetOwnedEntry(ctx, entryID, userID)
	if err != nil {
		return analysisOutcome{}, err
	}

	existingReply, err := s.store.GetReplyForEntry(ctx, entryID)
	if err != nil {
		return analysisOutcome{}, err
	}

	if !forceRegenerate {
		if mode == modeReplyAndAnalysis && existingReply != nil {
			return analysisOutcome{Entry: entry, Reply: existingReply, Cached: true}, nil
		}
		if mode == modeAnalysisOnly && entry.Emotion != nil {
			return analysisOutcome{Entry: entry, Reply: existingReply, Cached: true}, nil
		}
	}

	companion, err := s.companions.CompanionForUser(ctx, userID)
	if err != nil {
		return analysisOutcome{}, err
	}

	persona := analysis.PersonaProfile{
		DisplayName:     companion.Name,
		PersonaPrompt:   companion.PersonaPrompt,
		ReplyLengthHint: companion.ReplyLengthHint,
	}
	prompt := analysis.BuildPrompt(entry.Content, persona, mode == modeAnalysisOnly)

	raw, err := s.model.CallModel(ctx, prompt)
	if err != nil {
		return analysisOutcome{}, fmt.Errorf("%w: %v", ErrAIUnavailable, err)
	}

	result := analysis.Normalize(analysis.ExtractObject(raw))

	update := entryUpdate{
		Emotion:          result.Emotion,
		EmotionIntensity: result.Intensity,
		PrimaryTheme:     result.PrimaryTheme,
		ThemeScores:      result.ThemeScores,
	}

	var newReply *replyRecord
	if mode == modeReplyAndAnalysis {
		content := result.Reply
		if strings.TrimSpace(content) == "" {
			// The unique reply row must exist even when the model returned
			// nothing usable; a single space marks "generated but empty".
			content = " "
		}
		newReply = &replyRecord{
			ID:          uuid.NewString(),
			EntryID:     entry.ID,
			UserID:      userID,
			CompanionID: companion.ID,
			ReplyType:   replyTypeEmpathetic,
			Content:     content,
			ModelName:   s.model.ModelName(),
			CreatedAt:   time.Now().UTC(),
		}
	}

	replaceReply := existingReply != nil
	if err := s.store.ApplyAnalysis(ctx, entry.ID, update, newReply, replaceReply); err != nil {
		return analysisOutcome{}, err
	}

	refreshed, err := s.store.GetOwnedEntry(ctx, entryID, userID)
	if err != nil {
		return analysisOutcome{}, err
	}
	reply := newReply
	if reply == nil {
		reply = existingReply
	}
	return analysisOutcome{Entry: refreshed, Reply: reply, Cached: false}, nil
}

// pgAnalysisStore backs the analyzer with the journal_entries and ai_replies
// tables. ApplyAnalysis runs as one transaction so a forced regeneration can
// never leave an entry with zero or two replies.
type pgAnalysisStore struct {
	db *pgxpool.Pool
}

func (s *pgAnalysisStore) GetOwnedEntry(ctx context.Context, entryID, userID string) (entrySnapshot, error) {
	entry := entrySnapshot{}
	var themeScoresRaw []byte
	err := s.db.QueryRow(
		ctx,
		`SELECT id, user_id, content, created_at, emotion, emotion_intensity, primary_theme, theme_scores
		 FROM journal_entries
		 WHERE id = $1 AND user_id = $2 AND deleted = FALSE`,
		entryID,
		userID,
	).Scan(
		&entry.ID,
		&entry.UserID,
		&entry.Content,
		&entry.CreatedAt,
		&entry.Emotion,
		&entry.EmotionIntensity,
		&entry.PrimaryTheme,
		&themeScoresRaw,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return entrySnapshot{}, ErrEntryNotFound
	}
	if err != nil {
		return entrySnapshot{}, err
	}
	entry.ThemeScores = parseThemeScores(themeScoresRaw)
	return entry, nil
}

func (s *pgAnalysisStore) GetReplyForEntry(ctx context.Context, entryID string) (*replyRecord, error) {
	reply := replyRecord{}
	err := s.db.QueryRow(
		ctx,
		`SELECT id, entry_id, user_id, companion_id, reply_type, content, model_name, created_at
		 FROM ai_replies
		 WHERE entry_id = $1`,
		entryID,
	).Scan(
		&reply.ID,
		&reply.EntryID,
		&reply.UserID,
		&reply.CompanionID,
		&reply.ReplyType,
		&reply.Content,
		&reply.ModelName,
		&reply.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &reply, nil
}

func (s *pgAnalysisStore) ApplyAnalysis(
	ctx context.Context,
	entryID string,
	update entryUpdate,
	newReply *replyRecord,
	replaceReply bool,
) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var themeScoresParam any
	if update.ThemeScores != nil {
		encoded, err := json.Marshal(update.ThemeScores)
		if err != nil {
			return err
		}
		themeScoresParam = string(encoded)
	}

	if _, err := tx.Exec(
		ctx,
		`UPDATE journal_entries
		 SET emotion = COALESCE($2, emotion),
		     emotion_intensity = COALESCE($3, emotion_intensity),
		     primary_theme = COALESCE($4, primary_theme),
		     theme_scores = COALESCE($5::jsonb, theme_scores)
		 WHERE id = $1`,
		entryID,
		update.Emotion,
		update.EmotionIntensity,
		update.PrimaryTheme,
		themeScoresParam,
	); err != nil {
		return err
	}

	if newReply != nil {
		if replaceReply {
			if _, err := tx.Exec(
				ctx,
				`DELETE FROM ai_replies WHERE entry_id = $1`,
				entryID,
			); err != nil {
				return err
			}
		}
		if err := insertReply(ctx, tx, *newReply); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func insertReply(ctx context.Context, q dbQuerier, reply replyRecord) error {
	_, err := q.Exec(
		ctx,
		`INSERT INTO ai_replies (id, entry_id, user_id, companion_id, reply_type, content, model_name, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		reply.ID,
		reply.EntryID,
		reply.UserID,
		reply.CompanionID,
		reply.ReplyType,
		reply.Content,
		reply.ModelName,
		reply.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrReplyConflict
		}
		return err
	}
	return nil
}

// pgCompanionResolver resolves the user's chosen companion, falling back to
// the configured default preset when the user never picked one.
type pgCompanionResolver struct {
	db         *pgxpool.Pool
	defaultKey string
}

func (r *pgCompanionResolver) CompanionForUser(ctx context.Context, userID string) (companionProfile, error) {
	profile := companionProfile{}
	var personaPrompt, replyLengthHint *string

	err := r.db.QueryRow(
		ctx,
		`SELECT c.id, c.name, c.persona_prompt, c.reply_length_hint
		 FROM users u
		 JOIN ai_companions c ON c.id = u.companion_id
		 WHERE u.id = $1 AND c.is_active = TRUE`,
		userID,
	).Scan(&profile.ID, &profile.Name, &personaPrompt, &replyLengthHint)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return companionProfile{}, err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		err = r.db.QueryRow(
			ctx,
			`SELECT id, name, persona_prompt, reply_length_hint
			 FROM ai_companions
			 WHERE key = $1 AND is_active = TRUE`,
			r.defaultKey,
		).Scan(&profile.ID, &profile.Name, &personaPrompt, &replyLengthHint)
		if errors.Is(err, pgx.ErrNoRows) {
			return companionProfile{}, ErrCompanionNotConfigured
		}
		if err != nil {
			return companionProfile{}, err
		}
	}

	if personaPrompt != nil {
		profile.PersonaPrompt = *personaPrompt
	}
	if replyLengthHint != nil {
		profile.ReplyLengthHint = *replyLengthHint
	}
	return profile, nil
}

func parseThemeScores(raw []byte) map[string]float64 {
	if len(raw) == 0 {
		return nil
	}
	var scores map[string]float64
	if err := json.Unmarshal(raw, &scores); err != nil || scores == nil {
		return nil
	}
	return scores
}
