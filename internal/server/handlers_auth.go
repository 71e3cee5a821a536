package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type usernameUpdateRequest struct {
	Username string `json:"username" binding:"required"`
}

func userPayload(user AuthUser) gin.H {
	return gin.H{
		"id":           user.ID,
		"username":     optionalString(user.Username),
		"email":        user.Email,
		"companion_id": optionalString(user.CompanionID),
	}
}

func (a *App) registerUser(c *gin.Context) {
	var req registerRequest
	if !mustJSON(c, &req) {
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		writeError(c, http.StatusBadRequest, "A valid email is required")
		return
	}
	if len(req.Password) < 8 {
		writeError(c, http.StatusBadRequest, "Password must be at least 8 characters")
		return
	}

	ctx := c.Request.Context()

	var exists bool
	if err := a.db.QueryRow(
		ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`,
		email,
	).Scan(&exists); err != nil {
		writeError(c, http.StatusInternalServerError, "Failed to check existing users")
		return
	}
	if exists {
		writeError(c, http.StatusBadRequest, "Email already registered")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "Failed to hash password")
		return
	}

	companionID, err := a.defaultCompanionID(ctx)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "Default AI companion not configured")
		return
	}

	userID := uuid.NewString()
	var username *string
	if trimmed := strings.TrimSpace(req.Username); trimmed != "" {
		username = &trimmed
	}

	if _, err := a.db.Exec(
		ctx,
		`INSERT INTO users (id, username, email, password_hash, companion_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())`,
		userID,
		username,
		email,
		string(hashed),
		companionID,
	); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			writeError(c, http.StatusBadRequest, "Email already registered")
			return
		}
		writeError(c, http.StatusInternalServerError, "Failed to create user")
		return
	}

	c.JSON(http.StatusOK, userPayload(AuthUser{
		ID:          userID,
		Username:    username,
		Email:       email,
		CompanionID: &companionID,
	}))
}

func (a *App) defaultCompanionID(ctx context.Context) (string, error) {
	var companionID string
	err := a.db.QueryRow(
		ctx,
		`SELECT id FROM ai_companions WHERE key = $1 AND is_active = TRUE`,
		a.cfg.DefaultCompanionKey,
	).Scan(&companionID)
	if err != nil {
		return "", err
	}
	return companionID, nil
}

func (a *App) loginUser(c *gin.Context) {
	var req loginRequest
	if !mustJSON(c, &req) {
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	user := AuthUser{}
	var passwordHash string
	err := a.db.QueryRow(
		c.Request.Context(),
		`SELECT id, username, email, password_hash, companion_id FROM users WHERE email = $1`,
		email,
	).Scan(&user.ID, &user.Username, &user.Email, &passwordHash, &user.CompanionID)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(c, http.StatusBadRequest, "Invalid email or password")
		return
	}
	if err != nil {
		writeError(c, http.StatusInternalServerError, "Failed to load user")
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(req.Password)) != nil {
		writeError(c, http.StatusBadRequest, "Invalid email or password")
		return
	}

	token, err := a.issueToken(user.ID)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "Failed to issue token")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": token,
		"token_type":   "bearer",
		"user":         userPayload(user),
	})
}

func (a *App) issueToken(userID string) (string, error) {
	ttl := a.cfg.TokenTTLMinutes
	if ttl <= 0 {
		ttl = 60
	}
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub": userID,
		"iat": now.Unix(),
		"exp": now.Add(time.Duration(ttl) * time.Minute).Unix(),
	}
	if a.cfg.JWTIssuer != "" {
		claims["iss"] = a.cfg.JWTIssuer
	}
	if a.cfg.JWTAudience != "" {
		claims["aud"] = a.cfg.JWTAudience
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(a.cfg.JWTSecret))
}

func (a *App) getMe(c *gin.Context) {
	user, ok := authUserFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}
	c.JSON(http.StatusOK, userPayload(user))
}

func (a *App) updateUsername(c *gin.Context) {
	user, ok := authUserFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req usernameUpdateRequest
	if !mustJSON(c, &req) {
		return
	}
	username := strings.TrimSpace(req.Username)
	if username == "" {
		writeError(c, http.StatusBadRequest, "Username must not be empty")
		return
	}

	if _, err := a.db.Exec(
		c.Request.Context(),
		`UPDATE users SET username = $2 WHERE id = $1`,
		user.ID,
		username,
	); err != nil {
		writeError(c, http.StatusInternalServerError, "Failed to update username")
		return
	}

	user.Username = &username
	c.JSON(http.StatusOK, userPayload(user))
}
