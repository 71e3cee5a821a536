package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"pawdiary/backend/internal/config"
)

type dbQuerier interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

type App struct {
	cfg      config.Config
	db       *pgxpool.Pool
	cache    *redis.Client
	model    ModelCaller
	analyzer *entryAnalyzer
}

type AuthUser struct {
	ID          string
	Username    *string
	Email       string
	CompanionID *string
}

// New wires the HTTP layer. cache may be nil; cached features then recompute
// on every request.
func New(cfg config.Config, db *pgxpool.Pool, cache *redis.Client, model ModelCaller) *App {
	app := &App{
		cfg:   cfg,
		db:    db,
		cache: cache,
		model: model,
	}
	app.analyzer = newEntryAnalyzer(
		&pgAnalysisStore{db: db},
		&pgCompanionResolver{db: db, defaultKey: cfg.DefaultCompanionKey},
		model,
	)
	return app
}

func (a *App) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     a.cfg.CORSAllowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", a.health)

	api := router.Group(a.cfg.APIPrefix)

	api.POST("/users/register", a.registerUser)
	api.POST("/users/login", a.loginUser)

	authed := api.Group("")
	authed.Use(a.authMiddleware())

	authed.GET("/users/me", a.getMe)
	authed.PATCH("/users/me/username", a.updateUsername)
	authed.GET("/users/me/export", a.exportUserData)

	authed.POST("/entries", a.createEntry)
	authed.GET("/entries", a.listEntries)
	authed.GET("/entries/:id", a.getEntry)
	authed.PUT("/entries/:id", a.updateEntry)
	authed.DELETE("/entries/:id", a.deleteEntry)

	authed.POST("/entries/:id/reply", a.generateEntryReply)
	authed.POST("/entries/:id/analysis", a.generateEntryAnalysis)

	authed.GET("/entries/:id/comments", a.listComments)
	authed.POST("/entries/:id/comments", a.createComment)
	authed.DELETE("/entries/:id/comments/:comment_id", a.deleteComment)

	authed.GET("/companions", a.listCompanions)
	authed.GET("/companions/:id", a.getCompanion)
	authed.POST("/companions/select", a.selectCompanion)

	authed.GET("/journals/calendar/week", a.getWeekCalendar)
	authed.GET("/journals/calendar/month", a.getMonthCalendar)

	authed.GET("/stats", a.getStats)
	authed.GET("/insights", a.getInsights)
	authed.GET("/time-capsule", a.getTimeCapsule)

	return router
}

func (a *App) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "pawdiary-api",
	})
}

func (a *App) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
			writeError(c, http.StatusUnauthorized, "Bearer token required")
			return
		}
		tokenString := strings.TrimSpace(authHeader[len("Bearer "):])
		if tokenString == "" {
			writeError(c, http.StatusUnauthorized, "Bearer token required")
			return
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
			if token.Method == nil || token.Method.Alg() != a.cfg.JWTAlgorithm {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(a.cfg.JWTSecret), nil
		})
		if err != nil || !token.Valid {
			writeError(c, http.StatusUnauthorized, "Invalid bearer token")
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			writeError(c, http.StatusUnauthorized, "Invalid token payload")
			return
		}
		if a.cfg.JWTAudience != "" && !claimHasAudience(claims["aud"], a.cfg.JWTAudience) {
			writeError(c, http.StatusUnauthorized, "Invalid token audience")
			return
		}
		if a.cfg.JWTIssuer != "" {
			issuer, _ := claims["iss"].(string)
			if issuer != a.cfg.JWTIssuer {
				writeError(c, http.StatusUnauthorized, "Invalid token issuer")
				return
			}
		}
		sub, _ := claims["sub"].(string)
		sub = strings.TrimSpace(sub)
		if sub == "" {
			writeError(c, http.StatusUnauthorized, "Token subject missing")
			return
		}

		user, err := a.getUserByID(c.Request.Context(), sub)
		if err != nil {
			writeError(c, http.StatusUnauthorized, "User not found")
			return
		}

		c.Set("authUser", user)
		c.Next()
	}
}

func claimHasAudience(value any, audience string) bool {
	switch v := value.(type) {
	case string:
		return v == audience
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && s == audience {
				return true
			}
		}
	case []string:
		for _, item := range v {
			if item == audience {
				return true
			}
		}
	}
	return false
}

func (a *App) getUserByID(ctx context.Context, userID string) (AuthUser, error) {
	user := AuthUser{}
	err := a.db.QueryRow(
		ctx,
		`SELECT id, username, email, companion_id FROM users WHERE id = $1`,
		userID,
	).Scan(&user.ID, &user.Username, &user.Email, &user.CompanionID)
	if errors.Is(err, pgx.ErrNoRows) {
		return AuthUser{}, errors.New("user not found")
	}
	if err != nil {
		return AuthUser{}, err
	}
	return user, nil
}

func authUserFromContext(c *gin.Context) (AuthUser, bool) {
	raw, ok := c.Get("authUser")
	if !ok {
		return AuthUser{}, false
	}
	user, ok := raw.(AuthUser)
	return user, ok
}

func writeError(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": detail})
}

func mustJSON(c *gin.Context, payload any) bool {
	if err := c.ShouldBindJSON(payload); err != nil {
		writeError(c, http.StatusBadRequest, "Invalid request payload")
		return false
	}
	return true
}

func parseDate(value string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

func startOfUTCDay(t time.Time) time.Time {
	utc := t.UTC()
	return time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)
}

func truncateRunes(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit])
}

func optionalString(value *string) any {
	if value == nil {
		return nil
	}
	return *value
}

func optionalInt(value *int) any {
	if value == nil {
		return nil
	}
	return *value
}
