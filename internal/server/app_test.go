package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"pawdiary/backend/internal/config"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func newRouterTestApp() *App {
	cfg := config.Config{
		JWTSecret:           "unit-test-secret-0123456789",
		JWTAlgorithm:        "HS256",
		CORSAllowOrigins:    []string{"http://localhost:5173"},
		DefaultCompanionKey: "luna",
	}
	return New(cfg, nil, nil, MockModelCaller{})
}

func TestHealthEndpoint(t *testing.T) {
	app := newRouterTestApp()
	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/health", nil)

	app.Router().ServeHTTP(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid health payload: %v", err)
	}
	if body["status"] != "ok" || body["service"] != "pawdiary-api" {
		t.Fatalf("unexpected health payload: %v", body)
	}
}

func TestAuthMiddlewareRejectsMissingBearer(t *testing.T) {
	app := newRouterTestApp()

	for _, header := range []string{"", "Token abc", "Bearer ", "bearer"} {
		recorder := httptest.NewRecorder()
		request := httptest.NewRequest(http.MethodGet, "/entries", nil)
		if header != "" {
			request.Header.Set("Authorization", header)
		}

		app.Router().ServeHTTP(recorder, request)

		if recorder.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401 for header %q, got %d", header, recorder.Code)
		}
		var body map[string]string
		if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
			t.Fatalf("invalid error payload: %v", err)
		}
		if body["detail"] == "" {
			t.Fatalf("expected detail field in error payload")
		}
	}
}

func TestAuthMiddlewareRejectsWrongAlgorithm(t *testing.T) {
	app := newRouterTestApp()

	// Signed with a different algorithm family than the configured HS256.
	token := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("unit-test-secret-0123456789"))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/entries", nil)
	request.Header.Set("Authorization", "Bearer "+signed)

	app.Router().ServeHTTP(recorder, request)

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong algorithm, got %d", recorder.Code)
	}
}

func TestAuthMiddlewareRejectsMissingSubject(t *testing.T) {
	app := newRouterTestApp()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("unit-test-secret-0123456789"))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/entries", nil)
	request.Header.Set("Authorization", "Bearer "+signed)

	app.Router().ServeHTTP(recorder, request)

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for missing subject, got %d", recorder.Code)
	}
}
