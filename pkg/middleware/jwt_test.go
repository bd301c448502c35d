package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/upgrade-events/Upgrade-Events/internal/domain"
)

const testSecret = "test-secret-key-for-jwt-middleware"

var testUserID = uuid.MustParse("5b0c7a3e-3d4b-4b8e-9a0f-0c1d2e3f4a5b")

func init() {
	gin.SetMode(gin.TestMode)
}

func generateTestToken(claims jwt.MapClaims, secret string) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, _ := token.SignedString([]byte(secret))
	return tokenString
}

func setupTestRouter(config *JWTConfig) *gin.Engine {
	router := gin.New()
	router.Use(JWTMiddleware(config))
	router.GET("/protected", func(c *gin.Context) {
		actor, err := GetActor(c)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"user_id": actor.UserID.String(),
			"email":   actor.Email,
			"role":    string(actor.Role),
		})
	})
	router.GET("/skip", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "skipped"})
	})
	return router
}

func doRequest(router *gin.Engine, path, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestJWTMiddleware(t *testing.T) {
	config := &JWTConfig{
		Secret:    testSecret,
		SkipPaths: []string{"/skip"},
	}

	t.Run("valid token", func(t *testing.T) {
		token := generateTestToken(jwt.MapClaims{
			"user_id": testUserID.String(),
			"email":   "buyer@example.com",
			"role":    "user",
			"exp":     time.Now().Add(time.Hour).Unix(),
		}, testSecret)

		w := doRequest(setupTestRouter(config), "/protected", "Bearer "+token)
		if w.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
		}
	})

	t.Run("sub claim accepted", func(t *testing.T) {
		token := generateTestToken(jwt.MapClaims{
			"sub": testUserID.String(),
			"exp": time.Now().Add(time.Hour).Unix(),
		}, testSecret)

		w := doRequest(setupTestRouter(config), "/protected", "Bearer "+token)
		if w.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
		}
		if !strings.Contains(w.Body.String(), `"role":"user"`) {
			t.Errorf("expected default role user, got %s", w.Body.String())
		}
	})

	t.Run("missing authorization header", func(t *testing.T) {
		w := doRequest(setupTestRouter(config), "/protected", "")
		if w.Code != http.StatusUnauthorized {
			t.Errorf("expected status %d, got %d", http.StatusUnauthorized, w.Code)
		}
	})

	t.Run("invalid authorization header format", func(t *testing.T) {
		w := doRequest(setupTestRouter(config), "/protected", "InvalidFormat")
		if w.Code != http.StatusUnauthorized {
			t.Errorf("expected status %d, got %d", http.StatusUnauthorized, w.Code)
		}
	})

	t.Run("empty token after Bearer", func(t *testing.T) {
		w := doRequest(setupTestRouter(config), "/protected", "Bearer ")
		if w.Code != http.StatusUnauthorized {
			t.Errorf("expected status %d, got %d", http.StatusUnauthorized, w.Code)
		}
	})

	t.Run("expired token", func(t *testing.T) {
		token := generateTestToken(jwt.MapClaims{
			"user_id": testUserID.String(),
			"exp":     time.Now().Add(-time.Hour).Unix(),
		}, testSecret)

		w := doRequest(setupTestRouter(config), "/protected", "Bearer "+token)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("expected status %d, got %d", http.StatusUnauthorized, w.Code)
		}
		if !strings.Contains(w.Body.String(), "TOKEN_EXPIRED") {
			t.Errorf("expected TOKEN_EXPIRED code, got %s", w.Body.String())
		}
	})

	t.Run("invalid secret", func(t *testing.T) {
		token := generateTestToken(jwt.MapClaims{
			"user_id": testUserID.String(),
			"exp":     time.Now().Add(time.Hour).Unix(),
		}, "wrong-secret")

		w := doRequest(setupTestRouter(config), "/protected", "Bearer "+token)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("expected status %d, got %d", http.StatusUnauthorized, w.Code)
		}
	})

	t.Run("malformed token", func(t *testing.T) {
		w := doRequest(setupTestRouter(config), "/protected", "Bearer not-a-valid-jwt-token")
		if w.Code != http.StatusUnauthorized {
			t.Errorf("expected status %d, got %d", http.StatusUnauthorized, w.Code)
		}
	})

	t.Run("non uuid user_id", func(t *testing.T) {
		token := generateTestToken(jwt.MapClaims{
			"user_id": "user-123",
			"exp":     time.Now().Add(time.Hour).Unix(),
		}, testSecret)

		w := doRequest(setupTestRouter(config), "/protected", "Bearer "+token)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("expected status %d, got %d", http.StatusUnauthorized, w.Code)
		}
	})

	t.Run("wrong issuer", func(t *testing.T) {
		token := generateTestToken(jwt.MapClaims{
			"user_id": testUserID.String(),
			"iss":     "someone-else",
			"exp":     time.Now().Add(time.Hour).Unix(),
		}, testSecret)

		router := setupTestRouter(&JWTConfig{Secret: testSecret, Issuer: "upgrade-events"})
		w := doRequest(router, "/protected", "Bearer "+token)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("expected status %d, got %d", http.StatusUnauthorized, w.Code)
		}
	})

	t.Run("skip path", func(t *testing.T) {
		w := doRequest(setupTestRouter(config), "/skip", "")
		if w.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
		}
	})

	t.Run("claims extracted correctly", func(t *testing.T) {
		token := generateTestToken(jwt.MapClaims{
			"user_id": testUserID.String(),
			"email":   "owner@example.com",
			"role":    "owner",
			"exp":     time.Now().Add(time.Hour).Unix(),
		}, testSecret)

		w := doRequest(setupTestRouter(config), "/protected", "Bearer "+token)
		if w.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
		}

		body := w.Body.String()
		for _, want := range []string{testUserID.String(), "owner@example.com", "owner"} {
			if !strings.Contains(body, want) {
				t.Errorf("expected %q in response, got %s", want, body)
			}
		}
	})
}

func TestRequireRole(t *testing.T) {
	config := &JWTConfig{Secret: testSecret}

	setupRouterWithRole := func(roles ...domain.Role) *gin.Engine {
		router := gin.New()
		router.Use(JWTMiddleware(config))
		router.GET("/manage", RequireRole(roles...), func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"message": "ok"})
		})
		return router
	}

	tokenFor := func(role string) string {
		return generateTestToken(jwt.MapClaims{
			"user_id": testUserID.String(),
			"role":    role,
			"exp":     time.Now().Add(time.Hour).Unix(),
		}, testSecret)
	}

	t.Run("allowed role", func(t *testing.T) {
		w := doRequest(setupRouterWithRole(domain.RoleOwner, domain.RoleAdmin), "/manage", "Bearer "+tokenFor("owner"))
		if w.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
		}
	})

	t.Run("disallowed role", func(t *testing.T) {
		w := doRequest(setupRouterWithRole(domain.RoleAdmin), "/manage", "Bearer "+tokenFor("user"))
		if w.Code != http.StatusForbidden {
			t.Errorf("expected status %d, got %d", http.StatusForbidden, w.Code)
		}
	})

	t.Run("no authentication", func(t *testing.T) {
		router := gin.New()
		router.GET("/manage", RequireRole(domain.RoleAdmin), func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"message": "ok"})
		})

		w := doRequest(router, "/manage", "")
		if w.Code != http.StatusUnauthorized {
			t.Errorf("expected status %d, got %d", http.StatusUnauthorized, w.Code)
		}
	})
}

func TestHelperFunctions(t *testing.T) {
	t.Run("GetActor", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Set(ContextKeyActor, domain.Actor{UserID: testUserID, Role: domain.RoleAdmin})

		actor, err := GetActor(c)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !actor.IsAdmin() {
			t.Error("expected admin actor")
		}
	})

	t.Run("GetActor not set", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		if _, err := GetActor(c); err != ErrNoActor {
			t.Errorf("expected ErrNoActor, got %v", err)
		}
	})

	t.Run("GetUserID", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Set(ContextKeyUserID, "test-user-id")

		id, ok := GetUserID(c)
		if !ok || id != "test-user-id" {
			t.Errorf("expected 'test-user-id', got '%s' (ok=%v)", id, ok)
		}
	})

	t.Run("GetEmail", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Set(ContextKeyEmail, "test@example.com")

		email, ok := GetEmail(c)
		if !ok || email != "test@example.com" {
			t.Errorf("expected 'test@example.com', got '%s'", email)
		}
	})

	t.Run("GetRole", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Set(ContextKeyRole, "admin")

		role, ok := GetRole(c)
		if !ok || role != "admin" {
			t.Errorf("expected 'admin', got '%s'", role)
		}
	})
}
