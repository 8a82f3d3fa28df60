package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"groupbuy-backend/utils"
)

func newRouter(m *JWTManager) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORSMiddleware(), RequestLogger())
	r.GET("/me", AuthRequired(m), func(c *gin.Context) {
		c.String(http.StatusOK, utils.GetCurrentUserID(c).String())
	})
	return r
}

func TestAuthRequired(t *testing.T) {
	m := NewJWTManager("test-secret", time.Hour)
	r := newRouter(m)
	user := uuid.New()

	token, err := m.Generate(user, "a@example.com")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	expired, _ := NewJWTManager("test-secret", -time.Hour).Generate(user, "")
	foreign, _ := NewJWTManager("other-secret", time.Hour).Generate(user, "")

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"valid", "Bearer " + token, http.StatusOK},
		{"lowercase scheme", "bearer " + token, http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"expired", "Bearer " + expired, http.StatusUnauthorized},
		{"wrong secret", "Bearer " + foreign, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if tt.status == http.StatusOK && rec.Body.String() != user.String() {
				t.Errorf("user id = %s, want %s", rec.Body.String(), user)
			}
		})
	}
}

func TestScopeRequired(t *testing.T) {
	gin.SetMode(gin.TestMode)
	gateway := NewJWTManager("gateway-secret", time.Hour)
	r := gin.New()
	r.POST("/deposit", ScopeRequired(gateway, ScopeDeposit), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("service"))
	})

	service, _ := gateway.GenerateService("razorpay", ScopeDeposit)
	otherScope, _ := gateway.GenerateService("razorpay", "wallet:read")
	sameKeyUser, _ := gateway.Generate(uuid.New(), "a@example.com")
	userToken, _ := NewJWTManager("test-secret", time.Hour).Generate(uuid.New(), "")

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"gateway token", "Bearer " + service, http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"user token", "Bearer " + userToken, http.StatusUnauthorized},
		{"user token on gateway key", "Bearer " + sameKeyUser, http.StatusForbidden},
		{"wrong scope", "Bearer " + otherScope, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/deposit", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if tt.status == http.StatusOK && rec.Body.String() != "razorpay" {
				t.Errorf("service = %q", rec.Body.String())
			}
		})
	}
}

func TestAuthRequiredRejectsServiceTokens(t *testing.T) {
	m := NewJWTManager("test-secret", time.Hour)
	r := newRouter(m)
	token, _ := m.GenerateService("razorpay", ScopeDeposit)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}
