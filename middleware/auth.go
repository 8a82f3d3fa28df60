package middleware

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"groupbuy-backend/utils"
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrMissingToken = errors.New("authorization token required")
)

// ScopeDeposit is carried by payment gateway tokens allowed to credit wallets.
const ScopeDeposit = "wallet:deposit"

// Claims are issued by the user service. User tokens carry user_id; service
// tokens carry a scope and a subject instead.
type Claims struct {
	UserID string `json:"user_id,omitempty"`
	Email  string `json:"email,omitempty"`
	Scope  string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// JWTManager validates HS256 tokens shared with the user service.
type JWTManager struct {
	secretKey     []byte
	tokenDuration time.Duration
}

func NewJWTManager(secretKey string, tokenDuration time.Duration) *JWTManager {
	return &JWTManager{secretKey: []byte(secretKey), tokenDuration: tokenDuration}
}

// Generate signs a token for userID. Used by tests and internal tooling.
func (m *JWTManager) Generate(userID uuid.UUID, email string) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: userID.String(),
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.tokenDuration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// GenerateService signs a token for a backend caller such as the payment
// gateway.
func (m *JWTManager) GenerateService(subject, scope string) (string, error) {
	now := time.Now()
	claims := &Claims{
		Scope: scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.tokenDuration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (m *JWTManager) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secretKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Scope != "" {
		return claims, nil
	}
	if _, err := uuid.Parse(claims.UserID); err != nil {
		return nil, fmt.Errorf("%w: bad user_id", ErrInvalidToken)
	}
	return claims, nil
}

func bearer(c *gin.Context) (string, error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", ErrMissingToken
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", ErrInvalidToken
	}
	return parts[1], nil
}

// AuthRequired rejects requests without a valid bearer token and stores the
// caller's id under "user_id" for utils.GetCurrentUserID.
func AuthRequired(m *JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := bearer(c)
		if err != nil {
			utils.Unauthorized(c, err.Error())
			c.Abort()
			return
		}

		claims, err := m.Validate(token)
		if err != nil || claims.Scope != "" {
			utils.Unauthorized(c, ErrInvalidToken.Error())
			c.Abort()
			return
		}

		c.Set("user_id", uuid.MustParse(claims.UserID))
		c.Set("email", claims.Email)
		c.Next()
	}
}

// ScopeRequired admits only service tokens signed by m that carry scope.
// User tokens are rejected even when signed with the same key.
func ScopeRequired(m *JWTManager, scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := bearer(c)
		if err != nil {
			utils.Unauthorized(c, err.Error())
			c.Abort()
			return
		}

		claims, err := m.Validate(token)
		if err != nil {
			utils.Unauthorized(c, ErrInvalidToken.Error())
			c.Abort()
			return
		}
		if claims.Scope != scope {
			utils.Forbidden(c, "token is not allowed to call this endpoint")
			c.Abort()
			return
		}

		c.Set("service", claims.Subject)
		c.Next()
	}
}
