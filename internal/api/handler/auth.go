package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	jwt "github.com/golang-jwt/jwt/v5"
)

const (
	issuer = "qabulxona"
	// ContextAdminID is the gin context key holding the authenticated admin.
	ContextAdminID = "admin_id"
)

// ErrNotAdmin is returned for a valid token whose subject is not an admin.
var ErrNotAdmin = errors.New("subject is not an admin")

// GenerateToken signs an HS256 token for adminID.
func GenerateToken(secret []byte, adminID int64, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("empty signing secret")
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": strconv.FormatInt(adminID, 10),
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
		"iss": issuer,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// ParseToken validates tokenString and returns the admin id in its subject.
func ParseToken(secret []byte, tokenString string) (int64, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer), jwt.WithExpirationRequired())
	if err != nil {
		return 0, err
	}
	sub, err := token.Claims.GetSubject()
	if err != nil {
		return 0, err
	}
	id, err := strconv.ParseInt(sub, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad subject %q: %w", sub, err)
	}
	return id, nil
}

// RequireAdmin accepts "Authorization: Bearer <token>" or, for browser
// WebSocket clients, a "token" query parameter.
func RequireAdmin(secret []byte, isAdmin func(int64) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := c.Query("token")
		if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			tokenString = strings.TrimPrefix(auth, "Bearer ")
		}
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization token missing"})
			return
		}

		adminID, err := ParseToken(secret, tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token or expired"})
			return
		}
		if isAdmin != nil && !isAdmin(adminID) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": ErrNotAdmin.Error()})
			return
		}
		c.Set(ContextAdminID, adminID)
		c.Next()
	}
}
