package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"quiz-session-service/internal/dto"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	ContextUserID   = "user_id"
	ContextUserName = "user_name"
)

type Claims struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	jwt.RegisteredClaims
}

// Auth resolves the caller. X-User-ID / X-User-Name are honoured only when
// trustGateway is set or no jwtSecret is configured; otherwise a bearer token
// signed with jwtSecret is required. Browsers cannot set headers on websocket
// upgrades, so the token may also come in the "token" query parameter.
func Auth(jwtSecret string, trustGateway bool) gin.HandlerFunc {
	trustHeaders := trustGateway || jwtSecret == ""
	return func(c *gin.Context) {
		if userID := c.GetHeader("X-User-ID"); userID != "" && trustHeaders {
			name := c.GetHeader("X-User-Name")
			if name == "" {
				name = userID
			}
			c.Set(ContextUserID, userID)
			c.Set(ContextUserName, name)
			c.Next()
			return
		}

		token := c.Query("token")
		if authHeader := c.GetHeader("Authorization"); authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				dto.JsonError(c, http.StatusUnauthorized, "Invalid authorization header format")
				c.Abort()
				return
			}
			token = parts[1]
		}
		if token == "" {
			dto.JsonError(c, http.StatusUnauthorized, "Authorization header is required")
			c.Abort()
			return
		}
		if jwtSecret == "" {
			dto.JsonError(c, http.StatusUnauthorized, "Token authentication is not configured")
			c.Abort()
			return
		}

		claims, err := ValidateToken(token, jwtSecret)
		if err != nil {
			dto.JsonError(c, http.StatusUnauthorized, "Invalid token")
			c.Abort()
			return
		}

		name := claims.Name
		if name == "" {
			name = claims.UserID
		}
		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUserName, name)
		c.Next()
	}
}

func ValidateToken(tokenString, jwtSecret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		return []byte(jwtSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("token has no user_id")
	}
	return claims, nil
}
