// jwt.go provides session-token authentication.
//
// Every browser tab gets an anonymous session; the token is an HS256 JWT whose
// subject is the session id. The session itself lives in memory, so a valid
// token for an expired session is still rejected.
//
// Go Pattern: Gin middleware is a gin.HandlerFunc that calls c.Next() to
// continue the chain or c.Abort() to stop it.
package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/Shimizu-Technology/docsight-api/internal/models"
	"github.com/Shimizu-Technology/docsight-api/internal/session"
)

const sessionContextKey = "session"

// SessionClaims extends standard JWT claims with the session id.
type SessionClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// SessionStore looks up live sessions.
type SessionStore interface {
	Get(id string) (*session.Session, bool)
}

// GenerateSessionToken creates a signed token for a session.
func GenerateSessionToken(sessionID, secret string, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(ttl)
	claims := SessionClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   sessionID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ParseSessionToken validates a token and returns its claims.
func ParseSessionToken(tokenString, secret string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid || claims.SessionID == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// SessionAuth returns middleware that requires a Bearer session token and
// puts the live session into the context.
func SessionAuth(store SessionStore, secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			abortUnauthorized(c, "Missing or invalid Authorization header. Use 'Bearer <token>'")
			return
		}

		claims, err := ParseSessionToken(tokenString, secret)
		if err != nil {
			msg := "Invalid session token"
			if errors.Is(err, jwt.ErrTokenExpired) {
				msg = "Session token expired"
			}
			abortUnauthorized(c, msg)
			return
		}

		s, found := store.Get(claims.SessionID)
		if !found {
			c.JSON(http.StatusNotFound, models.ErrorResponse{
				Error:   "session_not_found",
				Message: "Session expired or closed; create a new one",
				Code:    http.StatusNotFound,
			})
			c.Abort()
			return
		}

		c.Set(sessionContextKey, s)
		c.Next()
	}
}

// GetSession retrieves the authenticated session from the request context.
func GetSession(c *gin.Context) *session.Session {
	val, exists := c.Get(sessionContextKey)
	if !exists {
		return nil
	}
	// Go Pattern: the comma-ok type assertion returns false instead of
	// panicking on a wrong type.
	s, ok := val.(*session.Session)
	if !ok {
		return nil
	}
	return s
}

// bearerToken reads the token from the Authorization header, or from the
// access_token query parameter for EventSource clients, which cannot set
// headers.
func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer "), true
	}
	if tok := c.Query("access_token"); tok != "" && c.Request.Method == http.MethodGet {
		return tok, true
	}
	return "", false
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.JSON(http.StatusUnauthorized, models.ErrorResponse{
		Error:   "unauthorized",
		Message: msg,
		Code:    http.StatusUnauthorized,
	})
	c.Abort()
}
