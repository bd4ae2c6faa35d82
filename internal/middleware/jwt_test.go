// jwt_test.go: Session token signing and the SessionAuth middleware.
package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shimizu-Technology/docsight-api/internal/session"
)

const testSecret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func TestSessionToken_RoundTrip(t *testing.T) {
	tok, exp, err := GenerateSessionToken("abc", testSecret, time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	claims, err := ParseSessionToken(tok, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "abc", claims.SessionID)
	assert.Equal(t, "abc", claims.Subject)
}

func TestParseSessionToken_Rejects(t *testing.T) {
	expired, _, err := GenerateSessionToken("abc", testSecret, -time.Minute)
	require.NoError(t, err)
	otherKey, _, err := GenerateSessionToken("abc", "other-secret", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "expired", token: expired},
		{name: "wrong secret", token: otherKey},
		{name: "garbage", token: "not.a.jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSessionToken(tt.token, testSecret)
			assert.Error(t, err)
		})
	}
}

func newAuthRouter(store SessionStore) *gin.Engine {
	r := gin.New()
	r.GET("/whoami", SessionAuth(store, testSecret), func(c *gin.Context) {
		c.String(http.StatusOK, GetSession(c).ID)
	})
	return r
}

func TestSessionAuth(t *testing.T) {
	mgr := session.NewManager(time.Minute, session.Options{})
	defer mgr.Shutdown()
	s := mgr.Create()
	good, _, err := GenerateSessionToken(s.ID, testSecret, time.Hour)
	require.NoError(t, err)
	unknown, _, err := GenerateSessionToken("gone", testSecret, time.Hour)
	require.NoError(t, err)

	r := newAuthRouter(mgr)

	tests := []struct {
		name       string
		target     string
		header     string
		wantStatus int
	}{
		{name: "bearer header", target: "/whoami", header: "Bearer " + good, wantStatus: http.StatusOK},
		{name: "query token for event streams", target: "/whoami?access_token=" + good, wantStatus: http.StatusOK},
		{name: "missing header", target: "/whoami", wantStatus: http.StatusUnauthorized},
		{name: "bad token", target: "/whoami", header: "Bearer nope", wantStatus: http.StatusUnauthorized},
		{name: "session gone", target: "/whoami", header: "Bearer " + unknown, wantStatus: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, s.ID, w.Body.String())
			}
		})
	}
}
