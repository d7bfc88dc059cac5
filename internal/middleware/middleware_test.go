package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/lalith-99/teamchat/internal/auth"
)

const secret = "test-secret"

func identityRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Identity(secret))
	r.GET("/whoami", func(c *gin.Context) {
		p := GetPrincipal(c)
		c.JSON(http.StatusOK, gin.H{"user_id": p.UserID, "authenticated": p.Authenticated()})
	})
	return r
}

func TestIdentity(t *testing.T) {
	userID := uuid.New()
	token, err := auth.GenerateToken(userID, "a@acme.test", secret, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		query      string
		wantStatus int
		wantAuthed bool
	}{
		{"anonymous", "", "", http.StatusOK, false},
		{"bearer header", "Bearer " + token, "", http.StatusOK, true},
		{"query param", "", "?access_token=" + token, http.StatusOK, true},
		{"wrong scheme", "Basic abc", "", http.StatusUnauthorized, false},
		{"bad token", "Bearer nope", "", http.StatusUnauthorized, false},
		{"bad query token", "", "?access_token=nope", http.StatusUnauthorized, false},
	}
	r := identityRouter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusOK {
				if tt.wantAuthed {
					assert.Contains(t, w.Body.String(), userID.String())
				}
				assert.Contains(t, w.Body.String(), `"authenticated":`+map[bool]string{true: "true", false: "false"}[tt.wantAuthed])
			} else {
				assert.Contains(t, w.Body.String(), "UNAUTHENTICATED")
			}
		})
	}
}

func TestGetPrincipalWithoutMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Equal(t, auth.Anonymous, GetPrincipal(c))
}

func TestIPLimiter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	lim := NewIPLimiter(rate.Every(time.Hour), 2, time.Minute)
	defer lim.Stop()

	r := gin.New()
	r.Use(lim.Middleware())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{200, 200, 429}, codes)

	// another client has its own bucket
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestIPLimiterSweep(t *testing.T) {
	lim := NewIPLimiter(rate.Every(time.Second), 1, time.Minute)
	now := time.Now()
	lim.get("a", now)
	lim.get("b", now.Add(2*time.Minute))

	lim.sweep(now.Add(90 * time.Second))
	assert.Len(t, lim.buckets, 1)
	assert.Contains(t, lim.buckets, "b")
}
