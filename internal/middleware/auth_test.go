package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/wager-engine/internal/errors"
	"github.com/wfunc/wager-engine/internal/utils"
)

func newRouter(jwt *utils.JWTManager) *gin.Engine {
	gin.SetMode(gin.TestMode)
	auth := NewAuthMiddleware(jwt)
	r := gin.New()
	r.GET("/me", auth.RequireAuth(), func(c *gin.Context) {
		id, _ := GetPlayerID(c)
		c.String(http.StatusOK, id)
	})
	r.GET("/admin", auth.RequireAuth(), auth.RequireRole(utils.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestRequireAuth(t *testing.T) {
	jwt := utils.NewJWTManager("secret", time.Hour, time.Hour)
	r := newRouter(jwt)
	token, err := jwt.GenerateAccessToken("alice", utils.RolePlayer)
	require.NoError(t, err)

	tests := []struct {
		name   string
		setup  func(req *http.Request)
		status int
		body   string
	}{
		{"bearer header", func(req *http.Request) { req.Header.Set("Authorization", "Bearer "+token) }, http.StatusOK, "alice"},
		{"access token header", func(req *http.Request) { req.Header.Set("X-Access-Token", token) }, http.StatusOK, "alice"},
		{"query param", func(req *http.Request) { req.URL.RawQuery = "token=" + token }, http.StatusOK, "alice"},
		{"missing", func(req *http.Request) {}, http.StatusUnauthorized, ""},
		{"garbage", func(req *http.Request) { req.Header.Set("Authorization", "Bearer nope") }, http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			tt.setup(req)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, tt.body, w.Body.String())
				return
			}
			var resp errors.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			assert.Equal(t, "Unauthenticated", resp.Error.Kind)
		})
	}
}

func TestRequireRole(t *testing.T) {
	jwt := utils.NewJWTManager("secret", time.Hour, time.Hour)
	r := newRouter(jwt)

	player, _ := jwt.GenerateAccessToken("alice", utils.RolePlayer)
	admin, _ := jwt.GenerateAccessToken("root", utils.RoleAdmin)

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+player)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+admin)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}
