package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/wfunc/wager-engine/internal/errors"
	"github.com/wfunc/wager-engine/internal/utils"
)

const (
	playerIDKey = "playerID"
	roleKey     = "role"
)

// TokenValidator 访问令牌校验
type TokenValidator interface {
	ValidateAccessToken(token string) (*utils.JWTClaims, error)
}

// AuthMiddleware JWT认证中间件，令牌中的玩家ID直接信任
type AuthMiddleware struct {
	tokens TokenValidator
}

// NewAuthMiddleware 创建认证中间件
func NewAuthMiddleware(tokens TokenValidator) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// RequireAuth 需要认证的中间件
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			Abort(c, errors.New(errors.ErrAuthentication, "missing token"))
			return
		}

		claims, err := m.tokens.ValidateAccessToken(token)
		if err != nil {
			Abort(c, err)
			return
		}

		c.Set(playerIDKey, claims.PlayerID())
		c.Set(roleKey, claims.Role)
		c.Next()
	}
}

// RequireRole 需要特定角色，必须放在 RequireAuth 之后
func (m *AuthMiddleware) RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, _ := GetRole(c)
		for _, r := range roles {
			if r == role {
				c.Next()
				return
			}
		}
		Abort(c, errors.New(errors.ErrPermissionDenied))
	}
}

// extractToken 依次从 Authorization 头、X-Access-Token 头和 token 查询参数取令牌
// 浏览器的 WebSocket 握手无法带自定义头，只能走查询参数
func extractToken(c *gin.Context) string {
	if bearer := c.GetHeader("Authorization"); bearer != "" {
		parts := strings.SplitN(bearer, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	if token := c.GetHeader("X-Access-Token"); token != "" {
		return token
	}
	return c.Query("token")
}

// GetPlayerID 从上下文获取玩家ID
func GetPlayerID(c *gin.Context) (string, bool) {
	id := c.GetString(playerIDKey)
	return id, id != ""
}

// GetRole 从上下文获取角色
func GetRole(c *gin.Context) (string, bool) {
	role := c.GetString(roleKey)
	return role, role != ""
}

// Abort 以统一的错误结构结束请求
func Abort(c *gin.Context, err error) {
	appErr := errors.Public(err)
	c.AbortWithStatusJSON(appErr.HTTPStatus(), errors.NewErrorResponse(appErr, c.GetHeader("X-Request-ID")))
}
