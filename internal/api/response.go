package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wfunc/wager-engine/internal/errors"
	"github.com/wfunc/wager-engine/internal/middleware"
)

// Response 成功响应
type Response struct {
	Success   bool  `json:"success"`
	Data      any   `json:"data,omitempty"`
	Timestamp int64 `json:"timestamp"`
}

// ErrorResponse 失败响应
type ErrorResponse = errors.ErrorResponse

func success(c *gin.Context, status int, data any) {
	c.JSON(status, Response{Success: true, Data: data, Timestamp: time.Now().Unix()})
}

// fail 只暴露公开的错误信息，5xx 同时记录到 gin 上下文供访问日志使用
func fail(c *gin.Context, err error) {
	appErr := errors.Public(err)
	if appErr.HTTPStatus() >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	middleware.Abort(c, err)
}

func bindError(err error) error {
	return errors.Wrap(err, errors.ErrInvalidParam)
}

// playerID 已认证的玩家，RequireAuth 之后总是存在
func playerID(c *gin.Context) string {
	id, _ := middleware.GetPlayerID(c)
	return id
}

func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return v
}
