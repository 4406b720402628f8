package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"time"
)

// ErrorCode 错误码类型
type ErrorCode int

// 错误码定义（按模块分组）
const (
	// 通用错误 (1000-1999)
	ErrUnknown          ErrorCode = 1000
	ErrInvalidParam     ErrorCode = 1001
	ErrNotFound         ErrorCode = 1002
	ErrAlreadyExists    ErrorCode = 1003
	ErrPermissionDenied ErrorCode = 1004
	ErrTimeout          ErrorCode = 1005
	ErrCanceled         ErrorCode = 1006
	ErrNotImplemented   ErrorCode = 1007

	// 通信错误 (4000-4999)
	ErrWebSocketConnect ErrorCode = 4000
	ErrWebSocketSend    ErrorCode = 4001
	ErrWebSocketClosed  ErrorCode = 4003
	ErrMessageFormat    ErrorCode = 4007

	// 数据库错误 (5000-5999)
	ErrDatabaseConnect ErrorCode = 5000
	ErrDatabaseQuery   ErrorCode = 5001
	ErrDatabaseInsert  ErrorCode = 5002
	ErrDatabaseUpdate  ErrorCode = 5003
	ErrTransaction     ErrorCode = 5005
	ErrDataIntegrity   ErrorCode = 5006
	ErrVersionConflict ErrorCode = 5007
	ErrLogImmutable    ErrorCode = 5008

	// 配置错误 (6000-6999)
	ErrConfigLoad     ErrorCode = 6000
	ErrConfigParse    ErrorCode = 6001
	ErrConfigValidate ErrorCode = 6002
	ErrConfigMissing  ErrorCode = 6003

	// 安全错误 (7000-7999)
	ErrAuthentication ErrorCode = 7000
	ErrAuthorization  ErrorCode = 7001
	ErrTokenExpired   ErrorCode = 7002
	ErrTokenInvalid   ErrorCode = 7003

	// 房间与回合错误 (8000-8999)
	ErrInvalidConfiguration ErrorCode = 8000
	ErrRoomNotFound         ErrorCode = 8001
	ErrRoomFull             ErrorCode = 8002
	ErrRoomNotJoinable      ErrorCode = 8003
	ErrRoomNotActive        ErrorCode = 8004
	ErrNotYourTurn          ErrorCode = 8005
	ErrStaleTurn            ErrorCode = 8006
	ErrInvalidAction        ErrorCode = 8007
	ErrInvalidMove          ErrorCode = 8008
	ErrBetTooLow            ErrorCode = 8009
	ErrInvalidTransition    ErrorCode = 8010

	// 结算错误 (9000-9999)
	ErrInsufficientFunds          ErrorCode = 9000
	ErrSettlementAlreadyCompleted ErrorCode = 9001
	ErrSettlementFailed           ErrorCode = 9002
	ErrWinnerMismatch             ErrorCode = 9003
)

// 错误码消息映射
var errorMessages = map[ErrorCode]string{
	// 通用错误
	ErrUnknown:          "未知错误",
	ErrInvalidParam:     "无效的参数",
	ErrNotFound:         "资源未找到",
	ErrAlreadyExists:    "资源已存在",
	ErrPermissionDenied: "权限不足",
	ErrTimeout:          "操作超时",
	ErrCanceled:         "操作已取消",
	ErrNotImplemented:   "功能未实现",

	// 通信错误
	ErrWebSocketConnect: "WebSocket连接失败",
	ErrWebSocketSend:    "WebSocket发送失败",
	ErrWebSocketClosed:  "WebSocket连接已关闭",
	ErrMessageFormat:    "消息格式错误",

	// 数据库错误
	ErrDatabaseConnect: "数据库连接失败",
	ErrDatabaseQuery:   "数据库查询失败",
	ErrDatabaseInsert:  "数据库插入失败",
	ErrDatabaseUpdate:  "数据库更新失败",
	ErrTransaction:     "事务处理失败",
	ErrDataIntegrity:   "数据完整性错误",
	ErrVersionConflict: "数据版本冲突",
	ErrLogImmutable:    "操作日志不可修改",

	// 配置错误
	ErrConfigLoad:     "配置加载失败",
	ErrConfigParse:    "配置解析失败",
	ErrConfigValidate: "配置验证失败",
	ErrConfigMissing:  "配置项缺失",

	// 安全错误
	ErrAuthentication: "认证失败",
	ErrAuthorization:  "授权失败",
	ErrTokenExpired:   "令牌已过期",
	ErrTokenInvalid:   "无效的令牌",

	// 房间与回合错误
	ErrInvalidConfiguration: "房间参数无效",
	ErrRoomNotFound:         "房间不存在",
	ErrRoomFull:             "房间已满",
	ErrRoomNotJoinable:      "房间不可加入",
	ErrRoomNotActive:        "房间未在进行中",
	ErrNotYourTurn:          "不是你的回合",
	ErrStaleTurn:            "回合已过期",
	ErrInvalidAction:        "无效的动作类型",
	ErrInvalidMove:          "无效的走子",
	ErrBetTooLow:            "下注金额过低",
	ErrInvalidTransition:    "房间状态转换无效",

	// 结算错误
	ErrInsufficientFunds:          "余额不足",
	ErrSettlementAlreadyCompleted: "结算已完成",
	ErrSettlementFailed:           "结算失败",
	ErrWinnerMismatch:             "赢家与房间记录不一致",
}

// errorKinds 面向客户端的稳定错误类别
var errorKinds = map[ErrorCode]string{
	ErrInvalidConfiguration:       "InvalidConfiguration",
	ErrRoomNotFound:               "RoomNotFound",
	ErrRoomFull:                   "RoomFull",
	ErrRoomNotJoinable:            "RoomNotJoinable",
	ErrRoomNotActive:              "RoomNotActive",
	ErrNotYourTurn:                "NotYourTurn",
	ErrStaleTurn:                  "StaleTurn",
	ErrInvalidAction:              "InvalidAction",
	ErrInvalidMove:                "InvalidMove",
	ErrBetTooLow:                  "BetTooLow",
	ErrInvalidTransition:          "InvalidTransition",
	ErrInsufficientFunds:          "InsufficientFunds",
	ErrSettlementAlreadyCompleted: "SettlementAlreadyCompleted",
	ErrSettlementFailed:           "SettlementFailed",
	ErrWinnerMismatch:             "WinnerMismatch",
	ErrVersionConflict:            "VersionConflict",
	ErrInvalidParam:               "InvalidParam",
	ErrNotFound:                   "NotFound",
	ErrPermissionDenied:           "PermissionDenied",
	ErrAuthentication:             "Unauthenticated",
	ErrTokenExpired:               "Unauthenticated",
	ErrTokenInvalid:               "Unauthenticated",
}

// AppError 应用错误结构
type AppError struct {
	Code    ErrorCode    `json:"code"`    // 错误码
	Kind    string       `json:"kind"`    // 错误类别
	Message string       `json:"message"` // 错误消息
	Details string       `json:"details"` // 详细信息
	Cause   error        `json:"-"`       // 原始错误
	Stack   []StackFrame `json:"-"`       // 调用栈
}

// StackFrame 调用栈帧
type StackFrame struct {
	Function string `json:"function"`
	File     string `json:"file"`
	Line     int    `json:"line"`
}

// Error 实现error接口
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%d] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap 返回原始错误
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetails 添加详细信息
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// WithCause 添加原因错误
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	if cause != nil && e.Details == "" {
		e.Details = cause.Error()
	}
	return e
}

// New 创建新的应用错误
func New(code ErrorCode, details ...string) *AppError {
	message, ok := errorMessages[code]
	if !ok {
		message = errorMessages[ErrUnknown]
	}

	kind, ok := errorKinds[code]
	if !ok {
		kind = "Internal"
	}

	err := &AppError{
		Code:    code,
		Kind:    kind,
		Message: message,
	}

	if len(details) > 0 {
		err.Details = strings.Join(details, "; ")
	}

	// 捕获调用栈
	err.captureStack(2)

	return err
}

// Newf 创建格式化的应用错误
func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	details := fmt.Sprintf(format, args...)
	return New(code, details)
}

// Wrap 包装错误
func Wrap(err error, code ErrorCode, details ...string) *AppError {
	if err == nil {
		return nil
	}

	// 如果已经是AppError，保留原始错误码
	if appErr, ok := As(err); ok {
		if len(details) > 0 {
			appErr.Details = strings.Join(details, "; ") + "; " + appErr.Details
		}
		return appErr
	}

	appErr := New(code, details...)
	appErr.Cause = err
	if appErr.Details == "" {
		appErr.Details = err.Error()
	}

	return appErr
}

// Wrapf 包装格式化错误
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *AppError {
	details := fmt.Sprintf(format, args...)
	return Wrap(err, code, details)
}

// As 从错误链中取出AppError
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Is 判断错误是否为指定错误码
func Is(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}

	appErr, ok := As(err)
	return ok && appErr.Code == code
}

// GetCode 获取错误码
func GetCode(err error) ErrorCode {
	if err == nil {
		return 0
	}

	if appErr, ok := As(err); ok {
		return appErr.Code
	}

	return ErrUnknown
}

// captureStack 捕获调用栈
func (e *AppError) captureStack(skip int) {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip+1, pcs)

	if n > 0 {
		frames := runtime.CallersFrames(pcs[:n])
		for {
			frame, more := frames.Next()

			// 跳过runtime和本包的调用
			if strings.Contains(frame.Function, "runtime.") ||
				strings.Contains(frame.Function, "github.com/wfunc/wager-engine/internal/errors") {
				if !more {
					break
				}
				continue
			}

			e.Stack = append(e.Stack, StackFrame{
				Function: frame.Function,
				File:     frame.File,
				Line:     frame.Line,
			})

			if !more {
				break
			}

			// 只保留前10个栈帧
			if len(e.Stack) >= 10 {
				break
			}
		}
	}
}

// GetStack 获取格式化的调用栈
func (e *AppError) GetStack() string {
	if len(e.Stack) == 0 {
		return ""
	}

	var builder strings.Builder
	for i, frame := range e.Stack {
		builder.WriteString(fmt.Sprintf("%d. %s\n   %s:%d\n",
			i+1, frame.Function, frame.File, frame.Line))
	}

	return builder.String()
}

// HTTPStatus 返回对应的HTTP状态码
func (e *AppError) HTTPStatus() int {
	switch e.Code {
	case ErrInvalidParam, ErrAlreadyExists, ErrMessageFormat,
		ErrInvalidConfiguration, ErrInvalidAction, ErrInvalidMove, ErrBetTooLow:
		return http.StatusBadRequest
	case ErrNotFound, ErrRoomNotFound:
		return http.StatusNotFound
	case ErrPermissionDenied, ErrAuthorization, ErrNotYourTurn:
		return http.StatusForbidden
	case ErrTimeout:
		return http.StatusRequestTimeout
	case ErrAuthentication, ErrTokenExpired, ErrTokenInvalid:
		return http.StatusUnauthorized
	case ErrRoomFull, ErrRoomNotJoinable, ErrRoomNotActive, ErrStaleTurn,
		ErrInvalidTransition, ErrVersionConflict, ErrWinnerMismatch:
		return http.StatusConflict
	case ErrInsufficientFunds:
		return http.StatusPaymentRequired
	case ErrSettlementAlreadyCompleted:
		return http.StatusOK
	}

	if e.Code >= 5000 && e.Code <= 5999 {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// IsRetryable 判断错误是否可重试
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	code := GetCode(err)
	switch code {
	case ErrTimeout,
		ErrWebSocketConnect,
		ErrDatabaseConnect,
		ErrVersionConflict:
		return true
	default:
		return false
	}
}

// IsCritical 判断是否为严重错误
func IsCritical(err error) bool {
	if err == nil {
		return false
	}

	code := GetCode(err)
	switch code {
	case ErrDatabaseConnect,
		ErrConfigLoad,
		ErrConfigMissing,
		ErrDataIntegrity,
		ErrSettlementFailed:
		return true
	default:
		return false
	}
}

// Public 返回可以暴露给客户端的错误
// 资金类错误只保留类别与消息，不带账本细节
func Public(err error) *AppError {
	appErr, ok := As(err)
	if !ok {
		return &AppError{Code: ErrUnknown, Kind: "Internal", Message: errorMessages[ErrUnknown]}
	}

	out := &AppError{
		Code:    appErr.Code,
		Kind:    appErr.Kind,
		Message: appErr.Message,
		Details: appErr.Details,
	}
	if (appErr.Code >= 9000 && appErr.Code <= 9999) || (appErr.Code >= 5000 && appErr.Code <= 5999) {
		out.Details = ""
	}
	return out
}

// ErrorResponse API错误响应结构
type ErrorResponse struct {
	Success   bool      `json:"success"`
	Error     *AppError `json:"error,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp int64     `json:"timestamp"`
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(err *AppError, requestID string) *ErrorResponse {
	return &ErrorResponse{
		Success:   false,
		Error:     err,
		RequestID: requestID,
		Timestamp: time.Now().Unix(),
	}
}
