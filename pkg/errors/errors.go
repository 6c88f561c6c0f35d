// Package errors 提供统一的错误处理框架
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code 错误码
type Code string

const (
	// 通用错误码
	CodeUnknown      Code = "UNKNOWN"
	CodeInternal     Code = "INTERNAL_ERROR"
	CodeInvalidInput Code = "INVALID_INPUT"
	CodeNotFound     Code = "NOT_FOUND"
	CodeTimeout      Code = "TIMEOUT"
	CodeCanceled     Code = "CANCELED"

	// 案例前置条件
	CodeValidationFail  Code = "VALIDATION_FAILED"
	CodeNoShifts        Code = "NO_SHIFTS"
	CodeNoProviders     Code = "NO_PROVIDERS"
	CodeMonthNotApplied Code = "MONTH_NOT_APPLIED"

	// 派发相关
	CodeNameConflict      Code = "NAME_CONFLICT"
	CodeLocalSolver       Code = "LOCAL_SOLVER_ERROR"
	CodeAllSolversFailed  Code = "ALL_SOLVERS_FAILED"
	CodeMalformedResponse Code = "MALFORMED_RESPONSE"

	// 数据相关
	CodeDatabaseError Code = "DATABASE_ERROR"
)

// AppError 应用错误
type AppError struct {
	Code       Code                   `json:"code"`
	Message    string                 `json:"message"`
	Details    string                 `json:"details,omitempty"`
	HTTPStatus int                    `json:"-"`
	Cause      error                  `json:"-"`
	Fields     map[string]interface{} `json:"fields,omitempty"`
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 返回底层错误
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetails 添加详细信息
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// WithCause 添加原因
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithField 添加字段
func (e *AppError) WithField(key string, value interface{}) *AppError {
	if e.Fields == nil {
		e.Fields = make(map[string]interface{})
	}
	e.Fields[key] = value
	return e
}

// New 创建新错误
func New(code Code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

// Wrap 包装错误
func Wrap(err error, code Code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

// codeToHTTPStatus 错误码转HTTP状态码
func codeToHTTPStatus(code Code) int {
	switch code {
	case CodeInvalidInput, CodeValidationFail:
		return http.StatusBadRequest
	case CodeNoShifts, CodeNoProviders, CodeMonthNotApplied:
		return http.StatusUnprocessableEntity
	case CodeNotFound:
		return http.StatusNotFound
	case CodeNameConflict:
		return http.StatusConflict
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeCanceled:
		return http.StatusRequestTimeout
	case CodeLocalSolver, CodeAllSolversFailed:
		return http.StatusBadGateway
	case CodeMalformedResponse:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Is 检查错误是否为特定错误码
func Is(err error, code Code) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// GetCode 获取错误码
func GetCode(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// GetHTTPStatus 获取HTTP状态码
func GetHTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// 预定义错误
var (
	ErrNotFound        = New(CodeNotFound, "资源不存在")
	ErrInvalidInput    = New(CodeInvalidInput, "输入参数无效")
	ErrInternal        = New(CodeInternal, "内部错误")
	ErrTimeout         = New(CodeTimeout, "操作超时")
	ErrNoShifts        = New(CodeNoShifts, "案例中没有班次")
	ErrNoProviders     = New(CodeNoProviders, "案例中没有人员")
	ErrMonthNotApplied = New(CodeMonthNotApplied, "尚未锁定目标月份")
)

// InvalidInput 创建输入无效错误
func InvalidInput(field, reason string) *AppError {
	return New(CodeInvalidInput, fmt.Sprintf("字段 '%s' 无效: %s", field, reason))
}

// Validation 创建校验失败错误
func Validation(field, reason string) *AppError {
	return New(CodeValidationFail, fmt.Sprintf("校验失败 '%s': %s", field, reason))
}

// NameConflict 创建输出目录命名冲突错误
func NameConflict(name string) *AppError {
	return New(CodeNameConflict, fmt.Sprintf("输出目录 '%s' 已存在", name)).
		WithField("out_dir", name)
}

// LocalSolver 创建本地求解端错误
func LocalSolver(endpoint string, cause error) *AppError {
	return Wrap(cause, CodeLocalSolver, "本地求解端请求失败").
		WithField("endpoint", endpoint)
}

// AllSolversFailed 创建全部求解端失败错误
func AllSolversFailed(attempts int, cause error) *AppError {
	return Wrap(cause, CodeAllSolversFailed, "所有求解端均不可用").
		WithField("attempts", attempts)
}

// MalformedResponse 创建响应解析失败错误
func MalformedResponse(endpoint string, cause error) *AppError {
	return Wrap(cause, CodeMalformedResponse, "求解端响应无法解析").
		WithField("endpoint", endpoint)
}
