// Package handler 提供API处理器
package handler

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/zhipai/zhipai/pkg/errors"
	"github.com/zhipai/zhipai/pkg/logger"
)

// APIResponse 统一的API响应包装
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   interface{} `json:"error,omitempty"`
}

// writeJSON 写出成功响应
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(APIResponse{Success: true, Data: data})
}

// writeError 写出错误响应，状态码由错误码决定
func writeError(w http.ResponseWriter, err error) {
	status := apperrors.GetHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.WithError(err).Msg("请求处理失败")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	var appErr *apperrors.AppError
	if e, ok := err.(*apperrors.AppError); ok {
		appErr = e
	} else {
		appErr = apperrors.Wrap(err, apperrors.CodeInternal, "内部错误")
	}
	json.NewEncoder(w).Encode(APIResponse{Success: false, Error: appErr})
}

// decodeBody 解析请求体
func decodeBody(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperrors.Wrap(err, apperrors.CodeInvalidInput, "请求体解析失败")
	}
	return nil
}

// requirePost 检查方法为 POST
func requirePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// requireGet 检查方法为 GET
func requireGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}
