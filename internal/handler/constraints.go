// Package handler 提供API处理器
package handler

import (
	"net/http"

	"github.com/zhipai/zhipai/internal/constraints"
)

// ConstraintLibrary 返回约束权重目录，供编辑界面展示可调权重
func ConstraintLibrary(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, constraints.LibraryResponse{Library: constraints.Library()})
}
