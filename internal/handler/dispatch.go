// Package handler 提供API处理器
package handler

import (
	"net/http"

	"github.com/zhipai/zhipai/internal/metrics"
	"github.com/zhipai/zhipai/internal/repository"
	"github.com/zhipai/zhipai/pkg/dispatcher"
	apperrors "github.com/zhipai/zhipai/pkg/errors"
	"github.com/zhipai/zhipai/pkg/logger"
	"github.com/zhipai/zhipai/pkg/model"
	"github.com/zhipai/zhipai/pkg/normalizer"
	"github.com/zhipai/zhipai/pkg/validator"
)

// MonthSelection 用户选定并锁定的目标月份
type MonthSelection struct {
	Year    int  `json:"year"`
	Month   int  `json:"month"`
	Applied bool `json:"applied"` // 月份是否已被用户显式锁定
}

// DispatchRequest 派发API请求
type DispatchRequest struct {
	Case  *model.SchedulingCase `json:"case"`
	Mode  dispatcher.Mode       `json:"mode,omitempty"`
	Month MonthSelection        `json:"month"`
}

// DispatchHandler 派发相关的API处理器
type DispatchHandler struct {
	dispatcher *dispatcher.Dispatcher
	store      repository.RunStore
}

// NewDispatchHandler 创建派发处理器
func NewDispatchHandler(d *dispatcher.Dispatcher, store repository.RunStore) *DispatchHandler {
	return &DispatchHandler{dispatcher: d, store: store}
}

// Dispatch 处理派发请求
//
// 调用方前置条件在此处落实：月份已锁定、班次和人员非空。
// 归一化在派发前执行，失败退回原始案例并计入指标。
func (h *DispatchHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	var req DispatchRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Case == nil {
		writeError(w, apperrors.InvalidInput("case", "缺少排班案例"))
		return
	}

	if err := validator.Precheck(req.Case, req.Month.Applied); err != nil {
		writeError(w, err)
		return
	}

	payload, fellBack := normalizer.Normalize(req.Case, req.Month.Year, req.Month.Month)
	if fellBack {
		if c := metrics.GetRegistry().GetCounter("zhipai_normalize_fallback_total"); c != nil {
			c.Inc()
		}
		logger.Warn().
			Int("year", req.Month.Year).
			Int("month", req.Month.Month).
			Msg("归一化失败，使用未过滤案例派发")
	}

	result, err := h.dispatcher.Dispatch(r.Context(), payload, req.Mode)

	outcome := "success"
	solver := ""
	if err != nil {
		outcome = string(apperrors.GetCode(err))
	} else {
		solver = string(result.Solver)
	}
	if c := metrics.GetRegistry().GetCounter("zhipai_dispatch_total"); c != nil {
		c.Inc(solver, outcome)
	}

	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Stop 用户主动停止当前派发
func (h *DispatchHandler) Stop(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	h.dispatcher.Stop()
	writeJSON(w, http.StatusOK, map[string]string{"state": string(h.dispatcher.State())})
}

// State 查询派发状态机当前状态
func (h *DispatchHandler) State(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": string(h.dispatcher.State())})
}

// SolverHealth 探测本地求解端并返回能力元数据
func (h *DispatchHandler) SolverHealth(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}
	result := h.dispatcher.RefreshProbe(r.Context())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"available": result.Available,
		"info":      result.Info,
	})
}
