// Package handler 提供API处理器
package handler

import (
	"net/http"
	"strconv"

	"github.com/zhipai/zhipai/internal/repository"
	"github.com/zhipai/zhipai/pkg/dispatcher"
	apperrors "github.com/zhipai/zhipai/pkg/errors"
	"github.com/zhipai/zhipai/pkg/model"
	"github.com/zhipai/zhipai/pkg/stats"
)

// ResultsHandler 运行历史与结果目录的API处理器
type ResultsHandler struct {
	store      repository.RunStore
	dispatcher *dispatcher.Dispatcher
}

// NewResultsHandler 创建结果处理器
func NewResultsHandler(store repository.RunStore, d *dispatcher.Dispatcher) *ResultsHandler {
	return &ResultsHandler{store: store, dispatcher: d}
}

// List 列出运行历史
func (h *ResultsHandler) List(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	runs, err := h.store.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, apperrors.Wrap(err, apperrors.CodeDatabaseError, "运行历史查询失败"))
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

// Get 按运行ID查询，附带按日覆盖统计
func (h *ResultsHandler) Get(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}

	runID := r.URL.Query().Get("run_id")
	if runID == "" {
		writeError(w, apperrors.InvalidInput("run_id", "缺少运行ID"))
		return
	}

	run, err := h.store.GetRun(r.Context(), runID)
	if err != nil {
		writeError(w, apperrors.Wrap(err, apperrors.CodeDatabaseError, "运行记录查询失败"))
		return
	}
	if run == nil {
		writeError(w, apperrors.ErrNotFound)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"run":      run,
		"coverage": stats.CoverageByDate(run.Assignments),
		"workload": stats.WorkloadByProvider(run.Assignments),
	})
}

// Folders 列出本地已知的结果目录（命名冲突检查的本地侧来源）
func (h *ResultsHandler) Folders(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}

	folders, err := h.store.ListFolders(r.Context())
	if err != nil {
		writeError(w, apperrors.Wrap(err, apperrors.CodeDatabaseError, "结果目录查询失败"))
		return
	}
	if folders == nil {
		folders = []model.ResultFolder{}
	}
	writeJSON(w, http.StatusOK, model.FolderListing{Folders: folders})
}

// NextName 推导下一个可用的输出目录名
func (h *ResultsHandler) NextName(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}
	name := h.dispatcher.NextResultName(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{"next_name": name})
}
