// Package handler 提供API处理器
package handler

import (
	"net/http"

	apperrors "github.com/zhipai/zhipai/pkg/errors"
	"github.com/zhipai/zhipai/pkg/model"
	"github.com/zhipai/zhipai/pkg/normalizer"
	"github.com/zhipai/zhipai/pkg/prefs"
	"github.com/zhipai/zhipai/pkg/validator"
)

// CaseHandler 案例编辑相关的API处理器
type CaseHandler struct {
	defaults prefs.Defaults
}

// NewCaseHandler 创建案例处理器
func NewCaseHandler(defaults prefs.Defaults) *CaseHandler {
	return &CaseHandler{defaults: defaults}
}

// PrefsRequest 偏好编辑请求
type PrefsRequest struct {
	Provider   model.Provider `json:"provider"`
	Op         string         `json:"op"` // fixed_off/preferred_off/fixed_on/preferred_on/clear
	Dates      []string       `json:"dates"`
	ShiftTypes []string       `json:"shift_types,omitempty"`
}

// ApplyPrefs 对人员应用一种偏好编辑操作
func (h *CaseHandler) ApplyPrefs(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	var req PrefsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	var (
		updated model.Provider
		err     error
	)
	switch req.Op {
	case "fixed_off":
		updated = prefs.SetFixedOff(req.Provider, req.Dates)
	case "preferred_off":
		updated = prefs.SetPreferredOff(req.Provider, req.Dates)
	case "fixed_on":
		updated, err = prefs.SetFixedOn(req.Provider, req.Dates, req.ShiftTypes)
	case "preferred_on":
		updated, err = prefs.SetPreferredOn(req.Provider, req.Dates, req.ShiftTypes)
	case "clear":
		updated = prefs.ClearPreferences(req.Provider, req.Dates)
	default:
		err = apperrors.InvalidInput("op", "未知的偏好操作 "+req.Op)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// AddProviderRequest 新建人员请求
type AddProviderRequest struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// AddProvider 新建人员
func (h *CaseHandler) AddProvider(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	var req AddProviderRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	p, err := prefs.AddProvider(req.Name, req.Type, h.defaults)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// MergeProviderRequest 人员部分更新请求
type MergeProviderRequest struct {
	Existing model.Provider `json:"existing"`
	Patch    prefs.Patch    `json:"patch"`
}

// MergeProvider 把部分更新合并到已有人员
func (h *CaseHandler) MergeProvider(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	var req MergeProviderRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	p, err := prefs.MergeProvider(req.Existing, req.Patch, h.defaults)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// RemoveProviderRequest 删除人员请求
type RemoveProviderRequest struct {
	Providers []model.Provider `json:"providers"`
	Index     int              `json:"index"`
	Selected  int              `json:"selected"` // 当前选中的人员下标，无选中时为 -1
}

// RemoveProviderResponse 删除人员响应
type RemoveProviderResponse struct {
	Providers []model.Provider `json:"providers"`
	Selected  int              `json:"selected"` // 删除后调整过的选中下标
}

// RemoveProvider 按下标删除人员，并同步调整当前选中项
func (h *CaseHandler) RemoveProvider(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	var req RemoveProviderRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	providers, err := prefs.RemoveProvider(req.Providers, req.Index)
	if err != nil {
		writeError(w, err)
		return
	}

	// 被删除的人员若正被选中，清除选中；其后的下标整体前移
	selected := req.Selected
	switch {
	case selected == req.Index:
		selected = -1
	case selected > req.Index:
		selected--
	}

	writeJSON(w, http.StatusOK, RemoveProviderResponse{Providers: providers, Selected: selected})
}

// NormalizeRequest 归一化预览请求
type NormalizeRequest struct {
	Case  *model.SchedulingCase `json:"case"`
	Month MonthSelection        `json:"month"`
}

// NormalizeResponse 归一化预览响应
type NormalizeResponse struct {
	Case     *model.SchedulingCase `json:"case"`
	FellBack bool                  `json:"fell_back"` // 归一化失败、退回了原始案例
}

// Normalize 预览案例按锁定月份归一化后的结果
func (h *CaseHandler) Normalize(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	var req NormalizeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Case == nil {
		writeError(w, apperrors.InvalidInput("case", "缺少排班案例"))
		return
	}
	if !req.Month.Applied {
		writeError(w, apperrors.ErrMonthNotApplied)
		return
	}

	normalized, fellBack := normalizer.Normalize(req.Case, req.Month.Year, req.Month.Month)
	writeJSON(w, http.StatusOK, NormalizeResponse{Case: normalized, FellBack: fellBack})
}

// Validate 检查案例的一致性问题
func (h *CaseHandler) Validate(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	var c model.SchedulingCase
	if err := decodeBody(r, &c); err != nil {
		writeError(w, err)
		return
	}

	issues := validator.Check(&c)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"issues":     issues,
		"has_errors": validator.HasErrors(issues),
	})
}
