// Package prefs 提供人员偏好约束的编辑操作
//
// 四个偏好集合（绝对禁排/尽量不排/必须排入/倾向排入）互斥：
// 每个操作把目标日期写入自己的集合，并从其余三个集合清除，
// 保证同一日期不会同时出现在多个集合中。所有操作均为纯函数，
// 幂等，且不触碰目标集合以外的日期。
package prefs

import (
	"sort"
	"strings"

	"github.com/zhipai/zhipai/pkg/errors"
	"github.com/zhipai/zhipai/pkg/model"
)

// Defaults 人员字段的业务默认值
type Defaults struct {
	MaxTotal           int
	MaxConsecutiveDays int
}

// DefaultDefaults 返回默认值（来源上固定的业务常量）
func DefaultDefaults() Defaults {
	return Defaults{
		MaxTotal:           4,
		MaxConsecutiveDays: 5,
	}
}

// SetFixedOff 把日期加入绝对禁排集合
func SetFixedOff(p model.Provider, dates []string) model.Provider {
	out := p.Clone()
	out.ForbiddenDaysHard = addDays(out.ForbiddenDaysHard, dates)
	out.ForbiddenDaysSoft = removeDays(out.ForbiddenDaysSoft, dates)
	out.PreferredDaysHard = removeKeys(out.PreferredDaysHard, dates)
	out.PreferredDaysSoft = removeKeys(out.PreferredDaysSoft, dates)
	return out
}

// SetPreferredOff 把日期加入尽量不排集合
func SetPreferredOff(p model.Provider, dates []string) model.Provider {
	out := p.Clone()
	out.ForbiddenDaysSoft = addDays(out.ForbiddenDaysSoft, dates)
	out.ForbiddenDaysHard = removeDays(out.ForbiddenDaysHard, dates)
	out.PreferredDaysHard = removeKeys(out.PreferredDaysHard, dates)
	out.PreferredDaysSoft = removeKeys(out.PreferredDaysSoft, dates)
	return out
}

// SetFixedOn 把日期设为必须排入指定班次类型
//
// shiftTypes 不能为空，否则返回校验错误。
func SetFixedOn(p model.Provider, dates []string, shiftTypes []string) (model.Provider, error) {
	if len(shiftTypes) == 0 {
		return p, errors.Validation("shift_types", "必须至少选择一个班次类型")
	}
	out := p.Clone()
	out.PreferredDaysHard = setKeys(out.PreferredDaysHard, dates, shiftTypes)
	out.PreferredDaysSoft = removeKeys(out.PreferredDaysSoft, dates)
	out.ForbiddenDaysHard = removeDays(out.ForbiddenDaysHard, dates)
	out.ForbiddenDaysSoft = removeDays(out.ForbiddenDaysSoft, dates)
	return out, nil
}

// SetPreferredOn 把日期设为倾向排入指定班次类型
func SetPreferredOn(p model.Provider, dates []string, shiftTypes []string) (model.Provider, error) {
	if len(shiftTypes) == 0 {
		return p, errors.Validation("shift_types", "必须至少选择一个班次类型")
	}
	out := p.Clone()
	out.PreferredDaysSoft = setKeys(out.PreferredDaysSoft, dates, shiftTypes)
	out.PreferredDaysHard = removeKeys(out.PreferredDaysHard, dates)
	out.ForbiddenDaysHard = removeDays(out.ForbiddenDaysHard, dates)
	out.ForbiddenDaysSoft = removeDays(out.ForbiddenDaysSoft, dates)
	return out, nil
}

// ClearPreferences 从全部四个集合清除指定日期
func ClearPreferences(p model.Provider, dates []string) model.Provider {
	out := p.Clone()
	out.ForbiddenDaysHard = removeDays(out.ForbiddenDaysHard, dates)
	out.ForbiddenDaysSoft = removeDays(out.ForbiddenDaysSoft, dates)
	out.PreferredDaysHard = removeKeys(out.PreferredDaysHard, dates)
	out.PreferredDaysSoft = removeKeys(out.PreferredDaysSoft, dates)
	return out
}

// AddProvider 创建新人员
//
// 名称不能为空白；类型缺省为 Staff；上限字段按默认值补齐。
func AddProvider(name, providerType string, d Defaults) (model.Provider, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Provider{}, errors.Validation("name", "人员名称不能为空")
	}
	if providerType == "" {
		providerType = model.DefaultProviderType
	}
	p := model.Provider{
		Name:               name,
		Type:               providerType,
		MaxConsecutiveDays: d.MaxConsecutiveDays,
		Limits: model.Limits{
			MaxTotal: d.MaxTotal,
		},
		ForbiddenDaysHard: []string{},
		ForbiddenDaysSoft: []string{},
		PreferredDaysHard: map[string][]string{},
		PreferredDaysSoft: map[string][]string{},
	}
	return p, nil
}

// RemoveProvider 按下标删除人员，返回新列表
//
// 纯函数，不修改输入列表；下标越界返回输入错误。
func RemoveProvider(providers []model.Provider, index int) ([]model.Provider, error) {
	if index < 0 || index >= len(providers) {
		return nil, errors.InvalidInput("index", "人员下标越界")
	}
	out := make([]model.Provider, 0, len(providers)-1)
	for i, p := range providers {
		if i == index {
			continue
		}
		out = append(out, p.Clone())
	}
	return out, nil
}

// Patch 人员的部分更新，nil 字段表示本次编辑未涉及
type Patch struct {
	Name               *string              `json:"name,omitempty"`
	Type               *string              `json:"type,omitempty"`
	MaxConsecutiveDays *int                 `json:"max_consecutive_days,omitempty"`
	MinTotal           *int                 `json:"min_total,omitempty"`
	MaxTotal           *int                 `json:"max_total,omitempty"`
	ForbiddenDaysHard  *[]string            `json:"forbidden_days_hard,omitempty"`
	ForbiddenDaysSoft  *[]string            `json:"forbidden_days_soft,omitempty"`
	PreferredDaysHard  *map[string][]string `json:"preferred_days_hard,omitempty"`
	PreferredDaysSoft  *map[string][]string `json:"preferred_days_soft,omitempty"`
}

// MergeProvider 把部分更新合并到已有人员上
//
// 逐字段合并，编辑中未出现的字段保持原值不丢失；
// 合并后上限字段为空时按默认值补齐。
func MergeProvider(existing model.Provider, patch Patch, d Defaults) (model.Provider, error) {
	out := existing.Clone()

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return existing, errors.Validation("name", "人员名称不能为空")
		}
		out.Name = name
	}
	if patch.Type != nil && *patch.Type != "" {
		out.Type = *patch.Type
	}
	if patch.MaxConsecutiveDays != nil {
		out.MaxConsecutiveDays = *patch.MaxConsecutiveDays
	}
	if patch.MinTotal != nil {
		out.Limits.MinTotal = *patch.MinTotal
	}
	if patch.MaxTotal != nil {
		out.Limits.MaxTotal = *patch.MaxTotal
	}
	if patch.ForbiddenDaysHard != nil {
		out.ForbiddenDaysHard = addDays(nil, *patch.ForbiddenDaysHard)
	}
	if patch.ForbiddenDaysSoft != nil {
		out.ForbiddenDaysSoft = addDays(nil, *patch.ForbiddenDaysSoft)
	}
	if patch.PreferredDaysHard != nil {
		out.PreferredDaysHard = setAll(*patch.PreferredDaysHard)
	}
	if patch.PreferredDaysSoft != nil {
		out.PreferredDaysSoft = setAll(*patch.PreferredDaysSoft)
	}

	// 合并后仍未设置的上限按默认值补齐
	if out.Limits.MaxTotal <= 0 {
		out.Limits.MaxTotal = d.MaxTotal
	}
	if out.MaxConsecutiveDays <= 0 {
		out.MaxConsecutiveDays = d.MaxConsecutiveDays
	}

	return out, nil
}

// ===== 集合辅助：日期集合保持有序且去重，保证幂等操作产生相等状态 =====

func addDays(days []string, add []string) []string {
	set := make(map[string]struct{}, len(days)+len(add))
	for _, d := range days {
		set[d] = struct{}{}
	}
	for _, d := range add {
		set[d] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for d := range set {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

func removeDays(days []string, remove []string) []string {
	if len(days) == 0 || len(remove) == 0 {
		return days
	}
	drop := make(map[string]struct{}, len(remove))
	for _, d := range remove {
		drop[d] = struct{}{}
	}
	out := make([]string, 0, len(days))
	for _, d := range days {
		if _, ok := drop[d]; !ok {
			out = append(out, d)
		}
	}
	return out
}

func setKeys(m map[string][]string, dates []string, shiftTypes []string) map[string][]string {
	if m == nil {
		m = make(map[string][]string, len(dates))
	}
	types := make([]string, len(shiftTypes))
	copy(types, shiftTypes)
	sort.Strings(types)
	for _, date := range dates {
		t := make([]string, len(types))
		copy(t, types)
		m[date] = t
	}
	return m
}

func removeKeys(m map[string][]string, dates []string) map[string][]string {
	if m == nil {
		return nil
	}
	for _, date := range dates {
		delete(m, date)
	}
	return m
}

func setAll(m map[string][]string) map[string][]string {
	out := make(map[string][]string, len(m))
	for date, types := range m {
		t := make([]string, len(types))
		copy(t, types)
		sort.Strings(t)
		out[date] = t
	}
	return out
}
