// Package model 定义排班案例与求解结果的核心数据模型
package model

// Limits 人员总班次上下限
type Limits struct {
	MinTotal int `json:"min_total"`
	MaxTotal int `json:"max_total"`
}

// Provider 可排班人员
//
// 四个偏好集合互斥：同一日期最多出现在其中一个集合中，
// 由 prefs 包的编辑操作保证（应用一种偏好会从其余三个清除该日期）。
type Provider struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"` // 人员类型标签，默认 Staff

	MaxConsecutiveDays int    `json:"max_consecutive_days,omitempty"` // 连续工作天数上限，0 表示未设置
	Limits             Limits `json:"limits"`

	ForbiddenDaysHard []string            `json:"forbidden_days_hard"` // 绝对不排的日期
	ForbiddenDaysSoft []string            `json:"forbidden_days_soft"` // 尽量不排的日期
	PreferredDaysHard map[string][]string `json:"preferred_days_hard"` // 日期 -> 必须排入的班次类型
	PreferredDaysSoft map[string][]string `json:"preferred_days_soft"` // 日期 -> 倾向排入的班次类型
}

// Clone 深拷贝人员
func (p Provider) Clone() Provider {
	out := p
	out.ForbiddenDaysHard = cloneDays(p.ForbiddenDaysHard)
	out.ForbiddenDaysSoft = cloneDays(p.ForbiddenDaysSoft)
	out.PreferredDaysHard = clonePreferred(p.PreferredDaysHard)
	out.PreferredDaysSoft = clonePreferred(p.PreferredDaysSoft)
	return out
}

// HasForbiddenHard 检查日期是否在绝对禁排集合中
func (p Provider) HasForbiddenHard(date string) bool {
	return containsDay(p.ForbiddenDaysHard, date)
}

// HasForbiddenSoft 检查日期是否在尽量不排集合中
func (p Provider) HasForbiddenSoft(date string) bool {
	return containsDay(p.ForbiddenDaysSoft, date)
}

func cloneDays(days []string) []string {
	if days == nil {
		return nil
	}
	out := make([]string, len(days))
	copy(out, days)
	return out
}

func clonePreferred(m map[string][]string) map[string][]string {
	if m == nil {
		return nil
	}
	out := make(map[string][]string, len(m))
	for date, types := range m {
		t := make([]string, len(types))
		copy(t, types)
		out[date] = t
	}
	return out
}

func containsDay(days []string, date string) bool {
	for _, d := range days {
		if d == date {
			return true
		}
	}
	return false
}
