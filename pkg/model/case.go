// Package model 定义排班案例与求解结果的核心数据模型
package model

// Calendar 排班日历
type Calendar struct {
	Days        []string `json:"days"`         // 有序的 ISO 日期列表，无重复
	WeekendDays []string `json:"weekend_days"` // 周末星期名，如 Saturday/Sunday
}

// Clone 深拷贝日历
func (c Calendar) Clone() Calendar {
	out := Calendar{
		Days:        make([]string, len(c.Days)),
		WeekendDays: make([]string, len(c.WeekendDays)),
	}
	copy(out.Days, c.Days)
	copy(out.WeekendDays, c.WeekendDays)
	return out
}

// HasDay 检查日历中是否包含指定日期
func (c Calendar) HasDay(date string) bool {
	for _, d := range c.Days {
		if d == date {
			return true
		}
	}
	return false
}

// IsWeekend 检查日期是否落在周末
func (c Calendar) IsWeekend(date string) bool {
	name := WeekdayName(date)
	for _, w := range c.WeekendDays {
		if w == name {
			return true
		}
	}
	return false
}

// RunConfig 单次求解运行配置
type RunConfig struct {
	Out              string `json:"out"`                 // 输出目录名，Result_N 形式，锁定后不可编辑
	K                int    `json:"k"`                   // 期望解数量
	L                int    `json:"l"`                   // 解多样性参数
	Seed             int64  `json:"seed"`                // 随机种子
	MaxTimeInSeconds int    `json:"max_time_in_seconds"` // 求解时间预算（秒）
}

// SchedulingCase 排班案例（聚合根），是归一化和发送给求解端的单位
type SchedulingCase struct {
	Constants     JSONMap    `json:"constants"`
	Run           RunConfig  `json:"run"`
	Calendar      Calendar   `json:"calendar"`
	Shifts        []Shift    `json:"shifts"`
	Providers     []Provider `json:"providers"`
	ProviderTypes []string   `json:"provider_types,omitempty"` // 动态的人员类型集合
}

// Clone 深拷贝整个案例（归一化时不修改原案例）
func (sc *SchedulingCase) Clone() *SchedulingCase {
	out := &SchedulingCase{
		Constants: sc.Constants.Clone(),
		Run:       sc.Run,
		Calendar:  sc.Calendar.Clone(),
		Shifts:    make([]Shift, len(sc.Shifts)),
		Providers: make([]Provider, 0, len(sc.Providers)),
	}
	for i, s := range sc.Shifts {
		out.Shifts[i] = s.Clone()
	}
	for _, p := range sc.Providers {
		out.Providers = append(out.Providers, p.Clone())
	}
	if sc.ProviderTypes != nil {
		out.ProviderTypes = make([]string, len(sc.ProviderTypes))
		copy(out.ProviderTypes, sc.ProviderTypes)
	}
	return out
}

// DefaultProviderType 新建人员的默认类型
const DefaultProviderType = "Staff"

// DefaultConstants 返回新案例的求解常量（权重/目标函数）
func DefaultConstants() JSONMap {
	return JSONMap{
		"solver": map[string]interface{}{
			"max_time_in_seconds": 1000,
			"phase1_fraction":     0.4,
			"relative_gap":        0.00001,
			"num_threads":         8,
			"min_total_is_hard":   false,
		},
		"weights": map[string]interface{}{
			"hard": map[string]interface{}{
				"uncovered_shift":  0.0,
				"slack_unfilled":   20,
				"slack_shift_less": 1,
				"slack_shift_more": 1,
				"slack_cant_work":  20,
				"slack_consec":     1,
				"rest_12h":         0.0,
				"type_range":       0.0,
				"weekend_range":    0.0,
				"total_limit":      0.0,
				"consecutive":      0.0,
			},
			"soft": map[string]interface{}{
				"weekday_pref":        1.0,
				"type_pref":           1.0,
				"cluster":             10000,
				"cluster_size":        1,
				"cluster_any_start":   0.0,
				"cluster_weekend_start": 0.0,
				"requested_off":       10000000,
				"days_wanted_not_met": 10000000,
				"transitions_any":     0.0,
				"transitions_night":   0.0,
				"unfair_number":       5000,
			},
		},
		"objective": map[string]interface{}{"hard": 1, "soft": 1, "fair": 0},
	}
}

// NewCase 创建带默认常量和日历的空案例
func NewCase() *SchedulingCase {
	return &SchedulingCase{
		Constants: DefaultConstants(),
		Calendar: Calendar{
			Days:        []string{},
			WeekendDays: []string{"Saturday", "Sunday"},
		},
		Shifts:        []Shift{},
		Providers:     []Provider{},
		ProviderTypes: []string{DefaultProviderType},
		Run: RunConfig{
			K:                3,
			L:                1,
			MaxTimeInSeconds: 1000,
		},
	}
}
