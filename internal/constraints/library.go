// Package constraints 约束权重目录
//
// 描述求解常量 weights 表中每个可调权重的含义与默认值，
// 供编辑界面展示和校验，目录与 model.DefaultConstants 保持一致。
package constraints

import (
	"github.com/zhipai/zhipai/pkg/model"
)

// WeightDefinition 单个约束权重的元数据
type WeightDefinition struct {
	Key         string                   `json:"key"`      // weights 表中的键名
	DisplayName string                   `json:"display_name"`
	Category    model.ConstraintCategory `json:"category"` // hard/soft
	Description string                   `json:"description"`
	Default     float64                  `json:"default"`
}

// LibraryResponse 约束权重目录响应
type LibraryResponse struct {
	Library []WeightDefinition `json:"library"`
}

// Library 返回完整的约束权重目录
func Library() []WeightDefinition {
	return []WeightDefinition{
		// 硬约束松弛权重
		{
			Key:         "uncovered_shift",
			DisplayName: "班次未覆盖",
			Category:    model.ConstraintHard,
			Description: "班次无人值守的惩罚。为零时允许解中出现空班。",
			Default:     0,
		},
		{
			Key:         "slack_unfilled",
			DisplayName: "需求未满足",
			Category:    model.ConstraintHard,
			Description: "人员配置需求未被满足时的松弛惩罚。",
			Default:     20,
		},
		{
			Key:         "slack_shift_less",
			DisplayName: "班次偏少",
			Category:    model.ConstraintHard,
			Description: "人员分配班次少于下限时的松弛惩罚。",
			Default:     1,
		},
		{
			Key:         "slack_shift_more",
			DisplayName: "班次偏多",
			Category:    model.ConstraintHard,
			Description: "人员分配班次多于上限时的松弛惩罚。",
			Default:     1,
		},
		{
			Key:         "slack_cant_work",
			DisplayName: "禁排日被占用",
			Category:    model.ConstraintHard,
			Description: "把人员排入其绝对禁排日期的松弛惩罚。",
			Default:     20,
		},
		{
			Key:         "slack_consec",
			DisplayName: "连续上班超限",
			Category:    model.ConstraintHard,
			Description: "连续工作天数超过人员上限时的松弛惩罚。",
			Default:     1,
		},
		{
			Key:         "rest_12h",
			DisplayName: "12小时休息",
			Category:    model.ConstraintHard,
			Description: "相邻班次间不足12小时休息的惩罚。",
			Default:     0,
		},
		{
			Key:         "type_range",
			DisplayName: "类型配额",
			Category:    model.ConstraintHard,
			Description: "班次类型的人员配额越界惩罚。",
			Default:     0,
		},
		{
			Key:         "weekend_range",
			DisplayName: "周末配额",
			Category:    model.ConstraintHard,
			Description: "周末班次数量越界惩罚。",
			Default:     0,
		},
		{
			Key:         "total_limit",
			DisplayName: "总量限制",
			Category:    model.ConstraintHard,
			Description: "人员总班次数超出限制的惩罚。",
			Default:     0,
		},
		{
			Key:         "consecutive",
			DisplayName: "连班限制",
			Category:    model.ConstraintHard,
			Description: "连续班次模式的附加惩罚。",
			Default:     0,
		},

		// 软约束权重
		{
			Key:         "weekday_pref",
			DisplayName: "星期偏好",
			Category:    model.ConstraintSoft,
			Description: "违背人员星期偏好的代价。",
			Default:     1,
		},
		{
			Key:         "type_pref",
			DisplayName: "班次类型偏好",
			Category:    model.ConstraintSoft,
			Description: "违背人员班次类型偏好的代价。",
			Default:     1,
		},
		{
			Key:         "cluster",
			DisplayName: "连排聚合",
			Category:    model.ConstraintSoft,
			Description: "鼓励把人员的班次聚合为连续片段。",
			Default:     10000,
		},
		{
			Key:         "cluster_size",
			DisplayName: "聚合长度",
			Category:    model.ConstraintSoft,
			Description: "连排片段的期望长度。",
			Default:     1,
		},
		{
			Key:         "cluster_any_start",
			DisplayName: "任意起点聚合",
			Category:    model.ConstraintSoft,
			Description: "允许连排片段从任意日期开始的权重。",
			Default:     0,
		},
		{
			Key:         "cluster_weekend_start",
			DisplayName: "周末起点聚合",
			Category:    model.ConstraintSoft,
			Description: "偏好连排片段从周末开始的权重。",
			Default:     0,
		},
		{
			Key:         "requested_off",
			DisplayName: "尽量不排",
			Category:    model.ConstraintSoft,
			Description: "把人员排入其尽量不排日期的代价，权重极高以接近硬约束。",
			Default:     10000000,
		},
		{
			Key:         "days_wanted_not_met",
			DisplayName: "倾向排入未满足",
			Category:    model.ConstraintSoft,
			Description: "人员倾向排入的日期未被满足的代价。",
			Default:     10000000,
		},
		{
			Key:         "transitions_any",
			DisplayName: "班型切换",
			Category:    model.ConstraintSoft,
			Description: "班次类型频繁切换的代价。",
			Default:     0,
		},
		{
			Key:         "transitions_night",
			DisplayName: "夜班切换",
			Category:    model.ConstraintSoft,
			Description: "进出夜班序列的切换代价。",
			Default:     0,
		},
		{
			Key:         "unfair_number",
			DisplayName: "班次数不公平",
			Category:    model.ConstraintSoft,
			Description: "人员之间班次数量差异的公平性代价。",
			Default:     5000,
		},
	}
}

// Lookup 按键名查找权重定义
func Lookup(key string) (WeightDefinition, bool) {
	for _, d := range Library() {
		if d.Key == key {
			return d, true
		}
	}
	return WeightDefinition{}, false
}
