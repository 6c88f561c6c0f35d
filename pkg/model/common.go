// Package model 定义排班案例与求解结果的核心数据模型
package model

import (
	"time"
)

// DateLayout 日期格式 (YYYY-MM-DD)
const DateLayout = "2006-01-02"

// TimestampLayout 班次时间戳格式（本地时间，无时区）
const TimestampLayout = "2006-01-02T15:04:05"

// ConstraintCategory 约束类别
type ConstraintCategory string

const (
	ConstraintHard ConstraintCategory = "hard" // 硬约束（必须满足）
	ConstraintSoft ConstraintCategory = "soft" // 软约束（尽量满足）
)

// SolverKind 求解端类型
type SolverKind string

const (
	SolverLocal      SolverKind = "local"      // 本地高性能求解端
	SolverServerless SolverKind = "serverless" // 远程/无服务器求解端
)

// JSONMap 用于存放任意 JSON 对象（constants、solver_stats 等）
type JSONMap map[string]interface{}

// Clone 深拷贝（嵌套 map 递归复制，slice 按值复制，标量直接复制）
func (m JSONMap) Clone() JSONMap {
	if m == nil {
		return nil
	}
	out := make(JSONMap, len(m))
	for k, v := range m {
		switch vv := v.(type) {
		case map[string]interface{}:
			out[k] = map[string]interface{}(JSONMap(vv).Clone())
		case JSONMap:
			out[k] = vv.Clone()
		case []interface{}:
			s := make([]interface{}, len(vv))
			copy(s, vv)
			out[k] = s
		default:
			out[k] = v
		}
	}
	return out
}

// ParseDate 解析 ISO 日期字符串
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// ParseTimestamp 解析班次时间戳字符串
func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse(TimestampLayout, s)
}

// WeekdayName 返回日期对应的英文星期名（与 weekend_days 配置对应）
func WeekdayName(date string) string {
	t, err := ParseDate(date)
	if err != nil {
		return ""
	}
	return t.Weekday().String()
}
