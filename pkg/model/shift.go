// Package model 定义排班案例与求解结果的核心数据模型
package model

// Shift 班次
type Shift struct {
	ID           string   `json:"id"`
	Date         string   `json:"date"`           // YYYY-MM-DD
	Type         string   `json:"type"`           // 班次类型标签，如 MD_D
	StartTime    string   `json:"start_time"`     // YYYY-MM-DDTHH:mm:ss（本地时间）
	EndTime      string   `json:"end_time"`       // 同上；跨夜班次经归一化修正
	AllowedTypes []string `json:"allowed_provider_types,omitempty"` // 允许排入的人员类型
}

// Clone 深拷贝班次
func (s Shift) Clone() Shift {
	out := s
	if s.AllowedTypes != nil {
		out.AllowedTypes = make([]string, len(s.AllowedTypes))
		copy(out.AllowedTypes, s.AllowedTypes)
	}
	return out
}

// AllowsType 检查班次是否允许指定人员类型
func (s Shift) AllowsType(providerType string) bool {
	if len(s.AllowedTypes) == 0 {
		return true // 未设置即不限制
	}
	for _, t := range s.AllowedTypes {
		if t == providerType {
			return true
		}
	}
	return false
}

// CrossesMidnight 检查班次是否跨夜（结束时间不晚于开始时间）
// 时间戳无法解析时返回 false，由调用方决定是否保留原值
func (s Shift) CrossesMidnight() bool {
	if s.StartTime == "" || s.EndTime == "" {
		return false
	}
	start, err := ParseTimestamp(s.StartTime)
	if err != nil {
		return false
	}
	end, err := ParseTimestamp(s.EndTime)
	if err != nil {
		return false
	}
	return !end.After(start)
}
