// Package validator 提供派发前的案例校验
package validator

import (
	"fmt"

	"github.com/zhipai/zhipai/pkg/errors"
	"github.com/zhipai/zhipai/pkg/model"
)

// IssueType 问题类型
type IssueType string

const (
	IssueDuplicateDay    IssueType = "duplicate_day"     // 日历日期重复
	IssueInvalidDay      IssueType = "invalid_day"       // 非法日历日期
	IssueShiftOutsideCal IssueType = "shift_outside_cal" // 班次日期不在日历内
	IssueBadTimestamp    IssueType = "bad_timestamp"     // 班次时间戳无法解析
)

// Issue 校验发现的问题
type Issue struct {
	Type     IssueType `json:"type"`
	Severity string    `json:"severity"` // error/warning
	Date     string    `json:"date,omitempty"`
	ShiftID  string    `json:"shift_id,omitempty"`
	Message  string    `json:"message"`
}

// Precheck 派发前置条件校验
//
// 这些条件由调用方（API 层）在调用派发器之前保证：
// 月份已锁定、班次和人员非空。不满足时返回对应的类型化错误。
func Precheck(c *model.SchedulingCase, monthApplied bool) error {
	if !monthApplied {
		return errors.ErrMonthNotApplied
	}
	if c == nil || len(c.Shifts) == 0 {
		return errors.ErrNoShifts
	}
	if len(c.Providers) == 0 {
		return errors.ErrNoProviders
	}
	return nil
}

// Check 检查案例的一致性问题，返回发现的问题列表
//
// 与 Precheck 不同，这里的问题不阻止派发，供编辑界面提示使用。
func Check(c *model.SchedulingCase) []Issue {
	var issues []Issue

	seen := make(map[string]bool, len(c.Calendar.Days))
	for _, d := range c.Calendar.Days {
		if _, err := model.ParseDate(d); err != nil {
			issues = append(issues, Issue{
				Type:     IssueInvalidDay,
				Severity: "error",
				Date:     d,
				Message:  fmt.Sprintf("日历日期 %s 不是合法日期", d),
			})
			continue
		}
		if seen[d] {
			issues = append(issues, Issue{
				Type:     IssueDuplicateDay,
				Severity: "error",
				Date:     d,
				Message:  fmt.Sprintf("日历日期 %s 重复", d),
			})
		}
		seen[d] = true
	}

	for _, s := range c.Shifts {
		if len(c.Calendar.Days) > 0 && !seen[s.Date] {
			issues = append(issues, Issue{
				Type:     IssueShiftOutsideCal,
				Severity: "warning",
				Date:     s.Date,
				ShiftID:  s.ID,
				Message:  fmt.Sprintf("班次 %s 的日期 %s 不在日历内", s.ID, s.Date),
			})
		}
		if s.StartTime != "" {
			if _, err := model.ParseTimestamp(s.StartTime); err != nil {
				issues = append(issues, Issue{
					Type:     IssueBadTimestamp,
					Severity: "warning",
					ShiftID:  s.ID,
					Message:  fmt.Sprintf("班次 %s 的开始时间 %s 无法解析", s.ID, s.StartTime),
				})
			}
		}
		if s.EndTime != "" {
			if _, err := model.ParseTimestamp(s.EndTime); err != nil {
				issues = append(issues, Issue{
					Type:     IssueBadTimestamp,
					Severity: "warning",
					ShiftID:  s.ID,
					Message:  fmt.Sprintf("班次 %s 的结束时间 %s 无法解析", s.ID, s.EndTime),
				})
			}
		}
	}

	return issues
}

// HasErrors 检查问题列表中是否包含 error 级问题
func HasErrors(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == "error" {
			return true
		}
	}
	return false
}
