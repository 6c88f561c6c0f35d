// Package normalizer 把完整案例归一化为限定到单个月份的求解请求
//
// 归一化是对请求的尽力而为优化，不是正确性关键步骤：
// 日期运算中出现任何异常时回退返回原始案例，由调用方记录警告。
package normalizer

import (
	"fmt"
	"time"

	"github.com/zhipai/zhipai/pkg/logger"
	"github.com/zhipai/zhipai/pkg/model"
)

// MonthWindow 选定月份的日期窗口
type MonthWindow struct {
	Start string   // 月份首日 (YYYY-MM-DD)
	End   string   // 月份末日 (YYYY-MM-DD)
	Days  []string // 全月日期列表
}

// Window 计算指定年月的日期窗口
func Window(year, month int) (MonthWindow, error) {
	if month < 1 || month > 12 {
		return MonthWindow{}, fmt.Errorf("非法月份: %d", month)
	}
	if year < 1 {
		return MonthWindow{}, fmt.Errorf("非法年份: %d", year)
	}

	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)

	w := MonthWindow{
		Start: first.Format(model.DateLayout),
		End:   last.Format(model.DateLayout),
	}
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		w.Days = append(w.Days, d.Format(model.DateLayout))
	}
	return w, nil
}

// Contains 检查日期是否落在窗口内（字符串比较对 ISO 日期即为时间序）
func (w MonthWindow) Contains(date string) bool {
	return date >= w.Start && date <= w.End
}

// Normalize 把案例限定到选定月份，返回新案例，不修改原案例
//
// 返回值 fellBack 表示归一化过程失败、退回了原始案例。
// 调用方必须保证月份已被用户显式锁定后才调用。
func Normalize(c *model.SchedulingCase, year, month int) (out *model.SchedulingCase, fellBack bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warn().
				Interface("panic", r).
				Int("year", year).
				Int("month", month).
				Msg("案例归一化失败，退回原始案例")
			out = c
			fellBack = true
		}
	}()

	w, err := Window(year, month)
	if err != nil {
		logger.Warn().
			Err(err).
			Int("year", year).
			Int("month", month).
			Msg("月份窗口计算失败，退回原始案例")
		return c, true
	}

	normalized := c.Clone()

	// 日历替换为全月日期列表
	normalized.Calendar.Days = w.Days

	// 班次限定到窗口内，并修正跨夜班次
	shifts := make([]model.Shift, 0, len(normalized.Shifts))
	for _, s := range normalized.Shifts {
		if !w.Contains(s.Date) {
			continue
		}
		shifts = append(shifts, correctOvernight(s))
	}
	normalized.Shifts = shifts

	// 人员偏好裁剪到窗口内，其余字段不动
	for i := range normalized.Providers {
		p := &normalized.Providers[i]
		p.ForbiddenDaysHard = filterDays(p.ForbiddenDaysHard, w)
		p.ForbiddenDaysSoft = filterDays(p.ForbiddenDaysSoft, w)
		p.PreferredDaysHard = filterKeys(p.PreferredDaysHard, w)
		p.PreferredDaysSoft = filterKeys(p.PreferredDaysSoft, w)
	}

	return normalized, false
}

// correctOvernight 修正结束时间不晚于开始时间的同日跨夜班次
//
// 把结束日期前进一个日历日，保持 YYYY-MM-DDTHH:mm:ss 本地时间形状，
// 不做任何时区换算。时间戳无法解析的班次原样保留，不因单条坏记录
// 使整个归一化失败。
func correctOvernight(s model.Shift) model.Shift {
	if s.StartTime == "" || s.EndTime == "" {
		return s
	}
	start, err := model.ParseTimestamp(s.StartTime)
	if err != nil {
		return s
	}
	end, err := model.ParseTimestamp(s.EndTime)
	if err != nil {
		return s
	}
	if end.After(start) {
		return s
	}
	s.EndTime = end.AddDate(0, 0, 1).Format(model.TimestampLayout)
	return s
}

func filterDays(days []string, w MonthWindow) []string {
	if days == nil {
		return nil
	}
	out := make([]string, 0, len(days))
	for _, d := range days {
		if w.Contains(d) {
			out = append(out, d)
		}
	}
	return out
}

func filterKeys(m map[string][]string, w MonthWindow) map[string][]string {
	if m == nil {
		return nil
	}
	out := make(map[string][]string, len(m))
	for date, types := range m {
		if w.Contains(date) {
			out[date] = types
		}
	}
	return out
}
