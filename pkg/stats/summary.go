// Package stats 提供排班结果的统计汇总
package stats

import (
	"sort"

	"github.com/zhipai/zhipai/pkg/model"
)

// Summarize 根据分配记录本地计算运行汇总
//
// 不直接采信求解端自己上报的汇总数字，保证汇总与返回的分配记录自洽。
func Summarize(assignments []model.Assignment, totalShifts int) model.RunSummary {
	providers := make(map[string]struct{})
	for _, a := range assignments {
		if a.ProviderID != "" {
			providers[a.ProviderID] = struct{}{}
		} else if a.ProviderName != "" {
			providers[a.ProviderName] = struct{}{}
		}
	}
	return model.RunSummary{
		TotalAssignments: len(assignments),
		TotalProviders:   len(providers),
		TotalShifts:      totalShifts,
	}
}

// DayCoverage 单日分配情况
type DayCoverage struct {
	Date       string `json:"date"`
	Assigned   int    `json:"assigned"`
	StaffCount int    `json:"staff_count"` // 当日去重人员数
}

// CoverageByDate 按日期统计分配情况，按日期升序返回
func CoverageByDate(assignments []model.Assignment) []DayCoverage {
	byDate := make(map[string]map[string]struct{})
	counts := make(map[string]int)
	for _, a := range assignments {
		if a.Date == "" {
			continue
		}
		counts[a.Date]++
		if byDate[a.Date] == nil {
			byDate[a.Date] = make(map[string]struct{})
		}
		key := a.ProviderID
		if key == "" {
			key = a.ProviderName
		}
		byDate[a.Date][key] = struct{}{}
	}

	dates := make([]string, 0, len(counts))
	for d := range counts {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	out := make([]DayCoverage, 0, len(dates))
	for _, d := range dates {
		out = append(out, DayCoverage{
			Date:       d,
			Assigned:   counts[d],
			StaffCount: len(byDate[d]),
		})
	}
	return out
}

// WorkloadByProvider 按人员统计分配班次数
func WorkloadByProvider(assignments []model.Assignment) map[string]int {
	out := make(map[string]int)
	for _, a := range assignments {
		key := a.ProviderID
		if key == "" {
			key = a.ProviderName
		}
		if key != "" {
			out[key]++
		}
	}
	return out
}
